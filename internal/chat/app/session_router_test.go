package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/internal/chat/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var acks = RouterConfig{ErrorAcks: true}

func TestRouter_JoinReplaysFullHistoryInOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"buyer", "seller"})
	for i := 0; i < 5; i++ {
		_, err := env.gateway.CreateMessage(ctx, conv.ID, "buyer", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	s, tr := env.connect()
	env.router.Dispatch(ctx, s, event(domain.Join, conv.ID, "seller", ""))

	history := tr.byAction(domain.History)
	require.Len(t, history, 1)
	msgs := messagesOf(t, history[0])
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Content)
	}

	cid, uid := s.Binding()
	assert.Equal(t, conv.ID, cid)
	assert.Equal(t, "seller", uid)

	snap, _ := env.engine.Snapshot(conv.ID)
	assert.Equal(t, []string{"seller"}, snap.Users)
}

func TestRouter_JoinAddsParticipant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"buyer"})

	s, _ := env.connect()
	env.router.Dispatch(ctx, s, event(domain.Join, conv.ID, "newcomer", ""))

	stored, err := env.gateway.FindConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer", "newcomer"}, stored.Participants)
}

func TestRouter_BroadcastReachesEveryBoundSessionOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"a", "b"})
	other, _ := env.gateway.CreateConversation(ctx, []string{"c"})

	sa, ta := env.connect()
	sb, tb := env.connect()
	sc, tc := env.connect()
	env.router.Dispatch(ctx, sa, event(domain.Join, conv.ID, "a", ""))
	env.router.Dispatch(ctx, sb, event(domain.Join, conv.ID, "b", ""))
	env.router.Dispatch(ctx, sc, event(domain.Join, other.ID, "c", ""))

	env.router.Dispatch(ctx, sa, event(domain.SendMessage, conv.ID, "a", "  hello  "))

	for _, tr := range []*fakeTransport{ta, tb} {
		got := tr.byAction(domain.SendMessage)
		require.Len(t, got, 1)
		m := messagesOf(t, got[0])[0]
		assert.Equal(t, "hello", m.Content)
		assert.Equal(t, "a", m.Sender)
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.CreatedAt.IsZero())
	}
	assert.Empty(t, tc.byAction(domain.SendMessage))

	msgs, _ := env.gateway.ListMessages(ctx, conv.ID)
	assert.Len(t, msgs, 1)
}

func TestRouter_MessageRequiresBinding(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"a"})

	s, tr := env.connect()
	env.router.Dispatch(ctx, s, event(domain.SendMessage, conv.ID, "a", "hi"))

	errs := tr.byAction(domain.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, http.StatusForbidden, errs[0].Code)
	assert.Equal(t, "message", errs[0].Payload["action"])

	msgs, _ := env.gateway.ListMessages(ctx, conv.ID)
	assert.Empty(t, msgs)
}

func TestRouter_InvalidEventsAreAcked(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"a"})
	s, tr := env.connect()

	env.router.Dispatch(ctx, s, []byte("{not json"))
	env.router.Dispatch(ctx, s, event(domain.Join, "", "a", ""))
	env.router.Dispatch(ctx, s, event(domain.Join, "missing", "a", ""))
	env.router.Dispatch(ctx, s, event(domain.Join, conv.ID, "a", ""))
	env.router.Dispatch(ctx, s, event(domain.SendMessage, conv.ID, "a", "   "))
	env.router.Dispatch(ctx, s, event("dance", conv.ID, "a", ""))

	codes := []int{}
	for _, e := range tr.byAction(domain.Error) {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []int{400, 400, 404, 400, 400}, codes)
	assert.Empty(t, tr.byAction(domain.SendMessage))
}

func TestRouter_SilentDropWithoutErrorAcks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, RouterConfig{})
	s, tr := env.connect()

	env.router.Dispatch(ctx, s, event(domain.Join, "missing", "a", ""))

	assert.Empty(t, tr.all())
	cid, _ := s.Binding()
	assert.Empty(t, cid)
}

func TestRouter_JoinAfterDeletionIsNotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"a"})

	s, _ := env.connect()
	env.router.Dispatch(ctx, s, event(domain.Join, conv.ID, "a", ""))
	env.router.Dispatch(ctx, s, event(domain.Leave, "", "", ""))

	assert.Eventually(t, func() bool {
		_, ok := env.engine.Snapshot(conv.ID)
		return !ok
	}, time.Second, 5*time.Millisecond)

	s2, tr2 := env.connect()
	env.router.Dispatch(ctx, s2, event(domain.Join, conv.ID, "a", ""))

	assert.Empty(t, tr2.byAction(domain.History))
	errs := tr2.byAction(domain.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, http.StatusNotFound, errs[0].Code)
	_, tracked := env.engine.Snapshot(conv.ID)
	assert.False(t, tracked)
}

func TestRouter_SwitchingConversationLeavesPrevious(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	first, _ := env.gateway.CreateConversation(ctx, []string{"a"})
	second, _ := env.gateway.CreateConversation(ctx, []string{"a"})

	s, _ := env.connect()
	env.router.Dispatch(ctx, s, event(domain.Join, first.ID, "a", ""))
	env.router.Dispatch(ctx, s, event(domain.Join, second.ID, "a", ""))

	assert.Equal(t, 0, env.router.RoomSize(first.ID))
	assert.Equal(t, 1, env.router.RoomSize(second.ID))
	snap, _ := env.engine.Snapshot(first.ID)
	assert.Equal(t, domain.PresenceDraining, snap.State)
}

func TestRouter_DisconnectReleasesPresence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"a"})

	s, _ := env.connect()
	env.router.Dispatch(ctx, s, event(domain.Join, conv.ID, "a", ""))
	env.router.Disconnect(ctx, s)

	snap, _ := env.engine.Snapshot(conv.ID)
	assert.Equal(t, domain.PresenceDraining, snap.State)
	assert.Equal(t, 0, env.router.RoomSize(conv.ID))

	idle, tr := env.connect()
	env.router.Disconnect(ctx, idle)
	assert.Empty(t, tr.all())
}

func TestRouter_PanicIsIsolated(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	gw.On("FindConversation", mock.Anything, "c1").Run(func(mock.Arguments) { panic("driver bug") })
	engine := NewLifecycleEngine(gw, testGrace)
	defer engine.Stop()
	router := NewSessionRouter(gw, engine, nil, acks)

	tr := &fakeTransport{}
	s := router.NewSession(tr)
	assert.NotPanics(t, func() {
		router.Dispatch(ctx, s, event(domain.Join, "c1", "a", ""))
	})

	errs := tr.byAction(domain.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, http.StatusInternalServerError, errs[0].Code)
	assert.Equal(t, "internal server error", errs[0].Error)
}

func TestRouter_RateLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, RouterConfig{ErrorAcks: true, EventRate: 0.001, EventBurst: 1})
	s, tr := env.connect()

	env.router.Dispatch(ctx, s, event(domain.Join, "missing", "a", ""))
	env.router.Dispatch(ctx, s, event(domain.Join, "missing", "a", ""))

	errs := tr.byAction(domain.Error)
	require.Len(t, errs, 2)
	assert.Equal(t, http.StatusNotFound, errs[0].Code)
	assert.Equal(t, http.StatusTooManyRequests, errs[1].Code)
}

// joiners racing a stream of messages must each see every message exactly once,
// either in their history or as a later broadcast
func TestRouter_ConcurrentJoinsSeeEveryMessageOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"sender"})

	sender, _ := env.connect()
	env.router.Dispatch(ctx, sender, event(domain.Join, conv.ID, "sender", ""))

	const total = 60
	const joiners = 8

	var wg sync.WaitGroup
	transports := make([]*fakeTransport, joiners)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			env.router.Dispatch(ctx, sender, event(domain.SendMessage, conv.ID, "sender", fmt.Sprintf("m%02d", i)))
		}
	}()
	for j := 0; j < joiners; j++ {
		s, tr := env.connect()
		transports[j] = tr
		wg.Add(1)
		go func(s *Session, user string) {
			defer wg.Done()
			env.router.Dispatch(ctx, s, event(domain.Join, conv.ID, user, ""))
		}(s, fmt.Sprintf("joiner-%d", j))
	}
	wg.Wait()

	for j, tr := range transports {
		frames := tr.all()
		require.NotEmpty(t, frames, "joiner %d", j)
		require.Equal(t, string(domain.History), frames[0].Action, "history must come first")

		seen := map[string]int{}
		var order []string
		for _, fr := range frames {
			for _, m := range messagesOf(t, fr) {
				seen[m.Content]++
				order = append(order, m.Content)
			}
		}
		assert.Len(t, seen, total, "joiner %d gap", j)
		for content, n := range seen {
			assert.Equal(t, 1, n, "joiner %d duplicate %s", j, content)
		}
		for i := 1; i < len(order); i++ {
			assert.Less(t, order[i-1], order[i], "joiner %d order", j)
		}
	}
}

func TestRouter_RacingJoinsKeepEveryParticipant(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryGateway(24 * time.Hour)
	conv, _ := mem.CreateConversation(ctx, []string{"owner"})

	// both joiners read the conversation before either writes
	gw := newBarrierGateway(mem, 2)
	engine := NewLifecycleEngine(gw, testGrace)
	defer engine.Stop()
	router := NewSessionRouter(gw, engine, nil, acks)

	var wg sync.WaitGroup
	for _, user := range []string{"alice", "bob"} {
		s := router.NewSession(&fakeTransport{})
		wg.Add(1)
		go func(s *Session, user string) {
			defer wg.Done()
			router.Dispatch(ctx, s, event(domain.Join, conv.ID, user, ""))
		}(s, user)
	}
	wg.Wait()

	stored, err := mem.FindConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "alice", "bob"}, stored.Participants)
	assert.Equal(t, 2, router.RoomSize(conv.ID))
}

func TestRouter_ClosingOneTabKeepsConversation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, acks)
	conv, _ := env.gateway.CreateConversation(ctx, []string{"buyer", "seller"})

	tab1, _ := env.connect()
	tab2, tr2 := env.connect()
	env.router.Dispatch(ctx, tab1, event(domain.Join, conv.ID, "buyer", ""))
	env.router.Dispatch(ctx, tab2, event(domain.Join, conv.ID, "buyer", ""))

	env.router.Disconnect(ctx, tab1)
	time.Sleep(3 * testGrace)

	_, err := env.gateway.FindConversation(ctx, conv.ID)
	require.NoError(t, err)
	snap, _ := env.engine.Snapshot(conv.ID)
	assert.Equal(t, domain.PresenceActive, snap.State)
	assert.Equal(t, []string{"buyer"}, snap.Users)

	env.router.Dispatch(ctx, tab2, event(domain.SendMessage, conv.ID, "buyer", "still here"))
	assert.Len(t, tr2.byAction(domain.SendMessage), 1)

	env.router.Disconnect(ctx, tab2)
	assert.Eventually(t, func() bool {
		_, err := env.gateway.FindConversation(ctx, conv.ID)
		return errors.Is(err, domain.ErrConversationNotFound)
	}, time.Second, 5*time.Millisecond)
}

func TestRouter_ClientActionNamesDoNotGrowMetricSeries(t *testing.T) {
	ctx := context.Background()
	gw := repository.NewMemoryGateway(24 * time.Hour)
	engine := NewLifecycleEngine(gw, testGrace)
	defer engine.Stop()
	metrics := NewMetrics(prometheus.NewRegistry())
	router := NewSessionRouter(gw, engine, metrics, RouterConfig{})

	s := router.NewSession(&fakeTransport{})
	for i := 0; i < 50; i++ {
		router.Dispatch(ctx, s, event(domain.Action(fmt.Sprintf("junk-%d", i)), "c1", "u1", ""))
	}
	router.Dispatch(ctx, s, []byte("{not json"))
	router.Dispatch(ctx, s, event(domain.Join, "missing", "u1", ""))

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.events))
	assert.Equal(t, float64(51), testutil.ToFloat64(metrics.events.WithLabelValues("invalid", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.events.WithLabelValues("join", "error")))
}

func TestSession_SendBoundsEveryWrite(t *testing.T) {
	env := newTestEnv(t, RouterConfig{WriteTimeout: 2 * time.Second})
	tr := &deadlineTransport{}
	s := env.router.NewSession(tr)

	before := time.Now()
	require.NoError(t, s.Send(domain.WSResponse{Action: string(domain.History), Success: true}))
	require.NoError(t, s.Send(domain.WSResponse{Action: string(domain.History), Success: true}))

	require.Len(t, tr.deadlines, 2)
	assert.WithinDuration(t, before.Add(2*time.Second), tr.deadlines[0], time.Second)
	assert.Len(t, tr.all(), 2)
}

func TestSession_DefaultWriteTimeoutAndDeadlineFailure(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	tr := &deadlineTransport{}
	s := env.router.NewSession(tr)

	require.NoError(t, s.Send(domain.WSResponse{Action: string(domain.History)}))
	require.Len(t, tr.deadlines, 1)
	assert.WithinDuration(t, time.Now().Add(defaultWriteTimeout), tr.deadlines[0], time.Second)

	tr.err = errors.New("use of closed network connection")
	assert.Error(t, s.Send(domain.WSResponse{Action: string(domain.History)}))
	assert.Len(t, tr.all(), 1, "no write after a failed deadline")
}
