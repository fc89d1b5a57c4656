package app

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/internal/chat/repository"
	"marketplace_chat_service/pkg/logger"

	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetNewNop()
}

const testGrace = 40 * time.Millisecond

type fakeTransport struct {
	mu     sync.Mutex
	frames []domain.WSResponse
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	var resp domain.WSResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	f.mu.Lock()
	f.frames = append(f.frames, resp)
	f.mu.Unlock()
	return nil
}

// deadlineTransport records write deadlines the way the websocket conn receives them
type deadlineTransport struct {
	fakeTransport
	deadlines []time.Time
	err       error
}

func (d *deadlineTransport) SetWriteDeadline(t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.deadlines = append(d.deadlines, t)
	return nil
}

// barrierGateway holds FindConversation until n callers are inside, forcing joins to interleave
type barrierGateway struct {
	repository.Gateway
	n       int32
	arrived atomic.Int32
	release chan struct{}
}

func newBarrierGateway(next repository.Gateway, n int32) *barrierGateway {
	return &barrierGateway{Gateway: next, n: n, release: make(chan struct{})}
}

func (b *barrierGateway) FindConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := b.Gateway.FindConversation(ctx, id)
	if b.arrived.Add(1) == b.n {
		close(b.release)
	}
	<-b.release
	return conv, err
}

func (f *fakeTransport) all() []domain.WSResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.WSResponse(nil), f.frames...)
}

func (f *fakeTransport) byAction(action domain.Action) []domain.WSResponse {
	var out []domain.WSResponse
	for _, fr := range f.all() {
		if fr.Action == string(action) {
			out = append(out, fr)
		}
	}
	return out
}

// messagesOf decode the message list of a history frame or the single message of a broadcast
func messagesOf(t *testing.T, resp domain.WSResponse) []domain.Message {
	t.Helper()
	var out []domain.Message
	if raw, ok := resp.Payload["messages"]; ok {
		b, err := json.Marshal(raw)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &out))
		return out
	}
	b, err := json.Marshal(resp.Payload["message"])
	require.NoError(t, err)
	var m domain.Message
	require.NoError(t, json.Unmarshal(b, &m))
	return []domain.Message{m}
}

type countingDeleter struct {
	calls atomic.Int32
	err   error
	next  repository.Gateway
	// block, when set, holds DeleteConversation until closed; started is signalled first
	block   chan struct{}
	started chan struct{}
}

func (d *countingDeleter) DeleteConversation(ctx context.Context, id string) error {
	d.calls.Add(1)
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.block != nil {
		<-d.block
	}
	if d.err != nil {
		return d.err
	}
	if d.next != nil {
		return d.next.DeleteConversation(ctx, id)
	}
	return nil
}

type testEnv struct {
	gateway repository.Gateway
	engine  *LifecycleEngine
	router  *SessionRouter
}

func newTestEnv(t *testing.T, cfg RouterConfig) *testEnv {
	t.Helper()
	gw := repository.NewMemoryGateway(24 * time.Hour)
	engine := NewLifecycleEngine(gw, testGrace)
	t.Cleanup(engine.Stop)
	return &testEnv{
		gateway: gw,
		engine:  engine,
		router:  NewSessionRouter(gw, engine, nil, cfg),
	}
}

func (e *testEnv) connect() (*Session, *fakeTransport) {
	tr := &fakeTransport{}
	return e.router.NewSession(tr), tr
}

func event(action domain.Action, conversationID, userID, content string) []byte {
	b, _ := json.Marshal(domain.WSRequest{
		Action:         string(action),
		ConversationID: conversationID,
		UserID:         userID,
		Content:        content,
	})
	return b
}
