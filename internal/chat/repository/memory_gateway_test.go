package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGateway() (Gateway, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryGateway(24*time.Hour, WithClock(clock.Now)), clock
}

func TestMemoryGateway_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway()

	conv, err := gw.CreateConversation(ctx, []string{"buyer", "seller"})
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "buyer", conv.CreatedBy)

	found, err := gw.FindConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.Participants, found.Participants)

	_, err = gw.FindConversation(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestMemoryGateway_AddParticipantBumpsLastActive(t *testing.T) {
	ctx := context.Background()
	gw, clock := newTestGateway()

	conv, _ := gw.CreateConversation(ctx, []string{"buyer"})
	clock.Advance(time.Minute)

	updated, err := gw.AddParticipant(ctx, conv.ID, "seller")
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer", "seller"}, updated.Participants)

	// 重复加入不产生重复成员
	_, err = gw.AddParticipant(ctx, conv.ID, "seller")
	require.NoError(t, err)

	found, _ := gw.FindConversation(ctx, conv.ID)
	assert.Equal(t, []string{"buyer", "seller"}, found.Participants)
	assert.True(t, found.LastActiveAt.After(found.CreatedAt))

	_, err = gw.AddParticipant(ctx, "missing", "seller")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	assert.ErrorIs(t, gw.TouchConversation(ctx, "missing"), domain.ErrConversationNotFound)
}

func TestMemoryGateway_ConcurrentAddParticipantKeepsEveryone(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway()
	conv, _ := gw.CreateConversation(ctx, []string{"owner"})

	var wg sync.WaitGroup
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := gw.AddParticipant(ctx, conv.ID, userID)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	found, _ := gw.FindConversation(ctx, conv.ID)
	assert.Len(t, found.Participants, len(users)+1)
	for _, u := range users {
		assert.True(t, found.HasParticipant(u), u)
	}
}

func TestMemoryGateway_MessagesOrderedAndCascadeDeleted(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway()
	conv, _ := gw.CreateConversation(ctx, []string{"a", "b"})

	// same clock instant for every message: order comes from the sequence
	for _, c := range []string{"one", "two", "three"} {
		_, err := gw.CreateMessage(ctx, conv.ID, "a", c)
		require.NoError(t, err)
	}

	msgs, err := gw.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)

	require.NoError(t, gw.DeleteConversation(ctx, conv.ID))
	msgs, _ = gw.ListMessages(ctx, conv.ID)
	assert.Empty(t, msgs)
	_, err = gw.FindConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	_, err = gw.CreateMessage(ctx, conv.ID, "a", "late")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestMemoryGateway_MessageRetention(t *testing.T) {
	ctx := context.Background()
	gw, clock := newTestGateway()
	conv, _ := gw.CreateConversation(ctx, []string{"a"})

	_, _ = gw.CreateMessage(ctx, conv.ID, "a", "old")
	clock.Advance(23 * time.Hour)
	_, _ = gw.CreateMessage(ctx, conv.ID, "a", "recent")
	clock.Advance(2 * time.Hour)

	msgs, err := gw.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "recent", msgs[0].Content)
}

func TestMemoryGateway_RetentionAppliedOnWrite(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := NewMemoryGateway(time.Hour, WithClock(clock.Now)).(*memoryGateway)
	conv, _ := g.CreateConversation(ctx, []string{"a"})

	// write-only conversation: nobody ever lists it
	for i := 0; i < 5; i++ {
		_, err := g.CreateMessage(ctx, conv.ID, "a", "chatter")
		require.NoError(t, err)
		clock.Advance(30 * time.Minute)
	}

	g.mu.RLock()
	stored := len(g.msgs[conv.ID])
	g.mu.RUnlock()
	// messages at t=0,30m,60m,90m,120m; the write at 120m keeps only >= 60m
	assert.Equal(t, 3, stored)
}

func TestMemoryGateway_SweepListingExpiresUntouchedConversations(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := NewMemoryGateway(time.Hour, WithClock(clock.Now)).(*memoryGateway)
	conv, _ := g.CreateConversation(ctx, []string{"a"})
	_, _ = g.CreateMessage(ctx, conv.ID, "a", "stale")

	clock.Advance(2 * time.Hour)
	_, err := g.ListDrainingConversations(ctx, clock.Now())
	require.NoError(t, err)

	g.mu.RLock()
	_, ok := g.msgs[conv.ID]
	g.mu.RUnlock()
	assert.False(t, ok)
}

func TestMemoryGateway_CountAndIdle(t *testing.T) {
	ctx := context.Background()
	gw, clock := newTestGateway()

	first, _ := gw.CreateConversation(ctx, []string{"u1", "u2"})
	clock.Advance(8 * 24 * time.Hour)
	_, _ = gw.CreateConversation(ctx, []string{"u1"})
	_, _ = gw.CreateConversation(ctx, []string{"u2", "u1"})

	n, err := gw.CountConversationsCreatedSince(ctx, "u1", clock.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	listed, err := gw.ListConversationsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, listed, 3)
	assert.NotEqual(t, first.ID, listed[0].ID)

	// never-joined old conversations are not sweep candidates until marked
	draining, err := gw.ListDrainingConversations(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, draining)
}

func TestMemoryGateway_DrainingMarker(t *testing.T) {
	ctx := context.Background()
	gw, clock := newTestGateway()

	early, _ := gw.CreateConversation(ctx, []string{"a"})
	late, _ := gw.CreateConversation(ctx, []string{"b"})
	cleared, _ := gw.CreateConversation(ctx, []string{"c"})

	require.NoError(t, gw.MarkDraining(ctx, late.ID, clock.Now().Add(time.Minute)))
	require.NoError(t, gw.MarkDraining(ctx, early.ID, clock.Now()))
	require.NoError(t, gw.MarkDraining(ctx, cleared.ID, clock.Now()))
	require.NoError(t, gw.ClearDraining(ctx, cleared.ID))

	listed, err := gw.ListDrainingConversations(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, early.ID, listed[0].ID)

	listed, err = gw.ListDrainingConversations(ctx, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, early.ID, listed[0].ID)
	assert.Equal(t, late.ID, listed[1].ID)

	assert.ErrorIs(t, gw.MarkDraining(ctx, "missing", clock.Now()), domain.ErrConversationNotFound)
}

func TestMemoryGateway_ReturnsClones(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway()
	conv, _ := gw.CreateConversation(ctx, []string{"a"})

	conv.Participants[0] = "mutated"
	found, _ := gw.FindConversation(ctx, conv.ID)
	assert.Equal(t, "a", found.Participants[0])
}
