package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"marketplace_chat_service/internal/chat/domain"

	"github.com/google/uuid"
)

// MemoryOption configure the in-memory gateway
type MemoryOption func(*memoryGateway)

// WithClock override time source, tests use it to age messages
func WithClock(now func() time.Time) MemoryOption {
	return func(g *memoryGateway) { g.now = now }
}

type memoryGateway struct {
	mu        sync.RWMutex
	convs     map[string]*domain.Conversation
	msgs      map[string][]domain.Message
	seq       int64
	retention time.Duration
	now       func() time.Time
}

// NewMemoryGateway process-local Gateway, storage.driver=memory
func NewMemoryGateway(retention time.Duration, opts ...MemoryOption) Gateway {
	g := &memoryGateway{
		convs:     make(map[string]*domain.Conversation),
		msgs:      make(map[string][]domain.Message),
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *memoryGateway) CreateConversation(_ context.Context, participants []string) (*domain.Conversation, error) {
	if len(participants) == 0 {
		return nil, errors.New("conversation needs at least one participant")
	}
	now := g.now().UTC()
	conv := &domain.Conversation{
		ID:           uuid.New().String(),
		Participants: append([]string(nil), participants...),
		CreatedBy:    participants[0],
		CreatedAt:    now,
		LastActiveAt: now,
	}

	g.mu.Lock()
	g.convs[conv.ID] = conv.Clone()
	g.mu.Unlock()
	return conv, nil
}

func (g *memoryGateway) FindConversation(_ context.Context, id string) (*domain.Conversation, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	conv, ok := g.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

func (g *memoryGateway) AddParticipant(_ context.Context, id, userID string) (*domain.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored, ok := g.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	stored.AddParticipant(userID)
	stored.LastActiveAt = g.now().UTC()
	return stored.Clone(), nil
}

func (g *memoryGateway) TouchConversation(_ context.Context, id string) error {
	return g.update(id, func(c *domain.Conversation) {
		c.LastActiveAt = g.now().UTC()
	})
}

func (g *memoryGateway) MarkDraining(_ context.Context, id string, since time.Time) error {
	return g.update(id, func(c *domain.Conversation) {
		t := since.UTC()
		c.DrainingSince = &t
	})
}

func (g *memoryGateway) ClearDraining(_ context.Context, id string) error {
	return g.update(id, func(c *domain.Conversation) {
		c.DrainingSince = nil
	})
}

// update mutate the stored conversation under the write lock
func (g *memoryGateway) update(id string, fn func(*domain.Conversation)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored, ok := g.convs[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	fn(stored)
	return nil
}

func (g *memoryGateway) DeleteConversation(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.msgs, id)
	delete(g.convs, id)
	return nil
}

func (g *memoryGateway) CreateMessage(_ context.Context, conversationID, sender, content string) (*domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	conv, ok := g.convs[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	now := g.now().UTC()
	g.seq++
	msg := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      now,
		Seq:            g.seq,
	}
	g.pruneLocked(conversationID, now)
	g.msgs[conversationID] = append(g.msgs[conversationID], msg)
	conv.LastActiveAt = now
	return &msg, nil
}

func (g *memoryGateway) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked(conversationID, g.now().UTC())
	out := append([]domain.Message{}, g.msgs[conversationID]...)
	domain.SortMessages(out)
	return out, nil
}

// pruneLocked drop messages of conversationID older than the retention window
func (g *memoryGateway) pruneLocked(conversationID string, now time.Time) {
	if g.retention <= 0 {
		return
	}
	cutoff := now.Add(-g.retention)
	kept := g.msgs[conversationID][:0]
	for _, m := range g.msgs[conversationID] {
		if !m.CreatedAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(g.msgs, conversationID)
		return
	}
	g.msgs[conversationID] = kept
}

func (g *memoryGateway) ListConversationsForUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	g.mu.RLock()
	out := []domain.Conversation{}
	for _, c := range g.convs {
		if c.HasParticipant(userID) {
			out = append(out, *c.Clone())
		}
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

func (g *memoryGateway) CountConversationsCreatedSince(_ context.Context, userID string, since time.Time) (int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var n int64
	for _, c := range g.convs {
		if c.CreatedBy == userID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ListDrainingConversations also expires old messages store-wide; it runs on every sweep tick
func (g *memoryGateway) ListDrainingConversations(_ context.Context, before time.Time) ([]domain.Conversation, error) {
	g.mu.Lock()
	now := g.now().UTC()
	for id := range g.msgs {
		g.pruneLocked(id, now)
	}
	out := []domain.Conversation{}
	for _, c := range g.convs {
		if c.DrainingSince != nil && !c.DrainingSince.After(before) {
			out = append(out, *c.Clone())
		}
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].DrainingSince.Before(*out[j].DrainingSince)
	})
	return out, nil
}
