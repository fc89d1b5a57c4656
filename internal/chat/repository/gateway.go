package repository

import (
	"context"
	"time"

	"marketplace_chat_service/internal/chat/domain"
)

// Gateway persistence operations over conversations and their messages.
// Lookups of a missing conversation return domain.ErrConversationNotFound.
type Gateway interface {
	CreateConversation(ctx context.Context, participants []string) (*domain.Conversation, error)
	FindConversation(ctx context.Context, id string) (*domain.Conversation, error)
	// AddParticipant atomically add userID (no-op when present) and bump LastActiveAt
	AddParticipant(ctx context.Context, id, userID string) (*domain.Conversation, error)
	// TouchConversation bump LastActiveAt
	TouchConversation(ctx context.Context, id string) error
	// MarkDraining record that nobody is connected since the given time
	MarkDraining(ctx context.Context, id string, since time.Time) error
	ClearDraining(ctx context.Context, id string) error
	// DeleteConversation remove the conversation and every message it owns
	DeleteConversation(ctx context.Context, id string) error
	CreateMessage(ctx context.Context, conversationID, sender, content string) (*domain.Message, error)
	// ListMessages ascending by creation time
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	// ListConversationsForUser most recently active first
	ListConversationsForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	CountConversationsCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error)
	// ListDrainingConversations conversations marked draining at or before the given time
	ListDrainingConversations(ctx context.Context, before time.Time) ([]domain.Conversation, error)
}

type mongoGateway struct {
	convRepo ConversationRepository
	msgRepo  MessageRepository
}

// NewMongoGateway compose the mongo conversation and message repositories
func NewMongoGateway(convRepo ConversationRepository, msgRepo MessageRepository) Gateway {
	return &mongoGateway{convRepo: convRepo, msgRepo: msgRepo}
}

func (g *mongoGateway) CreateConversation(ctx context.Context, participants []string) (*domain.Conversation, error) {
	return g.convRepo.Create(ctx, participants)
}

func (g *mongoGateway) FindConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	return g.convRepo.FindByID(ctx, id)
}

func (g *mongoGateway) AddParticipant(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	return g.convRepo.AddParticipant(ctx, id, userID)
}

func (g *mongoGateway) TouchConversation(ctx context.Context, id string) error {
	return g.convRepo.Touch(ctx, id)
}

func (g *mongoGateway) MarkDraining(ctx context.Context, id string, since time.Time) error {
	return g.convRepo.SetDraining(ctx, id, since)
}

func (g *mongoGateway) ClearDraining(ctx context.Context, id string) error {
	return g.convRepo.ClearDraining(ctx, id)
}

// DeleteConversation messages go first so a failure never leaves messages without an owner
func (g *mongoGateway) DeleteConversation(ctx context.Context, id string) error {
	if err := g.msgRepo.DeleteByConversation(ctx, id); err != nil {
		return err
	}
	return g.convRepo.Delete(ctx, id)
}

func (g *mongoGateway) CreateMessage(ctx context.Context, conversationID, sender, content string) (*domain.Message, error) {
	if err := g.convRepo.Touch(ctx, conversationID); err != nil {
		return nil, err
	}
	return g.msgRepo.Insert(ctx, conversationID, sender, content)
}

func (g *mongoGateway) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return g.msgRepo.FindByConversation(ctx, conversationID)
}

func (g *mongoGateway) ListConversationsForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return g.convRepo.FindByParticipant(ctx, userID)
}

func (g *mongoGateway) CountConversationsCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	return g.convRepo.CountCreatedSince(ctx, userID, since)
}

func (g *mongoGateway) ListDrainingConversations(ctx context.Context, before time.Time) ([]domain.Conversation, error) {
	return g.convRepo.FindDrainingSince(ctx, before)
}
