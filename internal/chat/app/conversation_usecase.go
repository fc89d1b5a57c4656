package app

import (
	"context"
	"errors"
	"strings"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/internal/chat/repository"
	errprocess "marketplace_chat_service/pkg/err"
	"marketplace_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// ConversationUseCase REST side of the conversation lifecycle
type ConversationUseCase struct {
	gateway repository.Gateway
	gate    PolicyGate
	engine  *LifecycleEngine
}

// NewConversationUseCase init conversation use case
func NewConversationUseCase(gateway repository.Gateway, gate PolicyGate, engine *LifecycleEngine) *ConversationUseCase {
	return &ConversationUseCase{
		gateway: gateway,
		gate:    gate,
		engine:  engine,
	}
}

// Create new conversation owned by creatorID; the quota gate runs first and a denial persists nothing
func (uc *ConversationUseCase) Create(ctx context.Context, creatorID string, others []string) (*domain.Conversation, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, errprocess.NewBadRequest("creator is required")
	}
	if err := uc.gate.CheckCreationAllowed(ctx, creatorID); err != nil {
		logger.Log.Info("conversation creation denied", zap.String("user_id", creatorID), zap.Error(err))
		return nil, err
	}

	trimmed := make([]string, 0, len(others))
	for _, o := range others {
		trimmed = append(trimmed, strings.TrimSpace(o))
	}

	conv, err := uc.gateway.CreateConversation(ctx, domain.NormalizeParticipants(creatorID, trimmed))
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "create conversation failed", err)
	}
	logger.Log.Info("conversation created", zap.String("conversation_id", conv.ID), zap.Strings("participants", conv.Participants))
	return conv, nil
}

// Join REST pre-check: conversation must exist; userID becomes a participant
func (uc *ConversationUseCase) Join(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	if conversationID == "" || userID == "" {
		return nil, errprocess.NewBadRequest("conversation_id and user_id are required")
	}
	conv, err := uc.gateway.AddParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, uc.classify(err)
	}
	return conv, nil
}

// Leave bump activity; presence is owned by the realtime connection, participants are kept
func (uc *ConversationUseCase) Leave(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" || userID == "" {
		return errprocess.NewBadRequest("conversation_id and user_id are required")
	}
	if err := uc.gateway.TouchConversation(ctx, conversationID); err != nil {
		return uc.classify(err)
	}
	return nil
}

// List conversations of userID, most recently active first
func (uc *ConversationUseCase) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	if userID == "" {
		return nil, errprocess.NewBadRequest("user_id is required")
	}
	convs, err := uc.gateway.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Internal, "list conversations failed", err)
	}
	return convs, nil
}

// Presence live presence of a conversation
func (uc *ConversationUseCase) Presence(conversationID string) domain.PresenceSnapshot {
	snap, _ := uc.engine.Snapshot(conversationID)
	return snap
}

func (uc *ConversationUseCase) classify(err error) error {
	if errors.Is(err, domain.ErrConversationNotFound) {
		return errprocess.Wrap(errprocess.NotFound, "conversation not found", err)
	}
	return errprocess.Wrap(errprocess.Internal, "conversation storage failed", err)
}
