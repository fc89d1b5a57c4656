package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/internal/chat/repository"
	errprocess "marketplace_chat_service/pkg/err"
	"marketplace_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// room broadcast group of one conversation; mu orders history replay against message fan-out
type room struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

// RouterConfig SessionRouter behaviour switches
type RouterConfig struct {
	// ErrorAcks send an error event back to the offending session
	ErrorAcks bool
	// EventRate inbound events per second per session, 0 disables limiting
	EventRate  float64
	EventBurst int
	// WriteTimeout per outbound frame; a stalled peer fails its write instead of holding the room
	WriteTimeout time.Duration
}

const defaultWriteTimeout = 10 * time.Second

// SessionRouter websocket protocol state machine shared by every connection
type SessionRouter struct {
	gateway repository.Gateway
	engine  *LifecycleEngine
	metrics *Metrics
	cfg     RouterConfig

	mu    sync.Mutex
	rooms map[string]*room
}

// NewSessionRouter create router
func NewSessionRouter(gateway repository.Gateway, engine *LifecycleEngine, metrics *Metrics, cfg RouterConfig) *SessionRouter {
	return &SessionRouter{
		gateway: gateway,
		engine:  engine,
		metrics: metrics,
		cfg:     cfg,
		rooms:   make(map[string]*room),
	}
}

// NewSession register a new connection
func (r *SessionRouter) NewSession(t Transport) *Session {
	s := &Session{id: uuid.New().String(), transport: t, writeTimeout: r.cfg.WriteTimeout}
	if s.writeTimeout <= 0 {
		s.writeTimeout = defaultWriteTimeout
	}
	if r.cfg.EventRate > 0 {
		burst := r.cfg.EventBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(r.cfg.EventRate), burst)
	}
	r.metrics.sessionOpened()
	return s
}

// Dispatch handle one inbound frame. Failures are logged, optionally acked, and never escape.
func (r *SessionRouter) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var req domain.WSRequest
	err := r.safely(func() error {
		if !s.allow() {
			return errprocess.NewTooManyRequests("too many events")
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return errprocess.Wrap(errprocess.BadRequest, "malformed event", err)
		}
		switch domain.Action(req.Action) {
		case domain.Join:
			return r.join(ctx, s, req)
		case domain.SendMessage:
			return r.message(ctx, s, req)
		case domain.Leave:
			return r.leave(ctx, s, req.ConversationID, req.UserID)
		default:
			return errprocess.NewBadRequest("unknown action")
		}
	})
	r.metrics.event(actionLabel(req.Action), err)
	if err == nil {
		return
	}

	logger.Log.Warn("websocket event dropped",
		zap.String("session", s.id),
		zap.String("action", req.Action),
		zap.String("conversation_id", req.ConversationID),
		zap.Error(err),
	)
	if r.cfg.ErrorAcks {
		r.send(s, domain.WSResponse{
			Action:  string(domain.Error),
			Success: false,
			Payload: map[string]interface{}{"action": req.Action},
			Error:   errprocess.Message(err),
			Code:    errprocess.StatusCode(err),
		})
	}
}

// Disconnect transport closed; behaves as leave on the current binding
func (r *SessionRouter) Disconnect(ctx context.Context, s *Session) {
	defer r.metrics.sessionClosed()

	b := s.binding()
	if b.conversationID == "" {
		return
	}
	err := r.safely(func() error {
		return r.leave(ctx, s, b.conversationID, b.userID)
	})
	if err != nil {
		logger.Log.Warn("disconnect cleanup failed", zap.String("session", s.id), zap.Error(err))
	}
}

func (r *SessionRouter) join(ctx context.Context, s *Session, req domain.WSRequest) error {
	if req.ConversationID == "" || req.UserID == "" {
		return errprocess.NewBadRequest("conversation_id and user_id are required")
	}
	conv, err := r.gateway.FindConversation(ctx, req.ConversationID)
	if err != nil {
		return lookupError(err)
	}

	// one binding per connection: joining elsewhere leaves the old room first
	if prev := s.binding(); prev.conversationID != "" {
		if err := r.leave(ctx, s, prev.conversationID, prev.userID); err != nil {
			logger.Log.Warn("implicit leave failed", zap.String("session", s.id), zap.Error(err))
		}
	}

	rm := r.lockRoom(conv.ID)
	defer rm.mu.Unlock()

	if err := r.engine.RegisterPresence(conv.ID, req.UserID, s.id); err != nil {
		return errprocess.Wrap(errprocess.NotFound, "conversation not found", err)
	}

	if _, err := r.gateway.AddParticipant(ctx, conv.ID, req.UserID); err != nil {
		r.engine.ReleasePresence(conv.ID, req.UserID, s.id)
		return lookupError(err)
	}

	msgs, err := r.gateway.ListMessages(ctx, conv.ID)
	if err != nil {
		r.engine.ReleasePresence(conv.ID, req.UserID, s.id)
		return fmt.Errorf("list messages: %w", err)
	}

	rm.sessions[s] = struct{}{}
	s.bind(conv.ID, req.UserID)

	r.send(s, domain.WSResponse{
		Action:  string(domain.History),
		Success: true,
		Payload: map[string]interface{}{
			"conversation_id": conv.ID,
			"messages":        msgs,
		},
	})
	logger.Log.Info("joined conversation", zap.String("conversation_id", conv.ID), zap.String("user_id", req.UserID), zap.Int("history", len(msgs)))
	return nil
}

func (r *SessionRouter) message(ctx context.Context, s *Session, req domain.WSRequest) error {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return errprocess.NewBadRequest("content is required")
	}

	b := s.binding()
	conversationID, userID := req.ConversationID, req.UserID
	if conversationID == "" {
		conversationID = b.conversationID
	}
	if userID == "" {
		userID = b.userID
	}
	if conversationID == "" || userID == "" {
		return errprocess.NewBadRequest("conversation_id and user_id are required")
	}
	if conversationID != b.conversationID {
		return errprocess.NewForbidden("join the conversation before sending")
	}

	rm := r.lockRoom(conversationID)
	defer rm.mu.Unlock()

	msg, err := r.gateway.CreateMessage(ctx, conversationID, userID, content)
	if err != nil {
		return lookupError(err)
	}

	resp := domain.WSResponse{
		Action:  string(domain.SendMessage),
		Success: true,
		Payload: map[string]interface{}{"message": msg},
	}
	for peer := range rm.sessions {
		r.send(peer, resp)
	}
	return nil
}

func (r *SessionRouter) leave(ctx context.Context, s *Session, conversationID, userID string) error {
	b := s.binding()
	if conversationID == "" {
		conversationID = b.conversationID
	}
	if userID == "" {
		userID = b.userID
	}
	if conversationID == "" || userID == "" {
		return errprocess.NewBadRequest("conversation_id and user_id are required")
	}

	r.engine.ReleasePresence(conversationID, userID, s.id)
	if s.unbindIf(conversationID) {
		r.unbind(conversationID, s)
	}

	if err := r.gateway.TouchConversation(ctx, conversationID); err != nil && !errors.Is(err, domain.ErrConversationNotFound) {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// lockRoom return the live room for conversationID with its mutex held
func (r *SessionRouter) lockRoom(conversationID string) *room {
	for {
		r.mu.Lock()
		rm, ok := r.rooms[conversationID]
		if !ok {
			rm = &room{sessions: make(map[*Session]struct{})}
			r.rooms[conversationID] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if !rm.closed {
			return rm
		}
		// retired between lookup and lock, fetch again
		rm.mu.Unlock()
	}
}

func (r *SessionRouter) unbind(conversationID string, s *Session) {
	rm := r.lockRoom(conversationID)
	defer rm.mu.Unlock()

	delete(rm.sessions, s)
	if len(rm.sessions) > 0 {
		return
	}
	rm.closed = true
	r.mu.Lock()
	if r.rooms[conversationID] == rm {
		delete(r.rooms, conversationID)
	}
	r.mu.Unlock()
}

// RoomSize bound sessions of a conversation
func (r *SessionRouter) RoomSize(conversationID string) int {
	r.mu.Lock()
	rm, ok := r.rooms[conversationID]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.sessions)
}

func (r *SessionRouter) send(s *Session, resp domain.WSResponse) {
	if err := s.Send(resp); err != nil {
		logger.Log.Warn("websocket write failed", zap.String("session", s.id), zap.String("action", resp.Action), zap.Error(err))
	}
}

// safely run fn, turning a panic into an error
func (r *SessionRouter) safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Log.Error("websocket handler panic", zap.Any("panic", p), zap.Stack("stack"))
			err = errprocess.Wrap(errprocess.Internal, "internal server error", fmt.Errorf("handler panic: %v", p))
		}
	}()
	return fn()
}

// actionLabel keep the metric label set closed; client-supplied names never become series
func actionLabel(action string) string {
	switch domain.Action(action) {
	case domain.Join, domain.SendMessage, domain.Leave:
		return action
	default:
		return "invalid"
	}
}

func lookupError(err error) error {
	if errors.Is(err, domain.ErrConversationNotFound) {
		return errprocess.Wrap(errprocess.NotFound, "conversation not found", err)
	}
	return err
}
