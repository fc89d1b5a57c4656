package app

import (
	"encoding/json"
	"sync"
	"time"

	"marketplace_chat_service/internal/chat/domain"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

// Transport outbound side of a websocket connection
type Transport interface {
	WriteMessage(messageType int, data []byte) error
}

// writeDeadliner transports that can bound a write, the websocket conn does
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type binding struct {
	conversationID string
	userID         string
}

// Session one websocket connection: at most one conversation binding at a time
type Session struct {
	id        string
	transport Transport
	limiter   *rate.Limiter

	writeTimeout time.Duration

	writeMu sync.Mutex

	mu    sync.Mutex
	bound binding
}

// ID session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// Binding current (conversationID, userID); empty strings when unbound
func (s *Session) Binding() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound.conversationID, s.bound.userID
}

func (s *Session) binding() binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

func (s *Session) bind(conversationID, userID string) {
	s.mu.Lock()
	s.bound = binding{conversationID: conversationID, userID: userID}
	s.mu.Unlock()
}

// unbindIf clear the binding when it still points at conversationID
func (s *Session) unbindIf(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound.conversationID != conversationID {
		return false
	}
	s.bound = binding{}
	return true
}

func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// Send write one JSON event; writes are serialized per connection
func (s *Session) Send(resp domain.WSResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if d, ok := s.transport.(writeDeadliner); ok && s.writeTimeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.transport.WriteMessage(websocket.TextMessage, b)
}
