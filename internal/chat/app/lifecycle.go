package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// ErrConversationDeleting a cascade delete is in flight; the conversation is gone for new joiners
var ErrConversationDeleting = errors.New("conversation is being deleted")

// ConversationDeleter cascade delete capability the engine needs from persistence
type ConversationDeleter interface {
	DeleteConversation(ctx context.Context, id string) error
}

// CleanupScheduler receive conversations whose timer-driven deletion failed
type CleanupScheduler interface {
	ScheduleCleanup(conversationID string, cause error)
}

// DrainMarker persist the draining marker so a restarted process can find orphaned conversations
type DrainMarker interface {
	MarkDraining(ctx context.Context, id string, since time.Time) error
	ClearDraining(ctx context.Context, id string) error
}

type drainOp struct {
	conversationID string
	since          time.Time
	clear          bool
}

type presenceRecord struct {
	// user -> live session ids; a user stays present while any session is open
	users map[string]map[string]struct{}
	state domain.PresenceState
	timer *time.Timer
	// gen identifies the armed timer; a fire with a stale gen is a cancelled timer
	gen uint64
}

// LifecycleEngine presence tracking and grace-period deletion, one instance per process
type LifecycleEngine struct {
	mu      sync.Mutex
	records map[string]*presenceRecord
	stopped bool

	deleter       ConversationDeleter
	grace         time.Duration
	deleteTimeout time.Duration
	cleanup       CleanupScheduler
	metrics       *Metrics
	marker        DrainMarker
	drainOps      chan drainOp
}

// LifecycleOption configure LifecycleEngine
type LifecycleOption func(*LifecycleEngine)

// WithCleanupScheduler hand failed deletions to s
func WithCleanupScheduler(s CleanupScheduler) LifecycleOption {
	return func(e *LifecycleEngine) { e.cleanup = s }
}

// WithLifecycleMetrics record presence gauges and deletion counters
func WithLifecycleMetrics(m *Metrics) LifecycleOption {
	return func(e *LifecycleEngine) { e.metrics = m }
}

// WithDeleteTimeout bound a single timer-driven cascade delete
func WithDeleteTimeout(d time.Duration) LifecycleOption {
	return func(e *LifecycleEngine) { e.deleteTimeout = d }
}

// WithDrainMarker persist draining_since when a grace timer arms, clear it on rejoin
func WithDrainMarker(m DrainMarker) LifecycleOption {
	return func(e *LifecycleEngine) { e.marker = m }
}

// NewLifecycleEngine create engine; grace <= 0 falls back to 10 minutes
func NewLifecycleEngine(deleter ConversationDeleter, grace time.Duration, opts ...LifecycleOption) *LifecycleEngine {
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	e := &LifecycleEngine{
		records:       make(map[string]*presenceRecord),
		deleter:       deleter,
		grace:         grace,
		deleteTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.marker != nil {
		e.drainOps = make(chan drainOp, 256)
		go e.runDrainOps(e.drainOps)
	}
	return e
}

// RegisterPresence mark one session of userID connected; cancels a pending deletion timer.
// Returns ErrConversationDeleting when the deletion already started.
func (e *LifecycleEngine) RegisterPresence(conversationID, userID, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[conversationID]
	if !ok {
		rec = &presenceRecord{users: make(map[string]map[string]struct{}), state: domain.PresenceActive}
		e.records[conversationID] = rec
		// a marker may survive from a previous process
		e.enqueueLocked(drainOp{conversationID: conversationID, clear: true})
	}
	if rec.state == domain.PresenceDeleting {
		return ErrConversationDeleting
	}

	sessions, ok := rec.users[userID]
	if !ok {
		sessions = make(map[string]struct{})
		rec.users[userID] = sessions
	}
	sessions[sessionID] = struct{}{}
	if rec.state == domain.PresenceDraining {
		// bump gen first so a fire already queued behind the lock sees itself as cancelled
		rec.gen++
		if rec.timer != nil {
			rec.timer.Stop()
			rec.timer = nil
		}
		rec.state = domain.PresenceActive
		e.enqueueLocked(drainOp{conversationID: conversationID, clear: true})
		logger.Log.Debug("grace period cancelled", zap.String("conversation_id", conversationID), zap.String("user_id", userID))
	}
	e.observeLocked()
	return nil
}

// ReleasePresence close one session of userID; the user leaves with their last session,
// and the last user leaving arms the deletion timer once
func (e *LifecycleEngine) ReleasePresence(conversationID, userID, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[conversationID]
	if !ok {
		return
	}
	if sessions, ok := rec.users[userID]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(rec.users, userID)
		}
	}
	if len(rec.users) > 0 || rec.state != domain.PresenceActive || e.stopped {
		return
	}

	rec.state = domain.PresenceDraining
	rec.gen++
	gen := rec.gen
	rec.timer = time.AfterFunc(e.grace, func() { e.fire(conversationID, gen) })
	e.enqueueLocked(drainOp{conversationID: conversationID, since: time.Now().UTC()})
	logger.Log.Debug("grace period armed", zap.String("conversation_id", conversationID), zap.Duration("grace", e.grace))
	e.observeLocked()
}

func (e *LifecycleEngine) fire(conversationID string, gen uint64) {
	e.mu.Lock()
	rec, ok := e.records[conversationID]
	if !ok || e.stopped || rec.gen != gen || rec.state != domain.PresenceDraining {
		e.mu.Unlock()
		return
	}
	rec.state = domain.PresenceDeleting
	rec.timer = nil
	e.observeLocked()
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.deleteTimeout)
	err := e.deleter.DeleteConversation(ctx, conversationID)
	cancel()

	e.clear(conversationID, rec)
	e.metrics.deletion("grace", err)

	if err != nil {
		logger.Log.Error("grace period deletion failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		if e.cleanup != nil {
			e.cleanup.ScheduleCleanup(conversationID, err)
		}
		return
	}
	logger.Log.Info("conversation deleted after grace period", zap.String("conversation_id", conversationID))
}

// DeleteIfUntracked cascade delete a conversation nobody is connected to.
// Reports false without deleting when a presence record exists.
func (e *LifecycleEngine) DeleteIfUntracked(ctx context.Context, conversationID, trigger string) (bool, error) {
	e.mu.Lock()
	if _, ok := e.records[conversationID]; ok || e.stopped {
		e.mu.Unlock()
		return false, nil
	}
	rec := &presenceRecord{users: make(map[string]map[string]struct{}), state: domain.PresenceDeleting}
	e.records[conversationID] = rec
	e.observeLocked()
	e.mu.Unlock()

	err := e.deleter.DeleteConversation(ctx, conversationID)
	e.clear(conversationID, rec)
	e.metrics.deletion(trigger, err)
	if err != nil {
		return false, err
	}
	return true, nil
}

// clear drop the record only if it is still the one the caller owned
func (e *LifecycleEngine) clear(conversationID string, rec *presenceRecord) {
	e.mu.Lock()
	if cur, ok := e.records[conversationID]; ok && cur == rec {
		delete(e.records, conversationID)
	}
	e.observeLocked()
	e.mu.Unlock()
}

// Snapshot current presence of a conversation, false when untracked
func (e *LifecycleEngine) Snapshot(conversationID string) (domain.PresenceSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.records[conversationID]
	if !ok {
		return domain.PresenceSnapshot{ConversationID: conversationID, State: domain.PresenceUntracked, Users: []string{}}, false
	}
	users := make([]string, 0, len(rec.users))
	for u := range rec.users {
		users = append(users, u)
	}
	sort.Strings(users)
	return domain.PresenceSnapshot{ConversationID: conversationID, State: rec.state, Users: users}, true
}

// Stop cancel every pending timer; later releases no longer arm timers
func (e *LifecycleEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.stopped && e.drainOps != nil {
		close(e.drainOps)
	}
	e.stopped = true
	for _, rec := range e.records {
		if rec.timer != nil {
			rec.timer.Stop()
			rec.timer = nil
		}
		rec.gen++
	}
}

// enqueueLocked keep marker writes in lock order without doing I/O under the lock
func (e *LifecycleEngine) enqueueLocked(op drainOp) {
	if e.drainOps == nil || e.stopped {
		return
	}
	select {
	case e.drainOps <- op:
	default:
		// 队列满了就丢，sweeper 只是兜底
		logger.Log.Warn("draining marker queue full, dropping update",
			zap.String("conversation_id", op.conversationID), zap.Bool("clear", op.clear))
	}
}

func (e *LifecycleEngine) runDrainOps(ops <-chan drainOp) {
	for op := range ops {
		ctx, cancel := context.WithTimeout(context.Background(), e.deleteTimeout)
		var err error
		if op.clear {
			err = e.marker.ClearDraining(ctx, op.conversationID)
		} else {
			err = e.marker.MarkDraining(ctx, op.conversationID, op.since)
		}
		cancel()
		if err != nil && !errors.Is(err, domain.ErrConversationNotFound) {
			logger.Log.Warn("draining marker update failed",
				zap.String("conversation_id", op.conversationID), zap.Bool("clear", op.clear), zap.Error(err))
		}
	}
}

func (e *LifecycleEngine) observeLocked() {
	if e.metrics == nil {
		return
	}
	draining := 0
	for _, rec := range e.records {
		if rec.state == domain.PresenceDraining {
			draining++
		}
	}
	e.metrics.setPresence(len(e.records), draining)
}
