package app

import (
	"context"
	"fmt"
	"time"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/internal/chat/repository"
	"marketplace_chat_service/pkg/logger"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

type queueCleanupScheduler struct {
	queue repository.CleanupQueue
}

// NewQueueCleanupScheduler enqueue failed deletions as first-attempt cleanup jobs
func NewQueueCleanupScheduler(queue repository.CleanupQueue) CleanupScheduler {
	return &queueCleanupScheduler{queue: queue}
}

func (s *queueCleanupScheduler) ScheduleCleanup(conversationID string, cause error) {
	job := domain.CleanupJob{
		ConversationID: conversationID,
		Attempt:        1,
		Reason:         cause.Error(),
		EnqueuedAt:     time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// 只能留下紀錄, sweeper 會再掃到
		logger.Log.Error("enqueue cleanup job failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

// CleanupWorker retry failed cascade deletions from the cleanup queue
type CleanupWorker struct {
	queue       repository.CleanupQueue
	engine      *LifecycleEngine
	maxAttempts int
	baseBackoff time.Duration
	metrics     *Metrics
}

// NewCleanupWorker create worker
func NewCleanupWorker(queue repository.CleanupQueue, engine *LifecycleEngine, maxAttempts int, baseBackoff time.Duration, metrics *Metrics) *CleanupWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	return &CleanupWorker{
		queue:       queue,
		engine:      engine,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		metrics:     metrics,
	}
}

// Start consume jobs until ctx is done
func (w *CleanupWorker) Start(ctx context.Context) error {
	deliveries, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}

	logger.Log.Info("cleanup worker started")
	go func() {
		for d := range deliveries {
			w.handle(ctx, d)
		}
		logger.Log.Info("cleanup worker stopped")
	}()
	return nil
}

func (w *CleanupWorker) handle(ctx context.Context, d repository.CleanupDelivery) {
	job := d.Job
	deleted, err := w.engine.DeleteIfUntracked(ctx, job.ConversationID, "cleanup")
	switch {
	case err == nil && !deleted:
		// 使用者已重新加入, 交回生命週期處理
		w.metrics.cleanupJob("skipped")
		logger.Log.Info("cleanup skipped, conversation has presence", zap.String("conversation_id", job.ConversationID))
		w.ack(d)
		return
	case err == nil:
		w.metrics.cleanupJob("deleted")
		logger.Log.Info("cleanup deleted conversation", zap.String("conversation_id", job.ConversationID), zap.Int("attempt", job.Attempt))
		w.ack(d)
		return
	}

	if job.Attempt >= w.maxAttempts {
		w.metrics.cleanupJob("abandoned")
		logger.Log.Error("cleanup abandoned",
			zap.String("conversation_id", job.ConversationID), zap.Int("attempt", job.Attempt), zap.Error(err))
		w.ack(d)
		return
	}

	w.metrics.cleanupJob("retry")
	wait := w.backoff(job.Attempt)
	logger.Log.Warn("cleanup failed, retrying",
		zap.String("conversation_id", job.ConversationID),
		zap.Int("attempt", job.Attempt),
		zap.Duration("backoff", wait),
		zap.Error(err),
	)

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		if nerr := d.Nack(true); nerr != nil {
			logger.Log.Error("nack cleanup job failed", zap.Error(nerr))
		}
		return
	}

	next := job
	next.Attempt++
	next.Reason = err.Error()
	if qerr := w.queue.Enqueue(ctx, next); qerr != nil {
		logger.Log.Error("requeue cleanup job failed", zap.String("conversation_id", job.ConversationID), zap.Error(qerr))
		if nerr := d.Nack(true); nerr != nil {
			logger.Log.Error("nack cleanup job failed", zap.Error(nerr))
		}
		return
	}
	w.ack(d)
}

// backoff base * 2^(attempt-1)
func (w *CleanupWorker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	return w.baseBackoff << uint(attempt-1)
}

func (w *CleanupWorker) ack(d repository.CleanupDelivery) {
	if err := d.Ack(); err != nil {
		logger.Log.Error("ack cleanup job failed", zap.String("conversation_id", d.Job.ConversationID), zap.Error(err))
	}
}

// DrainingConversationSource list conversations whose draining marker is older than a point in time
type DrainingConversationSource interface {
	ListDrainingConversations(ctx context.Context, before time.Time) ([]domain.Conversation, error)
}

// Sweeper periodically delete conversations left draining by a process that died mid grace period.
// A conversation nobody ever joined carries no marker and is never swept.
type Sweeper struct {
	source    DrainingConversationSource
	engine    *LifecycleEngine
	cron      string
	idleAfter time.Duration
	now       func() time.Time
}

// NewSweeper validate the cron expression and create a sweeper
func NewSweeper(source DrainingConversationSource, engine *LifecycleEngine, cronExpr string, idleAfter time.Duration) (*Sweeper, error) {
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweep cron expression: %q", cronExpr)
	}
	return &Sweeper{
		source:    source,
		engine:    engine,
		cron:      cronExpr,
		idleAfter: idleAfter,
		now:       time.Now,
	}, nil
}

// Run sweep on every cron tick until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	logger.Log.Info("sweeper started", zap.String("cron", s.cron), zap.Duration("idle_after", s.idleAfter))
	for {
		next, err := gronx.NextTickAfter(s.cron, s.now().UTC(), false)
		wait := time.Until(next)
		if err != nil {
			logger.Log.Error("sweeper next tick failed", zap.String("cron", s.cron), zap.Error(err))
			wait = time.Minute
		}

		select {
		case <-ctx.Done():
			logger.Log.Info("sweeper stopped")
			return
		case <-time.After(wait):
		}

		if err == nil {
			if n, serr := s.SweepOnce(ctx); serr != nil {
				logger.Log.Error("sweep failed", zap.Int("deleted", n), zap.Error(serr))
			} else if n > 0 {
				logger.Log.Info("sweep finished", zap.Int("deleted", n))
			}
		}
	}
}

// SweepOnce delete every orphaned draining conversation, returns how many were removed
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	convs, err := s.source.ListDrainingConversations(ctx, s.now().Add(-s.idleAfter))
	if err != nil {
		return 0, err
	}

	deleted := 0
	var firstErr error
	for _, c := range convs {
		ok, err := s.engine.DeleteIfUntracked(ctx, c.ID, "sweep")
		if err != nil {
			logger.Log.Warn("sweep delete failed", zap.String("conversation_id", c.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted, firstErr
}
