package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/pkg/database"
	"marketplace_chat_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// CleanupDelivery one job handed to a consumer, must be acked or nacked
type CleanupDelivery struct {
	Job  domain.CleanupJob
	Ack  func() error
	Nack func(requeue bool) error
}

// CleanupQueue durable hand-off of failed deletions
type CleanupQueue interface {
	Enqueue(ctx context.Context, job domain.CleanupJob) error
	// Consume deliveries until ctx is done or the queue is closed
	Consume(ctx context.Context) (<-chan CleanupDelivery, error)
}

type rabbitCleanupQueue struct {
	repo  database.RabbitRepo
	queue string
}

// NewRabbitCleanupQueue declare the durable queue and return a CleanupQueue on it
func NewRabbitCleanupQueue(repo database.RabbitRepo, queue string) (CleanupQueue, error) {
	_, err := repo.GetRabbit().QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &rabbitCleanupQueue{repo: repo, queue: queue}, nil
}

func (q *rabbitCleanupQueue) Enqueue(_ context.Context, job domain.CleanupJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.repo.Publish("", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (q *rabbitCleanupQueue) Consume(ctx context.Context) (<-chan CleanupDelivery, error) {
	msgs, err := q.repo.GetRabbit().Consume(
		q.queue,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.queue, err)
	}

	out := make(chan CleanupDelivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				var job domain.CleanupJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					// 無法解析的訊息直接丟棄, 重排只會無限循環
					logger.Log.Error("drop malformed cleanup job", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}
				delivery := d
				select {
				case out <- CleanupDelivery{
					Job:  job,
					Ack:  func() error { return delivery.Ack(false) },
					Nack: func(requeue bool) error { return delivery.Nack(false, requeue) },
				}:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

type memoryCleanupQueue struct {
	ch chan domain.CleanupJob
}

// NewMemoryCleanupQueue buffered in-process queue, jobs are lost on restart
func NewMemoryCleanupQueue(size int) CleanupQueue {
	return &memoryCleanupQueue{ch: make(chan domain.CleanupJob, size)}
}

func (q *memoryCleanupQueue) Enqueue(ctx context.Context, job domain.CleanupJob) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("cleanup queue full")
	}
}

func (q *memoryCleanupQueue) Consume(ctx context.Context) (<-chan CleanupDelivery, error) {
	out := make(chan CleanupDelivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-q.ch:
				j := job
				d := CleanupDelivery{
					Job: j,
					Ack: func() error { return nil },
					Nack: func(requeue bool) error {
						if requeue {
							return q.Enqueue(context.Background(), j)
						}
						return nil
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
