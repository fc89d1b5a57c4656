package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace_chat_service/internal/chat/domain"
	"marketplace_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ReportPublisher notify moderation that a report was filed
type ReportPublisher interface {
	PublishReport(ctx context.Context, event domain.ReportEvent) error
}

// KafkaMessageWriter subset of *kafka.Writer used for publishing
type KafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaReportPublisher struct {
	writer KafkaMessageWriter
}

// NewKafkaReportPublisher events are keyed by conversation so one conversation stays on one partition
func NewKafkaReportPublisher(writer KafkaMessageWriter) ReportPublisher {
	return &kafkaReportPublisher{writer: writer}
}

func (p *kafkaReportPublisher) PublishReport(ctx context.Context, event domain.ReportEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal report event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ConversationID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

type logReportPublisher struct{}

// NewLogReportPublisher used when kafka is not configured; events only reach the log
func NewLogReportPublisher() ReportPublisher {
	return logReportPublisher{}
}

func (logReportPublisher) PublishReport(_ context.Context, event domain.ReportEvent) error {
	logger.Log.Info("report event",
		zap.String("type", event.Type),
		zap.String("report_id", event.ReportID),
		zap.String("conversation_id", event.ConversationID),
	)
	return nil
}
