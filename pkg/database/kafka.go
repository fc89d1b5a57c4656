package database

import (
	"context"
	"fmt"
	"time"

	"marketplace_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry build a writer and confirm the brokers answer by
// dialing the topic leader
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("kafka topic %s: no brokers configured", k.Topic)
	}
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		var conn *kafka.Conn
		conn, err = kafka.DialLeader(context.Background(), "tcp", k.Brokers[0], k.Topic, 0)
		if err == nil {
			conn.Close()
			logger.Log.Info("kafka writer ready", zap.String("topic", k.Topic), zap.Int("attempt", attempt))
			return &kafka.Writer{
				Addr:         kafka.TCP(k.Brokers...),
				Topic:        k.Topic,
				Balancer:     &kafka.Hash{},
				RequiredAcks: kafka.RequireOne,
			}, nil
		}

		logger.Log.Warn("kafka dial failed, retrying...",
			zap.String("topic", k.Topic),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("kafka writer for topic %s after %d attempts: %w", k.Topic, k.RetryCount, err)
}
