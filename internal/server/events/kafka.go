package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/doclearn/doclearn/internal/logging"
)

const publishTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by user id so one user's events stay
// ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger logging.Logger
}

func NewKafkaWriter(brokers []string, topic string, logger logging.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(context.Background(), fmt.Sprintf(msg, args...))
		}),
	}
}

func NewKafkaPublisher(w messageWriter, logger logging.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger.With("module", "kafka_publisher")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e ModerationEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(e.UserID),
		Value: data,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	p.logger.Debug(ctx, "event published", "event_id", e.ID, "type", string(e.Type))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
