package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordPublisher publishes call-completed events.
type RecordPublisher struct {
	writer messageWriter
}

// NewRecordPublisher constructs a publisher for the given topic.
func NewRecordPublisher(k *Kafka, topic string) *RecordPublisher {
	return &RecordPublisher{writer: k.NewWriter(topic)}
}

// PublishCallCompleted emits the event keyed by correlation id, falling back
// to the record id, so events for one request share a partition.
func (p *RecordPublisher) PublishCallCompleted(ctx context.Context, msg CallCompletedMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("record publisher: marshal message: %w", err)
	}
	key := msg.CorrelationID
	if key == "" {
		key = msg.UniqueID
	}
	record := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("record publisher: write message: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *RecordPublisher) Close() error {
	return p.writer.Close()
}
