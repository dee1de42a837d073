package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/acme/click-to-call/internal/domain"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error { return nil }

func TestPublishCallCompletedKeys(t *testing.T) {
	w := &captureWriter{}
	p := &RecordPublisher{writer: w}
	ctx := context.Background()

	withID := NewCallCompletedMessage(&domain.CallRecord{UniqueID: "rec-1", CorrelationID: "42", TalkingTime: 30, Status: domain.CallStatusAnswered})
	if err := p.PublishCallCompleted(ctx, withID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	withoutID := NewCallCompletedMessage(&domain.CallRecord{UniqueID: "rec-2"})
	if err := p.PublishCallCompleted(ctx, withoutID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "42" || string(w.msgs[1].Key) != "rec-2" {
		t.Fatalf("unexpected keys %q %q", w.msgs[0].Key, w.msgs[1].Key)
	}

	var decoded CallCompletedMessage
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TalkingTime != 30 || decoded.Status != 1 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}
