package queue

import (
	"time"

	"github.com/acme/click-to-call/internal/domain"
)

// CallCompletedMessage is published for every stored call record.
type CallCompletedMessage struct {
	UniqueID          string    `json:"unique_id"`
	CorrelationID     string    `json:"correlation_id"`
	SourceNumber      string    `json:"source_number"`
	DestinationNumber string    `json:"destination_number"`
	InternalNumber    string    `json:"internal_number"`
	Direction         int       `json:"direction"`
	Status            int       `json:"status"`
	StartedAt         time.Time `json:"call_started_at"`
	EndedAt           time.Time `json:"call_ended_at"`
	TalkingTime       int       `json:"talking_time"`
	AudioFile         string    `json:"audio_file,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewCallCompletedMessage maps a record onto its event payload.
func NewCallCompletedMessage(r *domain.CallRecord) CallCompletedMessage {
	return CallCompletedMessage{
		UniqueID:          r.UniqueID,
		CorrelationID:     r.CorrelationID,
		SourceNumber:      r.SourceNumber,
		DestinationNumber: r.DestinationNumber,
		InternalNumber:    r.InternalNumber,
		Direction:         int(r.Direction),
		Status:            int(r.Status),
		StartedAt:         r.StartedAt,
		EndedAt:           r.EndedAt,
		TalkingTime:       r.TalkingTime,
		AudioFile:         r.AudioFile,
		OccurredAt:        time.Now().UTC(),
	}
}
