package domain

import "time"

// CallStatus is the persisted disposition of a finished call.
type CallStatus int

const (
	CallStatusOther    CallStatus = 0
	CallStatusAnswered CallStatus = 1
)

// Direction classifies a call record.
type Direction int

const (
	DirectionUnknown  Direction = 0
	DirectionInbound  Direction = 1
	DirectionOutbound Direction = 2
)

// DispositionAnswered is the provider disposition for a call that was picked up.
const DispositionAnswered = "answered"

// TrunkNumber is a shared outbound line with a fixed number of channels.
type TrunkNumber struct {
	ID        string `json:"id"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
	Busy      bool   `json:"busy"`
}

// PendingCall is an admitted call waiting for its completion notification.
type PendingCall struct {
	OriginNumber      string    `json:"origin_number"`
	DestinationNumber string    `json:"destination_number"`
	TrunkNumber       string    `json:"trunk_number"`
	CorrelationID     string    `json:"correlation_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// CompletionEvent carries the raw fields of a provider end-of-call notification.
type CompletionEvent struct {
	Internal      string
	Destination   string
	CallStart     time.Time
	Duration      int
	Disposition   string
	RecordingID   string
	CorrelationID string
	ProviderCall  string
}

// Parties returns the trunk-side and far-end numbers of the event. The
// shorter of the two numbers is taken as the trunk side; on equal length the
// internal field is kept as the trunk side. Only the far end is normalized:
// the trunk side is a pool identifier and must match it byte for byte.
func (e CompletionEvent) Parties() (trunk, far string) {
	trunk, far = e.Internal, e.Destination
	if len(far) < len(trunk) {
		trunk, far = far, trunk
	}
	return trunk, NormalizeNumber(far)
}

// Answered reports whether the provider marked the call as answered.
func (e CompletionEvent) Answered() bool {
	return e.Disposition == DispositionAnswered
}

// CallRecord is the durable artifact produced for every processed completion.
type CallRecord struct {
	UniqueID          string     `json:"unique_id" db:"unique_id"`
	CorrelationID     string     `json:"correlation_id" db:"correlation_id"`
	SourceNumber      string     `json:"source_number" db:"source_number"`
	DestinationNumber string     `json:"destination_number" db:"destination_number"`
	InternalNumber    string     `json:"internal_number" db:"internal_number"`
	Direction         Direction  `json:"direction" db:"direction"`
	Status            CallStatus `json:"status" db:"status"`
	StartedAt         time.Time  `json:"call_started_at" db:"call_started_at"`
	EndedAt           time.Time  `json:"call_ended_at" db:"call_ended_at"`
	RingingTime       int        `json:"ringing_time" db:"ringing_time"`
	TalkingTime       int        `json:"talking_time" db:"talking_time"`
	AudioFile         string     `json:"audio_file" db:"audio_file"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}
