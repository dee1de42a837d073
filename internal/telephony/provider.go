package telephony

import (
	"context"

	"github.com/acme/click-to-call/internal/domain"
)

// Status is the provider-reported outcome of a request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result captures the outcome of a provider request.
type Result struct {
	Status  Status
	Message string
}

// OK reports whether the provider accepted the request.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Provider abstracts the telephony integration used by the call orchestrator.
type Provider interface {
	// Callback asks the provider to ring from and bridge it to to.
	Callback(ctx context.Context, from, to string) (Result, error)
	// SetRedirect forwards every call on the trunk to destination.
	SetRedirect(ctx context.Context, trunkID, destination string) (Result, error)
	// ClearRedirect turns forwarding off for the trunk.
	ClearRedirect(ctx context.Context, trunkID string) (Result, error)
	// RecordingLink resolves a download link, or "" when none is available yet.
	RecordingLink(ctx context.Context, recordingID string) (string, error)
	// TrunkNumbers lists the provider's trunk numbers in a stable order.
	TrunkNumbers(ctx context.Context) ([]domain.TrunkNumber, error)
}
