package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/telephony"
)

// Request is one call made against the mock provider.
type Request struct {
	Op   string
	Args []string
}

// Provider simulates the telephony provider in memory. Failure modes are set
// through the exported fields before use.
type Provider struct {
	Latency time.Duration

	// RedirectStatus is returned by SetRedirect. Defaults to success.
	RedirectStatus telephony.Status
	// CallbackErr is returned by Callback when set.
	CallbackErr error
	// Links maps recording ids to download links.
	Links map[string]string
	// Trunks is returned by TrunkNumbers.
	Trunks []domain.TrunkNumber

	mu       sync.Mutex
	requests []Request
}

var _ telephony.Provider = (*Provider)(nil)

// NewProvider constructs a mock provider that answers after the given latency.
func NewProvider(latency time.Duration, trunks []domain.TrunkNumber) *Provider {
	return &Provider{
		Latency:        latency,
		RedirectStatus: telephony.StatusSuccess,
		Links:          map[string]string{},
		Trunks:         trunks,
	}
}

func (p *Provider) record(ctx context.Context, op string, args ...string) error {
	p.mu.Lock()
	p.requests = append(p.requests, Request{Op: op, Args: args})
	p.mu.Unlock()

	if p.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Latency):
		return nil
	}
}

// Callback simulates a callback request.
func (p *Provider) Callback(ctx context.Context, from, to string) (telephony.Result, error) {
	if err := p.record(ctx, "callback", from, to); err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	if p.CallbackErr != nil {
		return telephony.Result{Status: telephony.StatusError, Message: p.CallbackErr.Error()}, p.CallbackErr
	}
	return telephony.Result{Status: telephony.StatusSuccess}, nil
}

// SetRedirect simulates a redirect change.
func (p *Provider) SetRedirect(ctx context.Context, trunkID, destination string) (telephony.Result, error) {
	if err := p.record(ctx, "redirect", trunkID, destination); err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	status := p.RedirectStatus
	if status == "" {
		status = telephony.StatusSuccess
	}
	return telephony.Result{Status: status}, nil
}

// ClearRedirect simulates turning forwarding off.
func (p *Provider) ClearRedirect(ctx context.Context, trunkID string) (telephony.Result, error) {
	if err := p.record(ctx, "clear_redirect", trunkID); err != nil {
		return telephony.Result{Status: telephony.StatusError}, err
	}
	return telephony.Result{Status: telephony.StatusSuccess}, nil
}

// RecordingLink returns the configured link for the recording, if any.
func (p *Provider) RecordingLink(ctx context.Context, recordingID string) (string, error) {
	if err := p.record(ctx, "recording_link", recordingID); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Links[recordingID], nil
}

// TrunkNumbers returns the configured trunks.
func (p *Provider) TrunkNumbers(ctx context.Context) ([]domain.TrunkNumber, error) {
	if err := p.record(ctx, "trunk_numbers"); err != nil {
		return nil, err
	}
	if len(p.Trunks) == 0 {
		return nil, errors.New("mock: no trunks configured")
	}
	out := make([]domain.TrunkNumber, len(p.Trunks))
	copy(out, p.Trunks)
	return out, nil
}

// SetLink registers a recording link.
func (p *Provider) SetLink(recordingID, link string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Links[recordingID] = link
}

// Requests returns every request made so far.
func (p *Provider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}
