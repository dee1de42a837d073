package call

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/telephony"
	apperrors "github.com/acme/click-to-call/pkg/errors"
	"github.com/acme/click-to-call/pkg/logger"
)

// Pool hands out trunk capacity and serializes trunk reconfiguration.
type Pool interface {
	Acquire(ctx context.Context) (string, error)
	Release(id string) bool
	Lock(ctx context.Context, id string) error
	Unlock(id string)
}

// Registry holds admitted calls awaiting completion.
type Registry interface {
	Add(call domain.PendingCall)
	TakeMatching(trunkNumber, destinationNumber string) (domain.PendingCall, bool)
}

// RecordingFetcher retrieves the audio for a recording id.
type RecordingFetcher interface {
	Fetch(ctx context.Context, recordingID string) (string, error)
}

// RecordSink receives finished call records.
type RecordSink interface {
	SaveCallRecord(ctx context.Context, record *domain.CallRecord) error
}

// Options carries the optional collaborators of the service.
type Options struct {
	Fetcher RecordingFetcher
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service admits click-to-call requests and turns completion events into
// call records.
type Service struct {
	pool     Pool
	registry Registry
	provider telephony.Provider
	sink     RecordSink
	fetcher  RecordingFetcher
	log      *logger.Logger
	now      func() time.Time
	tracer   trace.Tracer
}

// NewService builds the call orchestrator.
func NewService(pool Pool, registry Registry, provider telephony.Provider, sink RecordSink, opts Options) *Service {
	s := &Service{
		pool:     pool,
		registry: registry,
		provider: provider,
		sink:     sink,
		fetcher:  opts.Fetcher,
		log:      opts.Logger,
		now:      opts.Now,
		tracer:   otel.Tracer("clicktocall.call"),
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// PlaceCallInput encapsulates the arguments of a click-to-call request.
type PlaceCallInput struct {
	Origin        string
	Destination   string
	CorrelationID string
}

// PlaceCall reserves a trunk channel and asks the provider to bridge origin
// and destination through it. The channel stays held until the matching
// completion event is handled.
func (s *Service) PlaceCall(ctx context.Context, input PlaceCallInput) (*domain.PendingCall, error) {
	origin := domain.NormalizeNumber(strings.TrimSpace(input.Origin))
	destination := domain.NormalizeNumber(strings.TrimSpace(input.Destination))
	if origin == "" || destination == "" {
		return nil, fmt.Errorf("%w: origin and destination numbers are required", apperrors.ErrValidation)
	}

	ctx, span := s.tracer.Start(ctx, "call.admit", trace.WithAttributes(
		attribute.String("call.correlation_id", input.CorrelationID),
		attribute.String("call.destination", destination),
	))
	defer span.End()

	log := s.log.WithContext(ctx).With(
		zap.String("correlation_id", input.CorrelationID),
		zap.String("origin", origin),
		zap.String("destination", destination),
	)

	trunk, err := s.pool.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire trunk")
		return nil, fmt.Errorf("call service: acquire trunk: %w", err)
	}
	span.SetAttributes(attribute.String("call.trunk", trunk))
	log = log.With(zap.String("trunk", trunk))
	log.Debug("trunk acquired")

	if err := s.pool.Lock(ctx, trunk); err != nil {
		s.pool.Release(trunk)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock trunk")
		return nil, fmt.Errorf("call service: lock trunk %s: %w", trunk, err)
	}

	err = s.bridge(ctx, log, trunk, origin, destination)
	s.pool.Unlock(trunk)
	if err != nil {
		s.pool.Release(trunk)
		span.RecordError(err)
		span.SetStatus(codes.Error, "callback")
		log.Error("admission failed, trunk released", zap.Error(err))
		return nil, err
	}

	pending := domain.PendingCall{
		OriginNumber:      origin,
		DestinationNumber: destination,
		TrunkNumber:       trunk,
		CorrelationID:     input.CorrelationID,
		CreatedAt:         s.now(),
	}
	s.registry.Add(pending)
	log.Info("call admitted")
	return &pending, nil
}

// bridge points the trunk at origin and rings destination through it. When
// the redirect cannot be set the provider calls origin directly instead.
func (s *Service) bridge(ctx context.Context, log *zap.Logger, trunk, origin, destination string) error {
	from := trunk
	res, err := s.provider.SetRedirect(ctx, trunk, origin)
	if err != nil || !res.OK() {
		log.Warn("redirect failed, falling back to direct callback",
			zap.String("status", string(res.Status)),
			zap.String("message", res.Message),
			zap.Error(err),
		)
		from = origin
	}

	res, err = s.provider.Callback(ctx, from, destination)
	if err != nil {
		return fmt.Errorf("call service: callback: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("call service: callback: %w: %s", apperrors.ErrUnavailable, res.Message)
	}
	return nil
}

type fetchResult struct {
	path string
	err  error
}

// HandleCompletion releases the trunk named by the event, correlates it with
// the admitted call and hands the resulting record to the sink. The release
// happens first and unconditionally. A correlation miss yields a record with
// empty correlation fields.
func (s *Service) HandleCompletion(ctx context.Context, event domain.CompletionEvent) (*domain.CallRecord, error) {
	trunk, far := event.Parties()

	ctx, span := s.tracer.Start(ctx, "call.complete", trace.WithAttributes(
		attribute.String("call.trunk", trunk),
		attribute.String("call.destination", far),
		attribute.String("call.disposition", event.Disposition),
	))
	defer span.End()

	log := s.log.WithContext(ctx).With(zap.String("trunk", trunk), zap.String("destination", far))

	if !s.pool.Release(trunk) {
		log.Warn("completion for unknown trunk")
	}

	var fetched chan fetchResult
	if event.RecordingID != "" && s.fetcher != nil {
		fetched = make(chan fetchResult, 1)
		go func(id string) {
			path, err := s.fetcher.Fetch(ctx, id)
			fetched <- fetchResult{path: path, err: err}
		}(event.RecordingID)
	}

	correlationID := event.CorrelationID
	var origin string
	direction := domain.DirectionUnknown
	if entry, ok := s.registry.TakeMatching(trunk, far); ok {
		correlationID = entry.CorrelationID
		origin = entry.OriginNumber
		direction = domain.DirectionOutbound
	} else {
		log.Info("no pending call matched completion")
	}
	span.SetAttributes(attribute.Bool("call.matched", direction == domain.DirectionOutbound))

	status := domain.CallStatusOther
	if event.Answered() {
		status = domain.CallStatusAnswered
	}

	record := &domain.CallRecord{
		UniqueID:          uniqueID(event),
		CorrelationID:     correlationID,
		SourceNumber:      origin,
		DestinationNumber: far,
		InternalNumber:    trunk,
		Direction:         direction,
		Status:            status,
		StartedAt:         event.CallStart,
		EndedAt:           event.CallStart.Add(time.Duration(event.Duration) * time.Second),
		TalkingTime:       event.Duration,
	}

	if fetched != nil {
		res := <-fetched
		if res.err != nil {
			log.Warn("recording fetch failed", zap.String("recording_id", event.RecordingID), zap.Error(res.err))
		}
		record.AudioFile = res.path
	}

	if err := s.sink.SaveCallRecord(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save record")
		return nil, fmt.Errorf("call service: save record: %w", err)
	}

	log.Info("call record saved",
		zap.String("unique_id", record.UniqueID),
		zap.String("correlation_id", record.CorrelationID),
		zap.Int("talking_time", record.TalkingTime),
	)
	return record, nil
}

func uniqueID(event domain.CompletionEvent) string {
	switch {
	case event.RecordingID != "":
		return event.RecordingID
	case event.ProviderCall != "":
		return event.ProviderCall
	default:
		return uuid.NewString()
	}
}
