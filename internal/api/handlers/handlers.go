package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/app"
	"github.com/acme/click-to-call/internal/domain"
	callsvc "github.com/acme/click-to-call/internal/service/call"
	"github.com/acme/click-to-call/internal/worker/workflow"
	"github.com/acme/click-to-call/pkg/logger"
)

// CallService is the orchestrator surface used by the transport.
type CallService interface {
	PlaceCall(ctx context.Context, input callsvc.PlaceCallInput) (*domain.PendingCall, error)
	HandleCompletion(ctx context.Context, event domain.CompletionEvent) (*domain.CallRecord, error)
}

// Runner executes detached workflows.
type Runner interface {
	Go(name string, fn workflow.Func) error
}

// TrunkInspector reports the current state of every trunk.
type TrunkInspector interface {
	Snapshot() []domain.TrunkNumber
}

// PendingInspector lists admitted calls still awaiting completion.
type PendingInspector interface {
	Len() int
	List() []domain.PendingCall
}

// RecordingLedger tracks recordings announced by the provider but not yet downloaded.
type RecordingLedger interface {
	MarkPending(ctx context.Context, recordingID string) error
	Pending(ctx context.Context) ([]string, error)
}

// RecordReader looks up stored call records.
type RecordReader interface {
	GetCallRecord(ctx context.Context, uniqueID string) (*domain.CallRecord, error)
}

// Deps lists everything the handlers need.
type Deps struct {
	Calls    CallService
	Runner   Runner
	Trunks   TrunkInspector
	Pending  PendingInspector
	Ledger   RecordingLedger
	Records  RecordReader
	Health   map[string]func(ctx context.Context) error
	Location *time.Location
	Logger   *logger.Logger
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	deps Deps
	log  *logger.Logger
	loc  *time.Location
}

// New creates a handler bundle from explicit dependencies.
func New(deps Deps) *HandlerSet {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &HandlerSet{deps: deps, log: log, loc: loc}
}

// NewHandlerSet creates a handler bundle from the application container.
func NewHandlerSet(container *app.Container) *HandlerSet {
	services := container.Services()
	core := container.Core()
	loc, err := container.Config.Provider.Location()
	if err != nil {
		loc = time.UTC
	}
	return New(Deps{
		Calls:    services.Call,
		Runner:   container.Runner(),
		Trunks:   core.Pool,
		Pending:  core.Registry,
		Ledger:   core.Ledger,
		Records:  services.Records,
		Health:   container.HealthChecks(),
		Location: loc,
		Logger:   container.Logger,
	})
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	api.Post("/call", h.placeCall)
	api.Get("/notify", h.notifyEcho)
	api.Post("/notify", h.notify)
	api.Post("/notify/record", h.notifyRecord)

	v1 := api.Group("/v1")
	v1.Post("/calls", h.placeCall)
	v1.Get("/trunks", h.listTrunks)
	v1.Get("/pending", h.listPending)
	v1.Get("/recordings/pending", h.pendingRecordings)
	v1.Get("/records/:id", h.getRecord)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", ctx.Path()), zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for name, check := range h.deps.Health {
		if err := check(healthCtx); err != nil {
			errs[name] = err.Error()
		}
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
