package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"

	"github.com/acme/click-to-call/internal/api/handlers"
	"github.com/acme/click-to-call/internal/app"
)

// Server wraps the Fiber application.
type Server struct {
	app      *fiber.App
	deps     *app.Container
	handlers *handlers.HandlerSet
}

// NewServer constructs a new HTTP server.
func NewServer(deps *app.Container, handlerSet *handlers.HandlerSet) *Server {
	cfg := fiber.Config{
		AppName:               deps.Config.App.Name,
		ReadTimeout:           deps.Config.HTTP.ReadTimeout,
		WriteTimeout:          deps.Config.HTTP.WriteTimeout,
		IdleTimeout:           deps.Config.HTTP.IdleTimeout,
		ErrorHandler:          handlerSet.ErrorHandler,
		DisableStartupMessage: true,
	}

	app := fiber.New(cfg)
	app.Use(otelfiber.Middleware())
	if root := deps.Config.Recording.StaticRoot; root != "" {
		app.Static("/static", root)
	}
	handlerSet.Register(app)

	return &Server{app: app, deps: deps, handlers: handlerSet}
}

// Start serves HTTP traffic until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.deps.Config.HTTP.Port)
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
