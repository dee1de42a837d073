package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/api"
	"github.com/acme/click-to-call/internal/api/handlers"
	"github.com/acme/click-to-call/internal/app"
	"github.com/acme/click-to-call/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())
	lg := container.Logger

	shutdownTracing, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name)
	if err != nil {
		lg.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			lg.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := container.Janitor().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("janitor stopped", zap.Error(err))
		}
	}()

	server := api.NewServer(container, handlers.NewHandlerSet(container))
	lg.Info("starting server", zap.Int("port", container.Config.HTTP.Port))
	if err := server.Start(ctx); err != nil {
		lg.Error("server terminated", zap.Error(err))
	}

	// In-flight completions hold trunk channels; give them the full shutdown
	// window, which must outlast the recording cooldown.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), container.Config.App.ShutdownTimeout)
	defer drainCancel()
	if err := container.Runner().Shutdown(drainCtx); err != nil {
		lg.Warn("workflows abandoned on shutdown", zap.Error(err))
	}
	lg.Info("shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
