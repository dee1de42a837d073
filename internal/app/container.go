package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/config"
	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/infra/db"
	"github.com/acme/click-to-call/internal/infra/redis"
	"github.com/acme/click-to-call/internal/pending"
	"github.com/acme/click-to-call/internal/queue"
	"github.com/acme/click-to-call/internal/recording"
	"github.com/acme/click-to-call/internal/repository"
	memrepo "github.com/acme/click-to-call/internal/repository/memory"
	pgrepo "github.com/acme/click-to-call/internal/repository/postgres"
	scyllarepo "github.com/acme/click-to-call/internal/repository/scylla"
	"github.com/acme/click-to-call/internal/scheduler"
	callsvc "github.com/acme/click-to-call/internal/service/call"
	recordsvc "github.com/acme/click-to-call/internal/service/record"
	"github.com/acme/click-to-call/internal/telephony"
	telephonyMock "github.com/acme/click-to-call/internal/telephony/mock"
	"github.com/acme/click-to-call/internal/telephony/zadarma"
	"github.com/acme/click-to-call/internal/trunkpool"
	"github.com/acme/click-to-call/internal/worker/workflow"
	apperrors "github.com/acme/click-to-call/pkg/errors"
	"github.com/acme/click-to-call/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	Provider telephony.Provider

	core *core

	// lazily initialised components
	components struct {
		once      sync.Once
		services  *services
		publisher *queue.RecordPublisher
		runner    *workflow.Runner
		janitor   *scheduler.Janitor
	}
}

type core struct {
	Pool     *trunkpool.Pool
	Registry *pending.Registry
	Ledger   recording.Ledger
	Store    repository.CallRecordStore
	Fetcher  *recording.Fetcher
}

type services struct {
	Call    *callsvc.Service
	Records *recordsvc.Sink
}

// Build constructs a container for the given configuration path. Any
// configuration problem, including an empty trunk pool, is returned here.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: lg}
	if err := c.bootstrap(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Container) bootstrap(ctx context.Context) error {
	cfg := c.Config

	provider, err := c.newProvider()
	if err != nil {
		return err
	}
	c.Provider = provider

	trunks, err := c.trunkNumbers(ctx)
	if err != nil {
		return err
	}
	pool, err := trunkpool.New(trunks, trunkpool.Options{
		PollInterval:   cfg.Trunks.AcquirePollInterval,
		AcquireTimeout: cfg.Trunks.AcquireTimeout,
		Logger:         c.Logger.Named("trunkpool"),
	})
	if err != nil {
		return err
	}

	var ledger recording.Ledger = recording.NewMemoryLedger()
	if cfg.Redis.Address != "" {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		c.Redis = client
		ledger = recording.NewRedisLedger(client.Inner(), cfg.Recording.LedgerKey)
	}

	store, err := c.newStore(ctx)
	if err != nil {
		return err
	}

	if len(cfg.Kafka.Brokers) > 0 {
		k, err := queue.NewKafka(cfg.Kafka)
		if err != nil {
			return fmt.Errorf("bootstrap kafka: %w", err)
		}
		c.Kafka = k
		if cfg.Kafka.EnsureTopics {
			if err := k.EnsureTopics(ctx, []string{cfg.Kafka.CallCompletedTopic}, 12, 1); err != nil {
				return fmt.Errorf("bootstrap kafka: %w", err)
			}
		}
	}

	c.core = &core{
		Pool:     pool,
		Registry: pending.NewRegistry(),
		Ledger:   ledger,
		Store:    store,
	}
	c.core.Fetcher = c.newFetcher()

	c.Logger.Info("container built",
		zap.String("provider", cfg.Provider.Name),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("trunks", pool.Len()),
		zap.Bool("redis", c.Redis != nil),
		zap.Bool("kafka", c.Kafka != nil),
	)
	return nil
}

func (c *Container) newProvider() (telephony.Provider, error) {
	cfg := c.Config.Provider
	switch cfg.Name {
	case "mock":
		return telephonyMock.NewProvider(0, staticTrunks(c.Config.Trunks)), nil
	case "zadarma":
		baseURL := cfg.BaseURL
		if baseURL == "" && cfg.Sandbox {
			baseURL = zadarma.SandboxURL
		}
		return zadarma.NewClient(zadarma.Config{
			Key:         cfg.Key,
			Secret:      cfg.Secret,
			BaseURL:     baseURL,
			PBXID:       cfg.PBXID,
			MaxChannels: c.Config.Trunks.MaxChannels,
			Timeout:     cfg.RequestTimeout,
			Logger:      c.Logger.Named("zadarma"),
		})
	default:
		return nil, fmt.Errorf("bootstrap provider: %w: unknown provider %q", apperrors.ErrConfiguration, cfg.Name)
	}
}

// trunkNumbers returns the static trunk list, or discovers it from the
// provider and turns redirection off on every discovered trunk.
func (c *Container) trunkNumbers(ctx context.Context) ([]domain.TrunkNumber, error) {
	if !c.Config.Trunks.Discover {
		return staticTrunks(c.Config.Trunks), nil
	}

	trunks, err := c.Provider.TrunkNumbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap trunks: %w", err)
	}
	if len(trunks) == 0 {
		return nil, fmt.Errorf("bootstrap trunks: %w: provider returned no trunk numbers", apperrors.ErrConfiguration)
	}
	for _, t := range trunks {
		res, err := c.Provider.ClearRedirect(ctx, t.ID)
		if err != nil || !res.OK() {
			c.Logger.Warn("clear redirect failed", zap.String("trunk", t.ID), zap.String("message", res.Message), zap.Error(err))
		}
	}
	return trunks, nil
}

func staticTrunks(cfg config.TrunksConfig) []domain.TrunkNumber {
	out := make([]domain.TrunkNumber, 0, len(cfg.Numbers))
	for _, n := range cfg.Numbers {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, domain.TrunkNumber{ID: n, Capacity: cfg.MaxChannels})
	}
	return out
}

func (c *Container) newStore(ctx context.Context) (repository.CallRecordStore, error) {
	cfg := c.Config
	switch cfg.Storage.Backend {
	case "memory":
		return memrepo.NewCallRecordStore(), nil
	case "scylla":
		s, err := db.NewScylla(cfg.Scylla)
		if err != nil {
			return nil, fmt.Errorf("bootstrap scylla: %w", err)
		}
		c.Scylla = s
		store := scyllarepo.NewCallRecordStore(s.Session())
		if cfg.Storage.InitSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("bootstrap scylla: %w", err)
			}
		}
		return store, nil
	default:
		pg, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("bootstrap postgres: %w", err)
		}
		c.Postgres = pg
		repo := pgrepo.NewCallRecordRepository(pg.DB())
		if cfg.Storage.InitSchema {
			if err := repo.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("bootstrap postgres: %w", err)
			}
		}
		return repo, nil
	}
}

func (c *Container) newFetcher() *recording.Fetcher {
	cfg := c.Config.Recording
	return recording.NewFetcher(c.Provider, recording.Options{
		Cooldown:    cfg.Cooldown,
		RecordsPath: cfg.RecordsPath,
		StaticRoot:  cfg.StaticRoot,
		HTTPClient:  &http.Client{Timeout: cfg.DownloadTimeout},
		Ledger:      c.core.Ledger,
		Logger:      c.Logger.Named("recording"),
	})
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		var publisher recordsvc.Publisher
		if c.Kafka != nil {
			c.components.publisher = queue.NewRecordPublisher(c.Kafka, c.Config.Kafka.CallCompletedTopic)
			publisher = c.components.publisher
		}

		sink := recordsvc.NewSink(c.core.Store, publisher, c.Logger.Named("records"))
		c.components.services = &services{
			Records: sink,
			Call: callsvc.NewService(c.core.Pool, c.core.Registry, c.Provider, sink, callsvc.Options{
				Fetcher: c.core.Fetcher,
				Logger:  c.Logger.Named("call"),
			}),
		}
		c.components.runner = workflow.New(c.Logger)
		c.components.janitor = scheduler.NewJanitor(c.core.Registry, scheduler.JanitorConfig{
			Interval:   c.Config.Pending.SweepInterval,
			StaleAfter: c.Config.Pending.StaleAfter,
			EvictAfter: c.Config.Pending.EvictAfter,
		}, c.Logger)
	})
}

// Core exposes the in-memory call state and its stores.
func (c *Container) Core() *core {
	return c.core
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Runner exposes the detached workflow runner.
func (c *Container) Runner() *workflow.Runner {
	c.initComponents()
	return c.components.runner
}

// Janitor exposes the stale pending call sweeper.
func (c *Container) Janitor() *scheduler.Janitor {
	c.initComponents()
	return c.components.janitor
}

// HealthChecks lists a ping per configured backing service.
func (c *Container) HealthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if c.Postgres != nil {
		checks["postgres"] = c.Postgres.Ping
	}
	if c.Scylla != nil {
		checks["scylla"] = c.Scylla.Ping
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.Ping
	}
	return checks
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if p := c.components.publisher; p != nil {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("record publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
