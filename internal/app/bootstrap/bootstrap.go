package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	eventgraph "inviter/contexts/event-graph"
	"inviter/contexts/event-graph/adapters/instrumented"
	"inviter/contexts/event-graph/adapters/memory"
	postgresadapter "inviter/contexts/event-graph/adapters/postgres"
	"inviter/contexts/event-graph/adapters/ratelimit"
	redisadapter "inviter/contexts/event-graph/adapters/redis"
	"inviter/contexts/event-graph/ports"
	"inviter/internal/platform/config"
	"inviter/internal/platform/db"
	"inviter/internal/platform/httpserver"
	"inviter/internal/platform/observability"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	module   eventgraph.Module
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres *db.Postgres
	store    *postgresadapter.Store
	module   eventgraph.Module
	logger   *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	store, pg, registry, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	module := eventgraph.NewModule(eventgraph.Dependencies{
		Store:         store,
		Clock:         memory.SystemClock{},
		IDGenerator:   memory.UUIDGenerator{},
		RateLimiter:   buildRateLimiter(cfg, logger),
		FeedFanout:    cfg.FeedFanoutLimit,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
	})

	server := httpserver.New(store, registry, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		module:   module,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	store, pg, _, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	module := eventgraph.NewModule(eventgraph.Dependencies{
		Store:         store,
		Clock:         memory.SystemClock{},
		IDGenerator:   memory.UUIDGenerator{},
		RateLimiter:   buildRateLimiter(cfg, logger),
		FeedFanout:    cfg.FeedFanoutLimit,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
	})

	raw, ok := storeBehindInstrumentation(store)
	if !ok {
		return nil, errors.New("worker requires the postgres store")
	}
	return &WorkerApp{
		postgres: pg,
		store:    raw,
		module:   module,
		logger:   logger,
	}, nil
}

// buildStore connects postgres, migrates the items table, and wraps the
// store with latency instrumentation. The returned registry carries every
// metric the process exposes.
func buildStore(cfg config.Config, logger *slog.Logger) (ports.Store, *db.Postgres, *prometheus.Registry, error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, nil, nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}

	store := postgresadapter.NewStore(pg.DB, logger, postgresadapter.Options{
		AttemptTimeout: cfg.StoreAttemptTimeout,
		MaxRetries:     cfg.StoreMaxRetries,
	})
	if err := store.Migrate(); err != nil {
		_ = pg.Close()
		return nil, nil, nil, err
	}

	registry := prometheus.NewRegistry()
	timer := observability.NewQueryTimer(registry, cfg.SlowQueryThreshold, logger)
	return &instrumentedStore{Store: instrumented.Wrap(store, timer), raw: store}, pg, registry, nil
}

// instrumentedStore keeps a handle on the concrete postgres store so the
// worker can reach GroupPartitions, which is not part of the Store port.
type instrumentedStore struct {
	*instrumented.Store
	raw *postgresadapter.Store
}

func storeBehindInstrumentation(store ports.Store) (*postgresadapter.Store, bool) {
	wrapped, ok := store.(*instrumentedStore)
	if !ok {
		return nil, false
	}
	return wrapped.raw, true
}

// buildRateLimiter prefers the shared redis counter; without a redis address
// the per-process token bucket still enforces the preview budget locally.
func buildRateLimiter(cfg config.Config, logger *slog.Logger) ports.RateLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		logger.Info("redis not configured, using in-process rate limiter",
			"event", "bootstrap_ratelimit_local",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return ratelimit.New(cfg.InvitePreviewRate, cfg.InvitePreviewBurst)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return redisadapter.NewRateLimiter(client, int(cfg.InvitePreviewRate))
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Module() eventgraph.Module {
	return a.module
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

// Run drives the pointer-reconciliation sweeper until the context ends.
func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return w.module.Sweeper.Run(ctx, w.store.GroupPartitions)
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
