// Command server runs the steer engine orchestration service.
//
// Configuration is read from a YAML file (-config, STEER_CONFIG,
// ./config.yaml or /etc/steer/config.yaml) with STEER_* environment
// overrides. The most common variables:
//
//	STEER_PORT           - Listen port (default: 8080)
//	STEER_DEFAULT_MODE   - sequential, parallel or adaptive (default: adaptive)
//	STEER_STORAGE        - memory, postgres, sqlite or none (default: memory)
//	STEER_KNOWLEDGE_BASE - Resolution knowledge file (default: built-in)
//	STEER_SINKS          - log or webhook (default: log)
//	STEER_IDEMPOTENCY    - memory, redis or none (default: memory)
//	STEER_DEBUG          - Comma-separated debug categories
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/config"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/cultural"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/idempotency"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/observability"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/orchestrator"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/sinks"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage/memory"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage/postgres"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage/sqlite"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
	transporthttp "github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport/http"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.Tracing.Enabled,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Observability.Tracing.Environment,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Insecure:       cfg.Observability.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// Resolution knowledge.
	kb, err := loadKnowledge(ctx, cfg.Resolution)
	if err != nil {
		return err
	}

	actionSinks, err := createSinks(cfg.Sinks)
	if err != nil {
		return err
	}

	dedupe, closeDedupe, err := createDeduper(ctx, cfg.Idempotency)
	if err != nil {
		return err
	}
	defer closeDedupe()

	svc := resolution.NewService(kb, actionSinks, dedupe, resolution.Config{
		ActionTimeout:   cfg.Resolution.ActionTimeout,
		EscalationQueue: cfg.Resolution.EscalationQueue,
	})

	// Engine registry.
	factory, err := createFactory(svc, cfg.Engines)
	if err != nil {
		return err
	}

	// Optional execution store.
	store, err := createStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	orch := orchestrator.New(factory, store, orchestrator.Config{
		DefaultMode:           api.ExecutionMode(cfg.Orchestrator.DefaultMode),
		DefaultTimeout:        cfg.Orchestrator.DefaultTimeout,
		AdaptiveCostThreshold: cfg.Orchestrator.AdaptiveCostThreshold,
		Validation:            cfg.Orchestrator.ValidationLimits(),
		PersistTimeout:        cfg.Orchestrator.PersistTimeout,
	})

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second),
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, transporthttp.WithRateLimiter(
			transport.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))
		slog.Info("rate limiting enabled", "rps", cfg.RateLimit.RequestsPerSecond, "burst", cfg.RateLimit.Burst)
	}
	if !cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithoutMetrics())
	}

	srv := transporthttp.NewServer(transporthttp.Services{
		Orchestrator: orch,
		Tracker:      orch,
		Catalog:      orch,
		Store:        store,
		Resolution:   svc,
	}, opts...)

	slog.Info("steer starting",
		"version", version,
		"port", cfg.Server.Port,
		"default_mode", cfg.Orchestrator.DefaultMode,
		"engines", factory.EngineTypes(),
	)
	return srv.Run(ctx)
}

func loadKnowledge(ctx context.Context, cfg config.ResolutionConfig) (*resolution.KnowledgeBase, error) {
	if cfg.KnowledgeBase == "" {
		slog.Info("knowledge base", "source", "built-in")
		return resolution.NewKnowledgeBase(resolution.DefaultKnowledge())
	}

	data, err := resolution.LoadKnowledgeFile(cfg.KnowledgeBase)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	kb, err := resolution.NewKnowledgeBase(data)
	if err != nil {
		return nil, fmt.Errorf("knowledge base %s: %w", cfg.KnowledgeBase, err)
	}
	slog.Info("knowledge base", "source", cfg.KnowledgeBase, "templates", kb.Snapshot().Templates())

	if cfg.Watch {
		if err := resolution.WatchKnowledgeFile(ctx, cfg.KnowledgeBase, kb); err != nil {
			return nil, err
		}
	}
	return kb, nil
}

func createSinks(cfg config.SinksConfig) (resolution.Sinks, error) {
	switch cfg.Type {
	case "webhook":
		wh, err := sinks.NewWebhook(sinks.WebhookConfig{
			BaseURL:   cfg.BaseURL,
			AuthToken: cfg.AuthToken,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		})
		if err != nil {
			return resolution.Sinks{}, fmt.Errorf("creating webhook sinks: %w", err)
		}
		slog.Info("action sinks", "type", "webhook", "base_url", cfg.BaseURL)
		return wh.Sinks(), nil
	default:
		slog.Info("action sinks", "type", "log")
		return sinks.NewLog(slog.Default()).Sinks(), nil
	}
}

func createDeduper(ctx context.Context, cfg config.IdempotencyConfig) (resolution.Deduper, func(), error) {
	switch cfg.Type {
	case "redis":
		r, err := idempotency.NewRedis(ctx, idempotency.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		slog.Info("idempotency enabled", "type", "redis", "addr", cfg.Redis.Addr)
		return r, func() { closeQuietly("redis", r) }, nil
	case "none":
		slog.Info("idempotency disabled")
		return nil, func() {}, nil
	default:
		slog.Info("idempotency enabled", "type", "memory", "ttl", cfg.TTL)
		return idempotency.NewMemory(cfg.TTL), func() {}, nil
	}
}

func createFactory(svc *resolution.Service, overrides map[string]string) (*engine.Factory, error) {
	f := engine.NewFactory()
	if err := svc.Register(f); err != nil {
		return nil, fmt.Errorf("registering resolution engine: %w", err)
	}
	if err := cultural.Register(f); err != nil {
		return nil, fmt.Errorf("registering cultural engine: %w", err)
	}

	types := make([]string, 0, len(overrides))
	for typ := range overrides {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		status := api.LifecycleStatus(overrides[typ])
		if err := f.SetStatus(api.EngineType(typ), status); err != nil {
			return nil, fmt.Errorf("engines.%s: %w", typ, err)
		}
		slog.Info("engine status override", "engine", typ, "status", status)
	}

	if err := f.Verify(); err != nil {
		return nil, fmt.Errorf("verifying engine registry: %w", err)
	}
	return f, nil
}

func createStore(ctx context.Context, cfg config.StorageConfig) (transport.ExecutionStore, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return pg, nil
	case "sqlite":
		lite, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		slog.Info("storage enabled", "type", "sqlite", "path", cfg.SQLite.Path)
		return lite, nil
	default:
		slog.Info("storage disabled")
		return nil, nil
	}
}

func closeQuietly(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "resource", name, "error", err)
	}
}
