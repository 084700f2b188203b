package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/broadcast"
	"github.com/Lyall-A/Checkboxes/internal/checkbox"
	"github.com/Lyall-A/Checkboxes/internal/config"
	"github.com/Lyall-A/Checkboxes/internal/database"
	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/filestore"
	"github.com/Lyall-A/Checkboxes/internal/logging"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/Lyall-A/Checkboxes/internal/ratelimit"
	"github.com/Lyall-A/Checkboxes/internal/redis"
	"github.com/Lyall-A/Checkboxes/internal/retry"
	"github.com/Lyall-A/Checkboxes/internal/server"
	"github.com/Lyall-A/Checkboxes/internal/version"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

// backend is the selected snapshot store plus its readiness probe and teardown.
type backend struct {
	snapshots   domain.SnapshotStore
	healthCheck *server.HealthCheck
	close       func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func connectPolicy(target string) retry.Policy {
	return retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Connection attempt failed, retrying", "target", target, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
}

func setupBackend(cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) (backend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.StateBackend {
	case config.BackendFile:
		return backend{snapshots: filestore.New(cfg.StateFile), close: func() {}}, nil

	case config.BackendRedis:
		storageMetrics := metrics.NewStorageMetrics(reg)
		hooks := []goredis.Hook{redis.NewMetricsHook(storageMetrics, clock), redis.NewCircuitBreakerHook(storageMetrics)}
		client, err := retry.Do(ctx, clock, connectPolicy("redis"), nil, func(ctx context.Context) (*goredis.Client, error) {
			return redis.NewClient(ctx, cfg.RedisURL, hooks...)
		})
		if err != nil {
			return backend{}, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		store := redis.NewSnapshotStore(client, cfg.RedisKey)
		return backend{
			snapshots:   store,
			healthCheck: &server.HealthCheck{Name: "redis", Check: store.Ping},
			close:       func() { _ = client.Close() },
		}, nil

	case config.BackendPostgres:
		storageMetrics := metrics.NewStorageMetrics(reg)
		tracer := database.NewMetricsTracer(storageMetrics, clock)
		pool, err := retry.Do(ctx, clock, connectPolicy("postgres"), nil, func(ctx context.Context) (*pgxpool.Pool, error) {
			return database.Connect(ctx, cfg.DatabaseURL, tracer)
		})
		if err != nil {
			return backend{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("failed to run migrations: %w", err)
		}
		repo := database.NewSnapshotRepo(pool)
		return backend{
			snapshots:   database.NewCircuitBreakerStore(repo, storageMetrics),
			healthCheck: &server.HealthCheck{Name: "postgres", Check: repo.Ping},
			close:       pool.Close,
		}, nil

	default:
		return backend{}, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, cfg.StateBackend)
	}
}

type shutdownDeps struct {
	srv       *server.Server
	registry  *broadcast.Registry
	persister *checkbox.Persister
	limiter   *ratelimit.Limiter
}

func runGracefulShutdown(deps shutdownDeps) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		deps.registry.Stop()
		deps.persister.Stop()
		deps.limiter.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"addr", cfg.Addr(),
		"version", version.Get().String(),
		"checkboxes", cfg.Checkboxes,
		"backend", cfg.StateBackend,
		"heartbeat_timeout", cfg.HeartbeatTimeout(),
	)

	reg := metrics.NewRegistry()

	be, err := setupBackend(cfg, reg, clock)
	if err != nil {
		slog.Error("Failed to set up state backend", "error", err)
		os.Exit(1)
	}
	defer be.close()

	registry := broadcast.NewRegistry(broadcast.Config{
		HeartbeatInterval:     cfg.HeartbeatInterval,
		HeartbeatIntervalDiff: cfg.HeartbeatIntervalDiff,
		SendBufferSize:        cfg.SendBufferSize,
		MaxMessageBytes:       cfg.MaxMessageBytes,
	}, clock, metrics.NewWebSocketMetrics(reg))

	store := checkbox.NewStore(cfg.Checkboxes, be.snapshots, registry, clock, metrics.NewStateMetrics(reg))
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Load(loadCtx)
	cancelLoad()
	if err != nil {
		slog.Error("Failed to load checkbox state", "error", err)
		os.Exit(1)
	}

	persister := checkbox.NewPersister(store, clock, cfg.SaveInterval)
	persister.Start()

	limiter := ratelimit.New(cfg.RateLimitMaxRequests, cfg.RateLimitResetTimeout, clock, metrics.NewRateLimitMetrics(reg))

	healthChecks := []server.HealthCheck{{
		Name: "registry",
		Check: func(context.Context) error {
			if registry.Count() < 0 {
				return domain.ErrRegistryStopped
			}
			return nil
		},
	}}
	if be.healthCheck != nil {
		healthChecks = append(healthChecks, *be.healthCheck)
	}

	srv := server.NewServer(cfg, store, limiter, registry, reg, clock, healthChecks)

	done := runGracefulShutdown(shutdownDeps{
		srv:       srv,
		registry:  registry,
		persister: persister,
		limiter:   limiter,
	})

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		persister.Stop()
		os.Exit(1)
	}

	<-done
}
