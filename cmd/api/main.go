// Package main is the entrypoint for the Kegstock API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kegstock/kegstock/internal/cache"
	"github.com/kegstock/kegstock/internal/config"
	"github.com/kegstock/kegstock/internal/handler"
	"github.com/kegstock/kegstock/internal/logging"
	"github.com/kegstock/kegstock/internal/metrics"
	"github.com/kegstock/kegstock/internal/migrate"
	"github.com/kegstock/kegstock/internal/repository"
	"github.com/kegstock/kegstock/internal/server"
	"github.com/kegstock/kegstock/internal/service"
)

const startupTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if cfg.AutoMigrate {
		if err := applyMigrations(startCtx, cfg, logger); err != nil {
			return err
		}
	}

	repo, err := repository.New(startCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", logging.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", logging.RedactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	logger.Info("connected to database")

	// Interfaces stay nil when the cache is disabled so the service and
	// readiness probe skip it.
	var (
		listCache service.ListCache
		cachePing handler.HealthChecker
		redis     *cache.Cache
	)
	if cfg.CacheEnabled() {
		redis, err = cache.New(startCtx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			repo.Close()
			logger.Error("failed to connect to Redis",
				slog.String("error", logging.SanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", logging.RedactURL(cfg.RedisURL)),
			)
			return errors.New("redis unavailable")
		}
		listCache = redis
		cachePing = redis
		logger.Info("connected to Redis", "cache_ttl", cfg.CacheTTL)
	} else {
		logger.Info("list cache disabled")
	}

	recorder := metrics.NewInMemory()
	beerTypes := service.NewBeerTypeService(repo, listCache, recorder, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:         logger,
		Health:         handler.NewHealthHandler(repo, cachePing, logger),
		Metrics:        handler.NewMetricsHandler(recorder),
		BeerTypes:      handler.NewBeerTypeHandler(beerTypes, logger),
		IsDevelopment:  cfg.IsDevelopment(),
		AllowedOrigins: cfg.GetCORSAllowedOrigins(),
		MaxBodySize:    cfg.MaxRequestBodySize,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	if redis != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return redis.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"cache_enabled", cfg.CacheEnabled(),
	)

	return srv.Run(ctx)
}

func applyMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := migrate.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("auto-migrate: %s", logging.SanitizeError(err, cfg.DatabaseURL))
	}
	defer db.Close()

	m, err := migrate.New(db, repository.Migrations, repository.MigrationsDir, logger)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	applied, err := m.Up(ctx)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	logger.Info("migrations up to date", "applied", applied)
	return nil
}
