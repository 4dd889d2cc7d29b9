package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/outreach/internal/config"
	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/dispatch"
	"github.com/JonMunkholm/outreach/internal/logging"
	"github.com/JonMunkholm/outreach/internal/metrics"
	"github.com/JonMunkholm/outreach/internal/session"
	"github.com/JonMunkholm/outreach/internal/web"
)

func main() {
	// .env is optional; real environment variables win.
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"audit", cfg.Database.Enabled(),
		"redis", cfg.Redis.Enabled(),
		"sms", cfg.SMS.Configured(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := metrics.NewOutreachMetrics(reg)

	processor := &core.Processor{
		Logger:   logger,
		Observer: observer,
		Composer: core.NewComposer(cfg.Links.ChatBase),
	}
	deps := web.Deps{
		Processor: processor,
		Limiter:   core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:    logger,
	}

	if cfg.Database.Enabled() {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := core.NewPgAuditStore(pool)
		processor.Audit = store
		deps.Uploads = store
	}

	if cfg.Redis.Enabled() {
		client, err := session.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Sessions = session.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Redis.SessionTTL)
		logger.Info("session store: redis")
	} else {
		deps.Sessions = session.NewMemoryStore(cfg.Redis.SessionTTL)
		logger.Info("session store: memory")
	}

	if cfg.SMS.Configured() {
		sender := dispatch.NewTwilioSender(dispatch.TwilioConfig{
			AccountSID:  cfg.SMS.AccountSID,
			AuthToken:   cfg.SMS.AuthToken,
			From:        cfg.SMS.FromNumber,
			BaseURL:     cfg.SMS.BaseURL,
			MaxAttempts: cfg.SMS.MaxAttempts,
			Timeout:     cfg.SMS.Timeout,
		}, logger)
		deps.SMS = dispatch.NewBulk(sender, dispatch.BulkConfig{
			RatePerSecond: cfg.SMS.RatePerSecond,
			MaxLength:     cfg.SMS.MaxLength,
			BatchSize:     cfg.SMS.BatchSize,
		}, logger, observer)
	} else {
		logger.Warn("twilio credentials not set, SMS sending disabled")
	}

	server := web.NewServer(cfg, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := deps.Limiter.Status(); status.Active > 0 {
			logger.Info("waiting for uploads to complete", "active", status.Active)
			if err := deps.Limiter.WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("uploads did not complete in time", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}
