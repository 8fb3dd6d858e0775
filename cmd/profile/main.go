package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Profile/internal/api"
	"github.com/MikeSquared-Agency/Profile/internal/archive"
	"github.com/MikeSquared-Agency/Profile/internal/assessment"
	"github.com/MikeSquared-Agency/Profile/internal/config"
	"github.com/MikeSquared-Agency/Profile/internal/finalizer"
	"github.com/MikeSquared-Agency/Profile/internal/hermes"
	"github.com/MikeSquared-Agency/Profile/internal/metrics"
	"github.com/MikeSquared-Agency/Profile/internal/notify"
	"github.com/MikeSquared-Agency/Profile/internal/scoring"
	"github.com/MikeSquared-Agency/Profile/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("profile exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.MustNew(prometheus.DefaultRegisterer)

	// Assessment definitions
	defs, err := assessment.NewRegistry(cfg.Assessments.Dir, cfg.Assessments.CacheSize, logger)
	if err != nil {
		return fmt.Errorf("load assessments: %w", err)
	}
	if _, err := defs.Resolve(cfg.Assessments.Default); err != nil {
		return fmt.Errorf("default assessment: %w", err)
	}

	engine, err := scoring.NewEngine(cfg.EngineConfig(), logger, m)
	if err != nil {
		return fmt.Errorf("scoring engine: %w", err)
	}

	// Session store
	var store session.Store
	if cfg.Database.URL != "" {
		pg, err := session.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return err
		}
		store = pg
		logger.Info("connected to database")
	} else {
		store = session.NewMemoryStore()
		logger.Warn("no database configured, sessions are kept in memory")
	}
	defer store.Close()

	// Hermes (optional)
	var events hermes.Client = hermes.Nop{}
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, hermes.Options{
			URL:       cfg.Hermes.URL,
			Stream:    cfg.Hermes.Stream,
			Retention: cfg.HermesRetention(),
		}, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			events = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Result archive (optional)
	var arch archive.Archive
	if cfg.Archive.Endpoint != "" {
		s3, err := archive.NewS3Archive(archive.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("result archive: %w", err)
		}
		arch = s3
		logger.Info("result archive enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	}

	// Operator notifications (optional)
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.Token != "" {
		tn, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("failed to init telegram notifier, notifications disabled", "error", err)
		} else {
			notifier = tn
			logger.Info("telegram notifications enabled")
		}
	}

	svc := session.NewService(store, defs, engine, events, m, logger, session.Options{
		DefaultAssessment: cfg.Assessments.Default,
		DefaultFormat:     cfg.Assessments.DefaultFormat,
	})

	if cfg.Finalizer.Enabled {
		f := finalizer.New(store, defs, engine, arch, events, notifier, m, finalizer.Config{
			Interval:   cfg.FinalizerInterval(),
			BatchSize:  cfg.Finalizer.BatchSize,
			MaxBackoff: cfg.FinalizerMaxBackoff(),
		}, logger)
		f.Start(ctx)
		defer f.Stop()
		logger.Info("finalizer started", "interval", cfg.FinalizerInterval())
	}

	apiServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(svc, defs, arch, api.RouterConfig{
			AdminToken:               cfg.Server.AdminToken,
			RequestsPerMinute:        cfg.Server.RequestsPerMinute,
			SessionRequestsPerMinute: cfg.Server.SessionRequestsPerMinute,
		}, logger),
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(prometheus.DefaultGatherer),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API server starting", "port", cfg.Server.Port)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		return serve(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
