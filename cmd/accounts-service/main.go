package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-accounts/internal/config"
	"github.com/pribylovaa/go-accounts/internal/events"
	apihttp "github.com/pribylovaa/go-accounts/internal/http"
	"github.com/pribylovaa/go-accounts/internal/http/handlers"
	"github.com/pribylovaa/go-accounts/internal/http/middleware"
	"github.com/pribylovaa/go-accounts/internal/ratelimit"
	"github.com/pribylovaa/go-accounts/internal/service"
	"github.com/pribylovaa/go-accounts/internal/storage/minio"
	"github.com/pribylovaa/go-accounts/internal/storage/mongo"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// publisher — публикатор событий, который нужно закрыть при остановке.
type publisher interface {
	service.EventPublisher
	Close() error
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting accounts-service", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	startCtx, startCancel := context.WithTimeout(ctx, cfg.Timeouts.Startup)
	defer startCancel()

	store, err := mongo.New(startCtx, cfg.DB.URL)
	if err != nil {
		log.Error("mongo_connect_failed", slog.String("err", err.Error()))
		return err
	}
	defer store.Close()
	log.Info("mongo_connected")

	media, err := minio.New(startCtx, cfg)
	if err != nil {
		log.Error("minio_connect_failed", slog.String("err", err.Error()))
		return err
	}
	log.Info("minio_connected", slog.String("bucket", cfg.S3.Bucket))

	if cfg.Media.TempDir != "" {
		if err := os.MkdirAll(cfg.Media.TempDir, 0o750); err != nil {
			log.Error("media_tempdir_failed", slog.String("err", err.Error()))
			return err
		}
	}

	deps := service.Deps{
		Storage: store,
		Media:   media,
		Auth:    cfg.Auth,
	}

	if cfg.Redis.URL != "" {
		limiter, err := ratelimit.New(startCtx, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.MaxLoginAttempts, cfg.Redis.LoginWindow)
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			return err
		}
		defer func() { _ = limiter.Close() }()
		deps.Limiter = limiter
		log.Info("login_limiter_enabled",
			slog.Int("max_attempts", cfg.Redis.MaxLoginAttempts),
			slog.Duration("window", cfg.Redis.LoginWindow),
		)
	}

	var pub publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout)
		log.Info("event_publisher_enabled", slog.String("topic", cfg.Kafka.Topic))
	}
	defer func() { _ = pub.Close() }()
	deps.Events = pub

	svc := service.New(deps)
	log.Info("service_initialized")

	// HTTP readiness/liveness/metrics
	var ready atomic.Bool

	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			http.Error(w, "mongo unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	opsMux.Handle("/metrics", promhttp.Handler())

	opsSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	apiSrv := &http.Server{
		Addr: cfg.API.Addr(),
		Handler: apihttp.NewRouter(svc, apihttp.Options{
			Logger:   log,
			Timeout:  cfg.Timeouts.Request,
			BasePath: cfg.API.BasePath,
			Metrics:  middleware.NewMetrics(prometheus.DefaultRegisterer),
			Auth:     svc.Tokens(),
			Handlers: handlers.Options{
				Cookie:       cfg.Cookie,
				TempDir:      cfg.Media.TempDir,
				MaxBodyBytes: cfg.API.MaxBodyBytes,
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		log.Info("http_listen_start", slog.String("server", name), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}

	go serve("ops", opsSrv)
	go serve("api", apiSrv)

	ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
	}

	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api_force_stop", slog.String("err", err.Error()))
		_ = apiSrv.Close()
	}
	_ = opsSrv.Shutdown(shutdownCtx)

	return serveErr
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
