package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"vrpengine/internal/api"
	"vrpengine/internal/auth"
	"vrpengine/internal/boundary"
	"vrpengine/internal/buildinfo"
	"vrpengine/internal/config"
	"vrpengine/internal/logging"
	"vrpengine/internal/metrics"
	"vrpengine/internal/progress"
	"vrpengine/internal/store"
	"vrpengine/internal/webhooks"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load(os.Getenv("VRP_CONFIG"))
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		log.Debug("no .env file found (using environment variables)")
	}
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store selection
	var st store.Store = store.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to open postgres")
		}
		defer func() { _ = pg.Close() }()
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := pg.Migrate(ctx); err != nil {
				log.WithError(err).Fatal("failed to migrate")
			}
		}
		st = pg
	}

	// Broker selection
	checks := map[string]api.Check{}
	var broker progress.Broker = progress.NewMemory()
	if cfg.RedisURL != "" {
		rb, err := progress.NewRedis(cfg.RedisURL, log)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-process progress broker")
		} else {
			defer func() { _ = rb.Close() }()
			broker = rb
			checks["redis"] = rb.Ping
		}
	}

	verifier, err := auth.New(cfg.Auth.Mode, cfg.Auth.HMACSecret)
	if err != nil {
		log.WithError(err).Fatal("invalid auth settings")
	}

	engine := boundary.New(
		boundary.WithWorkers(cfg.Engine.Workers),
		boundary.WithLogger(log),
		boundary.WithBroker(broker),
		boundary.WithStore(st),
		boundary.WithProgressRate(cfg.Engine.ProgressRate),
		boundary.WithCacheSize(cfg.Engine.CacheSize),
	)
	server := api.NewServer(engine, api.Options{
		WebhookSecret: cfg.Webhook.Secret,
		RateLimit:     cfg.HTTP.RateLimit,
		RateBurst:     cfg.HTTP.RateBurst,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		Auth:          verifier,
		Log:           log,
		Checks:        checks,
	})

	worker := webhooks.NewWorker(st, cfg.Webhook.MaxAttempts, cfg.Webhook.Timeout, cfg.Webhook.Interval, log)
	worker.Start()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTP.Addr, "version": buildinfo.Version}).Info("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	close(worker.Stop)
	_ = engine.Close()
}
