// Package main provides the API server entry point for the account reconciler service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/account-reconciler/internal/api"
	"github.com/account-reconciler/internal/backoff"
	"github.com/account-reconciler/internal/cache"
	"github.com/account-reconciler/internal/config"
	"github.com/account-reconciler/internal/freshness"
	"github.com/account-reconciler/internal/logging"
	"github.com/account-reconciler/internal/orchestrator"
	"github.com/account-reconciler/internal/roster"
	"github.com/account-reconciler/internal/validator"
	"github.com/redis/go-redis/v9"
)

func main() {
	fmt.Println("Account Reconciler API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize the result cache backend
	var backend cache.Backend
	if cfg.Cache.UseRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr(),
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer client.Close()

		backend, err = cache.NewRedisBackend(client)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Redis cache backend")
		}
		logger.WithField("addr", cfg.Cache.Redis.Addr()).Info("Redis cache backend initialized")
	} else {
		backend = cache.NewMemoryBackend()
		logger.Info("In-memory cache backend initialized")
	}

	resultCache := cache.New(&cache.Config{
		Backend: backend,
		TTL:     cfg.Cache.TTL,
	})

	// Initialize the validation-service client
	client, err := validator.NewHTTPClient(&validator.HTTPClientConfig{
		BaseURL:           cfg.Validator.BaseURL,
		Timeout:           cfg.Validator.Timeout,
		RequestsPerSecond: cfg.Validator.RequestsPerSecond,
		Logger:            logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create validation client")
	}
	logger.WithField("base_url", cfg.Validator.BaseURL).Info("Validation client initialized")

	// Freshness tracker doubles as the roster's fetch marker so every roster
	// mutation refreshes the staleness clock.
	tracker := freshness.NewTracker(&freshness.TrackerConfig{
		ExpiryWindow:   cfg.Reconciler.DataExpiryWindow,
		CooldownWindow: cfg.Reconciler.ValidationCooldown,
	})

	repo := roster.NewRepository(&roster.RepositoryConfig{
		FetchMarker: tracker,
		Logger:      logger,
	})

	scheduler, err := backoff.NewScheduler(&backoff.SchedulerConfig{
		Repository:    repo,
		MaxRetryCount: cfg.Reconciler.MaxRetryCount,
		BaseBackoff:   cfg.Reconciler.BaseBackoff,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create retry scheduler")
	}

	orch, err := orchestrator.New(&orchestrator.Config{
		Repository:         repo,
		Tracker:            tracker,
		Scheduler:          scheduler,
		Cache:              resultCache,
		Client:             client,
		Logger:             logger,
		MinRefreshInterval: cfg.Reconciler.MinRefreshInterval,
		DebounceDelay:      cfg.Reconciler.DebounceDelay,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create orchestrator")
	}
	defer orch.Close()

	logger.Info("Reconciliation core initialized")

	// Start the background revalidation worker
	worker, err := orchestrator.NewWorker(&orchestrator.WorkerConfig{
		Orchestrator: orch,
		PollInterval: cfg.Reconciler.WorkerPollInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create revalidation worker")
	}
	if err := worker.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to start revalidation worker")
	}
	logger.WithField("poll_interval", cfg.Reconciler.WorkerPollInterval.String()).Info("Revalidation worker started")

	// Create the API server
	server, err := api.NewServer(&api.ServerConfig{
		Addr:         cfg.Server.Addr(),
		Repository:   repo,
		Tracker:      tracker,
		Orchestrator: orch,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create API server")
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	worker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
