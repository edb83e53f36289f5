// Package main is the entry point for the WhatsApp inbox HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/popeskul/wa-inbox/internal/cache"
	"github.com/popeskul/wa-inbox/internal/config"
	"github.com/popeskul/wa-inbox/internal/events"
	"github.com/popeskul/wa-inbox/internal/gateway"
	"github.com/popeskul/wa-inbox/internal/handler"
	"github.com/popeskul/wa-inbox/internal/infrastructure/migrate"
	"github.com/popeskul/wa-inbox/internal/middleware"
	"github.com/popeskul/wa-inbox/internal/realtime"
	"github.com/popeskul/wa-inbox/internal/repository"
	"github.com/popeskul/wa-inbox/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		runner := migrate.NewRunner(&migrate.Config{
			DatabaseURL:    cfg.Database.GetURL(),
			MigrationsPath: cfg.Database.MigrationsPath,
		}, logger)
		if err := runner.Up(); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	// Redis only speeds up duplicate detection; the unique index still guards inserts.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis is unreachable, duplicate detection falls back to the database", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	breaker := gateway.NewCircuitBreaker(&cfg.Gateway.CircuitBreaker, logger)
	gatewayClient := gateway.NewHTTPClient(&cfg.Gateway, breaker, logger)

	hub := realtime.NewHub(logger, time.Duration(cfg.Realtime.WriteTimeout)*time.Second)

	var publisher realtime.Publisher = hub
	if cfg.Realtime.NatsURL != "" {
		nc, err := nats.Connect(cfg.Realtime.NatsURL, nats.Name(cfg.Events.Producer))
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		relay := realtime.NewNATSRelay(nc, hub, cfg.Realtime.SubjectPrefix, logger)
		if err := relay.Start(); err != nil {
			logger.Fatal("Failed to subscribe to realtime relay", zap.Error(err))
		}
		defer func() {
			if err := relay.Close(); err != nil {
				logger.Error("Failed to close realtime relay", zap.Error(err))
			}
		}()
		publisher = relay
	}

	eventPublisher := events.NewFallback(logger)
	if cfg.Events.AMQPURL != "" {
		eventPublisher, err = events.NewAMQPPublisher(ctx, events.DialOptions{
			URL:           cfg.Events.AMQPURL,
			Exchange:      cfg.Events.Exchange,
			RetryAttempts: 5,
			Delay:         time.Second,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to AMQP broker", zap.Error(err))
		}
	}
	defer func() {
		if err := eventPublisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}()

	svc := service.NewService(service.Dependencies{
		Config:      cfg,
		Repo:        repository.NewRepository(db),
		Idempotency: cache.NewIdempotencyStore(redisClient, time.Duration(cfg.Redis.IdempotencyTTL)*time.Hour),
		Gateway:     gatewayClient,
		Breaker:     breaker,
		Realtime:    publisher,
		Events:      eventPublisher,
		Logger:      logger,
	})

	h := handler.NewHandler(svc, hub, cfg.Webhook, logger)
	router := setupRouter(h)

	rateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.Middleware.RateLimit), cfg.Middleware.RateLimitBurst)
	defer rateLimiter.Stop()

	middlewareConfig := &middleware.Config{
		Logger:         logger,
		RateLimiter:    rateLimiter,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}
	if cfg.Middleware.EnableCORS {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Middleware.AllowedOrigins
		middlewareConfig.CORS = cors
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      middleware.Chain(middlewareConfig)(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.Scheduler.Enabled {
		if err := svc.Scheduler.Start(); err != nil {
			logger.Error("Failed to start scheduler on startup", zap.Error(err))
		} else {
			logger.Info("Connection status scheduler started",
				zap.Int("interval_minutes", cfg.Scheduler.IntervalMinutes))
		}
	}

	go func() {
		logger.Info("Starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// Websocket sessions are hijacked and ignored by Shutdown; close them first.
	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := svc.Ingestion.Shutdown(shutdownCtx); err != nil {
		logger.Error("Webhook processing did not drain", zap.Error(err))
	}

	if svc.Scheduler.IsRunning() {
		if err := svc.Scheduler.Stop(); err != nil {
			logger.Error("Failed to stop scheduler", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
