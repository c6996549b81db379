package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/payledger/payledger/internal/core/services"
	"github.com/payledger/payledger/internal/handlers"
	"github.com/payledger/payledger/internal/middleware"
	"github.com/payledger/payledger/internal/platform/config"
	"github.com/payledger/payledger/internal/repositories/database/pgsql"
	"github.com/payledger/payledger/internal/stream"
	"github.com/payledger/payledger/pkg/database"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Repositories and services.
	ledgerRepo := pgsql.NewLedgerRepository(dbPool)
	userRepo := pgsql.NewUserRepository(dbPool)

	producer := stream.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Warn("Failed to close producer", slog.String("error", err.Error()))
		}
	}()

	userService := services.NewUserService(userRepo, ledgerRepo, cfg.DefaultCurrency)
	accountService := services.NewAccountService(ledgerRepo)
	txnService := services.NewTransactionService(ledgerRepo, producer, logger)

	// Settlement pipeline.
	dlq := stream.NewDLQProducer(cfg.KafkaBrokers, cfg.KafkaDLQTopic, logger)
	defer func() {
		if err := dlq.Close(); err != nil {
			logger.Warn("Failed to close DLQ producer", slog.String("error", err.Error()))
		}
	}()

	settler := stream.NewSettler(ledgerRepo, logger, cfg.SettleMaxAttempts, cfg.SettleBackoffBase, cfg.StoreTimeout)
	consumer := stream.NewConsumer(stream.ConsumerConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaTopic,
		GroupID:       cfg.KafkaGroupID,
		Workers:       cfg.ConsumerWorkers,
		ShutdownGrace: cfg.ShutdownGrace,
	}, settler, dlq, logger)

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	// HTTP layer.
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, handlers.Services{
		User:        userService,
		Account:     accountService,
		Transaction: txnService,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		serverDone <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverDone:
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		stop()
	case err := <-consumerDone:
		if err != nil {
			logger.Error("Consumer stopped with error", slog.String("error", err.Error()))
		}
		stop()
	}

	// Stop accepting HTTP traffic, then wait for the consumer to drain its
	// in-flight settlements and commit offsets.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", slog.String("error", err.Error()))
	}

	select {
	case err := <-consumerDone:
		if err != nil {
			logger.Error("Consumer shutdown error", slog.String("error", err.Error()))
		} else {
			logger.Info("Consumer drained and stopped")
		}
	case <-time.After(cfg.ShutdownGrace + 5*time.Second):
		logger.Warn("Consumer did not stop within the grace period")
	}

	logger.Info("Shutdown complete")
}

// runMigrations applies all pending schema migrations before the service
// starts serving traffic or consuming events.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return upErr
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}
