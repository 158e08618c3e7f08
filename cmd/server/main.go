/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the journey calculation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file + environment)
  2. Initialize logger
  3. Initialize SQLite store
  4. Wire domain services (engine, time clock, hour-bank ledger)
  5. Configure HTTP router and reconciliation scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to config file (default: ./config.yaml if present)

CONFIGURATION:
  See config/config.go. Environment variables override the file, e.g.
  JOURNEY_SERVER_PORT=3000, JOURNEY_DB_PATH=":memory:".

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reconciliation scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/journey-engine/api"
	"github.com/warp/journey-engine/calendar"
	"github.com/warp/journey-engine/config"
	"github.com/warp/journey-engine/hourbank"
	"github.com/warp/journey-engine/journey"
	"github.com/warp/journey-engine/store/sqlite"
	"github.com/warp/journey-engine/timeclock"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire domain services
	resolver := &journey.DefaultRuleResolver{Rules: store}
	cal := calendar.NewResolver(store)
	ledger := hourbank.NewLedger(store, store)

	engine := journey.NewEngine(resolver, cal, nil, store,
		journey.WithAuditTrail(store))
	clock := timeclock.NewService(store, engine, store)
	// The engine reads intervals through the clock service so both share
	// the same overlap semantics.
	engine.Clocks = clock

	handler := api.NewHandler(engine, store, cal, store, ledger, store, clock, store, logger)
	router := api.NewRouter(handler, cfg.Server.CORS.AllowOrigins)

	var scheduler *api.ReconciliationScheduler
	if cfg.Reconciler.Enabled {
		scheduler = api.NewReconciliationScheduler(ledger, logger)
		scheduler.CheckInterval = cfg.Reconciler.Interval
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
