// Package main is the entry point for the DealerFlow server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dveiga/dealerflow/internal/clock"
	"github.com/dveiga/dealerflow/internal/config"
	"github.com/dveiga/dealerflow/internal/database"
	"github.com/dveiga/dealerflow/internal/extract"
	"github.com/dveiga/dealerflow/internal/followup"
	"github.com/dveiga/dealerflow/internal/handler"
	"github.com/dveiga/dealerflow/internal/logging"
	"github.com/dveiga/dealerflow/internal/matching"
	"github.com/dveiga/dealerflow/internal/messaging"
	"github.com/dveiga/dealerflow/internal/metrics"
	"github.com/dveiga/dealerflow/internal/middleware"
	"github.com/dveiga/dealerflow/internal/repository"
	"github.com/dveiga/dealerflow/internal/service"
	"github.com/dveiga/dealerflow/internal/shutdown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger := log.Zap()

	logger.Info("starting DealerFlow server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
	)

	// Initialize database
	ctx := context.Background()
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	// Note: db.Close() is handled by shutdown coordinator

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db.Pool)
	vehicleRepo := repository.NewVehicleRepository(db.Pool)

	// Initialize metrics
	m := metrics.NewMetrics()

	// Initialize domain services
	clk := clock.New()
	gateway := messaging.NewWhatsAppGateway(&cfg.WhatsApp, logger)
	extractor := extract.New(cfg.Automation.BudgetMultiplier)
	matcher := matching.NewMatcher(vehicleRepo, leadRepo, gateway, clk, cfg.Automation.Source, logger)
	scheduler := followup.NewScheduler(leadRepo, gateway, clk, m, cfg.Automation.Source, logger)

	automation := service.NewAutomationService(
		leadRepo,
		vehicleRepo,
		extractor,
		matcher,
		scheduler,
		gateway,
		clk,
		m,
		logger,
		cfg.Automation.Source,
		cfg.Sales.TeamContacts(),
		cfg.Automation.ReservationWindow,
	)

	// Initialize shutdown coordinator
	coord := shutdown.NewCoordinator(shutdown.DefaultTimeout, logger)

	// Initialize handlers
	webhookHandler := handler.NewWebhookHandler(handler.WebhookHandlerConfig{
		Processor: automation,
		WhatsApp:  &cfg.WhatsApp,
		Logger:    logger,
		Metrics:   m,
	})
	automationHandler := handler.NewAutomationHandler(handler.AutomationHandlerConfig{
		Runner:  automation,
		Demoter: automation,
		Logger:  logger,
	})
	healthHandler := handler.NewHealthHandler(handler.HealthHandlerConfig{
		HealthChecker: db,
		Draining:      coord.Draining,
		Logger:        logger,
	})

	// Initialize router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(middleware.Correlation)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(m.Middleware)
	r.Use(chimiddleware.Compress(5))

	// Register routes
	webhookHandler.RegisterRoutes(r)
	automationHandler.RegisterRoutes(r)
	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", m.Handler())
	r.Handle("/admin/log-level", log)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// In-process hourly automation ticker (disabled when tick_interval
	// is zero; external cron can drive /automation/run instead).
	tickerDone := make(chan struct{})
	if cfg.Automation.TickInterval > 0 {
		go runTicker(ctx, automation, db, m, cfg.Automation.TickInterval, coord.Begun(), tickerDone, logger)
	} else {
		close(tickerDone)
		logger.Info("in-process automation ticker disabled")
	}

	// Register teardown hooks in phase order
	coord.Register(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	coord.Register(shutdown.PhaseWorkers, "automation-ticker", func(ctx context.Context) error {
		select {
		case <-tickerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	coord.Register(shutdown.PhaseClose, "database", func(ctx context.Context) error {
		db.Close()
		return nil
	})

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("received shutdown signal")

	if err := coord.Run(ctx); err != nil {
		logger.Error("shutdown interrupted", zap.Error(err))
	}
}

// runTicker drives the hourly automation sweep from inside the process
// and keeps the pool gauges fresh between sweeps.
func runTicker(
	ctx context.Context,
	automation *service.AutomationService,
	db *database.DB,
	m *metrics.Metrics,
	interval time.Duration,
	stop <-chan struct{},
	done chan<- struct{},
	logger *zap.Logger,
) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			m.UpdateDBConnections(int(stats.TotalConns()), int(stats.AcquiredConns()))

			result, err := automation.RunPeriodic(ctx, service.ModeHourly)
			if err != nil {
				logger.Error("scheduled automation run failed", zap.Error(err))
				continue
			}
			logger.Info("scheduled automation run complete",
				zap.Int("follow_ups", result.FollowUpsSent),
				zap.Int("hot_leads", result.HotLeads),
			)
		case <-stop:
			logger.Debug("automation ticker stopping")
			return
		}
	}
}
