package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	httpAdapter "github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/http"
	mw "github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/http/middleware"
	"github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/websocket"
	"github.com/lorrc/service-desk-lifecycle/internal/adapters/secondary/email"
	"github.com/lorrc/service-desk-lifecycle/internal/adapters/secondary/postgres"
	"github.com/lorrc/service-desk-lifecycle/internal/adapters/secondary/redis"
	"github.com/lorrc/service-desk-lifecycle/internal/auth"
	"github.com/lorrc/service-desk-lifecycle/internal/config"
	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
	"github.com/lorrc/service-desk-lifecycle/internal/core/services"
	"github.com/lorrc/service-desk-lifecycle/internal/infrastructure/logging"
)

func main() {
	var envFile, rulesFile string

	flagSet := pflag.NewFlagSet("service-desk-lifecycle", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default: .env)")
	flagSet.StringVar(&rulesFile, "sla-policies", "", "YAML rules file with SLA policies and assignment weights (overrides SLA_RULES_FILE)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	// 1. Load Configuration
	cfg, err := config.Load(envFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if rulesFile != "" {
		cfg.SLA.RulesFile = rulesFile
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Load lifecycle rules
	rules, err := config.LoadRules(cfg.SLA.RulesFile)
	if err != nil {
		logger.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	hours, err := cfg.BusinessHours.Build()
	if err != nil {
		logger.Error("invalid business hours", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Database Pool
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.RunMigrations {
		if err := runMigrations(cfg.Database.MigrationsPath, cfg.Database.URL, logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connection established")

	// 5. Repositories (Secondary Adapters)
	ticketRepo := postgres.NewTicketRepository(pool)
	techRepo := postgres.NewTechnicianRepository(pool)
	rateRepo := postgres.NewRateRepository(pool)
	entryRepo := postgres.NewTimeEntryRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	var slaRepo ports.SLAPolicyRepository = postgres.NewSLAPolicyRepository(pool)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		defer func() { _ = redisClient.Close() }()
		slaRepo = redis.NewSLAPolicyCache(slaRepo, redisClient, cfg.Redis.SLACacheTTL, logger)
	}

	// 6. Real-time and notification components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	hub := websocket.NewHub(logger, websocket.Settings{
		PingInterval: cfg.WebSocket.PingInterval,
		PongWait:     cfg.WebSocket.PongWait,
		MaxWatches:   cfg.WebSocket.MaxWatches,
	})
	go hub.Run(ctx)

	notifier := email.NewLogNotifier(techRepo, logger)

	// 7. Services (Core)
	engine := lifecycle.NewEngine(nil, hours, rules.Weights(cfg.Assignment), rateRepo)

	ticketService := services.NewTicketService(services.TicketServiceDeps{
		Tickets:     ticketRepo,
		Technicians: techRepo,
		SLAPolicies: slaRepo,
		TxManager:   txManager,
		Engine:      engine,
		Defaults:    rules.SLAPolicies,
		Notifier:    notifier,
		Broadcaster: hub,
		Logger:      logger,
	})
	assignmentService := services.NewAssignmentService(ticketRepo, techRepo, txManager, engine, notifier, hub, logger)
	timeEntryService := services.NewTimeEntryService(entryRepo, ticketRepo, txManager, engine, hub, logger)

	monitorDone := make(chan struct{})
	if cfg.SLA.MonitorEnabled {
		monitor := services.NewSLAMonitor(ticketRepo, engine, notifier, hub, logger,
			cfg.SLA.MonitorInterval, cfg.SLA.MonitorBatchSize)
		go func() {
			defer close(monitorDone)
			monitor.Run(ctx)
		}()
	} else {
		close(monitorDone)
	}

	// 8. Handlers (Primary Adapters)
	errorHandler := httpAdapter.NewErrorHandler(logger)
	timeEntryHandler := httpAdapter.NewTimeEntryHandler(timeEntryService, errorHandler)
	ticketHandler := httpAdapter.NewTicketHandler(ticketService, assignmentService, timeEntryHandler, errorHandler)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, errorHandler, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, cfg.App.Version)
	if redisClient != nil {
		healthHandler.WithOptional("redis", redisClient)
	}

	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer rateLimiter.Stop()
	}

	// 9. Setup Router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware)
	}

	healthHandler.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication is handled inside the handler
		r.Get("/ws", wsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			r.Mount("/tickets", ticketHandler.Router())
			r.Mount("/time-entries", timeEntryHandler.Router())
		})
	})

	// 10. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Drain pending notifications and broadcasts before the pool closes.
	<-monitorDone
	ticketService.Shutdown()
	assignmentService.Shutdown()
	timeEntryService.Shutdown()

	logger.Info("server shutdown complete")
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func runMigrations(path, databaseURL string, logger *slog.Logger) error {
	mig, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = mig.Close() }()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}
