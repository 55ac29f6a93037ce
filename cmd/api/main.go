package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	httpAdapter "github.com/extectick/appeals-backend/internal/adapters/primary/http"
	mw "github.com/extectick/appeals-backend/internal/adapters/primary/http/middleware"
	"github.com/extectick/appeals-backend/internal/adapters/primary/stream"
	"github.com/extectick/appeals-backend/internal/adapters/secondary/postgres"
	"github.com/extectick/appeals-backend/internal/adapters/secondary/telegram"
	"github.com/extectick/appeals-backend/internal/auth"
	"github.com/extectick/appeals-backend/internal/config"
	"github.com/extectick/appeals-backend/internal/core/domain"
	"github.com/extectick/appeals-backend/internal/core/ports"
	"github.com/extectick/appeals-backend/internal/core/services"
	"github.com/extectick/appeals-backend/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	initDataValidator := auth.NewInitDataValidator(cfg.Telegram.BotToken, cfg.Telegram.InitDataMaxAge)

	registry := stream.NewRegistry(logger)
	broadcaster := stream.NewBroadcaster(registry, logger)

	// 5. Initialize Rate Limiters
	var generalRateLimiter, authRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})

		authRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.AuthRPS,
			BurstSize:         cfg.RateLimit.AuthBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
	}

	// 6. Dependency Injection (Wiring the Hexagon)

	// Error Handler
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Repositories (Secondary Adapters)
	txManager := postgres.NewTransactionManager(pool)
	userRepo := postgres.NewUserRepository(pool)
	appealRepo := postgres.NewAppealRepository(pool, txManager)
	messageRepo := postgres.NewMessageRepository(pool)
	departmentRepo := postgres.NewDepartmentRepository(pool)

	// Notifier (Secondary Adapter)
	var notifier ports.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier = telegram.NewBotNotifier(cfg.Telegram.BotToken, userRepo, logger)
	} else {
		logger.Warn("no bot token configured, notifications will only be logged")
		notifier = telegram.NewLogNotifier(userRepo, logger)
	}

	// Services (Core)
	events := domain.NewEventFactory(clockwork.NewRealClock())
	authService := services.NewAuthService(userRepo, departmentRepo, initDataValidator)
	appealService := services.NewAppealService(appealRepo, userRepo, notifier, broadcaster, events)
	messageService := services.NewMessageService(messageRepo, appealRepo, userRepo, broadcaster, events)
	directoryService := services.NewDirectoryService(userRepo, departmentRepo)

	// Handlers (Primary Adapters)
	authHandler := httpAdapter.NewAuthHandler(authService, tokenManager, errorHandler, logger)
	messageHandler := httpAdapter.NewMessageHandler(messageService, errorHandler, logger)
	appealHandler := httpAdapter.NewAppealHandler(appealService, messageHandler, errorHandler, logger)
	departmentHandler := httpAdapter.NewDepartmentHandler(directoryService, errorHandler, logger)
	streamHandler := httpAdapter.NewStreamHandler(registry, cfg.Stream.KeepaliveInterval, cfg.Stream.SendBufferSize, errorHandler, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))

	if len(cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Apply general rate limiting if enabled
	if generalRateLimiter != nil {
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	healthHandler.RegisterRoutes(r)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes with stricter rate limiting
		r.Group(func(r chi.Router) {
			if authRateLimiter != nil {
				r.Use(authRateLimiter.Middleware)
			}
			r.Mount("/auth", authHandler.PublicRouter())
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))

			authHandler.RegisterProtectedRoutes(r)
			departmentHandler.RegisterRoutes(r)
			r.Route("/appeals", appealHandler.RegisterRoutes)

			// Event stream; the JWT middleware accepts a `token` query
			// parameter here because EventSource cannot set headers.
			r.Get("/events", streamHandler.HandleEvents)
		})
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: event stream responses stay open far longer
		// than any fixed deadline. Per-request timeouts for the REST
		// surface are enforced by callers and the reverse proxy.
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown: stop accepting requests, close live streams,
	// then wait for in-flight notification deliveries.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	registry.CloseAll()
	appealService.Shutdown()

	logger.Info("server shutdown complete")
}
