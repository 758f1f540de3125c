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
	"github.com/go-chi/chi/v5/middleware"

	"github.com/calebforth/bastion/internal/auth"
	"github.com/calebforth/bastion/internal/background"
	"github.com/calebforth/bastion/internal/config"
	"github.com/calebforth/bastion/internal/database"
	"github.com/calebforth/bastion/internal/handlers"
	middlewareCustom "github.com/calebforth/bastion/internal/middleware"
	"github.com/calebforth/bastion/internal/models"
	"github.com/calebforth/bastion/internal/repositories"
	"github.com/calebforth/bastion/internal/routes"
	"github.com/calebforth/bastion/internal/services"
	pkgauth "github.com/calebforth/bastion/pkg/auth"
	pkglogger "github.com/calebforth/bastion/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Apply pending migrations
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Authentication service
	authService := services.NewAuthService(
		userRepo,
		sessionRepo,
		loginAttemptRepo,
		services.AuthConfig{
			BcryptCost:       cfg.Auth.BcryptCost,
			SessionDuration:  cfg.Auth.SessionDuration,
			LockoutThreshold: cfg.Auth.LockoutThreshold,
			LockoutWindow:    cfg.Auth.LockoutWindow,
		},
		logger,
		auditLogger,
	)

	// In-process token stores; their sweep goroutines run until shutdown.
	storeCtx, storeCancel := context.WithCancel(context.Background())
	defer storeCancel()

	csrfStore := auth.NewCSRFTokenStore(storeCtx, cfg.Auth.CSRFTokenTTL)
	authLimiter := auth.NewRateLimiter(storeCtx, cfg.Auth.RateLimitRequests, cfg.Auth.RateLimitWindow, cfg.Server.BehindProxy)

	// Background maintenance
	reaper := background.NewMaintenanceReaper(
		authService,
		loginAttemptRepo,
		logger,
		cfg.Auth.SessionCleanupInterval,
		cfg.Auth.AttemptRetention,
	)

	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Server.CookieDomain,
		Secure:   cfg.Server.CookieSecure,
		SameSite: cfg.Server.CookieSameSite,
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(
		authService,
		csrfStore,
		cookieConfig,
		cfg.Auth.SessionDuration,
		cfg.Auth.CSRFTokenTTL,
		cfg.Server.BehindProxy,
	)
	usersHandler := handlers.NewUsersHandler(userRepo, sessionRepo, logger)

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, cfg.Auth.BcryptCost, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.Server.BehindProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, usersHandler, authService, authLimiter, csrfStore, cfg.Server.GeneralRateLimit, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start maintenance reaper
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	go reaper.Start(reaperCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	reaperCancel()
	reaper.Stop()
	storeCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, bcryptCost int, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPasswordCost(adminPassword, bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		FirstName:    "Admin",
		LastName:     "User",
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}

	if _, err := userRepo.CreateWithPassword(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
