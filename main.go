package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"prizeledger/internal/config"
	"prizeledger/internal/container"
	"prizeledger/internal/domain"
	"prizeledger/internal/handler"
	"prizeledger/internal/ledger"
	"prizeledger/internal/middleware"
	"prizeledger/internal/repository"
	"prizeledger/internal/service"
	"prizeledger/pkg/database"
	"prizeledger/pkg/logger"
	"prizeledger/pkg/redis"
)

// Resources holds all resources that need cleanup
type Resources struct {
	db          *database.PostgresDB
	redisClient *redis.Client
	server      *http.Server
	log         *logger.Logger
	mu          sync.Mutex
	closed      bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errors []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errors = append(errors, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Close Redis connection with health check
	if r.redisClient != nil {
		r.log.Info("Closing Redis connection...")

		healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := r.redisClient.Health(healthCtx); err != nil {
			r.log.WithError(err).Warn("Redis health check failed before closing")
		}
		healthCancel()

		if err := r.redisClient.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errors = append(errors, fmt.Errorf("Redis close: %w", err))
		} else {
			r.log.Info("Redis connection closed successfully")
		}
	}

	// Close database connection pool with health check
	if r.db != nil {
		r.log.Info("Closing database connection pool...")

		healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := r.db.Health(healthCtx); err != nil {
			r.log.WithError(err).Warn("Database health check failed before closing")
		}
		healthCancel()

		r.db.Close()
		r.log.Info("Database connection pool closed successfully")
	}

	if len(errors) > 0 {
		r.log.WithField("error_count", len(errors)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errors), errors)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting prizeledger server")

	if cfg.AdminAddress == "" {
		log.Fatal("ADMIN_ADDRESS must be configured")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be configured")
	}

	// Create dependency injection container
	c, err := container.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	// Initialize database connection if configured; the ledger can run
	// journal-less for local development.
	ctx := context.Background()
	var db *database.PostgresDB
	var repo repository.LedgerRepository
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		repo = repository.NewPostgresLedgerRepository(db)
	} else {
		log.Warn("DATABASE_URL not configured, running without a journal")
	}

	// Initialize the ledger engine and its service wrapper
	led := ledger.New(cfg.EscrowAccount, c.GetBank(), c.GetRegistry(), log)
	ledgerService := service.NewLedgerService(led, repo, c.GetRedisClient(), log)

	// Replay the journal before accepting traffic
	if err := ledgerService.RestoreFromJournal(ctx); err != nil {
		log.WithError(err).Fatal("Failed to restore ledger state from journal")
	}

	// Setup router
	router := setupRouter(c, ledgerService, db)

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Create resources manager for cleanup
	resources := &Resources{
		db:          db,
		redisClient: c.GetRedisClient(),
		server:      server,
		log:         log,
	}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container, ledgerService *service.LedgerService, db *database.PostgresDB) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()

	r := chi.NewRouter()

	// Setup CORS middleware
	corsConfig := &middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	// Setup middlewares
	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Create handlers
	healthHandler := handler.NewHealthHandler(c, db)
	ledgerHandler := handler.NewLedgerHandler(ledgerService, c.GetRegistry(), log)

	// Health check (no auth required)
	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		// Public read-only views
		r.Get("/stats", ledgerHandler.GetStats)
		r.Get("/hackathons/{hackathonId}", ledgerHandler.GetHackathonInfo)
		r.Get("/hackathons/{hackathonId}/prizes/{address}", ledgerHandler.GetPrizeAmount)
		r.Get("/hackathons/{hackathonId}/claimable/{address}", ledgerHandler.CanClaim)
		r.Get("/hackathons/{hackathonId}/events", ledgerHandler.GetEvents)

		// Mutating endpoints require authentication; role checks live in
		// the ledger engine so the error taxonomy stays in one place.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret, log))

			r.Post("/hackathons", ledgerHandler.CreateHackathon)
			r.Post("/hackathons/{hackathonId}/prizes", ledgerHandler.SetPrizes)
			r.Post("/hackathons/{hackathonId}/claim", ledgerHandler.ClaimPrize)
			r.Post("/hackathons/{hackathonId}/distribute", ledgerHandler.BatchDistribute)
			r.Post("/hackathons/{hackathonId}/deactivate", ledgerHandler.DeactivateHackathon)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/emergency-withdraw", ledgerHandler.EmergencyWithdraw)
				r.Post("/pause", ledgerHandler.Pause)
				r.Post("/unpause", ledgerHandler.Unpause)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(c.GetRegistry(), domain.RoleAdmin, log))
					r.Post("/roles/grant", ledgerHandler.GrantRole)
					r.Post("/roles/revoke", ledgerHandler.RevokeRole)
				})
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"kind":"not_found","message":"Endpoint not found"}}`))
	})

	log.Info("Router configured successfully")
	return r
}
