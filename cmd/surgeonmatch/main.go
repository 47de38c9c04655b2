package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/surgeonmatch/surgeonmatch/internal/gateway/auth"
	"github.com/surgeonmatch/surgeonmatch/internal/gateway/cache"
	"github.com/surgeonmatch/surgeonmatch/internal/gateway/handlers"
	"github.com/surgeonmatch/surgeonmatch/internal/gateway/ratelimit"
	"github.com/surgeonmatch/surgeonmatch/internal/gateway/usagelog"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/config"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/database"
	"github.com/surgeonmatch/surgeonmatch/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting SurgeonMatch API on port %s (env: %s)", cfg.Port, cfg.Env)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Connected to Redis")

	// Credential verification. The test credential is wired in only for
	// debug, non-production configurations; production builds the plain
	// store verifier and nothing else.
	var verifier auth.Verifier = auth.NewStoreVerifier(db)
	if cfg.IsTestKeyEnabled() {
		verifier = auth.NewTestVerifier(
			cfg.TestAPIKey, cfg.TestRateLimitID,
			cfg.TestRateLimit, cfg.RateLimitPeriod, verifier)
		log.Println("✓ Test API key enabled (debug mode)")
	}

	limiter := ratelimit.New(redisClient, cfg.DefaultRateLimit, cfg.RateLimitPeriod)

	cacheService := cache.New(redisClient, cfg.CacheTTL)
	invalidator := cache.NewInvalidator(cacheService)
	log.Println("✓ Initialized cache")

	usageLogger := usagelog.New(db, 1024)

	tokens := auth.NewTokenService(cfg.SecretKey, cfg.AdminTokenExpiry)

	gate := handlers.NewGate(verifier, limiter, cacheService, usageLogger, handlers.GateConfig{
		BypassPaths: []string{"/health", "/api/v1/health", "/metrics"},
		CachePaths: []string{
			"/api/v1/surgeons",
			"/api/v1/claims",
			"/api/v1/quality-metrics",
		},
		CacheExcluded: []string{"/api/v1/api-keys", "/api/v1/auth", "/api/v1/test"},
		CacheTTL:      cfg.CacheTTL,
		CacheEnabled:  cfg.CacheEnabled,
	})

	surgeonHandler := handlers.NewSurgeonHandler(db, invalidator)
	claimHandler := handlers.NewClaimHandler(db, invalidator)
	metricHandler := handlers.NewQualityMetricHandler(db, invalidator)
	apiKeyHandler := handlers.NewAPIKeyHandler(db, tokens)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Infrastructure endpoints (no auth required)
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"surgeonmatch-api","version":"0.1.0"}`))
	}
	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Gated API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(gate.Authenticate)
		r.Use(gate.RateLimit)
		r.Use(gate.Cached)

		// Matches the gate's bypass list, so it needs no key.
		r.Get("/health", healthHandler)

		r.Route("/surgeons", surgeonHandler.Routes)
		r.Route("/claims", claimHandler.Routes)
		r.Route("/quality-metrics", metricHandler.Routes)

		r.Post("/auth/token", apiKeyHandler.IssueToken)
		r.Route("/api-keys", apiKeyHandler.Routes)

		if cfg.IsTestKeyEnabled() {
			diag := handlers.NewDiagnosticsHandler(limiter)
			r.Get("/test/rate-limit", diag.RateLimitProbe)
		}
	})

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server listening on http://localhost:%s", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Drain buffered usage log entries before closing the stores.
	if err := usageLogger.Close(shutdownCtx); err != nil {
		log.Printf("Usage logger shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
