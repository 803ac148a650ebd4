package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/puzzlearena/arena-api/internal/config"
	"github.com/puzzlearena/arena-api/internal/domain/account"
	"github.com/puzzlearena/arena-api/internal/domain/badge"
	"github.com/puzzlearena/arena-api/internal/domain/cooldown"
	"github.com/puzzlearena/arena-api/internal/domain/effect"
	"github.com/puzzlearena/arena-api/internal/domain/ledger"
	"github.com/puzzlearena/arena-api/internal/domain/war"
	"github.com/puzzlearena/arena-api/internal/middleware"
	"github.com/puzzlearena/arena-api/internal/pkg/database"
	"github.com/puzzlearena/arena-api/internal/pkg/jwt"
	"github.com/puzzlearena/arena-api/internal/pkg/logger"
	"github.com/puzzlearena/arena-api/internal/pkg/metrics"
	pkgresponse "github.com/puzzlearena/arena-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Arena API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	accountRepo := account.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	effectRepo := effect.NewRepository(db)
	cooldownRepo := cooldown.NewRepository(db)
	warRepo := war.NewRepository(db)
	badgeRepo := badge.NewRepository(db)

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerRepo)
	effectService := effect.NewService(effectRepo)
	cooldownService := cooldown.NewService(cooldownRepo, cooldown.Config{
		BaseMinutes:      cfg.CooldownBase,
		IncrementMinutes: cfg.CooldownIncrement,
		CapMinutes:       cfg.CooldownCap,
	})
	badgeService := badge.NewService(badgeRepo)

	warConfig := war.Config{
		Duration:      cfg.WarDuration,
		AcceptTimeout: cfg.WarAcceptTimeout,
	}
	warService := war.NewService(warRepo, accountRepo, ledgerService, effectService, cooldownService, warConfig)

	// ---------- Background workers ----------
	finalizer := war.NewFinalizer(db, warRepo, effectRepo, badgeService, warConfig, cfg.FinalizeInterval)
	finalizer.Start()
	defer finalizer.Stop()

	notifier := effect.NewNotifier(effectRepo, redis, cfg.NotifyInterval, cfg.NotifyHorizon)
	notifier.Start()
	defer notifier.Stop()

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService)
	warHandler := war.NewHandler(warService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit(redis, cfg.RateLimitRequests, cfg.RateLimitWindow))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/credits", ledgerHandler.Routes(authMiddleware))
		r.Mount("/wars", warHandler.Routes(authMiddleware))
	})

	// ---------- Server with graceful shutdown ----------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
