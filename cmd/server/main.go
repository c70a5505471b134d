package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/skillswap/internal/auth"
	"github.com/ayush/skillswap/internal/config"
	"github.com/ayush/skillswap/internal/logging"
	"github.com/ayush/skillswap/internal/metrics"
	"github.com/ayush/skillswap/internal/middleware"
	"github.com/ayush/skillswap/internal/notify"
	"github.com/ayush/skillswap/internal/store"
	"github.com/ayush/skillswap/internal/swap"
	"github.com/ayush/skillswap/internal/users"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		if !cfg.DevMode {
			log.Fatal().Msg("JWT_SECRET is required")
		}
		log.Warn().Msg("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "skillswap-dev-secret"
	}

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	defer pgPool.Close()
	if err := store.Migrate(ctx, pgPool); err != nil {
		log.Fatal().Err(err).Msg("postgres migrate")
	}
	pgStore := store.NewPostgresStore(pgPool)

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	ledger := store.NewMongoLedger(mongoClient.Database(cfg.MongoDB), pgStore)
	if err := ledger.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("mongo indexes")
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	// ── MinIO ────────────────────────────────────────────────
	photos, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("minio connect")
	}

	// ── Notifications ────────────────────────────────────────
	registry := notify.NewRegistry()
	dispatcher := notify.NewDispatcher(registry, log)
	var events swap.Emitter = dispatcher
	if cfg.EventsRelay {
		relay := notify.NewRelay(rdb, dispatcher, log)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("event relay stopped")
			}
		}()
		events = relay
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(pgStore, sessions, tokens, !cfg.DevMode, log)
	userHandler := users.NewHandler(pgStore, photos, cfg.MaxPhotoBytes, log)
	swapHandler := swap.NewHandler(swap.NewService(ledger, pgStore, events, log), log)
	wsHandler := notify.NewHandler(registry, cfg.CORSOrigins, log)

	requireAuth := middleware.RequireAuth(sessions, tokens)
	optionalAuth := middleware.OptionalAuth(sessions, tokens)
	limitRequests, err := middleware.RateLimit(cfg.RateLimitRequests)
	if err != nil {
		log.Fatal().Err(err).Str("rate", cfg.RateLimitRequests).Msg("rate limit config")
	}

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.AccessLog(log))
	r.Use(chimw.Recoverer)
	r.Use(metrics.HTTP)
	r.Use(middleware.Secure(cfg.DevMode))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Auth routes
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	// Directory and profiles
	r.Route("/api/users", func(r chi.Router) {
		r.Get("/public", userHandler.ListPublic)
		r.With(requireAuth).Put("/profile", userHandler.UpdateProfile)
		r.Get("/{id}", userHandler.Get)
		r.With(optionalAuth).Get("/{id}/photo", userHandler.Photo)
	})

	// Swap requests (protected)
	r.Route("/api/requests", func(r chi.Router) {
		r.Use(requireAuth)
		r.With(limitRequests).Post("/", swapHandler.Create)
		r.Get("/", swapHandler.List)
		r.Put("/{id}/status", swapHandler.UpdateStatus)
	})

	r.With(requireAuth).Get("/ws", wsHandler.ServeHTTP)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("skillswap listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
		os.Exit(1)
	}
}
