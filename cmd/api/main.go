package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/meetup/docs"
	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/chat"
	"github.com/fkhayef/meetup/internal/config"
	"github.com/fkhayef/meetup/internal/database"
	"github.com/fkhayef/meetup/internal/profile"
	"github.com/fkhayef/meetup/internal/shuffle"
	"github.com/fkhayef/meetup/internal/storage"
	"github.com/fkhayef/meetup/internal/storage/badgerkv"
	"github.com/fkhayef/meetup/internal/storage/pgkv"
	mw "github.com/fkhayef/meetup/pkg/middleware"
)

//go:generate swag init --dir ../../ --generalInfo cmd/api/main.go --output ../../docs --outputTypes go,json

// @title        Meetup API
// @version      1.0
// @description  Time-boxed meetups on a map, shuffle matching and activity chats.
// @BasePath     /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	logger.Info("storage ready", slog.String("driver", cfg.StorageDriver))

	// Activity feature
	activityStore, err := activity.NewStore(ctx, activity.NewRepository(store),
		activity.WithRules(activity.Rules{
			DefaultDuration: cfg.Activity.DefaultDuration,
			MaxHorizon:      cfg.Activity.MaxHorizon,
			MaxDistanceKm:   cfg.Activity.MaxDistanceKm,
		}),
		activity.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to load activities: %v", err)
	}
	activityHandler := activity.NewHandler(activityStore)

	// Chat feature, kept in sync with activity changes
	chatService := chat.NewService(chat.NewRepository(store), logger)
	activityStore.AddListener(chatService)
	chatHandler := chat.NewHandler(chatService)

	// Profile feature, avatar changes fan out to activity members
	profileService := profile.NewService(profile.NewRepository(store), activityStore, profile.Config{
		AvailabilityWindow:      cfg.Profile.AvailabilityWindow,
		DefaultMaxAgeDifference: cfg.Profile.DefaultMaxAgeDifference,
	}, logger)
	profileHandler := profile.NewHandler(profileService)

	// Shuffle feature
	shuffleManager := shuffle.NewManager(profileService, activityStore, shuffle.Config{
		Rounds:     cfg.Shuffle.Rounds,
		Duration:   cfg.Shuffle.Duration,
		MaxMembers: cfg.Shuffle.MaxMembers,
	}, shuffle.WithLogger(logger))
	shuffleHandler := shuffle.NewHandler(shuffleManager)

	limiter := mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.UserMiddleware)
		r.Use(limiter.Middleware)

		// Mount feature routers
		r.Mount("/activities", activityHandler.Routes())
		r.Mount("/users", activityHandler.UserRoutes())
		r.Mount("/shuffle", shuffleHandler.Routes())
		r.Mount("/chats", chatHandler.Routes())
		r.Mount("/profiles", profileHandler.Routes())
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("server starting", slog.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
	logger.Info("server stopped")
}

type closableStore interface {
	storage.Store
	io.Closer
}

// openStorage returns the key/value backend selected by cfg.StorageDriver
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closableStore, error) {
	switch cfg.StorageDriver {
	case config.StorageBadger:
		bcfg := badgerkv.DefaultConfig(cfg.BadgerPath)
		bcfg.Logger = logger
		s, err := badgerkv.Open(bcfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoragePostgres:
		db, err := database.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s, err := pgkv.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
