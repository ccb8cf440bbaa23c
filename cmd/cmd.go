package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photogram-backend/internal/config"
	"photogram-backend/internal/handlers"
	"photogram-backend/internal/media"
	"photogram-backend/internal/middleware"
	"photogram-backend/internal/notify"
	"photogram-backend/internal/repository"
	"photogram-backend/internal/services"
	"photogram-backend/internal/session"
	"photogram-backend/internal/storage"
	"photogram-backend/internal/store"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to the document store
	docs, closeDocs := openDocuments(cfg.Database)
	defer closeDocs()

	// Initialize repositories
	userRepo := repository.NewUserRepository(docs)
	photoRepo := repository.NewPhotoRepository(docs)

	// Initialize object storage
	objects, err := openObjectStore(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	// Push notifications are optional
	var hooks store.Hooks
	if cfg.APNS.KeyFile != "" {
		notifier, err := notify.NewAPNSNotifier(cfg.APNS, userRepo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs notifier")
		}
		hooks = notifier.Hooks()
		log.Info().Bool("production", cfg.APNS.Production).Msg("Push notifications enabled")
	}

	// Initialize services
	provider := session.NewProvider(userRepo, cfg.JWT.Secret, cfg.JWT.Issuer)
	hub := services.NewClientHub(func() *store.Store {
		return store.New(docs, store.WithHooks(hooks))
	}, provider)
	feedService := services.NewFeedService(photoRepo, userRepo)
	searchService := services.NewSearchService(userRepo, photoRepo)
	profileService := services.NewProfileService(userRepo, photoRepo)
	uploadService := services.NewUploadService(objects, media.NewFFmpegDecoder(cfg.Media.FFmpegPath, cfg.Media.FFprobePath))
	reconciler := services.NewFollowReconciler(userRepo)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(provider)
	photoHandler := handlers.NewPhotoHandler(hub, feedService, searchService, uploadService)
	userHandler := handlers.NewUserHandler(hub, profileService, uploadService, reconciler)
	wsHandler := handlers.NewWebSocketHandler(hub, provider, feedService, searchService)

	r := NewRouter(provider, sessionHandler, photoHandler, userHandler, wsHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// NewRouter builds the HTTP routes
func NewRouter(
	provider *session.Provider,
	sessionHandler *handlers.SessionHandler,
	photoHandler *handlers.PhotoHandler,
	userHandler *handlers.UserHandler,
	wsHandler *handlers.WebSocketHandler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", sessionHandler.SignIn)

		// Browsing works signed out
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(provider))
			r.Get("/photos", photoHandler.GetFeed)
			r.Get("/photos/{photo_id}", photoHandler.GetPhoto)
			r.Get("/search", photoHandler.Search)
			r.Get("/users/{user_id}", userHandler.GetProfile)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(provider))
			r.Post("/photos/upload", photoHandler.UploadPhoto)
			r.Put("/users/me", userHandler.UpdateProfile)
			r.Post("/users/me/avatar", userHandler.UploadAvatar)
			r.Put("/users/me/push-token", userHandler.UpdatePushToken)
			r.Post("/users/{user_id}/follow", userHandler.ToggleFollow)
			r.Post("/users/{user_id}/reconcile", userHandler.Reconcile)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// openDocuments connects the configured document store
func openDocuments(cfg config.DatabaseConfig) (repository.Documents, func()) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory document store, data is lost on exit")
		return repository.NewMemoryDocuments(), func() {}
	}

	db, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	docs := repository.NewPostgresDocuments(db)
	if err := docs.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	return docs, db.Close
}

// openObjectStore creates the configured object store
func openObjectStore(cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case "minio":
		return storage.NewMinioStore(cfg)
	default:
		return storage.NewS3Store(context.Background(), cfg)
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
