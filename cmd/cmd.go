package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spark-backend/internal/catalog"
	"spark-backend/internal/config"
	"spark-backend/internal/feed"
	"spark-backend/internal/handlers"
	"spark-backend/internal/middleware"
	"spark-backend/internal/repository"
	"spark-backend/internal/services"

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

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Load the static guided-date catalog
	cat, err := catalog.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load activity catalog")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	spaceRepo := repository.NewSpaceRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	memoryRepo := repository.NewMemoryRepository(db)

	// Change feed broker shared by all realtime consumers
	broker := feed.NewBroker()

	// WebSocket hub doubles as the presence source for invite pushes
	wsHub := services.NewWSHub()

	pushService, err := services.NewPushService(cfg.APNS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create push service")
	}
	if pushService == nil {
		log.Info().Msg("APNs not configured, invite pushes disabled")
	}

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	spaceService := services.NewSpaceService(spaceRepo, userRepo)
	memoryService, err := services.NewMemoryService(memoryRepo, userRepo, cat, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create memory service")
	}
	var pusher services.InvitePusher
	if pushService != nil {
		pusher = pushService
	}
	sessionService := services.NewSessionService(
		sessionRepo, answerRepo, spaceRepo, userRepo, broker, wsHub, pusher, memoryService,
	)
	coordinatorService := services.NewCoordinatorService(userRepo, sessionRepo, broker)
	suggestionService := services.NewSuggestionService(suggestionRepo, userRepo, cat, broker)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	spaceHandler := handlers.NewSpaceHandler(spaceService, wsHub)
	sessionHandler := handlers.NewSessionHandler(sessionService, spaceService)
	suggestionHandler := handlers.NewSuggestionHandler(suggestionService, spaceService)
	memoryHandler := handlers.NewMemoryHandler(memoryService)
	catalogHandler := handlers.NewCatalogHandler(cat)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, spaceService, coordinatorService, broker)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		r.Get("/catalog", catalogHandler.GetCatalog)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/users/me", userHandler.GetMe)
			r.Put("/users/push-token", userHandler.UpdatePushToken)

			r.Post("/spaces", spaceHandler.CreateSpace)
			r.Post("/spaces/join", spaceHandler.JoinSpace)
			r.Get("/spaces/me", spaceHandler.GetMySpace)

			r.Post("/sessions", sessionHandler.StartSession)
			r.Post("/sessions/solo", sessionHandler.CompleteSolo)
			r.Get("/sessions/live", sessionHandler.ListLive)
			r.Post("/sessions/{session_id}/accept", sessionHandler.AcceptSession)
			r.Post("/sessions/{session_id}/cancel", sessionHandler.CancelSession)
			r.Post("/sessions/{session_id}/step", sessionHandler.AdvanceStep)
			r.Post("/sessions/{session_id}/complete", sessionHandler.CompleteSession)
			r.Post("/sessions/{session_id}/answers", sessionHandler.SubmitAnswer)
			r.Get("/sessions/{session_id}/answers", sessionHandler.GetAnswers)

			r.Post("/suggestions", suggestionHandler.CreateSuggestion)
			r.Get("/suggestions/current", suggestionHandler.GetCurrentSuggestion)

			r.Get("/memories", memoryHandler.ListMemories)
			r.Post("/memories/upload", memoryHandler.UploadMemory)
			r.Post("/memories/{memory_id}/confirm", memoryHandler.ConfirmUpload)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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
