package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snditnz/verbumcare-demo-sub002/internal/approval"
	"github.com/snditnz/verbumcare-demo-sub002/internal/auth"
	"github.com/snditnz/verbumcare-demo-sub002/internal/config"
	"github.com/snditnz/verbumcare-demo-sub002/internal/recording"
	"github.com/snditnz/verbumcare-demo-sub002/internal/reviewqueue"
	"github.com/snditnz/verbumcare-demo-sub002/internal/storage/sqlite"
	"github.com/snditnz/verbumcare-demo-sub002/internal/transcriber"
	"github.com/snditnz/verbumcare-demo-sub002/internal/voice"
	"github.com/snditnz/verbumcare-demo-sub002/internal/websocket"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(
	voiceService *voice.Service,
	queueStore *reviewqueue.Store,
	approvalService *approval.Service,
	noteStorage *sqlite.NoteStorage,
	authService *auth.Service,
	resolver *recording.Resolver,
	transcriberClient *transcriber.Client,
	wsServer *websocket.Server,
	db *sql.DB,
	cfg *config.Config,
	log *logger.Logger,
) *Router {
	return &Router{
		handler: NewHandler(voiceService, queueStore, approvalService, noteStorage,
			authService, resolver, transcriberClient, wsServer, db, cfg, log),
		middleware: NewMiddleware(authService, log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Token issuance (unauthenticated)
		router.Post("/auth/token", r.handler.IssueToken)

		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Configuration
		router.Get("/config", r.handler.GetConfig)

		// WebSocket route
		router.Get("/ws", r.handler.HandleWebSocket)

		// Authenticated routes
		router.Group(func(router chi.Router) {
			router.Use(r.middleware.Authenticate)

			// Recording routes
			router.Post("/recordings", r.handler.UploadRecording)
			router.Post("/recordings/{id}/process", r.handler.ProcessRecording)
			router.Get("/recordings/{id}", r.handler.GetRecording)

			// Review queue routes
			router.Get("/review-queue", r.handler.GetReviewQueue)

			// Clinical note routes
			router.Get("/patients/{id}/notes", r.handler.GetPatientNotes)
			router.Post("/notes/{id}/decision", r.handler.DecideNote)
		})
	})

	return router
}
