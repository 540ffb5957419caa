package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/voicebridge/internal/auth"
	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/internal/eventlog"
	"github.com/yegors/voicebridge/internal/storage/sqlite"
	"github.com/yegors/voicebridge/internal/twilio"
	"github.com/yegors/voicebridge/pkg/logger"
)

// outboundCallConcurrency bounds concurrent outbound call creation. The
// provider API is slow enough that this doubles as a coarse rate limit.
const outboundCallConcurrency = 5

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(
	cfg *config.Config,
	twilioClient *twilio.Client,
	signature *twilio.SignatureVerifier,
	tokens *auth.TokenIssuer,
	calls *sqlite.CallStorage,
	events *eventlog.Writer,
	stream http.HandlerFunc,
	log *logger.Logger,
) *Router {
	return &Router{
		handler:    NewHandler(cfg, twilioClient, signature, tokens, calls, events, stream, log),
		middleware: NewMiddleware(log),
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

	// Telephony webhooks and the media stream socket live at the root so the
	// provider-side URLs stay short.
	router.With(middleware.Throttle(outboundCallConcurrency)).Post("/call", r.handler.StartCall)
	router.Post("/answer", r.handler.Answer)
	router.Get("/stream", r.handler.HandleStream)

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		router.Get("/health", r.handler.GetHealth)
		router.Get("/calls", r.handler.GetCalls)
	})

	return router
}
