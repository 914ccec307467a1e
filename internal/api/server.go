package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger         *slog.Logger
	ChatService    ChatStreamer        // Required
	Conversations  ConversationStore   // Required
	Ensurer        ConversationEnsurer // Required
	Knowledge      KnowledgeStore      // Required
	Pool           *pgxpool.Pool       // Optional: nil disables pool stats in /ready
	DashboardToken string              // Required: guards management endpoints
	CORSOrigins    []string            // Allowed origins for CORS
	TrustProxy     bool                // Trust X-Real-IP/X-Forwarded-For headers
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
//
// The public chat endpoint sits behind per-client admission control.
// Management endpoints (knowledge base, conversation history) require
// bearer authentication. Health probes bypass the middleware stack.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.ChatService == nil {
		return nil, errors.New("chat service is required")
	}
	if cfg.Conversations == nil || cfg.Ensurer == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Knowledge == nil {
		return nil, errors.New("knowledge store is required")
	}
	if cfg.DashboardToken == "" {
		return nil, errors.New("dashboard token is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	// Public chat endpoint, rate limited per client.
	rl := newBucketLimiter()
	ch := NewChatHandler(cfg.ChatService, cfg.Ensurer, logger)
	mux.Handle("POST /api/chat",
		rateLimitMiddleware(rl, cfg.TrustProxy, logger)(http.HandlerFunc(ch.Stream)))

	// Management endpoints behind bearer auth.
	admin := http.NewServeMux()
	NewKnowledgeHandler(cfg.Knowledge, logger).RegisterRoutes(admin)
	NewConversationHandler(cfg.Conversations, logger).RegisterRoutes(admin)
	authed := bearerAuthMiddleware(cfg.DashboardToken, logger)(admin)
	for _, prefix := range []string{"/api/knowledge", "/api/knowledge/", "/api/conversations", "/api/conversations/"} {
		mux.Handle(prefix, authed)
	}

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must wrap routes so preflight OPTIONS gets
	// proper headers.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux separates health probes from the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
