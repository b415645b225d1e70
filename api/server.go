// Package api exposes the chat and knowledge-management REST API.
//
// Endpoints:
//
//	GET    /health                      liveness probe
//	GET    /ready                       readiness probe (DB ping)
//	POST   /api/chat                    stream a chat answer
//	GET    /api/conversations           list conversations
//	POST   /api/conversations           create a conversation
//	GET    /api/conversations/{id}      conversation with messages
//	PATCH  /api/conversations/{id}      rename a conversation
//	DELETE /api/conversations/{id}      delete a conversation
//	GET    /api/sources                 list sources
//	DELETE /api/sources/{id}            delete a source
//	POST   /api/sources/{type}/connect  connect a notion or slack source
//	POST   /api/sources/{id}/sync       sync a source
//	POST   /api/sources/upload          upload files as a new source
//
// Every /api route is authenticated and rate limited per user.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/synapse-ai/synapse/internal/ratelimit"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to block Slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads can carry up to 100MB, so it is generous.
	ReadTimeout = 2 * time.Minute

	// IdleTimeout closes idle keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Deps carries everything the server needs. All fields are required
// unless noted.
type Deps struct {
	Logger        *slog.Logger
	Auth          Authenticator
	Limiter       ratelimit.Limiter
	Chat          ChatService
	Conversations ConversationStore
	Sources       SourceStore
	Pipeline      Syncer
	SlackNamer    WorkspaceNamer
	DB            Pinger
}

// Server is the HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	auth    Authenticator
	limiter ratelimit.Limiter

	chat          ChatService
	conversations ConversationStore
	sources       SourceStore
	pipeline      Syncer
	slackNamer    WorkspaceNamer
	db            Pinger
}

// NewServer creates a server with all routes registered.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		auth:          deps.Auth,
		limiter:       deps.Limiter,
		chat:          deps.Chat,
		conversations: deps.Conversations,
		sources:       deps.Sources,
		pipeline:      deps.Pipeline,
		slackNamer:    deps.SlackNamer,
		db:            deps.DB,
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)

	s.mux.HandleFunc("POST /api/chat", s.protected(ratelimit.TierChat, s.handleChat))

	s.mux.HandleFunc("GET /api/conversations", s.protected(ratelimit.TierDefault, s.handleListConversations))
	s.mux.HandleFunc("POST /api/conversations", s.protected(ratelimit.TierDefault, s.handleCreateConversation))
	s.mux.HandleFunc("GET /api/conversations/{id}", s.protected(ratelimit.TierDefault, s.handleGetConversation))
	s.mux.HandleFunc("PATCH /api/conversations/{id}", s.protected(ratelimit.TierDefault, s.handleRenameConversation))
	s.mux.HandleFunc("DELETE /api/conversations/{id}", s.protected(ratelimit.TierDefault, s.handleDeleteConversation))

	s.mux.HandleFunc("GET /api/sources", s.protected(ratelimit.TierDefault, s.handleListSources))
	s.mux.HandleFunc("DELETE /api/sources/{id}", s.protected(ratelimit.TierDefault, s.handleDeleteSource))
	s.mux.HandleFunc("POST /api/sources/{type}/connect", s.protected(ratelimit.TierDefault, s.handleConnectSource))
	s.mux.HandleFunc("POST /api/sources/{id}/sync", s.protected(ratelimit.TierSync, s.handleSyncSource))
	s.mux.HandleFunc("POST /api/sources/upload", s.protected(ratelimit.TierUpload, s.handleUpload))

	return s
}

// Handler returns the router with middleware applied. Middleware order:
// recovery outermost, then logging.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, s.recoveryMiddleware, s.loggingMiddleware)
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// gracefully. Streaming responses get no write timeout; slow handlers are
// bounded by their own contexts instead.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
