package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/v-yash/jarvis/internal/adapter/inbound/webhook/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	SigningSecret string
	MaxBodyBytes  int64
	// RateLimit is requests per minute per client IP on the Slack routes.
	RateLimit int
}

// Server wraps an HTTP server with graceful shutdown support.
type Server struct {
	cfg     ServerConfig
	handler *Handler
	ops     map[string]http.Handler
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates a Server. ops are extra unauthenticated routes such as
// /metrics or /readyz, keyed by ServeMux pattern.
func NewServer(cfg ServerConfig, handler *Handler, ops map[string]http.Handler, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		ops:     ops,
		logger:  logger,
	}
}

// SetupRoutes builds and returns an http.Handler with all middleware applied.
// Route layout:
//
//	GET  /health              - Health check
//	POST /slack/commands      - Slash commands
//	POST /slack/interactions  - Block actions, view submissions
//	POST /slack/options       - External select suggestions
func (s *Server) SetupRoutes() http.Handler {
	slackMux := http.NewServeMux()
	slackMux.HandleFunc("POST /slack/commands", s.handler.Commands)
	slackMux.HandleFunc("POST /slack/interactions", s.handler.Interactions)
	slackMux.HandleFunc("POST /slack/options", s.handler.Interactions)

	// BodyReader -> RateLimit -> SlackSignature -> handler
	var slack http.Handler = slackMux
	slack = middleware.SlackSignature(s.cfg.SigningSecret, s.logger)(slack)
	slack = middleware.RateLimit(s.cfg.RateLimit)(slack)
	slack = middleware.BodyReader(s.cfg.MaxBodyBytes)(slack)

	mux := http.NewServeMux()
	mux.Handle("/slack/", slack)
	mux.HandleFunc("GET /health", HealthHandler())
	for pattern, h := range s.ops {
		mux.Handle(pattern, h)
	}

	var h http.Handler = mux
	h = middleware.Logging(s.logger)(h)
	h = middleware.SecurityHeaders(h)
	return h
}

// Start starts the HTTP server and blocks until ctx is cancelled, then performs
// a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.SetupRoutes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("slack http server listening", "port", s.cfg.Port)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("slack http server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
