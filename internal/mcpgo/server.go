package mcpgo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/noot-app/recipebox/internal/auth"
	"github.com/noot-app/recipebox/internal/session"
	"github.com/noot-app/recipebox/internal/version"
)

// healthCacheDuration bounds how often /health reaches the backend
const healthCacheDuration = 10 * time.Second

// HealthChecker reports whether the recipe backend is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// responseRecorder captures the status and size of a response for logging
type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int
	headerWritten bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.headerWritten {
		return
	}
	r.statusCode = code
	r.headerWritten = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.headerWritten {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytesWritten += n
	return n, err
}

// Flush keeps streamed responses working through the recorder
func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Server exposes a recipe session as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	session   *session.Session
	health    HealthChecker
	auth      *auth.BearerTokenAuth
	detailed  bool
	log       *slog.Logger

	healthMu        sync.RWMutex
	lastHealthCheck time.Time
	lastHealthError error
}

// Option configures a Server
type Option func(*Server)

// WithDetailedErrors includes underlying error text in tool results
func WithDetailedErrors(enabled bool) Option {
	return func(s *Server) { s.detailed = enabled }
}

// NewServer creates the MCP server and registers every tool
func NewServer(sess *session.Session, health HealthChecker, authenticator *auth.BearerTokenAuth, logger *slog.Logger, opts ...Option) *Server {
	mcpServer := server.NewMCPServer(
		"Recipebox MCP Server",
		version.Tag(),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		session:   sess,
		health:    health,
		auth:      authenticator,
		log:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.addTools()
	return s
}

// checkHealthWithCache runs the backend health check at most once per
// healthCacheDuration; callers in between get the cached result
func (s *Server) checkHealthWithCache(ctx context.Context) error {
	s.healthMu.RLock()
	if time.Since(s.lastHealthCheck) < healthCacheDuration {
		err := s.lastHealthError
		s.healthMu.RUnlock()
		return err
	}
	s.healthMu.RUnlock()

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	// another goroutine may have refreshed while we waited
	if time.Since(s.lastHealthCheck) < healthCacheDuration {
		return s.lastHealthError
	}

	s.log.Debug("Health check: contacting backend")
	err := s.health.HealthCheck(ctx)
	s.lastHealthCheck = time.Now()
	s.lastHealthError = err
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := s.checkHealthWithCache(r.Context()); err != nil {
		s.log.Error("Health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "healthy",
		"version": version.Tag(),
	})
}

// Handler returns the HTTP routes: /health without auth and /mcp behind the
// bearer token
func (s *Server) Handler() http.Handler {
	streamable := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)

	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.Error("MCP endpoint panic recovered", "panic", recovered, "method", r.Method, "remote_addr", r.RemoteAddr)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		recorder := &responseRecorder{ResponseWriter: w}
		streamable.ServeHTTP(recorder, r)

		s.log.Debug("MCP response sent",
			"status_code", recorder.statusCode,
			"response_size", recorder.bytesWritten,
			"remote_addr", r.RemoteAddr)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", s.auth.Middleware(mcpHandler))
	return mux
}

// ServeHTTP serves MCP over streamable HTTP until ctx is cancelled
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting MCP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.log.Info("Shutting down MCP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// ServeStdio serves MCP over stdio (no auth for local use)
func (s *Server) ServeStdio() error {
	s.log.Info("Starting MCP server in stdio mode")
	return server.ServeStdio(s.mcpServer)
}
