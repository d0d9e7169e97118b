package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/mcp-dbgateway/internal/metrics"
)

const serverName = "mcp-dbgateway"

type Server struct {
	log   *slog.Logger
	cfg   Config
	clock clockwork.Clock
	mcp   *mcp.Server
	http  *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		log:   cfg.Logger,
		cfg:   cfg,
		clock: cfg.Clock,
		mcp:   mcpServer,
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}

	if cfg.Transport == TransportHTTP {
		s.http = &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           s.httpHandler(),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
		}
	}

	return s, nil
}

func (s *Server) httpHandler() http.Handler {
	mux := http.NewServeMux()
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})

	metricsHandler := s.metricsMiddleware(handler)
	if len(s.cfg.AllowedTokens) > 0 {
		mux.Handle("/", s.authMiddleware(metricsHandler))
	} else {
		mux.Handle("/", metricsHandler)
	}

	mux.Handle("/healthz", s.metricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.Error("failed to write healthz response", "error", err)
		}
	})))
	mux.Handle("/readyz", s.metricsMiddleware(http.HandlerFunc(s.readyzHandler)))
	return mux
}

// Run serves MCP on the configured transport until ctx is done or the
// transport fails.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case TransportHTTP:
		return s.runHTTP(ctx)
	default:
		return s.runStdio(ctx)
	}
}

func (s *Server) runStdio(ctx context.Context) error {
	s.log.Info("server: mcp stdio transport running")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to run stdio transport: %w", err)
	}
	s.log.Info("server: stdio transport stopped")
	return nil
}

func (s *Server) runHTTP(ctx context.Context) error {
	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: mcp streamable http listening",
		"listenAddr", s.cfg.ListenAddr,
		"auth", len(s.cfg.AllowedTokens) > 0,
	)

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping",
			"reason", ctx.Err(),
			"listenAddr", s.cfg.ListenAddr,
		)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.log.Info("server: HTTP server shutdown complete")
		return nil
	case err := <-serveErrCh:
		s.log.Error("server: http server error causing shutdown",
			"error", err,
			"listenAddr", s.cfg.ListenAddr,
		)
		return err
	}
}

// readyzHandler reports ready only while the backend accepts connections.
func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Gateway.Ping(r.Context()); err != nil {
		s.log.Debug("readyz: database not reachable", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("database not ready\n")); err != nil {
			s.log.Error("failed to write readyz response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", "error", err)
	}
}

// authMiddleware wraps an HTTP handler with Bearer token authentication
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.unauthorized(w, "missing_header", "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			s.unauthorized(w, "invalid_format", "invalid authorization header format")
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			s.unauthorized(w, "empty_token", "empty token")
			return
		}

		allowed := false
		for _, allowedToken := range s.cfg.AllowedTokens {
			if token == allowedToken {
				allowed = true
				break
			}
		}
		if !allowed {
			s.unauthorized(w, "invalid_token", "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, reason, msg string) {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	w.Header().Set("WWW-Authenticate", `Bearer`)
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte("unauthorized: " + msg + "\n")); err != nil {
		s.log.Error("failed to write auth error response", "error", err)
	}
}

// metricsMiddleware wraps an HTTP handler with metrics collection
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := s.clock.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := fmt.Sprintf("%d", wrapped.statusCode)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPRequestDuration.Observe(s.clock.Since(startTime).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
