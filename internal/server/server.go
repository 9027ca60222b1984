// Package server exposes a Canvas client over HTTP: a read-only API proxy
// plus health, readiness and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/canvas-api-client/pkg/client"
	"github.com/Sternrassler/canvas-api-client/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ProxyPrefix is the route under which Canvas API paths are proxied.
const ProxyPrefix = "/canvas/"

// ProxyTimeout bounds a single proxied request, retries included.
const ProxyTimeout = 30 * time.Second

// hopHeaders are not copied from the upstream response.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
	"Upgrade":           true,
}

// Server serves the proxy routes.
type Server struct {
	client *client.Client
	redis  *redis.Client
	logger zerolog.Logger
}

// New creates a Server. redisClient may be nil, in which case /ready only
// checks that a session domain is configured.
func New(c *client.Client, redisClient *redis.Client, logger zerolog.Logger) *Server {
	return &Server{
		client: c,
		redis:  redisClient,
		logger: logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get(ProxyPrefix+"*", s.proxyHandler)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting Canvas proxy server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down Canvas proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed: Redis unavailable")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	if _, err := s.client.URL(ctx, "users/self"); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed: no Canvas domain")
		http.Error(w, "canvas not configured", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// proxyHandler forwards GET /canvas/<path>?<query> to /api/v1/<path>?<query>.
func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, ProxyPrefix)
	if path == "" {
		http.Error(w, "Canvas API path is required", http.StatusBadRequest)
		return
	}
	if u, err := url.Parse(path); err != nil || u.Host != "" || strings.HasPrefix(strings.ToLower(u.Scheme), "http") {
		http.Error(w, "Canvas API path must be relative", http.StatusBadRequest)
		return
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithTimeout(r.Context(), ProxyTimeout)
	defer cancel()

	resp, err := s.client.Get(ctx, path)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, client.ErrRateLimited):
			status = http.StatusTooManyRequests
		case errors.Is(err, client.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		case errors.Is(err, client.ErrForeignURL):
			status = http.StatusBadRequest
		}
		s.logger.Warn().Err(err).Str("path", path).Int("status", status).Msg("Canvas request failed")
		http.Error(w, fmt.Sprintf("Canvas request failed: %v", err), status)
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if hopHeaders[key] {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to write proxied response")
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Int("size", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
