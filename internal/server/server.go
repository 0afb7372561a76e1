// Package server assembles the HTTP surface: routing plus the middleware
// chain for request ids, logging, rate limiting, and hardening headers.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cliptide/internal/api"
	"cliptide/internal/observability/logging"
)

// Config controls the listener and the cross-cutting middleware.
type Config struct {
	Addr      string
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Logger    *slog.Logger
}

// Server owns the configured http.Server and its rate limiter.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	limiter    *rateLimiter
}

// New wires the API handlers into a ready-to-run server.
func New(handler *api.Handler, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Health)
	mux.HandleFunc("/api/categories", handler.Categories)
	mux.HandleFunc("/api/videos", handler.Videos)
	mux.HandleFunc("/api/videos/trending", handler.Trending)
	mux.HandleFunc("/api/videos/search", handler.SearchVideos)
	mux.HandleFunc("/api/videos/", handler.VideoByID)
	mux.HandleFunc("/api/comments/", handler.CommentByID)
	mux.HandleFunc("/api/studio/videos", handler.StudioVideos)
	mux.HandleFunc("/api/studio/videos/", handler.StudioVideoByID)
	mux.HandleFunc("/api/feed/subscriptions", handler.SubscriptionFeed)
	mux.HandleFunc("/api/subscriptions", handler.Subscriptions)
	mux.HandleFunc("/api/subscriptions/", handler.SubscriptionByCreator)
	mux.HandleFunc("/api/webhooks/identity", handler.IdentityWebhook)
	mux.HandleFunc("/api/webhooks/media", handler.MediaWebhook)
	mux.HandleFunc("/api/workflows/callback", handler.WorkflowCallback)

	limiter := newRateLimiter(cfg.RateLimit)

	var chain http.Handler = mux
	chain = securityHeadersMiddleware(cfg.Security, chain)
	chain = rateLimitMiddleware(limiter, chain)
	chain = logging.RequestLogger(logging.RequestLoggerConfig{Logger: logger})(chain)
	chain = requestIDMiddleware(nil, chain)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           chain,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger:  logger,
		limiter: limiter,
	}
}

// Handler exposes the fully wired middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer exposes the underlying http.Server for the process runner.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Shutdown stops accepting connections, drains in-flight requests, and
// releases the limiter's Redis connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.limiter.Close(); err == nil {
		err = closeErr
	}
	return err
}

func rateLimitMiddleware(limiter *rateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.AllowRequest() {
			api.WriteRequestError(w, api.RateLimitedError())
			return
		}
		if isMutation(r.Method) && !mutationLimitExempt(r.URL.Path) {
			allowed, retryAfter, err := limiter.AllowMutation(r.Context(), callerKey(r))
			if err != nil {
				// Fail open: a flaky counter backend must not take
				// writes down with it.
				logging.FromContext(r.Context()).Warn("mutation limiter unavailable", "error", err)
			} else if !allowed {
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter/time.Second)+1))
				}
				api.WriteRequestError(w, api.RateLimitedError())
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Provider redeliveries must never bounce off the caller throttle.
func mutationLimitExempt(path string) bool {
	return strings.HasPrefix(path, "/api/webhooks/") || path == "/api/workflows/callback"
}

func callerKey(r *http.Request) string {
	if subject := strings.TrimSpace(r.Header.Get(api.IdentityHeader)); subject != "" {
		return "subject:" + subject
	}
	return "ip:" + extractClientIP(r)
}

func extractClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
