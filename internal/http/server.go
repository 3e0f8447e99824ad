// Package http exposes the ledger over a JSON API. Every /api route except
// user registration requires a bearer token that resolves to an owner.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hucha/internal/core"
	"hucha/internal/ledger"
)

type Server struct {
	http.Server

	svc     *ledger.Service
	limiter *rateLimiter
}

type contextKey string

const requestIDKey contextKey = "request_id"

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, svc *ledger.Service) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:     svc,
		limiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("POST /api/users", s.withTracing(s.handleRegisterUser))
	mux.HandleFunc("GET /api/users/me", s.withAuth(s.handleMe))

	mux.HandleFunc("GET /api/accounts", s.withAuth(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.withAuth(s.handleCreateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.withAuth(s.handleDeleteAccount))

	mux.HandleFunc("GET /api/categories", s.withAuth(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withAuth(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withAuth(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/movements", s.withAuth(s.handleListMovements))
	mux.HandleFunc("POST /api/movements", s.withAuth(s.handleCreateMovement))
	mux.HandleFunc("PUT /api/movements/{id}", s.withAuth(s.handleUpdateMovement))
	mux.HandleFunc("DELETE /api/movements/{id}", s.withAuth(s.handleDeleteMovement))

	mux.HandleFunc("GET /api/goals", s.withAuth(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.withAuth(s.handleCreateGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", s.withAuth(s.handleDeleteGoal))
	mux.HandleFunc("POST /api/goals/{id}/contribute", s.withAuth(s.handleContribute))

	mux.HandleFunc("GET /api/dashboard", s.withAuth(s.handleDashboard))

	return s
}

// ownerHandler receives the authenticated owner resolved from the bearer token.
type ownerHandler func(w http.ResponseWriter, r *http.Request, owner *core.User)

// withAuth resolves the Authorization header to an owner and rejects the
// request when no user carries the token.
func (s *Server) withAuth(next ownerHandler) http.HandlerFunc {
	return s.withTracing(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		owner, err := s.svc.ResolveOwner(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		next(w, r, owner)
	})
}

// withTracing adds a request ID, request logging, rate limiting on writes,
// and baseline security headers.
func (s *Server) withTracing(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.limiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{clients: make(map[string]*clientInfo)}
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 write requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}
