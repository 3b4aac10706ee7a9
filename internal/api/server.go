// Package api exposes the HTTP interface for the monitoring service:
// registration, login, notification preferences, and read-only views over
// recorded earthquakes.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/ratelimit"
	"github.com/jdsantos/quakewatch/internal/telemetry"
)

// IDGenerator mints session tokens.
type IDGenerator interface {
	NewID() (string, error)
}

// Server wires HTTP handlers to the stores and the notification pipeline.
type Server struct {
	router     chi.Router
	users      monitor.UserStore
	settings   monitor.SettingsStore
	events     monitor.EventStore
	notifier   monitor.Notifier
	sessions   *SessionStore
	idGen      IDGenerator
	clock      monitor.Clock
	logger     *zap.Logger
	ready      func(context.Context) error
	limiter    *ratelimit.Limiter
	startedAt  time.Time
	reqTimeout time.Duration
}

// Deps are the collaborators a Server needs. Ready may be nil, in which case
// the readiness probe always succeeds. A nil AuthLimiter gets a default
// bucket tuned for interactive logins.
type Deps struct {
	Users       monitor.UserStore
	Settings    monitor.SettingsStore
	Events      monitor.EventStore
	Notifier    monitor.Notifier
	Sessions    *SessionStore
	IDGen       IDGenerator
	Clock       monitor.Clock
	Logger      *zap.Logger
	Ready       func(context.Context) error
	AuthLimiter *ratelimit.Limiter
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		users:      deps.Users,
		settings:   deps.Settings,
		events:     deps.Events,
		notifier:   deps.Notifier,
		sessions:   deps.Sessions,
		idGen:      deps.IDGen,
		clock:      deps.Clock,
		logger:     deps.Logger,
		ready:      deps.Ready,
		limiter:    deps.AuthLimiter,
		startedAt:  deps.Clock.Now(),
		reqTimeout: 60 * time.Second,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(ratelimit.Config{RPS: 2, Burst: 10})
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(s.reqTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Group(func(r chi.Router) {
			r.Use(s.authRateLimitMiddleware)
			r.Post("/auth/register", s.register)
			r.Post("/auth/login", s.login)
		})
		r.Get("/earthquakes/latest", s.latestEarthquake)
		r.Route("/locations", func(r chi.Router) {
			r.Get("/provinces", s.listProvinces)
			r.Get("/{province}/cities", s.listCities)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/dashboard", s.dashboard)
			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.updateSettings)
			r.Post("/notifications/test", s.testNotification)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(s.clock.Now().Sub(s.startedAt).Seconds()),
	}
	if latest, err := s.events.Latest(r.Context()); err == nil {
		payload["latest_event_at"] = latest.RecordedAt
	}
	writeJSON(w, http.StatusOK, payload)
}

// currentUser returns the account the auth middleware resolved.
func currentUser(r *http.Request) (monitor.User, bool) {
	u, ok := r.Context().Value(userKey{}).(monitor.User)
	return u, ok
}

// authMiddleware resolves "Authorization: Bearer <token>" to an account via
// the session store.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, ok := s.sessions.Lookup(r.Context(), token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		user, err := s.users.GetByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authRateLimitMiddleware rejects clients that hammer the credential
// endpoints. Keyed by remote host so one abusive client does not lock out
// the rest.
func (s *Server) authRateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.Allow(host) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return ""
	}
	return auth[len(prefix):]
}

type userKey struct{}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
