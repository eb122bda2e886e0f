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

	"github.com/JakeFAU/multisource-scraper/internal/history"
	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/metrics"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	defaultRequestTimeout = 5 * time.Minute
	readinessTimeout      = 3 * time.Second
)

// Service is the trigger surface behind the handlers. *manager.Manager
// satisfies it.
type Service interface {
	Run(ctx context.Context, targets map[string]scrape.Params) (manager.Report, error)
	SearchJobs(ctx context.Context, query, location string) ([]scrape.Record, error)
	Markets(ctx context.Context, markets []string) ([]scrape.Record, error)
	Odds(ctx context.Context, sports []string) ([]scrape.Record, error)
	Website(ctx context.Context, req manager.WebsiteRequest) ([]scrape.Record, error)
	Stats() (history.Stats, bool)
	History() []scrape.RunSummary
	Samples(ctx context.Context, limit int) (map[string][]scrape.Record, error)
	Dashboard(ctx context.Context) (manager.Dashboard, error)
}

// Config controls authentication and request limits.
type Config struct {
	// APIKey, when set, is required on every /v1 request via X-API-Key or
	// the api_key query parameter.
	APIKey string
	// RequestTimeout bounds /v1 handlers except the event stream.
	RequestTimeout time.Duration
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEvents mounts h (usually a websocket broadcaster) at GET /v1/events.
func WithEvents(h http.Handler) Option {
	return func(s *Server) { s.events = h }
}

// WithReadiness adds a named check to /readyz.
func WithReadiness(name string, check ReadinessCheck) Option {
	return func(s *Server) {
		if check != nil {
			s.checks[name] = check
		}
	}
}

// Server wires HTTP handlers to the scraping service.
type Server struct {
	router  chi.Router
	service Service
	cfg     Config
	events  http.Handler
	checks  map[string]ReadinessCheck
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service Service, cfg Config, opts ...Option) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		service: service,
		cfg:     cfg,
		checks:  map[string]ReadinessCheck{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("api")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		if s.events != nil {
			r.Method(http.MethodGet, "/events", s.events)
		}
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(cfg.RequestTimeout))
			r.Post("/runs", s.runTargets)
			r.Post("/jobs/search", s.searchJobs)
			r.Get("/financial/markets", s.markets)
			r.Get("/odds/sports", s.odds)
			r.Post("/website", s.website)
			r.Get("/stats", s.stats)
			r.Get("/history", s.history)
			r.Get("/dashboard", s.dashboard)
			r.Get("/dashboard/samples", s.samples)
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
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID stored by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	body := `{"status":"error","error":"request timed out"}`
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, body)
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

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON writes payload with "status": "success" unless payload sets its
// own status.
func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	if _, ok := payload["status"]; !ok {
		payload["status"] = statusSuccess
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": statusError, "error": msg})
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scrape.ErrUnknownCategory):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch scrape.ErrorKind(err) {
	case scrape.KindCanceled:
		return http.StatusGatewayTimeout
	case scrape.KindSource, scrape.KindFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
