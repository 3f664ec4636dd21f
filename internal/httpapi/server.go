package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/reactor/internal/reactor"
	"github.com/roach88/reactor/internal/textfield"
)

// DefaultMaxBodyBytes bounds POST /actions bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// Server serves one textfield reactor.
type Server struct {
	reactor      *textfield.Reactor
	log          *slog.Logger
	registry     *prometheus.Registry
	metrics      *httpMetrics
	origins      []string
	maxBodyBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithRegistry sets the registry the HTTP metrics are registered with and
// /metrics exposes. Defaults to a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithCORSOrigins sets the allowed CORS origins. Defaults to "*".
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithMaxBodyBytes limits request bodies. Values <= 0 keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// New creates a server for r and registers its HTTP metrics.
func New(r *textfield.Reactor, opts ...Option) (*Server, error) {
	s := &Server{
		reactor:      r,
		log:          slog.Default(),
		origins:      []string{"*"},
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	m, err := newHTTPMetrics(s.registry)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	s.metrics = m
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.metrics.middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/actions", s.postAction)
	r.Get("/state", s.getState)
	r.Get("/stream", s.stream)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.reactor.Destroyed() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("destroyed"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)

	return r
}

// AcceptedResponse is the body of a successful POST /actions.
type AcceptedResponse struct {
	Status string         `json:"status"`
	Kind   textfield.Kind `json:"kind"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Seq   int64           `json:"seq"`
	State textfield.State `json:"state"`
}

func (s *Server) postAction(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	if s.reactor.Destroyed() {
		writeJSONError(w, http.StatusServiceUnavailable, reactor.ErrDestroyed.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var action textfield.Action
	if err := dec.Decode(&action); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := action.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.reactor.Send(action)
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Kind: action.Kind})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	snap := s.reactor.Snapshot()
	writeJSON(w, http.StatusOK, StateResponse{Seq: snap.Seq, State: snap.State})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"dur", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
