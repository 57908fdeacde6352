// Package httpapi is the orchestrator's control surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	appsession "github.com/sealbridge/orchestrator/internal/application/session"
	"github.com/sealbridge/orchestrator/internal/domain/fault"
	"github.com/sealbridge/orchestrator/internal/domain/session"
	"github.com/sealbridge/orchestrator/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessionSvc *appsession.Service
	sseHub     *sse.Hub
	registry   *prometheus.Registry
	logger     zerolog.Logger
}

func NewServer(sessionSvc *appsession.Service, sseHub *sse.Hub, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	return &Server{
		sessionSvc: sessionSvc,
		sseHub:     sseHub,
		registry:   registry,
		logger:     logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.With(middleware.Timeout(30 * time.Second)).Post("/", s.createSession)
			r.With(middleware.Timeout(30 * time.Second)).Get("/{sessionId}", s.getSession)
			r.With(middleware.Timeout(30 * time.Second)).Post("/{sessionId}/payment", s.confirmPayment)
			r.Get("/{sessionId}/events", s.sessionEvents)
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondFault maps classified errors onto HTTP statuses.
func respondFault(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
	case fault.IsValidation(err):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	case fault.IsConflict(err):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case fault.Retryable(err):
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
