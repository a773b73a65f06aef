// Package http is the inbound gateway: it turns webhook deliveries from the
// telephony/chat provider into engine turns and exposes the config
// invalidation hook, health and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
)

// Engine is the part of the turn-processing core the gateway needs.
type Engine interface {
	ProcessTurn(ctx context.Context, req *domain.TurnRequest) (*domain.TurnResponse, error)
	Invalidate(tenantID, version string) bool
}

// Server handles the gateway routes.
type Server struct {
	engine   Engine
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer sets the metrics gatherer backing GET /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// NewHandler builds the gateway routes over the engine.
func NewHandler(engine Engine, opts ...ServerOption) http.Handler {
	s := &Server{
		engine:   engine,
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/v1/turn", s.handleTurn)
	r.Post("/v1/invalidate", s.handleInvalidate)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.engine.ProcessTurn(r.Context(), &req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("turn failed", "call_id", req.CallID, "turn", req.TurnIndex, "err", err)
		} else {
			s.logger.Warn("turn rejected", "call_id", req.CallID, "turn", req.TurnIndex, "err", err)
		}
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// invalidateRequest is the config-admin webhook body.
type invalidateRequest struct {
	TenantID string `json:"tenant_id"`
	Version  string `json:"version"`
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		s.writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	if !s.engine.Invalidate(req.TenantID, req.Version) {
		// The config source does not cache; the event is harmless.
		s.logger.Debug("invalidation ignored, config source does not cache", "tenant_id", req.TenantID)
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors onto gateway status codes. Contract violations
// are client errors; a held lease asks the provider to retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingCallID),
		errors.Is(err, domain.ErrMissingTenantID),
		errors.Is(err, domain.ErrBadTurnIndex):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLeaseHeld):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
