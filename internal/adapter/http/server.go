// Package http exposes the insight engine over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/envsense/insight-engine/internal/domain"
	"github.com/envsense/insight-engine/internal/engine"
)

// InsightBuilder evaluates insight requests.
type InsightBuilder interface {
	BuildInsight(ctx context.Context, req engine.Request) (domain.Insight, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the insight endpoint plus health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	builder    InsightBuilder
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, builder InsightBuilder, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		builder: builder,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/insight", s.handleInsightGet)
	mux.HandleFunc("POST /v1/insight", s.handleInsightPost)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// insightRequest is the POST /v1/insight body.
type insightRequest struct {
	UserID       string                  `json:"user_id"`
	Location     domain.Location         `json:"location"`
	Measurements []domain.RawMeasurement `json:"measurements,omitempty"`
}

// handleInsightGet serves provider-backed insights: the caller supplies only
// coordinates and the engine fetches measurements itself.
func (s *Server) handleInsightGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}

	s.serveInsight(w, r, engine.Request{
		UserID:   q.Get("user_id"),
		Location: domain.Location{Lat: lat, Lon: lon, Label: q.Get("label")},
	})
}

// handleInsightPost serves insights for caller-supplied measurements.
func (s *Server) handleInsightPost(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	s.serveInsight(w, r, engine.Request{
		UserID:       req.UserID,
		Location:     req.Location,
		Measurements: req.Measurements,
	})
}

func (s *Server) serveInsight(w http.ResponseWriter, r *http.Request, req engine.Request) {
	insight, err := s.builder.BuildInsight(r.Context(), req)
	if err != nil {
		s.writeInsightError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

// writeInsightError maps engine errors to HTTP statuses. Incomplete input is
// the caller's problem (422); everything else is ours (500).
func (s *Server) writeInsightError(w http.ResponseWriter, req engine.Request, err error) {
	var incomplete *domain.IncompleteDataError
	if errors.As(err, &incomplete) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.logger.Error("insight request failed", "error", err, "user_id", req.UserID)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
