// Package http exposes the service's HTTP API: ingestion and batch
// triggers, processed-event reads, and the health/metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/pipeline"
)

const defaultListLimit = 50

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Stager fetches one feed window and stages its events.
type Stager interface {
	StageWindow(ctx context.Context, q domain.FeedQuery) (int, error)
}

// BatchRunner launches the enrichment job.
type BatchRunner interface {
	Start(ctx context.Context) error
}

// ProcessedReader lists processed events, newest first.
type ProcessedReader interface {
	ListProcessed(ctx context.Context, limit int) ([]domain.ProcessedEvent, error)
}

// Server exposes the HTTP API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	stager    Stager
	batch     BatchRunner
	processed ProcessedReader
}

// NewServer wires the API routes plus /healthz, /readyz, and /metrics.
func NewServer(addr string, stager Stager, batch BatchRunner, processed ProcessedReader,
	ready ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:    logger,
		stager:    stager,
		batch:     batch,
		processed: processed,
	}

	r.Post("/earthquakes", s.handleStage)
	r.Post("/batch/earthquakes", s.handleBatch)
	r.Get("/earthquakes/processed", s.handleListProcessed)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

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

// handleStage fetches one feed window and stages its events. The window
// and filters come from query parameters; an absent window defaults to
// the previous day.
func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := domain.FeedQuery{
		StartTime:    params.Get("starttime"),
		EndTime:      params.Get("endtime"),
		MinMagnitude: params.Get("minmagnitude"),
		Latitude:     params.Get("latitude"),
		Longitude:    params.Get("longitude"),
		MaxRadiusKm:  params.Get("maxradiuskm"),
		OrderBy:      params.Get("orderby"),
	}

	staged, err := s.stager.StageWindow(r.Context(), q)
	if err != nil {
		s.logger.Error("staging failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "feed ingestion failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"staged": staged})
}

// handleBatch starts the enrichment job asynchronously. The job outlives
// the request, so it runs on a context detached from the request's.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	err := s.batch.Start(context.WithoutCancel(r.Context()))
	if errors.Is(err, pipeline.ErrJobRunning) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("batch trigger failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start job"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleListProcessed(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := s.processed.ListProcessed(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing processed events failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
		return
	}
	if events == nil {
		events = []domain.ProcessedEvent{}
	}
	writeJSON(w, http.StatusOK, events)
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
