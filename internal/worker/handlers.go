package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	gormdb "github.com/thebtf/textclust/internal/db/gorm"
	"github.com/thebtf/textclust/internal/failure"
	"github.com/thebtf/textclust/internal/telemetry"
	"github.com/thebtf/textclust/pkg/models"
)

// Error codes returned in the "error" field besides the failure kinds.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeTooManyTexts    = "too_many_texts"
	ErrCodeTooLarge        = "request_too_large"
	ErrCodeInternal        = "internal"
	ErrCodeTimeout         = "timeout"
	ErrCodeNotFound        = "not_found"
	ErrCodeUnavailable     = "unavailable"
	internalFailureMessage = "clustering failed"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Store      string `json:"store"`
	Driver     string `json:"driver,omitempty"`
	Analyses   int64  `json:"analyses"`
	Uptime     string `json:"uptime"`
	SSEClients int    `json:"sse_clients"`
	Presets    int    `json:"presets"`
}

// PresetInfo describes one preset in GET /api/presets.
type PresetInfo struct {
	Params      map[string]any `json:"params,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Algorithm   string         `json:"algorithm"`
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Group(func(r chi.Router) {
			r.Use(s.requireReady)
			r.Get("/models", s.handleModels)
			r.Get("/presets", s.handlePresets)
			r.Post("/cluster", s.handleCluster)
			r.Get("/analyses", s.handleListAnalyses)
			r.Get("/analyses/{id}", s.handleGetAnalysis)
			r.Delete("/analyses/{id}", s.handleDeleteAnalysis)
			r.Get("/events", s.sseBroadcaster.HandleSSE)
		})
	})
}

// requireReady rejects API calls until the service is started.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "service is starting")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Store:      "disabled",
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		SSEClients: s.sseBroadcaster.ClientCount(),
		Presets:    len(s.pipeline.Presets().All()),
	}
	if !s.ready.Load() {
		resp.Status = "starting"
	}
	if s.store != nil {
		resp.Store = "ok"
		resp.Driver = s.store.Driver()
		if err := s.store.Ping(); err != nil {
			resp.Store = "error"
			log.Warn().Err(err).Msg("Database ping failed")
		}
	}
	if s.analysisStore != nil && resp.Store == "ok" {
		n, err := s.analysisStore.CountAnalyses(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count analyses")
		}
		resp.Analyses = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Models())
}

func (s *Service) handlePresets(w http.ResponseWriter, _ *http.Request) {
	registry := s.pipeline.Presets()
	out := make([]PresetInfo, 0, len(registry.All()))
	for _, p := range registry.All() {
		algorithm, params, err := registry.Resolve(p.Name)
		if err != nil {
			continue
		}
		out = append(out, PresetInfo{
			Name:        p.Name,
			Description: p.Description,
			Algorithm:   algorithm,
			Params:      params,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleCluster(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "failed to read request body")
		return
	}

	var req models.ClusterRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "request body is not valid JSON")
		return
	}
	if req.Texts == nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "texts is required")
		return
	}
	if len(req.Texts) > s.config.MaxTexts {
		writeError(w, http.StatusBadRequest, ErrCodeTooManyTexts, "too many texts in one request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.recorder.Record(r.Context(), req.Algorithm(), telemetry.OutcomeOverloaded, len(req.Texts), 0, s.requestTimeout())
			writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "timed out waiting for a clustering slot")
		}
		// the client went away otherwise
		return
	}
	defer s.sem.Release(1)

	resp, err := s.pipeline.ClusterTexts(ctx, &req)
	if err != nil {
		writeClusterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) requestTimeout() time.Duration {
	if s.config.RequestTimeoutSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.config.RequestTimeoutSeconds) * time.Second
}

// writeClusterError maps a pipeline failure to a status code. Internal
// failures get a fixed message.
func writeClusterError(w http.ResponseWriter, err error) {
	var fe *failure.Error
	if errors.As(err, &fe) && fe.Kind.BadInput() {
		writeError(w, http.StatusBadRequest, string(fe.Kind), fe.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, internalFailureMessage)
}

func (s *Service) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.analysisStore == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "analysis storage is disabled")
		return
	}
	limit := gormdb.ParseLimitParam(r, 50)
	list, err := s.analysisStore.ListAnalyses(r.Context(), r.URL.Query().Get("algorithm"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list analyses")
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list analyses")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Service) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analysisStore == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "analysis storage is disabled")
		return
	}
	a, err := s.analysisStore.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, gormdb.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "analysis not found")
	case err != nil:
		log.Error().Err(err).Msg("Failed to load analysis")
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load analysis")
	default:
		writeJSON(w, http.StatusOK, a)
	}
}

func (s *Service) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analysisStore == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "analysis storage is disabled")
		return
	}
	err := s.analysisStore.DeleteAnalysis(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, gormdb.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "analysis not found")
	case err != nil:
		log.Error().Err(err).Msg("Failed to delete analysis")
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to delete analysis")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// requestLogger logs each request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
