package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/antoniostano/contentdesk/internal/digest"
	"github.com/antoniostano/contentdesk/internal/observability"
	"github.com/antoniostano/contentdesk/internal/tasks"
)

type Server struct {
	svc       *tasks.Service
	digest    *digest.Generator
	messenger digest.Messenger
	metrics   *observability.Metrics
}

func New(svc *tasks.Service, gen *digest.Generator, messenger digest.Messenger, metrics *observability.Metrics) *Server {
	return &Server{
		svc:       svc,
		digest:    gen,
		messenger: messenger,
		metrics:   metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/webhook", s.handleWebhook)
	r.Get("/api/digest", s.handleDigest)
	r.Post("/api/task", s.handleCreateTask)
	r.Patch("/api/task/{id}", s.handleUpdateTask)
	r.Post("/api/task/{id}/ref", s.handleAddReference)
	r.Post("/api/task/{id}/prereq", s.handleAddPrerequisite)
	r.Get("/api/task/{id}", s.handleGetTask)
	r.Get("/api/tasks", s.handleListTasks)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError emits the stable machine-readable envelope {"error": code}.
// Detail stays in the server-side logs.
func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{"error": code})
}

// respondDomainError maps domain errors onto the HTTP taxonomy: validation
// errors become 400s with their own codes, unknown entities 404, and
// anything else a generic 500 with the detail logged only.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, tasks.ErrTitleRequired):
		respondError(w, http.StatusBadRequest, "title_required")
	case errors.Is(err, tasks.ErrURLRequired):
		respondError(w, http.StatusBadRequest, "url_required")
	case errors.Is(err, tasks.ErrPrereqRequired):
		respondError(w, http.StatusBadRequest, "prereq_required")
	case errors.Is(err, tasks.ErrSelfDependency):
		respondError(w, http.StatusBadRequest, "self_dependency")
	case errors.Is(err, tasks.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, "invalid_status")
	case errors.Is(err, tasks.ErrInvalidDue):
		respondError(w, http.StatusBadRequest, "invalid_due")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("storage failure")
		respondError(w, http.StatusInternalServerError, "storage_failed")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		ww.Header().Set("X-Request-ID", id)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
