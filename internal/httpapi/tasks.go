package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/contentdesk/internal/tasks"
)

type createTaskRequest struct {
	Title            string           `json:"title"`
	Due              string           `json:"due"`
	AssigneeUsername string           `json:"assignee_username"`
	Description      string           `json:"description"`
	Instructions     string           `json:"instructions"`
	Refs             []tasks.RefInput `json:"refs"`
	PrereqIDs        []int64          `json:"prereq_ids"`
}

type refRequest struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type prereqRequest struct {
	RequiresTaskID int64 `json:"requires_task_id"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	due, err := parseDue(req.Due)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	id, err := s.svc.CreateTask(r.Context(), tasks.CreateTaskRequest{
		Title:          req.Title,
		Due:            due,
		AssigneeHandle: req.AssigneeUsername,
		Description:    req.Description,
		Instructions:   req.Instructions,
		Refs:           req.Refs,
		PrereqIDs:      req.PrereqIDs,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	s.metrics.TasksCreated.Inc()
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

// handleUpdateTask decodes the patch from raw JSON so that an absent field
// can be told apart from one present with a null value.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	var raw map[string]jsonRaw
	if err := decodeJSON(r, &raw); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var req tasks.UpdateTaskRequest
	for _, f := range []struct {
		key  string
		dest **string
	}{
		{"title", &req.Title},
		{"status", &req.Status},
		{"description", &req.Description},
		{"instructions", &req.Instructions},
	} {
		v, present := raw[f.key]
		if !present {
			continue
		}
		val, err := v.stringValue()
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		*f.dest = val
	}
	if v, present := raw["due"]; present {
		req.DueSet = true
		val, err := v.stringValue()
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if val != nil && strings.TrimSpace(*val) != "" {
			due, err := parseDue(*val)
			if err != nil {
				respondDomainError(w, r, err)
				return
			}
			req.Due = due
		}
	}
	if v, present := raw["assignee_username"]; present {
		req.AssigneeSet = true
		val, err := v.stringValue()
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		req.AssigneeHandle = val
	}

	if err := s.svc.UpdateTask(r.Context(), id, req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleAddReference(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}
	var req refRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.svc.AddReference(r.Context(), id, req.URL, req.Caption); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAddPrerequisite(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}
	var req prereqRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.svc.AddPrerequisite(r.Context(), id, req.RequiresTaskID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}
	view, err := s.svc.GetTask(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := tasks.ListFilter{
		Status:         tasks.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		AssigneeHandle: r.URL.Query().Get("assignee"),
	}
	if rawDue := strings.TrimSpace(r.URL.Query().Get("due")); rawDue != "" {
		due, err := parseDue(rawDue)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		filter.Due = due
	}

	summaries, err := s.svc.ListTasks(r.Context(), filter)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": summaries})
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id")
		return 0, false
	}
	return id, true
}

// jsonRaw defers decoding of a field so null can be told apart from a
// string value after presence has already been established.
type jsonRaw []byte

func (v *jsonRaw) UnmarshalJSON(b []byte) error {
	*v = append((*v)[:0], b...)
	return nil
}

func (v jsonRaw) stringValue() (*string, error) {
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func parseDue(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	due, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, tasks.ErrInvalidDue
	}
	return &due, nil
}
