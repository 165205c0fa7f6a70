package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/notify"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
func (s *NotifyServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects/{project}/events", s.handlePublish)
	mux.HandleFunc("GET /v1/projects/{project}/events", s.handleHistory)
	mux.HandleFunc("GET /v1/projects/{project}/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/projects/{project}/subscribers", s.handleSubscriberCount)
	mux.HandleFunc("GET /v1/projects/{project}/simulation", s.handleGetSimulation)
	mux.HandleFunc("POST /v1/projects/{project}/simulation", s.handleStartSimulation)
	mux.HandleFunc("DELETE /v1/projects/{project}/simulation", s.handleStopSimulation)
	mux.HandleFunc("GET /v1/projects/{project}/archive", s.handleArchive)
	mux.HandleFunc("GET /v1/projects/{project}/actors", s.handleActors)
	mux.HandleFunc("GET /v1/subscribers/{id}/status", s.handleSubscriberStatus)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return AuthMiddleware(authToken, mux)
}

// publishInput is the body of POST /v1/projects/{project}/events.
type publishInput struct {
	ID        string          `json:"id,omitempty"`
	Kind      model.Kind      `json:"kind"`
	ActorID   string          `json:"actor_id,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// handlePublish handles POST /v1/projects/{project}/events.
func (s *NotifyServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	var in publishInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev, err := s.PublishEvent(r.Context(), model.Event{
		ID:        in.ID,
		Kind:      in.Kind,
		ProjectID: r.PathValue("project"),
		ActorID:   in.ActorID,
		Timestamp: in.Timestamp,
		Payload:   in.Payload,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// handleHistory handles GET /v1/projects/{project}/events.
func (s *NotifyServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	project := r.PathValue("project")
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": project,
		"events":     s.engine.History(project, limit),
	})
}

// handleSubscriberCount handles GET /v1/projects/{project}/subscribers.
func (s *NotifyServer) handleSubscriberCount(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": project,
		"active":     s.engine.ActiveSubscriberCount(project),
	})
}

// handleSubscriberStatus handles GET /v1/subscribers/{id}/status.
func (s *NotifyServer) handleSubscriberStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": s.engine.ConnectionStatus(id).String(),
	})
}

// simulationInput is the optional body of POST /v1/projects/{project}/simulation.
type simulationInput struct {
	IntervalMS int64  `json:"interval_ms,omitempty"`
	JitterMS   int64  `json:"jitter_ms,omitempty"`
	MaxEvents  int    `json:"max_events,omitempty"`
	Seed       uint64 `json:"seed,omitempty"`
}

// handleStartSimulation handles POST /v1/projects/{project}/simulation.
func (s *NotifyServer) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	var in simulationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.IntervalMS < 0 || in.JitterMS < 0 || in.MaxEvents < 0 {
		writeError(w, http.StatusBadRequest, "interval_ms, jitter_ms and max_events must not be negative")
		return
	}

	project := r.PathValue("project")
	sim, err := s.StartSimulation(project, notify.SimulationConfig{
		Interval:  time.Duration(in.IntervalMS) * time.Millisecond,
		Jitter:    time.Duration(in.JitterMS) * time.Millisecond,
		MaxEvents: in.MaxEvents,
		Seed:      in.Seed,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"project_id": sim.ProjectID(),
		"running":    true,
	})
}

// handleGetSimulation handles GET /v1/projects/{project}/simulation.
func (s *NotifyServer) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	sim, ok := s.Simulation(project)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"project_id": project, "running": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": project,
		"running":    true,
		"published":  sim.Published(),
	})
}

// handleStopSimulation handles DELETE /v1/projects/{project}/simulation.
func (s *NotifyServer) handleStopSimulation(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	n, err := s.StopSimulation(project)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": project,
		"running":    false,
		"published":  n,
	})
}

// handleArchive handles GET /v1/projects/{project}/archive.
func (s *NotifyServer) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "archive is not enabled")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	project := r.PathValue("project")
	evts, err := s.store.ListProjectEvents(r.Context(), project, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": project,
		"events":     evts,
	})
}

// handleActors handles GET /v1/projects/{project}/actors. The optional
// ?active_within= duration narrows the roster to recently active actors.
func (s *NotifyServer) handleActors(w http.ResponseWriter, r *http.Request) {
	if s.presence == nil {
		writeError(w, http.StatusNotFound, "actor tracking is not enabled")
		return
	}
	var within time.Duration
	if v := r.URL.Query().Get("active_within"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "active_within must be a non-negative duration")
			return
		}
		within = d
	}
	project := r.PathValue("project")
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": project,
		"actors":     s.presence.Roster(project, within),
	})
}

// handleHealth handles GET /v1/health.
func (s *NotifyServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.engine.Closed() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "closed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseLimit reads the optional ?limit= query parameter. It writes a 400 and
// reports false when the value is not a non-negative integer.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// writeServiceError maps engine and server errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var ie inputError
	switch {
	case errors.As(err, &ie),
		errors.Is(err, notify.ErrMissingProject),
		errors.Is(err, notify.ErrMissingKind):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, notify.ErrEngineClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrSimulationRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoSimulation):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
