// Package api exposes cycles, searches and user configuration over HTTP for
// the chat bot front end.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/rsilvagit/deptos/internal/filter"
	"github.com/rsilvagit/deptos/internal/pipeline"
	"github.com/rsilvagit/deptos/internal/store"
)

// Runner runs cycles and searches. *pipeline.Runner implements it.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
	Search(ctx context.Context, userID string) (pipeline.SearchResult, error)
}

// Users reads and writes per-user criteria. *store.UserConfigs implements it.
type Users interface {
	IDs() ([]string, error)
	Get(id string) (filter.Criteria, error)
	Update(id string, patch map[string]json.RawMessage) (filter.Criteria, error)
}

// Handler serves the HTTP routes. Cycles and searches share one slot;
// a request arriving while another holds it gets 409.
type Handler struct {
	runner Runner
	users  Users
	busy   sync.Mutex
}

func NewHandler(runner Runner, users Users) *Handler {
	return &Handler{runner: runner, users: users}
}

// Router returns the routes wrapped in request logging.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/runs", h.run).Methods(http.MethodPost)
	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/config", h.getConfig).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/config", h.putConfig).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/search", h.search).Methods(http.MethodPost)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	if !h.busy.TryLock() {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer h.busy.Unlock()

	// A cycle commits the stores at its end; a dropped client must not cut it short.
	rep, err := h.runner.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	if !h.busy.TryLock() {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer h.busy.Unlock()

	res, err := h.runner.Search(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadGateway, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listUsers(w http.ResponseWriter, _ *http.Request) {
	ids, err := h.users.IDs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"users": ids})
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.users.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) putConfig(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object: "+err.Error())
		return
	}

	c, err := h.users.Update(mux.Vars(r)["id"], patch)
	switch {
	case errors.Is(err, store.ErrUnknownKey), errors.Is(err, filter.ErrInvalidCriteria):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	})
}
