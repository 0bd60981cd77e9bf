package watcher

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/argowatch/internal/httpserver"
	"github.com/wisbric/argowatch/pkg/task"
)

// Handler provides the HTTP handlers of the tasks API. Submission persists
// the task and schedules the engine on a background goroutine tied to the
// process context; queries read the store directly.
type Handler struct {
	store   task.Store
	engine  *Engine
	logger  *slog.Logger
	baseCtx context.Context
}

// NewHandler creates a tasks Handler. baseCtx bounds the lifetime of
// background verifications; it should be the process context, not a request
// context.
func NewHandler(baseCtx context.Context, store task.Store, engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		engine:  engine,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Routes returns a chi.Router with the task routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleSubmit)
	r.Get("/", h.handleHistory)
	r.Get("/{id}", h.handleStatus)
	return r
}

// acceptedResponse is the body returned for an accepted submission.
type acceptedResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var t task.Task
	if !httpserver.BindJSON(w, r, &t) {
		return
	}

	// Ids are never chosen by the client.
	t.ID = uuid.New().String()

	if err := h.store.SetCurrentTask(r.Context(), &t, task.StatusInProgress); err != nil {
		h.logger.Error("storing task", "task_id", t.ID, "error", err)
		httpserver.Error(w, http.StatusInternalServerError, "internal_error", "failed to store task")
		return
	}

	go h.engine.Run(h.baseCtx, t)

	httpserver.JSON(w, http.StatusAccepted, acceptedResponse{
		Status: task.StatusAccepted,
		ID:     t.ID,
	})
}

// statusResponse is the body returned for a task status query.
type statusResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.store.GetTaskStatus(r.Context(), id)
	if err != nil {
		h.logger.Error("querying task status", "task_id", id, "error", err)
		httpserver.Error(w, http.StatusInternalServerError, "internal_error", "failed to query task status")
		return
	}

	httpserver.JSON(w, http.StatusOK, statusResponse{Status: status})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, err := strconv.ParseFloat(query.Get("from_timestamp"), 64)
	if err != nil {
		httpserver.Error(w, http.StatusBadRequest, "bad_request", "from_timestamp must be seconds since the epoch")
		return
	}

	filter := task.HistoryFilter{From: from, App: query.Get("app")}
	if raw := query.Get("to_timestamp"); raw != "" {
		to, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpserver.Error(w, http.StatusBadRequest, "bad_request", "to_timestamp must be seconds since the epoch")
			return
		}
		filter.To = to
	}

	tasks, err := h.store.GetState(r.Context(), filter)
	if err != nil {
		h.logger.Error("querying task history", "error", err)
		httpserver.Error(w, http.StatusInternalServerError, "internal_error", "failed to query task history")
		return
	}

	httpserver.JSON(w, http.StatusOK, tasks)
}

// HandleAppList serves the distinct application names the store retains.
func (h *Handler) HandleAppList(w http.ResponseWriter, r *http.Request) {
	apps, err := h.store.GetAppList(r.Context())
	if err != nil {
		h.logger.Error("querying app list", "error", err)
		httpserver.Error(w, http.StatusInternalServerError, "internal_error", "failed to query app list")
		return
	}

	httpserver.JSON(w, http.StatusOK, apps)
}
