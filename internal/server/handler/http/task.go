package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GTDKeeper/internal/middleware"
	"github.com/atinyakov/GTDKeeper/internal/models"
)

// TaskService defines the item and project operations required by TaskHandler.
type TaskService interface {
	GetAccountData(ctx context.Context, username string) (*models.AccountData, error)
	NextActions(ctx context.Context, username string) ([]models.NextAction, error)
	Export(ctx context.Context, username string) (models.Export, error)
	Import(ctx context.Context, username string, src models.AccountData) error

	CreateItem(ctx context.Context, username string, in models.ItemInput) (models.Item, error)
	UpdateItem(ctx context.Context, username string, id int64, patch models.ItemPatch) (models.Item, error)
	ToggleDone(ctx context.Context, username string, id int64) (models.Item, error)
	BatchUpdateItems(ctx context.Context, username string, patches []models.ItemPatch) (int, error)
	DeleteItem(ctx context.Context, username string, id int64) error

	CreateProject(ctx context.Context, username string, in models.ProjectInput) (models.Project, error)
	UpdateProject(ctx context.Context, username string, id int64, patch models.ProjectPatch) (models.Project, error)
	BatchUpdateProjects(ctx context.Context, username string, patches []models.ProjectPatch) (int, error)
	DeleteProject(ctx context.Context, username string, id int64) error
}

// TaskHandler serves the authenticated account's items and projects.
// Every route expects middleware.RequireSession in front of it.
type TaskHandler struct {
	TaskService TaskService
	Log         *zap.Logger
}

// Data handles GET /api/data.
func (h *TaskHandler) Data(w http.ResponseWriter, r *http.Request) {
	d, err := h.TaskService.GetAccountData(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// NextActions handles GET /api/next-actions.
func (h *TaskHandler) NextActions(w http.ResponseWriter, r *http.Request) {
	next, err := h.TaskService.NextActions(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// Export handles GET /api/export as a file download.
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := h.TaskService.Export(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="gtd-export.json"`)
	writeJSON(w, http.StatusOK, exp)
}

// Import handles POST /api/import, replacing the account's data set.
func (h *TaskHandler) Import(w http.ResponseWriter, r *http.Request) {
	var src models.AccountData
	if !decodeBody(w, r, &src) {
		return
	}
	if err := h.TaskService.Import(r.Context(), middleware.GetUserIDFromContext(r.Context()), src); err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeResult(w, http.StatusOK, "OK", "data imported", nil)
}

// CreateItem handles POST /api/items.
func (h *TaskHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in models.ItemInput
	if !decodeBody(w, r, &in) {
		return
	}
	it, err := h.TaskService.CreateItem(r.Context(), middleware.GetUserIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// UpdateItem handles PUT /api/items/{id}.
func (h *TaskHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.ItemPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	it, err := h.TaskService.UpdateItem(r.Context(), middleware.GetUserIDFromContext(r.Context()), id, patch)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// ToggleItem handles POST /api/items/{id}/toggle.
func (h *TaskHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	it, err := h.TaskService.ToggleDone(r.Context(), middleware.GetUserIDFromContext(r.Context()), id)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// BatchUpdateItems handles PUT /api/items/batch.
func (h *TaskHandler) BatchUpdateItems(w http.ResponseWriter, r *http.Request) {
	var patches []models.ItemPatch
	if !decodeBody(w, r, &patches) {
		return
	}
	n, err := h.TaskService.BatchUpdateItems(r.Context(), middleware.GetUserIDFromContext(r.Context()), patches)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": n})
}

// DeleteItem handles DELETE /api/items/{id}.
func (h *TaskHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.TaskService.DeleteItem(r.Context(), middleware.GetUserIDFromContext(r.Context()), id); err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateProject handles POST /api/projects.
func (h *TaskHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in models.ProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := h.TaskService.CreateProject(r.Context(), middleware.GetUserIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProject handles PUT /api/projects/{id}.
func (h *TaskHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.ProjectPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	p, err := h.TaskService.UpdateProject(r.Context(), middleware.GetUserIDFromContext(r.Context()), id, patch)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// BatchUpdateProjects handles PUT /api/projects/batch.
func (h *TaskHandler) BatchUpdateProjects(w http.ResponseWriter, r *http.Request) {
	var patches []models.ProjectPatch
	if !decodeBody(w, r, &patches) {
		return
	}
	n, err := h.TaskService.BatchUpdateProjects(r.Context(), middleware.GetUserIDFromContext(r.Context()), patches)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": n})
}

// DeleteProject handles DELETE /api/projects/{id}. Items of the project
// move back to the inbox.
func (h *TaskHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.TaskService.DeleteProject(r.Context(), middleware.GetUserIDFromContext(r.Context()), id); err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeResult(w, http.StatusBadRequest, "MISSING_INPUT", "invalid id", nil)
		return 0, false
	}
	return id, true
}
