package api

import (
	"encoding/json"
	"net/http"

	"notesync/engine"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// APIResponse is the standard JSON envelope for all control-surface
// endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeSuccess sends a successful JSON response with data.
func writeSuccess(ctx rweb.Context, status int, data interface{}) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: true, Data: data})
}

// writeError sends an error JSON response.
func writeError(ctx rweb.Context, status int, message string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: false, Error: message})
}

// Handlers binds the control-surface endpoints to one engine instance.
type Handlers struct {
	eng *engine.SyncEngine
}

// NewHandlers wraps the engine for the route table.
func NewHandlers(eng *engine.SyncEngine) *Handlers {
	return &Handlers{eng: eng}
}

// SyncStatus handles GET /api/v1/sync/status
// Returns engine state for the UI status indicator: enabled, syncing,
// last-sync time, current notice.
func (h *Handlers) SyncStatus(ctx rweb.Context) error {
	return writeSuccess(ctx, http.StatusOK, h.eng.Status())
}

// SyncNow handles POST /api/v1/sync/now
// Triggers an immediate attempt. 409 when disabled or already in flight.
func (h *Handlers) SyncNow(ctx rweb.Context) error {
	if err := h.eng.SyncNow(); err != nil {
		return writeError(ctx, http.StatusConflict, err.Error())
	}
	return writeSuccess(ctx, http.StatusOK, h.eng.Status())
}

// SyncEnable handles POST /api/v1/sync/enable
// Resumes scheduling after a manual pause. Requires an installed token.
func (h *Handlers) SyncEnable(ctx rweb.Context) error {
	if h.eng.Token() == "" {
		return writeError(ctx, http.StatusConflict, "no session; install a token first")
	}
	h.eng.Enable()
	return writeSuccess(ctx, http.StatusOK, h.eng.Status())
}

// SyncDisable handles POST /api/v1/sync/disable
// Pauses scheduling without ending the session. An attempt already in
// flight completes but its results are discarded.
func (h *Handlers) SyncDisable(ctx rweb.Context) error {
	h.eng.Disable()
	return writeSuccess(ctx, http.StatusOK, h.eng.Status())
}

// SetSession handles PUT /api/v1/session
// Installs a bearer token and enables sync.
// Request body: {"token": "..."}
func (h *Handlers) SetSession(ctx rweb.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		return writeError(ctx, http.StatusBadRequest, "token is required")
	}

	h.eng.SetToken(req.Token)
	return writeSuccess(ctx, http.StatusOK, h.eng.Status())
}

// ClearSession handles DELETE /api/v1/session
// Logs out: scheduling stops and the working list collapses to local-only
// state.
func (h *Handlers) ClearSession(ctx rweb.Context) error {
	h.eng.ClearToken()
	return writeSuccess(ctx, http.StatusOK, h.eng.Status())
}

// ListItems handles GET /api/v1/items
func (h *Handlers) ListItems(ctx rweb.Context) error {
	items, err := h.eng.Items()
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to list items"), "list items")
		return writeError(ctx, http.StatusInternalServerError, "failed to list items")
	}
	return writeSuccess(ctx, http.StatusOK, items)
}

// CreateItem handles POST /api/v1/items
// Mints a new local item with an empty record.
func (h *Handlers) CreateItem(ctx rweb.Context) error {
	id, err := h.eng.CreateItem()
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to create item"), "create item")
		return writeError(ctx, http.StatusInternalServerError, "failed to create item")
	}
	return writeSuccess(ctx, http.StatusCreated, map[string]string{"id": id})
}

// UpdateItem handles PUT /api/v1/items/:id
// Request body: {"val": "..."}
func (h *Handlers) UpdateItem(ctx rweb.Context) error {
	id := ctx.Request().Param("id")

	var req struct {
		Value *string `json:"val"`
	}
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if req.Value == nil {
		return writeError(ctx, http.StatusBadRequest, "val is required")
	}

	if err := h.eng.UpdateItem(id, *req.Value); err != nil {
		return writeError(ctx, http.StatusNotFound, err.Error())
	}
	return writeSuccess(ctx, http.StatusOK, map[string]string{"id": id})
}

// DeleteItem handles DELETE /api/v1/items/:id
func (h *Handlers) DeleteItem(ctx rweb.Context) error {
	id := ctx.Request().Param("id")

	if err := h.eng.DeleteItem(id); err != nil {
		return writeError(ctx, http.StatusNotFound, err.Error())
	}
	return writeSuccess(ctx, http.StatusOK, map[string]string{"id": id})
}
