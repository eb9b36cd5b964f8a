package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListLockStatuses handles GET /modules/{module}/lock-statuses[?by=id].
func (h *ModuleHandler) ListLockStatuses(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	if r.URL.Query().Get("by") == "id" {
		out, err := h.service.LockStatusesByValue(r.Context(), module)
		if err != nil {
			writeServiceError(w, err, "list lock statuses")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out})
		return
	}
	out, err := h.service.LockStatusesByField(r.Context(), module)
	if err != nil {
		writeServiceError(w, err, "list lock statuses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

type AddLockStatusRequest struct {
	ValueID int64 `json:"valueId"`
}

// AddLockStatus handles POST /modules/{module}/lock-statuses.
func (h *ModuleHandler) AddLockStatus(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	var req AddLockStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ValueID <= 0 {
		writeError(w, http.StatusBadRequest, "valueId is required")
		return
	}
	if err := h.service.AddLockStatus(r.Context(), module, req.ValueID); err != nil {
		writeServiceError(w, err, "add lock status")
		return
	}
	out, err := h.service.LockStatusesByValue(r.Context(), module)
	if err != nil {
		writeServiceError(w, err, "list lock statuses")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": out})
}

// RemoveLockStatus handles DELETE /modules/{module}/lock-statuses/{value_id}.
func (h *ModuleHandler) RemoveLockStatus(w http.ResponseWriter, r *http.Request) {
	valueID, err := parseIDParam(r, "value_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.RemoveLockStatus(r.Context(), chi.URLParam(r, "module"), valueID); err != nil {
		writeServiceError(w, err, "remove lock status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
