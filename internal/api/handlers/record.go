package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
)

// RecordHandler serves records and their status transitions.
type RecordHandler struct{ service *recordstatus.Service }

func NewRecordHandler(service *recordstatus.Service) *RecordHandler {
	return &RecordHandler{service: service}
}

type CreateRecordRequest struct {
	Label  string  `json:"label"`
	Status *string `json:"status,omitempty"`
}

// CreateRecord handles POST /modules/{module}/records.
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	out, err := h.service.CreateRecord(r.Context(), chi.URLParam(r, "module"), req.Label, req.Status)
	if err != nil {
		writeServiceError(w, err, "create record")
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GetRecord handles GET /records/{id}.
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.service.RecordDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get record")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type TransitionRequest struct {
	Value string `json:"value"`
	Force bool   `json:"force,omitempty"`
}

// Transition handles POST /records/{id}/status.
func (h *RecordHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == "" {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	module, err := h.service.RecordModule(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get record")
		return
	}
	out, err := h.service.Transition(r.Context(), module, id, req.Value, recordstatus.TransitionOptions{
		Force:   req.Force,
		ActorID: getUserID(r),
	})
	if err != nil {
		writeServiceError(w, err, "change record status")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetStatusHistory handles GET /records/{id}/status-history.
func (h *RecordHandler) GetStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.service.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get status history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

type AddStatusHistoryRequest struct {
	Before *string `json:"before,omitempty"`
	After  *string `json:"after,omitempty"`
}

// AddStatusHistory handles POST /records/{id}/status-history. It appends a
// change without touching the record's status and is a no-op for modules
// without an active status field.
func (h *RecordHandler) AddStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req AddStatusHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Before == nil && req.After == nil {
		writeError(w, http.StatusBadRequest, "before or after is required")
		return
	}
	module, err := h.service.RecordModule(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get record")
		return
	}
	change := recordstatus.StatusChange{Module: module, RecordID: id, Before: req.Before, After: req.After}
	if err := h.service.AddHistory(r.Context(), change); err != nil {
		writeServiceError(w, err, "add status history")
		return
	}
	out, err := h.service.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get status history")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": out})
}
