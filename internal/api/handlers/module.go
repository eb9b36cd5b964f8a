package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
)

// ModuleHandler serves the status configuration of modules.
type ModuleHandler struct{ service *recordstatus.Service }

func NewModuleHandler(service *recordstatus.Service) *ModuleHandler {
	return &ModuleHandler{service: service}
}

type recordStateLabel struct {
	State recordstatus.RecordState `json:"state"`
	Label string                   `json:"label"`
}

// ListRecordStates handles GET /record-states.
func (h *ModuleHandler) ListRecordStates(w http.ResponseWriter, _ *http.Request) {
	labels := h.service.Labels()
	out := make([]recordStateLabel, 0, len(labels))
	for state, label := range labels {
		out = append(out, recordStateLabel{State: state, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// ListStatusFields handles GET /status-fields: module id to status field
// name for every module that has one.
func (h *ModuleHandler) ListStatusFields(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.FieldNames(r.Context())
	if err != nil {
		writeServiceError(w, err, "get status field names")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": names})
}

type statusFieldResponse struct {
	Module string `json:"module"`
	Field  string `json:"field"`
}

// GetStatusField handles GET /modules/{module}/status-field.
func (h *ModuleHandler) GetStatusField(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	field, err := h.service.FieldName(r.Context(), module)
	if err != nil {
		writeServiceError(w, err, "get status field")
		return
	}
	writeJSON(w, http.StatusOK, statusFieldResponse{Module: module, Field: field})
}

type ActivateRequest struct {
	Field string `json:"field"`
}

// ActivateStatusField handles POST /modules/{module}/status-field.
func (h *ModuleHandler) ActivateStatusField(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}
	ok, err := h.service.Activate(r.Context(), module, req.Field)
	if err != nil {
		writeServiceError(w, err, "activate status field")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "module or field not found")
		return
	}
	writeJSON(w, http.StatusOK, statusFieldResponse{Module: module, Field: req.Field})
}

// ListStates handles GET /modules/{module}/states[?state=N]. Without state it
// maps value id to state; with state it maps value id to label.
func (h *ModuleHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	raw := r.URL.Query().Get("state")
	if raw == "" {
		states, err := h.service.States(r.Context(), module)
		if err != nil {
			writeServiceError(w, err, "get states")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": states})
		return
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "state must be an integer")
		return
	}
	values, err := h.service.ValuesByState(r.Context(), module, recordstatus.RecordState(n))
	if err != nil {
		writeServiceError(w, err, "get values by state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": values})
}

// ListTimeCounting handles GET /modules/{module}/time-counting[?raw=true].
func (h *ModuleHandler) ListTimeCounting(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		out, err := h.service.TimeCountingRaw(r.Context(), module)
		if err != nil {
			writeServiceError(w, err, "get time counting")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out})
		return
	}
	out, err := h.service.TimeCountingValues(r.Context(), module)
	if err != nil {
		writeServiceError(w, err, "get time counting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// ListPicklist handles GET /modules/{module}/picklist.
func (h *ModuleHandler) ListPicklist(w http.ResponseWriter, r *http.Request) {
	values, err := h.service.PicklistValues(r.Context(), chi.URLParam(r, "module"))
	if err != nil {
		writeServiceError(w, err, "list picklist")
		return
	}
	if values == nil {
		values = []recordstatus.PicklistValue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": values})
}

type ConfigureValueRequest struct {
	RecordState  *int  `json:"recordState"`
	TimeCounting []int `json:"timeCounting"`
}

// ConfigureValue handles PUT /modules/{module}/picklist/{value_id}.
// Omitted fields are cleared.
func (h *ModuleHandler) ConfigureValue(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, "module")
	valueID, err := parseIDParam(r, "value_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ConfigureValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var cfg recordstatus.ValueConfig
	if req.RecordState != nil {
		state := recordstatus.RecordState(*req.RecordState)
		cfg.State = &state
	}
	for _, c := range req.TimeCounting {
		cfg.TimeCounting = append(cfg.TimeCounting, recordstatus.TimeCounting(c))
	}

	out, err := h.service.ConfigureValue(r.Context(), module, valueID, cfg)
	if err != nil {
		writeServiceError(w, err, "configure picklist value")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
