package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/procstatus/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
)

// getUserID returns the authenticated caller, or "" outside AuthMiddleware.
func getUserID(r *http.Request) string {
	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	return userID
}

// parseIDParam reads a positive integer URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// statusFromError maps service errors to HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, recordstatus.ErrIllegalValue):
		return http.StatusNotAcceptable
	case errors.Is(err, recordstatus.ErrRecordLocked):
		return http.StatusConflict
	case errors.Is(err, recordstatus.ErrModuleNotFound),
		errors.Is(err, recordstatus.ErrStatusFieldNotActive),
		errors.Is(err, recordstatus.ErrRecordNotFound),
		errors.Is(err, recordstatus.ErrValueNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Internal errors are
// prefixed with what failed.
func writeServiceError(w http.ResponseWriter, err error, what string) {
	code := statusFromError(err)
	if code == http.StatusInternalServerError {
		writeError(w, code, fmt.Sprintf("failed to %s: %v", what, err))
		return
	}
	writeError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}
