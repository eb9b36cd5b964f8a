package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/matiasleandrokruk/procstatus/internal/api/ctxkeys"
	domainaudit "github.com/matiasleandrokruk/procstatus/internal/domain/audit"
)

// AuditLogger is the minimal contract used by AuditMiddleware.
// domainaudit.AuditService satisfies this interface.
type AuditLogger interface {
	LogWithDetails(
		ctx context.Context,
		actorID string,
		actorType domainaudit.ActorType,
		action string,
		entityType *string,
		entityID *string,
		details *domainaudit.EventDetails,
		outcome domainaudit.Outcome,
	) error
}

// AuditMiddleware logs protected HTTP requests into audit_event.
// Expected order in router: AuthMiddleware -> AuditMiddleware -> handlers.
func AuditMiddleware(logger AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}

			userID, ok := getStringContext(r.Context(), ctxkeys.UserID)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			action, entityType, entityID := actionFromRequest(r.Method, r.URL.Path)
			_ = logger.LogWithDetails(
				r.Context(),
				userID,
				domainaudit.ActorTypeUser,
				action,
				entityType,
				entityID,
				&domainaudit.EventDetails{Metadata: map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status_code": recorder.statusCode,
					"duration_ms": time.Since(start).Milliseconds(),
				}},
				outcomeFromStatus(recorder.statusCode),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func getStringContext(ctx context.Context, key ctxkeys.Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func outcomeFromStatus(statusCode int) domainaudit.Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return domainaudit.OutcomeSuccess
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domainaudit.OutcomeDenied
	default:
		return domainaudit.OutcomeError
	}
}

// actionFromRequest derives the audit action and entity from an /api/v1 path.
// Paths alternate resource and id segments; the last resource names the
// entity. A singleton sub-resource is identified by its parent's id.
func actionFromRequest(method, path string) (string, *string, *string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "v1" {
		return strings.ToLower(method) + "_request", nil, nil
	}

	var (
		entity, id, parentID string
		hasID                bool
	)
	rest := segments[2:]
	for i := 0; i < len(rest); i += 2 {
		entity = singularEntity(rest[i])
		if entity == "" {
			return strings.ToLower(method) + "_request", nil, nil
		}
		parentID, hasID = id, i+1 < len(rest)
		id = ""
		if hasID {
			id = rest[i+1]
		}
	}

	switch {
	case hasID:
		return actionForEntity(method, entity), strPtr(entity), strPtr(id)
	case singletons[entity]:
		return actionForSingleton(method, entity), strPtr(entity), optional(parentID)
	default:
		return actionForCollection(method, entity), strPtr(entity), nil
	}
}

// singletons are sub-resources with exactly one instance per parent.
var singletons = map[string]bool{
	"status_field":   true,
	"time_counting":  true,
	"record_status":  true,
	"status_history": true,
}

func singularEntity(entity string) string {
	entityMap := map[string]string{
		"record-states":  "record_state",
		"modules":        "module",
		"status-field":   "status_field",
		"status-fields":  "status_field_name",
		"states":         "state",
		"time-counting":  "time_counting",
		"picklist":       "picklist_value",
		"lock-statuses":  "lock_status",
		"records":        "record",
		"status":         "record_status",
		"status-history": "status_history",
	}

	if value, ok := entityMap[entity]; ok {
		return value
	}
	return ""
}

func actionForCollection(method, entity string) string {
	if method == http.MethodPost {
		return "create_" + entity
	}
	if method == http.MethodGet {
		return "list_" + entity
	}
	return strings.ToLower(method) + "_" + entity
}

func actionForSingleton(method, entity string) string {
	switch method {
	case http.MethodGet:
		return "get_" + entity
	case http.MethodPost, http.MethodPut:
		return "set_" + entity
	}
	return strings.ToLower(method) + "_" + entity
}

func actionForEntity(method, entity string) string {
	if method == http.MethodGet {
		return "get_" + entity
	}
	if method == http.MethodPut || method == http.MethodPatch {
		return "update_" + entity
	}
	if method == http.MethodDelete {
		return "delete_" + entity
	}
	if method == http.MethodPost {
		return "create_" + entity
	}
	return strings.ToLower(method) + "_" + entity
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return strPtr(v)
}

func strPtr(v string) *string {
	return &v
}
