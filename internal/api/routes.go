// Package api wires the HTTP surface: public health and metrics endpoints and the
// JWT-protected record status API under /api/v1.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/procstatus/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/procstatus/internal/api/middleware"
	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
)

// Deps are the services the router serves.
type Deps struct {
	Service  *recordstatus.Service
	Audit    apmiddleware.AuditLogger
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// NewRouter creates the chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(apmiddleware.NewHTTPMetrics(registry).Handler)

	// ===== PUBLIC ROUTES =====

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	moduleHandler := handlers.NewModuleHandler(deps.Service)
	recordHandler := handlers.NewRecordHandler(deps.Service)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)
		r.Use(apmiddleware.AuditMiddleware(deps.Audit))

		r.Get("/me", currentUser)
		r.Get("/record-states", moduleHandler.ListRecordStates)
		r.Get("/status-fields", moduleHandler.ListStatusFields)

		r.Route("/modules/{module}", func(r chi.Router) {
			r.Get("/status-field", moduleHandler.GetStatusField)
			r.Post("/status-field", moduleHandler.ActivateStatusField)
			r.Get("/states", moduleHandler.ListStates)
			r.Get("/time-counting", moduleHandler.ListTimeCounting)
			r.Get("/picklist", moduleHandler.ListPicklist)
			r.Put("/picklist/{value_id}", moduleHandler.ConfigureValue)
			r.Get("/lock-statuses", moduleHandler.ListLockStatuses)
			r.Post("/lock-statuses", moduleHandler.AddLockStatus)
			r.Delete("/lock-statuses/{value_id}", moduleHandler.RemoveLockStatus)
			r.Post("/records", recordHandler.CreateRecord)
		})

		r.Route("/records/{id}", func(r chi.Router) {
			r.Get("/", recordHandler.GetRecord)
			r.Post("/status", recordHandler.Transition)
			r.Get("/status-history", recordHandler.GetStatusHistory)
			r.Post("/status-history", recordHandler.AddStatusHistory)
		})
	})

	return r
}

// currentUser handles GET /me: the caller identified by the bearer token.
func currentUser(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"userId": userID}) //nolint:errcheck
}
