package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/procstatus/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
	"github.com/matiasleandrokruk/procstatus/internal/domain/seed"
	"github.com/matiasleandrokruk/procstatus/internal/infra/sqlite"
)

const helpDeskSeed = `
modules:
  - id: 13
    name: HelpDesk
    base_table: u_yf_troubletickets
    status_field: ticketstatus
    fields:
      - name: ticketstatus
        values:
          - {value: Open, state: 1, time_counting: [1, 2]}
          - {value: Wait For Response, state: 1, time_counting: [3]}
          - {value: Answered, state: 0}
          - {value: Closed, state: 2, lock: true}
      - name: ticketpriorities
        values:
          - {value: Urgent}
  - id: 14
    name: Project
    base_table: vtiger_project
`

func mustOpenDBWithMigrations(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	if _, err := sqlite.MigrateUp(context.Background(), db); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// mustSeededService returns a service over a fresh database holding the
// HelpDesk module with ticketstatus active and Closed as lock status.
func mustSeededService(t *testing.T) *recordstatus.Service {
	t.Helper()
	svc := recordstatus.NewService(mustOpenDBWithMigrations(t))
	f, err := seed.Parse([]byte(helpDeskSeed))
	if err != nil {
		t.Fatalf("seed.Parse: %v", err)
	}
	if _, err := seed.Apply(context.Background(), svc, f, nil); err != nil {
		t.Fatalf("seed.Apply: %v", err)
	}
	return svc
}

// valueID returns the id of a HelpDesk status value.
func valueID(t *testing.T, svc *recordstatus.Service, value string) int64 {
	t.Helper()
	values, err := svc.PicklistValues(context.Background(), "HelpDesk")
	if err != nil {
		t.Fatalf("PicklistValues: %v", err)
	}
	for _, v := range values {
		if v.Value == value {
			return v.ID
		}
	}
	t.Fatalf("status value %q not seeded", value)
	return 0
}

// newRequest builds a request with chi URL params and an authenticated user.
func newRequest(method, target, body string, params map[string]string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = ctxkeys.WithValue(ctx, ctxkeys.UserID, "user-1")
	return req.WithContext(ctx)
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}
