package recordstatus_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
	"github.com/matiasleandrokruk/procstatus/internal/infra/sqlite"
)

const helpDesk = "HelpDesk"

// helpDeskIDs holds the picklist value ids created by seedHelpDesk.
type helpDeskIDs struct {
	moduleID   int64
	statusID   int64
	priorityID int64
	open       int64
	inProgress int64
	waiting    int64
	closed     int64
	rejected   int64
	answered   int64
	urgent     int64
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var ignoreHistoryID = cmpopts.IgnoreFields(recordstatus.HistoryEntry{}, "ID")

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

func newService(t *testing.T, db *sql.DB, opts ...recordstatus.Option) *recordstatus.Service {
	t.Helper()
	opts = append([]recordstatus.Option{recordstatus.WithClock(func() time.Time { return fixedNow })}, opts...)
	return recordstatus.NewService(db, opts...)
}

// seedHelpDesk creates the HelpDesk module with a status picklist and a
// priority picklist. The status field is not activated.
func seedHelpDesk(t *testing.T, store *recordstatus.Store) helpDeskIDs {
	t.Helper()
	ctx := context.Background()
	ids := helpDeskIDs{moduleID: 13}

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	mustID := func(id int64, err error) int64 {
		t.Helper()
		must(err)
		return id
	}

	must(store.UpsertModule(ctx, recordstatus.Module{ID: ids.moduleID, Name: helpDesk, BaseTable: "u_yf_troubletickets"}))
	must(store.UpsertModule(ctx, recordstatus.Module{ID: 14, Name: "Project", BaseTable: "vtiger_project"}))
	ids.statusID = mustID(store.UpsertField(ctx, ids.moduleID, "ticketstatus", "Status", 2))
	ids.priorityID = mustID(store.UpsertField(ctx, ids.moduleID, "ticketpriorities", "Priority", 2))

	ids.open = mustID(store.UpsertPicklistValue(ctx, ids.statusID, "Open", 1))
	ids.inProgress = mustID(store.UpsertPicklistValue(ctx, ids.statusID, "In Progress", 2))
	ids.waiting = mustID(store.UpsertPicklistValue(ctx, ids.statusID, "Wait For Response", 3))
	ids.closed = mustID(store.UpsertPicklistValue(ctx, ids.statusID, "Closed", 4))
	ids.rejected = mustID(store.UpsertPicklistValue(ctx, ids.statusID, "Rejected", 5))
	ids.answered = mustID(store.UpsertPicklistValue(ctx, ids.statusID, "Answered", 6))
	ids.urgent = mustID(store.UpsertPicklistValue(ctx, ids.priorityID, "Urgent", 1))

	open, closed := recordstatus.RecordStateOpen, recordstatus.RecordStateClosed
	must(store.UpdatePicklistValue(ctx, ids.open, &open, ",1,2,"))
	must(store.UpdatePicklistValue(ctx, ids.inProgress, &open, ",2,"))
	must(store.UpdatePicklistValue(ctx, ids.waiting, &open, ",3,"))
	must(store.UpdatePicklistValue(ctx, ids.closed, &closed, ""))
	must(store.UpdatePicklistValue(ctx, ids.rejected, &closed, ""))
	return ids
}

// seedActiveHelpDesk seeds HelpDesk and activates ticketstatus.
func seedActiveHelpDesk(t *testing.T, svc *recordstatus.Service) helpDeskIDs {
	t.Helper()
	ids := seedHelpDesk(t, svc.Store())
	ok, err := svc.Activate(context.Background(), helpDesk, "ticketstatus")
	if err != nil || !ok {
		t.Fatalf("Activate() = %v, %v; want true, nil", ok, err)
	}
	return ids
}

func strPtr(v string) *string { return &v }
