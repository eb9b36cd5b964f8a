package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
)

func createRecord(t *testing.T, h *RecordHandler, module, body string) recordstatus.Record {
	t.Helper()
	rr := httptest.NewRecorder()
	h.CreateRecord(rr, newRequest(http.MethodPost, "/", body, map[string]string{"module": module}))
	if rr.Code != http.StatusCreated {
		t.Fatalf("CreateRecord = %d; want 201 body=%s", rr.Code, rr.Body.String())
	}
	return decodeBody[recordstatus.Record](t, rr)
}

func TestRecordHandler_CreateRecord_Rejects(t *testing.T) {
	t.Parallel()

	h := NewRecordHandler(mustSeededService(t))

	tests := []struct {
		module string
		body   string
		code   int
	}{
		{"HelpDesk", `{"status":"Open"}`, http.StatusBadRequest},
		{"HelpDesk", `{"label":"x","status":"Exploded"}`, http.StatusNotAcceptable},
		{"Nope", `{"label":"x"}`, http.StatusNotFound},
		{"HelpDesk", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.CreateRecord(rr, newRequest(http.MethodPost, "/", tt.body, map[string]string{"module": tt.module}))
		if rr.Code != tt.code {
			t.Errorf("CreateRecord(%s, %s) = %d; want %d", tt.module, tt.body, rr.Code, tt.code)
		}
	}
}

func TestRecordHandler_TransitionFlow(t *testing.T) {
	t.Parallel()

	h := NewRecordHandler(mustSeededService(t))
	rec := createRecord(t, h, "HelpDesk", `{"label":"Printer on fire","status":"Open"}`)
	params := map[string]string{"id": strconv.FormatInt(rec.ID, 10)}

	transition := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.Transition(rr, newRequest(http.MethodPost, "/", body, params))
		return rr
	}

	rr := transition(`{"value":"Closed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Transition(Closed) = %d; want 200 body=%s", rr.Code, rr.Body.String())
	}
	res := decodeBody[recordstatus.TransitionResult](t, rr)
	if !res.Changed || res.State == nil || *res.State != recordstatus.RecordStateClosed {
		t.Errorf("Transition(Closed) = %+v; want changed to closed state", res)
	}

	rr = httptest.NewRecorder()
	h.GetRecord(rr, newRequest(http.MethodGet, "/", "", params))
	detail := decodeBody[recordstatus.RecordDetail](t, rr)
	if !detail.Locked || detail.Module != "HelpDesk" {
		t.Errorf("GetRecord = %+v; want locked HelpDesk record", detail)
	}

	if rr := transition(`{"value":"Open"}`); rr.Code != http.StatusConflict {
		t.Errorf("Transition(Open) from lock = %d; want 409", rr.Code)
	}
	if rr := transition(`{"value":"Open","force":true}`); rr.Code != http.StatusOK {
		t.Errorf("Transition(Open, force) = %d; want 200", rr.Code)
	}
	if rr := transition(`{"value":"Urgent"}`); rr.Code != http.StatusNotAcceptable {
		t.Errorf("Transition(Urgent) = %d; want 406", rr.Code)
	}
	if rr := transition(`{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("Transition(empty) = %d; want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetStatusHistory(rr, newRequest(http.MethodGet, "/", "", params))
	history := decodeBody[struct {
		Data []recordstatus.HistoryEntry `json:"data"`
	}](t, rr)
	var got []string
	for _, e := range history.Data {
		got = append(got, fmt.Sprintf("%v->%v", deref(e.Before), deref(e.After)))
	}
	want := []string{"->Open", "Open->Closed", "Closed->Open"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("history = %v; want %v", got, want)
	}
}

func TestRecordHandler_AddStatusHistory(t *testing.T) {
	t.Parallel()

	h := NewRecordHandler(mustSeededService(t))
	rec := createRecord(t, h, "HelpDesk", `{"label":"Imported","status":"Open"}`)
	params := map[string]string{"id": strconv.FormatInt(rec.ID, 10)}

	rr := httptest.NewRecorder()
	h.AddStatusHistory(rr, newRequest(http.MethodPost, "/", `{"before":"Open","after":"Answered"}`, params))
	if rr.Code != http.StatusCreated {
		t.Fatalf("AddStatusHistory = %d; want 201 body=%s", rr.Code, rr.Body.String())
	}
	history := decodeBody[struct {
		Data []recordstatus.HistoryEntry `json:"data"`
	}](t, rr)
	var got []string
	for _, e := range history.Data {
		got = append(got, fmt.Sprintf("%v->%v", deref(e.Before), deref(e.After)))
	}
	want := []string{"->Open", "Open->Answered"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("history = %v; want %v", got, want)
	}

	// The record keeps its status.
	rr = httptest.NewRecorder()
	h.GetRecord(rr, newRequest(http.MethodGet, "/", "", params))
	if detail := decodeBody[recordstatus.RecordDetail](t, rr); deref(detail.Status) != "Open" {
		t.Errorf("GetRecord status = %q; want Open", deref(detail.Status))
	}

	for _, body := range []string{`{}`, `{`} {
		rr := httptest.NewRecorder()
		h.AddStatusHistory(rr, newRequest(http.MethodPost, "/", body, params))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("AddStatusHistory(%s) = %d; want 400", body, rr.Code)
		}
	}
}

// Modules without an active status field accept the call but record nothing.
func TestRecordHandler_AddStatusHistory_InactiveModule(t *testing.T) {
	t.Parallel()

	h := NewRecordHandler(mustSeededService(t))
	rec := createRecord(t, h, "Project", `{"label":"Roadmap"}`)
	params := map[string]string{"id": strconv.FormatInt(rec.ID, 10)}

	rr := httptest.NewRecorder()
	h.AddStatusHistory(rr, newRequest(http.MethodPost, "/", `{"after":"Open"}`, params))
	if rr.Code != http.StatusCreated {
		t.Fatalf("AddStatusHistory = %d; want 201 body=%s", rr.Code, rr.Body.String())
	}
	history := decodeBody[struct {
		Data []recordstatus.HistoryEntry `json:"data"`
	}](t, rr)
	if len(history.Data) != 0 {
		t.Errorf("history = %v; want empty", history.Data)
	}
}

func TestRecordHandler_NotFound(t *testing.T) {
	t.Parallel()

	h := NewRecordHandler(mustSeededService(t))
	params := map[string]string{"id": "999"}

	for name, call := range map[string]func(http.ResponseWriter, *http.Request){
		"get":        h.GetRecord,
		"history":    h.GetStatusHistory,
		"transition": h.Transition,
		"addHistory": h.AddStatusHistory,
	} {
		rr := httptest.NewRecorder()
		call(rr, newRequest(http.MethodPost, "/", `{"value":"Open","after":"Open"}`, params))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s(999) = %d; want 404", name, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.GetRecord(rr, newRequest(http.MethodGet, "/", "", map[string]string{"id": "-1"}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GetRecord(-1) = %d; want 400", rr.Code)
	}
}

func TestStatusFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", recordstatus.ErrIllegalValue), http.StatusNotAcceptable},
		{recordstatus.ErrRecordLocked, http.StatusConflict},
		{recordstatus.ErrModuleNotFound, http.StatusNotFound},
		{recordstatus.ErrStatusFieldNotActive, http.StatusNotFound},
		{recordstatus.ErrRecordNotFound, http.StatusNotFound},
		{recordstatus.ErrValueNotFound, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFromError(tt.err); got != tt.want {
			t.Errorf("statusFromError(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
