package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alfredjeanlab/callsheet/internal/api"
	"github.com/alfredjeanlab/callsheet/internal/dispatch"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
	"github.com/alfredjeanlab/callsheet/internal/sheet/memsheet"
)

// leadRow builds an 18-column row in the simple layout.
func leadRow(account, processed, assignee string) []string {
	r := make([]string, 18)
	r[0] = account
	r[1] = processed
	r[12] = "138" + account
	r[15] = "iPhone"
	r[16] = assignee
	return r
}

func testRows(leads ...[]string) [][]string {
	header := make([]string, 18)
	header[0] = "account"
	return append([][]string{header}, leads...)
}

// memJournal is an in-memory store.Store.
type memJournal struct {
	mu     sync.Mutex
	events []*model.Event
}

func (m *memJournal) RecordEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *memJournal) ListEvents(_ context.Context, f model.EventFilter) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Event{}
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if (f.Actor != "" && e.Actor != f.Actor) || (f.Kind != "" && e.Kind != f.Kind) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memJournal) Close() error { return nil }

type testServer struct {
	*CallSheetServer
	sheet   *memsheet.Sheet
	journal *memJournal
	handler http.Handler
}

// newTestServer wires a real engine over an in-memory sheet, the same way
// serve does, with no settle wait.
func newTestServer(t *testing.T, rows [][]string) *testServer {
	t.Helper()
	sh := memsheet.New(rows)
	journal := &memJournal{}
	tracker := presence.New()
	hub := NewEventHub()
	engine, err := dispatch.New(sh, model.SimpleColumns(), dispatch.Options{
		SettleDelay: -1,
		Journal:     journal,
		Observers:   []dispatch.Observer{tracker, hub},
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	srv := New(engine, journal, tracker, hub)
	return &testServer{CallSheetServer: srv, sheet: sh, journal: journal, handler: srv.NewHTTPHandler("")}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleClaim(t *testing.T) {
	ts := newTestServer(t, testRows(leadRow("a1", "1", "Caller_02"), leadRow("a2", "", "")))

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/claims", api.ClaimRequest{User: "Caller_01"})
	requireStatus(t, rec, http.StatusOK)

	var c model.Claim
	decodeJSON(t, rec, &c)
	if c.Ticket == nil || c.Ticket.Position != 2 || c.Ticket.Account != "a2" || c.Resumed {
		t.Fatalf("claim = %+v", c)
	}
	if got := ts.sheet.Get(2, 16); got != "Caller_01" {
		t.Fatalf("assignee cell = %q", got)
	}
}

func TestHandleClaim_NoTickets(t *testing.T) {
	ts := newTestServer(t, testRows(leadRow("a1", "", "")))
	ts.sheet.AfterWrite(func(s *memsheet.Sheet, pos, col int, _ string) {
		if col == 16 {
			s.Set(pos, col, "Caller_02")
		}
	})

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/claims", api.ClaimRequest{User: "Caller_01"})
	requireStatus(t, rec, http.StatusNotFound)

	var body api.ErrorBody
	decodeJSON(t, rec, &body)
	if len(body.Contended) != 1 || body.Contended[0].Position != 1 || body.Contended[0].Winner != "Caller_02" {
		t.Fatalf("body = %+v", body)
	}
}

func TestHandleErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		setup  func(*memsheet.Sheet)
		method string
		path   string
		body   any
		want   int
	}{
		{"claim without user", nil, http.MethodPost, "/v1/claims", api.ClaimRequest{}, http.StatusBadRequest},
		{"claim bad json", nil, http.MethodPost, "/v1/claims", "not an object", http.StatusBadRequest},
		{"claim transport", func(s *memsheet.Sheet) { s.FailFetch(errors.New("timeout")) },
			http.MethodPost, "/v1/claims", api.ClaimRequest{User: "Caller_01"}, http.StatusBadGateway},
		{"submit bad outcome", nil, http.MethodPost, "/v1/tickets/1/submit",
			api.SubmitRequest{User: "Caller_01", Outcome: "MAYBE"}, http.StatusBadRequest},
		{"submit bad position", nil, http.MethodPost, "/v1/tickets/abc/submit",
			api.SubmitRequest{User: "Caller_01", Outcome: "PASS"}, http.StatusBadRequest},
		{"submit header row", nil, http.MethodPost, "/v1/tickets/0/submit",
			api.SubmitRequest{User: "Caller_01", Outcome: "PASS"}, http.StatusBadRequest},
		{"submit write failure", func(s *memsheet.Sheet) { s.FailWrite(memsheet.Cell{Pos: 1, Col: 17}, errors.New("quota")) },
			http.MethodPost, "/v1/tickets/1/submit", api.SubmitRequest{User: "Caller_01", Outcome: "FAIL"}, http.StatusBadGateway},
		{"release not held", nil, http.MethodPost, "/v1/tickets/1/release",
			api.ReleaseRequest{User: "Caller_02"}, http.StatusConflict},
		{"snapshot transport", func(s *memsheet.Sheet) { s.FailFetch(errors.New("timeout")) },
			http.MethodGet, "/v1/snapshot", nil, http.StatusBadGateway},
		{"roster bad stale", nil, http.MethodGet, "/v1/roster?stale=soon", nil, http.StatusBadRequest},
		{"journal bad limit", nil, http.MethodGet, "/v1/journal?limit=x", nil, http.StatusBadRequest},
		{"journal negative limit", nil, http.MethodGet, "/v1/journal?limit=-1", nil, http.StatusBadRequest},
		{"unknown route", nil, http.MethodGet, "/v1/leads", nil, http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, testRows(leadRow("a1", "", "Caller_01")))
			if tc.setup != nil {
				tc.setup(ts.sheet)
			}
			rec := doJSON(t, ts.handler, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.want)
		})
	}
}

func TestHandleSubmit(t *testing.T) {
	ts := newTestServer(t, testRows(leadRow("a1", "", "Caller_01")))

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/tickets/1/submit", api.SubmitRequest{
		User:      "Caller_01",
		Outcome:   "pass",
		Note:      "callback Friday",
		ContactID: "88",
	})
	requireStatus(t, rec, http.StatusOK)

	var resp api.SubmitResponse
	decodeJSON(t, rec, &resp)
	if !resp.OK {
		t.Fatal("expected ok")
	}
	for col, want := range map[int]string{1: "1", 2: "1", 4: "88", 17: "通过 | callback Friday"} {
		if got := ts.sheet.Get(1, col); got != want {
			t.Errorf("col %d = %q, want %q", col, got, want)
		}
	}
}

func TestHandleRelease(t *testing.T) {
	ts := newTestServer(t, testRows(leadRow("a1", "", "Caller_01")))

	rec := doJSON(t, ts.handler, http.MethodPost, "/v1/tickets/1/release", api.ReleaseRequest{User: "Caller_01"})
	requireStatus(t, rec, http.StatusNoContent)
	if len(ts.sheet.Writes()) != 0 {
		t.Fatalf("release wrote %v", ts.sheet.Writes())
	}
}

func TestHandleSnapshotStatsSheets(t *testing.T) {
	ts := newTestServer(t, testRows(leadRow("a1", "1", "Caller_01"), leadRow("a2", "", "")))
	ts.sheet.SetSheets([]model.SheetInfo{{ID: "BB08J2", Title: "leads"}})

	rec := doJSON(t, ts.handler, http.MethodGet, "/v1/snapshot", nil)
	requireStatus(t, rec, http.StatusOK)
	var tbl model.Table
	decodeJSON(t, rec, &tbl)
	if tbl.Len() != 3 {
		t.Fatalf("snapshot rows = %d", tbl.Len())
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/stats", nil)
	requireStatus(t, rec, http.StatusOK)
	var st model.Stats
	decodeJSON(t, rec, &st)
	if st.Rows != 2 || st.Processed != 1 || st.Unassigned != 1 {
		t.Fatalf("stats = %+v", st)
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/sheets", nil)
	requireStatus(t, rec, http.StatusOK)
	var sheets api.SheetsResponse
	decodeJSON(t, rec, &sheets)
	if len(sheets.Sheets) != 1 || sheets.Sheets[0].ID != "BB08J2" {
		t.Fatalf("sheets = %+v", sheets)
	}
}

func TestHandleRosterAndJournal(t *testing.T) {
	ts := newTestServer(t, testRows(leadRow("a1", "", ""), leadRow("a2", "", "")))

	requireStatus(t, doJSON(t, ts.handler, http.MethodPost, "/v1/claims", api.ClaimRequest{User: "Caller_01"}), http.StatusOK)
	requireStatus(t, doJSON(t, ts.handler, http.MethodPost, "/v1/tickets/1/submit",
		api.SubmitRequest{User: "Caller_01", Outcome: "NO_ANSWER"}), http.StatusOK)
	requireStatus(t, doJSON(t, ts.handler, http.MethodPost, "/v1/claims", api.ClaimRequest{User: "Caller_02"}), http.StatusOK)

	rec := doJSON(t, ts.handler, http.MethodGet, "/v1/roster?stale=1h", nil)
	requireStatus(t, rec, http.StatusOK)
	var roster api.RosterResponse
	decodeJSON(t, rec, &roster)
	if len(roster.Callers) != 2 {
		t.Fatalf("roster = %+v", roster)
	}
	for _, e := range roster.Callers {
		switch e.Caller {
		case "Caller_01":
			if e.Holding != 0 || e.Submitted != 1 {
				t.Errorf("Caller_01 = %+v", e)
			}
		case "Caller_02":
			if e.Holding != 2 || e.Claims != 1 {
				t.Errorf("Caller_02 = %+v", e)
			}
		}
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/journal?actor=Caller_01", nil)
	requireStatus(t, rec, http.StatusOK)
	var journal api.JournalResponse
	decodeJSON(t, rec, &journal)
	if len(journal.Events) != 2 || journal.Events[0].Kind != model.EventSubmitted || journal.Events[1].Kind != model.EventClaimed {
		t.Fatalf("journal = %+v", journal.Events)
	}

	rec = doJSON(t, ts.handler, http.MethodGet, "/v1/journal?kind=claimed&limit=1", nil)
	requireStatus(t, rec, http.StatusOK)
	decodeJSON(t, rec, &journal)
	if len(journal.Events) != 1 || journal.Events[0].Actor != "Caller_02" {
		t.Fatalf("filtered journal = %+v", journal.Events)
	}
}

func TestHandleEmptyLists(t *testing.T) {
	srv := New(nil, nil, nil, nil)
	handler := srv.NewHTTPHandler("")

	rec := doJSON(t, handler, http.MethodGet, "/v1/roster", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := rec.Body.String(); got != "{\"callers\":[]}\n" {
		t.Errorf("roster body = %q", got)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/journal", nil)
	requireStatus(t, rec, http.StatusOK)
	if got := rec.Body.String(); got != "{\"events\":[]}\n" {
		t.Errorf("journal body = %q", got)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/events/stream", nil)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestHandleHealth(t *testing.T) {
	srv := New(nil, nil, nil, nil)
	rec := doJSON(t, srv.NewHTTPHandler("secret"), http.MethodGet, "/v1/health", nil)
	requireStatus(t, rec, http.StatusOK)

	var h api.HealthResponse
	decodeJSON(t, rec, &h)
	if h.Status != "ok" {
		t.Fatalf("status = %q", h.Status)
	}
}
