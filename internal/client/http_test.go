package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/dispatch"
	"github.com/alfredjeanlab/callsheet/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	method        string
	path          string
	query         string
	body          string
	contentType   string
	authorization string

	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.authorization = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler, token string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", token)
}

func TestHTTPClient_Requests(t *testing.T) {
	for _, tc := range []struct {
		name     string
		call     func(c *HTTPClient) error
		response string
		status   int
		method   string
		path     string
		query    string
		body     map[string]any
	}{
		{
			name:     "claim",
			call:     func(c *HTTPClient) error { _, err := c.Claim(context.Background(), "Caller_01"); return err },
			response: `{"user":"Caller_01","ticket":{"position":3,"account":"a3"},"resumed":false}`,
			method:   http.MethodPost, path: "/v1/claims",
			body: map[string]any{"user": "Caller_01"},
		},
		{
			name: "submit",
			call: func(c *HTTPClient) error {
				return c.Submit(context.Background(), 7, model.OutcomePass, "Caller_01", model.Payload{Note: "ok", ContactID: "99"})
			},
			response: `{"ok":true}`,
			method:   http.MethodPost, path: "/v1/tickets/7/submit",
			body: map[string]any{"user": "Caller_01", "outcome": "PASS", "note": "ok", "contact_id": "99"},
		},
		{
			name:   "release",
			call:   func(c *HTTPClient) error { return c.Release(context.Background(), 4, "Caller_01") },
			status: http.StatusNoContent,
			method: http.MethodPost, path: "/v1/tickets/4/release",
			body: map[string]any{"user": "Caller_01"},
		},
		{
			name: "roster with stale",
			call: func(c *HTTPClient) error {
				_, err := c.Roster(context.Background(), 10*time.Minute)
				return err
			},
			response: `{"callers":[]}`,
			method:   http.MethodGet, path: "/v1/roster", query: "stale=10m0s",
		},
		{
			name: "journal filters",
			call: func(c *HTTPClient) error {
				_, err := c.Journal(context.Background(), model.EventFilter{Actor: "Caller_01", Kind: model.EventRaceLost, Limit: 5})
				return err
			},
			response: `{"events":[]}`,
			method:   http.MethodGet, path: "/v1/journal", query: "actor=Caller_01&kind=race_lost&limit=5",
		},
		{
			name:     "journal unfiltered",
			call:     func(c *HTTPClient) error { _, err := c.Journal(context.Background(), model.EventFilter{}); return err },
			response: `{"events":[]}`,
			method:   http.MethodGet, path: "/v1/journal",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{statusCode: tc.status, responseBody: tc.response}
			c := newTestClient(t, h, "tok")
			if err := tc.call(c); err != nil {
				t.Fatalf("call: %v", err)
			}
			if h.method != tc.method || h.path != tc.path || h.query != tc.query {
				t.Errorf("request = %s %s?%s, want %s %s?%s", h.method, h.path, h.query, tc.method, tc.path, tc.query)
			}
			if h.authorization != "Bearer tok" {
				t.Errorf("authorization = %q", h.authorization)
			}
			if tc.body == nil {
				return
			}
			if h.contentType != "application/json" {
				t.Errorf("content-type = %q", h.contentType)
			}
			var got map[string]any
			if err := json.Unmarshal([]byte(h.body), &got); err != nil {
				t.Fatalf("request body %q: %v", h.body, err)
			}
			for k, v := range tc.body {
				if got[k] != v {
					t.Errorf("body[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestHTTPClient_Errors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		status   int
		response string
		sentinel error
		message  string
	}{
		{"no tickets", 404, `{"error":"no tickets available (lost 1 contended)","contended":[{"position":2,"winner":"Caller_02"}]}`,
			dispatch.ErrNoTickets, "no tickets available (lost 1 contended)"},
		{"invalid outcome", 400, `{"error":"invalid outcome: \"MAYBE\""}`, dispatch.ErrInvalidOutcome, `invalid outcome: "MAYBE"`},
		{"invalid argument", 400, `{"error":"invalid argument: user is required"}`, dispatch.ErrInvalidArgument, "invalid argument: user is required"},
		{"not held", 409, `{"error":"ticket not held by user"}`, dispatch.ErrNotHeld, "ticket not held by user"},
		{"route 404", 404, "404 page not found\n", nil, "404 page not found"},
		{"upstream", 502, `{"error":"sheet write Q2: quota"}`, nil, "sheet write Q2: quota"},
		{"empty json error", 500, `{"error":""}`, nil, `{"error":""}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &testHandler{statusCode: tc.status, responseBody: tc.response}, "")
			_, err := c.Claim(context.Background(), "Caller_01")

			var ae *APIError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if ae.StatusCode != tc.status || ae.Message != tc.message {
				t.Errorf("APIError = %d %q", ae.StatusCode, ae.Message)
			}
			if tc.sentinel != nil && !errors.Is(err, tc.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tc.sentinel)
			}
			if tc.sentinel == nil && errors.Is(err, dispatch.ErrNoTickets) {
				t.Errorf("%v should not read as no tickets", err)
			}
			if Upstream(err) != (tc.status == http.StatusBadGateway) {
				t.Errorf("Upstream = %v", Upstream(err))
			}
		})
	}
}

func TestHTTPClient_ContendedSurvivesUnwrap(t *testing.T) {
	c := newTestClient(t, &testHandler{
		statusCode:   404,
		responseBody: `{"error":"no tickets available","contended":[{"position":2,"winner":"Caller_02"},{"position":5,"read_err":"timeout"}]}`,
	}, "")
	_, err := c.Claim(context.Background(), "Caller_01")

	got := dispatch.Contended(err)
	if len(got) != 2 || got[0].Winner != "Caller_02" || got[1].ReadErr != "timeout" {
		t.Fatalf("contended = %+v", got)
	}
}

func TestHTTPClient_Error_CanceledContext(t *testing.T) {
	c := newTestClient(t, &testHandler{responseBody: `{"status":"ok"}`}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Health(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPClient_StreamURL(t *testing.T) {
	c := NewHTTPClient("http://cs.local:8080/", "")
	got := c.StreamURL([]string{"callsheet.lead.claimed", "callsheet.lead.race_lost"}, "Caller_01")
	want := "http://cs.local:8080/v1/events/stream?actor=Caller_01&topics=callsheet.lead.claimed%2Ccallsheet.lead.race_lost"
	if got != want {
		t.Fatalf("StreamURL = %q\nwant        %q", got, want)
	}
	if got := c.StreamURL(nil, ""); !strings.HasSuffix(got, "/v1/events/stream") {
		t.Fatalf("unfiltered StreamURL = %q", got)
	}
}
