package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/api"
	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/presence"
)

// HTTPClient implements Client using the callsheet HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// Claims wait out the settle delay once per contended candidate.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Claim(ctx context.Context, user string) (*model.Claim, error) {
	var claim model.Claim
	if err := c.doJSON(ctx, http.MethodPost, "/v1/claims", api.ClaimRequest{User: user}, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

func (c *HTTPClient) Submit(ctx context.Context, pos int, outcome model.Outcome, user string, p model.Payload) error {
	req := api.SubmitRequest{User: user, Outcome: string(outcome), Note: p.Note, ContactID: p.ContactID}
	var resp api.SubmitResponse
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/tickets/%d/submit", pos), req, &resp)
}

func (c *HTTPClient) Release(ctx context.Context, pos int, user string) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/v1/tickets/%d/release", pos), api.ReleaseRequest{User: user}, nil)
}

func (c *HTTPClient) Snapshot(ctx context.Context) (*model.Table, error) {
	var tbl model.Table
	if err := c.doJSON(ctx, http.MethodGet, "/v1/snapshot", nil, &tbl); err != nil {
		return nil, err
	}
	return &tbl, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) Sheets(ctx context.Context) ([]model.SheetInfo, error) {
	var resp api.SheetsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sheets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sheets, nil
}

func (c *HTTPClient) Roster(ctx context.Context, stale time.Duration) ([]presence.Entry, error) {
	path := "/v1/roster"
	if stale > 0 {
		path += "?stale=" + url.QueryEscape(stale.String())
	}
	var resp api.RosterResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Callers, nil
}

func (c *HTTPClient) Journal(ctx context.Context, f model.EventFilter) ([]*model.Event, error) {
	params := url.Values{}
	if f.Actor != "" {
		params.Set("actor", f.Actor)
	}
	if f.Kind != "" {
		params.Set("kind", string(f.Kind))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/v1/journal"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp api.JournalResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp api.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// StreamURL returns the SSE endpoint URL for the given topic patterns and
// actor filter.
func (c *HTTPClient) StreamURL(topics []string, actor string) string {
	params := url.Values{}
	if len(topics) > 0 {
		params.Set("topics", strings.Join(topics, ","))
	}
	if actor != "" {
		params.Set("actor", actor)
	}
	u := c.baseURL + "/v1/events/stream"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Stream opens the server's event stream and returns the raw SSE body. The
// caller closes it.
func (c *HTTPClient) Stream(ctx context.Context, topics []string, actor string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StreamURL(topics, actor), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	// The stream outlives any request timeout.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, decodeError(resp.StatusCode, body)
	}
	return resp.Body, nil
}

// --- internal helpers ---

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for 204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func decodeError(code int, body []byte) error {
	var eb api.ErrorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		return &APIError{StatusCode: code, Message: eb.Error, Contended: eb.Contended}
	}
	return &APIError{StatusCode: code, Message: strings.TrimSpace(string(body))}
}
