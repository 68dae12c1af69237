// Package tencent implements sheet.Gateway over the Tencent Docs OpenAPI.
package tencent

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
	"sync"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
)

// DefaultBaseURL is the public Tencent Docs endpoint.
const DefaultBaseURL = "https://docs.qq.com"

// tokenSkew is subtracted from a token's lifetime so it is refreshed before
// the server starts rejecting it.
const tokenSkew = 60 * time.Second

// defaultTokenTTL is assumed when the token response omits expires_in.
const defaultTokenTTL = 7200 * time.Second

// Config identifies the document, sheet and app credentials.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	FileID       string
	SheetID      string
	// LastColumn is the widest 0-based column FetchAll requests.
	LastColumn int
	// Timeout bounds each HTTP request (default 15s).
	Timeout time.Duration
}

// Client is a sheet.Gateway bound to one sheet of one document.
// It is safe for concurrent use; the access token is shared.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

var _ sheet.Gateway = (*Client)(nil)

// New creates a client. Missing BaseURL and Timeout get defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// APIError represents an error response from Tencent Docs.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tencent docs HTTP %d: %s", e.StatusCode, e.Message)
}

func (c *Client) FetchAll(ctx context.Context) ([][]string, error) {
	rng := "A:" + sheet.ColumnName(c.cfg.LastColumn)
	rows, err := c.getValues(ctx, rng)
	if err != nil {
		return nil, sheet.Wrap("fetch", -1, -1, err)
	}
	return rows, nil
}

func (c *Client) ReadCell(ctx context.Context, pos, col int) (string, bool, error) {
	rows, err := c.getValues(ctx, sheet.CellName(pos, col))
	if err != nil {
		return "", false, sheet.Wrap("read", pos, col, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", false, nil
	}
	return rows[0][0], true, nil
}

func (c *Client) WriteCell(ctx context.Context, pos, col int, value string) error {
	body := map[string]any{"values": [][]string{{value}}}
	if err := c.doJSON(ctx, http.MethodPatch, c.valuesPath(sheet.CellName(pos, col)), body, nil); err != nil {
		return sheet.Wrap("write", pos, col, err)
	}
	return nil
}

func (c *Client) ListSheets(ctx context.Context) ([]model.SheetInfo, error) {
	var resp struct {
		Data struct {
			Sheets []model.SheetInfo `json:"sheets"`
		} `json:"data"`
	}
	path := "/openapi/drive/v2/files/" + url.PathEscape(c.cfg.FileID) + "/sheets"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, sheet.Wrap("list sheets", -1, -1, err)
	}
	if resp.Data.Sheets == nil {
		return []model.SheetInfo{}, nil
	}
	return resp.Data.Sheets, nil
}

func (c *Client) valuesPath(rng string) string {
	return "/openapi/drive/v2/files/" + url.PathEscape(c.cfg.FileID) +
		"/sheets/" + url.PathEscape(c.cfg.SheetID) +
		"/values/" + url.PathEscape(rng)
}

func (c *Client) getValues(ctx context.Context, rng string) ([][]string, error) {
	var resp struct {
		Data struct {
			Values [][]any `json:"values"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.valuesPath(rng), nil, &resp); err != nil {
		return nil, err
	}
	rows := make([][]string, len(resp.Data.Values))
	for i, r := range resp.Data.Values {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = cellText(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// cellText normalizes a JSON cell value: numbers come back as 1, not "1".
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	}
	return fmt.Sprint(v)
}

// accessToken returns a cached token, fetching a new one when it is missing
// or within tokenSkew of expiring.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry.Add(-tokenSkew)) {
		return c.token, nil
	}

	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("client_secret", c.cfg.ClientSecret)
	q.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/oauth/v2/token?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &tok); err != nil || tok.AccessToken == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "token: " + strings.TrimSpace(string(data))}
	}

	ttl := defaultTokenTTL
	if tok.ExpiresIn > 0 {
		ttl = time.Duration(tok.ExpiresIn) * time.Second
	}
	c.token = tok.AccessToken
	c.expiry = c.now().Add(ttl)
	return c.token, nil
}

// doJSON performs an authenticated request with optional JSON body and decodes
// the JSON response into result (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Access-Token", token)
	req.Header.Set("Client-Id", c.cfg.ClientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			c.invalidateToken(token)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	// Some failures come back as 200 with a non-zero ret code.
	var envelope struct {
		Ret *int   `json:"ret"`
		Msg string `json:"msg"`
	}
	if json.Unmarshal(respBody, &envelope) == nil && envelope.Ret != nil && *envelope.Ret != 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("ret=%d %s", *envelope.Ret, envelope.Msg)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// invalidateToken drops token so the next call fetches a fresh one.
func (c *Client) invalidateToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}
