package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/bottleneck/internal/export"
	"github.com/banshee-data/bottleneck/internal/httputil"
	"github.com/banshee-data/bottleneck/internal/runner"
)

// Client talks to a running Server.
type Client struct {
	BaseURL string
	HTTP    httputil.HTTPClient
}

// NewClient returns a Client for baseURL using http.DefaultClient.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httputil.NewStandardClient(nil),
	}
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Snapshot fetches the latest snapshot with speeds in u. Empty u uses the
// server default.
func (c *Client) Snapshot(ctx context.Context, u string) (SnapshotResponse, error) {
	path := "/api/snapshot"
	if u != "" {
		path += "?units=" + url.QueryEscape(u)
	}
	var out SnapshotResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Control sends a command. value is only used by ActionTimeScale.
func (c *Client) Control(ctx context.Context, action runner.Action, value float64) (ControlResponse, error) {
	form := url.Values{"action": {string(action)}}
	if action == runner.ActionTimeScale {
		form.Set("value", strconv.FormatFloat(value, 'g', -1, 64))
	}
	var out ControlResponse
	err := c.do(ctx, http.MethodPost, "/api/control", form, &out)
	return out, err
}

// Version fetches the server build information.
func (c *Client) Version(ctx context.Context) (VersionResponse, error) {
	var out VersionResponse
	err := c.do(ctx, http.MethodGet, "/api/version", nil, &out)
	return out, err
}

// Summary fetches the current run summary.
func (c *Client) Summary(ctx context.Context) (export.Summary, error) {
	var out export.Summary
	err := c.do(ctx, http.MethodGet, "/api/summary", nil, &out)
	return out, err
}

// Archive asks the server to store the current run and returns its ID.
func (c *Client) Archive(ctx context.Context) (string, error) {
	var out struct {
		RunID string `json:"run_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/archive", url.Values{}, &out)
	return out.RunID, err
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
