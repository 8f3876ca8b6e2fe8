package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDaemonUnavailable reports that no daemon answered at the configured address.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Error is a non-2xx API response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running daemon over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon bound at bind (host:port or URL).
func NewClient(bind, token string) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", &out)
	return out, err
}

// Sync triggers a full sync of source on the daemon.
func (c *Client) Sync(ctx context.Context, source string) (SyncResponse, error) {
	var out SyncResponse
	err := c.do(ctx, http.MethodPost, "/api/watchlist/"+url.PathEscape(source)+"/sync", &out)
	return out, err
}

// Workflow fetches workflow status.
func (c *Client) Workflow(ctx context.Context) (WorkflowStatus, error) {
	var out WorkflowStatus
	err := c.do(ctx, http.MethodGet, "/api/workflow", &out)
	return out, err
}

// StartWorkflow starts the RSS workflow.
func (c *Client) StartWorkflow(ctx context.Context) (WorkflowStatus, error) {
	var out WorkflowStatus
	err := c.do(ctx, http.MethodPost, "/api/workflow/start", &out)
	return out, err
}

// StopWorkflow stops the RSS workflow.
func (c *Client) StopWorkflow(ctx context.Context) (WorkflowStatus, error) {
	var out WorkflowStatus
	err := c.do(ctx, http.MethodPost, "/api/workflow/stop", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return fmt.Errorf("%w at %s: %w", ErrDaemonUnavailable, c.baseURL, err)
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload ErrorResponse
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = string(bytes.TrimSpace(body))
		}
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
