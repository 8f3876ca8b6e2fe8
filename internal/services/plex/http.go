package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"

	"watchsync/internal/services"
)

const (
	productName    = "watchsync"
	productVersion = "1.0"
)

// ErrUnauthorized indicates Plex rejected the supplied token.
var ErrUnauthorized = errors.New("plex: token rejected")

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("plex %s %s returned %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("plex %s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

type request struct {
	method  string
	url     string
	token   string
	body    any
	headers map[string]string
}

func (c *Client) doJSONRequest(ctx context.Context, req request, out any) error {
	var reader io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.applyStandardHeaders(httpReq)
	if req.token != "" {
		httpReq.Header.Set("X-Plex-Token", req.token)
	}
	for k, v := range req.headers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     req.method,
			URL:        req.url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(bodyBytes)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) applyStandardHeaders(req *http.Request) {
	req.Header.Set("X-Plex-Client-Identifier", c.clientIdentifier)
	req.Header.Set("X-Plex-Product", productName)
	req.Header.Set("X-Plex-Version", productVersion)
	req.Header.Set("X-Plex-Platform", runtime.GOOS)
}

// wrapFailure tags an upstream failure. Rejected tokens keep ErrUnauthorized
// alongside the configuration marker so callers can match either.
func wrapFailure(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "plex", operation, "request interrupted", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		return services.Wrap(services.ErrConfiguration, "plex", operation, "check plex.tokens", err)
	}
	return services.Wrap(services.ErrTransient, "plex", operation, "", err)
}
