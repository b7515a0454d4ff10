package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauern/docsync/internal/model"
)

// DefaultTimeout bounds a single call to the remote.
const DefaultTimeout = 2 * time.Minute

// RemoteError is a failure reported by the remote in the response envelope.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("remote error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client talks to a docsync server.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the server at base.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// Sync sends a sync request.
func (c *Client) Sync(ctx context.Context, req *model.SyncRequest) (*model.SyncResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sync request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+SyncPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp model.SyncResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clone fetches a snapshot of packageName.
func (c *Client) Clone(ctx context.Context, packageName string) (*model.CloneResponse, error) {
	u := c.base + ClonePath + "?" + url.Values{"package": {packageName}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var resp model.CloneResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Packages lists the packages of the remote.
func (c *Client) Packages(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+PackagesPath, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := c.do(httpReq, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach remote: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if !env.Success {
		return &RemoteError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if len(env.Data) == 0 {
		return &RemoteError{StatusCode: resp.StatusCode, Message: "response carried no data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
