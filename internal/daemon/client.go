package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/theirongolddev/tburn/internal/model"
)

// ErrNoSnapshot is returned when the daemon has not completed a tick yet.
var ErrNoSnapshot = errors.New("daemon: no snapshot yet")

const maxResponseSize = 4 << 20

// Client talks to a running daemon's HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the daemon listening on addr
// (host:port or a full http URL).
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// Status fetches /v1/status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.get(ctx, "/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Events fetches the buffered event history.
func (c *Client) Events(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := c.get(ctx, "/v1/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Snapshot fetches the latest snapshot.
func (c *Client) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := c.get(ctx, "/v1/snapshot", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Refresh asks the daemon to run every fetcher now and returns the result.
func (c *Client) Refresh(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/refresh", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, out)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("daemon: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("daemon: reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return ErrNoSnapshot
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("daemon: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("daemon: decoding %s: %w", path, err)
	}
	return nil
}
