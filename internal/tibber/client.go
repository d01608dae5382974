// Package tibber provides clients for the Tibber GraphQL API and the Tibber
// app API that serves grid tariffs.
package tibber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultAPIURL is the public GraphQL endpoint.
	DefaultAPIURL = "https://api.tibber.com/v1-beta/gql"
	// DefaultAppURL is the base of the app API.
	DefaultAppURL = "https://app.tibber.com"

	requestTimeout = 20 * time.Second
	maxBodySize    = 4 << 20 // 4 MB
	historyHours   = 744     // 31 days
	userAgent      = "github.com/theirongolddev/tburn/1.0"
)

var (
	// ErrUnauthorized indicates the token or credentials were rejected.
	ErrUnauthorized = errors.New("tibber: unauthorized (token expired or invalid)")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("tibber: rate limited")
	// ErrHomeNotFound indicates the configured home is not on the account.
	ErrHomeNotFound = errors.New("tibber: home not found")
)

// Client talks to the Tibber API with a personal access token.
type Client struct {
	token  string
	apiURL string
	appURL string
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the GraphQL endpoint.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = u
		}
	}
}

// WithAppURL overrides the app API base URL.
func WithAppURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.appURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a client for the given access token.
// Returns nil if the token is empty.
func NewClient(token string, opts ...Option) *Client {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	c := &Client{
		token:  token,
		apiURL: DefaultAPIURL,
		appURL: DefaultAppURL,
		http:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Homes lists the homes on the account.
func (c *Client) Homes(ctx context.Context) ([]HomeInfo, error) {
	const q = `{ viewer { homes { id appNickname address { address1 } currentSubscription { priceInfo { current { currency } } } } } }`

	var resp homesResponse
	if err := c.query(ctx, c.apiURL, c.token, q, nil, &resp); err != nil {
		return nil, err
	}
	homes := make([]HomeInfo, 0, len(resp.Viewer.Homes))
	for _, h := range resp.Viewer.Homes {
		homes = append(homes, h.info())
	}
	return homes, nil
}

// Home returns a handle for the home with the given id. An empty id picks
// the first home on the account when the home is first refreshed.
func (c *Client) Home(id string) *Home {
	return &Home{client: c, id: id, info: HomeInfo{ID: id}}
}

// Authenticate logs in to the app API and returns a bearer token.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	body, err := c.do(ctx, c.appURL+"/login.credentials", "", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", fmt.Errorf("tibber: parsing login response: %w", err)
	}
	if lr.Token == "" {
		return "", ErrUnauthorized
	}
	return lr.Token, nil
}

// FetchGridPrices returns the hourly grid tariffs for every home on the
// account, authenticated with an app token.
func (c *Client) FetchGridPrices(ctx context.Context, token string) (*GridPriceResponse, error) {
	const q = `{ me { homes { id subscription { priceRating { hourly { entries { time gridPrice } } } } } } }`

	var resp GridPriceResponse
	if err := c.query(ctx, c.appURL+"/v4/gql", token, q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// query posts a GraphQL request and decodes its data into out.
func (c *Client) query(ctx context.Context, endpoint, bearer, q string, vars map[string]any, out any) error {
	payload, err := json.Marshal(gqlRequest{Query: q, Variables: vars})
	if err != nil {
		return fmt.Errorf("tibber: encoding query: %w", err)
	}

	body, err := c.do(ctx, endpoint, bearer, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var resp gqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("tibber: parsing response: %w", err)
	}
	if len(resp.Errors) > 0 {
		gerr := &GraphQLError{}
		for _, e := range resp.Errors {
			gerr.Messages = append(gerr.Messages, e.Message)
			gerr.Codes = append(gerr.Codes, e.Extensions.Code)
			if e.Extensions.Code == "UNAUTHENTICATED" {
				return fmt.Errorf("%w: %s", ErrUnauthorized, e.Message)
			}
		}
		return gerr
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return errors.New("tibber: empty response data")
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("tibber: parsing data: %w", err)
	}
	return nil
}

// do performs a POST request and returns the response body.
func (c *Client) do(ctx context.Context, endpoint, bearer, contentType string, body io.Reader) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("tibber: creating request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	//nolint:gosec // endpoint comes from configuration
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tibber: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tibber: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("tibber: reading response: %w", err)
	}
	return data, nil
}

// Home is a single home with a cached copy of its latest price info.
type Home struct {
	client *Client
	id     string

	mu       sync.RWMutex
	info     HomeInfo
	realtime bool
	prices   map[string]float64
}

// ID returns the home id, which is empty until resolved.
func (h *Home) ID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// Resolve fills in the home id when none was configured, using the first
// home on the account.
func (h *Home) Resolve(ctx context.Context) error {
	if h.ID() != "" {
		return nil
	}
	homes, err := h.client.Homes(ctx)
	if err != nil {
		return err
	}
	if len(homes) == 0 {
		return ErrHomeNotFound
	}
	h.mu.Lock()
	h.id = homes[0].ID
	h.info = homes[0]
	h.mu.Unlock()
	return nil
}

// FetchHistoricConsumption returns the last 744 hourly consumption nodes.
func (h *Home) FetchHistoricConsumption(ctx context.Context) ([]HourlyConsumption, error) {
	if err := h.Resolve(ctx); err != nil {
		return nil, err
	}
	const q = `query($id: ID!, $last: Int!) { viewer { home(id: $id) { consumption(resolution: HOURLY, last: $last) { nodes { from to consumption unitPrice cost } } } } }`

	var resp historicResponse
	vars := map[string]any{"id": h.ID(), "last": historyHours}
	if err := h.client.query(ctx, h.client.apiURL, h.client.token, q, vars, &resp); err != nil {
		return nil, err
	}
	if resp.Viewer.Home.Consumption == nil {
		return nil, nil
	}
	return resp.Viewer.Home.Consumption.Nodes, nil
}

// UpdatePriceInfo refreshes home info, the real-time metering flag and the
// price totals for today and tomorrow.
func (h *Home) UpdatePriceInfo(ctx context.Context) error {
	if err := h.Resolve(ctx); err != nil {
		return err
	}
	const q = `query($id: ID!) { viewer { home(id: $id) { id appNickname address { address1 } features { realTimeConsumptionEnabled } currentSubscription { priceInfo { current { currency } today { total startsAt } tomorrow { total startsAt } } } } } }`

	var resp priceInfoResponse
	if err := h.client.query(ctx, h.client.apiURL, h.client.token, q, map[string]any{"id": h.ID()}, &resp); err != nil {
		return err
	}
	node := resp.Viewer.Home
	if node.ID == "" {
		return ErrHomeNotFound
	}

	prices := make(map[string]float64)
	if node.CurrentSubscription != nil && node.CurrentSubscription.PriceInfo != nil {
		pi := node.CurrentSubscription.PriceInfo
		for _, p := range pi.Today {
			prices[p.StartsAt] = p.Total
		}
		for _, p := range pi.Tomorrow {
			prices[p.StartsAt] = p.Total
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.info = node.info()
	h.realtime = node.Features != nil && node.Features.RealTimeConsumptionEnabled
	h.prices = prices
	return nil
}

// PriceTotal returns a copy of the cached price totals keyed by startsAt.
func (h *Home) PriceTotal() map[string]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]float64, len(h.prices))
	for k, v := range h.prices {
		out[k] = v
	}
	return out
}

// HasRealTimeConsumption reports whether the home has a real-time meter.
func (h *Home) HasRealTimeConsumption() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.realtime
}

// Info returns the cached home info.
func (h *Home) Info() HomeInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.info
}
