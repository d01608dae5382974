package tibber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("tok", WithAPIURL(srv.URL+"/v1-beta/gql"), WithAppURL(srv.URL))
}

func decodeQuery(t *testing.T, r *http.Request) gqlRequest {
	t.Helper()
	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Errorf("decode request: %v", err)
	}
	return req
}

func TestNewClient_EmptyToken(t *testing.T) {
	if NewClient("  ") != nil {
		t.Fatal("NewClient(blank) should return nil")
	}
}

func TestFetchHistoricConsumption(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		req := decodeQuery(t, r)
		if req.Variables["id"] != "home-1" {
			t.Errorf("id variable = %v, want home-1", req.Variables["id"])
		}
		_, _ = w.Write([]byte(`{"data":{"viewer":{"home":{"consumption":{"nodes":[
			{"from":"2025-03-01T00:00:00.000+01:00","to":"2025-03-01T01:00:00.000+01:00","consumption":1.25,"unitPrice":0.9,"cost":1.125},
			{"from":"2025-03-01T01:00:00.000+01:00","to":"2025-03-01T02:00:00.000+01:00","consumption":null,"unitPrice":0.8,"cost":null}
		]}}}}}`))
	})

	nodes, err := c.Home("home-1").FetchHistoricConsumption(context.Background())
	if err != nil {
		t.Fatalf("FetchHistoricConsumption: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len(nodes) = %d, want 2", len(nodes))
	}
	if nodes[0].Consumption == nil || *nodes[0].Consumption != 1.25 {
		t.Fatalf("Consumption = %v, want 1.25", nodes[0].Consumption)
	}
	if nodes[1].Consumption != nil {
		t.Fatalf("null consumption decoded as %v", *nodes[1].Consumption)
	}
	want := time.Date(2025, time.February, 28, 23, 0, 0, 0, time.UTC)
	if !nodes[0].From.Equal(want) {
		t.Fatalf("From = %s, want %s", nodes[0].From, want)
	}
}

func TestUpdatePriceInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"viewer":{"home":{
			"id":"home-1","appNickname":"Cabin","address":{"address1":"Fjordveien 1"},
			"features":{"realTimeConsumptionEnabled":true},
			"currentSubscription":{"priceInfo":{
				"current":{"currency":"NOK"},
				"today":[{"total":1.5,"startsAt":"2025-03-01T00:00:00.000+01:00"}],
				"tomorrow":[{"total":1.7,"startsAt":"2025-03-02T00:00:00.000+01:00"}]
			}}}}}}`))
	})

	h := c.Home("home-1")
	if err := h.UpdatePriceInfo(context.Background()); err != nil {
		t.Fatalf("UpdatePriceInfo: %v", err)
	}
	if !h.HasRealTimeConsumption() {
		t.Fatal("HasRealTimeConsumption() = false, want true")
	}
	info := h.Info()
	if info.Name != "Cabin" || info.Currency != "NOK" || info.Address != "Fjordveien 1" {
		t.Fatalf("Info() = %+v", info)
	}
	prices := h.PriceTotal()
	if len(prices) != 2 || prices["2025-03-02T00:00:00.000+01:00"] != 1.7 {
		t.Fatalf("PriceTotal() = %v", prices)
	}
}

func TestResolve_PicksFirstHome(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		req := decodeQuery(t, r)
		if strings.Contains(req.Query, "homes") {
			_, _ = w.Write([]byte(`{"data":{"viewer":{"homes":[{"id":"first"},{"id":"second"}]}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"viewer":{"home":{"consumption":{"nodes":[]}}}}}`))
	})

	h := c.Home("")
	if _, err := h.FetchHistoricConsumption(context.Background()); err != nil {
		t.Fatalf("FetchHistoricConsumption: %v", err)
	}
	if h.ID() != "first" {
		t.Fatalf("ID() = %q, want first", h.ID())
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.Home("h").FetchHistoricConsumption(context.Background())
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Home("h").FetchHistoricConsumption(context.Background())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v, want unexpected status 502", err)
	}
}

func TestGraphQLErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"home not found","extensions":{"code":"NOT_FOUND"}}]}`))
	})
	_, err := c.Home("h").FetchHistoricConsumption(context.Background())
	var gerr *GraphQLError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *GraphQLError", err)
	}
	if gerr.Messages[0] != "home not found" {
		t.Fatalf("Messages = %v", gerr.Messages)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad token","extensions":{"code":"UNAUTHENTICATED"}}]}`))
	})
	_, err = c.Home("h").FetchHistoricConsumption(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestAuthenticateAndGridPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login.credentials":
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if r.PostForm.Get("email") != "a@example.com" || r.PostForm.Get("password") != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"token":"app-token"}`))
		case "/v4/gql":
			if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"data":{"me":{"homes":[
				{"id":"other","subscription":null},
				{"id":"home-1","subscription":{"priceRating":{"hourly":{"entries":[
					{"time":"2025-03-01T14:00:00.000+01:00","gridPrice":0.42},
					{"time":"2025-03-01T15:00:00.000+01:00","gridPrice":0.51}
				]}}}}
			]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	if _, err := c.Authenticate(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Authenticate(wrong) err = %v, want ErrUnauthorized", err)
	}
	token, err := c.Authenticate(ctx, "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	resp, err := c.FetchGridPrices(ctx, token)
	if err != nil {
		t.Fatalf("FetchGridPrices: %v", err)
	}
	entries, ok := resp.ForHome("home-1")
	if !ok || len(entries) != 2 || entries[1].GridPrice != 0.51 {
		t.Fatalf("ForHome(home-1) = %v, %v", entries, ok)
	}
	if _, ok := resp.ForHome("missing"); ok {
		t.Fatal("ForHome(missing) ok = true")
	}
	if _, err := c.FetchGridPrices(ctx, "stale"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("FetchGridPrices(stale) err = %v, want ErrUnauthorized", err)
	}
}
