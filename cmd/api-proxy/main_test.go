package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lifeodyssey/junrei-api-client/internal/testutil"
	"github.com/lifeodyssey/junrei-api-client/pkg/client"
)

func newProxyClient(t *testing.T, mock *testutil.MockAPI) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(mock.URL())
	cfg.RateLimitCalls = 1000
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Body = %q, want OK", string(body))
	}
}

func TestStatsEndpoint(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	c := newProxyClient(t, mock)

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()

	statsHandler(c)(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Stats response is not JSON: %v", err)
	}
	if _, ok := payload["rate_limit_wait_ms"]; !ok {
		t.Error("Stats missing rate_limit_wait_ms")
	}
	if _, ok := payload["cache"]; !ok {
		t.Error("Stats missing cache section")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	newProxyClient(t, mock)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "# HELP") || !strings.Contains(string(body), "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
}

func TestProxyHandler_ForwardsGet(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/v1/items", testutil.NewHealthyResponse(`{"name": "widget"}`))

	c := newProxyClient(t, mock)
	handler := proxyHandler(c, zerolog.Nop())

	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Proxy response is not JSON: %v", err)
	}
	if payload["name"] != "widget" {
		t.Errorf("Payload = %v, want forwarded upstream body", payload)
	}
}

func TestProxyHandler_UpstreamErrorKeepsStatus(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/v1/absent", testutil.NewNotFoundResponse())

	c := newProxyClient(t, mock)
	handler := proxyHandler(c, zerolog.Nop())

	req := httptest.NewRequest("GET", "/api/v1/absent", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if got := w.Result().StatusCode; got != http.StatusNotFound {
		t.Errorf("Status = %d, want upstream 404 passed through", got)
	}
}

func TestProxyHandler_RejectsInvalidBody(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newProxyClient(t, mock)
	handler := proxyHandler(c, zerolog.Nop())

	req := httptest.NewRequest("POST", "/api/v1/items", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	handler(w, req)

	if got := w.Result().StatusCode; got != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400 for invalid JSON body", got)
	}
}
