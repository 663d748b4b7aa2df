package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/threadrelay/internal/middleware"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(_ context.Context) error { return f.err }

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
		wantStore  string
	}{
		{"healthy", nil, http.StatusOK, "healthy", "ok"},
		{"degraded", errors.New("down"), http.StatusServiceUnavailable, "degraded", "unreachable"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := chi.NewRouter()
			NewHealthHandler(fakePinger{err: tc.pingErr}, 0).RegisterHealth(r)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.wantCode, rec.Code)

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.wantStatus, body.Status)
			assert.Equal(t, tc.wantStore, body.Checks["session_store"])
		})
	}
}

func TestRegisterWebhookChecksSecret(t *testing.T) {
	t.Parallel()
	r := chi.NewRouter()
	hit := 0
	RegisterWebhook(r, "/telegram/webhook", "s3cret", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{}"))
	req.Header.Set(middleware.TelegramSecretHeader, "s3cret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, hit)
}

func TestGRPCHealthRefresh(t *testing.T) {
	t.Parallel()

	g := NewGRPCHealth(fakePinger{}, 0, nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, g.Refresh(context.Background()))

	g = NewGRPCHealth(fakePinger{err: errors.New("down")}, 0, nil)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, g.Refresh(context.Background()))

	resp, err := g.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestFallbacksAnswerWithJSONErrors(t *testing.T) {
	t.Parallel()
	r := chi.NewRouter()
	RegisterFallbacks(r)
	NewHealthHandler(fakePinger{}, 0).RegisterHealth(r)

	cases := []struct {
		method, path string
		wantCode     int
		wantError    string
	}{
		{http.MethodGet, "/nope", http.StatusNotFound, "not found"},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed, "method not allowed"},
	}
	for _, tc := range cases {
		tc := tc
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.wantCode, rec.Code, tc.path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.wantError, body["error"])
	}
}
