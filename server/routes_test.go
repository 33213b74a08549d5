package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zzin/campsync/sync"
)

type stubRunner struct {
	result sync.SyncResult
	err    error
}

func (s *stubRunner) PerformSync(ctx context.Context) (sync.SyncResult, error) {
	return s.result, s.err
}

type stubChecker struct {
	health sync.SystemHealth
}

func (s *stubChecker) Check(ctx context.Context) sync.SystemHealth {
	return s.health
}

type stubJobs struct {
	statuses map[string]bool
}

func (s *stubJobs) JobStatus() map[string]bool {
	return s.statuses
}

func testServerSettings() sync.ServerSettings {
	return sync.ServerSettings{
		JWTSecret: "test-secret",
		APIKey:    "webhook-key",
		Username:  "admin",
		Password:  "hunter2",
	}
}

func newTestServer(t *testing.T, runner SyncRunner, checker HealthChecker, jobs JobStatusReporter) http.Handler {
	t.Helper()
	routes := NewRoutes(zap.NewNop().Sugar(), testServerSettings(), runner, checker, jobs)
	return NewServer(routes)
}

func loginToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Username: "admin", Password: "hunter2"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var response LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotEmpty(t, response.Token)
	return response.Token
}

func TestLogin(t *testing.T) {
	handler := newTestServer(t, &stubRunner{}, &stubChecker{}, &stubJobs{})

	t.Run("valid credentials", func(t *testing.T) {
		loginToken(t, handler)
	})

	t.Run("wrong password", func(t *testing.T) {
		body, _ := json.Marshal(LoginRequest{Username: "admin", Password: "wrong"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader([]byte("{"))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name     string
		health   sync.SystemHealth
		expected int
	}{
		{"healthy", sync.SystemHealth{Status: sync.HealthHealthy,
			Services: sync.ServiceHealth{CampaignSource: true, PageStore: true}}, http.StatusOK},
		{"degraded", sync.SystemHealth{Status: sync.HealthDegraded,
			Services: sync.ServiceHealth{PageStore: true}}, http.StatusOK},
		{"unhealthy", sync.SystemHealth{Status: sync.HealthUnhealthy}, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			handler := newTestServer(t, &stubRunner{}, &stubChecker{health: c.health}, &stubJobs{})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			assert.Equal(t, c.expected, rec.Code)

			var body sync.SystemHealth
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, c.health.Status, body.Status)
		})
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	handler := newTestServer(t, &stubRunner{}, &stubChecker{}, &stubJobs{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatus(t *testing.T) {
	jobs := &stubJobs{statuses: map[string]bool{"morning-sync": true, "evening-sync": true}}
	handler := newTestServer(t, &stubRunner{}, &stubChecker{}, jobs)
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var response StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "admin", response.User)
	assert.Equal(t, jobs.statuses, response.Scheduler)
}

func TestManualSync(t *testing.T) {
	result := sync.SyncResult{
		RunID:              "run-1",
		Success:            true,
		Completed:          true,
		ProcessedCampaigns: 3,
		UpdatedPages:       2,
		Errors:             []string{},
	}
	handler := newTestServer(t, &stubRunner{result: result}, &stubChecker{}, &stubJobs{})
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync/manual", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body sync.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, result, body)
	// An empty error list marshals as [], not null.
	assert.Contains(t, rec.Body.String(), `"errors":[]`)
}

func TestManualSyncConflict(t *testing.T) {
	handler := newTestServer(t, &stubRunner{err: sync.ErrSyncInProgress}, &stubChecker{}, &stubJobs{})
	token := loginToken(t, handler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync/manual", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebhookSync(t *testing.T) {
	handler := newTestServer(t, &stubRunner{result: sync.SyncResult{RunID: "run-2", Success: true}}, &stubChecker{}, &stubJobs{})

	t.Run("valid key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/sync", nil)
		req.Header.Set("X-Api-Key", "webhook-key")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhook/sync", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/sync", nil)
		req.Header.Set("X-Api-Key", "nope")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
