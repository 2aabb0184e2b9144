package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/576576/hadesstar-bot/internal/api"
	"github.com/576576/hadesstar-bot/internal/app"
	"github.com/576576/hadesstar-bot/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	app    *app.App
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:                "test",
		JWTSecret:          "test-secret",
		JWTExpiration:      time.Hour,
		QueueWait:          20 * time.Minute,
		EventCooldown:      20 * time.Minute,
		EventEnabled:       true,
		AdminIDs:           []string{"admin"},
		SuperAdminIDs:      []string{"root"},
		Storage:            config.StorageMemory,
		QueueStore:         config.StorageMemory,
		Locker:             config.LockerLocal,
		RateLimitPerMinute: rateLimit,
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a.Start(ctx)

	return &testServer{router: api.SetupRouter(cfg, a.Services), app: a}
}

func (s *testServer) do(t *testing.T, method, path, playerID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if playerID != "" {
		token, err := s.app.Services.JWT.Generate(playerID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) registerPlayers(t *testing.T, level int, ids ...string) {
	t.Helper()
	for _, id := range ids {
		w := s.do(t, http.MethodPut, "/api/v1/admin/players/"+id, "admin", map[string]interface{}{
			"licenseLevel":    level,
			"profileComplete": true,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "hadesstar-bot", body["service"])
	assert.Equal(t, "ok", body["status"])
	assert.Empty(t, body["checks"], "memory backends have nothing to ping")
}

func TestWebSocketStatus(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodGet, "/api/v1/ws/status", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["connected"])
	assert.EqualValues(t, 0, body["total"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/v1/queue/join", "", map[string]string{"token": "D9"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventRunFlow(t *testing.T) {
	s := newTestServer(t, 0)
	s.registerPlayers(t, 10, "alice", "bob")

	w := s.do(t, http.MethodPost, "/api/v1/queue/join", "alice", map[string]string{"token": "hk10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "queued", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/v1/queue/HK", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	queues := decode(t, w)["queues"].([]interface{})
	require.Len(t, queues, 1)

	w = s.do(t, http.MethodPost, "/api/v1/queue/join", "bob", map[string]string{"token": "HK10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "launched", body["status"])
	launch := body["launch"].(map[string]interface{})
	assert.Equal(t, float64(1000), launch["runId"])

	w = s.do(t, http.MethodPost, "/api/v1/runs/score", "alice", map[string]interface{}{"runId": 1000, "score": 100})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(50), decode(t, w)["share"])

	w = s.do(t, http.MethodPost, "/api/v1/runs/score", "bob", map[string]interface{}{"runId": 1000, "score": 100})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/rank/bob", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rank := decode(t, w)["rank"].(map[string]interface{})
	assert.Equal(t, float64(50), rank["totalScore"])
	assert.Equal(t, float64(1), rank["totalRuns"])

	w = s.do(t, http.MethodGet, "/api/v1/leaderboard?limit=5", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/v1/runs/1000", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 쿨다운 중 이벤트 대기열 거절
	w = s.do(t, http.MethodPost, "/api/v1/queue/join", "alice", map[string]string{"token": "HK10"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	eligibility := decode(t, w)["eligibility"].(map[string]interface{})
	assert.Equal(t, "event_cooldown", eligibility["reason"])
}

func TestQueueErrors(t *testing.T) {
	s := newTestServer(t, 0)
	s.registerPlayers(t, 8, "alice")

	w := s.do(t, http.MethodPost, "/api/v1/queue/join", "alice", map[string]string{"token": "hello world"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/queue/join", "alice", map[string]string{"token": "D9"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "under_leveled", decode(t, w)["eligibility"].(map[string]interface{})["reason"])

	w = s.do(t, http.MethodPost, "/api/v1/queue/join", "carol", map[string]string{"token": "D7"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/queue/quit", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/runs/abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/runs/1234", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/players/nobody", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueJoinQuitAndSnapshot(t *testing.T) {
	s := newTestServer(t, 0)
	s.registerPlayers(t, 10, "alice")

	w := s.do(t, http.MethodPost, "/api/v1/queue/join", "alice", map[string]string{"token": "D9"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/queue", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = s.do(t, http.MethodPost, "/api/v1/queue/quit", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["timedOut"])

	w = s.do(t, http.MethodGet, "/api/v1/queue", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPut, "/api/v1/admin/players/alice", "alice", map[string]int{"licenseLevel": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/admin/players/alice", "admin", map[string]int{"licenseLevel": 13})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/queue", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/admin/queue", "admin", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/ledger", "admin", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/admin/ledger", "root", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	s.registerPlayers(t, 10, "alice")
	s.do(t, http.MethodPost, "/api/v1/queue/join", "alice", map[string]string{"token": "D9"})

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `crew_queue_joins_total{event="false",mode="trio",outcome="queued"} 1`), w.Body.String())
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 3)

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodGet, "/api/v1/queue", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := s.do(t, http.MethodGet, "/api/v1/queue", "alice", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 플레이어마다 따로 센다
	w = s.do(t, http.MethodGet, "/api/v1/queue", "bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
