package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/correlation"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/injector"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/internal/scanner"
	"github.com/forcetrace/forcetrace/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router *gin.Engine
	store  *database.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)

	store, err := database.NewStore(config.DatabaseConfig{
		Driver:          "sqlite3",
		DSN:             ":memory:",
		MaxConnections:  1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Defaults()
	registry := correlation.NewRegistry(store)
	scorer := correlation.NewScorer(cfg.Scoring)
	dedup := correlation.NewDedupGate(config.RedisConfig{}, store, log)
	engine := correlation.NewEngine(store, registry, scorer, dedup, log)
	sc := scanner.New(store, registry, cfg.Scanner, log)
	proc := injector.NewProcessor(store, cfg.Injector, log)

	server := NewServer(store, engine, sc, proc, log)
	return &apiFixture{
		router: server.Router(cfg.Security, log),
		store:  store,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestScanEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/scan", gin.H{"domain": "acme.my.salesforce.com"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["target_id"])
	assert.NotEmpty(t, body["session_id"])
	assert.Equal(t, float64(18), body["endpoints"])
	assert.Equal(t, "My Domain (Lightning)", body["salesforce_type"])
}

func TestScanEndpoint_MissingDomain(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/scan", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Domain is required", decode(t, w)["error"])
}

func TestProcessInjectionsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/scan", gin.H{"domain": "acme.my.salesforce.com"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/injections/process", gin.H{"batchSize": 100})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Greater(t, body["processed"], float64(0))
	assert.Equal(t, float64(0), body["errors"])

	details, ok := body["details"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, details)
	first := details[0].(map[string]interface{})
	assert.Equal(t, "injected", first["status"])
	assert.NotEmpty(t, first["token"])
	assert.NotEmpty(t, first["vulnType"])
}

func TestCallbackEndpoint_FullPipeline(t *testing.T) {
	f := newAPIFixture(t)
	token := seedInjectedToken(t, f)

	w := f.do(t, http.MethodPost, "/api/v1/callback", gin.H{
		"token":         token,
		"callback_type": "dns",
		"source_ip":     "96.43.144.5",
		"user_agent":    "SFDC-Internal/1.0",
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "high", body["confidence"])
	assert.NotEmpty(t, body["callback_id"])
}

func TestCallbackEndpoint_MissingToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/callback", gin.H{"user_agent": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbackEndpoint_UnknownToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/callback", gin.H{"token": "SOQL_000000000000"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid token", decode(t, w)["error"])
}

func TestCallbackEndpoint_GETBeacon(t *testing.T) {
	f := newAPIFixture(t)
	token := seedInjectedToken(t, f)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/callback?token="+token, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Chrome/120.0 Safari/537.36")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])
}

func TestCallbackEndpoint_BotFiltered(t *testing.T) {
	f := newAPIFixture(t)
	token := seedInjectedToken(t, f)

	w := f.do(t, http.MethodPost, "/api/v1/callback", gin.H{
		"token":      token,
		"user_agent": "Mozilla/5.0 (compatible; Googlebot/2.1)",
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["filtered"])
	assert.Contains(t, body["reason"], "googlebot")
}

func TestTargetMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/scan", gin.H{"domain": "acme.my.salesforce.com"})
	require.Equal(t, http.StatusOK, w.Code)
	targetID := decode(t, w)["target_id"].(string)

	w = f.do(t, http.MethodGet, "/api/v1/targets/"+targetID+"/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(18), body["endpoints"])
	assert.Greater(t, body["injections"], float64(0))
	assert.Equal(t, body["injections"], body["pending_injections"])
}

func TestTargetMetricsEndpoint_UnknownTarget(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/targets/nope/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

// seedInjectedToken runs scan + inject and returns a token whose injection
// is old enough to clear the self-trigger window.
func seedInjectedToken(t *testing.T, f *apiFixture) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/v1/scan", gin.H{"domain": "acme.my.salesforce.com"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/injections/process",
		gin.H{"batchSize": 1, "vulnTypeFilter": string(types.VulnSOQLInjection)})
	require.Equal(t, http.StatusOK, w.Code)

	details := decode(t, w)["details"].([]interface{})
	require.NotEmpty(t, details)
	token := details[0].(map[string]interface{})["token"].(string)

	// Backdate injected_at so delay-based scoring sees a stored trigger.
	injectedAt := time.Now().UTC().Add(-4000 * time.Second)
	_, err := f.store.DB().ExecContext(context.Background(),
		"UPDATE injections SET injected_at = ? WHERE token = ?", injectedAt, token)
	require.NoError(t, err)

	return token
}
