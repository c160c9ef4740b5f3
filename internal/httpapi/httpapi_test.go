package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimaJoyti/node-agent/internal/agent"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func portOf(t *testing.T, server *httptest.Server) int {
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	p, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return p
}

func newTestRouter(t *testing.T, llmPort, renderPort int) (*gin.Engine, *agent.Coordinator) {
	coord, err := agent.New(agent.Config{
		AgentDir:          t.TempDir(),
		AgentVersion:      "test-version",
		Port:              8765,
		LLMPort:           llmPort,
		RenderPort:        renderPort,
		NoUpdate:          true,
		ProbeInterval:     time.Hour,
		HeartbeatInterval: time.Hour,
		ExecPath:          t.TempDir() + "/agent",
	}, nil)
	require.NoError(t, err)
	return NewRouter(coord, nil), coord
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, 1, 1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
}

func TestStatusAndStats(t *testing.T) {
	router, _ := newTestRouter(t, 1, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/stats/reset", nil))
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestModelsToggleAndConfig(t *testing.T) {
	router, coord := newTestRouter(t, 1, 1)
	coord.LLMState.SetLLM(true, []string{"a:1", "b:2"})

	body, _ := json.Marshal(map[string]interface{}{"model": "b:2", "enabled": false})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/models/toggle", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/models/config", nil))
	require.Equal(t, http.StatusOK, w2.Code)
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &cfg))
	assert.ElementsMatch(t, []interface{}{"a:1"}, cfg["advertised"])
}

func TestWorkflowsListAndGet(t *testing.T) {
	router, _ := newTestRouter(t, 1, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workflows", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/workflows/wan2.2_14B_t2v", nil))
	assert.Equal(t, http.StatusOK, w2.Code)

	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, httptest.NewRequest(http.MethodGet, "/workflows/nonexistent", nil))
	assert.Equal(t, http.StatusNotFound, w3.Code)
}

func TestCanHandleLLMUnavailable(t *testing.T) {
	router, _ := newTestRouter(t, 1, 1)

	body, _ := json.Marshal(map[string]string{"job_type": "generate"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/can-handle", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp canHandleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.CanHandle)
	assert.Equal(t, 0, resp.Score)
}

func TestCanHandleLLMAvailableHighScore(t *testing.T) {
	router, coord := newTestRouter(t, 1, 1)
	coord.LLMState.SetLLM(true, []string{"a:1"})

	body, _ := json.Marshal(map[string]string{"job_type": "generate"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/can-handle", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	var resp canHandleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.CanHandle)
	assert.Equal(t, 100, resp.Score)
}

func TestProxyMountForwardsToLLM(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer upstream.Close()

	router, _ := newTestRouter(t, portOf(t, upstream), 1)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/proxy/llm/api/tags", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "yes")
}

func TestMetricsExposesProxyCounters(t *testing.T) {
	router, _ := newTestRouter(t, 1, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "node_agent_requests_total")
	assert.Contains(t, w.Body.String(), "node_agent_uptime_seconds")
}

func TestJobsHistoryAndLogs(t *testing.T) {
	router, _ := newTestRouter(t, 1, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/logs", nil))
	assert.Equal(t, http.StatusOK, w2.Code)

	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, httptest.NewRequest(http.MethodGet, "/logs/llm", nil))
	assert.Equal(t, http.StatusOK, w3.Code)

	w4 := httptest.NewRecorder()
	router.ServeHTTP(w4, httptest.NewRequest(http.MethodPost, "/logs/llm/clear", nil))
	assert.Equal(t, http.StatusOK, w4.Code)
}
