package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, serverURL string) *Coordinator {
	c, err := New(Config{
		AgentDir:          t.TempDir(),
		AgentVersion:      "test",
		Port:              8765,
		LLMPort:           1,
		RenderPort:        1,
		ServerURL:         serverURL,
		NoUpdate:          true,
		ProbeInterval:     time.Hour,
		HeartbeatInterval: time.Hour,
		ExecPath:          t.TempDir() + "/agent",
	}, nil)
	require.NoError(t, err)
	return c
}

func TestCoordinator_HeartbeatPayloadReflectsProbeAndOverrides(t *testing.T) {
	c := newTestCoordinator(t, "")
	c.LLMState.SetLLM(true, []string{"a:1", "b:2"})
	c.RenderState.SetRender(true, map[string][]string{"vae": {"wan_2.1_vae.safetensors"}})

	_, err := c.Overrides.ToggleModel("b:2", boolPtr(false))
	require.NoError(t, err)

	payload := c.HeartbeatPayload()
	assert.Equal(t, []string{"a:1"}, payload.LLM.Models)
	assert.ElementsMatch(t, []string{"a:1", "b:2"}, payload.LLM.AllModels)
	assert.Equal(t, c.Identity.NodeID, payload.NodeID)
}

func TestCoordinator_RunProbeCycleUpdatesState(t *testing.T) {
	c := newTestCoordinator(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.runProbeCycle(ctx)
	assert.False(t, c.LLMState.Available())
	assert.False(t, c.RenderState.Available())
}

func TestCoordinator_RunHeartbeatCycleSendsPayload(t *testing.T) {
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		received <- struct{}{}
	}))
	defer server.Close()

	c := newTestCoordinator(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.runHeartbeatCycle(ctx)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("heartbeat was not sent")
	}
	assert.NotNil(t, c.Heartbeat.LastHeartbeat())
}

func boolPtr(b bool) *bool { return &b }
