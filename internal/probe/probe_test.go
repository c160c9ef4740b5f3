package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DimaJoyti/node-agent/internal/commlog"
)

func portOf(t *testing.T, server *httptest.Server) int {
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	p, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return p
}

func TestParseObjectInfo(t *testing.T) {
	raw := map[string]interface{}{
		"CheckpointLoaderSimple": map[string]interface{}{
			"input": map[string]interface{}{
				"required": map[string]interface{}{
					"ckpt_name": []interface{}{[]interface{}{"sd_xl_base_1.0.safetensors"}, map[string]interface{}{}},
				},
			},
		},
		"VAELoader": map[string]interface{}{
			"input": map[string]interface{}{
				"required": map[string]interface{}{
					"vae_name": []interface{}{[]interface{}{"wan_2.1_vae.safetensors"}, map[string]interface{}{}},
				},
			},
		},
		"SomeUnrelatedNode": map[string]interface{}{},
	}
	body, err := json.Marshal(raw)
	require.NoError(t, err)

	catalog := parseObjectInfo(body)
	assert.Equal(t, []string{"sd_xl_base_1.0.safetensors"}, catalog["checkpoint"])
	assert.Equal(t, []string{"wan_2.1_vae.safetensors"}, catalog["vae"])
	assert.NotContains(t, catalog, "clip")
}

func TestProbeLLM_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]string{{"name": "a:1"}, {"name": "b:2"}},
		})
	}))
	defer server.Close()

	llmLog := commlog.New()
	p := New(portOf(t, server), 1, llmLog, commlog.New(), nil)

	available, models := p.probeLLM(context.Background())
	assert.True(t, available)
	assert.Equal(t, []string{"a:1", "b:2"}, models)
	assert.Len(t, llmLog.Snapshot(), 1)
}

func TestProbeLLM_Unreachable(t *testing.T) {
	llmLog := commlog.New()
	p := New(1, 1, llmLog, commlog.New(), nil) // port 1 is never a listening LLM service in CI sandboxes
	available, models := p.probeLLM(context.Background())
	assert.False(t, available)
	assert.Nil(t, models)
}

func TestProbeRender_AvailableWithoutObjectInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/system_stats"):
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/object_info"):
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	renderLog := commlog.New()
	p := New(1, portOf(t, server), commlog.New(), renderLog, nil)

	available, catalog := p.probeRender(context.Background())
	assert.True(t, available)
	assert.Nil(t, catalog)
}

func TestProbeRender_FullCycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/system_stats"):
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/object_info"):
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"VAELoader": map[string]interface{}{
					"input": map[string]interface{}{
						"required": map[string]interface{}{
							"vae_name": []interface{}{[]interface{}{"wan_2.1_vae.safetensors"}, map[string]interface{}{}},
						},
					},
				},
			})
		}
	}))
	defer server.Close()

	p := New(1, portOf(t, server), commlog.New(), commlog.New(), nil)
	available, catalog := p.probeRender(context.Background())
	assert.True(t, available)
	assert.Equal(t, []string{"wan_2.1_vae.safetensors"}, catalog["vae"])
}
