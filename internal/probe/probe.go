// Package probe implements C2: polling the local LLM and RENDER services
// on a fixed cadence to discover their capabilities.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DimaJoyti/node-agent/internal/commlog"
	"github.com/DimaJoyti/node-agent/pkg/logger"
)

const (
	llmTagsTimeout    = 5 * time.Second
	renderPingTimeout = 3 * time.Second
	objectInfoTimeout = 10 * time.Second
)

// loaderNode maps a well-known RENDER loader node class name to the slot
// it populates and the COMBO input field carrying the candidate list.
type loaderNode struct {
	slot  string
	field string
}

// wellKnownLoaders is intentionally small and explicit: only these node
// types are interpreted, matching spec.md §4.2 ("well-known loader node
// names").
var wellKnownLoaders = map[string]loaderNode{
	"CheckpointLoaderSimple": {slot: "checkpoint", field: "ckpt_name"},
	"VAELoader":              {slot: "vae", field: "vae_name"},
	"CLIPLoader":             {slot: "clip", field: "clip_name"},
	"LoraLoader":             {slot: "lora", field: "lora_name"},
	"UNETLoader":             {slot: "unet", field: "unet_name"},
}

// Result is the outcome of one full probe cycle.
type Result struct {
	LLMAvailable    bool
	LLMModels       []string
	RenderAvailable bool
	RenderCatalog   map[string][]string
}

// Prober polls the two local services over plain HTTP on 127.0.0.1.
type Prober struct {
	llmBaseURL    string
	renderBaseURL string
	client        *http.Client
	llmLog        *commlog.Ring
	renderLog     *commlog.Ring
	log           *logger.Logger
}

// New builds a Prober for the given local ports.
func New(llmPort, renderPort int, llmLog, renderLog *commlog.Ring, log *logger.Logger) *Prober {
	return &Prober{
		llmBaseURL:    fmt.Sprintf("http://127.0.0.1:%d", llmPort),
		renderBaseURL: fmt.Sprintf("http://127.0.0.1:%d", renderPort),
		client:        &http.Client{},
		llmLog:        llmLog,
		renderLog:     renderLog,
		log:           log,
	}
}

// ProbeAll runs both probes and returns a combined Result. Individual
// probe failures never abort the other probe nor return an error: a
// failed probe just leaves the corresponding fields at their zero value,
// per spec.md §4.2 ("Failures set available=false ... only until the
// next successful probe").
func (p *Prober) ProbeAll(ctx context.Context) Result {
	llmAvailable, llmModels := p.probeLLM(ctx)
	renderAvailable, renderCatalog := p.probeRender(ctx)
	return Result{
		LLMAvailable:    llmAvailable,
		LLMModels:       llmModels,
		RenderAvailable: renderAvailable,
		RenderCatalog:   renderCatalog,
	}
}

// llmTagsResponse matches the LLM service's tag-list endpoint shape.
type llmTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func (p *Prober) probeLLM(ctx context.Context) (bool, []string) {
	ctx, cancel := context.WithTimeout(ctx, llmTagsTimeout)
	defer cancel()

	start := time.Now()
	body, status, err := p.get(ctx, p.llmBaseURL+"/api/tags")
	duration := time.Since(start).Milliseconds()

	p.logProbe(p.llmLog, "/api/tags", status, duration, err)

	if err != nil || status < 200 || status >= 300 {
		return false, nil
	}

	var parsed llmTagsResponse
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil {
		if p.log != nil {
			p.log.Warn("failed to parse LLM tag list: %v", jsonErr)
		}
		return true, nil
	}

	tags := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			tags = append(tags, name)
		}
	}
	return true, tags
}

func (p *Prober) probeRender(ctx context.Context) (bool, map[string][]string) {
	pingCtx, cancel := context.WithTimeout(ctx, renderPingTimeout)
	defer cancel()

	available := false
	for _, path := range []string{"/system_stats", "/queue"} {
		start := time.Now()
		_, status, err := p.get(pingCtx, p.renderBaseURL+path)
		p.logProbe(p.renderLog, path, status, time.Since(start).Milliseconds(), err)
		if err == nil && status >= 200 && status < 300 {
			available = true
			break
		}
	}
	if !available {
		return false, nil
	}

	infoCtx, cancel2 := context.WithTimeout(ctx, objectInfoTimeout)
	defer cancel2()

	start := time.Now()
	body, status, err := p.get(infoCtx, p.renderBaseURL+"/object_info")
	p.logProbe(p.renderLog, "/object_info", status, time.Since(start).Milliseconds(), err)
	if err != nil || status < 200 || status >= 300 {
		// Service answered the liveness pings but not /object_info: still
		// available, just with an empty (untouched-until-next-success)
		// catalog for this cycle.
		return true, nil
	}

	return true, parseObjectInfo(body)
}

// parseObjectInfo extracts the candidate model-file lists embedded under
// each well-known loader node (spec.md §4.2).
func parseObjectInfo(body []byte) map[string][]string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	catalog := map[string][]string{}
	for className, loader := range wellKnownLoaders {
		nodeRaw, ok := raw[className]
		if !ok {
			continue
		}
		var node struct {
			Input struct {
				Required map[string]json.RawMessage `json:"required"`
			} `json:"input"`
		}
		if err := json.Unmarshal(nodeRaw, &node); err != nil {
			continue
		}
		fieldRaw, ok := node.Input.Required[loader.field]
		if !ok {
			continue
		}

		// COMBO-typed inputs are encoded as a 2-element array whose first
		// element is the choice list.
		var combo []json.RawMessage
		if err := json.Unmarshal(fieldRaw, &combo); err != nil || len(combo) == 0 {
			continue
		}
		var names []string
		if err := json.Unmarshal(combo[0], &names); err != nil {
			continue
		}
		catalog[loader.slot] = names
	}
	return catalog
}

func (p *Prober) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (p *Prober) logProbe(ring *commlog.Ring, endpoint string, status int, durationMs int64, err error) {
	if ring == nil {
		return
	}
	params := commlog.AppendParams{
		Endpoint:   endpoint,
		Direction:  commlog.DirectionReceive,
		DurationMs: &durationMs,
	}
	if status != 0 {
		params.StatusCode = &status
	}
	if err != nil {
		params.Error = err.Error()
	}
	ring.Append(time.Now(), params)
}
