// Package heartbeat implements C8: a periodic POST of identity,
// capabilities, stats and hardware to a configured orchestrator URL.
// Grounded on the teacher's outbound HTTP client conventions
// (pkg/errors-wrapped calls with bounded timeouts, as used throughout
// internal/security-gateway) adapted to a fire-and-forget push loop.
package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/DimaJoyti/node-agent/pkg/errors"
	"github.com/DimaJoyti/node-agent/pkg/logger"
)

// timeout bounds each heartbeat POST (spec.md §4.8).
const timeout = 10 * time.Second

// Payload is the heartbeat request body. Field names mirror spec.md §4.8's
// enumerated contents: identity, filtered LLM models, RENDER catalog,
// both service stats snapshots, both current jobs, workflow ids plus the
// ready subset, and the hardware snapshot.
type Payload struct {
	NodeID         string      `json:"node_id"`
	Hostname       string      `json:"hostname"`
	Version        string      `json:"version"`
	LLM            ServiceView `json:"llm"`
	Render         ServiceView `json:"render"`
	WorkflowIDs    []string    `json:"workflow_ids"`
	ReadyWorkflows []string    `json:"ready_workflows"`
	Hardware       interface{} `json:"hardware"`
	Timestamp      time.Time   `json:"timestamp"`
}

// ServiceView bundles one service's heartbeat-relevant state.
type ServiceView struct {
	Available  bool        `json:"available"`
	Models     []string    `json:"models,omitempty"`
	AllModels  []string    `json:"all_models,omitempty"`
	Catalog    interface{} `json:"catalog,omitempty"`
	Stats      interface{} `json:"stats"`
	CurrentJob interface{} `json:"current_job,omitempty"`
}

// Source supplies a fresh Payload for each tick. The agent coordinator
// implements this by taking a consistent lock-protected snapshot without
// holding the lock across network I/O (spec.md §5 ordering rule).
type Source interface {
	HeartbeatPayload() Payload
}

// Client posts heartbeats to one orchestrator URL.
type Client struct {
	serverURL string
	http      *http.Client
	log       *logger.Logger

	mu            sync.Mutex
	lastHeartbeat *time.Time
}

// New returns a Client. An empty serverURL disables heartbeats entirely;
// Send becomes a no-op, matching spec.md §4.8's "if an orchestrator URL is
// configured".
func New(serverURL string, log *logger.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}
}

// Enabled reports whether a server URL was configured.
func (c *Client) Enabled() bool {
	return c.serverURL != ""
}

// LastHeartbeat returns the time of the last successful POST, or nil.
func (c *Client) LastHeartbeat() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastHeartbeat == nil {
		return nil
	}
	t := *c.lastHeartbeat
	return &t
}

// Send POSTs one payload to <server>/nodes/heartbeat. Failures are logged
// and returned wrapped as HeartbeatFailed; callers must treat the error as
// non-fatal and retry on the next cycle (spec.md §4.8).
func (c *Client) Send(ctx context.Context, payload Payload) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapTyped(errors.HeartbeatFailed, err, "failed to encode heartbeat payload")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/nodes/heartbeat", bytes.NewReader(body))
	if err != nil {
		return errors.WrapTyped(errors.HeartbeatFailed, err, "failed to build heartbeat request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if c.log != nil {
			c.log.Warn("heartbeat POST failed: %v", err)
		}
		return errors.WrapTyped(errors.HeartbeatFailed, err, "heartbeat request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Warn("heartbeat rejected with status %d", resp.StatusCode)
		}
		return errors.NewTyped(errors.HeartbeatFailed, "orchestrator rejected heartbeat")
	}

	now := time.Now()
	c.mu.Lock()
	c.lastHeartbeat = &now
	c.mu.Unlock()
	return nil
}
