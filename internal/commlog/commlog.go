// Package commlog implements the bounded in-memory ring of structured
// request/response records kept per service for debugging. It never
// blocks or fails the proxy hot path.
package commlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// maxEntries bounds the ring length (MAX_LOG_ENTRIES in the original agent).
const maxEntries = 200

// maxSummaryLen is the truncation boundary for string/stringified payloads.
const maxSummaryLen = 500

// maxPreviewLen is how much of a prompt/message is preserved for context.
const maxPreviewLen = 100

// Direction of a logged record.
type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

// Entry is one record in a service's ring.
type Entry struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Direction       Direction `json:"direction"`
	Endpoint        string    `json:"endpoint"`
	StatusCode      *int      `json:"status_code,omitempty"`
	DurationMs      *int64    `json:"duration_ms,omitempty"`
	Error           string    `json:"error,omitempty"`
	DataSummary     string    `json:"data_summary"`
	ResponseSummary string    `json:"response_summary"`
}

// Ring is the bounded, newest-first log for a single service.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
	lastSec int64
}

// New returns an empty Ring.
func New() *Ring {
	return &Ring{}
}

// AppendParams bundles the optional fields of a log entry.
type AppendParams struct {
	Endpoint   string
	Direction  Direction
	Payload    interface{}
	Response   interface{}
	Error      string
	DurationMs *int64
	StatusCode *int
}

// Append builds an Entry from p using the summarisation rules in spec.md
// §4.4 and prepends it to the ring, truncating to maxEntries.
func (r *Ring) Append(now time.Time, p AppendParams) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{
		ID:              r.nextIDLocked(now),
		Timestamp:       now,
		Direction:       p.Direction,
		Endpoint:        p.Endpoint,
		StatusCode:      p.StatusCode,
		DurationMs:      p.DurationMs,
		Error:           p.Error,
		DataSummary:     summarize(p.Payload),
		ResponseSummary: summarize(p.Response),
	}

	r.entries = append([]Entry{entry}, r.entries...)
	if len(r.entries) > maxEntries {
		r.entries = r.entries[:maxEntries]
	}
	return entry
}

// nextIDLocked produces an id monotone within the same wall-clock second.
// Caller must hold mu.
func (r *Ring) nextIDLocked(now time.Time) int64 {
	sec := now.Unix()
	if sec != r.lastSec {
		r.lastSec = sec
		r.nextID = 0
	}
	r.nextID++
	return sec*1000 + r.nextID
}

// Snapshot returns a copy of the ring, newest-first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear empties the ring.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// summarize applies the rules from spec.md §4.4 to a payload or response
// value. Values arrive already JSON-decoded (map[string]interface{},
// []interface{}, string, nil, or a scalar) or as a raw string for opaque
// bodies.
func summarize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return truncate(val, maxSummaryLen)
	case map[string]interface{}:
		if nodes, ok := val["prompt"].(map[string]interface{}); ok {
			return fmt.Sprintf("[Workflow with %d nodes]", len(nodes))
		}
		if model, ok := val["model"]; ok {
			preview := promptPreview(val)
			return fmt.Sprintf("model=%v, prompt=%s...", model, preview)
		}
		return truncate(stringify(val), maxSummaryLen)
	case []interface{}:
		return fmt.Sprintf("[List with %d items]", len(val))
	default:
		return truncate(stringify(val), maxSummaryLen)
	}
}

// promptPreview extracts the first ~100 chars of a prompt field or, failing
// that, the first message's content, for the model-bearing summary rule.
func promptPreview(val map[string]interface{}) string {
	if p, ok := val["prompt"].(string); ok {
		return truncate(p, maxPreviewLen)
	}
	if msgs, ok := val["messages"].([]interface{}); ok && len(msgs) > 0 {
		if first, ok := msgs[0].(map[string]interface{}); ok {
			if content, ok := first["content"].(string); ok {
				return truncate(content, maxPreviewLen)
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func stringify(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
