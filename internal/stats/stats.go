// Package stats implements the per-service rolling-window statistics
// engine used for load-balancing decisions exposed to the orchestrator.
package stats

import (
	"sync"
	"time"
)

const (
	// recentWindow bounds how many latency samples are kept for the
	// rolling average (STATS_HISTORY_SIZE in the original agent).
	recentWindow = 100
	// rpmWindow is the sliding window used to compute requests-per-minute.
	rpmWindow = 60 * time.Second
	// maxErrorLen truncates last_error the same way commlog truncates summaries.
	maxErrorLen = 500
)

// Snapshot is the read-only value object exposed over the HTTP surface.
type Snapshot struct {
	Total             int64      `json:"total"`
	OK                int64      `json:"ok"`
	Fail              int64      `json:"fail"`
	SuccessRate       float64    `json:"success_rate"`
	AvgMs             float64    `json:"avg_ms"`
	MinMs             *int64     `json:"min_ms"`
	MaxMs             *int64     `json:"max_ms"`
	RequestsPerMinute int        `json:"requests_per_minute"`
	TokensTotal       int64      `json:"tokens_total"`
	TokensPerSecAvg   float64    `json:"tokens_per_sec_avg"`
	LastError         string     `json:"last_error,omitempty"`
	LastErrorTime     *time.Time `json:"last_error_time,omitempty"`
}

// Engine is one rolling-window counter set for one service (LLM or RENDER).
// record/reset/snapshot are the only entry points; all are O(1) amortized
// so the proxy hot path never stalls on telemetry.
type Engine struct {
	mu sync.Mutex

	total, ok, fail int64
	sumMs           int64
	minMs, maxMs    *int64
	recentMs        []int64
	reqTimestamps   []time.Time

	tokensTotal     int64
	tokensPerSecAvg float64

	lastError     string
	lastErrorTime *time.Time
}

// New returns a zeroed Engine.
func New() *Engine {
	return &Engine{}
}

// Record is the single mutator for the engine. durationMs is the full
// proxy round-trip latency; tokens is the whitespace-split token count
// accumulated while streaming the response (0 for non-LLM or non-streaming
// calls). now is passed in so tests can drive the sliding window
// deterministically.
func (e *Engine) Record(now time.Time, durationMs int64, success bool, errMsg string, tokens int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.total++
	if success {
		e.ok++
	} else {
		e.fail++
	}

	e.sumMs += durationMs
	if e.minMs == nil || durationMs < *e.minMs {
		v := durationMs
		e.minMs = &v
	}
	if e.maxMs == nil || durationMs > *e.maxMs {
		v := durationMs
		e.maxMs = &v
	}

	e.recentMs = append(e.recentMs, durationMs)
	if len(e.recentMs) > recentWindow {
		e.recentMs = e.recentMs[len(e.recentMs)-recentWindow:]
	}

	e.reqTimestamps = append(e.reqTimestamps, now)
	e.pruneTimestampsLocked(now)

	if tokens > 0 {
		e.tokensTotal += tokens
		seconds := float64(durationMs) / 1000.0
		if seconds > 0 {
			cur := float64(tokens) / seconds
			if e.tokensPerSecAvg == 0 {
				e.tokensPerSecAvg = cur
			} else {
				e.tokensPerSecAvg = (e.tokensPerSecAvg + cur) / 2
			}
		}
	}

	if !success {
		msg := errMsg
		if len(msg) > maxErrorLen {
			msg = msg[:maxErrorLen] + "..."
		}
		e.lastError = msg
		t := now
		e.lastErrorTime = &t
	}
}

// pruneTimestampsLocked drops timestamps older than rpmWindow. Caller must hold mu.
func (e *Engine) pruneTimestampsLocked(now time.Time) {
	cutoff := now.Add(-rpmWindow)
	i := 0
	for i < len(e.reqTimestamps) && e.reqTimestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		e.reqTimestamps = e.reqTimestamps[i:]
	}
}

// Reset zeros all counters, as required by POST /stats/reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.total, e.ok, e.fail = 0, 0, 0
	e.sumMs = 0
	e.minMs, e.maxMs = nil, nil
	e.recentMs = nil
	e.reqTimestamps = nil
	e.tokensTotal = 0
	e.tokensPerSecAvg = 0
	e.lastError = ""
	e.lastErrorTime = nil
}

// Snapshot returns a value copy for serialization. success_rate is 100 when
// total==0 per spec.
func (e *Engine) Snapshot(now time.Time) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneTimestampsLocked(now)

	s := Snapshot{
		Total:             e.total,
		OK:                e.ok,
		Fail:              e.fail,
		RequestsPerMinute: len(e.reqTimestamps),
		TokensTotal:       e.tokensTotal,
		TokensPerSecAvg:   e.tokensPerSecAvg,
		LastError:         e.lastError,
		LastErrorTime:     e.lastErrorTime,
	}
	if e.total == 0 {
		s.SuccessRate = 100.0
	} else {
		s.SuccessRate = float64(e.ok) / float64(e.total) * 100.0
	}
	if len(e.recentMs) > 0 {
		var sum int64
		for _, v := range e.recentMs {
			sum += v
		}
		s.AvgMs = float64(sum) / float64(len(e.recentMs))
	}
	if e.minMs != nil {
		v := *e.minMs
		s.MinMs = &v
	}
	if e.maxMs != nil {
		v := *e.maxMs
		s.MaxMs = &v
	}
	return s
}
