package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_RecordThenSnapshot(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	e := New()
	e.Record(now, 42, true, "", 0)

	snap := e.Snapshot(now)
	assert.EqualValues(t, 1, snap.Total)
	assert.EqualValues(t, 1, snap.OK)
	assert.EqualValues(t, 0, snap.Fail)
	assert.Equal(t, 100.0, snap.SuccessRate)
	assert.Equal(t, 42.0, snap.AvgMs)
	require.NotNil(t, snap.MinMs)
	require.NotNil(t, snap.MaxMs)
	assert.EqualValues(t, 42, *snap.MinMs)
	assert.EqualValues(t, 42, *snap.MaxMs)
}

func TestEngine_SuccessRateAndLastError(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New()

	e.Record(now, 10, true, "", 0)
	e.Record(now, 20, false, "connection refused", 0)

	snap := e.Snapshot(now)
	assert.EqualValues(t, 2, snap.Total)
	assert.Equal(t, 50.0, snap.SuccessRate)
	assert.Equal(t, "connection refused", snap.LastError)
	require.NotNil(t, snap.LastErrorTime)
}

func TestEngine_ZeroTotalSuccessRate(t *testing.T) {
	e := New()
	snap := e.Snapshot(time.Now())
	assert.Equal(t, 100.0, snap.SuccessRate)
	assert.Nil(t, snap.MinMs)
	assert.Nil(t, snap.MaxMs)
}

func TestEngine_RecentMsWindowBounded(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New()

	for i := 0; i < recentWindow+20; i++ {
		e.Record(now, int64(i), true, "", 0)
	}

	e.mu.Lock()
	length := len(e.recentMs)
	e.mu.Unlock()
	assert.LessOrEqual(t, length, recentWindow)
}

func TestEngine_RequestsPerMinuteSlidingWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New()

	e.Record(base, 5, true, "", 0)
	e.Record(base.Add(30*time.Second), 5, true, "", 0)

	snap := e.Snapshot(base.Add(61 * time.Second))
	assert.Equal(t, 1, snap.RequestsPerMinute)
}

func TestEngine_TokensPerSecRunningMean(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New()

	// 1000ms, 10 tokens -> 10 tok/s
	e.Record(now, 1000, true, "", 10)
	snap := e.Snapshot(now)
	assert.Equal(t, 10.0, snap.TokensPerSecAvg)
	assert.EqualValues(t, 10, snap.TokensTotal)

	// 1000ms, 30 tokens -> 30 tok/s, running mean (10+30)/2 = 20
	e.Record(now, 1000, true, "", 30)
	snap = e.Snapshot(now)
	assert.Equal(t, 20.0, snap.TokensPerSecAvg)
	assert.EqualValues(t, 40, snap.TokensTotal)
}

func TestEngine_Reset(t *testing.T) {
	now := time.Now()
	e := New()
	e.Record(now, 100, false, "boom", 5)

	e.Reset()

	snap := e.Snapshot(now)
	assert.EqualValues(t, 0, snap.Total)
	assert.Equal(t, 100.0, snap.SuccessRate)
	assert.Empty(t, snap.LastError)
}

func TestEngine_LastErrorTruncated(t *testing.T) {
	now := time.Now()
	e := New()

	long := make([]byte, maxErrorLen+50)
	for i := range long {
		long[i] = 'x'
	}

	e.Record(now, 1, false, string(long), 0)
	snap := e.Snapshot(now)
	assert.Len(t, snap.LastError, maxErrorLen+3) // +"..."
}
