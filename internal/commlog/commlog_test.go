package commlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_SummarizeRules(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, "null"},
		{"short string", "hello", "hello"},
		{"list", []interface{}{1, 2, 3}, "[List with 3 items]"},
		{
			"workflow prompt graph",
			map[string]interface{}{"prompt": map[string]interface{}{"1": map[string]interface{}{}, "2": map[string]interface{}{}}},
			"[Workflow with 2 nodes]",
		},
		{
			"model with prompt",
			map[string]interface{}{"model": "llama3", "prompt": "hi there"},
			"model=llama3, prompt=hi there...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarize(tt.in))
		})
	}
}

func TestRing_StringTruncation(t *testing.T) {
	long := make([]byte, maxSummaryLen+10)
	for i := range long {
		long[i] = 'a'
	}
	got := summarize(string(long))
	assert.Len(t, got, maxSummaryLen+3)
}

func TestRing_AppendBoundedAndNewestFirst(t *testing.T) {
	r := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var last Entry
	for i := 0; i < maxEntries+25; i++ {
		last = r.Append(now.Add(time.Duration(i)*time.Second), AppendParams{
			Endpoint:  "/tags",
			Direction: DirectionSend,
		})
	}

	snap := r.Snapshot()
	require.Len(t, snap, maxEntries)
	assert.Equal(t, last.ID, snap[0].ID)
}

func TestRing_Clear(t *testing.T) {
	r := New()
	r.Append(time.Now(), AppendParams{Endpoint: "/x", Direction: DirectionReceive})
	require.Len(t, r.Snapshot(), 1)

	r.Clear()
	assert.Empty(t, r.Snapshot())
}

func TestRing_MonotoneIDsWithinSecond(t *testing.T) {
	r := New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	e1 := r.Append(now, AppendParams{Endpoint: "/a", Direction: DirectionSend})
	e2 := r.Append(now, AppendParams{Endpoint: "/b", Direction: DirectionSend})

	assert.Greater(t, e2.ID, e1.ID)
}
