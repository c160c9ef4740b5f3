package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTracker_StartCompleteCycle(t *testing.T) {
	tr := NewJobTracker()
	assert.Nil(t, tr.Current())

	start := time.Now()
	job := tr.Start("generate", "llama3", "hi", 0, start)
	require.NotNil(t, tr.Current())
	assert.Equal(t, job.ID, tr.Current().ID)

	done, ok := tr.Complete("ok", start.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, "ok", done.Status)
	assert.Nil(t, tr.Current())
	assert.EqualValues(t, 1, tr.CompletedCount())
	require.Len(t, tr.History(), 1)
	assert.Equal(t, job.ID, tr.History()[0].ID)
}

func TestJobTracker_CompleteWithNothingCurrentIsNoop(t *testing.T) {
	tr := NewJobTracker()
	_, ok := tr.Complete("ok", time.Now())
	assert.False(t, ok)
	assert.EqualValues(t, 0, tr.CompletedCount())
}

func TestJobTracker_OverwriteDropsFirstJobUncounted(t *testing.T) {
	tr := NewJobTracker()
	first := tr.Start("generate", "m1", "p1", 0, time.Now())
	second := tr.Start("generate", "m2", "p2", 0, time.Now())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, tr.Current().ID)

	tr.Complete("ok", time.Now())
	assert.EqualValues(t, 1, tr.CompletedCount())
	require.Len(t, tr.History(), 1)
	assert.Equal(t, second.ID, tr.History()[0].ID)
}

func TestJobTracker_HistoryBounded(t *testing.T) {
	tr := NewJobTracker()
	for i := 0; i < maxJobHistory+10; i++ {
		tr.Start("generate", "m", "p", 0, time.Now())
		tr.Complete("ok", time.Now())
	}
	assert.Len(t, tr.History(), maxJobHistory)
	assert.EqualValues(t, maxJobHistory+10, tr.CompletedCount())
}

func TestJobTracker_ManualStart(t *testing.T) {
	tr := NewJobTracker()
	job := tr.ManualStart("custom-id", "render", "", 4, time.Now())
	assert.Equal(t, "custom-id", job.ID)
	assert.Equal(t, "render", tr.Current().Type)
}
