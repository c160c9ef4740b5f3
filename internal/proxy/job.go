package proxy

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxJobHistory bounds jobs_history (spec.md §3, invariant I4).
const maxJobHistory = 50

// Job mirrors spec.md §3's Job entity.
type Job struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Model          string     `json:"model,omitempty"`
	WorkflowNodes  int        `json:"workflow_nodes,omitempty"`
	PromptPreview  string     `json:"prompt_preview,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Status         string     `json:"status,omitempty"`
}

// JobTracker holds one service's single in-flight job slot plus its
// bounded, newest-first completion history. A second tracked inbound call
// while one is already running overwrites the slot outright (spec.md §4.7
// step 4 / §9 Open Question): the agent makes no back-pressure claim, and
// the overwritten job is never counted toward jobs_completed (invariant
// I3's ordering plus the literal wording of spec.md §4.10's state
// machine).
type JobTracker struct {
	mu        sync.Mutex
	current   *Job
	history   []Job
	completed int64
}

// NewJobTracker returns an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{}
}

// Start begins tracking a new job, overwriting whatever was current.
func (t *JobTracker) Start(jobType, model, promptPreview string, workflowNodes int, now time.Time) *Job {
	job := &Job{
		ID:            uuid.NewString(),
		Type:          jobType,
		Model:         model,
		WorkflowNodes: workflowNodes,
		PromptPreview: promptPreview,
		StartedAt:     now,
	}
	t.mu.Lock()
	t.current = job
	t.mu.Unlock()
	return job
}

// Complete clears whatever is current (if anything) and appends a
// terminal copy to history, incrementing jobs_completed. Returns false if
// there was no current job to complete (an untracked proxy call).
func (t *JobTracker) Complete(status string, now time.Time) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Job{}, false
	}

	done := *t.current
	done.Status = status
	done.CompletedAt = &now

	t.current = nil
	t.completed++
	t.history = append([]Job{done}, t.history...)
	if len(t.history) > maxJobHistory {
		t.history = t.history[:maxJobHistory]
	}
	return done, true
}

// Current returns a copy of the in-flight job, or nil when idle.
func (t *JobTracker) Current() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	cp := *t.current
	return &cp
}

// CompletedCount returns jobs_completed.
func (t *JobTracker) CompletedCount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// History returns a copy of the job history, newest-first.
func (t *JobTracker) History() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Job, len(t.history))
	copy(out, t.history)
	return out
}

// ManualStart registers a job started by POST /job/start rather than by
// the proxy itself.
func (t *JobTracker) ManualStart(id, jobType, model string, workflowNodes int, now time.Time) *Job {
	job := &Job{
		ID:            id,
		Type:          jobType,
		Model:         model,
		WorkflowNodes: workflowNodes,
		StartedAt:     now,
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	t.mu.Lock()
	t.current = job
	t.mu.Unlock()
	return job
}
