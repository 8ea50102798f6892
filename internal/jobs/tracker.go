// Package jobs tracks node invocations submitted through the bridge while
// they run, including the text they generate.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotRunning = errors.New("job not running")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Job struct {
	ID             string     `json:"jobId"`
	ClientID       string     `json:"clientId"`
	Class          string     `json:"class"`
	Status         Status     `json:"status"`
	GeneratedTexts []string   `json:"generatedTexts"`
	Outputs        []any      `json:"-"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Tracker is an in-memory job table. Finished jobs beyond the retention
// limit are dropped oldest first.
type Tracker struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	order  []string
	retain int
}

func NewTracker(retain int) *Tracker {
	if retain <= 0 {
		retain = 256
	}
	return &Tracker{
		jobs:   map[string]*Job{},
		retain: retain,
	}
}

func (t *Tracker) Add(job Job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job.Status = StatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	t.jobs[job.ID] = &job
	t.order = append(t.order, job.ID)
	t.prune()
}

func (t *Tracker) Start(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = StatusRunning
	return nil
}

// AppendText adds generated text to a running job and returns the id of the
// client that submitted it.
func (t *Tracker) AppendText(id, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return "", ErrJobNotFound
	}
	if job.Status != StatusRunning {
		return "", ErrJobNotRunning
	}
	job.GeneratedTexts = append(job.GeneratedTexts, text)
	return job.ClientID, nil
}

func (t *Tracker) Finish(id string, outputs []any) {
	t.finish(id, StatusCompleted, outputs, "")
}

func (t *Tracker) Fail(id string, err error) {
	t.finish(id, StatusFailed, nil, err.Error())
}

func (t *Tracker) finish(id string, status Status, outputs []any, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return
	}
	now := time.Now()
	job.Status = status
	job.Outputs = outputs
	job.Error = msg
	job.FinishedAt = &now
	t.prune()
}

// Get returns a copy of the job.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	cp := *job
	cp.GeneratedTexts = append([]string(nil), job.GeneratedTexts...)
	return cp, true
}

// prune expects t.mu to be held.
func (t *Tracker) prune() {
	for len(t.order) > t.retain {
		dropped := false
		for i, id := range t.order {
			if t.jobs[id].Status.Done() {
				delete(t.jobs, id)
				t.order = append(t.order[:i], t.order[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}

type ctxKey struct{}

// WithJob marks ctx as belonging to job id.
func WithJob(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func JobID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
