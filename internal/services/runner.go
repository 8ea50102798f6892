package services

import (
	"context"
	"errors"
	"sync"

	"mai/config"
	"mai/internal/jobs"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRunnerShuttingDown = errors.New("service shutting down")
	ErrRunnerQueueFull    = errors.New("queue full")
)

// Invoker runs one node class against raw inputs.
type Invoker interface {
	Invoke(ctx context.Context, class string, raw map[string]any) ([]any, error)
}

type queuedJob struct {
	id     string
	class  string
	inputs map[string]any
}

// Runner executes submitted node jobs off the request path with a bounded
// queue and a fixed number of concurrent slots.
type Runner struct {
	hub     jobs.Notifier
	tracker *jobs.Tracker
	invoker Invoker
	logger  *log.Logger

	queue chan queuedJob
	group errgroup.Group

	mu      sync.RWMutex
	closing bool
	started bool
	done    chan struct{}
	ctx     context.Context
}

func NewRunner(ctx context.Context, cfg config.RunnerConfig, invoker Invoker, tracker *jobs.Tracker, hub jobs.Notifier, logger *log.Logger) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	r := &Runner{
		hub:     hub,
		tracker: tracker,
		invoker: invoker,
		logger:  logger.With("component", "runner"),
		queue:   make(chan queuedJob, cfg.QueueSize),
		done:    make(chan struct{}),
		ctx:     ctx,
	}
	r.group.SetLimit(cfg.MaxConcurrent)
	return r
}

func (r *Runner) Run() {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		for {
			select {
			case <-r.ctx.Done():
				return
			case job, ok := <-r.queue:
				if !ok {
					return
				}
				jobCopy := job
				r.group.Go(func() error {
					r.runJob(jobCopy)
					return nil
				})
			}
		}
	}()
}

// Submit queues class for execution on behalf of clientID and returns the
// job id.
func (r *Runner) Submit(clientID, class string, inputs map[string]any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closing {
		return "", ErrRunnerShuttingDown
	}

	job := queuedJob{id: uuid.NewString(), class: class, inputs: inputs}
	r.tracker.Add(jobs.Job{ID: job.id, ClientID: clientID, Class: class})

	select {
	case r.queue <- job:
		return job.id, nil
	default:
		r.tracker.Fail(job.id, ErrRunnerQueueFull)
		return "", ErrRunnerQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued and running ones.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	if !r.closing {
		r.closing = true
		close(r.queue)
	}
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.done
	}
	_ = r.group.Wait()
}

// WS only emits text, completion and failure.
func (r *Runner) runJob(job queuedJob) {
	if err := r.ctx.Err(); err != nil {
		r.tracker.Fail(job.id, err)
		return
	}
	if err := r.tracker.Start(job.id); err != nil {
		r.logger.Warn("job vanished before start", "job", job.id, "err", err)
		return
	}

	ctx := jobs.WithJob(r.ctx, job.id)
	out, err := r.invoker.Invoke(ctx, job.class, job.inputs)

	snapshot, _ := r.tracker.Get(job.id)
	if err != nil {
		r.tracker.Fail(job.id, err)
		r.hub.SendTo(snapshot.ClientID, jobs.Event{
			Type:    jobs.EventFailed,
			JobID:   job.id,
			Class:   job.class,
			Message: err.Error(),
		})
		return
	}

	r.tracker.Finish(job.id, out)
	r.hub.SendTo(snapshot.ClientID, jobs.Event{
		Type:    jobs.EventCompleted,
		JobID:   job.id,
		Class:   job.class,
		Message: "job complete",
	})
}
