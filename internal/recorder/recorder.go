// Package recorder forwards text produced by nodes to the job that invoked
// them. Recording is best effort and never fails the node.
package recorder

import (
	"context"

	"mai/internal/jobs"

	"github.com/charmbracelet/log"
)

type Recorder interface {
	Record(ctx context.Context, text string)
}

// Source hands out recorders bound to a record key.
type Source interface {
	For(key string) Recorder
}

type Nop struct{}

func (Nop) Record(context.Context, string) {}

func (n Nop) For(string) Recorder { return n }

// Tracking appends generated text to the running job carried by ctx and
// notifies the client that submitted it.
type Tracking struct {
	tracker  *jobs.Tracker
	notifier jobs.Notifier
	logger   *log.Logger
}

func NewTracking(tracker *jobs.Tracker, notifier jobs.Notifier, logger *log.Logger) *Tracking {
	return &Tracking{
		tracker:  tracker,
		notifier: notifier,
		logger:   logger.With("component", "recorder"),
	}
}

func (t *Tracking) For(key string) Recorder {
	return &bound{t: t, key: key}
}

type bound struct {
	t   *Tracking
	key string
}

func (b *bound) Record(ctx context.Context, text string) {
	defer func() {
		if p := recover(); p != nil {
			b.t.logger.Warn("failed to save generated text", "key", b.key, "panic", p)
		}
	}()

	id, ok := jobs.JobID(ctx)
	if !ok {
		b.t.logger.Debug("no job for generated text", "key", b.key)
		return
	}
	clientID, err := b.t.tracker.AppendText(id, text)
	if err != nil {
		b.t.logger.Warn("failed to save generated text", "key", b.key, "job", id, "err", err)
		return
	}
	if b.t.notifier != nil && clientID != "" {
		b.t.notifier.SendTo(clientID, jobs.Event{
			Type:    jobs.EventText,
			JobID:   id,
			Key:     b.key,
			Message: text,
		})
	}
}
