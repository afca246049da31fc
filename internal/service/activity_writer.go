package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/observability"
)

const (
	defaultWriterQueueSize = 1000
	defaultWriterTimeout   = 5 * time.Second
)

type activityJob struct {
	ctx   context.Context
	entry ActivityEntry
}

// ActivityLogger is the fire-and-forget logging surface used by business services.
type ActivityLogger interface {
	EntityChange(ctx context.Context, req RequestContext, action models.ActionType, entity models.Entity, opts EntityChangeOptions)
	GuestActivity(ctx context.Context, req RequestContext, activity GuestActivity)
	BulkOperation(ctx context.Context, req RequestContext, op BulkOperation)
}

var _ ActivityLogger = (*ActivityWriter)(nil)

// ActivityWriter records activities off the request path. Nothing it does can
// fail or roll back the business operation that produced the entry.
type ActivityWriter struct {
	recorder ActivityRecorder
	logger   zerolog.Logger
	jobs     chan activityJob
	workers  int
	timeout  time.Duration
}

// NewActivityWriter creates a writer with the given queue capacity and worker count.
func NewActivityWriter(recorder ActivityRecorder, logger zerolog.Logger, queueSize, workers int) *ActivityWriter {
	if queueSize <= 0 {
		queueSize = defaultWriterQueueSize
	}
	if workers <= 0 {
		workers = 1
	}
	return &ActivityWriter{
		recorder: recorder,
		logger:   logger.With().Str("component", "activity_writer").Logger(),
		jobs:     make(chan activityJob, queueSize),
		workers:  workers,
		timeout:  defaultWriterTimeout,
	}
}

// Enqueue adds an entry without blocking. The entry is dropped when the queue
// is full. Cancelling ctx afterwards does not cancel the write.
func (w *ActivityWriter) Enqueue(ctx context.Context, entry ActivityEntry) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case w.jobs <- activityJob{ctx: context.WithoutCancel(ctx), entry: entry}:
		observability.ActivityQueueDepth().Set(float64(len(w.jobs)))
		return true
	default:
		observability.ActivityQueueDropped().Inc()
		w.logger.Warn().Str("action", string(entry.Action)).Msg("activity queue full, dropping entry")
		return false
	}
}

// EntityChange builds an entity change entry and enqueues it.
func (w *ActivityWriter) EntityChange(ctx context.Context, req RequestContext, action models.ActionType, entity models.Entity, opts EntityChangeOptions) {
	entry, err := NewEntityChangeEntry(req, action, entity, opts)
	if err != nil {
		w.buildFailed(err, action)
		return
	}
	w.Enqueue(ctx, entry)
}

// GuestActivity builds a guest activity entry and enqueues it.
func (w *ActivityWriter) GuestActivity(ctx context.Context, req RequestContext, activity GuestActivity) {
	entry, err := NewGuestActivityEntry(req, activity)
	if err != nil {
		w.buildFailed(err, activity.Action)
		return
	}
	w.Enqueue(ctx, entry)
}

// BulkOperation builds a bulk summary entry and enqueues it.
func (w *ActivityWriter) BulkOperation(ctx context.Context, req RequestContext, op BulkOperation) {
	entry, err := NewBulkOperationEntry(req, op)
	if err != nil {
		w.buildFailed(err, op.Action)
		return
	}
	w.Enqueue(ctx, entry)
}

// Run processes jobs until ctx is cancelled, then drains what is left.
func (w *ActivityWriter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-w.jobs:
					w.process(job)
				}
			}
		}()
	}
	wg.Wait()
	w.drain()
}

func (w *ActivityWriter) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(job)
		default:
			return
		}
	}
}

func (w *ActivityWriter) process(job activityJob) {
	observability.ActivityQueueDepth().Set(float64(len(w.jobs)))

	defer func() {
		if r := recover(); r != nil {
			observability.ActivityWriteFailures().WithLabelValues("panic").Inc()
			w.logger.Error().Str("panic", fmt.Sprint(r)).Msg("activity writer recovered from panic")
		}
	}()

	ctx, cancel := context.WithTimeout(job.ctx, w.timeout)
	defer cancel()

	if _, err := w.recorder.Record(ctx, job.entry); err != nil {
		w.logger.Warn().Err(err).
			Str("action", string(job.entry.Action)).
			Str("entity_path", job.entry.EntityPath).
			Msg("activity record failed")
	}
}

func (w *ActivityWriter) buildFailed(err error, action models.ActionType) {
	observability.ActivityWriteFailures().WithLabelValues("build").Inc()
	w.logger.Warn().Err(err).Str("action", string(action)).Msg("activity entry rejected")
}
