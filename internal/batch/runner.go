package batch

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/electronjoe/photostamp/internal/photo"
	"github.com/electronjoe/photostamp/internal/watermark"
)

var (
	// ErrBusy is returned by Start while another run is in progress.
	ErrBusy = errors.New("a batch is already running")
	// ErrWaitTimeout is returned by Wait when the worker outlives the timeout.
	ErrWaitTimeout = errors.New("timed out waiting for batch worker")
)

type runFunc func(ctx context.Context, items []photo.Item, style watermark.Style, opts Options, sink func(Event)) (Result, error)

// Runner executes at most one run at a time on a background worker.
type Runner struct {
	run  runFunc
	busy atomic.Bool
}

func NewRunner(p *Processor) *Runner {
	return &Runner{run: p.Run}
}

// Job is a run in progress.
type Job struct {
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	result Result
	err    error
}

// Start snapshots items and stamps them on a worker goroutine. Events are
// delivered on Job.Events, which is closed when the worker exits.
func (r *Runner) Start(ctx context.Context, items []photo.Item, style watermark.Style, opts Options) (*Job, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	snapshot := slices.Clone(items)
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		cancel: cancel,
		// Progress and failure per item, plus done: sends never block.
		events: make(chan Event, 2*len(snapshot)+1),
		done:   make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.run(gctx, snapshot, style, opts, func(ev Event) {
			job.events <- ev
		})
		job.result = res
		return err
	})

	go func() {
		job.err = g.Wait()
		cancel()
		r.busy.Store(false)
		close(job.events)
		close(job.done)
	}()
	return job, nil
}

// Busy reports whether a run is in progress.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// Events returns the job's event stream.
func (j *Job) Events() <-chan Event {
	return j.events
}

// Cancel asks the worker to stop before its next item.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed once the worker has exited.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the worker exits or timeout elapses. A non-positive
// timeout waits indefinitely.
func (j *Job) Wait(timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		<-j.done
		return j.result, j.err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-j.done:
		return j.result, j.err
	case <-timer.C:
		return Result{}, ErrWaitTimeout
	}
}
