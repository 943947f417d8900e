package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/logger"
)

// ErrNoJobs is returned by Cancel when nothing runs in the background.
var ErrNoJobs = errors.New("no background jobs")

// Router turns interrupts and child exits into job tracker updates. Signal
// delivery only queues an event, all of the signalling, waiting and removal
// happens on the goroutine running Run.
type Router struct {
	Jobs *jobs.Tracker
	// Foreground reports whether a foreground pipeline owns the terminal.
	Foreground func() bool
	// CancelSignal is sent to the most recent job on interrupt.
	CancelSignal os.Signal
	// Notices receives job status lines such as "[1]+ Done  sleep 5".
	Notices io.Writer
	Events  *logger.SessionLogger

	interrupts chan struct{}
	reaps      chan struct{}
}

// NewRouter creates a router for tracker.
func NewRouter(tracker *jobs.Tracker, foreground func() bool) *Router {
	return &Router{
		Jobs:         tracker,
		Foreground:   foreground,
		CancelSignal: syscall.SIGTERM,
		Notices:      io.Discard,
		interrupts:   make(chan struct{}, 1),
		reaps:        make(chan struct{}, 1),
	}
}

// Run routes signals until ctx is done.
func (r *Router) Run(ctx context.Context) {
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGCHLD)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGINT:
				r.handleInterrupt(ctx)
			case syscall.SIGCHLD:
				r.Reap()
			}
		case <-r.interrupts:
			r.handleInterrupt(ctx)
		case <-r.reaps:
			r.Reap()
		}
	}
}

// Interrupt queues an interrupt as if SIGINT had been received. Interrupts
// arriving while one is already queued are coalesced.
func (r *Router) Interrupt() {
	select {
	case r.interrupts <- struct{}{}:
	default:
	}
}

// RequestReap queues a Reap on the routing goroutine so it can't interleave
// with a cancellation in progress.
func (r *Router) RequestReap() {
	select {
	case r.reaps <- struct{}{}:
	default:
	}
}

func (r *Router) handleInterrupt(ctx context.Context) {
	if r.Foreground != nil && r.Foreground() {
		// The terminal already delivered it to the foreground process group.
		return
	}

	job, err := r.Cancel(ctx)
	switch {
	case errors.Is(err, ErrNoJobs), errors.Is(err, os.ErrProcessDone):
	case err != nil:
		fmt.Fprintf(r.notices(), "pipesh: cancel: %v\n", err)
	default:
		fmt.Fprintf(r.notices(), "[%d]+ Terminated  %s\n", job.Seq, job)
	}
}

// Cancel sends the cancel signal to the most recently launched job, waits for
// it to exit and stops tracking it. Stopped jobs are continued so they can act
// on the signal. A job that had already exited, or that was reaped while
// being cancelled, yields os.ErrProcessDone.
func (r *Router) Cancel(ctx context.Context) (*jobs.Job, error) {
	job, ok := r.Jobs.MostRecent()
	if !ok {
		return nil, ErrNoJobs
	}

	if err := job.Signal(r.cancelSignal()); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			r.Jobs.Remove(job.PID)
			return job, os.ErrProcessDone
		}
		return job, err
	}
	if err := job.Signal(syscall.SIGCONT); err != nil &&
		!errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH) {
		return job, err
	}

	select {
	case <-job.Done():
	case <-ctx.Done():
		return job, ctx.Err()
	}

	if !r.Jobs.Remove(job.PID) {
		// Already reported by Reap.
		return job, os.ErrProcessDone
	}
	r.Events.Record(logger.JobCancelled, logger.Fields{
		"pid":     job.PID,
		"seq":     job.Seq,
		"command": job.Args,
	})
	return job, nil
}

// Reap stops tracking every job that exited and reports it.
func (r *Router) Reap() []*jobs.Job {
	reaped := r.Jobs.Reap()
	for _, job := range reaped {
		fmt.Fprintf(r.notices(), "[%d]+ Done  %s\n", job.Seq, job)
		r.Events.Record(logger.JobDone, logger.Fields{
			"pid":     job.PID,
			"seq":     job.Seq,
			"command": job.Args,
		})
	}
	return reaped
}

func (r *Router) cancelSignal() os.Signal {
	if r.CancelSignal == nil {
		return syscall.SIGTERM
	}
	return r.CancelSignal
}

func (r *Router) notices() io.Writer {
	if r.Notices == nil {
		return io.Discard
	}
	return r.Notices
}
