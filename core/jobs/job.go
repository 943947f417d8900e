// Package jobs tracks background processes launched by the shell.
package jobs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// Handle identifies a tracked background process.
type Handle struct {
	// PID is the operating system process id.
	PID int `json:"pid"`
	// Seq is the order the job was pushed in, starting at 1.
	Seq uint64 `json:"seq"`
}

// Job is a single background process and its waiter.
type Job struct {
	Handle

	// Args is the argv the process was started with.
	Args []string

	process *os.Process
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// NewJob wraps a started process. wait must block until the process exits and
// release its resources (e.g. exec.Cmd.Wait); it is called exactly once, in
// its own goroutine.
func NewJob(process *os.Process, args []string, wait func() error) *Job {
	j := &Job{
		Handle:  Handle{PID: process.Pid},
		Args:    append([]string(nil), args...),
		process: process,
		done:    make(chan struct{}),
	}

	go func() {
		err := wait()
		j.mu.Lock()
		j.err = err
		j.mu.Unlock()
		close(j.done)
	}()

	return j
}

// Done is closed once the process has exited and been waited for.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Exited reports whether the process has already been waited for.
func (j *Job) Exited() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Err returns the result of waiting for the process; nil until Done.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Signal sends sig to the process. A process that was already waited for
// yields os.ErrProcessDone.
func (j *Job) Signal(sig os.Signal) error {
	if j.Exited() {
		return os.ErrProcessDone
	}
	err := j.process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return os.ErrProcessDone
	}
	return err
}

func (j *Job) String() string {
	return strings.Join(j.Args, " ")
}
