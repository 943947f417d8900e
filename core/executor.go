package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"

	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/shell"
)

const (
	// StatusNotFound is reported for a stage whose program doesn't exist.
	StatusNotFound = 127
	// StatusCantExec is reported for a stage whose program exists but
	// couldn't be started.
	StatusCantExec = 126
)

// LaunchError is returned when the resources for a pipeline couldn't be
// allocated. Nothing was started.
type LaunchError struct {
	Op  string
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExecError is returned when one stage of a pipeline couldn't be started.
// The remaining stages still run.
type ExecError struct {
	Stage int
	Name  string
	Err   error
}

func (e *ExecError) Error() string {
	if e.NotFound() {
		return fmt.Sprintf("%s: command not found", e.Name)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the program couldn't be located.
func (e *ExecError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) ||
		errors.Is(e.Err, exec.ErrDot) ||
		errors.Is(e.Err, fs.ErrNotExist)
}

// Status is the exit status the shell reports for the stage.
func (e *ExecError) Status() int {
	if e.NotFound() {
		return StatusNotFound
	}
	return StatusCantExec
}

// BuiltinFunc runs a command inside the interpreter.
type BuiltinFunc func(args []string) int

// Executor runs parsed pipelines as operating system processes.
type Executor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Jobs receives every stage of background pipelines.
	Jobs *jobs.Tracker

	// Builtins resolves in-process commands, it may be nil.
	Builtins func(name string) (BuiltinFunc, bool)

	// Events receives exec_error and job_started events, it may be nil.
	Events *logger.SessionLogger

	// Env is the child environment, nil inherits the interpreter's.
	Env []string

	foreground atomic.Bool
}

// ForegroundActive reports whether Execute is waiting on a foreground
// pipeline.
func (e *Executor) ForegroundActive() bool {
	return e.foreground.Load()
}

type pipe struct {
	r, w *os.File
}

func (p *pipe) close() {
	closeFile(&p.r)
	closeFile(&p.w)
}

func closeFile(fd **os.File) {
	if *fd != nil {
		(*fd).Close()
		*fd = nil
	}
}

// Execute runs cmd. The redirections in ec are always closed before Execute
// returns. The status is that of the last stage for foreground pipelines and
// 0 for background ones. Stages that failed to start are reported as
// *ExecError values joined into err.
func (e *Executor) Execute(cmd *shell.Command, ec *ExecContext) (int, error) {
	if ec == nil {
		ec = &ExecContext{}
	}
	defer ec.Close()

	if len(cmd.Stages) == 0 {
		return 0, shell.ErrEmptyCommand
	}

	if len(cmd.Stages) == 1 && e.Builtins != nil {
		if builtin, ok := e.Builtins(cmd.Stages[0].Name()); ok {
			ec.Close()
			return builtin(cmd.Stages[0].Args), nil
		}
	}

	pipes := make([]pipe, len(cmd.Stages)-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			for j := range pipes {
				pipes[j].close()
			}
			return 1, &LaunchError{Op: "pipe", Err: err}
		}
		pipes[i] = pipe{r: r, w: w}
	}

	var (
		started  []*exec.Cmd
		execErrs []error
		pgid     int
		// Status of the last stage if it never started.
		lastStatus = -1
	)

	// Marked before spawning so an interrupt racing the first stage belongs to
	// this pipeline.
	if !cmd.Background {
		e.foreground.Store(true)
		defer e.foreground.Store(false)
	}

	last := len(cmd.Stages) - 1
	for i, stage := range cmd.Stages {
		c := exec.Command(stage.Name(), stage.Args[1:]...)
		c.Args = stage.Args
		c.Env = e.Env
		c.Stderr = e.Stderr

		switch {
		case i == 0 && ec.Stdin != nil:
			c.Stdin = ec.Stdin
		case i > 0:
			c.Stdin = pipes[i-1].r
		default:
			c.Stdin = e.Stdin
		}

		switch {
		case i == last && ec.Stdout != nil:
			c.Stdout = ec.Stdout
		case i < last:
			c.Stdout = pipes[i].w
		default:
			c.Stdout = e.Stdout
		}

		if cmd.Background {
			c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
		}

		err := c.Start()

		if i > 0 {
			closeFile(&pipes[i-1].r)
		}
		if i < last {
			closeFile(&pipes[i].w)
		}

		if err != nil {
			execErr := &ExecError{Stage: i, Name: stage.Name(), Err: err}
			execErrs = append(execErrs, execErr)
			e.Events.Record(logger.ExecError, logger.Fields{
				"command": stage.Name(),
				"error":   execErr.Error(),
				"stage":   i,
			})
			if i == last {
				lastStatus = execErr.Status()
			}
			continue
		}

		if cmd.Background && pgid == 0 {
			pgid = c.Process.Pid
		}
		started = append(started, c)
	}
	ec.Close()

	if cmd.Background {
		for _, c := range started {
			job := jobs.NewJob(c.Process, c.Args, c.Wait)
			handle := e.Jobs.Push(job)
			fmt.Fprintf(e.Stderr, "[%d] %d\n", handle.Seq, handle.PID)
			e.Events.Record(logger.JobStarted, logger.Fields{
				"pid":     handle.PID,
				"seq":     handle.Seq,
				"command": c.Args,
			})
		}
		return 0, errors.Join(execErrs...)
	}

	status := lastStatus
	for _, c := range started {
		c.Wait()
		if lastStatus < 0 {
			status = exitStatus(c.ProcessState)
		}
	}
	if status < 0 {
		status = 0
	}

	return status, errors.Join(execErrs...)
}

// exitStatus converts a process state into a shell exit status, processes
// killed by a signal report 128 + the signal number.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return 1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
