package core

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/josephlewis42/pipesh/core/jobs"
	"github.com/josephlewis42/pipesh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe to write from the router goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startBackground(t *testing.T, te *testExecutor, argv string) {
	t.Helper()

	_, err := te.Execute(&shell.Command{Background: true, Stages: stages(argv)}, nil)
	require.NoError(t, err)
}

func TestRouterCancelMostRecent(t *testing.T) {
	te := newTestExecutor(t, "")
	router := NewRouter(te.Jobs, te.ForegroundActive)

	startBackground(t, te, "sleep 30")
	startBackground(t, te, "sleep 31")
	first := te.Jobs.Handles()[0]

	job, err := router.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sleep 31", job.String(), "the most recent job is cancelled")
	assert.True(t, job.Exited())

	remaining := te.Jobs.Handles()
	require.Len(t, remaining, 1)
	assert.Equal(t, first, remaining[0])

	still, ok := te.Jobs.MostRecent()
	require.True(t, ok)
	assert.False(t, still.Exited(), "older jobs keep running")
	assert.NoError(t, syscall.Kill(still.PID, 0))
}

func TestRouterCancelNoJobs(t *testing.T) {
	router := NewRouter(newTestExecutor(t, "").Jobs, nil)

	_, err := router.Cancel(context.Background())
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestRouterCancelExitedJob(t *testing.T) {
	te := newTestExecutor(t, "")
	router := NewRouter(te.Jobs, te.ForegroundActive)

	startBackground(t, te, "true")
	job, ok := te.Jobs.MostRecent()
	require.True(t, ok)
	<-job.Done()

	_, err := router.Cancel(context.Background())
	assert.ErrorIs(t, err, os.ErrProcessDone)
	assert.Equal(t, 0, te.Jobs.Len(), "exited job is removed")
}

func TestRouterReap(t *testing.T) {
	te := newTestExecutor(t, "")
	router := NewRouter(te.Jobs, te.ForegroundActive)
	var notices bytes.Buffer
	router.Notices = &notices

	startBackground(t, te, "sleep 30")
	startBackground(t, te, "true")
	job, _ := te.Jobs.MostRecent()
	<-job.Done()

	reaped := router.Reap()
	require.Len(t, reaped, 1)
	assert.Equal(t, "[2]+ Done  true\n", notices.String())
	assert.Equal(t, 1, te.Jobs.Len())
}

func TestRouterInterruptIgnoredInForeground(t *testing.T) {
	te := newTestExecutor(t, "")
	router := NewRouter(te.Jobs, func() bool { return true })

	startBackground(t, te, "sleep 30")
	router.handleInterrupt(context.Background())

	job, ok := te.Jobs.MostRecent()
	require.True(t, ok)
	assert.False(t, job.Exited())
}

func TestRouterRun(t *testing.T) {
	te := newTestExecutor(t, "")
	router := NewRouter(te.Jobs, te.ForegroundActive)
	notices := &syncBuffer{}
	router.Notices = notices

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)

	startBackground(t, te, "sleep 30")
	startBackground(t, te, "sleep 31")

	router.Interrupt()
	assert.Eventually(t, func() bool {
		return te.Jobs.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(notices.String(), "[2]+ Terminated  sleep 31")
	}, 5*time.Second, 10*time.Millisecond)

	router.Interrupt()
	assert.Eventually(t, func() bool {
		return te.Jobs.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)

	// No jobs left, interrupts are harmless.
	router.Interrupt()
}

// processState returns the state letter from /proc/<pid>/stat, or blank when
// it can't be read.
func processState(pid int) string {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return ""
	}
	// The state follows the parenthesised command name.
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func TestRouterCancelStoppedJob(t *testing.T) {
	te := newTestExecutor(t, "")
	router := NewRouter(te.Jobs, te.ForegroundActive)

	startBackground(t, te, "sleep 30")
	job, ok := te.Jobs.MostRecent()
	require.True(t, ok)
	require.NoError(t, job.Signal(syscall.SIGSTOP))
	if _, err := os.Stat("/proc/self/stat"); err == nil {
		assert.Eventually(t, func() bool {
			return processState(job.PID) == "T"
		}, 5*time.Second, 10*time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := router.Cancel(ctx)
	require.NoError(t, err, "stopped jobs are continued so they can terminate")
	assert.True(t, job.Exited())
	assert.Equal(t, 0, te.Jobs.Len())
}

func TestRouterCancelRacingReapReportsOnce(t *testing.T) {
	for i := 0; i < 5; i++ {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			te := newTestExecutor(t, "")
			router := NewRouter(te.Jobs, te.ForegroundActive)
			var notices syncBuffer
			router.Notices = &notices

			startBackground(t, te, "sleep 30")
			job, _ := te.Jobs.MostRecent()

			reaped := make(chan []*jobs.Job, 1)
			go func() {
				<-job.Done()
				reaped <- router.Reap()
			}()

			router.handleInterrupt(context.Background())
			<-reaped

			out := notices.String()
			done := strings.Count(out, "Done")
			terminated := strings.Count(out, "Terminated")
			assert.Equal(t, 1, done+terminated, "job reported exactly once: %q", out)
			assert.Equal(t, 0, te.Jobs.Len())
		})
	}
}

func TestRouterRequestReap(t *testing.T) {
	te := newTestExecutor(t, "")
	router := NewRouter(te.Jobs, te.ForegroundActive)
	notices := &syncBuffer{}
	router.Notices = notices

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)

	startBackground(t, te, "true")
	job, _ := te.Jobs.MostRecent()
	<-job.Done()

	router.RequestReap()
	assert.Eventually(t, func() bool {
		return te.Jobs.Len() == 0 && strings.Contains(notices.String(), "[1]+ Done  true")
	}, 5*time.Second, 10*time.Millisecond)
}
