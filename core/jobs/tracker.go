package jobs

import "sync"

// Tracker is a stack of background jobs. The most recently pushed job is the
// implicit target of cancellation. It is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	jobs []*Job
	seq  uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Push adds a job and assigns its sequence number. Pushing a pid that is
// already tracked replaces the stale entry.
func (t *Tracker) Push(j *Job) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(j.PID)
	t.seq++
	j.Seq = t.seq
	t.jobs = append(t.jobs, j)
	return j.Handle
}

// MostRecent returns the last pushed job that is still tracked.
func (t *Tracker) MostRecent() (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.jobs) == 0 {
		return nil, false
	}
	return t.jobs[len(t.jobs)-1], true
}

// PopMostRecent removes and returns the last pushed job.
func (t *Tracker) PopMostRecent() (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.jobs) == 0 {
		return nil, false
	}
	last := t.jobs[len(t.jobs)-1]
	t.jobs[len(t.jobs)-1] = nil
	t.jobs = t.jobs[:len(t.jobs)-1]
	return last, true
}

// Remove stops tracking pid. It returns false if pid wasn't tracked, so of
// several racing removers exactly one observes true.
func (t *Tracker) Remove(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.removeLocked(pid)
}

func (t *Tracker) removeLocked(pid int) bool {
	for i := len(t.jobs) - 1; i >= 0; i-- {
		if t.jobs[i].PID == pid {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return true
		}
	}
	return false
}

// Reap removes and returns every job whose process has exited, oldest first.
func (t *Tracker) Reap() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	var reaped []*Job
	kept := t.jobs[:0]
	for _, j := range t.jobs {
		if j.Exited() {
			reaped = append(reaped, j)
		} else {
			kept = append(kept, j)
		}
	}
	for i := len(kept); i < len(t.jobs); i++ {
		t.jobs[i] = nil
	}
	t.jobs = kept
	return reaped
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.jobs)
}

// Handles returns a snapshot of the tracked handles, oldest first.
func (t *Tracker) Handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Handle, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j.Handle)
	}
	return out
}
