package azcli

import (
	"context"
	"sync"
)

// DefaultMaxConcurrency is the ceiling used when none is configured.
const DefaultMaxConcurrency = 10

// Stats is a read-only snapshot of scheduler state.
type Stats struct {
	Running        int
	Queued         int
	MaxConcurrency int
}

// waiter is a queued admission request
type waiter struct {
	ready   chan struct{} // closed when a slot is granted
	abort   chan struct{} // closed by CancelAll
	granted bool          // written under the scheduler mutex
}

// Scheduler enforces a global concurrency ceiling over external command
// execution. Up to MaxConcurrency requests run at once; the rest wait in a
// strict-FIFO queue and are released one at a time as running slots free up.
//
// A Scheduler is an explicitly constructed instance, not a hidden global:
// callers share the ceiling by sharing the instance.
type Scheduler struct {
	mu        sync.Mutex
	limit     int
	running   int
	abandoned int // slots forfeited by Reset whose releases are still pending
	queue     []*waiter
	live      map[Handle]struct{} // processes currently running, for CancelAll
}

// NewScheduler creates a scheduler with the given ceiling. A non-positive
// ceiling falls back to DefaultMaxConcurrency.
func NewScheduler(limit int) *Scheduler {
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	return &Scheduler{
		limit: limit,
		live:  make(map[Handle]struct{}),
	}
}

// Acquire blocks until a running slot is available. Requests that find a free
// slot run immediately; the rest are granted slots in arrival order. Returns
// ErrCancelled if ctx is cancelled while waiting or if CancelAll drains the
// queue first.
func (s *Scheduler) Acquire(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}

	s.mu.Lock()
	if s.running < s.limit && len(s.queue) == 0 {
		s.running++
		s.mu.Unlock()
		return nil
	}
	w := &waiter{
		ready: make(chan struct{}),
		abort: make(chan struct{}),
	}
	s.queue = append(s.queue, w)
	s.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-w.abort:
		return ErrCancelled
	case <-ctx.Done():
		s.mu.Lock()
		if w.granted {
			// Lost the race with a grant; give the slot back
			s.releaseLocked()
			s.mu.Unlock()
			return ErrCancelled
		}
		s.removeLocked(w)
		s.mu.Unlock()
		return ErrCancelled
	}
}

// Release frees a running slot and grants it to the head of the queue, if
// any. This is the sole mechanism by which queued work ever starts.
func (s *Scheduler) Release() {
	s.mu.Lock()
	s.releaseLocked()
	s.mu.Unlock()
}

func (s *Scheduler) releaseLocked() {
	if s.abandoned > 0 {
		// A request admitted before the last Reset is finishing. Its slot
		// was already zeroed by Reset, so it must not free a current one.
		s.abandoned--
		return
	}
	if s.running > 0 {
		s.running--
	}
	for s.running < s.limit && len(s.queue) > 0 {
		w := s.queue[0]
		s.queue = s.queue[1:]
		s.running++
		w.granted = true
		close(w.ready)
	}
}

func (s *Scheduler) removeLocked(target *waiter) {
	for i, w := range s.queue {
		if w == target {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// track registers a live process handle so CancelAll can terminate it.
func (s *Scheduler) track(h Handle) {
	s.mu.Lock()
	s.live[h] = struct{}{}
	s.mu.Unlock()
}

func (s *Scheduler) untrack(h Handle) {
	s.mu.Lock()
	delete(s.live, h)
	s.mu.Unlock()
}

// Stats returns a consistent snapshot of scheduler state. Safe to call
// concurrently with in-flight work.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Running:        s.running,
		Queued:         len(s.queue),
		MaxConcurrency: s.limit,
	}
}

// CancelAll drains the wait queue with cancelled outcomes and sends a
// termination signal to every running process. Best effort: termination is
// only guaranteed at the process boundary.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	queued := s.queue
	s.queue = nil
	handles := make([]Handle, 0, len(s.live))
	for h := range s.live {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, w := range queued {
		close(w.abort)
	}
	for _, h := range handles {
		h.Terminate()
	}
}

// Reset cancels all queued and running work and re-zeroes the counters.
// Intended for shutdown and test isolation; in-flight Acquire callers resolve
// as cancelled. Work that was running at Reset is abandoned: its eventual
// release is discounted so it never frees a slot admitted after the reset.
func (s *Scheduler) Reset() {
	s.CancelAll()

	s.mu.Lock()
	s.abandoned += s.running
	s.running = 0
	s.queue = nil
	s.live = make(map[Handle]struct{})
	s.mu.Unlock()
}
