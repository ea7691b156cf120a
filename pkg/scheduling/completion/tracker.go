package completion

import (
	"context"
	"sync"
	"time"

	"github.com/vnykmshr/threadsearch/pkg/common/validation"
)

// Tracker counts work that has been submitted but has not finished yet.
//
// The counter is guarded by a mutex the caller may share with other low
// frequency critical sections, typically console output, so that a report
// line and a decrement never interleave. Tracker values are shared by pointer;
// a task holding one keeps it alive for as long as it needs it.
type Tracker struct {
	mu      *sync.Mutex
	zero    *sync.Cond
	pending int64
	added   int64
}

// New creates a Tracker guarded by mu. A nil mu gives the tracker a private
// lock.
func New(mu *sync.Mutex) *Tracker {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Tracker{
		mu:   mu,
		zero: sync.NewCond(mu),
	}
}

// Locker returns the mutex guarding the counter so that other writers can
// serialize with it.
func (t *Tracker) Locker() *sync.Mutex {
	return t.mu
}

// Add adjusts the pending count by delta. Waiters are released when the count
// reaches zero. Add panics if the count would go negative, which means a task
// finished more than once.
func (t *Tracker) Add(delta int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.pending + delta
	if next < 0 {
		panic("completion: negative pending count")
	}
	t.pending = next
	if delta > 0 {
		t.added += delta
	}
	if next == 0 {
		t.zero.Broadcast()
	}
}

// Increment records one submitted task. Call it before the task is handed to
// a worker so the matching Done can never overtake it.
func (t *Tracker) Increment() {
	t.Add(1)
}

// Done records one finished task.
func (t *Tracker) Done() {
	t.Add(-1)
}

// Pending returns the number of tasks submitted and not yet finished.
func (t *Tracker) Pending() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Added returns how many tasks have been recorded over the tracker's life.
func (t *Tracker) Added() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.added
}

// Wait blocks until the pending count is zero.
func (t *Tracker) Wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.pending != 0 {
		t.zero.Wait()
	}
}

// WaitContext blocks until the pending count is zero or ctx ends. It returns
// ctx.Err() in the latter case.
func (t *Tracker) WaitContext(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.zero.Broadcast()
		t.mu.Unlock()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.pending != 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.zero.Wait()
	}
	return nil
}

// WaitPoll waits for zero by re-checking the count every interval instead of
// parking on the condition variable.
func (t *Tracker) WaitPoll(ctx context.Context, interval time.Duration) error {
	if err := validation.ValidatePositiveDuration("completion", "interval", interval); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if t.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
