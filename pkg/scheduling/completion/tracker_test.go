package completion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/threadsearch/internal/testutil"
	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
)

func TestWaitWithNothingSubmitted(t *testing.T) {
	tr := New(nil)

	done := make(chan struct{})
	go func() {
		tr.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with zero pending tasks")
	}

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, tr.WaitContext(ctx))
	testutil.AssertNoError(t, tr.WaitPoll(ctx, time.Millisecond))
}

func TestWaitDoesNotReturnBeforeDelayedDone(t *testing.T) {
	tr := New(nil)
	tr.Increment()

	var doneAt atomic.Int64
	go func() {
		time.Sleep(50 * time.Millisecond)
		doneAt.Store(time.Now().UnixNano())
		tr.Done()
	}()

	tr.Wait()
	returnedAt := time.Now().UnixNano()

	if doneAt.Load() == 0 {
		t.Fatal("Wait returned before the task finished")
	}
	if returnedAt < doneAt.Load() {
		t.Fatal("Wait returned before Done was called")
	}
	testutil.AssertEqual(t, tr.Pending(), int64(0))
}

func TestWaitVariantsBlockUntilZero(t *testing.T) {
	waits := map[string]func(*Tracker) error{
		"Wait": func(tr *Tracker) error {
			tr.Wait()
			return nil
		},
		"WaitContext": func(tr *Tracker) error {
			return tr.WaitContext(context.Background())
		},
		"WaitPoll": func(tr *Tracker) error {
			return tr.WaitPoll(context.Background(), time.Millisecond)
		},
	}

	for name, wait := range waits {
		t.Run(name, func(t *testing.T) {
			tr := New(nil)
			tr.Add(3)

			released := make(chan error, 1)
			go func() { released <- wait(tr) }()

			for i := 0; i < 3; i++ {
				select {
				case <-released:
					t.Fatalf("released with %d tasks pending", 3-i)
				case <-time.After(10 * time.Millisecond):
				}
				tr.Done()
			}

			select {
			case err := <-released:
				testutil.AssertNoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("waiter not released at zero")
			}
		})
	}
}

func TestWaitContextCanceled(t *testing.T) {
	tr := New(nil)
	tr.Increment()
	defer tr.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tr.WaitContext(ctx)
	testutil.AssertEqual(t, errors.Is(err, context.DeadlineExceeded), true)
	testutil.AssertEqual(t, tr.Pending(), int64(1))
}

func TestWaitPollCanceled(t *testing.T) {
	tr := New(nil)
	tr.Increment()
	defer tr.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.WaitPoll(ctx, time.Millisecond)
	testutil.AssertEqual(t, errors.Is(err, context.Canceled), true)
}

func TestWaitPollRejectsInterval(t *testing.T) {
	tr := New(nil)
	err := tr.WaitPoll(context.Background(), 0)
	testutil.AssertEqual(t, errors.Is(err, tserrors.ErrInvalidConfiguration), true)
}

func TestConcurrentIncrementDone(t *testing.T) {
	tr := New(nil)
	const n = 1000

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		tr.Increment()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer tr.Done()
		}()
	}

	tr.Wait()
	wg.Wait()
	testutil.AssertEqual(t, tr.Pending(), int64(0))
	testutil.AssertEqual(t, tr.Added(), int64(n))
}

func TestNegativeCountPanics(t *testing.T) {
	tr := New(nil)
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on Done without Increment")
		}
	}()
	tr.Done()
}

func TestSharedLocker(t *testing.T) {
	var mu sync.Mutex
	tr := New(&mu)
	testutil.AssertEqual(t, tr.Locker() == &mu, true)

	// While the shared lock is held elsewhere, Done must wait for it.
	tr.Increment()
	mu.Lock()
	finished := make(chan struct{})
	go func() {
		tr.Done()
		close(finished)
	}()

	select {
	case <-finished:
		t.Fatal("Done completed while the shared lock was held")
	case <-time.After(20 * time.Millisecond):
	}
	mu.Unlock()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Done never completed")
	}
	testutil.AssertEqual(t, tr.Pending(), int64(0))
}
