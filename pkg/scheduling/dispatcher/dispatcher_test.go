package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/threadsearch/internal/testutil"
	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/metrics"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/workerpool"
)

// sliceSource serves a fixed list of items. If err is set, the walk fails
// after failAfter items have been handed out.
type sliceSource struct {
	items     []Item
	failAfter int
	err       error
	eligible  func(Item) bool
}

func (s *sliceSource) Walk(ctx context.Context, root string, fn func(Item) error) error {
	for i, item := range s.items {
		if s.err != nil && i == s.failAfter {
			return s.err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceSource) Eligible(item Item) bool {
	if s.eligible == nil {
		return true
	}
	return s.eligible(item)
}

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{Path: fmt.Sprintf("file-%04d.txt", i)}
	}
	return out
}

func newPool(t *testing.T, mode workerpool.Mode, workers int) workerpool.Pool {
	t.Helper()
	pool, err := workerpool.NewWithConfig(workerpool.Config{WorkerCount: workers, Mode: mode})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() {
		select {
		case <-pool.Shutdown():
		case <-time.After(testutil.TestTimeout):
			t.Error("timeout waiting for pool shutdown")
		}
	})
	return pool
}

func noop(ctx context.Context, item Item, target string) (int, error) {
	return 0, nil
}

func TestNewValidation(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 1)
	src := &sliceSource{}

	tests := []struct {
		name   string
		pool   workerpool.Pool
		source Source
		body   Body
	}{
		{"nil pool", nil, src, noop},
		{"nil source", pool, nil, noop},
		{"nil body", pool, src, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.pool, tt.source, tt.body)
			testutil.AssertEqual(t, d, (*Dispatcher)(nil))
			testutil.AssertEqual(t, tserrors.IsValidationError(err), true)
		})
	}
}

func TestRunQuiescence(t *testing.T) {
	for _, mode := range []workerpool.Mode{workerpool.ModePoll, workerpool.ModeBlocking} {
		for _, n := range []int{1, 10, 500} {
			t.Run(fmt.Sprintf("%s/%d", mode, n), func(t *testing.T) {
				pool := newPool(t, mode, 4)

				var calls sync.Map
				var total int64
				body := func(ctx context.Context, item Item, target string) (int, error) {
					if _, dup := calls.LoadOrStore(item.Path, true); dup {
						t.Errorf("item %s processed twice", item.Path)
					}
					atomic.AddInt64(&total, 1)
					return 1, nil
				}

				d, err := New(pool, &sliceSource{items: items(n)}, body)
				testutil.AssertNoError(t, err)

				stats, err := d.Run(context.Background(), "root", "needle")
				testutil.AssertNoError(t, err)

				testutil.AssertEqual(t, stats.Submitted, int64(n))
				testutil.AssertEqual(t, atomic.LoadInt64(&total), int64(n))
				testutil.AssertEqual(t, stats.Matches, int64(n))
				testutil.AssertEqual(t, stats.Failed, int64(0))
				testutil.AssertEqual(t, stats.Seen, int64(n))
			})
		}
	}
}

// An empty tree returns at once.
func TestRunNoItems(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 2)
	d, err := New(pool, &sliceSource{}, noop)
	testutil.AssertNoError(t, err)

	done := make(chan Stats, 1)
	go func() {
		stats, _ := d.Run(context.Background(), "empty", "x")
		done <- stats
	}()

	select {
	case stats := <-done:
		testutil.AssertEqual(t, stats.Submitted, int64(0))
		testutil.AssertNotEqual(t, stats.RunID, "")
	case <-time.After(time.Second):
		t.Fatal("Run did not return for an empty source")
	}
}

// Run must not return while a body is still working.
func TestRunWaitsForSlowItem(t *testing.T) {
	pool := newPool(t, workerpool.ModePoll, 2)

	var finished atomic.Bool
	body := func(ctx context.Context, item Item, target string) (int, error) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return 0, nil
	}

	d, err := New(pool, &sliceSource{items: items(1)}, body)
	testutil.AssertNoError(t, err)

	_, err = d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, finished.Load(), true)
}

func TestRunCountsItemFailures(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 3)

	body := func(ctx context.Context, item Item, target string) (int, error) {
		if strings.HasSuffix(item.Path, "3.txt") {
			return 0, tserrors.NewOperationError("scan", "open", tserrors.ErrItemAccess)
		}
		return 2, nil
	}

	d, err := New(pool, &sliceSource{items: items(20)}, body)
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, stats.Submitted, int64(20))
	testutil.AssertEqual(t, stats.Failed, int64(2))
	testutil.AssertEqual(t, stats.Matches, int64(36))
}

// Through the dispatcher, a panicking body still finishes its item.
func TestRunSurvivesPanickingBody(t *testing.T) {
	pool := newPool(t, workerpool.ModePoll, 1)

	var ran atomic.Int64
	body := func(ctx context.Context, item Item, target string) (int, error) {
		ran.Add(1)
		if item.Path == "file-0000.txt" {
			panic("corrupt file")
		}
		return 0, nil
	}

	d, err := New(pool, &sliceSource{items: items(5)}, body)
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, ran.Load(), int64(5))
	testutil.AssertEqual(t, stats.Failed, int64(1))
}

func TestRunSkipsIneligible(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 2)

	src := &sliceSource{
		items: []Item{{Path: "a.c"}, {Path: "b.bin"}, {Path: "c.py"}, {Path: "d.o"}},
		eligible: func(item Item) bool {
			return !strings.HasSuffix(item.Path, ".bin") && !strings.HasSuffix(item.Path, ".o")
		},
	}

	var seen sync.Map
	body := func(ctx context.Context, item Item, target string) (int, error) {
		seen.Store(item.Path, true)
		return 0, nil
	}

	d, err := New(pool, src, body)
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, stats.Seen, int64(4))
	testutil.AssertEqual(t, stats.Skipped, int64(2))
	testutil.AssertEqual(t, stats.Submitted, int64(2))

	_, ok := seen.Load("b.bin")
	testutil.AssertEqual(t, ok, false)
}

func TestRunWalkErrorWaitsForSubmitted(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 2)

	walkErr := errors.New("permission denied")
	var finished atomic.Int64
	body := func(ctx context.Context, item Item, target string) (int, error) {
		time.Sleep(10 * time.Millisecond)
		finished.Add(1)
		return 0, nil
	}

	d, err := New(pool, &sliceSource{items: items(10), failAfter: 3, err: walkErr}, body)
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertEqual(t, errors.Is(err, walkErr), true)
	testutil.AssertEqual(t, stats.Submitted, int64(3))
	testutil.AssertEqual(t, finished.Load(), int64(3))
}

func TestRunSubmitToClosedPool(t *testing.T) {
	pool, err := workerpool.NewWithConfig(workerpool.Config{WorkerCount: 1})
	testutil.AssertNoError(t, err)
	<-pool.Shutdown()

	d, err := New(pool, &sliceSource{items: items(3)}, noop)
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertEqual(t, errors.Is(err, tserrors.ErrClosed), true)
	testutil.AssertEqual(t, stats.Submitted, int64(0))
}

func TestRunCancelledContext(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 1)
	d, err := New(pool, &sliceSource{items: items(3)}, noop)
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := d.Run(ctx, "root", "x")
	testutil.AssertEqual(t, errors.Is(err, context.Canceled), true)
	testutil.AssertEqual(t, stats.Submitted, int64(0))
}

func TestStartWait(t *testing.T) {
	pool := newPool(t, workerpool.ModePoll, 2)

	release := make(chan struct{})
	body := func(ctx context.Context, item Item, target string) (int, error) {
		<-release
		return 1, nil
	}

	d, err := New(pool, &sliceSource{items: items(4)}, body)
	testutil.AssertNoError(t, err)

	run := d.Start(context.Background(), "root", "x")
	select {
	case <-run.Done():
		t.Fatal("run finished before its tasks were released")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	stats, err := run.Wait()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, stats.Matches, int64(4))
}

func TestSharedLocker(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 4)

	var mu sync.Mutex
	var lines []string
	body := func(ctx context.Context, item Item, target string) (int, error) {
		mu.Lock()
		lines = append(lines, item.Path)
		mu.Unlock()
		return 1, nil
	}

	d, err := New(pool, &sliceSource{items: items(50)}, body, WithLocker(&mu))
	testutil.AssertNoError(t, err)

	_, err = d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	testutil.AssertEqual(t, len(lines), 50)
}

func TestRunMetrics(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 2)
	reg := metrics.NewRegistry(prometheus.NewRegistry())

	src := &sliceSource{
		items:    items(6),
		eligible: func(item Item) bool { return item.Path != "file-0005.txt" },
	}
	body := func(ctx context.Context, item Item, target string) (int, error) {
		if item.Path == "file-0000.txt" {
			return 0, tserrors.ErrItemAccess
		}
		return 3, nil
	}

	d, err := New(pool, src, body, WithMetrics(reg, "test"))
	testutil.AssertNoError(t, err)

	_, err = d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.DispatchItems.WithLabelValues("test", "scanned")), 4.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.DispatchItems.WithLabelValues("test", "failed")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.DispatchItems.WithLabelValues("test", "skipped")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.DispatchMatches.WithLabelValues("test")), 12.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(reg.TrackerPending.WithLabelValues("test")), 0.0)
}

type countingThrottle struct {
	calls atomic.Int64
	err   error
	after int64
}

func (c *countingThrottle) Wait(ctx context.Context) error {
	n := c.calls.Add(1)
	if c.err != nil && n > c.after {
		return c.err
	}
	return nil
}

func TestRunThrottle(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 2)

	throttle := &countingThrottle{}
	src := &sliceSource{
		items:    items(5),
		eligible: func(item Item) bool { return item.Path != "file-0001.txt" },
	}
	d, err := New(pool, src, noop, WithThrottle(throttle))
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, throttle.calls.Load(), int64(4))
	testutil.AssertEqual(t, stats.Submitted, int64(4))
}

func TestRunThrottleError(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 2)

	throttle := &countingThrottle{err: context.DeadlineExceeded, after: 2}
	d, err := New(pool, &sliceSource{items: items(5)}, noop, WithThrottle(throttle))
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertEqual(t, errors.Is(err, context.DeadlineExceeded), true)
	testutil.AssertEqual(t, stats.Submitted, int64(2))
}

func TestRunIDReachesTasks(t *testing.T) {
	pool := newPool(t, workerpool.ModeBlocking, 2)

	var mu sync.Mutex
	ids := map[string]int{}
	body := func(ctx context.Context, item Item, target string) (int, error) {
		id, _ := RunIDFromContext(ctx)
		mu.Lock()
		ids[id]++
		mu.Unlock()
		return 0, nil
	}

	d, err := New(pool, &sliceSource{items: items(6)}, body)
	testutil.AssertNoError(t, err)

	stats, err := d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)

	mu.Lock()
	testutil.AssertEqual(t, len(ids), 1)
	testutil.AssertEqual(t, ids[stats.RunID], 6)
	mu.Unlock()

	second, err := d.Run(context.Background(), "root", "x")
	testutil.AssertNoError(t, err)
	testutil.AssertNotEqual(t, second.RunID, stats.RunID)

	mu.Lock()
	defer mu.Unlock()
	testutil.AssertEqual(t, len(ids), 2)
	testutil.AssertEqual(t, ids[second.RunID], 6)
}
