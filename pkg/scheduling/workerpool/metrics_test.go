package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/threadsearch/internal/testutil"
	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/metrics"
)

func TestMetricsPoolCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool, err := NewWithMetrics(Config{WorkerCount: 2, Mode: ModeBlocking}, "search", metrics.Config{
		Enabled:  true,
		Registry: reg,
	})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { waitClosed(t, pool.Shutdown()) })

	mp, ok := pool.(*MetricsPool)
	if !ok {
		t.Fatalf("NewWithMetrics returned %T, want *MetricsPool", pool)
	}
	r := mp.Registry()

	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(ctx context.Context) error { return nil })))
	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(ctx context.Context) error { return errors.New("unreadable") })))
	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(ctx context.Context) error { panic("boom") })))

	testutil.Eventually(t, func() bool {
		return promtestutil.ToFloat64(r.TasksExecuted.WithLabelValues("search")) == 3
	}, time.Second, time.Millisecond)

	testutil.AssertEqual(t, promtestutil.ToFloat64(r.TasksSubmitted.WithLabelValues("search")), 3.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(r.TasksCompleted.WithLabelValues("search")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(r.TasksFailed.WithLabelValues("search")), 2.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(r.WorkerPoolSize.WithLabelValues("search")), 2.0)
}

func TestMetricsPoolDisabled(t *testing.T) {
	pool, err := NewWithMetrics(Config{WorkerCount: 1}, "plain", metrics.Config{Enabled: false})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { waitClosed(t, pool.Shutdown()) })

	if _, ok := pool.(*MetricsPool); ok {
		t.Fatal("disabled metrics should return the bare pool")
	}
}

func TestMetricsPoolToggle(t *testing.T) {
	pool, err := NewWithMetrics(Config{WorkerCount: 1}, "toggle", metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { waitClosed(t, pool.Shutdown()) })

	mp := pool.(*MetricsPool)
	testutil.AssertEqual(t, mp.MetricsEnabled(), true)

	mp.DisableMetrics()
	testutil.AssertEqual(t, mp.MetricsEnabled(), false)

	done := make(chan struct{})
	testutil.AssertNoError(t, mp.Submit(TaskFunc(func(ctx context.Context) error {
		close(done)
		return nil
	})))
	<-done
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.Registry().TasksSubmitted.WithLabelValues("toggle")), 0.0)

	other := prometheus.NewRegistry()
	testutil.AssertNoError(t, mp.EnableMetrics(metrics.Config{Enabled: true, Registry: other}))
	testutil.AssertEqual(t, mp.MetricsEnabled(), true)

	testutil.AssertNoError(t, mp.Submit(TaskFunc(func(ctx context.Context) error { return nil })))
	testutil.AssertEqual(t, promtestutil.ToFloat64(mp.Registry().TasksSubmitted.WithLabelValues("toggle")), 1.0)
}

func TestMetricsPoolNilTask(t *testing.T) {
	pool, err := NewWithMetrics(Config{WorkerCount: 1}, "nil", metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { waitClosed(t, pool.Shutdown()) })

	err = pool.Submit(nil)
	testutil.AssertEqual(t, tserrors.IsValidationError(err), true)
	testutil.AssertEqual(t, errors.Is(err, tserrors.ErrClosed), false)

	// The rejected task is not counted and the pool keeps accepting work.
	testutil.AssertEqual(t, promtestutil.ToFloat64(pool.(*MetricsPool).Registry().TasksSubmitted.WithLabelValues("nil")), 0.0)
	done := make(chan struct{})
	testutil.AssertNoError(t, pool.Submit(TaskFunc(func(ctx context.Context) error {
		close(done)
		return nil
	})))
	<-done
}
