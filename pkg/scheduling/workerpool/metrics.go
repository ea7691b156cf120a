package workerpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vnykmshr/threadsearch/pkg/metrics"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

// NewWithMetrics creates a new worker pool that records metrics under name.
// A nil metricsConfig.Registry gets a private Prometheus registry so that
// several pools can coexist without registration conflicts.
func NewWithMetrics(config Config, name string, metricsConfig metrics.Config) (Pool, error) {
	basePool, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	if !metricsConfig.Enabled {
		return basePool, nil
	}

	if metricsConfig.Registry == nil {
		metricsConfig.Registry = prometheus.NewRegistry()
	}

	mp := &MetricsPool{
		pool: basePool,
		name: name,
	}
	mp.registry.Store(metrics.NewRegistryWithConfig(metricsConfig))
	mp.enabled.Store(true)

	// Initialize metrics
	mp.updateMetrics()

	return mp, nil
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	if !mp.enabled.Load() {
		return
	}
	reg := mp.registry.Load()

	reg.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	reg.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	reg.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) error {
	return mp.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext submits a task whose Execute receives ctx.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return mp.pool.SubmitWithContext(ctx, task)
	}

	// Wrap the task to collect metrics
	wrappedTask := &metricsTask{
		original:   task,
		pool:       mp,
		submitTime: time.Now(),
	}

	err := mp.pool.SubmitWithContext(ctx, wrappedTask)

	if err == nil && mp.enabled.Load() {
		mp.registry.Load().TasksSubmitted.WithLabelValues(mp.name).Inc()
		mp.updateMetrics()
	}

	return err
}

// metricsTask wraps a Task to collect execution metrics.
type metricsTask struct {
	original   Task
	pool       *MetricsPool
	submitTime time.Time
}

// Execute runs the original task and records metrics.
func (mt *metricsTask) Execute(ctx context.Context) error {
	start := time.Now()
	enabled := mt.pool.enabled.Load()
	reg := mt.pool.registry.Load()

	if enabled {
		reg.TaskQueueWait.WithLabelValues(mt.pool.name).Observe(start.Sub(mt.submitTime).Seconds())
		mt.pool.updateMetrics()
	}

	// Failures are counted even if the task panics; the pool recovers the
	// panic after this deferred call has run.
	failed := true
	defer func() {
		if !enabled {
			return
		}
		reg.TaskExecutionDuration.WithLabelValues(mt.pool.name).Observe(time.Since(start).Seconds())
		reg.TasksExecuted.WithLabelValues(mt.pool.name).Inc()
		if failed {
			reg.TasksFailed.WithLabelValues(mt.pool.name).Inc()
		} else {
			reg.TasksCompleted.WithLabelValues(mt.pool.name).Inc()
		}
		mt.pool.updateMetrics()
	}()

	err := mt.original.Execute(ctx)
	failed = err != nil
	return err
}

// Shutdown initiates shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	queueSize := mp.pool.QueueSize()

	if mp.enabled.Load() {
		mp.registry.Load().WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(queueSize))
	}

	return queueSize
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	activeWorkers := mp.pool.ActiveWorkers()

	if mp.enabled.Load() {
		mp.registry.Load().WorkerPoolActive.WithLabelValues(mp.name).Set(float64(activeWorkers))
	}

	return activeWorkers
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		mp.registry.Store(metrics.NewRegistryWithConfig(config))
	}
	mp.enabled.Store(config.Enabled)
	mp.updateMetrics()

	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled.Load()
}

// Registry returns the metric registry the pool currently writes to.
func (mp *MetricsPool) Registry() *metrics.Registry {
	return mp.registry.Load()
}

var (
	_ Pool                   = (*MetricsPool)(nil)
	_ metrics.Instrumentable = (*MetricsPool)(nil)
)
