package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/common/validation"
	"github.com/vnykmshr/threadsearch/pkg/metrics"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/completion"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/workerpool"
)

// Item is one unit of work found by a Source.
type Item struct {
	// Path identifies the item, usually a file path.
	Path string

	// Size is the item's size in bytes when the source knows it.
	Size int64
}

// Source enumerates candidate items below a root.
type Source interface {
	// Walk calls fn for every item below root. An error returned by fn
	// stops the walk and is returned by Walk.
	Walk(ctx context.Context, root string, fn func(Item) error) error

	// Eligible reports whether an item should be turned into a task.
	Eligible(item Item) bool
}

// Body processes one item on a worker and reports how many matches it found.
type Body func(ctx context.Context, item Item, target string) (matches int, err error)

// Stats summarizes one dispatch run. Counts are final once Run returns.
type Stats struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Root      string        `json:"root" yaml:"root"`
	Target    string        `json:"target" yaml:"target"`
	Seen      int64         `json:"seen" yaml:"seen"`
	Skipped   int64         `json:"skipped" yaml:"skipped"`
	Submitted int64         `json:"submitted" yaml:"submitted"`
	Failed    int64         `json:"failed" yaml:"failed"`
	Matches   int64         `json:"matches" yaml:"matches"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for run and item records.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithLocker makes every run's completion tracker use mu. Pass the same
// mutex the console printer holds so reports and decrements serialize.
func WithLocker(mu *sync.Mutex) Option {
	return func(d *Dispatcher) {
		d.mu = mu
	}
}

// WithMetrics records item outcomes, matches, run duration and pending
// tasks in reg under name.
func WithMetrics(reg *metrics.Registry, name string) Option {
	return func(d *Dispatcher) {
		d.metrics = reg
		d.name = name
	}
}

// Throttle paces submissions. *bucket.Bucket satisfies it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// WithThrottle makes the dispatcher wait on t before submitting each item.
// Workers and Submit are unaffected; only enumeration slows down.
func WithThrottle(t Throttle) Option {
	return func(d *Dispatcher) {
		d.throttle = t
	}
}

// Dispatcher turns the eligible items of a Source into pool tasks and waits
// for all of them to finish.
type Dispatcher struct {
	pool     workerpool.Pool
	source   Source
	body     Body
	mu       *sync.Mutex
	logger   *slog.Logger
	metrics  *metrics.Registry
	name     string
	throttle Throttle
}

// New creates a Dispatcher. The caller keeps ownership of pool and shuts it
// down when it is no longer needed.
func New(pool workerpool.Pool, source Source, body Body, opts ...Option) (*Dispatcher, error) {
	if err := validation.ValidateNotNil("dispatcher", "pool", pool); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotNil("dispatcher", "source", source); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, tserrors.NewValidationError("dispatcher", "body", nil, "cannot be nil")
	}

	d := &Dispatcher{
		pool:   pool,
		source: source,
		body:   body,
		logger: slog.New(slog.DiscardHandler),
		name:   "default",
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d, nil
}

// Run walks root, submits one task per eligible item and blocks until every
// submitted task has finished.
//
// Item failures, including bodies that panic, are counted in Stats.Failed
// and do not fail the run. A walk
// or submit error stops enumeration; Run still waits for the tasks that were
// already submitted and then returns the error.
func (d *Dispatcher) Run(ctx context.Context, root, target string) (Stats, error) {
	start := time.Now()
	stats := Stats{
		RunID:  uuid.NewString(),
		Root:   root,
		Target: target,
	}
	ctx = ContextWithRunID(ctx, stats.RunID)
	logger := d.logger.With("run_id", stats.RunID)
	logger.Debug("run started", "root", root, "target", target)

	tracker := completion.New(d.mu)
	var failed, matches atomic.Int64

	walkErr := d.source.Walk(ctx, root, func(item Item) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Seen++
		if !d.source.Eligible(item) {
			stats.Skipped++
			d.countItem("skipped")
			return nil
		}

		if d.throttle != nil {
			if err := d.throttle.Wait(ctx); err != nil {
				return err
			}
		}

		tracker.Increment()
		d.pendingAdd(1)
		task := workerpool.TaskFunc(func(taskCtx context.Context) error {
			returned := false
			defer func() {
				if !returned {
					failed.Add(1)
					d.countItem("failed")
				}
				d.pendingAdd(-1)
				tracker.Done()
			}()

			n, err := d.body(taskCtx, item, target)
			returned = true
			matches.Add(int64(n))
			if d.metrics != nil && n > 0 {
				d.metrics.DispatchMatches.WithLabelValues(d.name).Add(float64(n))
			}
			if err != nil {
				failed.Add(1)
				d.countItem("failed")
				logger.Debug("item failed", "path", item.Path, "error", err)
				return err
			}
			d.countItem("scanned")
			return nil
		})

		if err := d.pool.SubmitWithContext(ctx, task); err != nil {
			d.pendingAdd(-1)
			tracker.Done()
			return err
		}
		stats.Submitted++
		return nil
	})

	tracker.Wait()

	stats.Failed = failed.Load()
	stats.Matches = matches.Load()
	stats.Duration = time.Since(start)
	if d.metrics != nil {
		d.metrics.DispatchDuration.WithLabelValues(d.name).Observe(stats.Duration.Seconds())
	}

	if walkErr != nil {
		logger.Debug("run aborted", "submitted", stats.Submitted, "error", walkErr)
		return stats, tserrors.NewOperationError("dispatcher", "walk", walkErr).WithContext(root)
	}

	logger.Debug("run finished",
		"submitted", stats.Submitted,
		"failed", stats.Failed,
		"matches", stats.Matches,
		"duration", stats.Duration)
	return stats, nil
}

func (d *Dispatcher) countItem(outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.DispatchItems.WithLabelValues(d.name, outcome).Inc()
}

func (d *Dispatcher) pendingAdd(delta float64) {
	if d.metrics == nil {
		return
	}
	d.metrics.TrackerPending.WithLabelValues(d.name).Add(delta)
}
