package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/common/validation"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/taskqueue"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// Pool represents a worker pool that can execute tasks concurrently.
type Pool interface {
	// Submit adds a task to the pool for execution.
	// It never blocks; the only failures are a nil task or a shut down pool.
	Submit(task Task) error

	// SubmitWithContext submits a task whose Execute receives ctx.
	SubmitWithContext(ctx context.Context, task Task) error

	// Shutdown stops the workers and returns a channel that closes once all
	// of them have exited. Tasks still queued at that point are abandoned.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted to the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed by the pool.
	TotalCompleted() int64
}

// Mode selects how idle workers wait for work.
type Mode int

const (
	// ModePoll makes idle workers re-check the queue after yielding the
	// processor. Stopping only needs the shutdown flag.
	ModePoll Mode = iota

	// ModeBlocking parks idle workers on the queue's condition variable.
	// Shutdown pushes one poison task per worker to wake them.
	ModeBlocking
)

func (m Mode) String() string {
	switch m {
	case ModePoll:
		return "poll"
	case ModeBlocking:
		return "blocking"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "poll" or "blocking" to a Mode.
func ParseMode(s string) (Mode, error) {
	if err := validation.ValidateOneOf("workerpool", "mode", s, "poll", "blocking"); err != nil {
		return ModePoll, err
	}
	if strings.EqualFold(s, "blocking") {
		return ModeBlocking, nil
	}
	return ModePoll, nil
}

// SpawnFunc starts run on a new goroutine for worker id. A non-nil error
// aborts pool construction.
type SpawnFunc func(id int, run func()) error

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Zero or negative selects DefaultWorkerCount().
	WorkerCount int

	// Mode selects polling or blocking workers. Defaults to ModePoll.
	Mode Mode

	// IdleBackoff is how long a polling worker sleeps after finding the
	// queue empty. Zero yields the processor once instead.
	IdleBackoff time.Duration

	// PanicHandler is called when a task panics during execution.
	// If nil, panics are recovered and reported as task errors.
	PanicHandler func(task Task, recovered interface{})

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker stops.
	OnWorkerStop func(workerID int)

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task)

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result)

	// Spawn starts worker goroutines. Nil uses a plain go statement.
	Spawn SpawnFunc

	// Logger receives pool lifecycle and task failure records.
	// Nil discards them.
	Logger *slog.Logger
}

// DefaultWorkerCount returns one worker per CPU, minus one for the
// coordinating goroutine, and never less than one.
func DefaultWorkerCount() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// queuedTask is what travels through the task queue. A poison entry stops
// the blocking worker that pops it.
type queuedTask struct {
	task   Task
	ctx    context.Context
	poison bool
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config
	logger *slog.Logger

	// Core pool state
	workers      []*worker
	queue        *taskqueue.Queue[queuedTask]
	stopping     atomic.Bool
	shutdownOnce sync.Once
	done         chan struct{}

	// State tracking
	activeWorkers  atomic.Int64
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	// Worker management
	workerWg sync.WaitGroup
}

// worker represents a single worker in the pool.
type worker struct {
	id   int
	pool *workerPool
}

// New creates a polling worker pool with the given number of workers.
// A count of zero or less selects DefaultWorkerCount().
func New(workerCount int) Pool {
	pool, err := NewWithConfig(Config{WorkerCount: workerCount})
	if err != nil {
		// Only a custom Spawn can fail.
		panic(err)
	}
	return pool
}

// NewWithConfig creates a new worker pool with the specified configuration.
// If a worker cannot be started, the workers already running are stopped and
// joined before the error is returned.
func NewWithConfig(config Config) (Pool, error) {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerCount()
	}
	if config.Mode != ModePoll && config.Mode != ModeBlocking {
		return nil, tserrors.NewValidationError("workerpool", "mode", int(config.Mode), "unknown mode").
			WithHint("use ModePoll or ModeBlocking")
	}
	if config.IdleBackoff < 0 {
		return nil, tserrors.NewValidationError("workerpool", "idle_backoff", config.IdleBackoff, "cannot be negative").
			WithHint("use 0 to yield instead of sleeping")
	}
	spawn := config.Spawn
	if spawn == nil {
		spawn = func(_ int, run func()) error {
			go run()
			return nil
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool := &workerPool{
		config: config,
		logger: logger.With("component", "workerpool"),
		queue:  taskqueue.New[queuedTask](),
		done:   make(chan struct{}),
	}

	// Create and start workers
	pool.workers = make([]*worker, 0, config.WorkerCount)
	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		if err := spawn(i, w.run); err != nil {
			pool.workerWg.Done()
			pool.abortStart()
			return nil, tserrors.NewOperationError("workerpool", "spawn", fmt.Errorf("%w: %w", tserrors.ErrWorkerSpawn, err)).
				WithContext(fmt.Sprintf("worker %d of %d", i+1, config.WorkerCount))
		}
		pool.workers = append(pool.workers, w)
	}

	pool.logger.Debug("pool started", "workers", config.WorkerCount, "mode", config.Mode.String())
	return pool, nil
}

// abortStart stops and joins the workers started so far.
func (p *workerPool) abortStart() {
	p.stopping.Store(true)
	p.wakeWorkers()
	p.workerWg.Wait()
	close(p.done)
}

// wakeWorkers releases blocking workers parked on the queue.
func (p *workerPool) wakeWorkers() {
	if p.config.Mode != ModeBlocking {
		return
	}
	for range p.workers {
		p.queue.Push(queuedTask{poison: true})
	}
}
