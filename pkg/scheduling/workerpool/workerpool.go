package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/common/validation"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithContext adds a task to the pool for execution with the given
// context. The queue is unbounded, so the call never waits for a worker.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if err := validation.ValidateNotNil("workerpool", "task", task); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if p.stopping.Load() {
		return fmt.Errorf("cannot submit task: worker pool has been shut down: %w", tserrors.ErrClosed)
	}

	p.totalSubmitted.Add(1)
	p.queue.Push(queuedTask{task: task, ctx: ctx})
	return nil
}

// Shutdown sets the shutdown flag and joins the workers in the background.
// Running tasks finish; queued tasks are not started. Calling Shutdown more
// than once returns the same channel.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.stopping.Store(true)
		p.wakeWorkers()

		go func() {
			p.workerWg.Wait()
			p.logger.Debug("pool stopped", "abandoned", p.queue.Len())
			close(p.done)
		}()
	})

	return p.done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return p.queue.Len()
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks submitted to the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks completed by the pool.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	if w.pool.config.OnWorkerStart != nil {
		w.pool.config.OnWorkerStart(w.id)
	}
	if w.pool.config.OnWorkerStop != nil {
		defer w.pool.config.OnWorkerStop(w.id)
	}

	if w.pool.config.Mode == ModeBlocking {
		w.runBlocking()
		return
	}
	w.runPolling()
}

// runPolling checks the queue until the shutdown flag is set, yielding
// whenever it finds nothing to do.
func (w *worker) runPolling() {
	for !w.pool.stopping.Load() {
		qt, ok := w.pool.queue.TryPop()
		if !ok {
			w.idle()
			continue
		}
		w.executeTask(qt)
	}
}

// runBlocking parks on the queue until a task or a poison entry arrives.
func (w *worker) runBlocking() {
	for {
		qt := w.pool.queue.WaitAndPop()
		if qt.poison {
			return
		}
		if w.pool.stopping.Load() {
			// Shutdown raced the pop; the task is abandoned like any other
			// queued task, and a poison entry is still waiting for someone.
			return
		}
		w.executeTask(qt)
	}
}

func (w *worker) idle() {
	if d := w.pool.config.IdleBackoff; d > 0 {
		time.Sleep(d)
		return
	}
	runtime.Gosched()
}

// executeTask executes a single task, containing any panic it raises.
func (w *worker) executeTask(qt queuedTask) {
	start := time.Now()
	var err error

	w.pool.activeWorkers.Add(1)
	if w.pool.config.OnTaskStart != nil {
		w.pool.config.OnTaskStart(w.id, qt.task)
	}

	// Handle panics during task execution
	defer func() {
		if r := recover(); r != nil {
			if w.pool.config.PanicHandler != nil {
				w.pool.config.PanicHandler(qt.task, r)
			} else {
				err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
			}
		}

		w.pool.activeWorkers.Add(-1)
		w.pool.totalCompleted.Add(1)

		if err != nil {
			w.pool.logger.Debug("task failed", "worker", w.id, "error", err)
		}

		if w.pool.config.OnTaskComplete != nil {
			w.pool.config.OnTaskComplete(w.id, Result{
				Task:     qt.task,
				Error:    err,
				Duration: time.Since(start),
				WorkerID: w.id,
			})
		}
	}()

	err = qt.task.Execute(withWorkerID(qt.ctx, w.id))
}

type workerIDKey struct{}

func withWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerIDKey{}, id)
}

// WorkerID returns the id of the worker executing the task that received
// ctx. The boolean is false outside a pool task.
func WorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerIDKey{}).(int)
	return id, ok
}
