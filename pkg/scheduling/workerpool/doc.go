/*
Package workerpool runs tasks on a fixed set of worker goroutines that drain an
unbounded FIFO queue.

Basic usage:

	pool := workerpool.New(4)
	defer func() { <-pool.Shutdown() }()

	tracker := completion.New(nil)
	tracker.Increment()
	err := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		defer tracker.Done()
		// Do work
		return nil
	}))
	if err != nil {
		log.Printf("Failed to submit: %v", err)
	}
	tracker.Wait()

The pool does not report results on a channel. Callers that need to know when
work is finished pair it with a completion.Tracker, or observe Result values
through Config.OnTaskComplete.

Worker Count:

A count of zero or less selects DefaultWorkerCount, which is the number of
CPUs minus one and never below one.

Modes:

ModePoll workers call TryPop in a loop and yield the processor (or sleep for
Config.IdleBackoff) when the queue is empty. They stop as soon as they observe
the shutdown flag.

ModeBlocking workers park on the queue's condition variable with WaitAndPop.
Shutdown pushes one poison entry per worker so every parked worker wakes up and
exits.

Shutdown:

Shutdown returns a channel that closes once all workers have exited. Running
tasks finish; tasks still queued are abandoned. Submit after Shutdown returns
an error wrapping errors.ErrClosed.

Panics:

A panic inside a task is recovered. Without Config.PanicHandler it is turned
into the task's Result.Error together with the stack trace. The worker keeps
running either way.

Start Failure:

Config.Spawn controls how worker goroutines are started. If it fails for any
worker, the workers already running are stopped and joined, and NewWithConfig
returns an OperationError wrapping errors.ErrWorkerSpawn.

Metrics:

NewWithMetrics wraps a pool in MetricsPool, which records submissions,
execution time, queue wait, failures and pool gauges in a metrics.Registry.
*/
package workerpool
