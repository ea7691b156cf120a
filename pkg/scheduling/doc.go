/*
Package scheduling groups the task dispatch primitives used by threadsearch.

  - taskqueue: thread-safe unbounded FIFO queue with separate head and tail locks
  - workerpool: fixed number of workers executing tasks popped from a taskqueue
  - completion: counter of outstanding tasks with a wait-for-zero operation
  - dispatcher: submits one task per eligible item and waits for all of them
  - scheduler: repeats a job on a cron schedule

Dispatching a search:

	var mu sync.Mutex
	pool, _ := workerpool.NewWithConfig(workerpool.Config{WorkerCount: 4})
	defer func() { <-pool.Shutdown() }()

	d, _ := dispatcher.New(pool, source, body, dispatcher.WithLocker(&mu))
	run := d.Start(ctx, root, target)
	stats, err := run.Wait()

The dispatcher increments the tracker before each submit and every task
decrements it exactly once, even when its body fails or panics, so Wait
returns only after the last task has finished.

Repeating a job:

	r, _ := scheduler.NewRepeater("@every 30s", job, scheduler.CronOptions{
		RunImmediately: true,
		MaxRuns:        10,
	})
	err := r.Run(ctx)

All components are safe for concurrent use and accept a context for
cancellation.
*/
package scheduling
