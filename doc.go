/*
Package threadsearch searches a directory tree for text using a fixed pool of
workers, one task per file.

Scheduling (pkg/scheduling):
  - taskqueue: Unbounded two-lock FIFO queue
  - workerpool: Fixed workers draining a taskqueue, polling or blocking
  - completion: Outstanding-task counter that shares the output lock
  - dispatcher: Walks a source, submits tasks and waits for them to drain
  - scheduler: Cron-driven repetition of a job

Rate Limiting (pkg/ratelimit):
  - bucket: Token bucket that throttles how fast files are dispatched

Metrics (pkg/metrics):
  - Prometheus series for the pool, the tracker and the dispatcher

The threadsearch command (cmd/threadsearch) wires these together with the
walker, scanner and console printer under internal/.

Example usage:

	import (
		"github.com/vnykmshr/threadsearch/pkg/scheduling/dispatcher"
		"github.com/vnykmshr/threadsearch/pkg/scheduling/workerpool"
	)

	pool := workerpool.New(4)
	defer func() { <-pool.Shutdown() }()

	d, _ := dispatcher.New(pool, source, body)
	stats, err := d.Run(ctx, "/src", "thread")
*/
package threadsearch
