// Package completion tracks outstanding tasks so a coordinator can tell when
// everything it submitted has finished.
//
// The protocol is: Increment before handing a task to a worker, Done exactly
// once after the task body returns (a deferred call survives panics), and
// Wait, WaitContext or WaitPoll on the coordinating side. The count never goes
// below zero and reaches zero only when nothing is queued or running.
//
//	var mu sync.Mutex // shared with console output
//	tracker := completion.New(&mu)
//
//	tracker.Increment()
//	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
//		defer tracker.Done()
//		return scan(ctx, path)
//	}))
//
//	tracker.Wait()
package completion
