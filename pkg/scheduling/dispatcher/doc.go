// Package dispatcher feeds a worker pool from a Source and waits for the work
// to drain.
//
// For every eligible item the dispatcher records one pending task on a
// completion.Tracker and then submits it. The task decrements the tracker in
// a deferred call, so a body that fails or panics still counts as finished.
// Run returns once the tracker is back at zero.
//
//	d, err := dispatcher.New(pool, source, body, dispatcher.WithLocker(&outputMu))
//	if err != nil {
//		return err
//	}
//	stats, err := d.Start(ctx, root, target).Wait()
package dispatcher
