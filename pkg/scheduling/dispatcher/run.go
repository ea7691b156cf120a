package dispatcher

import "context"

// Run is a dispatch executing on its own goroutine.
type Run struct {
	done  chan struct{}
	stats Stats
	err   error
}

// Start runs the dispatch on a new goroutine and returns immediately.
// The caller joins it with Wait.
func (d *Dispatcher) Start(ctx context.Context, root, target string) *Run {
	r := &Run{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.stats, r.err = d.Run(ctx, root, target)
	}()
	return r
}

// Done returns a channel that closes when the run has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run has finished and returns its result.
func (r *Run) Wait() (Stats, error) {
	<-r.done
	return r.stats, r.err
}

type runIDKey struct{}

// ContextWithRunID returns a copy of ctx carrying id. Run does this for the
// context its tasks receive.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the id of the run a task belongs to.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}
