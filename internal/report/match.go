package report

import (
	"context"
	"errors"
)

// Match is one line of one file that contains the target.
type Match struct {
	RunID    string `json:"run_id,omitempty"`
	WorkerID int    `json:"worker_id"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Text     string `json:"text"`
}

// Sink receives matches as workers find them. Implementations must be safe
// for concurrent use.
type Sink interface {
	Match(ctx context.Context, m Match) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, m Match) error

// Match implements Sink.
func (f SinkFunc) Match(ctx context.Context, m Match) error {
	return f(ctx, m)
}

// Tee delivers every match to all sinks in order. Every sink is tried even
// if an earlier one fails; the errors are joined.
func Tee(sinks ...Sink) Sink {
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return SinkFunc(func(ctx context.Context, m Match) error {
		var errs []error
		for _, s := range live {
			if err := s.Match(ctx, m); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
