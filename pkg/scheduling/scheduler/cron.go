package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
)

// Job is one scheduled execution. The context ends when the Repeater stops.
type Job func(ctx context.Context) error

// CronOptions provides configuration for a Repeater.
type CronOptions struct {
	// MaxRuns limits the number of times the job will execute (0 = unlimited)
	MaxRuns int

	// TimeZone specifies the timezone for cron expression evaluation
	TimeZone *time.Location

	// StopOnError ends Run with the job's error the first time it fails
	StopOnError bool

	// RunImmediately executes the job once before waiting for the schedule
	RunImmediately bool

	// OnError is called when an execution fails
	OnError func(run int, err error)

	// OnSkip is called when a tick is skipped because the previous
	// execution is still running
	OnSkip func(at time.Time)

	// Logger receives scheduling records. Nil discards them.
	Logger *slog.Logger
}

// CronDescription provides human-readable information about a cron expression.
type CronDescription struct {
	Expression  string
	Description string
	NextRuns    []time.Time // Next 5 execution times
	TimeZone    string
}

// parser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as "@hourly" or "@every 30s".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpression validates a cron expression without scheduling it.
func ValidateCronExpression(expr string) error {
	_, err := parse(expr)
	return err
}

func parse(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, tserrors.NewValidationError("scheduler", "cron", expr, "cron expression cannot be empty")
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, tserrors.NewValidationError("scheduler", "cron", expr, err.Error()).
			WithHint(`use five fields like "*/5 * * * *" or a descriptor like "@every 30s"`)
	}
	return schedule, nil
}

// Describe returns a human-readable description of expr and its next five
// execution times after now in loc. A nil loc means time.Local.
func Describe(expr string, now time.Time, loc *time.Location) (CronDescription, error) {
	schedule, err := parse(expr)
	if err != nil {
		return CronDescription{}, err
	}
	if loc == nil {
		loc = time.Local
	}

	nextRuns := make([]time.Time, 5)
	current := now.In(loc)
	for i := range nextRuns {
		current = schedule.Next(current)
		nextRuns[i] = current
	}

	return CronDescription{
		Expression:  expr,
		Description: describe(expr),
		NextRuns:    nextRuns,
		TimeZone:    loc.String(),
	}, nil
}

func describe(expr string) string {
	switch expr {
	case "@yearly", "@annually":
		return "Once a year (January 1st at midnight)"
	case "@monthly":
		return "Once a month (1st day at midnight)"
	case "@weekly":
		return "Once a week (Sunday at midnight)"
	case "@daily", "@midnight":
		return "Once a day (at midnight)"
	case "@hourly":
		return "Once an hour (at minute 0)"
	}
	if len(expr) > len("@every ") && expr[:len("@every ")] == "@every " {
		return "Every " + expr[len("@every "):]
	}
	return fmt.Sprintf("Custom schedule: %s", expr)
}

// Repeater runs a job on a cron schedule until its context ends, the run
// limit is reached, or (with StopOnError) the job fails. Executions never
// overlap; a tick that arrives while the job is running is skipped.
type Repeater struct {
	expr     string
	schedule cron.Schedule
	job      Job
	options  CronOptions
	logger   *slog.Logger
	runs     atomic.Int64
}

// NewRepeater validates expr and prepares a Repeater for job.
func NewRepeater(expr string, job Job, options CronOptions) (*Repeater, error) {
	if job == nil {
		return nil, tserrors.NewValidationError("scheduler", "job", nil, "job cannot be nil")
	}
	if options.MaxRuns < 0 {
		return nil, tserrors.NewValidationError("scheduler", "max_runs", options.MaxRuns, "cannot be negative")
	}
	schedule, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return newRepeater(expr, schedule, job, options), nil
}

func newRepeater(expr string, schedule cron.Schedule, job Job, options CronOptions) *Repeater {
	if options.TimeZone == nil {
		options.TimeZone = time.Local
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Repeater{
		expr:     expr,
		schedule: schedule,
		job:      job,
		options:  options,
		logger:   logger.With("component", "scheduler", "cron", expr),
	}
}

// Runs returns how many executions have started.
func (r *Repeater) Runs() int {
	return int(r.runs.Load())
}

// Next returns the first scheduled time after now.
func (r *Repeater) Next(now time.Time) time.Time {
	return r.schedule.Next(now.In(r.options.TimeZone))
}

// Run blocks until the Repeater is done. It returns nil when MaxRuns is
// reached, the job's error when StopOnError ends it, and ctx.Err() when ctx
// ends first. An execution in progress is always allowed to finish.
func (r *Repeater) Run(ctx context.Context) error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stopOnce sync.Once
		stopErr  error
		stop     = make(chan struct{})
	)
	finish := func(err error) {
		stopOnce.Do(func() {
			stopErr = err
			close(stop)
		})
	}

	execute := cron.FuncJob(func() {
		select {
		case <-stop:
			return
		default:
		}
		if jobCtx.Err() != nil {
			return
		}

		n := r.runs.Add(1)
		r.logger.Debug("scheduled run started", "run", n)
		if err := r.job(jobCtx); err != nil {
			r.logger.Warn("scheduled run failed", "run", n, "error", err)
			if r.options.OnError != nil {
				r.options.OnError(int(n), err)
			}
			if r.options.StopOnError {
				finish(err)
				return
			}
		}
		if r.options.MaxRuns > 0 && n >= int64(r.options.MaxRuns) {
			finish(nil)
		}
	})

	logger := cronLogger{r.logger}
	c := cron.New(
		cron.WithLocation(r.options.TimeZone),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), r.skipIfStillRunning()),
	)
	c.Schedule(r.schedule, execute)

	if r.options.RunImmediately {
		cron.NewChain(cron.Recover(logger)).Then(execute).Run()
	}

	c.Start()
	select {
	case <-stop:
	case <-ctx.Done():
	}
	cancel()
	<-c.Stop().Done()

	select {
	case <-stop:
		return stopErr
	default:
		return ctx.Err()
	}
}

// skipIfStillRunning drops ticks that arrive while a previous execution is
// still in progress.
func (r *Repeater) skipIfStillRunning() cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		ch := make(chan struct{}, 1)
		ch <- struct{}{}
		return cron.FuncJob(func() {
			select {
			case v := <-ch:
				defer func() { ch <- v }()
				j.Run()
			default:
				now := time.Now()
				r.logger.Debug("skipping tick, previous run still active")
				if r.options.OnSkip != nil {
					r.options.OnSkip(now)
				}
			}
		})
	}
}

// cronLogger routes robfig/cron records to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
