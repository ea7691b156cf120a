// Package scheduler repeats a job on a cron schedule.
//
// threadsearch uses it for repeat mode: the same search runs again on every
// tick until the process is interrupted.
//
//	r, err := scheduler.NewRepeater("@every 30s", func(ctx context.Context) error {
//		_, err := d.Run(ctx, root, target)
//		return err
//	}, scheduler.CronOptions{RunImmediately: true})
//	if err != nil {
//		return err
//	}
//	return r.Run(ctx)
//
// Expressions use the standard five fields, optionally preceded by a seconds
// field, or a descriptor:
//
//	"0 */2 * * *"     - Every 2 hours
//	"30 14 * * 1-5"   - 2:30 PM on weekdays
//	"*/10 * * * * *"  - Every 10 seconds
//	"@daily"          - Every day at midnight
//	"@every 1m30s"    - Every 90 seconds
//
// Executions never overlap. A tick that fires while the previous execution is
// still running is skipped and reported through CronOptions.OnSkip.
package scheduler
