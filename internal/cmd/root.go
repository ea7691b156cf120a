// Package cmd implements the threadsearch command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vnykmshr/threadsearch/internal/config"
	"github.com/vnykmshr/threadsearch/internal/logging"
	"github.com/vnykmshr/threadsearch/internal/report"
)

// Env holds what the command reads from and writes to. Zero fields fall
// back to the OS filesystem, the process streams and the working directory.
type Env struct {
	Fs    afero.Fs
	Out   io.Writer
	Err   io.Writer
	Getwd func() (string, error)
}

func (e Env) withDefaults() Env {
	if e.Fs == nil {
		e.Fs = afero.NewOsFs()
	}
	if e.Out == nil {
		e.Out = os.Stdout
	}
	if e.Err == nil {
		e.Err = os.Stderr
	}
	if e.Getwd == nil {
		e.Getwd = os.Getwd
	}
	return e
}

// NewRootCommand builds the threadsearch command. Each call gets its own
// viper instance so commands can be built and executed independently.
func NewRootCommand(env Env) *cobra.Command {
	env = env.withDefaults()
	v := viper.New()
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "threadsearch <target> [root]",
		Short: "Search a directory tree for text using a pool of workers",
		Long: `threadsearch walks a directory tree and scans every file with an allowed
extension for the target text. Files are scanned concurrently by a fixed
pool of workers; each matching line is printed with the worker that found
it, the file and the 1-based line number.

Settings are read from flags, THREADSEARCH_* environment variables and an
optional threadsearch.yaml, in that order of precedence.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, env, v, args)
		},
	}
	cmd.SetOut(env.Out)
	cmd.SetErr(env.Err)

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "config file (default is ./threadsearch.yaml)")
	flags.IntP("workers", "w", defaults.Pool.Workers, "number of workers (0 = CPUs minus one)")
	flags.String("mode", defaults.Pool.Mode, `worker mode: "poll" or "blocking"`)
	flags.StringSlice("ext", defaults.Search.Extensions, "file extensions to scan")
	flags.Float64("rate", defaults.Search.Rate, "maximum files handed to workers per second (0 = unlimited)")
	flags.Int("burst", defaults.Search.Burst, "files that may be handed out at once when --rate is set")
	flags.String("log-level", defaults.Logging.Level, "log level: DEBUG, INFO, WARN or ERROR")
	flags.String("log-format", defaults.Logging.Format, `log format: "text" or "json"`)
	flags.Bool("metrics", defaults.Metrics.Enabled, "serve Prometheus metrics while searching")
	flags.String("metrics-addr", defaults.Metrics.Addr, "listen address for the metrics endpoint")
	flags.String("cron", defaults.Schedule.Cron, `repeat the search on a cron schedule, e.g. "@every 30s"`)
	flags.Int("max-runs", defaults.Schedule.MaxRuns, "stop repeating after this many searches (0 = unlimited)")
	flags.String("redis-addr", defaults.Sink.RedisAddr, "also push matches to a Redis list at this address")
	flags.String("redis-key", defaults.Sink.RedisKey, "Redis list that receives matches")
	flags.String("summary", defaults.Output.Summary, `print a run summary: "none", "yaml" or "json"`)
	flags.Bool("plain", defaults.Output.Plain, "disable colored output")

	bindings := map[string]string{
		"pool.workers":      "workers",
		"pool.mode":         "mode",
		"search.extensions": "ext",
		"search.rate":       "rate",
		"search.burst":      "burst",
		"logging.level":     "log-level",
		"logging.format":    "log-format",
		"metrics.enabled":   "metrics",
		"metrics.addr":      "metrics-addr",
		"schedule.cron":     "cron",
		"schedule.max_runs": "max-runs",
		"sink.redis_addr":   "redis-addr",
		"sink.redis_key":    "redis-key",
		"output.summary":    "summary",
		"output.plain":      "plain",
	}
	for key, name := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

// Execute runs the threadsearch command against the process environment.
func Execute(ctx context.Context) error {
	return NewRootCommand(Env{}).ExecuteContext(ctx)
}

func run(cmd *cobra.Command, env Env, v *viper.Viper, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(env.Err, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	var printerOpts []report.PrinterOption
	if cfg.Output.Plain {
		printerOpts = append(printerOpts, report.WithPlain())
	}
	var mu sync.Mutex
	printer := report.NewPrinter(env.Out, &mu, printerOpts...)

	if len(args) == 0 || args[0] == "" {
		return printer.MissingTarget()
	}
	target := args[0]

	root, err := resolveRoot(env, cfg, args)
	if err != nil {
		return err
	}

	s, err := newSearch(cmd.Context(), searchDeps{
		fs:      env.Fs,
		out:     env.Out,
		mu:      &mu,
		printer: printer,
		logger:  logger,
	}, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if cfg.Schedule.Cron == "" {
		return s.once(cmd.Context(), root, target)
	}
	return s.repeat(cmd.Context(), root, target)
}

func resolveRoot(env Env, cfg *config.Config, args []string) (string, error) {
	if len(args) > 1 && args[1] != "" {
		return args[1], nil
	}
	if cfg.Search.Root != "" {
		return cfg.Search.Root, nil
	}
	wd, err := env.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return wd, nil
}
