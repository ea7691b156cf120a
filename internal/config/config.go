// Package config loads threadsearch settings from defaults, an optional YAML
// file, THREADSEARCH_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/vnykmshr/threadsearch/internal/logging"
	"github.com/vnykmshr/threadsearch/internal/report"
	"github.com/vnykmshr/threadsearch/internal/walker"
	tserrors "github.com/vnykmshr/threadsearch/pkg/common/errors"
	"github.com/vnykmshr/threadsearch/pkg/common/validation"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/scheduler"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/workerpool"
)

// EnvPrefix prefixes environment overrides, e.g. THREADSEARCH_POOL_WORKERS.
const EnvPrefix = "THREADSEARCH"

// Config represents the complete threadsearch configuration
type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Output   OutputConfig   `mapstructure:"output"`
}

// SearchConfig controls which files are searched
type SearchConfig struct {
	// Root is the directory searched when none is given on the command line.
	// Empty means the working directory.
	Root string `mapstructure:"root"`
	// Extensions lists the file suffixes that are scanned
	Extensions []string `mapstructure:"extensions"`
	// Rate caps files handed to workers per second (0 = unlimited)
	Rate float64 `mapstructure:"rate"`
	// Burst is how many files may be handed out at once when Rate is set
	Burst int `mapstructure:"burst"`
}

// PoolConfig controls the worker pool
type PoolConfig struct {
	// Workers is the pool size; 0 or less uses CPUs minus one, minimum one
	Workers int `mapstructure:"workers"`
	// Mode is "poll" or "blocking"
	Mode string `mapstructure:"mode"`
}

// LoggingConfig controls the diagnostic log written to stderr
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ScheduleConfig controls repeat mode
type ScheduleConfig struct {
	// Cron repeats the search on this schedule; empty runs it once
	Cron string `mapstructure:"cron"`
	// MaxRuns stops repeat mode after this many searches (0 = unlimited)
	MaxRuns int `mapstructure:"max_runs"`
}

// SinkConfig controls where matches are copied besides the console
type SinkConfig struct {
	RedisAddr string `mapstructure:"redis_addr"`
	RedisKey  string `mapstructure:"redis_key"`
}

// OutputConfig controls console output
type OutputConfig struct {
	// Summary is "none", "yaml" or "json"
	Summary string `mapstructure:"summary"`
	// Plain disables colors even on a terminal
	Plain bool `mapstructure:"plain"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			Extensions: append([]string(nil), walker.DefaultExtensions...),
			Burst:      1,
		},
		Pool: PoolConfig{
			Mode: workerpool.ModePoll.String(),
		},
		Logging: LoggingConfig{
			Level:  logging.LevelWarn,
			Format: logging.FormatText,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Sink: SinkConfig{
			RedisKey: "threadsearch:matches",
		},
		Output: OutputConfig{
			Summary: report.FormatNone,
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("search.root", defaults.Search.Root)
	v.SetDefault("search.extensions", defaults.Search.Extensions)
	v.SetDefault("search.rate", defaults.Search.Rate)
	v.SetDefault("search.burst", defaults.Search.Burst)

	v.SetDefault("pool.workers", defaults.Pool.Workers)
	v.SetDefault("pool.mode", defaults.Pool.Mode)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	v.SetDefault("schedule.cron", defaults.Schedule.Cron)
	v.SetDefault("schedule.max_runs", defaults.Schedule.MaxRuns)

	v.SetDefault("sink.redis_addr", defaults.Sink.RedisAddr)
	v.SetDefault("sink.redis_key", defaults.Sink.RedisKey)

	v.SetDefault("output.summary", defaults.Output.Summary)
	v.SetDefault("output.plain", defaults.Output.Plain)
}

// Init prepares v: defaults, environment overrides and the config file.
// An explicit cfgFile must exist; otherwise ./threadsearch.yaml is read if
// present.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	// e.g., THREADSEARCH_POOL_WORKERS for pool.workers
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName("threadsearch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every section and joins all problems into one error.
// Each problem is a ValidationError.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := walker.Pattern(c.Search.Extensions); err != nil {
		add(err)
	}
	if c.Search.Rate < 0 {
		add(tserrors.NewValidationError("config", "search.rate", c.Search.Rate, "cannot be negative").
			WithHint("use 0 for no limit"))
	}
	if c.Search.Rate > 0 && c.Search.Burst <= 0 {
		add(tserrors.NewValidationError("config", "search.burst", c.Search.Burst, "must be positive when search.rate is set"))
	}

	if _, err := workerpool.ParseMode(c.Pool.Mode); err != nil {
		add(err)
	}

	add(logging.ValidateLevel(c.Logging.Level))
	add(logging.ValidateFormat(c.Logging.Format))

	if c.Metrics.Enabled {
		add(validation.ValidateNotEmpty("config", "metrics.addr", c.Metrics.Addr))
	}

	if c.Schedule.Cron != "" {
		add(scheduler.ValidateCronExpression(c.Schedule.Cron))
	}
	if c.Schedule.MaxRuns < 0 {
		add(tserrors.NewValidationError("config", "schedule.max_runs", c.Schedule.MaxRuns, "cannot be negative"))
	}

	if c.Sink.RedisAddr != "" {
		add(validation.ValidateNotEmpty("config", "sink.redis_key", c.Sink.RedisKey))
	}

	add(report.ValidateFormat(c.Output.Summary))

	return errors.Join(errs...)
}
