package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/vnykmshr/threadsearch/internal/config"
	"github.com/vnykmshr/threadsearch/internal/report"
	"github.com/vnykmshr/threadsearch/internal/scan"
	"github.com/vnykmshr/threadsearch/internal/walker"
	"github.com/vnykmshr/threadsearch/pkg/metrics"
	"github.com/vnykmshr/threadsearch/pkg/ratelimit/bucket"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/dispatcher"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/scheduler"
	"github.com/vnykmshr/threadsearch/pkg/scheduling/workerpool"
)

// metricsName labels the pool and dispatcher series of a search.
const metricsName = "search"

type searchDeps struct {
	fs      afero.Fs
	out     io.Writer
	mu      *sync.Mutex
	printer *report.Printer
	logger  *slog.Logger
}

// search owns everything one invocation needs: the pool, the dispatcher
// and the optional metrics endpoint and Redis client.
type search struct {
	cfg     *config.Config
	mode    workerpool.Mode
	out     io.Writer
	printer *report.Printer
	logger  *slog.Logger

	pool    workerpool.Pool
	disp    *dispatcher.Dispatcher
	redis   *redis.Client
	metrics *metricsServer
}

func newSearch(ctx context.Context, deps searchDeps, cfg *config.Config) (s *search, err error) {
	mode, err := workerpool.ParseMode(cfg.Pool.Mode)
	if err != nil {
		return nil, err
	}

	s = &search{
		cfg:     cfg,
		mode:    mode,
		out:     deps.out,
		printer: deps.printer,
		logger:  deps.logger,
	}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	metricsCfg := metrics.Config{Enabled: cfg.Metrics.Enabled}
	var promReg *prometheus.Registry
	if cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metricsCfg.Registry = promReg
	}

	s.pool, err = workerpool.NewWithMetrics(workerpool.Config{
		WorkerCount: cfg.Pool.Workers,
		Mode:        mode,
		Logger:      deps.logger,
	}, metricsName, metricsCfg)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	source, err := walker.New(deps.fs, cfg.Search.Extensions, deps.logger)
	if err != nil {
		return nil, err
	}

	var sink report.Sink = deps.printer
	if cfg.Sink.RedisAddr != "" {
		s.redis, err = report.NewRedisClient(ctx, cfg.Sink.RedisAddr)
		if err != nil {
			return nil, err
		}
		redisSink, err := report.NewRedisSink(s.redis, cfg.Sink.RedisKey)
		if err != nil {
			return nil, err
		}
		sink = report.Tee(deps.printer, redisSink)
	}
	scanner := scan.New(deps.fs, sink)

	opts := []dispatcher.Option{
		dispatcher.WithLocker(deps.mu),
		dispatcher.WithLogger(deps.logger),
	}
	// The pool already registered the shared series on its registry.
	if mp, ok := s.pool.(*workerpool.MetricsPool); ok {
		opts = append(opts, dispatcher.WithMetrics(mp.Registry(), metricsName))
	}
	if cfg.Search.Rate > 0 {
		limiter, err := bucket.New(cfg.Search.Rate, cfg.Search.Burst)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatcher.WithThrottle(limiter))
	}

	s.disp, err = dispatcher.New(s.pool, source, scanner.Scan, opts...)
	if err != nil {
		return nil, err
	}

	if promReg != nil {
		s.metrics, err = startMetricsServer(cfg.Metrics.Addr, promReg, deps.logger)
		if err != nil {
			return nil, err
		}
	}

	deps.logger.Info("search configured",
		"workers", s.pool.Size(),
		"mode", mode.String(),
		"extensions", source.String())
	return s, nil
}

// once runs a single search between the two banners and writes the summary.
func (s *search) once(ctx context.Context, root, target string) error {
	workers := s.pool.Size()
	if err := s.printer.Started(root, target, workers); err != nil {
		return err
	}

	stats, runErr := s.disp.Start(ctx, root, target).Wait()

	if err := s.printer.Completed(); err != nil {
		return err
	}

	summary := report.Summary{
		Stats:   stats,
		Workers: workers,
		Mode:    s.mode.String(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := report.WriteSummary(s.out, s.cfg.Output.Summary, summary); err != nil {
		return err
	}
	return runErr
}

// repeat runs the search on the configured schedule, starting immediately.
// It ends when the run limit is reached or ctx is cancelled.
func (s *search) repeat(ctx context.Context, root, target string) error {
	desc, err := scheduler.Describe(s.cfg.Schedule.Cron, time.Now(), nil)
	if err != nil {
		return err
	}
	s.logger.Info("repeating search",
		"schedule", desc.Description,
		"next", desc.NextRuns[0],
		"max_runs", s.cfg.Schedule.MaxRuns)

	r, err := scheduler.NewRepeater(s.cfg.Schedule.Cron, func(ctx context.Context) error {
		return s.once(ctx, root, target)
	}, scheduler.CronOptions{
		MaxRuns:        s.cfg.Schedule.MaxRuns,
		RunImmediately: true,
		Logger:         s.logger,
		OnSkip: func(at time.Time) {
			s.logger.Warn("search still running, skipping tick", "at", at)
		},
	})
	if err != nil {
		return err
	}

	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		s.logger.Info("repeat stopped", "runs", r.Runs())
		return nil
	}
	return err
}

func (s *search) close() {
	if s.pool != nil {
		<-s.pool.Shutdown()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("close redis client", "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.shutdown()
	}
}
