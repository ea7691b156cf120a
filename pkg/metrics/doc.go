// Package metrics provides Prometheus instrumentation for threadsearch components.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Worker pools (submitted, executed, failed tasks, durations, queue depth)
//   - Dispatch runs (items by outcome, matches, run duration)
//   - Completion tracking (tasks still pending)
//
// # Quick Start
//
// Wrap a pool with metrics and hand the same registry to the dispatcher:
//
//	registry := prometheus.NewRegistry()
//	cfg := metrics.Config{Enabled: true, Registry: registry}
//
//	pool, err := workerpool.NewWithMetrics(workerpool.Config{WorkerCount: 4}, "search", cfg)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Available Metrics
//
// ## Worker Pool Metrics
//
//   - threadsearch_workerpool_tasks_submitted_total
//   - threadsearch_workerpool_tasks_executed_total
//   - threadsearch_workerpool_tasks_completed_total
//   - threadsearch_workerpool_tasks_failed_total
//   - threadsearch_workerpool_task_duration_seconds
//   - threadsearch_workerpool_task_queue_wait_seconds
//   - threadsearch_workerpool_size
//   - threadsearch_workerpool_active_workers
//   - threadsearch_workerpool_queued_tasks
//
// ## Dispatch Metrics
//
//   - threadsearch_dispatcher_items_total{outcome="submitted|skipped|failed"}
//   - threadsearch_dispatcher_matches_total
//   - threadsearch_dispatcher_run_duration_seconds
//   - threadsearch_completion_pending_tasks
//
// # Labels
//
//   - pool_name: User-provided name for the worker pool instance
//   - dispatcher_name: User-provided name for the dispatcher instance
//   - outcome: What happened to an enumerated item
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	pool.DisableMetrics()
//	pool.EnableMetrics(config)
//	enabled := pool.MetricsEnabled()
package metrics
