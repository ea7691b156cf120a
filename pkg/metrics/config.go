package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config selects where and under which names a component records metrics.
type Config struct {
	// Enabled turns collection on. A disabled component records nothing.
	Enabled bool

	// Registry receives the collectors. Nil means prometheus.DefaultRegisterer.
	// Give each search its own registry when several run in one process.
	Registry prometheus.Registerer

	// Namespace prefixes every series; empty means DefaultNamespace.
	Namespace string

	// Labels are constant labels attached to every series, for example the
	// host name when several machines push to one Prometheus.
	Labels prometheus.Labels
}

// DefaultConfig enables collection on the default registerer.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}

// registerer returns the registry collectors should be registered with.
func (c Config) registerer() prometheus.Registerer {
	if c.Registry == nil {
		return prometheus.DefaultRegisterer
	}
	return c.Registry
}

// namespace returns the series prefix.
func (c Config) namespace() string {
	if c.Namespace == "" {
		return DefaultNamespace
	}
	return c.Namespace
}

// Instrumentable is implemented by components whose metrics can be switched
// on and off while they run.
type Instrumentable interface {
	// EnableMetrics starts recording into the registry config describes.
	EnableMetrics(config Config) error

	// DisableMetrics stops recording. Series already exported keep their values.
	DisableMetrics()

	// MetricsEnabled reports whether recording is on.
	MetricsEnabled() bool
}
