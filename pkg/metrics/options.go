package metrics

import (
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// Option adjusts a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace replaces the "ecoinvest" metric namespace. Empty keeps it.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces the "recommendations" subsystem. Empty keeps it.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets the upper bounds, in milliseconds, of every
// latency histogram. The bounds are sorted; an empty list keeps the default.
func WithHistogramBuckets(bounds []float64) Option {
	return func(m *Manager) {
		if len(bounds) > 0 {
			m.histogramBuckets = slices.Sorted(slices.Values(bounds))
		}
	}
}

// WithConstLabel adds a label with a fixed value to every metric, e.g. the
// deployment a server runs in. An empty value is ignored.
func WithConstLabel(name, value string) Option {
	return func(m *Manager) {
		if name == "" || value == "" {
			return
		}
		labels := maps.Clone(m.customLabels)
		if labels == nil {
			labels = map[string]string{}
		}
		labels[name] = value
		m.customLabels = labels
	}
}

// WithPrometheusRegistry sets where collectors are registered.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
