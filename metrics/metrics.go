// Package metrics re-exports the process-wide go-metrics registry used by
// pow for its mining-attempt and solved-block counters, mirroring
// klaytn's pattern of a shared rcrowley/go-metrics DefaultRegistry fed into
// a Prometheus exporter at startup (see metrics/prometheus).
package metrics

import "github.com/rcrowley/go-metrics"

// DefaultRegistry is the process-wide metrics registry every component
// registers its counters against.
var DefaultRegistry = metrics.DefaultRegistry

// Counter is a convenience alias so callers need not import go-metrics
// directly just to declare a field type.
type Counter = metrics.Counter

// NewCounter registers (or retrieves) a named counter on DefaultRegistry.
func NewCounter(name string) Counter {
	return metrics.NewRegisteredCounter(name, DefaultRegistry)
}
