// Package metric provides Prometheus metrics for sessfile.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, sweep metrics and HTTP handler
//   - collector.go: Collector reporting session directory usage at scrape time
//
// Store-level counters are registered by the store packages themselves
// through Registry.Registerer. Metrics are exposed at /metrics.
package metric
