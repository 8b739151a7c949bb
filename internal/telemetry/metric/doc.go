// Package metric provides Prometheus metrics for TokDrop.
//
//   - prometheus.go: the Registry, its record helpers and the /metrics handler
//   - collector.go: a collector sampling record-store counts at scrape time
//
// Every Registry method is safe on a nil receiver, so components can be
// constructed without metrics in tests.
package metric
