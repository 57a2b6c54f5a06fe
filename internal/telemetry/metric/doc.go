// Package metric provides Prometheus metrics for PreviewShare.
//
//   - prometheus.go: registry, preview lifecycle counters and the /metrics
//     handler
//   - collector.go: build information collector
//
// All metrics use the previewshare namespace.
package metric
