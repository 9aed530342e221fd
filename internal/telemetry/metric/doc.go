// Package metric provides Prometheus metrics for condkv.
//
//   - prometheus.go: the registry, request/connection metrics, HTTP handler
//   - collector.go: a collector reading store and registry statistics at
//     scrape time
//
// Metrics are exposed at /metrics on the admin listener.
package metric
