// Package adminserver provides the HTTP admin surface: liveness,
// readiness, a JSON stats snapshot and Prometheus metrics.
package adminserver
