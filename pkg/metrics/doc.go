// Package metrics exposes Prometheus collectors for the night-watch daemon.
//
// Collectors are package-level and registered at init; the handler is
// mounted at /metrics on the control API server.
package metrics
