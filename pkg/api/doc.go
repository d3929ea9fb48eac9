// Package api exposes the HTTP control surface: daemon lifecycle, task
// CRUD and per-task operations under /api/v1, plus /health and /metrics.
package api
