// Package taskloader reads and writes the task-definition directory. Each
// file is a YAML mapping of task name to definition; writes always rewrite
// whole files atomically and emit keys in sorted order so files round-trip
// byte-for-byte.
package taskloader
