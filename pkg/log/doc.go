// Package log provides structured logging for the night-watch daemon.
//
// It wraps zerolog with a global logger configured once at startup from the
// logging section of the main configuration file, plus helpers for creating
// child loggers scoped to a component, task, provider or action.
package log
