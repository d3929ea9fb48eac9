// Package manager orchestrates the live task set: loading definitions,
// scheduling ticks, hot reload, and the per-task control operations exposed
// by the HTTP API. It implements task.PeriodController so tasks can switch
// their polling period on state changes.
package manager
