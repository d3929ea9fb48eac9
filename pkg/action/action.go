package action

import (
	"context"
	"fmt"
)

// Report describes the state transition an action is notifying about. The
// three parallel slices describe the providers implicated in the transition:
// on a failure edge the violating providers, on a recovery edge the
// conforming ones.
type Report struct {
	Task       string
	Success    bool
	Conditions []string
	Thresholds []any
	Values     []any
}

// Action executes a notification for a task state edge. Implementations may
// return an error; the task logs it and continues with the next action in
// the list.
type Action interface {
	Process(ctx context.Context, report Report) error
}

// Factory builds an action instance from its merged configuration map.
type Factory func(cfg map[string]any) (Action, error)

// Spec describes a registered action and the parameters it understands.
type Spec struct {
	New       Factory
	Mandatory []string
	Optional  []string
}

// ConfigError reports an invalid action configuration.
type ConfigError struct {
	Action string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for action %q: %s", e.Action, e.Reason)
}

func configErrorf(name, format string, args ...any) *ConfigError {
	return &ConfigError{Action: name, Reason: fmt.Sprintf(format, args...)}
}

func stringOption(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intOption(cfg map[string]any, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// stringsOption reads a parameter that may be a single string or a list.
func stringsOption(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
