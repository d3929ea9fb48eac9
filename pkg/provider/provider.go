package provider

import (
	"context"
	"fmt"
)

// Provider collects one comparable value per call. Implementations own their
// I/O deadlines; the task engine imposes no timeout on Process.
type Provider interface {
	// Process performs the collection and returns the observed value. Any
	// error is interpreted by the task as a violation for this tick.
	Process(ctx context.Context) (any, error)
}

// Factory builds a provider instance from its merged configuration map.
type Factory func(cfg map[string]any) (Provider, error)

// Spec describes a registered provider: its constructor and the parameters
// it understands. Missing mandatory parameters fail instantiation; missing
// optional parameters are only logged. Parameters outside both sets emit a
// warning but do not fail.
type Spec struct {
	New       Factory
	Mandatory []string
	Optional  []string
}

// ConfigError reports an invalid provider configuration.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for provider %q: %s", e.Provider, e.Reason)
}

func configErrorf(name, format string, args ...any) *ConfigError {
	return &ConfigError{Provider: name, Reason: fmt.Sprintf(format, args...)}
}

// stringOption reads an optional string parameter from a merged config map.
func stringOption(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// intOption reads an optional integer parameter, tolerating the numeric
// types YAML decoding produces.
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

// boolOption reads an optional boolean parameter.
func boolOption(cfg map[string]any, key string, fallback bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
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
