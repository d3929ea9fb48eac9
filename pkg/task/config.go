package task

import "fmt"

// Config is one task definition as written in a task file. Task files are
// top-level mappings of task name to Config.
type Config struct {
	PeriodSuccess  string                        `yaml:"period_success" json:"period_success"`
	PeriodRetry    string                        `yaml:"period_retry,omitempty" json:"period_retry,omitempty"`
	PeriodFailed   string                        `yaml:"period_failed" json:"period_failed"`
	Retries        int                           `yaml:"retries,omitempty" json:"retries,omitempty"`
	Providers      []map[string]ProviderSettings `yaml:"providers" json:"providers"`
	ActionsFailed  map[string]map[string]any     `yaml:"actions_failed,omitempty" json:"actions_failed,omitempty"`
	ActionsSuccess map[string]map[string]any     `yaml:"actions_success,omitempty" json:"actions_success,omitempty"`
}

// ProviderSettings binds one provider use to its condition, threshold and
// provider-specific options. Each entry of Config.Providers is a single-key
// mapping of provider name to ProviderSettings.
type ProviderSettings struct {
	Condition string         `yaml:"condition" json:"condition"`
	Threshold any            `yaml:"threshold" json:"threshold"`
	Options   map[string]any `yaml:"provider_options,omitempty" json:"provider_options,omitempty"`
}

// ConfigError reports an invalid task definition.
type ConfigError struct {
	Task   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for task %q: %s", e.Task, e.Reason)
}

func configErrorf(name, format string, args ...any) *ConfigError {
	return &ConfigError{Task: name, Reason: fmt.Sprintf(format, args...)}
}
