package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nightwatch/nightwatch/pkg/log"
)

// Registry resolves provider names to instances. Providers are registered
// at build time in a name-keyed table. Each provider may carry a default
// configuration file <dir>/<name>.yml; it is read once, cached, and merged
// below the per-task provider options at every instantiation (task keys
// override defaults).
type Registry struct {
	dir string

	mu       sync.Mutex
	specs    map[string]Spec
	defaults map[string]map[string]any // nil value = no config file
}

// NewRegistry creates a registry with the builtin providers, reading default
// configuration files from dir.
func NewRegistry(dir string) *Registry {
	r := &Registry{
		dir:      dir,
		specs:    make(map[string]Spec),
		defaults: make(map[string]map[string]any),
	}
	r.Register("http", httpSpec())
	r.Register("ping", pingSpec())
	r.Register("sql", sqlSpec())
	r.Register("redis", redisSpec())
	r.Register("graphite", graphiteSpec())
	return r
}

// Register adds a provider to the table, replacing any previous entry with
// the same name.
func (r *Registry) Register(name string, spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = spec
}

// New instantiates the named provider with the task-supplied options merged
// over its cached default configuration.
func (r *Registry) New(name string, options map[string]any) (Provider, error) {
	r.mu.Lock()
	spec, ok := r.specs[name]
	if !ok {
		r.mu.Unlock()
		return nil, configErrorf(name, "unknown provider")
	}
	defaults, err := r.loadDefaultsLocked(name)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	merged := merge(defaults, options)
	if err := validate(name, merged, spec); err != nil {
		return nil, err
	}
	return spec.New(merged)
}

// ClearCache drops the cached default configurations, forcing the next
// instantiation of each provider to re-read its file. Used by reload.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = make(map[string]map[string]any)
}

func (r *Registry) loadDefaultsLocked(name string) (map[string]any, error) {
	if cached, ok := r.defaults[name]; ok {
		return cached, nil
	}

	logger := log.WithProvider(name)
	path := filepath.Join(r.dir, name+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", path).Msg("no default config file")
			r.defaults[name] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read provider config %s: %w", path, err)
	}

	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, configErrorf(name, "default config %s is not valid yaml: %v", path, err)
	}
	logger.Info().Str("path", path).Msg("default config loaded")
	r.defaults[name] = cfg
	return cfg, nil
}

// merge overlays task options on top of the default configuration.
func merge(defaults, options map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(options))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}
	return merged
}

// validate checks the merged configuration against the provider's declared
// parameter sets.
func validate(name string, cfg map[string]any, spec Spec) error {
	logger := log.WithProvider(name)

	for _, param := range spec.Mandatory {
		if _, ok := cfg[param]; !ok {
			return configErrorf(name, "mandatory parameter %q is not provided", param)
		}
	}
	for _, param := range spec.Optional {
		if _, ok := cfg[param]; !ok {
			logger.Info().Str("param", param).Msg("optional parameter not provided")
		}
	}
	known := make(map[string]bool, len(spec.Mandatory)+len(spec.Optional))
	for _, param := range spec.Mandatory {
		known[param] = true
	}
	for _, param := range spec.Optional {
		known[param] = true
	}
	for param := range cfg {
		if !known[param] {
			logger.Warn().Str("param", param).Msg("parameter is not managed by this provider")
		}
	}
	return nil
}
