package action

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nightwatch/nightwatch/pkg/log"
)

// Registry resolves action names to instances, mirroring the provider
// registry: build-time registration table, cached per-action default
// configuration files (<dir>/<name>.yml), and task options merged over the
// defaults at instantiation.
type Registry struct {
	dir string

	mu       sync.Mutex
	specs    map[string]Spec
	defaults map[string]map[string]any // nil value = no config file
}

// NewRegistry creates a registry with the builtin actions, reading default
// configuration files from dir.
func NewRegistry(dir string) *Registry {
	r := &Registry{
		dir:      dir,
		specs:    make(map[string]Spec),
		defaults: make(map[string]map[string]any),
	}
	r.Register("email", emailSpec())
	r.Register("webhook", webhookSpec())
	return r
}

// Register adds an action to the table, replacing any previous entry with
// the same name.
func (r *Registry) Register(name string, spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = spec
}

// New instantiates the named action with the task-supplied options merged
// over its cached default configuration.
func (r *Registry) New(name string, options map[string]any) (Action, error) {
	r.mu.Lock()
	spec, ok := r.specs[name]
	if !ok {
		r.mu.Unlock()
		return nil, configErrorf(name, "unknown action")
	}
	defaults, err := r.loadDefaultsLocked(name)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(defaults)+len(options))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}

	if err := validate(name, merged, spec); err != nil {
		return nil, err
	}
	return spec.New(merged)
}

// ClearCache drops the cached default configurations. Used by reload.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = make(map[string]map[string]any)
}

func (r *Registry) loadDefaultsLocked(name string) (map[string]any, error) {
	if cached, ok := r.defaults[name]; ok {
		return cached, nil
	}

	logger := log.WithAction(name)
	path := filepath.Join(r.dir, name+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("path", path).Msg("no default config file")
			r.defaults[name] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read action config %s: %w", path, err)
	}

	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, configErrorf(name, "default config %s is not valid yaml: %v", path, err)
	}
	logger.Info().Str("path", path).Msg("default config loaded")
	r.defaults[name] = cfg
	return cfg, nil
}

func validate(name string, cfg map[string]any, spec Spec) error {
	logger := log.WithAction(name)

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
			logger.Warn().Str("param", param).Msg("parameter is not managed by this action")
		}
	}
	return nil
}
