package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoProvider returns whatever the "value" parameter holds. Registered by
// tests to observe the merged configuration.
type echoProvider struct {
	cfg map[string]any
}

func (p *echoProvider) Process(ctx context.Context) (any, error) {
	return p.cfg["value"], nil
}

func echoSpec() Spec {
	return Spec{
		New: func(cfg map[string]any) (Provider, error) {
			return &echoProvider{cfg: cfg}, nil
		},
		Mandatory: []string{"value"},
		Optional:  []string{"extra"},
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry(t.TempDir())

	_, err := r.New("does-not-exist", nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "does-not-exist", cfgErr.Provider)
}

func TestRegistryMandatoryParameter(t *testing.T) {
	r := NewRegistry(t.TempDir())
	r.Register("echo", echoSpec())

	_, err := r.New("echo", map[string]any{"extra": true})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "value")
}

func TestRegistryMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.yml"), []byte("value: from-defaults\nextra: kept\n"), 0o644))

	r := NewRegistry(dir)
	r.Register("echo", echoSpec())

	// Default config alone satisfies the mandatory parameter.
	p, err := r.New("echo", nil)
	require.NoError(t, err)
	v, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-defaults", v)

	// Task options override defaults, untouched defaults survive.
	p, err = r.New("echo", map[string]any{"value": "from-task"})
	require.NoError(t, err)
	v, err = p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-task", v)
	assert.Equal(t, "kept", p.(*echoProvider).cfg["extra"])
}

func TestRegistryCachesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echo.yml")
	require.NoError(t, os.WriteFile(path, []byte("value: first\n"), 0o644))

	r := NewRegistry(dir)
	r.Register("echo", echoSpec())

	p, err := r.New("echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", p.(*echoProvider).cfg["value"])

	// A rewrite of the file is invisible until the cache is cleared.
	require.NoError(t, os.WriteFile(path, []byte("value: second\n"), 0o644))
	p, err = r.New("echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", p.(*echoProvider).cfg["value"])

	r.ClearCache()
	p, err = r.New("echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", p.(*echoProvider).cfg["value"])
}

func TestRegistryInvalidDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.yml"), []byte(":\t["), 0o644))

	r := NewRegistry(dir)
	r.Register("echo", echoSpec())

	_, err := r.New("echo", map[string]any{"value": 1})
	assert.Error(t, err)
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry(t.TempDir())

	for _, name := range []string{"http", "ping", "sql", "redis", "graphite"} {
		_, err := r.New(name, nil)
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr, "builtin %s must be registered and reject an empty config", name)
	}
}
