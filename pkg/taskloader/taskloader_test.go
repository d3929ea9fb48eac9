package taskloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightwatch/nightwatch/pkg/task"
)

const sampleFile = `web:
  period_success: 60s
  period_failed: 5m
  providers:
    - http:
        condition: "="
        threshold: 200
        provider_options:
          url: http://example.com
db:
  period_success: 2m
  period_retry: 30s
  period_failed: 10m
  retries: 2
  providers:
    - sql:
        condition: "<"
        threshold: 100
`

func writeSample(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sampleFile), 0o644))
}

func TestListFilesFiltersYAML(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "a.yml")
	writeSample(t, dir, "b.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yml"), 0o755))

	files, err := NewLoader(dir).ListFiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.yml", "b.yaml"}, files)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "tasks.yml")
	l := NewLoader(dir)

	contents, err := l.LoadFile("tasks.yml")
	require.NoError(t, err)
	require.Len(t, contents, 2)

	web := contents["web"]
	assert.Equal(t, "60s", web.PeriodSuccess)
	require.Len(t, web.Providers, 1)
	settings := web.Providers[0]["http"]
	assert.Equal(t, "=", settings.Condition)
	assert.Equal(t, 200, settings.Threshold)
	assert.Equal(t, "http://example.com", settings.Options["url"])

	assert.Equal(t, 2, contents["db"].Retries)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir)

	_, err := l.LoadFile("missing.yml")
	assert.ErrorIs(t, err, ErrFileIO)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("{invalid"), 0o644))
	_, err = l.LoadFile("bad.yml")
	assert.ErrorIs(t, err, ErrFileInvalid)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "a.yml")
	writeSample(t, dir, "b.yml")

	all, err := NewLoader(dir).LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Contains(t, all["a.yml"], "web")
	assert.Contains(t, all["b.yml"], "db")
}

func TestLoadTask(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "tasks.yml")
	l := NewLoader(dir)

	cfg, err := l.LoadTask("tasks.yml", "web")
	require.NoError(t, err)
	assert.Equal(t, "60s", cfg.PeriodSuccess)

	_, err = l.LoadTask("tasks.yml", "nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestWriteFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "tasks.yml")
	l := NewLoader(dir)

	contents, err := l.LoadFile("tasks.yml")
	require.NoError(t, err)

	require.NoError(t, l.WriteFile(contents, "copy.yml"))
	reloaded, err := l.LoadFile("copy.yml")
	require.NoError(t, err)
	assert.Equal(t, contents, reloaded)

	// Deterministic output: writing the same contents twice produces
	// identical bytes.
	first, err := os.ReadFile(filepath.Join(dir, "copy.yml"))
	require.NoError(t, err)
	require.NoError(t, l.WriteFile(contents, "copy.yml"))
	second, err := os.ReadFile(filepath.Join(dir, "copy.yml"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteFileEmptyDeletes(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "tasks.yml")
	l := NewLoader(dir)

	require.NoError(t, l.WriteFile(nil, "tasks.yml"))
	_, err := os.Stat(filepath.Join(dir, "tasks.yml"))
	assert.True(t, os.IsNotExist(err))

	// Deleting an already absent file is fine.
	require.NoError(t, l.WriteFile(nil, "tasks.yml"))
}

func TestAddTasksCreatesAndMerges(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "tasks.yml")
	l := NewLoader(dir)

	extra := task.Config{
		PeriodSuccess: "30s",
		PeriodFailed:  "1m",
		Providers: []map[string]task.ProviderSettings{
			{"ping": {Condition: "=", Threshold: 0}},
		},
	}
	err := l.AddTasks([]Entry{
		{File: "tasks.yml", Name: "probe", Config: extra},
		{File: "fresh.yml", Name: "probe2", Config: extra},
	})
	require.NoError(t, err)

	contents, err := l.LoadFile("tasks.yml")
	require.NoError(t, err)
	assert.Len(t, contents, 3)
	assert.Equal(t, "30s", contents["probe"].PeriodSuccess)

	fresh, err := l.LoadFile("fresh.yml")
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

// A read failure that is not file-not-found must surface instead of being
// treated as an empty file, which would overwrite the existing contents.
func TestAddTasksPropagatesReadErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "odd.yml"), 0o755))
	l := NewLoader(dir)

	cfg := task.Config{
		PeriodSuccess: "30s",
		PeriodFailed:  "1m",
		Providers: []map[string]task.ProviderSettings{
			{"ping": {Condition: "=", Threshold: 0}},
		},
	}
	err := l.AddTasks([]Entry{{File: "odd.yml", Name: "probe", Config: cfg}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileIO)
}

func TestUpdateTasks(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "tasks.yml")
	l := NewLoader(dir)

	cfg, err := l.LoadTask("tasks.yml", "web")
	require.NoError(t, err)
	cfg.PeriodSuccess = "90s"

	require.NoError(t, l.UpdateTasks([]Entry{{File: "tasks.yml", Name: "web", Config: cfg}}))
	updated, err := l.LoadTask("tasks.yml", "web")
	require.NoError(t, err)
	assert.Equal(t, "90s", updated.PeriodSuccess)

	err = l.UpdateTasks([]Entry{{File: "tasks.yml", Name: "ghost", Config: cfg}})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRemoveTasks(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, dir, "tasks.yml")
	l := NewLoader(dir)

	require.NoError(t, l.RemoveTasks([]Entry{{File: "tasks.yml", Name: "web"}}))
	contents, err := l.LoadFile("tasks.yml")
	require.NoError(t, err)
	assert.NotContains(t, contents, "web")
	assert.Contains(t, contents, "db")

	// Removing the last task deletes the file.
	require.NoError(t, l.RemoveTasks([]Entry{{File: "tasks.yml", Name: "db"}}))
	_, err = os.Stat(filepath.Join(dir, "tasks.yml"))
	assert.True(t, os.IsNotExist(err))

	err = l.RemoveTasks([]Entry{{File: "gone.yml", Name: "web"}})
	assert.ErrorIs(t, err, ErrFileIO)
}
