package taskloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/nightwatch/nightwatch/pkg/log"
	"github.com/nightwatch/nightwatch/pkg/task"
)

var (
	// ErrFileIO wraps read/write failures on task-definition files.
	ErrFileIO = errors.New("task file I/O error")
	// ErrFileInvalid wraps YAML or schema failures on task-definition files.
	ErrFileInvalid = errors.New("task file is invalid")
	// ErrTaskNotFound reports a task-name lookup miss within a file.
	ErrTaskNotFound = errors.New("task not found")
)

// Entry binds one task definition to the file it lives in. Write operations
// take entries so tasks can be grouped and persisted per originating file.
type Entry struct {
	File   string
	Name   string
	Config task.Config
}

// Loader is a pure I/O helper over the task-definition directory. It holds
// no state besides the directory path; all reads hit the disk.
type Loader struct {
	dir    string
	logger zerolog.Logger
}

// NewLoader returns a loader over the given task-definition directory.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, logger: log.WithComponent("taskloader")}
}

// ListFiles returns the YAML filenames in the task directory, without paths.
func (l *Loader) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrFileIO, l.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// LoadFile reads one task file and returns its task definitions by name.
func (l *Loader) LoadFile(name string) (map[string]task.Config, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFileIO, name, err)
	}

	contents := map[string]task.Config{}
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrFileInvalid, name, err)
	}
	return contents, nil
}

// LoadAll reads every task file in the directory, keyed by filename.
func (l *Loader) LoadAll() (map[string]map[string]task.Config, error) {
	files, err := l.ListFiles()
	if err != nil {
		return nil, err
	}

	all := make(map[string]map[string]task.Config, len(files))
	for _, f := range files {
		contents, err := l.LoadFile(f)
		if err != nil {
			return nil, err
		}
		all[f] = contents
	}
	return all, nil
}

// LoadTask reads a single task definition from the given file.
func (l *Loader) LoadTask(file, name string) (task.Config, error) {
	contents, err := l.LoadFile(file)
	if err != nil {
		return task.Config{}, err
	}
	cfg, ok := contents[name]
	if !ok {
		return task.Config{}, fmt.Errorf("%w: %q in file %s", ErrTaskNotFound, name, file)
	}
	return cfg, nil
}

// AddTasks writes the given task definitions into their files, creating
// files as needed. Existing definitions with the same name are replaced.
func (l *Loader) AddTasks(entries []Entry) error {
	for file, group := range groupByFile(entries) {
		contents, err := l.LoadFile(file)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Starting a new file is fine; any other read failure must not
			// end with the existing contents being overwritten.
			contents = map[string]task.Config{}
		case err != nil:
			return err
		}

		for _, e := range group {
			contents[e.Name] = e.Config
		}
		if err := l.WriteFile(contents, file); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTasks rewrites existing task definitions in place. A name missing
// from its file fails with ErrTaskNotFound before anything is written.
func (l *Loader) UpdateTasks(entries []Entry) error {
	for file, group := range groupByFile(entries) {
		contents, err := l.LoadFile(file)
		if err != nil {
			return err
		}

		for _, e := range group {
			if _, ok := contents[e.Name]; !ok {
				return fmt.Errorf("%w: %q in file %s", ErrTaskNotFound, e.Name, file)
			}
			contents[e.Name] = e.Config
		}
		if err := l.WriteFile(contents, file); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTasks deletes the given task definitions from their files. Files
// left empty are removed from disk.
func (l *Loader) RemoveTasks(entries []Entry) error {
	for file, group := range groupByFile(entries) {
		contents, err := l.LoadFile(file)
		if err != nil {
			return err
		}

		for _, e := range group {
			if _, ok := contents[e.Name]; !ok {
				return fmt.Errorf("%w: %q in file %s", ErrTaskNotFound, e.Name, file)
			}
			delete(contents, e.Name)
		}
		if err := l.WriteFile(contents, file); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile persists a whole task file atomically (temp file plus rename).
// Serialisation is deterministic: yaml.v3 emits map keys sorted. Empty
// contents delete the file instead.
func (l *Loader) WriteFile(contents map[string]task.Config, name string) error {
	path := filepath.Join(l.dir, name)

	if len(contents) == 0 {
		l.logger.Info().Str("file", name).Msg("task file is empty, removing it")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: removing %s: %v", ErrFileIO, name, err)
		}
		return nil
	}

	data, err := yaml.Marshal(contents)
	if err != nil {
		return fmt.Errorf("%w: serialising %s: %v", ErrFileInvalid, name, err)
	}

	tmp, err := os.CreateTemp(l.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrFileIO, name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", ErrFileIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", ErrFileIO, name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", ErrFileIO, name, err)
	}

	l.logger.Debug().Str("file", name).Int("tasks", len(contents)).Msg("task file written")
	return nil
}

func groupByFile(entries []Entry) map[string][]Entry {
	grouped := make(map[string][]Entry)
	for _, e := range entries {
		grouped[e.File] = append(grouped[e.File], e)
	}
	return grouped
}
