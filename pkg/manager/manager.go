package manager

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/action"
	"github.com/nightwatch/nightwatch/pkg/log"
	"github.com/nightwatch/nightwatch/pkg/metrics"
	"github.com/nightwatch/nightwatch/pkg/provider"
	"github.com/nightwatch/nightwatch/pkg/scheduler"
	"github.com/nightwatch/nightwatch/pkg/task"
	"github.com/nightwatch/nightwatch/pkg/taskloader"
)

var (
	// ErrAlreadyStarted is returned by Start on a running manager.
	ErrAlreadyStarted = errors.New("manager is already started")
	// ErrNotStarted is returned by Stop on a manager that is not running.
	ErrNotStarted = errors.New("manager is not started")
	// ErrReloading is returned when an operation conflicts with an ongoing reload.
	ErrReloading = errors.New("manager is reloading")
	// ErrTaskNotFound is returned on task-name lookup misses.
	ErrTaskNotFound = errors.New("task not found")
)

// Manager owns the live task set. It loads definitions through the task
// loader, instantiates tasks against the provider and action registries,
// and drives them through a single scheduler. All mutations of the task map
// and the scheduler job table are serialised by one mutex.
type Manager struct {
	sched     *scheduler.Scheduler
	loader    *taskloader.Loader
	providers *provider.Registry
	actions   *action.Registry
	logger    zerolog.Logger

	mu        sync.Mutex
	tasks     map[string]*task.Task
	started   bool
	reloading bool
}

// New creates a manager over the given loader and registries.
func New(loader *taskloader.Loader, providers *provider.Registry, actions *action.Registry) *Manager {
	return &Manager{
		sched:     scheduler.New(),
		loader:    loader,
		providers: providers,
		actions:   actions,
		logger:    log.WithComponent("manager"),
		tasks:     make(map[string]*task.Task),
	}
}

// Start loads every task file, schedules the tasks and starts the
// scheduler. Any invalid task definition fails the whole start.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	if err := m.loadAllLocked(); err != nil {
		return err
	}

	m.sched.Start()
	m.started = true
	m.logger.Info().Int("tasks", len(m.tasks)).Msg("task manager started")
	return nil
}

// Stop halts the scheduler and drops the task set; the next Start rebuilds
// it from disk. With wait=true it blocks until all in-flight ticks return.
// It fails if the manager is not started or is reloading.
func (m *Manager) Stop(wait bool) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.reloading {
		m.mu.Unlock()
		return ErrReloading
	}
	m.started = false
	m.sched.RemoveAll()
	m.tasks = make(map[string]*task.Task)
	m.updateTaskGaugeLocked()
	m.mu.Unlock()

	// Waiting happens outside the lock: in-flight ticks may call back into
	// UpdateTaskPeriod.
	m.sched.Stop(wait)
	m.logger.Info().Msg("task manager stopped")
	return nil
}

// Reload drops every job and task, invalidates the provider and action
// default-config caches, and re-loads the task set from disk. On failure
// the reloading flag is cleared and partial state may remain; a later
// reload is expected to repair it.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	if m.reloading {
		return ErrReloading
	}
	m.reloading = true
	defer func() { m.reloading = false }()

	m.logger.Info().Msg("reloading all tasks")
	m.sched.RemoveAll()
	m.tasks = make(map[string]*task.Task)
	m.providers.ClearCache()
	m.actions.ClearCache()

	if err := m.loadAllLocked(); err != nil {
		return err
	}
	m.logger.Info().Int("tasks", len(m.tasks)).Msg("reload complete")
	return nil
}

func (m *Manager) loadAllLocked() error {
	all, err := m.loader.LoadAll()
	if err != nil {
		return err
	}

	files := make([]string, 0, len(all))
	for f := range all {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		for name, cfg := range all[file] {
			if _, ok := m.tasks[name]; ok {
				return fmt.Errorf("task %q is defined more than once", name)
			}
			t, err := task.New(name, file, cfg, m.providers, m.actions, m)
			if err != nil {
				return err
			}
			if err := m.scheduleLocked(t); err != nil {
				return err
			}
		}
	}
	m.updateTaskGaugeLocked()
	return nil
}

func (m *Manager) scheduleLocked(t *task.Task) error {
	if err := m.sched.AddJob(t.Name, t.Period(), m.jobFor(t)); err != nil {
		return err
	}
	m.tasks[t.Name] = t
	return nil
}

// jobFor closes over the task so in-flight ticks keep running against their
// own task object even after a reload replaced it in the map.
func (m *Manager) jobFor(t *task.Task) func() {
	return func() {
		if !t.IsEnabled() {
			return
		}
		t.Run()
	}
}

// PauseTask disables the task and suspends its job. Pausing an already
// paused task is a no-op.
func (m *Manager) PauseTask(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return fmt.Errorf("pause task %q: %w", name, ErrTaskNotFound)
	}
	if t.Disable() {
		if err := m.sched.Pause(name); err != nil {
			return err
		}
	}
	m.updateTaskGaugeLocked()
	return nil
}

// ResumeTask enables the task and reinstates its job.
func (m *Manager) ResumeTask(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return fmt.Errorf("resume task %q: %w", name, ErrTaskNotFound)
	}
	if t.Enable() {
		if err := m.sched.Resume(name); err != nil {
			return err
		}
	}
	m.updateTaskGaugeLocked()
	return nil
}

// UpdateTaskPeriod changes a task's polling period and reschedules its job.
// Tasks call this through the PeriodController interface on state changes.
func (m *Manager) UpdateTaskPeriod(name string, period time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return fmt.Errorf("update period of task %q: %w", name, ErrTaskNotFound)
	}
	if !t.UpdatePeriod(period) {
		return nil
	}
	return m.sched.Reschedule(name, period)
}

// AddTasks validates and schedules new task definitions and persists them
// into filename. Definitions whose name is already live are routed through
// UpdateTasks instead and keep their original file. Validation is two-phase:
// nothing is scheduled or written if any definition is invalid. Returns the
// status of every task touched.
func (m *Manager) AddTasks(configs map[string]task.Config, filename string) ([]task.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := make(map[string]task.Config)
	existing := make(map[string]task.Config)
	for name, cfg := range configs {
		if _, ok := m.tasks[name]; ok {
			existing[name] = cfg
		} else {
			fresh[name] = cfg
		}
	}

	built := make([]*task.Task, 0, len(fresh))
	for name, cfg := range fresh {
		t, err := task.New(name, filename, cfg, m.providers, m.actions, m)
		if err != nil {
			return nil, err
		}
		built = append(built, t)
	}
	if len(existing) > 0 {
		if _, err := m.updateTasksLocked(existing); err != nil {
			return nil, err
		}
	}

	entries := make([]taskloader.Entry, 0, len(built))
	for _, t := range built {
		if err := m.scheduleLocked(t); err != nil {
			return nil, err
		}
		entries = append(entries, taskloader.Entry{File: filename, Name: t.Name, Config: t.Config()})
		m.logger.Info().Str("task", t.Name).Str("file", filename).Msg("task added")
	}
	if len(entries) > 0 {
		if err := m.loader.AddTasks(entries); err != nil {
			return nil, err
		}
	}
	m.updateTaskGaugeLocked()

	statuses := make([]task.Status, 0, len(configs))
	for name := range configs {
		statuses = append(statuses, m.tasks[name].Status())
	}
	return statuses, nil
}

// UpdateTasks replaces live tasks with new definitions and persists them.
// Two-phase: every definition is validated before any task is touched.
func (m *Manager) UpdateTasks(configs map[string]task.Config) ([]task.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTasksLocked(configs)
}

func (m *Manager) updateTasksLocked(configs map[string]task.Config) ([]task.Status, error) {
	built := make([]*task.Task, 0, len(configs))
	for name, cfg := range configs {
		old, ok := m.tasks[name]
		if !ok {
			return nil, fmt.Errorf("update task %q: %w", name, ErrTaskNotFound)
		}
		t, err := task.New(name, old.File, cfg, m.providers, m.actions, m)
		if err != nil {
			return nil, err
		}
		built = append(built, t)
	}

	entries := make([]taskloader.Entry, 0, len(built))
	statuses := make([]task.Status, 0, len(built))
	for _, t := range built {
		if err := m.sched.Remove(t.Name); err != nil {
			return nil, err
		}
		delete(m.tasks, t.Name)
		if err := m.scheduleLocked(t); err != nil {
			return nil, err
		}
		entries = append(entries, taskloader.Entry{File: t.File, Name: t.Name, Config: t.Config()})
		statuses = append(statuses, t.Status())
		m.logger.Info().Str("task", t.Name).Msg("task updated")
	}
	if err := m.loader.UpdateTasks(entries); err != nil {
		return nil, err
	}
	m.updateTaskGaugeLocked()
	return statuses, nil
}

// DeleteTasks removes live tasks and their persisted definitions. Two-phase:
// every name is resolved before any task is removed.
func (m *Manager) DeleteTasks(names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]taskloader.Entry, 0, len(names))
	for _, name := range names {
		t, ok := m.tasks[name]
		if !ok {
			return fmt.Errorf("delete task %q: %w", name, ErrTaskNotFound)
		}
		entries = append(entries, taskloader.Entry{File: t.File, Name: name})
	}

	for _, e := range entries {
		if err := m.sched.Remove(e.Name); err != nil {
			return err
		}
		delete(m.tasks, e.Name)
		metrics.TaskFailed.DeleteLabelValues(e.Name)
		m.logger.Info().Str("task", e.Name).Msg("task deleted")
	}
	m.updateTaskGaugeLocked()
	return m.loader.RemoveTasks(entries)
}

// ReloadTask re-reads one task's definition from its originating file and
// replaces the live task.
func (m *Manager) ReloadTask(name string) (task.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.tasks[name]
	if !ok {
		return task.Status{}, fmt.Errorf("reload task %q: %w", name, ErrTaskNotFound)
	}

	cfg, err := m.loader.LoadTask(old.File, name)
	if err != nil {
		if errors.Is(err, taskloader.ErrTaskNotFound) {
			return task.Status{}, fmt.Errorf("reload task %q: %w", name, ErrTaskNotFound)
		}
		return task.Status{}, err
	}

	t, err := task.New(name, old.File, cfg, m.providers, m.actions, m)
	if err != nil {
		return task.Status{}, err
	}
	if err := m.sched.Remove(name); err != nil {
		return task.Status{}, err
	}
	delete(m.tasks, name)
	if err := m.scheduleLocked(t); err != nil {
		return task.Status{}, err
	}
	m.logger.Info().Str("task", name).Str("file", t.File).Msg("task reloaded from file")
	return t.Status(), nil
}

// GetTask returns one live task.
func (m *Manager) GetTask(name string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return nil, fmt.Errorf("get task %q: %w", name, ErrTaskNotFound)
	}
	return t, nil
}

// GetTasks returns a snapshot of the live task map.
func (m *Manager) GetTasks() map[string]*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make(map[string]*task.Task, len(m.tasks))
	for name, t := range m.tasks {
		tasks[name] = t
	}
	return tasks
}

// SuccessfulTasks returns the tasks currently conforming.
func (m *Manager) SuccessfulTasks() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []*task.Task
	for _, t := range m.tasks {
		if t.IsSuccess() {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// EnabledTasks returns the tasks currently enabled.
func (m *Manager) EnabledTasks() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []*task.Task
	for _, t := range m.tasks {
		if t.IsEnabled() {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// IsRunning reports whether the manager is started.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// IsReloading reports whether a reload is in progress.
func (m *Manager) IsReloading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloading
}

// StatusString renders the daemon state for the status endpoint.
func (m *Manager) StatusString() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.reloading:
		return "Reloading"
	case m.started:
		return "Running"
	default:
		return "Stopped"
	}
}

func (m *Manager) updateTaskGaugeLocked() {
	var enabled, disabled float64
	for _, t := range m.tasks {
		if t.IsEnabled() {
			enabled++
		} else {
			disabled++
		}
	}
	metrics.TasksTotal.WithLabelValues("enabled").Set(enabled)
	metrics.TasksTotal.WithLabelValues("disabled").Set(disabled)
}
