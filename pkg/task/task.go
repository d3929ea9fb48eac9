package task

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/action"
	"github.com/nightwatch/nightwatch/pkg/config"
	"github.com/nightwatch/nightwatch/pkg/log"
	"github.com/nightwatch/nightwatch/pkg/metrics"
	"github.com/nightwatch/nightwatch/pkg/provider"
)

// PeriodController is the narrow capability a task uses to request a new
// polling period. The task never touches the scheduler directly; the task
// manager implements this and reschedules the job.
type PeriodController interface {
	UpdateTaskPeriod(name string, period time.Duration) error
}

// ProviderFactory instantiates providers by name, typically the provider
// registry.
type ProviderFactory interface {
	New(name string, options map[string]any) (provider.Provider, error)
}

// ActionFactory instantiates actions by name, typically the action registry.
type ActionFactory interface {
	New(name string, options map[string]any) (action.Action, error)
}

// boundProvider is one provider use within a task: the instance plus its
// comparison and observation history.
type boundProvider struct {
	name      string
	condition Condition
	threshold any
	provider  provider.Provider
	history   observationRing
}

type boundAction struct {
	name   string
	action action.Action
}

// Task is a single monitoring rule. All mutable state is guarded by mu;
// Run is never invoked concurrently with itself (scheduler guarantee), but
// the control API may flip flags or read status at any time.
type Task struct {
	Name string
	// File is the task-definition file this task was loaded from, relative
	// to the tasks directory.
	File string

	cfg        Config
	retries    int
	controller PeriodController
	logger     zerolog.Logger

	periodSuccess time.Duration
	periodRetry   time.Duration
	periodFailed  time.Duration

	mu             sync.Mutex
	enabled        bool
	failed         bool
	remaining      int
	period         time.Duration
	providers      []*boundProvider
	actionsFailed  []boundAction
	actionsSuccess []boundAction
}

// New validates cfg and builds a task with its provider and action
// instances. Validation failures return a *ConfigError.
func New(name, file string, cfg Config, providers ProviderFactory, actions ActionFactory, controller PeriodController) (*Task, error) {
	t := &Task{
		Name:       name,
		File:       file,
		cfg:        cfg,
		retries:    cfg.Retries,
		controller: controller,
		logger:     log.WithTask(name),
		enabled:    true,
	}

	if cfg.Retries < 0 {
		return nil, configErrorf(name, "retries must not be negative")
	}

	var err error
	if cfg.PeriodSuccess == "" {
		return nil, configErrorf(name, "mandatory parameter period_success is not provided")
	}
	if t.periodSuccess, err = config.ParseDuration(cfg.PeriodSuccess); err != nil {
		return nil, configErrorf(name, "period_success: %v", err)
	}
	if cfg.PeriodFailed == "" {
		return nil, configErrorf(name, "mandatory parameter period_failed is not provided")
	}
	if t.periodFailed, err = config.ParseDuration(cfg.PeriodFailed); err != nil {
		return nil, configErrorf(name, "period_failed: %v", err)
	}
	if cfg.Retries > 0 {
		if cfg.PeriodRetry == "" {
			return nil, configErrorf(name, "mandatory parameter period_retry is not provided when retries > 0")
		}
		if t.periodRetry, err = config.ParseDuration(cfg.PeriodRetry); err != nil {
			return nil, configErrorf(name, "period_retry: %v", err)
		}
	}

	t.remaining = t.retries
	t.period = t.periodSuccess

	if len(cfg.Providers) == 0 {
		return nil, configErrorf(name, "mandatory parameter providers is not provided")
	}
	for _, entry := range cfg.Providers {
		for providerName, settings := range entry {
			if settings.Condition == "" {
				return nil, configErrorf(name, "mandatory parameter condition is not provided for provider %q", providerName)
			}
			cond, err := ParseCondition(settings.Condition)
			if err != nil {
				return nil, configErrorf(name, "%v", err)
			}
			if settings.Threshold == nil {
				return nil, configErrorf(name, "mandatory parameter threshold is not provided for provider %q", providerName)
			}
			p, err := providers.New(providerName, settings.Options)
			if err != nil {
				return nil, configErrorf(name, "provider %q: %v", providerName, err)
			}
			t.providers = append(t.providers, &boundProvider{
				name:      providerName,
				condition: cond,
				threshold: settings.Threshold,
				provider:  p,
			})
		}
	}

	if t.actionsFailed, err = buildActions(name, cfg.ActionsFailed, actions); err != nil {
		return nil, err
	}
	if len(t.actionsFailed) == 0 {
		t.logger.Warn().Msg("no action defined for when this task fails")
	}
	if t.actionsSuccess, err = buildActions(name, cfg.ActionsSuccess, actions); err != nil {
		return nil, err
	}
	if len(t.actionsSuccess) == 0 {
		t.logger.Warn().Msg("no action defined for when this task is back to normal")
	}

	return t, nil
}

func buildActions(taskName string, configs map[string]map[string]any, actions ActionFactory) ([]boundAction, error) {
	built := make([]boundAction, 0, len(configs))
	for actionName, options := range configs {
		a, err := actions.New(actionName, options)
		if err != nil {
			return nil, configErrorf(taskName, "action %q: %v", actionName, err)
		}
		built = append(built, boundAction{name: actionName, action: a})
	}
	return built, nil
}

// Run executes one tick: collect every provider's value, compare against
// its threshold, advance the state machine, and fire actions on edges. All
// errors raised by providers and actions are recovered here; Run never
// panics out into the scheduler.
func (t *Task) Run() {
	ctx := context.Background()

	var failed, conforming []*boundProvider
	var failedValues, conformingValues []any

	for _, bp := range t.providers {
		value, err := bp.provider.Process(ctx)
		now := time.Now()

		if err != nil {
			t.logger.Error().Err(err).Str("provider", bp.name).Msg("provider raised an error while collecting value")
			metrics.ProviderErrorsTotal.WithLabelValues(t.Name, bp.name).Inc()
			t.record(bp, Observation{Time: now, Value: nil, OK: false})
			failed = append(failed, bp)
			failedValues = append(failedValues, nil)
			continue
		}

		t.record(bp, Observation{Time: now, Value: value, OK: true})

		conform, evalErr := bp.condition.Evaluate(value, bp.threshold)
		if evalErr != nil {
			t.logger.Warn().Err(evalErr).Str("provider", bp.name).Msg("value is not comparable with threshold")
		}
		if conform {
			t.logger.Debug().Str("provider", bp.name).Interface("value", value).
				Str("condition", bp.condition.String()).Interface("threshold", bp.threshold).
				Msg("collected value conforms")
			conforming = append(conforming, bp)
			conformingValues = append(conformingValues, value)
		} else {
			t.logger.Warn().Str("provider", bp.name).Interface("value", value).
				Str("condition", bp.condition.String()).Interface("threshold", bp.threshold).
				Msg("collected value violates condition")
			failed = append(failed, bp)
			failedValues = append(failedValues, value)
		}
	}

	// Advance the state machine under the lock, but defer period changes
	// and action execution until it is released: the period change calls
	// back into the manager and actions may block on network I/O.
	// The tick counts as a violation only when every provider violated its
	// condition (or errored). A single conforming provider keeps the task
	// in the conforming macro-state.
	t.mu.Lock()
	violated := len(failed) > 0 && len(failed) == len(t.providers)

	var fire []boundAction
	var report action.Report
	var newPeriod time.Duration

	if violated {
		switch {
		case t.remaining > 0:
			if t.remaining == t.retries {
				newPeriod = t.periodRetry
			}
			t.remaining--
			t.logger.Info().Int("remaining_retries", t.remaining).Msg("task failed, retrying before processing actions")
		case t.failed:
			t.logger.Info().Msg("task still fails, actions have already been processed")
		default:
			t.failed = true
			newPeriod = t.periodFailed
			fire = t.actionsFailed
			report = buildReport(t.Name, false, failed, failedValues)
			metrics.TaskFailed.WithLabelValues(t.Name).Set(1)
			t.logger.Warn().Msg("task just failed, processing failure actions")
		}
	} else {
		wasFailed := t.failed
		if t.remaining != t.retries || wasFailed {
			newPeriod = t.periodSuccess
		}
		t.remaining = t.retries
		if wasFailed {
			t.failed = false
			fire = t.actionsSuccess
			report = buildReport(t.Name, true, conforming, conformingValues)
			metrics.TaskFailed.WithLabelValues(t.Name).Set(0)
			t.logger.Info().Msg("task is back to normal, processing success actions")
		} else {
			t.logger.Debug().Msg("task is still normal")
		}
	}
	t.mu.Unlock()

	if violated {
		metrics.TaskRunsTotal.WithLabelValues(t.Name, "violated").Inc()
	} else {
		metrics.TaskRunsTotal.WithLabelValues(t.Name, "conforming").Inc()
	}

	if newPeriod > 0 {
		t.requestPeriod(newPeriod)
	}
	if fire != nil {
		t.processActions(ctx, fire, report)
	}
}

func (t *Task) record(bp *boundProvider, o Observation) {
	t.mu.Lock()
	bp.history.add(o)
	t.mu.Unlock()
}

func buildReport(taskName string, success bool, providers []*boundProvider, values []any) action.Report {
	report := action.Report{
		Task:       taskName,
		Success:    success,
		Conditions: make([]string, len(providers)),
		Thresholds: make([]any, len(providers)),
		Values:     values,
	}
	for i, bp := range providers {
		report.Conditions[i] = bp.condition.String()
		report.Thresholds[i] = bp.threshold
	}
	return report
}

// requestPeriod asks the manager for a new polling period. The task's own
// period field is updated by the manager through UpdatePeriod, so it always
// reflects the last accepted reschedule.
func (t *Task) requestPeriod(newPeriod time.Duration) {
	t.mu.Lock()
	current := t.period
	t.mu.Unlock()
	if newPeriod == current {
		return
	}

	if err := t.controller.UpdateTaskPeriod(t.Name, newPeriod); err != nil {
		t.logger.Error().Err(err).Dur("period", newPeriod).Msg("failed to update task period")
	}
}

// processActions runs the given actions in declared order. A failing action
// is logged and does not suppress the remaining ones.
func (t *Task) processActions(ctx context.Context, actions []boundAction, report action.Report) {
	for _, ba := range actions {
		t.logger.Info().Str("action", ba.name).Msg("processing action")
		if err := ba.action.Process(ctx, report); err != nil {
			t.logger.Error().Err(err).Str("action", ba.name).Msg("action raised an error while processing")
			metrics.ActionsExecutedTotal.WithLabelValues(ba.name, "error").Inc()
			continue
		}
		metrics.ActionsExecutedTotal.WithLabelValues(ba.name, "ok").Inc()
	}
}

// Disable marks the task disabled. Returns true if the flag changed.
func (t *Task) Disable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		t.logger.Warn().Msg("tried to disable task but it is already disabled")
		return false
	}
	t.enabled = false
	t.logger.Debug().Msg("task disabled")
	return true
}

// Enable marks the task enabled. Returns true if the flag changed.
func (t *Task) Enable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		t.logger.Warn().Msg("tried to enable task but it is already enabled")
		return false
	}
	t.enabled = true
	t.logger.Debug().Msg("task enabled")
	return true
}

// IsEnabled reports whether the task's scheduler job should fire.
func (t *Task) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// IsSuccess reports whether the task is currently conforming.
func (t *Task) IsSuccess() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.failed
}

// UpdatePeriod records a new current period. Returns true if it changed.
func (t *Task) UpdatePeriod(newPeriod time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if newPeriod == t.period {
		t.logger.Warn().Dur("period", newPeriod).Msg("tried to update period but it is unchanged")
		return false
	}
	t.logger.Debug().Dur("from", t.period).Dur("to", newPeriod).Msg("task period updated")
	t.period = newPeriod
	return true
}

// Period returns the current polling period.
func (t *Task) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

// Config returns the task definition this task was built from.
func (t *Task) Config() Config {
	return t.cfg
}

// Status is the snapshot served by the control API.
type Status struct {
	Status StatusDetail `json:"status"`
	Config Config       `json:"config"`
}

// StatusDetail is the runtime state part of a status snapshot.
type StatusDetail struct {
	Name             string           `json:"name"`
	Enabled          bool             `json:"is_enabled"`
	Period           string           `json:"period"`
	Retries          int              `json:"retries"`
	RemainingRetries int              `json:"remaining_retries"`
	Failed           bool             `json:"is_failed"`
	Providers        []ProviderStatus `json:"providers"`
}

// ProviderStatus is the per-provider part of a status snapshot.
type ProviderStatus struct {
	Name                string        `json:"name"`
	Condition           string        `json:"condition"`
	Threshold           any           `json:"threshold"`
	LastCollectedValues []Observation `json:"last_collected_values"`
}

// Status returns a snapshot of the task's state as left by the most
// recently completed tick.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	providers := make([]ProviderStatus, len(t.providers))
	for i, bp := range t.providers {
		providers[i] = ProviderStatus{
			Name:                bp.name,
			Condition:           bp.condition.String(),
			Threshold:           bp.threshold,
			LastCollectedValues: bp.history.snapshot(),
		}
	}

	return Status{
		Status: StatusDetail{
			Name:             t.Name,
			Enabled:          t.enabled,
			Period:           config.FormatDuration(t.period),
			Retries:          t.retries,
			RemainingRetries: t.remaining,
			Failed:           t.failed,
			Providers:        providers,
		},
		Config: t.cfg,
	}
}
