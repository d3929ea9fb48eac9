package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

var (
	// ErrJobExists is returned when adding a job under a name already in use.
	ErrJobExists = errors.New("a job with this name already exists")

	// ErrJobNotFound is returned when operating on a name with no live job.
	ErrJobNotFound = errors.New("no job with this name")
)

// Scheduler drives periodic task invocations. Jobs are keyed by name, fire
// at a fixed interval and are never queued: a tick due while the previous
// invocation of the same job is still running is skipped. Distinct jobs run
// in parallel on the cron goroutine pool.
type Scheduler struct {
	cron   *cron.Cron
	mu     sync.Mutex
	jobs   map[string]*job
	logger zerolog.Logger
}

type job struct {
	entry  cron.EntryID
	period time.Duration
	// wrapped carries the SkipIfStillRunning state, so it is reused across
	// reschedule and pause/resume to keep the job serialised.
	wrapped cron.Job
	paused  bool
}

// printfAdapter exposes zerolog behind the Printf interface cron expects.
type printfAdapter struct {
	logger zerolog.Logger
}

func (p printfAdapter) Printf(format string, v ...interface{}) {
	p.logger.Debug().Msgf(format, v...)
}

// New creates a scheduler. It does not fire jobs until Start is called.
func New() *Scheduler {
	logger := log.WithComponent("scheduler")
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.PrintfLogger(printfAdapter{logger}))),
		jobs:   make(map[string]*job),
		logger: logger,
	}
}

// AddJob registers fn to fire every period under the given name. It fails
// with ErrJobExists if the name is already taken.
func (s *Scheduler) AddJob(name string, period time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("add job %q: %w", name, ErrJobExists)
	}

	skipLogger := cron.PrintfLogger(printfAdapter{s.logger.With().Str("job", name).Logger()})
	wrapped := cron.NewChain(cron.SkipIfStillRunning(skipLogger)).Then(cron.FuncJob(fn))

	s.jobs[name] = &job{
		entry:   s.cron.Schedule(cron.Every(period), wrapped),
		period:  period,
		wrapped: wrapped,
	}
	s.logger.Debug().Str("job", name).Dur("period", period).Msg("job added")
	return nil
}

// Reschedule replaces the job's interval. The next fire is one full period
// from now. Rescheduling a paused job only records the new period; it takes
// effect on resume.
func (s *Scheduler) Reschedule(name string, period time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("reschedule job %q: %w", name, ErrJobNotFound)
	}

	j.period = period
	if !j.paused {
		s.cron.Remove(j.entry)
		j.entry = s.cron.Schedule(cron.Every(period), j.wrapped)
	}
	s.logger.Debug().Str("job", name).Dur("period", period).Msg("job rescheduled")
	return nil
}

// Pause suspends the job's ticks without losing its entry. An in-flight
// invocation is not interrupted.
func (s *Scheduler) Pause(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("pause job %q: %w", name, ErrJobNotFound)
	}
	if j.paused {
		return nil
	}

	s.cron.Remove(j.entry)
	j.paused = true
	s.logger.Debug().Str("job", name).Msg("job paused")
	return nil
}

// Resume reinstates ticks for a paused job at its recorded period.
func (s *Scheduler) Resume(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("resume job %q: %w", name, ErrJobNotFound)
	}
	if !j.paused {
		return nil
	}

	j.entry = s.cron.Schedule(cron.Every(j.period), j.wrapped)
	j.paused = false
	s.logger.Debug().Str("job", name).Msg("job resumed")
	return nil
}

// Remove deletes the job. In-flight invocations complete in the background.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("remove job %q: %w", name, ErrJobNotFound)
	}

	if !j.paused {
		s.cron.Remove(j.entry)
	}
	delete(s.jobs, name)
	s.logger.Debug().Str("job", name).Msg("job removed")
	return nil
}

// RemoveAll deletes every job. Used by reload before repopulating the table.
func (s *Scheduler) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, j := range s.jobs {
		if !j.paused {
			s.cron.Remove(j.entry)
		}
		delete(s.jobs, name)
	}
	s.logger.Debug().Msg("all jobs removed")
}

// HasJob reports whether a job is registered under name, paused or not.
func (s *Scheduler) HasJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// JobNames returns the names of all registered jobs.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Start begins firing jobs. It may be called again after Stop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Debug().Msg("scheduler started")
}

// Stop stops firing jobs. With wait=true it blocks until all in-flight
// invocations return; with wait=false they complete in the background.
func (s *Scheduler) Stop(wait bool) {
	ctx := s.cron.Stop()
	if wait {
		<-ctx.Done()
	}
	s.logger.Debug().Bool("wait", wait).Msg("scheduler stopped")
}
