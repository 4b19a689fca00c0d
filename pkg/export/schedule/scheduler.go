package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/dbxport/pkg/export/pipeline"
	"mercator-hq/dbxport/pkg/telemetry/logging"
	"mercator-hq/dbxport/pkg/telemetry/metrics"
)

// Runner executes one export. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

// Job is a named export run on a cron schedule.
type Job struct {
	Name string

	// Schedule is a standard five-field cron expression.
	Schedule string

	// Timeout bounds each run. Zero means no limit.
	Timeout time.Duration

	// Build returns the export for a run starting at now, so output paths
	// can carry the run date.
	Build func(now time.Time) (pipeline.Job, error)
}

type entry struct {
	job Job
	id  cron.EntryID
}

// Scheduler runs jobs on their cron schedules. A job whose previous run is
// still in progress is skipped rather than started twice.
type Scheduler struct {
	runner  Runner
	metrics *metrics.Collector
	logger  *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]entry
	busy    map[string]*atomic.Bool
	ctx     context.Context
	running bool
}

// New creates a scheduler. collector may be nil.
func New(runner Runner, collector *metrics.Collector, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		runner:  runner,
		metrics: collector,
		logger:  logger.With("component", "export.scheduler"),
		cron:    cron.New(),
		entries: make(map[string]entry),
		busy:    make(map[string]*atomic.Bool),
		ctx:     context.Background(),
	}
}

// Start schedules jobs and starts the cron loop. Runs derive their context
// from ctx; when ctx is done the scheduler stops.
func (s *Scheduler) Start(ctx context.Context, jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	if err := s.replace(jobs); err != nil {
		return err
	}

	s.ctx = ctx
	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started", "jobs", len(s.entries))

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			s.Stop()
		}()
	}

	return nil
}

// Reload swaps the scheduled job set. Runs already in progress finish
// normally, and a reloaded job is not started while its previous run is
// still going. On error the current job set is kept.
func (s *Scheduler) Reload(jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replace(jobs); err != nil {
		return err
	}
	s.logger.Info("scheduler reloaded", "jobs", len(s.entries))
	return nil
}

// replace validates jobs and swaps them in. The caller holds s.mu.
func (s *Scheduler) replace(jobs []Job) error {
	schedules := make([]cron.Schedule, len(jobs))
	seen := make(map[string]bool, len(jobs))
	for i, job := range jobs {
		if job.Name == "" {
			return errors.New("job without a name")
		}
		if seen[job.Name] {
			return fmt.Errorf("duplicate job %q", job.Name)
		}
		seen[job.Name] = true
		if job.Build == nil {
			return fmt.Errorf("job %q: no export", job.Name)
		}

		sched, err := cron.ParseStandard(job.Schedule)
		if err != nil {
			return fmt.Errorf("job %q: invalid cron schedule %q: %w", job.Name, job.Schedule, err)
		}
		schedules[i] = sched
	}

	for name, e := range s.entries {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}

	for i, job := range jobs {
		if s.busy[job.Name] == nil {
			s.busy[job.Name] = &atomic.Bool{}
		}
		id := s.cron.Schedule(schedules[i], cron.FuncJob(func() {
			s.runJob(job)
		}))
		s.entries[job.Name] = entry{job: job, id: id}
	}
	return nil
}

// runJob performs one scheduled run of job.
func (s *Scheduler) runJob(job Job) {
	s.mu.Lock()
	busy := s.busy[job.Name]
	ctx := s.ctx
	s.mu.Unlock()

	if !busy.CompareAndSwap(false, true) {
		s.logger.Warn("skipping scheduled run, previous run still in progress", "job", job.Name)
		s.metrics.ScheduledRunSkipped(job.Name)
		return
	}
	defer busy.Store(false)

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	pj, err := job.Build(time.Now())
	if err != nil {
		s.logger.Error("failed to prepare scheduled export", "job", job.Name, "error", err)
		return
	}
	if pj.Name == "" {
		pj.Name = job.Name
	}

	res, err := s.runner.Run(ctx, pj)
	if err != nil {
		// The pipeline has already logged the failure with its stage.
		s.logger.Debug("scheduled export failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Debug("scheduled export completed", "job", job.Name, "rows", res.Rows, "output", res.Output)
}

// Stop stops the cron loop and waits for running exports to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.cron.Stop()
	s.mu.Unlock()

	// Running jobs take s.mu on entry, so wait without holding it.
	<-done.Done()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the cron loop is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Jobs returns the names of the scheduled jobs in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun returns the next time job is due. It is only known while the
// scheduler is running.
func (s *Scheduler) NextRun(job string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[job]
	if !ok || !s.running {
		return time.Time{}, false
	}
	next := s.cron.Entry(e.id).Next
	return next, !next.IsZero()
}
