package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iho/freightsettle/internal/domain"
	"github.com/iho/freightsettle/internal/infrastructure/clock"
	"github.com/iho/freightsettle/internal/infrastructure/logging"
	"github.com/iho/freightsettle/internal/infrastructure/metrics"
)

// ErrJobPanicked wraps a panic recovered from a job.
var ErrJobPanicked = errors.New("job panicked")

// Reasons a tick was skipped.
const (
	SkipOverlap   = "overlap"
	SkipNotLeader = "not_leader"
	SkipLockError = "lock_error"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Job is a named callback with its schedule.
type Job struct {
	Name     string
	Schedule string
	Run      JobFunc
}

// Locker elects a single instance per tick.
type Locker interface {
	Acquire(ctx context.Context, job string) (token string, acquired bool, err error)
	Release(ctx context.Context, job, token string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RunRecord describes the last run of a job.
type RunRecord struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Skipped   string        `json:"skipped,omitempty"`
}

// JobStatus is a point-in-time view of one job.
type JobStatus struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	Running  bool       `json:"running"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	LastRun  *RunRecord `json:"last_run,omitempty"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State State       `json:"state"`
	Jobs  []JobStatus `json:"jobs"`
}

type jobEntry struct {
	job     Job
	entryID int
	running atomic.Bool
	last    *RunRecord
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocker gates every tick on a leader lock.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithClock overrides the clock used for run timing.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler runs registered jobs on a Trigger. It moves between Stopped
// and Running; job errors and panics are logged and never escape a tick.
type Scheduler struct {
	mu      sync.Mutex
	state   State
	trigger Trigger
	jobs    []*jobEntry
	byName  map[string]*jobEntry
	locker  Locker
	clock   Clock
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// New creates a stopped Scheduler.
func New(trigger Trigger, logger *logging.Logger, m *metrics.Metrics, opts ...Option) *Scheduler {
	s := &Scheduler{
		trigger: trigger,
		byName:  make(map[string]*jobEntry),
		clock:   clock.NewSystem(),
		logger:  logger,
		metrics: m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Jobs can only be added while stopped.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return domain.ErrSchedulerRunning
	}
	if _, ok := s.byName[job.Name]; ok {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	e := &jobEntry{job: job}
	s.jobs = append(s.jobs, e)
	s.byName[job.Name] = e
	return nil
}

// Start registers every job on the trigger and starts it. Starting a
// running scheduler does nothing. ctx is the parent of every tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.logger.WarnCtx(ctx, "scheduler already running")
		return nil
	}

	added := make([]int, 0, len(s.jobs))
	for _, e := range s.jobs {
		e := e
		id, err := s.trigger.Add(e.job.Schedule, func() {
			_ = s.execute(ctx, e)
		})
		if err != nil {
			for _, prev := range added {
				s.trigger.Remove(prev)
			}
			return fmt.Errorf("schedule job %s (%q): %w", e.job.Name, e.job.Schedule, err)
		}
		e.entryID = id
		added = append(added, id)
		s.logger.InfoCtx(ctx, "scheduled job", "job", e.job.Name, "schedule", e.job.Schedule)
	}

	s.trigger.Start()
	s.state = StateRunning
	s.logger.InfoCtx(ctx, "scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels every trigger and resets to Stopped. Running ticks finish;
// the returned context is done when they have.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	for _, e := range s.jobs {
		s.trigger.Remove(e.entryID)
		e.entryID = 0
	}
	done := s.trigger.Stop()
	s.state = StateStopped
	s.logger.Info("scheduler stopped")
	return done
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunNow runs a registered job synchronously, subject to the same overlap
// and leader checks as a scheduled tick.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, name)
	}

	return s.execute(ctx, e)
}

// Status reports the state and the last run of every job.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, Jobs: make([]JobStatus, 0, len(s.jobs))}
	for _, e := range s.jobs {
		js := JobStatus{
			Name:     e.job.Name,
			Schedule: e.job.Schedule,
			Running:  e.running.Load(),
		}
		if s.state == StateRunning {
			if next := s.trigger.Next(e.entryID); !next.IsZero() {
				js.NextRun = &next
			}
		}
		if e.last != nil {
			last := *e.last
			js.LastRun = &last
		}
		st.Jobs = append(st.Jobs, js)
	}
	return st
}

func (s *Scheduler) execute(ctx context.Context, e *jobEntry) error {
	name := e.job.Name
	if !e.running.CompareAndSwap(false, true) {
		s.skipped(logging.WithRun(ctx, name, ""), name, SkipOverlap)
		return domain.ErrJobAlreadyRunning
	}
	defer e.running.Store(false)

	runID := ulid.Make().String()
	ctx = logging.WithRun(ctx, name, runID)
	started := s.clock.Now()
	rec := RunRecord{RunID: runID, StartedAt: started}

	if s.locker != nil {
		token, acquired, err := s.locker.Acquire(ctx, name)
		switch {
		case err != nil:
			s.lockResult(name, "error")
			s.logger.ErrorCtx(ctx, "leader lock unavailable, skipping tick", "error", err)
			s.skipped(ctx, name, SkipLockError)
			rec.Skipped, rec.Error = SkipLockError, err.Error()
			s.record(e, rec)
			return err
		case !acquired:
			s.lockResult(name, "held")
			s.skipped(ctx, name, SkipNotLeader)
			rec.Skipped = SkipNotLeader
			s.record(e, rec)
			return nil
		}

		s.lockResult(name, "acquired")
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), name, token); err != nil {
				s.logger.WarnCtx(ctx, "failed to release leader lock", "error", err)
			}
		}()
	}

	s.logger.InfoCtx(ctx, "job started")
	err := s.invoke(ctx, e.job)
	rec.Duration = s.clock.Now().Sub(started)

	status := "success"
	if err != nil {
		status = "error"
		rec.Error = err.Error()
		s.logger.ErrorCtx(ctx, "job failed", "error", err, "duration", rec.Duration)
	} else {
		s.logger.InfoCtx(ctx, "job finished", "duration", rec.Duration)
	}

	if s.metrics != nil {
		s.metrics.JobRuns.WithLabelValues(name, status).Inc()
		s.metrics.JobDuration.WithLabelValues(name).Observe(rec.Duration.Seconds())
	}
	s.record(e, rec)
	return err
}

func (s *Scheduler) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.JobPanics.WithLabelValues(job.Name).Inc()
			}
			s.logger.ErrorCtx(ctx, "job panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	return job.Run(ctx)
}

func (s *Scheduler) record(e *jobEntry, rec RunRecord) {
	s.mu.Lock()
	e.last = &rec
	s.mu.Unlock()
}

func (s *Scheduler) skipped(ctx context.Context, job, reason string) {
	if s.metrics != nil {
		s.metrics.JobSkipped.WithLabelValues(job, reason).Inc()
	}
	s.logger.InfoCtx(ctx, "tick skipped", "reason", reason)
}

func (s *Scheduler) lockResult(job, result string) {
	if s.metrics != nil {
		s.metrics.LockAcquisitions.WithLabelValues(job, result).Inc()
	}
}
