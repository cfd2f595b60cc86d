// Package scheduler runs periodic jobs on an injectable clock.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/notetaker/pkg/logging"
)

// ErrAlreadyRunning is returned by Start when the service is running.
var ErrAlreadyRunning = errors.New("scheduler already running")

// ErrUnknownJob is returned by RunOnce for an unregistered job name.
var ErrUnknownJob = errors.New("unknown job")

// Job is a unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the job once as soon as the service starts.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Service owns the tick lifecycle of its jobs. A job never overlaps itself:
// a tick that arrives while the previous run is still going is skipped.
type Service struct {
	clock  Clock
	logger logging.Logger

	mu      sync.Mutex
	jobs    []*jobState
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

type jobState struct {
	Job
	busy    atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock. The default is RealClock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		s.logger = l.With(logging.F("component", "scheduler"))
	}
}

// NewService creates a stopped service.
func NewService(opts ...Option) *Service {
	s := &Service{
		clock:  RealClock{},
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the service clock.
func (s *Service) Clock() Clock {
	return s.clock
}

// Register adds a job. Jobs must be registered before Start.
func (s *Service) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job requires a name and a run function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, &jobState{Job: job})
	return nil
}

// Start launches one loop per job and returns immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		// Create the ticker here so ticks issued right after Start are not lost.
		ticker := s.clock.NewTicker(job.Interval)
		g.Go(func() error {
			defer ticker.Stop()
			s.loop(gctx, job, ticker)
			return nil
		})
	}

	s.cancel = cancel
	s.group = g
	s.running = true
	s.logger.Info("Scheduler started", logging.F("jobs", len(s.jobs)))
	return nil
}

func (s *Service) loop(ctx context.Context, job *jobState, ticker Ticker) {
	if job.RunOnStart {
		s.run(ctx, job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.run(ctx, job)
		}
	}
}

// run executes job unless it is already running.
func (s *Service) run(ctx context.Context, job *jobState) {
	if !job.busy.CompareAndSwap(false, true) {
		job.skipped.Add(1)
		s.logger.Debug("Job still running, tick skipped", logging.F("job", job.Name))
		return
	}
	defer job.busy.Store(false)

	start := s.clock.Now()
	err := safeRun(ctx, job.Run)
	job.runs.Add(1)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("Job failed", logging.F("job", job.Name), logging.Err(err))
		return
	}
	s.logger.Debug("Job finished",
		logging.F("job", job.Name),
		logging.F("elapsed", s.clock.Now().Sub(start).String()))
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// RunOnce runs the named job immediately on the caller's goroutine,
// respecting the no-overlap rule.
func (s *Service) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	var job *jobState
	for _, j := range s.jobs {
		if j.Name == name {
			job = j
		}
	}
	s.mu.Unlock()
	if job == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !job.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("job %s is already running", name)
	}
	defer job.busy.Store(false)
	err := safeRun(ctx, job.Run)
	job.runs.Add(1)
	return err
}

// Runs returns how many times the named job has run.
func (s *Service) Runs(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Name == name {
			return j.runs.Load()
		}
	}
	return 0
}

// Running reports whether the service is started.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop cancels all loops and waits for in-flight runs to return, or for
// ctx to end. Stopping a stopped service is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel, g := s.cancel, s.group
	s.running = false
	s.cancel = nil
	s.group = nil
	s.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs to stop: %w", ctx.Err())
	}
}
