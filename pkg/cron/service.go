package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service runs the process's periodic housekeeping jobs
type Service struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	jobs    map[string]*jobState
	mu      sync.RWMutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

type jobState struct {
	job    Job
	runMu  sync.Mutex
	status JobStatus
}

// NewService creates a new cron service
func NewService() *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		jobs:    make(map[string]*jobState),
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.With().Str("component", "cron").Logger(),
	}
}

// AddJob registers a job. Names are unique.
func (s *Service) AddJob(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}
	sched, err := ParseSchedule(job.Schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("cron service is stopped")
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	state := &jobState{
		job: job,
		status: JobStatus{
			Name:     job.Name,
			Schedule: job.Schedule,
		},
	}
	s.jobs[job.Name] = state
	s.entries[job.Name] = s.cron.Schedule(sched, cron.FuncJob(func() {
		s.execute(state)
	}))

	s.logger.Debug().
		Str("job", job.Name).
		Str("schedule", job.Schedule).
		Msg("Job registered")

	return nil
}

// RunJob runs a registered job immediately on the caller's goroutine
func (s *Service) RunJob(name string) (int, error) {
	s.mu.RLock()
	state, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("job %s not found", name)
	}
	return s.execute(state)
}

// Start begins scheduling. It is a no-op when already started.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true
	s.cron.Start()

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Cron service started")
}

// Stop halts scheduling and waits for running jobs to finish or ctx to end
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info().Msg("Cron service stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListJobs returns job snapshots sorted by name
func (s *Service) ListJobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, state := range s.jobs {
		state.runMu.Lock()
		status := state.status
		state.runMu.Unlock()

		if id, ok := s.entries[name]; ok {
			status.NextRunAt = s.cron.Entry(id).Next
		}
		out = append(out, status)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// execute runs a job once; runs of the same job never overlap
func (s *Service) execute(state *jobState) (int, error) {
	state.runMu.Lock()
	defer state.runMu.Unlock()

	started := time.Now()
	count, err := state.job.Run(s.ctx)

	state.status.LastRunAt = started
	state.status.LastCount = count
	state.status.Runs++
	state.status.LastError = ""
	if err != nil {
		state.status.LastError = err.Error()
		s.logger.Error().
			Err(err).
			Str("job", state.job.Name).
			Dur("duration", time.Since(started)).
			Msg("Job failed")
		return count, err
	}

	evt := s.logger.Debug()
	if count > 0 {
		evt = s.logger.Info()
	}
	evt.Str("job", state.job.Name).
		Int("count", count).
		Dur("duration", time.Since(started)).
		Msg("Job completed")

	return count, nil
}
