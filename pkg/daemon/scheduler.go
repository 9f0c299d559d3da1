package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/modoterra/cronium/pkg/core"
)

// Scheduler drives job execution off cron schedules. Enabled jobs get a
// cron entry; manual runs bypass the schedule but share the same
// execution and state-tracking path.
type Scheduler struct {
	cron    *cron.Cron
	runner  core.Runner
	entries map[string]cron.EntryID
	states  map[string]*core.RunState
	mu      sync.Mutex
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	// onChange, when set, is called after a job's run state changes.
	onChange func(name string)
}

// NewScheduler creates a scheduler executing jobs through the given runner.
func NewScheduler(ctx context.Context, runner core.Runner, logger *slog.Logger) *Scheduler {
	sctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		entries: make(map[string]cron.EntryID),
		states:  make(map[string]*core.RunState),
		logger:  logger,
		ctx:     sctx,
		cancel:  cancel,
	}
}

// OnChange registers a hook invoked after every run state transition.
func (s *Scheduler) OnChange(fn func(name string)) {
	s.onChange = fn
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight runs and stops the schedule.
func (s *Scheduler) Stop() {
	s.cancel()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("jobs still running at shutdown")
	}
}

// SetJobs replaces the entire scheduled set.
func (s *Scheduler) SetJobs(jobs map[string]core.Job) {
	s.mu.Lock()
	current := make([]string, 0, len(s.entries))
	for name := range s.entries {
		current = append(current, name)
	}
	s.mu.Unlock()

	for _, name := range current {
		if _, keep := jobs[name]; !keep {
			s.Unregister(name)
		}
	}
	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			s.logger.Error("register job", "job", job.Name, "err", err)
		}
	}
}

// Register adds or replaces a job's schedule entry. Disabled jobs are
// tracked but get no entry.
func (s *Scheduler) Register(job core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[job.Name]; ok {
		s.cron.Remove(id)
		delete(s.entries, job.Name)
	}
	if _, ok := s.states[job.Name]; !ok {
		s.states[job.Name] = &core.RunState{Status: core.StatusIdle}
	}
	if !job.Enabled() {
		return nil
	}

	id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(job) })
	if err != nil {
		return err
	}
	s.entries[job.Name] = id
	return nil
}

// Unregister removes a job's entry and state.
func (s *Scheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	delete(s.states, name)
}

// RunNow triggers one immediate execution, off-schedule.
func (s *Scheduler) RunNow(job core.Job) {
	go s.execute(job)
}

// State returns a copy of the job's run state.
func (s *Scheduler) State(name string) core.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(name)
}

// States returns a copy of every tracked run state, with next-run times
// filled in from the live schedule.
func (s *Scheduler) States() map[string]core.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.RunState, len(s.states))
	for name := range s.states {
		out[name] = s.stateLocked(name)
	}
	return out
}

func (s *Scheduler) stateLocked(name string) core.RunState {
	st, ok := s.states[name]
	if !ok {
		return core.RunState{Status: core.StatusIdle}
	}
	view := *st
	if id, ok := s.entries[name]; ok {
		if next := s.cron.Entry(id).Next; !next.IsZero() {
			view.NextRun = &next
		}
	}
	return view
}

func (s *Scheduler) execute(job core.Job) {
	s.mu.Lock()
	st, ok := s.states[job.Name]
	if !ok {
		st = &core.RunState{}
		s.states[job.Name] = st
	}
	if st.Status == core.StatusRunning {
		s.mu.Unlock()
		s.logger.Warn("job overlap, skipping run", "job", job.Name)
		return
	}
	started := time.Now()
	st.Status = core.StatusRunning
	st.StartedAt = &started
	st.FinishedAt = nil
	st.ExitCode = 0
	st.Error = ""
	s.mu.Unlock()
	s.notify(job.Name)

	result := s.runner.Run(s.ctx, job)

	s.mu.Lock()
	finished := time.Now()
	st.FinishedAt = &finished
	st.ExitCode = result.ExitCode
	switch {
	case result.Err != nil:
		st.Status = core.StatusFailed
		st.Error = result.Err.Error()
	case result.ExitCode != 0:
		st.Status = core.StatusFailed
	default:
		st.Status = core.StatusOK
	}
	status := st.Status
	s.mu.Unlock()
	s.notify(job.Name)

	s.logger.Info("job finished",
		"job", job.Name,
		"status", status,
		"exit_code", result.ExitCode,
		"duration", finished.Sub(started))
}

func (s *Scheduler) notify(name string) {
	if s.onChange != nil {
		s.onChange(name)
	}
}
