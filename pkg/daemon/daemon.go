package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/modoterra/cronium/pkg/cmdparse"
	"github.com/modoterra/cronium/pkg/core"
	"github.com/modoterra/cronium/pkg/crontab"
	"github.com/modoterra/cronium/pkg/logtail"
	"github.com/modoterra/cronium/pkg/transport/uds"
)

// Daemon is the croniumd process: it owns the crontab file, schedules
// jobs, and serves the UDS API.
type Daemon struct {
	server *uds.Server
	ct     *crontab.Crontab
	sched  *Scheduler
	tails  *logtail.Tailer
	mu     sync.RWMutex
	logger *slog.Logger

	// installCrontab is swappable for tests; defaults to the real
	// `crontab -` install.
	installCrontab func(*crontab.Crontab) (int, error)
}

// New creates a new daemon instance.
func New(socketPath string, logger *slog.Logger) *Daemon {
	srv := uds.NewServer(socketPath, logger)
	d := &Daemon{
		server:         srv,
		logger:         logger,
		installCrontab: InstallSystemCrontab,
	}
	d.registerHandlers()
	return d
}

// SetScheduler registers the job scheduler with the daemon.
func (d *Daemon) SetScheduler(s *Scheduler) {
	d.sched = s
}

// SetTailer registers the log file tailer with the daemon.
func (d *Daemon) SetTailer(t *logtail.Tailer) {
	d.tails = t
}

// LoadCrontab installs the crontab as the daemon's job store and
// schedules its jobs.
func (d *Daemon) LoadCrontab(ct *crontab.Crontab) {
	d.mu.Lock()
	d.ct = ct
	d.mu.Unlock()
	if d.sched != nil {
		d.sched.SetJobs(ct.Jobs)
	}
	d.logger.Info("crontab loaded", "path", ct.FilePath, "jobs", len(ct.Jobs))
}

// Crontab returns the currently loaded crontab (may be nil).
func (d *Daemon) Crontab() *crontab.Crontab {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ct
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	return d.server.Start(ctx)
}

// Shutdown cleans up resources.
func (d *Daemon) Shutdown() {
	if d.tails != nil {
		d.tails.Close()
	}
	d.server.Shutdown()
}

// Server returns the underlying UDS server (for broadcasting events).
func (d *Daemon) Server() *uds.Server {
	return d.server
}

func (d *Daemon) registerHandlers() {
	d.server.Handle(uds.MethodPing, d.handlePing)
	d.server.Handle(uds.MethodListJobs, d.handleListJobs)
	d.server.Handle(uds.MethodGetJob, d.handleGetJob)
	d.server.Handle(uds.MethodCreateJob, d.handleCreateJob)
	d.server.Handle(uds.MethodUpdateJob, d.handleUpdateJob)
	d.server.Handle(uds.MethodDeleteJob, d.handleDeleteJob)
	d.server.Handle(uds.MethodToggleJob, d.handleToggleJob)
	d.server.Handle(uds.MethodRunJob, d.handleRunJob)
	d.server.Handle(uds.MethodSyncCrontab, d.handleSyncCrontab)
	d.server.Handle(uds.MethodLogsSubscribe, d.handleLogsSubscribe)
	d.server.Handle(uds.MethodLogsUnsubscribe, d.handleLogsUnsubscribe)
}

func (d *Daemon) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true}, nil
}

// jobViews assembles the served job list, name-sorted, with run states.
func (d *Daemon) jobViews() []core.JobView {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.ct == nil {
		return []core.JobView{}
	}

	var states map[string]core.RunState
	if d.sched != nil {
		states = d.sched.States()
	}

	views := make([]core.JobView, 0, len(d.ct.Jobs))
	for name, job := range d.ct.Jobs {
		view := core.JobView{Job: job}
		if st, ok := states[name]; ok {
			view.Run = st
		} else {
			view.Run = core.RunState{Status: core.StatusIdle}
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

func (d *Daemon) handleListJobs(_ context.Context, _ uds.Message) (any, error) {
	return d.jobViews(), nil
}

func (d *Daemon) handleGetJob(_ context.Context, msg uds.Message) (any, error) {
	var req uds.JobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.ct == nil {
		return nil, fmt.Errorf("no crontab loaded")
	}
	job, ok := d.ct.Jobs[req.Name]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", req.Name)
	}
	view := core.JobView{Job: job, Run: core.RunState{Status: core.StatusIdle}}
	if d.sched != nil {
		view.Run = d.sched.State(req.Name)
	}
	return view, nil
}

func (d *Daemon) handleCreateJob(_ context.Context, msg uds.Message) (any, error) {
	var req uds.SaveJobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	job := req.Job

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ct == nil {
		return uds.MutationResponse{OK: false, Errors: []string{"no crontab loaded"}}, nil
	}
	if _, exists := d.ct.Jobs[job.Name]; exists {
		return uds.MutationResponse{OK: false, Errors: []string{"job already exists: " + job.Name}}, nil
	}

	d.ct.Jobs[job.Name] = job
	if resp, ok := d.commitLocked(func() { delete(d.ct.Jobs, job.Name) }); !ok {
		return resp, nil
	}

	if d.sched != nil {
		if err := d.sched.Register(job); err != nil {
			d.logger.Error("schedule job", "job", job.Name, "err", err)
		}
	}
	d.logger.Info("job created", "job", job.Name, "schedule", job.Schedule)
	return uds.MutationResponse{OK: true}, nil
}

func (d *Daemon) handleUpdateJob(_ context.Context, msg uds.Message) (any, error) {
	var req uds.SaveJobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	job := req.Job

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ct == nil {
		return uds.MutationResponse{OK: false, Errors: []string{"no crontab loaded"}}, nil
	}
	old, exists := d.ct.Jobs[job.Name]
	if !exists {
		return uds.MutationResponse{OK: false, Errors: []string{"job not found: " + job.Name}}, nil
	}

	d.ct.Jobs[job.Name] = job
	if resp, ok := d.commitLocked(func() { d.ct.Jobs[job.Name] = old }); !ok {
		return resp, nil
	}

	if d.sched != nil {
		if err := d.sched.Register(job); err != nil {
			d.logger.Error("reschedule job", "job", job.Name, "err", err)
		}
	}
	d.logger.Info("job updated", "job", job.Name, "schedule", job.Schedule)
	return uds.MutationResponse{OK: true}, nil
}

func (d *Daemon) handleDeleteJob(_ context.Context, msg uds.Message) (any, error) {
	var req uds.JobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ct == nil {
		return uds.MutationResponse{OK: false, Errors: []string{"no crontab loaded"}}, nil
	}
	old, exists := d.ct.Jobs[req.Name]
	if !exists {
		return uds.MutationResponse{OK: false, Errors: []string{"job not found: " + req.Name}}, nil
	}

	delete(d.ct.Jobs, req.Name)
	if resp, ok := d.commitLocked(func() { d.ct.Jobs[req.Name] = old }); !ok {
		return resp, nil
	}

	if d.sched != nil {
		d.sched.Unregister(req.Name)
	}
	if d.tails != nil {
		d.tails.Unsubscribe(req.Name)
	}
	d.logger.Info("job deleted", "job", req.Name)
	return uds.MutationResponse{OK: true}, nil
}

func (d *Daemon) handleToggleJob(_ context.Context, msg uds.Message) (any, error) {
	var req uds.JobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ct == nil {
		return uds.MutationResponse{OK: false, Errors: []string{"no crontab loaded"}}, nil
	}
	old, exists := d.ct.Jobs[req.Name]
	if !exists {
		return uds.MutationResponse{OK: false, Errors: []string{"job not found: " + req.Name}}, nil
	}

	job := old
	job.Disabled = !job.Disabled
	d.ct.Jobs[req.Name] = job
	if resp, ok := d.commitLocked(func() { d.ct.Jobs[req.Name] = old }); !ok {
		return resp, nil
	}

	if d.sched != nil {
		if err := d.sched.Register(job); err != nil {
			d.logger.Error("reschedule toggled job", "job", job.Name, "err", err)
		}
	}
	d.logger.Info("job toggled", "job", req.Name, "disabled", job.Disabled)
	return uds.MutationResponse{OK: true}, nil
}

func (d *Daemon) handleRunJob(_ context.Context, msg uds.Message) (any, error) {
	var req uds.JobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	d.mu.RLock()
	job, exists := core.Job{}, false
	if d.ct != nil {
		job, exists = d.ct.Jobs[req.Name]
	}
	d.mu.RUnlock()

	if !exists {
		return uds.MutationResponse{OK: false, Errors: []string{"job not found: " + req.Name}}, nil
	}
	if d.sched == nil {
		return nil, fmt.Errorf("scheduler not available")
	}

	d.sched.RunNow(job)
	d.logger.Info("job run requested", "job", req.Name)
	return uds.MutationResponse{OK: true}, nil
}

func (d *Daemon) handleSyncCrontab(_ context.Context, _ uds.Message) (any, error) {
	d.mu.RLock()
	ct := d.ct
	d.mu.RUnlock()

	if ct == nil {
		return uds.SyncResponse{OK: false, Reason: "no crontab loaded"}, nil
	}

	n, err := d.installCrontab(ct)
	if err != nil {
		return uds.SyncResponse{OK: false, Reason: err.Error()}, nil
	}
	d.logger.Info("crontab synced", "jobs", n)
	return uds.SyncResponse{OK: true, Jobs: n}, nil
}

func (d *Daemon) handleLogsSubscribe(ctx context.Context, msg uds.Message) (any, error) {
	var req uds.JobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if d.tails == nil {
		return nil, fmt.Errorf("log tailing not available")
	}

	d.mu.RLock()
	job, exists := core.Job{}, false
	if d.ct != nil {
		job, exists = d.ct.Jobs[req.Name]
	}
	d.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("job not found: %s", req.Name)
	}

	path := job.LogFile
	if path == "" {
		if files := cmdparse.LogFiles(job.Command); len(files) > 0 {
			path = files[0]
		}
	}
	if path == "" {
		return nil, fmt.Errorf("job %s has no log file", req.Name)
	}

	ch, err := d.tails.Subscribe(ctx, req.Name, path)
	if err != nil {
		return nil, err
	}

	go func() {
		for line := range ch {
			evt, err := uds.NewEvent(uds.EventRunsLine, line)
			if err != nil {
				continue
			}
			d.server.Broadcast(evt)
		}
	}()

	return map[string]string{"log_file": path}, nil
}

func (d *Daemon) handleLogsUnsubscribe(_ context.Context, msg uds.Message) (any, error) {
	var req uds.JobRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if d.tails == nil {
		return map[string]bool{"ok": true}, nil
	}
	if err := d.tails.Unsubscribe(req.Name); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// commitLocked validates and saves the crontab, rolling back with undo
// on any failure. Caller holds d.mu.
func (d *Daemon) commitLocked(undo func()) (uds.MutationResponse, bool) {
	if errs := crontab.Validate(d.ct); len(errs) > 0 {
		undo()
		strs := make([]string, len(errs))
		for i, e := range errs {
			strs[i] = e.Error()
		}
		return uds.MutationResponse{OK: false, Errors: strs}, false
	}
	if err := crontab.Save(d.ct, d.ct.FilePath); err != nil {
		undo()
		return uds.MutationResponse{OK: false, Errors: []string{err.Error()}}, false
	}
	return uds.MutationResponse{}, true
}
