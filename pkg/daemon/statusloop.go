package daemon

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/modoterra/cronium/pkg/core"
	"github.com/modoterra/cronium/pkg/transport/uds"
)

// StatusLoop periodically compares the served job table against the
// last broadcast snapshot and pushes a jobs.delta event when anything
// changed (run states, next-run times, definitions).
type StatusLoop struct {
	daemon   *Daemon
	interval time.Duration
	logger   *slog.Logger
}

// NewStatusLoop creates a status loop for the given daemon.
func NewStatusLoop(d *Daemon, interval time.Duration, logger *slog.Logger) *StatusLoop {
	return &StatusLoop{daemon: d, interval: interval, logger: logger}
}

// Run starts the loop. Blocks until ctx is cancelled.
func (sl *StatusLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(sl.interval)
	defer ticker.Stop()

	prev := make(map[string]core.JobView)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev = sl.tick(prev)
		}
	}
}

func (sl *StatusLoop) tick(prev map[string]core.JobView) map[string]core.JobView {
	current := make(map[string]core.JobView)
	for _, view := range sl.daemon.jobViews() {
		current[view.Name] = view
	}

	delta := computeDelta(prev, current)
	if !delta.HasChanges() {
		return current
	}

	evt, err := uds.NewEvent(uds.EventJobsDelta, delta)
	if err != nil {
		sl.logger.Error("encode delta event", "err", err)
		return current
	}
	sl.daemon.server.Broadcast(evt)
	return current
}

// Delta describes changes between two job table snapshots.
type Delta struct {
	Added   []core.JobView `json:"added,omitempty"`
	Updated []core.JobView `json:"updated,omitempty"`
	Removed []string       `json:"removed,omitempty"`
}

// HasChanges reports whether the delta is non-empty.
func (d Delta) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Updated) > 0 || len(d.Removed) > 0
}

func computeDelta(old, current map[string]core.JobView) Delta {
	var d Delta
	for name, view := range current {
		prev, ok := old[name]
		if !ok {
			d.Added = append(d.Added, view)
			continue
		}
		if !reflect.DeepEqual(prev, view) {
			d.Updated = append(d.Updated, view)
		}
	}
	for name := range old {
		if _, ok := current[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	return d
}
