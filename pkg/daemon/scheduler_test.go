package daemon

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/modoterra/cronium/pkg/core"
)

// fakeRunner records runs and returns a canned result.
type fakeRunner struct {
	mu     sync.Mutex
	runs   []string
	result core.RunResult
	block  chan struct{}
}

func (f *fakeRunner) Run(_ context.Context, job core.Job) core.RunResult {
	f.mu.Lock()
	f.runs = append(f.runs, job.Name)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.result
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func testScheduler(t *testing.T, runner core.Runner) *Scheduler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewScheduler(context.Background(), runner, logger)
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRunNowRecordsSuccess(t *testing.T) {
	runner := &fakeRunner{result: core.RunResult{ExitCode: 0}}
	s := testScheduler(t, runner)

	job := core.Job{Name: "backup", Schedule: "@daily", Command: "x"}
	if err := s.Register(job); err != nil {
		t.Fatal(err)
	}
	s.RunNow(job)

	waitFor(t, func() bool { return s.State("backup").Status == core.StatusOK })

	st := s.State("backup")
	if st.StartedAt == nil || st.FinishedAt == nil {
		t.Error("timestamps not recorded")
	}
	if st.ExitCode != 0 {
		t.Errorf("exit code: got %d", st.ExitCode)
	}
	if runner.count() != 1 {
		t.Errorf("runs: got %d, want 1", runner.count())
	}
}

func TestRunNowRecordsFailure(t *testing.T) {
	runner := &fakeRunner{result: core.RunResult{ExitCode: 2}}
	s := testScheduler(t, runner)

	job := core.Job{Name: "flaky", Schedule: "@daily", Command: "x"}
	s.Register(job)
	s.RunNow(job)

	waitFor(t, func() bool { return s.State("flaky").Status == core.StatusFailed })
	if got := s.State("flaky").ExitCode; got != 2 {
		t.Errorf("exit code: got %d, want 2", got)
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := testScheduler(t, runner)

	job := core.Job{Name: "slow", Schedule: "@daily", Command: "x"}
	s.Register(job)
	s.RunNow(job)
	waitFor(t, func() bool { return s.State("slow").Status == core.StatusRunning })

	s.RunNow(job)
	time.Sleep(50 * time.Millisecond)
	if runner.count() != 1 {
		t.Errorf("overlapping run was not skipped: %d runs", runner.count())
	}

	close(runner.block)
	waitFor(t, func() bool { return s.State("slow").Status != core.StatusRunning })
}

func TestDisabledJobGetsNoEntry(t *testing.T) {
	runner := &fakeRunner{}
	s := testScheduler(t, runner)
	s.Start()

	job := core.Job{Name: "off", Schedule: "* * * * *", Command: "x", Disabled: true}
	if err := s.Register(job); err != nil {
		t.Fatal(err)
	}

	st := s.State("off")
	if st.Status != core.StatusIdle {
		t.Errorf("status: got %q", st.Status)
	}
	if st.NextRun != nil {
		t.Error("disabled job must have no next run")
	}
}

func TestEnabledJobHasNextRun(t *testing.T) {
	runner := &fakeRunner{}
	s := testScheduler(t, runner)

	job := core.Job{Name: "on", Schedule: "* * * * *", Command: "x"}
	if err := s.Register(job); err != nil {
		t.Fatal(err)
	}
	s.Start()

	waitFor(t, func() bool { return s.State("on").NextRun != nil })
}

func TestRegisterBadSchedule(t *testing.T) {
	runner := &fakeRunner{}
	s := testScheduler(t, runner)

	if err := s.Register(core.Job{Name: "bad", Schedule: "nope", Command: "x"}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestSetJobsRemovesStaleEntries(t *testing.T) {
	runner := &fakeRunner{}
	s := testScheduler(t, runner)

	s.SetJobs(map[string]core.Job{
		"a": {Name: "a", Schedule: "@daily", Command: "a"},
		"b": {Name: "b", Schedule: "@daily", Command: "b"},
	})
	s.SetJobs(map[string]core.Job{
		"b": {Name: "b", Schedule: "@daily", Command: "b"},
	})

	states := s.States()
	if _, ok := states["a"]; ok {
		t.Error("job a should be gone")
	}
	if _, ok := states["b"]; !ok {
		t.Error("job b should remain")
	}
}

func TestOnChangeFires(t *testing.T) {
	runner := &fakeRunner{}
	s := testScheduler(t, runner)

	var mu sync.Mutex
	var changes []string
	s.OnChange(func(name string) {
		mu.Lock()
		changes = append(changes, name)
		mu.Unlock()
	})

	job := core.Job{Name: "n", Schedule: "@daily", Command: "x"}
	s.Register(job)
	s.RunNow(job)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) >= 2 // running, then finished
	})
}
