package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/modoterra/cronium/pkg/core"
)

// ShellRunner executes job commands through `sh -c`, the way cron
// itself would. Output lines are fed to an optional sink as they
// appear; any redirection inside the command writes to its files
// untouched.
type ShellRunner struct {
	logger *slog.Logger
	sink   func(core.RunLine)
}

// NewShellRunner creates a runner. sink may be nil.
func NewShellRunner(logger *slog.Logger, sink func(core.RunLine)) *ShellRunner {
	return &ShellRunner{logger: logger, sink: sink}
}

// Run executes the job once and blocks until it exits or ctx is
// cancelled. A spawn failure is reported in Err; a command that ran and
// exited non-zero is reported via ExitCode alone.
func (r *ShellRunner) Run(ctx context.Context, job core.Job) core.RunResult {
	cmd := exec.CommandContext(ctx, "sh", "-c", job.Command)
	cmd.Dir = job.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Env = os.Environ()
	for k, v := range job.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return core.RunResult{ExitCode: -1, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return core.RunResult{ExitCode: -1, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return core.RunResult{ExitCode: -1, Err: err}
	}

	r.logger.Info("job started", "job", job.Name, "pid", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, func(line string) { r.emit(job.Name, "stdout", line) })
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, func(line string) { r.emit(job.Name, "stderr", line) })
	}()
	wg.Wait()

	err = cmd.Wait()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Ran to completion with a non-zero status.
			return core.RunResult{ExitCode: exitCode}
		}
		return core.RunResult{ExitCode: exitCode, Err: err}
	}
	return core.RunResult{ExitCode: exitCode}
}

func (r *ShellRunner) emit(job, stream, line string) {
	if r.sink == nil {
		return
	}
	r.sink(core.RunLine{
		Job:      job,
		TsUnixMs: time.Now().UnixMilli(),
		Stream:   stream,
		Line:     line,
	})
}
