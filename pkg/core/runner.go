package core

import "context"

// RunResult is what a Runner reports after executing a job once.
type RunResult struct {
	ExitCode int
	Err      error
}

// Runner executes a job's command once. The scheduler talks to the
// execution layer only through this interface.
type Runner interface {
	Run(ctx context.Context, job Job) RunResult
}
