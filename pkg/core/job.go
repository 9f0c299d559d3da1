package core

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the observed state of a job.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Job is a scheduled command definition.
type Job struct {
	Name        string            `yaml:"-"                     json:"name"`
	Schedule    string            `yaml:"schedule"              json:"schedule"`
	Command     string            `yaml:"command"               json:"command"`
	LogFile     string            `yaml:"log_file,omitempty"    json:"log_file,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Dir         string            `yaml:"dir,omitempty"         json:"dir,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"         json:"env,omitempty"`
	Disabled    bool              `yaml:"disabled,omitempty"    json:"disabled,omitempty"`
}

// Enabled reports whether the job should be scheduled.
func (j Job) Enabled() bool { return !j.Disabled }

// RunState is the outcome of the most recent execution of a job.
type RunState struct {
	Status     Status     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExitCode   int        `json:"exit_code"`
	Error      string     `json:"error,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
}

// JobView is a Job together with its run state, as served to clients.
type JobView struct {
	Job
	Run RunState `json:"run"`
}

// ValidateName checks that a job name is usable as a map key, a crontab
// marker, and a filename fragment.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if strings.ContainsAny(name, " \t\n/") {
		return fmt.Errorf("job name %q must not contain whitespace or '/'", name)
	}
	return nil
}
