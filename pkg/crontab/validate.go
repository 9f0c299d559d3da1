package crontab

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/modoterra/cronium/pkg/core"
)

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks a single cron expression.
func ValidateSchedule(spec string) error {
	if spec == "" {
		return fmt.Errorf("schedule is required")
	}
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Validate checks the crontab for structural correctness. An empty jobs
// map is valid (fresh install).
func Validate(ct *Crontab) []error {
	var errs []error

	if ct.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", ct.Version))
	}

	for name, job := range ct.Jobs {
		if err := core.ValidateName(name); err != nil {
			errs = append(errs, err)
		}
		if err := ValidateSchedule(job.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("job %q: %w", name, err))
		}
		if job.Command == "" {
			errs = append(errs, fmt.Errorf("job %q: command is required", name))
		}
	}

	return errs
}
