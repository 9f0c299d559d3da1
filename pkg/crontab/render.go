package crontab

import (
	"sort"
	"strings"

	"github.com/modoterra/cronium/pkg/core"
)

const (
	renderHeader = "# Managed by cronium - do not edit by hand. Run `cronium` instead."
	markerPrefix = "# cronium-job: "
)

// Render produces system crontab text for the sync operation. Output is
// deterministic: jobs are emitted in name order, each preceded by a
// marker comment. Disabled jobs are emitted commented out so a synced
// crontab still documents them without running them.
func Render(ct *Crontab) string {
	names := make([]string, 0, len(ct.Jobs))
	for name := range ct.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(renderHeader)
	b.WriteString("\n")
	for _, name := range names {
		job := ct.Jobs[name]
		b.WriteString("\n")
		b.WriteString(markerPrefix + name + "\n")
		if job.Description != "" {
			b.WriteString("# " + job.Description + "\n")
		}
		line := job.Schedule + " " + job.Command
		if job.Disabled {
			line = "# disabled: " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// IsManaged reports whether existing crontab text was produced by
// Render, so sync can refuse to overwrite a hand-written crontab.
func IsManaged(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "" || strings.HasPrefix(trimmed, "# Managed by cronium")
}

// Starter returns a starter crontab for `cronium crontab init`, with a
// single disabled example job.
func Starter() *Crontab {
	ct := Empty("")
	ct.Jobs["example-cleanup"] = core.Job{
		Name:        "example-cleanup",
		Schedule:    "0 3 * * *",
		Command:     "/usr/local/bin/cleanup.sh >> /var/log/cleanup.log 2>&1",
		LogFile:     "/var/log/cleanup.log",
		Description: "Example job, edit or delete",
		Disabled:    true,
	}
	return ct
}
