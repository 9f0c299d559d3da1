package daemon

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/modoterra/cronium/pkg/crontab"
)

// InstallSystemCrontab renders the job store and installs it as the
// invoking user's system crontab via `crontab -`. It refuses to
// overwrite a crontab that cronium did not write, and returns the
// number of enabled jobs installed.
func InstallSystemCrontab(ct *crontab.Crontab) (int, error) {
	current, err := readSystemCrontab()
	if err != nil {
		return 0, err
	}
	if !crontab.IsManaged(current) {
		return 0, fmt.Errorf("existing crontab was not written by cronium; refusing to overwrite")
	}

	text := crontab.Render(ct)
	cmd := exec.Command("crontab", "-")
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("crontab -: %w: %s", err, strings.TrimSpace(string(out)))
	}

	n := 0
	for _, job := range ct.Jobs {
		if job.Enabled() {
			n++
		}
	}
	return n, nil
}

// readSystemCrontab returns the current crontab text, or empty when the
// user has none ("no crontab for ..." exits non-zero).
func readSystemCrontab() (string, error) {
	out, err := exec.Command("crontab", "-l").CombinedOutput()
	if err != nil {
		if strings.Contains(strings.ToLower(string(out)), "no crontab") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
