package crontab

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/modoterra/cronium/pkg/core"
)

func TestParseValidCrontab(t *testing.T) {
	yaml := `
version: 1
jobs:
  backup:
    schedule: "0 3 * * *"
    command: "/usr/local/bin/backup.sh >> /var/log/backup.log 2>&1"
    log_file: /var/log/backup.log
  reindex:
    schedule: "*/15 * * * *"
    command: "node /app/reindex.js"
    description: refresh the search index
    disabled: true
`
	ct, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if ct.Version != 1 {
		t.Errorf("version: got %d, want 1", ct.Version)
	}
	if len(ct.Jobs) != 2 {
		t.Fatalf("jobs count: got %d, want 2", len(ct.Jobs))
	}
	backup := ct.Jobs["backup"]
	if backup.Name != "backup" {
		t.Errorf("name not copied from map key: got %q", backup.Name)
	}
	if backup.LogFile != "/var/log/backup.log" {
		t.Errorf("log_file: got %q", backup.LogFile)
	}
	if !backup.Enabled() {
		t.Error("backup should be enabled")
	}
	if ct.Jobs["reindex"].Enabled() {
		t.Error("reindex should be disabled")
	}
	if errs := Validate(ct); len(errs) != 0 {
		t.Errorf("unexpected validation errors: %v", errs)
	}
}

func TestParseEmptyJobs(t *testing.T) {
	ct, err := Parse([]byte("version: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if ct.Jobs == nil {
		t.Error("jobs map must be initialized")
	}
	if errs := Validate(ct); len(errs) != 0 {
		t.Errorf("empty crontab must validate: %v", errs)
	}
}

func TestValidateVersionMustBe1(t *testing.T) {
	ct := &Crontab{Version: 2, Jobs: map[string]core.Job{}}
	assertHasError(t, Validate(ct), "version must be 1")
}

func TestValidateScheduleRequired(t *testing.T) {
	ct := &Crontab{Version: 1, Jobs: map[string]core.Job{
		"x": {Command: "echo hi"},
	}}
	assertHasError(t, Validate(ct), "schedule is required")
}

func TestValidateBadSchedule(t *testing.T) {
	ct := &Crontab{Version: 1, Jobs: map[string]core.Job{
		"x": {Schedule: "every tuesday", Command: "echo hi"},
	}}
	assertHasError(t, Validate(ct), "invalid schedule")
}

func TestValidateDescriptorSchedules(t *testing.T) {
	for _, spec := range []string{"@hourly", "@daily", "@every 5m", "*/5 * * * *"} {
		ct := &Crontab{Version: 1, Jobs: map[string]core.Job{
			"x": {Schedule: spec, Command: "echo hi"},
		}}
		if errs := Validate(ct); len(errs) != 0 {
			t.Errorf("schedule %q: unexpected errors: %v", spec, errs)
		}
	}
}

func TestValidateCommandRequired(t *testing.T) {
	ct := &Crontab{Version: 1, Jobs: map[string]core.Job{
		"x": {Schedule: "* * * * *"},
	}}
	assertHasError(t, Validate(ct), "command is required")
}

func TestValidateBadName(t *testing.T) {
	ct := &Crontab{Version: 1, Jobs: map[string]core.Job{
		"bad name": {Schedule: "* * * * *", Command: "echo"},
	}}
	assertHasError(t, Validate(ct), "must not contain")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cronium.yaml")
	ct := Empty(path)
	ct.Jobs["backup"] = core.Job{
		Name:     "backup",
		Schedule: "0 3 * * *",
		Command:  "./backup.sh > /var/log/b.log",
		LogFile:  "/var/log/b.log",
	}

	if err := Save(ct, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.FilePath != path {
		t.Errorf("file path: got %q", loaded.FilePath)
	}
	got := loaded.Jobs["backup"]
	if got.Command != "./backup.sh > /var/log/b.log" {
		t.Errorf("command did not round-trip: %q", got.Command)
	}
	if got.Name != "backup" {
		t.Errorf("name: got %q", got.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCommandsAreStoredLiterally(t *testing.T) {
	// Commands must round-trip byte-exact; no interpolation of ${...}.
	path := filepath.Join(t.TempDir(), "cronium.yaml")
	command := `sh -c 'echo ${HOME} > /tmp/out'`
	ct := Empty(path)
	ct.Jobs["lit"] = core.Job{Schedule: "@daily", Command: command}
	if err := Save(ct, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Jobs["lit"].Command != command {
		t.Errorf("command mangled: %q", loaded.Jobs["lit"].Command)
	}
}

func TestRenderDeterministicAndOrdered(t *testing.T) {
	ct := Empty("")
	ct.Jobs["b-job"] = core.Job{Schedule: "0 1 * * *", Command: "b.sh"}
	ct.Jobs["a-job"] = core.Job{Schedule: "0 2 * * *", Command: "a.sh", Description: "first"}
	ct.Jobs["c-job"] = core.Job{Schedule: "0 3 * * *", Command: "c.sh", Disabled: true}

	out := Render(ct)
	for i := 0; i < 5; i++ {
		if Render(ct) != out {
			t.Fatal("render is not deterministic")
		}
	}

	aIdx := strings.Index(out, "# cronium-job: a-job")
	bIdx := strings.Index(out, "# cronium-job: b-job")
	cIdx := strings.Index(out, "# cronium-job: c-job")
	if aIdx < 0 || bIdx < 0 || cIdx < 0 || !(aIdx < bIdx && bIdx < cIdx) {
		t.Errorf("jobs not in name order:\n%s", out)
	}
	if !strings.Contains(out, "0 2 * * * a.sh") {
		t.Errorf("missing schedule line:\n%s", out)
	}
	if !strings.Contains(out, "# first") {
		t.Errorf("missing description comment:\n%s", out)
	}
	if !strings.Contains(out, "# disabled: 0 3 * * * c.sh") {
		t.Errorf("disabled job not commented out:\n%s", out)
	}
	if !IsManaged(out) {
		t.Error("rendered output must be recognized as managed")
	}
}

func TestIsManaged(t *testing.T) {
	if !IsManaged("") {
		t.Error("empty crontab is safe to overwrite")
	}
	if IsManaged("0 1 * * * /home/me/mine.sh\n") {
		t.Error("hand-written crontab must not be considered managed")
	}
}

func TestStarter(t *testing.T) {
	ct := Starter()
	if errs := Validate(ct); len(errs) != 0 {
		t.Fatalf("starter crontab invalid: %v", errs)
	}
	job, ok := ct.Jobs["example-cleanup"]
	if !ok {
		t.Fatal("starter job missing")
	}
	if !job.Disabled {
		t.Error("starter job must be disabled")
	}
}

func assertHasError(t *testing.T, errs []error, substr string) {
	t.Helper()
	for _, e := range errs {
		if strings.Contains(e.Error(), substr) {
			return
		}
	}
	t.Errorf("expected error containing %q, got: %v", substr, errs)
}
