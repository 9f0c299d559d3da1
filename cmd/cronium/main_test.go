package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCrontabValidateCommand(t *testing.T) {
	// Create a valid job file
	tmp := t.TempDir() + "/cronium.yaml"
	content := []byte(`version: 1
jobs:
  backup:
    schedule: "0 3 * * *"
    command: "./backup.sh >> /var/log/backup.log 2>&1"
`)
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		t.Fatal(err)
	}

	// Run validate via cobra
	rootCmd.SetArgs([]string{"crontab", "validate", tmp})
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
}

func TestCrontabInitCommand(t *testing.T) {
	tmp := t.TempDir() + "/cronium.yaml"
	rootCmd.SetArgs([]string{"crontab", "init", "--output", tmp})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("generated job file is empty")
	}
}

func TestCrontabInitRefusesOverwrite(t *testing.T) {
	tmp := t.TempDir() + "/cronium.yaml"
	if err := os.WriteFile(tmp, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rootCmd.SetArgs([]string{"crontab", "init", "--output", tmp})
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err == nil {
		t.Error("init over an existing file should fail")
	}
}

func TestEnsureDaemonReportsSpawnFailure(t *testing.T) {
	// With an empty PATH the daemon binary cannot be found; the spawn
	// failure must short-circuit instead of waiting out the socket loop.
	t.Setenv("PATH", t.TempDir())

	oldSocket := socketPath
	socketPath = filepath.Join(t.TempDir(), "cronium.sock")
	defer func() { socketPath = oldSocket }()

	start := time.Now()
	ensureDaemon()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ensureDaemon blocked %v after a failed spawn", elapsed)
	}
}

func TestVersionCommand(t *testing.T) {
	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
}
