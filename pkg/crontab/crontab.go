// Package crontab loads, validates, and persists the cronium job file,
// and renders it into system crontab text for syncing.
package crontab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/modoterra/cronium/pkg/core"
)

// Crontab represents a cronium.yaml job file.
type Crontab struct {
	Version int                 `yaml:"version" json:"version"`
	Jobs    map[string]core.Job `yaml:"jobs"    json:"jobs"`

	// FilePath is where the crontab was loaded from (not serialized).
	FilePath string `yaml:"-" json:"-"`
}

// Parse decodes YAML bytes into a Crontab. Job names come from the map
// keys and are copied onto the Job values.
func Parse(data []byte) (*Crontab, error) {
	var ct Crontab
	if err := yaml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("parse crontab: %w", err)
	}
	if ct.Jobs == nil {
		ct.Jobs = make(map[string]core.Job)
	}
	for name, job := range ct.Jobs {
		job.Name = name
		ct.Jobs[name] = job
	}
	return &ct, nil
}

// Load reads and parses a crontab file.
func Load(path string) (*Crontab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ct, err := Parse(data)
	if err != nil {
		return nil, err
	}
	ct.FilePath = path
	return ct, nil
}

// Save writes the crontab to the given path.
func Save(ct *Crontab, path string) error {
	data, err := yaml.Marshal(ct)
	if err != nil {
		return fmt.Errorf("encode crontab: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Empty returns a new crontab with no jobs, bound to the given path.
func Empty(path string) *Crontab {
	return &Crontab{
		Version:  1,
		Jobs:     make(map[string]core.Job),
		FilePath: path,
	}
}
