// ============================================================================
// cx-taskflow Config - YAML Flow Configuration
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: Load a Flow's worker/queue/tracer sizing and task topology from a
//   YAML file.
//
// Design Pattern:
//   Grounded on the teacher's internal/cli/cli.go Config struct and
//   loadConfig: a single yaml-tagged struct, unmarshaled in one shot, with a
//   package-level LoadFile helper wrapping file I/O errors.
//
// ============================================================================

// Package config loads Task Flow configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TaskSpec describes one task in the flow topology: its unique name and the
// names of the tasks it depends on.
type TaskSpec struct {
	Name         string   `yaml:"name"`
	Predecessors []string `yaml:"predecessors"`
}

// Config is the complete configuration for building and running a Flow.
type Config struct {
	Flow struct {
		WorkerCount    int `yaml:"worker_count"`
		QueueCapacity  int `yaml:"queue_capacity"`
		TracerCapacity int `yaml:"tracer_capacity"`
		Cycles         int `yaml:"cycles"`
	} `yaml:"flow"`

	Tasks []TaskSpec `yaml:"tasks"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Trace struct {
		Enabled    bool   `yaml:"enabled"`
		OutputPath string `yaml:"output_path"`
	} `yaml:"trace"`
}

// LoadFile reads and parses a YAML config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent: worker
// count is positive, at least one task is defined, task names are non-empty
// and unique, and every predecessor name refers to another task defined in
// the same config. Queue and tracer capacities are not checked.
func (c *Config) Validate() error {
	if c.Flow.WorkerCount <= 0 {
		return fmt.Errorf("config: flow.worker_count must be positive")
	}
	if len(c.Tasks) == 0 {
		return fmt.Errorf("config: at least one task must be defined")
	}

	seen := make(map[string]bool, len(c.Tasks))
	for _, t := range c.Tasks {
		if t.Name == "" {
			return fmt.Errorf("config: task name must not be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate task name %q", t.Name)
		}
		seen[t.Name] = true
	}

	for _, t := range c.Tasks {
		for _, dep := range t.Predecessors {
			if !seen[dep] {
				return fmt.Errorf("config: task %q depends on unknown task %q", t.Name, dep)
			}
			if dep == t.Name {
				return fmt.Errorf("config: task %q cannot depend on itself", t.Name)
			}
		}
	}

	return nil
}
