// Package config loads and validates the optional .tally YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up by Load.
const FileName = ".tally"

// Default values used when the configuration leaves a field unset.
const (
	DefaultTrials       = 1000
	DefaultWidth        = 32
	DefaultMarker       = "Dungeon created in"
	DefaultOutputPrefix = "out"
	DefaultMaxOutput    = 0 // uncapped
	DefaultSetupMethod  = "setUp"
)

// DefaultCommand is the program invoked once per trial.
var DefaultCommand = []string{"java", "-jar", "./out/artifacts/pdp_project_3_jar/pdp-project-3.jar"}

// Config holds the parsed .tally configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int            `yaml:"version"`
	Command      []string       `yaml:"command"`
	RawTrials    *int           `yaml:"trials"` // nil means default; zero is a valid run
	RawWidth     int            `yaml:"width"`
	RawMarker    string         `yaml:"marker"`
	OutputDir    string         `yaml:"output_dir"` // parent of the per-run directory
	RawPrefix    string         `yaml:"output_prefix"`
	RawTimeout   string         `yaml:"timeout"`    // e.g. "30s"; empty means no timeout
	RawMaxOutput int            `yaml:"max_output"` // bytes; zero means uncapped
	Testplan     TestplanConfig `yaml:"testplan"`
}

// TestplanConfig controls how test plans are extracted from JavaDoc pages.
type TestplanConfig struct {
	Docs        string `yaml:"docs"`         // root of the generated JavaDoc tree
	SetupMethod string `yaml:"setup_method"` // leading method dropped from the plan
}

// Argv returns the configured command or the default.
func (c *Config) Argv() []string {
	if len(c.Command) > 0 {
		return c.Command
	}
	return DefaultCommand
}

// Trials returns the configured trial count or the default.
func (c *Config) Trials() int {
	if c.RawTrials != nil && *c.RawTrials >= 0 {
		return *c.RawTrials
	}
	return DefaultTrials
}

// Width returns the configured concurrency width or the default.
func (c *Config) Width() int {
	if c.RawWidth > 0 {
		return c.RawWidth
	}
	return DefaultWidth
}

// Marker returns the substring that marks a valid trial.
func (c *Config) Marker() string {
	if c.RawMarker != "" {
		return c.RawMarker
	}
	return DefaultMarker
}

// OutputPrefix returns the prefix of per-run directory names.
func (c *Config) OutputPrefix() string {
	if c.RawPrefix != "" {
		return c.RawPrefix
	}
	return DefaultOutputPrefix
}

// Timeout returns the per-trial timeout, or zero when trials may run
// indefinitely.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the per-trial output cap in bytes. Zero, the
// default, captures output in full; a cap can cut off a late marker.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// SetupMethod returns the method name dropped from the head of a test plan.
func (c *Config) SetupMethod() string {
	if c.Testplan.SetupMethod != "" {
		return c.Testplan.SetupMethod
	}
	return DefaultSetupMethod
}

// LoadResult holds the parsed config and the directory it was found in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .tally; falls back to workspace
}

// Load reads the .tally file found by walking upward from workspace.
// If no file exists, a default Config rooted at workspace is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findConfigRoot(workspace)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if cfg.RawTimeout != "" {
		if _, err := time.ParseDuration(cfg.RawTimeout); err != nil {
			return nil, fmt.Errorf("parsing %s: timeout: %w", FileName, err)
		}
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findConfigRoot walks upward from dir looking for a directory containing .tally.
func findConfigRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
