// Package config loads and validates the optional .repeat YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up from the
// working directory upward.
const FileName = ".repeat"

// Default values for batch configuration.
const (
	DefaultCount       = 20
	DefaultResultsFile = "results.txt"
	DefaultLogFile     = "resultsSync.txt"
	DefaultPolicy      = "exit1"
)

// DefaultCommand is the collaborator invoked when no command is configured.
var DefaultCommand = []string{"node", "lib/integrationTests/run.js"}

// DefaultEnv is overlaid on the parent environment of every child process.
var DefaultEnv = map[string]string{
	"DEBUG": "waggle*,nectar:test*",
}

// Config holds the parsed .repeat configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int               `yaml:"version"`
	RawCommand   []string          `yaml:"command"`
	RawCount     *int              `yaml:"count"` // nil means default; 0 is a valid empty batch
	Concurrency  int               `yaml:"concurrency"`
	RawTimeout   string            `yaml:"timeout"`    // e.g. "5m", "30s"
	RawMaxOutput int               `yaml:"max_output"` // bytes per stream
	RawPolicy    string            `yaml:"failure"`    // exit1 | nonzero
	StripANSI    bool              `yaml:"strip_ansi"`
	RawEnv       map[string]string `yaml:"env"`
	Output       OutputConfig      `yaml:"output"`
}

// OutputConfig names the files a batch writes.
type OutputConfig struct {
	Results string `yaml:"results"` // concurrent runner, overwritten
	Log     string `yaml:"log"`     // sequential runner, appended
	Metrics string `yaml:"metrics"` // Prometheus textfile; empty disables
}

// Command returns the configured argv or DefaultCommand.
func (c *Config) Command() []string {
	if len(c.RawCommand) > 0 {
		return c.RawCommand
	}
	return DefaultCommand
}

// Count returns the number of invocations per batch.
func (c *Config) Count() int {
	if c.RawCount != nil {
		return *c.RawCount
	}
	return DefaultCount
}

// SetCount overrides the configured count.
func (c *Config) SetCount(n int) {
	c.RawCount = &n
}

// Timeout returns the per-invocation timeout. Zero means no timeout.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.RawTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// MaxOutputBytes returns the per-stream capture cap. Zero means unlimited.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// Policy returns the configured failure policy name.
func (c *Config) Policy() string {
	if c.RawPolicy != "" {
		return c.RawPolicy
	}
	return DefaultPolicy
}

// Env returns DefaultEnv merged with the configured overrides.
func (c *Config) Env() map[string]string {
	env := make(map[string]string, len(DefaultEnv)+len(c.RawEnv))
	for k, v := range DefaultEnv {
		env[k] = v
	}
	for k, v := range c.RawEnv {
		env[k] = v
	}
	return env
}

// EnvKeys returns the keys of Env in sorted order.
func (c *Config) EnvKeys() []string {
	env := c.Env()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResultsFile returns the concurrent runner's output file name.
func (c *Config) ResultsFile() string {
	if c.Output.Results != "" {
		return c.Output.Results
	}
	return DefaultResultsFile
}

// LogFile returns the sequential runner's log file name.
func (c *Config) LogFile() string {
	if c.Output.Log != "" {
		return c.Output.Log
	}
	return DefaultLogFile
}

// Validate reports fields that cannot be used as configured.
func (c *Config) Validate() error {
	if c.RawCount != nil && *c.RawCount < 0 {
		return fmt.Errorf("count must be >= 0, got %d", *c.RawCount)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency)
	}
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.RawTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("timeout must not be negative, got %s", d)
		}
	}
	switch c.Policy() {
	case "exit1", "nonzero":
	default:
		return fmt.Errorf("unknown failure policy %q (want exit1 or nonzero)", c.RawPolicy)
	}
	return nil
}

// LoadResult holds the parsed config and the directory it was found in.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .repeat; falls back to workspace
}

// Resolve returns path unchanged if absolute, otherwise joined onto Root.
func (l *LoadResult) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.Root, path)
}

// Load reads the .repeat file. The file is discovered by walking upward
// from workspace. If no file exists, a default Config rooted at workspace
// is returned.
func Load(workspace string) (*LoadResult, error) {
	workspace, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}

	path, err := findConfig(workspace)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, Root: filepath.Dir(path)}, nil
}

// findConfig walks upward from dir looking for a .repeat file.
func findConfig(dir string) (string, error) {
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
