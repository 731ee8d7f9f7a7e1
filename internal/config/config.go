// Package config loads and validates the .refweaver.yml settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"refweaver/internal/refcount"
)

// Config represents the configuration for refweaver
type Config struct {
	// General settings
	Version     string `yaml:"version" json:"version"`
	ProjectName string `yaml:"project_name,omitempty" json:"project_name,omitempty"`

	// Runtime API names
	RefCount refcount.Conventions `yaml:"refcount" json:"refcount"`

	// Pass scheduling
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Index trace output
	Trace TraceConfig `yaml:"trace" json:"trace"`

	// File patterns
	Files FilesConfig `yaml:"files" json:"files"`

	// Post-print formatting
	Formatter FormatterConfig `yaml:"formatter" json:"formatter"`
}

type PipelineConfig struct {
	// Run each pass on a worker pool across files
	Parallel bool `yaml:"parallel" json:"parallel"`

	// Parallel workers
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`

	// Bound on fixed-point iterations per stage
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// Report changes without writing files
	DryRun bool `yaml:"dry_run" json:"dry_run"`
}

type OutputConfig struct {
	// Default output format
	Format string `yaml:"format" json:"format"`

	// Colorized output
	Colors bool `yaml:"colors" json:"colors"`

	// Verbosity level
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Show suggestions
	ShowSuggestions bool `yaml:"show_suggestions" json:"show_suggestions"`

	// Output file path (optional)
	OutputFile string `yaml:"output_file,omitempty" json:"output_file,omitempty"`

	// debug, info, warn or error
	LogLevel string `yaml:"log_level" json:"log_level"`
}

type TraceConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Output  string `yaml:"output" json:"output"`
}

type FilesConfig struct {
	// Include patterns
	Include []string `yaml:"include" json:"include"`

	// Exclude patterns
	Exclude []string `yaml:"exclude" json:"exclude"`

	// Max file size (in KB)
	MaxFileSize int `yaml:"max_file_size" json:"max_file_size"`
}

type FormatterConfig struct {
	// External command run on every rewritten file; "{file}" is replaced
	// by its path. Empty selects the built-in canonical formatting.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Version:  "1.0",
		RefCount: refcount.Default(),
		Pipeline: PipelineConfig{
			Parallel:      true,
			MaxWorkers:    4,
			MaxIterations: 10,
			DryRun:        false,
		},
		Output: OutputConfig{
			Format:          "console",
			Colors:          true,
			Verbose:         false,
			ShowSuggestions: true,
			LogLevel:        "info",
		},
		Trace: TraceConfig{
			Enabled: false,
			Output:  "refweaver.trace",
		},
		Files: FilesConfig{
			Include:     []string{"**/*.java"},
			Exclude:     []string{"build/**", "target/**", ".git/**", "out/**"},
			MaxFileSize: 1024, // 1MB
		},
	}
}

// configNames are tried, in order, relative to the working directory.
var configNames = []string{
	".refweaver.yml",
	".refweaver.yaml",
	"refweaver.yml",
	"refweaver.yaml",
	".config/refweaver.yml",
	".config/refweaver.yaml",
}

var validFormats = []string{"console", "json"}

// LoadConfig reads configPath, or the first of configNames that exists,
// over DefaultConfig. Unknown keys are rejected. Without a file the
// defaults are returned.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		for _, name := range configNames {
			if _, err := os.Stat(name); err == nil {
				configPath = name
				break
			}
		}
		if configPath == "" {
			return DefaultConfig(), nil
		}
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, validFormats)
	}
	switch c.Output.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Output.LogLevel)
	}
	for _, p := range slices.Concat(c.Files.Include, c.Files.Exclude) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid file pattern: %q", p)
		}
	}
	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}
	if c.Pipeline.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1")
	}

	rc := c.RefCount
	for key, v := range map[string]string{
		"marker": rc.Marker, "retain": rc.Retain, "release": rc.Release,
		"retain_all": rc.RetainAll, "release_all": rc.ReleaseAll, "hook": rc.Hook,
		"wrapper": rc.Wrapper, "wrap": rc.Wrap, "temp_prefix": rc.TempPrefix,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("refcount.%s must not be empty", key)
		}
	}

	if c.Trace.Enabled && c.Trace.Output == "" {
		return fmt.Errorf("trace.output is required when tracing is enabled")
	}
	return nil
}

// SaveConfig writes c as yaml, creating the parent directory.
func (c *Config) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", configPath, err)
	}
	return nil
}

// GenerateConfig writes the defaults to configPath.
func GenerateConfig(configPath string) error {
	return DefaultConfig().SaveConfig(configPath)
}

// Workers returns how many files a pass may process at once.
func (c *Config) Workers() int {
	if !c.Pipeline.Parallel {
		return 1
	}
	return c.Pipeline.MaxWorkers
}

// IsIncluded checks a slash-separated path relative to a source root
// against the include and exclude patterns
func (c *Config) IsIncluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range c.Files.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range c.Files.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
