package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.RefCount.Marker != "RefCounted" || cfg.RefCount.TempPrefix != "rc$" {
		t.Errorf("refcount defaults = %+v", cfg.RefCount)
	}
	if cfg.Workers() != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers())
	}
	cfg.Pipeline.Parallel = false
	if cfg.Workers() != 1 {
		t.Errorf("Workers without parallelism = %d, want 1", cfg.Workers())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"bad log level", func(c *Config) { c.Output.LogLevel = "loud" }, "invalid log level"},
		{"no workers", func(c *Config) { c.Pipeline.MaxWorkers = 0 }, "max_workers"},
		{"no iterations", func(c *Config) { c.Pipeline.MaxIterations = 0 }, "max_iterations"},
		{"empty marker", func(c *Config) { c.RefCount.Marker = " " }, "refcount.marker"},
		{"empty hook", func(c *Config) { c.RefCount.Hook = "" }, "refcount.hook"},
		{"trace without output", func(c *Config) {
			c.Trace.Enabled = true
			c.Trace.Output = ""
		}, "trace.output"},
		{"bad pattern", func(c *Config) { c.Files.Exclude = append(c.Files.Exclude, "src/[a-") }, "invalid file pattern"},
		{"json is fine", func(c *Config) { c.Output.Format = "json" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refweaver.yml")
	data := `refcount:
  marker: Counted
  hook: dispose
pipeline:
  max_iterations: 3
output:
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RefCount.Marker != "Counted" || cfg.RefCount.Hook != "dispose" {
		t.Errorf("refcount = %+v", cfg.RefCount)
	}
	if cfg.RefCount.Retain != "retain" {
		t.Errorf("unset retain lost its default: %q", cfg.RefCount.Retain)
	}
	if cfg.Pipeline.MaxIterations != 3 || cfg.Pipeline.MaxWorkers != 4 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refweaver.yml")
	if err := os.WriteFile(path, []byte("refcount:\n  wrap: \"\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig accepted an empty wrap name")
	}
	typo := filepath.Join(t.TempDir(), "typo.yml")
	if err := os.WriteFile(typo, []byte("pipeline:\n  max_iteration: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(typo); err == nil {
		t.Error("LoadConfig accepted an unknown key")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("LoadConfig accepted a missing file")
	}
}

func TestGenerateConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".refweaver.yml")
	if err := GenerateConfig(path); err != nil {
		t.Fatalf("GenerateConfig: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RefCount != DefaultConfig().RefCount {
		t.Errorf("refcount = %+v", cfg.RefCount)
	}
}

func TestIsIncluded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Files.Exclude = append(cfg.Files.Exclude, "**/generated/**")
	tests := []struct {
		path string
		want bool
	}{
		{"A.java", true},
		{"com/acme/A.java", true},
		{"com/acme/A.kt", false},
		{"build/classes/A.java", false},
		{"target/A.java", false},
		{"com/generated/A.java", false},
		{"generated/A.java", false},
		{"builds/A.java", true},
		{"com/acme/build/A.java", true},
		{"out/x/y/A.java", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := cfg.IsIncluded(tt.path); got != tt.want {
				t.Errorf("IsIncluded(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
