package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".testlens.yml")
	writeFile(t, path, `
project:
  name: calc
test:
  command: go test ./...
  environment:
    CI: "true"
llm:
  provider: OpenRouter
git:
  enabled: false
format: JSON
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Project.Name != "calc" || cfg.Test.Command != "go test ./..." || cfg.Test.Environment["CI"] != "true" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LLM.Provider != "openrouter" || cfg.Format != FormatJSON {
		t.Fatalf("values not normalized: %q %q", cfg.LLM.Provider, cfg.Format)
	}
	if cfg.Git.Enabled {
		t.Fatalf("explicit false must override default true")
	}
	if cfg.Test.TimeoutSeconds != 300 || cfg.LLM.MaxParallel != 4 || cfg.Git.CompareRef != "HEAD~5" || cfg.HintsFile != "HINTS.md" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".testlens.toml")
	writeFile(t, path, `
hints_file = "docs/HINTS.md"

[test]
command = "npm test"
timeout_seconds = 60

[llm]
provider = "gemini"
max_parallel = 2

[risk]
high_threshold = 0.8
medium_threshold = 0.4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Test.Command != "npm test" || cfg.TestTimeout() != time.Minute || cfg.LLM.Provider != "gemini" || cfg.LLM.MaxParallel != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Risk.HighThreshold != 0.8 || cfg.HintsFile != "docs/HINTS.md" || cfg.Report.Title != "Test Results" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
	bad := filepath.Join(dir, "bad.yml")
	writeFile(t, bad, "test: [unterminated")
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
	empty := filepath.Join(dir, "empty.yml")
	writeFile(t, empty, "\n")
	if cfg, err := Load(empty); err != nil || cfg.Test.Command != "pytest -v" {
		t.Fatalf("empty file should give defaults: %+v %v", cfg, err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty command", func(c *Config) { c.Test.Command = "  " }, "test.command"},
		{"zero timeout", func(c *Config) { c.Test.TimeoutSeconds = 0 }, "test.timeout_seconds"},
		{"llm timeout", func(c *Config) { c.LLM.TimeoutSeconds = -1 }, "llm.timeout_seconds"},
		{"parallel", func(c *Config) { c.LLM.MaxParallel = 0 }, "llm.max_parallel"},
		{"provider", func(c *Config) { c.LLM.Provider = "bard" }, `llm.provider "bard"`},
		{"format", func(c *Config) { c.Format = "xml" }, `format "xml"`},
		{"thresholds", func(c *Config) { c.Risk.MediumThreshold = 0.9 }, "risk thresholds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in invalid error, got %v", tc.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	ApplyFlags(&cfg, FlagValues{
		Command:  StringFlag{Value: "make test", Set: true},
		Timeout:  IntFlag{Value: 10, Set: true},
		Provider: StringFlag{Value: " Gemini ", Set: true},
		Model:    StringFlag{Value: "ignored"},
		Format:   StringFlag{Value: "JSON", Set: true},
		Verbose:  BoolFlag{Value: true, Set: true},
	})
	if cfg.Test.Command != "make test" || cfg.Test.TimeoutSeconds != 10 || cfg.LLM.Provider != "gemini" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.LLM.Model != "" || cfg.Format != FormatJSON || !cfg.Verbose {
		t.Fatalf("unexpected flag state: %+v", cfg)
	}
}

func TestPathsAndHints(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	if got := cfg.ReportPath(root); got != filepath.Join(root, "reports", "test_report.html") {
		t.Fatalf("ReportPath = %q", got)
	}
	if got := cfg.DatabasePath(root); got != filepath.Join(root, ".testlens", "history.db") {
		t.Fatalf("DatabasePath = %q", got)
	}
	if hints, err := cfg.Hints(root); err != nil || hints != "" {
		t.Fatalf("missing hints file must be empty: %q %v", hints, err)
	}
	writeFile(t, filepath.Join(root, "HINTS.md"), "Tests use pytest fixtures.")
	if hints, err := cfg.Hints(root); err != nil || hints != "Tests use pytest fixtures." {
		t.Fatalf("Hints = %q %v", hints, err)
	}
	abs := filepath.Join(t.TempDir(), "db.sqlite")
	cfg.Storage.DatabasePath = abs
	if cfg.DatabasePath(root) != abs {
		t.Fatalf("absolute path must be kept")
	}
}

func TestLoadEnvDoesNotOverride(t *testing.T) {
	root := t.TempDir()
	if err := LoadEnv(root); err != nil {
		t.Fatalf("missing .env must be ignored: %v", err)
	}
	writeFile(t, filepath.Join(root, ".env"), "TESTLENS_FROM_FILE=file\nTESTLENS_PRESET=file\n")
	t.Setenv("TESTLENS_PRESET", "env")
	t.Setenv("TESTLENS_FROM_FILE", "")
	os.Unsetenv("TESTLENS_FROM_FILE")
	if err := LoadEnv(root); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("TESTLENS_FROM_FILE"); got != "file" {
		t.Fatalf("TESTLENS_FROM_FILE = %q", got)
	}
	if got := os.Getenv("TESTLENS_PRESET"); got != "env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
}

func TestWriteExampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".testlens.yml")
	if err := Write(path, Example(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(path, Example(), false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := Write(path, Example(), true); err != nil {
		t.Fatalf("forced Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# testlens configuration.") {
		t.Fatalf("missing header:\n%s", data)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Test.Command != "pytest -v --tb=short" || cfg.LLM.Model != "llama3.2" || !cfg.Git.Enabled {
		t.Fatalf("round trip lost values: %+v", cfg)
	}
}
