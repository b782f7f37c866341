// Package config loads .testlens.yml (or .testlens.toml) and overlays CLI
// flags on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config captures options sourced from the config file or flags.
type Config struct {
	Project   ProjectConfig `yaml:"project" toml:"project"`
	Test      TestConfig    `yaml:"test" toml:"test"`
	LLM       LLMConfig     `yaml:"llm" toml:"llm"`
	HintsFile string        `yaml:"hints_file" toml:"hints_file"`
	Report    ReportConfig  `yaml:"report" toml:"report"`
	Git       GitConfig     `yaml:"git" toml:"git"`
	Storage   StorageConfig `yaml:"storage" toml:"storage"`
	Risk      RiskConfig    `yaml:"risk" toml:"risk"`

	Format  string `yaml:"format" toml:"format"`
	Verbose bool   `yaml:"verbose" toml:"verbose"`
}

// ProjectConfig describes the project to the interpreter.
type ProjectConfig struct {
	Name string `yaml:"name" toml:"name"`
	// Language is a hint such as "python"; empty means detect.
	Language    string `yaml:"language" toml:"language"`
	Description string `yaml:"description" toml:"description"`
}

// TestConfig describes how to run the test command.
type TestConfig struct {
	Command          string            `yaml:"command" toml:"command"`
	WorkingDirectory string            `yaml:"working_directory" toml:"working_directory"`
	TimeoutSeconds   int               `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Environment      map[string]string `yaml:"environment" toml:"environment"`
	Shell            string            `yaml:"shell" toml:"shell"`
}

// LLMConfig selects the interpreter provider. Empty Model and BaseURL use
// the provider's defaults.
type LLMConfig struct {
	Provider       string `yaml:"provider" toml:"provider"`
	Model          string `yaml:"model" toml:"model"`
	BaseURL        string `yaml:"base_url" toml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	APIKeyEnv      string `yaml:"api_key_env" toml:"api_key_env"`
	MaxParallel    int    `yaml:"max_parallel" toml:"max_parallel"`
}

// ReportConfig places the HTML report.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
	Filename  string `yaml:"filename" toml:"filename"`
	Title     string `yaml:"title" toml:"title"`
}

// GitConfig controls the change context.
type GitConfig struct {
	Enabled            bool   `yaml:"enabled" toml:"enabled"`
	CompareRef         string `yaml:"compare_ref" toml:"compare_ref"`
	IncludeUncommitted bool   `yaml:"include_uncommitted" toml:"include_uncommitted"`
	IgnoreUntracked    bool   `yaml:"ignore_untracked" toml:"ignore_untracked"`
}

// StorageConfig locates the run ledger.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" toml:"database_path"`
}

// RiskConfig holds the category thresholds.
type RiskConfig struct {
	HighThreshold   float64 `yaml:"high_threshold" toml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold" toml:"medium_threshold"`
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"
)

// Providers accepted in llm.provider.
var Providers = []string{"ollama", "openrouter", "gemini"}

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Project: ProjectConfig{Name: "my-project"},
		Test: TestConfig{
			Command:          "pytest -v",
			WorkingDirectory: ".",
			TimeoutSeconds:   300,
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			TimeoutSeconds: 120,
			MaxParallel:    4,
		},
		HintsFile: "HINTS.md",
		Report: ReportConfig{
			OutputDir: "./reports",
			Filename:  "test_report.html",
			Title:     "Test Results",
		},
		Git: GitConfig{
			Enabled:            true,
			CompareRef:         "HEAD~5",
			IncludeUncommitted: true,
		},
		Storage: StorageConfig{DatabasePath: ".testlens/history.db"},
		Risk:    RiskConfig{HighThreshold: 0.6, MediumThreshold: 0.3},
		Format:  FormatPretty,
	}
}

// Load reads the config file at path over the defaults. Keys absent from
// the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := decode(path, data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = FormatPretty
	}
}

// Validate reports every problem at once; the result wraps ErrInvalid.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Test.Command) == "" {
		problems = append(problems, "test.command must not be empty")
	}
	if c.Test.TimeoutSeconds < 1 {
		problems = append(problems, "test.timeout_seconds must be at least 1")
	}
	if c.LLM.TimeoutSeconds < 1 {
		problems = append(problems, "llm.timeout_seconds must be at least 1")
	}
	if c.LLM.MaxParallel < 1 {
		problems = append(problems, "llm.max_parallel must be at least 1")
	}
	if !known(c.LLM.Provider) {
		problems = append(problems, fmt.Sprintf("llm.provider %q must be one of %s", c.LLM.Provider, strings.Join(Providers, ", ")))
	}
	if c.Format != FormatPretty && c.Format != FormatJSON {
		problems = append(problems, fmt.Sprintf("format %q must be pretty or json", c.Format))
	}
	high, medium := c.Risk.HighThreshold, c.Risk.MediumThreshold
	if high < 0 || high > 1 || medium < 0 || medium > 1 || medium > high {
		problems = append(problems, "risk thresholds must lie in [0,1] with medium_threshold <= high_threshold")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// TestTimeout is the test command timeout.
func (c Config) TestTimeout() time.Duration {
	return time.Duration(c.Test.TimeoutSeconds) * time.Second
}

// LLMTimeout is the per-call interpreter timeout.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// Resolve joins a config-relative path onto root.
func Resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ReportPath is the HTML report location under root.
func (c Config) ReportPath(root string) string {
	return filepath.Join(Resolve(root, c.Report.OutputDir), c.Report.Filename)
}

// DatabasePath is the ledger location under root.
func (c Config) DatabasePath(root string) string {
	return Resolve(root, c.Storage.DatabasePath)
}

// Hints returns the hints file content, or "" when there is none.
func (c Config) Hints(root string) (string, error) {
	if strings.TrimSpace(c.HintsFile) == "" {
		return "", nil
	}
	path := Resolve(root, c.HintsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read hints %q: %w", path, err)
	}
	return string(data), nil
}

// LoadEnv loads root/.env without overriding variables already set.
func LoadEnv(root string) error {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %q: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %q: %w", path, err)
	}
	return nil
}
