package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrExists is returned by Write when the target exists and force is off.
var ErrExists = errors.New("config file already exists")

const header = `# testlens configuration.
# test.command is any shell command; the interpreter reads whatever it prints.
# llm.provider is one of ollama, openrouter or gemini. Hosted providers read
# their key from the variable named by llm.api_key_env.
`

// Example is the configuration written by `testlens init`.
func Example() Config {
	cfg := Default()
	cfg.Project.Description = "Brief description of your project for interpreter context"
	cfg.Test.Command = "pytest -v --tb=short"
	cfg.LLM.Model = "llama3.2"
	cfg.LLM.BaseURL = "http://localhost:11434"
	return cfg
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %q: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}
