// Package discovery locates the project's configuration file by walking up
// from the working directory.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoConfig indicates that no configuration file was found.
var ErrNoConfig = errors.New("no testlens config found; run `testlens init`")

// ConfigNames are searched for in every directory, in order.
var ConfigNames = []string{".testlens.yml", ".testlens.yaml", "testlens.yml", ".testlens.toml", "testlens.json"}

// FindConfig searches start and each parent directory for a config file and
// returns its path. explicit, when set, is validated and returned instead.
func FindConfig(start, explicit string) (string, error) {
	if explicit != "" {
		return resolveExplicit(start, explicit)
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", start, err)
	}
	for {
		for _, name := range ConfigNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoConfig
		}
		dir = parent
	}
}

// ProjectRoot is the directory holding the config file.
func ProjectRoot(configPath string) string {
	return filepath.Dir(configPath)
}

func resolveExplicit(root, input string) (string, error) {
	cleaned := input
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(root, cleaned)
	}
	info, err := os.Stat(cleaned)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config %q not found", input)
		}
		return "", fmt.Errorf("stat %q: %w", input, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config %q is a directory", input)
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", input, err)
	}
	return abs, nil
}

// RelOrClean renders path relative to root when it lies inside root.
func RelOrClean(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return rel
}
