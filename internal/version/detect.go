// Package version guesses the project's language from marker files and
// asks the local toolchain for its version, to give the interpreter a
// framework hint.
package version

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Info captures a language version installed on the system.
type Info struct {
	Name    string
	Version string
}

// String renders "name version" or just the name.
func (i Info) String() string {
	if i.Version == "" {
		return i.Name
	}
	return i.Name + " " + i.Version
}

// markers are checked in order; the first present file names the language.
var markers = []struct {
	file, language string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"tsconfig.json", "typescript"},
	{"package.json", "javascript"},
	{"pyproject.toml", "python"},
	{"setup.py", "python"},
	{"requirements.txt", "python"},
	{"pytest.ini", "python"},
	{"Gemfile", "ruby"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"build.gradle.kts", "kotlin"},
	{"composer.json", "php"},
	{"mix.exs", "elixir"},
}

// DetectLanguage returns the language suggested by marker files in root,
// or "" when none is present.
func DetectLanguage(root string) string {
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil {
			return m.language
		}
	}
	return ""
}

type probe struct {
	name string
	args []string
	re   *regexp.Regexp
}

var semver = `(\d+\.\d+(?:\.\d+)?)`

var probes = map[string]probe{
	"go":         {"go", []string{"version"}, regexp.MustCompile(`go` + semver)},
	"rust":       {"rustc", []string{"--version"}, regexp.MustCompile(`rustc\s+` + semver)},
	"javascript": {"node", []string{"-v"}, regexp.MustCompile(`v?` + semver)},
	"typescript": {"node", []string{"-v"}, regexp.MustCompile(`v?` + semver)},
	"python":     {"python3", []string{"--version"}, regexp.MustCompile(`(?i)python\s+` + semver)},
	"ruby":       {"ruby", []string{"-v"}, regexp.MustCompile(`(?i)ruby\s+` + semver)},
	"java":       {"java", []string{"-version"}, regexp.MustCompile(`version\s+"?` + semver)},
	"kotlin":     {"java", []string{"-version"}, regexp.MustCompile(`version\s+"?` + semver)},
	"php":        {"php", []string{"-v"}, regexp.MustCompile(`PHP\s+` + semver)},
	"elixir":     {"elixir", []string{"--version"}, regexp.MustCompile(`Elixir\s+` + semver)},
}

// Runtime asks the toolchain behind language for its version.
func Runtime(ctx context.Context, language string) (Info, error) {
	p, ok := probes[language]
	if !ok {
		return Info{}, fmt.Errorf("no version probe for %q", language)
	}
	out, err := runCommand(ctx, p.name, p.args...)
	if err != nil {
		return Info{}, err
	}
	match := p.re.FindStringSubmatch(out)
	if len(match) < 2 {
		return Info{}, fmt.Errorf("unable to parse %s version from %q", p.name, out)
	}
	return Info{Name: language, Version: match[1]}, nil
}

// Hint returns the language hint for root. configured wins when set;
// otherwise the detected language is returned with its runtime version
// when the toolchain is installed.
func Hint(ctx context.Context, root, configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	language := DetectLanguage(root)
	if language == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	info, err := Runtime(ctx, language)
	if err != nil {
		return language
	}
	return info.String()
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Missing reports whether executing the command returns a not-found error.
func Missing(cmdErr error) bool {
	return errors.Is(cmdErr, exec.ErrNotFound)
}
