// Package runner executes the project's test command through a shell and
// captures what it printed.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bgricker/testlens/internal/report"
)

// DefaultTimeout bounds a test command when Options.Timeout is zero.
const DefaultTimeout = 300 * time.Second

// waitDelay bounds how long Wait blocks on pipes held open by orphaned
// children after the shell is killed.
const waitDelay = 2 * time.Second

// Options configure how the test command is executed.
type Options struct {
	Root string
	// WorkingDirectory is resolved against Root when relative.
	WorkingDirectory string
	// Shell overrides the default "sh -c" ("cmd /C" on Windows), e.g. "bash".
	Shell  string
	Stdout io.Writer
	Stderr io.Writer
	// Verbose streams output to Stdout and Stderr while capturing it.
	Verbose bool
	// Env overlays the base environment.
	Env     map[string]string
	BaseEnv []string
	Timeout time.Duration
	Now     func() time.Time
}

// Executor runs one test command at a time.
type Executor struct {
	opts Options
}

// New creates an executor with the supplied options.
func New(opts Options) *Executor {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.BaseEnv == nil {
		opts.BaseEnv = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Executor{opts: opts}
}

// Execute runs command and never fails: a timeout or a command that cannot
// be started is reported as exit code -1 with a diagnostic on Stderr.
func (e *Executor) Execute(ctx context.Context, command string) report.RawExecution {
	raw := report.RawExecution{Command: command}
	start := e.opts.Now()
	elapsed := func() int64 { return e.opts.Now().Sub(start).Milliseconds() }

	env := mergeEnv(e.opts.BaseEnv, e.opts.Env)
	args, err := commandArgs(e.opts.Shell, command, env)
	if err != nil {
		return startFailure(raw, err, elapsed())
	}
	dir, err := resolveWorkingDirectory(e.opts.Root, e.opts.WorkingDirectory)
	if err != nil {
		return startFailure(raw, err, elapsed())
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf strings.Builder
	if e.opts.Verbose {
		cmd.Stdout = io.MultiWriter(e.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(e.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		raw.ExitCode = -1
		raw.Stderr = fmt.Sprintf("Test execution timed out after %d seconds", int64(e.opts.Timeout.Seconds()))
		raw.DurationMS = e.opts.Timeout.Milliseconds()
		return raw
	}

	raw.Stdout = stdoutBuf.String()
	raw.Stderr = stderrBuf.String()
	raw.DurationMS = elapsed()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return startFailure(raw, err, raw.DurationMS)
	}
	raw.ExitCode = exitCode(err)
	return raw
}

func startFailure(raw report.RawExecution, err error, durationMS int64) report.RawExecution {
	raw.Stdout = ""
	raw.Stderr = "Error executing test command: " + err.Error()
	raw.ExitCode = -1
	raw.DurationMS = durationMS
	return raw
}

func commandArgs(shellSpec string, script string, env []string) ([]string, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.New("empty test command")
	}
	shellSpec = strings.TrimSpace(shellSpec)
	if shellSpec == "" {
		if runtime.GOOS == "windows" {
			return []string{"cmd", "/C", script}, nil
		}
		return []string{"sh", "-c", script}, nil
	}

	fields := strings.Fields(shellSpec)
	shell := fields[0]
	args := append([]string{}, fields[1:]...)
	base := strings.ToLower(filepath.Base(shell))

	switch base {
	case "bash", "zsh", "ksh", "fish":
		// Login shells pick up version managers such as asdf.
		args = append(args, "-l", "-c", asdfInit(env, base)+script)
	case "sh", "dash":
		args = append(args, "-c", script)
	case "cmd", "cmd.exe":
		args = append(args, "/C", script)
	case "pwsh", "powershell", "powershell.exe":
		args = append(args, "-Command", script)
	default:
		args = append(args, script)
	}
	return append([]string{shell}, args...), nil
}

func resolveWorkingDirectory(root, dir string) (string, error) {
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == "." {
		return root, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("working directory %q not found", dir)
		}
		return "", fmt.Errorf("stat working directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %q is not a directory", dir)
	}
	return dir, nil
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if key, value, ok := strings.Cut(kv, "="); ok {
			envMap[key] = value
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func envValue(env []string, key string) string {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// asdfInit returns a prefix that sources asdf for the given shell, or "".
func asdfInit(env []string, shellBase string) string {
	var script string
	if dir := envValue(env, "ASDF_DIR"); dir != "" {
		script = filepath.Join(dir, "asdf.sh")
		if _, err := os.Stat(script); err != nil {
			script = ""
		}
	}
	if script == "" {
		home := envValue(env, "HOME")
		if home == "" {
			home, _ = os.UserHomeDir()
		}
		if home != "" {
			script = filepath.Join(home, ".asdf", "asdf.sh")
			if _, err := os.Stat(script); err != nil {
				script = ""
			}
		}
	}
	if script == "" {
		return ""
	}
	switch shellBase {
	case "bash", "zsh":
		return fmt.Sprintf("source %q && ", script)
	case "ksh":
		return fmt.Sprintf(". %q && ", script)
	case "fish":
		if fish := strings.TrimSuffix(script, ".sh") + ".fish"; fileExists(fish) {
			return fmt.Sprintf("source %q; ", fish)
		}
		return ""
	default:
		return ""
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
