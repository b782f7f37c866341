package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/bgricker/testlens/internal/changes"
	"github.com/bgricker/testlens/internal/config"
	"github.com/bgricker/testlens/internal/discovery"
	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/ledger"
	"github.com/bgricker/testlens/internal/output"
)

// probeTTL bounds how long an availability probe is trusted within a run.
const probeTTL = time.Minute

// app is the state shared by every command after flags and config are read.
type app struct {
	cfg     config.Config
	root    string
	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
	noColor bool

	hintsOnce sync.Once
	hintsText string
}

func newApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	logger, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return nil, err
	}
	noColor, _ := flags.GetBool("no-color")

	cfg, root, err := loadConfig(cmd, logger)
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(root); err != nil {
		logger.Warn("dotenv not loaded", "err", err)
	}
	return &app{
		cfg:     cfg,
		root:    root,
		logger:  logger,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
		noColor: noColor,
	}, nil
}

func loadConfig(cmd *cobra.Command, logger *slog.Logger) (config.Config, string, error) {
	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, "", fmt.Errorf("parse --config: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg := config.Default()
	root := wd
	path, err := discovery.FindConfig(wd, explicit)
	switch {
	case errors.Is(err, discovery.ErrNoConfig):
		logger.Info("no config file found, using defaults", "dir", wd)
	case err != nil:
		return config.Config{}, "", err
	default:
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, "", err
		}
		root = discovery.ProjectRoot(path)
		logger.Debug("config loaded", "path", path, "root", root)
	}

	values, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, values)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}
	return cfg, root, nil
}

func (a *app) pretty() bool {
	return strings.ToLower(a.cfg.Format) == config.FormatPretty
}

func (a *app) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.logger.Warn(msg)
	if a.pretty() {
		fmt.Fprintf(a.stderr, "warning: %s\n", msg)
	}
}

// gateway builds the configured interpreter. A provider that cannot be
// constructed (for example a missing API key) degrades to the disabled
// gateway so the run still completes with heuristic counts.
func (a *app) gateway(ctx context.Context, skip bool) interpreter.Gateway {
	if skip {
		return interpreter.Disabled()
	}
	gw, err := a.newGateway(ctx)
	if err != nil {
		a.warn("interpreter disabled: %v", err)
		return interpreter.Disabled()
	}
	return gw
}

func (a *app) newGateway(ctx context.Context) (interpreter.Gateway, error) {
	llm := a.cfg.LLM
	return interpreter.New(ctx, interpreter.Config{
		Provider:  llm.Provider,
		Model:     llm.Model,
		BaseURL:   llm.BaseURL,
		APIKeyEnv: llm.APIKeyEnv,
		Timeout:   a.cfg.LLMTimeout(),
	}, interpreter.WithLogging(a.logger), interpreter.WithProbeCache(probeTTL))
}

func (a *app) openLedger() (*ledger.Ledger, error) {
	path := a.cfg.DatabasePath(a.root)
	led, err := ledger.Open(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("ledger opened", "path", path)
	return led, nil
}

// changeContext reads git changes when enabled. Failures are warnings.
func (a *app) changeContext(ctx context.Context) *changes.Context {
	if !a.cfg.Git.Enabled {
		return nil
	}
	cc, err := changes.NewReader(a.root, a.logger).Read(ctx, changes.Options{
		CompareRef:         a.cfg.Git.CompareRef,
		IncludeUncommitted: a.cfg.Git.IncludeUncommitted,
		IgnoreUntracked:    a.cfg.Git.IgnoreUntracked,
	})
	if err != nil {
		a.warn("change context unavailable: %v", err)
		return nil
	}
	return cc
}

// hints reads the hints file once per command.
func (a *app) hints() string {
	a.hintsOnce.Do(func() {
		text, err := a.cfg.Hints(a.root)
		if err != nil {
			a.warn("%v", err)
		}
		a.hintsText = text
	})
	return a.hintsText
}

func (a *app) prettyRenderer() *output.PrettyRenderer {
	return output.NewPretty(a.stdout, a.noColor)
}
