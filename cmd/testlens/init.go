package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bgricker/testlens/internal/ci"
	"github.com/bgricker/testlens/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .testlens.yml",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	flags := cmd.Flags()
	flags.StringP("output", "o", ".testlens.yml", "path of the config file to write")
	flags.Bool("force", false, "overwrite an existing file")
	flags.Bool("detect", true, "take the test command from the project's GitHub Actions workflows")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("output")
	force, _ := flags.GetBool("force")
	detect, _ := flags.GetBool("detect")
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}

	cfg := config.Example()
	var detected string
	if detect {
		step, ok, err := ci.DetectTestStep(filepath.Dir(path))
		switch {
		case err != nil && !errors.Is(err, ci.ErrNoWorkflows):
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		case ok:
			applyStep(&cfg, step)
			detected = fmt.Sprintf("Detected test command from %s (job %s, step %q)\n", step.Workflow, step.Job, step.Name)
		}
	}

	if err := config.Write(path, cfg, force); err != nil {
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%sWrote %s\n", detected, path)
	return err
}

func applyStep(cfg *config.Config, step ci.Step) {
	cfg.Test.Command = step.Run
	if step.WorkingDirectory != "" {
		cfg.Test.WorkingDirectory = step.WorkingDirectory
	}
	cfg.Test.Shell = step.Shell
	cfg.Test.Environment = step.Env
}
