package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bgricker/testlens/internal/filter"
	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/output"
	"github.com/bgricker/testlens/internal/report"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Interpret already captured test output without running anything",
		Args:  cobra.NoArgs,
		RunE:  runClassify,
	}
	flags := cmd.Flags()
	flags.String("stdout", "", "file holding the captured stdout (- for stdin)")
	flags.String("stderr", "", "file holding the captured stderr (- for stdin)")
	flags.Int("exit-code", 0, "exit code of the test command")
	flags.Int64("duration-ms", 0, "duration of the test command in milliseconds")
	flags.String("command", "", "command that produced the output")
	flags.Bool("skip-llm", false, "skip the interpreter and use heuristic counts")
	flags.Bool("no-analyze", false, "classify only, do not analyze failures")
	flags.StringArray("analyze", nil, "only analyze failures matching pattern (substring or /regex/)")
	addInterpreterFlags(cmd)
	_ = cmd.MarkFlagRequired("stdout")
	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	stdoutPath, _ := flags.GetString("stdout")
	stderrPath, _ := flags.GetString("stderr")
	exitCode, _ := flags.GetInt("exit-code")
	durationMS, _ := flags.GetInt64("duration-ms")
	skipLLM, _ := flags.GetBool("skip-llm")
	noAnalyze, _ := flags.GetBool("no-analyze")
	rawPatterns, _ := flags.GetStringArray("analyze")
	patterns, err := filter.Compile(rawPatterns)
	if err != nil {
		return err
	}
	if stdoutPath == "-" && stderrPath == "-" {
		return errors.New("--stdout and --stderr cannot both read stdin")
	}

	stdout, err := readCaptured(cmd.InOrStdin(), stdoutPath)
	if err != nil {
		return err
	}
	stderr, err := readCaptured(cmd.InOrStdin(), stderrPath)
	if err != nil {
		return err
	}
	raw := report.RawExecution{
		Stdout:     stdout,
		Stderr:     stderr,
		ExitCode:   exitCode,
		DurationMS: durationMS,
		Command:    a.cfg.Test.Command,
	}

	ctx := cmd.Context()
	gw := a.gateway(ctx, skipLLM)
	tr := interpreter.NewTranscript()
	parsed, check := a.classify(ctx, gw, raw, tr)

	rep := output.Report{Run: parsed, CrossCheck: check, Transcript: tr.Interactions()}
	if !noAnalyze {
		rep.Changes = a.changeContext(ctx)
		rep.Analyses = a.correlateFailures(ctx, gw, parsed, rep.Changes, patterns, tr)
		rep.Transcript = tr.Interactions()
	}
	if err := a.render(rep); err != nil {
		return fmt.Errorf("render results: %w", err)
	}
	return verdict(parsed, raw)
}

func readCaptured(stdin io.Reader, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read captured output %q: %w", path, err)
		}
		return string(data), nil
	}
}
