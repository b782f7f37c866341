package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/testlens/internal/discovery"
	"github.com/bgricker/testlens/internal/filter"
	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/ledger"
	"github.com/bgricker/testlens/internal/output"
	"github.com/bgricker/testlens/internal/risk"
	"github.com/bgricker/testlens/internal/runner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the test command, interpret its output and analyze failures",
		Args:  cobra.NoArgs,
		RunE:  runTests,
	}
	flags := cmd.Flags()
	flags.String("command", "", "test command to run (overrides test.command)")
	flags.Int("timeout", 0, "test command timeout in seconds")
	flags.Bool("skip-llm", false, "skip the interpreter and use heuristic counts")
	flags.Bool("no-report", false, "do not write the HTML report")
	flags.StringArray("analyze", nil, "only analyze failures matching pattern (substring or /regex/)")
	flags.Bool("summary", false, "ask the interpreter for a summary of the failures")
	flags.Bool("priority-only", false, "run only the highest-risk tests from earlier runs (names are appended to the test command)")
	flags.Int("priority-limit", defaultPriorityLimit, "number of tests --priority-only selects")
	addInterpreterFlags(cmd)
	return cmd
}

func runTests(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	skipLLM, _ := flags.GetBool("skip-llm")
	noReport, _ := flags.GetBool("no-report")
	wantSummary, _ := flags.GetBool("summary")
	priorityOnly, _ := flags.GetBool("priority-only")
	priorityLimit, _ := flags.GetInt("priority-limit")
	rawPatterns, _ := flags.GetStringArray("analyze")
	patterns, err := filter.Compile(rawPatterns)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	cc := a.changeContext(ctx)
	led, err := a.openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	command := a.cfg.Test.Command
	if priorityOnly {
		command = a.priorityCommand(ctx, led, command, priorityLimit)
	}

	var commit, branch string
	if cc != nil {
		commit, branch = cc.CurrentCommit, cc.CurrentBranch
	}
	run, err := led.CreateRun(ctx, commit, branch)
	if err != nil {
		return err
	}
	a.logger.Info("run started", "id", run.ID, "command", command)

	stream := a.stdout
	if !a.pretty() {
		stream = a.stderr
	}
	executor := runner.New(runner.Options{
		Root:             a.root,
		WorkingDirectory: a.cfg.Test.WorkingDirectory,
		Shell:            a.cfg.Test.Shell,
		Stdout:           stream,
		Stderr:           a.stderr,
		Verbose:          a.cfg.Verbose,
		Env:              a.cfg.Test.Environment,
		Timeout:          a.cfg.TestTimeout(),
	})
	raw := executor.Execute(ctx, command)

	gw := a.gateway(ctx, skipLLM)
	tr := interpreter.NewTranscript()
	parsed, check := a.classify(ctx, gw, raw, tr)
	analyses := a.correlateFailures(ctx, gw, parsed, cc, patterns, tr)

	scorer := risk.NewScorer(led)
	assessments, err := scorer.Assess(ctx, parsed.Outcomes, cc, analyses)
	if err != nil {
		a.warn("risk scoring failed: %v", err)
	} else if err := scorer.Save(ctx, assessments); err != nil {
		a.warn("risk analysis not saved: %v", err)
	}
	scores := risk.ScoreByIndex(assessments)

	results := make([]*ledger.Result, 0, len(parsed.Outcomes))
	for _, o := range parsed.Outcomes {
		r := ledger.ResultFrom(run.ID, o, scores[o.Index])
		results = append(results, &r)
	}
	if err := led.AddResults(ctx, results); err != nil {
		return err
	}
	if err := led.AddAnalyses(ctx, run.ID, analyses); err != nil {
		return err
	}
	run.Command = raw.Command
	run.Apply(parsed)
	if err := led.FinishRun(ctx, run); err != nil {
		return err
	}

	ranked := a.prioritizer().Prioritize(assessments)
	var summary string
	if wantSummary {
		summary = a.summarize(ctx, gw, parsed, ranked, tr)
	}

	rep := output.Report{
		RunID:      run.ID,
		Run:        parsed,
		Analyses:   analyses,
		Changes:    cc,
		CrossCheck: check,
		Risk:       ranked,
		Summary:    summary,
		Transcript: tr.Interactions(),
	}
	if !noReport {
		path := a.cfg.ReportPath(a.root)
		err := output.WriteHTML(path, output.HTMLData{
			Title:    a.cfg.Report.Title,
			Project:  a.cfg.Project.Name,
			RunID:    run.ID,
			Commit:   commit,
			Branch:   branch,
			Command:  raw.Command,
			Run:      parsed,
			Analyses: analyses,
			Changes:  cc,
			Risk:     ranked,
			Summary:  summary,
		})
		if err != nil {
			a.warn("%v", err)
		} else {
			rep.ReportPath = discovery.RelOrClean(a.root, path)
		}
	}

	if err := a.render(rep); err != nil {
		return fmt.Errorf("render results: %w", err)
	}
	return verdict(parsed, raw)
}
