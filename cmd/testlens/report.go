package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/testlens/internal/config"
	"github.com/bgricker/testlens/internal/discovery"
	"github.com/bgricker/testlens/internal/ledger"
	"github.com/bgricker/testlens/internal/output"
	"github.com/bgricker/testlens/internal/risk"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate the HTML report for a stored run",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}
	flags := cmd.Flags()
	flags.Int64("run-id", 0, "run to report (default: latest)")
	flags.StringP("output", "o", "", "report path (default: report.output_dir/report.filename)")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	runID, _ := flags.GetInt64("run-id")
	path, _ := flags.GetString("output")
	if path == "" {
		path = a.cfg.ReportPath(a.root)
	} else {
		path = config.Resolve(a.root, path)
	}

	led, err := a.openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	ctx := cmd.Context()
	var rr *ledger.RunResults
	if runID > 0 {
		rr, err = led.GetRunResults(ctx, runID)
	} else {
		rr, err = led.GetLatestRunResults(ctx)
	}
	if errors.Is(err, ledger.ErrNotFound) {
		if runID > 0 {
			return fmt.Errorf("run %d not found", runID)
		}
		return errors.New("no runs recorded; run `testlens run` first")
	}
	if err != nil {
		return err
	}

	assessments := make([]risk.Assessment, 0, len(rr.Results))
	for _, r := range rr.Results {
		assessments = append(assessments, risk.Assessment{Index: r.TestIndex, Name: r.TestName, File: r.TestFile, Score: r.RiskScore})
	}
	ranked := a.prioritizer().Prioritize(assessments)

	err = output.WriteHTML(path, output.HTMLData{
		Title:    a.cfg.Report.Title,
		Project:  a.cfg.Project.Name,
		RunID:    rr.Run.ID,
		Commit:   rr.Run.CommitHash,
		Branch:   rr.Run.Branch,
		Command:  rr.Run.Command,
		Run:      rr.Parsed(),
		Analyses: rr.Analyses,
		Risk:     ranked,
	})
	if err != nil {
		return err
	}

	rel := discovery.RelOrClean(a.root, path)
	if !a.pretty() {
		return output.NewJSON(a.stdout).Encode(map[string]any{"run_id": rr.Run.ID, "report_path": rel})
	}
	_, err = fmt.Fprintf(a.stdout, "Report for run #%d written to %s\n", rr.Run.ID, rel)
	return err
}
