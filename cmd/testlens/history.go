package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/testlens/internal/ledger"
	"github.com/bgricker/testlens/internal/output"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored runs and per-test history",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	flags := cmd.Flags()
	flags.Int("limit", 10, "number of recent runs to show")
	flags.Bool("flaky", false, "show tests that fail intermittently")
	flags.Float64("min-rate", 0.1, "minimum failure rate for --flaky")
	flags.Int("recent", 0, "show tests that failed within this many days")
	flags.String("test", "", "show the history of one test")
	flags.Bool("tests", false, "show the history of every test")
	flags.Bool("clear", false, "delete all stored runs and history")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	limit, _ := flags.GetInt("limit")
	flaky, _ := flags.GetBool("flaky")
	minRate, _ := flags.GetFloat64("min-rate")
	recent, _ := flags.GetInt("recent")
	name, _ := flags.GetString("test")
	all, _ := flags.GetBool("tests")
	reset, _ := flags.GetBool("clear")

	led, err := a.openLedger()
	if err != nil {
		return err
	}
	defer led.Close()
	ctx := cmd.Context()

	var history []ledger.History
	switch {
	case reset:
		if err := led.ClearHistory(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(a.stdout, "History cleared.")
		return err
	case name != "":
		h, ok, err := led.GetTestHistory(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no history for test %q", name)
		}
		history = []ledger.History{h}
	case flaky:
		history, err = led.GetFlakyTests(ctx, minRate)
	case recent > 0:
		history, err = led.GetRecentlyFailedTests(ctx, recent)
	case all:
		history, err = led.GetAllTestHistory(ctx)
	default:
		runs, err := led.GetRecentRuns(ctx, limit)
		if err != nil {
			return err
		}
		if !a.pretty() {
			return output.NewJSON(a.stdout).Encode(nonNil(runs))
		}
		return a.prettyRenderer().RenderRuns(runs)
	}
	if err != nil {
		return err
	}
	if !a.pretty() {
		return output.NewJSON(a.stdout).Encode(nonNil(history))
	}
	return a.prettyRenderer().RenderHistory(history)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
