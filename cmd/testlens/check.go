package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bgricker/testlens/internal/interpreter"
	"github.com/bgricker/testlens/internal/output"
	"github.com/bgricker/testlens/internal/version"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the interpreter and toolchain are reachable",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
	addInterpreterFlags(cmd)
	return cmd
}

type checkResult struct {
	Provider  string   `json:"provider"`
	Model     string   `json:"model"`
	Available bool     `json:"available"`
	Models    []string `json:"models,omitempty"`
	Language  string   `json:"language,omitempty"`
	Runtime   string   `json:"runtime,omitempty"`
	Problems  []string `json:"problems,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	res := checkResult{Provider: a.cfg.LLM.Provider}

	gw, err := a.newGateway(ctx)
	if err != nil {
		res.Problems = append(res.Problems, err.Error())
	} else {
		res.Model = gw.Model()
		res.Available = gw.IsAvailable(ctx)
		if lister, ok := interpreter.AsModelLister(gw); ok && res.Available {
			models, err := lister.ListModels(ctx)
			if err != nil {
				res.Problems = append(res.Problems, fmt.Sprintf("list models: %v", err))
			}
			res.Models = models
		}
		if !res.Available {
			res.Problems = append(res.Problems, fmt.Sprintf("%s is not reachable", gw.Name()))
		}
	}

	res.Language = a.cfg.Project.Language
	if res.Language == "" {
		res.Language = version.DetectLanguage(a.root)
	}
	if res.Language != "" {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		info, err := version.Runtime(probeCtx, res.Language)
		cancel()
		switch {
		case err == nil:
			res.Runtime = info.String()
		case version.Missing(err):
			res.Problems = append(res.Problems, fmt.Sprintf("%s toolchain not installed", res.Language))
		default:
			a.logger.Debug("runtime probe failed", "language", res.Language, "err", err)
		}
	}

	if !a.pretty() {
		if err := output.NewJSON(a.stdout).Encode(res); err != nil {
			return err
		}
	} else {
		writeCheck(a.stdout, res)
	}
	if !res.Available {
		return fmt.Errorf("interpreter %s unavailable", res.Provider)
	}
	return nil
}

func writeCheck(w io.Writer, res checkResult) {
	status := "unavailable"
	if res.Available {
		status = "available"
	}
	fmt.Fprintf(w, "Provider: %s\n", res.Provider)
	if res.Model != "" {
		fmt.Fprintf(w, "Model:    %s (%s)\n", res.Model, status)
	}
	for _, m := range res.Models {
		fmt.Fprintf(w, "  - %s\n", m)
	}
	if res.Language != "" {
		runtime := res.Runtime
		if runtime == "" {
			runtime = res.Language
		}
		fmt.Fprintf(w, "Language: %s\n", runtime)
	}
	for _, p := range res.Problems {
		fmt.Fprintf(w, "warning: %s\n", p)
	}
}
