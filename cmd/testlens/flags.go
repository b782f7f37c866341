package main

import (
	"fmt"

	"github.com/bgricker/testlens/internal/config"
	"github.com/spf13/cobra"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("command") {
		v, err := flags.GetString("command")
		if err != nil {
			return values, fmt.Errorf("parse --command: %w", err)
		}
		values.Command = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("timeout") {
		v, err := flags.GetInt("timeout")
		if err != nil {
			return values, fmt.Errorf("parse --timeout: %w", err)
		}
		values.Timeout = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("provider") {
		v, err := flags.GetString("provider")
		if err != nil {
			return values, fmt.Errorf("parse --provider: %w", err)
		}
		values.Provider = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("model") {
		v, err := flags.GetString("model")
		if err != nil {
			return values, fmt.Errorf("parse --model: %w", err)
		}
		values.Model = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return values, fmt.Errorf("parse --format: %w", err)
		}
		values.Format = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}

// addInterpreterFlags registers the flags shared by commands that talk to
// the interpreter.
func addInterpreterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("provider", "", "interpreter provider (ollama|openrouter|gemini)")
	flags.String("model", "", "interpreter model")
}
