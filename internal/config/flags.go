package config

import "strings"

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Command  StringFlag
	Timeout  IntFlag
	Provider StringFlag
	Model    StringFlag
	Format   StringFlag
	Verbose  BoolFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.Command.Set {
		cfg.Test.Command = flags.Command.Value
	}
	if flags.Timeout.Set {
		cfg.Test.TimeoutSeconds = flags.Timeout.Value
	}
	if flags.Provider.Set {
		cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(flags.Provider.Value))
	}
	if flags.Model.Set {
		cfg.LLM.Model = flags.Model.Value
	}
	if flags.Format.Set {
		cfg.Format = strings.ToLower(strings.TrimSpace(flags.Format.Value))
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
}
