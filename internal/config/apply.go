package config

import (
	"github.com/spf13/pflag"
)

// ApplyConfig holds configuration for the apply command.
type ApplyConfig struct {
	Engine      EngineConfig
	In          string
	Events      string
	Errors      string
	StopOnError bool
	LogLevel    string
}

// LoadApply merges config file, environment variables, and flags into ApplyConfig.
func LoadApply(cfgFile string, flags *pflag.FlagSet) (ApplyConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"in":            "./data/operations.jsonl",
		"events":        "./data/events.jsonl",
		"errors":        "./data/apply_errors.jsonl",
		"stop-on-error": false,
	})
	if err != nil {
		return ApplyConfig{}, err
	}

	cfg := ApplyConfig{
		Engine:      engineConfig(v),
		In:          v.GetString("in"),
		Events:      v.GetString("events"),
		Errors:      v.GetString("errors"),
		StopOnError: v.GetBool("stop-on-error"),
		LogLevel:    v.GetString("log-level"),
	}
	return cfg, cfg.Engine.Validate()
}
