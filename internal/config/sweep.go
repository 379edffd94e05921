package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SweepConfig holds configuration for the sweep command.
type SweepConfig struct {
	Engine            EngineConfig
	Slot              uint64
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	CheckpointName    string
	MaxRetries        int
	RetryBackoff      time.Duration
	DryRun            bool
	MetricsAddr       string
	LogLevel          string
}

// LoadSweep merges config file, environment variables, and flags into SweepConfig.
func LoadSweep(cfgFile string, flags *pflag.FlagSet) (SweepConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"batch-size":         uint64(1000),
		"checkpoint":         "./data/sweep_checkpoint.json",
		"checkpoint-enabled": true,
		"checkpoint-name":    "sweep",
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return SweepConfig{}, err
	}

	cfg := SweepConfig{
		Engine:            engineConfig(v),
		Slot:              v.GetUint64("slot"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		CheckpointName:    v.GetString("checkpoint-name"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		DryRun:            v.GetBool("dry-run"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, cfg.Engine.Validate()
}
