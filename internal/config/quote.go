package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Quote modes.
const (
	QuoteBaseInput  = "base-input"
	QuoteBaseOutput = "base-output"
	QuoteDeposit    = "deposit"
	QuoteWithdraw   = "withdraw"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Engine      EngineConfig
	Pool        string
	Mode        string
	Amount      uint64
	ZeroForOne  bool
	SlippageBps uint64
	Epoch       uint64
	LogLevel    string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"mode":         QuoteBaseInput,
		"zero-for-one": true,
		"slippage-bps": uint64(50),
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Engine:      engineConfig(v),
		Pool:        v.GetString("pool"),
		Mode:        strings.ToLower(v.GetString("mode")),
		Amount:      v.GetUint64("amount"),
		ZeroForOne:  v.GetBool("zero-for-one"),
		SlippageBps: v.GetUint64("slippage-bps"),
		Epoch:       v.GetUint64("epoch"),
		LogLevel:    v.GetString("log-level"),
	}
	if cfg.Pool == "" {
		return cfg, fmt.Errorf("pool is required")
	}
	switch cfg.Mode {
	case QuoteBaseInput, QuoteBaseOutput, QuoteDeposit, QuoteWithdraw:
	default:
		return cfg, fmt.Errorf("unknown quote mode %q", cfg.Mode)
	}
	return cfg, cfg.Engine.Validate()
}
