package config

import (
	"github.com/spf13/pflag"
)

// PromoteConfig holds configuration for the promote command.
type PromoteConfig struct {
	Engine        EngineConfig
	ColdAddresses []string
	Slot          uint64
	LogLevel      string
}

// LoadPromote merges config file, environment variables, and flags into PromoteConfig.
func LoadPromote(cfgFile string, flags *pflag.FlagSet) (PromoteConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return PromoteConfig{}, err
	}

	cfg := PromoteConfig{
		Engine:        engineConfig(v),
		ColdAddresses: getStringSlice(v, "cold-address"),
		Slot:          v.GetUint64("slot"),
		LogLevel:      v.GetString("log-level"),
	}
	return cfg, cfg.Engine.Validate()
}
