package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CPSWAP_PG_DSN.
const EnvPrefix = "CPSWAP"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// EngineConfig holds the deployment settings every command shares.
type EngineConfig struct {
	ProgramID             string
	Admin                 string
	CreatePoolFeeReceiver string
	MintWhitelist         []string
	CompressionDelay      uint64
	RentRecipient         string
	AddressTree           string
	Hydrate               bool
	Store                 string
	Snapshot              string
	PGDSN                 string
}

// Validate checks the settings that cannot be defaulted.
func (c EngineConfig) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.ProgramID == "" {
		return fmt.Errorf("program-id is required")
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("program-id", "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	v.SetDefault("address-tree", "amt1Ayt45jfbdw5YSo7iz6WZxUmnZsQTYXy82hVwyC2")
	v.SetDefault("compression-delay", uint64(100))
	v.SetDefault("store", StoreMemory)
	v.SetDefault("snapshot", "./data/state.rlp")
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func engineConfig(v *viper.Viper) EngineConfig {
	return EngineConfig{
		ProgramID:             v.GetString("program-id"),
		Admin:                 v.GetString("admin"),
		CreatePoolFeeReceiver: v.GetString("create-pool-fee-receiver"),
		MintWhitelist:         getStringSlice(v, "mint-whitelist"),
		CompressionDelay:      v.GetUint64("compression-delay"),
		RentRecipient:         v.GetString("rent-recipient"),
		AddressTree:           v.GetString("address-tree"),
		Hydrate:               v.GetBool("hydrate"),
		Store:                 strings.ToLower(v.GetString("store")),
		Snapshot:              v.GetString("snapshot"),
		PGDSN:                 v.GetString("pg-dsn"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
