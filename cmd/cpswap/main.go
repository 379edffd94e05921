package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "cpswap",
		Short:        "Constant-product pool settlement engine",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("program-id", "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C", "program id pool addresses derive from")
	flags.String("admin", "", "admin public key")
	flags.String("create-pool-fee-receiver", "", "token account receiving the create-pool fee")
	flags.StringSlice("mint-whitelist", nil, "token-2022 mints allowed despite their extensions (comma-separated)")
	flags.Uint64("compression-delay", 100, "slots a record stays idle before it can be demoted")
	flags.String("rent-recipient", "", "account credited with reclaimed rent, defaults to admin")
	flags.String("address-tree", "amt1Ayt45jfbdw5YSo7iz6WZxUmnZsQTYXy82hVwyC2", "address tree cold addresses derive from")
	flags.Bool("hydrate", false, "promote cold records operations need before running them")
	flags.String("store", "memory", "record store (memory, postgres)")
	flags.String("snapshot", "./data/state.rlp", "memory store snapshot file")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a JSONL file of pool operations",
		RunE:  runApply,
	}

	applyCmd.Flags().String("in", "./data/operations.jsonl", "input operations JSONL")
	applyCmd.Flags().String("events", "./data/events.jsonl", "output events JSONL")
	applyCmd.Flags().String("errors", "./data/apply_errors.jsonl", "failed operations JSONL")
	applyCmd.Flags().Bool("stop-on-error", false, "stop at the first failed operation")

	root.AddCommand(applyCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap, deposit or withdrawal against current pool state",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("pool", "", "pool address")
	quoteCmd.Flags().String("mode", "base-input", "quote mode (base-input, base-output, deposit, withdraw)")
	quoteCmd.Flags().Uint64("amount", 0, "input, output or lp token amount")
	quoteCmd.Flags().Bool("zero-for-one", true, "swap token 0 for token 1")
	quoteCmd.Flags().Uint64("slippage-bps", 50, "slippage tolerance in basis points")
	quoteCmd.Flags().Uint64("epoch", 0, "epoch for transfer fee schedules, 0 means the pool's recent epoch")

	root.AddCommand(quoteCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Demote idle records to the cold tier",
		RunE:  runSweep,
	}

	sweepCmd.Flags().Uint64("slot", 0, "current slot")
	sweepCmd.Flags().Uint64("batch-size", 1000, "slots per batch")
	sweepCmd.Flags().String("checkpoint", "./data/sweep_checkpoint.json", "checkpoint file path")
	sweepCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	sweepCmd.Flags().String("checkpoint-name", "sweep", "checkpoint row name for the postgres store")
	sweepCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	sweepCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	sweepCmd.Flags().Bool("dry-run", false, "report eligible records without demoting them")
	sweepCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address while sweeping")

	root.AddCommand(sweepCmd)

	promoteCmd := &cobra.Command{
		Use:   "promote",
		Short: "Restore cold records to the hot tier",
		RunE:  runPromote,
	}

	promoteCmd.Flags().StringSlice("cold-address", nil, "cold addresses to promote (comma-separated hex)")
	promoteCmd.Flags().Uint64("slot", 0, "current slot")

	root.AddCommand(promoteCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate pool events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/events.jsonl", "input events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("state-name", "aggregate", "state row name prefix when no state file is set")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
