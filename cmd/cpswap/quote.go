package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpSwap/internal/config"
	"cpSwap/internal/ledger"
	"cpSwap/internal/quote"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolID, err := parseKey("pool", cfg.Pool)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := openEngine(ctx, cfg.Engine, nil, logger)
	if err != nil {
		return err
	}
	defer d.close()

	snapshot, err := loadQuotePool(ctx, d.engine, poolID, cfg.Epoch)
	if err != nil {
		return err
	}

	logger.Debug("quote",
		zap.String("pool", cfg.Pool),
		zap.String("mode", cfg.Mode),
		zap.Uint64("amount", cfg.Amount),
		zap.Uint64("slippage_bps", cfg.SlippageBps),
		zap.Uint64("epoch", snapshot.Epoch),
	)

	var result any
	switch cfg.Mode {
	case config.QuoteBaseInput:
		result, err = quote.SwapBaseInput(snapshot, cfg.ZeroForOne, cfg.Amount, cfg.SlippageBps)
	case config.QuoteBaseOutput:
		result, err = quote.SwapBaseOutput(snapshot, cfg.ZeroForOne, cfg.Amount, cfg.SlippageBps)
	case config.QuoteDeposit:
		result, err = quote.Deposit(snapshot, cfg.Amount, cfg.SlippageBps)
	case config.QuoteWithdraw:
		result, err = quote.Withdraw(snapshot, cfg.Amount, cfg.SlippageBps)
	}
	if err != nil {
		return fmt.Errorf("quote %s: %w", cfg.Mode, err)
	}

	out := map[string]any{
		"pool":  cfg.Pool,
		"mode":  cfg.Mode,
		"epoch": snapshot.Epoch,
		"quote": result,
	}
	if twap, err := loadTWAP(ctx, d.engine, snapshot.State.ObservationKey); err != nil {
		logger.Warn("twap unavailable", zap.String("observation", snapshot.State.ObservationKey.String()), zap.Error(err))
	} else {
		out["twap"] = twap
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func loadTWAP(ctx context.Context, engine *ledger.Engine, observation solana.PublicKey) (quote.TWAP, error) {
	obs, err := engine.LoadObservation(ctx, observation)
	if err != nil {
		return quote.TWAP{}, fmt.Errorf("load observation: %w", err)
	}
	return quote.OracleTWAP(obs)
}

// loadQuotePool reads every record a quote prices against.
func loadQuotePool(ctx context.Context, engine *ledger.Engine, poolID solana.PublicKey, epoch uint64) (quote.Pool, error) {
	p, err := engine.LoadPool(ctx, poolID)
	if err != nil {
		return quote.Pool{}, fmt.Errorf("load pool: %w", err)
	}
	ammConfig, err := engine.LoadAmmConfig(ctx, p.AmmConfig)
	if err != nil {
		return quote.Pool{}, fmt.Errorf("load amm config: %w", err)
	}
	mint0, err := engine.LoadMint(ctx, p.Token0Mint)
	if err != nil {
		return quote.Pool{}, fmt.Errorf("load token 0 mint: %w", err)
	}
	mint1, err := engine.LoadMint(ctx, p.Token1Mint)
	if err != nil {
		return quote.Pool{}, fmt.Errorf("load token 1 mint: %w", err)
	}
	vault0, err := engine.LoadAccount(ctx, p.Token0Vault)
	if err != nil {
		return quote.Pool{}, fmt.Errorf("load token 0 vault: %w", err)
	}
	vault1, err := engine.LoadAccount(ctx, p.Token1Vault)
	if err != nil {
		return quote.Pool{}, fmt.Errorf("load token 1 vault: %w", err)
	}
	if epoch == 0 {
		epoch = p.RecentEpoch
	}
	return quote.Pool{
		State:  p,
		Config: ammConfig,
		Mint0:  mint0,
		Mint1:  mint1,
		Vault0: vault0.Amount,
		Vault1: vault1.Amount,
		Epoch:  epoch,
	}, nil
}
