package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpSwap/internal/config"
	"cpSwap/internal/ledger"
	"cpSwap/internal/sweep"
)

type promoted struct {
	ColdAddress string `json:"cold_address"`
	Address     string `json:"address"`
	Kind        string `json:"kind"`
	Written     bool   `json:"written"`
}

func runPromote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPromote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	coldAddresses, err := sweep.ParseColdAddresses(cfg.ColdAddresses)
	if err != nil {
		return err
	}
	if len(coldAddresses) == 0 {
		return fmt.Errorf("cold address list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := openEngine(ctx, cfg.Engine, nil, logger)
	if err != nil {
		return err
	}
	defer d.close()

	call := ledger.Call{Clock: ledger.Clock{Slot: cfg.Slot}}
	out := make([]promoted, 0, len(coldAddresses))
	var promoteErr error
	for _, coldAddress := range coldAddresses {
		proof, err := d.verifier.Issue(ctx, coldAddress, cfg.Slot)
		if err != nil {
			promoteErr = fmt.Errorf("issue proof for %s: %w", coldAddress.Hex(), err)
			break
		}
		res, err := d.engine.PromoteRecord(ctx, call, proof)
		if err != nil {
			promoteErr = fmt.Errorf("promote %s: %w", coldAddress.Hex(), err)
			break
		}
		logger.Info("record promoted",
			zap.String("cold_address", coldAddress.Hex()),
			zap.String("address", proof.Address.String()),
			zap.Stringer("kind", proof.Kind),
			zap.Bool("written", res.Written),
		)
		out = append(out, promoted{
			ColdAddress: coldAddress.Hex(),
			Address:     proof.Address.String(),
			Kind:        proof.Kind.String(),
			Written:     res.Written,
		})
	}

	if err := d.persist(); err != nil {
		return err
	}
	if promoteErr != nil {
		return promoteErr
	}
	return printJSON(cmd.OutOrStdout(), out)
}
