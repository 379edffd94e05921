package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpSwap/internal/config"
	"cpSwap/internal/ledger"
	"cpSwap/internal/model"
	"cpSwap/internal/storage"
)

func runApply(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadApply(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	events := storage.NewJsonlSink(cfg.Events)
	failures := storage.NewJsonlSink(cfg.Errors)

	d, err := openEngine(ctx, cfg.Engine, events, logger)
	if err != nil {
		return err
	}
	defer d.close()

	logger.Info("apply start",
		zap.String("in", cfg.In),
		zap.String("events", cfg.Events),
		zap.String("errors", cfg.Errors),
		zap.String("store", cfg.Engine.Store),
		zap.Bool("hydrate", cfg.Engine.Hydrate),
		zap.Bool("stop_on_error", cfg.StopOnError),
	)

	var applied, failed int
	scanErr := storage.ScanJsonlFile(cfg.In, func(line int, op model.Operation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.engine.Apply(ctx, op); err != nil {
			failed++
			code := ledger.Code(err)
			logger.Warn("operation failed",
				zap.Int("line", line),
				zap.String("id", op.ID),
				zap.String("op", op.Op),
				zap.String("code", code),
				zap.Error(err),
			)
			record := model.OperationError{Line: line, ID: op.ID, Op: op.Op, Slot: op.Slot, Code: code, Error: err.Error()}
			if err := failures.PutErrors([]model.OperationError{record}); err != nil {
				return fmt.Errorf("write error record: %w", err)
			}
			if cfg.StopOnError {
				return fmt.Errorf("line %d: %s: %w", line, op.Op, err)
			}
			return nil
		}
		applied++
		return nil
	})

	// state committed before a failure is kept
	if err := d.persist(); err != nil {
		return err
	}

	logger.Info("apply done", zap.Int("applied", applied), zap.Int("failed", failed))
	return scanErr
}
