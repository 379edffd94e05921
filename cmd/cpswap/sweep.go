package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpSwap/internal/config"
	"cpSwap/internal/sweep"
)

func runSweep(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSweep(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Slot == 0 {
		return fmt.Errorf("slot is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := openEngine(ctx, cfg.Engine, nil, logger)
	if err != nil {
		return err
	}
	defer d.close()

	var checkpoint sweep.Checkpointer
	if d.pg != nil && cfg.CheckpointEnabled {
		checkpoint = sweep.NewDBCheckpoint(d.pg, cfg.CheckpointName)
	} else {
		checkpoint = sweep.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, d.registry, logger)
		defer shutdown()
	}

	runner := sweep.NewRunner(sweep.RunConfig{
		Slot:          cfg.Slot,
		BatchSize:     cfg.BatchSize,
		RentRecipient: d.rentRecipient,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		DryRun:        cfg.DryRun,
	}, d.store, d.manager, checkpoint, logger, d.registry)

	logger.Info("sweep start",
		zap.Uint64("slot", cfg.Slot),
		zap.Uint64("compression_delay", cfg.Engine.CompressionDelay),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("rent_recipient", d.rentRecipient.String()),
		zap.String("store", cfg.Engine.Store),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Bool("dry_run", cfg.DryRun),
	)

	summary, runErr := runner.Run(ctx)
	if !cfg.DryRun {
		if err := d.persist(); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	return printJSON(cmd.OutOrStdout(), summary)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
