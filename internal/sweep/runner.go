package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cpSwap/internal/lifecycle"
	"cpSwap/internal/storage"
)

// RunConfig holds runtime settings for the sweeper.
type RunConfig struct {
	// Slot is the current slot. Records idle for the compression delay
	// before it are demoted.
	Slot          uint64
	BatchSize     uint64
	RentRecipient solana.PublicKey
	MaxRetries    int
	RetryBackoff  time.Duration
	DryRun        bool
}

// Lister finds hot records by last-written slot.
type Lister interface {
	ListHotBySlot(ctx context.Context, from, to uint64, limit int) ([]storage.Entry, error)
}

// Demoter moves a single record to the cold tier.
type Demoter interface {
	Config() lifecycle.Config
	Eligible(entry storage.Entry, now uint64) bool
	Demote(ctx context.Context, address, rentRecipient solana.PublicKey, now uint64) (lifecycle.Proof, error)
}

// Summary reports one sweep.
type Summary struct {
	From      uint64 `json:"from"`
	To        uint64 `json:"to"`
	Scanned   int    `json:"scanned"`
	Demoted   int    `json:"demoted"`
	Skipped   int    `json:"skipped"`
	Reclaimed uint64 `json:"reclaimed_rent"`
}

// Runner scans idle hot records and demotes them batch by batch.
type Runner struct {
	cfg        RunConfig
	store      Lister
	demoter    Demoter
	checkpoint Checkpointer
	logger     *zap.Logger
	metrics    *Metrics
}

// NewRunner builds a Runner with its dependencies. A nil checkpoint sweeps
// from slot zero every time.
func NewRunner(cfg RunConfig, store Lister, demoter Demoter, checkpoint Checkpointer, logger *zap.Logger, reg prometheus.Registerer) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		store:      store,
		demoter:    demoter,
		checkpoint: checkpoint,
		logger:     logger,
		metrics:    NewMetrics(reg),
	}
}

// Run executes one sweep over [checkpoint+1, slot-delay].
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if r.store == nil {
		return sum, fmt.Errorf("store is nil")
	}
	if r.demoter == nil {
		return sum, fmt.Errorf("demoter is nil")
	}
	if r.cfg.BatchSize == 0 {
		return sum, fmt.Errorf("batch size must be greater than zero")
	}

	delay := r.demoter.Config().CompressionDelay
	if r.cfg.Slot < delay {
		r.logger.Info("nothing to sweep", zap.Uint64("slot", r.cfg.Slot), zap.Uint64("delay", delay))
		return sum, nil
	}
	from, to := uint64(0), r.cfg.Slot-delay

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return sum, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			if last >= to {
				r.logger.Info("nothing to sweep", zap.Uint64("last_processed", last), zap.Uint64("to", to))
				return sum, nil
			}
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}
	sum.From, sum.To = from, to

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return sum, err
	}

	for _, slotRange := range ranges {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		entries, err := r.listWithRetry(ctx, slotRange)
		if err != nil {
			return sum, fmt.Errorf("list hot records: %w", err)
		}

		for _, entry := range entries {
			sum.Scanned++
			if !r.demoter.Eligible(entry, r.cfg.Slot) {
				r.skip(&sum, entry, "not_eligible")
				continue
			}
			if r.cfg.DryRun {
				sum.Demoted++
				sum.Reclaimed += entry.Rent
				continue
			}

			demoted, err := r.demoteWithRetry(ctx, entry)
			if err != nil {
				return sum, fmt.Errorf("demote %s: %w", entry.Address, err)
			}
			if !demoted {
				r.skip(&sum, entry, "changed")
				continue
			}
			sum.Demoted++
			sum.Reclaimed += entry.Rent
			r.metrics.Demoted.Inc()
			r.metrics.Reclaimed.Add(float64(entry.Rent))
		}

		if r.checkpoint != nil && !r.cfg.DryRun {
			if err := r.checkpoint.Save(ctx, slotRange.To); err != nil {
				return sum, fmt.Errorf("save checkpoint: %w", err)
			}
		}
		r.metrics.Checkpoint.Set(float64(slotRange.To))

		r.logger.Info("batch complete",
			zap.Int("records", len(entries)),
			zap.Uint64("from", slotRange.From),
			zap.Uint64("to", slotRange.To),
		)
	}

	return sum, nil
}

func (r *Runner) skip(sum *Summary, entry storage.Entry, reason string) {
	sum.Skipped++
	r.metrics.Skipped.WithLabelValues(reason).Inc()
	r.logger.Debug("record skipped",
		zap.String("address", entry.Address.String()),
		zap.Uint64("last_written_slot", entry.LastWrittenSlot),
		zap.String("reason", reason),
	)
}

func (r *Runner) listWithRetry(ctx context.Context, slotRange SlotRange) ([]storage.Entry, error) {
	var entries []storage.Entry
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		entries, err = r.store.ListHotBySlot(ctx, slotRange.From, slotRange.To, 0)
		if err != nil {
			r.logger.Warn("list hot records failed", zap.Error(err), zap.Uint64("from", slotRange.From), zap.Uint64("to", slotRange.To))
		}
		return err
	})
	return entries, err
}

// demoteWithRetry reports false when the record was rewritten or removed
// after it was listed.
func (r *Runner) demoteWithRetry(ctx context.Context, entry storage.Entry) (bool, error) {
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		_, err := r.demoter.Demote(ctx, entry.Address, r.cfg.RentRecipient, r.cfg.Slot)
		if err != nil && retryable(err) {
			r.logger.Warn("demote failed", zap.Error(err), zap.String("address", entry.Address.String()))
		}
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, lifecycle.ErrNotEligible):
		return false, nil
	default:
		return false, err
	}
}

// retryable is false for outcomes that another attempt cannot change.
func retryable(err error) bool {
	for _, permanent := range []error{
		context.Canceled,
		context.DeadlineExceeded,
		storage.ErrNotFound,
		lifecycle.ErrNotEligible,
		lifecycle.ErrNotCompressible,
		lifecycle.ErrInvalidRentRecipient,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}
