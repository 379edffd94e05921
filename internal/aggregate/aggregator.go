package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"cpSwap/internal/model"
	"cpSwap/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// WindowSink persists finished windows.
type WindowSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Stats summarises one aggregation run.
type Stats struct {
	Total   int `json:"total"`
	Windows int `json:"windows"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Aggregator folds ledger events into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         WindowSink
	pools        PoolSource
	logger       *zap.Logger
	decimals     *PoolDecimalsCache
	accumulators map[string]*Accumulator
}

// NewAggregator builds an Aggregator. With a nil pool source, volumes and
// fees are reported in base units.
func NewAggregator(cfg Config, sink WindowSink, pools PoolSource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		pools:        pools,
		logger:       logger,
		decimals:     NewPoolDecimalsCache(),
		accumulators: make(map[string]*Accumulator),
	}
}

// Run executes aggregation over an event JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return stats, err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs

	err = storage.ScanJsonlFile(inputPath, func(line int, ev model.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++

		if ev.Timestamp <= startTs {
			stats.Skipped++
			return nil
		}

		windowStart := windowStart(ev.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := ev.PoolID.String()
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(ev, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.flushAccumulator(ctx, acc))
			stats.Windows++
			acc = NewAccumulator(ev, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(ev); err != nil {
			stats.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.Int("line", line), zap.String("pool", accKey), zap.String("event", ev.Name))
			return nil
		}

		if ev.Timestamp > maxTs {
			maxTs = ev.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(ctx, acc))
		stats.Windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return stats, err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return stats, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("windows", stats.Windows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	return stats, nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState stores a timestamp before every window still open, so a rerun
// rebuilds those windows in full.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) model.PoolWindowMetrics {
	decimals := a.poolDecimals(ctx, acc.PoolAddress)
	feeRate0, feeRate1 := computeFeeRates(acc.Fee0, acc.Fee1, acc.Volume0, acc.Volume1)

	return model.PoolWindowMetrics{
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		Volume0:        formatTokenAmount(acc.Volume0, decimals.Token0),
		Volume1:        formatTokenAmount(acc.Volume1, decimals.Token1),
		Fee0:           formatTokenAmount(acc.Fee0, decimals.Token0),
		Fee1:           formatTokenAmount(acc.Fee1, decimals.Token1),
		FeeRate0:       feeRate0,
		FeeRate1:       feeRate1,
	}
}

// poolDecimals falls back to base units when the pool cannot be loaded.
func (a *Aggregator) poolDecimals(ctx context.Context, address string) PoolDecimals {
	if a.pools == nil {
		return PoolDecimals{}
	}
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		a.logger.Warn("invalid pool address", zap.String("pool", address), zap.Error(err))
		return PoolDecimals{}
	}
	if d, ok := a.decimals.Get(key); ok {
		return d
	}
	p, err := a.pools.LoadPool(ctx, key)
	if err != nil {
		a.logger.Warn("pool decimals", zap.String("pool", address), zap.Error(err))
		return PoolDecimals{}
	}
	d := PoolDecimals{Token0: p.Mint0Decimals, Token1: p.Mint1Decimals}
	a.decimals.Set(key, d)
	return d
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
