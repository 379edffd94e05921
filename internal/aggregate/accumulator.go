package aggregate

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"cpSwap/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress   string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	Volume0       decimal.Decimal
	Volume1       decimal.Decimal
	Fee0          decimal.Decimal
	Fee1          decimal.Decimal
	LastSlot      uint64
	LastTS        uint64
}

func NewAccumulator(ev model.Event, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress: ev.PoolID.String(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     decimal.Zero,
		Volume1:     decimal.Zero,
		Fee0:        decimal.Zero,
		Fee1:        decimal.Zero,
		LastSlot:    ev.Slot,
		LastTS:      ev.Timestamp,
	}
}

func (a *Accumulator) AddEvent(ev model.Event) error {
	if ev.Timestamp >= a.LastTS {
		a.LastTS = ev.Timestamp
		a.LastSlot = ev.Slot
	}

	switch ev.Name {
	case model.EventSwap:
		if ev.Swap == nil {
			return fmt.Errorf("swap event %s has no body", ev.ID)
		}
		a.applySwap(*ev.Swap)
	case model.EventLpChange:
		if ev.LpChange == nil {
			return fmt.Errorf("lp change event %s has no body", ev.ID)
		}
		switch ev.LpChange.ChangeType {
		case model.ChangeDeposit:
			a.DepositCount++
		case model.ChangeWithdraw:
			a.WithdrawCount++
		default:
			return fmt.Errorf("lp change event %s: unknown change type %d", ev.ID, ev.LpChange.ChangeType)
		}
	}
	return nil
}

// applySwap books volume on both sides and the trade fee on the input side.
func (a *Accumulator) applySwap(swap model.SwapEvent) {
	in, out := amount(swap.InputAmount), amount(swap.OutputAmount)
	fee := amount(swap.TradeFee)
	if swap.ZeroForOne {
		a.Volume0 = a.Volume0.Add(in)
		a.Volume1 = a.Volume1.Add(out)
		a.Fee0 = a.Fee0.Add(fee)
	} else {
		a.Volume1 = a.Volume1.Add(in)
		a.Volume0 = a.Volume0.Add(out)
		a.Fee1 = a.Fee1.Add(fee)
	}
	a.SwapCount++
}

func amount(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
