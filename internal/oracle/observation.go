package oracle

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"cpSwap/internal/lifecycle"
)

const (
	// ObservationNum is the ring buffer capacity.
	ObservationNum = 20
	// MinDuration is the minimum number of seconds between two samples.
	MinDuration uint64 = 15
)

// Observation is one time-weighted price sample. Cumulative prices are
// Q32.32 values summed over seconds. They are 128 bits wide and wrap modulo
// 2^128, not 2^64.
type Observation struct {
	BlockTimestamp           uint64          `json:"block_timestamp"`
	CumulativeToken0PriceX32 uint128.Uint128 `json:"cumulative_token_0_price_x32"`
	CumulativeToken1PriceX32 uint128.Uint128 `json:"cumulative_token_1_price_x32"`
}

// State is the oracle record of one pool.
type State struct {
	ID solana.PublicKey `json:"id" rlp:"-"`

	Initialized      bool                        `json:"initialized"`
	ObservationIndex uint16                      `json:"observation_index"`
	PoolID           solana.PublicKey            `json:"pool_id"`
	Observations     [ObservationNum]Observation `json:"observations"`

	Info lifecycle.Info `json:"compression" rlp:"-"`
}

func (s *State) Key() solana.PublicKey        { return s.ID }
func (s *State) Kind() lifecycle.Kind         { return lifecycle.KindObservation }
func (s *State) Compression() *lifecycle.Info { return &s.Info }
func (s *State) ToCold() ([]byte, error)      { return lifecycle.EncodeBody(s) }
func (s *State) FromCold(proof lifecycle.Proof) error {
	if proof.Kind != lifecycle.KindObservation {
		return fmt.Errorf("expected %s body, got %s", lifecycle.KindObservation, proof.Kind)
	}
	if err := lifecycle.DecodeBody(proof.Data, s); err != nil {
		return err
	}
	if int(s.ObservationIndex) >= ObservationNum {
		return fmt.Errorf("observation index %d out of range", s.ObservationIndex)
	}
	s.ID = proof.Address
	return nil
}

// Update records a price sample. The first call only seeds the current slot.
// Later calls are dropped until MinDuration has elapsed since the last sample.
// It reports whether a sample was written.
func (s *State) Update(blockTimestamp uint64, token0PriceX32, token1PriceX32 uint128.Uint128) bool {
	index := s.ObservationIndex
	if !s.Initialized {
		s.Initialized = true
		s.Observations[index] = Observation{BlockTimestamp: blockTimestamp}
		return true
	}

	last := s.Observations[index]
	var delta uint64
	if blockTimestamp > last.BlockTimestamp {
		delta = blockTimestamp - last.BlockTimestamp
	}
	if delta < MinDuration {
		return false
	}

	next := nextIndex(index)
	s.Observations[next] = Observation{
		BlockTimestamp:           blockTimestamp,
		CumulativeToken0PriceX32: last.CumulativeToken0PriceX32.AddWrap(token0PriceX32.MulWrap64(delta)),
		CumulativeToken1PriceX32: last.CumulativeToken1PriceX32.AddWrap(token1PriceX32.MulWrap64(delta)),
	}
	s.ObservationIndex = next
	return true
}

// Latest returns the most recent sample.
func (s *State) Latest() Observation {
	return s.Observations[s.ObservationIndex]
}

// Oldest returns the earliest sample still in the buffer. Slots that were
// never written have a zero timestamp.
func (s *State) Oldest() Observation {
	candidate := s.Observations[nextIndex(s.ObservationIndex)]
	if candidate.BlockTimestamp == 0 {
		return s.Observations[0]
	}
	return candidate
}

// TWAP returns the time-weighted average Q32.32 prices between two samples.
// Differences are taken modulo 2^128, so they hold for samples less than one
// 128-bit wrap apart.
func TWAP(older, newer Observation) (uint128.Uint128, uint128.Uint128, error) {
	if newer.BlockTimestamp <= older.BlockTimestamp {
		return uint128.Zero, uint128.Zero, fmt.Errorf("samples out of order: %d <= %d", newer.BlockTimestamp, older.BlockTimestamp)
	}
	elapsed := newer.BlockTimestamp - older.BlockTimestamp
	p0 := newer.CumulativeToken0PriceX32.SubWrap(older.CumulativeToken0PriceX32).Div64(elapsed)
	p1 := newer.CumulativeToken1PriceX32.SubWrap(older.CumulativeToken1PriceX32).Div64(elapsed)
	return p0, p1, nil
}

func nextIndex(index uint16) uint16 {
	if int(index) == ObservationNum-1 {
		return 0
	}
	return index + 1
}
