package quote

import (
	"errors"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"

	"cpSwap/internal/oracle"
)

// ErrNoObservations is returned when an oracle record holds fewer than two
// samples to average between.
var ErrNoObservations = errors.New("not enough oracle observations")

var x32 = decimal.New(1<<32, 0)

// TWAP is the time-weighted average price over an oracle's buffer.
type TWAP struct {
	From uint64 `json:"from_timestamp"`
	To   uint64 `json:"to_timestamp"`
	// Token0Price is the price of token 0 in units of token 1.
	Token0Price string `json:"token_0_price"`
	Token1Price string `json:"token_1_price"`
}

// OracleTWAP averages prices between the oldest and latest samples of obs.
func OracleTWAP(obs *oracle.State) (TWAP, error) {
	if obs == nil || !obs.Initialized {
		return TWAP{}, ErrNoObservations
	}
	older, newer := obs.Oldest(), obs.Latest()
	if newer.BlockTimestamp <= older.BlockTimestamp {
		return TWAP{}, ErrNoObservations
	}
	p0, p1, err := oracle.TWAP(older, newer)
	if err != nil {
		return TWAP{}, err
	}
	return TWAP{
		From:        older.BlockTimestamp,
		To:          newer.BlockTimestamp,
		Token0Price: fromX32(p0).String(),
		Token1Price: fromX32(p1).String(),
	}, nil
}

func fromX32(v uint128.Uint128) decimal.Decimal {
	return decimal.NewFromBigInt(v.Big(), 0).Div(x32)
}
