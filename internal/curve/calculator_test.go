package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapBaseInput(t *testing.T) {
	testCases := []struct {
		name        string
		amountIn    uint64
		reserveIn   uint64
		reserveOut  uint64
		tradeRate   uint64
		protoRate   uint64
		fundRate    uint64
		want        SwapResult
		expectedErr error
	}{
		{
			name:       "quarter percent fee rounds up to one",
			amountIn:   100,
			reserveIn:  100_000,
			reserveOut: 100_000,
			tradeRate:  2500,
			protoRate:  120_000,
			fundRate:   40_000,
			want: SwapResult{
				NewReserveIn:             100_100,
				NewReserveOut:            99_902,
				SourceAmountSwapped:      100,
				DestinationAmountSwapped: 98,
				TradeFee:                 1,
				ProtocolFee:              0,
				FundFee:                  0,
			},
		},
		{
			name:       "protocol and fund shares of a large fee",
			amountIn:   1_000_000,
			reserveIn:  50_000_000,
			reserveOut: 25_000_000,
			tradeRate:  2500,
			protoRate:  120_000,
			fundRate:   40_000,
			want: SwapResult{
				NewReserveIn:             51_000_000,
				NewReserveOut:            24_511_006,
				SourceAmountSwapped:      1_000_000,
				DestinationAmountSwapped: 488_994,
				TradeFee:                 2500,
				ProtocolFee:              300,
				FundFee:                  100,
			},
		},
		{
			name:        "dust input produces nothing",
			amountIn:    1,
			reserveIn:   1_000_000,
			reserveOut:  10,
			tradeRate:   2500,
			expectedErr: ErrZeroTradingTokens,
		},
		{
			name:        "fee rate at denominator",
			amountIn:    100,
			reserveIn:   100,
			reserveOut:  100,
			tradeRate:   FeeRateDenominator,
			expectedErr: ErrInvalidInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SwapBaseInput(tc.amountIn, tc.reserveIn, tc.reserveOut, tc.tradeRate, tc.protoRate, tc.fundRate)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSwapBaseOutput(t *testing.T) {
	t.Run("grossed up input covers the fee", func(t *testing.T) {
		got, err := SwapBaseOutput(98, 100_000, 100_000, 2500, 0, 0)
		require.NoError(t, err)
		// ceil(100000*98/99902) = 99, ceil(99*1e6/997500) = 100
		assert.Equal(t, uint64(100), got.SourceAmountSwapped)
		assert.Equal(t, uint64(98), got.DestinationAmountSwapped)
		assert.Equal(t, uint64(1), got.TradeFee)
	})

	t.Run("zero fee keeps the raw input", func(t *testing.T) {
		got, err := SwapBaseOutput(1000, 1_000_000, 1_000_000, 0, 0, 0)
		require.NoError(t, err)
		// ceil(1e6*1000/999000) = 1002
		assert.Equal(t, uint64(1002), got.SourceAmountSwapped)
		assert.Zero(t, got.TradeFee)
	})

	t.Run("output equal to reserve", func(t *testing.T) {
		_, err := SwapBaseOutput(100, 100, 100, 2500, 0, 0)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("zero output", func(t *testing.T) {
		_, err := SwapBaseOutput(0, 100, 100, 2500, 0, 0)
		require.ErrorIs(t, err, ErrZeroTradingTokens)
	})
}

func TestSwapInverseConsistency(t *testing.T) {
	reserves := [][2]uint64{
		{100_000, 100_000},
		{1_000_000_000, 3_000},
		{7, 9_000_000_000},
		{math.MaxUint32, math.MaxUint32 * 3},
	}
	rates := []uint64{0, 100, 2500, 10_000, 250_000}
	outs := []uint64{1, 2, 17, 999}

	for _, r := range reserves {
		for _, rate := range rates {
			for _, out := range outs {
				if out >= r[1] {
					continue
				}
				inv, err := SwapBaseOutput(out, r[0], r[1], rate, 0, 0)
				require.NoError(t, err)

				fwd, err := SwapBaseInput(inv.SourceAmountSwapped, r[0], r[1], rate, 0, 0)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, fwd.DestinationAmountSwapped, out,
					"reserves=%v rate=%d out=%d in=%d", r, rate, out, inv.SourceAmountSwapped)
			}
		}
	}
}

func TestSwapInvariantGrowth(t *testing.T) {
	testCases := []struct {
		name      string
		amountIn  uint64
		reserveIn uint64
		reserveOu uint64
		rate      uint64
	}{
		{name: "small trade", amountIn: 100, reserveIn: 100_000, reserveOu: 100_000, rate: 2500},
		{name: "large trade", amountIn: 5_000_000, reserveIn: 1_000_000, reserveOu: 40_000_000, rate: 10_000},
		{name: "no fee", amountIn: 12_345, reserveIn: 987_654, reserveOu: 123_456, rate: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := ConstantProduct(tc.reserveIn, tc.reserveOu)
			res, err := SwapBaseInput(tc.amountIn, tc.reserveIn, tc.reserveOu, tc.rate, 0, 0)
			require.NoError(t, err)
			after := ConstantProduct(res.NewReserveIn, res.NewReserveOut)
			assert.True(t, after.Cmp(before) >= 0, "k decreased: %s < %s", after.Dec(), before.Dec())
		})
	}
}

func TestLpTokensToTradingTokens(t *testing.T) {
	testCases := []struct {
		name        string
		lp          uint64
		supply      uint64
		r0, r1      uint64
		direction   RoundDirection
		want        TradingTokenResult
		expectedErr error
	}{
		{
			name: "withdraw floors", lp: 500, supply: 100_000, r0: 100_100, r1: 99_900,
			direction: Floor, want: TradingTokenResult{Token0Amount: 500, Token1Amount: 499},
		},
		{
			name: "deposit ceils", lp: 500, supply: 100_000, r0: 100_100, r1: 99_900,
			direction: Ceiling, want: TradingTokenResult{Token0Amount: 501, Token1Amount: 500},
		},
		{
			name: "exact division does not round up", lp: 10, supply: 100, r0: 1000, r1: 500,
			direction: Ceiling, want: TradingTokenResult{Token0Amount: 100, Token1Amount: 50},
		},
		{
			name: "floor to zero", lp: 1, supply: 1_000, r0: 10, r1: 10_000,
			direction: Floor, expectedErr: ErrZeroTradingTokens,
		},
		{
			name: "empty supply", lp: 1, supply: 0, r0: 10, r1: 10,
			direction: Floor, expectedErr: ErrInvalidInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LpTokensToTradingTokens(tc.lp, tc.supply, tc.r0, tc.r1, tc.direction)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDepositWithdrawAsymmetry(t *testing.T) {
	supply, r0, r1 := uint64(100_000), uint64(100_100), uint64(99_900)
	for _, lp := range []uint64{1, 3, 77, 500, 33_333} {
		in, err := LpTokensToTradingTokens(lp, supply, r0, r1, Ceiling)
		require.NoError(t, err)

		out, err := LpTokensToTradingTokens(lp, supply+lp, r0+in.Token0Amount, r1+in.Token1Amount, Floor)
		if err != nil {
			require.ErrorIs(t, err, ErrZeroTradingTokens)
			continue
		}
		assert.LessOrEqual(t, out.Token0Amount, in.Token0Amount, "lp=%d", lp)
		assert.LessOrEqual(t, out.Token1Amount, in.Token1Amount, "lp=%d", lp)
	}
}

func TestValidateSupply(t *testing.T) {
	require.NoError(t, ValidateSupply(1, 1))
	require.ErrorIs(t, ValidateSupply(0, 1), ErrZeroTradingTokens)
	require.ErrorIs(t, ValidateSupply(1, 0), ErrZeroTradingTokens)
}

func TestIntegerSqrt(t *testing.T) {
	assert.Equal(t, uint64(100_000), IntegerSqrt(100_000, 100_000))
	assert.Equal(t, uint64(3), IntegerSqrt(3, 4))
	assert.Equal(t, uint64(math.MaxUint64), IntegerSqrt(math.MaxUint64, math.MaxUint64))
}

func TestMulDivOverflow(t *testing.T) {
	_, err := mulDiv(math.MaxUint64, math.MaxUint64, 1, Floor)
	require.ErrorIs(t, err, ErrOverflow)
}
