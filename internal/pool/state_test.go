package pool

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"cpSwap/internal/curve"
	"cpSwap/internal/lifecycle"
)

func TestStatusBits(t *testing.T) {
	testCases := []struct {
		status   uint8
		deposit  bool
		withdraw bool
		swap     bool
	}{
		{status: 0, deposit: true, withdraw: true, swap: true},
		{status: 3, deposit: false, withdraw: false, swap: true},
		{status: 4, deposit: true, withdraw: true, swap: false},
		{status: 5, deposit: false, withdraw: true, swap: false},
		{status: 7, deposit: false, withdraw: false, swap: false},
	}

	for _, tc := range testCases {
		s := &State{}
		s.SetStatus(tc.status)
		assert.Equal(t, tc.deposit, s.Enabled(StatusDeposit), "status %d deposit", tc.status)
		assert.Equal(t, tc.withdraw, s.Enabled(StatusWithdraw), "status %d withdraw", tc.status)
		assert.Equal(t, tc.swap, s.Enabled(StatusSwap), "status %d swap", tc.status)
	}
}

func TestStatusToggleIsIndependent(t *testing.T) {
	for _, base := range []uint8{0, 3, 4, 5, 7} {
		for _, bit := range []StatusBit{StatusDeposit, StatusWithdraw, StatusSwap} {
			s := &State{Status: base}
			before := map[StatusBit]bool{
				StatusDeposit:  s.Enabled(StatusDeposit),
				StatusWithdraw: s.Enabled(StatusWithdraw),
				StatusSwap:     s.Enabled(StatusSwap),
			}
			s.SetStatus(s.Status ^ (1 << bit))
			for other, was := range before {
				if other == bit {
					assert.NotEqual(t, was, s.Enabled(other))
					continue
				}
				assert.Equal(t, was, s.Enabled(other), "base %d toggle %s changed %s", base, bit, other)
			}
		}
	}
}

func TestVaultAmountWithoutFee(t *testing.T) {
	s := &State{ProtocolFeesToken0: 10, FundFeesToken0: 5, ProtocolFeesToken1: 1}
	r0, r1, err := s.VaultAmountWithoutFee(100, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(85), r0)
	assert.Equal(t, uint64(49), r1)

	_, _, err = s.VaultAmountWithoutFee(14, 50)
	require.ErrorIs(t, err, ErrReserveUnderflow)
}

func TestTokenPriceX32(t *testing.T) {
	s := &State{}
	p0, p1, err := s.TokenPriceX32(100_000, 200_000)
	require.NoError(t, err)
	assert.Equal(t, uint128.From64(2<<32), p0)
	assert.Equal(t, uint128.From64(1<<31), p1)
}

func TestAccrueFees(t *testing.T) {
	s := &State{}
	require.NoError(t, s.AccrueFees(true, 3, 1))
	require.NoError(t, s.AccrueFees(false, 7, 2))
	assert.Equal(t, uint64(3), s.ProtocolFeesToken0)
	assert.Equal(t, uint64(1), s.FundFeesToken0)
	assert.Equal(t, uint64(7), s.ProtocolFeesToken1)
	assert.Equal(t, uint64(2), s.FundFeesToken1)

	s.ProtocolFeesToken0 = ^uint64(0)
	require.ErrorIs(t, s.AccrueFees(true, 1, 0), curve.ErrOverflow)
}

func TestStateColdRoundTrip(t *testing.T) {
	id := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	s := &State{
		ID:                 id,
		Token0Mint:         solana.TokenProgramID,
		Status:             4,
		LpMintDecimals:     LpMintDecimals,
		LpSupply:           100_000,
		ProtocolFeesToken1: 12,
		OpenTime:           1_700_000_001,
		Info:               lifecycle.Info{LastWrittenSlot: 99},
	}
	data, err := s.ToCold()
	require.NoError(t, err)

	var back State
	require.NoError(t, back.FromCold(lifecycle.Proof{Address: id, Kind: lifecycle.KindPool, Data: data}))

	s.Info = lifecycle.Info{}
	assert.Equal(t, *s, back)

	require.Error(t, back.FromCold(lifecycle.Proof{Address: id, Kind: lifecycle.KindObservation, Data: data}))
}

func TestAmmConfigUpdate(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	testCases := []struct {
		name        string
		param       uint8
		value       uint64
		owner       solana.PublicKey
		check       func(t *testing.T, c AmmConfig)
		expectedErr error
	}{
		{
			name: "trade fee", param: ParamTradeFeeRate, value: 3000,
			check: func(t *testing.T, c AmmConfig) { assert.Equal(t, uint64(3000), c.TradeFeeRate) },
		},
		{
			name: "trade fee at denominator", param: ParamTradeFeeRate, value: curve.FeeRateDenominator,
			expectedErr: curve.ErrInvalidInput,
		},
		{
			name: "protocol plus fund over denominator", param: ParamProtocolFeeRate, value: 990_000,
			expectedErr: curve.ErrInvalidInput,
		},
		{
			name: "fund owner", param: ParamFundOwner, owner: owner,
			check: func(t *testing.T, c AmmConfig) { assert.Equal(t, owner, c.FundOwner) },
		},
		{
			name: "disable create pool", param: ParamDisableCreatePool, value: 1,
			check: func(t *testing.T, c AmmConfig) { assert.True(t, c.DisableCreatePool) },
		},
		{
			name: "create pool fee", param: ParamCreatePoolFee, value: 150_000_000,
			check: func(t *testing.T, c AmmConfig) { assert.Equal(t, uint64(150_000_000), c.CreatePoolFee) },
		},
		{
			name: "unknown param", param: 7, expectedErr: curve.ErrInvalidInput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := AmmConfig{TradeFeeRate: 2500, ProtocolFeeRate: 120_000, FundFeeRate: 40_000}
			orig := c
			err := c.Update(tc.param, tc.value, tc.owner)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				assert.Equal(t, orig, c)
				return
			}
			require.NoError(t, err)
			tc.check(t, c)
		})
	}
}
