package ledger

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpSwap/internal/lifecycle"
	"cpSwap/internal/model"
	"cpSwap/internal/pool"
	"cpSwap/internal/token"
)

func TestInitializeMintsLiquidityMinusLock(t *testing.T) {
	h := newHarness(t)
	ammConfig := h.bootstrap(legacy0, legacy1)

	res, err := h.initialize(ammConfig, 100_000, 100_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), res.Liquidity)
	assert.Equal(t, uint64(99_900), res.CreatorLp)
	assert.Equal(t, startTime+1, res.OpenTime)

	p, err := h.engine.LoadPool(h.ctx, res.Pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), p.LpSupply)
	assert.Equal(t, alice, p.PoolCreator)
	assert.Equal(t, mint0Key, p.Token0Mint)
	assert.Equal(t, res.Observation, p.ObservationKey)
	assert.Equal(t, uint8(6), p.Mint0Decimals)
	assert.Equal(t, pool.LpMintDecimals, p.LpMintDecimals)
	assert.Equal(t, startSlot, p.Info.LastWrittenSlot)

	assert.Equal(t, uint64(99_900), h.balance(res.CreatorLpToken))
	assert.Equal(t, uint64(100_000), h.balance(res.Token0Vault))
	assert.Equal(t, uint64(100_000), h.balance(res.Token1Vault))
	assert.Equal(t, funding-100_000, h.balance(alice0))

	lpMint, err := h.engine.LoadMint(h.ctx, res.LpMint)
	require.NoError(t, err)
	assert.Equal(t, uint64(99_900), lpMint.Supply)
	assert.Equal(t, h.engine.Authority(), lpMint.MintAuthority)

	obs, err := h.engine.LoadObservation(h.ctx, res.Observation)
	require.NoError(t, err)
	assert.Equal(t, res.Pool, obs.PoolID)
	assert.False(t, obs.Initialized)

	assert.Empty(t, h.events.all())
}

func TestInitializeKeepsFutureOpenTime(t *testing.T) {
	h := newHarness(t)
	ammConfig := h.bootstrap(legacy0, legacy1)

	res, err := h.engine.Initialize(h.ctx, h.as(alice), InitializeRequest{
		AmmConfig:     ammConfig,
		Token0Mint:    mint0Key,
		Token1Mint:    mint1Key,
		CreatorToken0: alice0,
		CreatorToken1: alice1,
		InitAmount0:   10_000,
		InitAmount1:   40_000,
		OpenTime:      startTime + 500,
	})
	require.NoError(t, err)
	assert.Equal(t, startTime+500, res.OpenTime)
	assert.Equal(t, uint64(20_000), res.Liquidity)
}

func TestInitializeRejects(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *harness, ammConfig solana.PublicKey) InitializeRequest
		m1      CreateMintRequest
		want    error
	}{
		{
			name: "mints out of order",
			prepare: func(h *harness, ammConfig solana.PublicKey) InitializeRequest {
				req := baseInit(ammConfig)
				req.Token0Mint, req.Token1Mint = mint1Key, mint0Key
				return req
			},
			want: ErrInvalidInput,
		},
		{
			name: "pool creation disabled",
			prepare: func(h *harness, ammConfig solana.PublicKey) InitializeRequest {
				_, err := h.engine.UpdateAmmConfig(h.ctx, h.as(admin), UpdateAmmConfigRequest{
					AmmConfig: ammConfig, Param: pool.ParamDisableCreatePool, Value: 1,
				})
				require.NoError(h.t, err)
				return baseInit(ammConfig)
			},
			want: ErrNotApproved,
		},
		{
			name: "unsupported extension",
			m1: CreateMintRequest{
				Mint:       mint1Key,
				Standard:   token.StandardToken2022,
				Extensions: []token.ExtensionType{token.ExtensionPermanentDelegate},
			},
			prepare: func(h *harness, ammConfig solana.PublicKey) InitializeRequest {
				return baseInit(ammConfig)
			},
			want: ErrUnsupportedTokenKind,
		},
		{
			name: "liquidity below lock",
			prepare: func(h *harness, ammConfig solana.PublicKey) InitializeRequest {
				req := baseInit(ammConfig)
				req.InitAmount0, req.InitAmount1 = 50, 50
				return req
			},
			want: ErrInitLpAmountTooLess,
		},
		{
			name: "empty reserve",
			prepare: func(h *harness, ammConfig solana.PublicKey) InitializeRequest {
				req := baseInit(ammConfig)
				req.InitAmount1 = 0
				return req
			},
			want: ErrZeroTradingTokens,
		},
		{
			name: "pool already exists",
			prepare: func(h *harness, ammConfig solana.PublicKey) InitializeRequest {
				_, err := h.engine.Initialize(h.ctx, h.as(alice), baseInit(ammConfig))
				require.NoError(h.t, err)
				return baseInit(ammConfig)
			},
			want: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			m1 := legacy1
			if !tt.m1.Mint.IsZero() {
				m1 = tt.m1
			}
			ammConfig := h.bootstrap(legacy0, m1)
			req := tt.prepare(h, ammConfig)
			before := h.balance(alice0)

			_, err := h.engine.Initialize(h.ctx, h.as(alice), req)
			require.ErrorIs(t, err, tt.want)
			if tt.name != "pool already exists" {
				assert.Equal(t, before, h.balance(alice0), "failed initialize must not move funds")
			}
		})
	}
}

func baseInit(ammConfig solana.PublicKey) InitializeRequest {
	return InitializeRequest{
		AmmConfig:     ammConfig,
		Token0Mint:    mint0Key,
		Token1Mint:    mint1Key,
		CreatorToken0: alice0,
		CreatorToken1: alice1,
		InitAmount0:   100_000,
		InitAmount1:   100_000,
	}
}

func TestSwapBaseInput(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	out, err := h.swapIn(res, true, 100, 98)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), out.AmountIn)
	assert.Equal(t, uint64(98), out.AmountOut)

	assert.Equal(t, uint64(100_100), h.balance(res.Token0Vault))
	assert.Equal(t, uint64(99_902), h.balance(res.Token1Vault))
	assert.Equal(t, funding-100_000-100, h.balance(alice0))
	assert.Equal(t, funding-100_000+98, h.balance(alice1))

	events := h.events.all()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, model.EventSwap, ev.Name)
	assert.Equal(t, res.Pool, ev.PoolID)
	require.NotNil(t, ev.Swap)
	assert.Equal(t, uint64(100), ev.Swap.InputAmount)
	assert.Equal(t, uint64(98), ev.Swap.OutputAmount)
	assert.Equal(t, uint64(1), ev.Swap.TradeFee)
	assert.Equal(t, uint64(100_000), ev.Swap.InputVaultBefore)
	assert.Equal(t, uint64(100_000), ev.Swap.OutputVaultBefore)
	assert.Equal(t, mint0Key, ev.Swap.InputMint)
	assert.True(t, ev.Swap.BaseInput)
	assert.True(t, ev.Swap.ZeroForOne)

	obs, err := h.engine.LoadObservation(h.ctx, res.Observation)
	require.NoError(t, err)
	assert.True(t, obs.Initialized)
	assert.Equal(t, h.clock.UnixTimestamp, obs.Latest().BlockTimestamp)
}

func TestSwapBaseInputReverseDirection(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	out, err := h.swapIn(res, false, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(98), out.AmountOut)
	assert.Equal(t, uint64(99_902), h.balance(res.Token0Vault))
	assert.Equal(t, uint64(100_100), h.balance(res.Token1Vault))
	assert.False(t, h.events.all()[0].Swap.ZeroForOne)
}

func TestSwapSlippageLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	_, err := h.swapIn(res, true, 100, 99)
	require.ErrorIs(t, err, ErrExceededSlippage)
	assert.Equal(t, "ExceededSlippage", Code(err))

	assert.Equal(t, uint64(100_000), h.balance(res.Token0Vault))
	assert.Equal(t, funding-100_000, h.balance(alice0))
	assert.Empty(t, h.events.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.engine.metrics.Operations.WithLabelValues("swap_base_input", "ExceededSlippage")))
}

func TestSwapBaseOutput(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()
	req := SwapBaseOutputRequest{
		Pool:               res.Pool,
		InputTokenAccount:  alice0,
		OutputTokenAccount: alice1,
		InputVault:         res.Token0Vault,
		OutputVault:        res.Token1Vault,
		AmountOut:          98,
		MaxAmountIn:        99,
	}

	_, err := h.engine.SwapBaseOutput(h.ctx, h.as(alice), req)
	require.ErrorIs(t, err, ErrExceededSlippage)

	req.MaxAmountIn = 100
	out, err := h.engine.SwapBaseOutput(h.ctx, h.as(alice), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), out.AmountIn)
	assert.Equal(t, uint64(98), out.AmountOut)
	assert.Equal(t, uint64(100_100), h.balance(res.Token0Vault))
	assert.Equal(t, uint64(99_902), h.balance(res.Token1Vault))
	assert.Equal(t, funding-100_000+98, h.balance(alice1))

	ev := h.events.all()[0].Swap
	assert.False(t, ev.BaseInput)
	assert.Equal(t, uint64(100), ev.InputAmount)
	assert.Equal(t, uint64(1), ev.TradeFee)
}

func TestSwapRejects(t *testing.T) {
	h := newHarness(t)
	ammConfig := h.bootstrap(legacy0, legacy1)
	res, err := h.initialize(ammConfig, 100_000, 100_000)
	require.NoError(t, err)

	_, err = h.swapIn(res, true, 100, 0)
	require.ErrorIs(t, err, ErrNotApproved, "pool not open yet")

	h.clock.UnixTimestamp = res.OpenTime
	_, err = h.engine.SwapBaseInput(h.ctx, h.as(alice), SwapBaseInputRequest{
		Pool:               res.Pool,
		InputTokenAccount:  alice0,
		OutputTokenAccount: alice1,
		InputVault:         res.Token0Vault,
		OutputVault:        res.Token0Vault,
		AmountIn:           100,
	})
	require.ErrorIs(t, err, ErrInvalidVault)
	assert.Equal(t, "InvalidInput", Code(err))

	_, err = h.swapIn(res, true, 2*funding, 0)
	require.ErrorIs(t, err, token.ErrInsufficientFunds)

	_, err = h.engine.SwapBaseInput(h.ctx, h.as(admin), SwapBaseInputRequest{
		Pool:               res.Pool,
		InputTokenAccount:  alice0,
		OutputTokenAccount: admin1,
		InputVault:         res.Token0Vault,
		OutputVault:        res.Token1Vault,
		AmountIn:           100,
	})
	require.Error(t, err)
	assert.Equal(t, "InvalidOwner", Code(err))
}

func TestDeposit(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()
	req := DepositRequest{
		Pool:                res.Pool,
		OwnerLpToken:        res.CreatorLpToken,
		Token0Account:       alice0,
		Token1Account:       alice1,
		LpTokenAmount:       1_000,
		MaximumToken0Amount: 999,
		MaximumToken1Amount: 1_000,
	}

	_, err := h.engine.Deposit(h.ctx, h.as(alice), req)
	require.ErrorIs(t, err, ErrExceededSlippage)
	assert.Empty(t, h.events.all())

	req.MaximumToken0Amount = 1_000
	out, err := h.engine.Deposit(h.ctx, h.as(alice), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), out.Token0Transferred)

	p, err := h.engine.LoadPool(h.ctx, res.Pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(101_000), p.LpSupply)
	assert.Equal(t, uint64(1), p.RecentEpoch)
	assert.Equal(t, uint64(100_900), h.balance(res.CreatorLpToken))
	assert.Equal(t, uint64(101_000), h.balance(res.Token0Vault))

	lc := out.Event.LpChange
	require.NotNil(t, lc)
	assert.Equal(t, model.ChangeDeposit, lc.ChangeType)
	assert.Equal(t, uint64(100_000), lc.LpAmountBefore)
	assert.Equal(t, uint64(1_000), lc.Token1Amount)
}

func TestDepositRejects(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()
	base := DepositRequest{
		Pool:                res.Pool,
		OwnerLpToken:        res.CreatorLpToken,
		Token0Account:       alice0,
		Token1Account:       alice1,
		LpTokenAmount:       1_000,
		MaximumToken0Amount: funding,
		MaximumToken1Amount: funding,
	}

	zero := base
	zero.LpTokenAmount = 0
	_, err := h.engine.Deposit(h.ctx, h.as(alice), zero)
	require.ErrorIs(t, err, ErrInvalidInput)

	wrongLp := base
	wrongLp.OwnerLpToken = alice0
	_, err = h.engine.Deposit(h.ctx, h.as(alice), wrongLp)
	require.ErrorIs(t, err, ErrIncorrectLpMint)
}

func TestWithdrawRoundsDownAndHonorsMinimums(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	vault0 := h.account(res.Token0Vault)
	vault0.Amount = 100_100
	h.rewrite(vault0)
	vault1 := h.account(res.Token1Vault)
	vault1.Amount = 99_900
	h.rewrite(vault1)

	req := WithdrawRequest{
		Pool:                res.Pool,
		OwnerLpToken:        res.CreatorLpToken,
		Token0Account:       alice0,
		Token1Account:       alice1,
		LpTokenAmount:       500,
		MinimumToken0Amount: 501,
	}
	_, err := h.engine.Withdraw(h.ctx, h.as(alice), req)
	require.ErrorIs(t, err, ErrExceededSlippage)
	assert.Equal(t, uint64(99_900), h.balance(res.CreatorLpToken))

	req.MinimumToken0Amount, req.MinimumToken1Amount = 500, 499
	out, err := h.engine.Withdraw(h.ctx, h.as(alice), req)
	require.NoError(t, err)

	lc := out.Event.LpChange
	assert.Equal(t, model.ChangeWithdraw, lc.ChangeType)
	assert.Equal(t, uint64(500), lc.Token0Amount)
	assert.Equal(t, uint64(499), lc.Token1Amount)
	assert.Equal(t, uint64(100_000), lc.LpAmountBefore)

	p, err := h.engine.LoadPool(h.ctx, res.Pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(99_500), p.LpSupply)
	assert.Equal(t, uint64(99_400), h.balance(res.CreatorLpToken))
	assert.Equal(t, uint64(99_600), h.balance(res.Token0Vault))
	assert.Equal(t, uint64(99_401), h.balance(res.Token1Vault))
	assert.Equal(t, funding-100_000+500, h.balance(alice0))
}

func TestWithdrawRejectsDustShare(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	vault1 := h.account(res.Token1Vault)
	vault1.Amount = 10
	h.rewrite(vault1)

	_, err := h.engine.Withdraw(h.ctx, h.as(alice), WithdrawRequest{
		Pool:          res.Pool,
		OwnerLpToken:  res.CreatorLpToken,
		Token0Account: alice0,
		Token1Account: alice1,
		LpTokenAmount: 500,
	})
	require.ErrorIs(t, err, ErrZeroTradingTokens)
	assert.Equal(t, uint64(99_900), h.balance(res.CreatorLpToken))
	assert.Empty(t, h.events.all())
}

func TestPoolStatusGates(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	err := h.engine.UpdatePoolStatus(h.ctx, h.as(alice), UpdatePoolStatusRequest{Pool: res.Pool, Status: 7})
	require.ErrorIs(t, err, ErrInvalidOwner)

	deposit := DepositRequest{
		Pool:                res.Pool,
		OwnerLpToken:        res.CreatorLpToken,
		Token0Account:       alice0,
		Token1Account:       alice1,
		LpTokenAmount:       10,
		MaximumToken0Amount: funding,
		MaximumToken1Amount: funding,
	}
	withdraw := WithdrawRequest{
		Pool:          res.Pool,
		OwnerLpToken:  res.CreatorLpToken,
		Token0Account: alice0,
		Token1Account: alice1,
		LpTokenAmount: 10,
	}

	tests := []struct {
		name       string
		status     uint8
		depositOK  bool
		withdrawOK bool
		swapOK     bool
	}{
		{name: "all enabled", status: 0, depositOK: true, withdrawOK: true, swapOK: true},
		{name: "deposit and withdraw disabled", status: 3, swapOK: true},
		{name: "swap disabled", status: 4, depositOK: true, withdrawOK: true},
		{name: "deposit and swap disabled", status: 5, withdrawOK: true},
		{name: "all disabled", status: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, h.engine.UpdatePoolStatus(h.ctx, h.as(admin), UpdatePoolStatusRequest{Pool: res.Pool, Status: tt.status}))

			_, err := h.engine.Deposit(h.ctx, h.as(alice), deposit)
			checkGate(t, tt.depositOK, err)
			_, err = h.engine.Withdraw(h.ctx, h.as(alice), withdraw)
			checkGate(t, tt.withdrawOK, err)
			_, err = h.swapIn(res, true, 100, 0)
			checkGate(t, tt.swapOK, err)
		})
	}
}

func checkGate(t *testing.T, ok bool, err error) {
	t.Helper()
	if ok {
		require.NoError(t, err)
		return
	}
	require.ErrorIs(t, err, ErrNotApproved)
}

func TestCollectFees(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	_, err := h.swapIn(res, true, 1_000_000, 0)
	require.NoError(t, err)

	p, err := h.engine.LoadPool(h.ctx, res.Pool)
	require.NoError(t, err)
	require.Equal(t, uint64(300), p.ProtocolFeesToken0)
	require.Equal(t, uint64(100), p.FundFeesToken0)
	vaultBefore := h.balance(res.Token0Vault)

	req := CollectFeeRequest{
		Pool:             res.Pool,
		RecipientToken0:  admin0,
		RecipientToken1:  admin1,
		Amount0Requested: 1_000,
		Amount1Requested: 1_000,
	}
	_, err = h.engine.CollectProtocolFee(h.ctx, h.as(alice), req)
	require.ErrorIs(t, err, ErrInvalidOwner)

	got, err := h.engine.CollectProtocolFee(h.ctx, h.as(admin), req)
	require.NoError(t, err)
	assert.Equal(t, CollectFeeResult{Amount0: 300, Amount1: 0}, got)

	req.Amount0Requested = 60
	got, err = h.engine.CollectFundFee(h.ctx, h.as(admin), req)
	require.NoError(t, err)
	assert.Equal(t, CollectFeeResult{Amount0: 60, Amount1: 0}, got)

	p, err = h.engine.LoadPool(h.ctx, res.Pool)
	require.NoError(t, err)
	assert.Zero(t, p.ProtocolFeesToken0)
	assert.Equal(t, uint64(40), p.FundFeesToken0)
	assert.Equal(t, uint64(360), h.balance(admin0))
	assert.Equal(t, vaultBefore-360, h.balance(res.Token0Vault))
}

func TestAmmConfigAdministration(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.CreateAmmConfig(h.ctx, h.as(alice), feeConfig)
	require.ErrorIs(t, err, ErrInvalidOwner)

	bad := feeConfig
	bad.TradeFeeRate = 1_000_000
	_, err = h.engine.CreateAmmConfig(h.ctx, h.as(admin), bad)
	require.ErrorIs(t, err, ErrInvalidInput)

	cfg, err := h.engine.CreateAmmConfig(h.ctx, h.as(admin), feeConfig)
	require.NoError(t, err)
	want, _, err := DeriveAmmConfig(programID, 0)
	require.NoError(t, err)
	assert.Equal(t, want, cfg.ID)
	assert.Equal(t, admin, cfg.ProtocolOwner)

	_, err = h.engine.CreateAmmConfig(h.ctx, h.as(admin), feeConfig)
	require.ErrorIs(t, err, ErrInvalidInput)

	updated, err := h.engine.UpdateAmmConfig(h.ctx, h.as(admin), UpdateAmmConfigRequest{
		AmmConfig: cfg.ID, Param: pool.ParamFundOwner, NewOwner: alice,
	})
	require.NoError(t, err)
	assert.Equal(t, alice, updated.FundOwner)

	_, err = h.engine.UpdateAmmConfig(h.ctx, h.as(admin), UpdateAmmConfigRequest{AmmConfig: cfg.ID, Param: 9})
	require.ErrorIs(t, err, ErrInvalidInput)

	loaded, err := h.engine.LoadAmmConfig(h.ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, loaded.FundOwner)
}

func TestTransferFeeMint(t *testing.T) {
	h := newHarness(t, withWhitelist(mint0Key))
	schedule := token.TransferFee{Epoch: 0, MaximumFee: 1_000_000_000, BasisPoints: 100}
	m0 := CreateMintRequest{
		Mint:        mint0Key,
		Standard:    token.StandardToken2022,
		Decimals:    6,
		TransferFee: &token.TransferFeeConfig{Older: schedule, Newer: schedule},
	}
	res := h.standardPool(m0, legacy1)

	vault0 := h.account(res.Token0Vault)
	assert.Equal(t, uint64(99_000), vault0.Amount)
	assert.Equal(t, uint64(1_000), vault0.Withheld)
	assert.Equal(t, uint64(99_498), res.Liquidity)

	dep, err := h.engine.Deposit(h.ctx, h.as(alice), DepositRequest{
		Pool:                res.Pool,
		OwnerLpToken:        res.CreatorLpToken,
		Token0Account:       alice0,
		Token1Account:       alice1,
		LpTokenAmount:       1_000,
		MaximumToken0Amount: funding,
		MaximumToken1Amount: funding,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(995), dep.Event.LpChange.Token0Amount)
	assert.Equal(t, uint64(11), dep.Event.LpChange.Token0TransferFee)
	assert.Equal(t, uint64(1_006), dep.Token0Transferred)
	assert.Equal(t, uint64(99_995), h.balance(res.Token0Vault))

	swap, err := h.swapIn(res, true, 1_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), swap.Event.Swap.InputTransferFee)
	assert.Equal(t, uint64(990), swap.Event.Swap.InputAmount)
}

func TestCompressedRecords(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	_, err := h.engine.DemoteRecord(h.ctx, h.as(admin), res.Pool, rentRecipient)
	require.ErrorIs(t, err, lifecycle.ErrNotEligible)

	h.advanceSlots(lifecycle.DefaultCompressionDelay)
	_, err = h.engine.DemoteRecord(h.ctx, h.as(admin), res.Pool, alice)
	require.ErrorIs(t, err, ErrInvalidRentRecipient)
	_, err = h.engine.DemoteRecord(h.ctx, h.as(admin), res.LpMint, rentRecipient)
	require.ErrorIs(t, err, lifecycle.ErrNotCompressible)

	proof, err := h.engine.DemoteRecord(h.ctx, h.as(admin), res.Pool, rentRecipient)
	require.NoError(t, err)
	rent, err := h.store.RentBalance(h.ctx, rentRecipient)
	require.NoError(t, err)
	assert.Positive(t, rent)

	_, err = h.swapIn(res, true, 100, 0)
	require.ErrorIs(t, err, ErrRecordCompressed)
	assert.Equal(t, "RecordCompressed", Code(err))

	first, err := h.engine.PromoteRecord(h.ctx, h.as(alice), proof)
	require.NoError(t, err)
	assert.True(t, first.Written)
	second, err := h.engine.PromoteRecord(h.ctx, h.as(alice), proof)
	require.NoError(t, err)
	assert.False(t, second.Written)

	out, err := h.swapIn(res, true, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(98), out.AmountOut)
}

func TestHydratorPromotesBeforeOperation(t *testing.T) {
	h := newHarness(t, withHydration())
	res := h.standardPool()

	h.advanceSlots(lifecycle.DefaultCompressionDelay)
	for _, addr := range []solana.PublicKey{res.Pool, res.Observation, res.Token0Vault} {
		_, err := h.engine.DemoteRecord(h.ctx, h.as(admin), addr, rentRecipient)
		require.NoError(t, err)
	}

	out, err := h.swapIn(res, true, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(98), out.AmountOut)

	p, err := h.engine.LoadPool(h.ctx, res.Pool)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Slot, p.Info.LastWrittenSlot)
	assert.Equal(t, lifecycle.Decompressed, p.Info.State)
}
