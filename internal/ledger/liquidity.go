package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/curve"
	"cpSwap/internal/model"
	"cpSwap/internal/pool"
	"cpSwap/internal/token"
)

// DepositRequest mints lpTokenAmount LP tokens against a proportional deposit.
type DepositRequest struct {
	Pool                solana.PublicKey `json:"pool"`
	OwnerLpToken        solana.PublicKey `json:"owner_lp_token"`
	Token0Account       solana.PublicKey `json:"token_0_account"`
	Token1Account       solana.PublicKey `json:"token_1_account"`
	LpTokenAmount       uint64           `json:"lp_token_amount"`
	MaximumToken0Amount uint64           `json:"maximum_token_0_amount"`
	MaximumToken1Amount uint64           `json:"maximum_token_1_amount"`
}

// WithdrawRequest burns lpTokenAmount LP tokens for a proportional payout.
type WithdrawRequest struct {
	Pool                solana.PublicKey `json:"pool"`
	OwnerLpToken        solana.PublicKey `json:"owner_lp_token"`
	Token0Account       solana.PublicKey `json:"token_0_account"`
	Token1Account       solana.PublicKey `json:"token_1_account"`
	LpTokenAmount       uint64           `json:"lp_token_amount"`
	MinimumToken0Amount uint64           `json:"minimum_token_0_amount"`
	MinimumToken1Amount uint64           `json:"minimum_token_1_amount"`
}

// LiquidityResult is the outcome of a deposit or withdrawal.
type LiquidityResult struct {
	Event model.Event `json:"event"`
	// Token amounts moved by the user, including transfer fees.
	Token0Transferred uint64 `json:"token_0_transferred"`
	Token1Transferred uint64 `json:"token_1_transferred"`
}

// liquidityAccounts are the records every deposit and withdrawal touches.
type liquidityAccounts struct {
	pool      *pool.State
	vault0    *token.Account
	vault1    *token.Account
	mint0     *token.Mint
	mint1     *token.Mint
	lpMint    *token.Mint
	lpAccount *token.Account
	user0     *token.Account
	user1     *token.Account
}

func (t *txn) liquidityAccounts(poolID, lpAccount, user0, user1 solana.PublicKey) (*liquidityAccounts, error) {
	var (
		a   liquidityAccounts
		err error
	)
	if a.pool, err = t.pool(poolID); err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	if a.vault0, err = t.vault(a.pool, a.pool.Token0Vault, a.pool.Token0Mint); err != nil {
		return nil, err
	}
	if a.vault1, err = t.vault(a.pool, a.pool.Token1Vault, a.pool.Token1Mint); err != nil {
		return nil, err
	}
	if a.mint0, err = t.mint(a.pool.Token0Mint); err != nil {
		return nil, fmt.Errorf("load token 0 mint: %w", err)
	}
	if a.mint1, err = t.mint(a.pool.Token1Mint); err != nil {
		return nil, fmt.Errorf("load token 1 mint: %w", err)
	}
	if a.lpMint, err = t.mint(a.pool.LpMint); err != nil {
		return nil, fmt.Errorf("load lp mint: %w", err)
	}
	if a.lpMint.MintAuthority != t.e.authority {
		return nil, fmt.Errorf("%w: lp mint %s", ErrInvalidAuthority, a.lpMint.ID)
	}
	if a.lpAccount, err = t.account(lpAccount); err != nil {
		return nil, fmt.Errorf("load lp account: %w", err)
	}
	if a.lpAccount.Mint != a.pool.LpMint {
		return nil, fmt.Errorf("%w: %s holds %s", ErrIncorrectLpMint, a.lpAccount.ID, a.lpAccount.Mint)
	}
	if a.user0, err = t.account(user0); err != nil {
		return nil, fmt.Errorf("load token 0 account: %w", err)
	}
	if a.user1, err = t.account(user1); err != nil {
		return nil, fmt.Errorf("load token 1 account: %w", err)
	}
	return &a, nil
}

// vault loads a pool vault and checks it is controlled by the pool authority.
func (t *txn) vault(p *pool.State, address, mint solana.PublicKey) (*token.Account, error) {
	v, err := t.account(address)
	if err != nil {
		return nil, fmt.Errorf("load vault %s: %w", address, err)
	}
	if v.Owner != t.e.authority {
		return nil, fmt.Errorf("%w: vault %s of pool %s", ErrInvalidAuthority, address, p.ID)
	}
	if v.Mint != mint {
		return nil, fmt.Errorf("%w: vault %s holds %s", ErrInvalidVault, address, v.Mint)
	}
	return v, nil
}

// Deposit adds liquidity in proportion to the current reserves.
func (e *Engine) Deposit(ctx context.Context, call Call, req DepositRequest) (res LiquidityResult, err error) {
	defer e.observe("deposit", time.Now(), &err)
	t := e.begin(ctx, call)
	epoch := call.Clock.Epoch

	if req.LpTokenAmount == 0 {
		return res, fmt.Errorf("%w: lp token amount is zero", ErrInvalidInput)
	}
	a, err := t.liquidityAccounts(req.Pool, req.OwnerLpToken, req.Token0Account, req.Token1Account)
	if err != nil {
		return res, err
	}
	if !a.pool.Enabled(pool.StatusDeposit) {
		return res, fmt.Errorf("%w: deposits disabled on %s", ErrNotApproved, a.pool.ID)
	}

	reserve0, reserve1, err := a.pool.VaultAmountWithoutFee(a.vault0.Amount, a.vault1.Amount)
	if err != nil {
		return res, err
	}
	amounts, err := curve.LpTokensToTradingTokens(req.LpTokenAmount, a.pool.LpSupply, reserve0, reserve1, curve.Ceiling)
	if err != nil {
		return res, err
	}
	fee0, err := e.tokens.InboundFeeSurcharge(a.mint0, amounts.Token0Amount, epoch)
	if err != nil {
		return res, err
	}
	fee1, err := e.tokens.InboundFeeSurcharge(a.mint1, amounts.Token1Amount, epoch)
	if err != nil {
		return res, err
	}
	transfer0, err := checkedAdd(amounts.Token0Amount, fee0)
	if err != nil {
		return res, err
	}
	transfer1, err := checkedAdd(amounts.Token1Amount, fee1)
	if err != nil {
		return res, err
	}

	t.emit(model.NewLpChangeEvent(call.Clock.Slot, call.Clock.UnixTimestamp, model.LpChangeEvent{
		PoolID:            a.pool.ID,
		LpAmountBefore:    a.pool.LpSupply,
		Token0VaultBefore: reserve0,
		Token1VaultBefore: reserve1,
		Token0Amount:      amounts.Token0Amount,
		Token1Amount:      amounts.Token1Amount,
		Token0TransferFee: fee0,
		Token1TransferFee: fee1,
		ChangeType:        model.ChangeDeposit,
	}))

	if transfer0 > req.MaximumToken0Amount || transfer1 > req.MaximumToken1Amount {
		return res, fmt.Errorf("%w: deposit needs %d/%d, max %d/%d", ErrExceededSlippage,
			transfer0, transfer1, req.MaximumToken0Amount, req.MaximumToken1Amount)
	}

	if _, err := e.tokens.TransferIn(a.mint0, a.user0, a.vault0, call.Signer, transfer0, epoch); err != nil {
		return res, fmt.Errorf("transfer token 0: %w", err)
	}
	if _, err := e.tokens.TransferIn(a.mint1, a.user1, a.vault1, call.Signer, transfer1, epoch); err != nil {
		return res, fmt.Errorf("transfer token 1: %w", err)
	}
	supply, err := checkedAdd(a.pool.LpSupply, req.LpTokenAmount)
	if err != nil {
		return res, err
	}
	if err := e.tokens.MintTo(a.lpMint, a.lpAccount, e.authority, req.LpTokenAmount); err != nil {
		return res, fmt.Errorf("mint lp: %w", err)
	}
	a.pool.LpSupply = supply
	a.pool.RecentEpoch = epoch

	t.write(a.pool, a.vault0, a.vault1, a.user0, a.user1, a.lpMint, a.lpAccount)
	if err := t.commit(); err != nil {
		return res, err
	}
	return LiquidityResult{Event: t.events[0], Token0Transferred: transfer0, Token1Transferred: transfer1}, nil
}

// Withdraw removes liquidity in proportion to the current reserves.
func (e *Engine) Withdraw(ctx context.Context, call Call, req WithdrawRequest) (res LiquidityResult, err error) {
	defer e.observe("withdraw", time.Now(), &err)
	t := e.begin(ctx, call)
	epoch := call.Clock.Epoch

	if req.LpTokenAmount == 0 {
		return res, fmt.Errorf("%w: lp token amount is zero", ErrInvalidInput)
	}
	a, err := t.liquidityAccounts(req.Pool, req.OwnerLpToken, req.Token0Account, req.Token1Account)
	if err != nil {
		return res, err
	}
	if !a.pool.Enabled(pool.StatusWithdraw) {
		return res, fmt.Errorf("%w: withdrawals disabled on %s", ErrNotApproved, a.pool.ID)
	}
	if req.LpTokenAmount > a.pool.LpSupply {
		return res, fmt.Errorf("%w: withdraw %d lp of %d", ErrInvalidInput, req.LpTokenAmount, a.pool.LpSupply)
	}

	reserve0, reserve1, err := a.pool.VaultAmountWithoutFee(a.vault0.Amount, a.vault1.Amount)
	if err != nil {
		return res, err
	}
	amounts, err := curve.LpTokensToTradingTokens(req.LpTokenAmount, a.pool.LpSupply, reserve0, reserve1, curve.Floor)
	if err != nil {
		return res, err
	}
	amount0 := min(amounts.Token0Amount, reserve0)
	amount1 := min(amounts.Token1Amount, reserve1)
	fee0, err := e.tokens.OutboundFee(a.mint0, amount0, epoch)
	if err != nil {
		return res, err
	}
	fee1, err := e.tokens.OutboundFee(a.mint1, amount1, epoch)
	if err != nil {
		return res, err
	}
	receive0, receive1 := amount0-fee0, amount1-fee1

	t.emit(model.NewLpChangeEvent(call.Clock.Slot, call.Clock.UnixTimestamp, model.LpChangeEvent{
		PoolID:            a.pool.ID,
		LpAmountBefore:    a.pool.LpSupply,
		Token0VaultBefore: reserve0,
		Token1VaultBefore: reserve1,
		Token0Amount:      receive0,
		Token1Amount:      receive1,
		Token0TransferFee: fee0,
		Token1TransferFee: fee1,
		ChangeType:        model.ChangeWithdraw,
	}))

	if receive0 < req.MinimumToken0Amount || receive1 < req.MinimumToken1Amount {
		return res, fmt.Errorf("%w: withdrawal pays %d/%d, min %d/%d", ErrExceededSlippage,
			receive0, receive1, req.MinimumToken0Amount, req.MinimumToken1Amount)
	}

	if err := e.tokens.Burn(a.lpMint, a.lpAccount, call.Signer, req.LpTokenAmount); err != nil {
		return res, fmt.Errorf("burn lp: %w", err)
	}
	a.pool.LpSupply -= req.LpTokenAmount

	if _, err := e.tokens.TransferOut(a.mint0, a.vault0, a.user0, e.authority, amount0, epoch); err != nil {
		return res, fmt.Errorf("transfer token 0: %w", err)
	}
	if _, err := e.tokens.TransferOut(a.mint1, a.vault1, a.user1, e.authority, amount1, epoch); err != nil {
		return res, fmt.Errorf("transfer token 1: %w", err)
	}
	a.pool.RecentEpoch = epoch

	t.write(a.pool, a.vault0, a.vault1, a.user0, a.user1, a.lpMint, a.lpAccount)
	if err := t.commit(); err != nil {
		return res, err
	}
	return LiquidityResult{Event: t.events[0], Token0Transferred: amount0, Token1Transferred: amount1}, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}
