package ledger

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"cpSwap/internal/curve"
	"cpSwap/internal/oracle"
	"cpSwap/internal/pool"
	"cpSwap/internal/token"
)

// InitializeRequest creates a pool over two mints and seeds its reserves.
type InitializeRequest struct {
	AmmConfig     solana.PublicKey `json:"amm_config"`
	Token0Mint    solana.PublicKey `json:"token_0_mint"`
	Token1Mint    solana.PublicKey `json:"token_1_mint"`
	CreatorToken0 solana.PublicKey `json:"creator_token_0"`
	CreatorToken1 solana.PublicKey `json:"creator_token_1"`
	// CreatorLpToken defaults to the creator's associated LP account.
	CreatorLpToken solana.PublicKey `json:"creator_lp_token"`
	// CreatorFeeAccount pays the config's create-pool fee, if any.
	CreatorFeeAccount solana.PublicKey `json:"creator_fee_account"`
	InitAmount0       uint64           `json:"init_amount_0"`
	InitAmount1       uint64           `json:"init_amount_1"`
	OpenTime          uint64           `json:"open_time"`
}

// InitializeResult reports the addresses and LP amounts of a new pool.
type InitializeResult struct {
	PoolAddresses
	CreatorLpToken solana.PublicKey `json:"creator_lp_token"`
	Liquidity      uint64           `json:"liquidity"`
	CreatorLp      uint64           `json:"creator_lp"`
	OpenTime       uint64           `json:"open_time"`
}

// Initialize creates a pool, its vaults, LP mint and oracle.
func (e *Engine) Initialize(ctx context.Context, call Call, req InitializeRequest) (res InitializeResult, err error) {
	defer e.observe("initialize", time.Now(), &err)
	t := e.begin(ctx, call)
	now := call.Clock.UnixTimestamp
	epoch := call.Clock.Epoch

	if bytes.Compare(req.Token0Mint[:], req.Token1Mint[:]) >= 0 {
		return res, fmt.Errorf("%w: token 0 mint must sort before token 1 mint", ErrInvalidInput)
	}
	cfg, err := t.ammConfig(req.AmmConfig)
	if err != nil {
		return res, fmt.Errorf("load amm config: %w", err)
	}
	if cfg.DisableCreatePool {
		return res, fmt.Errorf("%w: pool creation disabled by %s", ErrNotApproved, cfg.ID)
	}

	mint0, err := t.mint(req.Token0Mint)
	if err != nil {
		return res, fmt.Errorf("load token 0 mint: %w", err)
	}
	mint1, err := t.mint(req.Token1Mint)
	if err != nil {
		return res, fmt.Errorf("load token 1 mint: %w", err)
	}
	if !e.tokens.IsSupportedMint(mint0) || !e.tokens.IsSupportedMint(mint1) {
		return res, fmt.Errorf("%w: %s / %s", ErrUnsupportedTokenKind, mint0.ID, mint1.ID)
	}

	addrs, err := DerivePoolAddresses(e.cfg.ProgramID, cfg.ID, mint0.ID, mint1.ID)
	if err != nil {
		return res, err
	}
	taken, err := t.exists(addrs.Pool)
	if err != nil {
		return res, err
	}
	if taken {
		return res, fmt.Errorf("%w: pool %s already exists", ErrInvalidInput, addrs.Pool)
	}

	openTime := req.OpenTime
	if openTime <= now {
		openTime = now + 1
	}

	if cfg.CreatePoolFee != 0 {
		if err := t.chargeCreatePoolFee(req.CreatorFeeAccount, cfg.CreatePoolFee); err != nil {
			return res, err
		}
	}

	creator0, err := t.account(req.CreatorToken0)
	if err != nil {
		return res, fmt.Errorf("load creator token 0: %w", err)
	}
	creator1, err := t.account(req.CreatorToken1)
	if err != nil {
		return res, fmt.Errorf("load creator token 1: %w", err)
	}
	vault0 := &token.Account{ID: addrs.Token0Vault, Mint: mint0.ID, Owner: addrs.Authority}
	vault1 := &token.Account{ID: addrs.Token1Vault, Mint: mint1.ID, Owner: addrs.Authority}
	if _, err := e.tokens.TransferIn(mint0, creator0, vault0, call.Signer, req.InitAmount0, epoch); err != nil {
		return res, fmt.Errorf("transfer token 0: %w", err)
	}
	if _, err := e.tokens.TransferIn(mint1, creator1, vault1, call.Signer, req.InitAmount1, epoch); err != nil {
		return res, fmt.Errorf("transfer token 1: %w", err)
	}
	if err := curve.ValidateSupply(vault0.Amount, vault1.Amount); err != nil {
		return res, err
	}

	liquidity := curve.IntegerSqrt(vault0.Amount, vault1.Amount)
	if liquidity < pool.LockLpAmount {
		return res, fmt.Errorf("%w: liquidity %d", ErrInitLpAmountTooLess, liquidity)
	}
	creatorLp := liquidity - pool.LockLpAmount

	lpMint := &token.Mint{
		ID:            addrs.LpMint,
		Standard:      token.StandardLegacy,
		Decimals:      pool.LpMintDecimals,
		MintAuthority: addrs.Authority,
	}
	lpAddress := req.CreatorLpToken
	if lpAddress.IsZero() {
		lpAddress, err = token.AssociatedAddress(call.Signer, lpMint.ID)
		if err != nil {
			return res, err
		}
	}
	lpAccount := &token.Account{ID: lpAddress, Mint: lpMint.ID, Owner: call.Signer}
	if err := e.tokens.MintTo(lpMint, lpAccount, addrs.Authority, creatorLp); err != nil {
		return res, fmt.Errorf("mint lp: %w", err)
	}

	state := &pool.State{
		ID:             addrs.Pool,
		AmmConfig:      cfg.ID,
		PoolCreator:    call.Signer,
		Token0Vault:    vault0.ID,
		Token1Vault:    vault1.ID,
		LpMint:         lpMint.ID,
		Token0Mint:     mint0.ID,
		Token1Mint:     mint1.ID,
		Token0Program:  mint0.Standard.ProgramID(),
		Token1Program:  mint1.Standard.ProgramID(),
		ObservationKey: addrs.Observation,
		AuthBump:       addrs.AuthBump,
		LpMintDecimals: lpMint.Decimals,
		Mint0Decimals:  mint0.Decimals,
		Mint1Decimals:  mint1.Decimals,
		LpSupply:       liquidity,
		OpenTime:       openTime,
		RecentEpoch:    epoch,
	}
	observation := &oracle.State{ID: addrs.Observation, PoolID: addrs.Pool}

	t.create(state)
	t.create(observation)
	t.create(vault0)
	t.create(vault1)
	t.create(lpMint)
	t.create(lpAccount)
	t.write(creator0, creator1)
	if err := t.commit(); err != nil {
		return res, err
	}

	e.logger.Info("pool initialized",
		zap.String("pool", addrs.Pool.String()),
		zap.String("token_0_mint", mint0.ID.String()),
		zap.String("token_1_mint", mint1.ID.String()),
		zap.Uint64("liquidity", liquidity),
		zap.Uint64("open_time", openTime),
	)
	return InitializeResult{
		PoolAddresses:  addrs,
		CreatorLpToken: lpAccount.ID,
		Liquidity:      liquidity,
		CreatorLp:      creatorLp,
		OpenTime:       openTime,
	}, nil
}

func (t *txn) chargeCreatePoolFee(from solana.PublicKey, fee uint64) error {
	receiverAddr := t.e.cfg.Authority.CreatePoolFeeReceiver
	if receiverAddr.IsZero() {
		return fmt.Errorf("%w: no create pool fee receiver configured", ErrInvalidInput)
	}
	receiver, err := t.account(receiverAddr)
	if err != nil {
		return fmt.Errorf("load create pool fee receiver: %w", err)
	}
	payer, err := t.account(from)
	if err != nil {
		return fmt.Errorf("load create pool fee payer: %w", err)
	}
	feeMint, err := t.mint(receiver.Mint)
	if err != nil {
		return fmt.Errorf("load create pool fee mint: %w", err)
	}
	if _, err := t.e.tokens.TransferIn(feeMint, payer, receiver, t.call.Signer, fee, t.call.Clock.Epoch); err != nil {
		return fmt.Errorf("charge create pool fee: %w", err)
	}
	t.write(payer, receiver)
	return nil
}
