package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"cpSwap/internal/pool"
	"cpSwap/internal/token"
)

// CollectFeeRequest withdraws accrued protocol or fund fees from a pool.
type CollectFeeRequest struct {
	Pool             solana.PublicKey `json:"pool"`
	RecipientToken0  solana.PublicKey `json:"recipient_token_0"`
	RecipientToken1  solana.PublicKey `json:"recipient_token_1"`
	Amount0Requested uint64           `json:"amount_0_requested"`
	Amount1Requested uint64           `json:"amount_1_requested"`
}

// CollectFeeResult reports what left the vaults.
type CollectFeeResult struct {
	Amount0 uint64 `json:"amount_0"`
	Amount1 uint64 `json:"amount_1"`
}

// UpdatePoolStatusRequest replaces a pool's status bitmask.
type UpdatePoolStatusRequest struct {
	Pool   solana.PublicKey `json:"pool"`
	Status uint8            `json:"status"`
}

// CreateAmmConfigRequest creates a fee config at the index-derived address.
type CreateAmmConfigRequest struct {
	Index           uint16 `json:"index"`
	TradeFeeRate    uint64 `json:"trade_fee_rate"`
	ProtocolFeeRate uint64 `json:"protocol_fee_rate"`
	FundFeeRate     uint64 `json:"fund_fee_rate"`
	CreatePoolFee   uint64 `json:"create_pool_fee"`
}

// UpdateAmmConfigRequest changes one fee config parameter.
type UpdateAmmConfigRequest struct {
	AmmConfig solana.PublicKey `json:"amm_config"`
	Param     uint8            `json:"param"`
	Value     uint64           `json:"value"`
	NewOwner  solana.PublicKey `json:"new_owner"`
}

// CollectProtocolFee pays accrued protocol fees to the protocol owner's accounts.
func (e *Engine) CollectProtocolFee(ctx context.Context, call Call, req CollectFeeRequest) (res CollectFeeResult, err error) {
	defer e.observe("collect_protocol_fee", time.Now(), &err)
	return e.collect(ctx, call, req, func(p *pool.State, cfg *pool.AmmConfig) (owner solana.PublicKey, fee0, fee1 *uint64) {
		return cfg.ProtocolOwner, &p.ProtocolFeesToken0, &p.ProtocolFeesToken1
	})
}

// CollectFundFee pays accrued fund fees to the fund owner's accounts.
func (e *Engine) CollectFundFee(ctx context.Context, call Call, req CollectFeeRequest) (res CollectFeeResult, err error) {
	defer e.observe("collect_fund_fee", time.Now(), &err)
	return e.collect(ctx, call, req, func(p *pool.State, cfg *pool.AmmConfig) (owner solana.PublicKey, fee0, fee1 *uint64) {
		return cfg.FundOwner, &p.FundFeesToken0, &p.FundFeesToken1
	})
}

type feeSelector func(p *pool.State, cfg *pool.AmmConfig) (owner solana.PublicKey, fee0, fee1 *uint64)

func (e *Engine) collect(ctx context.Context, call Call, req CollectFeeRequest, sel feeSelector) (CollectFeeResult, error) {
	t := e.begin(ctx, call)
	epoch := call.Clock.Epoch

	p, err := t.pool(req.Pool)
	if err != nil {
		return CollectFeeResult{}, fmt.Errorf("load pool: %w", err)
	}
	cfg, err := t.ammConfig(p.AmmConfig)
	if err != nil {
		return CollectFeeResult{}, fmt.Errorf("load amm config: %w", err)
	}
	owner, fee0, fee1 := sel(p, cfg)
	if call.Signer != owner && call.Signer != e.cfg.Authority.Admin {
		return CollectFeeResult{}, fmt.Errorf("%w: %s may not collect fees", ErrInvalidOwner, call.Signer)
	}

	amount0 := min(req.Amount0Requested, *fee0)
	amount1 := min(req.Amount1Requested, *fee1)

	vault0, err := t.vault(p, p.Token0Vault, p.Token0Mint)
	if err != nil {
		return CollectFeeResult{}, err
	}
	vault1, err := t.vault(p, p.Token1Vault, p.Token1Mint)
	if err != nil {
		return CollectFeeResult{}, err
	}
	if err := t.payOut(p.Token0Mint, vault0, req.RecipientToken0, amount0); err != nil {
		return CollectFeeResult{}, fmt.Errorf("pay token 0: %w", err)
	}
	if err := t.payOut(p.Token1Mint, vault1, req.RecipientToken1, amount1); err != nil {
		return CollectFeeResult{}, fmt.Errorf("pay token 1: %w", err)
	}
	*fee0 -= amount0
	*fee1 -= amount1
	p.RecentEpoch = epoch

	t.write(p, vault0, vault1)
	if err := t.commit(); err != nil {
		return CollectFeeResult{}, err
	}
	return CollectFeeResult{Amount0: amount0, Amount1: amount1}, nil
}

func (t *txn) payOut(mintAddress solana.PublicKey, vault *token.Account, recipient solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	m, err := t.mint(mintAddress)
	if err != nil {
		return err
	}
	to, err := t.account(recipient)
	if err != nil {
		return err
	}
	if _, err := t.e.tokens.TransferOut(m, vault, to, t.e.authority, amount, t.call.Clock.Epoch); err != nil {
		return err
	}
	t.write(to)
	return nil
}

// UpdatePoolStatus replaces a pool's status bitmask. Admin only.
func (e *Engine) UpdatePoolStatus(ctx context.Context, call Call, req UpdatePoolStatusRequest) (err error) {
	defer e.observe("update_pool_status", time.Now(), &err)
	if err := e.requireAdmin(call); err != nil {
		return err
	}
	t := e.begin(ctx, call)
	p, err := t.pool(req.Pool)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	p.SetStatus(req.Status)
	p.RecentEpoch = call.Clock.Epoch
	t.write(p)
	if err := t.commit(); err != nil {
		return err
	}
	e.logger.Info("pool status updated", zap.String("pool", p.ID.String()), zap.Uint8("status", req.Status))
	return nil
}

// CreateAmmConfig creates a fee config owned by the admin. Admin only.
func (e *Engine) CreateAmmConfig(ctx context.Context, call Call, req CreateAmmConfigRequest) (cfg *pool.AmmConfig, err error) {
	defer e.observe("create_amm_config", time.Now(), &err)
	if err := e.requireAdmin(call); err != nil {
		return nil, err
	}
	t := e.begin(ctx, call)

	address, bump, err := DeriveAmmConfig(e.cfg.ProgramID, req.Index)
	if err != nil {
		return nil, err
	}
	taken, err := t.exists(address)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: amm config %d already exists at %s", ErrInvalidInput, req.Index, address)
	}

	cfg = &pool.AmmConfig{
		ID:              address,
		Bump:            bump,
		Index:           req.Index,
		TradeFeeRate:    req.TradeFeeRate,
		ProtocolFeeRate: req.ProtocolFeeRate,
		FundFeeRate:     req.FundFeeRate,
		CreatePoolFee:   req.CreatePoolFee,
		ProtocolOwner:   call.Signer,
		FundOwner:       call.Signer,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t.create(cfg)
	if err := t.commit(); err != nil {
		return nil, err
	}
	e.logger.Info("amm config created", zap.String("amm_config", address.String()), zap.Uint16("index", req.Index))
	return cfg, nil
}

// UpdateAmmConfig changes one fee config parameter. Admin only.
func (e *Engine) UpdateAmmConfig(ctx context.Context, call Call, req UpdateAmmConfigRequest) (cfg *pool.AmmConfig, err error) {
	defer e.observe("update_amm_config", time.Now(), &err)
	if err := e.requireAdmin(call); err != nil {
		return nil, err
	}
	t := e.begin(ctx, call)
	cfg, err = t.ammConfig(req.AmmConfig)
	if err != nil {
		return nil, fmt.Errorf("load amm config: %w", err)
	}
	if err := cfg.Update(req.Param, req.Value, req.NewOwner); err != nil {
		return nil, err
	}
	t.write(cfg)
	if err := t.commit(); err != nil {
		return nil, err
	}
	return cfg, nil
}
