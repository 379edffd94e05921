package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/token"
)

// CreateMintRequest registers a token mint. The signer becomes its authority.
type CreateMintRequest struct {
	Mint        solana.PublicKey         `json:"mint"`
	Standard    token.Standard           `json:"standard"`
	Decimals    uint8                    `json:"decimals"`
	Extensions  []token.ExtensionType    `json:"extensions"`
	TransferFee *token.TransferFeeConfig `json:"transfer_fee"`
}

// OpenAccountRequest opens a token account. A zero Account selects the
// owner's associated address.
type OpenAccountRequest struct {
	Account solana.PublicKey `json:"account"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
}

// MintToRequest issues tokens. The signer must be the mint authority.
type MintToRequest struct {
	Mint    solana.PublicKey `json:"mint"`
	Account solana.PublicKey `json:"account"`
	Amount  uint64           `json:"amount"`
}

// CreateMint registers a new mint record.
func (e *Engine) CreateMint(ctx context.Context, call Call, req CreateMintRequest) (m *token.Mint, err error) {
	defer e.observe("create_mint", time.Now(), &err)
	t := e.begin(ctx, call)
	if req.Mint.IsZero() {
		return nil, fmt.Errorf("%w: mint address is empty", ErrInvalidInput)
	}
	if req.TransferFee != nil {
		if req.Standard != token.StandardToken2022 {
			return nil, fmt.Errorf("%w: transfer fees need token-2022", ErrInvalidInput)
		}
		for _, f := range []token.TransferFee{req.TransferFee.Older, req.TransferFee.Newer} {
			if f.BasisPoints > token.MaxFeeBasisPoints {
				return nil, fmt.Errorf("%w: transfer fee of %d bps", ErrInvalidInput, f.BasisPoints)
			}
		}
	}
	m = &token.Mint{
		ID:            req.Mint,
		Standard:      req.Standard,
		Decimals:      req.Decimals,
		MintAuthority: call.Signer,
		Extensions:    req.Extensions,
		TransferFee:   req.TransferFee,
	}
	if m.TransferFee != nil && !m.HasExtension(token.ExtensionTransferFeeConfig) {
		m.Extensions = append(m.Extensions, token.ExtensionTransferFeeConfig)
	}
	t.create(m)
	if err := t.commit(); err != nil {
		return nil, err
	}
	return m, nil
}

// OpenAccount creates an empty token account.
func (e *Engine) OpenAccount(ctx context.Context, call Call, req OpenAccountRequest) (a *token.Account, err error) {
	defer e.observe("open_account", time.Now(), &err)
	t := e.begin(ctx, call)
	if _, err := t.mint(req.Mint); err != nil {
		return nil, fmt.Errorf("load mint: %w", err)
	}
	owner := req.Owner
	if owner.IsZero() {
		owner = call.Signer
	}
	address := req.Account
	if address.IsZero() {
		if address, err = token.AssociatedAddress(owner, req.Mint); err != nil {
			return nil, err
		}
	}
	a = &token.Account{ID: address, Mint: req.Mint, Owner: owner}
	t.create(a)
	if err := t.commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// MintTo issues tokens into an account.
func (e *Engine) MintTo(ctx context.Context, call Call, req MintToRequest) (err error) {
	defer e.observe("mint_to", time.Now(), &err)
	t := e.begin(ctx, call)
	m, err := t.mint(req.Mint)
	if err != nil {
		return fmt.Errorf("load mint: %w", err)
	}
	a, err := t.account(req.Account)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if err := e.tokens.MintTo(m, a, call.Signer, req.Amount); err != nil {
		return err
	}
	t.write(m, a)
	return t.commit()
}
