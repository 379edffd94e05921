package token

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/curve"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds an account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrOwnerMismatch is returned when the authority does not own the source account.
	ErrOwnerMismatch = errors.New("owner does not match")
	// ErrMintMismatch is returned when an account holds a different mint.
	ErrMintMismatch = errors.New("account mint does not match")
	// ErrTransferFeeMismatch is returned when the inverse transfer fee disagrees
	// with the forward fee charged on the grossed-up amount.
	ErrTransferFeeMismatch = errors.New("transfer fee calculation mismatch")
	// ErrFeeOverflow is returned when a fee schedule cannot price an amount.
	ErrFeeOverflow = errors.New("transfer fee overflow")
)

// Program executes token movements over in-memory records. Callers persist
// the mutated records.
type Program struct {
	whitelist map[solana.PublicKey]struct{}
}

// NewProgram returns a program that also accepts the whitelisted mints as
// pool tokens regardless of their extensions.
func NewProgram(whitelist []solana.PublicKey) *Program {
	wl := make(map[solana.PublicKey]struct{}, len(whitelist))
	for _, m := range whitelist {
		wl[m] = struct{}{}
	}
	return &Program{whitelist: wl}
}

// IsSupportedMint reports whether a mint may be paired in a pool.
func (p *Program) IsSupportedMint(m *Mint) bool {
	if m.Standard == StandardLegacy {
		return true
	}
	if _, ok := p.whitelist[m.ID]; ok {
		return true
	}
	for _, ext := range m.Extensions {
		if ext != ExtensionTokenMetadata {
			return false
		}
	}
	return true
}

// InboundFeeSurcharge returns the fee to add on top of postFeeAmount so that
// the destination receives postFeeAmount in full.
func (p *Program) InboundFeeSurcharge(m *Mint, postFeeAmount, epoch uint64) (uint64, error) {
	fee := m.transferFee(epoch)
	if fee == nil {
		return 0, nil
	}
	if postFeeAmount == 0 {
		return 0, fmt.Errorf("%w: zero post-fee amount", curve.ErrInvalidInput)
	}
	if fee.BasisPoints == MaxFeeBasisPoints {
		return fee.MaximumFee, nil
	}

	inverse, ok := fee.CalculateInverseFee(postFeeAmount)
	if !ok {
		return 0, fmt.Errorf("%w: inverse fee of %d", ErrFeeOverflow, postFeeAmount)
	}
	gross, ok := checkedAdd(postFeeAmount, inverse)
	if !ok {
		return 0, fmt.Errorf("%w: %d + %d", ErrFeeOverflow, postFeeAmount, inverse)
	}
	check, ok := fee.CalculateFee(gross)
	if !ok {
		return 0, fmt.Errorf("%w: fee of %d", ErrFeeOverflow, gross)
	}
	if check != inverse {
		return 0, fmt.Errorf("%w: inverse %d, forward %d", ErrTransferFeeMismatch, inverse, check)
	}
	return inverse, nil
}

// OutboundFee returns the fee withheld when preFeeAmount is sent.
func (p *Program) OutboundFee(m *Mint, preFeeAmount, epoch uint64) (uint64, error) {
	fee := m.transferFee(epoch)
	if fee == nil {
		return 0, nil
	}
	out, ok := fee.CalculateFee(preFeeAmount)
	if !ok {
		return 0, fmt.Errorf("%w: fee of %d", ErrFeeOverflow, preFeeAmount)
	}
	return out, nil
}

// TransferIn moves amount from a user account into a pool vault and returns
// the amount debited from the user.
func (p *Program) TransferIn(m *Mint, from, vault *Account, authority solana.PublicKey, amount, epoch uint64) (uint64, error) {
	if _, err := p.transfer(m, from, vault, authority, amount, epoch); err != nil {
		return 0, err
	}
	return amount, nil
}

// TransferOut moves amount from a pool vault to a user account and returns the
// amount credited after the mint's transfer fee.
func (p *Program) TransferOut(m *Mint, vault, to *Account, authority solana.PublicKey, amount, epoch uint64) (uint64, error) {
	return p.transfer(m, vault, to, authority, amount, epoch)
}

func (p *Program) transfer(m *Mint, from, to *Account, authority solana.PublicKey, amount, epoch uint64) (uint64, error) {
	if amount == 0 {
		return 0, nil
	}
	if from.Mint != m.ID || to.Mint != m.ID {
		return 0, fmt.Errorf("%w: transfer of %s", ErrMintMismatch, m.ID)
	}
	if from.Owner != authority {
		return 0, fmt.Errorf("%w: %s is owned by %s", ErrOwnerMismatch, from.ID, from.Owner)
	}
	if from.Amount < amount {
		return 0, fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from.ID, from.Amount, amount)
	}
	fee, err := p.OutboundFee(m, amount, epoch)
	if err != nil {
		return 0, err
	}
	credited := amount - fee
	if to.Amount+credited < to.Amount || to.Withheld+fee < to.Withheld {
		return 0, fmt.Errorf("%w: balance of %s", curve.ErrOverflow, to.ID)
	}

	from.Amount -= amount
	to.Amount += credited
	to.Withheld += fee
	return credited, nil
}

// MintTo issues new tokens to an account.
func (p *Program) MintTo(m *Mint, to *Account, authority solana.PublicKey, amount uint64) error {
	if m.MintAuthority != authority {
		return fmt.Errorf("%w: mint authority of %s", ErrOwnerMismatch, m.ID)
	}
	if to.Mint != m.ID {
		return fmt.Errorf("%w: mint to %s", ErrMintMismatch, to.ID)
	}
	if m.Supply+amount < m.Supply || to.Amount+amount < to.Amount {
		return fmt.Errorf("%w: supply of %s", curve.ErrOverflow, m.ID)
	}
	m.Supply += amount
	to.Amount += amount
	return nil
}

// Burn destroys tokens held by an account.
func (p *Program) Burn(m *Mint, from *Account, authority solana.PublicKey, amount uint64) error {
	if from.Mint != m.ID {
		return fmt.Errorf("%w: burn from %s", ErrMintMismatch, from.ID)
	}
	if from.Owner != authority {
		return fmt.Errorf("%w: %s is owned by %s", ErrOwnerMismatch, from.ID, from.Owner)
	}
	if from.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, burning %d", ErrInsufficientFunds, from.ID, from.Amount, amount)
	}
	if m.Supply < amount {
		return fmt.Errorf("%w: supply of %s below %d", ErrInsufficientFunds, m.ID, amount)
	}
	from.Amount -= amount
	m.Supply -= amount
	return nil
}
