package ledger

import (
	"errors"
	"fmt"

	"cpSwap/internal/curve"
	"cpSwap/internal/lifecycle"
	"cpSwap/internal/pool"
	"cpSwap/internal/storage"
	"cpSwap/internal/token"
)

var (
	ErrInvalidInput      = curve.ErrInvalidInput
	ErrZeroTradingTokens = curve.ErrZeroTradingTokens
	ErrOverflow          = curve.ErrOverflow

	// ErrExceededSlippage is returned when a caller's min/max bound is violated.
	ErrExceededSlippage = errors.New("exceeded desired slippage limit")
	// ErrNotApproved is returned when an operation is disabled by pool status,
	// the pool has not opened yet, or pool creation is disabled.
	ErrNotApproved = errors.New("not approved")
	// ErrInitLpAmountTooLess is returned when initial liquidity is below the locked amount.
	ErrInitLpAmountTooLess = errors.New("init lp amount is less than the locked amount")
	// ErrUnsupportedTokenKind is returned for mints that cannot be pooled.
	ErrUnsupportedTokenKind = errors.New("unsupported token kind")
	// ErrInvalidOwner is returned when the signer does not own what it acts on.
	ErrInvalidOwner = errors.New("invalid owner")
	// ErrInvalidAuthority is returned when a vault or mint is not controlled by
	// the pool authority.
	ErrInvalidAuthority = errors.New("invalid authority")
	// ErrIncorrectLpMint is returned when an LP account holds another mint.
	ErrIncorrectLpMint = errors.New("incorrect lp mint")
	// ErrRecordCompressed is returned when an operation needs a cold record.
	ErrRecordCompressed = errors.New("record is compressed")
	// ErrAccountNotFound is returned when a referenced record does not exist.
	ErrAccountNotFound = errors.New("account not found")

	ErrTransferFeeMismatch  = token.ErrTransferFeeMismatch
	ErrInvalidRentRecipient = lifecycle.ErrInvalidRentRecipient
)

var codes = []struct {
	err  error
	code string
}{
	{ErrExceededSlippage, "ExceededSlippage"},
	{ErrNotApproved, "NotApproved"},
	{ErrInitLpAmountTooLess, "InitLpAmountTooLess"},
	{ErrUnsupportedTokenKind, "UnsupportedTokenKind"},
	{ErrInvalidOwner, "InvalidOwner"},
	{token.ErrOwnerMismatch, "InvalidOwner"},
	{ErrInvalidAuthority, "InvalidAuthority"},
	{ErrIncorrectLpMint, "IncorrectLpMint"},
	{ErrTransferFeeMismatch, "TransferFeeMismatch"},
	{ErrInvalidRentRecipient, "InvalidRentRecipient"},
	{ErrRecordCompressed, "RecordCompressed"},
	{ErrAccountNotFound, "AccountNotFound"},
	{token.ErrInsufficientFunds, "InsufficientFunds"},
	{token.ErrMintMismatch, "InvalidInput"},
	{token.ErrFeeOverflow, "Overflow"},
	{pool.ErrReserveUnderflow, "Overflow"},
	{lifecycle.ErrNotEligible, "NotEligible"},
	{lifecycle.ErrNotCompressible, "NotCompressible"},
	{lifecycle.ErrInvalidProof, "InvalidProof"},
	{lifecycle.ErrStaleProof, "StaleProof"},
	{storage.ErrNotFound, "AccountNotFound"},
	{ErrZeroTradingTokens, "ZeroTradingTokens"},
	{ErrOverflow, "Overflow"},
	{ErrInvalidInput, "InvalidInput"},
}

// Code maps an operation error to its taxonomy name.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}

// ErrInvalidVault is returned when a vault does not belong to the pool or
// holds the wrong mint.
var ErrInvalidVault = fmt.Errorf("%w: invalid vault", ErrInvalidInput)
