package token

import (
	"github.com/holiman/uint256"
)

// MaxFeeBasisPoints is a 100% transfer fee.
const MaxFeeBasisPoints uint16 = 10_000

var oneInBasisPoints = uint256.NewInt(uint64(MaxFeeBasisPoints))

// TransferFee is one epoch's transfer fee schedule.
type TransferFee struct {
	Epoch       uint64 `json:"epoch"`
	MaximumFee  uint64 `json:"maximum_fee"`
	BasisPoints uint16 `json:"basis_points"`
}

// TransferFeeConfig holds the schedule in force and the one replacing it.
type TransferFeeConfig struct {
	Older TransferFee `json:"older"`
	Newer TransferFee `json:"newer"`
}

// EpochFee returns the schedule that applies in epoch.
func (c *TransferFeeConfig) EpochFee(epoch uint64) TransferFee {
	if epoch >= c.Newer.Epoch {
		return c.Newer
	}
	return c.Older
}

// CalculateFee returns the fee withheld when preFeeAmount is sent.
func (f TransferFee) CalculateFee(preFeeAmount uint64) (uint64, bool) {
	if f.BasisPoints == 0 || preFeeAmount == 0 {
		return 0, true
	}
	num := new(uint256.Int).Mul(uint256.NewInt(preFeeAmount), uint256.NewInt(uint64(f.BasisPoints)))
	raw, ok := ceilDiv(num, oneInBasisPoints)
	if !ok {
		return 0, false
	}
	if raw > f.MaximumFee {
		return f.MaximumFee, true
	}
	return raw, true
}

// CalculatePreFeeAmount returns the amount to send so that postFeeAmount
// arrives.
func (f TransferFee) CalculatePreFeeAmount(postFeeAmount uint64) (uint64, bool) {
	switch {
	case f.BasisPoints == 0:
		return postFeeAmount, true
	case postFeeAmount == 0:
		return 0, true
	case f.BasisPoints == MaxFeeBasisPoints:
		return checkedAdd(postFeeAmount, f.MaximumFee)
	}

	num := new(uint256.Int).Mul(uint256.NewInt(postFeeAmount), oneInBasisPoints)
	den := uint256.NewInt(uint64(MaxFeeBasisPoints - f.BasisPoints))
	raw := new(uint256.Int).Div(num, den)
	if !new(uint256.Int).Mod(num, den).IsZero() {
		raw.AddUint64(raw, 1)
	}
	if new(uint256.Int).Sub(raw, uint256.NewInt(postFeeAmount)).Cmp(uint256.NewInt(f.MaximumFee)) >= 0 {
		return checkedAdd(postFeeAmount, f.MaximumFee)
	}
	if !raw.IsUint64() {
		return 0, false
	}
	return raw.Uint64(), true
}

// CalculateInverseFee returns the fee charged on the pre-fee amount that
// delivers postFeeAmount.
func (f TransferFee) CalculateInverseFee(postFeeAmount uint64) (uint64, bool) {
	pre, ok := f.CalculatePreFeeAmount(postFeeAmount)
	if !ok {
		return 0, false
	}
	return f.CalculateFee(pre)
}

func ceilDiv(num, den *uint256.Int) (uint64, bool) {
	q := new(uint256.Int).Div(num, den)
	if !new(uint256.Int).Mod(num, den).IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, false
	}
	return q.Uint64(), true
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
