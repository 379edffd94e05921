package curve

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// FeeRateDenominator is the fixed denominator every fee rate is expressed over.
const FeeRateDenominator uint64 = 1_000_000

var (
	// ErrZeroTradingTokens is returned when a computed trade or liquidity amount is zero.
	ErrZeroTradingTokens = errors.New("zero trading tokens")
	// ErrInvalidInput is returned for arguments the curve cannot price.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOverflow is returned when a result does not fit into 64 bits.
	ErrOverflow = errors.New("arithmetic overflow")

	denominator = uint256.NewInt(FeeRateDenominator)
)

// RoundDirection selects how proportional liquidity amounts are rounded.
type RoundDirection uint8

const (
	// Floor rounds toward zero. Used when tokens leave the pool.
	Floor RoundDirection = iota
	// Ceiling rounds away from zero. Used when tokens enter the pool.
	Ceiling
)

func (d RoundDirection) String() string {
	switch d {
	case Floor:
		return "floor"
	case Ceiling:
		return "ceiling"
	default:
		return fmt.Sprintf("round(%d)", uint8(d))
	}
}

// SwapResult is the outcome of a single swap against the curve.
type SwapResult struct {
	NewReserveIn             uint64
	NewReserveOut            uint64
	SourceAmountSwapped      uint64
	DestinationAmountSwapped uint64
	TradeFee                 uint64
	ProtocolFee              uint64
	FundFee                  uint64
}

// TradingTokenResult is a proportional share of both reserves.
type TradingTokenResult struct {
	Token0Amount uint64
	Token1Amount uint64
}

// SwapBaseInput prices an exact-input swap. The trade fee is taken from the
// input before it reaches the curve and the output is rounded down.
func SwapBaseInput(amountIn, reserveIn, reserveOut, tradeFeeRate, protocolFeeRate, fundFeeRate uint64) (SwapResult, error) {
	tradeFee, err := TradingFee(amountIn, tradeFeeRate)
	if err != nil {
		return SwapResult{}, err
	}
	afterFee := amountIn - tradeFee

	out, err := swapWithoutFeesInput(afterFee, reserveIn, reserveOut)
	if err != nil {
		return SwapResult{}, err
	}
	if out == 0 {
		return SwapResult{}, fmt.Errorf("%w: amount out is zero", ErrZeroTradingTokens)
	}

	return buildResult(amountIn, out, tradeFee, reserveIn, reserveOut, protocolFeeRate, fundFeeRate)
}

// SwapBaseOutput prices an exact-output swap. The required input is rounded up
// and then grossed up by the trade fee so that feeding it back into
// SwapBaseInput yields at least amountOut.
func SwapBaseOutput(amountOut, reserveIn, reserveOut, tradeFeeRate, protocolFeeRate, fundFeeRate uint64) (SwapResult, error) {
	if amountOut == 0 {
		return SwapResult{}, fmt.Errorf("%w: amount out is zero", ErrZeroTradingTokens)
	}
	if amountOut >= reserveOut {
		return SwapResult{}, fmt.Errorf("%w: amount out %d exceeds reserve %d", ErrInvalidInput, amountOut, reserveOut)
	}

	swapped, err := swapWithoutFeesOutput(amountOut, reserveIn, reserveOut)
	if err != nil {
		return SwapResult{}, err
	}
	amountIn, err := preFeeAmount(swapped, tradeFeeRate)
	if err != nil {
		return SwapResult{}, err
	}
	tradeFee, err := TradingFee(amountIn, tradeFeeRate)
	if err != nil {
		return SwapResult{}, err
	}

	return buildResult(amountIn, amountOut, tradeFee, reserveIn, reserveOut, protocolFeeRate, fundFeeRate)
}

// LpTokensToTradingTokens converts an LP amount into its share of both reserves.
func LpTokensToTradingTokens(lpAmount, lpSupply, reserve0, reserve1 uint64, direction RoundDirection) (TradingTokenResult, error) {
	if lpSupply == 0 {
		return TradingTokenResult{}, fmt.Errorf("%w: lp supply is zero", ErrInvalidInput)
	}

	token0, err := proportion(lpAmount, reserve0, lpSupply, direction)
	if err != nil {
		return TradingTokenResult{}, err
	}
	token1, err := proportion(lpAmount, reserve1, lpSupply, direction)
	if err != nil {
		return TradingTokenResult{}, err
	}
	if token0 == 0 || token1 == 0 {
		return TradingTokenResult{}, fmt.Errorf("%w: lp %d maps to (%d, %d)", ErrZeroTradingTokens, lpAmount, token0, token1)
	}

	return TradingTokenResult{Token0Amount: token0, Token1Amount: token1}, nil
}

// ValidateSupply fails unless both reserves hold tokens.
func ValidateSupply(reserve0, reserve1 uint64) error {
	if reserve0 == 0 || reserve1 == 0 {
		return fmt.Errorf("%w: reserves (%d, %d)", ErrZeroTradingTokens, reserve0, reserve1)
	}
	return nil
}

// IntegerSqrt returns floor(sqrt(a*b)).
func IntegerSqrt(a, b uint64) uint64 {
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	// sqrt of a 128-bit value always fits in 64 bits
	return new(uint256.Int).Sqrt(product).Uint64()
}

// ConstantProduct returns a*b without overflow.
func ConstantProduct(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// TradingFee is ceil(amount * rate / denominator).
func TradingFee(amount, tradeFeeRate uint64) (uint64, error) {
	if tradeFeeRate >= FeeRateDenominator {
		return 0, fmt.Errorf("%w: trade fee rate %d", ErrInvalidInput, tradeFeeRate)
	}
	return mulDiv(amount, tradeFeeRate, FeeRateDenominator, Ceiling)
}

// ProtocolFee is floor(tradeFee * rate / denominator).
func ProtocolFee(tradeFee, protocolFeeRate uint64) (uint64, error) {
	return mulDiv(tradeFee, protocolFeeRate, FeeRateDenominator, Floor)
}

// FundFee is floor(tradeFee * rate / denominator).
func FundFee(tradeFee, fundFeeRate uint64) (uint64, error) {
	return mulDiv(tradeFee, fundFeeRate, FeeRateDenominator, Floor)
}

func buildResult(amountIn, amountOut, tradeFee, reserveIn, reserveOut, protocolFeeRate, fundFeeRate uint64) (SwapResult, error) {
	protocolFee, err := ProtocolFee(tradeFee, protocolFeeRate)
	if err != nil {
		return SwapResult{}, err
	}
	fundFee, err := FundFee(tradeFee, fundFeeRate)
	if err != nil {
		return SwapResult{}, err
	}

	newIn := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(amountIn))
	if !newIn.IsUint64() {
		return SwapResult{}, fmt.Errorf("%w: reserve in", ErrOverflow)
	}

	return SwapResult{
		NewReserveIn:             newIn.Uint64(),
		NewReserveOut:            reserveOut - amountOut,
		SourceAmountSwapped:      amountIn,
		DestinationAmountSwapped: amountOut,
		TradeFee:                 tradeFee,
		ProtocolFee:              protocolFee,
		FundFee:                  fundFee,
	}, nil
}

// floor(reserveOut * amountIn / (reserveIn + amountIn))
func swapWithoutFeesInput(amountIn, reserveIn, reserveOut uint64) (uint64, error) {
	num := new(uint256.Int).Mul(uint256.NewInt(reserveOut), uint256.NewInt(amountIn))
	den := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(amountIn))
	if den.IsZero() {
		return 0, fmt.Errorf("%w: empty reserves", ErrInvalidInput)
	}
	return narrow(new(uint256.Int).Div(num, den))
}

// ceil(reserveIn * amountOut / (reserveOut - amountOut))
func swapWithoutFeesOutput(amountOut, reserveIn, reserveOut uint64) (uint64, error) {
	num := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(amountOut))
	den := uint256.NewInt(reserveOut - amountOut)
	return narrow(ceilDiv(num, den))
}

// preFeeAmount grosses amount up so that amount survives the trade fee.
func preFeeAmount(amount, tradeFeeRate uint64) (uint64, error) {
	if tradeFeeRate == 0 {
		return amount, nil
	}
	if tradeFeeRate >= FeeRateDenominator {
		return 0, fmt.Errorf("%w: trade fee rate %d", ErrInvalidInput, tradeFeeRate)
	}
	num := new(uint256.Int).Mul(uint256.NewInt(amount), denominator)
	den := uint256.NewInt(FeeRateDenominator - tradeFeeRate)
	return narrow(ceilDiv(num, den))
}

func proportion(lpAmount, reserve, lpSupply uint64, direction RoundDirection) (uint64, error) {
	return mulDiv(lpAmount, reserve, lpSupply, direction)
}

func mulDiv(a, b, d uint64, direction RoundDirection) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrInvalidInput)
	}
	num := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	den := uint256.NewInt(d)
	if direction == Ceiling {
		return narrow(ceilDiv(num, den))
	}
	return narrow(new(uint256.Int).Div(num, den))
}

// ceilDiv adds one to the quotient only for a non-zero remainder.
func ceilDiv(num, den *uint256.Int) *uint256.Int {
	q := new(uint256.Int).Div(num, den)
	if !new(uint256.Int).Mod(num, den).IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

func narrow(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, v.Dec())
	}
	return v.Uint64(), nil
}
