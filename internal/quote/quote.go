// Package quote computes client-side amounts and slippage bounds for pool
// operations. It prices trades with the same curve and transfer-fee code the
// ledger settles with, so a quote built from a fresh snapshot matches the
// settlement of the same request.
package quote

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"cpSwap/internal/curve"
	"cpSwap/internal/pool"
	"cpSwap/internal/token"
)

// BpsDenominator is the denominator of a slippage tolerance.
const BpsDenominator uint64 = 10_000

var (
	// ErrInvalidSlippage is returned for a tolerance above 100%.
	ErrInvalidSlippage = errors.New("invalid slippage tolerance")
	// ErrStalePool is returned when a snapshot is missing a record.
	ErrStalePool = errors.New("incomplete pool snapshot")
)

// Pool is a point-in-time view of the records a quote reads.
type Pool struct {
	State  *pool.State
	Config *pool.AmmConfig
	Mint0  *token.Mint
	Mint1  *token.Mint
	Vault0 uint64
	Vault1 uint64
	// Epoch selects the transfer-fee schedule.
	Epoch uint64
}

// Swap is a priced swap with the request bounds for a tolerance.
type Swap struct {
	ZeroForOne bool `json:"zero_for_one"`
	// AmountIn is debited from the user, AmountOut credited to the user.
	AmountIn          uint64 `json:"amount_in"`
	AmountOut         uint64 `json:"amount_out"`
	TradeFee          uint64 `json:"trade_fee"`
	InputTransferFee  uint64 `json:"input_transfer_fee"`
	OutputTransferFee uint64 `json:"output_transfer_fee"`
	MinAmountOut      uint64 `json:"min_amount_out"`
	MaxAmountIn       uint64 `json:"max_amount_in"`
}

// Liquidity is a priced deposit or withdrawal.
type Liquidity struct {
	LpTokenAmount uint64 `json:"lp_token_amount"`
	Token0Amount  uint64 `json:"token_0_amount"`
	Token1Amount  uint64 `json:"token_1_amount"`
	Token0Fee     uint64 `json:"token_0_transfer_fee"`
	Token1Fee     uint64 `json:"token_1_transfer_fee"`
	// Bound0 and Bound1 are maxima for deposits and minima for withdrawals.
	Bound0 uint64 `json:"bound_0"`
	Bound1 uint64 `json:"bound_1"`
}

var fees = token.NewProgram(nil)

func (p Pool) validate() error {
	if p.State == nil || p.Config == nil || p.Mint0 == nil || p.Mint1 == nil {
		return ErrStalePool
	}
	return nil
}

func (p Pool) reserves() (uint64, uint64, error) {
	return p.State.VaultAmountWithoutFee(p.Vault0, p.Vault1)
}

func (p Pool) sides(zeroForOne bool) (in, out *token.Mint, reserveIn, reserveOut uint64, err error) {
	r0, r1, err := p.reserves()
	if err != nil {
		return nil, nil, 0, 0, err
	}
	if zeroForOne {
		return p.Mint0, p.Mint1, r0, r1, nil
	}
	return p.Mint1, p.Mint0, r1, r0, nil
}

// SwapBaseInput quotes selling exactly amountIn.
func SwapBaseInput(p Pool, zeroForOne bool, amountIn, slippageBps uint64) (Swap, error) {
	if err := p.validate(); err != nil {
		return Swap{}, err
	}
	inMint, outMint, reserveIn, reserveOut, err := p.sides(zeroForOne)
	if err != nil {
		return Swap{}, err
	}

	inputFee, err := fees.OutboundFee(inMint, amountIn, p.Epoch)
	if err != nil {
		return Swap{}, err
	}
	if amountIn <= inputFee {
		return Swap{}, fmt.Errorf("%w: nothing left of %d after transfer fee", curve.ErrZeroTradingTokens, amountIn)
	}
	res, err := curve.SwapBaseInput(amountIn-inputFee, reserveIn, reserveOut,
		p.Config.TradeFeeRate, p.Config.ProtocolFeeRate, p.Config.FundFeeRate)
	if err != nil {
		return Swap{}, err
	}
	outputFee, err := fees.OutboundFee(outMint, res.DestinationAmountSwapped, p.Epoch)
	if err != nil {
		return Swap{}, err
	}
	received := res.DestinationAmountSwapped - outputFee
	if received == 0 {
		return Swap{}, fmt.Errorf("%w: nothing left of %d after transfer fee", curve.ErrZeroTradingTokens, res.DestinationAmountSwapped)
	}

	minOut, err := Lower(received, slippageBps)
	if err != nil {
		return Swap{}, err
	}
	return Swap{
		ZeroForOne:        zeroForOne,
		AmountIn:          amountIn,
		AmountOut:         received,
		TradeFee:          res.TradeFee,
		InputTransferFee:  inputFee,
		OutputTransferFee: outputFee,
		MinAmountOut:      minOut,
		MaxAmountIn:       amountIn,
	}, nil
}

// SwapBaseOutput quotes buying exactly amountOut.
func SwapBaseOutput(p Pool, zeroForOne bool, amountOut, slippageBps uint64) (Swap, error) {
	if err := p.validate(); err != nil {
		return Swap{}, err
	}
	if amountOut == 0 {
		return Swap{}, fmt.Errorf("%w: amount out is zero", curve.ErrInvalidInput)
	}
	inMint, outMint, reserveIn, reserveOut, err := p.sides(zeroForOne)
	if err != nil {
		return Swap{}, err
	}

	outputFee, err := fees.InboundFeeSurcharge(outMint, amountOut, p.Epoch)
	if err != nil {
		return Swap{}, err
	}
	actualOut, err := add(amountOut, outputFee)
	if err != nil {
		return Swap{}, err
	}
	res, err := curve.SwapBaseOutput(actualOut, reserveIn, reserveOut,
		p.Config.TradeFeeRate, p.Config.ProtocolFeeRate, p.Config.FundFeeRate)
	if err != nil {
		return Swap{}, err
	}
	inputFee, err := fees.InboundFeeSurcharge(inMint, res.SourceAmountSwapped, p.Epoch)
	if err != nil {
		return Swap{}, err
	}
	debit, err := add(res.SourceAmountSwapped, inputFee)
	if err != nil {
		return Swap{}, err
	}

	maxIn, err := Upper(debit, slippageBps)
	if err != nil {
		return Swap{}, err
	}
	return Swap{
		ZeroForOne:        zeroForOne,
		AmountIn:          debit,
		AmountOut:         amountOut,
		TradeFee:          res.TradeFee,
		InputTransferFee:  inputFee,
		OutputTransferFee: outputFee,
		MinAmountOut:      amountOut,
		MaxAmountIn:       maxIn,
	}, nil
}

// Deposit quotes minting lpAmount LP tokens. Bounds are maximum debits.
func Deposit(p Pool, lpAmount, slippageBps uint64) (Liquidity, error) {
	if err := p.validate(); err != nil {
		return Liquidity{}, err
	}
	r0, r1, err := p.reserves()
	if err != nil {
		return Liquidity{}, err
	}
	amounts, err := curve.LpTokensToTradingTokens(lpAmount, p.State.LpSupply, r0, r1, curve.Ceiling)
	if err != nil {
		return Liquidity{}, err
	}
	fee0, err := fees.InboundFeeSurcharge(p.Mint0, amounts.Token0Amount, p.Epoch)
	if err != nil {
		return Liquidity{}, err
	}
	fee1, err := fees.InboundFeeSurcharge(p.Mint1, amounts.Token1Amount, p.Epoch)
	if err != nil {
		return Liquidity{}, err
	}
	debit0, err := add(amounts.Token0Amount, fee0)
	if err != nil {
		return Liquidity{}, err
	}
	debit1, err := add(amounts.Token1Amount, fee1)
	if err != nil {
		return Liquidity{}, err
	}

	max0, err := Upper(debit0, slippageBps)
	if err != nil {
		return Liquidity{}, err
	}
	max1, err := Upper(debit1, slippageBps)
	if err != nil {
		return Liquidity{}, err
	}
	return Liquidity{
		LpTokenAmount: lpAmount,
		Token0Amount:  debit0,
		Token1Amount:  debit1,
		Token0Fee:     fee0,
		Token1Fee:     fee1,
		Bound0:        max0,
		Bound1:        max1,
	}, nil
}

// Withdraw quotes burning lpAmount LP tokens. Bounds are minimum credits.
func Withdraw(p Pool, lpAmount, slippageBps uint64) (Liquidity, error) {
	if err := p.validate(); err != nil {
		return Liquidity{}, err
	}
	if lpAmount > p.State.LpSupply {
		return Liquidity{}, fmt.Errorf("%w: withdraw %d lp of %d", curve.ErrInvalidInput, lpAmount, p.State.LpSupply)
	}
	r0, r1, err := p.reserves()
	if err != nil {
		return Liquidity{}, err
	}
	amounts, err := curve.LpTokensToTradingTokens(lpAmount, p.State.LpSupply, r0, r1, curve.Floor)
	if err != nil {
		return Liquidity{}, err
	}
	amount0 := min(amounts.Token0Amount, r0)
	amount1 := min(amounts.Token1Amount, r1)
	fee0, err := fees.OutboundFee(p.Mint0, amount0, p.Epoch)
	if err != nil {
		return Liquidity{}, err
	}
	fee1, err := fees.OutboundFee(p.Mint1, amount1, p.Epoch)
	if err != nil {
		return Liquidity{}, err
	}
	credit0, credit1 := amount0-fee0, amount1-fee1

	min0, err := Lower(credit0, slippageBps)
	if err != nil {
		return Liquidity{}, err
	}
	min1, err := Lower(credit1, slippageBps)
	if err != nil {
		return Liquidity{}, err
	}
	return Liquidity{
		LpTokenAmount: lpAmount,
		Token0Amount:  credit0,
		Token1Amount:  credit1,
		Token0Fee:     fee0,
		Token1Fee:     fee1,
		Bound0:        min0,
		Bound1:        min1,
	}, nil
}

// Lower returns amount reduced by slippageBps, rounded down.
func Lower(amount, slippageBps uint64) (uint64, error) {
	if slippageBps > BpsDenominator {
		return 0, fmt.Errorf("%w: %d bps", ErrInvalidSlippage, slippageBps)
	}
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(BpsDenominator-slippageBps))
	v.Div(v, uint256.NewInt(BpsDenominator))
	return v.Uint64(), nil
}

// Upper returns amount raised by slippageBps, rounded up.
func Upper(amount, slippageBps uint64) (uint64, error) {
	if slippageBps > BpsDenominator {
		return 0, fmt.Errorf("%w: %d bps", ErrInvalidSlippage, slippageBps)
	}
	den := uint256.NewInt(BpsDenominator)
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(BpsDenominator+slippageBps))
	v.Add(v, new(uint256.Int).SubUint64(den, 1))
	v.Div(v, den)
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %d plus %d bps", curve.ErrOverflow, amount, slippageBps)
	}
	return v.Uint64(), nil
}

func add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: %d + %d", curve.ErrOverflow, a, b)
	}
	return sum, nil
}
