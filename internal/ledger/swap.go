package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"cpSwap/internal/curve"
	"cpSwap/internal/model"
	"cpSwap/internal/oracle"
	"cpSwap/internal/pool"
	"cpSwap/internal/token"
)

// SwapBaseInputRequest sells an exact input amount.
type SwapBaseInputRequest struct {
	Pool               solana.PublicKey `json:"pool"`
	InputTokenAccount  solana.PublicKey `json:"input_token_account"`
	OutputTokenAccount solana.PublicKey `json:"output_token_account"`
	InputVault         solana.PublicKey `json:"input_vault"`
	OutputVault        solana.PublicKey `json:"output_vault"`
	AmountIn           uint64           `json:"amount_in"`
	MinimumAmountOut   uint64           `json:"minimum_amount_out"`
}

// SwapBaseOutputRequest buys an exact output amount.
type SwapBaseOutputRequest struct {
	Pool               solana.PublicKey `json:"pool"`
	InputTokenAccount  solana.PublicKey `json:"input_token_account"`
	OutputTokenAccount solana.PublicKey `json:"output_token_account"`
	InputVault         solana.PublicKey `json:"input_vault"`
	OutputVault        solana.PublicKey `json:"output_vault"`
	MaxAmountIn        uint64           `json:"max_amount_in"`
	AmountOut          uint64           `json:"amount_out"`
}

// SwapResult is the outcome of a swap in either mode.
type SwapResult struct {
	Event model.Event `json:"event"`
	// AmountIn is what left the user's input account.
	AmountIn uint64 `json:"amount_in"`
	// AmountOut is what reached the user's output account.
	AmountOut uint64 `json:"amount_out"`
}

type swapAccounts struct {
	pool        *pool.State
	config      *pool.AmmConfig
	observation *oracle.State
	zeroForOne  bool

	inputVault  *token.Account
	outputVault *token.Account
	inputMint   *token.Mint
	outputMint  *token.Mint
	userIn      *token.Account
	userOut     *token.Account

	// fee-net reserves before the trade
	reserveIn  uint64
	reserveOut uint64
	price0     uint128.Uint128
	price1     uint128.Uint128
}

func (t *txn) swapAccounts(poolID, inputVault, outputVault, userIn, userOut solana.PublicKey) (*swapAccounts, error) {
	var (
		s   swapAccounts
		err error
	)
	if s.pool, err = t.pool(poolID); err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	if !s.pool.Enabled(pool.StatusSwap) || t.call.Clock.UnixTimestamp < s.pool.OpenTime {
		return nil, fmt.Errorf("%w: swaps closed on %s", ErrNotApproved, s.pool.ID)
	}

	switch {
	case inputVault == s.pool.Token0Vault && outputVault == s.pool.Token1Vault:
		s.zeroForOne = true
	case inputVault == s.pool.Token1Vault && outputVault == s.pool.Token0Vault:
		s.zeroForOne = false
	default:
		return nil, fmt.Errorf("%w: %s -> %s on pool %s", ErrInvalidVault, inputVault, outputVault, s.pool.ID)
	}
	inputMint, outputMint := s.pool.Token0Mint, s.pool.Token1Mint
	if !s.zeroForOne {
		inputMint, outputMint = outputMint, inputMint
	}

	if s.config, err = t.ammConfig(s.pool.AmmConfig); err != nil {
		return nil, fmt.Errorf("load amm config: %w", err)
	}
	if s.observation, err = t.observation(s.pool.ObservationKey); err != nil {
		return nil, fmt.Errorf("load observation: %w", err)
	}
	if s.inputVault, err = t.vault(s.pool, inputVault, inputMint); err != nil {
		return nil, err
	}
	if s.outputVault, err = t.vault(s.pool, outputVault, outputMint); err != nil {
		return nil, err
	}
	if s.inputMint, err = t.mint(inputMint); err != nil {
		return nil, fmt.Errorf("load input mint: %w", err)
	}
	if s.outputMint, err = t.mint(outputMint); err != nil {
		return nil, fmt.Errorf("load output mint: %w", err)
	}
	if s.userIn, err = t.account(userIn); err != nil {
		return nil, fmt.Errorf("load input account: %w", err)
	}
	if s.userOut, err = t.account(userOut); err != nil {
		return nil, fmt.Errorf("load output account: %w", err)
	}

	vault0, vault1 := s.inputVault.Amount, s.outputVault.Amount
	if !s.zeroForOne {
		vault0, vault1 = vault1, vault0
	}
	reserve0, reserve1, err := s.pool.VaultAmountWithoutFee(vault0, vault1)
	if err != nil {
		return nil, err
	}
	s.reserveIn, s.reserveOut = reserve0, reserve1
	if !s.zeroForOne {
		s.reserveIn, s.reserveOut = reserve1, reserve0
	}
	if s.price0, s.price1, err = s.pool.TokenPriceX32(vault0, vault1); err != nil {
		return nil, err
	}
	return &s, nil
}

// checkInvariant rejects any result that shrinks the fee-less product.
func (s *swapAccounts) checkInvariant(res curve.SwapResult) error {
	before := curve.ConstantProduct(s.reserveIn, s.reserveOut)
	after := curve.ConstantProduct(res.NewReserveIn-res.TradeFee, res.NewReserveOut)
	if after.Lt(before) {
		return fmt.Errorf("%w: constant product decreased from %s to %s", ErrInvalidInput, before.Dec(), after.Dec())
	}
	return nil
}

// settle accrues fees, moves tokens, updates the oracle and stages the event.
func (t *txn) settle(s *swapAccounts, res curve.SwapResult, debit, credit uint64, ev model.SwapEvent) error {
	epoch := t.call.Clock.Epoch
	if err := s.pool.AccrueFees(s.zeroForOne, res.ProtocolFee, res.FundFee); err != nil {
		return err
	}
	if _, err := t.e.tokens.TransferIn(s.inputMint, s.userIn, s.inputVault, t.call.Signer, debit, epoch); err != nil {
		return fmt.Errorf("transfer input: %w", err)
	}
	if _, err := t.e.tokens.TransferOut(s.outputMint, s.outputVault, s.userOut, t.e.authority, credit, epoch); err != nil {
		return fmt.Errorf("transfer output: %w", err)
	}
	if s.observation.Update(t.call.Clock.UnixTimestamp, s.price0, s.price1) {
		t.write(s.observation)
	}
	s.pool.RecentEpoch = epoch

	ev.PoolID = s.pool.ID
	ev.InputMint = s.inputMint.ID
	ev.OutputMint = s.outputMint.ID
	ev.InputVaultBefore = s.reserveIn
	ev.OutputVaultBefore = s.reserveOut
	ev.TradeFee = res.TradeFee
	ev.ZeroForOne = s.zeroForOne
	t.emit(model.NewSwapEvent(t.call.Clock.Slot, t.call.Clock.UnixTimestamp, ev))

	t.write(s.pool, s.inputVault, s.outputVault, s.userIn, s.userOut)
	return nil
}

// SwapBaseInput sells exactly AmountIn and fails if the user would receive
// less than MinimumAmountOut.
func (e *Engine) SwapBaseInput(ctx context.Context, call Call, req SwapBaseInputRequest) (res SwapResult, err error) {
	defer e.observe("swap_base_input", time.Now(), &err)
	t := e.begin(ctx, call)
	epoch := call.Clock.Epoch

	s, err := t.swapAccounts(req.Pool, req.InputVault, req.OutputVault, req.InputTokenAccount, req.OutputTokenAccount)
	if err != nil {
		return res, err
	}

	inputFee, err := e.tokens.OutboundFee(s.inputMint, req.AmountIn, epoch)
	if err != nil {
		return res, err
	}
	actualIn := req.AmountIn - inputFee
	if actualIn == 0 {
		return res, fmt.Errorf("%w: nothing left of %d after transfer fee", ErrZeroTradingTokens, req.AmountIn)
	}

	result, err := curve.SwapBaseInput(actualIn, s.reserveIn, s.reserveOut,
		s.config.TradeFeeRate, s.config.ProtocolFeeRate, s.config.FundFeeRate)
	if err != nil {
		return res, err
	}
	if err := s.checkInvariant(result); err != nil {
		return res, err
	}

	amountOut := result.DestinationAmountSwapped
	outputFee, err := e.tokens.OutboundFee(s.outputMint, amountOut, epoch)
	if err != nil {
		return res, err
	}
	received := amountOut - outputFee
	if received == 0 {
		return res, fmt.Errorf("%w: nothing left of %d after transfer fee", ErrZeroTradingTokens, amountOut)
	}
	if received < req.MinimumAmountOut {
		return res, fmt.Errorf("%w: receive %d, minimum %d", ErrExceededSlippage, received, req.MinimumAmountOut)
	}

	ev := model.SwapEvent{
		InputAmount:       result.SourceAmountSwapped,
		OutputAmount:      amountOut,
		InputTransferFee:  inputFee,
		OutputTransferFee: outputFee,
		BaseInput:         true,
	}
	if err := t.settle(s, result, req.AmountIn, amountOut, ev); err != nil {
		return res, err
	}
	if err := t.commit(); err != nil {
		return res, err
	}
	return SwapResult{Event: t.events[0], AmountIn: req.AmountIn, AmountOut: received}, nil
}

// SwapBaseOutput buys exactly AmountOut and fails if that would cost more
// than MaxAmountIn.
func (e *Engine) SwapBaseOutput(ctx context.Context, call Call, req SwapBaseOutputRequest) (res SwapResult, err error) {
	defer e.observe("swap_base_output", time.Now(), &err)
	t := e.begin(ctx, call)
	epoch := call.Clock.Epoch

	s, err := t.swapAccounts(req.Pool, req.InputVault, req.OutputVault, req.InputTokenAccount, req.OutputTokenAccount)
	if err != nil {
		return res, err
	}
	if req.AmountOut == 0 {
		return res, fmt.Errorf("%w: amount out is zero", ErrInvalidInput)
	}

	outputFee, err := e.tokens.InboundFeeSurcharge(s.outputMint, req.AmountOut, epoch)
	if err != nil {
		return res, err
	}
	actualOut, err := checkedAdd(req.AmountOut, outputFee)
	if err != nil {
		return res, err
	}

	result, err := curve.SwapBaseOutput(actualOut, s.reserveIn, s.reserveOut,
		s.config.TradeFeeRate, s.config.ProtocolFeeRate, s.config.FundFeeRate)
	if err != nil {
		return res, err
	}
	if err := s.checkInvariant(result); err != nil {
		return res, err
	}

	source := result.SourceAmountSwapped
	inputFee, err := e.tokens.InboundFeeSurcharge(s.inputMint, source, epoch)
	if err != nil {
		return res, err
	}
	debit, err := checkedAdd(source, inputFee)
	if err != nil {
		return res, err
	}
	if debit > req.MaxAmountIn {
		return res, fmt.Errorf("%w: costs %d, maximum %d", ErrExceededSlippage, debit, req.MaxAmountIn)
	}

	ev := model.SwapEvent{
		InputAmount:       source,
		OutputAmount:      actualOut,
		InputTransferFee:  inputFee,
		OutputTransferFee: outputFee,
		BaseInput:         false,
	}
	if err := t.settle(s, result, debit, actualOut, ev); err != nil {
		return res, err
	}
	if err := t.commit(); err != nil {
		return res, err
	}
	return SwapResult{Event: t.events[0], AmountIn: debit, AmountOut: req.AmountOut}, nil
}
