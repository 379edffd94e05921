package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/lifecycle"
	"cpSwap/internal/model"
)

// Operation names accepted by Apply.
const (
	OpCreateMint         = "create_mint"
	OpOpenAccount        = "open_account"
	OpMintTo             = "mint_to"
	OpCreateAmmConfig    = "create_amm_config"
	OpUpdateAmmConfig    = "update_amm_config"
	OpInitialize         = "initialize"
	OpDeposit            = "deposit"
	OpWithdraw           = "withdraw"
	OpSwapBaseInput      = "swap_base_input"
	OpSwapBaseOutput     = "swap_base_output"
	OpCollectProtocolFee = "collect_protocol_fee"
	OpCollectFundFee     = "collect_fund_fee"
	OpUpdatePoolStatus   = "update_pool_status"
	OpPromoteRecord      = "promote_record"
	OpDemoteRecord       = "demote_record"
)

// PromoteRecordRequest names the record to promote. When Proof is absent the
// engine's hydrator issues one for ColdAddress.
type PromoteRecordRequest struct {
	Proof       *lifecycle.Proof `json:"proof,omitempty"`
	ColdAddress common.Hash      `json:"cold_address"`
}

// DemoteRecordRequest names the record to demote and who collects its rent.
type DemoteRecordRequest struct {
	Address       solana.PublicKey `json:"address"`
	RentRecipient solana.PublicKey `json:"rent_recipient"`
}

// CallFor returns the call context recorded in an operation.
func CallFor(op model.Operation) Call {
	return Call{
		Signer: op.Signer,
		Clock:  Clock{Slot: op.Slot, Epoch: op.Epoch, UnixTimestamp: op.Timestamp},
	}
}

// Apply decodes an operation's params and runs it.
func (e *Engine) Apply(ctx context.Context, op model.Operation) (any, error) {
	call := CallFor(op)
	switch op.Op {
	case OpCreateMint:
		return run(ctx, call, op.Params, e.CreateMint)
	case OpOpenAccount:
		return run(ctx, call, op.Params, e.OpenAccount)
	case OpMintTo:
		return run(ctx, call, op.Params, func(ctx context.Context, call Call, req MintToRequest) (any, error) {
			return nil, e.MintTo(ctx, call, req)
		})
	case OpCreateAmmConfig:
		return run(ctx, call, op.Params, e.CreateAmmConfig)
	case OpUpdateAmmConfig:
		return run(ctx, call, op.Params, e.UpdateAmmConfig)
	case OpInitialize:
		return run(ctx, call, op.Params, e.Initialize)
	case OpDeposit:
		return run(ctx, call, op.Params, e.Deposit)
	case OpWithdraw:
		return run(ctx, call, op.Params, e.Withdraw)
	case OpSwapBaseInput:
		return run(ctx, call, op.Params, e.SwapBaseInput)
	case OpSwapBaseOutput:
		return run(ctx, call, op.Params, e.SwapBaseOutput)
	case OpCollectProtocolFee:
		return run(ctx, call, op.Params, e.CollectProtocolFee)
	case OpCollectFundFee:
		return run(ctx, call, op.Params, e.CollectFundFee)
	case OpUpdatePoolStatus:
		return run(ctx, call, op.Params, func(ctx context.Context, call Call, req UpdatePoolStatusRequest) (any, error) {
			return nil, e.UpdatePoolStatus(ctx, call, req)
		})
	case OpPromoteRecord:
		return run(ctx, call, op.Params, e.promoteRequest)
	case OpDemoteRecord:
		return run(ctx, call, op.Params, func(ctx context.Context, call Call, req DemoteRecordRequest) (lifecycle.Proof, error) {
			return e.DemoteRecord(ctx, call, req.Address, req.RentRecipient)
		})
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, op.Op)
	}
}

func (e *Engine) promoteRequest(ctx context.Context, call Call, req PromoteRecordRequest) (lifecycle.PromoteResult, error) {
	if req.Proof != nil {
		return e.PromoteRecord(ctx, call, *req.Proof)
	}
	if e.cfg.Hydrator == nil {
		return lifecycle.PromoteResult{}, fmt.Errorf("%w: promote needs a proof", ErrInvalidInput)
	}
	proof, err := e.cfg.Hydrator.Issue(ctx, req.ColdAddress, call.Clock.Slot)
	if err != nil {
		return lifecycle.PromoteResult{}, err
	}
	return e.PromoteRecord(ctx, call, proof)
}

func run[Req, Res any](ctx context.Context, call Call, params json.RawMessage, fn func(context.Context, Call, Req) (Res, error)) (any, error) {
	var req Req
	if len(bytes.TrimSpace(params)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(params))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: decode params: %v", ErrInvalidInput, err)
		}
	}
	return fn(ctx, call, req)
}
