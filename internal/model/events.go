package model

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

const (
	EventLpChange = "lp_change"
	EventSwap     = "swap"
)

// ChangeType distinguishes deposits from withdrawals in LpChangeEvent.
type ChangeType uint8

const (
	ChangeDeposit  ChangeType = 0
	ChangeWithdraw ChangeType = 1
)

// LpChangeEvent is emitted by deposit and withdraw.
type LpChangeEvent struct {
	PoolID            solana.PublicKey `json:"pool_id"`
	LpAmountBefore    uint64           `json:"lp_amount_before"`
	Token0VaultBefore uint64           `json:"token_0_vault_before"`
	Token1VaultBefore uint64           `json:"token_1_vault_before"`
	Token0Amount      uint64           `json:"token_0_amount"`
	Token1Amount      uint64           `json:"token_1_amount"`
	Token0TransferFee uint64           `json:"token_0_transfer_fee"`
	Token1TransferFee uint64           `json:"token_1_transfer_fee"`
	ChangeType        ChangeType       `json:"change_type"`
}

// SwapEvent is emitted by both swap directions.
type SwapEvent struct {
	PoolID            solana.PublicKey `json:"pool_id"`
	InputMint         solana.PublicKey `json:"input_mint"`
	OutputMint        solana.PublicKey `json:"output_mint"`
	InputVaultBefore  uint64           `json:"input_vault_before"`
	OutputVaultBefore uint64           `json:"output_vault_before"`
	InputAmount       uint64           `json:"input_amount"`
	OutputAmount      uint64           `json:"output_amount"`
	InputTransferFee  uint64           `json:"input_transfer_fee"`
	OutputTransferFee uint64           `json:"output_transfer_fee"`
	TradeFee          uint64           `json:"trade_fee"`
	BaseInput         bool             `json:"base_input"`
	ZeroForOne        bool             `json:"zero_for_one"`
}

// Event is the envelope written to event sinks.
type Event struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Slot      uint64           `json:"slot"`
	Timestamp uint64           `json:"timestamp"`
	PoolID    solana.PublicKey `json:"pool_id"`
	LpChange  *LpChangeEvent   `json:"lp_change,omitempty"`
	Swap      *SwapEvent       `json:"swap,omitempty"`
}

func NewLpChangeEvent(slot, timestamp uint64, e LpChangeEvent) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      EventLpChange,
		Slot:      slot,
		Timestamp: timestamp,
		PoolID:    e.PoolID,
		LpChange:  &e,
	}
}

func NewSwapEvent(slot, timestamp uint64, e SwapEvent) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      EventSwap,
		Slot:      slot,
		Timestamp: timestamp,
		PoolID:    e.PoolID,
		Swap:      &e,
	}
}
