package ledger

import (
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpSwap/internal/lifecycle"
	"cpSwap/internal/model"
	"cpSwap/internal/storage"
)

func (h *harness) op(name string, signer solana.PublicKey, params any) model.Operation {
	h.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(h.t, err)
	return model.Operation{
		Op:        name,
		Signer:    signer,
		Slot:      h.clock.Slot,
		Epoch:     h.clock.Epoch,
		Timestamp: h.clock.UnixTimestamp,
		Params:    raw,
	}
}

func TestApplySwapFromJSON(t *testing.T) {
	h := newHarness(t)
	res := h.standardPool()

	out, err := h.engine.Apply(h.ctx, h.op(OpSwapBaseInput, alice, map[string]any{
		"pool":                 res.Pool.String(),
		"input_token_account":  alice0.String(),
		"output_token_account": alice1.String(),
		"input_vault":          res.Token0Vault.String(),
		"output_vault":         res.Token1Vault.String(),
		"amount_in":            100,
		"minimum_amount_out":   90,
	}))
	require.NoError(t, err)
	swap, ok := out.(SwapResult)
	require.True(t, ok)
	assert.Equal(t, uint64(100), swap.AmountIn)
	assert.Equal(t, uint64(98), swap.AmountOut)
	assert.Equal(t, funding-100_000-100, h.balance(alice0))
	require.Len(t, h.events.all(), 1)
}

func TestApplyRejectsMalformedOperations(t *testing.T) {
	h := newHarness(t)
	h.standardPool()

	tests := []struct {
		name string
		op   model.Operation
	}{
		{name: "unknown op", op: h.op("flash_loan", alice, map[string]any{})},
		{name: "unknown field", op: h.op(OpUpdatePoolStatus, admin, map[string]any{"pool": alice0.String(), "colour": "red"})},
		{name: "bad key", op: h.op(OpMintTo, admin, map[string]any{"mint": "not-base58!", "amount": 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Apply(h.ctx, tt.op)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, "InvalidInput", Code(err))
		})
	}
}

func TestApplyBootstrapOps(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Apply(h.ctx, h.op(OpCreateMint, admin, legacy0))
	require.NoError(t, err)
	_, err = h.engine.Apply(h.ctx, h.op(OpOpenAccount, alice, OpenAccountRequest{Account: alice0, Mint: mint0Key, Owner: alice}))
	require.NoError(t, err)
	out, err := h.engine.Apply(h.ctx, h.op(OpMintTo, admin, MintToRequest{Mint: mint0Key, Account: alice0, Amount: 42}))
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, uint64(42), h.balance(alice0))

	_, err = h.engine.Apply(h.ctx, h.op(OpMintTo, alice, MintToRequest{Mint: mint0Key, Account: alice0, Amount: 1}))
	require.Error(t, err)
	assert.Equal(t, uint64(42), h.balance(alice0))
}

func TestApplyDemoteThenPromoteWithoutProof(t *testing.T) {
	h := newHarness(t, withHydration())
	res := h.standardPool()

	h.advanceSlots(lifecycle.DefaultCompressionDelay)
	out, err := h.engine.Apply(h.ctx, h.op(OpDemoteRecord, admin, DemoteRecordRequest{Address: res.Pool, RentRecipient: rentRecipient}))
	require.NoError(t, err)
	proof, ok := out.(lifecycle.Proof)
	require.True(t, ok)
	_, err = h.store.GetHot(h.ctx, res.Pool)
	require.ErrorIs(t, err, storage.ErrNotFound)

	h.advanceSlots(1)
	out, err = h.engine.Apply(h.ctx, h.op(OpPromoteRecord, alice, PromoteRecordRequest{ColdAddress: proof.ColdAddress}))
	require.NoError(t, err)
	promoted, ok := out.(lifecycle.PromoteResult)
	require.True(t, ok)
	assert.True(t, promoted.Written)

	p, err := h.engine.LoadPool(h.ctx, res.Pool)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Slot, p.Info.LastWrittenSlot)
}

func TestApplyPromoteNeedsProofWithoutHydrator(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Apply(h.ctx, h.op(OpPromoteRecord, alice, PromoteRecordRequest{}))
	require.ErrorIs(t, err, ErrInvalidInput)
}
