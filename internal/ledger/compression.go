package ledger

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/lifecycle"
)

// PromoteRecord restores a cold record to the hot tier. Promoting a record
// that is already hot succeeds without writing.
func (e *Engine) PromoteRecord(ctx context.Context, call Call, proof lifecycle.Proof) (res lifecycle.PromoteResult, err error) {
	defer e.observe("promote_record", time.Now(), &err)
	return e.lifecycle.Promote(ctx, proof, call.Clock.Slot)
}

// DemoteRecord moves an idle record to the cold tier and credits its rent.
func (e *Engine) DemoteRecord(ctx context.Context, call Call, address, rentRecipient solana.PublicKey) (proof lifecycle.Proof, err error) {
	defer e.observe("demote_record", time.Now(), &err)
	return e.lifecycle.Demote(ctx, address, rentRecipient, call.Clock.Slot)
}
