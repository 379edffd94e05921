package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/storage"
)

var (
	// ErrInvalidProof is returned when a proof does not match its commitment.
	ErrInvalidProof = errors.New("invalid proof")
	// ErrStaleProof is returned when the committed cold record no longer exists.
	ErrStaleProof = errors.New("stale proof")
)

// Proof attests that a cold record is authentic.
type Proof struct {
	ColdAddress common.Hash      `json:"cold_address"`
	Address     solana.PublicKey `json:"address"`
	Kind        Kind             `json:"kind"`
	Data        hexutil.Bytes    `json:"data"`
	DataHash    common.Hash      `json:"data_hash"`
	IssuedSlot  uint64           `json:"issued_slot"`
}

// Verifier checks proofs before promotion.
type Verifier interface {
	Verify(ctx context.Context, proof Proof) error
}

// Issuer builds proofs for cold records.
type Issuer interface {
	Issue(ctx context.Context, coldAddress common.Hash, slot uint64) (Proof, error)
}

// ProofFromCold builds the proof that describes a stored cold entry.
func ProofFromCold(entry storage.ColdEntry, slot uint64) Proof {
	return Proof{
		ColdAddress: entry.ColdAddress,
		Address:     entry.Address,
		Kind:        Kind(entry.Kind),
		Data:        entry.Data,
		DataHash:    entry.DataHash,
		IssuedSlot:  slot,
	}
}

// checkConsistency validates everything a proof says about itself.
func checkConsistency(proof Proof, addressTree, programID solana.PublicKey) error {
	if got := DeriveColdAddress(proof.Address, addressTree, programID); got != proof.ColdAddress {
		return fmt.Errorf("%w: cold address %s does not derive from %s", ErrInvalidProof, proof.ColdAddress.Hex(), proof.Address)
	}
	if got := DataHash(proof.Kind, proof.Address, proof.Data); got != proof.DataHash {
		return fmt.Errorf("%w: data hash mismatch", ErrInvalidProof)
	}
	return nil
}

// HashVerifier checks proofs against the cold entries committed in a store.
// It also issues proofs, which makes it a complete in-process proof subsystem.
type HashVerifier struct {
	Store       storage.Store
	AddressTree solana.PublicKey
	ProgramID   solana.PublicKey
}

func (v *HashVerifier) Verify(ctx context.Context, proof Proof) error {
	if err := checkConsistency(proof, v.AddressTree, v.ProgramID); err != nil {
		return err
	}
	entry, err := v.Store.GetCold(ctx, proof.ColdAddress)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrStaleProof, proof.ColdAddress.Hex())
		}
		return fmt.Errorf("load cold entry: %w", err)
	}
	if entry.DataHash != proof.DataHash || entry.Address != proof.Address || Kind(entry.Kind) != proof.Kind {
		return fmt.Errorf("%w: commitment mismatch at %s", ErrInvalidProof, proof.ColdAddress.Hex())
	}
	return nil
}

func (v *HashVerifier) Issue(ctx context.Context, coldAddress common.Hash, slot uint64) (Proof, error) {
	entry, err := v.Store.GetCold(ctx, coldAddress)
	if err != nil {
		return Proof{}, fmt.Errorf("load cold entry: %w", err)
	}
	return ProofFromCold(entry, slot), nil
}
