package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/lifecycle"
)

// Account holds a balance of one mint for one owner. Pool vaults are accounts
// owned by the pool authority.
type Account struct {
	ID solana.PublicKey `json:"id" rlp:"-"`

	Mint     solana.PublicKey `json:"mint"`
	Owner    solana.PublicKey `json:"owner"`
	Amount   uint64           `json:"amount"`
	Withheld uint64           `json:"withheld"`

	Info lifecycle.Info `json:"compression" rlp:"-"`
}

func (a *Account) Key() solana.PublicKey        { return a.ID }
func (a *Account) Kind() lifecycle.Kind         { return lifecycle.KindTokenAccount }
func (a *Account) Compression() *lifecycle.Info { return &a.Info }
func (a *Account) ToCold() ([]byte, error)      { return lifecycle.EncodeBody(a) }
func (a *Account) FromCold(proof lifecycle.Proof) error {
	if proof.Kind != lifecycle.KindTokenAccount {
		return fmt.Errorf("expected %s body, got %s", lifecycle.KindTokenAccount, proof.Kind)
	}
	if err := lifecycle.DecodeBody(proof.Data, a); err != nil {
		return err
	}
	a.ID = proof.Address
	return nil
}

// AssociatedAddress returns the canonical account of owner for mint.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated account: %w", err)
	}
	return addr, nil
}
