package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/lifecycle"
)

// Token2022ProgramID owns mints that may carry extensions.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PJnBqCXEpPxuEb")

// Standard is the token program a mint belongs to.
type Standard uint8

const (
	StandardLegacy Standard = iota
	StandardToken2022
)

// ProgramID returns the owning program of the standard.
func (s Standard) ProgramID() solana.PublicKey {
	if s == StandardToken2022 {
		return Token2022ProgramID
	}
	return solana.TokenProgramID
}

// ExtensionType numbers follow the token-2022 program.
type ExtensionType uint16

const (
	ExtensionTransferFeeConfig  ExtensionType = 1
	ExtensionMintCloseAuthority ExtensionType = 3
	ExtensionPermanentDelegate  ExtensionType = 12
	ExtensionMetadataPointer    ExtensionType = 18
	ExtensionTokenMetadata      ExtensionType = 19
)

// Mint is a fungible token definition.
type Mint struct {
	ID solana.PublicKey `json:"id" rlp:"-"`

	Standard      Standard           `json:"standard"`
	Decimals      uint8              `json:"decimals"`
	Supply        uint64             `json:"supply"`
	MintAuthority solana.PublicKey   `json:"mint_authority"`
	Extensions    []ExtensionType    `json:"extensions"`
	TransferFee   *TransferFeeConfig `json:"transfer_fee,omitempty" rlp:"nil"`

	Info lifecycle.Info `json:"-" rlp:"-"`
}

func (m *Mint) Key() solana.PublicKey        { return m.ID }
func (m *Mint) Kind() lifecycle.Kind         { return lifecycle.KindMint }
func (m *Mint) Compression() *lifecycle.Info { return &m.Info }
func (m *Mint) ToCold() ([]byte, error)      { return lifecycle.EncodeBody(m) }
func (m *Mint) FromCold(proof lifecycle.Proof) error {
	if proof.Kind != lifecycle.KindMint {
		return fmt.Errorf("expected %s body, got %s", lifecycle.KindMint, proof.Kind)
	}
	if err := lifecycle.DecodeBody(proof.Data, m); err != nil {
		return err
	}
	m.ID = proof.Address
	return nil
}

// HasExtension reports whether the mint carries ext.
func (m *Mint) HasExtension(ext ExtensionType) bool {
	for _, e := range m.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// transferFee returns the schedule active in epoch, or nil when the mint
// charges no transfer fee.
func (m *Mint) transferFee(epoch uint64) *TransferFee {
	if m.Standard != StandardToken2022 || m.TransferFee == nil || !m.HasExtension(ExtensionTransferFeeConfig) {
		return nil
	}
	fee := m.TransferFee.EpochFee(epoch)
	return &fee
}
