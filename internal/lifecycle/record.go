package lifecycle

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Kind tags the record type stored at an address.
type Kind uint8

const (
	KindPool Kind = iota + 1
	KindObservation
	KindTokenAccount
	KindMint
	KindAmmConfig
)

func (k Kind) String() string {
	switch k {
	case KindPool:
		return "pool"
	case KindObservation:
		return "observation"
	case KindTokenAccount:
		return "token_account"
	case KindMint:
		return "mint"
	case KindAmmConfig:
		return "amm_config"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is a ledger record that can be demoted to cold storage and promoted
// back. ToCold and FromCold must round-trip every field except the liveness
// marker.
type Record interface {
	Key() solana.PublicKey
	Kind() Kind
	Compression() *Info
	ToCold() ([]byte, error)
	FromCold(proof Proof) error
}

// Factory returns an empty record of one kind.
type Factory func() Record

// rentExemptOverhead and lamportsPerByte mirror the host's rent-exempt minimum.
const (
	rentExemptOverhead = 128
	lamportsPerByte    = 6960
)

// RentExempt returns the lamports a hot record of size bytes locks up.
func RentExempt(size int) uint64 {
	return uint64(rentExemptOverhead+size) * lamportsPerByte
}
