package lifecycle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/blake3"
)

// DeriveColdAddress returns the content address a hot record is demoted to.
func DeriveColdAddress(address, addressTree, programID solana.PublicKey) common.Hash {
	h := blake3.New()
	h.Write(address[:])
	h.Write(addressTree[:])
	h.Write(programID[:])
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// DataHash commits to a cold record's kind, origin and body.
func DataHash(kind Kind, address solana.PublicKey, data []byte) common.Hash {
	h := blake3.New()
	h.Write([]byte{byte(kind)})
	h.Write(address[:])
	h.Write(data)
	var sum common.Hash
	h.Digest().Read(sum[:])
	return sum
}
