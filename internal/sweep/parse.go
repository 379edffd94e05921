package sweep

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gagliardetto/solana-go"
)

// ParseAddresses converts base58 strings into hot record addresses.
func ParseAddresses(inputs []string) ([]solana.PublicKey, error) {
	addresses := make([]solana.PublicKey, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		address, err := solana.PublicKeyFromBase58(input)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// ParseColdAddresses converts 0x-prefixed hex strings into cold addresses.
func ParseColdAddresses(inputs []string) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid cold address: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid cold address length: %s", input)
		}
		hashes = append(hashes, common.BytesToHash(data))
	}
	return hashes, nil
}
