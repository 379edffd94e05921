package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// BodyVersion prefixes every encoded record body.
const BodyVersion byte = 1

// ErrBodyVersion is returned when a body was written by an unknown layout.
var ErrBodyVersion = errors.New("unsupported record body version")

// EncodeBody serializes a record body as a version byte followed by RLP.
func EncodeBody(v interface{}) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	out := make([]byte, 0, len(raw)+1)
	out = append(out, BodyVersion)
	return append(out, raw...), nil
}

// DecodeBody is the inverse of EncodeBody.
func DecodeBody(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("decode body: empty")
	}
	if data[0] != BodyVersion {
		return fmt.Errorf("%w: %d", ErrBodyVersion, data[0])
	}
	if err := rlp.DecodeBytes(data[1:], v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
