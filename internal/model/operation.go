package model

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go"
)

// Operation is one line of an apply input file.
type Operation struct {
	ID        string           `json:"id,omitempty"`
	Op        string           `json:"op"`
	Signer    solana.PublicKey `json:"signer"`
	Slot      uint64           `json:"slot"`
	Epoch     uint64           `json:"epoch"`
	Timestamp uint64           `json:"timestamp"`
	Params    json.RawMessage  `json:"params"`
}

// OperationError records a failed operation.
type OperationError struct {
	Line  int    `json:"line"`
	ID    string `json:"id,omitempty"`
	Op    string `json:"op,omitempty"`
	Slot  uint64 `json:"slot,omitempty"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
