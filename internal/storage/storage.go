package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/model"
)

var (
	// ErrNotFound is returned when no record lives at the requested address.
	ErrNotFound = errors.New("record not found")
	// ErrExists is returned when a conditional create targets an occupied address.
	ErrExists = errors.New("record already exists")
)

// Entry is a hot record as persisted by a Store.
type Entry struct {
	Address         solana.PublicKey
	Kind            uint8
	Data            []byte
	Rent            uint64
	Compressible    bool
	LastWrittenSlot uint64
}

// ColdEntry is the content-addressed form of a demoted record.
type ColdEntry struct {
	ColdAddress    common.Hash
	Address        solana.PublicKey
	Kind           uint8
	Data           []byte
	DataHash       common.Hash
	CompressedSlot uint64
}

// ChangeSet is the full write set of one operation. A Store applies all of it
// or none of it.
type ChangeSet struct {
	Creates     []Entry
	Puts        []Entry
	Deletes     []solana.PublicKey
	ColdPuts    []ColdEntry
	ColdDeletes []common.Hash
	RentCredits map[solana.PublicKey]uint64
}

// Empty reports whether the change set writes nothing.
func (cs *ChangeSet) Empty() bool {
	return cs == nil || (len(cs.Creates) == 0 && len(cs.Puts) == 0 && len(cs.Deletes) == 0 &&
		len(cs.ColdPuts) == 0 && len(cs.ColdDeletes) == 0 && len(cs.RentCredits) == 0)
}

// CreditRent adds lamports to a recipient's reclaimed rent.
func (cs *ChangeSet) CreditRent(recipient solana.PublicKey, lamports uint64) {
	if lamports == 0 {
		return
	}
	if cs.RentCredits == nil {
		cs.RentCredits = make(map[solana.PublicKey]uint64)
	}
	cs.RentCredits[recipient] += lamports
}

// Store persists hot and cold records.
type Store interface {
	GetHot(ctx context.Context, address solana.PublicKey) (Entry, error)
	GetCold(ctx context.Context, coldAddress common.Hash) (ColdEntry, error)
	// ListHotBySlot returns compressible hot entries last written within
	// [from, to], ordered by slot.
	ListHotBySlot(ctx context.Context, from, to uint64, limit int) ([]Entry, error)
	RentBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	Commit(ctx context.Context, cs *ChangeSet) error
}

// EventSink receives events of committed operations.
type EventSink interface {
	PutEvents(events []model.Event) error
}
