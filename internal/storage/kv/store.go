package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database"

	"cpSwap/internal/storage"
)

var (
	hotPrefix  = []byte("h/")
	coldPrefix = []byte("c/")
	rentPrefix = []byte("r/")
	slotPrefix = []byte("s/")
)

type hotValue struct {
	Kind            uint8
	Data            []byte
	Rent            uint64
	Compressible    bool
	LastWrittenSlot uint64
}

type coldValue struct {
	Address        solana.PublicKey
	Kind           uint8
	Data           []byte
	DataHash       common.Hash
	CompressedSlot uint64
}

// Store keeps records in a key-value database. Commits are serialised so a
// conditional create and the writes that follow it are one atomic step.
type Store struct {
	db database.Database
	mu sync.RWMutex
}

func NewStore(db database.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func hotKey(address solana.PublicKey) []byte {
	return append(append([]byte{}, hotPrefix...), address[:]...)
}

func coldKey(coldAddress common.Hash) []byte {
	return append(append([]byte{}, coldPrefix...), coldAddress[:]...)
}

func rentKey(address solana.PublicKey) []byte {
	return append(append([]byte{}, rentPrefix...), address[:]...)
}

// slotKey orders compressible hot records by last written slot.
func slotKey(slot uint64, address solana.PublicKey) []byte {
	key := make([]byte, 0, len(slotPrefix)+8+len(address))
	key = append(key, slotPrefix...)
	key = binary.BigEndian.AppendUint64(key, slot)
	return append(key, address[:]...)
}

func (s *Store) GetHot(_ context.Context, address solana.PublicKey) (storage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getHot(address)
}

func (s *Store) getHot(address solana.PublicKey) (storage.Entry, error) {
	raw, err := s.db.Get(hotKey(address))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return storage.Entry{}, fmt.Errorf("%w: %s", storage.ErrNotFound, address)
		}
		return storage.Entry{}, fmt.Errorf("get hot record: %w", err)
	}
	var v hotValue
	if err := rlp.DecodeBytes(raw, &v); err != nil {
		return storage.Entry{}, fmt.Errorf("decode hot record: %w", err)
	}
	return storage.Entry{
		Address:         address,
		Kind:            v.Kind,
		Data:            v.Data,
		Rent:            v.Rent,
		Compressible:    v.Compressible,
		LastWrittenSlot: v.LastWrittenSlot,
	}, nil
}

func (s *Store) GetCold(_ context.Context, coldAddress common.Hash) (storage.ColdEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.db.Get(coldKey(coldAddress))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return storage.ColdEntry{}, fmt.Errorf("%w: %s", storage.ErrNotFound, coldAddress.Hex())
		}
		return storage.ColdEntry{}, fmt.Errorf("get cold record: %w", err)
	}
	var v coldValue
	if err := rlp.DecodeBytes(raw, &v); err != nil {
		return storage.ColdEntry{}, fmt.Errorf("decode cold record: %w", err)
	}
	return storage.ColdEntry{
		ColdAddress:    coldAddress,
		Address:        v.Address,
		Kind:           v.Kind,
		Data:           v.Data,
		DataHash:       v.DataHash,
		CompressedSlot: v.CompressedSlot,
	}, nil
}

func (s *Store) ListHotBySlot(_ context.Context, from, to uint64, limit int) ([]storage.Entry, error) {
	if to < from {
		return nil, fmt.Errorf("to slot must be >= from slot")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := binary.BigEndian.AppendUint64(append([]byte{}, slotPrefix...), from)
	it := s.db.NewIteratorWithStartAndPrefix(start, slotPrefix)
	defer it.Release()

	var entries []storage.Entry
	for it.Next() {
		if limit > 0 && len(entries) >= limit {
			break
		}
		key := it.Key()
		if len(key) != len(slotPrefix)+8+solana.PublicKeyLength {
			continue
		}
		slot := binary.BigEndian.Uint64(key[len(slotPrefix):])
		if slot > to {
			break
		}
		address := solana.PublicKeyFromBytes(key[len(slotPrefix)+8:])
		entry, err := s.getHot(address)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate slot index: %w", err)
	}
	return entries, nil
}

func (s *Store) RentBalance(_ context.Context, address solana.PublicKey) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rentBalance(address)
}

func (s *Store) rentBalance(address solana.PublicKey) (uint64, error) {
	raw, err := s.db.Get(rentKey(address))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get rent balance: %w", err)
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt rent balance for %s", address)
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Commit applies a change set in a single database batch.
func (s *Store) Commit(_ context.Context, cs *storage.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range cs.Creates {
		has, err := s.db.Has(hotKey(entry.Address))
		if err != nil {
			return fmt.Errorf("check hot record: %w", err)
		}
		if has {
			return fmt.Errorf("%w: %s", storage.ErrExists, entry.Address)
		}
	}

	batch := s.db.NewBatch()
	for _, entry := range append(append([]storage.Entry{}, cs.Creates...), cs.Puts...) {
		if err := s.putHot(batch, entry); err != nil {
			return err
		}
	}
	for _, address := range cs.Deletes {
		if err := s.deleteHot(batch, address); err != nil {
			return err
		}
	}
	for _, cold := range cs.ColdPuts {
		raw, err := rlp.EncodeToBytes(coldValue{
			Address:        cold.Address,
			Kind:           cold.Kind,
			Data:           cold.Data,
			DataHash:       cold.DataHash,
			CompressedSlot: cold.CompressedSlot,
		})
		if err != nil {
			return fmt.Errorf("encode cold record: %w", err)
		}
		if err := batch.Put(coldKey(cold.ColdAddress), raw); err != nil {
			return fmt.Errorf("put cold record: %w", err)
		}
	}
	for _, coldAddress := range cs.ColdDeletes {
		if err := batch.Delete(coldKey(coldAddress)); err != nil {
			return fmt.Errorf("delete cold record: %w", err)
		}
	}

	recipients := make([]solana.PublicKey, 0, len(cs.RentCredits))
	for recipient := range cs.RentCredits {
		recipients = append(recipients, recipient)
	}
	sort.Slice(recipients, func(i, j int) bool {
		return bytes.Compare(recipients[i][:], recipients[j][:]) < 0
	})
	for _, recipient := range recipients {
		balance, err := s.rentBalance(recipient)
		if err != nil {
			return err
		}
		credit := cs.RentCredits[recipient]
		if balance > math.MaxUint64-credit {
			return fmt.Errorf("rent balance overflow for %s", recipient)
		}
		if err := batch.Put(rentKey(recipient), binary.BigEndian.AppendUint64(nil, balance+credit)); err != nil {
			return fmt.Errorf("put rent balance: %w", err)
		}
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (s *Store) putHot(batch database.Batch, entry storage.Entry) error {
	if err := s.dropSlotIndex(batch, entry.Address); err != nil {
		return err
	}
	raw, err := rlp.EncodeToBytes(hotValue{
		Kind:            entry.Kind,
		Data:            entry.Data,
		Rent:            entry.Rent,
		Compressible:    entry.Compressible,
		LastWrittenSlot: entry.LastWrittenSlot,
	})
	if err != nil {
		return fmt.Errorf("encode hot record: %w", err)
	}
	if err := batch.Put(hotKey(entry.Address), raw); err != nil {
		return fmt.Errorf("put hot record: %w", err)
	}
	if entry.Compressible {
		if err := batch.Put(slotKey(entry.LastWrittenSlot, entry.Address), []byte{}); err != nil {
			return fmt.Errorf("put slot index: %w", err)
		}
	}
	return nil
}

func (s *Store) deleteHot(batch database.Batch, address solana.PublicKey) error {
	if err := s.dropSlotIndex(batch, address); err != nil {
		return err
	}
	if err := batch.Delete(hotKey(address)); err != nil {
		return fmt.Errorf("delete hot record: %w", err)
	}
	return nil
}

func (s *Store) dropSlotIndex(batch database.Batch, address solana.PublicKey) error {
	prev, err := s.getHot(address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if !prev.Compressible {
		return nil
	}
	if err := batch.Delete(slotKey(prev.LastWrittenSlot, address)); err != nil {
		return fmt.Errorf("delete slot index: %w", err)
	}
	return nil
}
