package kv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/rlp"
)

type snapshotPair struct {
	Key   []byte
	Value []byte
}

// Snapshot writes every key of the store to w as one RLP list.
func (s *Store) Snapshot(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.db.NewIterator()
	defer it.Release()

	var pairs []snapshotPair
	for it.Next() {
		pairs = append(pairs, snapshotPair{
			Key:   append([]byte{}, it.Key()...),
			Value: append([]byte{}, it.Value()...),
		})
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate store: %w", err)
	}
	return rlp.Encode(w, pairs)
}

// Restore loads a snapshot written by Snapshot into the store.
func (s *Store) Restore(r io.Reader) error {
	var pairs []snapshotPair
	if err := rlp.NewStream(r, 0).Decode(&pairs); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	for _, p := range pairs {
		if err := batch.Put(p.Key, p.Value); err != nil {
			return fmt.Errorf("restore key: %w", err)
		}
	}
	return batch.Write()
}

// LoadFile restores the snapshot at path. A missing file leaves the store
// empty.
func (s *Store) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()
	return s.Restore(bufio.NewReader(file))
}

// SaveFile replaces the snapshot at path.
func (s *Store) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := s.Snapshot(w); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
