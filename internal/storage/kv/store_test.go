package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpSwap/internal/storage"
)

func entry(seed byte, slot uint64, compressible bool) storage.Entry {
	var addr solana.PublicKey
	addr[0] = seed
	return storage.Entry{
		Address:         addr,
		Kind:            1,
		Data:            []byte{seed, seed},
		Rent:            1000,
		Compressible:    compressible,
		LastWrittenSlot: slot,
	}
}

func TestCommitCreateConflictWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memdb.New())

	first := entry(1, 10, true)
	require.NoError(t, s.Commit(ctx, &storage.ChangeSet{Creates: []storage.Entry{first}}))

	other := entry(2, 10, true)
	err := s.Commit(ctx, &storage.ChangeSet{
		Creates: []storage.Entry{first},
		Puts:    []storage.Entry{other},
	})
	require.ErrorIs(t, err, storage.ErrExists)

	_, err = s.GetHot(ctx, other.Address)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListHotBySlotFollowsRewrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memdb.New())

	a := entry(1, 5, true)
	b := entry(2, 20, true)
	c := entry(3, 7, false)
	require.NoError(t, s.Commit(ctx, &storage.ChangeSet{Puts: []storage.Entry{a, b, c}}))

	got, err := s.ListHotBySlot(ctx, 0, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.Address, got[0].Address)

	a.LastWrittenSlot = 30
	require.NoError(t, s.Commit(ctx, &storage.ChangeSet{Puts: []storage.Entry{a}}))

	got, err = s.ListHotBySlot(ctx, 0, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListHotBySlot(ctx, 0, 100, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.Address, got[0].Address)
}

func TestColdMoveAndRentCredit(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memdb.New())

	a := entry(1, 5, true)
	require.NoError(t, s.Commit(ctx, &storage.ChangeSet{Creates: []storage.Entry{a}}))

	var recipient solana.PublicKey
	recipient[31] = 9
	cold := storage.ColdEntry{
		ColdAddress: common.HexToHash("0x01"),
		Address:     a.Address,
		Kind:        a.Kind,
		Data:        a.Data,
		DataHash:    common.HexToHash("0x02"),
	}
	cs := &storage.ChangeSet{
		Deletes:  []solana.PublicKey{a.Address},
		ColdPuts: []storage.ColdEntry{cold},
	}
	cs.CreditRent(recipient, a.Rent)
	cs.CreditRent(recipient, 1)
	require.NoError(t, s.Commit(ctx, cs))

	_, err := s.GetHot(ctx, a.Address)
	require.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetCold(ctx, cold.ColdAddress)
	require.NoError(t, err)
	assert.Equal(t, cold, got)

	bal, err := s.RentBalance(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), bal)

	listed, err := s.ListHotBySlot(ctx, 0, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memdb.New())

	hot := entry(1, 10, true)
	cold := storage.ColdEntry{
		ColdAddress:    common.Hash{0x02},
		Address:        solana.PublicKey{0x02},
		Kind:           1,
		Data:           []byte{7},
		DataHash:       common.Hash{0x03},
		CompressedSlot: 12,
	}
	cs := &storage.ChangeSet{Creates: []storage.Entry{hot}, ColdPuts: []storage.ColdEntry{cold}}
	cs.CreditRent(solana.PublicKey{0x09}, 500)
	require.NoError(t, s.Commit(ctx, cs))

	path := filepath.Join(t.TempDir(), "state", "snapshot.rlp")
	require.NoError(t, s.SaveFile(path))

	restored := NewStore(memdb.New())
	require.NoError(t, restored.LoadFile(path))

	got, err := restored.GetHot(ctx, hot.Address)
	require.NoError(t, err)
	assert.Equal(t, hot, got)

	gotCold, err := restored.GetCold(ctx, cold.ColdAddress)
	require.NoError(t, err)
	assert.Equal(t, cold, gotCold)

	rent, err := restored.RentBalance(ctx, solana.PublicKey{0x09})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), rent)

	listed, err := restored.ListHotBySlot(ctx, 0, 100, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	empty := NewStore(memdb.New())
	require.NoError(t, empty.LoadFile(filepath.Join(t.TempDir(), "missing.rlp")))
}
