package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"cpSwap/internal/lifecycle"
	"cpSwap/internal/model"
	"cpSwap/internal/oracle"
	"cpSwap/internal/pool"
	"cpSwap/internal/storage"
	"cpSwap/internal/token"
)

// txn is the unit of work of one operation. Records are loaded once, mutated
// in memory, and written together on commit.
type txn struct {
	e    *Engine
	ctx  context.Context
	call Call

	records map[solana.PublicKey]lifecycle.Record
	created map[solana.PublicKey]bool
	dirty   map[solana.PublicKey]bool
	order   []solana.PublicKey
	events  []model.Event
}

func (e *Engine) begin(ctx context.Context, call Call) *txn {
	return &txn{
		e:       e,
		ctx:     ctx,
		call:    call,
		records: make(map[solana.PublicKey]lifecycle.Record),
		created: make(map[solana.PublicKey]bool),
		dirty:   make(map[solana.PublicKey]bool),
	}
}

func (t *txn) load(address solana.PublicKey) (lifecycle.Record, error) {
	if rec, ok := t.records[address]; ok {
		return rec, nil
	}

	entry, err := t.e.store.GetHot(t.ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		entry, err = t.hydrate(address)
	}
	if err != nil {
		return nil, err
	}
	rec, err := t.e.lifecycle.Decode(entry)
	if err != nil {
		return nil, err
	}
	t.records[address] = rec
	return rec, nil
}

// hydrate resolves a missing hot record. A cold record is promoted when the
// engine has a hydrator and reported as compressed otherwise.
func (t *txn) hydrate(address solana.PublicKey) (storage.Entry, error) {
	coldAddress := t.e.lifecycle.ColdAddress(address)
	if _, err := t.e.store.GetCold(t.ctx, coldAddress); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Entry{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return storage.Entry{}, fmt.Errorf("load cold record: %w", err)
	}
	if t.e.cfg.Hydrator == nil {
		return storage.Entry{}, fmt.Errorf("%w: %s", ErrRecordCompressed, address)
	}

	proof, err := t.e.cfg.Hydrator.Issue(t.ctx, coldAddress, t.call.Clock.Slot)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("issue proof for %s: %w", address, err)
	}
	if _, err := t.e.lifecycle.Promote(t.ctx, proof, t.call.Clock.Slot); err != nil {
		return storage.Entry{}, fmt.Errorf("hydrate %s: %w", address, err)
	}
	t.e.logger.Debug("hydrated cold record", zap.String("address", address.String()))
	return t.e.store.GetHot(t.ctx, address)
}

// exists reports whether address is occupied in either tier.
func (t *txn) exists(address solana.PublicKey) (bool, error) {
	if _, ok := t.records[address]; ok {
		return true, nil
	}
	if _, err := t.e.store.GetHot(t.ctx, address); err == nil {
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("load hot record: %w", err)
	}
	if _, err := t.e.store.GetCold(t.ctx, t.e.lifecycle.ColdAddress(address)); err == nil {
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("load cold record: %w", err)
	}
	return false, nil
}

func loadAs[T lifecycle.Record](t *txn, address solana.PublicKey, kind lifecycle.Kind) (T, error) {
	var zero T
	rec, err := t.load(address)
	if err != nil {
		return zero, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is a %s, not a %s", ErrInvalidInput, address, rec.Kind(), kind)
	}
	return typed, nil
}

func (t *txn) pool(address solana.PublicKey) (*pool.State, error) {
	return loadAs[*pool.State](t, address, lifecycle.KindPool)
}

func (t *txn) observation(address solana.PublicKey) (*oracle.State, error) {
	return loadAs[*oracle.State](t, address, lifecycle.KindObservation)
}

func (t *txn) account(address solana.PublicKey) (*token.Account, error) {
	return loadAs[*token.Account](t, address, lifecycle.KindTokenAccount)
}

func (t *txn) mint(address solana.PublicKey) (*token.Mint, error) {
	return loadAs[*token.Mint](t, address, lifecycle.KindMint)
}

func (t *txn) ammConfig(address solana.PublicKey) (*pool.AmmConfig, error) {
	return loadAs[*pool.AmmConfig](t, address, lifecycle.KindAmmConfig)
}

// create stages a new record. Commit fails if its address is taken.
func (t *txn) create(rec lifecycle.Record) {
	t.records[rec.Key()] = rec
	t.created[rec.Key()] = true
	t.write(rec)
}

// write marks records as mutated and refreshes their liveness marker.
func (t *txn) write(recs ...lifecycle.Record) {
	for _, rec := range recs {
		t.e.lifecycle.Touch(rec, t.call.Clock.Slot)
		if !t.dirty[rec.Key()] {
			t.dirty[rec.Key()] = true
			t.order = append(t.order, rec.Key())
		}
	}
}

func (t *txn) emit(ev model.Event) {
	t.events = append(t.events, ev)
}

func (t *txn) commit() error {
	cs := &storage.ChangeSet{}
	for _, addr := range t.order {
		entry, err := t.e.lifecycle.Encode(t.records[addr])
		if err != nil {
			return err
		}
		if t.created[addr] {
			cs.Creates = append(cs.Creates, entry)
		} else {
			cs.Puts = append(cs.Puts, entry)
		}
	}
	if !cs.Empty() {
		if err := t.e.store.Commit(t.ctx, cs); err != nil {
			if errors.Is(err, storage.ErrExists) {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			return fmt.Errorf("commit: %w", err)
		}
	}

	if t.e.events != nil && len(t.events) > 0 {
		if err := t.e.events.PutEvents(t.events); err != nil {
			t.e.logger.Error("publish events failed", zap.Error(err), zap.Int("events", len(t.events)))
		}
	}
	return nil
}
