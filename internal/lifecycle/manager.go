package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cpSwap/internal/storage"
)

// DefaultCompressionDelay is the idle window, in slots, before a record may
// be demoted.
const DefaultCompressionDelay uint64 = 100

var (
	// ErrInvalidRentRecipient is returned when demotion names the wrong rent recipient.
	ErrInvalidRentRecipient = errors.New("invalid rent recipient")
	// ErrNotEligible is returned when a record was written too recently to demote.
	ErrNotEligible = errors.New("record not eligible for compression")
	// ErrNotCompressible is returned for record kinds without a cold form.
	ErrNotCompressible = errors.New("record kind is not compressible")
)

// Config holds the deployment-level compression policy.
type Config struct {
	CompressionDelay uint64
	RentRecipient    solana.PublicKey
	AddressTree      solana.PublicKey
	ProgramID        solana.PublicKey
}

// PromoteResult is the outcome of a promotion. Written is false when the
// record was already hot.
type PromoteResult struct {
	Record  Record
	Written bool
}

// Manager moves records between the hot and cold tiers.
type Manager struct {
	cfg      Config
	store    storage.Store
	verifier Verifier
	logger   *zap.Logger
	metrics  *Metrics

	mu    sync.RWMutex
	kinds map[Kind]registration
}

type registration struct {
	factory      Factory
	compressible bool
}

func NewManager(cfg Config, store storage.Store, verifier Verifier, logger *zap.Logger, reg prometheus.Registerer) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		logger:   logger,
		metrics:  NewMetrics(reg),
		kinds:    make(map[Kind]registration),
	}, nil
}

// Register adds a record kind. Only compressible kinds can be demoted.
func (m *Manager) Register(kind Kind, factory Factory, compressible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[kind] = registration{factory: factory, compressible: compressible}
}

func (m *Manager) lookup(kind Kind) (registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.kinds[kind]
	return r, ok
}

// Config returns the compression policy.
func (m *Manager) Config() Config {
	return m.cfg
}

// Touch bumps the liveness marker of a mutated record.
func (m *Manager) Touch(rec Record, slot uint64) {
	rec.Compression().Touch(slot)
}

// ColdAddress returns the content address for a hot address.
func (m *Manager) ColdAddress(address solana.PublicKey) common.Hash {
	return DeriveColdAddress(address, m.cfg.AddressTree, m.cfg.ProgramID)
}

// Eligible reports whether an entry may be demoted at slot now.
func (m *Manager) Eligible(entry storage.Entry, now uint64) bool {
	if !entry.Compressible {
		return false
	}
	info := Info{LastWrittenSlot: entry.LastWrittenSlot, State: Decompressed}
	return info.Eligible(now, m.cfg.CompressionDelay)
}

// Encode turns a record into the hot entry that persists it.
func (m *Manager) Encode(rec Record) (storage.Entry, error) {
	data, err := rec.ToCold()
	if err != nil {
		return storage.Entry{}, fmt.Errorf("encode %s %s: %w", rec.Kind(), rec.Key(), err)
	}
	reg, ok := m.lookup(rec.Kind())
	if !ok {
		return storage.Entry{}, fmt.Errorf("unregistered record kind %s", rec.Kind())
	}
	return storage.Entry{
		Address:         rec.Key(),
		Kind:            uint8(rec.Kind()),
		Data:            data,
		Rent:            RentExempt(len(data)),
		Compressible:    reg.compressible,
		LastWrittenSlot: rec.Compression().LastWrittenSlot,
	}, nil
}

// Decode rebuilds a hot record from its stored entry. Hot and cold bodies
// share one layout, so decoding goes through FromCold.
func (m *Manager) Decode(entry storage.Entry) (Record, error) {
	reg, ok := m.lookup(Kind(entry.Kind))
	if !ok {
		return nil, fmt.Errorf("unregistered record kind %s", Kind(entry.Kind))
	}
	rec := reg.factory()
	proof := Proof{Address: entry.Address, Kind: Kind(entry.Kind), Data: entry.Data}
	if err := rec.FromCold(proof); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", Kind(entry.Kind), entry.Address, err)
	}
	*rec.Compression() = Info{LastWrittenSlot: entry.LastWrittenSlot, State: Decompressed}
	return rec, nil
}

// Demote moves an idle hot record into cold storage and reclaims its rent.
func (m *Manager) Demote(ctx context.Context, address, rentRecipient solana.PublicKey, now uint64) (Proof, error) {
	if rentRecipient != m.cfg.RentRecipient {
		return Proof{}, fmt.Errorf("%w: %s", ErrInvalidRentRecipient, rentRecipient)
	}

	entry, err := m.store.GetHot(ctx, address)
	if err != nil {
		return Proof{}, fmt.Errorf("load hot record: %w", err)
	}
	if reg, ok := m.lookup(Kind(entry.Kind)); !ok || !reg.compressible || !entry.Compressible {
		return Proof{}, fmt.Errorf("%w: %s", ErrNotCompressible, Kind(entry.Kind))
	}
	if !m.Eligible(entry, now) {
		return Proof{}, fmt.Errorf("%w: last written %d, now %d, delay %d",
			ErrNotEligible, entry.LastWrittenSlot, now, m.cfg.CompressionDelay)
	}

	cold := storage.ColdEntry{
		ColdAddress:    m.ColdAddress(address),
		Address:        address,
		Kind:           entry.Kind,
		Data:           entry.Data,
		DataHash:       DataHash(Kind(entry.Kind), address, entry.Data),
		CompressedSlot: now,
	}
	cs := &storage.ChangeSet{
		Deletes:  []solana.PublicKey{address},
		ColdPuts: []storage.ColdEntry{cold},
	}
	cs.CreditRent(rentRecipient, entry.Rent)

	if err := m.store.Commit(ctx, cs); err != nil {
		return Proof{}, fmt.Errorf("commit demotion: %w", err)
	}

	m.metrics.Demotions.Inc()
	m.logger.Debug("record demoted",
		zap.String("address", address.String()),
		zap.Stringer("kind", Kind(entry.Kind)),
		zap.String("cold_address", cold.ColdAddress.Hex()),
		zap.Uint64("rent", entry.Rent),
	)

	return ProofFromCold(cold, now), nil
}

// Promote re-creates a hot record from a verified cold record. Promoting a
// record that is already hot succeeds without writing, so racing callers all
// observe success and exactly one of them writes.
func (m *Manager) Promote(ctx context.Context, proof Proof, now uint64) (PromoteResult, error) {
	if err := checkConsistency(proof, m.cfg.AddressTree, m.cfg.ProgramID); err != nil {
		return PromoteResult{}, err
	}
	if res, ok, err := m.alreadyHot(ctx, proof.Address); err != nil || ok {
		return res, err
	}

	if err := m.verifier.Verify(ctx, proof); err != nil {
		if errors.Is(err, ErrStaleProof) {
			// another caller may have promoted between our read and verify
			if res, ok, herr := m.alreadyHot(ctx, proof.Address); herr == nil && ok {
				return res, nil
			}
		}
		return PromoteResult{}, err
	}

	reg, ok := m.lookup(proof.Kind)
	if !ok || !reg.compressible {
		return PromoteResult{}, fmt.Errorf("%w: %s", ErrNotCompressible, proof.Kind)
	}
	rec := reg.factory()
	if err := rec.FromCold(proof); err != nil {
		return PromoteResult{}, fmt.Errorf("decode cold %s: %w", proof.Kind, err)
	}
	m.Touch(rec, now)

	entry, err := m.Encode(rec)
	if err != nil {
		return PromoteResult{}, err
	}
	cs := &storage.ChangeSet{
		Creates:     []storage.Entry{entry},
		ColdDeletes: []common.Hash{proof.ColdAddress},
	}
	if err := m.store.Commit(ctx, cs); err != nil {
		if errors.Is(err, storage.ErrExists) {
			res, _, herr := m.alreadyHot(ctx, proof.Address)
			if herr != nil {
				return PromoteResult{}, herr
			}
			return res, nil
		}
		return PromoteResult{}, fmt.Errorf("commit promotion: %w", err)
	}

	m.metrics.Promotions.WithLabelValues("written").Inc()
	m.logger.Debug("record promoted",
		zap.String("address", proof.Address.String()),
		zap.Stringer("kind", proof.Kind),
		zap.Uint64("slot", now),
	)
	return PromoteResult{Record: rec, Written: true}, nil
}

func (m *Manager) alreadyHot(ctx context.Context, address solana.PublicKey) (PromoteResult, bool, error) {
	entry, err := m.store.GetHot(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return PromoteResult{}, false, nil
		}
		return PromoteResult{}, false, fmt.Errorf("load hot record: %w", err)
	}
	rec, err := m.Decode(entry)
	if err != nil {
		return PromoteResult{}, false, err
	}
	m.metrics.Promotions.WithLabelValues("noop").Inc()
	return PromoteResult{Record: rec, Written: false}, true, nil
}
