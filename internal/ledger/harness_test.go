package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"cpSwap/internal/lifecycle"
	"cpSwap/internal/model"
	"cpSwap/internal/storage"
	"cpSwap/internal/storage/kv"
	"cpSwap/internal/token"
)

const (
	startSlot uint64 = 1000
	startTime uint64 = 1_700_000_000
	funding   uint64 = 10_000_000
)

var (
	programID     = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	admin         = key(0xA0)
	alice         = key(0xA1)
	rentRecipient = key(0xEE)
	addressTree   = key(0xAB)
	feeReceiver   = key(0xFE)

	mint0Key  = key(0x10)
	mint1Key  = key(0x20)
	alice0    = key(0x31)
	alice1    = key(0x32)
	admin0    = key(0x41)
	admin1    = key(0x42)
	legacy0   = CreateMintRequest{Mint: mint0Key, Standard: token.StandardLegacy, Decimals: 6}
	legacy1   = CreateMintRequest{Mint: mint1Key, Standard: token.StandardLegacy, Decimals: 9}
	feeConfig = CreateAmmConfigRequest{Index: 0, TradeFeeRate: 2500, ProtocolFeeRate: 120000, FundFeeRate: 40000}
)

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	k[31] = b
	return k
}

type eventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *eventRecorder) PutEvents(events []model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *eventRecorder) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *kv.Store
	verifier *lifecycle.HashVerifier
	manager  *lifecycle.Manager
	engine   *Engine
	events   *eventRecorder
	clock    Clock
}

type option func(h *harness, cfg *Config)

func withHydration() option {
	return func(h *harness, cfg *Config) { cfg.Hydrator = h.verifier }
}

func withWhitelist(mints ...solana.PublicKey) option {
	return func(_ *harness, cfg *Config) { cfg.Tokens = token.NewProgram(mints) }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	store := kv.NewStore(memdb.New())
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		verifier: &lifecycle.HashVerifier{Store: store, AddressTree: addressTree, ProgramID: programID},
		events:   &eventRecorder{},
		clock:    Clock{Slot: startSlot, Epoch: 1, UnixTimestamp: startTime},
	}
	manager, err := lifecycle.NewManager(lifecycle.Config{
		CompressionDelay: lifecycle.DefaultCompressionDelay,
		RentRecipient:    rentRecipient,
		AddressTree:      addressTree,
		ProgramID:        programID,
	}, store, h.verifier, nil, nil)
	require.NoError(t, err)
	h.manager = manager

	cfg := Config{
		ProgramID:  programID,
		Authority:  AuthorityConfig{Admin: admin, CreatePoolFeeReceiver: feeReceiver},
		Store:      store,
		Lifecycle:  manager,
		Tokens:     token.NewProgram(nil),
		Events:     h.events,
		Registerer: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(h, &cfg)
	}
	h.engine, err = New(cfg)
	require.NoError(t, err)
	return h
}

func (h *harness) as(signer solana.PublicKey) Call {
	return Call{Signer: signer, Clock: h.clock}
}

func (h *harness) advanceSlots(n uint64) {
	h.clock.Slot += n
}

// bootstrap creates the fee config, both mints and alice's funded accounts.
func (h *harness) bootstrap(m0, m1 CreateMintRequest) solana.PublicKey {
	h.t.Helper()
	cfg, err := h.engine.CreateAmmConfig(h.ctx, h.as(admin), feeConfig)
	require.NoError(h.t, err)

	for _, req := range []CreateMintRequest{m0, m1} {
		_, err := h.engine.CreateMint(h.ctx, h.as(admin), req)
		require.NoError(h.t, err)
	}
	for _, acct := range []struct {
		address, mint, owner solana.PublicKey
		amount               uint64
	}{
		{alice0, m0.Mint, alice, funding},
		{alice1, m1.Mint, alice, funding},
		{admin0, m0.Mint, admin, 0},
		{admin1, m1.Mint, admin, 0},
	} {
		_, err := h.engine.OpenAccount(h.ctx, h.as(acct.owner), OpenAccountRequest{Account: acct.address, Mint: acct.mint, Owner: acct.owner})
		require.NoError(h.t, err)
		if acct.amount > 0 {
			require.NoError(h.t, h.engine.MintTo(h.ctx, h.as(admin), MintToRequest{Mint: acct.mint, Account: acct.address, Amount: acct.amount}))
		}
	}
	return cfg.ID
}

func (h *harness) initialize(ammConfig solana.PublicKey, amount0, amount1 uint64) (InitializeResult, error) {
	return h.engine.Initialize(h.ctx, h.as(alice), InitializeRequest{
		AmmConfig:     ammConfig,
		Token0Mint:    mint0Key,
		Token1Mint:    mint1Key,
		CreatorToken0: alice0,
		CreatorToken1: alice1,
		InitAmount0:   amount0,
		InitAmount1:   amount1,
	})
}

// standardPool builds a 100000/100000 pool over two legacy mints and opens it.
func (h *harness) standardPool(opts ...CreateMintRequest) InitializeResult {
	h.t.Helper()
	m0, m1 := legacy0, legacy1
	if len(opts) == 2 {
		m0, m1 = opts[0], opts[1]
	}
	ammConfig := h.bootstrap(m0, m1)
	res, err := h.initialize(ammConfig, 100_000, 100_000)
	require.NoError(h.t, err)
	h.clock.UnixTimestamp = res.OpenTime
	return res
}

func (h *harness) account(address solana.PublicKey) *token.Account {
	h.t.Helper()
	a, err := h.engine.LoadAccount(h.ctx, address)
	require.NoError(h.t, err)
	return a
}

func (h *harness) balance(address solana.PublicKey) uint64 {
	return h.account(address).Amount
}

// rewrite persists a record outside of any operation.
func (h *harness) rewrite(rec lifecycle.Record) {
	h.t.Helper()
	entry, err := h.manager.Encode(rec)
	require.NoError(h.t, err)
	require.NoError(h.t, h.store.Commit(h.ctx, &storage.ChangeSet{Puts: []storage.Entry{entry}}))
}

func (h *harness) swapIn(res InitializeResult, zeroForOne bool, amountIn, minOut uint64) (SwapResult, error) {
	req := SwapBaseInputRequest{
		Pool:               res.Pool,
		InputTokenAccount:  alice0,
		OutputTokenAccount: alice1,
		InputVault:         res.Token0Vault,
		OutputVault:        res.Token1Vault,
		AmountIn:           amountIn,
		MinimumAmountOut:   minOut,
	}
	if !zeroForOne {
		req.InputTokenAccount, req.OutputTokenAccount = alice1, alice0
		req.InputVault, req.OutputVault = res.Token1Vault, res.Token0Vault
	}
	return h.engine.SwapBaseInput(h.ctx, h.as(alice), req)
}
