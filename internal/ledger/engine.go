package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cpSwap/internal/lifecycle"
	"cpSwap/internal/oracle"
	"cpSwap/internal/pool"
	"cpSwap/internal/storage"
	"cpSwap/internal/token"
)

// AuthorityConfig names the privileged accounts of a deployment.
type AuthorityConfig struct {
	Admin                 solana.PublicKey
	CreatePoolFeeReceiver solana.PublicKey
}

// Config wires an Engine to its collaborators.
type Config struct {
	ProgramID solana.PublicKey
	Authority AuthorityConfig

	Store     storage.Store
	Lifecycle *lifecycle.Manager
	Tokens    TokenProgram
	Events    storage.EventSink
	// Hydrator, when set, promotes cold records an operation needs before it
	// runs. Without it such operations fail with ErrRecordCompressed.
	Hydrator lifecycle.Issuer

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// Clock is the ledger time an operation executes at.
type Clock struct {
	Slot          uint64 `json:"slot"`
	Epoch         uint64 `json:"epoch"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

// Call carries the signer and clock of one operation.
type Call struct {
	Signer solana.PublicKey
	Clock  Clock
}

// TokenProgram moves tokens between in-memory account records.
type TokenProgram interface {
	IsSupportedMint(m *token.Mint) bool
	InboundFeeSurcharge(m *token.Mint, postFeeAmount, epoch uint64) (uint64, error)
	OutboundFee(m *token.Mint, preFeeAmount, epoch uint64) (uint64, error)
	TransferIn(m *token.Mint, from, vault *token.Account, authority solana.PublicKey, amount, epoch uint64) (uint64, error)
	TransferOut(m *token.Mint, vault, to *token.Account, authority solana.PublicKey, amount, epoch uint64) (uint64, error)
	MintTo(m *token.Mint, to *token.Account, authority solana.PublicKey, amount uint64) error
	Burn(m *token.Mint, from *token.Account, authority solana.PublicKey, amount uint64) error
}

// Engine executes pool ledger operations.
type Engine struct {
	cfg       Config
	store     storage.Store
	lifecycle *lifecycle.Manager
	tokens    TokenProgram
	events    storage.EventSink
	logger    *zap.Logger
	metrics   *Metrics

	authority solana.PublicKey
	authBump  uint8
}

// New builds an Engine and registers the ledger record kinds with its
// lifecycle manager.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.Lifecycle == nil {
		return nil, fmt.Errorf("lifecycle manager is nil")
	}
	if cfg.ProgramID.IsZero() {
		return nil, fmt.Errorf("program id is required")
	}
	if cfg.Tokens == nil {
		cfg.Tokens = token.NewProgram(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	authority, bump, err := DeriveAuthority(cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	RegisterKinds(cfg.Lifecycle)

	return &Engine{
		cfg:       cfg,
		store:     cfg.Store,
		lifecycle: cfg.Lifecycle,
		tokens:    cfg.Tokens,
		events:    cfg.Events,
		logger:    cfg.Logger,
		metrics:   NewMetrics(cfg.Registerer),
		authority: authority,
		authBump:  bump,
	}, nil
}

// RegisterKinds teaches a lifecycle manager every ledger record kind.
func RegisterKinds(m *lifecycle.Manager) {
	m.Register(lifecycle.KindPool, func() lifecycle.Record { return &pool.State{} }, true)
	m.Register(lifecycle.KindObservation, func() lifecycle.Record { return &oracle.State{} }, true)
	m.Register(lifecycle.KindTokenAccount, func() lifecycle.Record { return &token.Account{} }, true)
	m.Register(lifecycle.KindMint, func() lifecycle.Record { return &token.Mint{} }, false)
	m.Register(lifecycle.KindAmmConfig, func() lifecycle.Record { return &pool.AmmConfig{} }, false)
}

// Authority returns the pool authority address.
func (e *Engine) Authority() solana.PublicKey {
	return e.authority
}

// ProgramID returns the program the engine derives addresses under.
func (e *Engine) ProgramID() solana.PublicKey {
	return e.cfg.ProgramID
}

// LoadPool reads a hot pool without opening an operation.
func (e *Engine) LoadPool(ctx context.Context, address solana.PublicKey) (*pool.State, error) {
	t := e.begin(ctx, Call{})
	return t.pool(address)
}

// LoadMint reads a hot mint without opening an operation.
func (e *Engine) LoadMint(ctx context.Context, address solana.PublicKey) (*token.Mint, error) {
	t := e.begin(ctx, Call{})
	return t.mint(address)
}

// LoadAccount reads a hot token account without opening an operation.
func (e *Engine) LoadAccount(ctx context.Context, address solana.PublicKey) (*token.Account, error) {
	t := e.begin(ctx, Call{})
	return t.account(address)
}

// LoadAmmConfig reads a fee config without opening an operation.
func (e *Engine) LoadAmmConfig(ctx context.Context, address solana.PublicKey) (*pool.AmmConfig, error) {
	t := e.begin(ctx, Call{})
	return t.ammConfig(address)
}

// LoadObservation reads a hot oracle record without opening an operation.
func (e *Engine) LoadObservation(ctx context.Context, address solana.PublicKey) (*oracle.State, error) {
	t := e.begin(ctx, Call{})
	return t.observation(address)
}

func (e *Engine) observe(op string, start time.Time, errp *error) {
	err := *errp
	e.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.Operations.WithLabelValues(op, Code(err)).Inc()
		e.logger.Debug("operation failed", zap.String("op", op), zap.String("code", Code(err)), zap.Error(err))
		return
	}
	e.metrics.Operations.WithLabelValues(op, "ok").Inc()
}

func (e *Engine) requireAdmin(call Call) error {
	if call.Signer != e.cfg.Authority.Admin {
		return fmt.Errorf("%w: %s is not the admin", ErrInvalidOwner, call.Signer)
	}
	return nil
}
