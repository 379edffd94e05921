package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cpSwap/internal/config"
	"cpSwap/internal/ledger"
	"cpSwap/internal/lifecycle"
	"cpSwap/internal/sweep"
	"cpSwap/internal/storage"
	"cpSwap/internal/storage/kv"
	"cpSwap/internal/storage/postgres"
	"cpSwap/internal/token"
)

// deployment is an engine wired to its store for one command invocation.
type deployment struct {
	engine   *ledger.Engine
	manager  *lifecycle.Manager
	verifier *lifecycle.HashVerifier
	store    storage.Store
	registry *prometheus.Registry

	mem      *kv.Store
	pg       *postgres.Store
	snapshot string
	logger   *zap.Logger

	rentRecipient solana.PublicKey
}

func openEngine(ctx context.Context, cfg config.EngineConfig, events storage.EventSink, logger *zap.Logger) (*deployment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	programID, err := parseKey("program-id", cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	admin, err := parseKey("admin", cfg.Admin)
	if err != nil {
		return nil, err
	}
	feeReceiver, err := parseKey("create-pool-fee-receiver", cfg.CreatePoolFeeReceiver)
	if err != nil {
		return nil, err
	}
	addressTree, err := parseKey("address-tree", cfg.AddressTree)
	if err != nil {
		return nil, err
	}
	rentRecipient, err := parseKey("rent-recipient", cfg.RentRecipient)
	if err != nil {
		return nil, err
	}
	if rentRecipient.IsZero() {
		rentRecipient = admin
	}
	whitelist, err := sweep.ParseAddresses(cfg.MintWhitelist)
	if err != nil {
		return nil, fmt.Errorf("parse mint-whitelist: %w", err)
	}

	d := &deployment{
		registry:      prometheus.NewRegistry(),
		snapshot:      cfg.Snapshot,
		logger:        logger,
		rentRecipient: rentRecipient,
	}
	switch cfg.Store {
	case config.StorePostgres:
		d.pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := d.pg.Migrate(ctx); err != nil {
			d.pg.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		d.store = d.pg
	default:
		d.mem = kv.NewStore(memdb.New())
		if cfg.Snapshot != "" {
			if err := d.mem.LoadFile(cfg.Snapshot); err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
		}
		d.store = d.mem
	}

	d.verifier = &lifecycle.HashVerifier{Store: d.store, AddressTree: addressTree, ProgramID: programID}
	d.manager, err = lifecycle.NewManager(lifecycle.Config{
		CompressionDelay: cfg.CompressionDelay,
		RentRecipient:    rentRecipient,
		AddressTree:      addressTree,
		ProgramID:        programID,
	}, d.store, d.verifier, logger, d.registry)
	if err != nil {
		d.close()
		return nil, err
	}

	engineCfg := ledger.Config{
		ProgramID:  programID,
		Authority:  ledger.AuthorityConfig{Admin: admin, CreatePoolFeeReceiver: feeReceiver},
		Store:      d.store,
		Lifecycle:  d.manager,
		Tokens:     token.NewProgram(whitelist),
		Events:     events,
		Logger:     logger,
		Registerer: d.registry,
	}
	if cfg.Hydrate {
		engineCfg.Hydrator = d.verifier
	}
	d.engine, err = ledger.New(engineCfg)
	if err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

// persist writes the memory store back to its snapshot file. Postgres
// commits are durable already.
func (d *deployment) persist() error {
	if d.mem == nil || d.snapshot == "" {
		return nil
	}
	if err := d.mem.SaveFile(d.snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	d.logger.Debug("snapshot saved", zap.String("path", d.snapshot))
	return nil
}

func (d *deployment) close() {
	if d.pg != nil {
		d.pg.Close()
	}
	if d.mem != nil {
		_ = d.mem.Close()
	}
}

func parseKey(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, nil
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return key, nil
}
