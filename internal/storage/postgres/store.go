package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cpSwap/internal/model"
	"cpSwap/internal/storage"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for ledger records and metrics.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store needs.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const hotColumns = `address, kind, data, rent, compressible, last_written_slot`

func (s *Store) GetHot(ctx context.Context, address solana.PublicKey) (storage.Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+hotColumns+` FROM hot_records WHERE address=$1`, address[:])
	entry, err := scanHot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Entry{}, fmt.Errorf("%w: hot %s", storage.ErrNotFound, address)
		}
		return storage.Entry{}, err
	}
	return entry, nil
}

func (s *Store) GetCold(ctx context.Context, coldAddress common.Hash) (storage.ColdEntry, error) {
	var (
		entry          storage.ColdEntry
		address, hash  []byte
		kind           int16
		compressedSlot int64
	)
	row := s.pool.QueryRow(ctx, `
		SELECT address, kind, data, data_hash, compressed_slot
		FROM cold_records WHERE cold_address=$1
	`, coldAddress.Bytes())
	if err := row.Scan(&address, &kind, &entry.Data, &hash, &compressedSlot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ColdEntry{}, fmt.Errorf("%w: cold %s", storage.ErrNotFound, coldAddress.Hex())
		}
		return storage.ColdEntry{}, err
	}
	entry.ColdAddress = coldAddress
	entry.Address = solana.PublicKeyFromBytes(address)
	entry.Kind = uint8(kind)
	entry.DataHash = common.BytesToHash(hash)
	entry.CompressedSlot = uint64(compressedSlot)
	return entry, nil
}

func (s *Store) ListHotBySlot(ctx context.Context, from, to uint64, limit int) ([]storage.Entry, error) {
	if to < from {
		return nil, fmt.Errorf("to slot must be >= from slot")
	}
	lo, err := toInt64(from)
	if err != nil {
		return nil, err
	}
	hi := int64(math.MaxInt64)
	if to < math.MaxInt64 {
		hi = int64(to)
	}
	query := `SELECT ` + hotColumns + ` FROM hot_records
		WHERE compressible AND last_written_slot BETWEEN $1 AND $2
		ORDER BY last_written_slot, address`
	args := []any{lo, hi}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Entry
	for rows.Next() {
		entry, err := scanHot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) RentBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	var lamports int64
	row := s.pool.QueryRow(ctx, `SELECT lamports FROM rent_balances WHERE address=$1`, address[:])
	if err := row.Scan(&lamports); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(lamports), nil
}

// Commit applies a change set in one transaction. A create that finds its
// address taken aborts the transaction with storage.ErrExists.
func (s *Store) Commit(ctx context.Context, cs *storage.ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range cs.Creates {
		args, err := hotArgs(entry)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO hot_records (`+hotColumns+`) VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (address) DO NOTHING`, args...)
	}
	for _, entry := range cs.Puts {
		args, err := hotArgs(entry)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO hot_records (`+hotColumns+`) VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (address) DO UPDATE SET
				kind = EXCLUDED.kind,
				data = EXCLUDED.data,
				rent = EXCLUDED.rent,
				compressible = EXCLUDED.compressible,
				last_written_slot = EXCLUDED.last_written_slot`, args...)
	}
	for _, address := range cs.Deletes {
		batch.Queue(`DELETE FROM hot_records WHERE address=$1`, address[:])
	}
	for _, cold := range cs.ColdPuts {
		slot, err := toInt64(cold.CompressedSlot)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO cold_records (cold_address, address, kind, data, data_hash, compressed_slot)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (cold_address) DO UPDATE SET
				address = EXCLUDED.address,
				kind = EXCLUDED.kind,
				data = EXCLUDED.data,
				data_hash = EXCLUDED.data_hash,
				compressed_slot = EXCLUDED.compressed_slot
		`, cold.ColdAddress.Bytes(), cold.Address[:], int16(cold.Kind), cold.Data, cold.DataHash.Bytes(), slot)
	}
	for _, coldAddress := range cs.ColdDeletes {
		batch.Queue(`DELETE FROM cold_records WHERE cold_address=$1`, coldAddress.Bytes())
	}
	recipients := make([]solana.PublicKey, 0, len(cs.RentCredits))
	for recipient := range cs.RentCredits {
		recipients = append(recipients, recipient)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].String() < recipients[j].String() })
	for _, recipient := range recipients {
		lamports, err := toInt64(cs.RentCredits[recipient])
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO rent_balances (address, lamports) VALUES ($1, $2)
			ON CONFLICT (address) DO UPDATE SET lamports = rent_balances.lamports + EXCLUDED.lamports
		`, recipient[:], lamports)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return err
		}
		if i < len(cs.Creates) && tag.RowsAffected() == 0 {
			br.Close()
			return fmt.Errorf("%w: hot %s", storage.ErrExists, cs.Creates[i].Address)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHot(row rowScanner) (storage.Entry, error) {
	var (
		entry   storage.Entry
		address []byte
		kind    int16
		rent    int64
		slot    int64
	)
	if err := row.Scan(&address, &kind, &entry.Data, &rent, &entry.Compressible, &slot); err != nil {
		return storage.Entry{}, err
	}
	entry.Address = solana.PublicKeyFromBytes(address)
	entry.Kind = uint8(kind)
	entry.Rent = uint64(rent)
	entry.LastWrittenSlot = uint64(slot)
	return entry, nil
}

func hotArgs(entry storage.Entry) ([]any, error) {
	rent, err := toInt64(entry.Rent)
	if err != nil {
		return nil, err
	}
	slot, err := toInt64(entry.LastWrittenSlot)
	if err != nil {
		return nil, err
	}
	return []any{entry.Address[:], int16(entry.Kind), entry.Data, rent, entry.Compressible, slot}, nil
}

func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("value %d does not fit in bigint", v)
	}
	return int64(v), nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count, volume0, volume1, fee0, fee1,
				fee_rate0, fee_rate1, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.FeeRate0,
			m.FeeRate1,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last processed position saved under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts the last processed position for name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	value, err := toInt64(last)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, value)
	return err
}
