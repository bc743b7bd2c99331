package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const upsertRecordSQL = `
	INSERT INTO returns (` + recordColumns + `, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
	ON CONFLICT (id)
	DO UPDATE SET
		symbol = EXCLUDED.symbol,
		block_ts = EXCLUDED.block_ts,
		has_fees = EXCLUDED.has_fees,
		fee_apr = EXCLUDED.fee_apr,
		fee_apy = EXCLUDED.fee_apy,
		fee_has_outlier = EXCLUDED.fee_has_outlier,
		has_impermanent = EXCLUDED.has_impermanent,
		imp_vs_hodl_usd = EXCLUDED.imp_vs_hodl_usd,
		imp_vs_hodl_deposited = EXCLUDED.imp_vs_hodl_deposited,
		imp_vs_hodl_token0 = EXCLUDED.imp_vs_hodl_token0,
		imp_vs_hodl_token1 = EXCLUDED.imp_vs_hodl_token1,
		updated_at = now()
`

// Store provides Postgres persistence for returns, hypervisors and feed state.
type Store struct {
	pool *pgxpool.Pool
}

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

// Migrate applies the embedded schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertRecords writes records in one transaction, replacing rows with the same id.
func (s *Store) UpsertRecords(ctx context.Context, records []model.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertRecordSQL, rowFromRecord(r).args()...)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for range records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		return br.Close()
	})
}

// QueryRecords returns records matching chain, period and address, by block ascending.
func (s *Store) QueryRecords(ctx context.Context, filter model.Filter) ([]model.MetricRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, &storage.QueryError{Op: "records", Err: err}
	}
	query, args := buildRecordQuery(filter.Normalized())
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &storage.QueryError{Op: "records", Err: err}
	}
	defer rows.Close()

	out := make([]model.MetricRecord, 0)
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, &storage.QueryError{Op: "scan record", Err: err}
		}
		out = append(out, row.record())
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.QueryError{Op: "records", Err: err}
	}
	return out, nil
}

// Hypervisors returns registry rows for the addresses on every chain.
func (s *Store) Hypervisors(ctx context.Context, addresses []string) ([]model.Hypervisor, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(addresses))
	for i, addr := range addresses {
		normalized[i] = model.NormalizeAddress(addr)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chain, address, symbol, pool, protocol, updated_at
		FROM hypervisors
		WHERE address = ANY($1)
		ORDER BY address, chain
	`, normalized)
	if err != nil {
		return nil, &storage.QueryError{Op: "hypervisors", Err: err}
	}
	defer rows.Close()

	var out []model.Hypervisor
	for rows.Next() {
		var h model.Hypervisor
		if err := rows.Scan(&h.Chain, &h.Address, &h.Symbol, &h.Pool, &h.Protocol, &h.UpdatedAt); err != nil {
			return nil, &storage.QueryError{Op: "scan hypervisor", Err: err}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.QueryError{Op: "hypervisors", Err: err}
	}
	return out, nil
}

// UpsertHypervisors inserts or updates registry rows.
func (s *Store) UpsertHypervisors(ctx context.Context, hypervisors []model.Hypervisor) error {
	if len(hypervisors) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, h := range hypervisors {
		batch.Queue(`
			INSERT INTO hypervisors (chain, address, symbol, pool, protocol, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (chain, address)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				pool = EXCLUDED.pool,
				protocol = EXCLUDED.protocol,
				updated_at = now()
		`,
			h.Chain,
			model.NormalizeAddress(h.Address),
			h.Symbol,
			model.NormalizeAddress(h.Pool),
			h.Protocol,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range hypervisors {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last fed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM feed_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last fed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feed_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	return err
}

var _ storage.ReturnsStore = (*Store)(nil)
