package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/perf-engine/internal/model"
)

// Schema creates the lineage table. Request and response bodies are stored
// as JSONB exactly as they were served.
const Schema = `
CREATE TABLE IF NOT EXISTS lineage_records (
	calculation_id    UUID PRIMARY KEY,
	endpoint          TEXT NOT NULL,
	portfolio_id      TEXT NOT NULL,
	input_fingerprint TEXT NOT NULL,
	calculation_hash  TEXT NOT NULL,
	engine_version    TEXT NOT NULL,
	request           JSONB NOT NULL,
	response          JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS lineage_records_hash_idx ON lineage_records (calculation_hash, created_at DESC);
CREATE INDEX IF NOT EXISTS lineage_records_portfolio_idx ON lineage_records (portfolio_id, created_at DESC);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate lineage schema: %w", err)
	}
	return nil
}

const selectRecord = `SELECT calculation_id::TEXT, endpoint, portfolio_id, input_fingerprint,
        calculation_hash, engine_version, request, response, created_at
 FROM lineage_records`

func (s *PostgresStore) SaveRecord(ctx context.Context, r *model.LineageRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lineage_records (calculation_id, endpoint, portfolio_id, input_fingerprint,
		                              calculation_hash, engine_version, request, response, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::JSONB, $8::JSONB, $9)`,
		r.CalculationID, r.Endpoint, r.PortfolioID, r.InputFingerprint,
		r.CalculationHash, r.EngineVersion, string(r.Request), string(r.Response), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save lineage %s: %w", r.CalculationID, err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, calculationID string) (*model.LineageRecord, error) {
	row := s.pool.QueryRow(ctx, selectRecord+` WHERE calculation_id::TEXT = $1`, calculationID)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("get lineage %s: %w", calculationID, err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, calculationHash string) (*model.LineageRecord, error) {
	row := s.pool.QueryRow(ctx,
		selectRecord+` WHERE calculation_hash = $1 ORDER BY created_at DESC LIMIT 1`, calculationHash)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("find lineage by hash %s: %w", calculationHash, err)
	}
	return rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, portfolioID string, limit int) ([]model.LineageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		selectRecord+` WHERE ($1 = '' OR portfolio_id = $1) ORDER BY created_at DESC LIMIT $2`,
		portfolioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.LineageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// scanRecord reads one lineage row; pgx.ErrNoRows maps to ErrNotFound.
func scanRecord(row pgx.Row) (*model.LineageRecord, error) {
	var r model.LineageRecord
	var req, resp []byte
	err := row.Scan(&r.CalculationID, &r.Endpoint, &r.PortfolioID, &r.InputFingerprint,
		&r.CalculationHash, &r.EngineVersion, &req, &resp, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Request, r.Response = req, resp
	return &r, nil
}
