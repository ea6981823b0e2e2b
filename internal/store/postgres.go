package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Schema creates the snapshot table. Headline figures are stored as
// NUMERIC for exact decimal precision alongside the full JSONB payload.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolio_snapshots (
	id                  UUID PRIMARY KEY,
	wallet              TEXT        NOT NULL,
	scope               TEXT        NOT NULL,
	computed_at         TIMESTAMPTZ NOT NULL,
	tier                TEXT        NOT NULL,
	degraded            BOOLEAN     NOT NULL,
	total_value         NUMERIC     NOT NULL,
	total_pnl           NUMERIC     NOT NULL,
	realized_pnl_window NUMERIC     NOT NULL,
	payload             JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS portfolio_snapshots_wallet_scope_idx
	ON portfolio_snapshots (wallet, scope, computed_at DESC);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) SavePortfolio(ctx context.Context, rec *model.PortfolioRecord) error {
	payload, err := json.Marshal(rec.Portfolio)
	if err != nil {
		return fmt.Errorf("store: encode portfolio: %w", err)
	}
	p := rec.Portfolio
	_, err = s.pool.Exec(ctx,
		`INSERT INTO portfolio_snapshots
		   (id, wallet, scope, computed_at, tier, degraded, total_value, total_pnl, realized_pnl_window, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::JSONB)`,
		rec.ID, rec.Wallet, rec.Scope, rec.ComputedAt,
		string(p.Tier), p.Degraded,
		p.TotalValue.String(), p.TotalPnL.String(), p.RealizedPnLWindow.String(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("store: save portfolio %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) LatestPortfolio(ctx context.Context, wallet, scope string) (*model.PortfolioRecord, error) {
	recs, err := s.ListPortfolios(ctx, wallet, scope, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, wallet, scope)
	}
	return &recs[0], nil
}

func (s *PostgresStore) ListPortfolios(ctx context.Context, wallet, scope string, limit int) ([]model.PortfolioRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, wallet, scope, computed_at, payload::TEXT
		 FROM portfolio_snapshots
		 WHERE wallet = $1 AND scope = $2
		 ORDER BY computed_at DESC
		 LIMIT $3`, wallet, scope, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("store: list portfolios: %w", err)
	}
	defer rows.Close()

	var recs []model.PortfolioRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanRecord(row pgx.Row) (model.PortfolioRecord, error) {
	var rec model.PortfolioRecord
	var payload string
	if err := row.Scan(&rec.ID, &rec.Wallet, &rec.Scope, &rec.ComputedAt, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, ErrNotFound
		}
		return rec, fmt.Errorf("store: scan portfolio: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Portfolio); err != nil {
		return rec, fmt.Errorf("store: decode portfolio %s: %w", rec.ID, err)
	}
	return rec, nil
}
