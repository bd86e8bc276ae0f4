package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/repository"
	"SignalPilot/pkg/postgres"
)

// Losses carry a NULL attempt, so uniqueness is enforced on COALESCE(attempt, 0).
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		asset VARCHAR(20) NOT NULL,
		result CHAR(1) NOT NULL CHECK (result IN ('W', 'L')),
		attempt INTEGER CHECK (attempt IN (1, 2, 3)),
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_unique ON signals (timestamp, asset, result, COALESCE(attempt, 0))`,
	`CREATE INDEX IF NOT EXISTS idx_signals_timestamp ON signals (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_asset ON signals (asset)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_result ON signals (result)`,
}

const (
	pgInsertSignal = `INSERT INTO signals (timestamp, asset, result, attempt) VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING RETURNING id`
	pgLoadSignals = `SELECT timestamp, asset, result, COALESCE(attempt, 0) AS attempt FROM signals
		WHERE timestamp >= $1 AND timestamp < $2 ORDER BY timestamp, id`
	pgStats = `SELECT COUNT(*) AS total, COUNT(DISTINCT asset) AS unique_assets,
		MIN(timestamp) AS first, MAX(timestamp) AS last,
		COUNT(*) FILTER (WHERE result = 'W') AS wins, COUNT(*) FILTER (WHERE result = 'L') AS losses
		FROM signals WHERE timestamp >= $1 AND timestamp < $2`
	pgWinsByAttempt = `SELECT attempt, COUNT(*) AS n FROM signals
		WHERE result = 'W' AND timestamp >= $1 AND timestamp < $2 GROUP BY attempt`
)

type pgSignalRow struct {
	Timestamp time.Time `db:"timestamp"`
	Asset     string    `db:"asset"`
	Result    string    `db:"result"`
	Attempt   int       `db:"attempt"`
}

type pgStatsRow struct {
	Total        int          `db:"total"`
	UniqueAssets int          `db:"unique_assets"`
	First        sql.NullTime `db:"first"`
	Last         sql.NullTime `db:"last"`
	Wins         int          `db:"wins"`
	Losses       int          `db:"losses"`
}

// PostgresStore persists signals in the signals table.
type PostgresStore struct {
	pg  *postgres.Manager
	loc *time.Location
}

var _ repository.SignalStore = (*PostgresStore)(nil)

func NewPostgresStore(pg *postgres.Manager, loc *time.Location) *PostgresStore {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresStore{pg: pg, loc: loc}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pg.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// Save inserts signals in one transaction. Duplicates are ignored.
func (s *PostgresStore) Save(ctx context.Context, signals []models.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.pg.InTx(ctx, func(tx *sqlx.Tx) error {
		inserted = 0
		for _, sig := range signals {
			var attempt sql.NullInt32
			if sig.Attempt > 0 {
				attempt = sql.NullInt32{Int32: int32(sig.Attempt), Valid: true}
			}
			var id int64
			err := tx.QueryRowxContext(ctx, pgInsertSignal, sig.Timestamp, sig.Asset, string(sig.Result), attempt).Scan(&id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				continue
			case err != nil:
				return fmt.Errorf("insert signal %s: %w", sig.Key(), err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("postgres save: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) Load(ctx context.Context, from, to time.Time) ([]models.Signal, error) {
	var rows []pgSignalRow
	if err := s.pg.DB().SelectContext(ctx, &rows, pgLoadSignals, from, to); err != nil {
		return nil, fmt.Errorf("postgres load: %w", err)
	}
	out := make([]models.Signal, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Signal{
			Timestamp: r.Timestamp.In(s.loc),
			Asset:     r.Asset,
			Result:    models.Result(r.Result),
			Attempt:   r.Attempt,
		})
	}
	return out, nil
}

func (s *PostgresStore) Stats(ctx context.Context, from, to time.Time) (*models.StoreStats, error) {
	var row pgStatsRow
	if err := s.pg.DB().GetContext(ctx, &row, pgStats, from, to); err != nil {
		return nil, fmt.Errorf("postgres stats: %w", err)
	}
	st := &models.StoreStats{
		Total:         row.Total,
		UniqueAssets:  row.UniqueAssets,
		Wins:          row.Wins,
		Losses:        row.Losses,
		WinsByAttempt: map[int]int{},
	}
	if row.First.Valid {
		first := row.First.Time.In(s.loc)
		st.First = &first
	}
	if row.Last.Valid {
		last := row.Last.Time.In(s.loc)
		st.Last = &last
	}

	rows, err := s.pg.DB().QueryxContext(ctx, pgWinsByAttempt, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var attempt, n int
		if err := rows.Scan(&attempt, &n); err != nil {
			return nil, err
		}
		st.WinsByAttempt[attempt] = n
	}
	return st, rows.Err()
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pg.Health(ctx)
}

func (s *PostgresStore) Close() error {
	return s.pg.Close()
}
