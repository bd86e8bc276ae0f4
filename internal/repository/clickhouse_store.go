package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/domain/repository"
	pkgch "SignalPilot/pkg/clickhouse"
	applogger "SignalPilot/pkg/logger"
)

// ReplacingMergeTree collapses re-imported rows with the same sort key on merge;
// Load and Stats read with FINAL so duplicates never reach the analysis.
var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		ts DateTime('UTC'),
		asset LowCardinality(String),
		result FixedString(1),
		attempt UInt8,
		inserted_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(inserted_at)
	PARTITION BY toYYYYMM(ts)
	ORDER BY (ts, asset, result, attempt)`,
}

const (
	chInsertSignal = `INSERT INTO signals (ts, asset, result, attempt) VALUES (?, ?, ?, ?)`
	chLoadSignals  = `SELECT ts, asset, result, attempt FROM signals FINAL
		WHERE ts >= ? AND ts < ? ORDER BY ts`
	chStats = `SELECT count() AS total, uniqExact(asset) AS unique_assets, min(ts) AS first, max(ts) AS last,
		countIf(result = 'W') AS wins, countIf(result = 'L') AS losses
		FROM signals FINAL WHERE ts >= ? AND ts < ?`
	chWinsByAttempt = `SELECT attempt, count() AS n FROM signals FINAL
		WHERE result = 'W' AND ts >= ? AND ts < ? GROUP BY attempt`
	chCountKeys = `SELECT count() FROM signals FINAL WHERE ts >= ? AND ts <= ?`
)

// ClickHouseStore keeps signals in ClickHouse for long range analytics.
type ClickHouseStore struct {
	ch  *pkgch.Client
	db  *sql.DB
	loc *time.Location
	l   *applogger.Logger
}

var _ repository.SignalStore = (*ClickHouseStore)(nil)

func NewClickHouseStore(ch *pkgch.Client, loc *time.Location) *ClickHouseStore {
	if loc == nil {
		loc = time.UTC
	}
	return &ClickHouseStore{ch: ch, db: ch.DB(), loc: loc}
}

// SetLogger injects a structured logger.
func (s *ClickHouseStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, clickhouseSchema)
}

// Save sends signals as one block. The inserted count is the growth of the
// affected time range, since ClickHouse does not report skipped duplicates.
func (s *ClickHouseStore) Save(ctx context.Context, signals []models.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}
	lo, hi := signals[0].Timestamp, signals[0].Timestamp
	rows := make([][]any, 0, len(signals))
	for _, sig := range signals {
		if sig.Timestamp.Before(lo) {
			lo = sig.Timestamp
		}
		if sig.Timestamp.After(hi) {
			hi = sig.Timestamp
		}
		rows = append(rows, []any{sig.Timestamp.UTC(), sig.Asset, string(sig.Result), uint8(sig.Attempt)})
	}

	before, err := s.count(ctx, lo, hi)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	if err := s.ch.InsertBatch(ctx, chInsertSignal, rows); err != nil {
		s.logError("clickhouse insert error", err)
		return 0, fmt.Errorf("clickhouse save: %w", err)
	}
	after, err := s.count(ctx, lo, hi)
	if err != nil {
		return 0, err
	}
	if s.l != nil {
		s.l.Debug("clickhouse signals inserted",
			applogger.Int("rows", len(rows)),
			applogger.Int("new", after-before),
			applogger.Duration("took", time.Since(start)),
		)
	}
	return after - before, nil
}

func (s *ClickHouseStore) count(ctx context.Context, lo, hi time.Time) (int, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, chCountKeys, lo.UTC(), hi.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("clickhouse count: %w", err)
	}
	return int(n), nil
}

func (s *ClickHouseStore) Load(ctx context.Context, from, to time.Time) ([]models.Signal, error) {
	rows, err := s.db.QueryContext(ctx, chLoadSignals, from.UTC(), to.UTC())
	if err != nil {
		s.logError("clickhouse load query error", err)
		return nil, fmt.Errorf("clickhouse load: %w", err)
	}
	defer rows.Close()

	out := make([]models.Signal, 0, 256)
	for rows.Next() {
		var (
			sig     models.Signal
			result  string
			attempt uint8
		)
		if err := rows.Scan(&sig.Timestamp, &sig.Asset, &result, &attempt); err != nil {
			s.logError("clickhouse load scan error", err)
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Timestamp = sig.Timestamp.In(s.loc)
		sig.Result = models.Result(result)
		sig.Attempt = int(attempt)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseStore) Stats(ctx context.Context, from, to time.Time) (*models.StoreStats, error) {
	var (
		total, unique, wins, losses uint64
		first, last                 time.Time
	)
	err := s.db.QueryRowContext(ctx, chStats, from.UTC(), to.UTC()).
		Scan(&total, &unique, &first, &last, &wins, &losses)
	if err != nil {
		return nil, fmt.Errorf("clickhouse stats: %w", err)
	}
	st := &models.StoreStats{
		Total:         int(total),
		UniqueAssets:  int(unique),
		Wins:          int(wins),
		Losses:        int(losses),
		WinsByAttempt: map[int]int{},
	}
	// min/max over an empty set yield the epoch
	if total > 0 {
		f, l := first.In(s.loc), last.In(s.loc)
		st.First, st.Last = &f, &l
	}

	rows, err := s.db.QueryContext(ctx, chWinsByAttempt, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("clickhouse stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			attempt uint8
			n       uint64
		)
		if err := rows.Scan(&attempt, &n); err != nil {
			return nil, err
		}
		st.WinsByAttempt[int(attempt)] = int(n)
	}
	return st, rows.Err()
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.ch.Close()
}

func (s *ClickHouseStore) logError(msg string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("database", s.ch.Database()), applogger.Error(err))
	}
}
