package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/engine"
	"github.com/quantfold/backtester/internal/journal"
)

// Compile-time interface check.
var _ Storage = (*SQLite)(nil)

// SQLite implements Storage backed by a SQLite database file. Timestamps are
// stored as Unix milliseconds.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at dbPath and ensures the
// schema exists.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) GetDB() *sql.DB {
	return s.db
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables if they do not exist.
func (s *SQLite) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (symbol, timeframe, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			config TEXT NOT NULL,
			result TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			key TEXT PRIMARY KEY,
			position TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			time INTEGER NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL,
			data TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_time ON events (type, time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) SaveCandle(ctx context.Context, c candle.Candle) error {
	return s.SaveCandles(ctx, []candle.Candle{c})
}

func (s *SQLite) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume, source)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume, source=excluded.source`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, c.Timeframe, c.Timestamp.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Source); err != nil {
			return fmt.Errorf("failed to save candle for %s %s at %s: %w",
				c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, timestamp, open, high, low, close, volume, source FROM candles
		WHERE symbol=? AND timeframe=? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC`, symbol, timeframe, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var out []candle.Candle
	for rows.Next() {
		c, err := scanSQLiteCandle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, timestamp, open, high, low, close, volume, source FROM candles
		WHERE symbol=? AND timeframe=?
		ORDER BY timestamp DESC LIMIT 1`, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest candle: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	c, err := scanSQLiteCandle(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLite) GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candles
		WHERE symbol=? AND timeframe=? AND timestamp >= ? AND timestamp < ?`,
		symbol, timeframe, start.UnixMilli(), end.UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count candles: %w", err)
	}
	return count, nil
}

func (s *SQLite) DeleteCandles(ctx context.Context, symbol, timeframe string, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM candles WHERE symbol=? AND timeframe=? AND timestamp < ?`,
		symbol, timeframe, before.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to delete candles: %w", err)
	}
	return nil
}

func (s *SQLite) SaveRun(ctx context.Context, run Run) (int64, error) {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal run config: %w", err)
	}
	resJSON, err := json.Marshal(run.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal run result: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (symbol, interval, config, result, created_at)
		VALUES (?,?,?,?,?)`,
		run.Symbol, run.Interval, string(cfgJSON), string(resJSON), run.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) GetRun(ctx context.Context, id int64) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, interval, config, result, created_at FROM backtest_runs WHERE id=?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("run %d not found", id)
	}
	return scanSQLiteRun(rows)
}

func (s *SQLite) GetRuns(ctx context.Context, symbol string, start, end time.Time) ([]Run, error) {
	query := `SELECT id, symbol, interval, config, result, created_at FROM backtest_runs
		WHERE created_at >= ? AND created_at <= ?`
	args := []any{start.UnixMilli(), end.UnixMilli()}
	if symbol != "" {
		query += ` AND symbol=?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (s *SQLite) DeleteRuns(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}
	return nil
}

func (s *SQLite) GetLatestRun(ctx context.Context, symbol, interval string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, interval, config, result, created_at FROM backtest_runs
		WHERE symbol=? AND interval=?
		ORDER BY created_at DESC, id DESC LIMIT 1`, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSQLiteRun(rows)
}

func (s *SQLite) SavePosition(ctx context.Context, key string, pos engine.OpenPosition) error {
	posJSON, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO positions (key, position, updated_at) VALUES (?,?,?)
		ON CONFLICT (key) DO UPDATE SET position=excluded.position, updated_at=excluded.updated_at`,
		key, string(posJSON), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) GetPosition(ctx context.Context, key string) (*engine.OpenPosition, error) {
	var posJSON string
	err := s.db.QueryRowContext(ctx, `SELECT position FROM positions WHERE key=?`, key).Scan(&posJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", key, err)
	}

	var pos engine.OpenPosition
	if err := json.Unmarshal([]byte(posJSON), &pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position %s: %w", key, err)
	}
	return &pos, nil
}

func (s *SQLite) DeletePosition(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE key=?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete position %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) LogEvent(ctx context.Context, event journal.Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (time, type, description, data) VALUES (?,?,?,?)`,
		event.Time.UnixMilli(), event.Type, event.Description, string(dataJSON))
	if err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

func (s *SQLite) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, type, description, data FROM events
		WHERE type=? AND time >= ? AND time <= ? ORDER BY time ASC`,
		eventType, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []journal.Event
	for rows.Next() {
		var e journal.Event
		var ts int64
		var dataJSON string
		if err := rows.Scan(&ts, &e.Type, &e.Description, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Time = time.UnixMilli(ts).UTC()
		if dataJSON != "" {
			if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanSQLiteCandle(rows *sql.Rows) (candle.Candle, error) {
	var c candle.Candle
	var ts int64
	if err := rows.Scan(&c.Symbol, &c.Timeframe, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Source); err != nil {
		return c, fmt.Errorf("failed to scan candle: %w", err)
	}
	c.Timestamp = time.UnixMilli(ts).UTC()
	return c, nil
}

func scanSQLiteRun(rows *sql.Rows) (*Run, error) {
	var run Run
	var cfgJSON, resJSON string
	var ts int64
	if err := rows.Scan(&run.ID, &run.Symbol, &run.Interval, &cfgJSON, &resJSON, &ts); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt = time.UnixMilli(ts).UTC()
	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run config: %w", err)
	}
	if err := json.Unmarshal([]byte(resJSON), &run.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run result: %w", err)
	}
	return &run, nil
}
