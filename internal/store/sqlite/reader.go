package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"quantlab/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for candle loads and run history.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadCandles reads candles for a symbol/interval after the given Unix
// timestamp (0 = all), ordered by timestamp ascending.
func (r *Reader) ReadCandles(symbol string, interval time.Duration, afterTS int64) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval_s = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, int64(interval/time.Second), afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.Timestamp = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastTimestamp returns the last stored candle timestamp for a symbol/interval.
// Returns 0 if no candles exist.
func (r *Reader) LastTimestamp(symbol string, interval time.Duration) (int64, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND interval_s = ?`,
		symbol, int64(interval/time.Second),
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// RunRecord is one persisted backtest run.
type RunRecord struct {
	ID        string
	Symbol    string
	Strategy  string
	CreatedAt time.Time
}

// ListRuns returns the most recent backtest runs, newest first.
func (r *Reader) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, symbol, strategy, created_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Strategy, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan runs: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ReadRun loads a persisted backtest result by id. Returns nil when absent.
func (r *Reader) ReadRun(id string) (*model.BacktestResult, error) {
	var data string
	err := r.db.QueryRow(`SELECT result FROM backtest_runs WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read run: %w", err)
	}

	var result model.BacktestResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &result, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
