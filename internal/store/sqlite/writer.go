package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"quantlab/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 200
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/quantlab.db"
}

// Writer is a single-writer SQLite handle with transaction batching for
// candle inserts. Backtest runs are written one at a time; they are rare
// compared to candles.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol      TEXT    NOT NULL,
			interval_s  INTEGER NOT NULL,
			ts          INTEGER NOT NULL,
			open        REAL    NOT NULL,
			high        REAL    NOT NULL,
			low         REAL    NOT NULL,
			close       REAL    NOT NULL,
			volume      REAL    NOT NULL,
			PRIMARY KEY (symbol, interval_s, ts)
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			id         TEXT PRIMARY KEY,
			symbol     TEXT    NOT NULL,
			strategy   TEXT    NOT NULL,
			result     TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// SaveCandles inserts a candle series for a symbol/interval in one transaction.
// Existing rows at the same timestamp are replaced.
func (w *Writer) SaveCandles(symbol string, interval time.Duration, candles []model.Candle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, interval_s, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	intervalS := int64(interval / time.Second)
	for i := range candles {
		c := &candles[i]
		_, err := stmt.Exec(symbol, intervalS, c.Timestamp.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// CandleBatch pairs a symbol/interval key with candles for the channel writer.
type CandleBatch struct {
	Symbol   string
	Interval time.Duration
	Candles  []model.Candle
}

// Run reads candle batches from batchCh and commits them, coalescing small
// batches. Flushes every defaultBatchSize candles OR every defaultFlushDelay,
// whichever first. Blocks until ctx is cancelled or batchCh is closed.
func (w *Writer) Run(ctx context.Context, batchCh <-chan CandleBatch) {
	pending := make([]CandleBatch, 0, 8)
	pendingRows := 0
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if pendingRows == 0 {
			return
		}
		start := time.Now()
		for _, b := range pending {
			if err := w.SaveCandles(b.Symbol, b.Interval, b.Candles); err != nil {
				log.Printf("[sqlite] batch insert error for %s: %v", b.Symbol, err)
			}
		}
		log.Printf("[sqlite] committed %d candles in %v", pendingRows, time.Since(start))
		pending = pending[:0]
		pendingRows = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case b, ok := <-batchCh:
			if !ok {
				flush()
				return
			}
			pending = append(pending, b)
			pendingRows += len(b.Candles)
			if pendingRows >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// SaveRun persists a completed backtest result as JSON under the given id.
// Old runs are pruned, keeping the most recent 100.
func (w *Writer) SaveRun(id, symbol string, result *model.BacktestResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = w.db.Exec(
		`INSERT OR REPLACE INTO backtest_runs (id, symbol, strategy, result) VALUES (?, ?, ?, ?)`,
		id, symbol, string(result.Config.Strategy), string(data),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert run: %w", err)
	}

	_, err = w.db.Exec(`DELETE FROM backtest_runs WHERE id NOT IN (SELECT id FROM backtest_runs ORDER BY created_at DESC LIMIT 100)`)
	if err != nil {
		log.Printf("[sqlite] prune runs warning: %v", err)
	}

	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
