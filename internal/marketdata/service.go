package marketdata

import (
	"fmt"
	"log"
	"time"

	"quantlab/internal/model"
	sqlitestore "quantlab/internal/store/sqlite"
)

// Service serves candle series, backed by SQLite. Requested series that are
// not yet stored are generated synthetically and persisted, so every later
// request for the same symbol and shape replays identical data.
type Service struct {
	reader *sqlitestore.Reader
	writer *sqlitestore.Writer
}

// NewService creates a Service. Both handles may be nil, in which case the
// service generates without persistence.
func NewService(reader *sqlitestore.Reader, writer *sqlitestore.Writer) *Service {
	return &Service{reader: reader, writer: writer}
}

// Series returns count candles for the symbol at the given interval. Stored
// candles are served when enough exist; otherwise a fresh series is generated
// and written through.
func (s *Service) Series(symbol string, interval time.Duration, count int) ([]model.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("marketdata: empty symbol")
	}
	if count <= 0 {
		count = 100
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	if s.reader != nil {
		stored, err := s.reader.ReadCandles(symbol, interval, 0)
		if err != nil {
			return nil, fmt.Errorf("marketdata read: %w", err)
		}
		if len(stored) >= count {
			return stored[len(stored)-count:], nil
		}
	}

	candles := Generate(GenConfig{
		Symbol:   symbol,
		Interval: interval,
		Count:    count,
	})

	if s.writer != nil {
		if err := s.writer.SaveCandles(symbol, interval, candles); err != nil {
			// Persistence is best-effort; the generated series is still valid.
			log.Printf("[marketdata] persist %s failed: %v", symbol, err)
		}
	}
	return candles, nil
}
