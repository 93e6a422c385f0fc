// cmd/datagen generates synthetic candle series and persists them to SQLite
// so the server and CLI replay identical data.
//
// Usage:
//
//	go run ./cmd/datagen --symbols=ACME,GLOBY --candles=504 --interval=1d
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quantlab/internal/marketdata"
	sqlitestore "quantlab/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbols := flag.String("symbols", "ACME", "Comma-separated symbols to generate")
	count := flag.Int("candles", 504, "Candles per symbol")
	interval := flag.Duration("interval", 24*time.Hour, "Candle interval")
	volatility := flag.Float64("volatility", 0.02, "Per-step log-return stdev")
	drift := flag.Float64("drift", 0.0003, "Per-step expected log return")
	dbPath := flag.String("db", "data/quantlab.db", "Path to SQLite database")
	flag.Parse()

	os.MkdirAll(filepath.Dir(*dbPath), 0o755)
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[datagen] sqlite init failed: %v", err)
	}
	defer writer.Close()

	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		candles := marketdata.Generate(marketdata.GenConfig{
			Symbol:     symbol,
			Interval:   *interval,
			Count:      *count,
			Volatility: *volatility,
			Drift:      *drift,
		})
		if err := writer.SaveCandles(symbol, *interval, candles); err != nil {
			log.Fatalf("[datagen] persist %s: %v", symbol, err)
		}
		log.Printf("[datagen] %s: wrote %d candles (%s .. %s)",
			symbol, len(candles),
			candles[0].Timestamp.Format("2006-01-02"),
			candles[len(candles)-1].Timestamp.Format("2006-01-02"))
	}
}
