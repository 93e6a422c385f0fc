// Package marketdata provides candle series for the computation core: a
// deterministic synthetic generator plus a service that persists generated
// series to SQLite so repeated requests replay identical data.
package marketdata

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"quantlab/internal/model"
	"quantlab/internal/tradingcal"
)

// GenConfig describes one synthetic series. The zero value is not usable;
// call Normalize to fill defaults.
type GenConfig struct {
	Symbol     string
	Start      time.Time
	Interval   time.Duration
	Count      int
	BasePrice  float64 // starting price; 0 derives one from the symbol
	Drift      float64 // per-step expected log return
	Volatility float64 // per-step log-return stdev
	Seed       int64   // 0 derives a stable seed from the symbol
}

// Normalize fills zero fields with defaults. The symbol-derived seed and base
// price make series reproducible: the same symbol and shape always yield the
// same candles.
func (g *GenConfig) Normalize() {
	if g.Interval <= 0 {
		g.Interval = time.Hour * 24
	}
	if g.Count <= 0 {
		g.Count = 100
	}
	if g.Start.IsZero() {
		g.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	h := symbolHash(g.Symbol)
	if g.BasePrice <= 0 {
		// Spread base prices over [50, 550) so different symbols look distinct.
		g.BasePrice = 50 + float64(h%500)
	}
	if g.Volatility <= 0 {
		g.Volatility = 0.02
	}
	if g.Seed == 0 {
		g.Seed = int64(h)
	}
}

func symbolHash(symbol string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return h.Sum32()
}

// Generate produces a geometric-Brownian-motion candle series. Candles are
// internally consistent: high bounds open and close from above, low from
// below, and timestamps advance by exactly one interval.
func Generate(cfg GenConfig) []model.Candle {
	cfg.Normalize()
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Daily and coarser bars follow the trading calendar.
	daily := cfg.Interval >= 24*time.Hour

	candles := make([]model.Candle, 0, cfg.Count)
	price := cfg.BasePrice
	ts := cfg.Start
	if daily {
		ts = tradingcal.NextTradingDay(ts)
	}

	for i := 0; i < cfg.Count; i++ {
		ret := cfg.Drift + cfg.Volatility*rng.NormFloat64()
		open := price
		close := open * math.Exp(ret)

		// Intrabar range extends past the open/close span by a vol-scaled wick.
		hi := math.Max(open, close) * (1 + math.Abs(rng.NormFloat64())*cfg.Volatility/2)
		lo := math.Min(open, close) * (1 - math.Abs(rng.NormFloat64())*cfg.Volatility/2)
		if lo <= 0 {
			lo = math.Min(open, close) * 0.5
		}

		volume := 1000 + rng.Float64()*9000

		candles = append(candles, model.Candle{
			Timestamp: ts,
			Open:      open,
			High:      hi,
			Low:       lo,
			Close:     close,
			Volume:    volume,
		})

		price = close
		ts = ts.Add(cfg.Interval)
		if daily {
			ts = tradingcal.NextTradingDay(ts)
		}
	}
	return candles
}
