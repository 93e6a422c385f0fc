// Package indicator provides technical indicator calculations over candle data.
//
// Two layers are exposed. The streaming layer (SMA, EMA, SMMA, RSI, ATR,
// StdDev) feeds candles one at a time through O(1) updates and reports
// readiness once the warm-up window is full. The series layer (Compute, MACD,
// Bollinger, ComputeSet) runs a streaming indicator across a whole candle
// series and returns index-aligned Series whose warm-up positions hold NaN
// ("undefined" — no signal, never a comparable value).
package indicator

import "quantlab/internal/model"

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "sma_20").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}
