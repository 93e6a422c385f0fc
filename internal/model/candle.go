// Package model defines the core value objects shared by the indicator engine,
// the backtest simulator, and the risk reducer: candles, positions, trades,
// equity curves, and the validation errors raised before any computation runs.
package model

import (
	"encoding/json"
	"math"
	"time"
)

// Candle represents one OHLCV price bar for a single instrument.
// Candles are immutable once produced; a series is ordered by strictly
// increasing, unique timestamps.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes extracts the close prices of a series into a new slice.
func Closes(series []Candle) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		out[i] = series[i].Close
	}
	return out
}

// ValidateSeries checks the series ordering and price invariants that the rest
// of the pipeline assumes and never re-validates: strictly increasing unique
// timestamps, finite positive prices, high/low bracketing open and close, and
// non-negative volume. Returns an InvalidSeriesError describing the first
// violation, or nil.
func ValidateSeries(series []Candle) error {
	for i := range series {
		c := &series[i]
		if i > 0 && !c.Timestamp.After(series[i-1].Timestamp) {
			return &InvalidSeriesError{Index: i, Reason: "timestamps not strictly increasing"}
		}
		for _, p := range [4]float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
				return &InvalidSeriesError{Index: i, Reason: "price not a finite positive number"}
			}
		}
		if c.High < c.Open || c.High < c.Close {
			return &InvalidSeriesError{Index: i, Reason: "high below open or close"}
		}
		if c.Low > c.Open || c.Low > c.Close {
			return &InvalidSeriesError{Index: i, Reason: "low above open or close"}
		}
		if math.IsNaN(c.Volume) || c.Volume < 0 {
			return &InvalidSeriesError{Index: i, Reason: "negative volume"}
		}
	}
	return nil
}
