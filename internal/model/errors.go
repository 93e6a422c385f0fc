package model

import "fmt"

// The three validation errors below are raised before any simulation step runs.
// A computation either fully succeeds or fails with one of them; partial
// results are never returned. Degenerate numeric cases inside a valid run
// (zero volatility, zero trades) are NOT errors — they resolve to documented
// sentinel values instead.

// InsufficientDataError reports a series shorter than a required window,
// e.g. requesting SMA(50) over 30 candles.
type InsufficientDataError struct {
	Op     string // what was being computed, e.g. "SMA(50)"
	Need   int    // minimum series length required
	Have   int    // actual series length
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d candles, have %d", e.Op, e.Need, e.Have)
}

// InvalidSeriesError reports a candle series violating the ingestion
// invariants (non-monotonic timestamps, NaN/negative prices or volumes).
type InvalidSeriesError struct {
	Index  int
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	return fmt.Sprintf("invalid series at index %d: %s", e.Index, e.Reason)
}

// InvalidConfigError reports an out-of-range strategy or risk option,
// e.g. a negative stop-loss.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Reason)
}
