package model

import "time"

// Side is the direction of a position or trade.
type Side string

const (
	SideFlat  Side = "flat"
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is the transient simulation state for the single open position.
// At most one Position is open per run: single instrument, single position,
// no pyramiding, no hedging. That constraint is an explicit invariant of the
// simulator, not an accident of loop structure.
type Position struct {
	Side       Side
	EntryPrice float64
	EntryTime  time.Time
	EntryStep  int // candle index at which the position opened
	Size       float64
}

// Open reports whether the position is held.
func (p *Position) Open() bool { return p.Side == SideLong || p.Side == SideShort }

// MarkToMarket returns the unrealized profit at the given price.
func (p *Position) MarkToMarket(price float64) float64 {
	switch p.Side {
	case SideLong:
		return (price - p.EntryPrice) * p.Size
	case SideShort:
		return (p.EntryPrice - price) * p.Size
	}
	return 0
}

// Trade is a closed round-trip. Trades are immutable and form an append-only,
// time-ordered ledger; trades never overlap in time.
type Trade struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	Profit     float64   `json:"profit"`
	ProfitPct  float64   `json:"profit_pct"` // profit relative to entry notional, in percent
	ExitReason string    `json:"exit_reason,omitempty"`
}

// EquityCurve is the portfolio value per simulated step. Its length is the
// candle count plus one: index 0 holds the initial capital.
type EquityCurve []float64
