package model

import "math"

// StrategyKind names one of the closed set of strategy variants.
// The variants share a single simulation loop and differ only in their
// entry/exit predicates.
type StrategyKind string

const (
	StrategyMomentum      StrategyKind = "momentum"
	StrategyMeanReversion StrategyKind = "mean_reversion"
	StrategyBreakout      StrategyKind = "breakout"
)

// TieBreak selects which exit wins when a stop-loss and a take-profit would
// both trigger inside the same candle (possible with gapping bars).
// Preferring the stop-loss is the conservative default; this is a policy
// choice, not an inherent law.
type TieBreak string

const (
	TieBreakStopLoss   TieBreak = "stop_loss"
	TieBreakTakeProfit TieBreak = "take_profit"
)

// StrategyConfig bundles the strategy selection and the risk options the
// simulator recognizes. Fractional fields (thresholds, stops, sizes) are
// expressed as fractions, not percent: 0.02 means 2%.
type StrategyConfig struct {
	Strategy   StrategyKind `json:"strategy"`
	Indicators []string     `json:"indicators,omitempty"` // indicator names to pre-compute, e.g. "sma_20"

	EntryThreshold   float64 `json:"entry_threshold"`
	ExitThreshold    float64 `json:"exit_threshold"`
	MinHoldingPeriod int     `json:"min_holding_period"` // steps during which strategy exit signals are suppressed
	MaxPositionSize  float64 `json:"max_position_size"`  // fraction of equity committed per position; may exceed 1 up to max_leverage
	StopLossPct      float64 `json:"stop_loss_pct"`      // 0 disables
	TakeProfitPct    float64 `json:"take_profit_pct"`    // 0 disables
	MaxDailyLoss     float64 `json:"max_daily_loss"`     // 0 disables; halts trading for the rest of the day
	MaxLeverage      float64 `json:"max_leverage"`       // caps the equity fraction, >= 1
	Commission       float64 `json:"commission"`         // per-side rate on notional, 0 = frictionless
	AllowShort       bool    `json:"allow_short"`
	StopTakeTieBreak TieBreak `json:"stop_take_tie_break,omitempty"`

	// Strategy lookbacks. Zero values take the defaults below.
	MomentumLookback int `json:"momentum_lookback,omitempty"`
	BollingerPeriod  int `json:"bollinger_period,omitempty"`
	BreakoutWindow   int `json:"breakout_window,omitempty"`
}

// Defaults for zero-valued StrategyConfig fields.
const (
	DefaultMaxPositionSize  = 0.1
	DefaultMaxLeverage      = 1.0
	DefaultMomentumLookback = 10
	DefaultBollingerPeriod  = 20
	DefaultBollingerK       = 2.0
	DefaultBreakoutWindow   = 20
)

// Normalize fills in defaults for unset fields. It does not validate.
func (c *StrategyConfig) Normalize() {
	if c.Strategy == "" {
		c.Strategy = StrategyMomentum
	}
	if c.MaxPositionSize == 0 {
		c.MaxPositionSize = DefaultMaxPositionSize
	}
	if c.MaxLeverage == 0 {
		c.MaxLeverage = DefaultMaxLeverage
	}
	if c.StopTakeTieBreak == "" {
		c.StopTakeTieBreak = TieBreakStopLoss
	}
	if c.MomentumLookback == 0 {
		c.MomentumLookback = DefaultMomentumLookback
	}
	if c.BollingerPeriod == 0 {
		c.BollingerPeriod = DefaultBollingerPeriod
	}
	if c.BreakoutWindow == 0 {
		c.BreakoutWindow = DefaultBreakoutWindow
	}
}

// Validate checks every option against its allowed range. It is called before
// any simulation step runs; an InvalidConfigError means the run never started.
func (c *StrategyConfig) Validate() error {
	switch c.Strategy {
	case StrategyMomentum, StrategyMeanReversion, StrategyBreakout:
	default:
		return &InvalidConfigError{Field: "strategy", Reason: "unknown strategy " + string(c.Strategy)}
	}
	for _, f := range []struct {
		name string
		val  float64
	}{
		{"entry_threshold", c.EntryThreshold},
		{"exit_threshold", c.ExitThreshold},
		{"stop_loss_pct", c.StopLossPct},
		{"take_profit_pct", c.TakeProfitPct},
		{"max_daily_loss", c.MaxDailyLoss},
		{"commission", c.Commission},
	} {
		if math.IsNaN(f.val) || f.val < 0 {
			return &InvalidConfigError{Field: f.name, Reason: "must be >= 0"}
		}
	}
	if c.StopLossPct >= 1 {
		return &InvalidConfigError{Field: "stop_loss_pct", Reason: "must be < 1"}
	}
	if c.MaxLeverage < 1 {
		return &InvalidConfigError{Field: "max_leverage", Reason: "must be >= 1"}
	}
	if c.MaxPositionSize <= 0 {
		return &InvalidConfigError{Field: "max_position_size", Reason: "must be > 0"}
	}
	if c.MaxPositionSize > c.MaxLeverage {
		return &InvalidConfigError{Field: "max_position_size", Reason: "exceeds max_leverage"}
	}
	if c.MinHoldingPeriod < 0 {
		return &InvalidConfigError{Field: "min_holding_period", Reason: "must be >= 0"}
	}
	switch c.StopTakeTieBreak {
	case TieBreakStopLoss, TieBreakTakeProfit:
	default:
		return &InvalidConfigError{Field: "stop_take_tie_break", Reason: "unknown policy " + string(c.StopTakeTieBreak)}
	}
	if c.MomentumLookback < 1 || c.BollingerPeriod < 2 || c.BreakoutWindow < 1 {
		return &InvalidConfigError{Field: "lookback", Reason: "strategy lookbacks must be positive"}
	}
	return nil
}
