// Package backtest simulates rule-based trading strategies over historical
// candle series and produces a trade ledger, an equity curve, and summary
// statistics.
//
// A Strategy is one of a closed set of variants (momentum, mean reversion,
// breakout) sharing a single simulation loop; variants differ only in their
// entry/exit predicates. The Engine owns the loop: position state machine,
// stop-loss/take-profit handling, holding-period guard, and trade bookkeeping.
package backtest

import (
	"quantlab/internal/indicator"
	"quantlab/internal/model"
)

// Strategy evaluates entry and exit predicates at a candle index. A strategy
// is bound to one series at construction and never mutates it.
type Strategy interface {
	// Name returns the strategy name.
	Name() string

	// WarmUp returns the first index at which signals may fire.
	WarmUp() int

	// EntrySide returns the side to open at step i, or SideFlat for no entry.
	EntrySide(i int) model.Side

	// ExitSignal reports whether the strategy wants to close a position of
	// the given side at step i, with a short reason for the ledger.
	ExitSignal(i int, side model.Side) (bool, string)
}

// newStrategy builds the configured strategy variant over the series. Series
// the strategy needs that are missing from the supplied indicator set are
// computed on the spot; an InsufficientDataError from that computation aborts
// the run before any simulation step.
func newStrategy(cfg model.StrategyConfig, series []model.Candle, ind indicator.Set) (Strategy, error) {
	switch cfg.Strategy {
	case model.StrategyMomentum:
		return newMomentum(cfg, series)
	case model.StrategyMeanReversion:
		return newMeanReversion(cfg, series, ind)
	case model.StrategyBreakout:
		return newBreakout(cfg, series)
	default:
		return nil, &model.InvalidConfigError{Field: "strategy", Reason: "unknown strategy " + string(cfg.Strategy)}
	}
}
