package backtest

import (
	"quantlab/internal/model"
)

// momentum is a trend-following strategy on rate of change.
//
// Entry: ROC over the lookback window >= entry_threshold (long), or
// <= -entry_threshold (short, when shorting is allowed).
// Exit: ROC reverses through -exit_threshold (long) / exit_threshold (short).
type momentum struct {
	closes     []float64
	lookback   int
	entry      float64
	exit       float64
	allowShort bool
}

func newMomentum(cfg model.StrategyConfig, series []model.Candle) (*momentum, error) {
	if len(series) <= cfg.MomentumLookback {
		return nil, &model.InsufficientDataError{
			Op:   "momentum",
			Need: cfg.MomentumLookback + 1,
			Have: len(series),
		}
	}
	return &momentum{
		closes:     model.Closes(series),
		lookback:   cfg.MomentumLookback,
		entry:      cfg.EntryThreshold,
		exit:       cfg.ExitThreshold,
		allowShort: cfg.AllowShort,
	}, nil
}

func (m *momentum) Name() string { return string(model.StrategyMomentum) }
func (m *momentum) WarmUp() int  { return m.lookback }

// roc is the simple rate of change over the lookback window.
func (m *momentum) roc(i int) float64 {
	base := m.closes[i-m.lookback]
	if base == 0 {
		return 0
	}
	return m.closes[i]/base - 1
}

func (m *momentum) EntrySide(i int) model.Side {
	if i < m.WarmUp() {
		return model.SideFlat
	}
	r := m.roc(i)
	if r >= m.entry {
		return model.SideLong
	}
	if m.allowShort && r <= -m.entry {
		return model.SideShort
	}
	return model.SideFlat
}

func (m *momentum) ExitSignal(i int, side model.Side) (bool, string) {
	if i < m.WarmUp() {
		return false, ""
	}
	r := m.roc(i)
	switch side {
	case model.SideLong:
		if r <= -m.exit {
			return true, "momentum reversal"
		}
	case model.SideShort:
		if r >= m.exit {
			return true, "momentum reversal"
		}
	}
	return false, ""
}
