package backtest

import (
	"quantlab/internal/model"
)

// breakout enters when the close escapes the recent trading range: above the
// rolling high of the previous window candles (long) or below the rolling
// low (short). A long exits when the close falls back under the rolling low,
// a short when it rises back over the rolling high.
//
// entry_threshold demands the range be cleared by a margin;
// exit_threshold pads the range edge tolerated before exiting.
type breakout struct {
	series []model.Candle
	window int
	entry  float64
	exit   float64
	short  bool
}

func newBreakout(cfg model.StrategyConfig, series []model.Candle) (*breakout, error) {
	if len(series) <= cfg.BreakoutWindow {
		return nil, &model.InsufficientDataError{
			Op:   "breakout",
			Need: cfg.BreakoutWindow + 1,
			Have: len(series),
		}
	}
	return &breakout{
		series: series,
		window: cfg.BreakoutWindow,
		entry:  cfg.EntryThreshold,
		exit:   cfg.ExitThreshold,
		short:  cfg.AllowShort,
	}, nil
}

func (s *breakout) Name() string { return string(model.StrategyBreakout) }
func (s *breakout) WarmUp() int  { return s.window }

// rangeBounds scans the window candles preceding i. Window sizes stay small
// enough that the linear scan beats maintaining a deque.
func (s *breakout) rangeBounds(i int) (high, low float64) {
	high = s.series[i-s.window].High
	low = s.series[i-s.window].Low
	for j := i - s.window + 1; j < i; j++ {
		if s.series[j].High > high {
			high = s.series[j].High
		}
		if s.series[j].Low < low {
			low = s.series[j].Low
		}
	}
	return high, low
}

func (s *breakout) EntrySide(i int) model.Side {
	if i < s.WarmUp() {
		return model.SideFlat
	}
	high, low := s.rangeBounds(i)
	price := s.series[i].Close
	if price > high*(1+s.entry) {
		return model.SideLong
	}
	if s.short && price < low*(1-s.entry) {
		return model.SideShort
	}
	return model.SideFlat
}

func (s *breakout) ExitSignal(i int, side model.Side) (bool, string) {
	if i < s.WarmUp() {
		return false, ""
	}
	high, low := s.rangeBounds(i)
	price := s.series[i].Close
	switch side {
	case model.SideLong:
		if price < low*(1-s.exit) {
			return true, "range breakdown"
		}
	case model.SideShort:
		if price > high*(1+s.exit) {
			return true, "range breakup"
		}
	}
	return false, ""
}
