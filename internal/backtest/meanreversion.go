package backtest

import (
	"quantlab/internal/indicator"
	"quantlab/internal/model"
)

// meanReversion trades Bollinger Band touches: price stretched below the
// lower band is bought expecting a reversion to the middle band (and
// symmetrically sold short off the upper band when shorting is allowed).
//
// entry_threshold widens the band that must be pierced; exit_threshold
// loosens the reversion target.
type meanReversion struct {
	closes []float64
	upper  indicator.Series
	middle indicator.Series
	lower  indicator.Series
	entry  float64
	exit   float64
	warm   int
	short  bool
}

func newMeanReversion(cfg model.StrategyConfig, series []model.Candle, ind indicator.Set) (*meanReversion, error) {
	upper, uok := ind.Get("bb_upper")
	middle, mok := ind.Get("bb_middle")
	lower, lok := ind.Get("bb_lower")
	if !uok || !mok || !lok {
		bands, err := indicator.ComputeBollinger(series, cfg.BollingerPeriod, model.DefaultBollingerK)
		if err != nil {
			return nil, err
		}
		upper, middle, lower = bands.Upper, bands.Middle, bands.Lower
	}
	return &meanReversion{
		closes: model.Closes(series),
		upper:  upper,
		middle: middle,
		lower:  lower,
		entry:  cfg.EntryThreshold,
		exit:   cfg.ExitThreshold,
		warm:   cfg.BollingerPeriod - 1,
		short:  cfg.AllowShort,
	}, nil
}

func (s *meanReversion) Name() string { return string(model.StrategyMeanReversion) }
func (s *meanReversion) WarmUp() int  { return s.warm }

func (s *meanReversion) EntrySide(i int) model.Side {
	lo, lok := s.lower.At(i)
	hi, hok := s.upper.At(i)
	if !lok || !hok {
		return model.SideFlat
	}
	price := s.closes[i]
	if price <= lo*(1-s.entry) {
		return model.SideLong
	}
	if s.short && price >= hi*(1+s.entry) {
		return model.SideShort
	}
	return model.SideFlat
}

func (s *meanReversion) ExitSignal(i int, side model.Side) (bool, string) {
	mid, ok := s.middle.At(i)
	if !ok {
		return false, ""
	}
	price := s.closes[i]
	switch side {
	case model.SideLong:
		if price >= mid*(1-s.exit) {
			return true, "reverted to middle band"
		}
	case model.SideShort:
		if price <= mid*(1+s.exit) {
			return true, "reverted to middle band"
		}
	}
	return false, ""
}
