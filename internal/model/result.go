package model

import (
	"encoding/json"
	"math"
)

// Summary carries the scalar statistics derived deterministically from a
// trade ledger.
//
// Sentinels for degenerate ledgers: with zero trades WinRate, ProfitFactor
// and TotalReturn are all 0 (never NaN); with at least one winning trade and
// zero losing trades ProfitFactor is +Inf. The +Inf sentinel encodes to JSON
// null (encoding/json rejects infinities).
type Summary struct {
	TotalReturn   float64 `json:"total_return"` // (final - initial) / initial, a fraction
	WinRate       float64 `json:"win_rate"`     // wins / total, a fraction
	ProfitFactor  float64 `json:"profit_factor"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	FinalEquity   float64 `json:"final_equity"`
}

// finiteOrNull maps non-finite floats to JSON null.
func finiteOrNull(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// MarshalJSON encodes the summary with the +Inf profit factor mapped to null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	return json.Marshal(struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{
		alias:        alias(s),
		ProfitFactor: finiteOrNull(s.ProfitFactor),
	})
}

// UnmarshalJSON restores a summary; a null profit factor becomes the +Inf
// sentinel when the ledger shows winners and no losers, otherwise 0.
func (s *Summary) UnmarshalJSON(data []byte) error {
	type alias Summary
	aux := struct {
		*alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.ProfitFactor != nil:
		s.ProfitFactor = *aux.ProfitFactor
	case s.WinningTrades > 0 && s.LosingTrades == 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = 0
	}
	return nil
}

// BacktestResult aggregates everything one simulation run produced. It is a
// value object: produced once, never mutated, owned by the caller.
type BacktestResult struct {
	Config  StrategyConfig `json:"config"`
	Equity  EquityCurve    `json:"equity_curve"`
	Trades  []Trade        `json:"trades"`
	Summary Summary        `json:"summary"`
}

// RiskMetrics is the scalar bundle the risk reducer computes from an equity
// curve. All ratio-style fields use fractions (max drawdown 0.0667 = 6.67%).
// Beta is nil when no benchmark return series was supplied; it is omitted,
// never defaulted to 1.
type RiskMetrics struct {
	Volatility  float64  `json:"volatility"` // annualized sample stdev of simple returns
	Sharpe      float64  `json:"sharpe_ratio"`
	Sortino     float64  `json:"sortino_ratio"`
	MaxDrawdown float64  `json:"max_drawdown"`
	VaR95       float64  `json:"var_95"`
	VaR99       float64  `json:"var_99"`
	CVaR95      float64  `json:"cvar_95"`
	Calmar      float64  `json:"calmar_ratio"`
	Beta        *float64 `json:"beta,omitempty"`
}

// MarshalJSON encodes the metrics with any infinite ratio mapped to null.
// Sharpe and Sortino carry ±Inf sentinels for zero-volatility curves.
func (m RiskMetrics) MarshalJSON() ([]byte, error) {
	type alias RiskMetrics
	return json.Marshal(struct {
		alias
		Sharpe  *float64 `json:"sharpe_ratio"`
		Sortino *float64 `json:"sortino_ratio"`
		Calmar  *float64 `json:"calmar_ratio"`
	}{
		alias:   alias(m),
		Sharpe:  finiteOrNull(m.Sharpe),
		Sortino: finiteOrNull(m.Sortino),
		Calmar:  finiteOrNull(m.Calmar),
	})
}
