package risk

import (
	"errors"
	"math"
	"testing"

	"quantlab/internal/model"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestSimpleReturns(t *testing.T) {
	got := SimpleReturns([]float64{100, 110, 99})
	want := []float64{0.1, -0.1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !almostEqual(got[i], want[i], 1e-12) {
			t.Errorf("returns[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if SimpleReturns([]float64{100}) != nil {
		t.Error("single point should yield nil")
	}
	if got := SimpleReturns([]float64{0, 100}); got[0] != 0 {
		t.Errorf("non-positive prior = %v, want 0", got[0])
	}
}

func TestLogSimpleConversions(t *testing.T) {
	for _, r := range []float64{-0.5, -0.01, 0, 0.01, 0.5} {
		back := SimpleFromLog(LogFromSimple(r))
		if !almostEqual(back, r, 1e-12) {
			t.Errorf("round trip of %v = %v", r, back)
		}
	}

	lg := LogReturns([]float64{100, 110})
	if !almostEqual(lg[0], math.Log(1.1), 1e-12) {
		t.Errorf("log return = %v, want ln(1.1)", lg[0])
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		equity model.EquityCurve
		want   float64
	}{
		{"classic dip", model.EquityCurve{10000, 10500, 9800, 10200}, (10500.0 - 9800.0) / 10500.0},
		{"monotone rise", model.EquityCurve{100, 110, 120}, 0},
		{"flat", model.EquityCurve{100, 100, 100}, 0},
		{"final trough", model.EquityCurve{100, 120, 60}, 0.5},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.equity)
			if !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("MaxDrawdown = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVaRCVaR(t *testing.T) {
	// 20 returns; the 5th percentile sits between the two worst.
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[0] = -0.10
	returns[1] = -0.06

	v := VaR(returns, 0.95)
	// rank = 0.05 * 19 = 0.95 -> between -0.10 and -0.06.
	want := -0.10*(1-0.95) + -0.06*0.95
	if !almostEqual(v, want, 1e-12) {
		t.Errorf("VaR95 = %v, want %v", v, want)
	}

	c := CVaR(returns, 0.95)
	// Only the -0.10 observation sits at or below the VaR.
	if !almostEqual(c, -0.10, 1e-12) {
		t.Errorf("CVaR95 = %v, want -0.10", c)
	}

	if VaR(nil, 0.95) != 0 || CVaR(nil, 0.95) != 0 {
		t.Error("empty returns should yield 0")
	}

	// An all-positive distribution clamps VaR to 0 rather than reporting a
	// positive "loss".
	if v := VaR([]float64{0.01, 0.02, 0.03}, 0.95); v != 0 {
		t.Errorf("all-gain VaR = %v, want 0", v)
	}
}

func TestBeta(t *testing.T) {
	portfolio := []float64{0.02, -0.01, 0.03, -0.02, 0.01}

	// Portfolio exactly 2x the benchmark: beta 2.
	benchmark := make([]float64, len(portfolio))
	for i, r := range portfolio {
		benchmark[i] = r / 2
	}
	b, ok := Beta(portfolio, benchmark)
	if !ok || !almostEqual(b, 2, 1e-9) {
		t.Errorf("Beta = %v (ok=%v), want 2", b, ok)
	}

	if _, ok := Beta(portfolio, benchmark[:3]); ok {
		t.Error("length mismatch should not produce a beta")
	}
	if _, ok := Beta(portfolio, []float64{0.01, 0.01, 0.01, 0.01, 0.01}); ok {
		t.Error("zero-variance benchmark should not produce a beta")
	}
	if _, ok := Beta(portfolio[:1], benchmark[:1]); ok {
		t.Error("too-short series should not produce a beta")
	}
}

func TestReduce_InsufficientData(t *testing.T) {
	_, err := Reduce(model.EquityCurve{100}, nil, Options{})
	var dataErr *model.InsufficientDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
}

func TestReduce_FlatCurveSentinels(t *testing.T) {
	m, err := Reduce(model.EquityCurve{100, 100, 100, 100}, nil, Options{})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if m.Volatility != 0 || m.Sharpe != 0 || m.Sortino != 0 || m.Calmar != 0 {
		t.Errorf("flat curve metrics = %+v, want zero sentinels", m)
	}
	if m.MaxDrawdown != 0 || m.VaR95 != 0 || m.CVaR95 != 0 {
		t.Errorf("flat curve tail metrics = %+v, want zeros", m)
	}
	if m.Beta != nil {
		t.Error("beta set without a benchmark")
	}
}

func TestReduce_ZeroVolWithDriftIsInfSharpe(t *testing.T) {
	// Constant +25% return every step, exactly representable in binary:
	// sample stdev exactly 0, positive excess.
	m, err := Reduce(model.EquityCurve{100, 125, 156.25, 195.3125}, nil, Options{})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if !math.IsInf(m.Sharpe, 1) {
		t.Errorf("Sharpe = %v, want +Inf", m.Sharpe)
	}
	// No negative steps either: Sortino +Inf on positive excess.
	if !math.IsInf(m.Sortino, 1) {
		t.Errorf("Sortino = %v, want +Inf", m.Sortino)
	}
}

func TestReduce_FullBundle(t *testing.T) {
	equity := model.EquityCurve{10000, 10500, 9800, 10200, 10100, 10600}
	m, err := Reduce(equity, nil, Options{RiskFreeRate: 0.02, AnnualizationFactor: 252})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}

	if !almostEqual(m.MaxDrawdown, (10500.0-9800.0)/10500.0, 1e-12) {
		t.Errorf("MaxDrawdown = %v", m.MaxDrawdown)
	}
	if m.Volatility <= 0 {
		t.Errorf("Volatility = %v, want > 0", m.Volatility)
	}
	if m.VaR95 > 0 || m.CVaR95 > m.VaR95 {
		t.Errorf("tail metrics VaR=%v CVaR=%v, want CVaR <= VaR <= 0", m.VaR95, m.CVaR95)
	}
	if m.Calmar == 0 {
		t.Errorf("Calmar = 0 with a drawdown and drift")
	}

	returns := SimpleReturns(equity)
	wantSharpe := (mean(returns)*252 - 0.02) / m.Volatility
	if !almostEqual(m.Sharpe, wantSharpe, 1e-9) {
		t.Errorf("Sharpe = %v, want %v", m.Sharpe, wantSharpe)
	}
}

func TestReduce_BetaFromBenchmark(t *testing.T) {
	equity := model.EquityCurve{100, 102, 101, 103, 102}
	returns := SimpleReturns(equity)
	benchmark := make([]float64, len(returns))
	for i, r := range returns {
		benchmark[i] = r * 2
	}

	m, err := Reduce(equity, nil, Options{Benchmark: benchmark})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if m.Beta == nil || !almostEqual(*m.Beta, 0.5, 1e-9) {
		t.Errorf("Beta = %v, want 0.5", m.Beta)
	}
}
