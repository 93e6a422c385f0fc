package risk

import (
	"math"

	"quantlab/internal/model"
)

// DefaultAnnualizationFactor assumes daily steps over one trading year.
const DefaultAnnualizationFactor = 252

// Options parameterizes a reduction.
type Options struct {
	RiskFreeRate        float64   // annual, e.g. 0.02
	AnnualizationFactor float64   // steps per year; 0 means DefaultAnnualizationFactor
	Benchmark           []float64 // benchmark return series aligned with the equity returns; nil omits beta
}

// Reduce computes the full risk metric bundle from an equity curve and its
// trade ledger. The equity curve needs at least two points; shorter input is
// an InsufficientDataError, not a zeroed result.
//
// Degenerate-but-valid inputs resolve to documented sentinels instead of
// NaN: zero volatility with zero excess return gives Sharpe 0, zero
// volatility with nonzero excess gives ±Inf (sign of the excess, magnitude
// undefined); no downside steps gives Sortino +Inf when the excess return is
// positive, else 0; zero drawdown gives Calmar 0.
func Reduce(equity model.EquityCurve, trades []model.Trade, opts Options) (*model.RiskMetrics, error) {
	if len(equity) < 2 {
		return nil, &model.InsufficientDataError{Op: "risk.Reduce", Need: 2, Have: len(equity)}
	}

	factor := opts.AnnualizationFactor
	if factor <= 0 {
		factor = DefaultAnnualizationFactor
	}

	returns := SimpleReturns(equity)
	meanR := mean(returns)
	annualReturn := meanR * factor
	excess := annualReturn - opts.RiskFreeRate

	volatility := sampleStd(returns) * math.Sqrt(factor)
	maxDD := MaxDrawdown(equity)

	m := &model.RiskMetrics{
		Volatility:  volatility,
		Sharpe:      sharpe(excess, volatility),
		Sortino:     sortino(returns, excess, factor),
		MaxDrawdown: maxDD,
		VaR95:       VaR(returns, 0.95),
		VaR99:       VaR(returns, 0.99),
		CVaR95:      CVaR(returns, 0.95),
		Calmar:      calmar(annualReturn, maxDD),
	}

	if opts.Benchmark != nil {
		if b, ok := Beta(returns, opts.Benchmark); ok {
			m.Beta = &b
		}
	}

	return m, nil
}

func sharpe(excess, volatility float64) float64 {
	if volatility == 0 {
		// Zero-variance curve: 0 for a flat curve, otherwise the sign of the
		// excess return with undefined magnitude.
		if excess == 0 {
			return 0
		}
		return math.Inf(sign(excess))
	}
	return excess / volatility
}

func sortino(returns []float64, excess, factor float64) float64 {
	// Downside deviation relative to a 0 target: only negative steps count.
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		if excess > 0 {
			return math.Inf(1)
		}
		return 0
	}

	dsVol := math.Sqrt(populationVar(downside)) * math.Sqrt(factor)
	if dsVol == 0 {
		return 0
	}
	return excess / dsVol
}

// MaxDrawdown returns the largest peak-to-trough decline of the curve as a
// non-negative fraction of the running peak. The peak never resets.
func MaxDrawdown(equity model.EquityCurve) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func calmar(annualReturn, maxDD float64) float64 {
	if maxDD == 0 {
		return 0
	}
	return annualReturn / maxDD
}

// VaR returns the historical value-at-risk at the given confidence: the
// (1-confidence) percentile of the return distribution, reported as a
// negative or zero number.
func VaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	v := percentile(returns, (1-confidence)*100)
	if v > 0 {
		return 0
	}
	return v
}

// CVaR returns the conditional VaR (expected shortfall): the mean of all
// returns at or below VaR(confidence). With an empty tail it equals the VaR.
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	v := VaR(returns, confidence)
	var tail []float64
	for _, r := range returns {
		if r <= v {
			tail = append(tail, r)
		}
	}
	if len(tail) == 0 {
		return v
	}
	return mean(tail)
}

// Beta returns Cov(portfolio, benchmark) / Var(benchmark). The second result
// is false when the series lengths differ, are too short, or the benchmark
// has zero variance — callers omit beta in that case rather than defaulting
// it to 1.
func Beta(portfolio, benchmark []float64) (float64, bool) {
	n := len(portfolio)
	if n < 2 || len(benchmark) != n {
		return 0, false
	}

	mp := mean(portfolio)
	mb := mean(benchmark)
	var cov, varB float64
	for i := 0; i < n; i++ {
		dp := portfolio[i] - mp
		db := benchmark[i] - mb
		cov += dp * db
		varB += db * db
	}
	if varB == 0 {
		return 0, false
	}
	return cov / varB, true
}

func sign(x float64) int {
	if x < 0 {
		return -1
	}
	return 1
}
