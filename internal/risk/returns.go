// Package risk reduces equity curves and trade ledgers into scalar risk and
// performance statistics: volatility, Sharpe, Sortino, max drawdown, VaR,
// CVaR, Calmar, and beta. Everything here is a stateless closed-form
// computation, recomputable at any time from its inputs.
package risk

import (
	"math"
	"sort"
)

// SimpleReturns computes per-step simple returns R(t) = (E(t)-E(t-1))/E(t-1).
// A non-positive prior value yields 0 for that step.
func SimpleReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			out = append(out, (values[i]-values[i-1])/values[i-1])
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// LogReturns computes per-step log returns r(t) = ln(E(t)/E(t-1)).
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 && values[i] > 0 {
			out = append(out, math.Log(values[i]/values[i-1]))
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// LogFromSimple converts a simple return to its log return: r = ln(1+R).
func LogFromSimple(r float64) float64 { return math.Log(1 + r) }

// SimpleFromLog converts a log return to its simple return: R = e^r - 1.
func SimpleFromLog(r float64) float64 { return math.Expm1(r) }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 normalized standard deviation.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// populationVar is the n normalized variance.
func populationVar(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(xs))
}

// percentile returns the p-th percentile (0..100) of xs using linear
// interpolation between closest ranks.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
