package indicator

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"quantlab/internal/model"
)

// Series is a named sequence of indicator values, index-aligned 1:1 with the
// candle series it was computed from. Warm-up positions hold NaN; callers
// must treat them as "no signal" via At/Defined, never compare them.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.Values) || math.IsNaN(s.Values[i]) {
		return 0, false
	}
	return s.Values[i], true
}

// Defined reports whether index i holds a computed value.
func (s Series) Defined(i int) bool {
	_, ok := s.At(i)
	return ok
}

// Len returns the series length.
func (s Series) Len() int { return len(s.Values) }

// MarshalJSON encodes warm-up NaN values as null so the series survives
// encoding/json (which rejects NaN).
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	buf.WriteString(strconv.Quote(s.Name))
	buf.WriteString(`,"values":[`)
	for i, v := range s.Values {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
		} else {
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

func newSeries(name string, n int) Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return Series{Name: name, Values: values}
}

// runStreaming drives a streaming indicator across the series, recording NaN
// until the indicator reports Ready.
func runStreaming(series []model.Candle, ind Indicator) Series {
	out := newSeries(ind.Name(), len(series))
	for i := range series {
		ind.Update(series[i])
		if ind.Ready() {
			out.Values[i] = ind.Value()
		}
	}
	return out
}

// checkLength enforces the insufficient-data contract: requesting a window
// longer than the series fails loudly instead of returning an all-NaN series.
func checkLength(op string, need, have int) error {
	if have < need {
		return &model.InsufficientDataError{Op: op, Need: need, Have: have}
	}
	return nil
}

// ComputeSMA returns the simple moving average of closes; undefined for
// index < period-1.
func ComputeSMA(series []model.Candle, period int) (Series, error) {
	if err := checkLength(fmt.Sprintf("SMA(%d)", period), period, len(series)); err != nil {
		return Series{}, err
	}
	return runStreaming(series, NewSMA(period)), nil
}

// ComputeEMA returns the exponential moving average of closes, seeded with
// SMA(period); undefined for index < period-1.
func ComputeEMA(series []model.Candle, period int) (Series, error) {
	if err := checkLength(fmt.Sprintf("EMA(%d)", period), period, len(series)); err != nil {
		return Series{}, err
	}
	return runStreaming(series, NewEMA(period)), nil
}

// ComputeSMMA returns the Wilder-smoothed moving average of closes.
func ComputeSMMA(series []model.Candle, period int) (Series, error) {
	if err := checkLength(fmt.Sprintf("SMMA(%d)", period), period, len(series)); err != nil {
		return Series{}, err
	}
	return runStreaming(series, NewSMMA(period)), nil
}

// ComputeRSI returns the Wilder RSI; first defined at index period (the
// initial averages need period price changes).
func ComputeRSI(series []model.Candle, period int) (Series, error) {
	if err := checkLength(fmt.Sprintf("RSI(%d)", period), period+1, len(series)); err != nil {
		return Series{}, err
	}
	return runStreaming(series, NewRSI(period)), nil
}

// ComputeATR returns the SMA-of-true-range ATR; first defined at index period.
func ComputeATR(series []model.Candle, period int) (Series, error) {
	if err := checkLength(fmt.Sprintf("ATR(%d)", period), period+1, len(series)); err != nil {
		return Series{}, err
	}
	return runStreaming(series, NewATR(period)), nil
}

// MACDSeries bundles the three MACD output lines.
type MACDSeries struct {
	Line      Series
	Signal    Series
	Histogram Series
}

// ComputeMACD computes MACD = EMA(fast) - EMA(slow), its signal line
// (EMA(signalPeriod) over the defined portion of the MACD line, SMA-seeded
// like every EMA here), and the histogram. The MACD line is first defined at
// index slow-1, the signal and histogram signalPeriod-1 steps later.
func ComputeMACD(series []model.Candle, fast, slow, signalPeriod int) (MACDSeries, error) {
	if err := checkLength(fmt.Sprintf("MACD(%d,%d,%d)", fast, slow, signalPeriod),
		slow+signalPeriod-1, len(series)); err != nil {
		return MACDSeries{}, err
	}

	fastEMA, err := ComputeEMA(series, fast)
	if err != nil {
		return MACDSeries{}, err
	}
	slowEMA, err := ComputeEMA(series, slow)
	if err != nil {
		return MACDSeries{}, err
	}

	n := len(series)
	out := MACDSeries{
		Line:      newSeries("macd", n),
		Signal:    newSeries("macd_signal", n),
		Histogram: newSeries("macd_hist", n),
	}

	for i := 0; i < n; i++ {
		f, fok := fastEMA.At(i)
		s, sok := slowEMA.At(i)
		if fok && sok {
			out.Line.Values[i] = f - s
		}
	}

	// Signal line: EMA over the defined MACD values only, written back at the
	// original indices.
	sig := NewEMA(signalPeriod)
	for i := 0; i < n; i++ {
		v, ok := out.Line.At(i)
		if !ok {
			continue
		}
		sig.push(v)
		if sig.Ready() {
			out.Signal.Values[i] = sig.Value()
			out.Histogram.Values[i] = v - sig.Value()
		}
	}

	return out, nil
}

// BollingerBands bundles the three Bollinger output lines.
type BollingerBands struct {
	Upper  Series
	Middle Series
	Lower  Series
}

// ComputeBollinger computes Bollinger Bands: middle = SMA(period), bands =
// middle ± k * population-stdev of the close window.
func ComputeBollinger(series []model.Candle, period int, k float64) (BollingerBands, error) {
	if err := checkLength(fmt.Sprintf("Bollinger(%d,%g)", period, k), period, len(series)); err != nil {
		return BollingerBands{}, err
	}

	n := len(series)
	out := BollingerBands{
		Upper:  newSeries("bb_upper", n),
		Middle: newSeries("bb_middle", n),
		Lower:  newSeries("bb_lower", n),
	}

	mid := NewSMA(period)
	sd := NewStdDev(period)
	for i := range series {
		mid.Update(series[i])
		sd.Update(series[i])
		if mid.Ready() {
			m := mid.Value()
			band := k * sd.Value()
			out.Middle.Values[i] = m
			out.Upper.Values[i] = m + band
			out.Lower.Values[i] = m - band
		}
	}

	return out, nil
}

// Kind identifies an indicator type in a Spec.
type Kind string

const (
	KindSMA       Kind = "sma"
	KindEMA       Kind = "ema"
	KindSMMA      Kind = "smma"
	KindRSI       Kind = "rsi"
	KindATR       Kind = "atr"
	KindMACD      Kind = "macd"
	KindBollinger Kind = "bollinger"
)

// Default parameters used when a Spec leaves them zero.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// Spec describes one indicator computation: the kind plus its parameters.
type Spec struct {
	Kind   Kind    `json:"kind"`
	Period int     `json:"period,omitempty"` // SMA/EMA/SMMA/RSI/ATR/Bollinger
	Fast   int     `json:"fast,omitempty"`   // MACD
	Slow   int     `json:"slow,omitempty"`   // MACD
	Signal int     `json:"signal,omitempty"` // MACD
	K      float64 `json:"k,omitempty"`      // Bollinger band width in stdevs
}

// Key returns a stable cache/identity key for the spec.
func (sp Spec) Key() string {
	switch sp.Kind {
	case KindMACD:
		return fmt.Sprintf("macd_%d_%d_%d", sp.Fast, sp.Slow, sp.Signal)
	case KindBollinger:
		return fmt.Sprintf("bollinger_%d_%g", sp.Period, sp.K)
	default:
		return fmt.Sprintf("%s_%d", sp.Kind, sp.Period)
	}
}

func (sp *Spec) normalize() {
	switch sp.Kind {
	case KindMACD:
		if sp.Fast == 0 {
			sp.Fast = DefaultMACDFast
		}
		if sp.Slow == 0 {
			sp.Slow = DefaultMACDSlow
		}
		if sp.Signal == 0 {
			sp.Signal = DefaultMACDSignal
		}
	case KindBollinger:
		if sp.Period == 0 {
			sp.Period = model.DefaultBollingerPeriod
		}
		if sp.K == 0 {
			sp.K = model.DefaultBollingerK
		}
	}
}

// Compute calculates one indicator over the series, returning one Series for
// scalar indicators and three for MACD and Bollinger. It is pure: the input
// is never mutated and the result depends only on (series, spec).
func Compute(series []model.Candle, spec Spec) ([]Series, error) {
	spec.normalize()
	switch spec.Kind {
	case KindSMA:
		s, err := ComputeSMA(series, spec.Period)
		return []Series{s}, err
	case KindEMA:
		s, err := ComputeEMA(series, spec.Period)
		return []Series{s}, err
	case KindSMMA:
		s, err := ComputeSMMA(series, spec.Period)
		return []Series{s}, err
	case KindRSI:
		s, err := ComputeRSI(series, spec.Period)
		return []Series{s}, err
	case KindATR:
		s, err := ComputeATR(series, spec.Period)
		return []Series{s}, err
	case KindMACD:
		m, err := ComputeMACD(series, spec.Fast, spec.Slow, spec.Signal)
		if err != nil {
			return nil, err
		}
		return []Series{m.Line, m.Signal, m.Histogram}, nil
	case KindBollinger:
		b, err := ComputeBollinger(series, spec.Period, spec.K)
		if err != nil {
			return nil, err
		}
		return []Series{b.Upper, b.Middle, b.Lower}, nil
	default:
		return nil, fmt.Errorf("unknown indicator kind %q", spec.Kind)
	}
}

// ParseSpec parses a textual indicator name like "sma_20", "rsi_14", "macd",
// "macd_12_26_9" or "bollinger_20_2" into a Spec.
func ParseSpec(name string) (Spec, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(name)), "_")
	if len(parts) == 0 || parts[0] == "" {
		return Spec{}, fmt.Errorf("empty indicator name")
	}

	atoi := func(idx int) (int, error) {
		if idx >= len(parts) {
			return 0, nil
		}
		return strconv.Atoi(parts[idx])
	}

	switch Kind(parts[0]) {
	case KindSMA, KindEMA, KindSMMA, KindRSI, KindATR:
		period, err := atoi(1)
		if err != nil || (len(parts) > 1 && period <= 0) || len(parts) > 2 {
			return Spec{}, fmt.Errorf("malformed indicator name %q", name)
		}
		if period == 0 {
			period = 14 // conventional default
		}
		return Spec{Kind: Kind(parts[0]), Period: period}, nil
	case KindMACD:
		sp := Spec{Kind: KindMACD}
		var err error
		if sp.Fast, err = atoi(1); err != nil {
			return Spec{}, fmt.Errorf("malformed indicator name %q", name)
		}
		if sp.Slow, err = atoi(2); err != nil {
			return Spec{}, fmt.Errorf("malformed indicator name %q", name)
		}
		if sp.Signal, err = atoi(3); err != nil {
			return Spec{}, fmt.Errorf("malformed indicator name %q", name)
		}
		sp.normalize()
		return sp, nil
	case KindBollinger:
		sp := Spec{Kind: KindBollinger}
		var err error
		if sp.Period, err = atoi(1); err != nil {
			return Spec{}, fmt.Errorf("malformed indicator name %q", name)
		}
		if len(parts) > 2 {
			k, err := strconv.ParseFloat(parts[2], 64)
			if err != nil || k <= 0 {
				return Spec{}, fmt.Errorf("malformed indicator name %q", name)
			}
			sp.K = k
		}
		sp.normalize()
		return sp, nil
	default:
		return Spec{}, fmt.Errorf("unknown indicator %q", name)
	}
}

// Set is a named collection of computed series, the join the backtester
// consumes alongside the candle series.
type Set map[string]Series

// Get returns the named series.
func (s Set) Get(name string) (Series, bool) {
	sr, ok := s[name]
	return sr, ok
}

// Add inserts the series under their own names.
func (s Set) Add(series ...Series) {
	for _, sr := range series {
		s[sr.Name] = sr
	}
}

// ComputeSet computes every spec over the series and flattens the outputs
// into a Set keyed by line name.
func ComputeSet(series []model.Candle, specs []Spec) (Set, error) {
	set := make(Set, len(specs))
	for _, sp := range specs {
		out, err := Compute(series, sp)
		if err != nil {
			return nil, err
		}
		set.Add(out...)
	}
	return set, nil
}
