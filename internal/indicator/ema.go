package indicator

import (
	"fmt"

	"quantlab/internal/model"
)

// EMA calculates Exponential Moving Average with smoothing factor 2/(n+1).
// The first value is seeded with SMA(n) of the first n inputs; that seeding
// is load-bearing for early-value stability and must not be replaced with an
// EMA(0)=close(0) shortcut. O(1) per update — no window storage needed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return fmt.Sprintf("ema_%d", e.period) }

func (e *EMA) Update(candle model.Candle) {
	e.push(candle.Close)
}

func (e *EMA) push(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for the initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}
