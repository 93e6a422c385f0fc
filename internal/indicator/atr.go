package indicator

import (
	"fmt"
	"math"

	"quantlab/internal/model"
)

// ATR calculates Average True Range as the SMA of the true range, where
// TR = max(high-low, |high-prevClose|, |low-prevClose|). The first candle
// produces no true range, so ATR becomes ready at candle period+1.
type ATR struct {
	period    int
	count     int
	prevClose float64
	window    *SMA
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period, window: NewSMA(period)}
}

func (a *ATR) Name() string { return fmt.Sprintf("atr_%d", a.period) }

func (a *ATR) Update(candle model.Candle) {
	a.count++
	if a.count == 1 {
		a.prevClose = candle.Close
		return
	}

	tr := math.Max(candle.High-candle.Low,
		math.Max(math.Abs(candle.High-a.prevClose), math.Abs(candle.Low-a.prevClose)))
	a.prevClose = candle.Close
	a.window.push(tr)
}

func (a *ATR) Value() float64 { return a.window.Value() }
func (a *ATR) Ready() bool    { return a.window.Ready() }

// Reset clears the ATR state for reuse.
func (a *ATR) Reset() {
	a.count = 0
	a.prevClose = 0
	a.window.Reset()
}
