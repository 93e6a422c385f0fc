package indicator

import (
	"fmt"
	"math"

	"quantlab/internal/model"
)

// StdDev calculates the population standard deviation of closes over a
// rolling window. Bollinger Bands are built on it. Running sum and
// sum-of-squares keep updates O(1).
type StdDev struct {
	period int
	buf    []float64
	idx    int
	count  int
	sum    float64
	sumSq  float64
}

// NewStdDev creates a rolling population-stdev indicator with the given period.
func NewStdDev(period int) *StdDev {
	return &StdDev{
		period: period,
		buf:    make([]float64, period),
	}
}

func (d *StdDev) Name() string { return fmt.Sprintf("stddev_%d", d.period) }

func (d *StdDev) Update(candle model.Candle) {
	d.push(candle.Close)
}

func (d *StdDev) push(v float64) {
	if d.count >= d.period {
		old := d.buf[d.idx]
		d.sum -= old
		d.sumSq -= old * old
	}

	d.buf[d.idx] = v
	d.sum += v
	d.sumSq += v * v
	d.idx = (d.idx + 1) % d.period
	d.count++
}

func (d *StdDev) Value() float64 {
	if d.count < d.period {
		return 0
	}
	n := float64(d.period)
	mean := d.sum / n
	variance := d.sumSq/n - mean*mean
	if variance < 0 {
		// Guard against tiny negative variance from float cancellation.
		variance = 0
	}
	return math.Sqrt(variance)
}

func (d *StdDev) Ready() bool { return d.count >= d.period }

// Reset clears the state for reuse.
func (d *StdDev) Reset() {
	d.idx = 0
	d.count = 0
	d.sum = 0
	d.sumSq = 0
	for i := range d.buf {
		d.buf[i] = 0
	}
}
