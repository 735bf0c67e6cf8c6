package indicator

import (
	"math"

	"github.com/quantfold/backtester/internal/candle"
)

// CalculateCCI returns the commodity channel index over period, computed
// from the typical price (high+low+close)/3. Entries before a full window
// are NaN, as is any bar whose mean absolute deviation is zero.
func CalculateCCI(candles []candle.Candle, period int) []float64 {
	if period <= 0 {
		return nil
	}
	tp := make([]float64, len(candles))
	for i, c := range candles {
		tp[i] = c.TypicalPrice()
	}

	out := nanSlice(len(candles))
	for i := period - 1; i < len(candles); i++ {
		mean := windowMean(tp, i, period)
		mad := 0.0
		for j := i - period + 1; j <= i; j++ {
			mad += math.Abs(tp[j] - mean)
		}
		mad /= float64(period)
		if mad == 0 {
			continue
		}
		out[i] = (tp[i] - mean) / (0.015 * mad)
	}
	return out
}
