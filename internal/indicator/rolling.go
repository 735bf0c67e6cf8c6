package indicator

import "sort"

// CalculateRollMedian returns the rolling median of prices over period.
// Bars before a full window are NaN.
func CalculateRollMedian(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := nanSlice(len(prices))
	buf := make([]float64, period)
	for i := period - 1; i < len(prices); i++ {
		copy(buf, prices[i-period+1:i+1])
		sort.Float64s(buf)
		if period%2 == 1 {
			out[i] = buf[period/2]
		} else {
			out[i] = (buf[period/2-1] + buf[period/2]) / 2
		}
	}
	return out
}

// CalculateRollPercentile returns, for each bar with a full window, where the
// latest price sits inside the window's range, scaled to 0..100. A window
// whose max equals its min yields 50.
func CalculateRollPercentile(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := nanSlice(len(prices))
	for i := period - 1; i < len(prices); i++ {
		lo, hi := prices[i], prices[i]
		for j := i - period + 1; j <= i; j++ {
			if prices[j] < lo {
				lo = prices[j]
			}
			if prices[j] > hi {
				hi = prices[j]
			}
		}
		if hi == lo {
			out[i] = 50
			continue
		}
		out[i] = (prices[i] - lo) / (hi - lo) * 100
	}
	return out
}
