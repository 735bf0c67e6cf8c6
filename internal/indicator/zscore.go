package indicator

// CalculateZScore returns the rolling z-score of prices over period, using
// the sample standard deviation. Bars before a full window are NaN, as is
// any bar whose window has zero variance.
func CalculateZScore(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := nanSlice(len(prices))
	for i := period - 1; i < len(prices); i++ {
		mean := windowMean(prices, i, period)
		std := windowStd(prices, i, period)
		if !Valid(std) || std == 0 {
			continue
		}
		out[i] = (prices[i] - mean) / std
	}
	return out
}

// CalculateRollStd returns the rolling sample standard deviation of prices
// over period. Bars before a full window are NaN.
func CalculateRollStd(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := nanSlice(len(prices))
	for i := period - 1; i < len(prices); i++ {
		out[i] = windowStd(prices, i, period)
	}
	return out
}
