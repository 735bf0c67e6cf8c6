package indicator

// CalculateSMA returns the simple moving average of prices over period.
// The first period-1 entries are NaN.
func CalculateSMA(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := nanSlice(len(prices))
	for i := period - 1; i < len(prices); i++ {
		out[i] = windowMean(prices, i, period)
	}
	return out
}

// CalculateEMA returns the exponential moving average of prices over period.
// EMA[0] = prices[0], EMA[i] = prices[i]*alpha + EMA[i-1]*(1-alpha) with
// alpha = 2/(period+1). No seeding bias correction is applied.
func CalculateEMA(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}

// CalculateDEMA returns the double exponential moving average:
// 2*EMA(prices) - EMA(EMA(prices)).
func CalculateDEMA(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	ema1 := CalculateEMA(prices, period)
	ema2 := CalculateEMA(ema1, period)
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = 2*ema1[i] - ema2[i]
	}
	return out
}
