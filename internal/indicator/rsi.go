package indicator

import "math"

// CalculateRSI returns the relative strength index of prices over period,
// built on simple rolling means of gains and losses (not Wilder smoothing).
// The first period entries are NaN (one delta plus a full window are needed).
// When the average loss is zero the RSI saturates at 100; a fully flat
// window (no gains and no losses) stays NaN.
func CalculateRSI(prices []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := nanSlice(len(prices))
	if len(prices) < period+1 {
		return out
	}

	gains := make([]float64, len(prices))
	losses := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := period; i < len(prices); i++ {
		avgGain := windowMean(gains, i, period)
		avgLoss := windowMean(losses, i, period)
		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = math.NaN()
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}
