// Package metrics computes the summary statistics reported for backtest and
// parameter sweep results.
package metrics

import "math"

// SharpeRatio returns the annualized Sharpe ratio of a daily return series.
// riskFreeRate is annualized and converted to a daily rate with 365 periods.
// An empty or zero-variance series yields 0.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	std := stddev(returns)
	if std == 0 {
		return 0
	}

	daily := riskFreeRate / 365
	excess := 0.0
	for _, r := range returns {
		excess += r - daily
	}
	excess /= float64(len(returns))
	return math.Sqrt(365) * excess / std
}

// MaxDrawdown returns the largest peak-to-trough decline of an equity curve
// as a positive fraction (0.15 means a 15% drawdown). Empty curves yield 0.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, eq := range equity {
		if eq > peak {
			peak = eq
		}
		if peak != 0 {
			dd := (eq - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return math.Abs(worst)
}

// WinRate returns the share of non-zero returns that are positive, as a
// percentage. Zero returns count toward neither side.
func WinRate(returns []float64) float64 {
	winning, total := 0, 0
	for _, r := range returns {
		if r > 0 {
			winning++
		}
		if r != 0 {
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(winning) / float64(total) * 100
}

// TotalReturn returns the absolute and percentage return between two
// capital levels.
func TotalReturn(initialCapital, finalCapital float64) (totalReturn, totalReturnPct float64) {
	totalReturn = finalCapital - initialCapital
	if initialCapital > 0 {
		totalReturnPct = totalReturn / initialCapital * 100
	}
	return totalReturn, totalReturnPct
}

// stddev is the sample standard deviation, matching how pandas computes it.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
