// Package optimize runs the vectorized parameter sweeps. Unlike the event
// engine it evaluates a whole combination at once: a +1/0/-1 signal series,
// a forward-filled position series, and per-bar strategy returns reduced to
// Sharpe, drawdown, and win rate.
package optimize

import (
	"math"

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/indicator"
	"github.com/quantfold/backtester/internal/metrics"
)

// warm-up margin required beyond the longest indicator period
const minExtraBars = 10

// Options configures a single combination run.
type Options struct {
	InitialCapital     float64
	PositionType       string // both, long_only, short_only
	StrategyMode       string // reversal, wait_for_next, long_only, short_only
	RiskFreeRate       float64
	OscillatorStrategy string // mean_reversion, momentum
}

func (o *Options) normalize() {
	if o.InitialCapital <= 0 {
		o.InitialCapital = 10000
	}
	if o.PositionType == "" {
		o.PositionType = "both"
	}
	if o.StrategyMode == "" {
		o.StrategyMode = "reversal"
	}
	if o.OscillatorStrategy == "" {
		o.OscillatorStrategy = "mean_reversion"
	}
}

// effectivePositionType lets long_only / short_only strategy modes override
// the configured position type.
func (o *Options) effectivePositionType() string {
	if o.StrategyMode == "long_only" || o.StrategyMode == "short_only" {
		return o.StrategyMode
	}
	return o.PositionType
}

// Result is the metrics row for one parameter combination.
type Result struct {
	Fast        int     `json:"fast,omitempty"`
	Slow        int     `json:"slow,omitempty"`
	Length      int     `json:"length,omitempty"`
	Top         float64 `json:"top,omitempty"`
	Bottom      float64 `json:"bottom,omitempty"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	TotalTrades int     `json:"total_trades"`
}

// RunCrossover evaluates one fast/slow crossover combination for ema, ma,
// or dema. Returns nil when the series is too short for the slow period
// plus a warm-up margin.
func RunCrossover(candles []candle.Candle, indicatorType string, fast, slow int, opts Options) *Result {
	longest := fast
	if slow > longest {
		longest = slow
	}
	if len(candles) < longest+minExtraBars {
		return nil
	}
	opts.normalize()

	closes := candle.Closes(candles)
	var fastSeries, slowSeries []float64
	switch indicatorType {
	case "ma":
		fastSeries = indicator.CalculateSMA(closes, fast)
		slowSeries = indicator.CalculateSMA(closes, slow)
	case "dema":
		fastSeries = indicator.CalculateDEMA(closes, fast)
		slowSeries = indicator.CalculateDEMA(closes, slow)
	default:
		fastSeries = indicator.CalculateEMA(closes, fast)
		slowSeries = indicator.CalculateEMA(closes, slow)
	}

	signal := make([]int, len(candles))
	effective := opts.effectivePositionType()
	for i := range candles {
		f, s := fastSeries[i], slowSeries[i]
		if math.IsNaN(f) || math.IsNaN(s) {
			continue
		}
		switch effective {
		case "long_only":
			if f > s {
				signal[i] = 1
			}
		case "short_only":
			if f < s {
				signal[i] = -1
			}
		default:
			if f > s {
				signal[i] = 1
			} else if f < s {
				signal[i] = -1
			}
		}
	}

	valid := func(i int) bool {
		return !math.IsNaN(fastSeries[i]) && !math.IsNaN(slowSeries[i])
	}
	result := evaluate(closes, signal, opts, valid, true)
	if result == nil {
		return nil
	}
	result.Fast = fast
	result.Slow = slow
	return result
}

// RunThreshold evaluates one length/top/bottom combination for the
// oscillator family (rsi, cci, zscore, roll_std, roll_percentile) or the
// price-cross roll_median. Returns nil for unknown types or short series.
func RunThreshold(candles []candle.Candle, indicatorType string, length int, top, bottom float64, opts Options) *Result {
	if len(candles) < length+minExtraBars {
		return nil
	}
	opts.normalize()

	closes := candle.Closes(candles)
	var series []float64
	switch indicatorType {
	case "rsi":
		series = indicator.CalculateRSI(closes, length)
	case "cci":
		series = indicator.CalculateCCI(candles, length)
	case "zscore":
		series = indicator.CalculateZScore(closes, length)
	case "roll_std":
		series = indicator.CalculateRollStd(closes, length)
	case "roll_median":
		series = indicator.CalculateRollMedian(closes, length)
	case "roll_percentile":
		series = indicator.CalculateRollPercentile(closes, length)
	default:
		return nil
	}

	signal := make([]int, len(candles))
	effective := opts.effectivePositionType()
	momentum := opts.OscillatorStrategy == "momentum"

	for i := 1; i < len(candles); i++ {
		cur, prev := series[i], series[i-1]
		if math.IsNaN(cur) || math.IsNaN(prev) {
			continue
		}

		if indicatorType == "roll_median" {
			// Price crossing its rolling median.
			if closes[i-1] <= prev && closes[i] > cur {
				if effective == "both" || effective == "long_only" {
					signal[i] = 1
				}
			} else if closes[i-1] >= prev && closes[i] < cur {
				if effective == "both" || effective == "short_only" {
					signal[i] = -1
				}
			}
			continue
		}

		if momentum {
			// Breakout: buy through the top, sell through the bottom.
			if prev <= top && cur > top {
				if effective == "both" || effective == "long_only" {
					signal[i] = 1
				}
			} else if prev >= bottom && cur < bottom {
				if effective == "both" || effective == "short_only" {
					signal[i] = -1
				}
			}
		} else {
			// Mean reversion: buy leaving oversold, sell leaving overbought.
			if prev <= bottom && cur > bottom {
				if effective == "both" || effective == "long_only" {
					signal[i] = 1
				}
			} else if prev >= top && cur < top {
				if effective == "both" || effective == "short_only" {
					signal[i] = -1
				}
			}
		}
	}

	valid := func(i int) bool { return !math.IsNaN(series[i]) }
	result := evaluate(closes, signal, opts, valid, false)
	if result == nil {
		return nil
	}
	result.Length = length
	result.Top = top
	result.Bottom = bottom
	return result
}

// evaluate turns a signal series into positions, per-bar strategy returns,
// and summary metrics. Rows whose indicator values are still warming up
// are dropped, matching how the source data frame drops NaN rows.
func evaluate(closes []float64, signal []int, opts Options, valid func(int) bool, signalTrades bool) *Result {
	position := make([]int, len(signal))
	if opts.StrategyMode == "wait_for_next" {
		copy(position, signal)
	} else {
		last := 0
		for i, s := range signal {
			if s != 0 {
				last = s
			}
			position[i] = last
		}
	}

	var rets []float64
	var keptSignals, keptPositions []int
	for i := 1; i < len(closes); i++ {
		if !valid(i) {
			continue
		}
		r := closes[i]/closes[i-1] - 1
		rets = append(rets, float64(position[i-1])*r)
		keptSignals = append(keptSignals, signal[i])
		keptPositions = append(keptPositions, position[i])
	}
	if len(rets) == 0 {
		return nil
	}

	equity := make([]float64, len(rets))
	eq := opts.InitialCapital
	for i, r := range rets {
		eq *= 1 + r
		equity[i] = eq
	}

	trades := 0
	if signalTrades {
		trades = 1
		for i := 1; i < len(keptSignals); i++ {
			if keptSignals[i] != keptSignals[i-1] {
				trades++
			}
		}
	} else {
		for i := 1; i < len(keptPositions); i++ {
			if keptPositions[i] != keptPositions[i-1] {
				trades++
			}
		}
	}

	return &Result{
		SharpeRatio: metrics.SharpeRatio(rets, opts.RiskFreeRate),
		TotalReturn: eq/opts.InitialCapital - 1,
		MaxDrawdown: metrics.MaxDrawdown(equity),
		WinRate:     metrics.WinRate(rets) / 100,
		TotalTrades: trades,
	}
}
