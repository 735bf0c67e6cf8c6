// Package strategy implements entry signal detection, stop loss placement,
// and the boolean condition language used by saved strategies.
package strategy

import (
	"fmt"

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/indicator"
)

// Direction is the side of a signal or position.
type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
)

// Signal is the outcome of checking one bar for an entry signal.
type Signal struct {
	Fired     bool
	Direction Direction
	Reason    string
}

// Params configures a named indicator. Crossover indicators use Fast/Slow,
// oscillators use Length/Top/Bottom.
type Params struct {
	Fast   int     `json:"fast" yaml:"fast"`
	Slow   int     `json:"slow" yaml:"slow"`
	Length int     `json:"length" yaml:"length"`
	Top    float64 `json:"top" yaml:"top"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

// DefaultParams returns the standard parameters for an indicator type.
func DefaultParams(indicatorType string) Params {
	switch indicatorType {
	case "rsi":
		return Params{Length: 14, Top: 70, Bottom: 30}
	case "cci":
		return Params{Length: 20, Top: 100, Bottom: -100}
	case "zscore":
		return Params{Length: 20, Top: 2, Bottom: -2}
	default:
		return Params{Fast: 12, Slow: 26}
	}
}

// Detector evaluates per-bar entry signals for one named indicator.
// Indicator series are computed once over the full candle set at
// construction, and Check reads them by index.
type Detector struct {
	kind   string
	params Params

	fast  []float64
	slow  []float64
	level []float64
}

// NewDetector computes the indicator series for kind over candles.
// Supported kinds: ema, ma (crossover), rsi, cci, zscore (threshold).
// An unsupported kind yields a detector that never fires.
func NewDetector(kind string, params Params, candles []candle.Candle) *Detector {
	d := &Detector{kind: kind, params: params}
	closes := candle.Closes(candles)

	switch kind {
	case "ema":
		d.fast = indicator.CalculateEMA(closes, params.Fast)
		d.slow = indicator.CalculateEMA(closes, params.Slow)
	case "ma":
		d.fast = indicator.CalculateSMA(closes, params.Fast)
		d.slow = indicator.CalculateSMA(closes, params.Slow)
	case "rsi":
		d.level = indicator.CalculateRSI(closes, params.Length)
	case "cci":
		d.level = indicator.CalculateCCI(candles, params.Length)
	case "zscore":
		d.level = indicator.CalculateZScore(closes, params.Length)
	}
	return d
}

// Check reports whether an entry signal fires at bar i. Crossover kinds
// need bar i-1 and never fire at index 0; threshold kinds fire on every
// bar the oscillator sits inside the overbought or oversold zone.
func (d *Detector) Check(i int) Signal {
	if i <= 0 {
		return Signal{}
	}

	switch d.kind {
	case "ema":
		return d.checkCrossover(i, "EMA")
	case "ma":
		return d.checkCrossover(i, "MA")
	case "rsi":
		v := indicator.ValueOr(d.level, i, 50)
		if v <= d.params.Bottom {
			return Signal{true, Long, fmt.Sprintf("RSI(%d) hit oversold (%.1f <= %g) - Buy signal", d.params.Length, v, d.params.Bottom)}
		}
		if v >= d.params.Top {
			return Signal{true, Short, fmt.Sprintf("RSI(%d) hit overbought (%.1f >= %g) - Sell signal", d.params.Length, v, d.params.Top)}
		}
	case "cci":
		v := indicator.ValueOr(d.level, i, 0)
		if v <= d.params.Bottom {
			return Signal{true, Long, fmt.Sprintf("CCI(%d) hit oversold (%.1f <= %g) - Buy signal", d.params.Length, v, d.params.Bottom)}
		}
		if v >= d.params.Top {
			return Signal{true, Short, fmt.Sprintf("CCI(%d) hit overbought (%.1f >= %g) - Sell signal", d.params.Length, v, d.params.Top)}
		}
	case "zscore":
		v := indicator.ValueOr(d.level, i, 0)
		if v <= d.params.Bottom {
			return Signal{true, Long, fmt.Sprintf("Z-Score(%d) hit oversold (%.2f <= %g) - Buy signal", d.params.Length, v, d.params.Bottom)}
		}
		if v >= d.params.Top {
			return Signal{true, Short, fmt.Sprintf("Z-Score(%d) hit overbought (%.2f >= %g) - Sell signal", d.params.Length, v, d.params.Top)}
		}
	}
	return Signal{}
}

// Series exposes the computed indicator values for result snapshots.
// Crossover kinds return fast and slow, threshold kinds return the
// oscillator as fast with a nil slow.
func (d *Detector) Series() (fast, slow []float64) {
	if d.level != nil {
		return d.level, nil
	}
	return d.fast, d.slow
}

func (d *Detector) checkCrossover(i int, label string) Signal {
	fastPrev := indicator.ValueOr(d.fast, i-1, 0)
	slowPrev := indicator.ValueOr(d.slow, i-1, 0)
	fastCur := indicator.ValueOr(d.fast, i, 0)
	slowCur := indicator.ValueOr(d.slow, i, 0)

	if fastPrev <= slowPrev && fastCur > slowCur {
		return Signal{true, Long, fmt.Sprintf("Golden Cross: %s%d crossed above %s%d", label, d.params.Fast, label, d.params.Slow)}
	}
	if fastPrev >= slowPrev && fastCur < slowCur {
		return Signal{true, Short, fmt.Sprintf("Death Cross: %s%d crossed below %s%d", label, d.params.Fast, label, d.params.Slow)}
	}
	return Signal{}
}
