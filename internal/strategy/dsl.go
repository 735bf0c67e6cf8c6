package strategy

import (
	"log"
	"strings"

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/indicator"
)

// IndicatorSpec declares one indicator inside a saved strategy, keyed
// by its alias in the strategy's Indicators map.
type IndicatorSpec struct {
	Type   string `json:"type" yaml:"type"`
	Length int    `json:"length" yaml:"length"`
}

// DSL is the saved-strategy form: a set of aliased indicators plus entry
// and exit condition trees over those aliases and the price fields.
type DSL struct {
	Indicators map[string]IndicatorSpec `json:"indicators" yaml:"indicators"`
	Entry      *Condition               `json:"entry" yaml:"entry"`
	Exit       *Condition               `json:"exit,omitempty" yaml:"exit,omitempty"`
}

// Enabled reports whether the strategy carries enough of a definition to
// drive a run: at least one indicator and at least one condition.
func (d *DSL) Enabled() bool {
	return d != nil && len(d.Indicators) > 0 && (d.Entry != nil || d.Exit != nil)
}

// NormalizeIndicatorType folds spelling variations such as "EMA", "z-score",
// and "Roll Std" onto the canonical type keys.
func NormalizeIndicatorType(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// BuildResolver computes every declared indicator over candles and returns
// the resolver the condition trees evaluate against. Unknown indicator
// types are logged and skipped; their aliases then resolve to NaN.
func (d *DSL) BuildResolver(candles []candle.Candle) *Resolver {
	series := make(map[string][]float64, len(d.Indicators))
	closes := candle.Closes(candles)

	for alias, spec := range d.Indicators {
		indType := NormalizeIndicatorType(spec.Type)
		length := spec.Length
		if length <= 0 {
			length = 20
		}

		switch indType {
		case "ema":
			series[alias] = indicator.CalculateEMA(closes, length)
		case "ma", "sma":
			series[alias] = indicator.CalculateSMA(closes, length)
		case "dema":
			series[alias] = indicator.CalculateDEMA(closes, length)
		case "rsi":
			series[alias] = indicator.CalculateRSI(closes, length)
		case "cci":
			series[alias] = indicator.CalculateCCI(candles, length)
		case "zscore":
			series[alias] = indicator.CalculateZScore(closes, length)
		case "roll_std":
			series[alias] = indicator.CalculateRollStd(closes, length)
		case "roll_median":
			series[alias] = indicator.CalculateRollMedian(closes, length)
		case "roll_percentile":
			series[alias] = indicator.CalculateRollPercentile(closes, length)
		default:
			log.Printf("BuildResolver | unknown indicator type %q for alias %q, skipping", spec.Type, alias)
		}
	}
	return &Resolver{Candles: candles, Series: series}
}
