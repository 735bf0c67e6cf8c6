package engine

import (
	"log"

	"github.com/quantfold/backtester/internal/strategy"
)

// Mode selects the entry policy applied when a signal fires.
type Mode string

const (
	// ModeReversal always enters on a signal, including the bar a position
	// was just closed on.
	ModeReversal Mode = "reversal"
	// ModeWaitForNext skips the signal that caused the exit and waits for a
	// fresh one.
	ModeWaitForNext Mode = "wait_for_next"
	// ModeLongOnly enters only on Long signals.
	ModeLongOnly Mode = "long_only"
	// ModeShortOnly enters only on Short signals.
	ModeShortOnly Mode = "short_only"
)

const (
	minDelay = 1
	maxDelay = 5
)

// Config is the full set of knobs for one backtest run.
type Config struct {
	InitialCapital float64         `json:"initial_capital" yaml:"initial_capital"`
	EnableShort    bool            `json:"enable_short" yaml:"enable_short"`
	Interval       string          `json:"interval" yaml:"interval"`
	Mode           Mode            `json:"mode" yaml:"mode"`
	IndicatorType  string          `json:"indicator_type" yaml:"indicator_type"`
	Params         strategy.Params `json:"params" yaml:"params"`
	EntryDelay     int             `json:"entry_delay" yaml:"entry_delay"`
	ExitDelay      int             `json:"exit_delay" yaml:"exit_delay"`
	UseStopLoss    bool            `json:"use_stop_loss" yaml:"use_stop_loss"`
	StopLookback   int             `json:"stop_lookback" yaml:"stop_lookback"`
	DSL            *strategy.DSL   `json:"dsl,omitempty" yaml:"dsl,omitempty"`
}

// Validate fills defaults and normalizes out-of-range values in place.
// Unknown indicator types fall back to the EMA crossover, swapped
// fast/slow periods are reordered, and delays are clamped to [1, 5].
func (c *Config) Validate() {
	if c.InitialCapital <= 0 {
		c.InitialCapital = 10000
	}
	if c.Interval == "" {
		c.Interval = "1d"
	}
	switch c.Mode {
	case ModeReversal, ModeWaitForNext, ModeLongOnly, ModeShortOnly:
	default:
		if c.Mode != "" {
			log.Printf("Validate | unknown strategy mode %q, defaulting to reversal", c.Mode)
		}
		c.Mode = ModeReversal
	}

	switch c.IndicatorType {
	case "ema", "ma", "rsi", "cci", "zscore":
	default:
		if c.IndicatorType != "" {
			log.Printf("Validate | unknown indicator type %q, defaulting to EMA", c.IndicatorType)
		}
		c.IndicatorType = "ema"
		c.Params = strategy.Params{}
	}

	defaults := strategy.DefaultParams(c.IndicatorType)
	switch c.IndicatorType {
	case "ema", "ma":
		if c.Params.Fast <= 0 {
			c.Params.Fast = defaults.Fast
		}
		if c.Params.Slow <= 0 {
			c.Params.Slow = defaults.Slow
		}
		if c.Params.Fast >= c.Params.Slow {
			c.Params.Fast, c.Params.Slow = c.Params.Slow, c.Params.Fast
		}
	default:
		if c.Params.Length <= 0 {
			c.Params.Length = defaults.Length
		}
		if c.Params.Top == 0 && c.Params.Bottom == 0 {
			c.Params.Top = defaults.Top
			c.Params.Bottom = defaults.Bottom
		}
	}

	c.EntryDelay = clampDelay(c.EntryDelay)
	c.ExitDelay = clampDelay(c.ExitDelay)

	if c.StopLookback <= 0 {
		c.StopLookback = strategy.DefaultStopLossLookback
	}
}

func clampDelay(d int) int {
	if d < minDelay {
		return minDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}
