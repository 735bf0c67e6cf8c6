package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/backtester/internal/strategy"
)

func TestConfigValidateDefaults(t *testing.T) {
	var cfg Config
	cfg.Validate()

	assert.Equal(t, 10000.0, cfg.InitialCapital)
	assert.Equal(t, "1d", cfg.Interval)
	assert.Equal(t, ModeReversal, cfg.Mode)
	assert.Equal(t, "ema", cfg.IndicatorType)
	assert.Equal(t, strategy.Params{Fast: 12, Slow: 26}, cfg.Params)
	assert.Equal(t, 1, cfg.EntryDelay)
	assert.Equal(t, 1, cfg.ExitDelay)
	assert.Equal(t, strategy.DefaultStopLossLookback, cfg.StopLookback)
}

func TestConfigValidateSwapsFastSlow(t *testing.T) {
	cfg := Config{IndicatorType: "ema", Params: strategy.Params{Fast: 26, Slow: 12}}
	cfg.Validate()
	assert.Equal(t, 12, cfg.Params.Fast)
	assert.Equal(t, 26, cfg.Params.Slow)
}

func TestConfigValidateClampsDelays(t *testing.T) {
	cfg := Config{EntryDelay: 0, ExitDelay: 10}
	cfg.Validate()
	assert.Equal(t, 1, cfg.EntryDelay)
	assert.Equal(t, 5, cfg.ExitDelay)

	cfg = Config{EntryDelay: -3, ExitDelay: 3}
	cfg.Validate()
	assert.Equal(t, 1, cfg.EntryDelay)
	assert.Equal(t, 3, cfg.ExitDelay)
}

func TestConfigValidateUnknownIndicatorFallsBack(t *testing.T) {
	cfg := Config{IndicatorType: "supertrend", Params: strategy.Params{Length: 99}}
	cfg.Validate()
	assert.Equal(t, "ema", cfg.IndicatorType)
	assert.Equal(t, strategy.Params{Fast: 12, Slow: 26}, cfg.Params)
}

func TestConfigValidateOscillatorDefaults(t *testing.T) {
	cfg := Config{IndicatorType: "rsi"}
	cfg.Validate()
	assert.Equal(t, strategy.Params{Length: 14, Top: 70, Bottom: 30}, cfg.Params)

	cfg = Config{IndicatorType: "zscore", Params: strategy.Params{Length: 10}}
	cfg.Validate()
	assert.Equal(t, strategy.Params{Length: 10, Top: 2, Bottom: -2}, cfg.Params)
}

func TestConfigValidateUnknownMode(t *testing.T) {
	cfg := Config{Mode: "yolo"}
	cfg.Validate()
	assert.Equal(t, ModeReversal, cfg.Mode)
}
