package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/backtester/internal/engine"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "backtest", cfg.Mode)
	assert.Equal(t, "BTCUSDT", cfg.Asset)
	assert.Equal(t, "1d", cfg.Interval)
	assert.Equal(t, 10000.0, cfg.InitialCapital)
	assert.Equal(t, "ema", cfg.IndicatorType)
	assert.True(t, cfg.EnableShort)
	assert.Equal(t, "memory", cfg.DB)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-mode", "sweep",
		"-asset", "ETHUSDT",
		"-interval", "4h",
		"-from", "2024-01-01",
		"-to", "2024-06-01",
		"-indicator", "rsi",
		"-fasts", "5,10, 20",
		"-slows", "20,50",
		"-tops", "70,75.5",
		"-bottoms", "25,30",
		"-position-type", "long_only",
	})
	require.NoError(t, err)

	assert.Equal(t, "sweep", cfg.Mode)
	assert.Equal(t, "ETHUSDT", cfg.Asset)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.From)
	assert.Equal(t, []int{5, 10, 20}, cfg.Fasts)
	assert.Equal(t, []int{20, 50}, cfg.Slows)
	assert.Equal(t, []float64{70, 75.5}, cfg.Tops)
	assert.Equal(t, []float64{25, 30}, cfg.Bottoms)

	opts := cfg.SweepOptions()
	assert.Equal(t, "long_only", opts.PositionType)
}

func TestLoadBadGrid(t *testing.T) {
	_, err := Load([]string{"-fasts", "5,x"})
	require.Error(t, err)
}

func TestLoadBadDate(t *testing.T) {
	_, err := Load([]string{"-from", "01/02/2024"})
	require.Error(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
mode: backtest
asset: SOLUSDT
interval: 1h
initial_capital: 2500
strategy_mode: wait_for_next
indicator: cci
length: 20
top: 100
bottom: -100
use_stop_loss: true
db: sqlite
sqlite_path: data/backtester.db
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load([]string{"-config", path})
	require.NoError(t, err)

	assert.Equal(t, "SOLUSDT", cfg.Asset)
	assert.Equal(t, 2500.0, cfg.InitialCapital)
	assert.Equal(t, "cci", cfg.IndicatorType)
	assert.Equal(t, 100.0, cfg.Top)
	assert.True(t, cfg.UseStopLoss)
	assert.Equal(t, "sqlite", cfg.DB)
}

func TestEngineConfig(t *testing.T) {
	cfg, err := Load([]string{
		"-indicator", "ema", "-fast", "12", "-slow", "26",
		"-strategy-mode", "reversal", "-stop-loss",
	})
	require.NoError(t, err)

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, engine.ModeReversal, ec.Mode)
	assert.Equal(t, 12, ec.Params.Fast)
	assert.Equal(t, 26, ec.Params.Slow)
	assert.True(t, ec.UseStopLoss)
	assert.Nil(t, ec.DSL)
}

func TestEngineConfigDSLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.json")
	data := `{
		"indicators": {"fast": {"type": "ema", "length": 5}, "slow": {"type": "ema", "length": 20}},
		"entry": {"op": "crossesAbove", "left": "fast", "right": "slow"},
		"exit": {"op": "crossesBelow", "left": "fast", "right": "slow"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load([]string{"-dsl", path})
	require.NoError(t, err)

	ec, err := cfg.EngineConfig()
	require.NoError(t, err)
	require.NotNil(t, ec.DSL)
	assert.Equal(t, "ema", ec.DSL.Indicators["fast"].Type)
	assert.Equal(t, 5, ec.DSL.Indicators["fast"].Length)
	require.NotNil(t, ec.DSL.Entry)
	assert.Equal(t, "crossesAbove", ec.DSL.Entry.Op)
}

func TestEngineConfigMissingDSLFile(t *testing.T) {
	cfg, err := Load([]string{"-dsl", filepath.Join(t.TempDir(), "nope.json")})
	require.NoError(t, err)

	_, err = cfg.EngineConfig()
	require.Error(t, err)
}
