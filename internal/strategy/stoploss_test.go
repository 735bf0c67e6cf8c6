package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/backtester/internal/candle"
)

func rangeCandles(lows, highs []float64) []candle.Candle {
	candles := make([]candle.Candle, len(lows))
	for i := range lows {
		candles[i] = candle.Candle{Low: lows[i], High: highs[i], Open: lows[i], Close: highs[i]}
	}
	return candles
}

func TestSupportResistance(t *testing.T) {
	candles := rangeCandles(
		[]float64{10, 8, 9, 7, 11},
		[]float64{12, 13, 15, 14, 16},
	)

	t.Run("Full lookback window", func(t *testing.T) {
		support, resistance, ok := SupportResistance(candles, 4, 3)
		assert.True(t, ok)
		assert.Equal(t, 7.0, support)
		assert.Equal(t, 16.0, resistance)
	})

	t.Run("Window shrinks near series start", func(t *testing.T) {
		support, resistance, ok := SupportResistance(candles, 2, 50)
		assert.True(t, ok)
		assert.Equal(t, 8.0, support)
		assert.Equal(t, 15.0, resistance)
	})

	t.Run("No levels at first bar", func(t *testing.T) {
		_, _, ok := SupportResistance(candles, 0, 50)
		assert.False(t, ok)
	})

	t.Run("Index past series", func(t *testing.T) {
		_, _, ok := SupportResistance(candles, 10, 3)
		assert.False(t, ok)
	})
}

func TestStopLoss(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		entry     float64
		support   float64
		resist    float64
		hasLevels bool
		expected  float64
	}{
		{"Long uses support below entry", Long, 100, 95, 110, true, 95},
		{"Long falls back to 5 percent when support above entry", Long, 100, 105, 110, true, 95},
		{"Long falls back without levels", Long, 100, 0, 0, false, 95},
		{"Short uses resistance above entry", Short, 100, 90, 108, true, 108},
		{"Short falls back to 5 percent when resistance below entry", Short, 100, 90, 99, true, 105},
		{"Short falls back without levels", Short, 100, 0, 0, false, 105},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StopLoss(tt.direction, tt.entry, tt.support, tt.resist, tt.hasLevels)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestCheckStopLoss(t *testing.T) {
	t.Run("Long triggers on low", func(t *testing.T) {
		hit, reason := CheckStopLoss(Long, 95, 102, 94.5)
		assert.True(t, hit)
		assert.Equal(t, "Stop Loss Hit - Low $94.50 touched stop loss $95.00", reason)
	})

	t.Run("Long holds above stop", func(t *testing.T) {
		hit, _ := CheckStopLoss(Long, 95, 102, 96)
		assert.False(t, hit)
	})

	t.Run("Short triggers on high", func(t *testing.T) {
		hit, reason := CheckStopLoss(Short, 105, 106, 100)
		assert.True(t, hit)
		assert.Equal(t, "Stop Loss Hit - High $106.00 touched stop loss $105.00", reason)
	})

	t.Run("Short holds below stop", func(t *testing.T) {
		hit, _ := CheckStopLoss(Short, 105, 104, 100)
		assert.False(t, hit)
	})
}
