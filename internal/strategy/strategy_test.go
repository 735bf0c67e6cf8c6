package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/backtester/internal/candle"
)

func candlesFromCloses(closes []float64) []candle.Candle {
	candles := make([]candle.Candle, len(closes))
	for i, c := range closes {
		candles[i] = candle.Candle{Open: c, High: c, Low: c, Close: c}
	}
	return candles
}

func TestDetectorEMACrossover(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 102, 99, 105, 103})
	d := NewDetector("ema", Params{Fast: 2, Slow: 3}, candles)

	tests := []struct {
		idx       int
		fired     bool
		direction Direction
		reason    string
	}{
		{0, false, "", ""},
		{1, true, Long, "Golden Cross: EMA2 crossed above EMA3"},
		{2, true, Short, "Death Cross: EMA2 crossed below EMA3"},
		{3, true, Long, "Golden Cross: EMA2 crossed above EMA3"},
		{4, false, "", ""},
	}

	for _, tt := range tests {
		sig := d.Check(tt.idx)
		assert.Equal(t, tt.fired, sig.Fired, "fired mismatch at index %d", tt.idx)
		assert.Equal(t, tt.direction, sig.Direction, "direction mismatch at index %d", tt.idx)
		assert.Equal(t, tt.reason, sig.Reason, "reason mismatch at index %d", tt.idx)
	}
}

func TestDetectorMACrossoverLabels(t *testing.T) {
	candles := candlesFromCloses([]float64{10, 10, 10, 10, 20, 20})
	d := NewDetector("ma", Params{Fast: 2, Slow: 4}, candles)

	sig := d.Check(4)
	assert.True(t, sig.Fired)
	assert.Equal(t, Long, sig.Direction)
	assert.Equal(t, "Golden Cross: MA2 crossed above MA4", sig.Reason)
}

func TestDetectorRSIThresholds(t *testing.T) {
	t.Run("Overbought fires short", func(t *testing.T) {
		candles := candlesFromCloses([]float64{10, 11, 12, 13, 14, 15})
		d := NewDetector("rsi", Params{Length: 3, Top: 70, Bottom: 30}, candles)

		sig := d.Check(4)
		assert.True(t, sig.Fired)
		assert.Equal(t, Short, sig.Direction)
		assert.Equal(t, "RSI(3) hit overbought (100.0 >= 70) - Sell signal", sig.Reason)
	})

	t.Run("Oversold fires long", func(t *testing.T) {
		candles := candlesFromCloses([]float64{15, 14, 13, 12, 11, 10})
		d := NewDetector("rsi", Params{Length: 3, Top: 70, Bottom: 30}, candles)

		sig := d.Check(4)
		assert.True(t, sig.Fired)
		assert.Equal(t, Long, sig.Direction)
		assert.Equal(t, "RSI(3) hit oversold (0.0 <= 30) - Buy signal", sig.Reason)
	})

	t.Run("Warmup defaults to neutral", func(t *testing.T) {
		candles := candlesFromCloses([]float64{10, 11, 12, 13, 14, 15})
		d := NewDetector("rsi", Params{Length: 3, Top: 70, Bottom: 30}, candles)

		// RSI is still NaN at index 2, which resolves to the neutral 50.
		sig := d.Check(2)
		assert.False(t, sig.Fired)
	})
}

func TestDetectorZScoreReasonFormat(t *testing.T) {
	candles := candlesFromCloses([]float64{10, 10, 10, 10, 10, 100})
	d := NewDetector("zscore", Params{Length: 3, Top: 1, Bottom: -1}, candles)

	sig := d.Check(5)
	assert.True(t, sig.Fired)
	assert.Equal(t, Short, sig.Direction)
	assert.Contains(t, sig.Reason, "Z-Score(3) hit overbought")
	assert.Contains(t, sig.Reason, "Sell signal")
}

func TestDetectorUnknownKindNeverFires(t *testing.T) {
	candles := candlesFromCloses([]float64{1, 2, 3, 4, 5})
	d := NewDetector("bollinger", Params{Fast: 2, Slow: 3}, candles)

	for i := range candles {
		assert.False(t, d.Check(i).Fired, "unexpected signal at index %d", i)
	}
}

func TestDefaultParams(t *testing.T) {
	assert.Equal(t, Params{Length: 14, Top: 70, Bottom: 30}, DefaultParams("rsi"))
	assert.Equal(t, Params{Length: 20, Top: 100, Bottom: -100}, DefaultParams("cci"))
	assert.Equal(t, Params{Length: 20, Top: 2, Bottom: -2}, DefaultParams("zscore"))
	assert.Equal(t, Params{Fast: 12, Slow: 26}, DefaultParams("ema"))
	assert.Equal(t, Params{Fast: 12, Slow: 26}, DefaultParams("ma"))
}
