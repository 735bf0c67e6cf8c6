package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/engine"
	"github.com/quantfold/backtester/internal/journal"
)

func testCandles(t *testing.T, n int) []candle.Candle {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, n)
	for i := range out {
		price := 100.0 + float64(i)
		out[i] = candle.Candle{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
			Symbol:    "BTCUSDT",
			Timeframe: "1d",
			Source:    "binance",
		}
	}
	return out
}

func TestMemoryCandleRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	candles := testCandles(t, 5)

	require.NoError(t, m.SaveCandles(ctx, candles))

	got, err := m.GetCandles(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[4].Timestamp.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp), "candles must be sorted")
	}
	assert.Equal(t, candles[0], got[0])
}

func TestMemoryCandleRangeExclusiveEnd(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	candles := testCandles(t, 5)
	require.NoError(t, m.SaveCandles(ctx, candles))

	// End bound is exclusive.
	got, err := m.GetCandles(ctx, "btcusdt", "1d", candles[1].Timestamp, candles[3].Timestamp)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, candles[1].Timestamp, got[0].Timestamp)
	assert.Equal(t, candles[2].Timestamp, got[1].Timestamp)
}

func TestMemorySaveCandleUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	candles := testCandles(t, 1)
	require.NoError(t, m.SaveCandle(ctx, candles[0]))

	updated := candles[0]
	updated.Close = 105
	updated.High = 106
	require.NoError(t, m.SaveCandle(ctx, updated))

	count, err := m.GetCandleCount(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[0].Timestamp.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	latest, err := m.GetLatestCandle(ctx, "BTCUSDT", "1d")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 105.0, latest.Close)
}

func TestMemorySaveCandleInvalid(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	bad := testCandles(t, 1)[0]
	bad.High = bad.Low - 1

	err := m.SaveCandle(ctx, bad)
	require.Error(t, err)

	err = m.SaveCandles(ctx, []candle.Candle{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 0")
}

func TestMemoryDeleteCandles(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	candles := testCandles(t, 5)
	require.NoError(t, m.SaveCandles(ctx, candles))

	require.NoError(t, m.DeleteCandles(ctx, "BTCUSDT", "1d", candles[2].Timestamp))

	count, err := m.GetCandleCount(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[4].Timestamp.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryRunStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	run := Run{
		Symbol:   "BTCUSDT",
		Interval: "1d",
		Config: engine.Config{
			InitialCapital: 10000,
			IndicatorType:  "ema",
			Mode:           engine.ModeReversal,
		},
		Result: engine.Result{
			Performance: engine.Performance{TotalTrades: 2, FinalCapital: 11000},
			EquityCurve: []float64{10000, 10500, 11000},
		},
	}

	id, err := m.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id2, err := m.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)

	got, err := m.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, 2, got.Result.Performance.TotalTrades)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = m.GetRun(ctx, 99)
	assert.Error(t, err)

	runs, err := m.GetRuns(ctx, "BTCUSDT", time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = m.GetRuns(ctx, "ETHUSDT", time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestMemoryGetLatestRun(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	latest, err := m.GetLatestRun(ctx, "BTCUSDT", "1d")
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, final := range []float64{10500, 11000} {
		_, err := m.SaveRun(ctx, Run{
			Symbol:    "BTCUSDT",
			Interval:  "1d",
			Result:    engine.Result{Performance: engine.Performance{FinalCapital: final}},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	latest, err = m.GetLatestRun(ctx, "btcusdt", "1d")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 11000.0, latest.Result.Performance.FinalCapital)

	latest, err = m.GetLatestRun(ctx, "BTCUSDT", "4h")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemoryPositionStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	pos, err := m.GetPosition(ctx, "BTCUSDT|1d")
	require.NoError(t, err)
	assert.Nil(t, pos)

	open := engine.OpenPosition{
		EntryDate:    time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		PositionType: "Long",
		EntryPrice:   105,
		Shares:       95.238,
	}
	require.NoError(t, m.SavePosition(ctx, "BTCUSDT|1d", open))

	pos, err = m.GetPosition(ctx, "BTCUSDT|1d")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, "Long", pos.PositionType)
	assert.Equal(t, 105.0, pos.EntryPrice)

	require.NoError(t, m.DeletePosition(ctx, "BTCUSDT|1d"))
	pos, err = m.GetPosition(ctx, "BTCUSDT|1d")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.LogEvent(ctx, journal.Event{
		Time: now, Type: "run", Description: "backtest started",
		Data: map[string]any{"symbol": "BTCUSDT"},
	}))
	require.NoError(t, m.LogEvent(ctx, journal.Event{
		Time: now.Add(time.Minute), Type: "trade", Description: "position opened",
	}))

	events, err := m.GetEvents(ctx, "run", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "backtest started", events[0].Description)
	assert.Equal(t, "BTCUSDT", events[0].Data["symbol"])

	// Empty type matches everything.
	events, err = m.GetEvents(ctx, "", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
