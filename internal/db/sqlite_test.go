package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/backtester/internal/engine"
	"github.com/quantfold/backtester/internal/journal"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "backtester.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteCandleRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	candles := testCandles(t, 5)

	require.NoError(t, s.SaveCandles(ctx, candles))

	got, err := s.GetCandles(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[4].Timestamp.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, candles[0].Timestamp, got[0].Timestamp)
	assert.Equal(t, candles[0].Close, got[0].Close)
	assert.Equal(t, "binance", got[0].Source)

	// Upsert keeps a single row per timestamp.
	updated := candles[2]
	updated.Close = 200
	updated.High = 201
	require.NoError(t, s.SaveCandle(ctx, updated))

	count, err := s.GetCandleCount(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[4].Timestamp.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	latest, err := s.GetLatestCandle(ctx, "BTCUSDT", "1d")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, candles[4].Timestamp, latest.Timestamp)

	require.NoError(t, s.DeleteCandles(ctx, "BTCUSDT", "1d", candles[2].Timestamp))
	count, err = s.GetCandleCount(ctx, "BTCUSDT", "1d",
		candles[0].Timestamp, candles[4].Timestamp.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteLatestCandleEmpty(t *testing.T) {
	s := newTestSQLite(t)

	latest, err := s.GetLatestCandle(context.Background(), "BTCUSDT", "1d")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSQLiteRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	run := Run{
		Symbol:   "ETHUSDT",
		Interval: "4h",
		Config: engine.Config{
			InitialCapital: 5000,
			IndicatorType:  "rsi",
			Mode:           engine.ModeWaitForNext,
			EntryDelay:     1,
			ExitDelay:      1,
		},
		Result: engine.Result{
			Performance: engine.Performance{
				InitialCapital: 5000,
				FinalCapital:   5500,
				TotalTrades:    3,
			},
			EquityCurve: []float64{5000, 5200, 5500},
		},
	}

	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", got.Symbol)
	assert.Equal(t, "4h", got.Interval)
	assert.Equal(t, engine.ModeWaitForNext, got.Config.Mode)
	assert.Equal(t, 3, got.Result.Performance.TotalTrades)
	assert.Equal(t, []float64{5000, 5200, 5500}, got.Result.EquityCurve)

	_, err = s.GetRun(ctx, id+100)
	assert.Error(t, err)

	runs, err := s.GetRuns(ctx, "ETHUSDT", time.Unix(0, 0), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteGetLatestRun(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	latest, err := s.GetLatestRun(ctx, "BTCUSDT", "1d")
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, final := range []float64{10500, 11000} {
		_, err := s.SaveRun(ctx, Run{
			Symbol:    "BTCUSDT",
			Interval:  "1d",
			Result:    engine.Result{Performance: engine.Performance{FinalCapital: final}},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	latest, err = s.GetLatestRun(ctx, "BTCUSDT", "1d")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 11000.0, latest.Result.Performance.FinalCapital)
}

func TestSQLitePositionStore(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	pos, err := s.GetPosition(ctx, "ETHUSDT|4h")
	require.NoError(t, err)
	assert.Nil(t, pos)

	open := engine.OpenPosition{
		EntryDate:    time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		PositionType: "Short",
		EntryPrice:   2500,
		StopLoss:     2600,
		HasStopLoss:  true,
		Shares:       2,
	}
	require.NoError(t, s.SavePosition(ctx, "ETHUSDT|4h", open))

	// Upsert replaces the stored position.
	open.EntryPrice = 2450
	require.NoError(t, s.SavePosition(ctx, "ETHUSDT|4h", open))

	pos, err = s.GetPosition(ctx, "ETHUSDT|4h")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, "Short", pos.PositionType)
	assert.Equal(t, 2450.0, pos.EntryPrice)
	assert.True(t, pos.HasStopLoss)

	require.NoError(t, s.DeletePosition(ctx, "ETHUSDT|4h"))
	pos, err = s.GetPosition(ctx, "ETHUSDT|4h")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestSQLiteJournal(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.LogEvent(ctx, journal.Event{
		Time: now, Type: "run", Description: "backtest completed",
		Data: map[string]any{"trades": float64(4)},
	}))

	events, err := s.GetEvents(ctx, "run", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, now, events[0].Time)
	assert.Equal(t, "backtest completed", events[0].Description)
	assert.Equal(t, float64(4), events[0].Data["trades"])
}
