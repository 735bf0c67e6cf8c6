package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var klinesBody = `[
	[1704067200000, "100", "110", "90", "105", "12.5", 1704070799999],
	[1704070800000, 101, 111, 91, 106, 13.0, 1704074399999]
]`

func testFetcher(t *testing.T, handler http.Handler) (*Binance, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f, err := NewBinance(Config{
		BaseURL:         server.URL,
		MaxRetries:      3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		RequestInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return f, server
}

func TestFetchParsesKlines(t *testing.T) {
	var requests atomic.Int64
	f, _ := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		fmt.Fprint(w, klinesBody)
	}))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)

	candles, err := f.Fetch(context.Background(), "BTC-USDT", "1h", from, to)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, from, candles[0].Timestamp)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 105.0, candles[0].Close)
	assert.Equal(t, 12.5, candles[0].Volume)
	assert.Equal(t, "binance", candles[0].Source)
	assert.Equal(t, 106.0, candles[1].Close)

	// Second identical fetch is served from the cache.
	_, err = f.Fetch(context.Background(), "BTC-USDT", "1h", from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load())
}

func TestFetchRetriesOnServerError(t *testing.T) {
	var requests atomic.Int64
	f, _ := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, klinesBody)
	}))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles, err := f.Fetch(context.Background(), "BTCUSDT", "1h", from, from.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, candles, 2)
	assert.Equal(t, int64(2), requests.Load())
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var requests atomic.Int64
	f, _ := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.Fetch(context.Background(), "BTCUSDT", "1h", from, from.Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int64(3), requests.Load())
}

func TestFetchNoDataReturnsEmpty(t *testing.T) {
	f, _ := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles, err := f.Fetch(context.Background(), "BTCUSDT", "1h", from, from.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestFetchUnsupportedTimeframe(t *testing.T) {
	f, _ := testFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, klinesBody)
	}))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.Fetch(context.Background(), "BTCUSDT", "7m", from, from.Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported timeframe")
}

func TestCandleCacheExpiry(t *testing.T) {
	cache := newCandleCache(time.Millisecond)
	from := time.Now()
	to := from.Add(time.Hour)

	cache.put("BTCUSDT", "1h", from, to, nil)
	_, ok := cache.get("BTCUSDT", "1h", from, to)
	assert.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	_, ok = cache.get("BTCUSDT", "1h", from, to)
	assert.False(t, ok)
}
