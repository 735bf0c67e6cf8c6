// Package fetcher downloads historical candles from the Binance public
// klines API, with chunked requests, retry with exponential backoff, and a
// short-lived in-memory cache.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/backtester/internal/candle"
)

// Fetcher loads candles for a symbol and timeframe over a half-open time
// range [from, to).
type Fetcher interface {
	Fetch(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]candle.Candle, error)
}

const (
	backoffFactor = 2.0
	jitterRange   = 0.1 // ±10% jitter
)

// Config tunes the Binance fetcher. Zero values take sensible defaults.
type Config struct {
	BaseURL         string
	ProxyURL        string
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ChunkDays       int
	RequestInterval time.Duration
	CacheTTL        time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.binance.com"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.ChunkDays <= 0 {
		c.ChunkDays = 14
	}
	if c.RequestInterval <= 0 {
		c.RequestInterval = 2 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// Binance fetches candles from the public klines endpoint.
type Binance struct {
	cfg    Config
	client *http.Client
	cache  *candleCache
}

// NewBinance builds a fetcher, wiring the optional proxy into the HTTP
// transport.
func NewBinance(cfg Config) (*Binance, error) {
	cfg.applyDefaults()

	transport := &http.Transport{}
	if cfg.ProxyURL != "" {
		proxyParsed, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyParsed)
		log.Printf("NewBinance | using proxy: %s", cfg.ProxyURL)
	}

	return &Binance{
		cfg: cfg,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		cache: newCandleCache(cfg.CacheTTL),
	}, nil
}

// Fetch downloads candles in chunks of at most ChunkDays each, spacing
// requests to stay under public rate limits, then sorts, deduplicates,
// and gap-fills the combined result. Repeated calls within the cache TTL
// are served from memory.
func (b *Binance) Fetch(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]candle.Candle, error) {
	if cached, ok := b.cache.get(symbol, timeframe, from, to); ok {
		log.Printf("Fetch | cache hit for %s %s", symbol, timeframe)
		return cached, nil
	}

	interval, err := apiInterval(timeframe)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(b.cfg.RequestInterval)
	defer ticker.Stop()

	var all []candle.Candle
	curr := from
	for curr.Before(to) {
		next := curr.Add(time.Duration(b.cfg.ChunkDays) * 24 * time.Hour)
		if next.After(to) {
			next = to
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		chunkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		chunk, err := b.downloadChunk(chunkCtx, symbol, timeframe, interval, curr, next)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("error fetching candles from %s to %s: %w",
				curr.Format(time.RFC3339), next.Format(time.RFC3339), err)
		}

		log.Printf("Fetch | downloaded %d candles for %s from %s to %s",
			len(chunk), symbol, curr.Format("2006-01-02"), next.Format("2006-01-02"))
		all = append(all, chunk...)
		curr = next
	}

	if len(all) == 0 {
		log.Printf("Fetch | no candles available for %s from %s to %s",
			symbol, from.Format(time.RFC3339), to.Format(time.RFC3339))
		return nil, nil
	}

	processed := candle.Process(all, symbol, timeframe, from, to)
	b.cache.put(symbol, timeframe, from, to, processed)
	return processed, nil
}

func (b *Binance) downloadChunk(ctx context.Context, symbol, timeframe, interval string, start, end time.Time) ([]candle.Candle, error) {
	apiSymbol := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
	startMs := start.UnixNano() / int64(time.Millisecond)
	endMs := end.UnixNano() / int64(time.Millisecond)

	apiURL := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=1000",
		b.cfg.BaseURL, apiSymbol, interval, startMs, endMs)

	var lastErr error
	for attempt := 0; attempt < b.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		log.Printf("downloadChunk | attempt %d/%d for %s", attempt+1, b.cfg.MaxRetries, symbol)

		body, retryable, err := b.doRequest(req)
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			log.Printf("downloadChunk | %v", lastErr)
			if retryable && attempt < b.cfg.MaxRetries-1 {
				if err := b.retryWait(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue
		}

		var rawCandles [][]any
		if err := json.Unmarshal(body, &rawCandles); err != nil {
			lastErr = fmt.Errorf("JSON decode error on attempt %d: %w", attempt+1, err)
			log.Printf("downloadChunk | %v", lastErr)
			if attempt < b.cfg.MaxRetries-1 {
				if err := b.retryWait(ctx, attempt); err != nil {
					return nil, err
				}
			}
			continue
		}

		candles := parseKlines(rawCandles, symbol, timeframe)
		log.Printf("downloadChunk | downloaded %d candles for %s on attempt %d", len(candles), symbol, attempt+1)
		return candles, nil
	}

	return nil, fmt.Errorf("failed to download candles after %d attempts, last error: %w", b.cfg.MaxRetries, lastErr)
}

func (b *Binance) doRequest(req *http.Request) (body []byte, retryable bool, err error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, isRetryableHTTPStatus(resp.StatusCode),
			fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(msg))
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("error reading response body: %w", err)
	}
	return body, false, nil
}

func (b *Binance) retryWait(ctx context.Context, attempt int) error {
	delay := retryDelay(attempt, b.cfg.BaseDelay, b.cfg.MaxDelay)
	log.Printf("downloadChunk | retrying in %v...", delay)
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
	case <-time.After(delay):
		return nil
	}
}

// parseKlines converts the klines array-of-arrays payload, tolerating both
// string and numeric fields and skipping malformed rows.
func parseKlines(rawCandles [][]any, symbol, timeframe string) []candle.Candle {
	candles := make([]candle.Candle, 0, len(rawCandles))
	for _, raw := range rawCandles {
		if len(raw) < 6 {
			continue
		}

		var timestamp int64
		switch v := raw[0].(type) {
		case float64:
			timestamp = int64(v)
		case string:
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				log.Printf("parseKlines | error parsing timestamp string: %v", err)
				continue
			}
			timestamp = parsed
		default:
			log.Printf("parseKlines | unexpected timestamp type: %T", v)
			continue
		}

		parseNum := func(val any) float64 {
			switch n := val.(type) {
			case float64:
				return n
			case string:
				f, err := strconv.ParseFloat(n, 64)
				if err != nil {
					log.Printf("parseKlines | error parsing float string: %v", err)
					return 0
				}
				return f
			default:
				log.Printf("parseKlines | unexpected number type: %T", n)
				return 0
			}
		}

		candles = append(candles, candle.Candle{
			Timestamp: time.Unix(timestamp/1000, 0).UTC(),
			Open:      parseNum(raw[1]),
			High:      parseNum(raw[2]),
			Low:       parseNum(raw[3]),
			Close:     parseNum(raw[4]),
			Volume:    parseNum(raw[5]),
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    "binance",
		})
	}
	return candles
}

func apiInterval(timeframe string) (string, error) {
	switch timeframe {
	case "1m", "5m", "15m", "30m", "1h", "4h", "1d":
		return timeframe, nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
}

// retryDelay applies exponential backoff capped at maxDelay, with jitter to
// avoid thundering herds.
func retryDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := float64(baseDelay) * math.Pow(backoffFactor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	jitter := delay * jitterRange * (2*rand.Float64() - 1)
	delay += jitter
	if delay < 0 {
		delay = float64(baseDelay)
	}
	return time.Duration(delay)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
