package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/engine"
	"github.com/quantfold/backtester/internal/journal"
)

// Compile-time interface check.
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage is an in-memory implementation of Storage, intended for tests
// and one-off runs that do not need persistence.
type MemoryStorage struct {
	mu        sync.RWMutex
	candles   map[string]candle.Candle
	runs      map[int64]Run
	nextRun   int64
	positions map[string]engine.OpenPosition
	events    []journal.Event
}

// NewMemory creates a new in-memory storage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		candles:   make(map[string]candle.Candle),
		runs:      make(map[int64]Run),
		nextRun:   1,
		positions: make(map[string]engine.OpenPosition),
	}
}

func candleKey(symbol, timeframe string, ts time.Time) string {
	return strings.ToUpper(symbol) + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (m *MemoryStorage) GetDB() *sql.DB { return nil }

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) SaveCandle(ctx context.Context, c candle.Candle) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid candle for %s %s at %s: %w", c.Symbol, c.Timeframe, c.Timestamp, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp)] = c
	return nil
}

func (m *MemoryStorage) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, c.Symbol, c.Timeframe, c.Timestamp, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp)] = c
	}
	return nil
}

func (m *MemoryStorage) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []candle.Candle
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) GetLatestCandle(ctx context.Context, symbol, timeframe string) (*candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *candle.Candle
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if latest == nil || c.Timestamp.After(latest.Timestamp) {
			cc := c
			latest = &cc
		}
	}
	return latest, nil
}

func (m *MemoryStorage) GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error) {
	candles, err := m.GetCandles(ctx, symbol, timeframe, start, end)
	if err != nil {
		return 0, err
	}
	return len(candles), nil
}

func (m *MemoryStorage) DeleteCandles(ctx context.Context, symbol, timeframe string, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, c := range m.candles {
		if strings.EqualFold(c.Symbol, symbol) && c.Timeframe == timeframe && c.Timestamp.Before(before) {
			delete(m.candles, k)
		}
	}
	return nil
}

func (m *MemoryStorage) SaveRun(ctx context.Context, run Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.ID = m.nextRun
	m.nextRun++
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs[run.ID] = run
	return run.ID, nil
}

func (m *MemoryStorage) GetRun(ctx context.Context, id int64) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %d not found", id)
	}
	return &run, nil
}

func (m *MemoryStorage) GetRuns(ctx context.Context, symbol string, start, end time.Time) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Run
	for _, run := range m.runs {
		if symbol != "" && !strings.EqualFold(run.Symbol, symbol) {
			continue
		}
		if run.CreatedAt.Before(start) || run.CreatedAt.After(end) {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) GetLatestRun(ctx context.Context, symbol, interval string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Run
	for _, run := range m.runs {
		if !strings.EqualFold(run.Symbol, symbol) || run.Interval != interval {
			continue
		}
		if latest == nil || run.CreatedAt.After(latest.CreatedAt) ||
			(run.CreatedAt.Equal(latest.CreatedAt) && run.ID > latest.ID) {
			rr := run
			latest = &rr
		}
	}
	return latest, nil
}

func (m *MemoryStorage) SavePosition(ctx context.Context, key string, pos engine.OpenPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[key] = pos
	return nil
}

func (m *MemoryStorage) GetPosition(ctx context.Context, key string) (*engine.OpenPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[key]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (m *MemoryStorage) DeletePosition(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, key)
	return nil
}

func (m *MemoryStorage) DeleteRuns(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, run := range m.runs {
		if run.CreatedAt.Before(before) {
			delete(m.runs, id)
		}
	}
	return nil
}

func (m *MemoryStorage) LogEvent(ctx context.Context, event journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStorage) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]journal.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []journal.Event
	for _, e := range m.events {
		if eventType != "" && e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
