package candle

import (
	"context"
	"time"
)

// Storage is the interface for candle persistence.
type Storage interface {
	SaveCandle(ctx context.Context, c Candle) error
	SaveCandles(ctx context.Context, candles []Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error)
	GetLatestCandle(ctx context.Context, symbol, timeframe string) (*Candle, error)
	GetCandleCount(ctx context.Context, symbol, timeframe string, start, end time.Time) (int, error)
	DeleteCandles(ctx context.Context, symbol, timeframe string, before time.Time) error
}
