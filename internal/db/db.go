// Package db
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/engine"
	"github.com/quantfold/backtester/internal/journal"
)

// Run is a completed backtest run together with the configuration that
// produced it.
type Run struct {
	ID        int64         `json:"id"`
	Symbol    string        `json:"symbol"`
	Interval  string        `json:"interval"`
	Config    engine.Config `json:"config"`
	Result    engine.Result `json:"result"`
	CreatedAt time.Time     `json:"created_at"`
}

// RunStore is the interface for backtest run persistence.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
	GetLatestRun(ctx context.Context, symbol, interval string) (*Run, error)
	GetRuns(ctx context.Context, symbol string, start, end time.Time) ([]Run, error)
	DeleteRuns(ctx context.Context, before time.Time) error
}

// PositionStore is a key-value store for positions left open at the end of a
// run. GetPosition returns (nil, nil) when the key has no position.
type PositionStore interface {
	SavePosition(ctx context.Context, key string, pos engine.OpenPosition) error
	GetPosition(ctx context.Context, key string) (*engine.OpenPosition, error)
	DeletePosition(ctx context.Context, key string) error
}

// Storage is the interface for all persistent storage.
type Storage interface {
	GetDB() *sql.DB
	candle.Storage
	RunStore
	PositionStore
	journal.Journaler
	Close() error
}
