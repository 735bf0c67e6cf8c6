package export

import (
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/quantfold/backtester/internal/engine"
)

// TradeRecord is the Parquet schema for the trade log.
type TradeRecord struct {
	TradeNum      int64   `parquet:"trade_num"`
	PositionType  string  `parquet:"position_type"`
	EntryTime     int64   `parquet:"entry_time,timestamp(millisecond)"` // Unix ms
	EntryPrice    float64 `parquet:"entry_price"`
	ExitTime      int64   `parquet:"exit_time,timestamp(millisecond)"` // Unix ms
	ExitPrice     float64 `parquet:"exit_price"`
	StopLoss      float64 `parquet:"stop_loss"`
	StopLossHit   bool    `parquet:"stop_loss_hit"`
	Shares        float64 `parquet:"shares"`
	PnL           float64 `parquet:"pnl"`
	PnLPct        float64 `parquet:"pnl_pct"`
	HoldingDays   int64   `parquet:"holding_days"`
	EntryReason   string  `parquet:"entry_reason"`
	ExitReason    string  `parquet:"exit_reason"`
	IndicatorType string  `parquet:"indicator_type"`
	Mode          string  `parquet:"strategy_mode"`
}

// EquityRecord is the Parquet schema for the equity curve.
type EquityRecord struct {
	Step   int64   `parquet:"step"`
	Equity float64 `parquet:"equity"`
}

// WriteTradesParquet saves the trade log to a Parquet file.
func WriteTradesParquet(path string, trades []engine.Trade) error {
	records := make([]TradeRecord, 0, len(trades))
	for i, t := range trades {
		records = append(records, TradeRecord{
			TradeNum:      int64(i + 1),
			PositionType:  t.PositionType,
			EntryTime:     t.EntryDate.UnixMilli(),
			EntryPrice:    t.EntryPrice,
			ExitTime:      t.ExitDate.UnixMilli(),
			ExitPrice:     t.ExitPrice,
			StopLoss:      t.StopLoss,
			StopLossHit:   t.StopLossHit,
			Shares:        t.Shares,
			PnL:           t.PnL,
			PnLPct:        t.PnLPct,
			HoldingDays:   int64(t.HoldingDays),
			EntryReason:   t.EntryReason,
			ExitReason:    t.ExitReason,
			IndicatorType: t.IndicatorType,
			Mode:          string(t.Mode),
		})
	}
	return writeParquetFile(path, records)
}

// ReadTradesParquet reads a trade log previously written with WriteTradesParquet.
func ReadTradesParquet(path string) ([]TradeRecord, error) {
	return parquet.ReadFile[TradeRecord](path)
}

// WriteEquityParquet saves the equity curve to a Parquet file.
func WriteEquityParquet(path string, equity []float64) error {
	records := make([]EquityRecord, 0, len(equity))
	for i, eq := range equity {
		records = append(records, EquityRecord{Step: int64(i + 1), Equity: eq})
	}
	return writeParquetFile(path, records)
}

// ReadEquityParquet reads an equity curve previously written with WriteEquityParquet.
func ReadEquityParquet(path string) ([]EquityRecord, error) {
	return parquet.ReadFile[EquityRecord](path)
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
