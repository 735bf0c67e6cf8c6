// Package export writes backtest results to CSV and Parquet files.
package export

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/quantfold/backtester/internal/engine"
)

// WriteTradesCSV saves the trade log to a CSV file.
func WriteTradesCSV(filename string, trades []engine.Trade) error {
	rows := [][]string{{
		"Trade#", "Type", "EntryTime", "Entry", "ExitTime", "Exit",
		"Shares", "PnL", "PnLPct", "HoldingDays", "StopLossHit",
		"EntryReason", "ExitReason",
	}}
	for i, t := range trades {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			t.PositionType,
			t.EntryDate.Format(time.RFC3339),
			fmt.Sprintf("%.2f", t.EntryPrice),
			t.ExitDate.Format(time.RFC3339),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%.6f", t.Shares),
			fmt.Sprintf("%.2f", t.PnL),
			fmt.Sprintf("%.4f", t.PnLPct),
			fmt.Sprintf("%d", t.HoldingDays),
			fmt.Sprintf("%t", t.StopLossHit),
			t.EntryReason,
			t.ExitReason,
		})
	}
	return saveCSV(filename, rows)
}

// WriteEquityCSV saves the equity curve to a CSV file.
func WriteEquityCSV(filename string, equity []float64) error {
	rows := [][]string{{"Step", "Equity"}}
	for i, eq := range equity {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", eq),
		})
	}
	return saveCSV(filename, rows)
}

// saveCSV saves data to a CSV file
func saveCSV(filename string, rows [][]string) error {
	f, err := os.Create(filename)
	if err != nil {
		log.Printf("Error creating CSV file %s: %v", filename, err)
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	for _, row := range rows {
		if err := w.Write(row); err != nil {
			log.Printf("Error writing to CSV file %s: %v", filename, err)
			return err
		}
	}

	log.Printf("Saved results to %s", filename)
	return nil
}
