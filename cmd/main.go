package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfold/backtester/internal/asset"
	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/config"
	"github.com/quantfold/backtester/internal/db"
	"github.com/quantfold/backtester/internal/engine"
	"github.com/quantfold/backtester/internal/export"
	"github.com/quantfold/backtester/internal/fetcher"
	"github.com/quantfold/backtester/internal/journal"
	"github.com/quantfold/backtester/internal/optimize"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Starting backtester in mode:", cfg.Mode)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	storage, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storage.Close()

	a, err := asset.Lookup(cfg.Asset)
	if err != nil {
		log.Fatalf("Unknown asset %q: %v", cfg.Asset, err)
	}

	candles, err := loadCandles(ctx, storage, cfg, a.Symbol)
	if err != nil {
		log.Fatalf("Error loading candles: %v", err)
	}
	log.Printf("Loaded %d candles for %s [%s-%s]",
		len(candles), a.Symbol, cfg.From.Format(time.RFC3339), cfg.To.Format(time.RFC3339))

	switch cfg.Mode {
	case "sweep":
		runSweep(ctx, cfg, candles)
	default:
		runBacktest(ctx, cfg, storage, a, candles)
	}
}

// openStorage picks the storage backend from configuration.
func openStorage(cfg config.Config) (db.Storage, error) {
	switch cfg.DB {
	case "postgres":
		return db.NewPostgres(cfg.DBConnStr)
	case "sqlite":
		return db.NewSQLite(cfg.SQLitePath)
	default:
		return db.NewMemory(), nil
	}
}

// loadCandles loads candles for backtesting, downloading from the public API
// if the database has none for the requested range.
func loadCandles(ctx context.Context, storage db.Storage, cfg config.Config, symbol string) ([]candle.Candle, error) {
	candles, err := storage.GetCandles(ctx, symbol, cfg.Interval, cfg.From, cfg.To)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 {
		return candles, nil
	}

	log.Printf("loadCandles | No historical candles found in DB for %s, downloading from public API...", symbol)
	f, err := fetcher.NewBinance(fetcher.Config{ProxyURL: cfg.ProxyURL})
	if err != nil {
		return nil, err
	}
	candles, err = f.Fetch(ctx, symbol, cfg.Interval, cfg.From, cfg.To)
	if err != nil {
		return nil, err
	}
	if err := storage.SaveCandles(ctx, candles); err != nil {
		log.Printf("loadCandles | Failed to persist downloaded candles: %v", err)
	}
	return candles, nil
}

func runBacktest(ctx context.Context, cfg config.Config, storage db.Storage, a asset.Asset, candles []candle.Candle) {
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		log.Fatalf("Invalid strategy configuration: %v", err)
	}

	if err := storage.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        "run",
		Description: "backtest_started",
		Data:        map[string]any{"symbol": a.Symbol, "interval": cfg.Interval},
	}); err != nil {
		log.Printf("Failed to log event: %v", err)
	}

	result := engine.New(engineCfg, candles).Run()
	printResults(a, result.Config, result)

	id, err := storage.SaveRun(ctx, db.Run{
		Symbol:   a.Symbol,
		Interval: cfg.Interval,
		Config:   result.Config,
		Result:   *result,
	})
	if err != nil {
		log.Printf("Failed to save run: %v", err)
	} else {
		log.Printf("Saved run %d", id)
	}

	posKey := a.Symbol + "|" + cfg.Interval
	if result.OpenPosition != nil {
		if err := storage.SavePosition(ctx, posKey, *result.OpenPosition); err != nil {
			log.Printf("Failed to save open position: %v", err)
		}
	} else if err := storage.DeletePosition(ctx, posKey); err != nil {
		log.Printf("Failed to clear open position: %v", err)
	}

	if err := storage.LogEvent(ctx, journal.Event{
		Time:        time.Now().UTC(),
		Type:        "run",
		Description: "backtest_completed",
		Data: map[string]any{
			"symbol": a.Symbol,
			"trades": result.Performance.TotalTrades,
			"return": result.Performance.TotalReturnPct,
		},
	}); err != nil {
		log.Printf("Failed to log event: %v", err)
	}

	exportResults(cfg, result)
}

func runSweep(ctx context.Context, cfg config.Config, candles []candle.Candle) {
	sweeper := &optimize.Sweeper{
		Candles: candles,
		Opts:    cfg.SweepOptions(),
		Workers: cfg.SweepWorkers,
	}

	var results []optimize.Result
	switch cfg.IndicatorType {
	case "ema", "ma", "dema":
		results = sweeper.SweepCrossover(ctx, cfg.IndicatorType, cfg.Fasts, cfg.Slows)
	default:
		results = sweeper.SweepThreshold(ctx, cfg.IndicatorType, cfg.Lengths, cfg.Tops, cfg.Bottoms)
	}

	if len(results) == 0 {
		log.Println("Sweep produced no results; check the parameter grids")
		return
	}

	log.Printf("Sweep Results (%s, top %d of %d):", cfg.IndicatorType, min(10, len(results)), len(results))
	for i, r := range results {
		if i >= 10 {
			break
		}
		if r.Length > 0 {
			log.Printf("  #%d: length=%d top=%.2f bottom=%.2f Sharpe=%.3f Return=%.2f%% MaxDD=%.2f%% WinRate=%.1f%% Trades=%d",
				i+1, r.Length, r.Top, r.Bottom, r.SharpeRatio, r.TotalReturn*100, r.MaxDrawdown*100, r.WinRate*100, r.TotalTrades)
		} else {
			log.Printf("  #%d: fast=%d slow=%d Sharpe=%.3f Return=%.2f%% MaxDD=%.2f%% WinRate=%.1f%% Trades=%d",
				i+1, r.Fast, r.Slow, r.SharpeRatio, r.TotalReturn*100, r.MaxDrawdown*100, r.WinRate*100, r.TotalTrades)
		}
	}
}

// printResults prints the results of a backtest
func printResults(a asset.Asset, cfg engine.Config, result *engine.Result) {
	p := result.Performance
	log.Printf("Backtest Results (%s %s %s):", a.Display, cfg.IndicatorType, cfg.Mode)
	log.Printf("  Trades=%d, Wins=%d, Losses=%d, WinRate=%.2f%%",
		p.TotalTrades, p.WinningTrades, p.LosingTrades, p.WinRate)
	log.Printf("  Starting Capital=%.2f, Final Capital=%.2f, Return=%.2f%%",
		p.InitialCapital, p.FinalCapital, p.TotalReturnPct)

	if op := result.OpenPosition; op != nil {
		log.Printf("  Open Position: %s Entry=%.2f at %s, Unrealized PnL=%.2f (%.2f%%)",
			op.PositionType, op.EntryPrice, op.EntryDate.Format(time.RFC3339),
			op.UnrealizedPnL, op.UnrealizedPnLPct)
	}

	log.Println("Trade Log Summary (Last 10 trades):")
	trades := result.Trades
	if len(trades) > 10 {
		log.Printf("  ... skipping %d earlier trades", len(trades)-10)
		trades = trades[len(trades)-10:]
	}
	for i, t := range trades {
		log.Printf("  Trade %d: %s Entry=%.2f at %s, Exit=%.2f at %s, PnL=%.2f, Reason=%s",
			i+1, t.PositionType, t.EntryPrice, t.EntryDate.Format(time.RFC3339),
			t.ExitPrice, t.ExitDate.Format(time.RFC3339), t.PnL, t.ExitReason)
	}
}

func exportResults(cfg config.Config, result *engine.Result) {
	if cfg.TradesCSV != "" {
		if err := export.WriteTradesCSV(cfg.TradesCSV, result.Trades); err != nil {
			log.Printf("Failed to write %s: %v", cfg.TradesCSV, err)
		}
	}
	if cfg.EquityCSV != "" {
		if err := export.WriteEquityCSV(cfg.EquityCSV, result.EquityCurve); err != nil {
			log.Printf("Failed to write %s: %v", cfg.EquityCSV, err)
		}
	}
	if cfg.TradesParquet != "" {
		if err := export.WriteTradesParquet(cfg.TradesParquet, result.Trades); err != nil {
			log.Printf("Failed to write %s: %v", cfg.TradesParquet, err)
		} else {
			log.Printf("Saved results to %s", cfg.TradesParquet)
		}
	}
	if cfg.EquityParquet != "" {
		if err := export.WriteEquityParquet(cfg.EquityParquet, result.EquityCurve); err != nil {
			log.Printf("Failed to write %s: %v", cfg.EquityParquet, err)
		} else {
			log.Printf("Saved results to %s", cfg.EquityParquet)
		}
	}
}
