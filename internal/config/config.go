// Package config
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/backtester/internal/engine"
	"github.com/quantfold/backtester/internal/optimize"
	"github.com/quantfold/backtester/internal/strategy"
)

/*
YAML config example:

mode: "backtest"
asset: "BTCUSDT"
interval: "1d"
from: 2024-01-01T00:00:00Z
to: 2024-06-01T00:00:00Z
initial_capital: 10000
enable_short: true
strategy_mode: "reversal"
indicator: "ema"
fast: 12
slow: 26
use_stop_loss: true
stop_lookback: 50
db: "sqlite"
sqlite_path: "backtester.db"
trades_csv: "backtest_trades.csv"
equity_csv: "backtest_equity.csv"
*/

type Config struct {
	Mode     string    `yaml:"mode"` // backtest or sweep
	Asset    string    `yaml:"asset"`
	Interval string    `yaml:"interval"`
	From     time.Time `yaml:"from"`
	To       time.Time `yaml:"to"`

	InitialCapital float64 `yaml:"initial_capital"`
	EnableShort    bool    `yaml:"enable_short"`
	StrategyMode   string  `yaml:"strategy_mode"`
	IndicatorType  string  `yaml:"indicator"`
	Fast           int     `yaml:"fast"`
	Slow           int     `yaml:"slow"`
	Length         int     `yaml:"length"`
	Top            float64 `yaml:"top"`
	Bottom         float64 `yaml:"bottom"`
	EntryDelay     int     `yaml:"entry_delay"`
	ExitDelay      int     `yaml:"exit_delay"`
	UseStopLoss    bool    `yaml:"use_stop_loss"`
	StopLookback   int     `yaml:"stop_lookback"`
	DSLFile        string  `yaml:"dsl_file"`

	// Sweep grids.
	Fasts              []int     `yaml:"fasts"`
	Slows              []int     `yaml:"slows"`
	Lengths            []int     `yaml:"lengths"`
	Tops               []float64 `yaml:"tops"`
	Bottoms            []float64 `yaml:"bottoms"`
	PositionType       string    `yaml:"position_type"`
	OscillatorStrategy string    `yaml:"oscillator_strategy"`
	RiskFreeRate       float64   `yaml:"risk_free_rate"`
	SweepWorkers       int       `yaml:"sweep_workers"`

	DB         string `yaml:"db"` // memory, postgres or sqlite
	DBConnStr  string `yaml:"db_conn_str"`
	SQLitePath string `yaml:"sqlite_path"`

	TradesCSV     string `yaml:"trades_csv"`
	EquityCSV     string `yaml:"equity_csv"`
	TradesParquet string `yaml:"trades_parquet"`
	EquityParquet string `yaml:"equity_parquet"`

	ProxyURL string `yaml:"proxy_url"`
}

// Load parses command line flags and, if -config is given, replaces the
// result with the YAML config file.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("backtester", flag.ContinueOnError)

	mode := fs.String("mode", "backtest", "Mode: backtest or sweep")
	asset := fs.String("asset", "BTCUSDT", "Asset symbol or display name (e.g., BTC/USDT)")
	interval := fs.String("interval", "1d", "Candle timeframe")
	from := fs.String("from", time.Now().AddDate(-1, 0, 0).Format("2006-01-02"), "Start date (YYYY-MM-DD)")
	to := fs.String("to", time.Now().Format("2006-01-02"), "End date (YYYY-MM-DD)")
	capital := fs.Float64("capital", 10000, "Initial capital")
	enableShort := fs.Bool("enable-short", true, "Allow short positions")
	strategyMode := fs.String("strategy-mode", "reversal", "Strategy mode: reversal, wait_for_next, long_only or short_only")
	indicatorType := fs.String("indicator", "ema", "Indicator: ema, ma, dema, rsi, cci or zscore")
	fast := fs.Int("fast", 0, "Fast period for crossover indicators")
	slow := fs.Int("slow", 0, "Slow period for crossover indicators")
	length := fs.Int("length", 0, "Lookback length for oscillator indicators")
	top := fs.Float64("top", 0, "Upper threshold for oscillator indicators")
	bottom := fs.Float64("bottom", 0, "Lower threshold for oscillator indicators")
	entryDelay := fs.Int("entry-delay", 1, "Bars between signal and entry fill")
	exitDelay := fs.Int("exit-delay", 1, "Bars between signal and exit fill")
	useStopLoss := fs.Bool("stop-loss", false, "Enable support/resistance stop loss")
	stopLookback := fs.Int("stop-lookback", 50, "Bars of history for support/resistance levels")
	dslFile := fs.String("dsl", "", "Path to JSON strategy definition")
	fastsFlag := fs.String("fasts", "", "Comma-separated fast periods for sweep (e.g., 5,10,20)")
	slowsFlag := fs.String("slows", "", "Comma-separated slow periods for sweep")
	lengthsFlag := fs.String("lengths", "", "Comma-separated lengths for threshold sweep")
	topsFlag := fs.String("tops", "", "Comma-separated upper thresholds for sweep")
	bottomsFlag := fs.String("bottoms", "", "Comma-separated lower thresholds for sweep")
	positionType := fs.String("position-type", "both", "Sweep position type: both, long_only or short_only")
	oscStrategy := fs.String("oscillator-strategy", "mean_reversion", "Oscillator sweep style: mean_reversion or momentum")
	riskFree := fs.Float64("risk-free-rate", 0, "Annualized risk free rate for Sharpe")
	sweepWorkers := fs.Int("sweep-workers", 0, "Parallel workers for sweep (0 = NumCPU)")
	dbBackend := fs.String("db", "memory", "Storage backend: memory, postgres or sqlite")
	sqlitePath := fs.String("sqlite-path", "backtester.db", "SQLite database path")
	tradesCSV := fs.String("trades-csv", "", "Write trade log CSV to this path")
	equityCSV := fs.String("equity-csv", "", "Write equity curve CSV to this path")
	tradesParquet := fs.String("trades-parquet", "", "Write trade log Parquet to this path")
	equityParquet := fs.String("equity-parquet", "", "Write equity curve Parquet to this path")
	proxyURL := fs.String("proxy", "", "HTTP proxy URL for data download")
	configFile := fs.String("config", "", "Path to YAML config file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
		return fileCfg, nil
	}

	fromTime, err := time.Parse("2006-01-02", *from)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -from date: %w", err)
	}
	toTime, err := time.Parse("2006-01-02", *to)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -to date: %w", err)
	}

	fasts, err := parseInts(*fastsFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -fasts: %w", err)
	}
	slows, err := parseInts(*slowsFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -slows: %w", err)
	}
	lengths, err := parseInts(*lengthsFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -lengths: %w", err)
	}
	tops, err := parseFloats(*topsFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -tops: %w", err)
	}
	bottoms, err := parseFloats(*bottomsFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid -bottoms: %w", err)
	}

	return Config{
		Mode:               *mode,
		Asset:              *asset,
		Interval:           *interval,
		From:               fromTime,
		To:                 toTime,
		InitialCapital:     *capital,
		EnableShort:        *enableShort,
		StrategyMode:       *strategyMode,
		IndicatorType:      *indicatorType,
		Fast:               *fast,
		Slow:               *slow,
		Length:             *length,
		Top:                *top,
		Bottom:             *bottom,
		EntryDelay:         *entryDelay,
		ExitDelay:          *exitDelay,
		UseStopLoss:        *useStopLoss,
		StopLookback:       *stopLookback,
		DSLFile:            *dslFile,
		Fasts:              fasts,
		Slows:              slows,
		Lengths:            lengths,
		Tops:               tops,
		Bottoms:            bottoms,
		PositionType:       *positionType,
		OscillatorStrategy: *oscStrategy,
		RiskFreeRate:       *riskFree,
		SweepWorkers:       *sweepWorkers,
		DB:                 *dbBackend,
		DBConnStr:          os.Getenv("DB_CONN_STR"),
		SQLitePath:         *sqlitePath,
		TradesCSV:          *tradesCSV,
		EquityCSV:          *equityCSV,
		TradesParquet:      *tradesParquet,
		EquityParquet:      *equityParquet,
		ProxyURL:           *proxyURL,
	}, nil
}

// EngineConfig translates the loaded configuration into an engine config,
// reading the strategy definition file when one is set.
func (c Config) EngineConfig() (engine.Config, error) {
	cfg := engine.Config{
		InitialCapital: c.InitialCapital,
		EnableShort:    c.EnableShort,
		Interval:       c.Interval,
		Mode:           engine.Mode(c.StrategyMode),
		IndicatorType:  c.IndicatorType,
		Params: strategy.Params{
			Fast:   c.Fast,
			Slow:   c.Slow,
			Length: c.Length,
			Top:    c.Top,
			Bottom: c.Bottom,
		},
		EntryDelay:   c.EntryDelay,
		ExitDelay:    c.ExitDelay,
		UseStopLoss:  c.UseStopLoss,
		StopLookback: c.StopLookback,
	}

	if c.DSLFile != "" {
		data, err := os.ReadFile(c.DSLFile)
		if err != nil {
			return cfg, fmt.Errorf("failed to read strategy definition: %w", err)
		}
		var dsl strategy.DSL
		if err := json.Unmarshal(data, &dsl); err != nil {
			return cfg, fmt.Errorf("failed to parse strategy definition: %w", err)
		}
		cfg.DSL = &dsl
	}
	return cfg, nil
}

// SweepOptions translates the loaded configuration into sweep options.
func (c Config) SweepOptions() optimize.Options {
	return optimize.Options{
		InitialCapital:     c.InitialCapital,
		PositionType:       c.PositionType,
		StrategyMode:       c.StrategyMode,
		RiskFreeRate:       c.RiskFreeRate,
		OscillatorStrategy: c.OscillatorStrategy,
	}
}

func parseInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
