// Package engine runs the bar-by-bar backtest simulation: it walks a candle
// series, applies entry and exit policies with configurable delays and stop
// losses, and produces the trade list, equity curve, and summary stats.
package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/quantfold/backtester/internal/candle"
	"github.com/quantfold/backtester/internal/indicator"
	"github.com/quantfold/backtester/internal/strategy"
)

// Position is an open position inside a run.
type Position struct {
	EntryDate   time.Time
	EntryPrice  float64
	Shares      float64
	Direction   strategy.Direction
	StopLoss    float64
	HasStopLoss bool
	EntryReason string
	EntryFast   float64
	EntrySlow   float64
}

// Trade is one closed round trip.
type Trade struct {
	EntryDate     time.Time `json:"entry_date"`
	ExitDate      time.Time `json:"exit_date"`
	PositionType  string    `json:"position_type"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	StopLoss      float64   `json:"stop_loss"`
	HasStopLoss   bool      `json:"has_stop_loss"`
	StopLossHit   bool      `json:"stop_loss_hit"`
	Shares        float64   `json:"shares"`
	EntryValue    float64   `json:"entry_value"`
	ExitValue     float64   `json:"exit_value"`
	PnL           float64   `json:"pnl"`
	PnLPct        float64   `json:"pnl_pct"`
	HoldingDays   int       `json:"holding_days"`
	EntryReason   string    `json:"entry_reason"`
	ExitReason    string    `json:"exit_reason"`
	Interval      string    `json:"interval"`
	IndicatorType string    `json:"indicator_type"`
	Mode          Mode      `json:"strategy_mode"`
	EntryFast     float64   `json:"entry_fast"`
	EntrySlow     float64   `json:"entry_slow"`
	ExitFast      float64   `json:"exit_fast"`
	ExitSlow      float64   `json:"exit_slow"`
}

// OpenPosition reports a position still open when the series ends. It is
// never force-closed; P&L is unrealized against the final close.
type OpenPosition struct {
	EntryDate        time.Time `json:"entry_date"`
	PositionType     string    `json:"position_type"`
	EntryPrice       float64   `json:"entry_price"`
	CurrentPrice     float64   `json:"current_price"`
	StopLoss         float64   `json:"stop_loss"`
	HasStopLoss      bool      `json:"has_stop_loss"`
	Shares           float64   `json:"shares"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	EntryReason      string    `json:"entry_reason"`
	Interval         string    `json:"interval"`
}

// Performance summarizes the closed trades of a run.
type Performance struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
}

// Result is the output of one run. Config echoes the validated
// configuration the run actually used, corrections included.
type Result struct {
	Config       Config        `json:"config"`
	Trades       []Trade       `json:"trades"`
	OpenPosition *OpenPosition `json:"open_position,omitempty"`
	Performance  Performance   `json:"performance"`
	EquityCurve  []float64     `json:"equity_curve"`
}

type pendingEntry struct {
	executeAt int
	direction strategy.Direction
	reason    string
}

type pendingExit struct {
	executeAt   int
	reason      string
	stopLossHit bool
}

// Engine walks one candle series with one validated config.
type Engine struct {
	cfg      Config
	candles  []candle.Candle
	detector *strategy.Detector
	resolver *strategy.Resolver
	useDSL   bool
}

// New validates cfg and precomputes the indicator series for the run.
func New(cfg Config, candles []candle.Candle) *Engine {
	cfg.Validate()
	e := &Engine{cfg: cfg, candles: candles}
	e.useDSL = cfg.DSL.Enabled() && cfg.DSL.Entry != nil
	if e.useDSL {
		e.resolver = cfg.DSL.BuildResolver(candles)
		log.Printf("New | DSL strategy with %d indicators", len(cfg.DSL.Indicators))
	} else {
		e.detector = strategy.NewDetector(cfg.IndicatorType, cfg.Params, candles)
	}
	return e
}

// Run executes the simulation. Processing starts at the second bar since
// every signal needs a predecessor; decisions at bar i read only bars <= i.
func (e *Engine) Run() *Result {
	capital := e.cfg.InitialCapital
	equity := make([]float64, len(e.candles))
	for i := range equity {
		equity[i] = capital
	}
	result := &Result{Config: e.cfg, EquityCurve: equity}

	if len(e.candles) < 2 {
		result.Performance = summarize(nil, e.cfg.InitialCapital, capital)
		return result
	}

	log.Printf("Run | starting backtest: %d candles, capital: $%.2f, interval: %s, mode: %s, indicator: %s",
		len(e.candles), capital, e.cfg.Interval, e.cfg.Mode, e.cfg.IndicatorType)

	var trades []Trade
	var position *Position
	var pendEntry *pendingEntry
	var pendExit *pendingExit
	justExitedOnSignal := false

	// Seed DSL transition state from the first bar so a condition that is
	// already true at the start of the series does not fire until it has
	// gone false and then true again.
	prevEntryMet, prevExitMet := false, false
	if e.useDSL {
		prevEntryMet = strategy.EvaluateCondition(e.cfg.DSL.Entry, e.resolver, 0)
		prevExitMet = e.cfg.DSL.Exit != nil && strategy.EvaluateCondition(e.cfg.DSL.Exit, e.resolver, 0)
	}

	for i := 1; i < len(e.candles); i++ {
		cur := e.candles[i]
		price := cur.Close

		// Detect this bar's raw signal.
		var sig strategy.Signal
		entryTransition, exitTransition := false, false
		if e.useDSL {
			entryMet := strategy.EvaluateCondition(e.cfg.DSL.Entry, e.resolver, i)
			exitMet := e.cfg.DSL.Exit != nil && strategy.EvaluateCondition(e.cfg.DSL.Exit, e.resolver, i)
			entryTransition = entryMet && !prevEntryMet
			exitTransition = exitMet && !prevExitMet
			if entryTransition {
				sig = strategy.Signal{Fired: true, Direction: strategy.Long, Reason: "DSL Entry Transition"}
			} else if exitTransition {
				sig = strategy.Signal{Fired: true, Direction: strategy.Short, Reason: "DSL Exit Transition"}
			}
			prevEntryMet, prevExitMet = entryMet, exitMet
		} else {
			sig = e.detector.Check(i)
		}

		// Execute a due pending exit at the current close.
		if pendExit != nil && i >= pendExit.executeAt && position != nil {
			reason := fmt.Sprintf("%s (delayed %s)", pendExit.reason, delayText(e.cfg.ExitDelay))
			trade, newCapital := e.closeTrade(position, capital, price, cur.Timestamp, reason, pendExit.stopLossHit, i)
			trades = append(trades, trade)
			capital = newCapital
			justExitedOnSignal = !pendExit.stopLossHit && sig.Fired
			position = nil
			pendExit = nil
		} else if position != nil && pendExit == nil {
			// Exit check: stop loss first, then opposite signal.
			shouldExit := false
			stopLossHit := false
			exitReason := ""
			exitPrice := price

			if e.cfg.UseStopLoss && position.HasStopLoss {
				if hit, reason := strategy.CheckStopLoss(position.Direction, position.StopLoss, cur.High, cur.Low); hit {
					shouldExit = true
					stopLossHit = true
					exitPrice = position.StopLoss
					exitReason = reason
					if e.useDSL {
						exitReason = "Stop Loss Hit"
					}
				}
			}
			if !shouldExit {
				if e.useDSL {
					if position.Direction == strategy.Long && exitTransition {
						shouldExit = true
						exitReason = "DSL Exit Transition"
					} else if position.Direction == strategy.Short && entryTransition {
						shouldExit = true
						exitReason = "DSL Entry Transition"
					}
				} else if sig.Fired && sig.Direction != position.Direction {
					shouldExit = true
					exitReason = "Exit Signal: " + sig.Reason
				}
			}

			if shouldExit {
				// Stop losses close immediately regardless of delay.
				if e.cfg.ExitDelay <= 1 || stopLossHit {
					trade, newCapital := e.closeTrade(position, capital, exitPrice, cur.Timestamp, exitReason, stopLossHit, i)
					trades = append(trades, trade)
					capital = newCapital
					justExitedOnSignal = !stopLossHit && sig.Fired
					position = nil
				} else {
					pendExit = &pendingExit{executeAt: i + e.cfg.ExitDelay - 1, reason: exitReason, stopLossHit: stopLossHit}
					log.Printf("Run | exit signal detected, scheduled for bar %d", pendExit.executeAt)
				}
			}
		}

		// Execute a due pending entry at the current close.
		if pendEntry != nil && i >= pendEntry.executeAt && position == nil {
			reason := fmt.Sprintf("%s (delayed %s)", pendEntry.reason, delayText(e.cfg.EntryDelay))
			position = e.openPosition(pendEntry.direction, reason, i, capital)
			pendEntry = nil
		}

		// Entry gate.
		if position == nil && pendEntry == nil && sig.Fired {
			shouldEnter := false
			switch e.cfg.Mode {
			case ModeReversal:
				shouldEnter = true
			case ModeWaitForNext:
				shouldEnter = !justExitedOnSignal
			case ModeLongOnly:
				shouldEnter = sig.Direction == strategy.Long
			case ModeShortOnly:
				shouldEnter = sig.Direction == strategy.Short
			}
			if shouldEnter && sig.Direction == strategy.Short && !e.cfg.EnableShort {
				shouldEnter = false
			}

			if shouldEnter {
				if e.cfg.EntryDelay <= 1 {
					position = e.openPosition(sig.Direction, sig.Reason, i, capital)
				} else {
					pendEntry = &pendingEntry{executeAt: i + e.cfg.EntryDelay - 1, direction: sig.Direction, reason: sig.Reason}
					log.Printf("Run | entry signal detected, scheduled for bar %d", pendEntry.executeAt)
				}
			}
		}

		if !sig.Fired {
			justExitedOnSignal = false
		}
		equity[i] = capital
	}

	if position != nil {
		final := e.candles[len(e.candles)-1]
		var exitValue, pnl float64
		if position.Direction == strategy.Long {
			exitValue = position.Shares * final.Close
			pnl = exitValue - capital
		} else {
			entryValue := position.Shares * position.EntryPrice
			exitValue = position.Shares * final.Close
			pnl = entryValue - exitValue
		}
		pnlPct := 0.0
		if capital > 0 {
			pnlPct = pnl / capital * 100
		}
		result.OpenPosition = &OpenPosition{
			EntryDate:        position.EntryDate,
			PositionType:     string(position.Direction),
			EntryPrice:       position.EntryPrice,
			CurrentPrice:     final.Close,
			StopLoss:         position.StopLoss,
			HasStopLoss:      position.HasStopLoss,
			Shares:           position.Shares,
			UnrealizedPnL:    pnl,
			UnrealizedPnLPct: pnlPct,
			EntryReason:      position.EntryReason,
			Interval:         e.cfg.Interval,
		}
		log.Printf("Run | open position at end: %s @ $%.2f, unrealized P&L: %.2f%%",
			position.Direction, position.EntryPrice, pnlPct)
	}

	result.Trades = trades
	result.Performance = summarize(trades, e.cfg.InitialCapital, capital)
	log.Printf("Run | backtest complete: %d trades, return: %.2f%%, mode: %s",
		len(trades), result.Performance.TotalReturnPct, e.cfg.Mode)
	return result
}

func (e *Engine) openPosition(direction strategy.Direction, reason string, i int, capital float64) *Position {
	price := e.candles[i].Close
	p := &Position{
		EntryDate:   e.candles[i].Timestamp,
		EntryPrice:  price,
		Shares:      capital / price,
		Direction:   direction,
		EntryReason: reason,
	}
	if e.cfg.UseStopLoss {
		support, resistance, ok := strategy.SupportResistance(e.candles, i, e.cfg.StopLookback)
		p.StopLoss = strategy.StopLoss(direction, price, support, resistance, ok)
		p.HasStopLoss = true
	}
	p.EntryFast, p.EntrySlow = e.snapshot(i)

	if p.HasStopLoss {
		log.Printf("Run | entry: %s at $%.2f, stop loss: $%.2f, reason: %s", direction, price, p.StopLoss, reason)
	} else {
		log.Printf("Run | entry: %s at $%.2f, no stop loss, reason: %s", direction, price, reason)
	}
	return p
}

func (e *Engine) closeTrade(p *Position, capital, exitPrice float64, exitDate time.Time, reason string, stopLossHit bool, i int) (Trade, float64) {
	var exitValue, pnl float64
	if p.Direction == strategy.Long {
		exitValue = p.Shares * exitPrice
		pnl = exitValue - capital
	} else {
		entryValue := p.Shares * p.EntryPrice
		exitValue = p.Shares * exitPrice
		pnl = entryValue - exitValue
	}
	pnlPct := pnl / capital * 100

	exitFast, exitSlow := e.snapshot(i)
	trade := Trade{
		EntryDate:     p.EntryDate,
		ExitDate:      exitDate,
		PositionType:  string(p.Direction),
		EntryPrice:    p.EntryPrice,
		ExitPrice:     exitPrice,
		StopLoss:      p.StopLoss,
		HasStopLoss:   p.HasStopLoss,
		StopLossHit:   stopLossHit,
		Shares:        p.Shares,
		EntryValue:    capital,
		ExitValue:     exitValue,
		PnL:           pnl,
		PnLPct:        pnlPct,
		HoldingDays:   int(exitDate.Sub(p.EntryDate).Hours() / 24),
		EntryReason:   p.EntryReason,
		ExitReason:    reason,
		Interval:      e.cfg.Interval,
		IndicatorType: e.cfg.IndicatorType,
		Mode:          e.cfg.Mode,
		EntryFast:     p.EntryFast,
		EntrySlow:     p.EntrySlow,
		ExitFast:      exitFast,
		ExitSlow:      exitSlow,
	}

	newCapital := capital + pnl
	if p.Direction == strategy.Long {
		newCapital = exitValue
	}
	log.Printf("Run | exit: %s at $%.2f, P&L: $%.2f (%.2f%%)", reason, exitPrice, pnl, pnlPct)
	return trade, newCapital
}

// snapshot reads the indicator values at bar i for trade records. NaN
// warm-up values record as zero.
func (e *Engine) snapshot(i int) (fast, slow float64) {
	if e.detector == nil {
		return 0, 0
	}
	fastSeries, slowSeries := e.detector.Series()
	return indicator.ValueOr(fastSeries, i, 0), indicator.ValueOr(slowSeries, i, 0)
}

func summarize(trades []Trade, initial, final float64) Performance {
	p := Performance{InitialCapital: initial, FinalCapital: final}
	if len(trades) == 0 {
		return p
	}
	for _, t := range trades {
		p.TotalReturn += t.PnL
		if t.PnL > 0 {
			p.WinningTrades++
		} else if t.PnL < 0 {
			p.LosingTrades++
		}
	}
	p.TotalTrades = len(trades)
	p.TotalReturnPct = (final - initial) / initial * 100
	p.WinRate = float64(p.WinningTrades) / float64(p.TotalTrades) * 100
	return p
}

func delayText(n int) string {
	if n > 1 {
		return fmt.Sprintf("%d bars", n)
	}
	return fmt.Sprintf("%d bar", n)
}
