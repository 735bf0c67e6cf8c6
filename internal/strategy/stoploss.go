package strategy

import (
	"fmt"

	"github.com/quantfold/backtester/internal/candle"
)

// DefaultStopLossLookback is the trailing window used for support and
// resistance when the caller does not override it.
const DefaultStopLossLookback = 50

// SupportResistance returns the lowest low and highest high over the
// trailing lookback window ending at idx (inclusive). The window shrinks
// near the start of the series; at idx 0 no levels exist and ok is false.
func SupportResistance(candles []candle.Candle, idx, lookback int) (support, resistance float64, ok bool) {
	if idx < lookback {
		lookback = idx
	}
	if lookback == 0 || idx >= len(candles) {
		return 0, 0, false
	}

	support = candles[idx-lookback].Low
	resistance = candles[idx-lookback].High
	for j := idx - lookback + 1; j <= idx; j++ {
		if candles[j].Low < support {
			support = candles[j].Low
		}
		if candles[j].High > resistance {
			resistance = candles[j].High
		}
	}
	return support, resistance, true
}

// StopLoss places the stop for a new position. Long positions stop at
// support when it sits below the entry, otherwise 5% below entry. Short
// positions stop at resistance when it sits above the entry, otherwise
// 5% above entry.
func StopLoss(direction Direction, entryPrice, support, resistance float64, hasLevels bool) float64 {
	if direction == Long {
		if hasLevels && support < entryPrice {
			return support
		}
		return entryPrice * 0.95
	}
	if hasLevels && resistance > entryPrice {
		return resistance
	}
	return entryPrice * 1.05
}

// CheckStopLoss reports whether the bar's range touched the stop.
// Long positions trigger on the low, short positions on the high.
func CheckStopLoss(direction Direction, stop, high, low float64) (bool, string) {
	if direction == Long {
		if low <= stop {
			return true, fmt.Sprintf("Stop Loss Hit - Low $%.2f touched stop loss $%.2f", low, stop)
		}
		return false, ""
	}
	if high >= stop {
		return true, fmt.Sprintf("Stop Loss Hit - High $%.2f touched stop loss $%.2f", high, stop)
	}
	return false, ""
}
