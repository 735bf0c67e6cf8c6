// Package candle
package candle

import (
	"errors"
	"sort"
	"time"
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Source    string    `json:"source"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	if c.Symbol == "" {
		return errors.New("candle symbol cannot be empty")
	}
	if c.Timeframe == "" {
		return errors.New("candle timeframe cannot be empty")
	}
	return nil
}

// TypicalPrice returns (High+Low+Close)/3, the price series CCI is built on.
func (c *Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Closes extracts the close prices of a candle series, index-aligned.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Process sorts, deduplicates, trims, and gap-fills a downloaded candle
// series so the simulation always sees one candle per interval. The upper
// bound is exclusive. Synthetic gap candles carry the previous close as a
// flat OHLC with zero volume.
func Process(candles []Candle, symbol, timeframe string, from, to time.Time) []Candle {
	if len(candles) == 0 {
		return candles
	}

	dur := GetTimeframeDuration(timeframe)

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	// Deduplicate by truncated timestamp, keeping the first occurrence.
	byTime := make(map[time.Time]Candle, len(candles))
	for _, c := range candles {
		c.Timestamp = c.Timestamp.Truncate(dur)
		if _, exists := byTime[c.Timestamp]; !exists {
			byTime[c.Timestamp] = c
		}
	}

	var trimmed []Candle
	for ts, c := range byTime {
		if (ts.Equal(from) || ts.After(from)) && ts.Before(to) {
			trimmed = append(trimmed, c)
		}
	}
	sort.Slice(trimmed, func(i, j int) bool {
		return trimmed[i].Timestamp.Before(trimmed[j].Timestamp)
	})
	if len(trimmed) == 0 {
		return trimmed
	}
	// An unknown timeframe has no interval to fill against.
	if dur <= 0 {
		return trimmed
	}

	var complete []Candle
	current := trimmed[0].Timestamp
	last := trimmed[len(trimmed)-1].Timestamp
	basePrice := trimmed[0].Close

	i := 0
	for !current.After(last) && current.Before(to) {
		if i < len(trimmed) && trimmed[i].Timestamp.Equal(current) {
			complete = append(complete, trimmed[i])
			basePrice = trimmed[i].Close
			i++
		} else {
			complete = append(complete, Candle{
				Timestamp: current,
				Open:      basePrice,
				High:      basePrice,
				Low:       basePrice,
				Close:     basePrice,
				Volume:    0,
				Symbol:    symbol,
				Timeframe: timeframe,
				Source:    "synthetic",
			})
		}
		current = current.Add(dur)
	}

	return complete
}
