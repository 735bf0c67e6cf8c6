package optimize

import (
	"context"
	"log"
	"runtime"
	"sort"
	"sync"

	"github.com/quantfold/backtester/internal/candle"
)

// Sweeper fans parameter combinations out over a bounded worker pool and
// collects their metrics, best Sharpe first.
type Sweeper struct {
	Candles []candle.Candle
	Opts    Options
	Workers int
}

// SweepCrossover evaluates every fast/slow pair with fast < slow for one
// crossover indicator (ema, ma, dema).
func (s *Sweeper) SweepCrossover(ctx context.Context, indicatorType string, fasts, slows []int) []Result {
	type combo struct{ fast, slow int }

	var combos []combo
	for _, f := range fasts {
		for _, sl := range slows {
			if f < sl {
				combos = append(combos, combo{f, sl})
			}
		}
	}
	log.Printf("SweepCrossover | %s sweep: %d combinations over %d candles", indicatorType, len(combos), len(s.Candles))

	return s.collect(ctx, len(combos), func(i int) *Result {
		return RunCrossover(s.Candles, indicatorType, combos[i].fast, combos[i].slow, s.Opts)
	})
}

// SweepThreshold evaluates every length/top/bottom triple with top > bottom
// for one oscillator indicator.
func (s *Sweeper) SweepThreshold(ctx context.Context, indicatorType string, lengths []int, tops, bottoms []float64) []Result {
	type combo struct {
		length      int
		top, bottom float64
	}

	var combos []combo
	for _, l := range lengths {
		for _, t := range tops {
			for _, b := range bottoms {
				if t > b {
					combos = append(combos, combo{l, t, b})
				}
			}
		}
	}
	log.Printf("SweepThreshold | %s sweep: %d combinations over %d candles", indicatorType, len(combos), len(s.Candles))

	return s.collect(ctx, len(combos), func(i int) *Result {
		return RunThreshold(s.Candles, indicatorType, combos[i].length, combos[i].top, combos[i].bottom, s.Opts)
	})
}

func (s *Sweeper) collect(ctx context.Context, n int, run func(i int) *Result) []Result {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if n == 0 {
		return nil
	}

	jobs := make(chan int)
	results := make(chan Result, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if r := run(i); r != nil {
					results <- *r
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	out := make([]Result, 0, n)
	for r := range results {
		out = append(out, r)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SharpeRatio > out[b].SharpeRatio
	})
	return out
}
