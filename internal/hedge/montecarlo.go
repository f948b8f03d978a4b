package hedge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// MonteCarlo configures a batch of hedging simulations on GBM paths drawn
// with the contract's own volatility.
type MonteCarlo struct {
	Paths int `json:"paths"`
	Steps int `json:"steps"`
	// Seed of path i is Seed+i.
	Seed uint64 `json:"seed"`
	// Drift of the simulated spot; set it to the contract rate for a
	// risk-neutral run.
	Drift     float64   `json:"drift"`
	Workers   int       `json:"workers,omitempty"`
	Rebalance bool      `json:"rebalance"`
	Progress  io.Writer `json:"-"`
}

// PathFailure records a path whose simulation returned an error.
type PathFailure struct {
	Index int    `json:"index"`
	Err   string `json:"error"`
}

// MonteCarloStats summarises the terminal hedging errors of a batch.
type MonteCarloStats struct {
	Paths            int           `json:"paths"`
	Completed        int           `json:"completed"`
	MeanError        float64       `json:"mean_error"`
	StdError         float64       `json:"std_error"`
	MeanErrorPercent float64       `json:"mean_error_percent"`
	StdErrorPercent  float64       `json:"std_error_percent"`
	MaxAbsError      float64       `json:"max_abs_error"`
	P05Error         float64       `json:"p05_error"`
	P95Error         float64       `json:"p95_error"`
	Errors           []float64     `json:"-"`
	Failed           []PathFailure `json:"failed,omitempty"`
}

// MaxPaths bounds the size of a single batch.
const MaxPaths = 1_000_000

type pathResult struct {
	done    bool
	err     error
	pnl     float64
	percent float64
}

// RunMonteCarlo simulates mc.Paths independent hedges of c on a bounded
// worker pool. A failing path is recorded in Failed and does not stop the
// batch. Cancelling ctx stops scheduling new paths; the stats of the paths
// already finished are returned together with the context error.
func RunMonteCarlo(ctx context.Context, c pricing.Contract, mc MonteCarlo) (MonteCarloStats, error) {
	if err := c.Validate(); err != nil {
		return MonteCarloStats{}, err
	}
	if mc.Paths < 1 || mc.Paths > MaxPaths {
		return MonteCarloStats{}, pricing.NewInputError("paths", float64(mc.Paths), fmt.Sprintf("must be between 1 and %d", MaxPaths))
	}
	if mc.Steps < 1 || mc.Steps > MaxSteps {
		return MonteCarloStats{}, pricing.NewInputError("steps", float64(mc.Steps), fmt.Sprintf("must be between 1 and %d", MaxSteps))
	}
	if c.Maturity <= 0 {
		return MonteCarloStats{}, pricing.NewInputError("maturity", c.Maturity, "must be positive to simulate paths")
	}

	workers := mc.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > mc.Paths {
		workers = mc.Paths
	}

	var bar *progressbar.ProgressBar
	if mc.Progress != nil {
		bar = progressBar(mc.Progress, mc.Paths)
	}

	results := make([]pathResult, mc.Paths)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = simulatePath(c, mc, i)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	var ctxErr error
schedule:
	for i := 0; i < mc.Paths; i++ {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break schedule
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	stats := collect(results)
	logger.Debugf("hedge: monte carlo %d/%d paths, mean error %.4f std %.4f, %d failed",
		stats.Completed, stats.Paths, stats.MeanError, stats.StdError, len(stats.Failed))
	if ctxErr != nil {
		return stats, fmt.Errorf("monte carlo interrupted after %d paths: %w", stats.Completed, ctxErr)
	}
	if stats.Completed == 0 {
		return stats, errors.New("monte carlo: every path failed")
	}
	return stats, nil
}

func simulatePath(c pricing.Contract, mc MonteCarlo, i int) pathResult {
	path, err := GBMPath(GBM{
		S0:       c.Spot,
		Drift:    mc.Drift,
		Vol:      c.Volatility,
		Maturity: c.Maturity,
		Steps:    mc.Steps,
		Seed:     mc.Seed + uint64(i),
	})
	if err != nil {
		return pathResult{done: true, err: err}
	}
	run, err := Simulate(c, path, mc.Rebalance)
	if err != nil {
		return pathResult{done: true, err: err}
	}
	return pathResult{done: true, pnl: run.Summary.TerminalPnL, percent: run.Summary.ErrorPercent}
}

func collect(results []pathResult) MonteCarloStats {
	stats := MonteCarloStats{Paths: len(results)}
	var percents []float64
	for i, r := range results {
		switch {
		case !r.done:
		case r.err != nil:
			stats.Failed = append(stats.Failed, PathFailure{Index: i, Err: r.err.Error()})
		default:
			stats.Errors = append(stats.Errors, r.pnl)
			percents = append(percents, r.percent)
		}
	}
	stats.Completed = len(stats.Errors)
	if stats.Completed == 0 {
		return stats
	}

	stats.MeanError, stats.StdError = stat.MeanStdDev(stats.Errors, nil)
	stats.MeanErrorPercent, stats.StdErrorPercent = stat.MeanStdDev(percents, nil)
	if stats.Completed < 2 {
		stats.StdError, stats.StdErrorPercent = 0, 0
	}

	abs := make([]float64, len(stats.Errors))
	for i, e := range stats.Errors {
		abs[i] = math.Abs(e)
	}
	stats.MaxAbsError = floats.Max(abs)

	sorted := append([]float64(nil), stats.Errors...)
	sort.Float64s(sorted)
	stats.P05Error = stat.Quantile(0.05, stat.Empirical, sorted, nil)
	stats.P95Error = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return stats
}

func progressBar(w io.Writer, length int) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		length,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("hedging paths"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetVisibility(true),
		progressbar.OptionShowDescriptionAtLineEnd(),
	)
}
