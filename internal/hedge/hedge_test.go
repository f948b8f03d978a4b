package hedge_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/testutil"
)

func constantPath(spot float64, n int) hedge.Path {
	spots := make([]float64, n)
	for i := range spots {
		spots[i] = spot
	}
	return hedge.Path{Spots: spots}
}

func TestSimulateDeepITMOnConstantPath(t *testing.T) {
	c := pricing.Contract{Spot: 100, Strike: 50, Maturity: 1, Rate: 0.05, Volatility: 0.2, Type: pricing.Call}
	run, err := hedge.Simulate(c, constantPath(100, 253), true)
	require.NoError(t, err)
	require.Len(t, run.States, 253)

	first := run.States[0]
	assert.InDelta(t, 0, first.PnL, 1e-9)
	assert.InDelta(t, 1, first.Delta, 1e-3)

	s := run.Summary
	assert.Less(t, s.TotalTraded, 1e-3)
	assert.InDelta(t, 0, s.TerminalPnL, 1e-2)
	assert.Equal(t, 50.0, s.Payoff)
	assert.Equal(t, 100.0, s.FinalSpot)
	assert.InDelta(t, s.Premium-50, s.TheoreticalPnL, 1e-12)
	assert.Equal(t, 0.0, s.RealizedVol)

	last := run.States[len(run.States)-1]
	assert.Equal(t, 0.0, last.Traded)
	assert.InDelta(t, 1, last.Time, 1e-9)
}

func TestSimulateStaticHedgeHoldsInitialPosition(t *testing.T) {
	c := testutil.HullATMCall()
	path, err := hedge.GBMPath(hedge.GBM{S0: 100, Drift: 0.05, Vol: 0.2, Maturity: 1, Steps: 52, Seed: 7})
	require.NoError(t, err)

	run, err := hedge.Simulate(c, path, false)
	require.NoError(t, err)
	s := run.Summary
	assert.Equal(t, 0, s.Rebalances)
	assert.Equal(t, 0.0, s.TotalTraded)

	shares := run.States[0].Shares
	for _, st := range run.States {
		assert.Equal(t, shares, st.Shares)
	}

	sT := path.Spots[len(path.Spots)-1]
	payoff := math.Max(sT-100, 0)
	want := (s.Premium-shares*100)*math.Exp(0.05) + shares*sT - payoff
	testutil.RequireClose(t, "static pnl", s.TerminalPnL, want, 1e-8)
	assert.Equal(t, payoff, s.Payoff)
}

func TestSimulateRebalancedTracksEveryStep(t *testing.T) {
	c := testutil.HullATMPut()
	path, err := hedge.GBMPath(hedge.GBM{S0: 100, Drift: 0.05, Vol: 0.2, Maturity: 1, Steps: 252, Seed: 11})
	require.NoError(t, err)

	run, err := hedge.Simulate(c, path, true)
	require.NoError(t, err)
	for _, st := range run.States[:len(run.States)-1] {
		assert.Equal(t, st.Delta, st.Shares, "step %d", st.Step)
		assert.LessOrEqual(t, st.Delta, 0.0)
	}
	assert.Greater(t, run.Summary.Rebalances, 200)
	assert.Greater(t, run.Summary.TotalTraded, 0.0)
	assert.InDelta(t, 0.2, run.Summary.RealizedVol, 0.05)
	// daily rebalancing keeps the error well inside the premium
	assert.Less(t, math.Abs(run.Summary.TerminalPnL), run.Summary.Premium)
}

func TestSimulateExplicitDt(t *testing.T) {
	c := testutil.HullATMCall()
	path := hedge.Path{Spots: []float64{100, 101, 99, 102, 100}, Dt: 0.25}
	run, err := hedge.Simulate(c, path, true)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, run.States[2].Time, 1e-12)
}

func TestSimulateSingleObservationAtExpiry(t *testing.T) {
	c := testutil.HullATMCall().WithSpot(105, 0)
	run, err := hedge.Simulate(c, hedge.Path{Spots: []float64{105}}, true)
	require.NoError(t, err)
	require.Len(t, run.States, 1)
	assert.Equal(t, 5.0, run.Summary.Premium)
	assert.Equal(t, 5.0, run.Summary.Payoff)
	assert.InDelta(t, 0, run.Summary.TerminalPnL, 1e-12)
}

func TestSimulateRejectsInvalidInput(t *testing.T) {
	c := testutil.HullATMCall()
	tests := []struct {
		name  string
		c     pricing.Contract
		path  hedge.Path
		field string
	}{
		{"empty path", c, hedge.Path{}, "path"},
		{"negative spot", c, hedge.Path{Spots: []float64{100, -1, 100}}, "spots[1]"},
		{"zero spot", c, hedge.Path{Spots: []float64{100, 100, 0}}, "spots[2]"},
		{"nan spot", c, hedge.Path{Spots: []float64{math.NaN(), 100}}, "spots[0]"},
		{"negative dt", c, hedge.Path{Spots: []float64{100, 100}, Dt: -1}, "dt"},
		{"span mismatch", c, hedge.Path{Spots: []float64{100, 100, 100, 100, 100}, Dt: 0.1}, "dt"},
		{"single point with maturity", c, hedge.Path{Spots: []float64{100}}, "path"},
		{"bad contract", c.WithVolatility(-1), constantPath(100, 3), "volatility"},
		{"path off contract spot", c, constantPath(101, 3), "spot"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := hedge.Simulate(tc.c, tc.path, true)
			require.Error(t, err)
			var inErr *pricing.InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tc.field, inErr.Field)
		})
	}
}

func TestGBMPathIsDeterministic(t *testing.T) {
	g := hedge.GBM{S0: 50, Drift: 0.03, Vol: 0.4, Maturity: 0.5, Steps: 100, Seed: 42}
	a, err := hedge.GBMPath(g)
	require.NoError(t, err)
	b, err := hedge.GBMPath(g)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a.Spots, 101)
	assert.InDelta(t, 0.005, a.Dt, 1e-15)
	assert.Equal(t, 50.0, a.Spots[0])

	g.Seed = 43
	c, err := hedge.GBMPath(g)
	require.NoError(t, err)
	assert.NotEqual(t, a.Spots, c.Spots)
}

func TestGBMPathZeroVolIsDeterministicGrowth(t *testing.T) {
	p, err := hedge.GBMPath(hedge.GBM{S0: 100, Drift: 0.05, Maturity: 1, Steps: 4})
	require.NoError(t, err)
	for i, s := range p.Spots {
		testutil.RequireClose(t, "spot", s, 100*math.Exp(0.05*0.25*float64(i)), 1e-10)
	}

	_, err = hedge.GBMPath(hedge.GBM{S0: 100, Vol: 0.2, Maturity: 1})
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestRealizedVolatility(t *testing.T) {
	p, err := hedge.GBMPath(hedge.GBM{S0: 100, Vol: 0.3, Maturity: 1, Steps: 10000, Seed: 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, hedge.RealizedVolatility(p.Spots, p.Dt), 0.02)

	assert.Equal(t, 0.0, hedge.RealizedVolatility([]float64{100, 101}, 0.1))
	assert.Equal(t, 0.0, hedge.RealizedVolatility(p.Spots, 0))
}

func TestRunMonteCarloRebalancingBeatsStaticHedge(t *testing.T) {
	c := testutil.HullATMCall()
	base := hedge.MonteCarlo{Paths: 200, Steps: 100, Seed: 1, Drift: c.Rate, Workers: 4}

	dyn := base
	dyn.Rebalance = true
	var buf bytes.Buffer
	dyn.Progress = &buf
	dynStats, err := hedge.RunMonteCarlo(context.Background(), c, dyn)
	require.NoError(t, err)
	assert.Equal(t, 200, dynStats.Completed)
	assert.Len(t, dynStats.Errors, 200)
	assert.Empty(t, dynStats.Failed)
	assert.Greater(t, buf.Len(), 0)

	static, err := hedge.RunMonteCarlo(context.Background(), c, base)
	require.NoError(t, err)

	assert.Less(t, dynStats.StdError, static.StdError/2)
	assert.Less(t, math.Abs(dynStats.MeanError), 0.25)
	assert.LessOrEqual(t, dynStats.P05Error, dynStats.P95Error)
	assert.GreaterOrEqual(t, dynStats.MaxAbsError, math.Abs(dynStats.MeanError))

	again, err := hedge.RunMonteCarlo(context.Background(), c, hedge.MonteCarlo{Paths: 200, Steps: 100, Seed: 1, Drift: c.Rate, Workers: 1, Rebalance: true})
	require.NoError(t, err)
	assert.Equal(t, dynStats.Errors, again.Errors)
}

func TestRunMonteCarloCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := hedge.RunMonteCarlo(ctx, testutil.HullATMCall(), hedge.MonteCarlo{Paths: 1000, Steps: 10, Workers: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, stats.Completed, 1000)
}

func TestRunMonteCarloRejectsInvalidInput(t *testing.T) {
	c := testutil.HullATMCall()
	_, err := hedge.RunMonteCarlo(context.Background(), c, hedge.MonteCarlo{Steps: 10})
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
	_, err = hedge.RunMonteCarlo(context.Background(), c, hedge.MonteCarlo{Paths: 10})
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
	_, err = hedge.RunMonteCarlo(context.Background(), c.WithSpot(100, 0), hedge.MonteCarlo{Paths: 10, Steps: 10})
	assert.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestRunMonteCarloRejectsOversizedBatch(t *testing.T) {
	c := testutil.HullATMCall()
	tests := []struct {
		name  string
		mc    hedge.MonteCarlo
		field string
	}{
		{"huge steps", hedge.MonteCarlo{Paths: 1, Steps: 1 << 62}, "steps"},
		{"steps over max", hedge.MonteCarlo{Paths: 1, Steps: hedge.MaxSteps + 1}, "steps"},
		{"paths over max", hedge.MonteCarlo{Paths: hedge.MaxPaths + 1, Steps: 10}, "paths"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stats, err := hedge.RunMonteCarlo(context.Background(), c, tc.mc)
			require.Error(t, err)
			var inErr *pricing.InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tc.field, inErr.Field)
			assert.Zero(t, stats.Completed)
		})
	}
}

func TestGBMPathRejectsHugeSteps(t *testing.T) {
	_, err := hedge.GBMPath(hedge.GBM{S0: 100, Vol: 0.2, Maturity: 1, Steps: 1 << 62})
	var inErr *pricing.InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, "steps", inErr.Field)
}
