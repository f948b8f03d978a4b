package impliedvol_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/impliedvol"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/testutil"
)

func TestSolveReferenceCase(t *testing.T) {
	c := testutil.HullATMCall()
	c.Volatility = 0.9 // ignored

	r, err := impliedvol.Solve(c, 10.4506, impliedvol.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, r.Converged)
	assert.Equal(t, impliedvol.Newton, r.Method)
	testutil.RequireClose(t, "sigma", r.ImpliedVol, 0.2, 1e-4)
	assert.Less(t, r.FinalPriceError, 1e-6)
	assert.LessOrEqual(t, r.Iterations, 10)
}

func TestSolveRoundTrip(t *testing.T) {
	opts := impliedvol.DefaultOptions()
	for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
		for _, sigma := range []float64{0.05, 0.2, 0.5, 1, 2} {
			for _, mat := range []float64{0.1, 1, 3} {
				for _, k := range []float64{90, 100, 110} {
					c := pricing.Contract{Spot: 100, Strike: k, Maturity: mat, Rate: 0.05, Volatility: sigma, Type: typ}
					vega, err := pricing.Vega(c)
					require.NoError(t, err)
					if vega < 0.5 {
						continue
					}
					name := fmt.Sprintf("%s/sigma=%v/T=%v/K=%v", typ, sigma, mat, k)
					t.Run(name, func(t *testing.T) {
						observed, err := pricing.Price(c)
						require.NoError(t, err)

						r, err := impliedvol.Solve(c.WithVolatility(0), observed, opts)
						require.NoError(t, err)
						testutil.RequireClose(t, "sigma", r.ImpliedVol, sigma, 1e-4)

						back, err := pricing.Price(c.WithVolatility(r.ImpliedVol))
						require.NoError(t, err)
						testutil.RequireClose(t, "price", back, observed, 1e-6)
					})
				}
			}
		}
	}
}

func TestSolveRoundTripHighVolLongDated(t *testing.T) {
	opts := impliedvol.DefaultOptions()
	for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
		for _, sigma := range []float64{2.5, 2.99} {
			for _, k := range []float64{95, 100, 105} {
				c := pricing.Contract{Spot: 100, Strike: k, Maturity: 4.99, Rate: 0.05, Volatility: sigma, Type: typ}
				t.Run(fmt.Sprintf("%s/sigma=%v/K=%v", typ, sigma, k), func(t *testing.T) {
					observed, err := pricing.Price(c)
					require.NoError(t, err)

					r, err := impliedvol.Solve(c.WithVolatility(0), observed, opts)
					require.NoError(t, err)
					assert.True(t, r.Converged)
					testutil.RequireClose(t, "sigma", r.ImpliedVol, sigma, 1e-4)
				})
			}
		}
	}
}

func TestSolveFallsBackToBisectionOnFlatVega(t *testing.T) {
	c := pricing.Contract{Spot: 100, Strike: 200, Maturity: 0.05, Volatility: 1.0, Type: pricing.Call}
	observed, err := pricing.Price(c)
	require.NoError(t, err)

	r, err := impliedvol.Solve(c, observed, impliedvol.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, impliedvol.Bisection, r.Method)
	testutil.RequireClose(t, "sigma", r.ImpliedVol, 1.0, 1e-3)
}

func TestSolveRejectsInvalidInput(t *testing.T) {
	base := pricing.Contract{Spot: 120, Strike: 100, Maturity: 1, Rate: 0.05, Type: pricing.Call}
	tests := []struct {
		name     string
		c        pricing.Contract
		observed float64
		field    string
	}{
		{"below intrinsic", base, 20, "market_price"},
		{"above spot", base, 121, "market_price"},
		{"put above strike", pricing.Contract{Spot: 120, Strike: 100, Maturity: 1, Type: pricing.Put}, 101, "market_price"},
		{"zero maturity", base.WithSpot(120, 0), 20, "maturity"},
		{"nan price", base, math.NaN(), "market_price"},
		{"bad spot", base.WithSpot(-5, 1), 20, "spot"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := impliedvol.Solve(tc.c, tc.observed, impliedvol.Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, pricing.ErrInvalidInput)
			assert.False(t, errors.Is(err, impliedvol.ErrNoConvergence))
			var inErr *pricing.InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tc.field, inErr.Field)
		})
	}
}

func TestSolveNoBracketBelowCeiling(t *testing.T) {
	// needs a volatility far above 500%
	c := pricing.Contract{Spot: 100, Strike: 100, Maturity: 1, Type: pricing.Call}
	_, err := impliedvol.Solve(c, 99.9, impliedvol.DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, impliedvol.ErrNoConvergence)

	var convErr *impliedvol.ConvergenceError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, 5.0, convErr.Sigma)
	assert.Less(t, convErr.Residual, 0.0)
	assert.Contains(t, err.Error(), "did not converge")
}

func TestSolveExhaustsBudget(t *testing.T) {
	c := pricing.Contract{Spot: 100, Strike: 100, Maturity: 1, Volatility: 1.3, Type: pricing.Call}
	observed, err := pricing.Price(c)
	require.NoError(t, err)

	opts := impliedvol.Options{MaxIterations: 1, MaxBisectionIterations: 2, Tolerance: 1e-13}
	_, err = impliedvol.Solve(c, observed, opts)
	require.Error(t, err)

	var convErr *impliedvol.ConvergenceError
	require.True(t, errors.As(err, &convErr))
	assert.Greater(t, convErr.Iterations, 1)
	assert.False(t, errors.Is(err, pricing.ErrInvalidInput))
}

func TestSolveBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	good := testutil.HullATMCall()
	items := []impliedvol.Request{
		{Contract: good, MarketPrice: 10.450583572185565},
		{Contract: good, MarketPrice: 500},
		{Contract: good.WithSpot(100, 0), MarketPrice: 1},
		{Contract: testutil.HullATMPut(), MarketPrice: 5.573526022256971},
	}

	out := impliedvol.SolveBatch(items, impliedvol.DefaultOptions())
	require.Len(t, out, len(items))

	require.NoError(t, out[0].Err)
	testutil.RequireClose(t, "call", out[0].Result.ImpliedVol, 0.2, 1e-6)
	assert.ErrorIs(t, out[1].Err, pricing.ErrInvalidInput)
	assert.ErrorIs(t, out[2].Err, pricing.ErrInvalidInput)
	require.NoError(t, out[3].Err)
	testutil.RequireClose(t, "put", out[3].Result.ImpliedVol, 0.2, 1e-6)
	assert.Equal(t, items[3], out[3].Request)

	assert.Empty(t, impliedvol.SolveBatch(nil, impliedvol.Options{}))
}
