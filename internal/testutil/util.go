// Package testutil holds fixtures and float comparison helpers shared by the
// package tests.
package testutil

import (
	"math"
	"testing"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

// HullATMCall is the textbook at-the-money call: S=K=100, T=1, r=5%, sigma=20%.
// Reference values: price 10.4506, delta 0.6368, gamma 0.01876, vega 37.52.
func HullATMCall() pricing.Contract {
	return pricing.Contract{
		Spot:       100,
		Strike:     100,
		Maturity:   1,
		Rate:       0.05,
		Volatility: 0.20,
		Type:       pricing.Call,
	}
}

// HullATMPut is HullATMCall with the put right.
func HullATMPut() pricing.Contract {
	c := HullATMCall()
	c.Type = pricing.Put
	return c
}

// Grid is a small cross product of contract parameters used by the
// property-style tests.
type Grid struct {
	Spots, Strikes, Maturities, Rates, Vols, Yields []float64
}

// DefaultGrid spans moderate moneyness, short to long maturities, low to
// high volatility, with and without dividends.
func DefaultGrid() Grid {
	return Grid{
		Spots:      []float64{100},
		Strikes:    []float64{70, 90, 100, 110, 140},
		Maturities: []float64{0.02, 0.25, 1, 3},
		Rates:      []float64{-0.01, 0, 0.05},
		Vols:       []float64{0.05, 0.2, 0.6, 1.5},
		Yields:     []float64{0, 0.03},
	}
}

// Each calls fn once per contract in the grid for the given option type.
func (g Grid) Each(typ pricing.OptionType, fn func(pricing.Contract)) {
	for _, s := range g.Spots {
		for _, k := range g.Strikes {
			for _, t := range g.Maturities {
				for _, r := range g.Rates {
					for _, v := range g.Vols {
						for _, q := range g.Yields {
							fn(pricing.Contract{Spot: s, Strike: k, Maturity: t, Rate: r, Volatility: v, DividendYield: q, Type: typ})
						}
					}
				}
			}
		}
	}
}

// AlmostEqual reports whether a and b differ by at most tol.
func AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// RequireClose fails the test when got is further than tol from want.
func RequireClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if !AlmostEqual(got, want, tol) {
		t.Fatalf("%s: got %.10g, want %.10g (tol %g)", name, got, want, tol)
	}
}
