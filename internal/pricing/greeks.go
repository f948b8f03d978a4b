package pricing

import (
	"math"
)

// Greeks holds the first-order sensitivities of one option, plus Gamma,
// in the engine's natural units:
//   - Delta, Gamma: per 1.0 move of the underlying
//   - Vega: per 1.00 (100 vol points) of volatility
//   - Theta: per year of calendar time, negative for a long ATM call
//   - Rho: per 1.00 of the risk-free rate
//
// Use Scaled for the per-1%/per-day presentation convention.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// Scaled converts g to trader units: Vega and Rho per 1% move, Theta per
// calendar day (365-day year).
func (g Greeks) Scaled() Greeks {
	return Greeks{
		Delta: g.Delta,
		Gamma: g.Gamma,
		Vega:  g.Vega / 100,
		Theta: g.Theta / 365,
		Rho:   g.Rho / 100,
	}
}

// ComputeAll calculates Delta, Gamma, Vega, Theta and Rho for c.
//
// Degenerate contracts (zero maturity or zero volatility) resolve to their
// limiting values: Delta becomes the discounted moneyness indicator of the
// forward (one half exactly at the money), Gamma and Vega are zero, and Theta
// and Rho keep only the carry of the in-the-money leg.
func ComputeAll(c Contract) (Greeks, error) {
	if err := c.Validate(); err != nil {
		return Greeks{}, err
	}
	return computeAll(c), nil
}

func computeAll(c Contract) Greeks {
	eq := math.Exp(-c.DividendYield * c.Maturity)
	fwdS, pvK := discountedLegs(c)

	if c.Maturity == 0 || c.Volatility == 0 {
		ind := moneynessIndicator(fwdS, pvK)
		if c.IsCall() {
			return Greeks{
				Delta: eq * ind,
				Theta: ind * (c.DividendYield*fwdS - c.Rate*pvK),
				Rho:   ind * c.Maturity * pvK,
			}
		}
		return Greeks{
			Delta: eq * (ind - 1),
			Theta: (1 - ind) * (c.Rate*pvK - c.DividendYield*fwdS),
			Rho:   -(1 - ind) * c.Maturity * pvK,
		}
	}

	sqrtT := math.Sqrt(c.Maturity)
	d1, d2 := d1d2(c)
	pdf := NormPDF(d1)
	decay := -fwdS * pdf * c.Volatility / (2 * sqrtT)

	g := Greeks{
		Gamma: eq * pdf / (c.Spot * c.Volatility * sqrtT),
		Vega:  fwdS * pdf * sqrtT,
	}
	if c.IsCall() {
		g.Delta = eq * NormCDF(d1)
		g.Theta = decay - c.Rate*pvK*NormCDF(d2) + c.DividendYield*fwdS*NormCDF(d1)
		g.Rho = c.Maturity * pvK * NormCDF(d2)
	} else {
		g.Delta = eq * (NormCDF(d1) - 1)
		g.Theta = decay + c.Rate*pvK*NormCDF(-d2) - c.DividendYield*fwdS*NormCDF(-d1)
		g.Rho = -c.Maturity * pvK * NormCDF(-d2)
	}
	return g
}

// Delta is ComputeAll(c).Delta.
func Delta(c Contract) (float64, error) {
	g, err := ComputeAll(c)
	return g.Delta, err
}

// Vega is ComputeAll(c).Vega; it is identical for calls and puts.
func Vega(c Contract) (float64, error) {
	g, err := ComputeAll(c)
	return g.Vega, err
}

// moneynessIndicator is 1 when the forward is in the money for a call,
// 0 when out of the money and 0.5 at the money.
func moneynessIndicator(fwdS, pvK float64) float64 {
	switch {
	case fwdS > pvK:
		return 1
	case fwdS < pvK:
		return 0
	}
	return 0.5
}
