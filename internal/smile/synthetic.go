package smile

import (
	"math"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

// minSyntheticVol floors the parametric smile.
const minSyntheticVol = 0.05

// Synthetic parameterises a quadratic smile in moneyness m=K/S:
//
//	sigma(m) = BaseVol + Skew*(m-1) + Convexity*(m-1)^2
//
// Equity-like smirks use a negative Skew. Strikes defaults to 80%..120% of
// spot in 5% steps.
type Synthetic struct {
	Spot          float64   `json:"spot"`
	Maturity      float64   `json:"maturity"`
	Rate          float64   `json:"rate"`
	DividendYield float64   `json:"dividend_yield,omitempty"`
	BaseVol       float64   `json:"base_vol"`
	Skew          float64   `json:"skew"`
	Convexity     float64   `json:"convexity"`
	Strikes       []float64 `json:"strikes,omitempty"`
}

// SyntheticQuote is a generated quote with the volatility that produced it.
type SyntheticQuote struct {
	Quote
	TrueVol float64 `json:"true_vol" csv:"true_vol"`
}

// Vol evaluates the parametric smile at strike k.
func (s Synthetic) Vol(k float64) float64 {
	m := k/s.Spot - 1
	return math.Max(s.BaseVol+s.Skew*m+s.Convexity*m*m, minSyntheticVol)
}

// GenerateQuotes prices one option per strike under the parametric smile:
// puts below spot and calls at or above it.
func (s Synthetic) GenerateQuotes() ([]SyntheticQuote, error) {
	strikes := s.Strikes
	if len(strikes) == 0 {
		for i := 0; i < 9; i++ {
			strikes = append(strikes, s.Spot*(0.80+0.05*float64(i)))
		}
	}

	out := make([]SyntheticQuote, 0, len(strikes))
	for _, k := range strikes {
		typ := pricing.Call
		if k < s.Spot {
			typ = pricing.Put
		}
		vol := s.Vol(k)
		p, err := pricing.Price(pricing.Contract{
			Spot:          s.Spot,
			Strike:        k,
			Maturity:      s.Maturity,
			Rate:          s.Rate,
			Volatility:    vol,
			DividendYield: s.DividendYield,
			Type:          typ,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, SyntheticQuote{Quote: Quote{Strike: k, MarketPrice: p, Type: typ}, TrueVol: vol})
	}
	return out, nil
}

// GenerateQuotes is a shorthand for s.GenerateQuotes.
func GenerateQuotes(s Synthetic) ([]SyntheticQuote, error) {
	return s.GenerateQuotes()
}

// Input turns the generated quotes into a smile Input on the same market.
func (s Synthetic) Input(quotes []SyntheticQuote) Input {
	in := Input{Maturity: s.Maturity, Rate: s.Rate, Spot: s.Spot, DividendYield: s.DividendYield}
	for _, q := range quotes {
		in.Quotes = append(in.Quotes, q.Quote)
	}
	return in
}
