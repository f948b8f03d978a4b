// Package smile builds implied volatility smiles from a strip of quotes on
// one maturity and summarises their shape.
package smile

import (
	"fmt"
	"sort"

	"github.com/contactkeval/option-greeks/internal/impliedvol"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Quote is an observed option price at one strike.
type Quote struct {
	Strike      float64            `json:"strike" csv:"strike"`
	MarketPrice float64            `json:"market_price" csv:"market_price"`
	Type        pricing.OptionType `json:"type" csv:"type"`
}

// Input describes one maturity slice of a chain.
type Input struct {
	Maturity      float64            `json:"maturity"`
	Rate          float64            `json:"rate"`
	Spot          float64            `json:"spot"`
	DividendYield float64            `json:"dividend_yield,omitempty"`
	Quotes        []Quote            `json:"quotes"`
	Solver        impliedvol.Options `json:"solver,omitempty"`
}

// Point is one solved strike of the smile.
type Point struct {
	Strike      float64            `json:"strike" csv:"strike"`
	Moneyness   float64            `json:"moneyness" csv:"moneyness"`
	ImpliedVol  float64            `json:"implied_vol" csv:"implied_vol"`
	MarketPrice float64            `json:"market_price" csv:"market_price"`
	Type        pricing.OptionType `json:"type" csv:"type"`
	Iterations  int                `json:"iterations" csv:"iterations"`
	Method      impliedvol.Method  `json:"method" csv:"method"`
}

// Failure records a quote whose implied volatility could not be solved.
type Failure struct {
	Strike float64            `json:"strike"`
	Type   pricing.OptionType `json:"type"`
	Err    string             `json:"error"`
}

// Table is a built smile. Points are strictly ascending by strike.
type Table struct {
	Spot     float64   `json:"spot"`
	Maturity float64   `json:"maturity"`
	Points   []Point   `json:"points"`
	Failures []Failure `json:"failures,omitempty"`
}

// Build solves the implied volatility of every quote in in.
//
// Quotes that fail to solve are recorded in Table.Failures and the rest of
// the smile is kept. Duplicate strikes, an empty quote list or invalid market
// terms fail the whole build with an InvalidInput error.
func Build(in Input) (Table, error) {
	base := pricing.Contract{
		Spot:          in.Spot,
		Strike:        1,
		Maturity:      in.Maturity,
		Rate:          in.Rate,
		DividendYield: in.DividendYield,
		Type:          pricing.Call,
	}
	if err := base.ValidateNoVol(); err != nil {
		return Table{}, err
	}
	if in.Maturity <= 0 {
		return Table{}, pricing.NewInputError("maturity", in.Maturity, "must be positive to build a smile")
	}
	if len(in.Quotes) == 0 {
		return Table{}, fmt.Errorf("%w: smile has no quotes", pricing.ErrInvalidInput)
	}

	quotes := make([]Quote, len(in.Quotes))
	copy(quotes, in.Quotes)
	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Strike < quotes[j].Strike })
	for i := 1; i < len(quotes); i++ {
		if quotes[i].Strike == quotes[i-1].Strike {
			return Table{}, pricing.NewInputError("strike", quotes[i].Strike, "duplicate strike in smile")
		}
	}

	t := Table{Spot: in.Spot, Maturity: in.Maturity, Points: make([]Point, 0, len(quotes))}
	for _, q := range quotes {
		c := base
		c.Strike = q.Strike
		c.Type = q.Type

		r, err := impliedvol.Solve(c, q.MarketPrice, in.Solver)
		if err != nil {
			logger.Debugf("smile: skipping %s K=%.4f price=%.6f: %v", q.Type, q.Strike, q.MarketPrice, err)
			t.Failures = append(t.Failures, Failure{Strike: q.Strike, Type: q.Type, Err: err.Error()})
			continue
		}
		t.Points = append(t.Points, Point{
			Strike:      q.Strike,
			Moneyness:   q.Strike / in.Spot,
			ImpliedVol:  r.ImpliedVol,
			MarketPrice: q.MarketPrice,
			Type:        q.Type,
			Iterations:  r.Iterations,
			Method:      r.Method,
		})
	}
	return t, nil
}

// Strikes returns the solved strikes in ascending order.
func (t Table) Strikes() []float64 {
	out := make([]float64, len(t.Points))
	for i, p := range t.Points {
		out[i] = p.Strike
	}
	return out
}

// Vols returns the implied volatilities aligned with Strikes.
func (t Table) Vols() []float64 {
	out := make([]float64, len(t.Points))
	for i, p := range t.Points {
		out[i] = p.ImpliedVol
	}
	return out
}
