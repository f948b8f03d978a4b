// Package validation checks the pricing engine and implied volatility solver
// against a synthetic panel of quoted options with known volatilities.
package validation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Underlying is one stock of the panel.
type Underlying struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Spot   float64 `json:"spot"`
	Vol    float64 `json:"vol"`
}

// PanelSpec describes the grid of options to generate: every underlying,
// maturity and moneyness gets one call and one put.
type PanelSpec struct {
	Underlyings      []Underlying `json:"underlyings"`
	MaturitiesMonths []int        `json:"maturities_months"`
	Moneyness        []float64    `json:"moneyness"`
	Rate             float64      `json:"rate"`
	// SmileConvexity adds SmileConvexity*(K/S-1)^2 to the base vol.
	SmileConvexity float64 `json:"smile_convexity"`
	// Noise is the half-width of the uniform multiplicative error applied
	// to model prices to produce market prices.
	Noise float64 `json:"noise"`
	Seed  uint64  `json:"seed"`
}

// DefaultPanelSpec is a 420 option panel on five large-cap stocks with a
// +/-0.3% quote noise.
func DefaultPanelSpec() PanelSpec {
	return PanelSpec{
		Underlyings: []Underlying{
			{Ticker: "TTE.PA", Name: "TotalEnergies", Spot: 58.50, Vol: 0.22},
			{Ticker: "MC.PA", Name: "LVMH", Spot: 750.00, Vol: 0.25},
			{Ticker: "AIR.PA", Name: "Airbus", Spot: 135.00, Vol: 0.28},
			{Ticker: "SAN.PA", Name: "Sanofi", Spot: 92.00, Vol: 0.18},
			{Ticker: "BNP.PA", Name: "BNP Paribas", Spot: 62.00, Vol: 0.30},
		},
		MaturitiesMonths: []int{1, 2, 3, 6, 9, 12},
		Moneyness:        []float64{0.85, 0.90, 0.95, 1.00, 1.05, 1.10, 1.15},
		Rate:             0.035,
		SmileConvexity:   0.05,
		Noise:            0.003,
		Seed:             42,
	}
}

// Option is one generated quote with the volatility and model price behind
// it.
type Option struct {
	ID          int                `json:"id" csv:"id"`
	Ticker      string             `json:"ticker" csv:"ticker"`
	Type        pricing.OptionType `json:"type" csv:"type"`
	Spot        float64            `json:"spot" csv:"spot"`
	Strike      float64            `json:"strike" csv:"strike"`
	Maturity    float64            `json:"maturity" csv:"maturity"`
	Rate        float64            `json:"rate" csv:"rate"`
	Moneyness   float64            `json:"moneyness" csv:"moneyness"`
	Volatility  float64            `json:"volatility" csv:"volatility"`
	ModelPrice  float64            `json:"model_price" csv:"model_price"`
	MarketPrice float64            `json:"market_price" csv:"market_price"`
}

// Contract returns the priced contract of o.
func (o Option) Contract() pricing.Contract {
	return pricing.Contract{
		Spot:       o.Spot,
		Strike:     o.Strike,
		Maturity:   o.Maturity,
		Rate:       o.Rate,
		Volatility: o.Volatility,
		Type:       o.Type,
	}
}

// GeneratePanel builds the option panel described by spec. Strikes are
// rounded to cents. The same Seed always yields the same market prices.
func GeneratePanel(spec PanelSpec) ([]Option, error) {
	if len(spec.Underlyings) == 0 || len(spec.MaturitiesMonths) == 0 || len(spec.Moneyness) == 0 {
		return nil, fmt.Errorf("%w: panel needs underlyings, maturities and moneyness levels", pricing.ErrInvalidInput)
	}
	if spec.Noise < 0 || spec.Noise >= 1 {
		return nil, pricing.NewInputError("noise", spec.Noise, "must be in [0, 1)")
	}

	noise := distuv.Uniform{Min: -spec.Noise, Max: spec.Noise, Src: rand.NewSource(spec.Seed)}
	var out []Option
	id := 1
	for _, u := range spec.Underlyings {
		for _, months := range spec.MaturitiesMonths {
			for _, m := range spec.Moneyness {
				strike := decimal.NewFromFloat(u.Spot * m).Round(2).InexactFloat64()
				base := pricing.Contract{
					Spot:       u.Spot,
					Strike:     strike,
					Maturity:   float64(months) / 12,
					Rate:       spec.Rate,
					Volatility: u.Vol + spec.SmileConvexity*math.Pow(m-1, 2),
				}
				for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
					c := base
					c.Type = typ
					model, err := pricing.Price(c)
					if err != nil {
						return nil, fmt.Errorf("%s %s K=%.2f: %w", u.Ticker, typ, strike, err)
					}
					var eps float64
					if spec.Noise > 0 {
						eps = noise.Rand()
					}
					out = append(out, Option{
						ID:          id,
						Ticker:      u.Ticker,
						Type:        typ,
						Spot:        c.Spot,
						Strike:      c.Strike,
						Maturity:    c.Maturity,
						Rate:        c.Rate,
						Moneyness:   m,
						Volatility:  c.Volatility,
						ModelPrice:  model,
						MarketPrice: model * (1 + eps),
					})
					id++
				}
			}
		}
	}
	return out, nil
}
