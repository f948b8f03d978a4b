// Package hedge simulates a discretely rebalanced delta hedge of a short
// European option and measures the resulting hedging error.
package hedge

import (
	"fmt"
	"math"

	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// Path is an ordered series of spot observations spaced Dt years apart.
// A zero Dt spreads the points evenly over the contract maturity.
type Path struct {
	Spots []float64 `json:"spots"`
	Dt    float64   `json:"dt,omitempty"`
}

// State is the hedge book after the trade (if any) at one step.
type State struct {
	Step        int     `json:"step" csv:"step"`
	Time        float64 `json:"time" csv:"time"`
	Spot        float64 `json:"spot" csv:"spot"`
	Delta       float64 `json:"delta" csv:"delta"`
	Shares      float64 `json:"shares" csv:"shares"`
	Traded      float64 `json:"traded" csv:"traded"`
	OptionValue float64 `json:"option_value" csv:"option_value"`
	Cash        float64 `json:"cash" csv:"cash"`
	PnL         float64 `json:"pnl" csv:"pnl"`
}

// Summary aggregates one simulation run.
type Summary struct {
	Premium        float64 `json:"premium"`
	FinalSpot      float64 `json:"final_spot"`
	Payoff         float64 `json:"payoff"`
	TheoreticalPnL float64 `json:"theoretical_pnl"`
	// TerminalPnL is the hedging error: cash plus shares minus the payoff
	// owed at maturity.
	TerminalPnL  float64 `json:"terminal_pnl"`
	ErrorPercent float64 `json:"error_percent"`
	TotalTraded  float64 `json:"total_traded"`
	Rebalances   int     `json:"rebalances"`
	RealizedVol  float64 `json:"realized_vol"`
}

// Run is the full history of one simulation.
type Run struct {
	States  []State `json:"states"`
	Summary Summary `json:"summary"`
}

// maturityTolerance is the relative slack allowed between the path span
// and the contract maturity.
const maturityTolerance = 1e-6

// spotTolerance is the relative slack allowed between the first path
// observation and the contract spot.
const spotTolerance = 1e-9

// Simulate sells one option c at its model price and delta hedges it along
// path. The path starts at the contract spot.
//
// At t=0 the premium buys Delta shares and the remainder sits in cash.
// Between steps cash accrues at the risk-free rate and held shares pay the
// dividend yield into cash. With rebalanceEachStep the position is reset to
// the model Delta at every intermediate step; otherwise the initial hedge is
// held to maturity. At the last step the option settles at intrinsic value
// and no trade is made.
//
// Errors:
//
//	An InvalidInput error when c is invalid, the path is empty or holds a
//	non-positive spot, the first spot differs from c.Spot, Dt is negative,
//	or (len-1)*Dt does not match the contract maturity.
func Simulate(c pricing.Contract, path Path, rebalanceEachStep bool) (Run, error) {
	dt, err := validate(c, path)
	if err != nil {
		return Run{}, err
	}

	n := len(path.Spots)
	s0 := path.Spots[0]
	premium, err := pricing.Price(c)
	if err != nil {
		return Run{}, err
	}
	delta, err := pricing.Delta(c)
	if err != nil {
		return Run{}, err
	}

	states := make([]State, 0, n)
	shares := delta
	cash := premium - shares*s0
	states = append(states, State{
		Spot:        s0,
		Delta:       delta,
		Shares:      shares,
		Traded:      shares,
		OptionValue: premium,
		Cash:        cash,
		PnL:         cash + shares*s0 - premium,
	})

	var totalTraded float64
	var rebalances int
	growth := math.Exp(c.Rate * dt)
	carry := math.Exp(c.DividendYield*dt) - 1

	for i := 1; i < n; i++ {
		spot := path.Spots[i]
		t := float64(i) * dt
		tau := math.Max(c.Maturity-t, 0)
		if i == n-1 {
			tau = 0
		}

		cash = cash*growth + shares*path.Spots[i-1]*carry

		at := c.WithSpot(spot, tau)
		value, err := pricing.Price(at)
		if err != nil {
			return Run{}, err
		}
		delta, err = pricing.Delta(at)
		if err != nil {
			return Run{}, err
		}

		var traded float64
		if rebalanceEachStep && i < n-1 {
			traded = delta - shares
			shares = delta
			cash -= traded * spot
			if traded != 0 {
				rebalances++
				totalTraded += math.Abs(traded)
			}
		}

		states = append(states, State{
			Step:        i,
			Time:        t,
			Spot:        spot,
			Delta:       delta,
			Shares:      shares,
			Traded:      traded,
			OptionValue: value,
			Cash:        cash,
			PnL:         cash + shares*spot - value,
		})
	}

	last := states[len(states)-1]
	sum := Summary{
		Premium:        premium,
		FinalSpot:      last.Spot,
		Payoff:         last.OptionValue,
		TheoreticalPnL: premium - last.OptionValue,
		TerminalPnL:    last.PnL,
		TotalTraded:    totalTraded,
		Rebalances:     rebalances,
		RealizedVol:    RealizedVolatility(path.Spots, dt),
	}
	if premium > 0 {
		sum.ErrorPercent = math.Abs(last.PnL) / premium * 100
	}
	logger.Tracef("hedge: %d steps premium=%.4f terminal pnl=%.4f rebalances=%d", n, premium, last.PnL, rebalances)
	return Run{States: states, Summary: sum}, nil
}

// validate checks c and path and returns the step length in years.
func validate(c pricing.Contract, path Path) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	n := len(path.Spots)
	if n == 0 {
		return 0, pricing.NewInputError("path", 0, "no spot observations")
	}
	for i, s := range path.Spots {
		if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
			return 0, pricing.NewInputError(fmt.Sprintf("spots[%d]", i), s, "must be positive and finite")
		}
	}
	if math.Abs(path.Spots[0]-c.Spot) > spotTolerance*c.Spot {
		return 0, pricing.NewInputError("spot", c.Spot, fmt.Sprintf("path starts at %g", path.Spots[0]))
	}
	if math.IsNaN(path.Dt) || math.IsInf(path.Dt, 0) || path.Dt < 0 {
		return 0, pricing.NewInputError("dt", path.Dt, "must be non-negative and finite")
	}
	if n == 1 {
		if c.Maturity > 0 {
			return 0, pricing.NewInputError("path", 1, "a single observation cannot span a positive maturity")
		}
		return 0, nil
	}

	dt := path.Dt
	if dt == 0 {
		dt = c.Maturity / float64(n-1)
	}
	span := float64(n-1) * dt
	if math.Abs(span-c.Maturity) > maturityTolerance*math.Max(1, c.Maturity) {
		return 0, pricing.NewInputError("dt", path.Dt,
			fmt.Sprintf("%d steps span %.6f years, contract maturity is %.6f", n-1, span, c.Maturity))
	}
	return dt, nil
}
