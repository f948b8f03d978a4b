package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/smile"
	"github.com/contactkeval/option-greeks/internal/validation"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	goodColor   = color.New(color.FgGreen).SprintFunc()
	badColor    = color.New(color.FgRed).SprintFunc()
	atmColor    = color.New(color.FgYellow).SprintFunc()
)

func signed(x float64) string {
	s := fmt.Sprintf("%+.4f", x)
	if x < 0 {
		return badColor(s)
	}
	return goodColor(s)
}

func verdict(ok bool) string {
	if ok {
		return goodColor("PASS")
	}
	return badColor("FAIL")
}

// PrintGreeks renders the price and Greeks of c, in both natural and
// trader units.
func PrintGreeks(w io.Writer, c pricing.Contract, price float64, g pricing.Greeks) {
	s := g.Scaled()
	fmt.Fprintln(w, headerColor(fmt.Sprintf("%s S=%.2f K=%.2f T=%.4f r=%.4f q=%.4f vol=%.4f",
		c.Type, c.Spot, c.Strike, c.Maturity, c.Rate, c.DividendYield, c.Volatility)))
	fmt.Fprintf(w, "%-8s %14s\n", "Price", fixed(price, pricePlaces))
	fmt.Fprintf(w, "%-8s %14s %14s\n", "", "per unit", "trader")
	fmt.Fprintf(w, "%-8s %14.6f %14.6f\n", "Delta", g.Delta, s.Delta)
	fmt.Fprintf(w, "%-8s %14.6f %14.6f\n", "Gamma", g.Gamma, s.Gamma)
	fmt.Fprintf(w, "%-8s %14.6f %14.6f  (per 1%% vol)\n", "Vega", g.Vega, s.Vega)
	fmt.Fprintf(w, "%-8s %14.6f %14.6f  (per day)\n", "Theta", g.Theta, s.Theta)
	fmt.Fprintf(w, "%-8s %14.6f %14.6f  (per 1%% rate)\n", "Rho", g.Rho, s.Rho)
}

// PrintSmile renders the smile table with the ATM strike highlighted,
// followed by its diagnostics and failures.
func PrintSmile(w io.Writer, t smile.Table) {
	d := t.Diagnostics()
	fmt.Fprintln(w, headerColor(fmt.Sprintf("Smile S=%.2f T=%.4f (%d points)", t.Spot, t.Maturity, len(t.Points))))
	fmt.Fprintf(w, "%-10s %-10s %-5s %-12s %-10s %-6s %s\n", "Strike", "K/S", "Type", "Price", "IV", "Iter", "Method")
	for _, p := range t.Points {
		line := fmt.Sprintf("%-10.2f %-10.4f %-5s %-12.4f %-10.4f %-6d %s",
			p.Strike, p.Moneyness, p.Type, p.MarketPrice, p.ImpliedVol, p.Iterations, p.Method)
		if p.Strike == d.ATMStrike {
			line = atmColor(line)
		}
		fmt.Fprintln(w, line)
	}
	for _, f := range t.Failures {
		fmt.Fprintln(w, badColor(fmt.Sprintf("%-10.2f %-5s %s", f.Strike, f.Type, f.Err)))
	}

	if d.Points == 0 {
		return
	}
	fmt.Fprintf(w, "Vol range  %.4f .. %.4f (smile present: %t)\n", d.MinVol, d.MaxVol, d.Present)
	fmt.Fprintf(w, "ATM        K=%.2f vol=%.4f\n", d.ATMStrike, d.ATMVol)
	fmt.Fprintf(w, "Skew       %s (slope %.6f per unit strike)\n", signed(d.Skew), d.SkewSlope)
	if d.HasLowWing && d.HasHighWing {
		fmt.Fprintf(w, "Wings      low=%.4f high=%.4f curvature=%s\n", d.LowWingVol, d.HighWingVol, signed(d.Curvature))
	}
}

// PrintHedge renders the summary of one hedge simulation.
func PrintHedge(w io.Writer, s hedge.Summary) {
	fmt.Fprintln(w, headerColor("Delta hedge"))
	fmt.Fprintf(w, "Premium received   %s\n", fixed(s.Premium, pricePlaces))
	fmt.Fprintf(w, "Final spot         %s\n", fixed(s.FinalSpot, pricePlaces))
	fmt.Fprintf(w, "Payoff owed        %s\n", fixed(s.Payoff, pricePlaces))
	fmt.Fprintf(w, "Hedging P&L        %s (%.2f%% of premium)\n", signed(s.TerminalPnL), s.ErrorPercent)
	fmt.Fprintf(w, "Rebalances         %d, shares traded %.4f\n", s.Rebalances, s.TotalTraded)
	fmt.Fprintf(w, "Realized vol       %.4f\n", s.RealizedVol)
}

// PrintMonteCarlo renders the error distribution of a Monte Carlo batch.
func PrintMonteCarlo(w io.Writer, s hedge.MonteCarloStats) {
	fmt.Fprintln(w, headerColor(fmt.Sprintf("Monte Carlo hedge (%d/%d paths)", s.Completed, s.Paths)))
	fmt.Fprintf(w, "Mean error   %s (%.2f%% of premium)\n", signed(s.MeanError), s.MeanErrorPercent)
	fmt.Fprintf(w, "Std error    %.4f (%.2f%% of premium)\n", s.StdError, s.StdErrorPercent)
	fmt.Fprintf(w, "5%%..95%%     %.4f .. %.4f\n", s.P05Error, s.P95Error)
	fmt.Fprintf(w, "Max |error|  %.4f\n", s.MaxAbsError)
	if n := len(s.Failed); n > 0 {
		fmt.Fprintln(w, badColor(fmt.Sprintf("%d paths failed, first: %s", n, s.Failed[0].Err)))
	}
}

// PrintValidation renders the pricing and implied-vol validation results.
func PrintValidation(w io.Writer, p validation.PricingStats, iv validation.ImpliedVolStats) {
	fmt.Fprintln(w, headerColor("Pricing validation"))
	fmt.Fprintf(w, "Options          %d (%d priced above minimum)\n", p.Total, p.Valid)
	fmt.Fprintf(w, "Mean error       %.4f%%\n", p.MeanErrorPct)
	fmt.Fprintf(w, "Median error     %.4f%%\n", p.MedianErrorPct)
	fmt.Fprintf(w, "Max error        %.4f%%\n", p.MaxErrorPct)
	fmt.Fprintf(w, "Std error        %.4f%%\n", p.StdErrorPct)
	fmt.Fprintf(w, "Under 0.5%%       %d (%.1f%%)\n", p.UnderHalfPercent, p.ShareUnderHalfPct)
	fmt.Fprintf(w, "Result           %s\n", verdict(p.Passed()))

	fmt.Fprintln(w, headerColor("Implied volatility validation"))
	fmt.Fprintf(w, "Solved           %d (%d failed)\n", iv.Validated, iv.Failed)
	fmt.Fprintf(w, "Mean error       %.4f%%\n", iv.MeanErrorPct)
	fmt.Fprintf(w, "Median error     %.4f%%\n", iv.MedianErrorPct)
	fmt.Fprintf(w, "Max error        %.4f%%\n", iv.MaxErrorPct)
	fmt.Fprintf(w, "Under 1%%         %d (%.1f%%)\n", iv.UnderOnePercent, iv.ShareUnderOnePct)
}
