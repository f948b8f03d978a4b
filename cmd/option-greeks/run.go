package main

import (
	"context"
	"fmt"
	"io"

	"github.com/contactkeval/option-greeks/internal/config"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/impliedvol"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/report"
	"github.com/contactkeval/option-greeks/internal/smile"
	"github.com/contactkeval/option-greeks/internal/validation"
)

// runner executes one configured mode, printing to out and writing reports
// to cfg.ReportDir.
type runner struct {
	cfg  *config.Config
	prov data.Provider
	out  io.Writer
	// progress receives the Monte Carlo progress bar, nil to disable it.
	progress io.Writer
}

func (r *runner) run(ctx context.Context) error {
	switch r.cfg.Mode {
	case config.ModePrice:
		return r.price()
	case config.ModeSmile:
		return r.smile()
	case config.ModeHedge:
		return r.hedge()
	case config.ModeMonteCarlo:
		return r.monteCarlo(ctx)
	case config.ModeValidate:
		return r.validate()
	}
	return fmt.Errorf("%w: unknown mode %q", config.ErrInvalidConfig, r.cfg.Mode)
}

type priceReport struct {
	Contract   pricing.Contract   `json:"contract"`
	Price      float64            `json:"price"`
	Greeks     pricing.Greeks     `json:"greeks"`
	Scaled     pricing.Greeks     `json:"scaled_greeks"`
	ImpliedVol *impliedvol.Result `json:"implied_vol,omitempty"`
}

func (r *runner) price() error {
	c := r.cfg.Contract
	p, err := pricing.Price(c)
	if err != nil {
		return err
	}
	g, err := pricing.ComputeAll(c)
	if err != nil {
		return err
	}
	report.PrintGreeks(r.out, c, p, g)
	rep := priceReport{Contract: c, Price: p, Greeks: g, Scaled: g.Scaled()}

	if r.cfg.MarketPrice > 0 {
		res, err := impliedvol.Solve(c, r.cfg.MarketPrice, r.cfg.Solver)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Implied vol at %.4f: %.6f (%s, %d iterations)\n",
			r.cfg.MarketPrice, res.ImpliedVol, res.Method, res.Iterations)
		rep.ImpliedVol = &res
	}
	return r.writeJSON(rep, "price")
}

type smileReport struct {
	Table       smile.Table       `json:"table"`
	Diagnostics smile.Diagnostics `json:"diagnostics"`
}

func (r *runner) smile() error {
	var in smile.Input
	switch r.cfg.Smile.Source {
	case config.SourceProvider:
		expiry, err := r.cfg.ExpiryDate()
		if err != nil {
			return err
		}
		chain, err := r.prov.GetChain(r.cfg.Underlying, expiry)
		if err != nil {
			return err
		}
		path, err := data.WriteChainCSV(r.cfg.ReportDir, chain)
		if err != nil {
			return err
		}
		logger.Infof("chain snapshot of %d quotes saved to %s", len(chain.Quotes), path)
		in = chain.SmileInput(r.cfg.Contract.Rate, r.cfg.Contract.DividendYield, r.cfg.Solver)
	default:
		s := r.cfg.Smile.Synthetic
		quotes, err := s.GenerateQuotes()
		if err != nil {
			return err
		}
		in = s.Input(quotes)
		in.Solver = r.cfg.Solver
	}

	table, err := smile.Build(in)
	if err != nil {
		return err
	}
	report.PrintSmile(r.out, table)
	if _, err := report.WriteSmileCSV(table, r.cfg.ReportDir); err != nil {
		return err
	}
	return r.writeJSON(smileReport{Table: table, Diagnostics: table.Diagnostics()}, "smile")
}

func (r *runner) hedge() error {
	c := r.cfg.Contract
	var path hedge.Path
	switch r.cfg.Hedge.Source {
	case config.SourceProvider:
		from, to, err := r.cfg.HedgeRange()
		if err != nil {
			return err
		}
		bars, err := r.prov.GetBars(r.cfg.Underlying, from, to)
		if err != nil {
			return err
		}
		var maturity float64
		path, maturity = data.PathFromBars(bars)
		if len(path.Spots) < 2 {
			return fmt.Errorf("%w: %d bars between %s and %s", data.ErrNotFound, len(bars), r.cfg.Hedge.From, r.cfg.Hedge.To)
		}
		c = c.WithSpot(path.Spots[0], maturity)
	default:
		g := r.cfg.Hedge.GBM
		var err error
		if path, err = hedge.GBMPath(g); err != nil {
			return err
		}
		c = c.WithSpot(g.S0, g.Maturity)
	}

	run, err := hedge.Simulate(c, path, r.cfg.Hedge.Rebalance)
	if err != nil {
		return err
	}
	report.PrintHedge(r.out, run.Summary)
	if _, err := report.WriteHedgeCSV(run, r.cfg.ReportDir); err != nil {
		return err
	}
	return r.writeJSON(run, "hedge")
}

func (r *runner) monteCarlo(ctx context.Context) error {
	mc := r.cfg.MonteCarlo
	mc.Progress = r.progress
	stats, err := hedge.RunMonteCarlo(ctx, r.cfg.Contract, mc)
	if stats.Completed > 0 {
		report.PrintMonteCarlo(r.out, stats)
		if werr := r.writeJSON(stats, "montecarlo"); werr != nil {
			return werr
		}
	}
	return err
}

type validationReport struct {
	Pricing    validation.PricingStats    `json:"pricing"`
	ImpliedVol validation.ImpliedVolStats `json:"implied_vol"`
	Passed     bool                       `json:"passed"`
}

func (r *runner) validate() error {
	v := r.cfg.Validation
	panel, err := validation.GeneratePanel(v.Panel)
	if err != nil {
		return err
	}
	ps := validation.ValidatePricing(panel, v.MinPrice)
	ivs := validation.ValidateImpliedVol(panel, v.MinPrice, r.cfg.Solver)
	report.PrintValidation(r.out, ps, ivs)
	return r.writeJSON(validationReport{Pricing: ps, ImpliedVol: ivs, Passed: ps.Passed()}, "validation")
}

func (r *runner) writeJSON(v any, name string) error {
	path, err := report.WriteJSON(v, r.cfg.ReportDir, name)
	if err != nil {
		return err
	}
	logger.Infof("wrote %s", path)
	return nil
}
