// Package impliedvol inverts Black-Scholes-Merton prices to implied
// volatility with a safeguarded Newton-Raphson iteration and a bisection
// fallback.
package impliedvol

import (
	"errors"
	"fmt"
	"math"

	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
)

// ErrNoConvergence is matched by every *ConvergenceError.
var ErrNoConvergence = errors.New("implied volatility did not converge")

// ConvergenceError reports the best estimate reached when both the Newton
// and bisection budgets were spent, or no bracket exists below the ceiling.
type ConvergenceError struct {
	Sigma      float64
	Residual   float64
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%v: sigma=%.6f residual=%.3g after %d iterations",
		ErrNoConvergence, e.Sigma, e.Residual, e.Iterations)
}

// Is lets errors.Is(err, ErrNoConvergence) match.
func (e *ConvergenceError) Is(target error) bool {
	return target == ErrNoConvergence
}

// Method names the algorithm that produced a Result.
type Method string

const (
	Newton    Method = "newton"
	Bisection Method = "bisection"
)

// minVega is the Vega below which Newton steps are abandoned.
const minVega = 1e-10

// Options tunes the solver. Zero fields take the DefaultOptions value.
type Options struct {
	InitialGuess           float64 `json:"initial_guess,omitempty"`
	Tolerance              float64 `json:"tolerance,omitempty"`
	MaxIterations          int     `json:"max_iterations,omitempty"`
	MaxBisectionIterations int     `json:"max_bisection_iterations,omitempty"`
	Ceiling                float64 `json:"ceiling,omitempty"`
	Floor                  float64 `json:"floor,omitempty"`
}

// DefaultOptions returns the solver defaults: start at 20% vol, stop when the
// price residual is under 1e-6, search volatilities in [1e-6, 5].
func DefaultOptions() Options {
	return Options{
		InitialGuess:           0.2,
		Tolerance:              1e-6,
		MaxIterations:          100,
		MaxBisectionIterations: 200,
		Ceiling:                5.0,
		Floor:                  1e-6,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InitialGuess <= 0 {
		o.InitialGuess = d.InitialGuess
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.MaxBisectionIterations <= 0 {
		o.MaxBisectionIterations = d.MaxBisectionIterations
	}
	if o.Ceiling <= 0 {
		o.Ceiling = d.Ceiling
	}
	if o.Floor <= 0 {
		o.Floor = d.Floor
	}
	if o.Floor >= o.Ceiling {
		o.Floor, o.Ceiling = d.Floor, d.Ceiling
	}
	return o
}

// Result is a converged implied volatility.
type Result struct {
	ImpliedVol      float64 `json:"implied_vol"`
	Iterations      int     `json:"iterations"`
	Converged       bool    `json:"converged"`
	FinalPriceError float64 `json:"final_price_error"`
	Method          Method  `json:"method"`
}

// Solve finds the volatility sigma for which Price(c with sigma) matches
// observed. The Volatility field of c is ignored.
//
// Parameters:
//   - c: contract terms; Maturity must be positive
//   - observed: the market price of the option
//   - opts: solver tuning, zero fields use DefaultOptions
//
// Returns:
//
//	The implied volatility together with the iteration count, the absolute
//	price residual at the solution and the method that converged.
//
// Errors:
//
//	*pricing.InputError when T<=0, observed is not finite, or observed lies
//	outside the no-arbitrage bounds. *ConvergenceError when neither Newton
//	nor bisection reaches the tolerance.
func Solve(c pricing.Contract, observed float64, opts Options) (Result, error) {
	opts = opts.withDefaults()
	c = c.WithVolatility(opts.InitialGuess)

	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	if c.Maturity <= 0 {
		return Result{}, pricing.NewInputError("maturity", c.Maturity, "must be positive to imply volatility")
	}
	if math.IsNaN(observed) || math.IsInf(observed, 0) {
		return Result{}, pricing.NewInputError("market_price", observed, "must be finite")
	}
	lo, hi, err := pricing.Bounds(c)
	if err != nil {
		return Result{}, err
	}
	slack := 1e-12 * math.Max(1, hi)
	if observed < lo-slack || observed > hi+slack {
		return Result{}, pricing.NewInputError("market_price", observed,
			fmt.Sprintf("outside no-arbitrage bounds [%.6f, %.6f]", lo, hi))
	}

	s := solver{c: c, target: observed, opts: opts}
	if r, ok, err := s.newton(); err != nil || ok {
		return r, err
	}
	logger.Debugf("impliedvol: newton gave up for K=%.4f T=%.4f after %d steps, bisecting", c.Strike, c.Maturity, s.iterations)
	return s.bisect()
}

type solver struct {
	c          pricing.Contract
	target     float64
	opts       Options
	iterations int
}

// residual is model price minus the observed price at sigma.
func (s *solver) residual(sigma float64) (float64, error) {
	p, err := pricing.Price(s.c.WithVolatility(sigma))
	if err != nil {
		return 0, err
	}
	return p - s.target, nil
}

func (s *solver) converged(sigma, f float64, m Method) Result {
	return Result{
		ImpliedVol:      sigma,
		Iterations:      s.iterations,
		Converged:       true,
		FinalPriceError: math.Abs(f),
		Method:          m,
	}
}

// newton reports ok=false when it could not converge and bisection should
// take over.
func (s *solver) newton() (Result, bool, error) {
	sigma := s.opts.InitialGuess
	for {
		f, err := s.residual(sigma)
		if err != nil {
			return Result{}, false, err
		}
		if math.Abs(f) < s.opts.Tolerance {
			return s.converged(sigma, f, Newton), true, nil
		}
		if s.iterations >= s.opts.MaxIterations {
			return Result{}, false, nil
		}
		vega, err := pricing.Vega(s.c.WithVolatility(sigma))
		if err != nil {
			return Result{}, false, err
		}
		if vega < minVega {
			logger.Tracef("impliedvol: vega %.3g below %.0e at sigma=%.6f", vega, minVega, sigma)
			return Result{}, false, nil
		}

		next := sigma - f/vega
		switch {
		case math.IsNaN(next):
			return Result{}, false, nil
		case next <= 0:
			next = math.Max(sigma/2, s.opts.Floor)
		case next > s.opts.Ceiling:
			next = (sigma + s.opts.Ceiling) / 2
		}
		logger.Tracef("impliedvol: newton %d sigma=%.8f f=%.3g vega=%.4f", s.iterations, sigma, f, vega)
		sigma = next
		s.iterations++
	}
}

func (s *solver) bisect() (Result, error) {
	lo, hi := s.opts.Floor, math.Min(1.0, s.opts.Ceiling)

	fLo, err := s.residual(lo)
	if err != nil {
		return Result{}, err
	}
	if math.Abs(fLo) < s.opts.Tolerance {
		return s.converged(lo, fLo, Bisection), nil
	}
	if fLo > 0 {
		return Result{}, &ConvergenceError{Sigma: lo, Residual: fLo, Iterations: s.iterations}
	}

	fHi, err := s.residual(hi)
	if err != nil {
		return Result{}, err
	}
	for fHi < 0 && hi < s.opts.Ceiling {
		lo = hi
		hi = math.Min(2*hi, s.opts.Ceiling)
		s.iterations++
		if fHi, err = s.residual(hi); err != nil {
			return Result{}, err
		}
	}
	if math.Abs(fHi) < s.opts.Tolerance {
		return s.converged(hi, fHi, Bisection), nil
	}
	if fHi < 0 {
		return Result{}, &ConvergenceError{Sigma: hi, Residual: fHi, Iterations: s.iterations}
	}

	mid, fMid := lo, fLo
	for i := 0; i < s.opts.MaxBisectionIterations; i++ {
		mid = (lo + hi) / 2
		s.iterations++
		if fMid, err = s.residual(mid); err != nil {
			return Result{}, err
		}
		if math.Abs(fMid) < s.opts.Tolerance {
			return s.converged(mid, fMid, Bisection), nil
		}
		if fMid > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return Result{}, &ConvergenceError{Sigma: mid, Residual: fMid, Iterations: s.iterations}
}
