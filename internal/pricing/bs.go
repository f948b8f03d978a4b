package pricing

import (
	"math"
)

// Price calculates the Black-Scholes-Merton price of a European option.
//
// Parameters:
//   - c: the option contract (spot, strike, maturity in years, risk-free rate,
//     volatility and continuous dividend yield, all annualised decimals)
//
// Returns:
//
//	The theoretical price of the option. When the maturity is zero the
//	intrinsic value max(S-K,0) / max(K-S,0) is returned. When volatility is
//	zero and maturity positive, the discounted intrinsic value of the forward,
//	S·e^{-qT} against K·e^{-rT}, is returned.
//
// Errors:
//
//	An *InputError (matching ErrInvalidInput) when S<=0, K<=0, sigma<0 or T<0,
//	when |r*T| or q*T exceeds MaxCarry, or when the inputs overflow the price.
func Price(c Contract) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	p := price(c)
	if !finite(p) {
		return 0, NewInputError("spot", c.Spot, "price is not finite for this contract")
	}
	return p, nil
}

// price assumes c has been validated.
func price(c Contract) float64 {
	if c.Maturity == 0 {
		if c.IsCall() {
			return math.Max(c.Spot-c.Strike, 0)
		}
		return math.Max(c.Strike-c.Spot, 0)
	}

	fwdS, pvK := discountedLegs(c)
	if c.Volatility == 0 {
		if c.IsCall() {
			return math.Max(fwdS-pvK, 0)
		}
		return math.Max(pvK-fwdS, 0)
	}

	d1, d2 := d1d2(c)
	if c.IsCall() {
		return fwdS*NormCDF(d1) - pvK*NormCDF(d2)
	}
	return pvK*NormCDF(-d2) - fwdS*NormCDF(-d1)
}

// D1D2 returns the d1 and d2 terms of the Black-Scholes-Merton formula.
// Both are undefined (NaN) when the maturity or volatility is zero.
func D1D2(c Contract) (d1, d2 float64, err error) {
	if err := c.Validate(); err != nil {
		return 0, 0, err
	}
	if c.Maturity == 0 || c.Volatility == 0 {
		return math.NaN(), math.NaN(), nil
	}
	d1, d2 = d1d2(c)
	return d1, d2, nil
}

func d1d2(c Contract) (float64, float64) {
	volSqrtT := c.Volatility * math.Sqrt(c.Maturity)
	d1 := (math.Log(c.Spot/c.Strike) + (c.Rate-c.DividendYield+0.5*c.Volatility*c.Volatility)*c.Maturity) / volSqrtT
	return d1, d1 - volSqrtT
}

// discountedLegs returns S·e^{-qT} and K·e^{-rT}.
func discountedLegs(c Contract) (float64, float64) {
	return c.Spot * math.Exp(-c.DividendYield*c.Maturity), c.Strike * math.Exp(-c.Rate*c.Maturity)
}

// Bounds returns the no-arbitrage price interval for c, independent of its
// volatility: the discounted intrinsic value below and S·e^{-qT} (call) or
// K·e^{-rT} (put) above.
func Bounds(c Contract) (lower, upper float64, err error) {
	if err := c.ValidateNoVol(); err != nil {
		return 0, 0, err
	}
	fwdS, pvK := discountedLegs(c)
	if c.IsCall() {
		return math.Max(fwdS-pvK, 0), fwdS, nil
	}
	return math.Max(pvK-fwdS, 0), pvK, nil
}

// ParityGap measures how far an observed call/put pair on the same strike and
// maturity is from put-call parity: (C-P) - (S·e^{-qT} - K·e^{-rT}).
// The type and volatility of c are ignored.
func ParityGap(callPrice, putPrice float64, c Contract) (float64, error) {
	c.Type = Call
	if err := c.ValidateNoVol(); err != nil {
		return 0, err
	}
	fwdS, pvK := discountedLegs(c)
	return (callPrice - putPrice) - (fwdS - pvK), nil
}
