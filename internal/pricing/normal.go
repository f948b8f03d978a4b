package pricing

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// NormPDF is the standard normal density. It underflows to 0 for large |x|.
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// NormCDF is the standard normal distribution function. It is evaluated
// through erfc so the tails saturate to exactly 0 and 1 instead of losing
// precision or producing NaN.
func NormCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormInv returns x such that NormCDF(x) = p.
//
// Example:
//
//	NormInv(0.975) // ≈ 1.96
func NormInv(p float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, NewInputError("probability", p, "must be in (0,1)")
	}
	return distuv.UnitNormal.Quantile(p), nil
}
