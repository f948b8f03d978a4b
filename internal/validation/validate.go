package validation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/option-greeks/internal/impliedvol"
)

// Pass thresholds for ValidatePricing.
const (
	MaxMeanPricingErrorPct = 0.5
	MinShareUnderHalfPct   = 95.0
)

// PricingStats compares model prices with market prices. Percentages are
// |model-market|/market*100 over options priced above the minimum.
type PricingStats struct {
	Total             int     `json:"total"`
	Valid             int     `json:"valid"`
	MeanErrorPct      float64 `json:"mean_error_pct"`
	MedianErrorPct    float64 `json:"median_error_pct"`
	MaxErrorPct       float64 `json:"max_error_pct"`
	StdErrorPct       float64 `json:"std_error_pct"`
	UnderHalfPercent  int     `json:"under_half_percent"`
	ShareUnderHalfPct float64 `json:"share_under_half_pct"`
}

// Passed reports whether the mean error is below 0.5% and more than 95% of
// the options are within 0.5%.
func (s PricingStats) Passed() bool {
	return s.Valid > 0 && s.MeanErrorPct < MaxMeanPricingErrorPct && s.ShareUnderHalfPct > MinShareUnderHalfPct
}

// ImpliedVolStats compares solved implied vols with the generating vols.
type ImpliedVolStats struct {
	Validated        int     `json:"validated"`
	Failed           int     `json:"failed"`
	MeanErrorPct     float64 `json:"mean_error_pct"`
	MedianErrorPct   float64 `json:"median_error_pct"`
	MaxErrorPct      float64 `json:"max_error_pct"`
	UnderOnePercent  int     `json:"under_one_percent"`
	ShareUnderOnePct float64 `json:"share_under_one_pct"`
}

// ValidatePricing measures the model against the market over the options
// whose market price exceeds minPrice.
func ValidatePricing(panel []Option, minPrice float64) PricingStats {
	s := PricingStats{Total: len(panel)}
	var errs []float64
	for _, o := range panel {
		if o.MarketPrice <= minPrice {
			continue
		}
		errs = append(errs, math.Abs(o.ModelPrice-o.MarketPrice)/o.MarketPrice*100)
	}
	s.Valid = len(errs)
	if s.Valid == 0 {
		return s
	}

	s.MeanErrorPct, s.StdErrorPct = stat.MeanStdDev(errs, nil)
	if s.Valid < 2 {
		s.StdErrorPct = 0
	}
	s.MaxErrorPct = floats.Max(errs)
	s.MedianErrorPct = median(errs)
	s.UnderHalfPercent = countBelow(errs, 0.5)
	s.ShareUnderHalfPct = float64(s.UnderHalfPercent) / float64(s.Valid) * 100
	return s
}

// ValidateImpliedVol solves the implied vol of every option priced above
// minPrice and reports the relative error against its generating vol.
func ValidateImpliedVol(panel []Option, minPrice float64, opts impliedvol.Options) ImpliedVolStats {
	var reqs []impliedvol.Request
	var vols []float64
	for _, o := range panel {
		if o.MarketPrice <= minPrice {
			continue
		}
		reqs = append(reqs, impliedvol.Request{Contract: o.Contract(), MarketPrice: o.MarketPrice})
		vols = append(vols, o.Volatility)
	}

	var s ImpliedVolStats
	var errs []float64
	for i, out := range impliedvol.SolveBatch(reqs, opts) {
		if out.Err != nil {
			s.Failed++
			continue
		}
		errs = append(errs, math.Abs(out.Result.ImpliedVol-vols[i])/vols[i]*100)
	}
	s.Validated = len(errs)
	if s.Validated == 0 {
		return s
	}
	s.MeanErrorPct = stat.Mean(errs, nil)
	s.MedianErrorPct = median(errs)
	s.MaxErrorPct = floats.Max(errs)
	s.UnderOnePercent = countBelow(errs, 1)
	s.ShareUnderOnePct = float64(s.UnderOnePercent) / float64(s.Validated) * 100
	return s
}

func median(x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func countBelow(x []float64, limit float64) int {
	n := 0
	for _, v := range x {
		if v < limit {
			n++
		}
	}
	return n
}
