package smile

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// PresenceThreshold is the minimum vol range across strikes for a
	// smile to count as present.
	PresenceThreshold = 1e-3

	lowWingMoneyness  = 0.9
	highWingMoneyness = 1.1
)

// Diagnostics are descriptive statistics of a smile, not a model fit.
//
// Skew is sigma(K_low) - sigma(K_high) between the lowest and highest solved
// strikes, so a smile with richer low strikes has positive skew. SkewSlope
// divides it by the strike range. Wings are the mean vols of strikes with
// K/S below 0.9 and above 1.1.
type Diagnostics struct {
	Points      int     `json:"points"`
	Present     bool    `json:"present"`
	MinVol      float64 `json:"min_vol"`
	MaxVol      float64 `json:"max_vol"`
	VolRange    float64 `json:"vol_range"`
	Skew        float64 `json:"skew"`
	SkewSlope   float64 `json:"skew_slope"`
	ATMStrike   float64 `json:"atm_strike"`
	ATMVol      float64 `json:"atm_vol"`
	HasLowWing  bool    `json:"has_low_wing"`
	LowWingVol  float64 `json:"low_wing_vol,omitempty"`
	HasHighWing bool    `json:"has_high_wing"`
	HighWingVol float64 `json:"high_wing_vol,omitempty"`
	// Curvature is the average wing vol minus the ATM vol; zero unless
	// both wings exist.
	Curvature float64 `json:"curvature"`
}

// Diagnostics summarises the shape of t. An empty table yields the zero
// value.
func (t Table) Diagnostics() Diagnostics {
	d := Diagnostics{Points: len(t.Points)}
	if len(t.Points) == 0 {
		return d
	}

	vols := t.Vols()
	d.MinVol = floats.Min(vols)
	d.MaxVol = floats.Max(vols)
	d.VolRange = d.MaxVol - d.MinVol
	d.Present = d.VolRange > PresenceThreshold

	first, last := t.Points[0], t.Points[len(t.Points)-1]
	d.Skew = first.ImpliedVol - last.ImpliedVol
	if span := last.Strike - first.Strike; span > 0 {
		d.SkewSlope = d.Skew / span
	}

	atm := 0
	for i, p := range t.Points {
		if math.Abs(p.Moneyness-1) < math.Abs(t.Points[atm].Moneyness-1) {
			atm = i
		}
	}
	d.ATMStrike = t.Points[atm].Strike
	d.ATMVol = t.Points[atm].ImpliedVol

	var low, high []float64
	for _, p := range t.Points {
		switch {
		case p.Moneyness < lowWingMoneyness:
			low = append(low, p.ImpliedVol)
		case p.Moneyness > highWingMoneyness:
			high = append(high, p.ImpliedVol)
		}
	}
	if len(low) > 0 {
		d.HasLowWing = true
		d.LowWingVol = stat.Mean(low, nil)
	}
	if len(high) > 0 {
		d.HasHighWing = true
		d.HighWingVol = stat.Mean(high, nil)
	}
	if d.HasLowWing && d.HasHighWing {
		d.Curvature = (d.LowWingVol+d.HighWingVol)/2 - d.ATMVol
	}
	return d
}
