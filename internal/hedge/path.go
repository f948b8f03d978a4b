package hedge

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

// GBM parameterises a geometric Brownian motion path:
//
//	S(t+dt) = S(t) * exp((Drift - Vol^2/2)*dt + Vol*sqrt(dt)*Z)
type GBM struct {
	S0       float64 `json:"s0"`
	Drift    float64 `json:"drift"`
	Vol      float64 `json:"vol"`
	Maturity float64 `json:"maturity"`
	Steps    int     `json:"steps"`
	Seed     uint64  `json:"seed"`
}

// MaxSteps bounds the length of a simulated path.
const MaxSteps = 1_000_000

// GBMPath draws a path of Steps+1 spots, S0 included. The same Seed always
// yields the same path.
func GBMPath(g GBM) (Path, error) {
	switch {
	case g.S0 <= 0 || math.IsNaN(g.S0):
		return Path{}, pricing.NewInputError("s0", g.S0, "must be positive")
	case g.Vol < 0 || math.IsNaN(g.Vol):
		return Path{}, pricing.NewInputError("vol", g.Vol, "must be non-negative")
	case g.Maturity <= 0 || math.IsNaN(g.Maturity):
		return Path{}, pricing.NewInputError("maturity", g.Maturity, "must be positive")
	case g.Steps < 1 || g.Steps > MaxSteps:
		return Path{}, pricing.NewInputError("steps", float64(g.Steps), fmt.Sprintf("must be between 1 and %d", MaxSteps))
	}

	z := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(g.Seed)}
	dt := g.Maturity / float64(g.Steps)
	drift := (g.Drift - 0.5*g.Vol*g.Vol) * dt
	diffusion := g.Vol * math.Sqrt(dt)

	spots := make([]float64, g.Steps+1)
	spots[0] = g.S0
	for i := 1; i <= g.Steps; i++ {
		spots[i] = spots[i-1] * math.Exp(drift+diffusion*z.Rand())
	}
	return Path{Spots: spots, Dt: dt}, nil
}

// RealizedVolatility annualises the standard deviation of log returns of
// spots sampled every dt years. It returns 0 when fewer than two returns are
// available or dt is not positive.
func RealizedVolatility(spots []float64, dt float64) float64 {
	if len(spots) < 3 || dt <= 0 {
		return 0
	}
	rets := make([]float64, 0, len(spots)-1)
	for i := 1; i < len(spots); i++ {
		rets = append(rets, math.Log(spots[i]/spots[i-1]))
	}
	return stat.StdDev(rets, nil) / math.Sqrt(dt)
}
