package data

import (
	"hash/fnv"
	"strings"
	"time"

	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/smile"
)

// SyntheticConfig parameterises generated market data.
type SyntheticConfig struct {
	Spot      float64 `json:"spot"`
	Rate      float64 `json:"rate"`
	BaseVol   float64 `json:"base_vol"`
	Skew      float64 `json:"skew"`
	Convexity float64 `json:"convexity"`
	Drift     float64 `json:"drift"`
	Seed      uint64  `json:"seed"`
}

// DefaultSyntheticConfig is a 100 spot equity with a 20% ATM vol and a
// negative skew.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{Spot: 100, Rate: 0.05, BaseVol: 0.2, Skew: -0.15, Convexity: 0.05, Drift: 0.05, Seed: 1}
}

// synthDataProvider implements Provider generating synthetic data.
type synthDataProvider struct {
	cfg       SyntheticConfig
	now       func() time.Time
	secondary Provider
}

func NewSyntheticProvider(cfg SyntheticConfig) Provider {
	return &synthDataProvider{cfg: cfg, now: time.Now}
}

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

// GetChain prices a parametric smile on the default strike ladder, observed
// today.
func (synthDataProv *synthDataProvider) GetChain(underlying string, expiry time.Time) (Chain, error) {
	asOf := synthDataProv.now().UTC().Truncate(24 * time.Hour)
	s := smile.Synthetic{
		Spot:      synthDataProv.cfg.Spot,
		Maturity:  YearFraction(asOf, expiry),
		Rate:      synthDataProv.cfg.Rate,
		BaseVol:   synthDataProv.cfg.BaseVol,
		Skew:      synthDataProv.cfg.Skew,
		Convexity: synthDataProv.cfg.Convexity,
	}
	quotes, err := s.GenerateQuotes()
	if err != nil {
		return Chain{}, err
	}
	chain := Chain{Underlying: strings.ToUpper(underlying), Spot: s.Spot, AsOf: asOf, Expiry: expiry}
	for _, q := range quotes {
		chain.Quotes = append(chain.Quotes, q.Quote)
	}
	return chain, nil
}

// GetBars draws a GBM close series on the weekdays of [fromDate, toDate].
// The path depends only on the config seed and the underlying name.
func (synthDataProv *synthDataProvider) GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	var days []time.Time
	for cur := fromDate; !cur.After(toDate); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			days = append(days, cur)
		}
	}
	if len(days) == 0 {
		return nil, nil
	}
	if len(days) == 1 {
		s := synthDataProv.cfg.Spot
		return []Bar{{Date: days[0], Open: s, High: s, Low: s, Close: s}}, nil
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(underlying)))
	path, err := hedge.GBMPath(hedge.GBM{
		S0:       synthDataProv.cfg.Spot,
		Drift:    synthDataProv.cfg.Drift,
		Vol:      synthDataProv.cfg.BaseVol,
		Maturity: float64(len(days)-1) / TradingDaysPerYear,
		Steps:    len(days) - 1,
		Seed:     synthDataProv.cfg.Seed ^ h.Sum64(),
	})
	if err != nil {
		return nil, err
	}

	out := make([]Bar, len(days))
	for i, d := range days {
		open := path.Spots[max(i-1, 0)]
		cls := path.Spots[i]
		out[i] = Bar{Date: d, Open: open, High: max(open, cls), Low: min(open, cls), Close: cls}
	}
	return out, nil
}
