// Package data provides market data provider implementations: option chains
// for smile building and daily bars for hedge replays.
//
// Providers can be chained. When a provider cannot serve a request it
// delegates to its Secondary, so a local CSV directory can sit in front of
// the Massive API, which in turn falls back to synthetic data.
package data

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/impliedvol"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/smile"
)

// DateLayout is the calendar date format used in CSV files, URLs and config.
const DateLayout = "2006-01-02"

// TradingDaysPerYear converts daily bars to year fractions.
const TradingDaysPerYear = 252

// ErrNotFound is returned when no provider in a chain has the requested data.
var ErrNotFound = errors.New("market data not found")

// Provider supplies market data.
type Provider interface {
	Secondary() Provider
	// GetChain returns the option quotes of underlying expiring on expiry.
	GetChain(underlying string, expiry time.Time) (Chain, error)
	// GetBars returns daily bars in [fromDate, toDate], oldest first.
	GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error)
}

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
	Count int64
}

// Chain is one expiry of an option chain observed at AsOf.
type Chain struct {
	Underlying string        `json:"underlying"`
	Spot       float64       `json:"spot"`
	AsOf       time.Time     `json:"as_of"`
	Expiry     time.Time     `json:"expiry"`
	Quotes     []smile.Quote `json:"quotes"`
}

// Maturity is the ACT/365 year fraction from AsOf to Expiry.
func (c Chain) Maturity() float64 {
	return YearFraction(c.AsOf, c.Expiry)
}

// SmileInput converts c to a smile build request. When a strike is quoted
// as both call and put, the out-of-the-money side is kept.
func (c Chain) SmileInput(rate, dividendYield float64, opts impliedvol.Options) smile.Input {
	byStrike := make(map[float64]smile.Quote, len(c.Quotes))
	for _, q := range c.Quotes {
		prev, seen := byStrike[q.Strike]
		if !seen || (otm(q, c.Spot) && !otm(prev, c.Spot)) {
			byStrike[q.Strike] = q
		}
	}
	in := smile.Input{
		Maturity:      c.Maturity(),
		Rate:          rate,
		Spot:          c.Spot,
		DividendYield: dividendYield,
		Solver:        opts,
	}
	for _, q := range byStrike {
		in.Quotes = append(in.Quotes, q)
	}
	sort.Slice(in.Quotes, func(i, j int) bool { return in.Quotes[i].Strike < in.Quotes[j].Strike })
	return in
}

func otm(q smile.Quote, spot float64) bool {
	if q.Type == pricing.Call {
		return q.Strike >= spot
	}
	return q.Strike < spot
}

// YearFraction returns the ACT/365 year fraction between two dates, never
// negative.
func YearFraction(from, to time.Time) float64 {
	return math.Max(to.Sub(from).Hours()/24/365, 0)
}

// Closes extracts closing prices from bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// PathFromBars turns daily closes into a hedge path with one trading day
// per step. The matching contract maturity is (len(bars)-1)/252.
func PathFromBars(bars []Bar) (hedge.Path, float64) {
	closes := Closes(bars)
	dt := 1.0 / TradingDaysPerYear
	return hedge.Path{Spots: closes, Dt: dt}, float64(max(len(closes)-1, 0)) * dt
}

// NewProviderChain builds the default provider chain: local CSV files in
// dataDir (when set), then the Massive API (when apiKey is set), then
// synthetic data.
func NewProviderChain(dataDir, apiKey string, synth SyntheticConfig) Provider {
	var prov Provider = NewSyntheticProvider(synth)
	if apiKey != "" {
		prov = NewMassiveDataProvider(apiKey, prov)
		logger.Infof("massive provider enabled")
	}
	if dataDir != "" {
		prov = NewLocalFileDataProvider(dataDir, prov)
		logger.Infof("local csv provider enabled in %s", dataDir)
	}
	return prov
}

// Describe lists the providers in a chain, outermost first.
func Describe(p Provider) string {
	var names []string
	for ; p != nil; p = p.Secondary() {
		names = append(names, fmt.Sprintf("%T", p))
	}
	return strings.Join(names, " -> ")
}
