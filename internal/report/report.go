// Package report writes run results to disk as JSON and CSV and renders
// them on a console.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/smile"
)

// Decimal places used in CSV output.
const (
	pricePlaces = 4
	volPlaces   = 6
)

// fixed renders x rounded half away from zero to places decimals.
func fixed(x float64, places int32) string {
	return decimal.NewFromFloat(x).StringFixed(places)
}

// WriteJSON writes v indented to outdir/name.json and returns the path.
func WriteJSON(v any, outdir, name string) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outdir, name+".json")
	return path, os.WriteFile(path, b, 0o644)
}

type smileRow struct {
	Strike      string `csv:"strike"`
	Moneyness   string `csv:"moneyness"`
	Type        string `csv:"type"`
	MarketPrice string `csv:"market_price"`
	ImpliedVol  string `csv:"implied_vol"`
	Iterations  int    `csv:"iterations"`
	Method      string `csv:"method"`
}

// WriteSmileCSV writes the solved points of t to outdir/smile.csv.
func WriteSmileCSV(t smile.Table, outdir string) (string, error) {
	rows := make([]*smileRow, 0, len(t.Points))
	for _, p := range t.Points {
		rows = append(rows, &smileRow{
			Strike:      fixed(p.Strike, pricePlaces),
			Moneyness:   fixed(p.Moneyness, pricePlaces),
			Type:        string(p.Type),
			MarketPrice: fixed(p.MarketPrice, pricePlaces),
			ImpliedVol:  fixed(p.ImpliedVol, volPlaces),
			Iterations:  p.Iterations,
			Method:      string(p.Method),
		})
	}
	return writeCSV(&rows, outdir, "smile.csv")
}

type hedgeRow struct {
	Step        int    `csv:"step"`
	Time        string `csv:"time"`
	Spot        string `csv:"spot"`
	Delta       string `csv:"delta"`
	Shares      string `csv:"shares"`
	Traded      string `csv:"traded"`
	OptionValue string `csv:"option_value"`
	Cash        string `csv:"cash"`
	PnL         string `csv:"pnl"`
}

// WriteHedgeCSV writes the step-by-step book of run to outdir/hedge.csv.
func WriteHedgeCSV(run hedge.Run, outdir string) (string, error) {
	rows := make([]*hedgeRow, 0, len(run.States))
	for _, s := range run.States {
		rows = append(rows, &hedgeRow{
			Step:        s.Step,
			Time:        fixed(s.Time, volPlaces),
			Spot:        fixed(s.Spot, pricePlaces),
			Delta:       fixed(s.Delta, volPlaces),
			Shares:      fixed(s.Shares, volPlaces),
			Traded:      fixed(s.Traded, volPlaces),
			OptionValue: fixed(s.OptionValue, pricePlaces),
			Cash:        fixed(s.Cash, pricePlaces),
			PnL:         fixed(s.PnL, pricePlaces),
		})
	}
	return writeCSV(&rows, outdir, "hedge.csv")
}

var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

func writeCSV(rows any, outdir, name string) (string, error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outdir, name)
	f, err := createFile(path)
	if err != nil {
		return "", err
	}
	if err := gocsv.Marshal(rows, f); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}
