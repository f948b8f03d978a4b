package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/smile"
	"github.com/contactkeval/option-greeks/internal/testutil"
	"github.com/contactkeval/option-greeks/internal/validation"
)

func init() {
	color.NoColor = true
}

func syntheticTable(t *testing.T) smile.Table {
	t.Helper()
	s := smile.Synthetic{Spot: 100, Maturity: 0.5, Rate: 0.05, BaseVol: 0.2, Skew: -0.15, Convexity: 0.05}
	quotes, err := s.GenerateQuotes()
	require.NoError(t, err)
	table, err := smile.Build(s.Input(quotes))
	require.NoError(t, err)
	return table
}

func TestFixed(t *testing.T) {
	assert.Equal(t, "10.4506", fixed(10.450583572185565, 4))
	assert.Equal(t, "-0.1250", fixed(-0.125, 4))
	assert.Equal(t, "3.00", fixed(3, 2))
}

func TestWriteJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	g, err := pricing.ComputeAll(testutil.HullATMCall())
	require.NoError(t, err)

	path, err := WriteJSON(g, dir, "greeks")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "greeks.json"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var back pricing.Greeks
	require.NoError(t, json.Unmarshal(b, &back))
	assert.InDelta(t, g.Delta, back.Delta, 1e-12)
}

func TestWriteSmileCSV(t *testing.T) {
	table := syntheticTable(t)
	path, err := WriteSmileCSV(table, t.TempDir())
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var rows []*smileRow
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))

	require.Len(t, rows, len(table.Points))
	assert.Equal(t, "80.0000", rows[0].Strike)
	assert.Equal(t, "put", rows[0].Type)
	assert.Equal(t, "call", rows[len(rows)-1].Type)
	for _, r := range rows {
		dot := strings.IndexByte(r.ImpliedVol, '.')
		require.GreaterOrEqual(t, dot, 0)
		assert.Len(t, r.ImpliedVol[dot+1:], volPlaces)
	}
}

type closeFailer struct {
	bytes.Buffer
}

func (closeFailer) Close() error { return errors.New("disk full") }

func TestWriteCSVReportsCloseError(t *testing.T) {
	var w closeFailer
	orig := createFile
	createFile = func(string) (io.WriteCloser, error) { return &w, nil }
	t.Cleanup(func() { createFile = orig })

	path, err := WriteSmileCSV(syntheticTable(t), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, path)
	assert.NotZero(t, w.Len())
}

func TestWriteHedgeCSV(t *testing.T) {
	c := testutil.HullATMCall()
	run, err := hedge.Simulate(c, hedge.Path{Spots: []float64{100, 104, 97, 101, 110}}, true)
	require.NoError(t, err)

	path, err := WriteHedgeCSV(run, t.TempDir())
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "step,time,spot,delta,shares,traded,option_value,cash,pnl", lines[0])
	assert.Len(t, lines, len(run.States)+1)
	assert.True(t, strings.HasPrefix(lines[1], "0,0.000000,100.0000,"))
}

func TestPrintGreeks(t *testing.T) {
	c := testutil.HullATMCall()
	price, err := pricing.Price(c)
	require.NoError(t, err)
	g, err := pricing.ComputeAll(c)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintGreeks(&buf, c, price, g)
	out := buf.String()
	assert.Contains(t, out, "10.4506")
	assert.Contains(t, out, "0.636831")
	assert.Contains(t, out, "(per day)")
}

func TestPrintSmile(t *testing.T) {
	var buf bytes.Buffer
	PrintSmile(&buf, syntheticTable(t))
	out := buf.String()
	assert.Contains(t, out, "9 points")
	assert.Contains(t, out, "ATM        K=100.00 vol=0.2000")
	assert.Contains(t, out, "Wings")

	buf.Reset()
	PrintSmile(&buf, smile.Table{
		Spot:     100,
		Maturity: 1,
		Failures: []smile.Failure{{Strike: 110, Type: pricing.Call, Err: "no convergence"}},
	})
	assert.Contains(t, buf.String(), "no convergence")
	assert.NotContains(t, buf.String(), "Vol range")
}

func TestPrintHedgeAndMonteCarlo(t *testing.T) {
	var buf bytes.Buffer
	PrintHedge(&buf, hedge.Summary{Premium: 10.45, TerminalPnL: -0.12, ErrorPercent: -1.15, Rebalances: 252})
	assert.Contains(t, buf.String(), "-0.1200")
	assert.Contains(t, buf.String(), "252")

	buf.Reset()
	PrintMonteCarlo(&buf, hedge.MonteCarloStats{Paths: 10, Completed: 9, Failed: []hedge.PathFailure{{Index: 3, Err: "boom"}}})
	assert.Contains(t, buf.String(), "9/10 paths")
	assert.Contains(t, buf.String(), "1 paths failed, first: boom")
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	PrintValidation(&buf,
		validation.PricingStats{Total: 10, Valid: 10, MeanErrorPct: 0.1, UnderHalfPercent: 10, ShareUnderHalfPct: 100},
		validation.ImpliedVolStats{Validated: 10, UnderOnePercent: 10, ShareUnderOnePct: 100})
	assert.Contains(t, buf.String(), "PASS")

	buf.Reset()
	PrintValidation(&buf, validation.PricingStats{}, validation.ImpliedVolStats{})
	assert.Contains(t, buf.String(), "FAIL")
}
