package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/smile"
)

// csvDate reads and writes calendar dates in DateLayout.
type csvDate struct {
	time.Time
}

func (d *csvDate) UnmarshalCSV(s string) error {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d csvDate) MarshalCSV() (string, error) {
	return d.Format(DateLayout), nil
}

// chainRow is one line of <UNDERLYING>_chain.csv.
type chainRow struct {
	AsOf        csvDate `csv:"as_of"`
	Expiry      csvDate `csv:"expiry"`
	Spot        float64 `csv:"spot"`
	Strike      float64 `csv:"strike"`
	Type        string  `csv:"type"`
	MarketPrice float64 `csv:"market_price"`
}

// barRow is one line of <UNDERLYING>_bars.csv.
type barRow struct {
	Date   csvDate `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// localFileDataProvider implements Provider from CSV files in dir.
type localFileDataProvider struct {
	dir       string
	secondary Provider
}

// NewLocalFileDataProvider convenience constructor.
func NewLocalFileDataProvider(dir string, secondary Provider) *localFileDataProvider {
	return &localFileDataProvider{dir: dir, secondary: secondary}
}

func (localFileDataProv *localFileDataProvider) Secondary() Provider {
	return localFileDataProv.secondary
}

func (localFileDataProv *localFileDataProvider) path(underlying, kind string) string {
	return filepath.Join(localFileDataProv.dir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(underlying), kind))
}

// GetChain reads <UNDERLYING>_chain.csv and keeps the rows expiring on
// expiry. Without a file or matching rows the request goes to the secondary
// provider.
func (localFileDataProv *localFileDataProvider) GetChain(underlying string, expiry time.Time) (Chain, error) {
	var rows []*chainRow
	err := readCSV(localFileDataProv.path(underlying, "chain"), &rows)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Chain{}, err
	}

	chain := Chain{Underlying: strings.ToUpper(underlying), Expiry: expiry}
	want := expiry.Format(DateLayout)
	for i, r := range rows {
		if r.Expiry.Format(DateLayout) != want {
			continue
		}
		typ, err := pricing.ParseOptionType(r.Type)
		if err != nil {
			return Chain{}, fmt.Errorf("%s row %d: %w", localFileDataProv.path(underlying, "chain"), i+2, err)
		}
		if chain.Spot == 0 {
			chain.Spot = r.Spot
			chain.AsOf = r.AsOf.Time
		}
		chain.Quotes = append(chain.Quotes, smile.Quote{Strike: r.Strike, MarketPrice: r.MarketPrice, Type: typ})
	}

	if len(chain.Quotes) == 0 {
		if localFileDataProv.secondary != nil {
			logger.Debugf("no local chain for %s %s, delegating", underlying, want)
			return localFileDataProv.secondary.GetChain(underlying, expiry)
		}
		return Chain{}, fmt.Errorf("%w: no local chain for %s expiring %s", ErrNotFound, underlying, want)
	}
	logger.Debugf("loaded %d local quotes for %s %s", len(chain.Quotes), underlying, want)
	return chain, nil
}

// GetBars reads <UNDERLYING>_bars.csv and keeps the bars in
// [fromDate, toDate].
func (localFileDataProv *localFileDataProvider) GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	var rows []*barRow
	err := readCSV(localFileDataProv.path(underlying, "bars"), &rows)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var out []Bar
	for _, r := range rows {
		if r.Date.Before(fromDate) || r.Date.After(toDate) {
			continue
		}
		out = append(out, Bar{Date: r.Date.Time, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Vol: r.Volume})
	}

	if len(out) == 0 {
		if localFileDataProv.secondary != nil {
			return localFileDataProv.secondary.GetBars(underlying, fromDate, toDate)
		}
		return nil, fmt.Errorf("%w: no local bars for %s", ErrNotFound, underlying)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// WriteChainCSV stores chain in dir as <UNDERLYING>_chain.csv so a later
// run can replay it through the local provider.
func WriteChainCSV(dir string, chain Chain) (string, error) {
	rows := make([]*chainRow, 0, len(chain.Quotes))
	for _, q := range chain.Quotes {
		rows = append(rows, &chainRow{
			AsOf:        csvDate{chain.AsOf},
			Expiry:      csvDate{chain.Expiry},
			Spot:        chain.Spot,
			Strike:      q.Strike,
			Type:        string(q.Type),
			MarketPrice: q.MarketPrice,
		})
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := NewLocalFileDataProvider(dir, nil).path(chain.Underlying, "chain")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return path, gocsv.MarshalFile(&rows, f)
}
