// Package config loads the run configuration of the option-greeks command:
// a JSON file layered over defaults, then a .env file and environment
// overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/hedge"
	"github.com/contactkeval/option-greeks/internal/impliedvol"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/smile"
	"github.com/contactkeval/option-greeks/internal/validation"
)

// Environment overrides.
const (
	EnvVerbosity = "OPTION_GREEKS_VERBOSITY"
	EnvReportDir = "OPTION_GREEKS_REPORT_DIR"
	EnvRate      = "OPTION_GREEKS_RATE"
	EnvMassive   = "MASSIVE_API_KEY"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("invalid config")

// Mode selects what a run computes.
type Mode string

const (
	ModePrice      Mode = "price"
	ModeSmile      Mode = "smile"
	ModeHedge      Mode = "hedge"
	ModeMonteCarlo Mode = "montecarlo"
	ModeValidate   Mode = "validate"
)

// Data sources for the smile and hedge modes.
const (
	SourceSynthetic = "synthetic"
	SourceProvider  = "provider"
	SourceGBM       = "gbm"
)

// SmileConfig selects the quotes of a smile run. The synthetic source prices
// Synthetic; the provider source loads the chain of Underlying at Expiry.
type SmileConfig struct {
	Source    string          `json:"source"`
	Synthetic smile.Synthetic `json:"synthetic"`
}

// HedgeConfig selects the spot path of a hedge run: a GBM draw, or the daily
// bars of Underlying between From and To.
type HedgeConfig struct {
	Source    string    `json:"source"`
	Rebalance bool      `json:"rebalance"`
	GBM       hedge.GBM `json:"gbm"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
}

// ValidationConfig drives the panel validation run.
type ValidationConfig struct {
	Panel    validation.PanelSpec `json:"panel"`
	MinPrice float64              `json:"min_price"`
}

// Config is the full run configuration.
type Config struct {
	Mode        Mode                 `json:"mode"`
	Underlying  string               `json:"underlying"`
	Expiry      string               `json:"expiry,omitempty"` // YYYY-MM-DD
	Contract    pricing.Contract     `json:"contract"`
	MarketPrice float64              `json:"market_price,omitempty"`
	Solver      impliedvol.Options   `json:"solver"`
	Smile       SmileConfig          `json:"smile"`
	Hedge       HedgeConfig          `json:"hedge"`
	MonteCarlo  hedge.MonteCarlo     `json:"montecarlo"`
	Validation  ValidationConfig     `json:"validation"`
	Market      data.SyntheticConfig `json:"market"`
	DataDir     string               `json:"data_dir,omitempty"`
	ReportDir   string               `json:"report_dir"`
	Verbosity   int                  `json:"verbosity"` // 0=errors,1=info,2=debug,3=trace
	// MassiveAPIKey only comes from the environment.
	MassiveAPIKey string `json:"-"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	return &Config{
		Mode:       ModePrice,
		Underlying: "SPY",
		Contract: pricing.Contract{
			Spot:       100,
			Strike:     100,
			Maturity:   1,
			Rate:       0.05,
			Volatility: 0.2,
			Type:       pricing.Call,
		},
		Solver: impliedvol.DefaultOptions(),
		Smile: SmileConfig{
			Source: SourceSynthetic,
			Synthetic: smile.Synthetic{
				Spot:      100,
				Maturity:  0.5,
				Rate:      0.05,
				BaseVol:   0.2,
				Skew:      -0.15,
				Convexity: 0.05,
			},
		},
		Hedge: HedgeConfig{
			Source:    SourceGBM,
			Rebalance: true,
			GBM:       hedge.GBM{S0: 100, Drift: 0.05, Vol: 0.2, Maturity: 1, Steps: 252, Seed: 7},
		},
		MonteCarlo: hedge.MonteCarlo{Paths: 1000, Steps: 252, Seed: 1, Drift: 0.05, Rebalance: true},
		Validation: ValidationConfig{Panel: validation.DefaultPanelSpec(), MinPrice: 0.05},
		Market:     data.DefaultSyntheticConfig(),
		ReportDir:  "./out",
		Verbosity:  1,
	}
}

// Load reads the JSON file at path over Default, loads envFiles (".env"
// when none are given) into the environment and applies the environment
// overrides. An empty path skips the file; missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := json.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvVerbosity); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvVerbosity, v)
		}
		c.Verbosity = n
	}
	if v, ok := lookup(EnvReportDir); ok && v != "" {
		c.ReportDir = v
	}
	if v, ok := lookup(EnvRate); ok && v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvRate, v)
		}
		c.Contract.Rate = r
		c.Smile.Synthetic.Rate = r
		c.Market.Rate = r
	}
	if v, ok := lookup(EnvMassive); ok {
		c.MassiveAPIKey = v
	}
	return nil
}

// Validate checks the fields needed by the selected mode. Numeric domain
// checks are left to the packages that consume them.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePrice, ModeSmile, ModeHedge, ModeMonteCarlo, ModeValidate:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.Verbosity < 0 || c.Verbosity > 3 {
		return fmt.Errorf("%w: verbosity %d out of range 0..3", ErrInvalidConfig, c.Verbosity)
	}
	if c.ReportDir == "" {
		return fmt.Errorf("%w: report_dir is empty", ErrInvalidConfig)
	}

	switch c.Mode {
	case ModeSmile:
		switch c.Smile.Source {
		case SourceSynthetic:
		case SourceProvider:
			if c.Underlying == "" {
				return fmt.Errorf("%w: smile from provider needs an underlying", ErrInvalidConfig)
			}
			if _, err := c.ExpiryDate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown smile source %q", ErrInvalidConfig, c.Smile.Source)
		}
	case ModeHedge:
		switch c.Hedge.Source {
		case SourceGBM:
		case SourceProvider:
			from, to, err := c.HedgeRange()
			if err != nil {
				return err
			}
			if !to.After(from) {
				return fmt.Errorf("%w: hedge range %s..%s is empty", ErrInvalidConfig, c.Hedge.From, c.Hedge.To)
			}
		default:
			return fmt.Errorf("%w: unknown hedge source %q", ErrInvalidConfig, c.Hedge.Source)
		}
	case ModeMonteCarlo:
		if c.MonteCarlo.Paths < 1 || c.MonteCarlo.Steps < 1 {
			return fmt.Errorf("%w: montecarlo needs at least one path and one step", ErrInvalidConfig)
		}
	}
	return nil
}

// ExpiryDate parses Expiry.
func (c *Config) ExpiryDate() (time.Time, error) {
	return parseDate("expiry", c.Expiry)
}

// HedgeRange parses the hedge replay dates.
func (c *Config) HedgeRange() (from, to time.Time, err error) {
	if from, err = parseDate("hedge.from", c.Hedge.From); err != nil {
		return
	}
	to, err = parseDate("hedge.to", c.Hedge.To)
	return
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(data.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a %s date", ErrInvalidConfig, field, s, data.DateLayout)
	}
	return t, nil
}
