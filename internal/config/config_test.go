package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/pricing"
)

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvVerbosity, EnvReportDir, EnvRate, EnvMassive} {
		unsetenv(t, k)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Contract.Validate())
	assert.Equal(t, ModePrice, cfg.Mode)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "cfg.json", `{
		"mode": "smile",
		"contract": {"spot": 50, "strike": 55, "maturity": 0.25, "rate": 0.01, "volatility": 0.3, "type": "put"},
		"smile": {"source": "synthetic", "synthetic": {"spot": 50, "maturity": 0.25, "base_vol": 0.3}},
		"report_dir": "reports"
	}`)

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ModeSmile, cfg.Mode)
	assert.Equal(t, pricing.Put, cfg.Contract.Type)
	assert.Equal(t, 55.0, cfg.Contract.Strike)
	assert.Equal(t, "reports", cfg.ReportDir)
	assert.Equal(t, 0.3, cfg.Smile.Synthetic.BaseVol)
	// untouched sections keep their defaults
	assert.Equal(t, 1000, cfg.MonteCarlo.Paths)
	assert.Equal(t, 1e-6, cfg.Solver.Tolerance)
	assert.Equal(t, "SPY", cfg.Underlying)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	noEnv := filepath.Join(t.TempDir(), "missing.env")

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), noEnv)
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.json", `{"mode": `), noEnv)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeFile(t, "mode.json", `{"mode": "backtest"}`), noEnv)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvVerbosity, "3")
	t.Setenv(EnvReportDir, "/tmp/greeks")
	t.Setenv(EnvRate, "0.02")
	t.Setenv(EnvMassive, "k")

	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Verbosity)
	assert.Equal(t, "/tmp/greeks", cfg.ReportDir)
	assert.Equal(t, 0.02, cfg.Contract.Rate)
	assert.Equal(t, 0.02, cfg.Market.Rate)
	assert.Equal(t, 0.02, cfg.Smile.Synthetic.Rate)
	assert.Equal(t, "k", cfg.MassiveAPIKey)
}

func TestEnvOverridesRejectGarbage(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == EnvRate {
			return "five", true
		}
		return "", false
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv(EnvVerbosity, "9")
	_, err = Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	env := writeFile(t, "test.env", "MASSIVE_API_KEY=from-dotenv\nOPTION_GREEKS_VERBOSITY=2\n")

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.MassiveAPIKey)
	assert.Equal(t, 2, cfg.Verbosity)
}

func TestValidateModes(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"smile synthetic", func(c *Config) { c.Mode = ModeSmile }, true},
		{"smile provider", func(c *Config) { c.Mode, c.Smile.Source, c.Expiry = ModeSmile, SourceProvider, "2025-03-21" }, true},
		{"smile provider without expiry", func(c *Config) { c.Mode, c.Smile.Source = ModeSmile, SourceProvider }, false},
		{"smile unknown source", func(c *Config) { c.Mode, c.Smile.Source = ModeSmile, "bloomberg" }, false},
		{"hedge gbm", func(c *Config) { c.Mode = ModeHedge }, true},
		{"hedge provider", func(c *Config) {
			c.Mode, c.Hedge.Source, c.Hedge.From, c.Hedge.To = ModeHedge, SourceProvider, "2025-01-02", "2025-03-31"
		}, true},
		{"hedge provider reversed", func(c *Config) {
			c.Mode, c.Hedge.Source, c.Hedge.From, c.Hedge.To = ModeHedge, SourceProvider, "2025-03-31", "2025-01-02"
		}, false},
		{"hedge unknown source", func(c *Config) { c.Mode, c.Hedge.Source = ModeHedge, "tape" }, false},
		{"montecarlo no paths", func(c *Config) { c.Mode, c.MonteCarlo.Paths = ModeMonteCarlo, 0 }, false},
		{"validate", func(c *Config) { c.Mode = ModeValidate }, true},
		{"negative verbosity", func(c *Config) { c.Verbosity = -1 }, false},
		{"empty report dir", func(c *Config) { c.ReportDir = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}
