package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fusion.yaml")
	content := `
symbols: [btc, " eth ", SOL]
risk:
  max_position_size_pct: 0.25
  risk_per_trade_pct: 0.01
  stop_loss_pct: 0.04
  take_profit_pct: 0.08
  sizing_method: VolatilityAdjusted
consensus:
  tolerance_pct: 0.01
  freshness: 90s
fusion:
  confidence_threshold: 65
  strict: true
timeouts:
  advisory: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, cfg.Symbols)
	assert.Equal(t, risk.VolatilityAdjusted, cfg.Risk.SizingMethod)
	assert.Equal(t, 0.25, cfg.Risk.MaxPositionSizePct)
	assert.Equal(t, 0.20, cfg.Risk.MaxDrawdownPct) // untouched default
	assert.Equal(t, 90*time.Second, cfg.Consensus.Freshness.Std())
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Advisory.Std())
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Price.Std())
	assert.True(t, cfg.Fusion.Strict)
	assert.Equal(t, 65.0, cfg.Fusion.ConfidenceThreshold)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, decerrors.ErrConfiguration))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("risk:\n  stop_loss_pct: 1.5\n"), 0644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, decerrors.ErrConfiguration))

	var de *decerrors.DecisionError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.IsFatal())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FUSION_SYMBOLS":        "btc, doge",
		"FUSION_EXECUTE":        "true",
		"FUSION_LIVE":           "1",
		"FUSION_LOG_LEVEL":      "debug",
		"PRICE_GUARD_TOLERANCE": "0.02",
		"BYBIT_API_KEY":         "key",
		"BYBIT_API_SECRET":      "secret",
		"BYBIT_TESTNET":         "false",
		"LUNARCRUSH_API_KEY":    "lc",
		"ADVISORY_ENDPOINT_URL": "http://localhost:8000/decide",
		"FUSION_STRICT":         "not-a-bool",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, []string{"btc", "doge"}, cfg.Symbols)
	assert.True(t, cfg.Mode.Execute)
	assert.True(t, cfg.Mode.Live)
	assert.False(t, cfg.Fusion.Strict)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.02, cfg.Consensus.TolerancePct)
	assert.Equal(t, "key", cfg.Sources.Bybit.APIKey)
	assert.False(t, cfg.Sources.Bybit.Testnet)
	assert.Equal(t, "lunarcrush", cfg.Sources.Sentiment.Provider)
	assert.Equal(t, "http://localhost:8000/decide", cfg.Sources.Advisory.EndpointURL)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"duplicate symbols", func(c *Config) { c.Symbols = []string{"BTC", "btc"} }},
		{"unknown sizing", func(c *Config) { c.Risk.SizingMethod = "martingale" }},
		{"exposure above 100%", func(c *Config) { c.Risk.MaxTotalExposurePct = 1.2 }},
		{"zero tolerance", func(c *Config) { c.Consensus.TolerancePct = 0 }},
		{"threshold above 100", func(c *Config) { c.Fusion.ConfidenceThreshold = 120 }},
		{"unknown price source", func(c *Config) { c.Sources.Prices = []string{"kraken"} }},
		{"bybit portfolio without keys", func(c *Config) { c.Sources.Portfolio.Provider = "bybit" }},
		{"lunarcrush without key", func(c *Config) { c.Sources.Sentiment.Provider = "lunarcrush" }},
		{"zero timeout", func(c *Config) { c.Timeouts.Advisory = 0 }},
		{"bad journal", func(c *Config) { c.Journal.Type = "csv" }},
		{"no workers", func(c *Config) { c.Schedule.Workers = 0 }},
		{"live execute on testnet", func(c *Config) {
			c.Mode.Execute, c.Mode.Live = true, true
			c.Sources.Bybit.Testnet = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, decerrors.ErrConfiguration), err.Error())
		})
	}
}

func TestSaveWritesLoadableYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fusion.yaml")
	cfg := Default()
	cfg.Symbols = []string{"SOL"}
	cfg.Sources.Bybit.APISecret = "do-not-write"
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "do-not-write")
	assert.Contains(t, string(raw), "freshness: 1m0s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOL"}, loaded.Symbols)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(""))
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FUSION_TEST_VALUE=from-dotenv\n"), 0644))
	t.Setenv("FUSION_TEST_VALUE", "")
	os.Unsetenv("FUSION_TEST_VALUE")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv("FUSION_TEST_VALUE"))
}
