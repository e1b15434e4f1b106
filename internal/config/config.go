package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/fusion"
	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
)

// Config is built once at startup and passed explicitly to every component
type Config struct {
	Symbols    []string         `yaml:"symbols" json:"symbols"`
	Risk       risk.Parameters  `yaml:"risk" json:"risk"`
	Consensus  ConsensusConfig  `yaml:"consensus" json:"consensus"`
	Fusion     fusion.Config    `yaml:"fusion" json:"fusion"`
	Mode       ModeConfig       `yaml:"mode" json:"mode"`
	Sources    SourcesConfig    `yaml:"sources" json:"sources"`
	Timeouts   TimeoutConfig    `yaml:"timeouts" json:"timeouts"`
	Journal    JournalConfig    `yaml:"journal" json:"journal"`
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`
	Schedule   ScheduleConfig   `yaml:"schedule" json:"schedule"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// ConsensusConfig configures the price verifier
type ConsensusConfig struct {
	TolerancePct float64  `yaml:"tolerance_pct" json:"tolerance_pct"`
	Freshness    Duration `yaml:"freshness" json:"freshness"`
}

// ModeConfig declares how far decisions may travel
type ModeConfig struct {
	Execute bool `yaml:"execute" json:"execute"`
	Live    bool `yaml:"live" json:"live"`
}

// SourcesConfig selects and configures the collaborators
type SourcesConfig struct {
	Prices    []string        `yaml:"prices" json:"prices"` // coinbase, binance, yahoo, bybit
	Bybit     BybitConfig     `yaml:"bybit" json:"bybit"`
	Sentiment SentimentConfig `yaml:"sentiment" json:"sentiment"`
	Advisory  AdvisoryConfig  `yaml:"advisory" json:"advisory"`
	Portfolio PortfolioConfig `yaml:"portfolio" json:"portfolio"`
	Telegram  TelegramConfig  `yaml:"telegram" json:"telegram"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
}

// BybitConfig holds exchange credentials and environment
type BybitConfig struct {
	APIKey    string `yaml:"-" json:"-"`
	APISecret string `yaml:"-" json:"-"`
	Testnet   bool   `yaml:"testnet" json:"testnet"`
	Demo      bool   `yaml:"demo" json:"demo"`
	Category  string `yaml:"category" json:"category"`
}

// Sandbox reports whether the exchange collaborator points at a non-production environment
func (b BybitConfig) Sandbox() bool {
	return b.Testnet || b.Demo
}

// SentimentConfig configures the sentiment feed
type SentimentConfig struct {
	Provider string   `yaml:"provider" json:"provider"` // lunarcrush or none
	APIKey   string   `yaml:"-" json:"-"`
	BaseURL  string   `yaml:"base_url" json:"base_url"`
	CacheTTL Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// AdvisoryConfig configures the advisory service endpoint
type AdvisoryConfig struct {
	EndpointURL string `yaml:"endpoint_url" json:"endpoint_url"`
	APIKey      string `yaml:"-" json:"-"`
}

// PortfolioConfig selects the portfolio collaborator
type PortfolioConfig struct {
	Provider string `yaml:"provider" json:"provider"` // static or bybit
	File     string `yaml:"file" json:"file"`
}

// TelegramConfig enables decision alerts
type TelegramConfig struct {
	Token  string `yaml:"-" json:"-"`
	ChatID string `yaml:"chat_id" json:"chat_id"`
}

// RetryConfig is the retry policy handed to each collaborator
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay" json:"max_delay"`
}

// TimeoutConfig bounds each collaborator call
type TimeoutConfig struct {
	Price     Duration `yaml:"price" json:"price"`
	Sentiment Duration `yaml:"sentiment" json:"sentiment"`
	Portfolio Duration `yaml:"portfolio" json:"portfolio"`
	Advisory  Duration `yaml:"advisory" json:"advisory"`
}

// JournalConfig configures the decision audit journal
type JournalConfig struct {
	Type   string `yaml:"type" json:"type"` // sqlite or none
	DBPath string `yaml:"db_path" json:"db_path"`
}

// MonitoringConfig configures metrics and health endpoints
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// ScheduleConfig configures continuous mode
type ScheduleConfig struct {
	Cron    string `yaml:"cron" json:"cron"`
	Workers int    `yaml:"workers" json:"workers"`
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `yaml:"level" json:"level"`
	Dir     string `yaml:"dir" json:"dir"`
	Console bool   `yaml:"console" json:"console"`
	JSON    bool   `yaml:"json" json:"json"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Symbols:   []string{"BTC", "ETH"},
		Risk:      risk.DefaultParameters(),
		Consensus: ConsensusConfig{TolerancePct: 0.005, Freshness: Duration(time.Minute)},
		Fusion:    fusion.DefaultConfig(),
		Mode:      ModeConfig{Execute: false, Live: false},
		Sources: SourcesConfig{
			Prices:    []string{"coinbase", "binance", "yahoo"},
			Bybit:     BybitConfig{Testnet: true, Category: "spot"},
			Sentiment: SentimentConfig{Provider: "none", BaseURL: "https://lunarcrush.com/api4/public", CacheTTL: Duration(time.Hour)},
			Portfolio: PortfolioConfig{Provider: "static", File: "portfolio.yaml"},
			Retry:     RetryConfig{MaxAttempts: 3, InitialDelay: Duration(500 * time.Millisecond), MaxDelay: Duration(5 * time.Second)},
		},
		Timeouts: TimeoutConfig{
			Price:     Duration(5 * time.Second),
			Sentiment: Duration(5 * time.Second),
			Portfolio: Duration(5 * time.Second),
			Advisory:  Duration(20 * time.Second),
		},
		Journal:    JournalConfig{Type: "sqlite", DBPath: "data/decisions.db"},
		Monitoring: MonitoringConfig{Enabled: true, Addr: ":9090"},
		Schedule:   ScheduleConfig{Cron: "0 */15 * * * *", Workers: 4},
		Log:        LogConfig{Level: "info", Dir: "logs", Console: true},
	}
}

// LoadEnvFile loads a .env file into the process environment if it exists
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return decerrors.NewConfigurationError("config", "load env", fmt.Sprintf("failed to load %s: %v", path, err))
	}
	return nil
}

// Load reads defaults, then the YAML (or JSON) file if given, then environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, decerrors.NewConfigurationError("config", "load", fmt.Sprintf("read config file: %v", err))
		}

		// Try YAML first, fall back to JSON
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
				return nil, decerrors.NewConfigurationError("config", "load",
					fmt.Sprintf("parse config (tried YAML and JSON): %v", err))
			}
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables; secrets only ever come from here
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FUSION_SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
	if v, ok := lookupBool(getenv, "FUSION_EXECUTE"); ok {
		c.Mode.Execute = v
	}
	if v, ok := lookupBool(getenv, "FUSION_LIVE"); ok {
		c.Mode.Live = v
	}
	if v, ok := lookupBool(getenv, "FUSION_STRICT"); ok {
		c.Fusion.Strict = v
	}
	if v := getenv("FUSION_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PRICE_GUARD_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Consensus.TolerancePct = f
		}
	}
	if v := getenv("BYBIT_API_KEY"); v != "" {
		c.Sources.Bybit.APIKey = v
	}
	if v := getenv("BYBIT_API_SECRET"); v != "" {
		c.Sources.Bybit.APISecret = v
	}
	if v, ok := lookupBool(getenv, "BYBIT_TESTNET"); ok {
		c.Sources.Bybit.Testnet = v
	}
	if v, ok := lookupBool(getenv, "BYBIT_DEMO"); ok {
		c.Sources.Bybit.Demo = v
	}
	if v := getenv("ADVISORY_ENDPOINT_URL"); v != "" {
		c.Sources.Advisory.EndpointURL = v
	}
	if v := getenv("ADVISORY_API_KEY"); v != "" {
		c.Sources.Advisory.APIKey = v
	}
	if v := getenv("LUNARCRUSH_API_KEY"); v != "" {
		c.Sources.Sentiment.APIKey = v
		if c.Sources.Sentiment.Provider == "none" || c.Sources.Sentiment.Provider == "" {
			c.Sources.Sentiment.Provider = "lunarcrush"
		}
	}
	if v := getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Sources.Telegram.Token = v
	}
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Sources.Telegram.ChatID = v
	}
}

// Validate checks the configuration; any error is fatal at startup
func (c *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return decerrors.NewConfigurationError("config", "validate", fmt.Sprintf(format, args...))
	}

	if len(c.Symbols) == 0 {
		return fail("at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for i, s := range c.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return fail("symbols[%d] is empty", i)
		}
		if seen[s] {
			return fail("duplicate symbol %s", s)
		}
		seen[s] = true
		c.Symbols[i] = s
	}

	method, err := risk.ParseSizingMethod(string(c.Risk.SizingMethod))
	if err != nil {
		return fail("risk.sizing_method: %v", err)
	}
	c.Risk.SizingMethod = method
	if err := c.Risk.Validate(); err != nil {
		return err
	}

	if c.Consensus.TolerancePct <= 0 || c.Consensus.TolerancePct >= 1 {
		return fail("consensus.tolerance_pct must be in (0, 1), got %g", c.Consensus.TolerancePct)
	}
	if c.Consensus.Freshness < 0 {
		return fail("consensus.freshness must not be negative")
	}
	if c.Fusion.ConfidenceThreshold < 0 || c.Fusion.ConfidenceThreshold > 100 {
		return fail("fusion.confidence_threshold must be within [0, 100], got %g", c.Fusion.ConfidenceThreshold)
	}

	if len(c.Sources.Prices) == 0 {
		return fail("sources.prices must list at least one price source")
	}
	for _, p := range c.Sources.Prices {
		switch p {
		case "coinbase", "binance", "yahoo", "bybit":
		default:
			return fail("unknown price source %q", p)
		}
	}
	switch c.Sources.Portfolio.Provider {
	case "static":
		if c.Sources.Portfolio.File == "" {
			return fail("sources.portfolio.file is required for the static provider")
		}
	case "bybit":
		if c.Sources.Bybit.APIKey == "" || c.Sources.Bybit.APISecret == "" {
			return fail("BYBIT_API_KEY and BYBIT_API_SECRET are required for the bybit portfolio provider")
		}
	default:
		return fail("unknown portfolio provider %q", c.Sources.Portfolio.Provider)
	}
	switch c.Sources.Sentiment.Provider {
	case "none", "":
	case "lunarcrush":
		if c.Sources.Sentiment.APIKey == "" {
			return fail("LUNARCRUSH_API_KEY is required for the lunarcrush sentiment provider")
		}
	default:
		return fail("unknown sentiment provider %q", c.Sources.Sentiment.Provider)
	}
	if c.Sources.Retry.MaxAttempts < 1 {
		return fail("sources.retry.max_attempts must be at least 1")
	}

	for name, d := range map[string]Duration{
		"price": c.Timeouts.Price, "sentiment": c.Timeouts.Sentiment,
		"portfolio": c.Timeouts.Portfolio, "advisory": c.Timeouts.Advisory,
	} {
		if d <= 0 {
			return fail("timeouts.%s must be positive", name)
		}
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fail("journal.db_path required for sqlite type")
		}
	case "none", "":
	default:
		return fail("journal.type must be 'sqlite' or 'none'")
	}

	if c.Schedule.Workers < 1 {
		return fail("schedule.workers must be at least 1")
	}
	if c.Mode.Execute && c.Mode.Live && c.Sources.Bybit.Sandbox() {
		return fail("mode.live with execute enabled conflicts with a sandbox exchange (testnet/demo)")
	}
	return nil
}

// Save writes the configuration as YAML or JSON depending on the extension
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lookupBool(getenv func(string) string, key string) (bool, bool) {
	v := getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
