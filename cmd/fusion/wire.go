package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ducminhle1904/crypto-decision-engine/internal/collector"
	"github.com/ducminhle1904/crypto-decision-engine/internal/config"
	"github.com/ducminhle1904/crypto-decision-engine/internal/consensus"
	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-decision-engine/internal/journal"
	"github.com/ducminhle1904/crypto-decision-engine/internal/logger"
	"github.com/ducminhle1904/crypto-decision-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-decision-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-decision-engine/internal/pipeline"
	"github.com/ducminhle1904/crypto-decision-engine/internal/safety"
	"github.com/ducminhle1904/crypto-decision-engine/internal/scheduler"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// breakerConfig is shared by every collaborator's circuit breaker
var breakerConfig = safety.CircuitBreakerConfig{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	Timeout:          60 * time.Second,
}

// app holds everything a command needs, built once from the config
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	engine   *pipeline.Engine
	journal  journal.Journal
	health   *monitoring.HealthChecker
	breakers *safety.CircuitBreakerManager
	stats    *decerrors.ErrorStats
}

func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		a.log.Error().Err(err).Msg("failed to close journal")
	}
	_ = a.log.Close()
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Dir:     cfg.Log.Dir,
		Console: cfg.Log.Console,
		JSON:    cfg.Log.JSON,
	})
}

func buildApp(cfg *config.Config) (*app, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		breakers: safety.NewCircuitBreakerManager(breakerConfig),
		stats:    decerrors.NewErrorStats(50),
		journal:  journal.Noop{},
	}

	a.breakers.OnStateChange(func(name string, from, to safety.CircuitBreakerState) {
		log.Warn().Str("collaborator", name).Str("from", from.String()).Str("to", to.String()).
			Msg("circuit breaker state changed")
	})

	silence := time.Hour
	if interval, err := scheduler.Interval(cfg.Schedule.Cron, time.Now()); err == nil {
		silence = 2 * interval
	}
	a.health = monitoring.NewHealthChecker(silence)
	a.health.SetErrorSource(a.stats.Recent)
	a.health.SetCircuitSource(a.breakers.GetOpenCircuits)

	collab, err := a.collaborators()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = pipeline.NewEngine(a.settings(), collab,
		pipeline.WithLogger(log.Component("pipeline")),
		pipeline.WithErrorStats(a.stats),
		pipeline.WithHealth(a.health),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) settings() pipeline.Settings {
	cfg := a.cfg
	requested := types.ModeDryRun
	if cfg.Mode.Execute {
		requested = types.ModeExecute
	}

	return pipeline.Settings{
		Risk: cfg.Risk,
		Consensus: consensus.Options{
			TolerancePct: cfg.Consensus.TolerancePct,
			Freshness:    cfg.Consensus.Freshness.Std(),
		},
		Fusion: cfg.Fusion,
		Mode: safety.ModeConfig{
			ExecuteEnabled:  cfg.Mode.Execute,
			Live:            cfg.Mode.Live,
			ExchangeSandbox: cfg.Sources.Bybit.Sandbox(),
		},
		RequestedMode: requested,
		Timeouts: pipeline.Timeouts{
			Price:     cfg.Timeouts.Price.Std(),
			Sentiment: cfg.Timeouts.Sentiment.Std(),
			Portfolio: cfg.Timeouts.Portfolio.Std(),
			Advisory:  cfg.Timeouts.Advisory.Std(),
		},
		Workers: cfg.Schedule.Workers,
	}
}

func (a *app) retryPolicy() collector.RetryPolicy {
	r := a.cfg.Sources.Retry
	return collector.RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay.Std(),
		MaxDelay:     r.MaxDelay.Std(),
		Factor:       2,
	}
}

func (a *app) options(name string, timeout time.Duration) collector.Options {
	return collector.Options{
		Timeout: timeout,
		Retry:   a.retryPolicy(),
		Breaker: a.breakers.GetOrCreate(name),
	}
}

func (a *app) collaborators() (pipeline.Collaborators, error) {
	cfg := a.cfg
	src := cfg.Sources
	var collab pipeline.Collaborators

	var bybitClient *bybit.Client
	useBybit := src.Portfolio.Provider == "bybit"
	for _, name := range src.Prices {
		if name == "bybit" {
			useBybit = true
		}
	}
	if useBybit {
		bybitClient = bybit.NewClient(bybit.Config{
			APIKey:    src.Bybit.APIKey,
			APISecret: src.Bybit.APISecret,
			Testnet:   src.Bybit.Testnet,
			Demo:      src.Bybit.Demo,
			Category:  src.Bybit.Category,
		})
		a.log.Info().Str("environment", bybitClient.GetEnvironment()).Msg("bybit client ready")
	}

	priceTimeout := cfg.Timeouts.Price.Std()
	for _, name := range src.Prices {
		switch name {
		case "coinbase":
			collab.Prices = append(collab.Prices, collector.NewCoinbaseSource(a.options(name, priceTimeout)))
		case "binance":
			collab.Prices = append(collab.Prices, collector.NewBinanceSource(a.options(name, priceTimeout)))
		case "yahoo":
			collab.Prices = append(collab.Prices, collector.NewYahooSource(a.options(name, priceTimeout)))
		case "bybit":
			s := collector.NewBybitSource(bybitClient, a.options(name, priceTimeout))
			collab.Prices = append(collab.Prices, s)
			collab.History = s
		default:
			return collab, decerrors.NewConfigurationError("wire", "prices", fmt.Sprintf("unknown price source %q", name))
		}
	}

	if src.Sentiment.Provider == "lunarcrush" {
		opts := a.options("lunarcrush", cfg.Timeouts.Sentiment.Std())
		opts.BaseURL = src.Sentiment.BaseURL
		collab.Sentiment = collector.NewLunarCrushSentiment(src.Sentiment.APIKey, src.Sentiment.CacheTTL.Std(), opts)
	}

	if src.Advisory.EndpointURL != "" {
		collab.Advisor = collector.NewHTTPAdvisor(src.Advisory.EndpointURL, src.Advisory.APIKey,
			a.options("advisor", cfg.Timeouts.Advisory.Std()))
	} else {
		a.log.Warn().Msg("no advisory endpoint configured, every cycle will hold")
	}

	switch src.Portfolio.Provider {
	case "bybit":
		collab.Portfolio = collector.NewBybitPortfolio(bybitClient, a.options("bybit-wallet", cfg.Timeouts.Portfolio.Std()))
	default:
		collab.Portfolio = collector.NewStaticPortfolio(src.Portfolio.File)
	}

	if cfg.Journal.Type == "sqlite" {
		j, err := openJournal(cfg.Journal.DBPath)
		if err != nil {
			return collab, err
		}
		a.journal = j
		collab.Sinks = append(collab.Sinks, journal.Sink{Journal: j})
	}

	if src.Telegram.Token != "" && src.Telegram.ChatID != "" {
		collab.Sinks = append(collab.Sinks, pipeline.AlertSink{
			Notifier: notifications.NewTelegramNotifier(src.Telegram.Token, src.Telegram.ChatID),
		})
	}

	return collab, nil
}

func openJournal(path string) (*journal.SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return j, nil
}
