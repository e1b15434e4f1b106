package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-decision-engine/internal/config"
)

// rootFlags are shared by every subcommand
type rootFlags struct {
	configPath string
	envFile    string
	symbols    []string
	execute    bool
	live       bool
	json       bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "fusion",
		Short: "Decision fusion and risk engine for crypto trading",
		Long: `Fusion cross-checks prices from independent sources, sizes positions under
portfolio risk limits, merges sentiment with an advisory recommendation and gates
every decision before anything can reach an exchange.

Decisions are dry_run unless execution is explicitly enabled and the exchange
environment matches the declared one.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to YAML or JSON config file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "environment file with API credentials")
	pf.StringSliceVarP(&flags.symbols, "symbols", "s", nil, "symbols to evaluate (overrides config)")
	pf.BoolVar(&flags.execute, "execute", false, "request execute mode (still gated)")
	pf.BoolVar(&flags.live, "live", false, "declare the live environment")
	pf.BoolVar(&flags.json, "json", false, "print decision records as JSON lines")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newAnalyzeCmd(flags),
		newRunCmd(flags),
		newValidateCmd(flags),
		newReportCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the env file and config, then applies command line overrides
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("symbols") && len(flags.symbols) > 0 {
		cfg.Symbols = make([]string, 0, len(flags.symbols))
		for _, s := range flags.symbols {
			cfg.Symbols = append(cfg.Symbols, strings.ToUpper(strings.TrimSpace(s)))
		}
	}
	if changed("execute") {
		cfg.Mode.Execute = flags.execute
	}
	if changed("live") {
		cfg.Mode.Live = flags.live
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
