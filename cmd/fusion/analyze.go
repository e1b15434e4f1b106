package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-decision-engine/internal/pipeline"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/reporting"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [symbols...]",
		Short: "Run one decision cycle per symbol and print the decisions",
		Example: `  fusion analyze BTC ETH
  fusion analyze --json -s SOL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			symbols := cfg.Symbols
			if len(args) > 0 {
				symbols = make([]string, 0, len(args))
				for _, s := range args {
					symbols = append(symbols, strings.ToUpper(strings.TrimSpace(s)))
				}
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			results := a.engine.RunAll(ctx, symbols)
			return printResults(cmd.OutOrStdout(), results, flags.json)
		},
	}
}

// printResults writes cycle reports and a summary table, or JSON records.
// It fails only when no cycle produced a decision.
func printResults(w io.Writer, results []pipeline.CycleResult, asJSON bool) error {
	var decisions []types.TradeDecision
	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.Symbol, r.Err))
			continue
		}
		decisions = append(decisions, r.Report.Decision)
		if !asJSON {
			reporting.RenderCycle(w, r.Report)
		}
	}

	if asJSON {
		if err := reporting.WriteRecords(w, decisions); err != nil {
			return err
		}
	} else if len(decisions) > 0 {
		reporting.RenderDecisions(w, decisions)
	}

	if len(decisions) == 0 && len(failed) > 0 {
		return fmt.Errorf("no decisions produced: %s", strings.Join(failed, "; "))
	}
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
