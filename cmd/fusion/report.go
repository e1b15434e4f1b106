package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-decision-engine/internal/journal"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/reporting"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

func newReportCmd(flags *rootFlags) *cobra.Command {
	var (
		symbol  string
		outcome string
		since   time.Duration
		limit   int
		xlsx    string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show journaled decisions or export them to a workbook",
		Example: `  fusion report --since 24h
  fusion report --outcome APPROVED --xlsx results/approved.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cfg.Journal.Type != "sqlite" {
				return fmt.Errorf("journal is disabled (type %q)", cfg.Journal.Type)
			}

			j, err := openJournal(cfg.Journal.DBPath)
			if err != nil {
				return err
			}
			defer j.Close()

			filter := journal.Filter{
				Symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
				Outcome: types.Outcome(strings.ToUpper(outcome)),
				Limit:   limit,
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			entries, err := j.List(contextOrBackground(cmd.Context()), filter)
			if err != nil {
				return fmt.Errorf("query journal: %w", err)
			}

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("xlsx") {
				path := xlsx
				if path == "" {
					path = reporting.DefaultReportPath(time.Now())
				}
				if err := reporting.WriteDecisionsXLSX(path, entries); err != nil {
					return fmt.Errorf("write workbook: %w", err)
				}
				fmt.Fprintf(out, "%d decisions written to %s\n", len(entries), path)
				return nil
			}

			decisions := make([]types.TradeDecision, 0, len(entries))
			for _, e := range entries {
				decisions = append(decisions, e.Decision())
			}
			if flags.json {
				return reporting.WriteRecords(out, decisions)
			}
			reporting.RenderDecisions(out, decisions)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "only this symbol")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only this outcome (APPROVED, HELD, REJECTED)")
	cmd.Flags().DurationVar(&since, "since", 0, "only decisions newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of decisions")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "export to an Excel workbook at this path")
	return cmd
}
