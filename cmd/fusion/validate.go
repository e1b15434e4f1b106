package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-decision-engine/internal/safety"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			mode := safety.ModeConfig{
				ExecuteEnabled:  cfg.Mode.Execute,
				Live:            cfg.Mode.Live,
				ExchangeSandbox: cfg.Sources.Bybit.Sandbox(),
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle("CONFIGURATION")
			t.SetStyle(table.StyleRounded)
			t.AppendRows([]table.Row{
				{"Symbols", strings.Join(cfg.Symbols, ", ")},
				{"Price sources", strings.Join(cfg.Sources.Prices, ", ")},
				{"Tolerance", fmt.Sprintf("%.2f%%", cfg.Consensus.TolerancePct*100)},
				{"Freshness", cfg.Consensus.Freshness.String()},
			})
			t.AppendSeparator()
			t.AppendRows([]table.Row{
				{"Sizing", cfg.Risk.SizingMethod},
				{"Max position", fmt.Sprintf("%.2f%%", cfg.Risk.MaxPositionSizePct*100)},
				{"Max exposure", fmt.Sprintf("%.2f%%", cfg.Risk.MaxTotalExposurePct*100)},
				{"Risk per trade", fmt.Sprintf("%.2f%%", cfg.Risk.RiskPerTradePct*100)},
				{"Stop / target", fmt.Sprintf("%.2f%% / %.2f%%", cfg.Risk.StopLossPct*100, cfg.Risk.TakeProfitPct*100)},
				{"Threshold", cfg.Fusion.ConfidenceThreshold},
				{"Strict", cfg.Fusion.Strict},
			})
			t.AppendSeparator()
			t.AppendRows([]table.Row{
				{"Execute", cfg.Mode.Execute},
				{"Environment", mode.Environment()},
				{"Exchange sandbox", mode.ExchangeSandbox},
				{"Schedule", cfg.Schedule.Cron},
			})
			t.Render()

			if cfg.Mode.Execute && !mode.Consistent() {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: declared %s environment does not match the exchange, decisions will stay dry_run\n",
					mode.Environment())
			}

			if output != "" {
				if err := cfg.Save(output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the effective configuration to this path")
	return cmd
}
