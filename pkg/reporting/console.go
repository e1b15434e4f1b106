package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-decision-engine/internal/pipeline"
	"github.com/ducminhle1904/crypto-decision-engine/internal/sentiment"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// RenderDecisions prints one row per decision
func RenderDecisions(w io.Writer, decisions []types.TradeDecision) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("DECISIONS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Symbol", "Outcome", "Action", "Advisory", "Conf", "Risk", "Size", "Stop", "Target", "Mode"})
	for _, d := range decisions {
		t.AppendRow(table.Row{
			d.Symbol,
			colorOutcome(d.Outcome),
			d.Action,
			d.Recommended,
			d.Confidence,
			d.RiskLevel,
			fmt.Sprintf("%.8f", d.PositionSize),
			fmt.Sprintf("%.2f", d.StopLossPrice),
			fmt.Sprintf("%.2f", d.TakeProfitPrice),
			d.Mode,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	t.Render()
}

// RenderCycle prints the evidence and outcome of a single cycle
func RenderCycle(w io.Writer, r pipeline.CycleReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("CYCLE %s %s", r.Symbol, r.ID))
	t.SetStyle(table.StyleRounded)

	c := r.Consensus
	spread := "n/a"
	if c.SpreadDefined() {
		spread = fmt.Sprintf("%.4f%%", c.MaxSpreadPct*100)
	}
	t.AppendRows([]table.Row{
		{"Reference price", fmt.Sprintf("%.8g", c.ReferencePrice)},
		{"Sources", strings.Join(c.Sources(), ", ")},
		{"Spread", spread},
		{"Verified", c.Verified},
	})
	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"Sentiment", fmt.Sprintf("%+.2f %s (conf %.2f)", r.Sentiment.Score, sentiment.Interpret(r.Sentiment.Score), r.Sentiment.Confidence)},
		{"Advisory", fmt.Sprintf("%s %.0f", r.Recommendation.Action, r.Recommendation.Confidence)},
		{"Equity", fmt.Sprintf("%.2f", r.Portfolio.TotalEquity)},
	})
	if a := r.Assessment; a != nil {
		t.AppendRows([]table.Row{
			{"Sizing", a.Method},
			{"Concentration", fmt.Sprintf("%.2f%%", a.ConcentrationPct*100)},
			{"Exposure", fmt.Sprintf("%.2f%%", a.ExposurePct*100)},
		})
	}
	t.AppendSeparator()

	d := r.Decision
	t.AppendRows([]table.Row{
		{"Outcome", colorOutcome(d.Outcome)},
		{"Decision", fmt.Sprintf("%s %.8f (%s)", d.Action, d.PositionSize, d.Mode)},
		{"Confidence", d.Confidence},
		{"Rationale", d.Rationale},
	})
	for _, note := range r.Degraded {
		t.AppendRow(table.Row{"Degraded", note})
	}
	for _, note := range d.Audit {
		t.AppendRow(table.Row{"Audit", note})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 80, Align: text.AlignLeft},
	})
	t.Render()
}

func colorOutcome(o types.Outcome) string {
	switch o {
	case types.OutcomeApproved:
		return text.FgGreen.Sprint(o)
	case types.OutcomeRejected:
		return text.FgRed.Sprint(o)
	default:
		return text.FgYellow.Sprint(o)
	}
}
