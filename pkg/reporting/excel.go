package reporting

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-decision-engine/internal/journal"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// ExcelStyles holds the workbook cell styles
type ExcelStyles struct {
	HeaderStyle   int
	BaseStyle     int
	ApprovedStyle int
	RejectedStyle int
	PercentStyle  int
}

var decisionHeaders = []string{
	"ID", "Time", "Symbol", "Outcome", "Action", "Advisory", "Confidence", "Risk",
	"Size", "Stop Loss", "Take Profit", "Reference", "Spread", "Verified", "Sources", "Mode", "Rationale",
}

// WriteDecisionsXLSX writes journal entries to a workbook with a decisions
// sheet and a per-symbol summary
func WriteDecisionsXLSX(path string, entries []journal.Entry) error {
	if err := EnsureDirectoryExists(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const decisionsSheet = "Decisions"
	const summarySheet = "Summary"
	fx.SetSheetName(fx.GetSheetName(0), decisionsSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := writeDecisionsSheet(fx, decisionsSheet, entries, styles); err != nil {
		return err
	}
	if err := writeSummarySheet(fx, summarySheet, entries, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	// Header style - Dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return styles, err
	}

	styles.ApprovedStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "006100"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return styles, err
	}

	styles.RejectedStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "9C0006"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return styles, err
	}

	// 0.00% number format
	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Border: border})
	return styles, err
}

func writeHeaders(fx *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeDecisionsSheet(fx *excelize.File, sheet string, entries []journal.Entry, styles ExcelStyles) error {
	if err := writeHeaders(fx, sheet, decisionHeaders, styles.HeaderStyle); err != nil {
		return err
	}

	for i, e := range entries {
		row := i + 2
		var spread interface{} = "n/a"
		if e.Spread != nil {
			spread = *e.Spread
		}
		values := []interface{}{
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Symbol, string(e.Outcome), string(e.Action),
			string(e.Recommended), e.Confidence, string(e.RiskLevel), e.PositionSize, e.StopLoss, e.TakeProfit,
			e.ReferencePrice, spread, e.Verified, strings.Join(e.Sources, ", "), string(e.Mode), e.Rationale,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := fx.SetSheetRow(sheet, start, &values); err != nil {
			return err
		}

		end, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := fx.SetCellStyle(sheet, start, end, styles.BaseStyle); err != nil {
			return err
		}
		outcomeCell, _ := excelize.CoordinatesToCellName(4, row)
		switch e.Outcome {
		case types.OutcomeApproved:
			fx.SetCellStyle(sheet, outcomeCell, outcomeCell, styles.ApprovedStyle)
		case types.OutcomeRejected:
			fx.SetCellStyle(sheet, outcomeCell, outcomeCell, styles.RejectedStyle)
		}
		if e.Spread != nil {
			spreadCell, _ := excelize.CoordinatesToCellName(13, row)
			fx.SetCellStyle(sheet, spreadCell, spreadCell, styles.PercentStyle)
		}
	}

	fx.SetColWidth(sheet, "A", "A", 28)
	fx.SetColWidth(sheet, "B", "B", 20)
	fx.SetColWidth(sheet, "Q", "Q", 80)
	return nil
}

type symbolSummary struct {
	total, approved, held, rejected int
	confidence                      int
}

func writeSummarySheet(fx *excelize.File, sheet string, entries []journal.Entry, styles ExcelStyles) error {
	headers := []string{"Symbol", "Decisions", "Approved", "Held", "Rejected", "Approval Rate", "Avg Confidence"}
	if err := writeHeaders(fx, sheet, headers, styles.HeaderStyle); err != nil {
		return err
	}

	var order []string
	summaries := make(map[string]*symbolSummary)
	for _, e := range entries {
		s, ok := summaries[e.Symbol]
		if !ok {
			s = &symbolSummary{}
			summaries[e.Symbol] = s
			order = append(order, e.Symbol)
		}
		s.total++
		s.confidence += e.Confidence
		switch e.Outcome {
		case types.OutcomeApproved:
			s.approved++
		case types.OutcomeRejected:
			s.rejected++
		default:
			s.held++
		}
	}

	for i, symbol := range order {
		s := summaries[symbol]
		row := i + 2
		values := []interface{}{
			symbol, s.total, s.approved, s.held, s.rejected,
			float64(s.approved) / float64(s.total),
			float64(s.confidence) / float64(s.total),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := fx.SetSheetRow(sheet, start, &values); err != nil {
			return err
		}
		end, _ := excelize.CoordinatesToCellName(len(values), row)
		fx.SetCellStyle(sheet, start, end, styles.BaseStyle)
		rateCell, _ := excelize.CoordinatesToCellName(6, row)
		fx.SetCellStyle(sheet, rateCell, rateCell, styles.PercentStyle)
	}
	return nil
}
