package reporting

import (
	"bufio"
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-decision-engine/internal/journal"
	"github.com/ducminhle1904/crypto-decision-engine/internal/pipeline"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

var at = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func decisions() []types.TradeDecision {
	return []types.TradeDecision{
		{
			ID: "01A", Symbol: "BTC", Action: types.ActionBuy, Recommended: types.ActionBuy,
			Confidence: 68, RiskLevel: types.RiskMedium, PositionSize: 0.0799200799,
			StopLossPrice: 47547.5, TakeProfitPrice: 55055, Rationale: "approved: BUY",
			Mode: types.ModeDryRun, Outcome: types.OutcomeApproved, CreatedAt: at,
		},
		{
			ID: "01B", Symbol: "ETH", Action: types.ActionHold, Recommended: types.ActionSell,
			Confidence: 40, RiskLevel: types.RiskHigh, Rationale: "held: advisory confidence 40 below threshold 60",
			Mode: types.ModeDryRun, Outcome: types.OutcomeHeld, CreatedAt: at,
		},
	}
}

func TestWriteRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, decisions()))

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "BTC", lines[0]["symbol"])
	assert.Equal(t, "BUY", lines[0]["recommendation"])
	assert.Equal(t, 0.07992008, lines[0]["position_size"])
	assert.Equal(t, "HOLD", lines[1]["recommendation"])
	assert.Equal(t, "dry_run", lines[1]["mode"])
}

func TestRenderDecisions(t *testing.T) {
	var buf bytes.Buffer
	RenderDecisions(&buf, decisions())

	out := buf.String()
	assert.Contains(t, out, "DECISIONS")
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "0.07992008")
	assert.Contains(t, out, "47547.50")
	assert.Contains(t, out, "ETH")
}

func TestRenderCycle(t *testing.T) {
	report := pipeline.CycleReport{
		ID:     "01A",
		Symbol: "BTC",
		Consensus: types.PriceConsensus{
			Symbol: "BTC", ReferencePrice: 50050, MaxSpreadPct: 0.002, Verified: true,
			Quotes: []types.PriceQuote{{SourceID: "coinbase", Price: 50000}, {SourceID: "binance", Price: 50100}},
		},
		Recommendation: types.Recommendation{Action: types.ActionBuy, Confidence: 80},
		Degraded:       []string{"sentiment: timeout"},
		Decision:       decisions()[0],
	}

	var buf bytes.Buffer
	RenderCycle(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "CYCLE BTC 01A")
	assert.Contains(t, out, "coinbase, binance")
	assert.Contains(t, out, "0.2000%")
	assert.Contains(t, out, "sentiment: timeout")
}

func TestWriteDecisionsXLSX(t *testing.T) {
	spread := 0.002
	entries := []journal.Entry{
		journal.NewEntry(decisions()[0], types.PriceConsensus{
			ReferencePrice: 50050, MaxSpreadPct: spread, Verified: true,
			Quotes: []types.PriceQuote{{SourceID: "coinbase"}, {SourceID: "binance"}},
		}),
		journal.NewEntry(decisions()[1], types.PriceConsensus{
			ReferencePrice: 3000,
			Quotes:         []types.PriceQuote{{SourceID: "coinbase"}},
		}),
	}

	path := filepath.Join(t.TempDir(), "out", "decisions.xlsx")
	require.NoError(t, WriteDecisionsXLSX(path, entries))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{"Decisions", "Summary"}, fx.GetSheetList())

	v, err := fx.GetCellValue("Decisions", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", v)

	v, _ = fx.GetCellValue("Decisions", "C2")
	assert.Equal(t, "BTC", v)
	v, _ = fx.GetCellValue("Decisions", "D2")
	assert.Equal(t, "APPROVED", v)
	v, _ = fx.GetCellValue("Decisions", "M3")
	assert.Equal(t, "n/a", v)
	v, _ = fx.GetCellValue("Decisions", "O2")
	assert.Equal(t, "coinbase, binance", v)

	v, _ = fx.GetCellValue("Summary", "A3")
	assert.Equal(t, "ETH", v)
	v, _ = fx.GetCellValue("Summary", "B2")
	assert.Equal(t, "1", v)
}

func TestDefaultReportPath(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "decisions_2024-06-01.xlsx"), DefaultReportPath(at))
	require.NoError(t, EnsureDirectoryExists("plain.xlsx"))
}
