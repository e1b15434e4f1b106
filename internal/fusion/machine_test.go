package fusion

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-decision-engine/internal/consensus"
	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func quotes(prices ...float64) []types.PriceQuote {
	sources := []string{"coinbase", "binance", "yahoo", "bybit"}
	out := make([]types.PriceQuote, 0, len(prices))
	for i, p := range prices {
		out = append(out, types.PriceQuote{SourceID: sources[i], Symbol: "BTC", Price: p, Timestamp: now})
	}
	return out
}

func scenarioParams() risk.Parameters {
	p := risk.DefaultParameters()
	p.MaxPositionSizePct = 0.5
	p.RiskPerTradePct = 0.02
	p.StopLossPct = 0.05
	p.SizingMethod = risk.FixedRisk
	return p
}

// runCycle drives a machine through every step with real verifier and risk engine
func runCycle(t *testing.T, cfg Config, q []types.PriceQuote, rec types.Recommendation, s types.SentimentScore) *Machine {
	t.Helper()
	m := New("BTC", cfg)
	m.now = func() time.Time { return now }

	c, err := consensus.Verify("BTC", q, consensus.Options{TolerancePct: 0.01, Freshness: time.Minute}, now)
	require.NoError(t, m.VerifyPrice(c, err))
	if m.State().Terminal() {
		return m
	}

	direction := rec.Action
	if direction == types.ActionHold {
		direction = types.ActionBuy
	}
	portfolio := types.PortfolioState{CashBalance: 10000, TotalEquity: 10000}
	require.NoError(t, m.AssessRisk(risk.Assess(c, portfolio, scenarioParams(), direction)))
	if m.State().Terminal() {
		return m
	}

	require.NoError(t, m.Fuse(rec, s))
	_, _, err = m.Resolve()
	require.NoError(t, err)
	return m
}

func TestScenarioApproved(t *testing.T) {
	rec := types.Recommendation{Symbol: "BTC", Action: types.ActionBuy, Confidence: 80, Rationale: "momentum"}
	m := runCycle(t, DefaultConfig(), quotes(50000, 50100), rec, types.SentimentScore{Symbol: "BTC", Confidence: 0.5})

	assert.Equal(t, StateApproved, m.State())
	f, ok := m.Fused()
	require.True(t, ok)
	assert.InDelta(t, 68, f.FinalConfidence, 1e-9)
	assert.Equal(t, 50050.0, f.Consensus.ReferencePrice)
	assert.True(t, f.Consensus.Verified)

	d, err := m.Decision("id-1", types.ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, types.ActionBuy, d.Action)
	assert.Equal(t, 68, d.Confidence)
	assert.Equal(t, types.OutcomeApproved, d.Outcome)
	assert.InDelta(t, 0.07992, d.PositionSize, 1e-5)
	assert.True(t, strings.HasPrefix(d.Rationale, "approved: BUY"))
	assert.Contains(t, d.Rationale, "advisory: momentum")

	var states []State
	for _, tr := range m.History() {
		states = append(states, tr.To)
	}
	assert.Equal(t, []State{StatePriceVerified, StateRiskAssessed, StateFused, StateApproved}, states)
}

func TestScenarioSingleSourceStrict(t *testing.T) {
	rec := types.Recommendation{Symbol: "BTC", Action: types.ActionBuy, Confidence: 100}
	cfg := Config{ConfidenceThreshold: 60, Strict: true}
	m := runCycle(t, cfg, quotes(50000), rec, types.SentimentScore{Confidence: 1})

	assert.Equal(t, StateRejected, m.State())
	assert.Equal(t, "rejected: price consensus unverified in strict mode (single price source)", m.Reason())

	// Without strict mode the same cycle is held, never approved
	m = runCycle(t, DefaultConfig(), quotes(50000), rec, types.SentimentScore{Confidence: 1})
	assert.Equal(t, StateHeld, m.State())
}

func TestScenarioHoldAlwaysHeld(t *testing.T) {
	hold := types.Recommendation{Symbol: "BTC", Action: types.ActionHold, Confidence: 99}
	for _, q := range [][]types.PriceQuote{quotes(50000, 50100), quotes(50000), quotes(50000, 60000)} {
		for _, strict := range []bool{false, true} {
			m := runCycle(t, Config{ConfidenceThreshold: 60, Strict: strict}, q, hold, types.SentimentScore{Confidence: 1})
			assert.Equal(t, StateHeld, m.State())

			d, err := m.Decision("", types.ModeExecute)
			require.NoError(t, err)
			assert.Equal(t, types.ActionHold, d.Action)
		}
	}
}

func TestScenarioSellWithoutHoldingsRejected(t *testing.T) {
	rec := types.Recommendation{Symbol: "BTC", Action: types.ActionSell, Confidence: 90}
	m := runCycle(t, DefaultConfig(), quotes(50000, 50100), rec, types.SentimentScore{Confidence: 1})

	assert.Equal(t, StateRejected, m.State())
	assert.True(t, strings.HasPrefix(m.Reason(), "rejected: position size below minimum trade amount"), m.Reason())

	d, err := m.Decision("", types.ModeExecute)
	require.NoError(t, err)
	assert.Equal(t, types.ActionHold, d.Action)
	assert.Equal(t, 0.0, d.PositionSize)
}

func TestStalePricesHold(t *testing.T) {
	m := New("BTC", DefaultConfig())
	_, err := consensus.Verify("BTC", []types.PriceQuote{{SourceID: "a", Price: 1, Timestamp: now.Add(-time.Hour)}},
		consensus.Options{Freshness: time.Minute}, now)
	require.True(t, errors.Is(err, decerrors.ErrStalePrice))

	require.NoError(t, m.VerifyPrice(types.PriceConsensus{Symbol: "BTC"}, err))
	assert.Equal(t, StateHeld, m.State())
	assert.True(t, strings.HasPrefix(m.Reason(), "held: stale price data"))

	d, err := m.Decision("", types.ModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, types.RiskHigh, d.RiskLevel)
	assert.Equal(t, 0.0, d.PositionSize)
	assert.Equal(t, types.ActionHold, d.Recommended)
}

func TestInvalidRiskInputHolds(t *testing.T) {
	m := New("BTC", DefaultConfig())
	require.NoError(t, m.VerifyPrice(types.PriceConsensus{Symbol: "BTC", ReferencePrice: 100, Verified: true}, nil))
	require.NoError(t, m.AssessRisk(risk.Assessment{}, decerrors.NewInvalidRiskInputError("total_equity", 0)))

	assert.Equal(t, StateHeld, m.State())
	assert.Contains(t, m.Reason(), "held: invalid risk input")
}

func TestOutOfOrderTransitions(t *testing.T) {
	m := New("BTC", DefaultConfig())
	assert.ErrorIs(t, m.AssessRisk(risk.Assessment{}, nil), ErrInvalidTransition)
	assert.ErrorIs(t, m.Fuse(types.Recommendation{}, types.SentimentScore{}), ErrInvalidTransition)
	_, _, err := m.Resolve()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Decision("", types.ModeDryRun)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.VerifyPrice(types.PriceConsensus{}, nil))
	assert.ErrorIs(t, m.VerifyPrice(types.PriceConsensus{}, nil), ErrInvalidTransition)
	assert.Equal(t, "PRICE_VERIFIED", m.State().String())
}

func TestEvaluateGuards(t *testing.T) {
	verified := types.PriceConsensus{Symbol: "BTC", Verified: true, MaxSpreadPct: 0.001,
		Quotes: quotes(50000, 50050)}
	unverified := types.PriceConsensus{Symbol: "BTC", Verified: false, MaxSpreadPct: 0.03,
		Quotes: quotes(50000, 51500)}
	buy := types.Recommendation{Action: types.ActionBuy, Confidence: 80}

	tests := []struct {
		name   string
		fused  Fused
		cfg    Config
		want   State
		prefix string
	}{
		{"approved", Fused{Symbol: "BTC", Consensus: verified, Recommendation: buy, FinalConfidence: 68}, DefaultConfig(), StateApproved, "approved:"},
		{"at threshold", Fused{Consensus: verified, Recommendation: buy, FinalConfidence: 60}, DefaultConfig(), StateApproved, "approved:"},
		{"low confidence", Fused{Consensus: verified, Recommendation: buy, FinalConfidence: 42.7}, DefaultConfig(), StateHeld, "held: advisory confidence 42 below threshold 60"},
		{"unknown action", Fused{Consensus: verified, Recommendation: types.Recommendation{Action: "MOON", Confidence: 90}, FinalConfidence: 90}, DefaultConfig(), StateHeld, "held: advisory recommends HOLD"},
		{"below minimum", Fused{Consensus: verified, Recommendation: buy, FinalConfidence: 90, Assessment: risk.Assessment{RejectedReason: risk.ReasonBelowMinimum}}, DefaultConfig(), StateRejected, "rejected: position size below minimum trade amount"},
		{"rejection beats low confidence", Fused{Consensus: verified, Recommendation: buy, FinalConfidence: 10, Assessment: risk.Assessment{RejectedReason: risk.ReasonMaxDrawdown}}, DefaultConfig(), StateRejected, "rejected: portfolio drawdown"},
		{"exposure limit", Fused{Consensus: verified, Recommendation: buy, FinalConfidence: 90, Assessment: risk.Assessment{RejectedReason: risk.ReasonMaxExposure, ExposurePct: 0.95}}, DefaultConfig(), StateRejected, "rejected: total exposure 95.0% leaves no room under limit"},
		{"unverified strict", Fused{Consensus: unverified, Recommendation: buy, FinalConfidence: 90}, Config{ConfidenceThreshold: 60, Strict: true}, StateRejected, "rejected: price consensus unverified in strict mode (spread 3.00%"},
		{"unverified lenient", Fused{Consensus: unverified, Recommendation: buy, FinalConfidence: 90}, DefaultConfig(), StateHeld, "held: price consensus unverified (spread 3.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, reason := Evaluate(tt.fused, tt.cfg)
			assert.Equal(t, tt.want, state)
			assert.True(t, strings.HasPrefix(reason, tt.prefix), reason)

			// Guards are pure
			again, againReason := Evaluate(tt.fused, tt.cfg)
			assert.Equal(t, state, again)
			assert.Equal(t, reason, againReason)
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	rec := types.Recommendation{Action: types.ActionBuy, Confidence: 50}
	m := runCycle(t, DefaultConfig(), quotes(50000, 50100), rec, types.SentimentScore{Confidence: 0})

	first, reason, err := m.Resolve()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		state, again, err := m.Resolve()
		require.NoError(t, err)
		assert.Equal(t, first, state)
		assert.Equal(t, reason, again)
	}
	assert.Equal(t, StateHeld, first)
	assert.Equal(t, "held: advisory confidence 35 below threshold 60", reason)
}

func TestBlendConfidence(t *testing.T) {
	assert.InDelta(t, 68, BlendConfidence(80, 0.5), 1e-9)
	assert.InDelta(t, 70, BlendConfidence(100, 0), 1e-9)
	assert.Equal(t, 100.0, BlendConfidence(150, 1))
	assert.Equal(t, 0.0, BlendConfidence(-20, 1))
	assert.InDelta(t, 80, BlendConfidence(80, 7), 1e-9)

	d := DefaultRecommendation("BTC", "timeout")
	assert.Equal(t, types.ActionHold, d.Action)
	assert.Equal(t, 0.0, d.Confidence)
}
