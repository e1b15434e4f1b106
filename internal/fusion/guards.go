package fusion

import (
	"fmt"
	"math"
	"strings"

	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// DefaultConfidenceThreshold is the minimum blended confidence for approval
const DefaultConfidenceThreshold = 60.0

// Config holds the fusion guards' settings
type Config struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	Strict              bool    `yaml:"strict" json:"strict"` // reject rather than hold on unverified prices
}

// DefaultConfig returns the default fusion settings
func DefaultConfig() Config {
	return Config{ConfidenceThreshold: DefaultConfidenceThreshold}
}

// Fused is everything the terminal guards look at
type Fused struct {
	Symbol          string
	Consensus       types.PriceConsensus
	Assessment      risk.Assessment
	Recommendation  types.Recommendation
	Sentiment       types.SentimentScore
	FinalConfidence float64
}

// BlendConfidence weights advisory confidence by sentiment confidence, clamped to [0, 100]
func BlendConfidence(advisory, sentimentConfidence float64) float64 {
	sc := math.Max(0, math.Min(1, sentimentConfidence))
	c := advisory * (0.7 + 0.3*sc)
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(100, c))
}

// DefaultRecommendation is the advisory value used when the advisor is unavailable
func DefaultRecommendation(symbol, reason string) types.Recommendation {
	return types.Recommendation{
		Symbol:     symbol,
		Action:     types.ActionHold,
		Confidence: 0,
		Rationale:  "advisory unavailable: " + reason,
	}
}

// Evaluate applies the terminal guards to a fused state. Price and risk gates
// are checked before the advisory confidence. It is a pure function.
func Evaluate(f Fused, cfg Config) (State, string) {
	rec := f.Recommendation
	switch {
	case rec.Action == types.ActionHold || (rec.Action != types.ActionBuy && rec.Action != types.ActionSell):
		return StateHeld, withAdvice("held: advisory recommends HOLD", rec)

	case f.Assessment.Rejected():
		return StateRejected, rejectionReason(f)

	case !f.Consensus.Verified && cfg.Strict:
		return StateRejected, "rejected: price consensus unverified in strict mode (" + consensusDetail(f.Consensus) + ")"

	case f.FinalConfidence < cfg.ConfidenceThreshold:
		return StateHeld, withAdvice(fmt.Sprintf("held: advisory confidence %d below threshold %.0f",
			DisplayConfidence(f.FinalConfidence), cfg.ConfidenceThreshold), rec)

	case !f.Consensus.Verified:
		return StateHeld, "held: price consensus unverified (" + consensusDetail(f.Consensus) + ")"
	}

	a := f.Assessment
	return StateApproved, withAdvice(fmt.Sprintf("approved: %s %.8f %s at confidence %d, price verified across %d sources, risk %s",
		rec.Action, a.PositionSize, f.Symbol, DisplayConfidence(f.FinalConfidence), len(f.Consensus.Quotes), a.RiskLevel), rec)
}

// DisplayConfidence truncates a blended confidence to the integer reported externally
func DisplayConfidence(c float64) int {
	return int(math.Floor(c + 1e-9))
}

func rejectionReason(f Fused) string {
	a := f.Assessment
	switch a.RejectedReason {
	case risk.ReasonBelowMinimum:
		return fmt.Sprintf("rejected: position size below minimum trade amount (value %.2f)", a.PositionValue)
	case risk.ReasonMaxDrawdown:
		return fmt.Sprintf("rejected: portfolio drawdown %.1f%% at or above limit", a.Drawdown*100)
	case risk.ReasonMaxExposure:
		return fmt.Sprintf("rejected: total exposure %.1f%% leaves no room under limit", a.ExposurePct*100)
	default:
		return "rejected: " + a.RejectedReason
	}
}

func consensusDetail(c types.PriceConsensus) string {
	if c.SingleSource || len(c.Quotes) < 2 {
		return "single price source"
	}
	return fmt.Sprintf("spread %.2f%% across %s", c.MaxSpreadPct*100, strings.Join(c.Sources(), ", "))
}

func withAdvice(reason string, rec types.Recommendation) string {
	if strings.TrimSpace(rec.Rationale) == "" {
		return reason
	}
	return reason + "; advisory: " + strings.TrimSpace(rec.Rationale)
}
