package pipeline

import (
	"time"

	"github.com/ducminhle1904/crypto-decision-engine/internal/fusion"
	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// CycleReport is everything a cycle saw and decided
type CycleReport struct {
	ID             string                 `json:"id"`
	Symbol         string                 `json:"symbol"`
	StartedAt      time.Time              `json:"started_at"`
	Duration       time.Duration          `json:"duration"`
	Consensus      types.PriceConsensus   `json:"consensus"`
	Sentiment      types.SentimentScore   `json:"sentiment"`
	Portfolio      types.PortfolioSummary `json:"portfolio"`
	Recommendation types.Recommendation   `json:"recommendation"`
	Assessment     *risk.Assessment       `json:"assessment,omitempty"`
	Transitions    []fusion.Transition    `json:"transitions"`
	Degraded       []string               `json:"degraded,omitempty"`
	Decision       types.TradeDecision    `json:"decision"`
}

// CycleResult pairs a symbol with its report or the error that prevented the cycle
type CycleResult struct {
	Symbol string
	Report CycleReport
	Err    error
}
