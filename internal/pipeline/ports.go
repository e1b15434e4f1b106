// Package pipeline runs decision cycles: it gathers inputs from the external
// collaborators, drives the fusion state machine and hands the gated decision
// to the configured sinks.
package pipeline

import (
	"context"

	"github.com/ducminhle1904/crypto-decision-engine/internal/sentiment"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// PriceSource returns the latest quote for a symbol
type PriceSource interface {
	Name() string
	Quote(ctx context.Context, symbol string) (types.PriceQuote, error)
}

// SentimentSource returns sentiment sub-scores for a symbol
type SentimentSource interface {
	Sentiment(ctx context.Context, symbol string) ([]sentiment.Component, error)
}

// HistorySource returns recent closes, oldest first, for volatility sizing
type HistorySource interface {
	RecentPrices(ctx context.Context, symbol string) ([]float64, error)
}

// PortfolioSource returns the current holdings
type PortfolioSource interface {
	Snapshot(ctx context.Context) (types.PortfolioState, error)
}

// Advisor produces the advisory recommendation for a cycle
type Advisor interface {
	Recommend(ctx context.Context, req types.AdvisoryRequest) (types.Recommendation, error)
}

// DecisionSink receives every gated decision
type DecisionSink interface {
	Record(ctx context.Context, decision types.TradeDecision, report CycleReport) error
}

// Collaborators groups the engine's external dependencies. Sentiment, History
// and Advisor are optional.
type Collaborators struct {
	Prices    []PriceSource
	Sentiment SentimentSource
	History   HistorySource
	Portfolio PortfolioSource
	Advisor   Advisor
	Sinks     []DecisionSink
}
