package types

import "time"

// PortfolioSummary is the slice of portfolio state shared with the advisor
type PortfolioSummary struct {
	TotalEquity      float64 `json:"total_equity"`
	CashBalance      float64 `json:"cash_balance"`
	PositionQuantity float64 `json:"position_quantity"`
	Drawdown         float64 `json:"drawdown"`
}

// AdvisoryRequest is the context the advisory service decides on
type AdvisoryRequest struct {
	Symbol      string           `json:"symbol"`
	Consensus   PriceConsensus   `json:"price"`
	Sentiment   SentimentScore   `json:"sentiment"`
	Portfolio   PortfolioSummary `json:"portfolio"`
	RequestedAt time.Time        `json:"requested_at"`
}

// Summarize reduces a portfolio to what the advisor sees for symbol
func (p PortfolioState) Summarize(symbol string) PortfolioSummary {
	return PortfolioSummary{
		TotalEquity:      p.TotalEquity,
		CashBalance:      p.CashBalance,
		PositionQuantity: p.Quantity(symbol),
		Drawdown:         p.Drawdown(),
	}
}
