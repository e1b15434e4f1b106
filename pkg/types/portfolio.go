package types

// Position is a held quantity of one symbol
type Position struct {
	Quantity  float64 `json:"quantity" yaml:"quantity"`
	CostBasis float64 `json:"cost_basis" yaml:"cost_basis"`
}

// PortfolioState is a read-only snapshot of holdings for one decision cycle
type PortfolioState struct {
	CashBalance float64             `json:"cash_balance" yaml:"cash_balance"`
	Positions   map[string]Position `json:"positions" yaml:"positions"`
	TotalEquity float64             `json:"total_equity" yaml:"total_equity"`
	PeakEquity  float64             `json:"peak_equity,omitempty" yaml:"peak_equity,omitempty"` // 0 when unknown
}

// Quantity returns the held quantity for symbol, 0 when flat
func (p PortfolioState) Quantity(symbol string) float64 {
	if p.Positions == nil {
		return 0
	}
	return p.Positions[symbol].Quantity
}

// Drawdown returns the fractional decline from peak equity, 0 when peak is unknown
func (p PortfolioState) Drawdown() float64 {
	if p.PeakEquity <= 0 || p.TotalEquity >= p.PeakEquity {
		return 0
	}
	return (p.PeakEquity - p.TotalEquity) / p.PeakEquity
}

// InvestedValue is the equity not held as cash, never negative
func (p PortfolioState) InvestedValue() float64 {
	if p.TotalEquity <= p.CashBalance {
		return 0
	}
	return p.TotalEquity - p.CashBalance
}
