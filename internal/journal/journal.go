// Package journal keeps an append-only record of every gated decision.
package journal

import (
	"context"
	"time"

	"github.com/ducminhle1904/crypto-decision-engine/internal/pipeline"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// Entry is one journaled decision with the price evidence behind it
type Entry struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	Symbol         string          `json:"symbol"`
	Action         types.Action    `json:"action"`
	Recommended    types.Action    `json:"recommended"`
	Outcome        types.Outcome   `json:"outcome"`
	Mode           types.Mode      `json:"mode"`
	Confidence     int             `json:"confidence"`
	RiskLevel      types.RiskLevel `json:"risk_level"`
	PositionSize   float64         `json:"position_size"`
	StopLoss       float64         `json:"stop_loss"`
	TakeProfit     float64         `json:"take_profit"`
	ReferencePrice float64         `json:"reference_price"`
	Spread         *float64        `json:"spread"` // nil when fewer than two sources
	Verified       bool            `json:"verified"`
	Sources        []string        `json:"sources"`
	Rationale      string          `json:"rationale"`
	Audit          []string        `json:"audit,omitempty"`
}

// NewEntry builds an entry from a decision and the consensus it was made on
func NewEntry(d types.TradeDecision, c types.PriceConsensus) Entry {
	e := Entry{
		ID:             d.ID,
		CreatedAt:      d.CreatedAt,
		Symbol:         d.Symbol,
		Action:         d.Action,
		Recommended:    d.Recommended,
		Outcome:        d.Outcome,
		Mode:           d.Mode,
		Confidence:     d.Confidence,
		RiskLevel:      d.RiskLevel,
		PositionSize:   d.PositionSize,
		StopLoss:       d.StopLossPrice,
		TakeProfit:     d.TakeProfitPrice,
		ReferencePrice: c.ReferencePrice,
		Verified:       c.Verified,
		Sources:        c.Sources(),
		Rationale:      d.Rationale,
		Audit:          d.Audit,
	}
	if c.SpreadDefined() {
		spread := c.MaxSpreadPct
		e.Spread = &spread
	}
	return e
}

// Decision rebuilds the decision the entry was made from
func (e Entry) Decision() types.TradeDecision {
	return types.TradeDecision{
		ID:              e.ID,
		Symbol:          e.Symbol,
		Action:          e.Action,
		Recommended:     e.Recommended,
		Confidence:      e.Confidence,
		RiskLevel:       e.RiskLevel,
		PositionSize:    e.PositionSize,
		StopLossPrice:   e.StopLoss,
		TakeProfitPrice: e.TakeProfit,
		Rationale:       e.Rationale,
		Mode:            e.Mode,
		Outcome:         e.Outcome,
		Audit:           e.Audit,
		CreatedAt:       e.CreatedAt,
	}
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Symbol  string
	Outcome types.Outcome
	Since   time.Time
	Limit   int
}

// Journal stores decision entries
type Journal interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	Close() error
}

// Sink adapts a Journal to the pipeline's decision sink
type Sink struct {
	Journal Journal
}

// Record journals the decision with the cycle's consensus
func (s Sink) Record(ctx context.Context, d types.TradeDecision, report pipeline.CycleReport) error {
	return s.Journal.Record(ctx, NewEntry(d, report.Consensus))
}

// Noop discards entries
type Noop struct{}

func (Noop) Record(context.Context, Entry) error           { return nil }
func (Noop) List(context.Context, Filter) ([]Entry, error) { return nil, nil }
func (Noop) Close() error                                  { return nil }
