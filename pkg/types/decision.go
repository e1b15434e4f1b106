package types

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the trade direction recommended or decided
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction normalizes free-form action strings. Anything unrecognised is HOLD.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return ActionBuy
	case "SELL", "SHORT":
		return ActionSell
	default:
		return ActionHold
	}
}

// RiskLevel is the portfolio risk classification of a proposed trade
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Mode controls whether a decision may reach the execution collaborator
type Mode string

const (
	ModeDryRun  Mode = "dry_run"
	ModeExecute Mode = "execute"
)

// Outcome is the terminal state a decision cycle resolved to
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeHeld     Outcome = "HELD"
	OutcomeRejected Outcome = "REJECTED"
)

// Recommendation is the advisory service's untrusted suggestion
type Recommendation struct {
	Symbol     string  `json:"symbol"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"` // 0 .. 100
	Rationale  string  `json:"rationale"`
}

// TradeDecision is the final, immutable output of one decision cycle
type TradeDecision struct {
	ID              string
	Symbol          string
	Action          Action
	Recommended     Action // advisory action before gating
	Confidence      int
	RiskLevel       RiskLevel
	PositionSize    float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Rationale       string
	Mode            Mode
	Outcome         Outcome
	Audit           []string
	CreatedAt       time.Time
}

// DecisionRecord is the stable external contract emitted for every decision
type DecisionRecord struct {
	Symbol         string    `json:"symbol"`
	Recommendation Action    `json:"recommendation"`
	Confidence     int       `json:"confidence"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Reasoning      string    `json:"reasoning"`
	PositionSize   float64   `json:"position_size"`
	StopLoss       float64   `json:"stop_loss"`
	TakeProfit     float64   `json:"take_profit"`
	Mode           Mode      `json:"mode"`
}

// recordPrecision is the number of decimals kept for sizes and price levels
const recordPrecision = 8

// Record projects the decision onto the external contract
func (d TradeDecision) Record() DecisionRecord {
	return DecisionRecord{
		Symbol:         d.Symbol,
		Recommendation: d.Action,
		Confidence:     ClampConfidence(d.Confidence),
		RiskLevel:      d.RiskLevel,
		Reasoning:      d.Rationale,
		PositionSize:   round(d.PositionSize),
		StopLoss:       round(d.StopLossPrice),
		TakeProfit:     round(d.TakeProfitPrice),
		Mode:           d.Mode,
	}
}

// MarshalJSON serializes a decision as its external record
func (d TradeDecision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Record())
}

// Executable reports whether the decision is cleared to reach execution
func (d TradeDecision) Executable() bool {
	return d.Outcome == OutcomeApproved && d.Mode == ModeExecute
}

// WithAudit returns a copy of d with note appended to its audit trail
func (d TradeDecision) WithAudit(note string) TradeDecision {
	audit := make([]string, 0, len(d.Audit)+1)
	audit = append(audit, d.Audit...)
	d.Audit = append(audit, note)
	return d
}

// ClampConfidence bounds an integer confidence to 0..100
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(recordPrecision).InexactFloat64()
}
