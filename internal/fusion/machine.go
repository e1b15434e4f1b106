// Package fusion merges the verified price, risk assessment, sentiment and the
// advisory recommendation into one gated decision through a small state machine.
package fusion

import (
	"errors"
	"time"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// Transition records one state change
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// Machine drives a single symbol's decision cycle. It is not safe for
// concurrent use; each cycle owns its machine.
type Machine struct {
	symbol string
	cfg    Config
	state  State
	reason string

	consensus      types.PriceConsensus
	assessment     risk.Assessment
	assessed       bool
	recommendation types.Recommendation
	sentiment      types.SentimentScore
	final          float64
	fused          bool

	history []Transition
	now     func() time.Time
}

// New creates a machine in COLLECTING
func New(symbol string, cfg Config) *Machine {
	return &Machine{
		symbol: symbol,
		cfg:    cfg,
		state:  StateCollecting,
		now:    time.Now,
	}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Reason returns the rationale of a terminal state, empty before resolution
func (m *Machine) Reason() string {
	return m.reason
}

// History returns the transitions taken so far
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}

// Consensus returns the price consensus carried by the machine
func (m *Machine) Consensus() types.PriceConsensus {
	return m.consensus
}

// Assessment returns the risk assessment and whether one was recorded
func (m *Machine) Assessment() (risk.Assessment, bool) {
	return m.assessment, m.assessed
}

func (m *Machine) transition(to State, note string) {
	m.history = append(m.history, Transition{From: m.state, To: to, At: m.now(), Note: note})
	m.state = to
	if to.Terminal() {
		m.reason = note
	}
}

// VerifyPrice records the consensus. A stale or missing price resolves the cycle to HELD.
func (m *Machine) VerifyPrice(c types.PriceConsensus, err error) error {
	if m.state != StateCollecting {
		return invalidTransition("verify price", m.state)
	}

	m.consensus = c
	if err != nil {
		if errors.Is(err, decerrors.ErrStalePrice) {
			m.transition(StateHeld, "held: stale price data ("+err.Error()+")")
		} else {
			m.transition(StateHeld, "held: price data unavailable ("+err.Error()+")")
		}
		return nil
	}

	m.transition(StatePriceVerified, "")
	return nil
}

// AssessRisk records the risk assessment. Invalid risk input resolves the cycle to HELD.
func (m *Machine) AssessRisk(a risk.Assessment, err error) error {
	if m.state != StatePriceVerified {
		return invalidTransition("assess risk", m.state)
	}

	if err != nil {
		m.transition(StateHeld, "held: invalid risk input ("+err.Error()+")")
		return nil
	}

	m.assessment = a
	m.assessed = true
	m.transition(StateRiskAssessed, "")
	return nil
}

// Fuse blends the advisory recommendation with sentiment
func (m *Machine) Fuse(rec types.Recommendation, s types.SentimentScore) error {
	if m.state != StateRiskAssessed {
		return invalidTransition("fuse", m.state)
	}

	m.recommendation = rec
	m.sentiment = s
	m.final = BlendConfidence(rec.Confidence, s.Confidence)
	m.fused = true
	m.transition(StateFused, "")
	return nil
}

// Fused returns the fused snapshot, false before FUSED is reached
func (m *Machine) Fused() (Fused, bool) {
	if !m.fused {
		return Fused{}, false
	}
	return Fused{
		Symbol:          m.symbol,
		Consensus:       m.consensus,
		Assessment:      m.assessment,
		Recommendation:  m.recommendation,
		Sentiment:       m.sentiment,
		FinalConfidence: m.final,
	}, true
}

// Resolve applies the terminal guards. Resolving an already terminal machine
// returns the same outcome.
func (m *Machine) Resolve() (State, string, error) {
	if m.state.Terminal() {
		return m.state, m.reason, nil
	}
	if m.state != StateFused {
		return m.state, "", invalidTransition("resolve", m.state)
	}

	f, _ := m.Fused()
	state, reason := Evaluate(f, m.cfg)
	m.transition(state, reason)
	return state, reason, nil
}

// Decision builds the cycle's TradeDecision in the requested mode. Anything
// other than APPROVED is emitted as HOLD.
func (m *Machine) Decision(id string, requested types.Mode) (types.TradeDecision, error) {
	if !m.state.Terminal() {
		return types.TradeDecision{}, invalidTransition("decision", m.state)
	}

	d := types.TradeDecision{
		ID:          id,
		Symbol:      m.symbol,
		Action:      types.ActionHold,
		Recommended: m.recommendation.Action,
		Confidence:  DisplayConfidence(m.final),
		RiskLevel:   types.RiskHigh,
		Rationale:   m.reason,
		Mode:        requested,
		Outcome:     outcome(m.state),
		CreatedAt:   m.now(),
	}
	if d.Recommended == "" {
		d.Recommended = types.ActionHold
	}
	if m.assessed {
		d.RiskLevel = m.assessment.RiskLevel
		d.PositionSize = m.assessment.PositionSize
		d.StopLossPrice = m.assessment.StopLossPrice
		d.TakeProfitPrice = m.assessment.TakeProfitPrice
	}
	if m.state == StateApproved {
		d.Action = m.recommendation.Action
	}
	return d, nil
}

func outcome(s State) types.Outcome {
	switch s {
	case StateApproved:
		return types.OutcomeApproved
	case StateRejected:
		return types.OutcomeRejected
	default:
		return types.OutcomeHeld
	}
}
