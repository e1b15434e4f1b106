package safety

import (
	"fmt"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// ModeConfig is the operator's declared execution posture, fixed at startup
type ModeConfig struct {
	ExecuteEnabled  bool // live execution explicitly enabled by the operator
	Live            bool // declared environment: true for live, false for sandbox
	ExchangeSandbox bool // what the exchange collaborator is actually pointed at
}

// Environment names the declared environment
func (m ModeConfig) Environment() string {
	if m.Live {
		return "live"
	}
	return "sandbox"
}

// Consistent reports whether the exchange agrees with the declared environment
func (m ModeConfig) Consistent() bool {
	return m.Live == !m.ExchangeSandbox
}

// Gate is the only place a decision can be authorised for execution. It changes
// nothing but Mode and the audit trail.
func Gate(decision types.TradeDecision, cfg ModeConfig) types.TradeDecision {
	return gateWith(NewValidator(), decision, cfg)
}

func gateWith(v *Validator, d types.TradeDecision, cfg ModeConfig) types.TradeDecision {
	if d.Mode != types.ModeExecute {
		d.Mode = types.ModeDryRun
		return d.WithAudit("gate: dry_run requested")
	}

	reason := ""
	switch {
	case d.Outcome != types.OutcomeApproved:
		reason = fmt.Sprintf("decision is %s", outcomeOrUnknown(d.Outcome))
	case !cfg.ExecuteEnabled:
		reason = "live execution not enabled"
	case !cfg.Consistent():
		exchange := "live"
		if cfg.ExchangeSandbox {
			exchange = "sandbox"
		}
		reason = fmt.Sprintf("declared %s mode but exchange is configured for %s", cfg.Environment(), exchange)
	default:
		if res := v.ValidateQuantity(d.PositionSize, d.Symbol); !res.Valid {
			reason = res.Message
		}
	}

	if reason != "" {
		d.Mode = types.ModeDryRun
		return d.WithAudit("gate: forced dry_run: " + reason)
	}
	return d.WithAudit("gate: execute authorised (" + cfg.Environment() + ")")
}

func outcomeOrUnknown(o types.Outcome) string {
	if o == "" {
		return "unresolved"
	}
	return string(o)
}
