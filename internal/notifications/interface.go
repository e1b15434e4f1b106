package notifications

import (
	"context"
	"fmt"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// Level is the severity of an alert
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

func (l Level) emoji() string {
	switch l {
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "🚨"
	case LevelSuccess:
		return "✅"
	default:
		return "ℹ️"
	}
}

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(ctx context.Context, level Level, message string) error
}

// Nop discards alerts
type Nop struct{}

func (Nop) SendAlert(context.Context, Level, string) error { return nil }

// DecisionAlert formats a decision worth telling a human about. HELD
// decisions are routine and produce no alert.
func DecisionAlert(d types.TradeDecision) (Level, string, bool) {
	switch d.Outcome {
	case types.OutcomeApproved:
		return LevelSuccess, fmt.Sprintf("*%s %s* (%s)\nsize %.8f, stop %.2f, target %.2f\nconfidence %d, risk %s\n%s",
			d.Action, d.Symbol, d.Mode, d.PositionSize, d.StopLossPrice, d.TakeProfitPrice,
			d.Confidence, d.RiskLevel, d.Rationale), true
	case types.OutcomeRejected:
		return LevelWarning, fmt.Sprintf("*%s rejected* (advisory %s)\n%s", d.Symbol, d.Recommended, d.Rationale), true
	default:
		return "", "", false
	}
}
