package pipeline

import (
	"context"

	"github.com/ducminhle1904/crypto-decision-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// AlertSink forwards approved and rejected decisions to a notifier
type AlertSink struct {
	Notifier notifications.Notifier
}

// Record sends an alert when the decision warrants one
func (s AlertSink) Record(ctx context.Context, d types.TradeDecision, _ CycleReport) error {
	level, msg, ok := notifications.DecisionAlert(d)
	if !ok || s.Notifier == nil {
		return nil
	}
	return s.Notifier.SendAlert(ctx, level, msg)
}

// SinkFunc adapts a function to a DecisionSink
type SinkFunc func(ctx context.Context, d types.TradeDecision, report CycleReport) error

// Record calls f
func (f SinkFunc) Record(ctx context.Context, d types.TradeDecision, report CycleReport) error {
	return f(ctx, d, report)
}
