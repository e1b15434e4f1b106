// Package risk sizes positions, places stop-loss and take-profit levels, and
// checks a proposed trade against portfolio-wide limits.
package risk

import (
	"fmt"
	"math"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// Rejection reasons carried on an Assessment
const (
	ReasonBelowMinimum = "below_minimum"
	ReasonMaxDrawdown  = "max_drawdown"
	ReasonMaxExposure  = "max_exposure"
)

// Level thresholds as fractions of the position and total exposure limits
const (
	highConcentration   = 0.8
	mediumConcentration = 0.5
	mediumSpread        = 0.5
)

// Assessment is the sized, bounded view of a proposed trade
type Assessment struct {
	Symbol           string          `json:"symbol"`
	Direction        types.Action    `json:"direction"`
	Method           SizingMethod    `json:"method"`
	EntryPrice       float64         `json:"entry_price"`
	PositionSize     float64         `json:"position_size"`
	PositionValue    float64         `json:"position_value"`
	MaxLoss          float64         `json:"max_loss"`
	StopLossPrice    float64         `json:"stop_loss_price"`
	TakeProfitPrice  float64         `json:"take_profit_price"`
	RiskLevel        types.RiskLevel `json:"risk_level"`
	ConcentrationPct float64         `json:"concentration_pct"`
	ExposurePct      float64         `json:"exposure_pct"`
	Drawdown         float64         `json:"drawdown"`
	Volatility       float64         `json:"volatility,omitempty"`
	RejectedReason   string          `json:"rejected_reason,omitempty"`
	Adjustments      []string        `json:"adjustments,omitempty"`
}

// Rejected reports whether the assessment carries a rejection reason
func (a Assessment) Rejected() bool {
	return a.RejectedReason != ""
}

type assessOptions struct {
	recentPrices []float64
	tolerance    float64
}

// AssessOption tunes a single assessment
type AssessOption func(*assessOptions)

// WithRecentPrices supplies the price history used by volatility-adjusted sizing
func WithRecentPrices(prices []float64) AssessOption {
	return func(o *assessOptions) { o.recentPrices = prices }
}

// WithTolerance lets a wide but accepted spread raise the risk level to MEDIUM
func WithTolerance(pct float64) AssessOption {
	return func(o *assessOptions) { o.tolerance = pct }
}

// Levels returns stop-loss and take-profit prices for a direction
func Levels(entry float64, direction types.Action, stopLossPct, takeProfitPct float64) (stopLoss, takeProfit float64) {
	if direction == types.ActionSell {
		return entry * (1 + stopLossPct), entry * (1 - takeProfitPct)
	}
	return entry * (1 - stopLossPct), entry * (1 + takeProfitPct)
}

// Assess sizes a trade in direction against the consensus price and portfolio.
// Risk limits never produce an error; they set RejectedReason instead.
func Assess(consensus types.PriceConsensus, portfolio types.PortfolioState, params Parameters, direction types.Action, opts ...AssessOption) (Assessment, error) {
	var o assessOptions
	for _, opt := range opts {
		opt(&o)
	}

	entry := consensus.ReferencePrice
	equity := portfolio.TotalEquity
	if !(entry > 0) || math.IsInf(entry, 0) {
		return Assessment{}, decerrors.NewInvalidRiskInputError("entry_price", entry)
	}
	if !(equity > 0) || math.IsInf(equity, 0) {
		return Assessment{}, decerrors.NewInvalidRiskInputError("total_equity", equity)
	}
	if direction != types.ActionBuy && direction != types.ActionSell {
		return Assessment{}, decerrors.NewDecisionError(decerrors.ErrorCategoryInvalidRiskInput, "risk", "assess",
			fmt.Sprintf("direction must be BUY or SELL, got %q", direction))
	}

	method, err := ParseSizingMethod(string(params.SizingMethod))
	if err != nil {
		return Assessment{}, decerrors.NewDecisionError(decerrors.ErrorCategoryInvalidRiskInput, "risk", "assess", err.Error())
	}

	in := sizingInput{equity: equity, entry: entry, params: params}
	a := Assessment{
		Symbol:     consensus.Symbol,
		Direction:  direction,
		Method:     method,
		EntryPrice: entry,
		Drawdown:   portfolio.Drawdown(),
	}
	if method == VolatilityAdjusted {
		prices := o.recentPrices
		if len(prices) == 0 {
			prices = consensus.Prices()
		}
		in.volatility = Volatility(prices)
		a.Volatility = in.volatility
	}

	existing := portfolio.Quantity(consensus.Symbol)
	qty := size(method, in)
	qty = a.fitPosition(qty, existing, in)
	qty, exposureHit := a.fitExposure(qty, portfolio.InvestedValue(), in)

	signed := qty
	if direction == types.ActionSell {
		signed = -qty
	}
	a.ConcentrationPct = math.Abs(existing+signed) * entry / equity
	a.PositionSize = qty
	a.PositionValue = qty * entry
	a.MaxLoss = a.PositionValue * params.StopLossPct
	a.StopLossPrice, a.TakeProfitPrice = Levels(entry, direction, params.StopLossPct, params.TakeProfitPct)

	drawdownHit := direction == types.ActionBuy && a.Drawdown >= params.MaxDrawdownPct
	switch {
	case drawdownHit:
		a.RejectedReason = ReasonMaxDrawdown
	case exposureHit:
		a.RejectedReason = ReasonMaxExposure
	case a.PositionValue < params.MinTradeAmount || qty <= 0:
		a.RejectedReason = ReasonBelowMinimum
	}

	a.RiskLevel = level(a, params, consensus, o.tolerance, drawdownHit || exposureHit)
	return a, nil
}

// fitPosition shrinks a BUY until the post-trade position fits the position
// size limit. A SELL never exceeds the quantity held.
func (a *Assessment) fitPosition(qty, existing float64, in sizingInput) float64 {
	if a.Direction == types.ActionSell {
		held := math.Max(0, existing)
		if qty > held {
			a.Adjustments = append(a.Adjustments,
				fmt.Sprintf("size reduced from %.8f to the %.8f held", qty, held))
			qty = held
		}
		return qty
	}

	limit := in.params.MaxPositionSizePct
	if (existing+qty)*in.entry/in.equity > limit {
		reduced := math.Max(0, capQuantity(in)-existing)
		if reduced < qty {
			a.Adjustments = append(a.Adjustments,
				fmt.Sprintf("size reduced from %.8f to %.8f to respect %.1f%% position limit", qty, reduced, limit*100))
			qty = reduced
		}
	}
	return qty
}

// fitExposure shrinks a BUY until invested capital after the trade fits the
// total exposure limit. It reports whether the limit leaves no tradable size.
func (a *Assessment) fitExposure(qty, invested float64, in sizingInput) (float64, bool) {
	if a.Direction == types.ActionSell {
		a.ExposurePct = math.Max(0, invested-qty*in.entry) / in.equity
		return qty, false
	}

	limit := exposureLimit(in.params)
	hit := false
	if invested+qty*in.entry > limit*in.equity {
		reduced := math.Max(0, (limit*in.equity-invested)/in.entry)
		a.Adjustments = append(a.Adjustments,
			fmt.Sprintf("size reduced from %.8f to %.8f to respect %.1f%% total exposure limit", qty, reduced, limit*100))
		qty = reduced
		hit = qty <= 0 || qty*in.entry < in.params.MinTradeAmount
	}

	a.ExposurePct = (invested + qty*in.entry) / in.equity
	return qty, hit
}

func exposureLimit(p Parameters) float64 {
	if p.MaxTotalExposurePct <= 0 {
		return DefaultMaxTotalExposurePct
	}
	return p.MaxTotalExposurePct
}

func level(a Assessment, p Parameters, consensus types.PriceConsensus, tolerance float64, limitHit bool) types.RiskLevel {
	positionLimit, exposure := p.MaxPositionSizePct, exposureLimit(p)
	if a.ConcentrationPct > highConcentration*positionLimit || a.ExposurePct > highConcentration*exposure ||
		!consensus.Verified || limitHit {
		return types.RiskHigh
	}
	if a.ConcentrationPct > mediumConcentration*positionLimit || a.ExposurePct > mediumConcentration*exposure {
		return types.RiskMedium
	}
	if tolerance > 0 && consensus.SpreadDefined() && consensus.MaxSpreadPct > mediumSpread*tolerance {
		return types.RiskMedium
	}
	return types.RiskLow
}
