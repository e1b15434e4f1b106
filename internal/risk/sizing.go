package risk

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultVolatilityScale controls how hard volatility shrinks a position
	DefaultVolatilityScale = 10.0

	// BaseVolatility is assumed when fewer than two prices are available
	BaseVolatility = 0.05

	minWinRate = 0.1
	maxWinRate = 0.9
)

// sizingInput is everything a sizing algorithm may look at
type sizingInput struct {
	equity     float64
	entry      float64
	params     Parameters
	volatility float64
}

// size dispatches on the sizing method and returns a quantity in base units
func size(method SizingMethod, in sizingInput) float64 {
	var qty float64
	switch method {
	case Kelly:
		qty = kellySize(in)
	case VolatilityAdjusted:
		qty = volatilityAdjustedSize(in)
	default:
		qty = fixedRiskSize(in)
	}

	if math.IsNaN(qty) || qty < 0 {
		return 0
	}
	return qty
}

// capQuantity is the largest quantity allowed by the position size limit
func capQuantity(in sizingInput) float64 {
	return in.params.MaxPositionSizePct * in.equity / in.entry
}

func fixedRiskSize(in sizingInput) float64 {
	qty := (in.equity * in.params.RiskPerTradePct) / (in.entry * in.params.StopLossPct)
	return math.Min(qty, capQuantity(in))
}

// kellyFraction returns edge/odds clamped to [0, max position size]
func kellyFraction(edge, odds, maxFraction float64) float64 {
	if odds <= 0 || math.IsNaN(edge) || math.IsNaN(odds) {
		return 0
	}
	f := edge / odds
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return math.Min(f, maxFraction)
}

// kellyInputs returns the configured edge/odds pair, or estimates one from the
// win rate and the reward/risk ratio implied by the stop and target.
func kellyInputs(p Parameters) (edge, odds float64) {
	if p.KellyOdds > 0 {
		return p.KellyEdge, p.KellyOdds
	}
	winRate := math.Max(minWinRate, math.Min(maxWinRate, p.KellyWinRate))
	odds = p.TakeProfitPct / p.StopLossPct
	edge = odds*winRate - (1 - winRate)
	return edge, odds
}

func kellySize(in sizingInput) float64 {
	edge, odds := kellyInputs(in.params)
	return kellyFraction(edge, odds, in.params.MaxPositionSizePct) * in.equity / in.entry
}

func volatilityAdjustedSize(in sizingInput) float64 {
	scale := in.params.VolatilityScale
	if scale <= 0 {
		scale = DefaultVolatilityScale
	}
	vol := math.Max(in.volatility, 0)
	return fixedRiskSize(in) / (1 + scale*vol)
}

// Volatility measures the recent price range normalised by the mean price
func Volatility(prices []float64) float64 {
	clean := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0) {
			clean = append(clean, p)
		}
	}
	if len(clean) < 2 {
		return BaseVolatility
	}

	mean := stat.Mean(clean, nil)
	if mean <= 0 {
		return BaseVolatility
	}
	return (floats.Max(clean) - floats.Min(clean)) / mean
}
