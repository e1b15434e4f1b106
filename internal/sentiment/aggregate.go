// Package sentiment folds weighted sub-scores from several feeds into one
// SentimentScore whose confidence shrinks as evidence gets thin.
package sentiment

import (
	"math"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// SaturationSamples is the sample count at which a component reaches its full confidence
const SaturationSamples = 20

// Component is one feed's view of a symbol
type Component struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`      // -1 .. 1
	Confidence float64 `json:"confidence"` // 0 .. 1, before sample decay
	Samples    int     `json:"samples"`
	Weight     float64 `json:"weight"` // 0 is treated as 1
}

// EffectiveConfidence applies sample-count decay to the component's confidence
func (c Component) EffectiveConfidence() float64 {
	if c.Samples <= 0 {
		return 0
	}
	decay := math.Min(float64(c.Samples)/SaturationSamples, 1)
	return clamp(c.Confidence, 0, 1) * decay
}

// Neutral is the degraded default when no sentiment is available
func Neutral(symbol string) types.SentimentScore {
	return types.SentimentScore{Symbol: symbol, Score: 0, Confidence: 0, SampleCount: 0}
}

// Aggregate combines components into a composite score. Scores are weighted by
// weight times effective confidence; the composite confidence is the weighted
// mean of effective confidences.
func Aggregate(symbol string, components []Component) types.SentimentScore {
	var weighted, confWeight, totalWeight float64
	samples := 0

	for _, c := range components {
		if math.IsNaN(c.Score) || math.IsNaN(c.Confidence) {
			continue
		}
		w := c.Weight
		if w <= 0 {
			w = 1
		}
		conf := c.EffectiveConfidence()

		weighted += w * conf * clamp(c.Score, -1, 1)
		confWeight += w * conf
		totalWeight += w
		if c.Samples > 0 {
			samples += c.Samples
		}
	}

	if totalWeight == 0 {
		return Neutral(symbol)
	}

	score := 0.0
	if confWeight > 0 {
		score = weighted / confWeight
	}
	return types.SentimentScore{
		Symbol:      symbol,
		Score:       clamp(score, -1, 1),
		Confidence:  clamp(confWeight/totalWeight, 0, 1),
		SampleCount: samples,
	}
}

// Interpret labels a composite score
func Interpret(score float64) string {
	switch {
	case score > 0.3:
		return "Very Bullish"
	case score > 0.1:
		return "Bullish"
	case score < -0.3:
		return "Very Bearish"
	case score < -0.1:
		return "Bearish"
	default:
		return "Neutral"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
