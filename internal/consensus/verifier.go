// Package consensus reconciles price quotes from independent sources into a
// single reference price and flags divergence or staleness.
package consensus

import (
	"math"
	"sort"
	"time"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/safety"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// DefaultTolerancePct is the maximum accepted spread between sources (0.5%)
const DefaultTolerancePct = 0.005

// Options configures verification
type Options struct {
	TolerancePct float64       // max (max-min)/median for a verified consensus
	Freshness    time.Duration // quotes older than this are excluded, 0 disables
}

// Verifier checks quotes against a fixed set of options
type Verifier struct {
	opts      Options
	validator *safety.Validator
	now       func() time.Time
}

// NewVerifier creates a verifier. A non-positive tolerance falls back to the default.
func NewVerifier(opts Options) *Verifier {
	if opts.TolerancePct <= 0 {
		opts.TolerancePct = DefaultTolerancePct
	}
	return &Verifier{
		opts:      opts,
		validator: safety.NewValidator(),
		now:       time.Now,
	}
}

// Options returns the verifier's options
func (v *Verifier) Options() Options {
	return v.opts
}

// Verify reconciles quotes for symbol as of the current time
func (v *Verifier) Verify(symbol string, quotes []types.PriceQuote) (types.PriceConsensus, error) {
	return verify(v.validator, symbol, quotes, v.opts, v.now())
}

// Verify is the pure form of Verifier.Verify with an explicit clock
func Verify(symbol string, quotes []types.PriceQuote, opts Options, now time.Time) (types.PriceConsensus, error) {
	if opts.TolerancePct <= 0 {
		opts.TolerancePct = DefaultTolerancePct
	}
	return verify(safety.NewValidator(), symbol, quotes, opts, now)
}

func verify(v *safety.Validator, symbol string, quotes []types.PriceQuote, opts Options, now time.Time) (types.PriceConsensus, error) {
	result := types.PriceConsensus{Symbol: symbol, MaxSpreadPct: math.Inf(1)}

	if len(quotes) == 0 {
		return result, decerrors.NewDecisionError(decerrors.ErrorCategoryDataSource, "consensus", "verify",
			"no price quotes for "+symbol).WithRetryable(false)
	}

	var fresh []types.PriceQuote
	stale := 0
	latest, duplicates := latestPerSource(quotes)
	result.Excluded = append(result.Excluded, duplicates...)
	for _, q := range latest {
		if !v.ValidatePrice(q.Price, symbol).Valid || !v.ValidateTimestamp(q.Timestamp, now, q.SourceID).Valid {
			result.Excluded = append(result.Excluded, q)
			continue
		}
		if opts.Freshness > 0 && q.Age(now) > opts.Freshness {
			result.Excluded = append(result.Excluded, q)
			stale++
			continue
		}
		fresh = append(fresh, q)
	}

	if len(fresh) == 0 {
		if stale > 0 {
			return result, decerrors.NewStalePriceError(symbol, stale)
		}
		return result, decerrors.NewDecisionError(decerrors.ErrorCategoryDataSource, "consensus", "verify",
			"no valid price quotes for "+symbol).WithRetryable(false)
	}

	result.Quotes = fresh
	prices := result.Prices()
	result.ReferencePrice = median(prices)

	// A lone source can't be cross-checked
	if len(fresh) == 1 {
		result.SingleSource = true
		return result, nil
	}

	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	result.MaxSpreadPct = (hi - lo) / result.ReferencePrice
	result.Verified = result.MaxSpreadPct <= opts.TolerancePct

	return result, nil
}

// latestPerSource keeps the newest quote per source, preserving first-seen order,
// and returns the superseded ones separately
func latestPerSource(quotes []types.PriceQuote) (latest, dropped []types.PriceQuote) {
	index := make(map[string]int, len(quotes))
	latest = make([]types.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		i, seen := index[q.SourceID]
		if !seen {
			index[q.SourceID] = len(latest)
			latest = append(latest, q)
			continue
		}
		if q.Timestamp.After(latest[i].Timestamp) {
			dropped = append(dropped, latest[i])
			latest[i] = q
		} else {
			dropped = append(dropped, q)
		}
	}
	return latest, dropped
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
