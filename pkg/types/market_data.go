package types

import (
	"encoding/json"
	"math"
	"time"
)

// PriceQuote is a single price observation from one source
type PriceQuote struct {
	SourceID  string    `json:"source_id"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Age returns how old the quote is relative to now
func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.Timestamp)
}

// PriceConsensus is the reconciled view of all fresh quotes for a symbol
type PriceConsensus struct {
	Symbol         string       `json:"symbol"`
	ReferencePrice float64      `json:"reference_price"`
	MaxSpreadPct   float64      `json:"max_spread_pct"` // +Inf when only one source contributed
	Verified       bool         `json:"verified"`
	SingleSource   bool         `json:"single_source"`
	Quotes         []PriceQuote `json:"contributing_quotes"`
	Excluded       []PriceQuote `json:"excluded_quotes,omitempty"`
}

// SpreadDefined reports whether the spread was actually measured
func (c PriceConsensus) SpreadDefined() bool {
	return len(c.Quotes) > 1 && !math.IsInf(c.MaxSpreadPct, 0) && !math.IsNaN(c.MaxSpreadPct)
}

// MarshalJSON writes an undefined spread as null since JSON has no infinity
func (c PriceConsensus) MarshalJSON() ([]byte, error) {
	type alias PriceConsensus
	out := struct {
		alias
		MaxSpreadPct *float64 `json:"max_spread_pct"`
	}{alias: alias(c)}
	if c.SpreadDefined() {
		spread := c.MaxSpreadPct
		out.MaxSpreadPct = &spread
	}
	return json.Marshal(out)
}

// Prices returns the prices of the contributing quotes in order
func (c PriceConsensus) Prices() []float64 {
	prices := make([]float64, 0, len(c.Quotes))
	for _, q := range c.Quotes {
		prices = append(prices, q.Price)
	}
	return prices
}

// Sources returns the IDs of contributing sources
func (c PriceConsensus) Sources() []string {
	ids := make([]string, 0, len(c.Quotes))
	for _, q := range c.Quotes {
		ids = append(ids, q.SourceID)
	}
	return ids
}

// SentimentScore is the composite sentiment for one symbol
type SentimentScore struct {
	Symbol      string  `json:"symbol"`
	Score       float64 `json:"score"`      // -1 (bearish) .. 1 (bullish)
	Confidence  float64 `json:"confidence"` // 0 .. 1
	SampleCount int     `json:"sample_count"`
}
