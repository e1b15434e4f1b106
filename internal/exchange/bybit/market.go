package bybit

import (
	"context"
	"fmt"
	"time"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval1h  KlineInterval = "60"
	Interval4h  KlineInterval = "240"
	Interval1d  KlineInterval = "D"
)

// Ticker is the latest trade and book top for a pair
type Ticker struct {
	Symbol    string
	LastPrice float64
	BidPrice  float64
	AskPrice  float64
	Time      time.Time
}

// GetTicker fetches the latest ticker for a pair such as BTCUSDT
func (c *Client) GetTicker(ctx context.Context, symbol string) (Ticker, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return Ticker{}, fmt.Errorf("failed to get ticker: %w", err)
	}

	ticker, err := parseTicker(result, time.Now())
	if err != nil {
		return Ticker{}, fmt.Errorf("failed to parse ticker response: %w", err)
	}
	return ticker, nil
}

// GetRecentCloses returns up to limit close prices, oldest first
func (c *Client) GetRecentCloses(ctx context.Context, symbol string, interval KlineInterval, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": string(interval),
		"limit":    limit,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	closes, err := parseCloses(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kline response: %w", err)
	}
	return closes, nil
}

func parseTicker(response interface{}, received time.Time) (Ticker, error) {
	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	}
	if err := decodeResult(response, &tickerResult); err != nil {
		return Ticker{}, err
	}
	if len(tickerResult.List) == 0 {
		return Ticker{}, fmt.Errorf("no ticker data found")
	}

	item := tickerResult.List[0]
	last, err := parseNumber(item.LastPrice)
	if err != nil {
		return Ticker{}, err
	}
	bid, _ := parseNumber(item.Bid1Price)
	ask, _ := parseNumber(item.Ask1Price)

	return Ticker{Symbol: item.Symbol, LastPrice: last, BidPrice: bid, AskPrice: ask, Time: received}, nil
}

// parseCloses reads the kline list. Bybit returns newest first.
func parseCloses(response interface{}) ([]float64, error) {
	var klineResult struct {
		List [][]string `json:"list"`
	}
	if err := decodeResult(response, &klineResult); err != nil {
		return nil, err
	}

	closes := make([]float64, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		// [startTime, open, high, low, close, volume, turnover]
		if len(item) < 5 {
			continue
		}
		closePrice, err := parseNumber(item[4])
		if err != nil || closePrice <= 0 {
			continue
		}
		closes = append(closes, closePrice)
	}
	return closes, nil
}
