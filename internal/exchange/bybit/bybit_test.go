package bybit

import (
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTicker(t *testing.T) {
	received := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"category": "spot",
			"list": []interface{}{
				map[string]interface{}{"symbol": "BTCUSDT", "lastPrice": "50123.45", "bid1Price": "50123.4", "ask1Price": "50123.5"},
			},
		},
	}

	ticker, err := parseTicker(resp, received)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", ticker.Symbol)
	assert.InDelta(t, 50123.45, ticker.LastPrice, 1e-9)
	assert.InDelta(t, 50123.5, ticker.AskPrice, 1e-9)
	assert.Equal(t, received, ticker.Time)
}

func TestParseTickerErrors(t *testing.T) {
	_, err := parseTicker(&bybit_api.ServerResponse{RetCode: ErrCodeRateLimitExceeded, RetMsg: "too many visits"}, time.Now())
	require.Error(t, err)
	assert.True(t, IsRetryableError(err))

	_, err = parseTicker(&bybit_api.ServerResponse{Result: map[string]interface{}{"list": []interface{}{}}}, time.Now())
	assert.EqualError(t, err, "no ticker data found")

	_, err = parseTicker("not a response", time.Now())
	assert.Error(t, err)

	bad := &bybit_api.ServerResponse{Result: map[string]interface{}{
		"list": []interface{}{map[string]interface{}{"symbol": "BTCUSDT", "lastPrice": "abc"}},
	}}
	_, err = parseTicker(bad, time.Now())
	assert.Error(t, err)
}

func TestParseClosesOldestFirst(t *testing.T) {
	resp := &bybit_api.ServerResponse{Result: map[string]interface{}{
		"list": []interface{}{
			[]interface{}{"3", "0", "0", "0", "103", "1", "1"},
			[]interface{}{"2", "0", "0", "0", "102", "1", "1"},
			[]interface{}{"1"},
			[]interface{}{"0", "0", "0", "0", "101", "1", "1"},
		},
	}}
	closes, err := parseCloses(resp)
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 102, 103}, closes)
}

func TestParseAccountBalance(t *testing.T) {
	resp := &bybit_api.ServerResponse{Result: map[string]interface{}{
		"list": []interface{}{
			map[string]interface{}{
				"accountType":           "UNIFIED",
				"totalEquity":           "15000.5",
				"totalAvailableBalance": "9000",
				"coin": []interface{}{
					map[string]interface{}{"coin": "USDT", "walletBalance": "9000", "usdValue": "9000"},
					map[string]interface{}{"coin": "BTC", "walletBalance": "0.1", "usdValue": "6000.5", "totalOrderIM": "0.01"},
					map[string]interface{}{"coin": "ETH", "walletBalance": "0", "usdValue": "0"},
				},
			},
		},
	}}

	info, err := parseAccountBalance(resp)
	require.NoError(t, err)
	assert.Equal(t, 15000.5, info.TotalEquity)
	require.Len(t, info.Coin, 3)
	assert.InDelta(t, 0.01, info.Coin[1].Locked, 1e-12)

	state := info.Portfolio("usdt")
	assert.Equal(t, 9000.0, state.CashBalance)
	assert.Equal(t, 15000.5, state.TotalEquity)
	assert.Equal(t, 0.1, state.Positions["BTC"].Quantity)
	assert.NotContains(t, state.Positions, "ETH")
}

func TestPortfolioFallsBackToUSDValue(t *testing.T) {
	info := &AccountInfo{Coin: []Balance{{Coin: "USDT", WalletBalance: 100, USDValue: 100}, {Coin: "SOL", WalletBalance: 2, USDValue: 300}}}
	assert.Equal(t, 400.0, info.Portfolio("USDT").TotalEquity)
}

func TestClientEnvironment(t *testing.T) {
	assert.Equal(t, "demo", NewClient(Config{Demo: true}).GetEnvironment())
	c := NewClient(Config{Testnet: true})
	assert.Equal(t, "testnet", c.GetEnvironment())
	assert.True(t, c.Sandbox())
	assert.False(t, NewClient(Config{}).Sandbox())
	assert.True(t, IsAuthenticationError(NewBybitError(ErrCodeInvalidSignature, "bad sign")))
}
