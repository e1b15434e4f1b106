package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-decision-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

const (
	CoinbaseBaseURL = "https://api.exchange.coinbase.com"
	BinanceBaseURL  = "https://api.binance.com"
)

// CoinbaseSource reads the Coinbase Exchange public ticker
type CoinbaseSource struct {
	client *resty.Client
	guard  guard
	now    func() time.Time
}

// NewCoinbaseSource creates a Coinbase price source
func NewCoinbaseSource(opts Options) *CoinbaseSource {
	if opts.BaseURL == "" {
		opts.BaseURL = CoinbaseBaseURL
	}
	return &CoinbaseSource{
		client: newRestyClient(opts.BaseURL, opts.Timeout),
		guard:  newGuard("coinbase", opts),
		now:    time.Now,
	}
}

// Name returns the source identifier
func (s *CoinbaseSource) Name() string { return "coinbase" }

// Quote fetches the last trade price for symbol
func (s *CoinbaseSource) Quote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	var q types.PriceQuote
	err := s.guard.run(ctx, "quote", func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetPathParam("product", strings.ToUpper(symbol)+"-USD").
			Get("/products/{product}/ticker")
		if err != nil {
			return err
		}
		if err := statusError(resp); err != nil {
			return err
		}

		var ticker struct {
			Price string `json:"price"`
			Time  string `json:"time"`
		}
		if err := json.Unmarshal(resp.Body(), &ticker); err != nil {
			return fmt.Errorf("failed to decode ticker: %w", err)
		}
		price, err := parsePrice(ticker.Price)
		if err != nil {
			return err
		}

		ts := s.now()
		if parsed, err := time.Parse(time.RFC3339Nano, ticker.Time); err == nil {
			ts = parsed
		}
		q = types.PriceQuote{SourceID: s.Name(), Symbol: symbol, Price: price, Timestamp: ts}
		return nil
	})
	return q, err
}

// BinanceSource reads the Binance spot ticker
type BinanceSource struct {
	client *resty.Client
	guard  guard
	now    func() time.Time
}

// NewBinanceSource creates a Binance price source
func NewBinanceSource(opts Options) *BinanceSource {
	if opts.BaseURL == "" {
		opts.BaseURL = BinanceBaseURL
	}
	return &BinanceSource{
		client: newRestyClient(opts.BaseURL, opts.Timeout),
		guard:  newGuard("binance", opts),
		now:    time.Now,
	}
}

// Name returns the source identifier
func (s *BinanceSource) Name() string { return "binance" }

// Quote fetches the USDT pair price for symbol. The endpoint carries no
// timestamp so the receipt time is used.
func (s *BinanceSource) Quote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	var q types.PriceQuote
	err := s.guard.run(ctx, "quote", func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("symbol", strings.ToUpper(symbol)+"USDT").
			Get("/api/v3/ticker/price")
		if err != nil {
			return err
		}
		if err := statusError(resp); err != nil {
			return err
		}

		var ticker struct {
			Price string `json:"price"`
		}
		if err := json.Unmarshal(resp.Body(), &ticker); err != nil {
			return fmt.Errorf("failed to decode ticker: %w", err)
		}
		price, err := parsePrice(ticker.Price)
		if err != nil {
			return err
		}
		q = types.PriceQuote{SourceID: s.Name(), Symbol: symbol, Price: price, Timestamp: s.now()}
		return nil
	})
	return q, err
}

// YahooSource reads Yahoo Finance quotes for the USD pair
type YahooSource struct {
	fetch func(symbol string) (*finance.Quote, error)
	guard guard
	now   func() time.Time
}

// NewYahooSource creates a Yahoo Finance price source
func NewYahooSource(opts Options) *YahooSource {
	return &YahooSource{
		fetch: quote.Get,
		guard: newGuard("yahoo", opts),
		now:   time.Now,
	}
}

// Name returns the source identifier
func (s *YahooSource) Name() string { return "yahoo" }

// Quote fetches the regular market price for symbol
func (s *YahooSource) Quote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	var q types.PriceQuote
	err := s.guard.run(ctx, "quote", func(ctx context.Context) error {
		type result struct {
			q   *finance.Quote
			err error
		}
		// finance-go has no context support
		done := make(chan result, 1)
		go func() {
			fq, err := s.fetch(strings.ToUpper(symbol) + "-USD")
			done <- result{fq, err}
		}()

		var r result
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r = <-done:
		}
		if r.err != nil {
			return r.err
		}
		if r.q == nil {
			return fmt.Errorf("unsupported symbol %s", symbol)
		}

		ts := s.now()
		if r.q.RegularMarketTime > 0 {
			ts = time.Unix(int64(r.q.RegularMarketTime), 0)
		}
		q = types.PriceQuote{SourceID: s.Name(), Symbol: symbol, Price: r.q.RegularMarketPrice, Timestamp: ts}
		return nil
	})
	return q, err
}

// tickerClient is the part of the Bybit client the price source needs
type tickerClient interface {
	GetTicker(ctx context.Context, symbol string) (bybit.Ticker, error)
	GetRecentCloses(ctx context.Context, symbol string, interval bybit.KlineInterval, limit int) ([]float64, error)
}

// BybitSource reads Bybit tickers through the exchange SDK
type BybitSource struct {
	client tickerClient
	guard  guard
}

// NewBybitSource creates a Bybit price source
func NewBybitSource(client tickerClient, opts Options) *BybitSource {
	return &BybitSource{client: client, guard: newGuard("bybit", opts)}
}

// Name returns the source identifier
func (s *BybitSource) Name() string { return "bybit" }

// Quote fetches the last traded price of the USDT pair
func (s *BybitSource) Quote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	var q types.PriceQuote
	err := s.guard.run(ctx, "quote", func(ctx context.Context) error {
		ticker, err := s.client.GetTicker(ctx, strings.ToUpper(symbol)+"USDT")
		if err != nil {
			return err
		}
		q = types.PriceQuote{SourceID: s.Name(), Symbol: symbol, Price: ticker.LastPrice, Timestamp: ticker.Time}
		return nil
	})
	return q, err
}

// RecentPrices returns hourly closes for the last day, oldest first
func (s *BybitSource) RecentPrices(ctx context.Context, symbol string) ([]float64, error) {
	var closes []float64
	err := s.guard.run(ctx, "recent prices", func(ctx context.Context) error {
		var err error
		closes, err = s.client.GetRecentCloses(ctx, strings.ToUpper(symbol)+"USDT", bybit.Interval1h, 24)
		return err
	})
	return closes, err
}

func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("failed to decode price %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
