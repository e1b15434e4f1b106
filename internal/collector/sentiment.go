package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ducminhle1904/crypto-decision-engine/internal/sentiment"
)

// LunarCrushBaseURL is the public v4 API
const LunarCrushBaseURL = "https://lunarcrush.com/api4/public"

type cachedSentiment struct {
	components []sentiment.Component
	at         time.Time
}

// LunarCrushSentiment turns LunarCrush coin metrics into sentiment components.
// The last good answer per symbol is served when the API fails, at half
// confidence, for up to cacheTTL.
type LunarCrushSentiment struct {
	client   *resty.Client
	guard    guard
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedSentiment
}

// NewLunarCrushSentiment creates a LunarCrush sentiment source
func NewLunarCrushSentiment(apiKey string, cacheTTL time.Duration, opts Options) *LunarCrushSentiment {
	if opts.BaseURL == "" {
		opts.BaseURL = LunarCrushBaseURL
	}
	client := newRestyClient(opts.BaseURL, opts.Timeout)
	client.SetAuthToken(apiKey)
	return &LunarCrushSentiment{
		client:   client,
		guard:    newGuard("lunarcrush", opts),
		cacheTTL: cacheTTL,
		now:      time.Now,
		cache:    make(map[string]cachedSentiment),
	}
}

// Sentiment returns the galaxy score and bullish share as components
func (s *LunarCrushSentiment) Sentiment(ctx context.Context, symbol string) ([]sentiment.Component, error) {
	symbol = strings.ToUpper(symbol)

	var components []sentiment.Component
	err := s.guard.run(ctx, "sentiment", func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetPathParam("symbol", symbol).
			Get("/coins/{symbol}/v1")
		if err != nil {
			return err
		}
		if err := statusError(resp); err != nil {
			return err
		}

		components, err = parseLunarCrush(resp.Body())
		return err
	})
	if err != nil {
		if cached, ok := s.cached(symbol); ok {
			return cached, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[symbol] = cachedSentiment{components: components, at: s.now()}
	s.mu.Unlock()
	return components, nil
}

func (s *LunarCrushSentiment) cached(symbol string) ([]sentiment.Component, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[symbol]
	if !ok || (s.cacheTTL > 0 && s.now().Sub(entry.at) > s.cacheTTL) {
		return nil, false
	}
	out := make([]sentiment.Component, len(entry.components))
	for i, c := range entry.components {
		c.Confidence /= 2
		out[i] = c
	}
	return out, true
}

func parseLunarCrush(body []byte) ([]sentiment.Component, error) {
	var payload struct {
		Data struct {
			GalaxyScore     *float64 `json:"galaxy_score"`
			Sentiment       *float64 `json:"sentiment"` // % of bullish posts
			SocialVolume24h int      `json:"social_volume_24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode sentiment: %w", err)
	}

	samples := payload.Data.SocialVolume24h
	if samples <= 0 {
		samples = sentiment.SaturationSamples
	}

	var components []sentiment.Component
	if g := payload.Data.GalaxyScore; g != nil {
		components = append(components, sentiment.Component{
			Name: "galaxy_score", Score: centre(*g), Confidence: 1, Samples: samples, Weight: 1,
		})
	}
	if b := payload.Data.Sentiment; b != nil {
		components = append(components, sentiment.Component{
			Name: "bullish_share", Score: centre(*b), Confidence: 1, Samples: samples, Weight: 1,
		})
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("failed to decode sentiment: no galaxy score or sentiment")
	}
	return components, nil
}

// centre maps a 0..100 score onto -1..1
func centre(v float64) float64 {
	s := (v - 50) / 50
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
