package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-decision-engine/internal/consensus"
	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/fusion"
	"github.com/ducminhle1904/crypto-decision-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
	"github.com/ducminhle1904/crypto-decision-engine/internal/safety"
	"github.com/ducminhle1904/crypto-decision-engine/internal/sentiment"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakePrice struct {
	name    string
	price   float64
	age     time.Duration
	err     error
	block   chan struct{} // when set, Quote waits for it or ctx
	entered chan struct{}
}

func (f *fakePrice) Name() string { return f.name }

func (f *fakePrice) Quote(ctx context.Context, symbol string) (types.PriceQuote, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return types.PriceQuote{}, ctx.Err()
		}
	}
	if f.err != nil {
		return types.PriceQuote{}, f.err
	}
	return types.PriceQuote{SourceID: f.name, Symbol: symbol, Price: f.price, Timestamp: now.Add(-f.age)}, nil
}

type fakeSentiment struct {
	components []sentiment.Component
	err        error
}

func (f fakeSentiment) Sentiment(ctx context.Context, symbol string) ([]sentiment.Component, error) {
	return f.components, f.err
}

type fakePortfolio struct {
	state types.PortfolioState
	err   error
}

func (f fakePortfolio) Snapshot(ctx context.Context) (types.PortfolioState, error) {
	return f.state, f.err
}

type fakeAdvisor struct {
	rec  types.Recommendation
	err  error
	seen []types.AdvisoryRequest
	mu   sync.Mutex
}

func (f *fakeAdvisor) Recommend(ctx context.Context, req types.AdvisoryRequest) (types.Recommendation, error) {
	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()
	return f.rec, f.err
}

type recordingSink struct {
	mu        sync.Mutex
	decisions []types.TradeDecision
}

func (s *recordingSink) Record(ctx context.Context, d types.TradeDecision, _ CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

func settings() Settings {
	params := risk.DefaultParameters()
	params.MaxPositionSizePct = 0.5
	return Settings{
		Risk:          params,
		Consensus:     consensus.Options{TolerancePct: 0.01, Freshness: time.Minute},
		Fusion:        fusion.DefaultConfig(),
		Mode:          safety.ModeConfig{},
		RequestedMode: types.ModeDryRun,
		Timeouts:      Timeouts{Price: time.Second, Sentiment: time.Second, Portfolio: time.Second, Advisory: time.Second},
		Workers:       2,
	}
}

func scenario() Collaborators {
	return Collaborators{
		Prices: []PriceSource{
			&fakePrice{name: "coinbase", price: 50000},
			&fakePrice{name: "binance", price: 50100},
		},
		Sentiment: fakeSentiment{components: []sentiment.Component{{Name: "galaxy", Score: 0.4, Confidence: 0.5, Samples: 20, Weight: 1}}},
		Portfolio: fakePortfolio{state: types.PortfolioState{CashBalance: 10000, TotalEquity: 10000}},
		Advisor:   &fakeAdvisor{rec: types.Recommendation{Action: types.ActionBuy, Confidence: 80, Rationale: "momentum"}},
	}
}

func newEngine(t *testing.T, s Settings, c Collaborators) *Engine {
	t.Helper()
	e, err := NewEngine(s, c, WithClock(func() time.Time { return now }), WithIDs(func() string { return "01TEST" }))
	require.NoError(t, err)
	return e
}

func TestRunCycleApproved(t *testing.T) {
	sink := &recordingSink{}
	c := scenario()
	c.Sinks = []DecisionSink{sink}
	e := newEngine(t, settings(), c)

	report, err := e.RunCycle(context.Background(), "btc")
	require.NoError(t, err)

	d := report.Decision
	assert.Equal(t, "01TEST", d.ID)
	assert.Equal(t, "BTC", d.Symbol)
	assert.Equal(t, types.OutcomeApproved, d.Outcome)
	assert.Equal(t, types.ActionBuy, d.Action)
	assert.Equal(t, 68, d.Confidence)
	assert.Equal(t, types.ModeDryRun, d.Mode)
	assert.InDelta(t, 0.07992, d.PositionSize, 1e-5)
	assert.Equal(t, 50050.0, report.Consensus.ReferencePrice)
	assert.Empty(t, report.Degraded)
	require.NotNil(t, report.Assessment)
	assert.Len(t, report.Transitions, 4)

	require.Len(t, sink.decisions, 1)
	assert.Equal(t, d, sink.decisions[0])

	advisor := c.Advisor.(*fakeAdvisor)
	require.Len(t, advisor.seen, 1)
	assert.Equal(t, 10000.0, advisor.seen[0].Portfolio.TotalEquity)
	assert.InDelta(t, 0.5, advisor.seen[0].Sentiment.Confidence, 1e-12)
}

func TestRunCycleDegradedInputs(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Collaborators)
		outcome  types.Outcome
		prefix   string
		degraded int
	}{
		{"advisor down", func(c *Collaborators) {
			c.Advisor = &fakeAdvisor{err: errors.New("connection refused")}
		}, types.OutcomeHeld, "held: advisory recommends HOLD", 1},
		{"no advisor", func(c *Collaborators) { c.Advisor = nil }, types.OutcomeHeld, "held: advisory recommends HOLD", 0},
		{"sentiment down", func(c *Collaborators) {
			c.Sentiment = fakeSentiment{err: errors.New("status 503")}
		}, types.OutcomeHeld, "held: advisory confidence 56 below threshold 60", 1},
		{"all prices down", func(c *Collaborators) {
			c.Prices = []PriceSource{&fakePrice{name: "a", err: errors.New("down")}, &fakePrice{name: "b", err: errors.New("down")}}
		}, types.OutcomeHeld, "held: price data unavailable", 2},
		{"stale prices", func(c *Collaborators) {
			c.Prices = []PriceSource{&fakePrice{name: "a", price: 1, age: time.Hour}}
		}, types.OutcomeHeld, "held: stale price data", 0},
		{"portfolio down", func(c *Collaborators) {
			c.Portfolio = fakePortfolio{err: errors.New("wallet unavailable")}
		}, types.OutcomeHeld, "held: invalid risk input", 1},
		{"one price source", func(c *Collaborators) {
			c.Prices = c.Prices[:1]
		}, types.OutcomeHeld, "held: price consensus unverified (single price source)", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scenario()
			tt.mutate(&c)
			report, err := newEngine(t, settings(), c).RunCycle(context.Background(), "BTC")
			require.NoError(t, err)

			assert.Equal(t, tt.outcome, report.Decision.Outcome)
			assert.True(t, strings.HasPrefix(report.Decision.Rationale, tt.prefix), report.Decision.Rationale)
			assert.Len(t, report.Degraded, tt.degraded)
			if tt.outcome != types.OutcomeApproved {
				assert.Equal(t, types.ActionHold, report.Decision.Action)
			}
		})
	}
}

func TestSentimentFailureFallsBackToNeutral(t *testing.T) {
	c := scenario()
	c.Sentiment = fakeSentiment{err: errors.New("timeout")}
	report, err := newEngine(t, settings(), c).RunCycle(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, sentiment.Neutral("BTC"), report.Sentiment)
	assert.Equal(t, 56, report.Decision.Confidence) // 80 * 0.7
}

func TestRunCycleInFlight(t *testing.T) {
	c := scenario()
	blocking := &fakePrice{name: "coinbase", price: 50000, block: make(chan struct{}), entered: make(chan struct{})}
	c.Prices[0] = blocking
	e := newEngine(t, settings(), c)

	done := make(chan CycleReport)
	go func() {
		report, err := e.RunCycle(context.Background(), "BTC")
		assert.NoError(t, err)
		done <- report
	}()
	<-blocking.entered

	_, err := e.RunCycle(context.Background(), "btc")
	assert.ErrorIs(t, err, ErrCycleInFlight)

	close(blocking.block)
	report := <-done
	assert.Equal(t, types.OutcomeApproved, report.Decision.Outcome)

	// The symbol is free again
	blocking.entered, blocking.block = nil, nil
	_, err = e.RunCycle(context.Background(), "BTC")
	assert.NoError(t, err)
}

func TestPriceTimeoutDegradesOneSource(t *testing.T) {
	c := scenario()
	c.Prices = append(c.Prices, &fakePrice{name: "slow", price: 50050, block: make(chan struct{})})
	s := settings()
	s.Timeouts.Price = 20 * time.Millisecond

	report, err := newEngine(t, s, c).RunCycle(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeApproved, report.Decision.Outcome)
	require.Len(t, report.Degraded, 1)
	assert.True(t, strings.HasPrefix(report.Degraded[0], "slow:"))
}

func TestRunCycleGate(t *testing.T) {
	tests := []struct {
		name string
		mode safety.ModeConfig
		want types.Mode
	}{
		{"sandbox execute", safety.ModeConfig{ExecuteEnabled: true, Live: false, ExchangeSandbox: true}, types.ModeExecute},
		{"live declared on sandbox", safety.ModeConfig{ExecuteEnabled: true, Live: true, ExchangeSandbox: true}, types.ModeDryRun},
		{"execute disabled", safety.ModeConfig{ExecuteEnabled: false, ExchangeSandbox: true}, types.ModeDryRun},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings()
			s.RequestedMode = types.ModeExecute
			s.Mode = tt.mode

			report, err := newEngine(t, s, scenario()).RunCycle(context.Background(), "BTC")
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Decision.Mode)
			assert.NotEmpty(t, report.Decision.Audit)
		})
	}
}

func TestRunAllKeepsOrder(t *testing.T) {
	e := newEngine(t, settings(), scenario())
	symbols := []string{"BTC", "ETH", "SOL"}

	results := e.RunAll(context.Background(), symbols)
	require.Len(t, results, 3)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, symbols[i], r.Symbol)
		assert.Equal(t, symbols[i], r.Report.Decision.Symbol)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, r := range e.RunAll(ctx, symbols) {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(settings(), Collaborators{Portfolio: fakePortfolio{}})
	assert.True(t, errors.Is(err, decerrors.ErrConfiguration))

	_, err = NewEngine(settings(), Collaborators{Prices: []PriceSource{&fakePrice{name: "a"}}})
	assert.True(t, errors.Is(err, decerrors.ErrConfiguration))
}

func TestAlertSink(t *testing.T) {
	var got []string
	notifier := notifierFunc(func(msg string) { got = append(got, msg) })
	sink := AlertSink{Notifier: notifier}

	require.NoError(t, sink.Record(context.Background(), types.TradeDecision{Symbol: "BTC", Outcome: types.OutcomeHeld}, CycleReport{}))
	assert.Empty(t, got)

	require.NoError(t, sink.Record(context.Background(), types.TradeDecision{Symbol: "BTC", Action: types.ActionBuy, Outcome: types.OutcomeApproved}, CycleReport{}))
	assert.Len(t, got, 1)
}

type notifierFunc func(msg string)

func (f notifierFunc) SendAlert(_ context.Context, _ notifications.Level, msg string) error {
	f(msg)
	return nil
}
