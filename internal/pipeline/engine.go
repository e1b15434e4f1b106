package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/crypto-decision-engine/internal/consensus"
	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
	"github.com/ducminhle1904/crypto-decision-engine/internal/fusion"
	"github.com/ducminhle1904/crypto-decision-engine/internal/monitoring"
	"github.com/ducminhle1904/crypto-decision-engine/internal/risk"
	"github.com/ducminhle1904/crypto-decision-engine/internal/safety"
	"github.com/ducminhle1904/crypto-decision-engine/internal/sentiment"
	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// ErrCycleInFlight is returned when a symbol already has a cycle running
var ErrCycleInFlight = errors.New("decision cycle already in flight")

// Timeouts bound each collaborator call
type Timeouts struct {
	Price     time.Duration
	Sentiment time.Duration
	Portfolio time.Duration
	Advisory  time.Duration
}

// Settings is the engine's share of the configuration
type Settings struct {
	Risk          risk.Parameters
	Consensus     consensus.Options
	Fusion        fusion.Config
	Mode          safety.ModeConfig
	RequestedMode types.Mode
	Timeouts      Timeouts
	Workers       int
}

// Engine runs decision cycles. One engine serves all symbols; cycles for
// different symbols run concurrently, a symbol never has two.
type Engine struct {
	settings Settings
	collab   Collaborators
	log      zerolog.Logger
	stats    *decerrors.ErrorStats
	health   *monitoring.HealthChecker
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option customises an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithErrorStats records collaborator failures into stats
func WithErrorStats(stats *decerrors.ErrorStats) Option {
	return func(e *Engine) { e.stats = stats }
}

// WithHealth reports finished cycles to the health checker
func WithHealth(h *monitoring.HealthChecker) Option {
	return func(e *Engine) { e.health = h }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs replaces the ULID generator
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates an engine. At least one price source and a portfolio
// source are required.
func NewEngine(settings Settings, collab Collaborators, opts ...Option) (*Engine, error) {
	if len(collab.Prices) == 0 {
		return nil, decerrors.NewConfigurationError("pipeline", "new engine", "no price sources configured")
	}
	if collab.Portfolio == nil {
		return nil, decerrors.NewConfigurationError("pipeline", "new engine", "no portfolio source configured")
	}
	if settings.RequestedMode == "" {
		settings.RequestedMode = types.ModeDryRun
	}
	if settings.Workers <= 0 {
		settings.Workers = 1
	}

	e := &Engine{
		settings: settings,
		collab:   collab,
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) acquire(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[symbol]; busy {
		return false
	}
	e.inFlight[symbol] = struct{}{}
	return true
}

func (e *Engine) release(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, symbol)
}

// inputs collected in the first phase of a cycle
type inputs struct {
	quotes       []types.PriceQuote
	sentiment    types.SentimentScore
	portfolio    types.PortfolioState
	portfolioErr error
	history      []float64
	degraded     []string
}

// RunCycle runs one decision cycle for symbol. It returns ErrCycleInFlight
// without waiting when the symbol is busy. Collaborator failures never fail
// the cycle; they degrade its inputs and usually end in HELD.
func (e *Engine) RunCycle(ctx context.Context, symbol string) (CycleReport, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !e.acquire(symbol) {
		return CycleReport{}, fmt.Errorf("%s: %w", symbol, ErrCycleInFlight)
	}
	defer e.release(symbol)

	report := CycleReport{ID: e.newID(), Symbol: symbol, StartedAt: e.now()}
	log := e.log.With().Str("symbol", symbol).Str("cycle", report.ID).Logger()

	in := e.collect(ctx, symbol)
	report.Degraded = in.degraded
	report.Sentiment = in.sentiment
	report.Portfolio = in.portfolio.Summarize(symbol)

	m := fusion.New(symbol, e.settings.Fusion)

	c, verifyErr := consensus.Verify(symbol, in.quotes, e.settings.Consensus, e.now())
	report.Consensus = c
	if err := m.VerifyPrice(c, verifyErr); err != nil {
		return report, err
	}
	if verifyErr == nil {
		monitoring.RecordConsensus(symbol, c.ReferencePrice, c.MaxSpreadPct, c.SpreadDefined())
	}

	if !m.State().Terminal() {
		if err := e.assessAndFuse(ctx, m, &report, in); err != nil {
			return report, err
		}
	}

	decision, err := m.Decision(report.ID, e.settings.RequestedMode)
	if err != nil {
		return report, err
	}
	gated := safety.Gate(decision, e.settings.Mode)
	if decision.Mode == types.ModeExecute && gated.Mode != types.ModeExecute {
		monitoring.RecordGateDowngrade(symbol)
	}

	report.Decision = gated
	report.Transitions = m.History()
	report.Duration = e.now().Sub(report.StartedAt)

	monitoring.RecordCycle(symbol, string(gated.Outcome), float64(gated.Confidence), report.Duration)
	if e.health != nil {
		e.health.RecordCycle(symbol, string(gated.Outcome), e.now())
	}

	log.Info().
		Str("outcome", string(gated.Outcome)).
		Str("action", string(gated.Action)).
		Str("mode", string(gated.Mode)).
		Int("confidence", gated.Confidence).
		Str("risk", string(gated.RiskLevel)).
		Float64("size", gated.PositionSize).
		Strs("degraded", report.Degraded).
		Msg(gated.Rationale)

	for _, sink := range e.collab.Sinks {
		if err := sink.Record(ctx, gated, report); err != nil {
			log.Warn().Err(err).Msg("decision sink failed")
		}
	}
	return report, nil
}

// assessAndFuse asks the advisor, sizes the position and resolves the machine
func (e *Engine) assessAndFuse(ctx context.Context, m *fusion.Machine, report *CycleReport, in inputs) error {
	c := m.Consensus()
	symbol := report.Symbol

	if in.portfolioErr != nil {
		err := decerrors.WrapError(in.portfolioErr, decerrors.ErrorCategoryInvalidRiskInput, "pipeline", "portfolio snapshot")
		return m.AssessRisk(risk.Assessment{}, err)
	}

	rec := e.recommend(ctx, types.AdvisoryRequest{
		Symbol:      symbol,
		Consensus:   c,
		Sentiment:   in.sentiment,
		Portfolio:   report.Portfolio,
		RequestedAt: e.now(),
	}, report)
	report.Recommendation = rec

	direction := rec.Action
	if direction != types.ActionBuy && direction != types.ActionSell {
		direction = types.ActionBuy
	}
	a, err := risk.Assess(c, in.portfolio, e.settings.Risk, direction,
		risk.WithRecentPrices(in.history),
		risk.WithTolerance(e.settings.Consensus.TolerancePct))
	if err == nil {
		report.Assessment = &a
	}
	if err := m.AssessRisk(a, err); err != nil {
		return err
	}
	if m.State().Terminal() {
		return nil
	}

	if err := m.Fuse(rec, in.sentiment); err != nil {
		return err
	}
	_, _, err = m.Resolve()
	return err
}

func (e *Engine) recommend(ctx context.Context, req types.AdvisoryRequest, report *CycleReport) types.Recommendation {
	if e.collab.Advisor == nil {
		return fusion.DefaultRecommendation(req.Symbol, "no advisor configured")
	}

	actx, cancel := withTimeout(ctx, e.settings.Timeouts.Advisory)
	defer cancel()

	rec, err := e.collab.Advisor.Recommend(actx, req)
	if err != nil {
		e.degrade(report, "advisor", err)
		return fusion.DefaultRecommendation(req.Symbol, err.Error())
	}
	rec.Symbol = req.Symbol
	return rec
}

// collect fetches quotes, sentiment, portfolio and history concurrently
func (e *Engine) collect(ctx context.Context, symbol string) inputs {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		in       inputs
		quotes   = make([]*types.PriceQuote, len(e.collab.Prices))
		degraded []string
	)
	note := func(name string, err error) {
		mu.Lock()
		degraded = append(degraded, e.failure(name, err))
		mu.Unlock()
	}

	for i, src := range e.collab.Prices {
		wg.Add(1)
		go func(i int, src PriceSource) {
			defer wg.Done()
			qctx, cancel := withTimeout(ctx, e.settings.Timeouts.Price)
			defer cancel()

			q, err := src.Quote(qctx, symbol)
			if err != nil {
				note(src.Name(), err)
				return
			}
			if q.SourceID == "" {
				q.SourceID = src.Name()
			}
			quotes[i] = &q
		}(i, src)
	}

	in.sentiment = sentiment.Neutral(symbol)
	if e.collab.Sentiment != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := withTimeout(ctx, e.settings.Timeouts.Sentiment)
			defer cancel()

			components, err := e.collab.Sentiment.Sentiment(sctx, symbol)
			if err != nil {
				note("sentiment", err)
				return
			}
			in.sentiment = sentiment.Aggregate(symbol, components)
		}()
	}

	if e.collab.History != nil && e.settings.Risk.SizingMethod == risk.VolatilityAdjusted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hctx, cancel := withTimeout(ctx, e.settings.Timeouts.Price)
			defer cancel()

			history, err := e.collab.History.RecentPrices(hctx, symbol)
			if err != nil {
				note("history", err)
				return
			}
			in.history = history
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		pctx, cancel := withTimeout(ctx, e.settings.Timeouts.Portfolio)
		defer cancel()

		state, err := e.collab.Portfolio.Snapshot(pctx)
		if err != nil {
			note("portfolio", err)
			in.portfolioErr = err
			return
		}
		in.portfolio = state
	}()

	wg.Wait()

	for _, q := range quotes {
		if q != nil {
			in.quotes = append(in.quotes, *q)
		}
	}
	in.degraded = degraded
	return in
}

func (e *Engine) degrade(report *CycleReport, name string, err error) {
	report.Degraded = append(report.Degraded, e.failure(name, err))
}

// failure records a collaborator error in metrics and stats and returns its summary
func (e *Engine) failure(name string, err error) string {
	dsErr := decerrors.NewDataSourceError(name, "fetch", err)
	monitoring.RecordCollaboratorError(name, string(dsErr.Category))
	if e.stats != nil {
		e.stats.RecordError(dsErr)
	}
	e.log.Warn().Err(err).Str("collaborator", name).Str("category", string(dsErr.Category)).Msg("collaborator failed, degrading input")
	return name + ": " + err.Error()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
