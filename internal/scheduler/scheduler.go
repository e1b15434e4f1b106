// Package scheduler runs decision cycles for every configured symbol on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/crypto-decision-engine/internal/pipeline"
)

// Runner runs one batch of cycles
type Runner interface {
	RunAll(ctx context.Context, symbols []string) []pipeline.CycleResult
}

// Scheduler triggers batches on a cron spec with seconds precision.
// A tick that fires while the previous batch is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	symbols []string
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	onBatch func([]pipeline.CycleResult)
}

// New creates a scheduler. onBatch, when set, receives the results of every batch.
func New(runner Runner, symbols []string, log zerolog.Logger, onBatch func([]pipeline.CycleResult)) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		symbols: symbols,
		log:     log.With().Str("component", "scheduler").Logger(),
		onBatch: onBatch,
	}
}

// Register adds the batch job on spec
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("register schedule %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron loop. Batches run under ctx until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Strs("symbols", s.symbols).Msg("scheduler started")
}

// Stop cancels in-flight cycles and waits for the running batch to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes a batch immediately and returns its results.
// It returns nil when a batch is already running.
func (s *Scheduler) RunNow(ctx context.Context) []pipeline.CycleResult {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("previous batch still running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	results := s.runner.RunAll(ctx, s.symbols)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.log.Info().Int("cycles", len(results)).Int("failed", failed).Msg("batch complete")

	if s.onBatch != nil {
		s.onBatch(results)
	}
	return results
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.RunNow(ctx)
}

var specParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Interval returns the gap between the next two activations of spec after from
func Interval(spec string, from time.Time) (time.Duration, error) {
	sched, err := specParser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	next := sched.Next(from)
	return sched.Next(next).Sub(next), nil
}
