package pipeline

import (
	"context"
	"sync"
)

// cycleJob is one symbol queued for a cycle
type cycleJob struct {
	index  int
	symbol string
}

// workerPool runs cycles on a fixed number of workers
type workerPool struct {
	workerCount int
	jobQueue    chan cycleJob
	resultQueue chan indexedResult
	wg          sync.WaitGroup
	ctx         context.Context
	run         func(ctx context.Context, symbol string) (CycleReport, error)
}

type indexedResult struct {
	index  int
	result CycleResult
}

func newWorkerPool(ctx context.Context, workerCount, jobs int, run func(ctx context.Context, symbol string) (CycleReport, error)) *workerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > jobs && jobs > 0 {
		workerCount = jobs
	}
	return &workerPool{
		workerCount: workerCount,
		jobQueue:    make(chan cycleJob, jobs),
		resultQueue: make(chan indexedResult, jobs),
		ctx:         ctx,
		run:         run,
	}
}

func (wp *workerPool) start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// stop closes the queue and waits for in-flight cycles
func (wp *workerPool) stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

func (wp *workerPool) worker() {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := CycleResult{Symbol: job.symbol}
		if err := wp.ctx.Err(); err != nil {
			result.Err = err
		} else {
			result.Report, result.Err = wp.run(wp.ctx, job.symbol)
		}
		wp.resultQueue <- indexedResult{index: job.index, result: result}
	}
}

// RunAll runs a cycle per symbol on the configured number of workers and
// returns the results in input order. Symbols not started before ctx is done
// carry the context error.
func (e *Engine) RunAll(ctx context.Context, symbols []string) []CycleResult {
	results := make([]CycleResult, len(symbols))
	if len(symbols) == 0 {
		return results
	}

	pool := newWorkerPool(ctx, e.settings.Workers, len(symbols), e.RunCycle)
	pool.start()
	for i, symbol := range symbols {
		pool.jobQueue <- cycleJob{index: i, symbol: symbol}
	}
	pool.stop()

	for r := range pool.resultQueue {
		results[r.index] = r.result
		if r.result.Err != nil {
			e.log.Warn().Err(r.result.Err).Str("symbol", r.result.Symbol).Msg("cycle not run")
		}
	}
	return results
}
