package backtest

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"quantlab/internal/indicator"
	"quantlab/internal/model"
)

// Job is one independent simulation in a parameter sweep.
type Job struct {
	ID      string
	Series  []model.Candle
	Ind     indicator.Set
	Config  model.StrategyConfig
	Capital float64
}

// PoolResult pairs a job with its outcome. Exactly one of Result and Err is
// set.
type PoolResult struct {
	ID     string
	Result *model.BacktestResult
	Err    error
}

// RunAll simulates every job on a bounded worker pool and returns results in
// job order. Per-job failures are reported in their slot rather than aborting
// the sweep; only context cancellation stops the run early, in which case the
// context error is returned and the results are partial.
func (e *Engine) RunAll(ctx context.Context, jobs []Job, workers int) ([]PoolResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]PoolResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range jobs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			job := &jobs[i]
			res, err := e.Run(job.Series, job.Ind, job.Config, job.Capital)
			results[i] = PoolResult{ID: job.ID, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
