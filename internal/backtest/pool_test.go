package backtest

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"quantlab/internal/model"
)

func TestRunAll_PreservesJobOrder(t *testing.T) {
	series := flatBars(100, 101, 102, 103, 104, 105, 106, 107, 108, 109)

	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = Job{
			ID:      strconv.Itoa(i),
			Series:  series,
			Config:  momentumCfg(2+i%3, 0.01, 0.01),
			Capital: 10000,
		}
	}

	results, err := New(nil).RunAll(context.Background(), jobs, 3)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("results = %d, want %d", len(results), len(jobs))
	}
	for i, res := range results {
		if res.ID != strconv.Itoa(i) {
			t.Errorf("slot %d holds job %q", i, res.ID)
		}
		if res.Err != nil {
			t.Errorf("job %d: %v", i, res.Err)
		}
		if res.Result == nil || len(res.Result.Equity) != len(series)+1 {
			t.Errorf("job %d: incomplete result %+v", i, res.Result)
		}
	}
}

func TestRunAll_PerJobFailureDoesNotAbort(t *testing.T) {
	series := flatBars(100, 101, 102, 103, 104, 105)

	jobs := []Job{
		{ID: "good", Series: series, Config: momentumCfg(2, 0.01, 0.01), Capital: 10000},
		{ID: "bad", Series: series, Config: momentumCfg(2, 0.01, 0.01), Capital: -1},
		{ID: "also good", Series: series, Config: momentumCfg(3, 0.01, 0.01), Capital: 10000},
	}

	results, err := New(nil).RunAll(context.Background(), jobs, 2)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy jobs failed: %v, %v", results[0].Err, results[2].Err)
	}
	var cfgErr *model.InvalidConfigError
	if !errors.As(results[1].Err, &cfgErr) {
		t.Errorf("bad job err = %v, want InvalidConfigError", results[1].Err)
	}
	if results[1].Result != nil {
		t.Error("failed job carries a result")
	}
}

func TestRunAll_CanceledContext(t *testing.T) {
	series := flatBars(100, 101, 102, 103, 104, 105)
	jobs := make([]Job, 4)
	for i := range jobs {
		jobs[i] = Job{
			ID:      strconv.Itoa(i),
			Series:  series,
			Config:  momentumCfg(2, 0.01, 0.01),
			Capital: 10000,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).RunAll(ctx, jobs, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunAll_DefaultWorkerCount(t *testing.T) {
	series := flatBars(100, 101, 102, 103, 104, 105)
	jobs := []Job{
		{ID: "only", Series: series, Config: momentumCfg(2, 0.01, 0.01), Capital: 10000},
	}

	results, err := New(nil).RunAll(context.Background(), jobs, 0)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if results[0].Err != nil || results[0].Result == nil {
		t.Fatalf("result = %+v", results[0])
	}
}
