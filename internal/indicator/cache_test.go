package indicator

import (
	"errors"
	"sync"
	"testing"

	"quantlab/internal/model"
)

func TestFingerprint_Sensitivity(t *testing.T) {
	base := candlesFromCloses(100, 101, 102)
	fp := Fingerprint(base)

	if Fingerprint(base) != fp {
		t.Error("fingerprint not deterministic")
	}

	shifted := candlesFromCloses(100, 101, 103)
	if Fingerprint(shifted) == fp {
		t.Error("changed close produced the same fingerprint")
	}

	shorter := candlesFromCloses(100, 101)
	if Fingerprint(shorter) == fp {
		t.Error("shorter series produced the same fingerprint")
	}
}

func TestCacheCompute_MemoizesByKey(t *testing.T) {
	c := NewCache(nil)
	series := candlesFromCloses(100, 102, 104, 103, 105)

	first, err := c.Compute(series, Spec{Kind: KindSMA, Period: 3})
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d after first compute, want 1", c.Len())
	}

	second, err := c.Compute(series, Spec{Kind: KindSMA, Period: 3})
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if &first[0].Values[0] != &second[0].Values[0] {
		t.Error("repeat compute did not return the cached slices")
	}

	if _, err := c.Compute(series, Spec{Kind: KindSMA, Period: 4}); err != nil {
		t.Fatalf("different period: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d after second key, want 2", c.Len())
	}
}

func TestCacheCompute_ErrorsNotCached(t *testing.T) {
	c := NewCache(nil)
	series := candlesFromCloses(100, 101)

	_, err := c.Compute(series, Spec{Kind: KindSMA, Period: 5})
	var dataErr *model.InsufficientDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("err = %v, want InsufficientDataError", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after failed compute, want 0", c.Len())
	}
}

func TestCacheCompute_Concurrent(t *testing.T) {
	c := NewCache(nil)
	series := candlesFromCloses(100, 102, 104, 103, 105, 101, 106, 108)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Compute(series, Spec{Kind: KindEMA, Period: 3})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after concurrent identical computes, want 1", c.Len())
	}
}
