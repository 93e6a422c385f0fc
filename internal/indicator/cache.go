package indicator

import (
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"

	"quantlab/internal/metrics"
	"quantlab/internal/model"
)

// Cache memoizes computed indicator series by (series identity, indicator
// kind, parameters). Concurrent duplicate requests for the same key collapse
// into a single computation: readers block on the in-flight call instead of
// recomputing or observing a partially filled entry.
//
// Entries are never invalidated — a candle series is immutable, so a
// fingerprint collision aside, a cached entry stays correct forever. The
// cache resets wholesale when it exceeds maxEntries.
type Cache struct {
	group      singleflight.Group
	mu         sync.RWMutex
	entries    map[string][]Series
	maxEntries int
	metrics    *metrics.Metrics // optional
}

const defaultMaxEntries = 4096

// NewCache creates an indicator cache. m may be nil.
func NewCache(m *metrics.Metrics) *Cache {
	return &Cache{
		entries:    make(map[string][]Series),
		maxEntries: defaultMaxEntries,
		metrics:    m,
	}
}

// Fingerprint derives a stable identity for a candle series from its length,
// timestamps, and close prices (FNV-1a).
func Fingerprint(series []model.Candle) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	put(uint64(len(series)))
	for i := range series {
		put(uint64(series[i].Timestamp.UnixNano()))
		put(math.Float64bits(series[i].Close))
	}
	return h.Sum64()
}

// Compute returns the memoized result of Compute(series, spec), computing it
// at most once per key across concurrent callers.
func (c *Cache) Compute(series []model.Candle, spec Spec) ([]Series, error) {
	spec.normalize()
	key := fmt.Sprintf("%x:%s", Fingerprint(series), spec.Key())

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
		out, err := Compute(series, spec)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if len(c.entries) >= c.maxEntries {
			c.entries = make(map[string][]Series)
		}
		c.entries[key] = out
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Series), nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
