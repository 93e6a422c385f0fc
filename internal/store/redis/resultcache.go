// Package redis caches completed backtest results keyed by the exact inputs
// that produced them, fronted by a circuit breaker so a flapping Redis never
// stalls the simulation path.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"quantlab/internal/metrics"
	"quantlab/internal/model"
)

const (
	defaultResultTTL  = 30 * time.Minute
	completedChannel  = "pub:backtest:completed"
	breakerFailures   = 5
	breakerResetAfter = 10 * time.Second
)

// CacheConfig configures the Redis result cache.
type CacheConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // 0 = defaultResultTTL
}

// Cache stores serialized BacktestResults under input-derived keys. A cache
// hit means the same candle series and config were already simulated; the
// result is returned verbatim.
type Cache struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	ttl     time.Duration
	metrics *metrics.Metrics // optional
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// NewCache creates a result cache and pings the server. m may be nil.
func NewCache(cfg CacheConfig, m *metrics.Metrics) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}

	cache := &Cache{
		client:  client,
		breaker: NewCircuitBreaker(breakerFailures, breakerResetAfter),
		ttl:     ttl,
		metrics: m,
	}
	cache.breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		if m != nil {
			m.ResultCacheState.Set(float64(to))
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return cache, nil
}

// Key derives the cache key from the series fingerprint and the config. Two
// requests collide only when both the candles and every strategy parameter
// match.
func Key(fingerprint uint64, cfg *model.StrategyConfig, capital float64) string {
	cfgJSON, _ := json.Marshal(cfg)
	return "bt:result:" + strconv.FormatUint(fingerprint, 16) + ":" +
		strconv.FormatUint(hashBytes(cfgJSON), 16) + ":" +
		strconv.FormatFloat(capital, 'g', -1, 64)
}

// hashBytes is FNV-1a, matching the indicator cache's series fingerprint.
func hashBytes(b []byte) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= prime64
	}
	return h
}

// Get loads a cached result. The second return is false on miss; Redis errors
// are returned only when the breaker lets the call through and it still fails.
func (c *Cache) Get(ctx context.Context, key string) (*model.BacktestResult, bool, error) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, key).Result()
		if err == goredis.Nil {
			data = ""
			return nil
		}
		return err
	})
	if err != nil {
		if err == ErrCircuitOpen {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	if data == "" {
		return nil, false, nil
	}

	var result model.BacktestResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached result: %w", err)
	}
	return &result, true, nil
}

// Put stores a result under key with the configured TTL and publishes a
// completion event for external subscribers, pipelined into one roundtrip.
func (c *Cache) Put(ctx context.Context, key string, result *model.BacktestResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	jsonData := string(data)

	err = c.breaker.Execute(func() error {
		pipe := c.client.Pipeline()
		pipe.Set(ctx, key, jsonData, c.ttl)
		event, _ := json.Marshal(map[string]interface{}{
			"key":          key,
			"strategy":     result.Config.Strategy,
			"total_trades": result.Summary.TotalTrades,
			"total_return": result.Summary.TotalReturn,
		})
		pipe.Publish(ctx, completedChannel, string(event))
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if err == ErrCircuitOpen {
			return nil // degrade silently; caching is best-effort
		}
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
