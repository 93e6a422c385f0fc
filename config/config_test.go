package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want :8000", cfg.HTTPAddr)
	}
	if cfg.RedisEnabled {
		t.Error("RedisEnabled defaults to true, want false")
	}
	if cfg.SQLitePath != "data/quantlab.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.InitialCapital != 10000 || cfg.AnnualizationFactor != 252 || cfg.RiskFreeRate != 0.02 {
		t.Errorf("simulation defaults = %v/%v/%v",
			cfg.InitialCapital, cfg.AnnualizationFactor, cfg.RiskFreeRate)
	}
	if cfg.ResultCacheTTL != 30*time.Minute {
		t.Errorf("ResultCacheTTL = %s, want 30m", cfg.ResultCacheTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("INITIAL_CAPITAL", "50000")
	t.Setenv("POOL_WORKERS", "8")
	t.Setenv("RESULT_CACHE_TTL", "5m")

	cfg := Load()
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !cfg.RedisEnabled {
		t.Error("RedisEnabled not overridden")
	}
	if cfg.InitialCapital != 50000 {
		t.Errorf("InitialCapital = %v", cfg.InitialCapital)
	}
	if cfg.PoolWorkers != 8 {
		t.Errorf("PoolWorkers = %d", cfg.PoolWorkers)
	}
	if cfg.ResultCacheTTL != 5*time.Minute {
		t.Errorf("ResultCacheTTL = %s", cfg.ResultCacheTTL)
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "banana")
	t.Setenv("INITIAL_CAPITAL", "lots")
	t.Setenv("POOL_WORKERS", "many")
	t.Setenv("RESULT_CACHE_TTL", "soon")

	cfg := Load()
	if cfg.RedisEnabled {
		t.Error("malformed bool did not fall back")
	}
	if cfg.InitialCapital != 10000 {
		t.Errorf("InitialCapital = %v, want fallback", cfg.InitialCapital)
	}
	if cfg.PoolWorkers != 0 {
		t.Errorf("PoolWorkers = %d, want fallback", cfg.PoolWorkers)
	}
	if cfg.ResultCacheTTL != 30*time.Minute {
		t.Errorf("ResultCacheTTL = %s, want fallback", cfg.ResultCacheTTL)
	}
}
