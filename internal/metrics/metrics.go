// Package metrics exposes Prometheus instrumentation for the backtesting
// service: run counters, compute latencies, cache effectiveness, and the HTTP
// and WebSocket boundary.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	BacktestsTotal   *prometheus.CounterVec // labels: strategy, outcome
	BacktestDur      prometheus.Histogram
	TradesSimulated  prometheus.Counter
	IndicatorDur     prometheus.Histogram
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	RiskReductions   prometheus.Counter
	HTTPRequests     *prometheus.CounterVec // labels: route, code
	HTTPDuration     prometheus.Histogram
	WSClients        prometheus.Gauge
	WSEventsDropped  prometheus.Counter
	ResultCacheState prometheus.Gauge // circuit breaker: 0=closed, 1=open, 2=half-open
}

// New registers and returns all Prometheus metrics on the default registry.
func New() *Metrics {
	m := &Metrics{
		BacktestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantlab_backtests_total",
			Help: "Backtest runs by strategy and outcome (ok|error)",
		}, []string{"strategy", "outcome"}),
		BacktestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantlab_backtest_duration_seconds",
			Help:    "Wall time of a full backtest simulation",
			Buckets: prometheus.DefBuckets,
		}),
		TradesSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantlab_trades_simulated_total",
			Help: "Closed trades appended across all backtest runs",
		}),
		IndicatorDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantlab_indicator_compute_duration_seconds",
			Help:    "Indicator series computation latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantlab_indicator_cache_hits_total",
			Help: "Indicator cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantlab_indicator_cache_misses_total",
			Help: "Indicator cache misses (computations performed)",
		}),
		RiskReductions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantlab_risk_reductions_total",
			Help: "Risk metric reductions performed",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantlab_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantlab_http_request_duration_seconds",
			Help:    "HTTP handler latency",
			Buckets: prometheus.DefBuckets,
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantlab_ws_clients",
			Help: "Connected WebSocket stream clients",
		}),
		WSEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantlab_ws_events_dropped_total",
			Help: "Stream events dropped on slow clients",
		}),
		ResultCacheState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantlab_result_cache_breaker_state",
			Help: "Result cache circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}

	prometheus.MustRegister(
		m.BacktestsTotal, m.BacktestDur, m.TradesSimulated,
		m.IndicatorDur, m.CacheHits, m.CacheMisses, m.RiskReductions,
		m.HTTPRequests, m.HTTPDuration,
		m.WSClients, m.WSEventsDropped, m.ResultCacheState,
	)
	return m
}

// Serve starts the /metrics endpoint on addr. Blocks until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[metrics] serving on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
