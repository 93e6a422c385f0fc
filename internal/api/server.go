// Package api exposes the computation core over HTTP: market data, indicator
// series, backtest runs and sweeps, risk reduction, and runtime settings.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"quantlab/config"
	"quantlab/internal/backtest"
	"quantlab/internal/gateway"
	"quantlab/internal/indicator"
	"quantlab/internal/marketdata"
	"quantlab/internal/metrics"
	"quantlab/internal/model"
	"quantlab/internal/notification"
	redisstore "quantlab/internal/store/redis"
	sqlitestore "quantlab/internal/store/sqlite"

	"quantlab/internal/logger"
)

// Server wires the computation core behind HTTP handlers. Every dependency
// except the market data service and engine is optional; nil fields degrade
// to "feature off" rather than panicking.
type Server struct {
	cfg      *config.Config
	md       *marketdata.Service
	indCache *indicator.Cache
	engine   *backtest.Engine
	results  *redisstore.Cache
	writer   *sqlitestore.Writer
	reader   *sqlitestore.Reader
	hub      *gateway.Hub
	notifier notification.Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	start    time.Time

	settingsMu sync.RWMutex
	settings   model.StrategyConfig
}

// Deps bundles the constructor arguments.
type Deps struct {
	Config   *config.Config
	Market   *marketdata.Service
	IndCache *indicator.Cache
	Engine   *backtest.Engine
	Results  *redisstore.Cache
	Writer   *sqlitestore.Writer
	Reader   *sqlitestore.Reader
	Hub      *gateway.Hub
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// NewServer creates the API server.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:      d.Config,
		md:       d.Market,
		indCache: d.IndCache,
		engine:   d.Engine,
		results:  d.Results,
		writer:   d.Writer,
		reader:   d.Reader,
		hub:      d.Hub,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      d.Log,
		start:    time.Now(),
	}
	s.settings = model.StrategyConfig{}
	s.settings.Normalize()
	return s
}

// Router builds the HTTP mux with all routes registered.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.route("health", s.handleHealth))
	mux.HandleFunc("/api/market-data", s.route("market_data", s.handleMarketData))
	mux.HandleFunc("/api/indicators", s.route("indicators", s.handleIndicators))
	mux.HandleFunc("/api/backtest", s.route("backtest", s.handleBacktest))
	mux.HandleFunc("/api/backtest/sweep", s.route("sweep", s.handleSweep))
	mux.HandleFunc("/api/backtest/runs", s.route("runs", s.handleListRuns))
	mux.HandleFunc("/api/backtest/runs/", s.route("run", s.handleGetRun))
	mux.HandleFunc("/api/risk", s.route("risk", s.handleRisk))
	mux.HandleFunc("/api/settings", s.route("settings", s.handleSettings))
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}

	return mux
}

func (s *Server) defaultCapital() float64 {
	if s.cfg != nil && s.cfg.InitialCapital > 0 {
		return s.cfg.InitialCapital
	}
	return 10000
}

// statusWriter records the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// route wraps a handler with CORS preflight, trace-ID logging, and metrics.
func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}

		started := time.Now()
		ctx := logger.WithTraceID(r.Context(), logger.GenerateTraceID(name, started))
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		h(sw, r.WithContext(ctx))

		elapsed := time.Since(started)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(name, strconv.Itoa(sw.code)).Inc()
			s.metrics.HTTPDuration.Observe(elapsed.Seconds())
		}
		if s.log != nil {
			attrs := append(logger.LogWithTrace(ctx),
				slog.String("route", name),
				slog.Int("code", sw.code),
				slog.Duration("elapsed", elapsed))
			s.log.Info("request", attrs...)
		}
	}
}

// parseInterval parses "1d", "4h", "15m" style intervals. Empty means daily.
func parseInterval(raw string) (time.Duration, bool) {
	if raw == "" {
		return 24 * time.Hour, true
	}
	if len(raw) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	switch raw[len(raw)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	default:
		return 0, false
	}
}
