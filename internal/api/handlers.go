package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quantlab/internal/backtest"
	"quantlab/internal/gateway"
	"quantlab/internal/indicator"
	"quantlab/internal/logger"
	"quantlab/internal/model"
	"quantlab/internal/notification"
	"quantlab/internal/risk"
	redisstore "quantlab/internal/store/redis"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqliteOK := false
	if s.writer != nil {
		sqliteOK = s.writer.DB().PingContext(r.Context()) == nil
	}
	redisOK := false
	if s.results != nil {
		redisOK = s.results.Client().Ping(r.Context()).Err() == nil
	}
	wsClients := 0
	if s.hub != nil {
		wsClients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"sqlite":     sqliteOK,
		"redis":      redisOK,
		"ws_clients": wsClients,
		"uptime_sec": int64(time.Since(s.start).Seconds()),
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// seriesParams are the query parameters shared by the data-serving routes.
type seriesParams struct {
	symbol   string
	interval time.Duration
	limit    int
}

func (s *Server) seriesFromQuery(r *http.Request) (seriesParams, string) {
	p := seriesParams{symbol: r.URL.Query().Get("symbol"), limit: 100}
	if p.symbol == "" {
		return p, "symbol is required"
	}
	interval, ok := parseInterval(r.URL.Query().Get("interval"))
	if !ok {
		return p, "invalid interval (use forms like 15m, 4h, 1d)"
	}
	p.interval = interval
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 10000 {
			return p, "limit must be in 1..10000"
		}
		p.limit = n
	}
	return p, ""
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "GET only"})
		return
	}
	p, msg := s.seriesFromQuery(r)
	if msg != "" {
		writeBadRequest(w, msg)
		return
	}

	candles, err := s.md.Series(p.symbol, p.interval, p.limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  p.symbol,
		"candles": candles,
	})
}

// indicatorsRequest is the POST body for /api/indicators. Inline candles take
// precedence over the symbol lookup.
type indicatorsRequest struct {
	Symbol     string         `json:"symbol,omitempty"`
	Interval   string         `json:"interval,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Candles    []model.Candle `json:"candles,omitempty"`
	Indicators []string       `json:"indicators"`
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	var req indicatorsRequest
	switch r.Method {
	case http.MethodGet:
		req.Symbol = r.URL.Query().Get("symbol")
		req.Interval = r.URL.Query().Get("interval")
		if raw := r.URL.Query().Get("limit"); raw != "" {
			req.Limit, _ = strconv.Atoi(raw)
		}
		if names := r.URL.Query().Get("indicators"); names != "" {
			req.Indicators = strings.Split(names, ",")
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON: "+err.Error())
			return
		}
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "GET or POST"})
		return
	}

	if len(req.Indicators) == 0 {
		writeBadRequest(w, "indicators is required")
		return
	}

	candles, err := s.resolveCandles(req.Candles, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if msg := validateInline(candles); msg != "" {
		writeBadRequest(w, msg)
		return
	}

	out := make([]indicator.Series, 0, len(req.Indicators))
	started := time.Now()
	for _, name := range req.Indicators {
		spec, err := indicator.ParseSpec(name)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		series, err := s.indCache.Compute(candles, spec)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, series...)
	}
	if s.metrics != nil {
		s.metrics.IndicatorDur.Observe(time.Since(started).Seconds())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": req.Symbol,
		"count":  len(candles),
		"series": out,
	})
}

// backtestRequest is the POST body for /api/backtest.
type backtestRequest struct {
	Symbol    string               `json:"symbol,omitempty"`
	Interval  string               `json:"interval,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
	Candles   []model.Candle       `json:"candles,omitempty"`
	Capital   float64              `json:"initial_capital,omitempty"`
	Config    model.StrategyConfig `json:"config"`
	SkipCache bool                 `json:"skip_cache,omitempty"`
}

type backtestResponse struct {
	RunID  string                `json:"run_id"`
	Cached bool                  `json:"cached"`
	Result *model.BacktestResult `json:"result"`
	Risk   *model.RiskMetrics    `json:"risk,omitempty"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "POST only"})
		return
	}
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	candles, err := s.resolveCandles(req.Candles, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	capital := req.Capital
	if capital <= 0 {
		capital = s.defaultCapital()
	}

	cfg := req.Config
	cfg.Normalize()

	// Result cache lookup: same candles + same config + same capital.
	fp := indicator.Fingerprint(candles)
	cacheKey := redisstore.Key(fp, &cfg, capital)
	if s.results != nil && !req.SkipCache {
		if cached, ok, err := s.results.Get(r.Context(), cacheKey); err != nil {
			log.Printf("[api] result cache get: %v", err)
		} else if ok {
			resp := backtestResponse{Cached: true, Result: cached}
			resp.Risk, _ = s.reduceRisk(cached.Equity, cached.Trades, nil)
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	ind, err := s.computeSet(candles, cfg.Indicators)
	if err != nil {
		writeError(w, err)
		return
	}

	runID := logger.GenerateTraceID("run", time.Now())
	engine := s.engine
	if s.hub != nil || s.notifier != nil {
		engine = engine.WithHooks(s.runHooks(runID))
	}
	if s.hub != nil {
		s.hub.Publish(gateway.EventRunStarted, map[string]interface{}{
			"run_id":   runID,
			"strategy": cfg.Strategy,
			"candles":  len(candles),
		})
	}

	result, err := engine.Run(candles, ind, cfg, capital)
	if err != nil {
		writeError(w, err)
		return
	}

	riskMetrics, _ := s.reduceRisk(result.Equity, result.Trades, nil)
	s.finishRun(runID, req.Symbol, cacheKey, result)

	writeJSON(w, http.StatusOK, backtestResponse{
		RunID:  runID,
		Result: result,
		Risk:   riskMetrics,
	})
}

// runHooks forwards simulation lifecycle callbacks to the event hub and the
// alert channels.
func (s *Server) runHooks(runID string) backtest.Hooks {
	return backtest.Hooks{
		OnTrade: func(trade model.Trade) {
			if s.hub != nil {
				s.hub.Publish(gateway.EventTradeClosed, map[string]interface{}{
					"run_id": runID,
					"trade":  trade,
				})
			}
		},
		OnDailyHalt: func(day time.Time, drawdown float64) {
			if s.hub != nil {
				s.hub.Publish(gateway.EventDailyHalt, map[string]interface{}{
					"run_id":   runID,
					"day":      day.Format("2006-01-02"),
					"drawdown": drawdown,
				})
			}
			s.notify(notification.DailyLossHalt(day.Format("2006-01-02"), drawdown))
		},
	}
}

// finishRun persists and announces a completed run. All of it is best-effort.
func (s *Server) finishRun(runID, symbol, cacheKey string, result *model.BacktestResult) {
	if s.writer != nil {
		if err := s.writer.SaveRun(runID, symbol, result); err != nil {
			log.Printf("[api] save run %s: %v", runID, err)
		}
	}
	if s.results != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.results.Put(ctx, cacheKey, result); err != nil {
			log.Printf("[api] result cache put: %v", err)
		}
	}
	if s.hub != nil {
		s.hub.Publish(gateway.EventRunCompleted, map[string]interface{}{
			"run_id":  runID,
			"summary": result.Summary,
		})
	}
	s.notify(notification.BacktestCompleted(runID, result))
}

func (s *Server) notify(alert notification.Alert) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Send(ctx, alert); err != nil {
			log.Printf("[api] notify: %v", err)
		}
	}()
}

// sweepRequest is the POST body for /api/backtest/sweep: one candle series,
// many independent configs.
type sweepRequest struct {
	Symbol   string                 `json:"symbol,omitempty"`
	Interval string                 `json:"interval,omitempty"`
	Limit    int                    `json:"limit,omitempty"`
	Candles  []model.Candle         `json:"candles,omitempty"`
	Capital  float64                `json:"initial_capital,omitempty"`
	Configs  []model.StrategyConfig `json:"configs"`
}

type sweepItem struct {
	ID      string         `json:"id"`
	Summary *model.Summary `json:"summary,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "POST only"})
		return
	}
	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Configs) == 0 {
		writeBadRequest(w, "configs is required")
		return
	}

	candles, err := s.resolveCandles(req.Candles, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	capital := req.Capital
	if capital <= 0 {
		capital = s.defaultCapital()
	}

	jobs := make([]backtest.Job, len(req.Configs))
	for i := range req.Configs {
		cfg := req.Configs[i]
		cfg.Normalize()
		ind, err := s.computeSet(candles, cfg.Indicators)
		if err != nil {
			writeError(w, err)
			return
		}
		jobs[i] = backtest.Job{
			ID:      strconv.Itoa(i),
			Series:  candles,
			Ind:     ind,
			Config:  cfg,
			Capital: capital,
		}
	}

	workers := 0
	if s.cfg != nil {
		workers = s.cfg.PoolWorkers
	}
	results, err := s.engine.RunAll(r.Context(), jobs, workers)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]sweepItem, len(results))
	for i, res := range results {
		items[i] = sweepItem{ID: res.ID}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
		} else if res.Result != nil {
			summary := res.Result.Summary
			items[i].Summary = &summary
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": items})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "GET only"})
		return
	}
	if s.reader == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"runs": []interface{}{}})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	runs, err := s.reader.ListRuns(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "GET only"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/backtest/runs/")
	if id == "" {
		writeBadRequest(w, "run id is required")
		return
	}
	if s.reader == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "run not found"})
		return
	}
	result, err := s.reader.ReadRun(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, backtestResponse{RunID: id, Result: result})
}

// riskRequest is the POST body for /api/risk. Either an equity curve or a
// simple-return series must be supplied; the curve wins when both are.
type riskRequest struct {
	EquityCurve         []float64          `json:"equity_curve,omitempty"`
	Returns             []float64          `json:"returns,omitempty"`
	Benchmark           []float64          `json:"benchmark,omitempty"`
	RiskFreeRate        *float64           `json:"risk_free_rate,omitempty"`
	AnnualizationFactor float64            `json:"annualization_factor,omitempty"`
	Limits              map[string]float64 `json:"limits,omitempty"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "POST only"})
		return
	}
	var req riskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	equity := model.EquityCurve(req.EquityCurve)
	if len(equity) == 0 {
		if len(req.Returns) == 0 {
			writeBadRequest(w, "equity_curve or returns is required")
			return
		}
		// Rebuild a unit-capital curve by compounding the returns.
		equity = make(model.EquityCurve, 0, len(req.Returns)+1)
		equity = append(equity, 1)
		for _, ret := range req.Returns {
			equity = append(equity, equity[len(equity)-1]*(1+ret))
		}
	}

	opts := &risk.Options{
		AnnualizationFactor: req.AnnualizationFactor,
		Benchmark:           req.Benchmark,
	}
	if req.RiskFreeRate != nil {
		opts.RiskFreeRate = *req.RiskFreeRate
	} else if s.cfg != nil {
		opts.RiskFreeRate = s.cfg.RiskFreeRate
	}

	metrics, err := s.reduceRisk(equity, nil, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	s.checkRiskLimits(metrics, req.Limits)
	writeJSON(w, http.StatusOK, metrics)
}

// checkRiskLimits raises alerts for any metric past its configured bound.
func (s *Server) checkRiskLimits(m *model.RiskMetrics, limits map[string]float64) {
	checks := []struct {
		name  string
		value float64
	}{
		{"max_drawdown", m.MaxDrawdown},
		{"volatility", m.Volatility},
	}
	for _, c := range checks {
		limit, ok := limits[c.name]
		if !ok || c.value <= limit {
			continue
		}
		if s.hub != nil {
			s.hub.Publish(gateway.EventRiskAlert, map[string]interface{}{
				"metric": c.name,
				"value":  c.value,
				"limit":  limit,
			})
		}
		s.notify(notification.RiskLimitBreached(c.name, c.value, limit))
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.settingsMu.RLock()
		cfg := s.settings
		s.settingsMu.RUnlock()
		writeJSON(w, http.StatusOK, cfg)

	case http.MethodPost, http.MethodPut:
		var cfg model.StrategyConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeBadRequest(w, "invalid JSON: "+err.Error())
			return
		}
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			writeError(w, err)
			return
		}
		s.settingsMu.Lock()
		s.settings = cfg
		s.settingsMu.Unlock()
		log.Printf("[api] settings updated: strategy=%s", cfg.Strategy)
		writeJSON(w, http.StatusOK, cfg)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "GET, POST or PUT"})
	}
}

// resolveCandles picks inline candles when present, otherwise loads the
// symbol's series from the market data service.
func (s *Server) resolveCandles(inline []model.Candle, symbol, interval string, limit int) ([]model.Candle, error) {
	if len(inline) > 0 {
		return inline, nil
	}
	if symbol == "" {
		return nil, &model.InvalidSeriesError{Index: 0, Reason: "candles or symbol is required"}
	}
	d, ok := parseInterval(interval)
	if !ok {
		return nil, &model.InvalidConfigError{Field: "interval", Reason: "use forms like 15m, 4h, 1d"}
	}
	return s.md.Series(symbol, d, limit)
}

// validateInline rejects malformed inline candle series before computation.
func validateInline(candles []model.Candle) string {
	if err := model.ValidateSeries(candles); err != nil {
		return err.Error()
	}
	return ""
}

// computeSet resolves the named indicators through the memoizing cache into
// the Set the simulator consumes.
func (s *Server) computeSet(candles []model.Candle, names []string) (indicator.Set, error) {
	set := make(indicator.Set, len(names))
	for _, name := range names {
		spec, err := indicator.ParseSpec(name)
		if err != nil {
			return nil, &model.InvalidConfigError{Field: "indicators", Reason: err.Error()}
		}
		out, err := s.indCache.Compute(candles, spec)
		if err != nil {
			return nil, err
		}
		set.Add(out...)
	}
	return set, nil
}

func (s *Server) reduceRisk(equity model.EquityCurve, trades []model.Trade, opts *risk.Options) (*model.RiskMetrics, error) {
	o := risk.Options{}
	if opts != nil {
		o = *opts
	}
	if o.AnnualizationFactor <= 0 && s.cfg != nil {
		o.AnnualizationFactor = s.cfg.AnnualizationFactor
	}
	if opts == nil && s.cfg != nil {
		o.RiskFreeRate = s.cfg.RiskFreeRate
	}
	m, err := risk.Reduce(equity, trades, o)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RiskReductions.Inc()
	}
	return m, nil
}
