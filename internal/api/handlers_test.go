package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quantlab/internal/backtest"
	"quantlab/internal/indicator"
	"quantlab/internal/marketdata"
	"quantlab/internal/model"
)

func newTestServer() *Server {
	return NewServer(Deps{
		Market:   marketdata.NewService(nil, nil),
		IndCache: indicator.NewCache(nil),
		Engine:   backtest.New(nil),
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %s: %v", w.Body.String(), err)
	}
}

func risingCandles(n int) []model.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = model.Candle{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      p, High: p, Low: p, Close: p,
			Volume: 1000,
		}
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	w := doJSON(t, newTestServer(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	var body struct {
		Status string `json:"status"`
		SQLite bool   `json:"sqlite"`
		Redis  bool   `json:"redis"`
	}
	decode(t, w, &body)
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if body.SQLite || body.Redis {
		t.Error("stores reported healthy without being wired")
	}
}

func TestHandleMarketData(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodGet, "/api/market-data?symbol=ACME&limit=30", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Symbol  string         `json:"symbol"`
		Candles []model.Candle `json:"candles"`
	}
	decode(t, w, &body)
	if body.Symbol != "ACME" || len(body.Candles) != 30 {
		t.Errorf("symbol %q with %d candles, want ACME with 30", body.Symbol, len(body.Candles))
	}

	if w := doJSON(t, s, http.MethodGet, "/api/market-data", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing symbol code = %d, want 400", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/market-data?symbol=ACME&interval=fortnight", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad interval code = %d, want 400", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/market-data?symbol=ACME", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST code = %d, want 405", w.Code)
	}
}

func TestHandleIndicators_InlineCandles(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodPost, "/api/indicators", map[string]interface{}{
		"candles":    risingCandles(10),
		"indicators": []string{"sma_3", "ema_3"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		Count  int                `json:"count"`
		Series []indicator.Series `json:"series"`
	}
	decode(t, w, &body)
	if body.Count != 10 || len(body.Series) != 2 {
		t.Fatalf("count %d with %d series, want 10 with 2", body.Count, len(body.Series))
	}
	names := map[string]bool{}
	for _, sr := range body.Series {
		names[sr.Name] = true
		if len(sr.Values) != 10 {
			t.Errorf("series %s len = %d, want 10", sr.Name, len(sr.Values))
		}
	}
	if !names["sma_3"] || !names["ema_3"] {
		t.Errorf("series names = %v", names)
	}
}

func TestHandleIndicators_Errors(t *testing.T) {
	s := newTestServer()

	// Window longer than the series: valid request shape, uncomputable.
	w := doJSON(t, s, http.MethodPost, "/api/indicators", map[string]interface{}{
		"candles":    risingCandles(5),
		"indicators": []string{"sma_50"},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("short series code = %d, want 422", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/indicators", map[string]interface{}{
		"candles":    risingCandles(5),
		"indicators": []string{"vwap_20"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown indicator code = %d, want 400", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/indicators", map[string]interface{}{
		"candles": risingCandles(5),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing indicators code = %d, want 400", w.Code)
	}

	// Malformed inline series: timestamps out of order.
	candles := risingCandles(5)
	candles[3].Timestamp = candles[0].Timestamp
	w = doJSON(t, s, http.MethodPost, "/api/indicators", map[string]interface{}{
		"candles":    candles,
		"indicators": []string{"sma_3"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid series code = %d, want 400", w.Code)
	}
}

func TestHandleBacktest_InlineCandles(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodPost, "/api/backtest", map[string]interface{}{
		"candles":         risingCandles(10),
		"initial_capital": 10000,
		"config": model.StrategyConfig{
			Strategy:         model.StrategyMomentum,
			MomentumLookback: 3,
			EntryThreshold:   0.01,
			ExitThreshold:    0.01,
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
	}

	var body struct {
		RunID  string                `json:"run_id"`
		Cached bool                  `json:"cached"`
		Result *model.BacktestResult `json:"result"`
		Risk   *model.RiskMetrics    `json:"risk"`
	}
	decode(t, w, &body)
	if body.RunID == "" {
		t.Error("run_id missing")
	}
	if body.Cached {
		t.Error("fresh run reported as cached")
	}
	if body.Result == nil {
		t.Fatal("result missing")
	}
	if got := body.Result.Summary.TotalTrades; got != 1 {
		t.Errorf("total trades = %d, want 1", got)
	}
	if !math.IsInf(body.Result.Summary.ProfitFactor, 1) {
		t.Errorf("profit factor = %v, want +Inf restored from null", body.Result.Summary.ProfitFactor)
	}
	if len(body.Result.Equity) != 11 {
		t.Errorf("equity len = %d, want 11", len(body.Result.Equity))
	}
	if body.Risk == nil || body.Risk.MaxDrawdown != 0 {
		t.Errorf("risk = %+v, want present with zero drawdown", body.Risk)
	}
}

func TestHandleBacktest_ErrorTaxonomy(t *testing.T) {
	s := newTestServer()

	// Unknown strategy: configuration error.
	w := doJSON(t, s, http.MethodPost, "/api/backtest", map[string]interface{}{
		"candles": risingCandles(10),
		"config":  map[string]interface{}{"strategy": "hodl"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown strategy code = %d, want 400", w.Code)
	}
	var errBody struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	decode(t, w, &errBody)
	if errBody.Field != "strategy" {
		t.Errorf("field = %q, want strategy", errBody.Field)
	}

	// Series shorter than the lookback: structurally valid, uncomputable.
	// The taxonomy maps that to 422, not 400.
	w = doJSON(t, s, http.MethodPost, "/api/backtest", map[string]interface{}{
		"candles": risingCandles(5),
		"config": model.StrategyConfig{
			Strategy:         model.StrategyMomentum,
			MomentumLookback: 50,
		},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("short series code = %d, want 422", w.Code)
	}

	// Neither candles nor symbol.
	w = doJSON(t, s, http.MethodPost, "/api/backtest", map[string]interface{}{
		"config": model.StrategyConfig{Strategy: model.StrategyMomentum},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no input code = %d, want 400", w.Code)
	}

	if w := doJSON(t, s, http.MethodGet, "/api/backtest", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET code = %d, want 405", w.Code)
	}
}

func TestHandleSweep(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodPost, "/api/backtest/sweep", map[string]interface{}{
		"candles": risingCandles(12),
		"configs": []model.StrategyConfig{
			{Strategy: model.StrategyMomentum, MomentumLookback: 3, EntryThreshold: 0.005},
			{Strategy: model.StrategyMomentum, MomentumLookback: 5, EntryThreshold: 0.005},
			{Strategy: "hodl"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
	}

	var body struct {
		Results []struct {
			ID      string         `json:"id"`
			Summary *model.Summary `json:"summary"`
			Error   string         `json:"error"`
		} `json:"results"`
	}
	decode(t, w, &body)
	if len(body.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(body.Results))
	}
	for i := 0; i < 2; i++ {
		r := body.Results[i]
		if r.Error != "" || r.Summary == nil {
			t.Errorf("job %d: error %q, summary %v", i, r.Error, r.Summary)
		}
	}
	if body.Results[2].Error == "" || body.Results[2].Summary != nil {
		t.Errorf("bad job: error %q, summary %v, want error only",
			body.Results[2].Error, body.Results[2].Summary)
	}

	w = doJSON(t, s, http.MethodPost, "/api/backtest/sweep", map[string]interface{}{
		"candles": risingCandles(12),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing configs code = %d, want 400", w.Code)
	}
}

func TestHandleRisk(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodPost, "/api/risk", map[string]interface{}{
		"equity_curve": []float64{10000, 10500, 9800, 10200},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", w.Code, w.Body.String())
	}
	var m model.RiskMetrics
	decode(t, w, &m)
	want := (10500.0 - 9800.0) / 10500.0
	if math.Abs(m.MaxDrawdown-want) > 1e-9 {
		t.Errorf("max drawdown = %v, want %v", m.MaxDrawdown, want)
	}
	if m.Beta != nil {
		t.Error("beta present without a benchmark")
	}

	// A return series compounds to the same shape as the equity curve above.
	w = doJSON(t, s, http.MethodPost, "/api/risk", map[string]interface{}{
		"returns": []float64{0.05, -1.0 / 15.0, 400.0 / 9800.0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("returns code = %d, body %s", w.Code, w.Body.String())
	}
	var fromReturns model.RiskMetrics
	decode(t, w, &fromReturns)
	if math.Abs(fromReturns.MaxDrawdown-want) > 1e-9 {
		t.Errorf("max drawdown from returns = %v, want %v", fromReturns.MaxDrawdown, want)
	}

	if w := doJSON(t, s, http.MethodPost, "/api/risk", map[string]interface{}{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty request code = %d, want 400", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/risk", map[string]interface{}{
		"equity_curve": []float64{10000},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("single point code = %d, want 422", w.Code)
	}
}

func TestHandleSettings(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodGet, "/api/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET code = %d", w.Code)
	}
	var cfg model.StrategyConfig
	decode(t, w, &cfg)
	if cfg.Strategy != model.StrategyMomentum {
		t.Errorf("default strategy = %s, want momentum", cfg.Strategy)
	}

	update := model.StrategyConfig{
		Strategy:       model.StrategyBreakout,
		BreakoutWindow: 30,
		StopLossPct:    0.05,
	}
	w = doJSON(t, s, http.MethodPost, "/api/settings", update)
	if w.Code != http.StatusOK {
		t.Fatalf("POST code = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/settings", nil)
	decode(t, w, &cfg)
	if cfg.Strategy != model.StrategyBreakout || cfg.BreakoutWindow != 30 {
		t.Errorf("updated settings = %+v", cfg)
	}

	bad := model.StrategyConfig{Strategy: model.StrategyMomentum, StopLossPct: 2}
	if w := doJSON(t, s, http.MethodPost, "/api/settings", bad); w.Code != http.StatusBadRequest {
		t.Errorf("invalid settings code = %d, want 400", w.Code)
	}
}

func TestHandleRuns_NoStore(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodGet, "/api/backtest/runs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list code = %d", w.Code)
	}
	var body struct {
		Runs []interface{} `json:"runs"`
	}
	decode(t, w, &body)
	if len(body.Runs) != 0 {
		t.Errorf("runs = %d, want 0", len(body.Runs))
	}

	if w := doJSON(t, s, http.MethodGet, "/api/backtest/runs/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("get code = %d, want 404", w.Code)
	}
}

func TestParseIntervalForms(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"", 24 * time.Hour, true},
		{"15m", 15 * time.Minute, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"0h", 0, false},
		{"h", 0, false},
		{"10w", 0, false},
		{"fortnight", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseInterval(tt.raw)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseInterval(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}
