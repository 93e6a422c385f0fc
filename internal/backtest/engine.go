package backtest

import (
	"log"
	"math"
	"time"

	"quantlab/internal/indicator"
	"quantlab/internal/metrics"
	"quantlab/internal/model"
)

// Hooks receive simulation lifecycle callbacks. All fields are optional.
// Callbacks run synchronously inside the simulation loop and must be cheap.
type Hooks struct {
	OnStep      func(step int, equity float64)
	OnTrade     func(trade model.Trade)
	OnDailyHalt func(day time.Time, drawdown float64)
}

// Engine runs backtest simulations. An Engine is stateless between runs and
// safe for concurrent use; every Run gets fresh simulation state.
type Engine struct {
	metrics *metrics.Metrics // optional
	hooks   Hooks
}

// New creates a backtest engine. m may be nil.
func New(m *metrics.Metrics) *Engine {
	return &Engine{metrics: m}
}

// WithHooks returns a shallow copy of the engine with the given hooks set.
func (e *Engine) WithHooks(h Hooks) *Engine {
	cp := *e
	cp.hooks = h
	return &cp
}

// run-local simulation state.
type simState struct {
	cfg      model.StrategyConfig
	capital  float64 // cash, net of entry commissions while a position is open
	pos      model.Position
	trades   []model.Trade
	equity   model.EquityCurve
	dayStart float64   // equity at the first step of the current day
	day      time.Time // current calendar day (UTC)
	halted   bool      // entries blocked for the rest of the day
}

// Run simulates the configured strategy over the series and returns a fully
// reconciled result: any position still open at series end is force-closed at
// the final close so the ledger always balances against the equity curve.
//
// The equity curve has len(series)+1 entries, seeded with capital0. Exactly
// one position may be open at any time; trades never overlap.
func (e *Engine) Run(series []model.Candle, ind indicator.Set, cfg model.StrategyConfig, capital0 float64) (*model.BacktestResult, error) {
	started := time.Now()

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		e.countRun(cfg, "error")
		return nil, err
	}
	if capital0 <= 0 || math.IsNaN(capital0) || math.IsInf(capital0, 0) {
		e.countRun(cfg, "error")
		return nil, &model.InvalidConfigError{Field: "initial_capital", Reason: "must be a finite positive number"}
	}
	if err := model.ValidateSeries(series); err != nil {
		e.countRun(cfg, "error")
		return nil, err
	}
	if len(series) == 0 {
		e.countRun(cfg, "error")
		return nil, &model.InsufficientDataError{Op: "backtest", Need: 1, Have: 0}
	}

	strat, err := newStrategy(cfg, series, ind)
	if err != nil {
		e.countRun(cfg, "error")
		return nil, err
	}

	st := &simState{
		cfg:      cfg,
		capital:  capital0,
		equity:   make(model.EquityCurve, 1, len(series)+1),
		dayStart: capital0,
		day:      dayOf(series[0].Timestamp),
	}
	st.equity[0] = capital0

	for i := range series {
		c := &series[i]
		e.rollDay(st, c.Timestamp)

		// Exits are always evaluated before entries so a position closed this
		// step cannot be immediately reopened against the same signal.
		if st.pos.Open() {
			if price, reason, ok := e.checkExit(st, strat, series, i); ok {
				e.closePosition(st, price, c.Timestamp, reason)
			}
		}
		if !st.pos.Open() && !st.halted {
			if side := strat.EntrySide(i); side != model.SideFlat {
				if side == model.SideShort && !cfg.AllowShort {
					side = model.SideFlat
				}
				if side != model.SideFlat {
					e.openPosition(st, side, c.Close, c.Timestamp, i)
				}
			}
		}

		eq := st.capital + st.pos.MarkToMarket(c.Close)
		st.equity = append(st.equity, eq)
		e.checkDailyLoss(st, strat, series, i, eq)
		if e.hooks.OnStep != nil {
			e.hooks.OnStep(i, eq)
		}
	}

	// Termination: force-close any open position at the final close.
	if st.pos.Open() {
		last := &series[len(series)-1]
		e.closePosition(st, last.Close, last.Timestamp, "end of series")
		st.equity[len(st.equity)-1] = st.capital
	}

	result := &model.BacktestResult{
		Config:  cfg,
		Equity:  st.equity,
		Trades:  st.trades,
		Summary: summarize(st.trades, capital0, st.capital),
	}

	e.countRun(cfg, "ok")
	if e.metrics != nil {
		e.metrics.BacktestDur.Observe(time.Since(started).Seconds())
		e.metrics.TradesSimulated.Add(float64(len(st.trades)))
	}
	log.Printf("[backtest] %s: %d candles, %d trades, return %.4f",
		strat.Name(), len(series), len(st.trades), result.Summary.TotalReturn)

	return result, nil
}

func (e *Engine) countRun(cfg model.StrategyConfig, outcome string) {
	if e.metrics != nil {
		e.metrics.BacktestsTotal.WithLabelValues(string(cfg.Strategy), outcome).Inc()
	}
}

func dayOf(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rollDay resets the daily-loss baseline when the calendar day changes.
func (e *Engine) rollDay(st *simState, ts time.Time) {
	day := dayOf(ts)
	if !day.Equal(st.day) {
		st.day = day
		st.dayStart = st.equity[len(st.equity)-1]
		st.halted = false
	}
}

// checkExit evaluates the exit conditions in their fixed order: stop-loss and
// take-profit intrabar against the candle range, then the strategy's explicit
// exit signal once the minimum holding period has elapsed. The holding-period
// guard suppresses only strategy signals — protective stops always fire.
func (e *Engine) checkExit(st *simState, strat Strategy, series []model.Candle, i int) (price float64, reason string, ok bool) {
	c := &series[i]
	cfg := &st.cfg
	pos := &st.pos

	stopHit, stopPrice := stopTriggered(pos, c, cfg.StopLossPct)
	takeHit, takePrice := takeTriggered(pos, c, cfg.TakeProfitPct)

	if stopHit && takeHit {
		// Gapping candle pierced both levels; the configured policy decides.
		if cfg.StopTakeTieBreak == model.TieBreakTakeProfit {
			return takePrice, "take profit", true
		}
		return stopPrice, "stop loss", true
	}
	if stopHit {
		return stopPrice, "stop loss", true
	}
	if takeHit {
		return takePrice, "take profit", true
	}

	if i-pos.EntryStep >= cfg.MinHoldingPeriod {
		if exit, why := strat.ExitSignal(i, pos.Side); exit {
			return c.Close, why, true
		}
	}
	return 0, "", false
}

// stopTriggered reports whether the stop-loss level was touched inside the
// candle, and the fill price. A gap through the level fills at the open.
func stopTriggered(pos *model.Position, c *model.Candle, stopPct float64) (bool, float64) {
	if stopPct <= 0 {
		return false, 0
	}
	switch pos.Side {
	case model.SideLong:
		level := pos.EntryPrice * (1 - stopPct)
		if c.Low <= level {
			return true, math.Min(level, c.Open)
		}
	case model.SideShort:
		level := pos.EntryPrice * (1 + stopPct)
		if c.High >= level {
			return true, math.Max(level, c.Open)
		}
	}
	return false, 0
}

// takeTriggered mirrors stopTriggered for the take-profit level. A favorable
// gap fills at the open.
func takeTriggered(pos *model.Position, c *model.Candle, takePct float64) (bool, float64) {
	if takePct <= 0 {
		return false, 0
	}
	switch pos.Side {
	case model.SideLong:
		level := pos.EntryPrice * (1 + takePct)
		if c.High >= level {
			return true, math.Max(level, c.Open)
		}
	case model.SideShort:
		level := pos.EntryPrice * (1 - takePct)
		if c.Low <= level {
			return true, math.Min(level, c.Open)
		}
	}
	return false, 0
}

// checkDailyLoss force-closes and halts entries for the rest of the day when
// equity has fallen past max_daily_loss from the day's starting equity.
func (e *Engine) checkDailyLoss(st *simState, strat Strategy, series []model.Candle, i int, eq float64) {
	cfg := &st.cfg
	if cfg.MaxDailyLoss <= 0 || st.halted || st.dayStart <= 0 {
		return
	}
	dd := (st.dayStart - eq) / st.dayStart
	if dd < cfg.MaxDailyLoss {
		return
	}

	c := &series[i]
	if st.pos.Open() {
		e.closePosition(st, c.Close, c.Timestamp, "max daily loss")
		st.equity[len(st.equity)-1] = st.capital
	}
	st.halted = true
	log.Printf("[backtest] %s: max daily loss %.4f reached on %s, trading halted for the day",
		strat.Name(), dd, st.day.Format("2006-01-02"))
	if e.hooks.OnDailyHalt != nil {
		e.hooks.OnDailyHalt(st.day, dd)
	}
}

// openPosition sizes the position at max_position_size × equity / price and
// deducts the entry commission from cash.
func (e *Engine) openPosition(st *simState, side model.Side, price float64, ts time.Time, step int) {
	size := st.cfg.MaxPositionSize * st.capital / price
	if size <= 0 {
		return
	}
	st.capital -= st.cfg.Commission * price * size
	st.pos = model.Position{
		Side:       side,
		EntryPrice: price,
		EntryTime:  ts,
		EntryStep:  step,
		Size:       size,
	}
}

// closePosition realizes the trade, updates cash, and appends to the ledger.
func (e *Engine) closePosition(st *simState, price float64, ts time.Time, reason string) {
	pos := &st.pos
	gross := pos.MarkToMarket(price)
	entryCommission := st.cfg.Commission * pos.EntryPrice * pos.Size
	exitCommission := st.cfg.Commission * price * pos.Size
	st.capital += gross - exitCommission

	profit := gross - entryCommission - exitCommission
	notional := pos.EntryPrice * pos.Size
	profitPct := 0.0
	if notional > 0 {
		profitPct = profit / notional * 100
	}

	trade := model.Trade{
		EntryTime:  pos.EntryTime,
		ExitTime:   ts,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Size:       pos.Size,
		Profit:     profit,
		ProfitPct:  profitPct,
		ExitReason: reason,
	}
	st.trades = append(st.trades, trade)
	st.pos = model.Position{Side: model.SideFlat}

	if e.hooks.OnTrade != nil {
		e.hooks.OnTrade(trade)
	}
}

// summarize derives the scalar summary from the ledger. Sentinels: zero
// trades give win rate, profit factor, and total return of 0; zero losing
// trades with at least one winner give profit factor +Inf.
func summarize(trades []model.Trade, capital0, final float64) model.Summary {
	s := model.Summary{
		TotalTrades: len(trades),
		FinalEquity: final,
		TotalReturn: (final - capital0) / capital0,
	}
	if len(trades) == 0 {
		return s
	}

	var grossProfit, grossLoss float64
	for i := range trades {
		switch {
		case trades[i].Profit > 0:
			s.WinningTrades++
			grossProfit += trades[i].Profit
		case trades[i].Profit < 0:
			s.LosingTrades++
			grossLoss += -trades[i].Profit
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = 0
	}
	return s
}
