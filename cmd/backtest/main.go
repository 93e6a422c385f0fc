// cmd/backtest runs a single strategy simulation from the command line:
// candles come from SQLite when stored, synthetic generation otherwise, and
// the result summary plus risk metrics print to stdout.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=ACME --strategy=momentum --candles=252 --capital=10000
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"quantlab/internal/backtest"
	"quantlab/internal/indicator"
	"quantlab/internal/marketdata"
	"quantlab/internal/model"
	"quantlab/internal/risk"
	sqlitestore "quantlab/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbol := flag.String("symbol", "ACME", "Instrument symbol")
	strategy := flag.String("strategy", "momentum", "Strategy: momentum, mean_reversion, breakout")
	count := flag.Int("candles", 252, "Number of daily candles to simulate over")
	capital := flag.Float64("capital", 10000, "Initial capital")
	entry := flag.Float64("entry", 0.02, "Entry threshold (fraction)")
	exit := flag.Float64("exit", 0.01, "Exit threshold (fraction)")
	stopLoss := flag.Float64("stop-loss", 0, "Stop-loss fraction (0=off)")
	takeProfit := flag.Float64("take-profit", 0, "Take-profit fraction (0=off)")
	allowShort := flag.Bool("short", false, "Allow short positions")
	commission := flag.Float64("commission", 0, "Per-side commission rate")
	indicators := flag.String("indicators", "", "Extra indicators to pre-compute, e.g. sma_20,rsi_14")
	dbPath := flag.String("db", "data/quantlab.db", "Path to SQLite database")
	flag.Parse()

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Printf("[backtest] sqlite open failed: %v (generating without persistence)", err)
		reader = nil
	} else {
		defer reader.Close()
	}

	md := marketdata.NewService(reader, nil)
	candles, err := md.Series(*symbol, 24*time.Hour, *count)
	if err != nil {
		log.Fatalf("[backtest] load candles: %v", err)
	}

	cfg := model.StrategyConfig{
		Strategy:       model.StrategyKind(*strategy),
		EntryThreshold: *entry,
		ExitThreshold:  *exit,
		StopLossPct:    *stopLoss,
		TakeProfitPct:  *takeProfit,
		AllowShort:     *allowShort,
		Commission:     *commission,
	}
	cfg.Normalize()

	ind := make(indicator.Set)
	if *indicators != "" {
		cache := indicator.NewCache(nil)
		for _, name := range strings.Split(*indicators, ",") {
			spec, err := indicator.ParseSpec(name)
			if err != nil {
				log.Fatalf("[backtest] %v", err)
			}
			out, err := cache.Compute(candles, spec)
			if err != nil {
				log.Fatalf("[backtest] %v", err)
			}
			ind.Add(out...)
		}
	}

	engine := backtest.New(nil)
	result, err := engine.Run(candles, ind, cfg, *capital)
	if err != nil {
		log.Fatalf("[backtest] run failed: %v", err)
	}

	metrics, err := risk.Reduce(result.Equity, result.Trades, risk.Options{})
	if err != nil {
		log.Fatalf("[backtest] risk reduction failed: %v", err)
	}

	s := result.Summary
	fmt.Println()
	fmt.Printf("%s on %s, %d candles\n", cfg.Strategy, *symbol, len(candles))
	fmt.Printf("  trades:        %d (%d won, %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Printf("  total return:  %.2f%%\n", s.TotalReturn*100)
	fmt.Printf("  win rate:      %.1f%%\n", s.WinRate*100)
	fmt.Printf("  profit factor: %.3f\n", s.ProfitFactor)
	fmt.Printf("  final equity:  %.2f\n", s.FinalEquity)
	fmt.Println()
	fmt.Printf("  volatility:    %.4f\n", metrics.Volatility)
	fmt.Printf("  sharpe:        %.3f\n", metrics.Sharpe)
	fmt.Printf("  sortino:       %.3f\n", metrics.Sortino)
	fmt.Printf("  max drawdown:  %.2f%%\n", metrics.MaxDrawdown*100)
	fmt.Printf("  VaR 95:        %.4f\n", metrics.VaR95)
	fmt.Printf("  CVaR 95:       %.4f\n", metrics.CVaR95)
	fmt.Printf("  calmar:        %.3f\n", metrics.Calmar)

	for i, tr := range result.Trades {
		if i >= 10 {
			fmt.Printf("  ... %d more trades\n", len(result.Trades)-10)
			break
		}
		fmt.Printf("  #%d %s %s -> %s  entry %.2f exit %.2f  pnl %.2f (%s)\n",
			i+1, tr.Side,
			tr.EntryTime.Format("2006-01-02"), tr.ExitTime.Format("2006-01-02"),
			tr.EntryPrice, tr.ExitPrice, tr.Profit, tr.ExitReason)
	}
}
