// Package notification delivers simulation alerts to external channels:
// backtest completions, risk-limit breaches, daily-loss halts. Delivery is
// best-effort; a failed send never fails the run that produced it.
package notification

import (
	"context"
	"fmt"
	"log"

	"quantlab/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent. Fields carries structured
// context the backend may render or forward verbatim.
type Alert struct {
	Level   AlertLevel             `json:"level"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans one alert out to several backends. Send returns the first error
// but still attempts every backend.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BacktestCompleted builds the completion alert for a finished run.
func BacktestCompleted(id string, result *model.BacktestResult) Alert {
	return Alert{
		Level: AlertInfo,
		Title: "Backtest completed",
		Message: fmt.Sprintf("%s: %d trades, return %.2f%%, win rate %.1f%%",
			result.Config.Strategy,
			result.Summary.TotalTrades,
			result.Summary.TotalReturn*100,
			result.Summary.WinRate*100),
		Fields: map[string]interface{}{
			"run_id":       id,
			"strategy":     result.Config.Strategy,
			"total_trades": result.Summary.TotalTrades,
			"total_return": result.Summary.TotalReturn,
		},
	}
}

// DailyLossHalt builds the alert raised when the daily-loss limit trips.
func DailyLossHalt(day string, drawdown float64) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   "Daily loss limit reached",
		Message: fmt.Sprintf("trading halted for %s after a %.2f%% intraday drawdown", day, drawdown*100),
		Fields: map[string]interface{}{
			"day":      day,
			"drawdown": drawdown,
		},
	}
}

// RiskLimitBreached builds the alert for a risk metric crossing its bound.
func RiskLimitBreached(metric string, value, limit float64) Alert {
	return Alert{
		Level:   AlertCritical,
		Title:   "Risk limit breached",
		Message: fmt.Sprintf("%s %.4f exceeds limit %.4f", metric, value, limit),
		Fields: map[string]interface{}{
			"metric": metric,
			"value":  value,
			"limit":  limit,
		},
	}
}
