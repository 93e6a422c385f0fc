package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quantlab/internal/model"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	alert := Alert{
		Level:   AlertWarning,
		Title:   "Daily loss limit reached",
		Message: "halted",
		Fields:  map[string]interface{}{"drawdown": 0.05},
	}
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}

	if received["level"] != "WARNING" {
		t.Errorf("level: got %v", received["level"])
	}
	if received["drawdown"] != 0.05 {
		t.Errorf("fields should be flattened into the payload, got %v", received["drawdown"])
	}
}

func TestWebhookNotifier_SendRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Send(ctx context.Context, alert Alert) error {
	s.calls++
	return s.err
}

func TestMulti_AttemptsEveryBackend(t *testing.T) {
	a := &stubNotifier{err: errors.New("down")}
	b := &stubNotifier{}
	err := Multi{a, b}.Send(context.Background(), Alert{Title: "x"})

	if err == nil {
		t.Error("expected first backend's error")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("every backend should be attempted: a=%d b=%d", a.calls, b.calls)
	}
}

func TestBacktestCompletedAlert(t *testing.T) {
	res := &model.BacktestResult{
		Config: model.StrategyConfig{Strategy: model.StrategyMomentum},
		Summary: model.Summary{
			TotalTrades: 3,
			TotalReturn: 0.12,
			WinRate:     2.0 / 3.0,
		},
	}
	alert := BacktestCompleted("run-1", res)
	if alert.Level != AlertInfo {
		t.Errorf("level: got %s", alert.Level)
	}
	if alert.Fields["run_id"] != "run-1" {
		t.Errorf("run_id: got %v", alert.Fields["run_id"])
	}
	if alert.Fields["total_trades"] != 3 {
		t.Errorf("total_trades: got %v", alert.Fields["total_trades"])
	}
}
