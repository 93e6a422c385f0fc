package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"quantlab/config"
	"quantlab/internal/api"
	"quantlab/internal/backtest"
	"quantlab/internal/gateway"
	"quantlab/internal/indicator"
	"quantlab/internal/logger"
	"quantlab/internal/marketdata"
	"quantlab/internal/metrics"
	"quantlab/internal/notification"
	redisstore "quantlab/internal/store/redis"
	sqlitestore "quantlab/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[server] starting...")

	cfg := config.Load()
	slogger := logger.Init("quantlab", slog.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics ----
	prom := metrics.New()
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			log.Printf("[server] metrics server error: %v", err)
		}
	}()

	// ---- SQLite (candles + run ledger) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[server] sqlite init failed: %v", err)
	}
	defer writer.Close()
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[server] sqlite reader init failed: %v", err)
	}
	defer reader.Close()

	// ---- Redis result cache (optional) ----
	var results *redisstore.Cache
	if cfg.RedisEnabled {
		results, err = redisstore.NewCache(redisstore.CacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      cfg.ResultCacheTTL,
		}, prom)
		if err != nil {
			log.Printf("[server] WARNING: redis init failed: %v (continuing without result cache)", err)
			results = nil
		} else {
			defer results.Close()
		}
	}

	// ---- Notifications ----
	var notifiers notification.Multi
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	var notifier notification.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	} else {
		notifier = notification.NewLogNotifier()
	}

	// ---- Core ----
	hub := gateway.NewHub(prom)
	server := api.NewServer(api.Deps{
		Config:   cfg,
		Market:   marketdata.NewService(reader, writer),
		IndCache: indicator.NewCache(prom),
		Engine:   backtest.New(prom),
		Results:  results,
		Writer:   writer,
		Reader:   reader,
		Hub:      hub,
		Notifier: notifier,
		Metrics:  prom,
		Log:      slogger,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}
	go func() {
		log.Printf("[server] listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] http server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[server] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] http shutdown: %v", err)
	}

	log.Println("[server] shutdown complete.")
}
