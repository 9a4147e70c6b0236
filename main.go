package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"cryptobrain/config"
	"cryptobrain/internal/api"
	"cryptobrain/internal/engine"
	"cryptobrain/internal/events"
	"cryptobrain/internal/logging"
	"cryptobrain/internal/market"
	"cryptobrain/internal/notification"
	"cryptobrain/internal/persistence"
	"cryptobrain/internal/risk"
)

func main() {
	// Load .env if present; real env vars still win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Initialize notification manager
	var notifyManager *notification.Manager
	if cfg.NotificationConfig.Enabled {
		notifyManager = notification.NewManager(64, logger)

		if cfg.NotificationConfig.Telegram.Enabled {
			telegramNotifier := notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  cfg.NotificationConfig.Telegram.Enabled,
			})
			notifyManager.AddNotifier(telegramNotifier)
			logger.Info("Telegram notifications enabled")
		}

		notifyManager.Start()
		defer notifyManager.Stop()
	}

	// Initialize circuit breaker
	breaker := risk.NewBreaker(&risk.Config{
		Enabled:       true,
		DrawdownLimit: cfg.RiskConfig.DrawdownLimit,
	})
	logger.Info("Circuit breaker armed", "drawdown_limit", cfg.RiskConfig.DrawdownLimit)

	// Initialize market simulator
	sim := market.NewSimulator(market.Config{
		Symbol:      "BTC/USDT",
		SeedPrice:   cfg.EngineConfig.SeedPrice,
		PriceFloor:  cfg.EngineConfig.PriceFloor,
		HistorySize: cfg.EngineConfig.HistorySize,
		SeedLength:  60,
	}, rand.New(rand.NewSource(time.Now().UnixNano())))

	// Initialize the decision engine
	var notifier engine.Notifier
	if notifyManager != nil {
		notifier = notifyManager
	}
	eng := engine.New(engine.Config{
		TickInterval:   cfg.EngineConfig.TickInterval,
		FeeRate:        cfg.EngineConfig.FeeRate,
		MinCashToTrade: cfg.EngineConfig.MinCashToTrade,
		RiskLevel:      cfg.RiskConfig.RiskLevel,
	}, sim, breaker, eventBus, notifier, logger.WithComponent("engine"))

	// Restore persisted state and start the autosave loop
	var store *persistence.Store
	if cfg.PersistenceConfig.Enabled {
		zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		store = persistence.NewStore(cfg.PersistenceConfig.Path, zlog)
		if st, err := store.Load(); err != nil {
			logger.Info("No saved state, starting from seed", "reason", err.Error())
		} else {
			eng.Restore(st)
			logger.Info("State restored from snapshot", "path", cfg.PersistenceConfig.Path)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.Start(ctx)

	if store != nil {
		go store.AutoSave(ctx, cfg.PersistenceConfig.SaveInterval, eng.Snapshot)
	}

	// Start the API server
	server := api.NewServer(cfg.ServerConfig, cfg.BacktestConfig, eng, eventBus, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	eng.Stop()
	cancel()

	if store != nil {
		if err := store.Save(eng.Snapshot()); err != nil {
			logger.Error("Final snapshot failed", "error", err)
		}
	}

	logger.Info("Shutdown complete")
}
