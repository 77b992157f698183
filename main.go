package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"breakoutBot/config"
	"breakoutBot/internal/adapters/binanceclient"
	"breakoutBot/internal/adapters/kafka"
	"breakoutBot/internal/adapters/logger"
	"breakoutBot/internal/adapters/notify"
	"breakoutBot/internal/adapters/sqlite"
	"breakoutBot/internal/adapters/telegram"
	"breakoutBot/internal/app"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/strategy"
)

func main() {
	if err := run(); err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
}

// run wires the bot and blocks until shutdown. Deferred cleanup runs before
// it returns.
func run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogFormat, cfg.LogLevel.String())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if zl, ok := appLogger.(*logger.ZapLogger); ok {
		defer zl.Sync()
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath:   cfg.DBPath,
		Logger:   appLogger,
		Location: cfg.Location,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	if stats, err := repo.Stats(ctx); err == nil {
		appLogger.Info(ctx, "Candle store opened", map[string]interface{}{
			"candles": stats.TotalCandles, "symbols": stats.TotalSymbols, "from": stats.FirstDate, "to": stats.LastDate,
		})
	}

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.APIKey,
		SecretKey:            cfg.SecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Binance client: %w", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Warn(ctx, "Binance REST ping failed, continuing with the stream", map[string]interface{}{"error": err.Error()})
	}

	// 5. Initialize Notifiers
	notifiers := notify.Multi{notify.NewLogNotifier(appLogger)}
	if cfg.TelegramBotToken != "" {
		tg, err := telegram.New(telegram.Config{Token: cfg.TelegramBotToken, ChatIDs: cfg.TelegramChatIDs, Logger: appLogger})
		if err != nil {
			appLogger.Error(ctx, err, "Telegram notifier disabled")
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaSignalTopic, Logger: appLogger})
		if err != nil {
			return fmt.Errorf("failed to initialize Kafka publisher: %w", err)
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}

	// 6. Initialize Application Service
	strategies := make([]strategy.Config, 0, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		strategies = append(strategies, cfg.StrategyConfig(symbol))
	}
	var notifier ports.SignalNotifier = notifiers
	tradingService, err := app.NewTradingService(app.Config{
		Strategies:    strategies,
		HistoryDays:   cfg.HistoryDays,
		StoreKeepDays: cfg.DBKeepDays,
		LaneBuffer:    cfg.LaneBuffer,
		PersistBuffer: cfg.PersistBuffer,
	}, appLogger, binanceClient, repo, repo, notifier)
	if err != nil {
		return fmt.Errorf("failed to initialize trading service: %w", err)
	}
	tradingService.WithBackfill(binanceClient)

	// 7. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		return err
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
	return nil
}
