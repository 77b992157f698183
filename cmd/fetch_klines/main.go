package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"breakoutBot/config"
	"breakoutBot/internal/adapters/binanceclient"
	"breakoutBot/internal/adapters/logger"
	"breakoutBot/internal/adapters/sqlite"
	"breakoutBot/internal/app"
	"breakoutBot/internal/utils"
)

func main() {
	days := flag.Int("days", 0, "working days of history to fetch (defaults to HISTORY_DAYS)")
	toDB := flag.Bool("db", true, "store candles in the candle store")
	csvDir := flag.String("csv", "", "directory to also write one CSV per symbol into")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if *days <= 0 {
		*days = cfg.HistoryDays
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.APIKey,
		SecretKey:            cfg.SecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	var repo *sqlite.Repository
	if *toDB {
		repo, err = sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger, Location: cfg.Location})
		if err != nil {
			log.Fatalf("FATAL: Failed to open candle store: %v", err)
		}
		defer repo.Close()
	}

	interval := cfg.IntervalLabel()
	end := time.Now().In(cfg.Location)
	start := app.HistoryStart(end, *days, cfg.Location)

	for _, symbol := range cfg.Symbols {
		fmt.Printf("Fetching %s %s candles from %s to %s...\n", symbol, interval, start.Format(time.DateTime), end.Format(time.DateTime))
		candles, err := binanceClient.GetCandlesRange(ctx, symbol, interval, start, end)
		if err != nil {
			appLogger.Error(ctx, err, "Error fetching candles", map[string]interface{}{"symbol": symbol})
			continue
		}
		appLogger.Info(ctx, "Fetched candles", map[string]interface{}{"symbol": symbol, "count": len(candles)})

		if repo != nil {
			if err := repo.PutCandles(ctx, candles); err != nil {
				appLogger.Error(ctx, err, "Error storing candles", map[string]interface{}{"symbol": symbol})
			}
		}
		if *csvDir != "" {
			filename := fmt.Sprintf("%s/%s_%s_%s_to_%s.csv", *csvDir, symbol, interval, start.Format("20060102"), end.Format("20060102"))
			if err := utils.WriteCandlesToCSV(candles, filename); err != nil {
				appLogger.Error(ctx, err, "Error writing CSV", map[string]interface{}{"symbol": symbol})
				continue
			}
			appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
		}
	}

	if repo != nil {
		if stats, err := repo.Stats(ctx); err == nil {
			appLogger.Info(ctx, "Candle store updated", map[string]interface{}{
				"candles": stats.TotalCandles, "symbols": stats.TotalSymbols, "from": stats.FirstDate, "to": stats.LastDate,
			})
		}
	}
}
