package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"breakoutBot/config"
	"breakoutBot/internal/adapters/logger"
	"breakoutBot/internal/adapters/sqlite"
	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/strategy/analytics"
	"breakoutBot/internal/strategy/backtesting"
	"breakoutBot/internal/strategy/optimization"
	"breakoutBot/internal/utils"
)

func main() {
	csvPath := flag.String("csv", "", "candle CSV to replay (takes precedence over -db)")
	dbPath := flag.String("db", "", "candle store to replay from (defaults to DB_PATH)")
	symbol := flag.String("symbol", "", "symbol to replay (defaults to the first configured symbol)")
	from := flag.String("from", "", "first trading date to load from the store, YYYY-MM-DD")
	to := flag.String("to", "", "last trading date to load from the store, YYYY-MM-DD")
	out := flag.String("out", "", "trade log CSV to write")
	capital := flag.Float64("capital", 1000, "capital base for return and drawdown")
	optimize := flag.Bool("optimize", false, "grid search the breakout parameters")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	if *symbol == "" {
		*symbol = cfg.Symbols[0]
	}
	replayCfg := cfg.ReplayConfig(*symbol)

	// 2. Load candles
	candles, err := loadCandles(ctx, cfg, appLogger, *csvPath, *dbPath, *symbol, *from, *to)
	if err != nil {
		log.Fatalf("FATAL: Failed to load candles: %v", err)
	}
	appLogger.Info(ctx, "Loaded candles", map[string]interface{}{"symbol": *symbol, "count": len(candles)})
	if len(candles) == 0 {
		log.Println("No candles to replay.")
		return
	}

	// 3. Replay
	result, err := backtesting.Replay(ctx, replayCfg, candles, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Replay failed: %v", err)
	}
	metrics := analytics.AnalyzePerformance(result.Trades, *capital)
	printMetrics(*symbol, result, metrics)

	if *out != "" {
		if err := utils.WriteTradesToCSV(result.Trades, *out); err != nil {
			appLogger.Error(ctx, err, "Error writing trades CSV")
		} else {
			appLogger.Info(ctx, "Trades saved to", map[string]interface{}{"filename": *out})
		}
	}

	if !*optimize {
		return
	}

	// 4. Parameter search
	optimizer := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: []optimization.ParameterRange{
			{Name: optimization.ParamVolMultiplier, Min: 1.2, Max: 2.4, Step: 0.3},
			{Name: optimization.ParamRiskReward, Min: 1.0, Max: 2.5, Step: 0.5},
			{Name: optimization.ParamVWAPDistance, Min: 0.2, Max: 0.6, Step: 0.2},
		},
		Base:    replayCfg,
		Capital: *capital,
		Workers: 4,
	})
	start := time.Now()
	results, err := optimizer.Optimize(ctx, candles)
	if err != nil {
		log.Fatalf("FATAL: Optimization failed: %v", err)
	}
	appLogger.Info(ctx, "Optimization finished", map[string]interface{}{"combinations": len(results), "took": time.Since(start).String()})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nRank\tVolMult\tRR\tVWAP%\tTrades\tWinRate\tPnL\tScore\t")
	for i, r := range results {
		if i == 10 {
			break
		}
		fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%d\t%.1f%%\t%.2f\t%.3f\t\n",
			i+1,
			r.Parameters[optimization.ParamVolMultiplier],
			r.Parameters[optimization.ParamRiskReward],
			r.Parameters[optimization.ParamVWAPDistance],
			r.Metrics.TotalTrades,
			r.Metrics.WinRate*100,
			r.Metrics.TotalProfit,
			r.Score,
		)
	}
	w.Flush()
}

// loadCandles reads the candle table from a CSV when one is given, otherwise
// from the candle store.
func loadCandles(ctx context.Context, cfg *config.Config, l ports.Logger, csvPath, dbPath, symbol, from, to string) ([]*domain.Candle, error) {
	if csvPath != "" {
		return utils.ReadCandlesFromCSV(csvPath, cfg.Location)
	}

	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.ParseInLocation("2006-01-02", from, cfg.Location); err != nil {
			return nil, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if to != "" {
		if end, err = time.ParseInLocation("2006-01-02", to, cfg.Location); err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: l, Location: cfg.Location})
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.GetRange(ctx, symbol, cfg.IntervalLabel(), start, end)
}

func printMetrics(symbol string, result *backtesting.ReplayResult, m *analytics.PerformanceMetrics) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Symbol\t%s\n", symbol)
	fmt.Fprintf(w, "Candles\t%d (skipped %d)\n", result.Candles, result.Skipped)
	fmt.Fprintf(w, "Signals\t%d\n", len(result.Signals))
	fmt.Fprintf(w, "Trades\t%d (long %d, short %d)\n", m.TotalTrades, m.LongTrades, m.ShortTrades)
	fmt.Fprintf(w, "Win rate\t%.1f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Total PnL\t%.2f\n", m.TotalProfit)
	fmt.Fprintf(w, "Profit factor\t%.2f\n", m.ProfitFactor)
	fmt.Fprintf(w, "Avg win / loss\t%.2f / %.2f\n", m.AverageWin, m.AverageLoss)
	fmt.Fprintf(w, "Max drawdown\t%.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe\t%.2f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Expectancy\t%.2f\n", m.Expectancy)
	for reason, n := range m.ExitReasons {
		fmt.Fprintf(w, "Exit %s\t%d\n", reason, n)
	}
	if result.OpenPosition != nil {
		fmt.Fprintf(w, "Open position\t%s from %.2f\n", result.OpenPosition.Side, result.OpenPosition.EntryPrice)
	}
	w.Flush()
}
