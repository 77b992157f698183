package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/strategy/analytics"
	"breakoutBot/internal/utils"
)

func main() {
	dir := flag.String("dir", "data", "directory holding trade log CSVs")
	prefix := flag.String("prefix", "trades", "file name prefix of the trade logs")
	capital := flag.Float64("capital", 1000, "capital base for return and drawdown")
	flag.Parse()

	// Find all backtest trade files
	files, err := findTradeFiles(*dir, *prefix)
	if err != nil {
		log.Fatalf("Error finding trade files: %v", err)
	}

	if len(files) == 0 {
		log.Println("No trade files found. Run the backtest runner with -out first.")
		return
	}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "File\tTrades\tWinRate\tAvgWin\tAvgLoss\tTotalPnL\tPF\tMaxDD%\tExpectancy\t")

	logs := make(map[string][]*domain.Trade, len(files))
	for _, file := range files {
		trades, err := utils.ReadTradesFromCSV(file)
		if err != nil {
			log.Printf("Error reading trades from %s: %v", file, err)
			continue
		}
		logs[file] = trades

		m := analytics.AnalyzePerformance(trades, *capital)
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			filepath.Base(file),
			m.TotalTrades,
			m.WinRate*100,
			m.AverageWin,
			m.AverageLoss,
			m.TotalProfit,
			m.ProfitFactor,
			m.MaxDrawdown*100,
			m.Expectancy,
		)
	}
	w.Flush()

	fmt.Println("\n## Exit Analysis")
	for _, file := range files {
		if trades, ok := logs[file]; ok {
			printExitBreakdown(file, trades)
		}
	}
}

// findTradeFiles lists the trade log CSVs in dir, sorted by name
func findTradeFiles(dir, prefix string) ([]string, error) {
	var files []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".csv") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// printExitBreakdown prints trade counts and PnL per exit reason and side
func printExitBreakdown(file string, trades []*domain.Trade) {
	reasonCounts := make(map[domain.ExitReason]int)
	reasonPnL := make(map[domain.ExitReason]float64)
	sideCounts := make(map[domain.Side]int)
	sidePnL := make(map[domain.Side]float64)

	for _, trade := range trades {
		reasonCounts[trade.Reason]++
		reasonPnL[trade.Reason] += trade.PNL
		sideCounts[trade.Side]++
		sidePnL[trade.Side] += trade.PNL
	}

	fmt.Printf("\nFile: %s\n", filepath.Base(file))
	fmt.Println("Exit Reason\tCount\tTotal PnL\tAvg PnL")

	var reasons []domain.ExitReason
	for reason := range reasonCounts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		return string(reasons[i]) < string(reasons[j])
	})
	for _, reason := range reasons {
		count := reasonCounts[reason]
		fmt.Printf("%s\t%d\t%.2f\t%.2f\n", reason, count, reasonPnL[reason], reasonPnL[reason]/float64(count))
	}

	for _, side := range []domain.Side{domain.Long, domain.Short} {
		if n := sideCounts[side]; n > 0 {
			fmt.Printf("%s: %d trades, PnL: %.2f, Avg: %.2f\n", side, n, sidePnL[side], sidePnL[side]/float64(n))
		}
	}
}
