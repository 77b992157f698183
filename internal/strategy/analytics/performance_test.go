package analytics

import (
	"math"
	"testing"
	"time"

	"breakoutBot/internal/domain"
)

var day = time.Date(2025, 12, 5, 9, 15, 0, 0, time.UTC)

func trade(side domain.Side, entryOffset, exitOffset time.Duration, pnl float64, reason domain.ExitReason) *domain.Trade {
	return &domain.Trade{
		Symbol:    "INFY",
		Side:      side,
		EntryTime: day.Add(entryOffset),
		ExitTime:  day.Add(exitOffset),
		PNL:       pnl,
		Reason:    reason,
	}
}

func TestAnalyzePerformance(t *testing.T) {
	capital := 1000.0
	trades := []*domain.Trade{
		trade(domain.Short, 2*time.Hour, 3*time.Hour, -10, domain.ExitStopLoss),
		trade(domain.Long, 0, time.Hour, 20, domain.ExitTakeProfit),
	}

	metrics := AnalyzePerformance(trades, capital)

	if metrics.TotalTrades != 2 {
		t.Errorf("Expected 2 total trades, got %d", metrics.TotalTrades)
	}
	if metrics.WinningTrades != 1 || metrics.LosingTrades != 1 {
		t.Errorf("Expected 1 win and 1 loss, got %d/%d", metrics.WinningTrades, metrics.LosingTrades)
	}
	if metrics.WinRate != 0.5 {
		t.Errorf("Expected 0.5 win rate, got %f", metrics.WinRate)
	}
	if metrics.TotalProfit != 10 {
		t.Errorf("Expected 10 total profit, got %f", metrics.TotalProfit)
	}
	if metrics.FinalBalance != 1010 {
		t.Errorf("Expected final balance of 1010, got %f", metrics.FinalBalance)
	}
	if metrics.ProfitFactor != 2 {
		t.Errorf("Expected 2.0 profit factor, got %f", metrics.ProfitFactor)
	}
	if metrics.AverageWin != 20 || metrics.AverageLoss != -10 {
		t.Errorf("Expected average win 20 and loss -10, got %f/%f", metrics.AverageWin, metrics.AverageLoss)
	}
	if metrics.RiskRewardRatio != 2 {
		t.Errorf("Expected 2.0 risk reward ratio, got %f", metrics.RiskRewardRatio)
	}
	if metrics.Expectancy != 5 {
		t.Errorf("Expected expectancy 5, got %f", metrics.Expectancy)
	}
	if metrics.LongTrades != 1 || metrics.ShortTrades != 1 || metrics.LongPNL != 20 || metrics.ShortPNL != -10 {
		t.Errorf("Unexpected side breakdown: %+v", metrics)
	}
	if metrics.ExitReasons[domain.ExitTakeProfit] != 1 || metrics.ExitReasons[domain.ExitStopLoss] != 1 {
		t.Errorf("Unexpected exit reasons: %v", metrics.ExitReasons)
	}
	if metrics.AverageTradeDuration != time.Hour {
		t.Errorf("Expected 1h average duration, got %s", metrics.AverageTradeDuration)
	}
	if metrics.MaxConsecutiveWins != 1 || metrics.MaxConsecutiveLosses != 1 {
		t.Errorf("Unexpected streaks %d/%d", metrics.MaxConsecutiveWins, metrics.MaxConsecutiveLosses)
	}

	// Trades are processed in entry order: the win comes first.
	if len(metrics.EquityCurve) != 2 || metrics.EquityCurve[0].Value != 1020 {
		t.Errorf("Unexpected equity curve %+v", metrics.EquityCurve)
	}
	if trades[0].Side != domain.Short {
		t.Error("input slice must not be reordered")
	}

	daily := metrics.GetDailyReturns()
	if len(daily) != 1 || daily[0].Return != 10 {
		t.Errorf("Expected a single daily return of 10, got %+v", daily)
	}
}

func TestAnalyzePerformanceEmptyTrades(t *testing.T) {
	metrics := AnalyzePerformance([]*domain.Trade{}, 1000.0)
	if metrics.TotalTrades != 0 {
		t.Errorf("Expected 0 total trades, got %d", metrics.TotalTrades)
	}
	if metrics.FinalBalance != 1000.0 {
		t.Errorf("Expected final balance of 1000.0, got %f", metrics.FinalBalance)
	}
}

func TestAnalyzePerformanceDrawdown(t *testing.T) {
	trades := []*domain.Trade{
		trade(domain.Long, 0, time.Hour, 100, domain.ExitTakeProfit),
		trade(domain.Long, 2*time.Hour, 3*time.Hour, -220, domain.ExitStopLoss),
	}

	metrics := AnalyzePerformance(trades, 1000)

	if math.Abs(metrics.MaxDrawdown-0.2) > 1e-12 {
		t.Errorf("Expected 0.2 max drawdown, got %f", metrics.MaxDrawdown)
	}
	if len(metrics.Drawdowns) != 1 {
		t.Fatalf("Expected 1 drawdown period, got %d", len(metrics.Drawdowns))
	}
	if math.Abs(metrics.Drawdowns[0].Depth-0.2) > 1e-12 {
		t.Errorf("Expected 0.2 drawdown depth, got %f", metrics.Drawdowns[0].Depth)
	}
}

func TestAnalyzePerformanceConsecutiveTrades(t *testing.T) {
	trades := []*domain.Trade{
		trade(domain.Long, 0, time.Hour, 10, domain.ExitTakeProfit),
		trade(domain.Short, 2*time.Hour, 3*time.Hour, 10, domain.ExitForcedSquareOff),
	}

	metrics := AnalyzePerformance(trades, 1000)

	if metrics.MaxConsecutiveWins != 2 {
		t.Errorf("Expected 2 max consecutive wins, got %d", metrics.MaxConsecutiveWins)
	}
	if metrics.MaxConsecutiveLosses != 0 {
		t.Errorf("Expected 0 max consecutive losses, got %d", metrics.MaxConsecutiveLosses)
	}
	if metrics.WinRate != 1.0 {
		t.Errorf("Expected 1.0 win rate, got %f", metrics.WinRate)
	}
	if metrics.ProfitFactor != 0 {
		t.Errorf("Expected profit factor 0 without losses, got %f", metrics.ProfitFactor)
	}
}

func TestCalculateSharpeRatio(t *testing.T) {
	if got := calculateSharpeRatio([]float64{1}); got != 0 {
		t.Errorf("single return should give 0, got %f", got)
	}
	if got := calculateSharpeRatio([]float64{2, 2, 2}); got != 0 {
		t.Errorf("zero variance should give 0, got %f", got)
	}
	// mean 2, sample std 1
	if got := calculateSharpeRatio([]float64{1, 2, 3}); math.Abs(got-2) > 1e-12 {
		t.Errorf("expected 2, got %f", got)
	}
}
