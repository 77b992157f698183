package backtesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/strategy"
)

// DefaultReplayConfig returns the batch defaults: the live parameters plus
// lunch avoidance and forced square-off at the session end.
func DefaultReplayConfig(symbol string, loc *time.Location) strategy.Config {
	cfg := strategy.DefaultConfig(symbol, loc)
	cfg.Window.AvoidLunch = true
	cfg.Breakout.ForcedSquareOff = true
	return cfg
}

// ReplayResult holds the outcome of a replay
type ReplayResult struct {
	Trades       []*domain.Trade
	Signals      []*domain.Signal
	OpenPosition *domain.Position // still open when the data ran out
	Candles      int              // candles evaluated
	Skipped      int              // duplicate or foreign candles that were dropped
}

// Replay drives one engine over a recorded candle table and pairs the emitted
// signals into closed trades. The input is sorted by open time; it is not
// modified.
func Replay(ctx context.Context, cfg strategy.Config, candles []*domain.Candle, logger ports.Logger) (*ReplayResult, error) {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	engine, err := strategy.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	sorted := make([]*domain.Candle, 0, len(candles))
	for _, c := range candles {
		if c != nil {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })

	result := &ReplayResult{}
	var pending *domain.Signal

	for _, c := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
		}
		if c.Symbol != "" && c.Symbol != cfg.Symbol {
			result.Skipped++
			continue
		}

		sig, err := engine.OnCandle(ctx, c)
		if err != nil {
			if errors.Is(err, ports.ErrStaleCandle) {
				result.Skipped++
				logger.Warn(ctx, "Skipping duplicate candle", map[string]interface{}{
					"symbol":   cfg.Symbol,
					"openTime": c.OpenTime,
				})
				continue
			}
			return nil, err
		}
		result.Candles++
		if sig == nil {
			continue
		}

		result.Signals = append(result.Signals, sig)
		if sig.IsEntry() {
			pending = sig
			continue
		}
		if pending == nil {
			return nil, fmt.Errorf("exit signal at %s without a matching entry", sig.Time.Format(time.RFC3339))
		}
		result.Trades = append(result.Trades, NewTrade(pending, sig))
		pending = nil
	}

	result.OpenPosition = engine.Snapshot().Position
	return result, nil
}

// NewTrade pairs an entry signal with the exit that closed it.
func NewTrade(entry, exit *domain.Signal) *domain.Trade {
	return &domain.Trade{
		Symbol:     entry.Symbol,
		Side:       entry.Side,
		EntryTime:  entry.Time,
		ExitTime:   exit.Time,
		EntryPrice: entry.EntryPrice,
		ExitPrice:  exit.ExitPrice,
		StopLoss:   entry.StopLoss,
		TakeProfit: entry.TakeProfit,
		Reason:     exit.Reason,
		PNL:        calculatePNL(entry.Side, entry.EntryPrice, exit.ExitPrice),
	}
}

// calculatePNL returns the price points captured by a round trip
func calculatePNL(side domain.Side, entry, exit float64) float64 {
	if side == domain.Short {
		return entry - exit
	}
	return exit - entry
}
