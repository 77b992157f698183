package strategies

import (
	"context"
	"errors"
	"fmt"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/risk"
)

// BreakoutConfig holds configuration for the previous-day high/low breakout strategy
type BreakoutConfig struct {
	VolMultiplier   float64 // volume must exceed VolAvg by this factor
	RiskReward      float64 // take-profit distance in multiples of the stop distance
	VWAPDistancePct float64 // minimum |close-vwap|/vwap in percent
	SLBufferPct     float64 // buffer applied to VWAP for the stop-loss, in percent
	ForcedSquareOff bool    // close open positions at the session end candle
	MinCandles      int     // reported by RequiredDataPoints
}

// DefaultBreakoutConfig returns the production parameters.
func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		VolMultiplier:   1.5,
		RiskReward:      1.6,
		VWAPDistancePct: 0.15,
		SLBufferPct:     0.08,
		MinCandles:      210,
	}
}

// Validate checks the strategy parameters.
func (c BreakoutConfig) Validate() error {
	var errs []error
	if c.VolMultiplier < 0 {
		errs = append(errs, fmt.Errorf("volume multiplier must not be negative, got %v", c.VolMultiplier))
	}
	if c.VWAPDistancePct < 0 {
		errs = append(errs, fmt.Errorf("vwap distance must not be negative, got %v", c.VWAPDistancePct))
	}
	if err := c.riskConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c BreakoutConfig) riskConfig() risk.RiskConfig {
	return risk.RiskConfig{RiskReward: c.RiskReward, SLBufferPct: c.SLBufferPct}
}

// Breakout trades closes across the previous day's high or low, confirmed by
// trend, volume and distance from VWAP. A symbol holds at most one position and
// enters each side at most once per trading date.
type Breakout struct {
	*BaseStrategy
	config BreakoutConfig
	risk   *risk.RiskManager
}

// NewBreakout creates the breakout strategy.
func NewBreakout(config BreakoutConfig, logger ports.Logger) (*Breakout, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid breakout config: %w", err)
	}
	return &Breakout{
		BaseStrategy: NewBaseStrategy(logger),
		config:       config,
		risk:         risk.NewRiskManager(config.riskConfig()),
	}, nil
}

// Name returns the name of the strategy
func (b *Breakout) Name() string {
	return "PDH_PDL_BREAKOUT"
}

// RequiredDataPoints returns the warm-up length of the trend filter.
func (b *Breakout) RequiredDataPoints() int {
	return b.config.MinCandles
}

// Config returns the strategy parameters.
func (b *Breakout) Config() BreakoutConfig {
	return b.config
}

// Evaluate applies, in order, forced square-off, the stop/target check and
// the entry check. An update that closes a position never opens one.
func (b *Breakout) Evaluate(ctx context.Context, st *State, in Input) *domain.Signal {
	c := in.Candle
	if c == nil {
		return nil
	}

	if pos := st.Position; pos != nil {
		if b.config.ForcedSquareOff && in.SquareOff {
			st.Position = nil
			return exitSignal(pos, c, c.Close, domain.ExitForcedSquareOff)
		}
		if price, reason, hit := checkExit(pos, c); hit {
			st.Position = nil
			return exitSignal(pos, c, price, reason)
		}
		return nil
	}

	if !in.CanTrade {
		return nil
	}
	snap := in.Indicators
	if !snap.VolumeConfirmed(c.Volume, b.config.VolMultiplier) {
		return nil
	}
	if !snap.DistanceReady || snap.DistancePct < b.config.VWAPDistancePct {
		return nil
	}

	for _, side := range []domain.Side{domain.Long, domain.Short} {
		if sig := b.tryEntry(ctx, st, in, side); sig != nil {
			return sig
		}
	}
	return nil
}

func (b *Breakout) tryEntry(ctx context.Context, st *State, in Input, side domain.Side) *domain.Signal {
	c, snap, sess := in.Candle, in.Indicators, st.Session
	if sess == nil || sess.Taken(side) {
		return nil
	}

	switch side {
	case domain.Long:
		if !snap.Uptrend(c.Close) || !longBreak(sess.HasRange, sess.PDH, in.Prev, c) {
			return nil
		}
	case domain.Short:
		if !snap.Downtrend(c.Close) || !shortBreak(sess.HasRange, sess.PDL, in.Prev, c) {
			return nil
		}
	}

	levels, ok := b.risk.Levels(side, c, snap.VWAP)
	if !ok {
		b.logger.Debug(ctx, "Breakout entry skipped: non-positive risk", map[string]interface{}{
			"symbol": c.Symbol,
			"side":   side,
			"close":  c.Close,
			"vwap":   snap.VWAP,
		})
		return nil
	}

	st.Position = &domain.Position{
		Symbol:     c.Symbol,
		Side:       side,
		EntryTime:  c.OpenTime,
		EntryPrice: levels.Entry,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
	}
	sess.MarkTaken(side)

	action := domain.Buy
	if side == domain.Short {
		action = domain.Sell
	}
	return &domain.Signal{
		Symbol:     c.Symbol,
		Kind:       domain.SignalEntry,
		Action:     action,
		Side:       side,
		Time:       c.OpenTime,
		EntryPrice: levels.Entry,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
	}
}

// longBreak requires the previous close at or below PDH and this close above it.
func longBreak(hasRange bool, pdh float64, prev, c *domain.Candle) bool {
	return hasRange && prev != nil && c.Close > pdh && prev.Close <= pdh
}

// shortBreak requires the previous close at or above PDL and this close below it.
func shortBreak(hasRange bool, pdl float64, prev, c *domain.Candle) bool {
	return hasRange && prev != nil && c.Close < pdl && prev.Close >= pdl
}

// checkExit tests the stop before the target. When one candle spans both
// levels the stop is assumed to fill first; fills are at the level itself.
func checkExit(pos *domain.Position, c *domain.Candle) (float64, domain.ExitReason, bool) {
	if pos.Side == domain.Short {
		if c.High >= pos.StopLoss {
			return pos.StopLoss, domain.ExitStopLoss, true
		}
		if c.Low <= pos.TakeProfit {
			return pos.TakeProfit, domain.ExitTakeProfit, true
		}
		return 0, "", false
	}
	if c.Low <= pos.StopLoss {
		return pos.StopLoss, domain.ExitStopLoss, true
	}
	if c.High >= pos.TakeProfit {
		return pos.TakeProfit, domain.ExitTakeProfit, true
	}
	return 0, "", false
}

func exitSignal(pos *domain.Position, c *domain.Candle, price float64, reason domain.ExitReason) *domain.Signal {
	return &domain.Signal{
		Symbol:     pos.Symbol,
		Kind:       domain.SignalExit,
		Action:     domain.Exit,
		Side:       pos.Side,
		Time:       c.OpenTime,
		EntryPrice: pos.EntryPrice,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		ExitPrice:  price,
		Reason:     reason,
	}
}
