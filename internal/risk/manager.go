package risk

import (
	"errors"
	"fmt"
	"math"

	"breakoutBot/internal/domain"
)

// RiskConfig holds configuration for stop-loss and take-profit placement
type RiskConfig struct {
	RiskReward  float64 // take-profit distance as a multiple of the stop distance
	SLBufferPct float64 // VWAP buffer in percent used for the stop-loss
}

// Levels is the entry plan of a position.
type Levels struct {
	Entry      float64
	StopLoss   float64
	TakeProfit float64
}

// RiskManager places stops and targets for breakout entries
type RiskManager struct {
	config RiskConfig
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) *RiskManager {
	return &RiskManager{config: config}
}

// Validate checks the configuration.
func (c RiskConfig) Validate() error {
	var errs []error
	if c.RiskReward <= 0 || math.IsNaN(c.RiskReward) {
		errs = append(errs, fmt.Errorf("risk reward must be positive, got %v", c.RiskReward))
	}
	if c.SLBufferPct < 0 || math.IsNaN(c.SLBufferPct) {
		errs = append(errs, fmt.Errorf("stop-loss buffer must not be negative, got %v", c.SLBufferPct))
	}
	return errors.Join(errs...)
}

// GetStopLoss returns the stop for an entry on candle. LONG stops sit at the
// lower of the buffered VWAP and the candle low; SHORT mirrors with the high.
func (r *RiskManager) GetStopLoss(side domain.Side, candle *domain.Candle, vwap float64) float64 {
	if side == domain.Short {
		return math.Max(vwap*(1+r.config.SLBufferPct/100), candle.High)
	}
	return math.Min(vwap*(1-r.config.SLBufferPct/100), candle.Low)
}

// GetTakeProfit projects the stop distance by the risk reward ratio.
func (r *RiskManager) GetTakeProfit(side domain.Side, entry, stopLoss float64) float64 {
	if side == domain.Short {
		return entry - (stopLoss-entry)*r.config.RiskReward
	}
	return entry + (entry-stopLoss)*r.config.RiskReward
}

// Levels computes the entry plan for side at candle's close from
// GetStopLoss and GetTakeProfit. ok is false when the stop does not lie on
// the losing side of the entry.
func (r *RiskManager) Levels(side domain.Side, candle *domain.Candle, vwap float64) (Levels, bool) {
	pos := domain.Position{
		Side:       side,
		EntryPrice: candle.Close,
		StopLoss:   r.GetStopLoss(side, candle, vwap),
	}
	if !(pos.Risk() > 0) {
		return Levels{}, false
	}
	return Levels{
		Entry:      pos.EntryPrice,
		StopLoss:   pos.StopLoss,
		TakeProfit: r.GetTakeProfit(side, pos.EntryPrice, pos.StopLoss),
	}, true
}
