package indicators

import (
	"context"
	"fmt"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type   MovingAverageType
	Source PriceSource // defaults to close
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	if config.Source == "" {
		config.Source = SourceClose
	}
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// RequiredDataPoints returns the period for SMA. The recursive EMA is defined
// from the first observation onwards.
func (m *MovingAverage) RequiredDataPoints() int {
	if m.config.Type == ExponentialMovingAverage {
		return 1
	}
	return m.Config.Period
}

// Calculate computes the moving average value based on the configured type
func (m *MovingAverage) Calculate(ctx context.Context, candles []*domain.Candle) (float64, error) {
	if m.Config.Period <= 0 {
		return 0, fmt.Errorf("moving average period must be positive, got %d", m.Config.Period)
	}
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.calculateSMA(candles)
	case ExponentialMovingAverage:
		return m.calculateEMA(candles)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

// calculateSMA computes the Simple Moving Average of the last Period values
func (m *MovingAverage) calculateSMA(candles []*domain.Candle) (float64, error) {
	if len(candles) < m.Config.Period {
		return 0, fmt.Errorf("%w: %d candles for SMA period %d", ports.ErrInsufficientData, len(candles), m.Config.Period)
	}

	total := 0.0
	for i := len(candles) - m.Config.Period; i < len(candles); i++ {
		total += m.config.Source.value(candles[i])
	}
	return total / float64(m.Config.Period), nil
}

// calculateEMA computes the recursive Exponential Moving Average seeded with the first value
func (m *MovingAverage) calculateEMA(candles []*domain.Candle) (float64, error) {
	if len(candles) == 0 {
		return 0, fmt.Errorf("%w: no candles for EMA", ports.ErrInsufficientData)
	}

	alpha := EMAAlpha(m.Config.Period)
	ema := m.config.Source.value(candles[0])
	for i := 1; i < len(candles); i++ {
		ema = emaStep(ema, m.config.Source.value(candles[i]), alpha)
	}
	return ema, nil
}

// EMAAlpha returns the smoothing factor 2/(period+1).
func EMAAlpha(period int) float64 {
	return 2.0 / float64(period+1)
}

// emaStep is shared by the batch and incremental paths so both produce
// bit-identical values for the same inputs.
func emaStep(prev, value, alpha float64) float64 {
	return prev + alpha*(value-prev)
}
