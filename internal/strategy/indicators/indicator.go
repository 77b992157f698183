package indicators

import (
	"context"

	"breakoutBot/internal/domain"
)

// Indicator represents a technical indicator that can be calculated from candle data
type Indicator interface {
	// Calculate computes the indicator value for the series ending at the last candle
	Calculate(ctx context.Context, candles []*domain.Candle) (float64, error)

	// RequiredDataPoints returns the minimum number of candles needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of candles needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// PriceSource selects the candle field an indicator reads.
type PriceSource string

const (
	SourceClose  PriceSource = "close"
	SourceVolume PriceSource = "volume"
)

func (s PriceSource) value(c *domain.Candle) float64 {
	if s == SourceVolume {
		return c.Volume
	}
	return c.Close
}
