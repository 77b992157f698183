package indicators

import (
	"context"
	"fmt"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
)

// VWAP is the volume-weighted average close over every candle it is given.
// It does not reset at day boundaries; the caller decides the window.
type VWAP struct {
	BaseIndicator
}

// NewVWAP creates a cumulative VWAP indicator.
func NewVWAP() *VWAP {
	return &VWAP{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: 1}}}
}

// Name returns the name of the indicator
func (v *VWAP) Name() string {
	return "VWAP"
}

// Calculate returns sum(close*volume)/sum(volume). The value is undefined when
// the window carries no volume.
func (v *VWAP) Calculate(ctx context.Context, candles []*domain.Candle) (float64, error) {
	var pv, vol float64
	for _, c := range candles {
		pv += c.Close * c.Volume
		vol += c.Volume
	}
	if vol <= 0 {
		return 0, fmt.Errorf("%w: VWAP window of %d candles has no volume", ports.ErrInsufficientData, len(candles))
	}
	return pv / vol, nil
}
