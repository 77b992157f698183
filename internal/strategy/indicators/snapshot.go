package indicators

import (
	"context"
	"errors"
	"fmt"
	"math"

	"breakoutBot/internal/domain"
)

// Config holds the lookback lengths of the breakout indicator set.
type Config struct {
	TrendLength  int // EMA length of the trend filter
	VolumeLength int // SMA length of the volume average
	MinCandles   int // series length before the trend EMA is trusted
}

// DefaultConfig returns EMA 200, volume SMA 20 and a 210 candle warm-up.
func DefaultConfig() Config {
	return Config{TrendLength: 200, VolumeLength: 20, MinCandles: 210}
}

// Validate checks the lookback lengths.
func (c Config) Validate() error {
	var errs []error
	if c.TrendLength <= 0 {
		errs = append(errs, fmt.Errorf("trend length must be positive, got %d", c.TrendLength))
	}
	if c.VolumeLength <= 0 {
		errs = append(errs, fmt.Errorf("volume length must be positive, got %d", c.VolumeLength))
	}
	if c.MinCandles < 0 {
		errs = append(errs, fmt.Errorf("min candles must not be negative, got %d", c.MinCandles))
	}
	return errors.Join(errs...)
}

// Snapshot holds the indicator values for the latest candle of a series.
// A value whose Ready flag is false is undefined and must not be read as zero.
type Snapshot struct {
	TrendAvg   float64
	TrendReady bool

	VWAP      float64
	VWAPReady bool

	VolAvg   float64
	VolReady bool

	DistancePct   float64
	DistanceReady bool
}

// Uptrend reports whether close lies above a usable trend average.
func (s Snapshot) Uptrend(close float64) bool {
	return s.TrendReady && close > s.TrendAvg
}

// Downtrend reports whether close lies below a usable trend average.
func (s Snapshot) Downtrend(close float64) bool {
	return s.TrendReady && close < s.TrendAvg
}

// VolumeConfirmed reports whether volume exceeds the average by mult. It is
// false whenever the average is undefined.
func (s Snapshot) VolumeConfirmed(volume, mult float64) bool {
	return s.VolReady && volume > s.VolAvg*mult
}

// Compute recomputes every indicator over the whole series. The last candle is
// the one being evaluated. Cost is O(len(candles)).
func Compute(ctx context.Context, candles []*domain.Candle, cfg Config) Snapshot {
	var snap Snapshot
	if len(candles) == 0 {
		return snap
	}

	trend := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: cfg.TrendLength},
		Type:            ExponentialMovingAverage,
	})
	if v, err := trend.Calculate(ctx, candles); err == nil {
		snap.TrendAvg = v
		snap.TrendReady = len(candles) >= cfg.MinCandles
	}

	volume := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: cfg.VolumeLength},
		Type:            SimpleMovingAverage,
		Source:          SourceVolume,
	})
	if v, err := volume.Calculate(ctx, candles); err == nil {
		snap.VolAvg = v
		snap.VolReady = true
	}

	if v, err := NewVWAP().Calculate(ctx, candles); err == nil {
		snap.VWAP = v
		snap.VWAPReady = true
	}

	snap.DistancePct, snap.DistanceReady = distancePct(candles[len(candles)-1].Close, snap.VWAP, snap.VWAPReady)
	return snap
}

func distancePct(close, vwap float64, vwapReady bool) (float64, bool) {
	if !vwapReady || vwap == 0 {
		return 0, false
	}
	return math.Abs(close-vwap) / vwap * 100, true
}
