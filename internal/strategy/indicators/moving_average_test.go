package indicators

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
)

func candlesFromCloses(closes []float64, volumes []float64) []*domain.Candle {
	start := time.Date(2025, 12, 5, 9, 15, 0, 0, time.UTC)
	out := make([]*domain.Candle, len(closes))
	for i, c := range closes {
		v := 1.0
		if volumes != nil {
			v = volumes[i]
		}
		out[i] = &domain.Candle{
			Symbol:   "INFY",
			Interval: "5m",
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     c, High: c, Low: c, Close: c,
			Volume: v,
		}
	}
	return out
}

func TestMovingAverage_Calculate(t *testing.T) {
	candles := candlesFromCloses(
		[]float64{100.0, 102.0, 101.0, 103.0, 104.0},
		[]float64{10, 20, 30, 40, 50},
	)

	tests := []struct {
		name          string
		config        MovingAverageConfig
		candles       []*domain.Candle
		expectedValue float64
		expectError   bool
	}{
		{
			name: "SMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            SimpleMovingAverage,
			},
			candles:       candles,
			expectedValue: 102.666667, // (101 + 103 + 104) / 3
		},
		{
			name: "SMA over volume",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 2},
				Type:            SimpleMovingAverage,
				Source:          SourceVolume,
			},
			candles:       candles,
			expectedValue: 45.0,
		},
		{
			name: "EMA seeded with first close",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            ExponentialMovingAverage,
			},
			candles: candles,
			// alpha 0.5: 100 -> 101 -> 101 -> 102 -> 103
			expectedValue: 103.0,
		},
		{
			name: "EMA with a single candle",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 200},
				Type:            ExponentialMovingAverage,
			},
			candles:       candles[:1],
			expectedValue: 100.0,
		},
		{
			name: "Insufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 6},
				Type:            SimpleMovingAverage,
			},
			candles:     candles,
			expectError: true,
		},
		{
			name: "EMA without data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            ExponentialMovingAverage,
			},
			candles:     nil,
			expectError: true,
		},
		{
			name: "Invalid MA type",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Type:            "INVALID",
			},
			candles:     candles,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewMovingAverage(tt.config)
			value, err := ma.Calculate(context.Background(), tt.candles)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			// Allow for small floating point differences
			if math.Abs(value-tt.expectedValue) > 0.0001 {
				t.Errorf("Expected value %f, got %f", tt.expectedValue, value)
			}
		})
	}
}

func TestMovingAverage_InsufficientDataIsSentinel(t *testing.T) {
	ma := NewMovingAverage(MovingAverageConfig{
		IndicatorConfig: IndicatorConfig{Period: 20},
		Type:            SimpleMovingAverage,
		Source:          SourceVolume,
	})
	_, err := ma.Calculate(context.Background(), candlesFromCloses([]float64{1, 2, 3}, nil))
	if !errors.Is(err, ports.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestMovingAverage_Name(t *testing.T) {
	tests := []struct {
		name     string
		config   MovingAverageConfig
		expected string
		required int
	}{
		{
			name:     "SMA name",
			config:   MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 20}, Type: SimpleMovingAverage},
			expected: "SMA",
			required: 20,
		},
		{
			name:     "EMA name",
			config:   MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 200}, Type: ExponentialMovingAverage},
			expected: "EMA",
			required: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewMovingAverage(tt.config)
			if name := ma.Name(); name != tt.expected {
				t.Errorf("Expected name %s, got %s", tt.expected, name)
			}
			if got := ma.RequiredDataPoints(); got != tt.required {
				t.Errorf("Expected %d required data points, got %d", tt.required, got)
			}
		})
	}
}

func TestVWAP_Calculate(t *testing.T) {
	tests := []struct {
		name        string
		closes      []float64
		volumes     []float64
		expected    float64
		expectError bool
	}{
		{name: "weighted by volume", closes: []float64{100, 110}, volumes: []float64{3, 1}, expected: 102.5},
		{name: "single candle", closes: []float64{250}, volumes: []float64{7}, expected: 250},
		{name: "zero volume window", closes: []float64{100, 101}, volumes: []float64{0, 0}, expectError: true},
		{name: "empty window", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVWAP().Calculate(context.Background(), candlesFromCloses(tt.closes, tt.volumes))
			if tt.expectError {
				if !errors.Is(err, ports.ErrInsufficientData) {
					t.Errorf("expected ErrInsufficientData, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(v-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, v)
			}
		})
	}
}
