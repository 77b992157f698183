package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/strategy"
	"breakoutBot/internal/strategy/analytics"
	"breakoutBot/internal/strategy/backtesting"

	"golang.org/x/sync/errgroup"
)

// Parameter names understood by the optimizer.
const (
	ParamVolMultiplier = "vol_mult"
	ParamRiskReward    = "risk_reward"
	ParamVWAPDistance  = "vwap_dist_pct"
	ParamSLBuffer      = "sl_buffer_pct"
	ParamTrendLength   = "trend_length"
	ParamVolumeLength  = "volume_length"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Base            strategy.Config // configuration the parameters are applied to
	Capital         float64         // capital base handed to the analytics
	Workers         int             // concurrent replays, 0 means unlimited
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
}

// Optimizer runs a grid search of breakout parameters over replays
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{
		config: config,
	}
}

// Optimize replays candles once per parameter combination and returns the
// results sorted by score, best first.
func (o *Optimizer) Optimize(ctx context.Context, candles []*domain.Candle) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	results := make([]OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	if o.config.Workers > 0 {
		g.SetLimit(o.config.Workers)
	}

	for i, params := range combinations {
		g.Go(func() error {
			cfg, err := applyParams(o.config.Base, params)
			if err != nil {
				return err
			}

			replay, err := backtesting.Replay(gctx, cfg, candles, nil)
			if err != nil {
				return fmt.Errorf("replay with %v: %w", params, err)
			}

			metrics := analytics.AnalyzePerformance(replay.Trades, o.config.Capital)
			results[i] = OptimizationResult{
				Parameters: params,
				Metrics:    metrics,
				Score:      o.config.ScoreFunction(metrics),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortResultsByScore(results)
	return results, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	currentCombination := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		if param.Step <= 0 {
			currentCombination[param.Name] = param.Min
			generate(paramIndex + 1)
			return
		}
		for i := 0; ; i++ {
			value := param.Min + float64(i)*param.Step
			if value > param.Max+param.Step/2 { // half a step of slack for float drift
				break
			}
			if param.IsInt {
				value = math.Round(value)
			}
			currentCombination[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// applyParams returns base with the given parameters set
func applyParams(base strategy.Config, params map[string]float64) (strategy.Config, error) {
	cfg := base
	for name, v := range params {
		switch name {
		case ParamVolMultiplier:
			cfg.Breakout.VolMultiplier = v
		case ParamRiskReward:
			cfg.Breakout.RiskReward = v
		case ParamVWAPDistance:
			cfg.Breakout.VWAPDistancePct = v
		case ParamSLBuffer:
			cfg.Breakout.SLBufferPct = v
		case ParamTrendLength:
			cfg.Indicators.TrendLength = int(math.Round(v))
		case ParamVolumeLength:
			cfg.Indicators.VolumeLength = int(math.Round(v))
		default:
			return cfg, fmt.Errorf("unknown parameter %q", name)
		}
	}
	return cfg, nil
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction provides a default scoring function for optimization
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	// It combines several metrics into a single score
	score := 0.0

	score += metrics.WinRate * 0.3
	score += metrics.ProfitFactor * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += metrics.RiskRewardRatio * 0.1

	return score
}
