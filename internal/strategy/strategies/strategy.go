package strategies

import (
	"context"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/strategy/indicators"
	"breakoutBot/internal/strategy/session"
)

// Strategy defines the interface for trading strategies
type Strategy interface {
	// Evaluate runs one decision step for the candle in in and mutates st.
	// It returns the emitted signal, or nil when nothing happened.
	Evaluate(ctx context.Context, st *State, in Input) *domain.Signal

	// RequiredDataPoints returns the minimum number of candles needed for the strategy
	RequiredDataPoints() int

	// Name returns the name of the strategy
	Name() string
}

// State is the decision state of one symbol. It is owned by a single
// goroutine and passed by reference so the decision step stays free of I/O.
type State struct {
	Position *domain.Position // nil while flat
	Session  *session.State
}

// Flat reports whether no position is open.
func (s *State) Flat() bool {
	return s.Position == nil
}

// Input is everything the decision step reads about the current candle.
type Input struct {
	Candle     *domain.Candle
	Prev       *domain.Candle // previous candle of the series, nil for the first one
	Indicators indicators.Snapshot
	CanTrade   bool
	SquareOff  bool // candle sits at the session end time
}

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	logger ports.Logger
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(logger ports.Logger) *BaseStrategy {
	return &BaseStrategy{
		logger: logger,
	}
}
