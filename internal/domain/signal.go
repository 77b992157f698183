package domain

import (
	"fmt"
	"time"
)

// SignalKind separates entries from exits.
type SignalKind string

const (
	SignalEntry SignalKind = "ENTRY"
	SignalExit  SignalKind = "EXIT"
)

// Signal is an immutable event produced by the decision engine.
// Entry signals carry the side and levels; exit signals carry the exit price and reason.
type Signal struct {
	Symbol     string
	Kind       SignalKind
	Action     Action
	Side       Side      // Side of the position being opened or closed
	Time       time.Time // Open time of the candle that produced the signal
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	ExitPrice  float64
	Reason     ExitReason
}

// IsEntry reports whether the signal opens a position.
func (s *Signal) IsEntry() bool {
	return s.Kind == SignalEntry
}

func (s *Signal) String() string {
	if s.IsEntry() {
		return fmt.Sprintf("%s %s entry=%.4f sl=%.4f tp=%.4f at %s",
			s.Symbol, s.Action, s.EntryPrice, s.StopLoss, s.TakeProfit, s.Time.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s EXIT %s price=%.4f reason=%s at %s",
		s.Symbol, s.Side, s.ExitPrice, s.Reason, s.Time.Format(time.RFC3339))
}
