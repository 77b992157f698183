package domain

import "time"

// Trade represents a closed round trip produced by an entry and its exit.
type Trade struct {
	ID         int64  // Unique identifier for the trade (usually from DB)
	Symbol     string // Trading symbol
	Side       Side
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	TakeProfit float64
	Reason     ExitReason
	PNL        float64 // Price points captured, positive when the trade made money
}

// IsWin reports whether the trade closed with a profit.
func (t *Trade) IsWin() bool {
	return t.PNL > 0
}
