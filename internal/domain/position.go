package domain

import "time"

// Position represents the single open position a symbol may hold.
// It is created on entry and discarded on exit; it is never partially filled.
type Position struct {
	Symbol     string
	Side       Side
	EntryTime  time.Time // Open time of the candle that triggered the entry
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// Risk returns the entry-to-stop distance, positive only when the stop sits
// on the losing side of the entry.
func (p *Position) Risk() float64 {
	if p.Side == Short {
		return p.StopLoss - p.EntryPrice
	}
	return p.EntryPrice - p.StopLoss
}
