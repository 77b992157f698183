package domain

import "time"

// Candle represents a single OHLCV bucket of one symbol.
type Candle struct {
	Symbol   string    // Trading symbol
	Interval string    // Bucket duration label (e.g., "5m")
	OpenTime time.Time // Start of the bucket in the exchange location
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Clone returns a copy that is safe to hand to another goroutine.
func (c *Candle) Clone() *Candle {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Tick is a single last-traded-price event for one symbol.
type Tick struct {
	Symbol    string
	EventTime time.Time
	Price     float64
	Quantity  float64
}
