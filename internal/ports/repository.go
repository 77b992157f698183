package ports

import (
	"context"
	"time"

	"breakoutBot/internal/domain"
)

// CandleRepository is the candle persistence gateway.
type CandleRepository interface {
	// PutCandle stores a finalized candle. It is idempotent on (symbol, open time, interval).
	PutCandle(ctx context.Context, candle *domain.Candle) error
	// PutCandles stores a batch of candles in one transaction.
	PutCandles(ctx context.Context, candles []*domain.Candle) error
	// GetRange returns candles whose trading date lies in [start, end], ordered by open time.
	// A zero start or end leaves that side of the range open.
	GetRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error)
	// LatestCandle returns the most recent stored candle, or nil when there is none.
	LatestCandle(ctx context.Context, symbol, interval string) (*domain.Candle, error)
	// PreviousDayHighLow returns the high and low of the trading date before the given date.
	// ok is false when the store holds no candles for that date.
	PreviousDayHighLow(ctx context.Context, symbol, interval string, date time.Time) (high, low float64, ok bool, err error)
	// CleanupOldCandles deletes candles dated before now minus keepDays and returns the number removed.
	CleanupOldCandles(ctx context.Context, keepDays int) (int64, error)
}

// TradeRepository defines the interface for storing and retrieving completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// CountTodayBySymbol counts the number of trades entered on the given date for a symbol.
	CountTodayBySymbol(ctx context.Context, symbol string, date time.Time) (int, error)
}
