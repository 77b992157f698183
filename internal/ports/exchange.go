package ports

import (
	"context"
	"time"

	"breakoutBot/internal/domain"
)

// TickSource delivers last-traded-price events for a set of symbols.
// This abstraction decouples the engine from a specific market data transport.
type TickSource interface {
	// StreamTicks subscribes to trades for every symbol and invokes handler for each tick.
	// Ticks of one symbol are delivered in the order the transport received them.
	// doneCh is closed once the stream has fully stopped; cancelling ctx stops it.
	StreamTicks(ctx context.Context, symbols []string, handler func(tick domain.Tick), errHandler func(err error)) (doneCh <-chan struct{}, err error)
}

// HistoryClient retrieves historical candles from the exchange.
type HistoryClient interface {
	// GetCandlesRange fetches all candles for a symbol/interval between start and end.
	GetCandlesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error)
	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error
}

// SignalNotifier delivers signals to an outside audience.
// Delivery guarantees belong to the implementation, not to the engine.
type SignalNotifier interface {
	Notify(ctx context.Context, signal domain.Signal) error
}
