package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// klinesPageLimit is the largest page the klines endpoint serves.
	klinesPageLimit = 1500
)

// Client implements ports.TickSource and ports.HistoryClient using the go-binance library.
type Client struct {
	futuresClient        *futures.Client
	logger               ports.Logger
	reconnectDelay       time.Duration
	maxReconnectAttempts int

	// serve opens one aggTrade stream; replaced in tests.
	serve func(symbol string, handler futures.WsAggTradeHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error)
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	Logger               ports.Logger
	ReconnectDelay       time.Duration // Base delay between reconnect attempts
	MaxReconnectAttempts int           // Consecutive failures before a stream gives up
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Debug(context.Background(), "No API credentials configured, using public endpoints only")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 1 * time.Second
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	return &Client{
		futuresClient:        client,
		logger:               cfg.Logger,
		reconnectDelay:       reconnectDelay,
		maxReconnectAttempts: maxAttempts,
		serve:                futures.WsAggTradeServe,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1001, -1016: // Disconnected / service shutting down
			mappedErr = ports.ErrExchangeUnavailable
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Signature or API key rejected
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// StreamTicks subscribes to the aggTrade stream of every symbol.
// Each symbol gets its own connection and reconnect loop; doneCh closes after all of them stop.
func (c *Client) StreamTicks(ctx context.Context, symbols []string, handler func(tick domain.Tick), errHandler func(err error)) (<-chan struct{}, error) {
	op := "StreamTicks"
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%s: no symbols: %w", op, ports.ErrInvalidRequest)
	}

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		symbol := symbol
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.streamSymbol(ctx, symbol, handler, errHandler)
		}()
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		c.logger.Info(ctx, op+": all tick streams stopped", map[string]interface{}{"symbols": symbols})
		close(doneCh)
	}()
	return doneCh, nil
}

// streamSymbol keeps one aggTrade stream alive until ctx is done or reconnects are exhausted.
func (c *Client) streamSymbol(ctx context.Context, symbol string, handler func(tick domain.Tick), errHandler func(err error)) {
	op := "StreamTicks"
	fields := map[string]interface{}{"symbol": symbol}

	wsHandler := func(event *futures.WsAggTradeEvent) {
		tick, err := translateAggTrade(event)
		if err != nil {
			c.logger.Warn(ctx, op+": dropping untranslatable trade event", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			return
		}
		handler(tick)
	}
	wsErrHandler := func(err error) {
		errHandler(c.handleError(ctx, err, op+" WebSocket"))
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		c.logger.Info(ctx, op+": connecting", map[string]interface{}{"symbol": symbol, "attempt": attempt + 1})
		innerDone, innerStop, err := c.serve(strings.ToUpper(symbol), wsHandler, wsErrHandler)
		if err != nil {
			c.handleError(ctx, err, op+" connection attempt")
			attempt++
			if attempt >= c.maxReconnectAttempts {
				c.logger.Error(ctx, err, op+": max reconnection attempts exceeded, giving up", map[string]interface{}{"symbol": symbol, "maxAttempts": c.maxReconnectAttempts})
				errHandler(fmt.Errorf("%s %s: %w: %w", op, symbol, ports.ErrConnectionFailed, err))
				return
			}
			if !c.sleep(ctx, c.backoff(attempt)) {
				return
			}
			continue
		}

		c.logger.Info(ctx, op+": connected", fields)
		attempt = 0

		select {
		case <-innerDone:
			c.logger.Warn(ctx, op+": connection closed, reconnecting", fields)
			if !c.sleep(ctx, c.reconnectDelay) {
				return
			}
		case <-ctx.Done():
			close(innerStop)
			<-innerDone
			c.logger.Info(ctx, op+": stopped", fields)
			return
		}
	}
}

// backoff doubles the base delay per failed attempt, capped at one minute.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.reconnectDelay
	for i := 1; i < attempt && delay < time.Minute; i++ {
		delay *= 2
	}
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// GetCandlesRange fetches all candles for a symbol/interval between start and end time, paging as needed.
func (c *Client) GetCandlesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error) {
	op := "GetCandlesRange"
	var all []*domain.Candle
	from := start

	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(klinesPageLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			candle, err := translateBinanceKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
			}
			all = append(all, candle)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < klinesPageLimit {
			break
		}
	}

	c.logger.Debug(ctx, op+" completed", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(all)})
	return all, nil
}

// parseDecimal reads an exchange decimal string without binary rounding on the way in.
func parseDecimal(field, s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s '%s': %w", field, s, err)
	}
	return d.InexactFloat64(), nil
}

func translateAggTrade(event *futures.WsAggTradeEvent) (domain.Tick, error) {
	if event == nil {
		return domain.Tick{}, errors.New("received nil aggTrade event")
	}
	price, err := parseDecimal("price", event.Price)
	if err != nil {
		return domain.Tick{}, err
	}
	qty, err := parseDecimal("quantity", event.Quantity)
	if err != nil {
		return domain.Tick{}, err
	}
	ts := event.TradeTime
	if ts == 0 {
		ts = event.Time
	}
	return domain.Tick{
		Symbol:    event.Symbol,
		EventTime: time.UnixMilli(ts),
		Price:     price,
		Quantity:  qty,
	}, nil
}

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Candle, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	values := make([]float64, 5)
	for i, f := range []struct{ name, raw string }{
		{"open price", bk.Open}, {"high price", bk.High}, {"low price", bk.Low}, {"close price", bk.Close}, {"volume", bk.Volume},
	} {
		v, err := parseDecimal(f.name, f.raw)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	return &domain.Candle{
		Symbol:   symbol, // futures.Kline carries no symbol
		Interval: interval,
		OpenTime: time.UnixMilli(bk.OpenTime),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}
