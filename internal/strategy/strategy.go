package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/strategy/candles"
	"breakoutBot/internal/strategy/indicators"
	"breakoutBot/internal/strategy/session"
	"breakoutBot/internal/strategy/strategies"
)

// Config holds the parameters of one symbol's engine.
type Config struct {
	Symbol     string
	Interval   time.Duration
	Location   *time.Location
	Indicators indicators.Config
	Breakout   strategies.BreakoutConfig
	Window     session.Window

	// EvaluateOnClose evaluates only finalized candles. When false every tick
	// that opens or updates a candle is evaluated.
	EvaluateOnClose bool
	// RetentionDays keeps this many completed trading dates in memory behind
	// the current one. Zero keeps everything.
	RetentionDays int
}

// DefaultRetentionDays bounds the in-memory window, and with it the VWAP, to
// the last five trading dates.
const DefaultRetentionDays = 5

// DefaultConfig returns the live defaults: 5 minute candles, the NSE session
// without lunch avoidance and without forced square-off.
func DefaultConfig(symbol string, loc *time.Location) Config {
	return Config{
		Symbol:     symbol,
		Interval:   5 * time.Minute,
		Location:   loc,
		Indicators: indicators.DefaultConfig(),
		Breakout:   strategies.DefaultBreakoutConfig(),
		Window:     session.DefaultWindow(loc),

		RetentionDays: DefaultRetentionDays,
	}
}

// Validate checks the engine configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Symbol == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	if c.Interval <= 0 || c.Interval > 24*time.Hour {
		errs = append(errs, fmt.Errorf("interval must be within (0, 24h], got %s", c.Interval))
	}
	if c.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("retention days must not be negative, got %d", c.RetentionDays))
	}
	for _, err := range []error{c.Indicators.Validate(), c.Breakout.Validate(), c.Window.Validate()} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SymbolState is a point-in-time copy of an engine's state.
type SymbolState struct {
	Symbol      string
	CandleCount int
	Last        *domain.Candle // latest candle, possibly still open
	Live        bool           // the engine is consuming ticks and Last may still change
	Session     session.State
	Position    *domain.Position
	Indicators  indicators.Snapshot // values at the last evaluation
}

// TickResult is the outcome of one tick.
type TickResult struct {
	Event     candles.Event
	Finalized *domain.Candle // copy of the candle closed by this tick, if any
	Signal    *domain.Signal
}

// Engine runs the breakout pipeline for one symbol: aggregation, indicators,
// session bookkeeping and the position state machine. An Engine is not safe
// for concurrent use; a single goroutine owns it.
type Engine struct {
	cfg      Config
	logger   ports.Logger
	agg      *candles.Aggregator
	tracker  *indicators.Tracker
	strategy strategies.Strategy

	// series holds the retained candles in open time order. All but the
	// last are committed to tracker; the last is the evaluation head.
	series   []*domain.Candle
	live     bool // set by the first accepted tick
	state    strategies.State
	session  session.State
	lastSnap indicators.Snapshot
	restored map[domain.Side]time.Time // entries taken before a restart, by trading date
	fallback *previousDay
}

// previousDay is a stored PDH/PDL for one trading date.
type previousDay struct {
	date      time.Time
	high, low float64
}

// New creates an Engine.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy engine")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Window.Location == nil {
		cfg.Window.Location = cfg.Location
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}
	cfg.Breakout.MinCandles = cfg.Indicators.MinCandles

	agg, err := candles.NewAggregator(candles.Config{Symbol: cfg.Symbol, Interval: cfg.Interval, Location: cfg.Location})
	if err != nil {
		return nil, err
	}
	breakout, err := strategies.NewBreakout(cfg.Breakout, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		agg:      agg,
		tracker:  indicators.NewTracker(cfg.Indicators),
		strategy: breakout,
	}
	e.state.Session = &e.session
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Seed loads persisted history before any live data arrives. Candles are
// sorted and deduplicated by open time; the last one keeps receiving ticks
// of its bucket.
func (e *Engine) Seed(history []*domain.Candle) error {
	if len(e.series) > 0 {
		return fmt.Errorf("engine for %s already holds %d candles", e.cfg.Symbol, len(e.series))
	}
	if len(history) == 0 {
		return nil
	}

	series := make([]*domain.Candle, 0, len(history))
	for _, c := range history {
		if c == nil {
			continue
		}
		cp := c.Clone()
		cp.Symbol = e.cfg.Symbol
		cp.OpenTime = cp.OpenTime.In(e.cfg.Location)
		series = append(series, cp)
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].OpenTime.Before(series[j].OpenTime) })

	deduped := series[:0]
	for _, c := range series {
		if n := len(deduped); n > 0 && deduped[n-1].OpenTime.Equal(c.OpenTime) {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}
	if len(deduped) == 0 {
		return nil
	}

	e.series = deduped
	e.tracker.Reset(e.series[:len(e.series)-1])
	e.agg.Resume(e.series[len(e.series)-1])
	return nil
}

// RestoreTaken records that side was already entered on the trading date of
// entryTime, so no second entry on that side is taken that day. It is applied
// when the session reaches that date and may be called right after Seed.
func (e *Engine) RestoreTaken(side domain.Side, entryTime time.Time) {
	if e.restored == nil {
		e.restored = make(map[domain.Side]time.Time, 2)
	}
	date := session.DateOf(entryTime, e.cfg.Location)
	e.restored[side] = date
	if e.session.Today.Equal(date) {
		e.session.MarkTaken(side)
	}
}

// SetPreviousDay supplies the PDH/PDL for the trading date of at. It is used
// only when the retained candles hold no earlier session once that date
// starts.
func (e *Engine) SetPreviousDay(at time.Time, high, low float64) {
	e.fallback = &previousDay{date: session.DateOf(at, e.cfg.Location), high: high, low: low}
}

// OnTick feeds one live tick. Stale or malformed ticks return an error and
// leave the state untouched.
func (e *Engine) OnTick(ctx context.Context, tick domain.Tick) (TickResult, error) {
	if tick.Symbol != "" && tick.Symbol != e.cfg.Symbol {
		return TickResult{}, fmt.Errorf("%w: %s routed to engine %s", ports.ErrUnknownSymbol, tick.Symbol, e.cfg.Symbol)
	}
	ev, err := e.agg.Ingest(tick)
	if err != nil {
		return TickResult{}, err
	}

	e.live = true
	res := TickResult{Event: ev}
	switch ev.Kind {
	case candles.Opened:
		if ev.Finalized != nil {
			res.Finalized = ev.Finalized.Clone()
			if e.cfg.EvaluateOnClose {
				res.Signal = e.evaluate(ctx)
			}
			e.tracker.Advance(ev.Finalized)
		}
		e.push(ctx, ev.Candle)
		if !e.cfg.EvaluateOnClose {
			res.Signal = e.evaluate(ctx)
		}
	case candles.Updated:
		// An open position is checked against the head's whole range, so a
		// high or low reached before the entry tick can trigger its exit.
		if !e.cfg.EvaluateOnClose {
			res.Signal = e.evaluate(ctx)
		}
	}
	return res, nil
}

// OnCandle appends a finalized candle and evaluates it. It is the replay path
// and must be fed in strictly increasing open time order.
func (e *Engine) OnCandle(ctx context.Context, c *domain.Candle) (*domain.Signal, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil candle", ports.ErrInvalidRequest)
	}
	if e.live {
		return nil, fmt.Errorf("engine for %s is consuming live ticks", e.cfg.Symbol)
	}
	if n := len(e.series); n > 0 && !c.OpenTime.After(e.series[n-1].OpenTime) {
		return nil, fmt.Errorf("%w: %s at %s, last %s", ports.ErrStaleCandle, e.cfg.Symbol,
			c.OpenTime.Format(time.RFC3339), e.series[n-1].OpenTime.Format(time.RFC3339))
	}

	cp := c.Clone()
	cp.Symbol = e.cfg.Symbol
	cp.OpenTime = cp.OpenTime.In(e.cfg.Location)

	if n := len(e.series); n > 0 {
		e.tracker.Advance(e.series[n-1])
	}
	e.push(ctx, cp)
	return e.evaluate(ctx), nil
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() SymbolState {
	st := SymbolState{
		Symbol:      e.cfg.Symbol,
		CandleCount: len(e.series),
		Live:        e.live,
		Session:     e.session,
		Indicators:  e.lastSnap,
	}
	if n := len(e.series); n > 0 {
		st.Last = e.series[n-1].Clone()
	}
	if e.state.Position != nil {
		pos := *e.state.Position
		st.Position = &pos
	}
	return st
}

// push appends c as the new head. Every candle already in series is
// committed to the tracker at this point.
func (e *Engine) push(ctx context.Context, c *domain.Candle) {
	if n := len(e.series); n > 0 && e.cfg.RetentionDays > 0 {
		prevDate := session.DateOf(e.series[n-1].OpenTime, e.cfg.Location)
		if !session.DateOf(c.OpenTime, e.cfg.Location).Equal(prevDate) {
			if trimmed := trimToDates(e.series, e.cfg.RetentionDays, e.cfg.Location); len(trimmed) != n {
				e.logger.Debug(ctx, "Trimmed candle series", map[string]interface{}{
					"symbol":  e.cfg.Symbol,
					"removed": n - len(trimmed),
					"kept":    len(trimmed),
				})
				e.series = trimmed
				e.tracker.Reset(e.series)
			}
		}
	}
	e.series = append(e.series, c)
}

// evaluate runs the decision step on the head candle.
func (e *Engine) evaluate(ctx context.Context) *domain.Signal {
	n := len(e.series)
	if n == 0 {
		return nil
	}
	head := e.series[n-1]

	if e.session.OnCandle(head, e.series, e.cfg.Location) {
		if !e.session.HasRange && e.fallback != nil && e.fallback.date.Equal(e.session.Today) {
			e.session.PDH, e.session.PDL, e.session.HasRange = e.fallback.high, e.fallback.low, true
		}
		fields := map[string]interface{}{
			"symbol": e.cfg.Symbol,
			"date":   e.session.Today.Format(time.DateOnly),
		}
		if e.session.HasRange {
			fields["pdh"] = e.session.PDH
			fields["pdl"] = e.session.PDL
		}
		for side, date := range e.restored {
			if date.Equal(e.session.Today) {
				e.session.MarkTaken(side)
				fields[strings.ToLower(string(side))+"_taken"] = true
			}
		}
		e.logger.Info(ctx, "New trading date", fields)
	}

	in := strategies.Input{
		Candle:     head,
		Indicators: e.tracker.Evaluate(head),
		CanTrade:   e.cfg.Window.CanTrade(head.OpenTime),
		SquareOff:  e.cfg.Window.IsSquareOff(head.OpenTime),
	}
	if n > 1 {
		in.Prev = e.series[n-2]
	}
	e.lastSnap = in.Indicators

	sig := e.strategy.Evaluate(ctx, &e.state, in)
	if sig != nil {
		e.logger.Info(ctx, "Signal generated", map[string]interface{}{
			"symbol": sig.Symbol,
			"kind":   sig.Kind,
			"action": sig.Action,
			"side":   sig.Side,
			"entry":  sig.EntryPrice,
			"sl":     sig.StopLoss,
			"tp":     sig.TakeProfit,
			"exit":   sig.ExitPrice,
			"reason": sig.Reason,
		})
	}
	return sig
}

// trimToDates keeps the candles of the last n distinct trading dates.
func trimToDates(series []*domain.Candle, n int, loc *time.Location) []*domain.Candle {
	seen := 0
	var current time.Time
	for i := len(series) - 1; i >= 0; i-- {
		d := session.DateOf(series[i].OpenTime, loc)
		if !d.Equal(current) {
			seen++
			current = d
			if seen > n {
				kept := make([]*domain.Candle, len(series)-i-1)
				copy(kept, series[i+1:])
				return kept
			}
		}
	}
	return series
}
