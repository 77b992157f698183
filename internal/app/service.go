package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/strategy"
	"breakoutBot/internal/strategy/backtesting"
	"breakoutBot/internal/strategy/candles"
	"breakoutBot/internal/strategy/session"

	"golang.org/x/sync/errgroup"
)

const (
	defaultLaneBuffer    = 1024
	defaultPersistBuffer = 256
	persistAttempts      = 3
	persistRetryDelay    = 200 * time.Millisecond
)

// Config holds the service-level settings. Strategies carries one engine
// configuration per symbol.
type Config struct {
	Strategies    []strategy.Config
	HistoryDays   int // working days of stored candles loaded before streaming
	StoreKeepDays int // candles older than this are deleted at startup; zero disables
	LaneBuffer    int
	PersistBuffer int
}

// TradingService runs one engine per symbol and feeds it live ticks.
// Each symbol has a lane: a buffered channel drained by exactly one
// goroutine, which owns the engine. Persistence and notification happen on
// separate workers so slow I/O never blocks decisions.
type TradingService struct {
	cfg       Config
	logger    ports.Logger
	ticks     ports.TickSource
	candles   ports.CandleRepository // optional
	trades    ports.TradeRepository  // optional
	history   ports.HistoryClient    // optional, fills store gaps before seeding
	notifier  ports.SignalNotifier
	lanes     map[string]*lane
	persistCh chan persistJob
	signalCh  chan domain.Signal
	stop      chan struct{} // closed once the stream is down; lanes drain and exit
	now       func() time.Time
}

type lane struct {
	symbol   string
	interval string
	loc      *time.Location
	engine   *strategy.Engine
	ticks    chan domain.Tick
	entry    *domain.Signal // open entry awaiting its exit
	rejected int
}

// persistJob carries either a finalized candle or a closed trade.
type persistJob struct {
	candle *domain.Candle
	trade  *domain.Trade
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg Config,
	logger ports.Logger,
	ticks ports.TickSource,
	candleRepo ports.CandleRepository,
	tradeRepo ports.TradeRepository,
	notifier ports.SignalNotifier,
) (*TradingService, error) {
	if logger == nil || ticks == nil || notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if len(cfg.Strategies) == 0 {
		return nil, fmt.Errorf("no symbols configured: %w", ports.ErrConfigurationError)
	}
	if cfg.HistoryDays < 0 {
		return nil, fmt.Errorf("history days must not be negative: %w", ports.ErrConfigurationError)
	}
	if cfg.LaneBuffer <= 0 {
		cfg.LaneBuffer = defaultLaneBuffer
	}
	if cfg.PersistBuffer <= 0 {
		cfg.PersistBuffer = defaultPersistBuffer
	}

	s := &TradingService{
		cfg:       cfg,
		logger:    logger,
		ticks:     ticks,
		candles:   candleRepo,
		trades:    tradeRepo,
		notifier:  notifier,
		lanes:     make(map[string]*lane, len(cfg.Strategies)),
		persistCh: make(chan persistJob, cfg.PersistBuffer),
		signalCh:  make(chan domain.Signal, cfg.PersistBuffer),
		stop:      make(chan struct{}),
		now:       time.Now,
	}
	for _, sc := range cfg.Strategies {
		if _, dup := s.lanes[sc.Symbol]; dup {
			return nil, fmt.Errorf("symbol %s configured twice: %w", sc.Symbol, ports.ErrConfigurationError)
		}
		engine, err := strategy.New(sc, logger)
		if err != nil {
			return nil, fmt.Errorf("creating engine for %s: %w", sc.Symbol, err)
		}
		ec := engine.Config()
		s.lanes[sc.Symbol] = &lane{
			symbol:   sc.Symbol,
			interval: candles.IntervalLabel(ec.Interval),
			loc:      ec.Location,
			engine:   engine,
			ticks:    make(chan domain.Tick, cfg.LaneBuffer),
		}
	}
	return s, nil
}

// WithBackfill makes Start fetch the candles missing from the store before
// the engines are seeded.
func (s *TradingService) WithBackfill(history ports.HistoryClient) *TradingService {
	s.history = history
	return s
}

// Symbols lists the configured symbols.
func (s *TradingService) Symbols() []string {
	out := make([]string, 0, len(s.lanes))
	for _, sc := range s.cfg.Strategies {
		out = append(out, sc.Symbol)
	}
	return out
}

// Start seeds every engine from the store, streams ticks until ctx is
// cancelled and then drains lanes and workers before returning.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{"symbols": s.Symbols()})

	if err := s.cleanupStore(ctx); err != nil {
		s.logger.Warn(ctx, "Candle store cleanup failed", map[string]interface{}{"error": err.Error()})
	}
	for _, l := range s.lanes {
		if err := s.backfill(ctx, l); err != nil {
			s.logger.Warn(ctx, "Candle backfill failed, seeding from the store only", map[string]interface{}{
				"symbol": l.symbol, "error": err.Error(),
			})
		}
		if err := s.seed(ctx, l); err != nil {
			return err
		}
		if err := s.restoreTaken(ctx, l); err != nil {
			s.logger.Warn(ctx, "Could not restore today's entries", map[string]interface{}{
				"symbol": l.symbol, "error": err.Error(),
			})
		}
	}

	// Workers outlive the stream so queued writes and alerts are not lost on shutdown.
	workCtx := context.WithoutCancel(ctx)
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		s.runPersistence(workCtx)
	}()
	go func() {
		defer workers.Done()
		s.runNotifier(workCtx)
	}()

	lanes, laneCtx := errgroup.WithContext(workCtx)
	for _, l := range s.lanes {
		l := l
		lanes.Go(func() error {
			s.runLane(laneCtx, l)
			return nil
		})
	}

	streamDone, err := s.ticks.StreamTicks(ctx, s.Symbols(), s.routeTick, s.handleStreamError)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to start tick stream")
		s.shutdown(lanes, &workers)
		return fmt.Errorf("failed to start tick stream: %w", err)
	}
	s.logger.Info(ctx, "Tick stream started")

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Context cancelled, initiating shutdown...")
		select {
		case <-streamDone:
		case <-time.After(5 * time.Second):
			s.logger.Warn(ctx, "Timeout waiting for tick stream to shut down")
		}
	case <-streamDone:
		runErr = fmt.Errorf("tick stream stopped unexpectedly: %w", ports.ErrConnectionFailed)
		s.logger.Error(ctx, runErr, "Tick stream stopped")
	}

	s.shutdown(lanes, &workers)
	s.logger.Info(ctx, "Trading Service stopped.")
	return runErr
}

// shutdown stops the lanes, waits for them to drain and then stops the workers.
func (s *TradingService) shutdown(lanes *errgroup.Group, workers *sync.WaitGroup) {
	close(s.stop)
	_ = lanes.Wait()
	close(s.persistCh)
	close(s.signalCh)
	workers.Wait()
}

// seed loads the last HistoryDays working days plus today from the store.
func (s *TradingService) seed(ctx context.Context, l *lane) error {
	if s.candles == nil {
		return nil
	}
	now := s.now()
	start := HistoryStart(now, s.cfg.HistoryDays, l.loc)
	history, err := s.candles.GetRange(ctx, l.symbol, l.interval, start, now)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load candle history", map[string]interface{}{"symbol": l.symbol})
		return fmt.Errorf("loading history for %s: %w", l.symbol, err)
	}
	if err := l.engine.Seed(history); err != nil {
		return fmt.Errorf("seeding %s: %w", l.symbol, err)
	}
	fields := map[string]interface{}{
		"symbol": l.symbol, "candles": len(history), "from": start.Format("2006-01-02"),
	}
	pdh, pdl, ok, err := s.candles.PreviousDayHighLow(ctx, l.symbol, l.interval, now)
	if err != nil {
		s.logger.Warn(ctx, "Failed to load stored previous-day range", map[string]interface{}{"symbol": l.symbol, "error": err.Error()})
	} else if ok {
		// Kept as the fallback for today when history holds no earlier session.
		l.engine.SetPreviousDay(now, pdh, pdl)
		fields["stored_pdh"] = pdh
		fields["stored_pdl"] = pdl
	}
	s.logger.Info(ctx, "Engine seeded", fields)
	return nil
}

// backfill fetches the candles between the latest stored one (or the start
// of the history window) and now, and stores them.
func (s *TradingService) backfill(ctx context.Context, l *lane) error {
	if s.history == nil || s.candles == nil {
		return nil
	}
	now := s.now()
	from := HistoryStart(now, s.cfg.HistoryDays, l.loc)
	latest, err := s.candles.LatestCandle(ctx, l.symbol, l.interval)
	if err != nil {
		return err
	}
	if latest != nil && latest.OpenTime.After(from) {
		from = latest.OpenTime
	}

	fetched, err := s.history.GetCandlesRange(ctx, l.symbol, l.interval, from, now)
	if err != nil {
		return err
	}
	if len(fetched) == 0 {
		return nil
	}
	if err := s.candles.PutCandles(ctx, fetched); err != nil {
		return err
	}
	s.logger.Info(ctx, "Candle store backfilled", map[string]interface{}{
		"symbol": l.symbol, "candles": len(fetched), "from": from.Format(time.RFC3339),
	})
	return nil
}

// restoreTaken marks the sides already entered today according to the trade
// history, so a restart does not repeat them.
func (s *TradingService) restoreTaken(ctx context.Context, l *lane) error {
	if s.trades == nil {
		return nil
	}
	now := s.now()
	n, err := s.trades.CountTodayBySymbol(ctx, l.symbol, now)
	if err != nil || n == 0 {
		return err
	}
	recent, err := s.trades.FindBySymbol(ctx, l.symbol, n)
	if err != nil {
		return err
	}

	today := session.DateOf(now, l.loc)
	for _, t := range recent {
		if session.DateOf(t.EntryTime, l.loc).Equal(today) {
			l.engine.RestoreTaken(t.Side, t.EntryTime)
			s.logger.Info(ctx, "Restored today's entry", map[string]interface{}{
				"symbol": l.symbol, "side": t.Side, "entry_time": t.EntryTime.Format(time.RFC3339),
			})
		}
	}
	return nil
}

func (s *TradingService) cleanupStore(ctx context.Context) error {
	if s.candles == nil || s.cfg.StoreKeepDays <= 0 {
		return nil
	}
	_, err := s.candles.CleanupOldCandles(ctx, s.cfg.StoreKeepDays)
	return err
}

// HistoryStart walks back n working days from the trading date of now,
// skipping Saturdays and Sundays.
func HistoryStart(now time.Time, n int, loc *time.Location) time.Time {
	d := session.DateOf(now, loc)
	for n > 0 {
		d = d.AddDate(0, 0, -1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return d
}

// routeTick hands a tick to its lane. It blocks while the lane is full so the
// stream applies backpressure instead of losing ticks.
func (s *TradingService) routeTick(tick domain.Tick) {
	l, ok := s.lanes[tick.Symbol]
	if !ok {
		s.logger.Debug(context.Background(), "Dropping tick for unknown symbol", map[string]interface{}{"symbol": tick.Symbol})
		return
	}
	select {
	case l.ticks <- tick:
	case <-s.stop:
	}
}

func (s *TradingService) handleStreamError(err error) {
	s.logger.Error(context.Background(), err, "Tick stream error reported")
}

// runLane is the only goroutine that touches l.engine.
func (s *TradingService) runLane(ctx context.Context, l *lane) {
	defer s.logLaneStopped(ctx, l)
	for {
		select {
		case tick := <-l.ticks:
			s.processTick(ctx, l, tick)
		case <-s.stop:
			for {
				select {
				case tick := <-l.ticks:
					s.processTick(ctx, l, tick)
				default:
					return
				}
			}
		}
	}
}

func (s *TradingService) logLaneStopped(ctx context.Context, l *lane) {
	st := l.engine.Snapshot()
	s.logger.Info(ctx, "Lane stopped", map[string]interface{}{
		"symbol": l.symbol, "candles": st.CandleCount, "rejectedTicks": l.rejected, "inPosition": st.Position != nil,
	})
}

func (s *TradingService) processTick(ctx context.Context, l *lane, tick domain.Tick) {
	res, err := l.engine.OnTick(ctx, tick)
	if err != nil {
		l.rejected++
		level := s.logger.Debug
		if !errors.Is(err, ports.ErrStaleTick) {
			level = s.logger.Warn
		}
		level(ctx, "Tick rejected", map[string]interface{}{"symbol": l.symbol, "error": err.Error()})
		return
	}

	if res.Finalized != nil {
		s.enqueuePersist(ctx, persistJob{candle: res.Finalized})
	}
	if res.Signal == nil {
		return
	}

	sig := *res.Signal
	s.enqueueSignal(ctx, sig)
	if sig.IsEntry() {
		l.entry = &sig
		return
	}
	if l.entry != nil {
		s.enqueuePersist(ctx, persistJob{trade: backtesting.NewTrade(l.entry, &sig)})
		l.entry = nil
	}
}

// enqueuePersist never blocks. A full queue drops the write; the in-memory
// series is unaffected.
func (s *TradingService) enqueuePersist(ctx context.Context, job persistJob) {
	if (job.candle != nil && s.candles == nil) || (job.trade != nil && s.trades == nil) {
		return
	}
	select {
	case s.persistCh <- job:
	default:
		s.logger.Warn(ctx, "Persistence queue full, dropping write", map[string]interface{}{"queue": cap(s.persistCh)})
	}
}

func (s *TradingService) enqueueSignal(ctx context.Context, sig domain.Signal) {
	select {
	case s.signalCh <- sig:
	default:
		s.logger.Warn(ctx, "Notification queue full, dropping signal", map[string]interface{}{"symbol": sig.Symbol, "action": string(sig.Action)})
	}
}

func (s *TradingService) runPersistence(ctx context.Context) {
	for job := range s.persistCh {
		var err error
		switch {
		case job.candle != nil:
			err = withRetry(ctx, persistAttempts, persistRetryDelay, func() error {
				return s.candles.PutCandle(ctx, job.candle)
			})
			if err != nil {
				s.logger.Error(ctx, err, "Failed to persist candle", map[string]interface{}{
					"symbol": job.candle.Symbol, "openTime": job.candle.OpenTime,
				})
			}
		case job.trade != nil:
			err = withRetry(ctx, persistAttempts, persistRetryDelay, func() error {
				_, err := s.trades.CreateTrade(ctx, job.trade)
				return err
			})
			if err != nil {
				s.logger.Error(ctx, err, "Failed to persist trade", map[string]interface{}{"symbol": job.trade.Symbol})
			} else {
				s.logger.Info(ctx, "Trade recorded", map[string]interface{}{
					"symbol": job.trade.Symbol, "side": string(job.trade.Side), "pnl": job.trade.PNL, "reason": string(job.trade.Reason),
				})
			}
		}
	}
}

func (s *TradingService) runNotifier(ctx context.Context) {
	for sig := range s.signalCh {
		if err := s.notifier.Notify(ctx, sig); err != nil {
			s.logger.Error(ctx, err, "Signal delivery failed", map[string]interface{}{"symbol": sig.Symbol, "action": string(sig.Action)})
		}
	}
}

// withRetry runs fn up to attempts times, doubling the delay after each failure.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}
