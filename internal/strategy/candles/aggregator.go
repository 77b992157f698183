package candles

import (
	"fmt"
	"math"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
)

// EventKind tells whether a tick opened a new candle or updated the open one.
type EventKind int

const (
	Opened EventKind = iota + 1
	Updated
)

func (k EventKind) String() string {
	switch k {
	case Opened:
		return "OPENED"
	case Updated:
		return "UPDATED"
	default:
		return "UNKNOWN"
	}
}

// Event is the result of ingesting one tick.
type Event struct {
	Kind EventKind
	// Candle is the currently open candle after the tick was applied.
	Candle *domain.Candle
	// Finalized is the candle closed by this tick, set only when Kind is Opened
	// and a previous candle existed.
	Finalized *domain.Candle
}

// Config holds the bucketing parameters of an Aggregator.
type Config struct {
	Symbol   string
	Interval time.Duration
	Location *time.Location
}

// Aggregator turns ticks of one symbol into fixed-duration OHLCV candles.
// It is not safe for concurrent use; one goroutine owns it.
type Aggregator struct {
	cfg     Config
	label   string
	current *domain.Candle
}

// NewAggregator creates an aggregator for a single symbol.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required for candle aggregator")
	}
	if cfg.Interval <= 0 || cfg.Interval > 24*time.Hour {
		return nil, fmt.Errorf("candle interval must be within (0, 24h], got %s", cfg.Interval)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Aggregator{cfg: cfg, label: IntervalLabel(cfg.Interval)}, nil
}

// Current returns the open candle, or nil before the first tick.
func (a *Aggregator) Current() *domain.Candle {
	return a.current
}

// Resume makes last the open candle so a seeded series continues without a gap.
// Ticks for buckets earlier than last are rejected afterwards.
func (a *Aggregator) Resume(last *domain.Candle) {
	if last == nil {
		return
	}
	a.current = last
}

// BucketStart floors t to the start of its bucket, measured in local wall-clock
// time from midnight of the configured location.
func (a *Aggregator) BucketStart(t time.Time) time.Time {
	return BucketStart(t, a.cfg.Interval, a.cfg.Location)
}

// Ingest applies a tick. Ticks for a bucket older than the open candle are
// rejected with ports.ErrStaleTick and never mutate finalized candles.
func (a *Aggregator) Ingest(tick domain.Tick) (Event, error) {
	if err := validateTick(tick); err != nil {
		return Event{}, err
	}

	bucket := a.BucketStart(tick.EventTime)

	if a.current != nil {
		switch {
		case bucket.Before(a.current.OpenTime):
			return Event{}, fmt.Errorf("%w: symbol %s tick at %s, open bucket %s",
				ports.ErrStaleTick, a.cfg.Symbol, tick.EventTime.In(a.cfg.Location).Format(time.RFC3339), a.current.OpenTime.Format(time.RFC3339))
		case bucket.Equal(a.current.OpenTime):
			c := a.current
			c.High = math.Max(c.High, tick.Price)
			c.Low = math.Min(c.Low, tick.Price)
			c.Close = tick.Price
			c.Volume += tick.Quantity
			return Event{Kind: Updated, Candle: c}, nil
		}
	}

	finalized := a.current
	a.current = &domain.Candle{
		Symbol:   a.cfg.Symbol,
		Interval: a.label,
		OpenTime: bucket,
		Open:     tick.Price,
		High:     tick.Price,
		Low:      tick.Price,
		Close:    tick.Price,
		Volume:   tick.Quantity,
	}
	return Event{Kind: Opened, Candle: a.current, Finalized: finalized}, nil
}

func validateTick(tick domain.Tick) error {
	switch {
	case tick.EventTime.IsZero():
		return fmt.Errorf("%w: missing event time", ports.ErrInvalidTick)
	case math.IsNaN(tick.Price) || math.IsInf(tick.Price, 0) || tick.Price <= 0:
		return fmt.Errorf("%w: price %v", ports.ErrInvalidTick, tick.Price)
	case math.IsNaN(tick.Quantity) || math.IsInf(tick.Quantity, 0) || tick.Quantity < 0:
		return fmt.Errorf("%w: quantity %v", ports.ErrInvalidTick, tick.Quantity)
	}
	return nil
}

// BucketStart floors t to a multiple of interval since local midnight in loc.
func BucketStart(t time.Time, interval time.Duration, loc *time.Location) time.Time {
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := local.Sub(midnight)
	return midnight.Add(offset - offset%interval)
}

// IntervalLabel renders a duration the way exchanges name intervals ("5m", "1h", "1d").
func IntervalLabel(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

// ParseInterval accepts exchange style labels ("1m", "5m", "1h", "1d") as well as Go durations.
func ParseInterval(s string) (time.Duration, error) {
	if n := len(s); n > 1 && s[n-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %q", s)
	}
	return d, nil
}
