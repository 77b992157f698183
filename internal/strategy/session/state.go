package session

import (
	"math"
	"time"

	"breakoutBot/internal/domain"
)

// State is the date-dependent bookkeeping of one symbol.
type State struct {
	Today      time.Time // midnight of the current trading date, zero before the first candle
	LongTaken  bool
	ShortTaken bool

	PDH      float64
	PDL      float64
	HasRange bool // PDH and PDL are undefined while false
}

// DateOf returns local midnight of t's calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// OnCandle rolls the state over when candle starts a new trading date. The
// taken flags are cleared and the previous-day range is rebuilt from history
// candles dated strictly before the new date. It reports whether a rollover
// happened.
func (s *State) OnCandle(candle *domain.Candle, history []*domain.Candle, loc *time.Location) bool {
	date := DateOf(candle.OpenTime, loc)
	if !s.Today.IsZero() && date.Equal(s.Today) {
		return false
	}

	s.Today = date
	s.LongTaken = false
	s.ShortTaken = false
	s.PDH, s.PDL, s.HasRange = PreviousDayRange(history, date, loc)
	return true
}

// MarkTaken records an entry on side for the current date.
func (s *State) MarkTaken(side domain.Side) {
	if side == domain.Short {
		s.ShortTaken = true
		return
	}
	s.LongTaken = true
}

// Taken reports whether side was already entered today.
func (s *State) Taken(side domain.Side) bool {
	if side == domain.Short {
		return s.ShortTaken
	}
	return s.LongTaken
}

// PreviousDayRange returns max(high) and min(low) of the latest trading date
// in candles that lies strictly before date. Earlier dates are ignored, so a
// weekend or holiday gap resolves to the last session held. ok is false when
// there is none.
func PreviousDayRange(candles []*domain.Candle, date time.Time, loc *time.Location) (high, low float64, ok bool) {
	var prev time.Time
	for _, c := range candles {
		d := DateOf(c.OpenTime, loc)
		if d.Before(date) && d.After(prev) {
			prev = d
		}
	}
	if prev.IsZero() {
		return 0, 0, false
	}

	high, low = math.Inf(-1), math.Inf(1)
	for _, c := range candles {
		if !DateOf(c.OpenTime, loc).Equal(prev) {
			continue
		}
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	return high, low, true
}
