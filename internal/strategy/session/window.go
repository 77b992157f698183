package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a local time of day in minutes since midnight.
type Clock int

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ClockOf returns the wall-clock time of day of t in loc.
func ClockOf(t time.Time, loc *time.Location) Clock {
	if loc != nil {
		t = t.In(loc)
	}
	return NewClock(t.Hour(), t.Minute())
}

// ParseClock accepts "09:15", "0915" and "915".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	var hour, minute int
	var err error
	if h, m, ok := strings.Cut(s, ":"); ok {
		if hour, err = strconv.Atoi(h); err == nil {
			minute, err = strconv.Atoi(m)
		}
	} else {
		var hhmm int
		hhmm, err = strconv.Atoi(s)
		hour, minute = hhmm/100, hhmm%100
	}
	if err != nil || s == "" {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewClock(hour, minute), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is the intraday trading window of an exchange.
type Window struct {
	Start      Clock
	End        Clock // last tradable candle and forced square-off time
	LunchStart Clock
	LunchEnd   Clock
	AvoidLunch bool
	Location   *time.Location
}

// DefaultWindow returns the NSE cash session 09:15-15:25 with a 12:00-13:30
// lunch pause that is off unless AvoidLunch is set.
func DefaultWindow(loc *time.Location) Window {
	return Window{
		Start:      NewClock(9, 15),
		End:        NewClock(15, 25),
		LunchStart: NewClock(12, 0),
		LunchEnd:   NewClock(13, 30),
		Location:   loc,
	}
}

// Validate checks that the window is well formed.
func (w Window) Validate() error {
	if w.Start > w.End {
		return fmt.Errorf("trading start %s is after end %s", w.Start, w.End)
	}
	if w.AvoidLunch && w.LunchStart > w.LunchEnd {
		return fmt.Errorf("lunch start %s is after lunch end %s", w.LunchStart, w.LunchEnd)
	}
	return nil
}

// CanTrade reports whether entries are allowed at t. Both bounds are inclusive.
func (w Window) CanTrade(t time.Time) bool {
	c := ClockOf(t, w.Location)
	if c < w.Start || c > w.End {
		return false
	}
	if w.AvoidLunch && c >= w.LunchStart && c <= w.LunchEnd {
		return false
	}
	return true
}

// IsSquareOff reports whether t is the session end candle.
func (w Window) IsSquareOff(t time.Time) bool {
	return ClockOf(t, w.Location) == w.End
}
