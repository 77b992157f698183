package strategies

import (
	"context"
	"math"
	"testing"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"
	"breakoutBot/internal/strategy/indicators"
	"breakoutBot/internal/strategy/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger implements ports.Logger for testing
type MockLogger struct{}

func (m *MockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *MockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *MockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *MockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var ist = time.FixedZone("IST", 5*3600+30*60)

func newTestBreakout(t *testing.T, mutate func(*BreakoutConfig)) *Breakout {
	t.Helper()
	cfg := DefaultBreakoutConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := NewBreakout(cfg, &MockLogger{})
	require.NoError(t, err)
	return b
}

func bar(hh, mm int, low, high, close, volume float64) *domain.Candle {
	return &domain.Candle{
		Symbol: "INFY", Interval: "5m",
		OpenTime: time.Date(2025, 12, 5, hh, mm, 0, 0, ist),
		Open:     close, High: high, Low: low, Close: close, Volume: volume,
	}
}

// longSetup is the documented example: PDH 115, prior close 114.9, close 115.8,
// uptrend, volume 3x the average and 0.3% away from VWAP.
func longSetup() (*State, Input) {
	c := bar(10, 0, 114.95, 115.9, 115.8, 300)
	st := &State{Session: &session.State{
		Today: time.Date(2025, 12, 5, 0, 0, 0, 0, ist), PDH: 115, PDL: 100, HasRange: true,
	}}
	in := Input{
		Candle: c,
		Prev:   bar(9, 55, 114.5, 115, 114.9, 100),
		Indicators: indicators.Snapshot{
			TrendAvg: 110, TrendReady: true,
			VWAP: 115.8 / 1.003, VWAPReady: true,
			VolAvg: 100, VolReady: true,
			DistancePct: 0.3, DistanceReady: true,
		},
		CanTrade: true,
	}
	return st, in
}

func TestNewBreakout(t *testing.T) {
	tests := []struct {
		name        string
		config      BreakoutConfig
		logger      ports.Logger
		expectError bool
	}{
		{name: "Valid configuration", config: DefaultBreakoutConfig(), logger: &MockLogger{}},
		{name: "Nil logger", config: DefaultBreakoutConfig(), logger: nil, expectError: true},
		{name: "Zero risk reward", config: BreakoutConfig{VolMultiplier: 1.5, VWAPDistancePct: 0.15}, logger: &MockLogger{}, expectError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBreakout(tt.config, tt.logger)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "PDH_PDL_BREAKOUT", b.Name())
			assert.Equal(t, 210, b.RequiredDataPoints())
		})
	}
}

func TestBreakout_LongEntryExample(t *testing.T) {
	b := newTestBreakout(t, nil)
	st, in := longSetup()

	sig := b.Evaluate(context.Background(), st, in)
	require.NotNil(t, sig)

	wantSL := math.Min(in.Indicators.VWAP*0.9992, in.Candle.Low)
	assert.Equal(t, domain.SignalEntry, sig.Kind)
	assert.Equal(t, domain.Buy, sig.Action)
	assert.Equal(t, domain.Long, sig.Side)
	assert.Equal(t, 115.8, sig.EntryPrice)
	assert.InDelta(t, wantSL, sig.StopLoss, 1e-9)
	assert.InDelta(t, 115.8+1.6*(115.8-wantSL), sig.TakeProfit, 1e-9)

	require.NotNil(t, st.Position)
	assert.Equal(t, domain.Long, st.Position.Side)
	assert.True(t, st.Session.LongTaken)
	assert.False(t, st.Session.ShortTaken)
}

func TestBreakout_ShortEntry(t *testing.T) {
	b := newTestBreakout(t, nil)
	c := bar(11, 0, 99.1, 99.6, 99.2, 400)
	st := &State{Session: &session.State{PDH: 110, PDL: 100, HasRange: true}}
	in := Input{
		Candle: c,
		Prev:   bar(10, 55, 100, 100.5, 100.2, 100),
		Indicators: indicators.Snapshot{
			TrendAvg: 105, TrendReady: true,
			VWAP: 100, VWAPReady: true,
			VolAvg: 100, VolReady: true,
			DistancePct: 0.8, DistanceReady: true,
		},
		CanTrade: true,
	}

	sig := b.Evaluate(context.Background(), st, in)
	require.NotNil(t, sig)
	assert.Equal(t, domain.Sell, sig.Action)
	assert.Equal(t, domain.Short, sig.Side)
	assert.InDelta(t, 100.08, sig.StopLoss, 1e-9)
	assert.InDelta(t, 99.2-1.6*(100.08-99.2), sig.TakeProfit, 1e-9)
	assert.True(t, st.Session.ShortTaken)
}

func TestBreakout_EntryPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(st *State, in *Input)
	}{
		{name: "outside trading window", mutate: func(_ *State, in *Input) { in.CanTrade = false }},
		{name: "volume average undefined", mutate: func(_ *State, in *Input) { in.Indicators.VolReady = false }},
		{name: "volume not above threshold", mutate: func(_ *State, in *Input) { in.Candle.Volume = 150 }},
		{name: "too close to vwap", mutate: func(_ *State, in *Input) { in.Indicators.DistancePct = 0.1 }},
		{name: "distance undefined", mutate: func(_ *State, in *Input) { in.Indicators.DistanceReady = false }},
		{name: "trend not warmed up", mutate: func(_ *State, in *Input) { in.Indicators.TrendReady = false }},
		{name: "close below trend", mutate: func(_ *State, in *Input) { in.Indicators.TrendAvg = 120 }},
		{name: "previous close already above pdh", mutate: func(_ *State, in *Input) { in.Prev.Close = 115.1 }},
		{name: "no previous candle", mutate: func(_ *State, in *Input) { in.Prev = nil }},
		{name: "no previous day range", mutate: func(st *State, _ *Input) { st.Session.HasRange = false }},
		{name: "long already taken today", mutate: func(st *State, _ *Input) { st.Session.LongTaken = true }},
		{name: "non-positive risk", mutate: func(_ *State, in *Input) {
			in.Candle.Low = 116
			in.Indicators.VWAP = 200
		}},
	}

	b := newTestBreakout(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, in := longSetup()
			tt.mutate(st, &in)
			assert.Nil(t, b.Evaluate(context.Background(), st, in))
			assert.Nil(t, st.Position)
			assert.False(t, st.Session.LongTaken)
		})
	}
}

func TestBreakout_StopLossFillsAtLevel(t *testing.T) {
	b := newTestBreakout(t, nil)
	st := &State{
		Session: &session.State{},
		Position: &domain.Position{
			Symbol: "INFY", Side: domain.Long, EntryPrice: 115.8, StopLoss: 114.0, TakeProfit: 118.5,
		},
	}

	sig := b.Evaluate(context.Background(), st, Input{Candle: bar(10, 5, 113.8, 115, 114.2, 10), CanTrade: true})
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalExit, sig.Kind)
	assert.Equal(t, domain.ExitStopLoss, sig.Reason)
	assert.Equal(t, 114.0, sig.ExitPrice)
	assert.Nil(t, st.Position)
}

func TestBreakout_ExitPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		pos        domain.Position
		candle     *domain.Candle
		wantReason domain.ExitReason
		wantPrice  float64
	}{
		{
			name:       "long candle spans stop and target",
			pos:        domain.Position{Side: domain.Long, EntryPrice: 100, StopLoss: 99, TakeProfit: 101.6},
			candle:     bar(10, 5, 98, 103, 100, 10),
			wantReason: domain.ExitStopLoss,
			wantPrice:  99,
		},
		{
			name:       "long target only",
			pos:        domain.Position{Side: domain.Long, EntryPrice: 100, StopLoss: 99, TakeProfit: 101.6},
			candle:     bar(10, 5, 99.5, 102, 101.9, 10),
			wantReason: domain.ExitTakeProfit,
			wantPrice:  101.6,
		},
		{
			name:       "short candle spans stop and target",
			pos:        domain.Position{Side: domain.Short, EntryPrice: 100, StopLoss: 101, TakeProfit: 98.4},
			candle:     bar(10, 5, 97, 102, 100, 10),
			wantReason: domain.ExitStopLoss,
			wantPrice:  101,
		},
		{
			name:       "short target only",
			pos:        domain.Position{Side: domain.Short, EntryPrice: 100, StopLoss: 101, TakeProfit: 98.4},
			candle:     bar(10, 5, 98, 100.5, 98.2, 10),
			wantReason: domain.ExitTakeProfit,
			wantPrice:  98.4,
		},
	}

	b := newTestBreakout(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := tt.pos
			st := &State{Position: &pos, Session: &session.State{}}
			sig := b.Evaluate(context.Background(), st, Input{Candle: tt.candle, CanTrade: true})
			require.NotNil(t, sig)
			assert.Equal(t, tt.wantReason, sig.Reason)
			assert.Equal(t, tt.wantPrice, sig.ExitPrice)
			assert.Equal(t, tt.pos.Side, sig.Side)
		})
	}
}

func TestBreakout_NoEntryOnExitUpdate(t *testing.T) {
	b := newTestBreakout(t, nil)
	st, in := longSetup()
	st.Position = &domain.Position{Symbol: "INFY", Side: domain.Short, EntryPrice: 110, StopLoss: 115.5, TakeProfit: 105}

	sig := b.Evaluate(context.Background(), st, in)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalExit, sig.Kind)
	assert.Nil(t, st.Position)
	assert.False(t, st.Session.LongTaken, "an exit update must not also enter")
}

func TestBreakout_HoldingPositionBlocksEntry(t *testing.T) {
	b := newTestBreakout(t, nil)
	st, in := longSetup()
	held := &domain.Position{Symbol: "INFY", Side: domain.Long, EntryPrice: 110, StopLoss: 100, TakeProfit: 130}
	st.Position = held

	assert.Nil(t, b.Evaluate(context.Background(), st, in))
	assert.Same(t, held, st.Position)
}

func TestBreakout_ForcedSquareOff(t *testing.T) {
	pos := domain.Position{Symbol: "INFY", Side: domain.Long, EntryPrice: 100, StopLoss: 90, TakeProfit: 130}
	candle := bar(15, 25, 99, 101, 100.5, 10)

	t.Run("enabled", func(t *testing.T) {
		b := newTestBreakout(t, func(c *BreakoutConfig) { c.ForcedSquareOff = true })
		p := pos
		st := &State{Position: &p, Session: &session.State{}}
		sig := b.Evaluate(context.Background(), st, Input{Candle: candle, SquareOff: true, CanTrade: true})
		require.NotNil(t, sig)
		assert.Equal(t, domain.ExitForcedSquareOff, sig.Reason)
		assert.Equal(t, 100.5, sig.ExitPrice)
		assert.Nil(t, st.Position)
	})

	t.Run("disabled", func(t *testing.T) {
		b := newTestBreakout(t, nil)
		p := pos
		st := &State{Position: &p, Session: &session.State{}}
		assert.Nil(t, b.Evaluate(context.Background(), st, Input{Candle: candle, SquareOff: true, CanTrade: true}))
		assert.NotNil(t, st.Position)
	})
}

func TestBreakout_OneEntryPerSidePerDay(t *testing.T) {
	b := newTestBreakout(t, nil)
	st, in := longSetup()

	require.NotNil(t, b.Evaluate(context.Background(), st, in))
	// Target hit closes the trade.
	exit := b.Evaluate(context.Background(), st, Input{Candle: bar(10, 5, 115.5, 130, 129, 10), CanTrade: true})
	require.NotNil(t, exit)
	require.Equal(t, domain.ExitTakeProfit, exit.Reason)

	// A second identical breakout on the same date is ignored.
	_, again := longSetup()
	assert.Nil(t, b.Evaluate(context.Background(), st, again))

	// A new date clears the flag.
	next := again.Candle.Clone()
	next.OpenTime = next.OpenTime.AddDate(0, 0, 1)
	require.True(t, st.Session.OnCandle(next, nil, ist))
	st.Session.PDH, st.Session.HasRange = 115, true
	again.Candle = next
	assert.NotNil(t, b.Evaluate(context.Background(), st, again))
}
