package candles

import (
	"errors"
	"math"
	"testing"
	"time"

	"breakoutBot/internal/domain"
	"breakoutBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(Config{Symbol: "INFY", Interval: 5 * time.Minute, Location: ist})
	require.NoError(t, err)
	return agg
}

func tickAt(hh, mm, ss int, price, qty float64) domain.Tick {
	return domain.Tick{
		Symbol:    "INFY",
		EventTime: time.Date(2025, 12, 5, hh, mm, ss, 0, ist).UTC(),
		Price:     price,
		Quantity:  qty,
	}
}

func TestAggregator_OpensAndUpdatesCandle(t *testing.T) {
	agg := newTestAggregator(t)

	ev, err := agg.Ingest(tickAt(9, 16, 10, 100, 5))
	require.NoError(t, err)
	assert.Equal(t, Opened, ev.Kind)
	assert.Nil(t, ev.Finalized)
	assert.Equal(t, time.Date(2025, 12, 5, 9, 15, 0, 0, ist).Unix(), ev.Candle.OpenTime.Unix())
	assert.Equal(t, "5m", ev.Candle.Interval)

	ev, err = agg.Ingest(tickAt(9, 17, 0, 103, 2))
	require.NoError(t, err)
	assert.Equal(t, Updated, ev.Kind)

	ev, err = agg.Ingest(tickAt(9, 19, 59, 99, 3))
	require.NoError(t, err)
	assert.Equal(t, Updated, ev.Kind)

	c := ev.Candle
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 103.0, c.High)
	assert.Equal(t, 99.0, c.Low)
	assert.Equal(t, 99.0, c.Close)
	assert.Equal(t, 10.0, c.Volume)
}

func TestAggregator_FinalizesOnNextBucket(t *testing.T) {
	agg := newTestAggregator(t)

	_, err := agg.Ingest(tickAt(9, 16, 0, 100, 1))
	require.NoError(t, err)
	ev, err := agg.Ingest(tickAt(9, 20, 0, 101, 4))
	require.NoError(t, err)

	require.Equal(t, Opened, ev.Kind)
	require.NotNil(t, ev.Finalized)
	assert.Equal(t, 100.0, ev.Finalized.Close)
	assert.Equal(t, time.Date(2025, 12, 5, 9, 20, 0, 0, ist).Unix(), ev.Candle.OpenTime.Unix())
	assert.Equal(t, 101.0, ev.Candle.Open)
	assert.Equal(t, 4.0, ev.Candle.Volume)
}

func TestAggregator_RejectsStaleTicks(t *testing.T) {
	agg := newTestAggregator(t)

	_, err := agg.Ingest(tickAt(9, 16, 0, 100, 1))
	require.NoError(t, err)
	ev, err := agg.Ingest(tickAt(9, 21, 0, 101, 1))
	require.NoError(t, err)
	finalized := *ev.Finalized

	_, err = agg.Ingest(tickAt(9, 18, 0, 250, 100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrStaleTick))

	assert.Equal(t, finalized, *ev.Finalized, "finalized candle must not change")
	assert.Equal(t, 101.0, agg.Current().High)
}

func TestAggregator_RejectsMalformedTicks(t *testing.T) {
	tests := []struct {
		name string
		tick domain.Tick
	}{
		{name: "zero time", tick: domain.Tick{Symbol: "INFY", Price: 1, Quantity: 1}},
		{name: "zero price", tick: tickAt(9, 16, 0, 0, 1)},
		{name: "negative price", tick: tickAt(9, 16, 0, -3, 1)},
		{name: "NaN price", tick: tickAt(9, 16, 0, math.NaN(), 1)},
		{name: "negative quantity", tick: tickAt(9, 16, 0, 100, -1)},
		{name: "infinite quantity", tick: tickAt(9, 16, 0, 100, math.Inf(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newTestAggregator(t)
			_, err := agg.Ingest(tt.tick)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ports.ErrInvalidTick))
			assert.Nil(t, agg.Current())
		})
	}
}

func TestAggregator_ResumeContinuesSeededCandle(t *testing.T) {
	agg := newTestAggregator(t)
	seeded := &domain.Candle{
		Symbol: "INFY", Interval: "5m",
		OpenTime: time.Date(2025, 12, 5, 9, 15, 0, 0, ist),
		Open:     100, High: 101, Low: 99, Close: 100.5, Volume: 10,
	}
	agg.Resume(seeded)

	ev, err := agg.Ingest(tickAt(9, 18, 0, 102, 1))
	require.NoError(t, err)
	assert.Equal(t, Updated, ev.Kind)
	assert.Equal(t, 102.0, seeded.High)

	_, err = agg.Ingest(tickAt(9, 10, 0, 102, 1))
	assert.True(t, errors.Is(err, ports.ErrStaleTick))
}

func TestBucketStart_UsesLocalWallClock(t *testing.T) {
	// 03:50 UTC is 09:20 IST; a one hour bucket must start at 09:00 IST, not 09:30.
	ts := time.Date(2025, 12, 5, 3, 50, 0, 0, time.UTC)
	got := BucketStart(ts, time.Hour, ist)
	assert.Equal(t, time.Date(2025, 12, 5, 9, 0, 0, 0, ist).Unix(), got.Unix())
	assert.Equal(t, ist, got.Location())
}

func TestIntervalLabelAndParse(t *testing.T) {
	tests := []struct {
		label string
		dur   time.Duration
	}{
		{"1m", time.Minute},
		{"5m", 5 * time.Minute},
		{"1h", time.Hour},
		{"1d", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			d, err := ParseInterval(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.dur, d)
			assert.Equal(t, tt.label, IntervalLabel(tt.dur))
		})
	}

	_, err := ParseInterval("abc")
	assert.Error(t, err)
	_, err = ParseInterval("0d")
	assert.Error(t, err)
}
