package indicators

import (
	"breakoutBot/internal/domain"
)

// Tracker maintains the indicator state incrementally. Finalized candles are
// folded in with Advance; the still-open head candle is evaluated on top of
// that state without being committed, so repeated updates of the same candle
// cost O(1).
//
// Tracker and Compute agree for the same series: the EMA uses the same
// recursion, the VWAP sums are accumulated in series order, and the volume
// average reads a ring of the last VolumeLength-1 committed volumes.
type Tracker struct {
	cfg   Config
	alpha float64

	count int     // committed candles
	ema   float64 // EMA over committed closes
	pv    float64 // sum(close*volume) over committed candles
	vol   float64 // sum(volume) over committed candles

	ring    []float64 // last VolumeLength-1 committed volumes
	ringPos int
	ringLen int
	ringSum float64
}

// NewTracker creates an empty tracker.
func NewTracker(cfg Config) *Tracker {
	t := &Tracker{cfg: cfg, alpha: EMAAlpha(cfg.TrendLength)}
	if cfg.VolumeLength > 1 {
		t.ring = make([]float64, cfg.VolumeLength-1)
	}
	return t
}

// Len returns the number of committed candles.
func (t *Tracker) Len() int {
	return t.count
}

// Advance commits a finalized candle.
func (t *Tracker) Advance(c *domain.Candle) {
	if t.count == 0 {
		t.ema = c.Close
	} else {
		t.ema = emaStep(t.ema, c.Close, t.alpha)
	}
	t.pv += c.Close * c.Volume
	t.vol += c.Volume
	t.count++

	if len(t.ring) == 0 {
		return
	}
	if t.ringLen == len(t.ring) {
		t.ringSum -= t.ring[t.ringPos]
	} else {
		t.ringLen++
	}
	t.ring[t.ringPos] = c.Volume
	t.ringSum += c.Volume
	t.ringPos = (t.ringPos + 1) % len(t.ring)
}

// Evaluate returns the snapshot of the committed series extended by head.
// head is not committed.
func (t *Tracker) Evaluate(head *domain.Candle) Snapshot {
	var snap Snapshot
	if head == nil {
		return snap
	}

	n := t.count + 1

	if t.count == 0 {
		snap.TrendAvg = head.Close
	} else {
		snap.TrendAvg = emaStep(t.ema, head.Close, t.alpha)
	}
	snap.TrendReady = n >= t.cfg.MinCandles

	if n >= t.cfg.VolumeLength {
		snap.VolAvg = (t.ringSum + head.Volume) / float64(t.cfg.VolumeLength)
		snap.VolReady = true
	}

	pv := t.pv + head.Close*head.Volume
	vol := t.vol + head.Volume
	if vol > 0 {
		snap.VWAP = pv / vol
		snap.VWAPReady = true
	}

	snap.DistancePct, snap.DistanceReady = distancePct(head.Close, snap.VWAP, snap.VWAPReady)
	return snap
}

// Reset discards the state and commits candles in order. Used after the
// retained window was trimmed.
func (t *Tracker) Reset(candles []*domain.Candle) {
	*t = *NewTracker(t.cfg)
	for _, c := range candles {
		t.Advance(c)
	}
}
