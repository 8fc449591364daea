package stream

import "time"

// RateTracker counts samples between ticks and reports the ingestion rate in samples per second.
type RateTracker struct {
	count    int
	lastTick time.Time
	rate     float64
}

func NewRateTracker(now time.Time) *RateTracker {
	return &RateTracker{lastTick: now}
}

func (r *RateTracker) Add(n int) {
	r.count += n
}

// Tick computes count / elapsed seconds since the previous tick, stores it as the current rate and resets the
// count.
func (r *RateTracker) Tick(now time.Time) float64 {
	elapsed := now.Sub(r.lastTick).Seconds()
	if elapsed > 0 {
		r.rate = float64(r.count) / elapsed
	}
	r.lastTick = now
	r.count = 0
	return r.rate
}

func (r *RateTracker) Rate() float64 {
	return r.rate
}

func (r *RateTracker) Reset(now time.Time) {
	r.count = 0
	r.rate = 0
	r.lastTick = now
}
