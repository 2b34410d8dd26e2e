package world

import (
	"sync"
	"time"

	"github.com/brassline/core/clock"
)

// calibrator tracks the offset between the shared beat source's
// SyncTime domain and the wall clock, per spec.md §4.8: "every second
// the World samples the external beat source's micros and
// SystemTime::now() eight times, picks the sample with the smallest
// measurement latency, and records an offset." With the bundled
// internalBeatSource this offset stays near zero (both already derive
// from the same process wall clock); it matters once a true external
// sync source (Ableton Link, a networked peer clock) is plugged in
// behind clock.BeatSource, whose Micros() may drift from local wall
// time.
type calibrator struct {
	clk *clock.Clock

	mu         sync.RWMutex
	offsetNano int64 // wallNanos - sourceMicros*1000, from the best sample
}

func newCalibrator(clk *clock.Clock) *calibrator {
	return &calibrator{clk: clk}
}

func (c *calibrator) run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-stop:
			return
		}
	}
}

// sample takes 8 paired readings of (wall time, source micros) and
// keeps the one with the smallest measured call latency, on the theory
// that a shorter round trip means less uncertainty about which instant
// the source reading corresponds to.
func (c *calibrator) sample() {
	var bestLatency time.Duration = -1
	var bestOffset int64

	for i := 0; i < 8; i++ {
		before := time.Now()
		srcMicros := c.clk.Micros()
		after := time.Now()

		latency := after.Sub(before)
		mid := before.Add(latency / 2)
		offset := mid.UnixNano() - int64(srcMicros)*1000

		if bestLatency < 0 || latency < bestLatency {
			bestLatency = latency
			bestOffset = offset
		}
	}

	c.mu.Lock()
	c.offsetNano = bestOffset
	c.mu.Unlock()
}

// WallClockAt converts a SyncTime instant to an estimated wall-clock
// time using the most recent calibration sample.
func (c *calibrator) WallClockAt(target clock.SyncTime) time.Time {
	c.mu.RLock()
	offset := c.offsetNano
	c.mu.RUnlock()
	return time.Unix(0, int64(target)*1000+offset)
}

// WallClockAt exposes the World's calibrated Link↔wall-clock offset,
// used by an audio-engine consumer that needs an absolute wall-clock
// deadline rather than a SyncTime.
func (w *World) WallClockAt(target clock.SyncTime) time.Time {
	return w.calib.WallClockAt(target)
}
