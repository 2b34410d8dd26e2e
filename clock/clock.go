// Package clock implements the shared musical timebase: conversion
// between SyncTime (microseconds), beats and bars, driven by an
// external beat source.
package clock

import (
	"sync"
	"sync/atomic"
)

// SyncTime is a 64-bit microsecond instant in the shared musical timebase.
type SyncTime = uint64

// MinTempo is the lower clamp applied to any tempo change, avoiding
// division hazards near zero BPM.
const MinTempo = 20.0

// TimeSpanKind tags which variant a TimeSpan holds.
type TimeSpanKind int

const (
	SpanMicros TimeSpanKind = iota
	SpanBeats
	SpanFrames
)

// TimeSpan is a sum variant: absolute microseconds, beats
// (tempo-relative), or frames (line-relative). Frames conversion
// requires the owning line's frame length in beats, so it is not
// resolvable by Clock alone; callers use AsMicros with frameLengthBeats=0
// for spans that are known not to be Frames.
type TimeSpan struct {
	Kind   TimeSpanKind
	Micros SyncTime
	Beats  float64
	Frames float64
}

func Micros(m SyncTime) TimeSpan { return TimeSpan{Kind: SpanMicros, Micros: m} }
func Beats(b float64) TimeSpan   { return TimeSpan{Kind: SpanBeats, Beats: b} }
func Frames(f float64) TimeSpan  { return TimeSpan{Kind: SpanFrames, Frames: f} }

// AsMicros resolves the span to an absolute microsecond duration.
// frameLengthBeats is the owning line's per-frame length in beats and
// is only consulted for the Frames variant.
func (t TimeSpan) AsMicros(c *Clock, frameLengthBeats float64) SyncTime {
	switch t.Kind {
	case SpanMicros:
		return t.Micros
	case SpanBeats:
		return c.BeatsToMicros(t.Beats)
	case SpanFrames:
		return c.BeatsToMicros(t.Frames * frameLengthBeats)
	default:
		return 0
	}
}

// BeatSource is the external process-wide beat synchronisation
// source: tempo and shared bar phase, analogous to an Ableton-Link
// style session. It is a singleton with explicit lifecycle: Enable at
// boot, Disable at shutdown.
type BeatSource interface {
	Enable()
	Disable()
	Micros() SyncTime
	BeatAtTime(micros SyncTime, quantum float64) float64
	TimeAtBeat(beat float64, quantum float64) SyncTime
	Tempo() float64
	SetTempo(tempo float64, atMicros SyncTime)
}

// internalBeatSource is a free-running software clock: no external
// peers, tempo and phase are purely local state. It is the default
// BeatSource when no hardware/network sync is configured.
type internalBeatSource struct {
	mu       sync.RWMutex
	tempo    float64
	epoch    SyncTime // micros at beat 0
	started  atomic.Bool
	nowMicro func() SyncTime
}

// NewInternalBeatSource creates a free-running beat source at the
// given starting tempo. nowMicro is injectable for tests; pass nil to
// use a real monotonic wall clock.
func NewInternalBeatSource(tempo float64, nowMicro func() SyncTime) BeatSource {
	if nowMicro == nil {
		nowMicro = wallClockMicros
	}
	if tempo < MinTempo {
		tempo = MinTempo
	}
	return &internalBeatSource{tempo: tempo, nowMicro: nowMicro}
}

func (b *internalBeatSource) Enable() {
	if b.started.CompareAndSwap(false, true) {
		b.mu.Lock()
		b.epoch = b.nowMicro()
		b.mu.Unlock()
	}
}

func (b *internalBeatSource) Disable() {
	b.started.Store(false)
}

func (b *internalBeatSource) Micros() SyncTime { return b.nowMicro() }

func (b *internalBeatSource) Tempo() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tempo
}

func (b *internalBeatSource) SetTempo(tempo float64, atMicros SyncTime) {
	if tempo < MinTempo {
		tempo = MinTempo
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-anchor the epoch so the beat at atMicros is continuous across
	// the tempo change (no jump in phase at the moment of the edit).
	// epoch is the instant at which beat 0 occurs, so solving
	// atMicros = epoch + beatAtChange*60e6/tempo for epoch:
	beatAtChange := beatAtTimeLocked(b.tempo, b.epoch, atMicros)
	b.tempo = tempo
	// The epoch may fall before micros 0; it is then kept with unsigned
	// wrap-around, which the signed delta arithmetic below undoes.
	b.epoch = atMicros - SyncTime(int64(beatAtChange*60_000_000.0/tempo))
}

func (b *internalBeatSource) BeatAtTime(micros SyncTime, quantum float64) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	beat := beatAtTimeLocked(b.tempo, b.epoch, micros)
	if quantum > 0 {
		// the free-running source has no shared bar phase: the beat count
		// is returned unwrapped whatever the quantum
		return beat
	}
	return beat
}

func (b *internalBeatSource) TimeAtBeat(beat float64, _ float64) SyncTime {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return timeAtBeatLocked(b.tempo, beat, b.epoch)
}

func beatAtTimeLocked(tempo float64, epoch SyncTime, micros SyncTime) float64 {
	if tempo <= 0 {
		return 0
	}
	deltaMicros := float64(int64(micros - epoch))
	return deltaMicros * tempo / 60_000_000.0
}

// timeAtBeatLocked returns the micros instant at which `beat` occurs,
// given the current tempo and epoch (the instant at which beat 0
// occurs) — the inverse of beatAtTimeLocked.
func timeAtBeatLocked(tempo float64, beat float64, epoch SyncTime) SyncTime {
	if tempo <= 0 {
		return epoch
	}
	return epoch + SyncTime(int64(beat*60_000_000.0/tempo))
}

// Clock wraps a BeatSource and freezes its tempo/phase reading for
// the duration of a logical tick via CaptureAppState, so that all
// beat<->time conversions within one scheduler iteration are mutually
// consistent, per spec §4.1.
type Clock struct {
	source BeatSource
	drift  SyncTime
	quantum float64

	mu          sync.RWMutex
	cachedTempo float64
	cachedBeat  float64
	cachedAt    SyncTime
}

// NewClock wraps a BeatSource. quantum is the shared bar length in
// beats (the musical "Bar / Quantum" of the glossary).
func NewClock(source BeatSource, quantum float64) *Clock {
	c := &Clock{source: source, quantum: quantum}
	c.CaptureAppState()
	return c
}

// WithDrift returns a shallow copy biased by the given SCHEDULED_DRIFT,
// mirroring the teacher repo's Clock::with_drift.
func (c *Clock) WithDrift(drift SyncTime) *Clock {
	cp := *c
	cp.drift = drift
	return &cp
}

func (c *Clock) Drift() SyncTime { return c.drift }

// CaptureAppState freezes tempo/phase for the current tick.
func (c *Clock) CaptureAppState() {
	now := c.source.Micros()
	tempo := c.source.Tempo()
	beat := c.source.BeatAtTime(now, c.quantum)

	c.mu.Lock()
	c.cachedTempo = tempo
	c.cachedBeat = beat
	c.cachedAt = now
	c.mu.Unlock()
}

// Micros returns the live current instant (not the captured one): the
// invariant is that Micros is strictly non-decreasing.
func (c *Clock) Micros() SyncTime { return c.source.Micros() }

// Beat returns the captured beat reading for this tick.
func (c *Clock) Beat() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cachedBeat
}

// Tempo returns the captured tempo for this tick.
func (c *Clock) Tempo() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cachedTempo
}

// SetTempo commits immediately to the beat source (the Scheduler is
// responsible for deferring the *message* that calls this, per
// §4.7's ActionTiming; the Clock itself has no notion of deferral).
func (c *Clock) SetTempo(tempo float64) {
	c.source.SetTempo(tempo, c.source.Micros())
}

func (c *Clock) Quantum() float64 { return c.quantum }

// DateAtBeat returns the absolute SyncTime at which `beat` occurs,
// using the live beat source (not the captured snapshot), since
// callers use this for scheduling future instants.
func (c *Clock) DateAtBeat(beat float64) SyncTime {
	return c.source.TimeAtBeat(beat, c.quantum)
}

// BeatAtDate is the inverse of DateAtBeat.
func (c *Clock) BeatAtDate(date SyncTime) float64 {
	return c.source.BeatAtTime(date, c.quantum)
}

// MicrosToBeats converts a microsecond duration to a beat duration at
// the captured tempo.
func (c *Clock) MicrosToBeats(micros SyncTime) float64 {
	tempo := c.Tempo()
	if tempo <= 0 {
		return 0
	}
	return float64(micros) * tempo / 60_000_000.0
}

// BeatsToMicros converts a beat duration to microseconds at the
// captured tempo. Zero tempo yields zero micros (no failure mode).
func (c *Clock) BeatsToMicros(beats float64) SyncTime {
	tempo := c.Tempo()
	if tempo <= 0 {
		return 0
	}
	micros := beats * 60_000_000.0 / tempo
	if micros < 0 {
		return 0
	}
	return SyncTime(micros)
}
