// Package world implements the delivery loop of spec.md §4.8: a
// min-heap of pending TimedPayloads keyed by an effective dispatch
// instant (the nominal target adjusted per the protocol's latency
// policy), drained by a dedicated goroutine that never touches scene
// or execution state — only device handles. Grounded on the teacher's
// playback.Engine goroutine/stop-channel idiom (playback/playback.go),
// generalized from a fixed-tempo step loop to an arbitrary priority
// queue of outbound messages.
package world

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/device"
	"github.com/brassline/core/logging"
)

const (
	// midiEarlyThreshold compensates MIDI interface latency: a message
	// due within this margin is sent immediately; one further out is
	// dispatched this much before its nominal target.
	midiEarlyThreshold = 2 * time.Millisecond

	// audioLookahead is how far ahead of its nominal target an
	// audio-engine message is forwarded, so the receiving synthesis
	// thread has room to schedule it sample-accurately.
	audioLookahead = 20 * time.Millisecond

	// busyLoopMargin: once the next dispatch is due this soon, spin
	// instead of arming a timer (timer resolution would overshoot it).
	busyLoopMargin = 50 * time.Microsecond
)

// item is one heap entry: the payload plus the effective instant (in
// the same SyncTime domain as clock.Clock) it should be sent at, and a
// monotonic sequence number breaking ties in FIFO order.
type item struct {
	tp         device.TimedPayload
	dispatchAt clock.SyncTime
	seq        uint64
}

type priorityQueue []*item

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].dispatchAt == q[j].dispatchAt {
		return q[i].seq < q[j].seq
	}
	return q[i].dispatchAt < q[j].dispatchAt
}
func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)   { *q = append(*q, x.(*item)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// World owns the outgoing priority queue and every output device
// handle, per spec.md §5: the Scheduler never reaches into it beyond
// Submit.
type World struct {
	mu    sync.Mutex
	queue priorityQueue
	seq   uint64

	dm  *device.DeviceMap
	clk *clock.Clock
	log *logging.Logger

	inbound   chan device.TimedPayload
	stopCh    chan struct{}
	stoppedCh chan struct{}

	calib *calibrator
}

// New builds a World dispatching through dm, using clk for its notion
// of "now" (the same SyncTime domain every TimedPayload's At was
// computed in).
func New(dm *device.DeviceMap, clk *clock.Clock, log *logging.Logger) *World {
	return &World{
		dm:        dm,
		clk:       clk,
		log:       log,
		inbound:   make(chan device.TimedPayload, 256),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		calib:     newCalibrator(clk),
	}
}

// Start launches the delivery loop and the Link↔wall-clock calibration
// sampler in background goroutines.
func (w *World) Start() {
	go w.run()
	go w.calib.run(w.stopCh)
}

// Stop ends the delivery loop and waits for its goroutine to exit, then
// flushes every bound device to release any still-sounding MIDI notes.
// Payloads still queued when Stop is called are not dispatched.
func (w *World) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
	for _, slot := range w.dm.Slots() {
		if dev, ok := w.dm.Get(slot); ok {
			_ = dev.Flush()
		}
	}
}

// Submit enqueues every payload TranslateEvent produced for one
// ConcreteEvent. Order among payloads from a single Submit call is
// preserved by sequence number even if their dispatch instants tie.
func (w *World) Submit(tps []device.TimedPayload) {
	for _, tp := range tps {
		select {
		case w.inbound <- tp:
		case <-w.stopCh:
			return
		}
	}
}

func (w *World) now() clock.SyncTime { return w.clk.Micros() }

func (w *World) enqueue(tp device.TimedPayload) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	heap.Push(&w.queue, &item{tp: tp, dispatchAt: effectiveDispatchAt(tp, w.now()), seq: w.seq})
}

// effectiveDispatchAt applies the per-protocol dispatch policy of
// spec.md §4.8 by choosing the instant the message should actually
// leave the queue, rather than its nominal target: MIDI is pulled
// forward to absorb interface latency, audio-engine messages are
// pulled forward by a larger lookahead so the synthesis thread can
// schedule them precisely, OSC and Log fire as soon as they're due.
func effectiveDispatchAt(tp device.TimedPayload, now clock.SyncTime) clock.SyncTime {
	switch tp.Payload.Kind {
	case device.KindMidiOut:
		return biasEarlier(tp.At, midiEarlyThreshold, now)
	case device.KindAudioEngine:
		return biasEarlier(tp.At, audioLookahead, now)
	default: // OSC, Log
		return tp.At
	}
}

func biasEarlier(target clock.SyncTime, by time.Duration, now clock.SyncTime) clock.SyncTime {
	biasMicros := clock.SyncTime(by.Microseconds())
	if target <= biasMicros {
		return now
	}
	adjusted := target - biasMicros
	if adjusted < now {
		return now
	}
	return adjusted
}

// run is the dedicated delivery goroutine. It never blocks longer than
// the next due dispatch instant, and spins through the final
// busyLoopMargin rather than trusting timer-wakeup resolution to land
// within it.
func (w *World) run() {
	defer close(w.stoppedCh)

	for {
		wait, hasWork := w.nextWait()

		if hasWork && wait <= 0 {
			w.dispatchDue()
			continue
		}
		if hasWork && wait <= busyLoopMargin {
			continue
		}

		timeout := time.Hour
		if hasWork {
			timeout = wait
		}
		timer := time.NewTimer(timeout)
		select {
		case tp := <-w.inbound:
			w.enqueue(tp)
		case <-timer.C:
		case <-w.stopCh:
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

func (w *World) nextWait() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.queue.Len() == 0 {
		return 0, false
	}
	top := w.queue[0]
	now := w.now()
	if top.dispatchAt <= now {
		return 0, true
	}
	return time.Duration(top.dispatchAt-now) * time.Microsecond, true
}

func (w *World) dispatchDue() {
	now := w.now()
	var due []*item
	w.mu.Lock()
	for w.queue.Len() > 0 && w.queue[0].dispatchAt <= now {
		due = append(due, heap.Pop(&w.queue).(*item))
	}
	w.mu.Unlock()

	for _, it := range due {
		w.dispatchOne(it.tp)
	}
}

func (w *World) dispatchOne(tp device.TimedPayload) {
	dev, ok := w.dm.Get(tp.Payload.Slot)
	if !ok {
		w.logError(fmt.Sprintf("no device bound to slot %d", tp.Payload.Slot))
		return
	}
	if err := dev.Send(tp.Payload); err != nil {
		w.logError(fmt.Sprintf("send failed on slot %d (%s): %v", tp.Payload.Slot, dev.Kind(), err))
	}
}

func (w *World) logError(msg string) {
	w.log.Error(msg)
	if logDev := w.dm.Log(); logDev != nil {
		_ = logDev.Send(device.Payload{Kind: device.KindLog, LogMessage: msg})
	}
}
