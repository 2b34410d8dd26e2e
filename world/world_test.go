package world

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/device"
	"github.com/brassline/core/logging"
)

type recordingDevice struct {
	mu   sync.Mutex
	kind device.Kind
	sent []device.Payload
}

func (d *recordingDevice) Address() string     { return "test" }
func (d *recordingDevice) Kind() device.Kind   { return d.kind }
func (d *recordingDevice) Connect() error      { return nil }
func (d *recordingDevice) Flush() error        { return nil }
func (d *recordingDevice) Send(p device.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, p)
	return nil
}
func (d *recordingDevice) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type stubLog struct{ lines []string }

func (s *stubLog) Info(msg string, kv ...any) { s.lines = append(s.lines, msg) }

func testClock() *clock.Clock {
	src := clock.NewInternalBeatSource(120, nil)
	src.Enable()
	return clock.NewClock(src, 4)
}

func TestWorldDispatchesPastDueMessageImmediately(t *testing.T) {
	dm := device.NewDeviceMap(&stubLog{})
	rec := &recordingDevice{kind: device.KindOscOut}
	slot, _ := dm.Bind("osc", rec)

	w := New(dm, testClock(), logging.New(io.Discard, log.ErrorLevel))
	w.Start()
	defer w.Stop()

	w.Submit([]device.TimedPayload{{At: 0, Payload: device.Payload{Kind: device.KindOscOut, Slot: slot, OSCAddr: "/x"}}})

	deadline := time.After(time.Second)
	for rec.Count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for dispatch")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestWorldToleratesUnboundSlot(t *testing.T) {
	dm := device.NewDeviceMap(&stubLog{})
	w := New(dm, testClock(), logging.New(io.Discard, log.ErrorLevel))
	w.Start()
	defer w.Stop()

	w.Submit([]device.TimedPayload{{At: 0, Payload: device.Payload{Kind: device.KindMidiOut, Slot: 99}}})

	time.Sleep(20 * time.Millisecond)
}

func TestEffectiveDispatchAtBiasesMidiEarlier(t *testing.T) {
	tp := device.TimedPayload{At: 10_000, Payload: device.Payload{Kind: device.KindMidiOut}}
	got := effectiveDispatchAt(tp, 0)
	if got != 10_000-2_000 {
		t.Fatalf("expected midi bias of 2ms, got %d", got)
	}
}

func TestEffectiveDispatchAtLeavesOscAlone(t *testing.T) {
	tp := device.TimedPayload{At: 10_000, Payload: device.Payload{Kind: device.KindOscOut}}
	got := effectiveDispatchAt(tp, 0)
	if got != 10_000 {
		t.Fatalf("expected osc dispatch at the nominal target, got %d", got)
	}
}
