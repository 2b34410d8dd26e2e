package device

import (
	"testing"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/vm"
	"gitlab.com/gomidi/midi/v2"
)

func newTranslateTestClock() *clock.Clock {
	src := clock.NewInternalBeatSource(120, func() clock.SyncTime { return 0 })
	src.Enable()
	return clock.NewClock(src, 4)
}

func TestTranslateEventUnboundSlotRoutesToLog(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	tps := TranslateEvent(vm.ConcreteEvent{Kind: vm.EventMidiNote, DeviceID: 7}, 0, newTranslateTestClock(), dm)
	if len(tps) != 1 || tps[0].Payload.Kind != KindLog {
		t.Fatalf("expected a single Log payload for unbound slot, got %+v", tps)
	}
}

// TestTranslateEventFirstTriggerIsJustOnOff checks that a fresh
// device's very first trigger of a note produces only the NoteOn and
// its generation-tagged trailing NoteOff -- there is nothing active
// yet, so no pre-roll NoteOff is warranted.
func TestTranslateEventFirstTriggerIsJustOnOff(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	out, _ := OpenMidiOutForTest()
	slot, _ := dm.Bind("out", out)

	tps := TranslateEvent(vm.ConcreteEvent{
		Kind: vm.EventMidiNote, Note: 60, Vel: 100, Chan: 2, Dur: 500_000, DeviceID: slot,
	}, 1_000_000, newTranslateTestClock(), dm)

	if len(tps) != 2 {
		t.Fatalf("expected on/off only for a first trigger, got %d payloads", len(tps))
	}
	if tps[0].Payload.MIDIBytes[0] != 0x90|2 {
		t.Fatalf("expected note-on status byte, got %02X", tps[0].Payload.MIDIBytes[0])
	}
	if tps[0].At != 1_000_000 {
		t.Fatalf("expected note-on at trigger instant, got %d", tps[0].At)
	}
	if tps[1].Payload.MIDIBytes[0] != 0x80|2 {
		t.Fatalf("expected trailing note-off status byte, got %02X", tps[1].Payload.MIDIBytes[0])
	}
	if tps[1].At != 1_000_000+500_000-preRollEpsilonMicros {
		t.Fatalf("expected trailing note-off biased by epsilon, got %d", tps[1].At)
	}
	if tps[1].Payload.NoteOffGeneration == 0 {
		t.Fatalf("expected trailing note-off to carry a nonzero generation tag")
	}
}

// TestTranslateEventRetriggerEmitsPrerollOff checks that a second
// trigger of a still-active note does get a pre-roll NoteOff ahead of
// its own NoteOn/NoteOff pair.
func TestTranslateEventRetriggerEmitsPrerollOff(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	out, _ := OpenMidiOutForTest()
	slot, _ := dm.Bind("out", out)

	TranslateEvent(vm.ConcreteEvent{
		Kind: vm.EventMidiNote, Note: 60, Vel: 100, Chan: 1, Dur: 1_000_000, DeviceID: slot,
	}, 0, newTranslateTestClock(), dm)

	tps := TranslateEvent(vm.ConcreteEvent{
		Kind: vm.EventMidiNote, Note: 60, Vel: 100, Chan: 1, Dur: 1_000_000, DeviceID: slot,
	}, 100_000, newTranslateTestClock(), dm)

	if len(tps) != 3 {
		t.Fatalf("expected preroll-off/on/off on a retrigger, got %d payloads", len(tps))
	}
	if tps[0].Payload.MIDIBytes[0] != 0x80|1 {
		t.Fatalf("expected preroll note-off status byte, got %02X", tps[0].Payload.MIDIBytes[0])
	}
	if tps[0].At != 100_000 {
		t.Fatalf("expected preroll at the retrigger instant, got %d", tps[0].At)
	}
	if tps[1].Payload.MIDIBytes[0] != 0x90|1 {
		t.Fatalf("expected note-on status byte, got %02X", tps[1].Payload.MIDIBytes[0])
	}
}

// TestMidiNoteRetriggerDropsStaleTrailingNoteOff runs spec.md §8
// scenario 5 by hand through a real MidiOutDevice.Send: two MidiNote
// triggers 0.1s apart, each with a 1s duration. The first trigger's
// trailing NoteOff is scheduled for t=1.0s, long after the second
// trigger supersedes it at t=0.1s; it must be dropped as stale rather
// than cutting the retriggered note short. Exactly 4 messages should
// reach the wire: ON, OFF(preroll), ON, OFF(trailing of the second).
func TestMidiNoteRetriggerDropsStaleTrailingNoteOff(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	out, _ := OpenMidiOutForTest()
	slot, _ := dm.Bind("out", out)

	first := TranslateEvent(vm.ConcreteEvent{
		Kind: vm.EventMidiNote, Note: 60, Vel: 100, Chan: 1, Dur: 1_000_000, DeviceID: slot,
	}, 0, newTranslateTestClock(), dm)
	second := TranslateEvent(vm.ConcreteEvent{
		Kind: vm.EventMidiNote, Note: 60, Vel: 100, Chan: 1, Dur: 1_000_000, DeviceID: slot,
	}, 100_000, newTranslateTestClock(), dm)

	all := append(append([]TimedPayload{}, first...), second...)
	// Sort by At so messages reach Send in chronological wall-clock
	// order, the order the World's dispatch loop actually sends them.
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].At < all[i].At {
				all[i], all[j] = all[j], all[i]
			}
		}
	}

	var wire [][]byte
	recorder := &MidiOutDevice{name: "test", send: func(m midi.Message) error {
		wire = append(wire, append([]byte{}, m...))
		return nil
	}, tracker: out.tracker}
	for _, tp := range all {
		if err := recorder.Send(tp.Payload); err != nil {
			t.Fatalf("unexpected Send error: %v", err)
		}
	}
	if len(wire) != 4 {
		t.Fatalf("expected exactly 4 wire messages, got %d: %+v", len(wire), wire)
	}
	if wire[0][0] != 0x90|1 || wire[1][0] != 0x80|1 || wire[2][0] != 0x90|1 || wire[3][0] != 0x80|1 {
		t.Fatalf("expected ON,OFF,ON,OFF, got %+v", wire)
	}
}

func TestTranslateEventVelocityZeroIsSingleNoteOff(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	out, _ := OpenMidiOutForTest()
	slot, _ := dm.Bind("out", out)

	tps := TranslateEvent(vm.ConcreteEvent{
		Kind: vm.EventMidiNote, Note: 60, Vel: 0, Chan: 0, DeviceID: slot,
	}, 0, newTranslateTestClock(), dm)

	if len(tps) != 1 || tps[0].Payload.MIDIBytes[0] != 0x80 {
		t.Fatalf("expected a single note-off payload for zero velocity, got %+v", tps)
	}
}

func TestTranslateEventDirtIncludesSuperDirtContextParams(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	out := NewOscOutDevice("dirt", "127.0.0.1", 57120)
	slot, _ := dm.Bind("dirt", out)

	tps := TranslateEvent(vm.ConcreteEvent{
		Kind: vm.EventDirt, DeviceID: slot,
	}, 0, newTranslateTestClock(), dm)

	if len(tps) != 1 {
		t.Fatalf("expected a single osc payload, got %d", len(tps))
	}
	tp := tps[0]
	if tp.Payload.OSCAddr != "/dirt/play" {
		t.Fatalf("expected /dirt/play, got %s", tp.Payload.OSCAddr)
	}
	if len(tp.Payload.OSCArgs) < 8 {
		t.Fatalf("expected cps/cycle/delta/orbit prefix, got %v", tp.Payload.OSCArgs)
	}
	if tp.Payload.OSCArgs[0] != "cps" {
		t.Fatalf("expected first arg to be cps key, got %v", tp.Payload.OSCArgs[0])
	}
}

// OpenMidiOutForTest constructs a MidiOutDevice with no backing port —
// enough to exercise translation/encoding without touching hardware,
// mirroring the teacher's midi_test.go approach of checking API shape
// rather than a live device.
func OpenMidiOutForTest() (*MidiOutDevice, error) {
	return &MidiOutDevice{
		name:    "test",
		send:    func(m midi.Message) error { return nil },
		tracker: newNoteTracker(),
	}, nil
}
