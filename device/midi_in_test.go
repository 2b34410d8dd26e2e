package device

import "testing"

func TestMidiInDeviceObserveAndValue(t *testing.T) {
	in := NewMidiInDevice("ctlr")
	if _, ok := in.Value(0, 1); ok {
		t.Fatal("expected no value before any Observe call")
	}
	in.Observe(0, 1, 64)
	v, ok := in.Value(0, 1)
	if !ok || v != 64 {
		t.Fatalf("got (%d,%v), want (64,true)", v, ok)
	}
}

func TestDeviceMapCCSourceResolvesBoundMidiIn(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	in := NewMidiInDevice("ctlr")
	slot, _ := dm.Bind("ctlr", in)
	in.Observe(2, 7, 100)

	src := DeviceMapCCSource{Map: dm}
	v, ok := src.ControlValue(slot, 2, 7)
	if !ok || v != 100 {
		t.Fatalf("got (%d,%v), want (100,true)", v, ok)
	}
}

func TestDeviceMapCCSourceUnboundSlotReturnsFalse(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	src := DeviceMapCCSource{Map: dm}
	if _, ok := src.ControlValue(99, 0, 0); ok {
		t.Fatal("expected false for an unbound slot")
	}
}

func TestDeviceMapCCSourceNonMidiInSlotReturnsFalse(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	src := DeviceMapCCSource{Map: dm}
	if _, ok := src.ControlValue(LogSlot, 0, 0); ok {
		t.Fatal("expected false when the bound device isn't a MidiInDevice")
	}
}
