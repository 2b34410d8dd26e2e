package device

import "testing"

type stubLogger struct{ lines []string }

func (s *stubLogger) Info(msg string, kv ...any) { s.lines = append(s.lines, msg) }

func TestNewDeviceMapReservesLogSlot(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	dev, ok := dm.Get(LogSlot)
	if !ok {
		t.Fatal("expected slot 0 bound at construction")
	}
	if dev.Kind() != KindLog {
		t.Fatalf("expected log device at slot 0, got %v", dev.Kind())
	}
}

func TestUnbindLogSlotRejected(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	if err := dm.Unbind(LogSlot); err == nil {
		t.Fatal("expected error unbinding the reserved log slot")
	}
}

func TestBindAssignsIncreasingSlots(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	in := NewMidiInDevice("in-1")
	slot, err := dm.Bind("in-1", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot == LogSlot {
		t.Fatal("expected a non-log slot")
	}
	got, ok := dm.SlotByName("in-1")
	if !ok || got != slot {
		t.Fatalf("SlotByName mismatch: got %d ok=%v, want %d", got, ok, slot)
	}
}

func TestBindSameNameRebindsInPlace(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	first := NewMidiInDevice("x")
	slot1, _ := dm.Bind("x", first)

	second := NewMidiInDevice("x")
	slot2, _ := dm.Bind("x", second)

	if slot1 != slot2 {
		t.Fatalf("expected rebind to reuse slot %d, got %d", slot1, slot2)
	}
	got, _ := dm.Get(slot1)
	if got != ProtocolDevice(second) {
		t.Fatal("expected rebind to replace the device at the same slot")
	}
}

func TestUnboundSlotLookupFails(t *testing.T) {
	dm := NewDeviceMap(&stubLogger{})
	if _, ok := dm.Get(42); ok {
		t.Fatal("expected slot 42 to be unbound")
	}
}
