package device

import (
	"fmt"
	"sync"
)

// LogSlot is the slot ID reserved for the Log device — every DeviceMap
// is born with it bound, and it can never be unbound, per spec.md §9's
// design note that a silent performance is still an observable one.
const LogSlot = 0

// DeviceMap owns every bound ProtocolDevice behind a slot table:
// slot_id -> device, plus a name index so a device can be looked up
// either way. All Scheduler/World reads and edits from the command
// surface go through this struct's mutex, mirroring the teacher's
// Pattern's single-mutex-per-aggregate style.
type DeviceMap struct {
	mu sync.RWMutex

	bySlot map[int]ProtocolDevice
	byName map[string]int
	nextID int
}

// NewDeviceMap returns a DeviceMap with slot 0 bound to a fresh
// LogDevice.
func NewDeviceMap(logger logWriter) *DeviceMap {
	dm := &DeviceMap{
		bySlot: make(map[int]ProtocolDevice),
		byName: make(map[string]int),
		nextID: 1,
	}
	log := NewLogDevice(logger)
	dm.bySlot[LogSlot] = log
	dm.byName[log.Address()] = LogSlot
	return dm
}

// Bind installs dev at the next free slot and returns it. Binding a
// device under a name already in use replaces the previous binding in
// place (same slot), matching spec.md §6's "rebind" inbound command.
func (dm *DeviceMap) Bind(name string, dev ProtocolDevice) (int, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if slot, ok := dm.byName[name]; ok {
		dm.bySlot[slot] = dev
		return slot, nil
	}

	slot := dm.nextID
	dm.nextID++
	dm.bySlot[slot] = dev
	dm.byName[name] = slot
	return slot, nil
}

// Unbind removes the device at slot. Unbinding LogSlot is rejected.
func (dm *DeviceMap) Unbind(slot int) error {
	if slot == LogSlot {
		return fmt.Errorf("device: cannot unbind the reserved log slot")
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dev, ok := dm.bySlot[slot]
	if !ok {
		return fmt.Errorf("device: no device bound to slot %d", slot)
	}
	delete(dm.bySlot, slot)
	delete(dm.byName, dev.Address())
	return nil
}

// Get resolves a slot to its device. ok is false for an unbound slot —
// callers fall back to routing the payload at the Log device instead
// of failing outright, per spec.md §7.
func (dm *DeviceMap) Get(slot int) (ProtocolDevice, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	dev, ok := dm.bySlot[slot]
	return dev, ok
}

// SlotByName resolves a bound device's name back to its slot.
func (dm *DeviceMap) SlotByName(name string) (int, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	slot, ok := dm.byName[name]
	return slot, ok
}

// Log always resolves — it is bound at construction and can't be
// removed.
func (dm *DeviceMap) Log() *LogDevice {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.bySlot[LogSlot].(*LogDevice)
}

// Slots returns every currently bound slot ID, in no particular order.
func (dm *DeviceMap) Slots() []int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make([]int, 0, len(dm.bySlot))
	for s := range dm.bySlot {
		out = append(out, s)
	}
	return out
}
