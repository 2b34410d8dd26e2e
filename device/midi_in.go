package device

import "sync"

// MidiInDevice is a MIDI input port's control-memory table: the last
// received Control Change value per (channel, controller), grounded on
// original_source's MidiIn/MidiInMemory (the incoming-port wraps a
// connection plus a shared, mutex-guarded last-value map updated from
// the port's read callback). Physical port subscription itself is not
// modeled here — this device is driven by whatever reads the platform
// MIDI input stream and calls Observe for every incoming CC.
type MidiInDevice struct {
	mu   sync.RWMutex
	name string
	cc   map[[2]int]int64
}

func NewMidiInDevice(name string) *MidiInDevice {
	return &MidiInDevice{name: name, cc: make(map[[2]int]int64)}
}

func (d *MidiInDevice) Address() string { return d.name }
func (d *MidiInDevice) Kind() Kind      { return KindMidiIn }
func (d *MidiInDevice) Connect() error  { return nil }
func (d *MidiInDevice) Flush() error    { return nil }

// Send is a no-op for an input device — nothing is ever routed to it
// for output, but it must still satisfy ProtocolDevice to occupy a
// DeviceMap slot.
func (d *MidiInDevice) Send(Payload) error { return nil }

// Observe records an incoming Control Change byte triple. channel is
// 0-based (0-15).
func (d *MidiInDevice) Observe(channel, control int, value int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cc[[2]int{channel, control}] = value
}

// Value returns the last-known value for (channel, control), and
// whether one has ever been observed.
func (d *MidiInDevice) Value(channel, control int) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.cc[[2]int{channel, control}]
	return v, ok
}

// DeviceMapCCSource adapts a DeviceMap into a vm.MidiCCSource: the
// GetMidiCC opcode names a slot, and this resolves it to whatever
// MidiInDevice (if any) is bound there.
type DeviceMapCCSource struct {
	Map *DeviceMap
}

func (s DeviceMapCCSource) ControlValue(slot int, channel0Based, control int) (int64, bool) {
	dev, ok := s.Map.Get(slot)
	if !ok {
		return 0, false
	}
	in, ok := dev.(*MidiInDevice)
	if !ok {
		return 0, false
	}
	return in.Value(channel0Based, control)
}
