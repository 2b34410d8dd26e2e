package device

import (
	"fmt"

	"github.com/brassline/core/vm"
)

// AudioEngineDevice forwards ConcreteEvents verbatim on a buffered Go
// channel instead of encoding them to an external wire protocol — the
// in-process synthesis path spec.md §4.8 describes, where the World's
// lookahead scheduling matters but there's no serialization boundary
// to cross.
type AudioEngineDevice struct {
	name string
	out  chan<- vm.ConcreteEvent
}

// NewAudioEngineDevice wires a device to an existing outbound channel;
// the channel's owner (the audio engine itself) decides buffering and
// lookahead depth.
func NewAudioEngineDevice(name string, out chan<- vm.ConcreteEvent) *AudioEngineDevice {
	return &AudioEngineDevice{name: name, out: out}
}

func (d *AudioEngineDevice) Address() string { return d.name }
func (d *AudioEngineDevice) Kind() Kind      { return KindAudioEngine }
func (d *AudioEngineDevice) Connect() error  { return nil }
func (d *AudioEngineDevice) Flush() error    { return nil }

func (d *AudioEngineDevice) Send(p Payload) error {
	select {
	case d.out <- p.AudioEngineInstrument:
		return nil
	default:
		return fmt.Errorf("device: audio engine channel full, dropped event")
	}
}
