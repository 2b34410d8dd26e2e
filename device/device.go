// Package device implements ProtocolDevice — the output/input side of
// the core's external interfaces: MIDI, OSC, the Log device, and a
// forwarding channel to an external audio engine — plus the DeviceMap
// that owns them behind a slot table, grounded on spec.md §3/§4.9 and
// the teacher's midi.Output wrapper style.
package device

import (
	"fmt"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/vm"
)

// Kind tags which protocol a ProtocolDevice speaks.
type Kind int

const (
	KindLog Kind = iota
	KindMidiIn
	KindMidiOut
	KindOscOut
	KindOscIn
	KindAudioEngine
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindMidiIn:
		return "midi-in"
	case KindMidiOut:
		return "midi-out"
	case KindOscOut:
		return "osc-out"
	case KindOscIn:
		return "osc-in"
	case KindAudioEngine:
		return "audio-engine"
	default:
		return "unknown"
	}
}

// PayloadKind tags which wire representation a Payload carries.
type PayloadKind int

const (
	PayloadMIDI PayloadKind = iota
	PayloadOSC
	PayloadLog
	PayloadAudioEngine
)

// Payload is one protocol-ready outbound message, produced by
// TranslateEvent and consumed by the World's dispatch loop.
type Payload struct {
	Kind Kind
	Slot int

	MIDIBytes []byte

	// NoteOffGeneration tags a MidiNote's scheduled trailing NoteOff
	// with the retrigger generation it was created for; zero means
	// "untagged" (always sent). See NoteTracker.
	NoteOffGeneration uint64

	OSCAddr string
	OSCArgs []any

	LogMessage string

	AudioEngineInstrument vm.ConcreteEvent // opaque passthrough for the audio engine's own decoding
}

// TimedPayload pairs a Payload with the exact SyncTime the World should
// dispatch it at.
type TimedPayload struct {
	Payload Payload
	At      clock.SyncTime
}

// ProtocolDevice is the uniform surface every concrete output/input
// device exposes: a stable address, explicit connect lifecycle, a
// byte-level send, and an optional flush (MIDI ports rarely need one;
// network sockets may).
type ProtocolDevice interface {
	Address() string
	Kind() Kind
	Connect() error
	Send(p Payload) error
	Flush() error
}

// ErrUnroutable describes a slot with no bound device. DeviceMap
// lookups do not return it (DeviceMap.Get reports a missing slot with
// ok=false); TranslateEvent and the World turn a missing slot into a
// Log-device diagnostic instead, per spec.md §7.
var ErrUnroutable = fmt.Errorf("no device bound to slot")
