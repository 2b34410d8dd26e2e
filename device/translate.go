package device

import (
	"github.com/brassline/core/clock"
	"github.com/brassline/core/value"
	"github.com/brassline/core/vm"
)

// preRollEpsilonMicros biases a MidiNote's trailing NoteOff slightly
// earlier than the nominal duration boundary, per spec.md §4.9's
// "NoteOff @ date+dur−ε".
const preRollEpsilonMicros = 1000 // 1ms

// TranslateEvent maps one ConcreteEvent to the wire-ready Payload(s)
// the device bound at ev.DeviceID expects, per spec.md §4.9's
// per-protocol dispatch policy: MIDI events encode to raw bytes (a
// MidiNote expands into the NoteOn and a trailing NoteOff, preceded by
// a pre-roll NoteOff when the same note is still sounding from a prior
// trigger), Dirt/Osc events become an OSC message, everything else not
// native to the bound device's kind is redirected to the Log device as
// a diagnostic rather than silently dropped (spec.md §7).
func TranslateEvent(ev vm.ConcreteEvent, at clock.SyncTime, c *clock.Clock, dm *DeviceMap) []TimedPayload {
	dev, ok := dm.Get(ev.DeviceID)
	if !ok {
		return []TimedPayload{{At: at, Payload: Payload{
			Kind:       KindLog,
			Slot:       LogSlot,
			LogMessage: "event targeted an unbound device slot",
		}}}
	}

	var tps []TimedPayload
	switch dev.Kind() {
	case KindMidiOut:
		var tracker *NoteTracker
		if nt, ok := dev.(noteTracked); ok {
			tracker = nt.noteTracker()
		}
		tps = midiPayloads(ev, at, tracker)
	case KindOscOut:
		tps = []TimedPayload{{At: at, Payload: oscPayload(ev, c, at)}}
	case KindAudioEngine:
		tps = []TimedPayload{{At: at, Payload: Payload{Kind: KindAudioEngine, AudioEngineInstrument: ev}}}
	default:
		tps = []TimedPayload{{At: at, Payload: Payload{
			Kind:       KindLog,
			LogMessage: "event targeted a non-output device",
		}}}
	}
	for i := range tps {
		if p := tps[i].Payload; (p.Kind == KindMidiOut && len(p.MIDIBytes) == 0) || (p.Kind == KindOscOut && p.OSCAddr == "") {
			tps[i].Payload = Payload{Kind: KindLog, LogMessage: "event kind not supported by the bound device"}
		}
		if tps[i].Payload.Kind == KindLog {
			tps[i].Payload.Slot = LogSlot
		} else {
			tps[i].Payload.Slot = ev.DeviceID
		}
	}
	return tps
}

// noteTracked is implemented by ProtocolDevices whose MidiNote
// expansion needs retrigger-aware NoteOff suppression.
type noteTracked interface {
	noteTracker() *NoteTracker
}

// midiPayloads expands one MIDI ConcreteEvent into its wire-level
// message(s) with their target instants. MidiNote is the only
// multi-message case: a pre-roll NoteOff at the trigger instant is
// only emitted when the note is currently marked active (suppressing a
// redundant one otherwise), then the NoteOn, then the trailing NoteOff
// that ends it — tagged with this trigger's generation so it is
// dropped at send time instead of cutting off a later retrigger.
func midiPayloads(ev vm.ConcreteEvent, at clock.SyncTime, tracker *NoteTracker) []TimedPayload {
	if ev.Kind == vm.EventMidiNote && ev.Vel > 0 {
		var wasActive bool
		var generation uint64
		if tracker != nil {
			wasActive, generation = tracker.Trigger(int(ev.Chan), int(ev.Note))
		}

		noteOff := at + ev.Dur
		if ev.Dur > preRollEpsilonMicros {
			noteOff -= preRollEpsilonMicros
		}

		var tps []TimedPayload
		if wasActive {
			tps = append(tps, TimedPayload{At: at, Payload: Payload{Kind: KindMidiOut, MIDIBytes: EncodeNoteOff(int(ev.Chan), int(ev.Note), 0)}})
		}
		tps = append(tps,
			TimedPayload{At: at, Payload: Payload{Kind: KindMidiOut, MIDIBytes: EncodeNoteOn(int(ev.Chan), int(ev.Note), int(ev.Vel))}},
			TimedPayload{At: noteOff, Payload: Payload{Kind: KindMidiOut, MIDIBytes: EncodeNoteOff(int(ev.Chan), int(ev.Note), 0), NoteOffGeneration: generation}},
		)
		return tps
	}
	return []TimedPayload{{At: at, Payload: midiPayload(ev)}}
}

func midiPayload(ev vm.ConcreteEvent) Payload {
	var bytes []byte
	switch ev.Kind {
	case vm.EventMidiNote:
		bytes = EncodeNoteOff(int(ev.Chan), int(ev.Note), 0)
	case vm.EventMidiControl:
		bytes = EncodeControlChange(int(ev.Chan), int(ev.Note), int(ev.Vel))
	case vm.EventMidiProgram:
		bytes = EncodeProgramChange(int(ev.Chan), int(ev.Note))
	case vm.EventMidiAftertouch:
		bytes = EncodeAftertouch(int(ev.Chan), int(ev.Note), int(ev.Vel))
	case vm.EventMidiChannelPressure:
		bytes = EncodeChannelPressure(int(ev.Chan), int(ev.Vel))
	case vm.EventMidiSysEx:
		payload := make([]byte, len(ev.SysExData))
		for i, v := range ev.SysExData {
			payload[i] = clamp7(int(v))
		}
		bytes = EncodeSysEx(payload)
	case vm.EventMidiStart:
		bytes = TransportStart
	case vm.EventMidiStop:
		bytes = TransportStop
	case vm.EventMidiContinue:
		bytes = TransportContinue
	case vm.EventMidiReset:
		bytes = TransportReset
	case vm.EventMidiClock:
		bytes = TransportClock
	}
	return Payload{Kind: KindMidiOut, MIDIBytes: bytes}
}

func oscPayload(ev vm.ConcreteEvent, c *clock.Clock, at clock.SyncTime) Payload {
	switch ev.Kind {
	case vm.EventDirt:
		cps := c.Tempo() / 60.0 / c.Quantum()
		cycle := c.BeatAtDate(at) / c.Quantum()
		delta := 0.0
		if cps > 0 {
			delta = 1.0 / cps
		}
		args := []any{"cps", float32(cps), "cycle", float32(cycle), "delta", float32(delta), "orbit", int32(0)}
		for _, v := range ev.DirtArgs {
			args = append(args, toOSCArg(v))
		}
		return Payload{Kind: KindOscOut, OSCAddr: "/dirt/play", OSCArgs: args}
	case vm.EventOsc:
		args := make([]any, len(ev.OscArgs))
		for i, v := range ev.OscArgs {
			args[i] = toOSCArg(v)
		}
		return Payload{Kind: KindOscOut, OSCAddr: ev.OscAddr, OSCArgs: args}
	default:
		return Payload{Kind: KindOscOut}
	}
}

// toOSCArg renders a Value by its stored Kind, without the
// clock-dependent coercion CompatibleCast performs — OSC argument
// encoding wants the value as it is, not widened to match a sibling.
func toOSCArg(v value.Value) any {
	switch v.Kind {
	case value.KindInteger:
		return int32(v.Int)
	case value.KindFloat:
		return float32(v.Flt)
	case value.KindBool:
		if v.Bl {
			return int32(1)
		}
		return int32(0)
	case value.KindStr:
		return v.Txt
	default:
		return v.Txt
	}
}
