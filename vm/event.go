package vm

import "github.com/brassline/core/value"

// EventKind tags which event variant an Event holds, grounded on
// core/src/vm/event.rs's Event enum.
type EventKind int

const (
	EventNop EventKind = iota
	EventMidiNote
	EventMidiControl
	EventMidiProgram
	EventMidiAftertouch
	EventMidiChannelPressure
	EventMidiSysEx
	EventMidiStart
	EventMidiStop
	EventMidiReset
	EventMidiContinue
	EventMidiClock
	EventDirt
	EventOsc
	EventStartProgram
	EventSound
	EventVoiceSound
	EventVoiceSetting
)

// Event is the source-side, pre-evaluation description of an effect:
// every field is a Variable reference, resolved against an
// EvaluationContext by MakeConcrete to produce a ConcreteEvent.
type Event struct {
	Kind EventKind

	// MidiNote(note, vel, chan, dur, device)
	Note, Vel, Chan, Dur, Device value.Ref

	// MidiControl(control, value, channel, device) reads control from
	// Control and value from Vel; MidiProgram reads its program number
	// from Control
	Control value.Ref

	// Dirt / Osc
	Sound    value.Ref
	Params   map[string]value.Ref // Dirt named params
	Addr     value.Ref            // Osc address
	OscArgs  []value.Ref          // Osc positional args
	SysExData []value.Ref

	// StartProgram
	Fun value.Ref

	// Generic Sound/VoiceSound/VoiceSetting
	Voice        value.Ref
	DelayBefore  value.Ref
	Duration     value.Ref
	Instrument   value.Ref
	GenericValue value.Ref
	Setting      value.Ref
}

// ConcreteEvent is the fully-resolved, wire-ready event: every field
// has been evaluated to a concrete scalar, matching
// core/src/vm/event.rs's ConcreteEvent.
type ConcreteEvent struct {
	Kind EventKind

	Note, Vel, Chan uint64
	Dur             uint64 // micros
	DeviceID        int

	SysExData []uint64

	DirtArgs []value.Value // alternating key/value pairs, Sound first

	OscAddr string
	OscArgs []value.Value

	StartProgramFun Program

	// generic Sound/VoiceSound/VoiceSetting
	Voice       value.Value
	DelayBefore uint64
	Duration    uint64
	Instrument  value.Value
	Value       value.Value
	Setting     value.Value
}

// HasDevice reports whether the event targets a device slot: false
// for events with no device association (Nop, StartProgram), true for
// every other kind.
func (c ConcreteEvent) HasDevice() bool {
	switch c.Kind {
	case EventNop, EventStartProgram:
		return false
	default:
		return true
	}
}

// evalCtx is the minimal surface MakeConcrete needs from an
// EvaluationContext; satisfied by *Context in context.go.
type evalCtx interface {
	Evaluate(r value.Ref) value.Value
	AsInteger(v value.Value) int64
	AsFloat(v value.Value) float64
	AsStr(v value.Value) string
	AsDurMicros(v value.Value) uint64
}

// MakeConcrete resolves every field of an Event against ctx, producing
// the fully-evaluated ConcreteEvent the World will dispatch.
func (e Event) MakeConcrete(ctx evalCtx) ConcreteEvent {
	switch e.Kind {
	case EventNop:
		return ConcreteEvent{Kind: EventNop}

	case EventMidiNote:
		return ConcreteEvent{
			Kind:     EventMidiNote,
			Note:     uint64(ctx.AsInteger(ctx.Evaluate(e.Note))),
			Vel:      uint64(ctx.AsInteger(ctx.Evaluate(e.Vel))),
			Chan:     uint64(ctx.AsInteger(ctx.Evaluate(e.Chan))),
			Dur:      ctx.AsDurMicros(ctx.Evaluate(e.Dur)),
			DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventMidiControl:
		return ConcreteEvent{
			Kind:     EventMidiControl,
			Note:     uint64(ctx.AsInteger(ctx.Evaluate(e.Control))), // control number
			Vel:      uint64(ctx.AsInteger(ctx.Evaluate(e.Vel))),    // value
			Chan:     uint64(ctx.AsInteger(ctx.Evaluate(e.Chan))),
			DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventMidiProgram:
		return ConcreteEvent{
			Kind:     EventMidiProgram,
			Note:     uint64(ctx.AsInteger(ctx.Evaluate(e.Control))), // program number
			Chan:     uint64(ctx.AsInteger(ctx.Evaluate(e.Chan))),
			DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventMidiAftertouch:
		return ConcreteEvent{
			Kind:     EventMidiAftertouch,
			Note:     uint64(ctx.AsInteger(ctx.Evaluate(e.Note))),
			Vel:      uint64(ctx.AsInteger(ctx.Evaluate(e.Vel))), // pressure
			Chan:     uint64(ctx.AsInteger(ctx.Evaluate(e.Chan))),
			DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventMidiChannelPressure:
		return ConcreteEvent{
			Kind:     EventMidiChannelPressure,
			Vel:      uint64(ctx.AsInteger(ctx.Evaluate(e.Vel))), // pressure
			Chan:     uint64(ctx.AsInteger(ctx.Evaluate(e.Chan))),
			DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventMidiSysEx:
		data := make([]uint64, len(e.SysExData))
		for i, ref := range e.SysExData {
			data[i] = uint64(ctx.AsInteger(ctx.Evaluate(ref)))
		}
		return ConcreteEvent{
			Kind:      EventMidiSysEx,
			SysExData: data,
			DeviceID:  int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventMidiStart, EventMidiStop, EventMidiReset, EventMidiContinue, EventMidiClock:
		return ConcreteEvent{Kind: e.Kind, DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device)))}

	case EventDirt:
		args := []value.Value{value.Str("s"), ctx.Evaluate(e.Sound)}
		for k, v := range e.Params {
			args = append(args, value.Str(k), ctx.Evaluate(v))
		}
		return ConcreteEvent{
			Kind:     EventDirt,
			DirtArgs: args,
			DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventOsc:
		args := make([]value.Value, len(e.OscArgs))
		for i, ref := range e.OscArgs {
			args[i] = ctx.Evaluate(ref)
		}
		return ConcreteEvent{
			Kind:     EventOsc,
			OscAddr:  ctx.AsStr(ctx.Evaluate(e.Addr)),
			OscArgs:  args,
			DeviceID: int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventStartProgram:
		v := ctx.Evaluate(e.Fun)
		if v.Kind == value.KindFunc {
			if prog, ok := v.Fn.(Program); ok {
				return ConcreteEvent{Kind: EventStartProgram, StartProgramFun: prog}
			}
		}
		return ConcreteEvent{Kind: EventStartProgram, StartProgramFun: nil}

	case EventSound:
		return ConcreteEvent{
			Kind:        EventSound,
			DelayBefore: ctx.AsDurMicros(ctx.Evaluate(e.DelayBefore)),
			Duration:    ctx.AsDurMicros(ctx.Evaluate(e.Duration)),
			Instrument:  ctx.Evaluate(e.Instrument),
			Value:       ctx.Evaluate(e.GenericValue),
			DeviceID:    int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventVoiceSound:
		return ConcreteEvent{
			Kind:        EventVoiceSound,
			Voice:       ctx.Evaluate(e.Voice),
			DelayBefore: ctx.AsDurMicros(ctx.Evaluate(e.DelayBefore)),
			Duration:    ctx.AsDurMicros(ctx.Evaluate(e.Duration)),
			Instrument:  ctx.Evaluate(e.Instrument),
			Value:       ctx.Evaluate(e.GenericValue),
			DeviceID:    int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	case EventVoiceSetting:
		return ConcreteEvent{
			Kind:        EventVoiceSetting,
			Voice:       ctx.Evaluate(e.Voice),
			DelayBefore: ctx.AsDurMicros(ctx.Evaluate(e.DelayBefore)),
			Setting:     ctx.Evaluate(e.Setting),
			Value:       ctx.Evaluate(e.GenericValue),
			DeviceID:    int(ctx.AsInteger(ctx.Evaluate(e.Device))),
		}

	default:
		return ConcreteEvent{Kind: EventNop}
	}
}
