package vm

import (
	"math"

	"github.com/brassline/core/value"
)

// Standalone oscillators (GetSine/GetSaw/GetTriangle/GetISaw/GetRandStep)
// keep their phase in the Line store rather than a Generator descriptor,
// one phase/last-beat pair per opcode so two Lines calling GetSine at
// different speeds don't fight over shared phase, matching the
// original's SINE_LAST_BEAT_KEY/SINE_PHASE_KEY-style per-op line keys.

func oscPhaseKeys(op Op) (phaseKey, lastBeatKey string) {
	switch op {
	case OpGetSine:
		return "_osc_sine_phase", "_osc_sine_last_beat"
	case OpGetSaw:
		return "_osc_saw_phase", "_osc_saw_last_beat"
	case OpGetTriangle:
		return "_osc_triangle_phase", "_osc_triangle_last_beat"
	case OpGetISaw:
		return "_osc_isaw_phase", "_osc_isaw_last_beat"
	case OpGetRandStep:
		return "_osc_randstep_phase", "_osc_randstep_last_beat"
	default:
		return "_osc_unknown_phase", "_osc_unknown_last_beat"
	}
}

// execOscillator advances one of the line-store-keyed phase clocks by
// the current beat delta scaled by a speed operand, then samples the
// requested waveform into [1,127] MIDI range, per control_asm.rs's
// GetSine/GetSaw/GetTriangle/GetISaw/GetRandStep arms.
func execOscillator(c Control, ctx *Context) {
	speedVar, resVar := c.Args[0], c.Args[1]
	speed := ctx.AsFloat(ctx.Evaluate(speedVar))

	phaseKey, lastBeatKey := oscPhaseKeys(c.Op)
	beat := ctx.Clock.Beat()

	phase, _ := ctx.Scopes.Line.Get(phaseKey)
	lastBeat, hadLastBeat := ctx.Scopes.Line.Get(lastBeatKey)

	p := phase.Flt
	lb := beat
	if hadLastBeat {
		lb = lastBeat.Flt
	}
	delta := beat - lb
	p = p + delta*speed
	p = p - math.Floor(p)

	ctx.Scopes.Line.Set(phaseKey, value.Float(p))
	ctx.Scopes.Line.Set(lastBeatKey, value.Float(beat))

	var unit float64
	switch c.Op {
	case OpGetSine:
		unit = (math.Sin(p*2*math.Pi) + 1) / 2
	case OpGetSaw:
		unit = p
	case OpGetTriangle:
		if p < 0.5 {
			unit = p * 2
		} else {
			unit = (1 - p) * 2
		}
	case OpGetISaw:
		unit = 1 - p
	case OpGetRandStep:
		unit = pseudoRandUnit(p)
	}

	midi := int64(math.Round(1 + unit*126))
	if midi < 1 {
		midi = 1
	}
	if midi > 127 {
		midi = 127
	}
	ctx.SetVar(resVar, value.Integer(midi))
}

// pseudoRandUnit derives a deterministic pseudo-random unit value from
// the advanced phase so GetRandStep still steps once per beat delta
// without pulling in a second RNG instance per Line.
func pseudoRandUnit(seedPhase float64) float64 {
	x := math.Sin(seedPhase*127.1) * 43758.5453123
	return x - math.Floor(x)
}

// execGenGet advances the generator descriptor a(0) names by the
// current beat (scaled by speed operand a(1)) and writes the sample
// into a(2), per control_asm.rs's GenGet arm -- the one Gen* opcode
// with behavior not spelled out in the retrieved source (its match arms
// cover only enum declarations), designed here by analogy to the
// standalone oscillator opcodes and generator.rs's ValueGenerator.
func execGenGet(c Control, ctx *Context) {
	genVar, speedVar, resVar := c.Args[0], c.Args[1], c.Args[2]
	st, ok := ctx.generatorFor(genVar)
	if !ok {
		ctx.Log.Error("GenGet: no generator at ref", "var", genVar.Name)
		ctx.SetVar(resVar, value.Zero())
		return
	}
	st.Speed = ctx.AsFloat(ctx.Evaluate(speedVar))
	ctx.SetVar(resVar, st.Advance(ctx.Clock.Beat()))
}

// execGetMidiCC resolves the last-known value of a MIDI CC controller,
// honoring the "_use_context_device"/"_use_context_channel" sentinel
// Refs that mean "whatever device/channel this Line's Effects already
// target" by falling back to the Instance-scope "_target_device_id"/
// "_chan" variables, then DefaultDevice/DefaultChan, per
// control_asm.rs's GetMidiCC arm.
func execGetMidiCC(c Control, ctx *Context) {
	deviceVar, chanVar, ccVar, resVar := c.Args[0], c.Args[1], c.Args[2], c.Args[3]

	device := resolveContextual(ctx, deviceVar, "_use_context_device", "_target_device_id", DefaultDevice)
	channel := resolveContextual(ctx, chanVar, "_use_context_channel", "_chan", DefaultChan)
	control := ctx.AsInteger(ctx.Evaluate(ccVar))

	if ctx.MidiCC == nil {
		ctx.SetVar(resVar, value.Integer(0))
		return
	}
	v, ok := ctx.MidiCC.ControlValue(int(device), int(channel-1), int(control))
	if !ok {
		ctx.Log.Debug("GetMidiCC: no value yet", "device", device, "channel", channel, "control", control)
		v = 0
	}
	ctx.SetVar(resVar, value.Integer(v))
}

// resolveContextual reads operandVar, treating the special sentinel
// Environment name as "use ctx's own Instance-scope fallback var"
// instead of a literal value.
func resolveContextual(ctx *Context, operandVar value.Ref, sentinelName, fallbackVar string, defaultVal int64) int64 {
	if operandVar.Kind == value.RefEnvironment && operandVar.Name == sentinelName {
		fb := value.InstanceRef(fallbackVar)
		if ctx.HasVar(fb) {
			return ctx.AsInteger(ctx.Evaluate(fb))
		}
		return defaultVal
	}
	return ctx.AsInteger(ctx.Evaluate(operandVar))
}
