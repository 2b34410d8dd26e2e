package vm

import (
	"github.com/brassline/core/clock"
	"github.com/brassline/core/generator"
	"github.com/brassline/core/logging"
	"github.com/brassline/core/value"
)

// MidiCCSource resolves the last-known value of a MIDI CC controller
// on an input device bound to the given slot, supporting the
// GetMidiCC opcode without vm importing the device package directly
// (device ownership and locking stay in device/midi_in.go).
type MidiCCSource interface {
	// ControlValue returns 0 if no device is bound to slot or the
	// bound device isn't a MIDI input, matching the original's
	// default-to-zero-and-log behavior.
	ControlValue(slot int, channel0Based, control int) (int64, bool)
}

// Deque is a double-ended Value stack backing Push/Pop/PushFront/PopFront.
type Deque struct {
	vals []value.Value
}

func (d *Deque) PushBack(v value.Value)  { d.vals = append(d.vals, v) }
func (d *Deque) PushFront(v value.Value) { d.vals = append([]value.Value{v}, d.vals...) }

func (d *Deque) PopBack() (value.Value, bool) {
	if len(d.vals) == 0 {
		return value.Value{}, false
	}
	v := d.vals[len(d.vals)-1]
	d.vals = d.vals[:len(d.vals)-1]
	return v, true
}

func (d *Deque) PopFront() (value.Value, bool) {
	if len(d.vals) == 0 {
		return value.Value{}, false
	}
	v := d.vals[0]
	d.vals = d.vals[1:]
	return v, true
}

func (d *Deque) Len() int { return len(d.vals) }

// Context is the EvaluationContext every opcode executes against: the
// four variable-store scopes, the captured Clock, the owning line's
// frame length (for Frames-kind Dur resolution), the instance's
// operand stack, the live Generator registry keyed by the variable
// name GenStart initialised, and the environment/MIDI-CC/device
// collaborators opcodes reach out to.
type Context struct {
	Scopes   value.Scopes
	Clock    *clock.Clock
	FrameLen float64
	Stack    Deque

	Env    value.EnvironmentReader
	MidiCC MidiCCSource

	generators map[string]*generator.State
	genSeed    int64

	Log *logging.Logger
}

func NewContext(scopes value.Scopes, c *clock.Clock, frameLen float64, env value.EnvironmentReader, midiCC MidiCCSource, log *logging.Logger) *Context {
	return &Context{
		Scopes:     scopes,
		Clock:      c,
		FrameLen:   frameLen,
		Env:        env,
		MidiCC:     midiCC,
		generators: make(map[string]*generator.State),
		Log:        log,
	}
}

// Evaluate resolves a Ref to its current value.
func (c *Context) Evaluate(r value.Ref) value.Value {
	return r.Evaluate(c.Scopes, c.Env)
}

// SetVar writes v into the store r targets; constant/environment refs
// are silently ignored, matching Variable::set.
func (c *Context) SetVar(r value.Ref, v value.Value) {
	r.Set(c.Scopes, v)
}

func (c *Context) HasVar(r value.Ref) bool {
	return r.Exists(c.Scopes, c.Env)
}

func (c *Context) AsInteger(v value.Value) int64 {
	return v.AsInteger(c.Clock).Int
}

func (c *Context) AsFloat(v value.Value) float64 {
	return v.AsFloat(c.Clock).Flt
}

func (c *Context) AsStr(v value.Value) string {
	return v.AsStr(c.Clock).Txt
}

func (c *Context) AsDurMicros(v value.Value) uint64 {
	return v.AsDur(c.Clock).Dur.AsMicros(c.Clock, c.FrameLen)
}

// generatorFor resolves the *generator.State a Gen* opcode's genVar
// currently holds, if any.
func (c *Context) generatorFor(r value.Ref) (*generator.State, bool) {
	v := c.Evaluate(r)
	if v.Kind != value.KindGenerator || v.GenV == nil {
		return nil, false
	}
	st, ok := v.GenV.(*generator.State)
	return st, ok
}

// startGenerator creates a fresh generator and stores it at r,
// assigning it a deterministic-per-process seed so repeated GenStart
// calls in one run produce distinguishable, reproducible streams.
func (c *Context) startGenerator(r value.Ref) {
	c.genSeed++
	st := generator.New(c.genSeed)
	c.SetVar(r, value.Generator(st))
}
