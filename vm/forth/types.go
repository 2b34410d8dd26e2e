// Package forth implements a small stack-based scripting language as a
// second vm.Interpreter, proving the Interpreter contract is genuinely
// polymorphic rather than Control-bytecode-only, grounded on
// original_source/core/src/lang/forth/{interpreter,types,factory}.rs.
package forth

import (
	"github.com/brassline/core/vm"
)

// Value is the single numeric type the data stack holds; words that
// need an integer truncate it themselves, mirroring the original's
// ForthValue = f64.
type Value = float64

// Word is a dictionary entry: either a builtin function or a
// user-defined token sequence recorded by a ": name ... ;" definition.
type Word struct {
	Builtin  BuiltinFunc
	Body     []string
	IsBuiltin bool
}

// BuiltinFunc executes a builtin word against the interpreter's State,
// optionally returning an Action (Emit an event, or Wait before the
// next step).
type BuiltinFunc func(s *State) *Action

// ActionKind tags which variant an Action holds.
type ActionKind int

const (
	ActionEmit ActionKind = iota
	ActionWait
)

// Action is what a builtin word hands back to the interpreter loop:
// either an event ready to emit, or a wait time to report before the
// next ExecuteNext call continues past this token.
type Action struct {
	Kind  ActionKind
	Event vm.ConcreteEvent
	Wait  uint64
}

// State is the mutable machine state a running script operates on:
// the data and return stacks, a buffered queue of events produced
// faster than the caller drains them, and the MIDI "current note
// context" (channel/device/velocity/duration) words like `note` read
// implicitly, matching the original's ForthState.
type State struct {
	Data   []Value
	Return []int

	EventBuffer []vm.ConcreteEvent
	WaitTime    uint64

	Channel  uint64
	Device   int
	Velocity uint64

	// DurMicros is the note/effect duration in microseconds the `dur`
	// word sets directly from the data stack (a simplification of the
	// original's duration_beats: this interpreter has no Clock handle
	// per-word, so beat-relative durations must be converted to micros
	// on the stack before `dur` runs).
	DurMicros uint64
}

// NewState returns a State with the original's documented defaults:
// channel 1, device 1, velocity 90.
func NewState() *State {
	return &State{Channel: 1, Device: 1, Velocity: 90, DurMicros: 0}
}

func (s *State) Push(v Value) { s.Data = append(s.Data, v) }

func (s *State) Pop() Value {
	n := len(s.Data)
	if n == 0 {
		return 0
	}
	v := s.Data[n-1]
	s.Data = s.Data[:n-1]
	return v
}

func (s *State) Peek() Value {
	if len(s.Data) == 0 {
		return 0
	}
	return s.Data[len(s.Data)-1]
}
