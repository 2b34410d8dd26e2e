// Package vm implements the bytecode instruction set, interpreter and
// per-invocation execution record described in spec.md §4.2–§4.4:
// a register/stack machine over value.Value, scoped through
// value.Scopes, producing zero or one Event per step plus a wait time.
package vm

import (
	"github.com/brassline/core/generator"
	"github.com/brassline/core/value"
)

// Op enumerates every Control opcode, grounded one-for-one on
// core/src/vm/control_asm.rs's ControlASM enum.
type Op int

const (
	OpNop Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpNot
	OpLowerThan
	OpLowerOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpEqual
	OpDifferent
	OpScale
	OpClamp
	OpMin
	OpMax
	OpQuantize
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShiftLeft
	OpShiftRightA
	OpShiftRightL
	OpFloatAsBeats
	OpFloatAsFrames
	OpMov
	OpIsSet
	OpPush
	OpPop
	OpPushFront
	OpPopFront
	OpMapInsert
	OpMapGet
	OpMapHas
	OpMapRemove
	OpVecPush
	OpVecPop
	OpVecLen
	OpVecInsert
	OpVecGet
	OpVecRemove
	OpGenStart
	OpGenGet
	OpGenSetShape
	OpGenAddModifier
	OpGenRemoveModifier
	OpGenConfigureShape
	OpGenConfigureModifier
	OpGenSeed
	OpGenSave
	OpGenRestore
	OpJump
	OpJumpIf
	OpJumpIfNot
	OpJumpIfDifferent
	OpJumpIfEqual
	OpJumpIfLess
	OpJumpIfLessOrEqual
	OpRelJump
	OpRelJumpIf
	OpRelJumpIfNot
	OpRelJumpIfDifferent
	OpRelJumpIfEqual
	OpRelJumpIfLess
	OpRelJumpIfLessOrEqual
	OpCallFunction
	OpCallProcedure
	OpReturn
	OpGetSine
	OpGetSaw
	OpGetTriangle
	OpGetISaw
	OpGetRandStep
	OpGetMidiCC
)

// DefaultDevice and DefaultChan are the implicit device/channel used
// by GetMidiCC when the caller passes the "_use_context_*" sentinel
// refs and no context value is set, per control_asm.rs's
// DEFAULT_DEVICE/DEFAULT_CHAN constants.
const (
	DefaultDevice int64 = 1
	DefaultChan   int64 = 1
)

// Control is one Control-opcode instruction. Args holds the operand
// Refs in the order the original ControlASM variant's tuple fields
// appear; which indices are read vs written depends on Op and is
// documented opcode-by-opcode in control.go.
type Control struct {
	Op       Op
	Args     []value.Ref
	Shape    generator.Shape
	Modifier generator.Modifier
	ModParam float64
	Target   int   // absolute jump destination (Op*Jump* family)
	RelDelta int64 // relative jump delta (OpRel*Jump* family)
}

// InstrKind tags whether an Instruction is a Control opcode or an
// Effect (event-emitting) instruction.
type InstrKind int

const (
	InstrControl InstrKind = iota
	InstrEffect
)

// Effect instructions cause one event emission and a sleep: Wait names
// the variable holding how long (as a Dur) the execution must sleep
// before its next step, per spec.md §3 "Instruction".
type Effect struct {
	Event Event
	Wait  value.Ref
}

// Instruction is the sum variant Control(opcode) | Effect(event, wait).
type Instruction struct {
	Kind    InstrKind
	Control Control
	Effect  Effect
}

func ControlInstr(c Control) Instruction {
	return Instruction{Kind: InstrControl, Control: c}
}

func EffectInstr(e Effect) Instruction {
	return Instruction{Kind: InstrEffect, Effect: e}
}

// Program is a vector of instructions, the unit a Script compiles to
// and a Func Value carries.
type Program []Instruction
