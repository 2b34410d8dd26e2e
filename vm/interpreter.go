package vm

import "github.com/brassline/core/value"

// Interpreter is the polymorphic execution engine a running Line
// instance drives one step at a time. The Control bytecode machine
// (ControlInterpreter, below) and the Forth-like interpreter
// (vm/forth.Interpreter) both satisfy it, letting the Scheduler step
// either kind identically regardless of which compiler produced the
// running Line's script, grounded on core/src/vm/interpreter.rs's
// Interpreter trait.
type Interpreter interface {
	// ExecuteNext runs until it has an event to emit or a wait to
	// report, returning a nil event when only a wait applies (a Control
	// opcode run with no Effect reached yet, or a Forth "wait" word).
	ExecuteNext(ctx *Context) (event *ConcreteEvent, waitMicros uint64)
	HasTerminated() bool
	Stop()
}

// ControlInterpreter adapts an Execution of a Control-bytecode Program
// to the Interpreter contract.
type ControlInterpreter struct {
	ex              *Execution
	maxControlSteps int
	stopped         bool
}

// NewControlInterpreter starts a Control interpreter over prog with the
// given Instance/Frame scopes. maxControlSteps bounds how many Control
// instructions run before an Effect is reached, guarding against a
// Program with an unconditional Control-only loop.
func NewControlInterpreter(prog Program, scopes value.Scopes) *ControlInterpreter {
	return &ControlInterpreter{ex: NewExecution(prog, scopes), maxControlSteps: 10_000}
}

func (ci *ControlInterpreter) ExecuteNext(ctx *Context) (*ConcreteEvent, uint64) {
	if ci.stopped || ci.ex.Done() {
		return nil, 0
	}
	// evaluate against the Frame/Instance scopes this interpreter was
	// started with when the caller's Context carries none
	if ctx.Scopes.Frame == nil {
		ctx.Scopes.Frame = ci.ex.Scopes.Frame
	}
	if ctx.Scopes.Instance == nil {
		ctx.Scopes.Instance = ci.ex.Scopes.Instance
	}
	ev, wait, ok := ci.ex.Step(ctx, ci.maxControlSteps)
	if !ok {
		return nil, 0
	}
	return &ev, wait
}

func (ci *ControlInterpreter) HasTerminated() bool {
	return ci.stopped || ci.ex.Done()
}

func (ci *ControlInterpreter) Stop() {
	ci.stopped = true
}

// InterpreterFactory names one compiler-to-interpreter pairing
// (e.g. "forth") so the Scheduler can build a fresh
// Interpreter for a Line's compiled output without switching on a
// closed set of concrete types, grounded on
// core/src/lang/forth/factory.rs's InterpreterFactory trait.
type InterpreterFactory interface {
	Name() string
	MakeInterpreter(source string, prog Program, scopes value.Scopes) (Interpreter, error)
}
