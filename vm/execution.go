package vm

import "github.com/brassline/core/value"

// Execution is one running instance of a Line's compiled Program: the
// Scheduler creates a fresh Execution every time a Frame triggers a
// Line, and steps it forward one Instruction at a time until it emits
// an Effect (producing a ConcreteEvent plus how long to wait) or runs
// off the end of its Program. Grounded on scene/script.rs's per-Line
// running state.
type Execution struct {
	Program Program
	IP      int

	Scopes value.Scopes

	returnStack []ReturnInfo

	// Halted is set once IP runs past the end of Program with no call
	// frames left to return to.
	Halted bool
}

// NewExecution starts a fresh Execution of prog with the given Instance
// and Frame scopes (Global/Line are shared with the owning Line and
// passed in already populated).
func NewExecution(prog Program, scopes value.Scopes) *Execution {
	return &Execution{Program: prog, Scopes: scopes}
}

// Step runs Control instructions until the next Effect instruction,
// terminal halt, or a step budget is exhausted (guarding against an
// infinite Control-only loop with no Effect ever emitted). It returns
// the resolved ConcreteEvent and wait duration of the Effect reached,
// or ok=false if execution halted without one.
func (ex *Execution) Step(ctx *Context, maxControlSteps int) (event ConcreteEvent, waitMicros uint64, ok bool) {
	for steps := 0; steps < maxControlSteps; steps++ {
		if ex.IP < 0 || ex.IP >= len(ex.Program) {
			ex.Halted = true
			return ConcreteEvent{}, 0, false
		}

		instr := ex.Program[ex.IP]
		switch instr.Kind {
		case InstrControl:
			ret := ExecuteControl(instr.Control, ctx, &ex.returnStack, ex.IP, ex.Program)
			ex.applyReturn(ret)

		case InstrEffect:
			concrete := instr.Effect.Event.MakeConcrete(ctx)
			wait := ctx.AsDurMicros(ctx.Evaluate(instr.Effect.Wait))
			ex.IP++
			return concrete, wait, true
		}
	}

	ctx.Log.Warn("execution exceeded control-step budget without an Effect", "steps", maxControlSteps)
	return ConcreteEvent{}, 0, false
}

// applyReturn advances IP (or swaps in a new Program) per the
// ReturnInfo a Control instruction produced.
func (ex *Execution) applyReturn(ret ReturnInfo) {
	switch ret.Kind {
	case ReturnNone:
		ex.IP++
	case ReturnIndexChange:
		ex.IP = ret.Index
	case ReturnRelIndexChange:
		ex.IP += int(ret.RelDelta)
	case ReturnProgChange:
		ex.Program = ret.NextProgram
		ex.IP = ret.Index
	}
}

// Done reports whether this Execution has no more work: halted, or its
// IP has run past the end of its (possibly call-swapped) Program with
// an empty return stack.
func (ex *Execution) Done() bool {
	return ex.Halted || (ex.IP >= len(ex.Program) && len(ex.returnStack) == 0)
}
