package vm

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/logging"
	"github.com/brassline/core/value"
)

func testClock() *clock.Clock {
	now := clock.SyncTime(0)
	src := clock.NewInternalBeatSource(120, func() clock.SyncTime { return now })
	src.Enable()
	return clock.NewClock(src, 4)
}

func newTestCtx() *Context {
	scopes := value.Scopes{Global: value.NewStore(), Line: value.NewStore(), Frame: value.NewStore(), Instance: value.NewStore()}
	return NewContext(scopes, testClock(), 1.0, nil, nil, logging.New(io.Discard, log.ErrorLevel))
}

func runOp(ctx *Context, c Control) ReturnInfo {
	var returnStack []ReturnInfo
	return ExecuteControl(c, ctx, &returnStack, 0, nil)
}

func TestArithmeticOpsInteger(t *testing.T) {
	cases := []struct {
		op   Op
		x, y int64
		want int64
	}{
		{OpAdd, 2, 3, 5},
		{OpSub, 5, 3, 2},
		{OpMul, 4, 3, 12},
		{OpDiv, 9, 3, 3},
		{OpMod, 9, 4, 1},
	}
	for _, tc := range cases {
		ctx := newTestCtx()
		dest := value.GlobalRef("out")
		runOp(ctx, Control{Op: tc.op, Args: []value.Ref{value.ConstantRef(value.Integer(tc.x)), value.ConstantRef(value.Integer(tc.y)), dest}})
		got := ctx.Evaluate(dest)
		if got.Kind != value.KindInteger || got.Int != tc.want {
			t.Fatalf("op %v: %d,%d => got %+v, want %d", tc.op, tc.x, tc.y, got, tc.want)
		}
	}
}

func TestArithmeticOpsFloat(t *testing.T) {
	cases := []struct {
		op   Op
		x, y float64
		want float64
	}{
		{OpAdd, 2.5, 1.5, 4.0},
		{OpSub, 5.5, 2.0, 3.5},
		{OpMul, 2.0, 2.5, 5.0},
		{OpDiv, 9.0, 2.0, 4.5},
		{OpMod, 9.5, 2.0, 1.5},
	}
	for _, tc := range cases {
		ctx := newTestCtx()
		dest := value.GlobalRef("out")
		runOp(ctx, Control{Op: tc.op, Args: []value.Ref{value.ConstantRef(value.Float(tc.x)), value.ConstantRef(value.Float(tc.y)), dest}})
		got := ctx.Evaluate(dest)
		if got.Kind != value.KindFloat || got.Flt != tc.want {
			t.Fatalf("op %v: %v,%v => got %+v, want %v", tc.op, tc.x, tc.y, got, tc.want)
		}
	}
}

// TestDivByZeroReturnsLeftOperand guards against the earlier defect
// where division by zero silently produced a zero value instead of
// the left operand (spec.md §4.2/§8).
func TestDivByZeroReturnsLeftOperand(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpDiv, Args: []value.Ref{value.ConstantRef(value.Integer(7)), value.ConstantRef(value.Integer(0)), dest}})
	if got := ctx.Evaluate(dest); got.Int != 7 {
		t.Fatalf("integer div by zero: got %+v, want left operand 7", got)
	}

	ctx = newTestCtx()
	runOp(ctx, Control{Op: OpDiv, Args: []value.Ref{value.ConstantRef(value.Float(3.5)), value.ConstantRef(value.Float(0)), dest}})
	if got := ctx.Evaluate(dest); got.Flt != 3.5 {
		t.Fatalf("float div by zero: got %+v, want left operand 3.5", got)
	}
}

// TestModByZeroReturnsLeftOperand mirrors the Div case: Mod/Rem by
// zero must yield the left operand unchanged, and the float branch
// must actually compute math.Mod for a non-zero divisor rather than
// always returning zero.
func TestModByZeroReturnsLeftOperand(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpMod, Args: []value.Ref{value.ConstantRef(value.Integer(7)), value.ConstantRef(value.Integer(0)), dest}})
	if got := ctx.Evaluate(dest); got.Int != 7 {
		t.Fatalf("integer mod by zero: got %+v, want left operand 7", got)
	}

	ctx = newTestCtx()
	runOp(ctx, Control{Op: OpMod, Args: []value.Ref{value.ConstantRef(value.Float(7.5)), value.ConstantRef(value.Float(0)), dest}})
	if got := ctx.Evaluate(dest); got.Flt != 7.5 {
		t.Fatalf("float mod by zero: got %+v, want left operand 7.5", got)
	}

	ctx = newTestCtx()
	runOp(ctx, Control{Op: OpMod, Args: []value.Ref{value.ConstantRef(value.Float(9.5)), value.ConstantRef(value.Float(2.0)), dest}})
	if got := ctx.Evaluate(dest); got.Flt != 1.5 {
		t.Fatalf("float mod: got %+v, want 1.5", got)
	}
}

func TestComparisonOps(t *testing.T) {
	cases := []struct {
		op   Op
		x, y int64
		want bool
	}{
		{OpLowerThan, 1, 2, true},
		{OpLowerThan, 2, 1, false},
		{OpGreaterThan, 2, 1, true},
		{OpLowerOrEqual, 2, 2, true},
		{OpGreaterOrEqual, 1, 2, false},
		{OpEqual, 3, 3, true},
		{OpDifferent, 3, 3, false},
		{OpDifferent, 3, 4, true},
	}
	for _, tc := range cases {
		ctx := newTestCtx()
		dest := value.GlobalRef("out")
		runOp(ctx, Control{Op: tc.op, Args: []value.Ref{value.ConstantRef(value.Integer(tc.x)), value.ConstantRef(value.Integer(tc.y)), dest}})
		got := ctx.Evaluate(dest)
		if got.Kind != value.KindBool || got.Bl != tc.want {
			t.Fatalf("op %v: %d,%d => got %+v, want %v", tc.op, tc.x, tc.y, got, tc.want)
		}
	}
}

func TestScaleClampsToNewRange(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpScale, Args: []value.Ref{
		value.ConstantRef(value.Float(15)),
		value.ConstantRef(value.Float(0)), value.ConstantRef(value.Float(10)),
		value.ConstantRef(value.Float(0)), value.ConstantRef(value.Float(100)),
		dest,
	}})
	if got := ctx.Evaluate(dest); got.Flt != 100 {
		t.Fatalf("expected out-of-range input clamped to 100, got %+v", got)
	}
}

func TestClamp(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpClamp, Args: []value.Ref{
		value.ConstantRef(value.Float(-5)), value.ConstantRef(value.Float(0)), value.ConstantRef(value.Float(10)), dest,
	}})
	if got := ctx.Evaluate(dest); got.Flt != 0 {
		t.Fatalf("expected clamp to floor 0, got %+v", got)
	}
}

func TestQuantizeRoundsToStep(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpQuantize, Args: []value.Ref{value.ConstantRef(value.Float(7)), value.ConstantRef(value.Float(5)), dest}})
	if got := ctx.Evaluate(dest); got.Flt != 5 {
		t.Fatalf("expected quantize(7,5)=5, got %+v", got)
	}
}

func TestBitwiseOps(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpBitAnd, Args: []value.Ref{value.ConstantRef(value.Integer(0b1100)), value.ConstantRef(value.Integer(0b1010)), dest}})
	if got := ctx.Evaluate(dest); got.Int != 0b1000 {
		t.Fatalf("bitand: got %+v, want 0b1000", got)
	}

	ctx = newTestCtx()
	runOp(ctx, Control{Op: OpShiftLeft, Args: []value.Ref{value.ConstantRef(value.Integer(1)), value.ConstantRef(value.Integer(4)), dest}})
	if got := ctx.Evaluate(dest); got.Int != 16 {
		t.Fatalf("shl: got %+v, want 16", got)
	}
}

func TestMovAndIsSet(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpMov, Args: []value.Ref{value.ConstantRef(value.Integer(42)), dest}})
	if got := ctx.Evaluate(dest); got.Int != 42 {
		t.Fatalf("mov: got %+v, want 42", got)
	}

	present := value.GlobalRef("present")
	absent := value.GlobalRef("absent")
	ctx.SetVar(present, value.Integer(1))
	flag := value.GlobalRef("flag")
	runOp(ctx, Control{Op: OpIsSet, Args: []value.Ref{present, flag}})
	if got := ctx.Evaluate(flag); !got.Bl {
		t.Fatalf("expected IsSet true for a present variable")
	}
	runOp(ctx, Control{Op: OpIsSet, Args: []value.Ref{absent, flag}})
	if got := ctx.Evaluate(flag); got.Bl {
		t.Fatalf("expected IsSet false for an absent variable")
	}
}

func TestStackPushPopIsLIFO(t *testing.T) {
	ctx := newTestCtx()
	runOp(ctx, Control{Op: OpPush, Args: []value.Ref{value.ConstantRef(value.Integer(1))}})
	runOp(ctx, Control{Op: OpPush, Args: []value.Ref{value.ConstantRef(value.Integer(2))}})

	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpPop, Args: []value.Ref{dest}})
	if got := ctx.Evaluate(dest); got.Int != 2 {
		t.Fatalf("expected LIFO pop to yield 2 first, got %+v", got)
	}
	runOp(ctx, Control{Op: OpPop, Args: []value.Ref{dest}})
	if got := ctx.Evaluate(dest); got.Int != 1 {
		t.Fatalf("expected second pop to yield 1, got %+v", got)
	}
}

func TestStackPushFrontPopFrontIsLIFO(t *testing.T) {
	ctx := newTestCtx()
	runOp(ctx, Control{Op: OpPushFront, Args: []value.Ref{value.ConstantRef(value.Integer(1))}})
	runOp(ctx, Control{Op: OpPushFront, Args: []value.Ref{value.ConstantRef(value.Integer(2))}})

	dest := value.GlobalRef("out")
	runOp(ctx, Control{Op: OpPopFront, Args: []value.Ref{dest}})
	if got := ctx.Evaluate(dest); got.Int != 2 {
		t.Fatalf("expected most recently front-pushed value first, got %+v", got)
	}
}

// TestPopEmptyStackDefaultsToZero guards against the earlier defect
// where popping an empty stack left dest untouched instead of setting
// a default value (spec.md §8).
func TestPopEmptyStackDefaultsToZero(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	ctx.SetVar(dest, value.Integer(99))
	runOp(ctx, Control{Op: OpPop, Args: []value.Ref{dest}})
	if got := ctx.Evaluate(dest); !value.Equal(got, value.Zero()) {
		t.Fatalf("expected pop from empty stack to default dest to Zero(), got %+v", got)
	}
}

func TestPopFrontEmptyStackDefaultsToZero(t *testing.T) {
	ctx := newTestCtx()
	dest := value.GlobalRef("out")
	ctx.SetVar(dest, value.Integer(99))
	runOp(ctx, Control{Op: OpPopFront, Args: []value.Ref{dest}})
	if got := ctx.Evaluate(dest); !value.Equal(got, value.Zero()) {
		t.Fatalf("expected pop-front from empty stack to default dest to Zero(), got %+v", got)
	}
}

func TestJumpReturnsIndexChange(t *testing.T) {
	ctx := newTestCtx()
	ret := runOp(ctx, Control{Op: OpJump, Target: 5})
	if ret.Kind != ReturnIndexChange || ret.Index != 5 {
		t.Fatalf("expected jump to index 5, got %+v", ret)
	}
}

func TestJumpIfTakesBranchOnlyWhenTrue(t *testing.T) {
	ctx := newTestCtx()
	ret := runOp(ctx, Control{Op: OpJumpIf, Args: []value.Ref{value.ConstantRef(value.Bool(true))}, Target: 3})
	if ret.Kind != ReturnIndexChange || ret.Index != 3 {
		t.Fatalf("expected jump taken on true condition, got %+v", ret)
	}

	ret = runOp(ctx, Control{Op: OpJumpIf, Args: []value.Ref{value.ConstantRef(value.Bool(false))}, Target: 3})
	if ret.Kind != ReturnNone {
		t.Fatalf("expected no jump on false condition, got %+v", ret)
	}
}

func TestRelJumpIfLessTakesBranch(t *testing.T) {
	ctx := newTestCtx()
	ret := runOp(ctx, Control{
		Op:       OpRelJumpIfLess,
		Args:     []value.Ref{value.ConstantRef(value.Integer(1)), value.ConstantRef(value.Integer(2))},
		RelDelta: -4,
	})
	if ret.Kind != ReturnRelIndexChange || ret.RelDelta != -4 {
		t.Fatalf("expected relative jump taken, got %+v", ret)
	}
}

func TestCallProcedureAndReturn(t *testing.T) {
	ctx := newTestCtx()
	var returnStack []ReturnInfo

	ret := ExecuteControl(Control{Op: OpCallProcedure, Target: 10}, ctx, &returnStack, 2, nil)
	if ret.Kind != ReturnIndexChange || ret.Index != 10 {
		t.Fatalf("expected call to jump to target 10, got %+v", ret)
	}
	if len(returnStack) != 1 || returnStack[0].Index != 3 {
		t.Fatalf("expected return address ip+1=3 pushed, got %+v", returnStack)
	}

	ret = ExecuteControl(Control{Op: OpReturn}, ctx, &returnStack, 10, nil)
	if ret.Kind != ReturnIndexChange || ret.Index != 3 {
		t.Fatalf("expected return to pop back to index 3, got %+v", ret)
	}
	if len(returnStack) != 0 {
		t.Fatalf("expected return stack drained, got %+v", returnStack)
	}
}

func TestExecutionStepsToEffect(t *testing.T) {
	prog := Program{
		ControlInstr(Control{Op: OpMov, Args: []value.Ref{value.ConstantRef(value.Integer(1)), value.GlobalRef("marker")}}),
		EffectInstr(Effect{Event: Event{Kind: EventNop}, Wait: value.ConstantRef(value.Dur(clock.Micros(0)))}),
	}
	scopes := value.Scopes{Global: value.NewStore(), Line: value.NewStore(), Frame: value.NewStore(), Instance: value.NewStore()}
	ex := NewExecution(prog, scopes)
	ctx := NewContext(scopes, testClock(), 1.0, nil, nil, logging.New(io.Discard, log.ErrorLevel))

	ev, wait, ok := ex.Step(ctx, 100)
	if !ok {
		t.Fatal("expected Step to reach the Effect instruction")
	}
	if ev.Kind != EventNop {
		t.Fatalf("expected EventNop, got %v", ev.Kind)
	}
	if wait != 0 {
		t.Fatalf("expected zero wait, got %d", wait)
	}
	if got, _ := scopes.Global.Get("marker"); got.Int != 1 {
		t.Fatalf("expected the Mov before the Effect to have run, got %+v", got)
	}
}

func TestExecutionHaltsPastProgramEnd(t *testing.T) {
	prog := Program{
		ControlInstr(Control{Op: OpNop}),
		ControlInstr(Control{Op: OpNop}),
	}
	scopes := value.Scopes{Global: value.NewStore(), Line: value.NewStore(), Frame: value.NewStore(), Instance: value.NewStore()}
	ex := NewExecution(prog, scopes)
	ctx := NewContext(scopes, testClock(), 1.0, nil, nil, logging.New(io.Discard, log.ErrorLevel))

	_, _, ok := ex.Step(ctx, 100)
	if ok {
		t.Fatal("expected no Effect to be reached in an all-Control program")
	}
	if !ex.Halted {
		t.Fatal("expected Execution to be marked Halted after running off the end")
	}
	if !ex.Done() {
		t.Fatal("expected Done() to report true once halted")
	}
}

func TestExecutionStepBudgetExhaustionLogsAndReturnsNotOk(t *testing.T) {
	prog := Program{ControlInstr(Control{Op: OpJump, Target: 0})}
	scopes := value.Scopes{Global: value.NewStore(), Line: value.NewStore(), Frame: value.NewStore(), Instance: value.NewStore()}
	ex := &Execution{Program: prog, Scopes: scopes}
	ctx := NewContext(scopes, testClock(), 1.0, nil, nil, logging.New(io.Discard, log.ErrorLevel))

	_, _, ok := ex.Step(ctx, 10)
	if ok {
		t.Fatal("expected an infinite Control-only loop to exhaust its step budget without an Effect")
	}
	if ex.Halted {
		t.Fatal("budget exhaustion is not the same as halting -- the execution may still be retried next tick")
	}
}
