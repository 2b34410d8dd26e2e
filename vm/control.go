package vm

import (
	"math"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/value"
)

// ReturnKind tags what ExecuteControl tells the runner to do next:
// continue to the next instruction, jump within the current program,
// or swap in a different program (function call/return), grounded on
// scene/script.rs's ReturnInfo.
type ReturnKind int

const (
	ReturnNone ReturnKind = iota
	ReturnIndexChange
	ReturnRelIndexChange
	ReturnProgChange
)

// ReturnInfo is the control-transfer result of one Control opcode.
type ReturnInfo struct {
	Kind        ReturnKind
	Index       int
	RelDelta    int64
	NextProgram Program
}

// ExecuteControl runs one Control instruction against ctx, given the
// call/return stack and the currently-executing program (needed by
// CallFunction/CallProcedure/Return to save/restore position),
// grounded opcode-for-opcode on core/src/vm/control_asm.rs's
// ControlASM::execute.
func ExecuteControl(c Control, ctx *Context, returnStack *[]ReturnInfo, ip int, currentProg Program) ReturnInfo {
	a := func(i int) value.Ref { return c.Args[i] }

	switch c.Op {
	case OpNop:
		return ReturnInfo{}

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		x := ctx.Evaluate(a(0))
		y := ctx.Evaluate(a(1))
		x, y = value.CompatibleCast(x, y, ctx.Clock)
		var res value.Value
		switch c.Op {
		case OpAdd:
			res = value.Add(x, y)
		case OpSub:
			res = value.Sub(x, y)
		case OpMul:
			res = value.Mul(x, y)
		case OpDiv:
			res = value.Div(x, y)
		case OpMod:
			res = value.Rem(x, y)
		}
		ctx.SetVar(a(2), res)
		return ReturnInfo{}

	case OpNeg:
		x := ctx.Evaluate(a(0))
		ctx.SetVar(a(1), negate(x))
		return ReturnInfo{}

	case OpAnd, OpOr, OpXor:
		x := ctx.Evaluate(a(0)).AsBool(ctx.Clock)
		y := ctx.Evaluate(a(1)).AsBool(ctx.Clock)
		var res value.Value
		switch c.Op {
		case OpAnd:
			res = value.And(x, y)
		case OpOr:
			res = value.Or(x, y)
		case OpXor:
			res = value.Xor(x, y)
		}
		ctx.SetVar(a(2), res)
		return ReturnInfo{}

	case OpNot:
		x := ctx.Evaluate(a(0)).AsBool(ctx.Clock)
		ctx.SetVar(a(1), value.Not(x))
		return ReturnInfo{}

	case OpLowerThan, OpLowerOrEqual, OpGreaterThan, OpGreaterOrEqual, OpEqual, OpDifferent:
		x := ctx.Evaluate(a(0))
		y := ctx.Evaluate(a(1))
		cmp := value.Compare(x, y, ctx.Clock)
		var res bool
		switch c.Op {
		case OpLowerThan:
			res = cmp < 0
		case OpLowerOrEqual:
			res = cmp <= 0
		case OpGreaterThan:
			res = cmp > 0
		case OpGreaterOrEqual:
			res = cmp >= 0
		case OpEqual:
			cx, cy := value.CompatibleCast(x, y, ctx.Clock)
			res = value.Equal(cx, cy)
		case OpDifferent:
			cx, cy := value.CompatibleCast(x, y, ctx.Clock)
			res = !value.Equal(cx, cy)
		}
		ctx.SetVar(a(2), value.Bool(res))
		return ReturnInfo{}

	case OpScale:
		val := ctx.AsFloat(ctx.Evaluate(a(0)))
		oldMin := ctx.AsFloat(ctx.Evaluate(a(1)))
		oldMax := ctx.AsFloat(ctx.Evaluate(a(2)))
		newMin := ctx.AsFloat(ctx.Evaluate(a(3)))
		newMax := ctx.AsFloat(ctx.Evaluate(a(4)))
		oldRange := oldMax - oldMin
		var res float64
		if math.Abs(oldRange) < 1e-12 {
			res = newMin
		} else {
			norm := (val - oldMin) / oldRange
			res = newMin + norm*(newMax-newMin)
		}
		lo, hi := math.Min(newMin, newMax), math.Max(newMin, newMax)
		res = math.Max(lo, math.Min(hi, res))
		ctx.SetVar(a(5), value.Float(res))
		return ReturnInfo{}

	case OpClamp:
		val := ctx.AsFloat(ctx.Evaluate(a(0)))
		min := ctx.AsFloat(ctx.Evaluate(a(1)))
		max := ctx.AsFloat(ctx.Evaluate(a(2)))
		ctx.SetVar(a(3), value.Float(math.Max(min, math.Min(max, val))))
		return ReturnInfo{}

	case OpMin:
		ctx.SetVar(a(2), value.Float(math.Min(ctx.AsFloat(ctx.Evaluate(a(0))), ctx.AsFloat(ctx.Evaluate(a(1))))))
		return ReturnInfo{}

	case OpMax:
		ctx.SetVar(a(2), value.Float(math.Max(ctx.AsFloat(ctx.Evaluate(a(0))), ctx.AsFloat(ctx.Evaluate(a(1))))))
		return ReturnInfo{}

	case OpQuantize:
		val := ctx.AsFloat(ctx.Evaluate(a(0)))
		step := ctx.AsFloat(ctx.Evaluate(a(1)))
		res := val
		if math.Abs(step) >= 2.220446049250313e-16 {
			res = math.Round(val/step) * step
		}
		ctx.SetVar(a(2), value.Float(res))
		return ReturnInfo{}

	case OpBitAnd, OpBitOr, OpBitXor, OpShiftLeft, OpShiftRightA, OpShiftRightL:
		x := ctx.Evaluate(a(0)).AsInteger(ctx.Clock)
		y := ctx.Evaluate(a(1)).AsInteger(ctx.Clock)
		var res value.Value
		switch c.Op {
		case OpBitAnd:
			res = value.BitAnd(x, y)
		case OpBitOr:
			res = value.BitOr(x, y)
		case OpBitXor:
			res = value.BitXor(x, y)
		case OpShiftLeft:
			res = value.Shl(x, y)
		case OpShiftRightA:
			res = value.Shr(x, y)
		case OpShiftRightL:
			res = value.LogicalShr(x, y)
		}
		ctx.SetVar(a(2), res)
		return ReturnInfo{}

	case OpBitNot:
		x := ctx.Evaluate(a(0)).AsInteger(ctx.Clock)
		ctx.SetVar(a(1), value.Not(x))
		return ReturnInfo{}

	case OpFloatAsBeats:
		f := ctx.AsFloat(ctx.Evaluate(a(0)).AsFloat(ctx.Clock))
		ctx.SetVar(a(1), value.Dur(clock.Beats(f)))
		return ReturnInfo{}

	case OpFloatAsFrames:
		f := ctx.AsFloat(ctx.Evaluate(a(0)).AsFloat(ctx.Clock))
		ctx.SetVar(a(1), value.Dur(clock.Frames(f)))
		return ReturnInfo{}

	case OpMov:
		ctx.SetVar(a(1), ctx.Evaluate(a(0)))
		return ReturnInfo{}

	case OpIsSet:
		ctx.SetVar(a(1), value.Bool(ctx.HasVar(a(0))))
		return ReturnInfo{}

	case OpPush:
		ctx.Stack.PushBack(ctx.Evaluate(a(0)))
		return ReturnInfo{}

	case OpPop:
		if v, ok := ctx.Stack.PopBack(); ok {
			ctx.SetVar(a(0), v)
		} else {
			ctx.Log.Error("pop from empty stack", "dest", a(0).Name)
			ctx.SetVar(a(0), value.Zero())
		}
		return ReturnInfo{}

	case OpPushFront:
		ctx.Stack.PushFront(ctx.Evaluate(a(0)))
		return ReturnInfo{}

	case OpPopFront:
		if v, ok := ctx.Stack.PopFront(); ok {
			ctx.SetVar(a(0), v)
		} else {
			ctx.Log.Error("pop from empty stack", "dest", a(0).Name)
			ctx.SetVar(a(0), value.Zero())
		}
		return ReturnInfo{}

	case OpMapInsert:
		execMapInsert(c, ctx)
		return ReturnInfo{}
	case OpMapGet:
		execMapGet(c, ctx)
		return ReturnInfo{}
	case OpMapHas:
		execMapHas(c, ctx)
		return ReturnInfo{}
	case OpMapRemove:
		execMapRemove(c, ctx)
		return ReturnInfo{}
	case OpVecPush:
		execVecPush(c, ctx)
		return ReturnInfo{}
	case OpVecPop:
		execVecPop(c, ctx)
		return ReturnInfo{}
	case OpVecLen:
		execVecLen(c, ctx)
		return ReturnInfo{}
	case OpVecInsert:
		execVecInsert(c, ctx)
		return ReturnInfo{}
	case OpVecGet:
		execVecGet(c, ctx)
		return ReturnInfo{}
	case OpVecRemove:
		execVecRemove(c, ctx)
		return ReturnInfo{}

	case OpGenStart:
		ctx.startGenerator(a(0))
		return ReturnInfo{}
	case OpGenGet:
		execGenGet(c, ctx)
		return ReturnInfo{}
	case OpGenSetShape:
		if st, ok := ctx.generatorFor(a(0)); ok {
			st.SetShape(c.Shape, c.ModParam)
		}
		return ReturnInfo{}
	case OpGenAddModifier:
		if st, ok := ctx.generatorFor(a(0)); ok {
			param := ctx.AsFloat(ctx.Evaluate(a(1)))
			st.AddModifier(c.Modifier, param)
		}
		return ReturnInfo{}
	case OpGenRemoveModifier:
		if st, ok := ctx.generatorFor(a(0)); ok {
			st.RemoveModifier(c.Modifier)
		}
		return ReturnInfo{}
	case OpGenConfigureShape:
		if st, ok := ctx.generatorFor(a(0)); ok {
			st.Duty = ctx.AsFloat(ctx.Evaluate(a(1)))
		}
		return ReturnInfo{}
	case OpGenConfigureModifier:
		if st, ok := ctx.generatorFor(a(0)); ok {
			param := ctx.AsFloat(ctx.Evaluate(a(2)))
			st.ConfigureModifier(c.Modifier, param)
		}
		return ReturnInfo{}
	case OpGenSeed:
		if st, ok := ctx.generatorFor(a(0)); ok {
			st.Seed(ctx.Evaluate(a(1)).AsInteger(ctx.Clock).Int)
		}
		return ReturnInfo{}
	case OpGenSave:
		if st, ok := ctx.generatorFor(a(0)); ok {
			ctx.SetVar(a(1), value.Generator(st.Clone()))
		}
		return ReturnInfo{}
	case OpGenRestore:
		dst, dstOk := ctx.generatorFor(a(0))
		src, srcOk := ctx.generatorFor(a(1))
		if dstOk && srcOk {
			dst.RestoreFrom(src)
		}
		return ReturnInfo{}

	case OpJump:
		return ReturnInfo{Kind: ReturnIndexChange, Index: c.Target}
	case OpRelJump:
		return ReturnInfo{Kind: ReturnRelIndexChange, RelDelta: c.RelDelta}

	case OpJumpIf, OpRelJumpIf:
		if ctx.Evaluate(a(0)).AsBool(ctx.Clock).Bl {
			return jumpReturn(c)
		}
		return ReturnInfo{}
	case OpJumpIfNot, OpRelJumpIfNot:
		if !ctx.Evaluate(a(0)).AsBool(ctx.Clock).Bl {
			return jumpReturn(c)
		}
		return ReturnInfo{}

	case OpJumpIfDifferent, OpRelJumpIfDifferent,
		OpJumpIfEqual, OpRelJumpIfEqual,
		OpJumpIfLess, OpRelJumpIfLess,
		OpJumpIfLessOrEqual, OpRelJumpIfLessOrEqual:
		x := ctx.Evaluate(a(0))
		y := ctx.Evaluate(a(1))
		cx, cy := value.CompatibleCast(x, y, ctx.Clock)
		cmp := value.Compare(cx, cy, ctx.Clock)
		eq := value.Equal(cx, cy)
		take := false
		switch c.Op {
		case OpJumpIfDifferent, OpRelJumpIfDifferent:
			take = !eq
		case OpJumpIfEqual, OpRelJumpIfEqual:
			take = eq
		case OpJumpIfLess, OpRelJumpIfLess:
			take = cmp < 0
		case OpJumpIfLessOrEqual, OpRelJumpIfLessOrEqual:
			take = cmp <= 0
		}
		if take {
			return jumpReturn(c)
		}
		return ReturnInfo{}

	case OpCallFunction:
		*returnStack = append(*returnStack, ReturnInfo{Kind: ReturnProgChange, Index: ip + 1, NextProgram: currentProg})
		f := ctx.Evaluate(a(0))
		if f.Kind == value.KindFunc {
			if prog, ok := f.Fn.(Program); ok {
				return ReturnInfo{Kind: ReturnProgChange, Index: 0, NextProgram: prog}
			}
		}
		return ReturnInfo{Kind: ReturnProgChange, Index: 0, NextProgram: Program{ControlInstr(Control{Op: OpReturn})}}

	case OpCallProcedure:
		*returnStack = append(*returnStack, ReturnInfo{Kind: ReturnIndexChange, Index: ip + 1})
		return ReturnInfo{Kind: ReturnIndexChange, Index: c.Target}

	case OpReturn:
		if n := len(*returnStack); n > 0 {
			top := (*returnStack)[n-1]
			*returnStack = (*returnStack)[:n-1]
			return top
		}
		return ReturnInfo{Kind: ReturnIndexChange, Index: math.MaxInt32}

	case OpGetSine, OpGetSaw, OpGetTriangle, OpGetISaw, OpGetRandStep:
		execOscillator(c, ctx)
		return ReturnInfo{}

	case OpGetMidiCC:
		execGetMidiCC(c, ctx)
		return ReturnInfo{}

	default:
		return ReturnInfo{}
	}
}

func jumpReturn(c Control) ReturnInfo {
	switch c.Op {
	case OpJumpIf, OpJumpIfNot, OpJumpIfDifferent, OpJumpIfEqual, OpJumpIfLess, OpJumpIfLessOrEqual:
		return ReturnInfo{Kind: ReturnIndexChange, Index: c.Target}
	default:
		return ReturnInfo{Kind: ReturnRelIndexChange, RelDelta: c.RelDelta}
	}
}

func negate(v value.Value) value.Value {
	switch v.Kind {
	case value.KindInteger:
		return value.Integer(-v.Int)
	case value.KindFloat:
		return value.Float(-v.Flt)
	default:
		return value.Zero()
	}
}
