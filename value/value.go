// Package value implements the dynamically typed Value union shared
// by every variable store and bytecode opcode, along with the total
// compatible_cast coercion rules opcodes rely on.
package value

import (
	"fmt"
	"strconv"

	"github.com/brassline/core/clock"
)

// Kind tags which variant a Value holds.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindDecimal
	KindBool
	KindStr
	KindDur
	KindMap
	KindVec
	KindFunc
	KindGenerator
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindDecimal:
		return "Decimal"
	case KindBool:
		return "Bool"
	case KindStr:
		return "Str"
	case KindDur:
		return "Dur"
	case KindMap:
		return "Map"
	case KindVec:
		return "Vec"
	case KindFunc:
		return "Func"
	case KindGenerator:
		return "Generator"
	default:
		return "Unknown"
	}
}

// Value is the tagged union of every runtime type in the language:
// Integer, Float, Decimal (exact rational, sign+numerator+denominator),
// Bool, Str, Dur (a clock.TimeSpan), Map, Vec, Func (an opaque program
// reference owned by the vm package) and Generator (an opaque
// generator descriptor owned by the generator package). Func and
// Generator are stored as interface{} to avoid an import cycle with
// the packages that define their concrete shapes; Value itself never
// inspects them beyond passing them through.
type Value struct {
	Kind Kind

	Int   int64
	Flt   float64
	Bl    bool
	Txt   string
	Dur   clock.TimeSpan
	Mp    map[string]Value
	Vc    []Value
	Fn    any
	GenV  any

	DecimalSign  int8 // -1 or +1
	DecimalNum   uint64
	DecimalDenom uint64
}

func Integer(i int64) Value  { return Value{Kind: KindInteger, Int: i} }
func Float(f float64) Value  { return Value{Kind: KindFloat, Flt: f} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bl: b} }
func Str(s string) Value     { return Value{Kind: KindStr, Txt: s} }
func Dur(t clock.TimeSpan) Value { return Value{Kind: KindDur, Dur: t} }
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindMap, Mp: m}
}
func Vec(v []Value) Value    { return Value{Kind: KindVec, Vc: v} }
func Func(program any) Value { return Value{Kind: KindFunc, Fn: program} }
func Generator(descriptor any) Value {
	return Value{Kind: KindGenerator, GenV: descriptor}
}

func Decimal(sign int8, numerator, denominator uint64) Value {
	if sign >= 0 {
		sign = 1
	} else {
		sign = -1
	}
	if denominator == 0 {
		denominator = 1
	}
	return Value{Kind: KindDecimal, DecimalSign: sign, DecimalNum: numerator, DecimalDenom: denominator}
}

// Zero is the falsy default value returned whenever an opcode hits an
// undefined operation: spec.md calls this the "false default".
func Zero() Value { return Bool(false) }

// ZeroLike returns the zero value of the same Kind, used by variable
// type-matching (MakeAs in the original) to declare a variable's type
// without copying its value.
func (v Value) ZeroLike() Value {
	switch v.Kind {
	case KindInteger:
		return Integer(0)
	case KindFloat:
		return Float(0)
	case KindDecimal:
		return Decimal(1, 0, 1)
	case KindBool:
		return Bool(false)
	case KindStr:
		return Str("")
	case KindDur:
		return Dur(clock.Micros(0))
	case KindMap:
		return Map(nil)
	case KindVec:
		return Vec(nil)
	case KindFunc:
		return Func(nil)
	case KindGenerator:
		return Generator(nil)
	default:
		return Zero()
	}
}

func (v Value) decimalFloat() float64 {
	f := float64(v.DecimalNum) / float64(v.DecimalDenom)
	if v.DecimalSign < 0 {
		return -f
	}
	return f
}

// AsInteger coerces to Integer under the fixed rules: float rounds,
// bool maps 0/1, string parses (0 on failure), duration resolves
// against c in microseconds, decimal rounds its float value like float.
func (v Value) AsInteger(c *clock.Clock) Value {
	switch v.Kind {
	case KindInteger:
		return v
	case KindFloat:
		return Integer(int64(roundHalfAwayFromZero(v.Flt)))
	case KindDecimal:
		return Integer(int64(roundHalfAwayFromZero(v.decimalFloat())))
	case KindBool:
		if v.Bl {
			return Integer(1)
		}
		return Integer(0)
	case KindStr:
		n, err := strconv.ParseInt(v.Txt, 10, 64)
		if err != nil {
			return Integer(0)
		}
		return Integer(n)
	case KindDur:
		return Integer(int64(v.Dur.AsMicros(c, 0)))
	default:
		return Integer(0)
	}
}

// AsFloat coerces to Float under the fixed rules.
func (v Value) AsFloat(c *clock.Clock) Value {
	switch v.Kind {
	case KindInteger:
		return Float(float64(v.Int))
	case KindFloat:
		return v
	case KindDecimal:
		return Float(v.decimalFloat())
	case KindBool:
		if v.Bl {
			return Float(1)
		}
		return Float(0)
	case KindStr:
		f, err := strconv.ParseFloat(v.Txt, 64)
		if err != nil {
			return Float(0)
		}
		return Float(f)
	case KindDur:
		return Float(float64(v.Dur.AsMicros(c, 0)))
	default:
		return Float(0)
	}
}

// AsBool coerces to Bool: nonzero numeric, nonempty string, nonzero
// duration. Total — always returns a Bool Value.
func (v Value) AsBool(c *clock.Clock) Value {
	switch v.Kind {
	case KindInteger:
		return Bool(v.Int != 0)
	case KindFloat:
		return Bool(v.Flt != 0)
	case KindDecimal:
		return Bool(v.DecimalNum != 0)
	case KindBool:
		return v
	case KindStr:
		return Bool(len(v.Txt) > 0)
	case KindDur:
		return Bool(v.Dur.AsMicros(c, 0) != 0)
	case KindVec:
		return Bool(len(v.Vc) > 0)
	case KindMap:
		return Bool(len(v.Mp) > 0)
	default:
		return Bool(false)
	}
}

// AsStr coerces to Str. Total.
func (v Value) AsStr(c *clock.Clock) Value {
	switch v.Kind {
	case KindInteger:
		return Str(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		return Str(strconv.FormatFloat(v.Flt, 'g', -1, 64))
	case KindDecimal:
		return Str(strconv.FormatFloat(v.decimalFloat(), 'g', -1, 64))
	case KindBool:
		if v.Bl {
			return Str("True")
		}
		return Str("False")
	case KindStr:
		return v
	case KindDur:
		return Str(strconv.FormatUint(v.Dur.AsMicros(c, 0), 10))
	default:
		return Str(fmt.Sprintf("%v", v))
	}
}

// AsDur coerces to Dur. Bool, Map, Vec, Func, Generator have no
// sensible duration and produce zero, matching the original's
// documented "decide later" stance on those combinations.
func (v Value) AsDur(c *clock.Clock) Value {
	switch v.Kind {
	case KindInteger:
		n := v.Int
		if n < 0 {
			n = -n
		}
		return Dur(clock.Micros(uint64(n)))
	case KindFloat:
		n := int64(roundHalfAwayFromZero(v.Flt))
		if n < 0 {
			n = -n
		}
		return Dur(clock.Micros(uint64(n)))
	case KindDur:
		return v
	default:
		return Dur(clock.Micros(0))
	}
}

// isNumeric reports whether a Kind participates in the numeric
// coercion ladder (Integer < Float, everything else is either already
// compatible or coerces to Float/Integer as a fallback).
func isNumeric(k Kind) bool {
	return k == KindInteger || k == KindFloat || k == KindDecimal
}

// CompatibleCast is the opcode-facing coercion helper: given two
// operands, it returns both converted to whichever type is "more
// general" so that a single arithmetic/comparison implementation can
// assume matching kinds. It is total — every pair of kinds resolves to
// some pair of matching-kind results, per spec.md's coercion table:
// Int+Float -> Float, Int+Dur -> Dur(with int's micros), any+Str ->
// Str where defined, and otherwise both sides fall back to their
// shared Bool truthiness as the documented "false default".
func CompatibleCast(x, y Value, c *clock.Clock) (Value, Value) {
	if x.Kind == y.Kind {
		return x, y
	}

	switch {
	case x.Kind == KindStr || y.Kind == KindStr:
		return x.AsStr(c), y.AsStr(c)

	case x.Kind == KindDur || y.Kind == KindDur:
		if isNumeric(x.Kind) || isNumeric(y.Kind) {
			return x.AsDur(c), y.AsDur(c)
		}
		return x.AsBool(c), y.AsBool(c)

	case isNumeric(x.Kind) && isNumeric(y.Kind):
		// widest numeric kind wins: Float outranks Integer
		if x.Kind == KindInteger && y.Kind != KindDecimal {
			return widen(x, y, c), y
		}
		if y.Kind == KindInteger && x.Kind != KindDecimal {
			return x, widen(y, x, c)
		}
		// Decimal vs Float or Integer: resolve both to Float
		return x.AsFloat(c), y.AsFloat(c)

	case x.Kind == KindBool || y.Kind == KindBool:
		return x.AsBool(c), y.AsBool(c)

	default:
		return x.AsBool(c), y.AsBool(c)
	}
}

// widen converts the Integer side (v) to match the other numeric
// side's kind (other).
func widen(v, other Value, c *clock.Clock) Value {
	switch other.Kind {
	case KindFloat:
		return v.AsFloat(c)
	case KindDecimal:
		return v.AsFloat(c) // decimal arithmetic is not exercised on the Integer side; Float is the safe common ground
	default:
		return v
	}
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}

// Equal implements value equality used by comparison opcodes and Map
// key lookups after coercion; Map, Vec, Func and Generator values never
// compare equal, mirroring the original's PartialEq derive falling
// through to false for non-comparable payloads.
func Equal(x, y Value) bool {
	if x.Kind != y.Kind {
		return false
	}
	switch x.Kind {
	case KindInteger:
		return x.Int == y.Int
	case KindFloat:
		return x.Flt == y.Flt
	case KindDecimal:
		return x.DecimalSign == y.DecimalSign && x.DecimalNum == y.DecimalNum && x.DecimalDenom == y.DecimalDenom
	case KindBool:
		return x.Bl == y.Bl
	case KindStr:
		return x.Txt == y.Txt
	case KindDur:
		return x.Dur == y.Dur
	default:
		return false
	}
}

// Compare returns -1/0/1 after coercing x and y to a common kind,
// mirroring the original's PartialOrd on VariableValue. Non-orderable
// kinds (Map/Vec/Func/Generator) always compare equal (0), matching
// "undefined combinations yield a false default" rather than panicking.
func Compare(x, y Value, c *clock.Clock) int {
	cx, cy := CompatibleCast(x, y, c)
	switch cx.Kind {
	case KindInteger:
		switch {
		case cx.Int < cy.Int:
			return -1
		case cx.Int > cy.Int:
			return 1
		default:
			return 0
		}
	case KindFloat:
		switch {
		case cx.Flt < cy.Flt:
			return -1
		case cx.Flt > cy.Flt:
			return 1
		default:
			return 0
		}
	case KindBool:
		bx, by := 0, 0
		if cx.Bl {
			bx = 1
		}
		if cy.Bl {
			by = 1
		}
		return bx - by
	case KindStr:
		switch {
		case cx.Txt < cy.Txt:
			return -1
		case cx.Txt > cy.Txt:
			return 1
		default:
			return 0
		}
	case KindDur:
		switch {
		case cx.Dur.AsMicros(c, 0) < cy.Dur.AsMicros(c, 0):
			return -1
		case cx.Dur.AsMicros(c, 0) > cy.Dur.AsMicros(c, 0):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}
