package generator

import (
	"math"
	"testing"

	"github.com/brassline/core/value"
)

func TestNewDefaultsToSine(t *testing.T) {
	g := New(1)
	if g.Shape != ShapeSine {
		t.Fatalf("expected default shape Sine, got %v", g.Shape)
	}
	if g.Speed != 1.0 {
		t.Fatalf("expected default speed 1.0, got %v", g.Speed)
	}
}

func TestSampleSine(t *testing.T) {
	g := New(1)
	v := g.Sample(0.25)
	if v.Kind != value.KindFloat {
		t.Fatalf("expected Float, got %v", v.Kind)
	}
	if math.Abs(v.Flt-1.0) > 1e-9 {
		t.Fatalf("expected sin(pi/2)=1.0, got %v", v.Flt)
	}
}

func TestSampleSquareRespectsDuty(t *testing.T) {
	g := New(1)
	g.SetShape(ShapeSquare, 0.5)
	if v := g.Sample(0.25); v.Flt != 1 {
		t.Fatalf("expected 1 below duty cycle, got %v", v.Flt)
	}
	if v := g.Sample(0.75); v.Flt != 0 {
		t.Fatalf("expected 0 above duty cycle, got %v", v.Flt)
	}
}

func TestSampleTableClampsIndex(t *testing.T) {
	g := New(1)
	g.SetTable([]value.Value{value.Integer(1), value.Integer(2), value.Integer(3)})
	if v := g.Sample(-1); v.Int != 1 {
		t.Fatalf("expected clamp to first entry, got %v", v.Int)
	}
	if v := g.Sample(0.99); v.Int != 3 {
		t.Fatalf("expected clamp to last entry, got %v", v.Int)
	}
}

func TestSampleTableEmptyReturnsZero(t *testing.T) {
	g := New(1)
	g.SetTable(nil)
	if v := g.Sample(0.5); !value.Equal(v, value.Zero()) {
		t.Fatalf("expected Zero() for empty table, got %v", v)
	}
}

func TestSampleReversedWrapsInner(t *testing.T) {
	inner := New(1)
	inner.SetShape(ShapeSaw, 0)
	outer := New(2)
	outer.SetReversed(inner)

	got := outer.Sample(0.3)
	want := inner.Sample(0.7)
	if math.Abs(got.Flt-want.Flt) > 1e-9 {
		t.Fatalf("expected reversed sample %v, got %v", want.Flt, got.Flt)
	}
}

func TestSampleReversedNilInnerReturnsZero(t *testing.T) {
	g := New(1)
	g.SetReversed(nil)
	if v := g.Sample(0.5); !value.Equal(v, value.Zero()) {
		t.Fatalf("expected Zero() for nil inner, got %v", v)
	}
}

func TestAdvanceAccumulatesPhase(t *testing.T) {
	g := New(1)
	g.Speed = 1.0
	g.Advance(0.5)
	if math.Abs(g.Phase-0.5) > 1e-9 {
		t.Fatalf("expected phase 0.5 after advancing half a beat, got %v", g.Phase)
	}
	g.Advance(1.25)
	if math.Abs(g.Phase-0.25) > 1e-9 {
		t.Fatalf("expected wrapped phase 0.25, got %v", g.Phase)
	}
}

func TestModifierInvert(t *testing.T) {
	g := New(1)
	g.SetShape(ShapeSaw, 0)
	g.AddModifier(ModifierInvert, 0)
	v := g.Sample(0.4)
	if math.Abs(v.Flt-(-0.4)) > 1e-9 {
		t.Fatalf("expected inverted -0.4, got %v", v.Flt)
	}
}

func TestModifierQuantize(t *testing.T) {
	g := New(1)
	g.SetShape(ShapeSaw, 0)
	g.AddModifier(ModifierQuantize, 0.25)
	v := g.Sample(0.4)
	if math.Abs(v.Flt-0.5) > 1e-9 {
		t.Fatalf("expected quantized 0.5, got %v", v.Flt)
	}
}

func TestConfigureModifierUpdatesExisting(t *testing.T) {
	g := New(1)
	g.AddModifier(ModifierQuantize, 0.5)
	g.ConfigureModifier(ModifierQuantize, 0.1)
	if len(g.Modifiers) != 1 {
		t.Fatalf("expected a single modifier entry, got %d", len(g.Modifiers))
	}
	if g.Modifiers[0].Param != 0.1 {
		t.Fatalf("expected updated param 0.1, got %v", g.Modifiers[0].Param)
	}
}

func TestRemoveModifier(t *testing.T) {
	g := New(1)
	g.AddModifier(ModifierInvert, 0)
	g.AddModifier(ModifierQuantize, 0.5)
	g.RemoveModifier(ModifierInvert)
	if len(g.Modifiers) != 1 || g.Modifiers[0].Kind != ModifierQuantize {
		t.Fatalf("expected only Quantize modifier to remain, got %+v", g.Modifiers)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := New(1)
	g.SetTable([]value.Value{value.Integer(1)})
	cp := g.Clone()
	cp.Table[0] = value.Integer(99)
	if g.Table[0].Int != 1 {
		t.Fatalf("expected clone's table mutation not to affect original, got %v", g.Table[0].Int)
	}
}

func TestRestoreFromOverwritesInPlace(t *testing.T) {
	g := New(1)
	g.Phase = 0.75
	snapshot := g.Clone()

	g.Phase = 0.1
	g.RestoreFrom(snapshot)
	if math.Abs(g.Phase-0.75) > 1e-9 {
		t.Fatalf("expected restored phase 0.75, got %v", g.Phase)
	}
}

func TestSeedChangesRandStream(t *testing.T) {
	a := New(1)
	a.SetShape(ShapeRandFloat, 0)
	b := New(1)
	b.SetShape(ShapeRandFloat, 0)
	b.Seed(2)

	va := a.Sample(0)
	vb := b.Sample(0)
	if va.Flt == vb.Flt {
		t.Fatalf("expected different seeds to produce different streams")
	}
}
