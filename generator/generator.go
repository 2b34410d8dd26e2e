// Package generator implements the ValueGenerator shapes sampled by
// the VM's Gen* opcodes: Sine/Saw/Triangle/Square/RandFloat/RandInt/
// Table/Reversed, plus a flat, index-addressed descriptor so a
// generator's shape, modifiers and phase survive GenSave/GenRestore
// round trips.
package generator

import (
	"math"
	"math/rand"

	"github.com/brassline/core/value"
)

// Shape tags which waveform a Generator samples.
type Shape int

const (
	ShapeSine Shape = iota
	ShapeSaw
	ShapeTriangle
	ShapeSquare
	ShapeRandFloat
	ShapeRandInt
	ShapeTable
	ShapeReversed
)

// Modifier is a post-processing step applied to a sampled raw value
// before it reaches the caller (e.g. invert, quantize); kept as an
// open tag set so the instruction layer can grow more without
// changing the descriptor shape.
type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierInvert
	ModifierQuantize
)

// State is the mutable, saveable descriptor behind a Generator Value.
// It owns its own RNG so RandFloat/RandInt streams are seedable and
// independent across generator instances rather than sharing the
// global math/rand source.
type State struct {
	Shape     Shape
	Duty      float64       // Square duty cycle
	Table     []value.Value // Table shape's sample list
	Inner     *State        // Reversed shape's wrapped generator
	Modifiers []modifierConfig

	// Phase-clock bookkeeping, advanced by GenGet the same way the VM's
	// standalone GetSine/GetSaw/GetTriangle/GetISaw opcodes advance
	// their own line-store phase keys: Phase += (beat-LastBeat)*Speed.
	Speed    float64
	Phase    float64
	LastBeat float64
	SeedVal  int64

	rng *rand.Rand
}

type modifierConfig struct {
	Kind  Modifier
	Param float64
}

// New creates a generator in its default Sine shape, matching the
// original ValueGenerator's #[default] attribute.
func New(seed int64) *State {
	return &State{Shape: ShapeSine, Speed: 1.0, SeedVal: seed, rng: rand.New(rand.NewSource(seed))}
}

// Clone deep-copies a generator descriptor, used by GenSave to take a
// snapshot independent of further GenGet advances on the original.
func (s *State) Clone() *State {
	cp := *s
	if s.Inner != nil {
		cp.Inner = s.Inner.Clone()
	}
	cp.Table = append([]value.Value(nil), s.Table...)
	cp.Modifiers = append([]modifierConfig(nil), s.Modifiers...)
	cp.rng = rand.New(rand.NewSource(s.SeedVal))
	return &cp
}

// RestoreFrom overwrites s's fields with src's, in place, so a var
// already holding a live *State (aliased elsewhere) keeps its identity
// across GenRestore.
func (s *State) RestoreFrom(src *State) {
	*s = *src.Clone()
}

// Advance steps the generator's phase clock by the given beat delta
// and samples it, mirroring the oscillator opcodes' phase update.
func (s *State) Advance(currentBeat float64) value.Value {
	delta := currentBeat - s.LastBeat
	s.Phase = fract(s.Phase + delta*s.Speed)
	s.LastBeat = currentBeat
	return s.Sample(s.Phase)
}

func fract(f float64) float64 {
	return f - math.Floor(f)
}

func (s *State) SetShape(shape Shape, duty float64) {
	s.Shape = shape
	s.Duty = duty
}

func (s *State) SetTable(values []value.Value) {
	s.Shape = ShapeTable
	s.Table = values
}

func (s *State) SetReversed(inner *State) {
	s.Shape = ShapeReversed
	s.Inner = inner
}

func (s *State) Seed(seed int64) {
	s.SeedVal = seed
	s.rng = rand.New(rand.NewSource(seed))
}

// ConfigureModifier updates the Param of the first modifier matching
// kind, appending one if none exists yet.
func (s *State) ConfigureModifier(kind Modifier, param float64) {
	for i := range s.Modifiers {
		if s.Modifiers[i].Kind == kind {
			s.Modifiers[i].Param = param
			return
		}
	}
	s.AddModifier(kind, param)
}

func (s *State) AddModifier(kind Modifier, param float64) {
	s.Modifiers = append(s.Modifiers, modifierConfig{Kind: kind, Param: param})
}

func (s *State) RemoveModifier(kind Modifier) {
	out := s.Modifiers[:0]
	for _, m := range s.Modifiers {
		if m.Kind != kind {
			out = append(out, m)
		}
	}
	s.Modifiers = out
}

// Sample evaluates the generator at the given phase (expected in
// [0,1); it is not wrapped here, and only Table clamps an out-of-range
// index) and applies any configured modifiers in order.
func (s *State) Sample(phase float64) value.Value {
	raw := s.sampleRaw(phase)
	for _, m := range s.Modifiers {
		raw = applyModifier(m, raw)
	}
	return raw
}

func (s *State) sampleRaw(phase float64) value.Value {
	switch s.Shape {
	case ShapeSine:
		return value.Float(math.Sin(phase * 2 * math.Pi))
	case ShapeSaw:
		return value.Float(phase)
	case ShapeTriangle:
		// rises 0 -> 1 over the first half of the phase, falls back after
		return value.Float(1 - math.Abs(2*phase-1))
	case ShapeSquare:
		if phase < s.Duty {
			return value.Float(1)
		}
		return value.Float(0)
	case ShapeRandFloat:
		if s.rng == nil {
			return value.Float(0)
		}
		return value.Float(s.rng.Float64())
	case ShapeRandInt:
		if s.rng == nil {
			return value.Integer(0)
		}
		return value.Integer(s.rng.Int63())
	case ShapeTable:
		if len(s.Table) == 0 {
			return value.Zero()
		}
		idx := int(phase * float64(len(s.Table)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(s.Table) {
			idx = len(s.Table) - 1
		}
		return s.Table[idx]
	case ShapeReversed:
		if s.Inner == nil {
			return value.Zero()
		}
		return s.Inner.Sample(1.0 - phase)
	default:
		return value.Zero()
	}
}

func applyModifier(m modifierConfig, v value.Value) value.Value {
	switch m.Kind {
	case ModifierInvert:
		if v.Kind == value.KindFloat {
			return value.Float(-v.Flt)
		}
		return v
	case ModifierQuantize:
		if v.Kind == value.KindFloat && m.Param > 0 {
			return value.Float(math.Round(v.Flt/m.Param) * m.Param)
		}
		return v
	default:
		return v
	}
}
