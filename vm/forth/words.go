package forth

import (
	"math"

	"github.com/brassline/core/vm"
)

// builtinWords returns the default dictionary: arithmetic, stack
// shuffling, comparisons, and the small set of music-producing words
// (note/chan/device/vel/dur/wait) a live-coded Forth script actually
// uses to emit events, grounded on the original's builtin_words()
// (retrieved pack has no words.rs; this set is designed by analogy to
// ForthState's documented fields and standard Forth vocabulary).
func builtinWords() map[string]Word {
	return map[string]Word{
		"+":    builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(a + b); return nil }),
		"-":    builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(a - b); return nil }),
		"*":    builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(a * b); return nil }),
		"/":    builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(safeDiv(a, b)); return nil }),
		"mod":  builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(safeMod(a, b)); return nil }),
		"neg":  builtin(func(s *State) *Action { s.Push(-s.Pop()); return nil }),

		"dup":  builtin(func(s *State) *Action { v := s.Peek(); s.Push(v); return nil }),
		"drop": builtin(func(s *State) *Action { s.Pop(); return nil }),
		"swap": builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(b); s.Push(a); return nil }),
		"over": builtin(func(s *State) *Action {
			b, a := s.Pop(), s.Pop()
			s.Push(a)
			s.Push(b)
			s.Push(a)
			return nil
		}),
		"rot": builtin(func(s *State) *Action {
			c, b, a := s.Pop(), s.Pop(), s.Pop()
			s.Push(b)
			s.Push(c)
			s.Push(a)
			return nil
		}),

		"<":  builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(boolVal(a < b)); return nil }),
		">":  builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(boolVal(a > b)); return nil }),
		"=":  builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(boolVal(a == b)); return nil }),
		"<>": builtin(func(s *State) *Action { b, a := s.Pop(), s.Pop(); s.Push(boolVal(a != b)); return nil }),

		"chan":   builtin(func(s *State) *Action { s.Channel = uint64(s.Pop()); return nil }),
		"device": builtin(func(s *State) *Action { s.Device = int(s.Pop()); return nil }),
		"vel":    builtin(func(s *State) *Action { s.Velocity = uint64(s.Pop()); return nil }),
		"dur": builtin(func(s *State) *Action { s.DurMicros = uint64(math.Max(0, s.Pop())); return nil }),

		// note ( n -- ) emits a MidiNote using the current chan/device/vel/dur.
		"note": builtin(func(s *State) *Action {
			note := uint64(s.Pop())
			return &Action{Kind: ActionEmit, Event: vm.ConcreteEvent{
				Kind:     vm.EventMidiNote,
				Note:     note,
				Vel:      s.Velocity,
				Chan:     s.Channel,
				Dur:      s.DurMicros,
				DeviceID: s.Device,
			}}
		}),

		// wait ( beats-as-micros -- ) reports a wait before the next token runs.
		"wait": builtin(func(s *State) *Action {
			micros := uint64(math.Max(0, s.Pop()))
			return &Action{Kind: ActionWait, Wait: micros}
		}),

		".": builtin(func(s *State) *Action { s.Pop(); return nil }),
	}
}

func builtin(fn BuiltinFunc) Word { return Word{Builtin: fn, IsBuiltin: true} }

func boolVal(b bool) Value {
	if b {
		return 1
	}
	return 0
}

func safeDiv(a, b Value) Value {
	if b == 0 {
		return 0
	}
	return a / b
}

func safeMod(a, b Value) Value {
	if b == 0 {
		return 0
	}
	return math.Mod(a, b)
}
