package asm

import (
	"testing"

	"github.com/brassline/core/vm"
)

func TestCompileSimpleArithmetic(t *testing.T) {
	c := New()
	prog, cerr := c.Compile("add c:1 c:2 i:z", nil)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if len(prog) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(prog))
	}
	if prog[0].Control.Op != vm.OpAdd {
		t.Fatalf("expected OpAdd, got %v", prog[0].Control.Op)
	}
}

func TestCompileUnknownOpcodeErrors(t *testing.T) {
	c := New()
	_, cerr := c.Compile("frobnicate i:x", nil)
	if cerr == nil {
		t.Fatal("expected a compilation error for an unknown opcode")
	}
}

func TestCompileJumpResolvesLabel(t *testing.T) {
	c := New()
	src := "loop:\nadd i:x c:1 i:x\njmp target=loop\n"
	prog, cerr := c.Compile(src, nil)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if len(prog) != 2 {
		t.Fatalf("expected 2 instructions (label stripped), got %d", len(prog))
	}
	if prog[1].Control.Target != 0 {
		t.Fatalf("expected jump target 0, got %d", prog[1].Control.Target)
	}
}

func TestCompileEffectDirective(t *testing.T) {
	c := New()
	prog, cerr := c.Compile("effect midi_note note=c:60 vel=c:100 chan=c:0 dur=c:0.5 device=c:1 wait=c:0.5", nil)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if len(prog) != 1 || prog[0].Kind != vm.InstrEffect {
		t.Fatalf("expected a single effect instruction, got %+v", prog)
	}
	if prog[0].Effect.Event.Kind != vm.EventMidiNote {
		t.Fatalf("expected EventMidiNote, got %v", prog[0].Effect.Event.Kind)
	}
}

func TestCompileEuclideanFourOverEight(t *testing.T) {
	c := New()
	prog, cerr := c.Compile("4 beats over 8 steps", nil)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if len(prog) != 5 { // 4 triggers + trailing jump back to 0
		t.Fatalf("expected 5 instructions, got %d", len(prog))
	}
	for i := 0; i < 4; i++ {
		if prog[i].Kind != vm.InstrEffect || prog[i].Effect.Event.Kind != vm.EventMidiNote {
			t.Fatalf("instruction %d: expected a midi note effect", i)
		}
	}
	if prog[4].Control.Op != vm.OpJump || prog[4].Control.Target != 0 {
		t.Fatalf("expected trailing jump back to 0, got %+v", prog[4].Control)
	}
}
