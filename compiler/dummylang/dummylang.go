// Package dummylang is the trivial compiler the original keeps next to
// its real languages purely for exercising the Transcoder/Scheduler
// plumbing without a real grammar (core/src/compiler/dummylang). It
// accepts exactly two forms of source: blank (compiles to an empty,
// never-triggering program) or the literal "nop" (compiles to a single
// Nop control instruction) — anything else is a compile error.
package dummylang

import (
	"fmt"
	"strings"

	"github.com/brassline/core/compiler"
	"github.com/brassline/core/vm"
)

type Compiler struct{}

func New() *Compiler { return &Compiler{} }

func (c *Compiler) Name() string { return "dummy" }

func (c *Compiler) Compile(source string, _ map[string]string) (vm.Program, *compiler.CompilationError) {
	trimmed := strings.TrimSpace(source)
	switch trimmed {
	case "":
		return vm.Program{}, nil
	case "nop":
		return vm.Program{vm.ControlInstr(vm.Control{Op: vm.OpNop})}, nil
	default:
		return nil, &compiler.CompilationError{
			Lang: "dummy",
			Info: fmt.Sprintf("dummylang only accepts blank source or the literal \"nop\", got %q", trimmed),
			From: 0,
			To:   len(source),
		}
	}
}
