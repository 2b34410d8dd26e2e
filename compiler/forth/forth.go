// Package forth registers the Forth-like scripting language with the
// compiler.Registry. Unlike asm/dummylang/ai, Forth scripts never
// compile to a vm.Program — vm/forth.Interpreter executes tokens
// straight from source — so Compile here is a syntax check only
// (balanced : ... ; definitions, if/then, do/loop), grounded on
// original_source's ForthInterpreterFactory::check.
package forth

import (
	"strings"

	"github.com/brassline/core/compiler"
	"github.com/brassline/core/vm"
)

type Compiler struct{}

func New() *Compiler { return &Compiler{} }

func (c *Compiler) Name() string { return "forth" }

// Compile never produces a Program (vm/forth.Interpreter runs straight
// off the source string via vm/forth.Factory) — it only validates that
// control-word pairs balance, so an obviously malformed script is
// reported at compile time rather than mid-performance.
func (c *Compiler) Compile(source string, _ map[string]string) (vm.Program, *compiler.CompilationError) {
	if err := checkBalance(source); err != nil {
		return nil, &compiler.CompilationError{Lang: "forth", Info: err.Error()}
	}
	return vm.Program{}, nil
}

func checkBalance(source string) error {
	tokens := strings.Fields(source)
	var colon, ifDepth, doDepth int
	for _, tok := range tokens {
		switch strings.ToLower(tok) {
		case ":":
			colon++
		case ";":
			colon--
		case "if":
			ifDepth++
		case "then":
			ifDepth--
		case "do":
			doDepth++
		case "loop", "+loop":
			doDepth--
		}
	}
	if colon != 0 {
		return errUnbalanced(":", ";")
	}
	if ifDepth != 0 {
		return errUnbalanced("if", "then")
	}
	if doDepth != 0 {
		return errUnbalanced("do", "loop")
	}
	return nil
}

type unbalancedErr struct{ open, close string }

func (e unbalancedErr) Error() string {
	return "unbalanced " + e.open + "/" + e.close
}

func errUnbalanced(open, close string) error { return unbalancedErr{open, close} }
