package asm

import (
	"strconv"
	"strings"

	"github.com/brassline/core/value"
)

// parseRef parses one operand token into a value.Ref. Prefixes mirror
// the four variable scopes plus the Constant/Environment/stack
// pseudo-scopes spec.md §3 names:
//
//	g:name    global store
//	l:name    line store
//	f:name    frame store
//	i:name    instance store
//	e:name    environment (GetTempo, RandomUInt(n), ...)
//	sb        stack-back pseudo-ref
//	sf        stack-front pseudo-ref
//	c:<lit>   a constant literal: integer, float, true/false, or a
//	          double-quoted string
//
// There is no textual assembly syntax in original_source (its tests
// construct the ControlASM enum directly as Rust literals) — this
// grammar is new surface invented to give this repo's asm compiler and
// its tests a human-writable program format, grounded on the
// value.Ref constructors it compiles down to.
func parseRef(tok string) (value.Ref, bool) {
	if tok == "sb" {
		return value.StackBackRef(), true
	}
	if tok == "sf" {
		return value.StackFrontRef(), true
	}

	idx := strings.IndexByte(tok, ':')
	if idx < 0 {
		return value.Ref{}, false
	}
	prefix, rest := tok[:idx], tok[idx+1:]

	switch prefix {
	case "g":
		return value.GlobalRef(rest), true
	case "l":
		return value.LineRef(rest), true
	case "f":
		return value.FrameRef(rest), true
	case "i":
		return value.InstanceRef(rest), true
	case "e":
		return value.EnvironmentRef(rest), true
	case "c":
		v, ok := parseConstant(rest)
		if !ok {
			return value.Ref{}, false
		}
		return value.ConstantRef(v), true
	default:
		return value.Ref{}, false
	}
}

func parseConstant(lit string) (value.Value, bool) {
	switch lit {
	case "true":
		return value.Bool(true), true
	case "false":
		return value.Bool(false), true
	}
	if strings.HasPrefix(lit, `"`) && strings.HasSuffix(lit, `"`) && len(lit) >= 2 {
		return value.Str(lit[1 : len(lit)-1]), true
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return value.Integer(i), true
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return value.Float(f), true
	}
	return value.Value{}, false
}
