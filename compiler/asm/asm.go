// Package asm is the direct bytecode assembler: a small line-oriented
// textual format that compiles one-to-one onto vm.Control/vm.Effect
// instructions, plus a Euclidean-rhythm convenience form ("K beats
// over N steps") that expands to a ready-to-run triggering program via
// compiler/euclid. Registered under language name "asm".
package asm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/compiler"
	"github.com/brassline/core/compiler/euclid"
	"github.com/brassline/core/value"
	"github.com/brassline/core/vm"
)

type Compiler struct{}

func New() *Compiler { return &Compiler{} }

func (c *Compiler) Name() string { return "asm" }

var euclidForm = regexp.MustCompile(`(?i)^\s*(\d+)\s+beats?\s+over\s+(\d+)\s+steps?(?:\s*,?\s*rotate\s+(\d+))?\s*$`)

func (c *Compiler) Compile(source string, args map[string]string) (vm.Program, *compiler.CompilationError) {
	if m := euclidForm.FindStringSubmatch(source); m != nil {
		return compileEuclid(m, args)
	}
	return compileAssembly(source)
}

// compileEuclid expands "K beats over N steps[, rotate R]" into a
// looping program that divides the frame into N equal steps and emits
// one step-long MidiNote on each Euclidean hit, then waits until the
// next hit, so hits land at their step offsets (spec.md §8 scenario 6).
// When step 0 is a rest, the program starts with a Nop effect that
// waits until the first hit.
func compileEuclid(m []string, args map[string]string) (vm.Program, *compiler.CompilationError) {
	pulses, _ := strconv.Atoi(m[1])
	steps, _ := strconv.Atoi(m[2])
	rotate := 0
	if m[3] != "" {
		rotate, _ = strconv.Atoi(m[3])
	}

	if steps <= 0 {
		return nil, &compiler.CompilationError{Lang: "asm", Info: "euclidean pattern needs at least one step"}
	}

	offsets := euclid.Offsets(pulses, steps)
	if rotate != 0 {
		offsets = euclid.Rotate(offsets, rotate, steps)
	}
	hit := make(map[int]bool, len(offsets))
	for _, o := range offsets {
		hit[o] = true
	}

	note, vel, chan_, device := 60, 100, 0, 1
	if v, ok := args["note"]; ok {
		note, _ = strconv.Atoi(v)
	}
	if v, ok := args["vel"]; ok {
		vel, _ = strconv.Atoi(v)
	}
	if v, ok := args["chan"]; ok {
		chan_, _ = strconv.Atoi(v)
	}
	if v, ok := args["device"]; ok {
		device, _ = strconv.Atoi(v)
	}

	var prog vm.Program
	if len(offsets) > 0 && !hit[0] {
		lead := 1
		for lead < steps && !hit[lead] {
			lead++
		}
		prog = append(prog, vm.EffectInstr(vm.Effect{Event: vm.Event{Kind: vm.EventNop}, Wait: value.ConstantRef(value.Dur(clock.Frames(float64(lead) / float64(steps))))}))
	}
	for step := 0; step < steps; step++ {
		if !hit[step] {
			continue
		}
		gap := 1
		for step+gap < steps && !hit[step+gap] {
			gap++
		}
		prog = append(prog, vm.EffectInstr(vm.Effect{
			Event: vm.Event{
				Kind:   vm.EventMidiNote,
				Note:   value.ConstantRef(value.Integer(int64(note))),
				Vel:    value.ConstantRef(value.Integer(int64(vel))),
				Chan:   value.ConstantRef(value.Integer(int64(chan_))),
				Dur:    value.ConstantRef(value.Dur(clock.Frames(1.0 / float64(steps)))),
				Device: value.ConstantRef(value.Integer(int64(device))),
			},
			Wait: value.ConstantRef(value.Dur(clock.Frames(float64(gap) / float64(steps)))),
		}))
	}
	if len(prog) > 0 {
		prog = append(prog, vm.ControlInstr(vm.Control{Op: vm.OpJump, Target: 0}))
	}
	return prog, nil
}

// compileAssembly parses the generic mnemonic-per-line format.
// Labels ("name:") resolve forward and backward jump targets in a
// two-pass assembly: first strip labels and record their instruction
// index, then resolve every jmp/rjmp operand against that table.
func compileAssembly(source string) (vm.Program, *compiler.CompilationError) {
	lines := strings.Split(source, "\n")
	labels := make(map[string]int)
	var bodyLines []string
	var bodySpans [][2]int // byte range of each body line within source

	offset := 0
	for _, raw := range lines {
		start := offset
		offset += len(raw) + 1
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			labels[strings.TrimSuffix(line, ":")] = len(bodyLines)
			continue
		}
		bodyLines = append(bodyLines, line)
		bodySpans = append(bodySpans, [2]int{start, start + len(raw)})
	}

	prog := make(vm.Program, 0, len(bodyLines))
	for i, line := range bodyLines {
		instr, cerr := assembleLine(line, labels)
		if cerr != nil {
			cerr.From = bodySpans[i][0]
			cerr.To = bodySpans[i][1]
			return nil, cerr
		}
		prog = append(prog, instr)
	}
	return prog, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, ";"); i >= 0 {
		return line[:i]
	}
	return line
}

func assembleLine(line string, labels map[string]int) (vm.Instruction, *compiler.CompilationError) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: "empty instruction"}
	}
	mnemonic := strings.ToLower(fields[0])
	rest := fields[1:]

	if mnemonic == "effect" {
		return assembleEffect(rest)
	}

	op, ok := vm.OpByName(mnemonic)
	if !ok {
		return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: fmt.Sprintf("unknown opcode %q", mnemonic)}
	}

	ctrl := vm.Control{Op: op}
	for _, tok := range rest {
		if kv := strings.SplitN(tok, "=", 2); len(kv) == 2 {
			if err := applyKeyword(&ctrl, kv[0], kv[1], labels); err != nil {
				return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: err.Error()}
			}
			continue
		}
		ref, ok := parseRef(tok)
		if !ok {
			return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: fmt.Sprintf("invalid operand %q", tok)}
		}
		ctrl.Args = append(ctrl.Args, ref)
	}
	return vm.ControlInstr(ctrl), nil
}

func applyKeyword(ctrl *vm.Control, key, val string, labels map[string]int) error {
	switch key {
	case "shape":
		s, ok := shapeByName(val)
		if !ok {
			return fmt.Errorf("unknown shape %q", val)
		}
		ctrl.Shape = s
	case "modifier":
		m, ok := modifierByName(val)
		if !ok {
			return fmt.Errorf("unknown modifier %q", val)
		}
		ctrl.Modifier = m
	case "modparam":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid modparam %q", val)
		}
		ctrl.ModParam = f
	case "target":
		idx, ok := labels[val]
		if !ok {
			return fmt.Errorf("undefined label %q", val)
		}
		ctrl.Target = idx
	case "rel":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rel delta %q", val)
		}
		ctrl.RelDelta = n
	default:
		return fmt.Errorf("unknown keyword %q", key)
	}
	return nil
}

func assembleEffect(rest []string) (vm.Instruction, *compiler.CompilationError) {
	if len(rest) == 0 {
		return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: "effect directive needs an event kind"}
	}
	kind, ok := vm.EventKindByName(rest[0])
	if !ok {
		return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: fmt.Sprintf("unknown event kind %q", rest[0])}
	}

	ev := vm.Event{Kind: kind}
	var wait value.Ref
	params := make(map[string]value.Ref)
	var oscArgs []value.Ref
	var sysEx []value.Ref

	for _, tok := range rest[1:] {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: fmt.Sprintf("malformed effect field %q", tok)}
		}
		key, valTok := kv[0], kv[1]
		ref, ok := parseRef(valTok)
		if !ok {
			return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: fmt.Sprintf("invalid operand %q", valTok)}
		}
		switch {
		case key == "wait":
			wait = ref
		case key == "note":
			ev.Note = ref
		case key == "vel":
			ev.Vel = ref
		case key == "chan":
			ev.Chan = ref
		case key == "dur":
			ev.Dur = ref
		case key == "device":
			ev.Device = ref
		case key == "control":
			ev.Control = ref
		case key == "sound":
			ev.Sound = ref
		case key == "addr":
			ev.Addr = ref
		case key == "fun":
			ev.Fun = ref
		case key == "voice":
			ev.Voice = ref
		case key == "delay":
			ev.DelayBefore = ref
		case key == "duration":
			ev.Duration = ref
		case key == "instrument":
			ev.Instrument = ref
		case key == "value":
			ev.GenericValue = ref
		case key == "setting":
			ev.Setting = ref
		case key == "arg":
			oscArgs = append(oscArgs, ref)
		case key == "byte":
			sysEx = append(sysEx, ref)
		case strings.HasPrefix(key, "param:"):
			params[strings.TrimPrefix(key, "param:")] = ref
		default:
			return vm.Instruction{}, &compiler.CompilationError{Lang: "asm", Info: fmt.Sprintf("unknown effect field %q", key)}
		}
	}
	if len(params) > 0 {
		ev.Params = params
	}
	if len(oscArgs) > 0 {
		ev.OscArgs = oscArgs
	}
	if len(sysEx) > 0 {
		ev.SysExData = sysEx
	}
	return vm.EffectInstr(vm.Effect{Event: ev, Wait: wait}), nil
}
