package vm

// opNames backs Op.String() and the asm compiler's mnemonic table —
// one entry per Op constant, in declaration order.
var opNames = [...]string{
	OpNop:                  "nop",
	OpAdd:                  "add",
	OpSub:                  "sub",
	OpMul:                  "mul",
	OpDiv:                  "div",
	OpMod:                  "mod",
	OpNeg:                  "neg",
	OpAnd:                  "and",
	OpOr:                   "or",
	OpXor:                  "xor",
	OpNot:                  "not",
	OpLowerThan:            "lt",
	OpLowerOrEqual:         "le",
	OpGreaterThan:          "gt",
	OpGreaterOrEqual:       "ge",
	OpEqual:                "eq",
	OpDifferent:            "ne",
	OpScale:                "scale",
	OpClamp:                "clamp",
	OpMin:                  "min",
	OpMax:                  "max",
	OpQuantize:             "quantize",
	OpBitAnd:               "bitand",
	OpBitOr:                "bitor",
	OpBitXor:               "bitxor",
	OpBitNot:               "bitnot",
	OpShiftLeft:            "shl",
	OpShiftRightA:          "sra",
	OpShiftRightL:          "srl",
	OpFloatAsBeats:         "as_beats",
	OpFloatAsFrames:        "as_frames",
	OpMov:                  "mov",
	OpIsSet:                "is_set",
	OpPush:                 "push",
	OpPop:                  "pop",
	OpPushFront:            "push_front",
	OpPopFront:             "pop_front",
	OpMapInsert:            "map_insert",
	OpMapGet:               "map_get",
	OpMapHas:               "map_has",
	OpMapRemove:            "map_remove",
	OpVecPush:              "vec_push",
	OpVecPop:               "vec_pop",
	OpVecLen:               "vec_len",
	OpVecInsert:            "vec_insert",
	OpVecGet:               "vec_get",
	OpVecRemove:            "vec_remove",
	OpGenStart:             "gen_start",
	OpGenGet:               "gen_get",
	OpGenSetShape:          "gen_set_shape",
	OpGenAddModifier:       "gen_add_modifier",
	OpGenRemoveModifier:    "gen_remove_modifier",
	OpGenConfigureShape:    "gen_configure_shape",
	OpGenConfigureModifier: "gen_configure_modifier",
	OpGenSeed:              "gen_seed",
	OpGenSave:              "gen_save",
	OpGenRestore:           "gen_restore",
	OpJump:                 "jmp",
	OpJumpIf:               "jmp_if",
	OpJumpIfNot:            "jmp_if_not",
	OpJumpIfDifferent:      "jmp_if_ne",
	OpJumpIfEqual:          "jmp_if_eq",
	OpJumpIfLess:           "jmp_if_lt",
	OpJumpIfLessOrEqual:    "jmp_if_le",
	OpRelJump:              "rjmp",
	OpRelJumpIf:            "rjmp_if",
	OpRelJumpIfNot:         "rjmp_if_not",
	OpRelJumpIfDifferent:   "rjmp_if_ne",
	OpRelJumpIfEqual:       "rjmp_if_eq",
	OpRelJumpIfLess:        "rjmp_if_lt",
	OpRelJumpIfLessOrEqual: "rjmp_if_le",
	OpCallFunction:         "call",
	OpCallProcedure:        "call_proc",
	OpReturn:               "ret",
	OpGetSine:              "osc_sine",
	OpGetSaw:               "osc_saw",
	OpGetTriangle:          "osc_triangle",
	OpGetISaw:              "osc_isaw",
	OpGetRandStep:          "osc_rand_step",
	OpGetMidiCC:            "get_midi_cc",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "unknown"
}

// OpByName resolves a mnemonic (as produced by Op.String()) back to its
// Op constant, for the asm compiler's parser.
func OpByName(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}
