package asm

import "github.com/brassline/core/generator"

func shapeByName(name string) (generator.Shape, bool) {
	switch name {
	case "sine":
		return generator.ShapeSine, true
	case "saw":
		return generator.ShapeSaw, true
	case "triangle":
		return generator.ShapeTriangle, true
	case "square":
		return generator.ShapeSquare, true
	case "rand_float":
		return generator.ShapeRandFloat, true
	case "rand_int":
		return generator.ShapeRandInt, true
	case "table":
		return generator.ShapeTable, true
	case "reversed":
		return generator.ShapeReversed, true
	default:
		return 0, false
	}
}

func modifierByName(name string) (generator.Modifier, bool) {
	switch name {
	case "none":
		return generator.ModifierNone, true
	case "invert":
		return generator.ModifierInvert, true
	case "quantize":
		return generator.ModifierQuantize, true
	default:
		return 0, false
	}
}
