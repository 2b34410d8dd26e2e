package forth

import (
	"strconv"
	"strings"
)

// tokenize splits source on whitespace, matching the original's
// simple space-delimited Forth tokenizer (no string literals or
// comments are supported, consistent with the builtin word set in words.go).
func tokenize(source string) []string {
	return strings.Fields(source)
}

// tryParseNumber accepts decimal floats/integers and 0x/0b prefixed
// integers, matching interpreter.rs's try_parse_number.
func tryParseNumber(token string) (float64, bool) {
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, true
	}
	if hex, ok := strings.CutPrefix(token, "0x"); ok {
		if n, err := strconv.ParseInt(hex, 16, 64); err == nil {
			return float64(n), true
		}
	}
	if bin, ok := strings.CutPrefix(token, "0b"); ok {
		if n, err := strconv.ParseInt(bin, 2, 64); err == nil {
			return float64(n), true
		}
	}
	return 0, false
}
