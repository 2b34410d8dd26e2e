package scheduler

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/value"
)

// schedulerEnv implements value.EnvironmentReader, resolving the
// function-like read-only Environment variables named in spec.md §3's
// glossary entry for Variable reference: GetTempo, RandomUInt(n), and
// friends. It has no state of its own beyond the Clock it reads —
// RandomUInt is seeded from the package-level math/rand source, since
// these calls are for live-coded randomisation, not reproducible
// playback.
type schedulerEnv struct {
	clk *clock.Clock
}

func newSchedulerEnv(clk *clock.Clock) *schedulerEnv {
	return &schedulerEnv{clk: clk}
}

// ReadEnvironment resolves one Environment-kind reference. Call-style
// names carry their argument in parentheses (e.g. "RandomUInt(16)");
// bare names are zero-arg (e.g. "GetTempo").
func (e *schedulerEnv) ReadEnvironment(name string) (value.Value, bool) {
	fn, arg, hasArg := splitCall(name)
	switch fn {
	case "GetTempo":
		return value.Float(e.clk.Tempo()), true
	case "GetBeat":
		return value.Float(e.clk.Beat()), true
	case "GetQuantum":
		return value.Float(e.clk.Quantum()), true
	case "RandomUInt":
		n := int64(16)
		if hasArg {
			if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil && parsed > 0 {
				n = parsed
			}
		}
		return value.Integer(rand.Int63n(n)), true
	case "RandomFloat":
		return value.Float(rand.Float64()), true
	default:
		return value.Value{}, false
	}
}

// splitCall parses "Name(arg)" into ("Name", "arg", true) or a bare
// "Name" into ("Name", "", false).
func splitCall(name string) (fn string, arg string, hasArg bool) {
	open := strings.IndexByte(name, '(')
	if open < 0 || !strings.HasSuffix(name, ")") {
		return name, "", false
	}
	return name[:open], name[open+1 : len(name)-1], true
}
