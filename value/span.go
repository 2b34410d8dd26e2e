package value

import "github.com/brassline/core/clock"

// sumSpans and diffSpans add/subtract two TimeSpans of the same kind
// without needing a Clock: Dur+Dur arithmetic inside the VM operates
// on whichever unit the two operands already share (both Micros, both
// Beats, or both Frames). Mismatched kinds fall back to a zero span,
// matching the "false default" policy for undefined combinations.
func sumSpans(a, b clock.TimeSpan) clock.TimeSpan {
	if a.Kind != b.Kind {
		return clock.Micros(0)
	}
	switch a.Kind {
	case clock.SpanMicros:
		return clock.Micros(a.Micros + b.Micros)
	case clock.SpanBeats:
		return clock.Beats(a.Beats + b.Beats)
	case clock.SpanFrames:
		return clock.Frames(a.Frames + b.Frames)
	default:
		return clock.Micros(0)
	}
}

func diffSpans(a, b clock.TimeSpan) clock.TimeSpan {
	if a.Kind != b.Kind {
		return clock.Micros(0)
	}
	switch a.Kind {
	case clock.SpanMicros:
		if b.Micros > a.Micros {
			return clock.Micros(0)
		}
		return clock.Micros(a.Micros - b.Micros)
	case clock.SpanBeats:
		return clock.Beats(a.Beats - b.Beats)
	case clock.SpanFrames:
		return clock.Frames(a.Frames - b.Frames)
	default:
		return clock.Micros(0)
	}
}
