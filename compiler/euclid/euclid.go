// Package euclid implements the Bjorklund Euclidean rhythm algorithm:
// distributing k pulses as evenly as possible over n steps, the
// standard construction behind most rhythm generators in live-coding
// environments. Grounded on spec.md §8 scenario 6 ("4 beats over 8
// steps" must yield trigger offsets {0,2,4,6} when unrotated) — no
// Euclidean generator exists anywhere in original_source, so the
// algorithm itself is the well-known Bjorklund construction rather
// than a port of retrieved source.
package euclid

// Pattern returns a boolean slice of length steps where true marks a
// triggered step, with pulses distributed as evenly as possible.
func Pattern(pulses, steps int) []bool {
	if steps <= 0 {
		return nil
	}
	if pulses <= 0 {
		return make([]bool, steps)
	}
	if pulses >= steps {
		out := make([]bool, steps)
		for i := range out {
			out[i] = true
		}
		return out
	}

	return bjorklund(pulses, steps)
}

// bjorklund builds the rhythm by the standard two-list merge: start
// with `pulses` groups of a single trigger and `steps-pulses` groups of
// a single rest, then repeatedly append the tail groups onto the head
// groups while more than one tail group remains.
func bjorklund(pulses, steps int) []bool {
	if pulses <= 0 || steps <= 0 {
		return make([]bool, max(steps, 0))
	}
	head := make([][]bool, pulses)
	for i := range head {
		head[i] = []bool{true}
	}
	tail := make([][]bool, steps-pulses)
	for i := range tail {
		tail[i] = []bool{false}
	}

	for len(tail) > 1 {
		n := min(len(head), len(tail))
		newHead := make([][]bool, 0, n)
		for i := 0; i < n; i++ {
			newHead = append(newHead, append(append([]bool{}, head[i]...), tail[i]...))
		}
		var newTail [][]bool
		if len(head) > n {
			newTail = head[n:]
		} else {
			newTail = tail[n:]
		}
		head, tail = newHead, newTail
	}

	out := make([]bool, 0, steps)
	for _, g := range head {
		out = append(out, g...)
	}
	for _, g := range tail {
		out = append(out, g...)
	}
	return out
}

// Offsets returns the step indices (0-based) at which a trigger falls,
// e.g. Offsets(4, 8) == []int{0,2,4,6}.
func Offsets(pulses, steps int) []int {
	pat := bjorklund(pulses, steps)
	var offsets []int
	for i, hit := range pat {
		if hit {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// Rotate shifts a pattern's trigger offsets by n steps (mod steps),
// e.g. for a performer who wants the same density starting elsewhere
// in the bar.
func Rotate(offsets []int, n, steps int) []int {
	if steps <= 0 {
		return offsets
	}
	out := make([]int, len(offsets))
	for i, o := range offsets {
		shifted := ((o+n)%steps + steps) % steps
		out[i] = shifted
	}
	return out
}
