package device

// Wire-level MIDI byte encoding, grounded on spec.md §6 "Wire formats":
// channel clamped 0-15, data bytes clamped 0-127, 14-bit values split
// little-endian LSB-first, SysEx bracketed by 0xF0/0xF7. Kept as plain
// functions independent of any MIDI library so translation logic can
// be tested without a port.

func clampChan(ch int) byte {
	if ch < 0 {
		ch = 0
	}
	if ch > 15 {
		ch = 15
	}
	return byte(ch)
}

func clamp7(v int) byte {
	if v < 0 {
		v = 0
	}
	if v > 127 {
		v = 127
	}
	return byte(v)
}

func EncodeNoteOn(channel, note, velocity int) []byte {
	return []byte{0x90 | clampChan(channel), clamp7(note), clamp7(velocity)}
}

func EncodeNoteOff(channel, note, velocity int) []byte {
	return []byte{0x80 | clampChan(channel), clamp7(note), clamp7(velocity)}
}

func EncodeControlChange(channel, controller, value int) []byte {
	return []byte{0xB0 | clampChan(channel), clamp7(controller), clamp7(value)}
}

func EncodeProgramChange(channel, program int) []byte {
	return []byte{0xC0 | clampChan(channel), clamp7(program)}
}

func EncodeChannelPressure(channel, pressure int) []byte {
	return []byte{0xD0 | clampChan(channel), clamp7(pressure)}
}

func EncodeAftertouch(channel, note, pressure int) []byte {
	return []byte{0xA0 | clampChan(channel), clamp7(note), clamp7(pressure)}
}

// EncodePitchBend splits a 14-bit value (0..16383, center 8192) into
// LSB/MSB 7-bit bytes, least-significant first.
func EncodePitchBend(channel, value14 int) []byte {
	if value14 < 0 {
		value14 = 0
	}
	if value14 > 16383 {
		value14 = 16383
	}
	lsb := byte(value14 & 0x7F)
	msb := byte((value14 >> 7) & 0x7F)
	return []byte{0xE0 | clampChan(channel), lsb, msb}
}

// EncodeSysEx brackets payload with 0xF0/0xF7. payload must not itself
// contain a status byte.
func EncodeSysEx(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, 0xF0)
	out = append(out, payload...)
	out = append(out, 0xF7)
	return out
}

// Real-time / transport status bytes (spec.md §4.7 Start/Stop).
var (
	TransportStart    = []byte{0xFA}
	TransportStop     = []byte{0xFC}
	TransportContinue = []byte{0xFB}
	TransportReset    = []byte{0xFF}
	TransportClock    = []byte{0xF8}
)
