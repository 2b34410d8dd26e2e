package vm

// eventKindNames names every EventKind for the asm compiler's EFFECT
// directive and for diagnostics.
var eventKindNames = [...]string{
	EventNop:                 "nop",
	EventMidiNote:            "midi_note",
	EventMidiControl:         "midi_control",
	EventMidiProgram:         "midi_program",
	EventMidiAftertouch:      "midi_aftertouch",
	EventMidiChannelPressure: "midi_channel_pressure",
	EventMidiSysEx:           "midi_sysex",
	EventMidiStart:           "midi_start",
	EventMidiStop:            "midi_stop",
	EventMidiReset:           "midi_reset",
	EventMidiContinue:        "midi_continue",
	EventMidiClock:           "midi_clock",
	EventDirt:                "dirt",
	EventOsc:                 "osc",
	EventStartProgram:        "start_program",
	EventSound:               "sound",
	EventVoiceSound:          "voice_sound",
	EventVoiceSetting:        "voice_setting",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventKindNames) && eventKindNames[k] != "" {
		return eventKindNames[k]
	}
	return "unknown"
}

// EventKindByName resolves the asm compiler's EFFECT directive name
// back to an EventKind.
func EventKindByName(name string) (EventKind, bool) {
	for i, n := range eventKindNames {
		if n == name {
			return EventKind(i), true
		}
	}
	return 0, false
}
