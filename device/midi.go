package device

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// NoteTracker tracks which (channel, note) pairs are currently sounding
// and a monotonically increasing retrigger generation per key, so a
// scheduled trailing NoteOff from an earlier trigger can be told apart
// from the one belonging to a note that was retriggered before it fired
// — per spec.md §8's "NoteOff for an unheld note is suppressed before
// reaching the wire".
type NoteTracker struct {
	mu         sync.Mutex
	active     map[[2]int]bool
	generation map[[2]int]uint64
}

func newNoteTracker() *NoteTracker {
	return &NoteTracker{active: make(map[[2]int]bool), generation: make(map[[2]int]uint64)}
}

// Trigger marks (channel, note) as sounding for a new trigger. It
// reports whether the note was already active — the caller should skip
// the redundant pre-roll NoteOff when it wasn't — and the generation
// stamp this trigger owns, to tag its own trailing NoteOff with.
func (n *NoteTracker) Trigger(channel, note int) (wasActive bool, generation uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := [2]int{channel, note}
	wasActive = n.active[key]
	n.active[key] = true
	n.generation[key]++
	return wasActive, n.generation[key]
}

// Release reports whether generation is still the current one for
// (channel, note). A mismatch means the note was retriggered since
// this NoteOff was scheduled, so the caller must drop it on the floor
// instead of writing it to the wire. On a match it clears active state.
func (n *NoteTracker) Release(channel, note int, generation uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := [2]int{channel, note}
	if n.generation[key] != generation {
		return false
	}
	delete(n.active, key)
	return true
}

// stuckNotes returns every (channel, note) still marked active and
// clears tracker state, for Flush to force-release.
func (n *NoteTracker) stuckNotes() [][2]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	stuck := make([][2]int, 0, len(n.active))
	for k := range n.active {
		stuck = append(stuck, k)
	}
	n.active = make(map[[2]int]bool)
	n.generation = make(map[[2]int]uint64)
	return stuck
}

// MidiOutDevice wraps a gomidi output port the same way the teacher's
// midi.Output does (a drivers.Out plus the send func midi.SendTo
// returns), adding the NoteTracker bookkeeping spec.md §4.9 requires so
// a frame edit, retrigger, or scene swap can't leave a stuck note
// ringing.
type MidiOutDevice struct {
	name    string
	port    drivers.Out
	send    func(msg midi.Message) error
	tracker *NoteTracker
}

// ListMidiOutPorts mirrors the teacher's midi.ListPorts.
func ListMidiOutPorts() []string {
	var names []string
	for _, p := range midi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

// OpenMidiOut opens the output port at portIndex, exactly like the
// teacher's midi.Open.
func OpenMidiOut(portIndex int, name string) (*MidiOutDevice, error) {
	out, err := midi.OutPort(portIndex)
	if err != nil {
		return nil, fmt.Errorf("device: failed to open midi out port %d: %w", portIndex, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("device: failed to bind midi out port %d: %w", portIndex, err)
	}
	return &MidiOutDevice{name: name, port: out, send: send, tracker: newNoteTracker()}, nil
}

func (d *MidiOutDevice) Address() string { return d.name }
func (d *MidiOutDevice) Kind() Kind      { return KindMidiOut }
func (d *MidiOutDevice) Connect() error  { return nil }

// noteTracker exposes the NoteTracker to translate.go's retrigger-aware
// MidiNote expansion without translate.go needing a concrete
// MidiOutDevice reference.
func (d *MidiOutDevice) noteTracker() *NoteTracker { return d.tracker }

// Send writes a raw MIDI message to the port. A trailing NoteOff
// tagged with a NoteOffGeneration is dropped instead of sent if the
// note has since been retriggered (NoteOffGeneration == 0 means
// "untagged", e.g. CCs or the immediate pre-roll NoteOff, and is always
// sent).
func (d *MidiOutDevice) Send(p Payload) error {
	if len(p.MIDIBytes) == 0 {
		return nil
	}
	if p.NoteOffGeneration != 0 {
		channel, note := decodeChannelNote(p.MIDIBytes)
		if !d.tracker.Release(channel, note, p.NoteOffGeneration) {
			return nil
		}
	}
	return d.send(midi.Message(p.MIDIBytes))
}

func decodeChannelNote(b []byte) (channel, note int) {
	if len(b) < 2 {
		return 0, 0
	}
	return int(b[0] & 0x0F), int(b[1])
}

// Flush releases every note this device believes is still sounding —
// called on scene swap and on shutdown.
func (d *MidiOutDevice) Flush() error {
	stuck := d.tracker.stuckNotes()
	for _, k := range stuck {
		if err := d.send(midi.Message(EncodeNoteOff(k[0], k[1], 0))); err != nil {
			return fmt.Errorf("device: failed releasing stuck note chan=%d note=%d: %w", k[0], k[1], err)
		}
	}
	return nil
}
