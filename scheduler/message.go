// Package scheduler implements the control loop of spec.md §4.7: the
// single-threaded owner of the Scene, global Store and active
// Execution set. It reads inbound SchedulerMessages, walks the scene
// grid every tick via scene.CalculateFrameIndex, steps ready
// Executions, translates their events through a DeviceMap, and hands
// the result to a world.World for delivery. Grounded on the teacher's
// playback.Engine control loop (a goroutine owning mutable state,
// woken by a channel and a timer) generalized from a fixed-tempo step
// sequencer to the full scene/frame/execution model.
package scheduler

import (
	"github.com/brassline/core/clock"
	"github.com/brassline/core/scene"
	"github.com/brassline/core/value"
)

// ActionTimingKind tags which of spec.md §4.7's five deferral policies
// an inbound edit carries.
type ActionTimingKind int

const (
	TimingImmediate ActionTimingKind = iota
	TimingNextFrame
	TimingNextBeat
	TimingNextBar
	TimingAtBeat
)

// ActionTiming is the sum variant every edit message carries: when to
// actually apply it.
type ActionTiming struct {
	Kind ActionTimingKind

	// Line is consulted only by TimingNextFrame.
	Line int
	// Bar is the bar length in beats, consulted only by TimingNextBar.
	Bar float64
	// Beat is the target beat, consulted only by TimingAtBeat.
	Beat float64
}

func Immediate() ActionTiming             { return ActionTiming{Kind: TimingImmediate} }
func NextFrame(line int) ActionTiming     { return ActionTiming{Kind: TimingNextFrame, Line: line} }
func NextBeat() ActionTiming              { return ActionTiming{Kind: TimingNextBeat} }
func NextBar(beats float64) ActionTiming  { return ActionTiming{Kind: TimingNextBar, Bar: beats} }
func AtBeat(beat float64) ActionTiming    { return ActionTiming{Kind: TimingAtBeat, Beat: beat} }

// EditKind tags which scene mutation an Edit performs, per spec.md
// §4.7's taxonomy.
type EditKind int

const (
	EditSetScene EditKind = iota
	EditAddLine
	EditRemoveLine
	EditAddFrame
	EditRemoveFrame
	EditSetScript
	EditSetFrameEnabled
	EditRenameFrame
	EditDuplicateFrames
	EditSetRepetitions
	EditSetFrameLength
	EditSetLineLength
	EditSetLineSpeed
)

// Edit is one scene-mutating inbound command. Only the fields its Kind
// needs are populated; the rest are zero.
type Edit struct {
	Kind   EditKind
	Timing ActionTiming

	Line  int
	Frame int

	NewScene *scene.Scene // EditSetScene
	NewLine  *scene.Line  // EditAddLine

	FrameLength float64 // EditAddFrame, EditSetFrameLength
	Source      string  // EditSetScript
	Language    string  // EditSetScript
	Enabled     bool    // EditSetFrameEnabled
	Name        string  // EditRenameFrame
	Count       int     // EditDuplicateFrames
	Repetitions int     // EditSetRepetitions
	LineLength  float64 // EditSetLineLength
	Speed       float64 // EditSetLineSpeed
}

// ControlKind tags a non-editing inbound command.
type ControlKind int

const (
	ControlSetTempo ControlKind = iota
	ControlStart
	ControlStop
	ControlShutdown
)

type Control struct {
	Kind  ControlKind
	Tempo float64
}

// DeviceMessage is a side message bound for a specific device slot.
// Today the only variant is a MIDI input CC observation (the Server
// thread decodes an incoming Control Change and forwards it here so
// GetMidiCC reads stay consistent with the Scheduler's single-threaded
// view of device state); other device-bound message kinds described in
// spec.md §4.7 ("device-bound side messages") can extend this struct
// the same way.
type DeviceMessage struct {
	Slot          int
	Channel0Based int
	Control       int
	ObservedValue int64
}

// CompilationUpdate is what a compiler worker goroutine sends back to
// the Scheduler over its inbound channel once a compile finishes, per
// spec.md §5: "Compiler workers ... produce a CompilationUpdate
// message back to the scheduler over a channel. Never mutate shared
// state."
type CompilationUpdate struct {
	Line  int
	Frame int
	State scene.CompilationState
}

// MessageKind tags the SchedulerMessage sum variant.
type MessageKind int

const (
	MsgEdit MessageKind = iota
	MsgControl
	MsgDevice
	MsgCompilationUpdate
)

// SchedulerMessage is the single inbound type the control loop selects
// on, per spec.md §6's "inbound command set".
type SchedulerMessage struct {
	Kind MessageKind

	Edit        Edit
	Control     Control
	Device      DeviceMessage
	Compilation CompilationUpdate
}

// deferredAction is an Edit whose ActionTiming hasn't come due yet.
type deferredAction struct {
	edit Edit
}

// due reports whether a's timing condition is satisfied given the
// scheduler's view of the world at this tick: lastBeat/beat bound the
// half-open interval (lastBeat, beat] that just elapsed. c and
// lineFrame are not consulted: NextFrame is reported as not due here
// and is resolved by the caller against each line's frame crossing.
func (a deferredAction) due(lastBeat, beat float64, c *clock.Clock, lineFrame func(line int) (uint32, int64)) bool {
	switch a.edit.Timing.Kind {
	case TimingImmediate:
		return true
	case TimingNextBeat:
		return crossedInteger(lastBeat, beat)
	case TimingNextBar:
		bar := a.edit.Timing.Bar
		if bar <= 0 {
			return true
		}
		return crossedMultiple(lastBeat, beat, bar)
	case TimingAtBeat:
		return beat >= a.edit.Timing.Beat
	case TimingNextFrame:
		// Resolved by the caller: a NextFrame action is due exactly
		// when the targeted line's (frame,iteration) pair has just
		// changed, which the caller already detects per-tick.
		return false
	default:
		return true
	}
}

func crossedInteger(last, now float64) bool {
	return intFloor(now) > intFloor(last) || (last == 0 && now == 0)
}

func crossedMultiple(last, now float64, step float64) bool {
	return intFloorDiv(now, step) > intFloorDiv(last, step)
}

func intFloor(v float64) int64 {
	f := int64(v)
	if float64(f) > v {
		f--
	}
	return f
}

func intFloorDiv(v, step float64) int64 {
	return intFloor(v / step)
}

// GlobalSnapshot is the map of one-letter global variables broadcast
// in a GlobalVariablesChanged notification.
type GlobalSnapshot map[string]value.Value
