package scheduler

import (
	"github.com/brassline/core/scene"
	"github.com/brassline/core/value"
)

// NotificationKind tags the outbound broadcaster variant, per spec.md
// §6's "outbound notifications" list.
type NotificationKind int

const (
	NotifyUpdatedScene NotificationKind = iota
	NotifyUpdatedLines
	NotifyUpdatedFrames
	NotifyAddedLine
	NotifyRemovedLine
	NotifyAddedFrame
	NotifyRemovedFrame
	NotifyCompilationUpdated
	NotifyTempoChanged
	NotifyPlaybackStateChanged
	NotifyFramePositionChanged
	NotifyGlobalVariablesChanged
	NotifyLog
	NotifyError
	NotifyTransportStopped
	NotifyTick
)

// FramePosition is one entry of a FramePositionChanged notification:
// the triggering line's index plus the frame/repetition it landed on.
type FramePosition struct {
	Line       int
	Frame      uint32
	Iteration  int64
	Repetition int
}

// Notification is the single outbound sum type a watch-style
// broadcaster observes; only the fields relevant to Kind are
// populated.
type Notification struct {
	Kind NotificationKind

	Lines  []int
	Frames []int

	Line  int
	Frame int

	CompilationLang  string
	CompilationState scene.CompilationState

	Tempo float64

	Playing bool

	Positions []FramePosition

	Globals GlobalSnapshot

	Message string

	At uint64 // SyncTime, for Log/Tick
}

// Broadcaster fans a Notification out to every interested observer
// (the network/server thread of spec.md §5, tests). A nil Broadcaster
// is valid — the Scheduler treats notification delivery as best
// effort, never a blocking dependency of the control loop.
type Broadcaster interface {
	Notify(Notification)
}

// ChannelBroadcaster is the simplest Broadcaster: a buffered channel a
// single observer drains. Notifications are dropped rather than
// blocking the Scheduler when the channel is full, since the Scheduler
// thread must never stall on a slow observer (spec.md §5's suspension
// points name only the inbound channel and shutdown).
type ChannelBroadcaster struct {
	ch chan Notification
}

func NewChannelBroadcaster(buffer int) *ChannelBroadcaster {
	return &ChannelBroadcaster{ch: make(chan Notification, buffer)}
}

func (b *ChannelBroadcaster) Notify(n Notification) {
	select {
	case b.ch <- n:
	default:
	}
}

func (b *ChannelBroadcaster) C() <-chan Notification { return b.ch }

// globalsEqual compares two GlobalSnapshots by value.Equal on every
// shared key, used to detect an actual change rather than broadcasting
// on every tick regardless of whether anything moved.
func globalsEqual(a, b GlobalSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !value.Equal(av, bv) {
			return false
		}
	}
	return true
}
