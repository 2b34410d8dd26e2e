package scheduler

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/compiler"
	"github.com/brassline/core/compiler/dummylang"
	"github.com/brassline/core/device"
	"github.com/brassline/core/logging"
	"github.com/brassline/core/scene"
	"github.com/brassline/core/value"
	"github.com/brassline/core/world"
)

type stubLog struct{}

func (stubLog) Info(msg string, kv ...any) {}

func testLogger() *logging.Logger {
	return logging.New(io.Discard, log.ErrorLevel)
}

// fastClock runs a real, free-running beat source at a tempo high
// enough that a test waiting a few hundred milliseconds sees several
// beats pass, without needing to fake wall-clock time (matching the
// teacher's world_test.go style of polling real goroutines).
func fastClock(t *testing.T) *clock.Clock {
	t.Helper()
	src := clock.NewInternalBeatSource(6000, nil) // 6000 BPM -> 10ms/beat
	src.Enable()
	return clock.NewClock(src, 4)
}

func newTestScheduler(t *testing.T) (*Scheduler, *ChannelBroadcaster) {
	t.Helper()
	dm := device.NewDeviceMap(stubLog{})
	wd := world.New(dm, fastClock(t), testLogger())
	wd.Start()
	t.Cleanup(wd.Stop)

	reg := compiler.NewRegistry()
	reg.Add(dummylang.New())

	bc := NewChannelBroadcaster(64)
	s := New(fastClock(t), scene.NewScene(), dm, wd, reg, testLogger(), bc)
	return s, bc
}

func waitForNotification(t *testing.T, bc *ChannelBroadcaster, kind NotificationKind) Notification {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-bc.C():
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for notification kind %d", kind)
		}
	}
}

func addLineWithFrame(t *testing.T, s *Scheduler, source, lang string, lengthBeats float64) {
	t.Helper()
	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditAddLine, Timing: Immediate()}})
	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditAddFrame, Timing: Immediate(), Line: 0, FrameLength: lengthBeats}})
	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditSetScript, Timing: Immediate(), Line: 0, Frame: 0, Source: source, Language: lang}})
}

func TestSchedulerCompilesScriptAsync(t *testing.T) {
	s, bc := newTestScheduler(t)
	s.Start()
	t.Cleanup(s.Stop)

	addLineWithFrame(t, s, "nop", "dummy", 1.0)

	n := waitForNotification(t, bc, NotifyCompilationUpdated)
	if n.CompilationState.Kind != scene.CompCompiled {
		t.Fatalf("expected a successful compile, got state kind %d (%s)", n.CompilationState.Kind, n.CompilationState.Message)
	}
}

func TestSchedulerCompileErrorKeepsFrameUncompiled(t *testing.T) {
	s, bc := newTestScheduler(t)
	s.Start()
	t.Cleanup(s.Stop)

	addLineWithFrame(t, s, "this is not valid dummylang", "dummy", 1.0)

	n := waitForNotification(t, bc, NotifyCompilationUpdated)
	if n.CompilationState.Kind != scene.CompError {
		t.Fatalf("expected a compile error, got state kind %d", n.CompilationState.Kind)
	}
}

func TestSchedulerTriggersFrameAndBroadcastsPosition(t *testing.T) {
	s, bc := newTestScheduler(t)
	s.Start()
	t.Cleanup(s.Stop)

	// A short frame so the line's very first crossing (at t=0) fires
	// almost immediately once the transport starts.
	addLineWithFrame(t, s, "nop", "dummy", 0.05)
	waitForNotification(t, bc, NotifyCompilationUpdated)

	s.Submit(SchedulerMessage{Kind: MsgControl, Control: Control{Kind: ControlStart}})
	waitForNotification(t, bc, NotifyPlaybackStateChanged)

	n := waitForNotification(t, bc, NotifyFramePositionChanged)
	if len(n.Positions) != 1 || n.Positions[0].Line != 0 || n.Positions[0].Frame != 0 {
		t.Fatalf("expected line 0 frame 0 to trigger, got %+v", n.Positions)
	}
}

// TestSchedulerTriggersMultipleFrameCrossings exercises triggering past
// the very first, zero-beat crossing of a scene: a short loop (two
// 0.05-beat frames) must keep advancing position as real beats pass,
// which depends on Clock.TimeAtBeat/DateAtBeat computing a scheduled
// instant correctly for beat > 0, not just beat == 0.
func TestSchedulerTriggersMultipleFrameCrossings(t *testing.T) {
	s, bc := newTestScheduler(t)
	s.Start()
	t.Cleanup(s.Stop)

	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditAddLine, Timing: Immediate()}})
	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditAddFrame, Timing: Immediate(), Line: 0, FrameLength: 0.05}})
	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditSetScript, Timing: Immediate(), Line: 0, Frame: 0, Source: "nop", Language: "dummy"}})
	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditAddFrame, Timing: Immediate(), Line: 0, FrameLength: 0.05}})
	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditSetScript, Timing: Immediate(), Line: 0, Frame: 1, Source: "nop", Language: "dummy"}})
	waitForNotification(t, bc, NotifyCompilationUpdated)
	waitForNotification(t, bc, NotifyCompilationUpdated)

	s.Submit(SchedulerMessage{Kind: MsgControl, Control: Control{Kind: ControlStart}})
	waitForNotification(t, bc, NotifyPlaybackStateChanged)

	seenFrame0 := false
	seenFrame1 := false
	deadline := time.After(2 * time.Second)
	for !seenFrame0 || !seenFrame1 {
		select {
		case n := <-bc.C():
			if n.Kind != NotifyFramePositionChanged {
				continue
			}
			for _, p := range n.Positions {
				if p.Line == 0 && p.Frame == 0 {
					seenFrame0 = true
				}
				if p.Line == 0 && p.Frame == 1 {
					seenFrame1 = true
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for both frames to trigger (frame0=%v frame1=%v)", seenFrame0, seenFrame1)
		}
	}
}

func TestSchedulerStopKillsExecutionsAndBroadcastsTransportStopped(t *testing.T) {
	s, bc := newTestScheduler(t)
	s.Start()
	t.Cleanup(s.Stop)

	addLineWithFrame(t, s, "nop", "dummy", 0.05)
	waitForNotification(t, bc, NotifyCompilationUpdated)

	s.Submit(SchedulerMessage{Kind: MsgControl, Control: Control{Kind: ControlStart}})
	waitForNotification(t, bc, NotifyFramePositionChanged)

	s.Submit(SchedulerMessage{Kind: MsgControl, Control: Control{Kind: ControlStop}})
	n := waitForNotification(t, bc, NotifyPlaybackStateChanged)
	if n.Playing {
		t.Fatalf("expected Playing=false after ControlStop")
	}
	waitForNotification(t, bc, NotifyTransportStopped)
}

func TestSchedulerSetSceneRetriggersActiveFrame(t *testing.T) {
	s, bc := newTestScheduler(t)
	s.Start()
	t.Cleanup(s.Stop)

	s.Submit(SchedulerMessage{Kind: MsgControl, Control: Control{Kind: ControlStart}})
	waitForNotification(t, bc, NotifyPlaybackStateChanged)

	newScene := scene.NewScene()
	line := scene.NewLine()
	frame := scene.NewFrame(0.05)
	frame.Script.SetSource("nop", "dummy")
	line.AddFrame(frame)
	newScene.AddLine(line)

	s.Submit(SchedulerMessage{Kind: MsgEdit, Edit: Edit{Kind: EditSetScene, Timing: Immediate(), NewScene: newScene}})

	waitForNotification(t, bc, NotifyUpdatedScene)
	waitForNotification(t, bc, NotifyCompilationUpdated)
	waitForNotification(t, bc, NotifyFramePositionChanged)
}

func TestSchedulerSetTempoBroadcastsTempoChanged(t *testing.T) {
	s, bc := newTestScheduler(t)
	s.Start()
	t.Cleanup(s.Stop)

	s.Submit(SchedulerMessage{Kind: MsgControl, Control: Control{Kind: ControlSetTempo, Tempo: 90}})

	n := waitForNotification(t, bc, NotifyTempoChanged)
	if n.Tempo != 90 {
		t.Fatalf("expected tempo 90, got %v", n.Tempo)
	}
}

func TestDeferredActionDueTiming(t *testing.T) {
	nextBeat := deferredAction{edit: Edit{Timing: NextBeat()}}
	if nextBeat.due(0.5, 0.9, nil, nil) {
		t.Fatal("expected NextBeat not due before crossing an integer beat")
	}
	if !nextBeat.due(0.5, 1.2, nil, nil) {
		t.Fatal("expected NextBeat due after crossing beat 1")
	}

	nextBar := deferredAction{edit: Edit{Timing: NextBar(4)}}
	if nextBar.due(1.0, 3.9, nil, nil) {
		t.Fatal("expected NextBar(4) not due before crossing a multiple of 4")
	}
	if !nextBar.due(3.0, 4.5, nil, nil) {
		t.Fatal("expected NextBar(4) due after crossing beat 4")
	}

	atBeat := deferredAction{edit: Edit{Timing: AtBeat(10)}}
	if atBeat.due(8, 9.5, nil, nil) {
		t.Fatal("expected AtBeat(10) not due before reaching beat 10")
	}
	if !atBeat.due(9.5, 10.0, nil, nil) {
		t.Fatal("expected AtBeat(10) due once the beat is reached")
	}

	immediate := deferredAction{edit: Edit{Timing: Immediate()}}
	if !immediate.due(0, 0, nil, nil) {
		t.Fatal("expected Immediate always due")
	}
}

func TestGlobalsEqual(t *testing.T) {
	a := GlobalSnapshot{"A": value.Float(1)}
	b := GlobalSnapshot{"A": value.Float(1)}
	if !globalsEqual(a, b) {
		t.Fatal("expected equal snapshots to compare equal")
	}
	c := GlobalSnapshot{"A": value.Float(2)}
	if globalsEqual(a, c) {
		t.Fatal("expected differing snapshots to compare unequal")
	}
	if globalsEqual(a, GlobalSnapshot{}) {
		t.Fatal("expected different-length snapshots to compare unequal")
	}
}
