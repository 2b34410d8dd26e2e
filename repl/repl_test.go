package repl

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
	"github.com/brassline/core/scheduler"
	"github.com/brassline/core/world"
)

type stubLog struct{}

func (stubLog) Info(msg string, kv ...any) {}

func testHandler(t *testing.T) (*Handler, *scheduler.ChannelBroadcaster) {
	t.Helper()
	src := clock.NewInternalBeatSource(120, nil)
	src.Enable()
	clk := clock.NewClock(src, 4)

	dm := device.NewDeviceMap(stubLog{})
	wd := world.New(dm, clk, logging.New(io.Discard, log.ErrorLevel))
	wd.Start()
	t.Cleanup(wd.Stop)

	reg := compiler.NewRegistry()
	reg.Add(dummylang.New())

	bc := scheduler.NewChannelBroadcaster(64)
	sc := scene.NewScene()
	sched := scheduler.New(clk, sc, dm, wd, reg, logging.New(io.Discard, log.ErrorLevel), bc)
	sched.Start()
	t.Cleanup(sched.Stop)

	return New(sched, sc, clk), bc
}

func waitFor(t *testing.T, bc *scheduler.ChannelBroadcaster, kind scheduler.NotificationKind) scheduler.Notification {
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

func TestProcessCommandAddsLineAndFrame(t *testing.T) {
	h, bc := testHandler(t)

	if err := h.ProcessCommand("line add"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, bc, scheduler.NotifyAddedLine)

	if err := h.ProcessCommand("frame add 0 1.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, bc, scheduler.NotifyAddedFrame)

	if err := h.ProcessCommand("script 0 0 dummy nop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, bc, scheduler.NotifyCompilationUpdated)
}

func TestProcessCommandRejectsBadArity(t *testing.T) {
	h, _ := testHandler(t)

	if err := h.ProcessCommand("tempo"); err == nil {
		t.Fatal("expected an error for 'tempo' with no argument")
	}
	if err := h.ProcessCommand("frame add 0"); err == nil {
		t.Fatal("expected an error for 'frame add' with too few arguments")
	}
	if err := h.ProcessCommand("frobnicate"); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestProcessCommandTempoAndTransport(t *testing.T) {
	h, bc := testHandler(t)

	if err := h.ProcessCommand("tempo 140"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := waitFor(t, bc, scheduler.NotifyTempoChanged)
	if n.Tempo != 140 {
		t.Fatalf("expected tempo 140, got %v", n.Tempo)
	}

	if err := h.ProcessCommand("start"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, bc, scheduler.NotifyPlaybackStateChanged)

	if err := h.ProcessCommand("stop"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, bc, scheduler.NotifyTransportStopped)
}

func TestReadLoopStopsOnQuit(t *testing.T) {
	h, _ := testHandler(t)
	r, w := io.Pipe()
	go func() {
		w.Write([]byte("show\nquit\n"))
		w.Close()
	}()
	if err := h.ReadLoop(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
