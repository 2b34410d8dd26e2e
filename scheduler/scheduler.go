package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/compiler"
	"github.com/brassline/core/device"
	"github.com/brassline/core/logging"
	"github.com/brassline/core/scene"
	"github.com/brassline/core/value"
	"github.com/brassline/core/vm"
	"github.com/brassline/core/world"
)

// scheduledDrift biases an Execution's readiness slightly earlier than
// its exact scheduled instant, absorbing tick jitter, per spec.md
// §4.5's "SCHEDULED_DRIFT ... a small positive constant (≈1 ms)".
const scheduledDrift clock.SyncTime = 1000

// running is one active Execution the Scheduler is stepping: the
// frame/line it belongs to (for accounting and for killing it on a
// line-stop or scene replacement), the polymorphic Interpreter driving
// it, and the SyncTime it next becomes ready.
type running struct {
	line          int
	frame         uint32
	interp        vm.Interpreter
	scheduledTime clock.SyncTime
}

// Scheduler is the single-threaded control loop of spec.md §4.7. All
// of its state (scene, stores, active executions, deferred actions) is
// touched only from its own goroutine; external callers interact
// exclusively through Submit (inbound messages) and the Broadcaster
// (outbound notifications), matching the teacher's playback.Engine
// ownership-by-goroutine idiom, generalized from a single mutable
// pattern to the full scene graph.
type Scheduler struct {
	clk *clock.Clock

	scene       *scene.Scene
	globalStore *value.Store

	// lineStores/frameStores hold the persistent Line- and Frame-tier
	// VariableStores spec.md §3 describes but scene.Line/scene.Frame
	// don't themselves carry: Line survives for the line's lifetime,
	// Frame is inherited into a fresh Execution's Frame scope on every
	// trigger and then mutated privately (the Execution's copy never
	// writes back).
	lineStores  map[int]*value.Store
	frameStores map[[2]int]*value.Store

	dm *device.DeviceMap
	wd *world.World

	registry  *compiler.Registry
	factories map[string]vm.InterpreterFactory
	env       *schedulerEnv
	midiCC    vm.MidiCCSource
	log       *logging.Logger
	broadcast Broadcaster

	playing atomic.Bool

	executions []*running
	deferred   []deferredAction

	// lastGlobals is the previous tick's snapshot of single-letter
	// globals, compared against the current one to detect a change
	// worth broadcasting.
	lastGlobals GlobalSnapshot

	inbound   chan SchedulerMessage
	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once

	lastBeat float64
}

// New builds a Scheduler. dm and wd must already be constructed (the
// caller owns their lifecycle — Start/Stop on the World is the
// caller's responsibility, matching spec.md §5's separate-thread
// ownership split).
func New(clk *clock.Clock, sc *scene.Scene, dm *device.DeviceMap, wd *world.World, registry *compiler.Registry, log *logging.Logger, broadcast Broadcaster) *Scheduler {
	if broadcast == nil {
		broadcast = NewChannelBroadcaster(0) // unbuffered and undrained: every notification is dropped
	}
	s := &Scheduler{
		clk:         clk,
		scene:       sc,
		globalStore: value.NewStore(),
		lineStores:  make(map[int]*value.Store),
		frameStores: make(map[[2]int]*value.Store),
		dm:          dm,
		wd:          wd,
		registry:    registry,
		factories:   make(map[string]vm.InterpreterFactory),
		env:         newSchedulerEnv(clk),
		midiCC:      device.DeviceMapCCSource{Map: dm},
		log:         log,
		broadcast:   broadcast,
		lastGlobals: GlobalSnapshot{},
		inbound:     make(chan SchedulerMessage, 256),
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
	return s
}

// RegisterInterpreterFactory lets a language that needs a non-default
// Interpreter (e.g. "forth", which drives its own source-level
// interpreter rather than compiled bytecode) hand the Scheduler a
// vm.InterpreterFactory. A language with no registered factory falls
// back to the Control bytecode interpreter (vm.NewControlInterpreter)
// over its compiled Program, which covers asm/dummylang/ai.
func (s *Scheduler) RegisterInterpreterFactory(f vm.InterpreterFactory) {
	s.factories[f.Name()] = f
}

// Submit enqueues an inbound SchedulerMessage. It blocks only until the
// message is queued or the Scheduler has been asked to shut down.
func (s *Scheduler) Submit(msg SchedulerMessage) {
	select {
	case s.inbound <- msg:
	case <-s.stopCh:
	}
}

// Start launches the control loop in its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop requests shutdown and waits for the control loop to exit. Per
// spec.md §5's cancellation rule, this also stops every active
// Execution and flushes every device bound in the DeviceMap. Stopping
// the World is still the caller's responsibility, since the World
// outlives a single Scheduler generation in some deployments.
func (s *Scheduler) Stop() {
	s.requestStop()
	<-s.stoppedCh
}

// requestStop closes stopCh exactly once, whether triggered by an
// external Stop() call or an inbound Shutdown control message.
func (s *Scheduler) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) run() {
	defer close(s.stoppedCh)

	nextWake := clock.SyncTime(0)
	for {
		s.clk.CaptureAppState()

		if !s.waitForWork(nextWake) {
			return
		}

		beat := s.clk.Beat()
		s.applyDeferred(beat)
		s.lastBeat = beat

		if !s.playing.Load() {
			nextWake = 50_000 // still poll periodically even while stopped
			continue
		}

		nextFrameDelay := s.tickScene()
		nextExecDelay := s.tickExecutions()
		s.broadcastGlobalsIfChanged()

		nextWake = minSyncTime(nextExecDelay, nextFrameDelay)
	}
}

// waitForWork blocks the loop until a message arrives, nextWake
// elapses, or shutdown is requested, draining every already-queued
// message before returning so a burst of edits applies in one tick
// where their timing allows it.
func (s *Scheduler) waitForWork(nextWake clock.SyncTime) bool {
	timeout := microsToDuration(nextWake)
	timer := newTimerOrNil(timeout)
	defer stopTimerOrNil(timer)

	select {
	case msg := <-s.inbound:
		s.handleMessage(msg)
		s.drainPending()
		return true
	case <-timerC(timer):
		return true
	case <-s.stopCh:
		s.shutdown()
		return false
	}
}

// drainPending applies every message already queued without blocking,
// so a burst of edits submitted together is processed in the same
// tick.
func (s *Scheduler) drainPending() {
	for {
		select {
		case msg := <-s.inbound:
			s.handleMessage(msg)
		default:
			return
		}
	}
}

func (s *Scheduler) shutdown() {
	for _, r := range s.executions {
		r.interp.Stop()
	}
	s.executions = nil
	for _, slot := range s.dm.Slots() {
		if dev, ok := s.dm.Get(slot); ok {
			_ = dev.Flush()
		}
	}
}

func minSyncTime(a, b clock.SyncTime) clock.SyncTime {
	if a < b {
		return a
	}
	return b
}
