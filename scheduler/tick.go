package scheduler

import (
	"math"
	"time"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/device"
	"github.com/brassline/core/scene"
	"github.com/brassline/core/value"
	"github.com/brassline/core/vm"
)

func (s *Scheduler) lineStore(line int) *value.Store {
	st, ok := s.lineStores[line]
	if !ok {
		st = value.NewStore()
		s.lineStores[line] = st
	}
	return st
}

func (s *Scheduler) frameStore(line int, frame uint32) *value.Store {
	key := [2]int{line, int(frame)}
	st, ok := s.frameStores[key]
	if !ok {
		st = value.NewStore()
		s.frameStores[key] = st
	}
	return st
}

// tickScene implements step 5 of spec.md §4.7: for every line, compute
// the frame index and, on a crossing, trigger an Execution. It returns
// the minimum next_frame_delay across every line.
func (s *Scheduler) tickScene() clock.SyncTime {
	minDelay := clock.SyncTime(math.MaxInt64)
	now := s.clk.Micros()

	for li := 0; li < s.scene.LineCount(); li++ {
		line := s.scene.LineAt(li)
		if line == nil {
			continue
		}
		result := scene.CalculateFrameIndex(line, s.clk, now)
		if result.NextFrameDelay < minDelay {
			minDelay = result.NextFrameDelay
		}
		if result.FrameIndex == scene.NoFrame {
			continue
		}

		curFrame, curIter := line.Position()
		if curFrame == result.FrameIndex && curIter == result.Iteration {
			continue
		}

		line.IncrementFramesPassed()
		line.SetPosition(result.FrameIndex, result.Iteration, result.Repetition)
		s.triggerLineFrame(li, line, result)
	}

	return minDelay
}

// triggerLineFrame launches a fresh Execution for line's frame at
// result, replacing any Execution already running for that line (only
// one frame per line may be active at a time, per spec.md §3's
// invariant "at most one active frame per line at any instant").
func (s *Scheduler) triggerLineFrame(lineIdx int, line *scene.Line, result scene.FrameIndexResult) {
	frame := line.FrameAt(int(result.FrameIndex))
	if frame == nil {
		return
	}

	s.killLineExecutions(lineIdx)

	if !frame.Enabled {
		return
	}

	prog, ok := frame.Script.CompiledProgram()
	if !ok {
		// No successful compile yet at all — nothing to run, per
		// spec.md §7: a frame with no program does not trigger.
		return
	}

	scopes := value.Scopes{
		Global:   s.globalStore,
		Line:     s.lineStore(lineIdx),
		Frame:    s.frameStore(lineIdx, result.FrameIndex).Clone(),
		Instance: value.NewStore(),
	}

	interp := s.makeInterpreter(frame.Script, prog, scopes)

	line.IncrementFramesExecuted()
	s.executions = append(s.executions, &running{
		line:          lineIdx,
		frame:         result.FrameIndex,
		interp:        interp,
		scheduledTime: result.ScheduledDate,
	})

	s.broadcast.Notify(Notification{
		Kind:      NotifyFramePositionChanged,
		Positions: []FramePosition{{Line: lineIdx, Frame: result.FrameIndex, Iteration: result.Iteration, Repetition: result.Repetition}},
	})
}

// makeInterpreter resolves script's language to a registered
// InterpreterFactory (forth-style: drives its own source-level
// interpreter) or falls back to the default Control bytecode
// interpreter over prog, per spec.md §4.4's "additional interpreter
// kinds plug into the same contract".
func (s *Scheduler) makeInterpreter(script *scene.Script, prog vm.Program, scopes value.Scopes) vm.Interpreter {
	if f, ok := s.factories[scriptLanguage(script)]; ok {
		if interp, err := f.MakeInterpreter(script.Content(), prog, scopes); err == nil {
			return interp
		} else {
			s.log.Error("interpreter factory failed, falling back to bytecode", "lang", scriptLanguage(script), "err", err)
		}
	}
	return vm.NewControlInterpreter(prog, scopes)
}

func scriptLanguage(script *scene.Script) string {
	return script.Language
}

func (s *Scheduler) killLineExecutions(lineIdx int) {
	kept := s.executions[:0]
	for _, r := range s.executions {
		if r.line == lineIdx {
			r.interp.Stop()
			continue
		}
		kept = append(kept, r)
	}
	s.executions = kept
}

// tickExecutions implements step 6 of spec.md §4.7: step every ready
// Execution, translate and forward its emitted event, drop terminated
// Executions, and report the minimum remaining wait among survivors.
func (s *Scheduler) tickExecutions() clock.SyncTime {
	now := s.clk.Micros()
	minDelay := clock.SyncTime(math.MaxInt64)

	kept := s.executions[:0]
	for _, r := range s.executions {
		if r.interp.HasTerminated() {
			continue
		}
		if now+scheduledDrift < r.scheduledTime {
			if remain := r.scheduledTime - now; remain < minDelay {
				minDelay = remain
			}
			kept = append(kept, r)
			continue
		}

		ctx := vm.NewContext(s.executionScopes(r), s.clk, s.frameLenBeats(r), s.env, s.midiCC, s.log)
		event, wait := r.interp.ExecuteNext(ctx)
		if event != nil {
			s.forwardEvent(*event, r.scheduledTime)
		}

		if r.interp.HasTerminated() {
			continue
		}

		r.scheduledTime = now + clock.SyncTime(wait)
		if wait < uint64(minDelay) {
			minDelay = clock.SyncTime(wait)
		}
		kept = append(kept, r)
	}
	s.executions = kept

	return minDelay
}

// executionScopes rebuilds the Scopes bundle an already-running
// Execution's Interpreter closes over. The Control interpreter and the
// Forth interpreter both hold their own Scopes internally (passed at
// construction), so this is only consulted when a caller needs to
// build a fresh Context per step; Global/Line are the live, shared
// stores, Frame/Instance were snapshotted at trigger time and live
// inside the Interpreter itself.
func (s *Scheduler) executionScopes(r *running) value.Scopes {
	return value.Scopes{Global: s.globalStore, Line: s.lineStore(r.line)}
}

// frameLenBeats resolves the owning frame's length in beats, needed to
// resolve a Dur(Frames) TimeSpan.
func (s *Scheduler) frameLenBeats(r *running) float64 {
	line := s.scene.LineAt(r.line)
	if line == nil {
		return 0
	}
	frame := line.FrameAt(int(r.frame))
	if frame == nil {
		return 0
	}
	return frame.LengthBeats
}

// forwardEvent resolves the event's device, translates it to one or
// more wire-ready payloads, and submits them to the World, per spec.md
// §4.7 step 6 and §4.9.
func (s *Scheduler) forwardEvent(event vm.ConcreteEvent, at clock.SyncTime) {
	tps := device.TranslateEvent(event, at, s.clk, s.dm)
	s.wd.Submit(tps)
}

// broadcastGlobalsIfChanged implements step 7: detect a change to any
// single-letter (A-Z) global and broadcast a GlobalVariablesChanged
// notification, per spec.md §3's "Global ... single-letter names A-Z
// reserved for user scripts".
func (s *Scheduler) broadcastGlobalsIfChanged() {
	current := s.snapshotGlobals()
	if globalsEqual(current, s.lastGlobals) {
		return
	}
	s.lastGlobals = current
	s.broadcast.Notify(Notification{Kind: NotifyGlobalVariablesChanged, Globals: current})
}

func (s *Scheduler) snapshotGlobals() GlobalSnapshot {
	out := GlobalSnapshot{}
	for c := 'A'; c <= 'Z'; c++ {
		name := string(c)
		if v, ok := s.globalStore.Get(name); ok {
			out[name] = v
		}
	}
	return out
}

func microsToDuration(m clock.SyncTime) time.Duration {
	if m == 0 {
		return 0
	}
	if m > clock.SyncTime(math.MaxInt64/1000) {
		return time.Hour
	}
	return time.Duration(m) * time.Microsecond
}

// newTimerOrNil always returns a live timer: a zero or negative
// duration still fires essentially immediately (time.NewTimer(0)),
// which is what drives the very first tick and any tick where the
// previous iteration found work already due.
func newTimerOrNil(d time.Duration) *time.Timer {
	if d < 0 {
		d = 0
	}
	return time.NewTimer(d)
}

func stopTimerOrNil(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
