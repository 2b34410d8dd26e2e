package scheduler

import (
	"github.com/brassline/core/device"
	"github.com/brassline/core/scene"
	"github.com/brassline/core/value"
)

// handleMessage dispatches one inbound SchedulerMessage: an Immediate
// edit applies now, any other timing is parked on the deferred list;
// Control messages and CompilationUpdates always apply immediately
// (spec.md §4.7 names only edits as deferrable).
func (s *Scheduler) handleMessage(msg SchedulerMessage) {
	switch msg.Kind {
	case MsgEdit:
		if msg.Edit.Timing.Kind == TimingImmediate {
			s.applyEdit(msg.Edit)
			return
		}
		s.deferred = append(s.deferred, deferredAction{edit: msg.Edit})

	case MsgControl:
		s.applyControl(msg.Control)

	case MsgDevice:
		s.applyDeviceMessage(msg.Device)

	case MsgCompilationUpdate:
		s.applyCompilationUpdate(msg.Compilation)
	}
}

// applyDeferred implements spec.md §4.7 step 3: walk the deferred
// list, applying any whose timing condition is now satisfied and
// retaining the rest. NextFrame(line) actions are resolved against
// each line's crossing, which tickScene detects in the same tick, so
// they're applied up front of tickScene via a dedicated check.
func (s *Scheduler) applyDeferred(beat float64) {
	kept := s.deferred[:0]
	for _, a := range s.deferred {
		if a.edit.Timing.Kind == TimingNextFrame {
			if s.lineCrossedFrame(a.edit.Timing.Line) {
				s.applyEdit(a.edit)
				continue
			}
			kept = append(kept, a)
			continue
		}
		if a.due(s.lastBeat, beat, s.clk, nil) {
			s.applyEdit(a.edit)
			continue
		}
		kept = append(kept, a)
	}
	s.deferred = kept
}

// lineCrossedFrame reports whether line's (frame,iteration) pair
// changed between the previous tick and now, by recomputing
// CalculateFrameIndex and comparing against the Line's still-uncommitted
// stored position (tickScene hasn't run yet this tick).
func (s *Scheduler) lineCrossedFrame(line int) bool {
	l := s.scene.LineAt(line)
	if l == nil {
		return true // the line is gone; don't block the deferred edit forever
	}
	result := scene.CalculateFrameIndex(l, s.clk, s.clk.Micros())
	curFrame, curIter := l.Position()
	return curFrame != result.FrameIndex || curIter != result.Iteration
}

// applyDeviceMessage records a MIDI input CC observation against the
// bound device's control memory, if any.
func (s *Scheduler) applyDeviceMessage(m DeviceMessage) {
	dev, ok := s.dm.Get(m.Slot)
	if !ok {
		return
	}
	if in, ok := dev.(*device.MidiInDevice); ok {
		in.Observe(m.Channel0Based, m.Control, m.ObservedValue)
	}
}

func (s *Scheduler) applyControl(c Control) {
	switch c.Kind {
	case ControlSetTempo:
		s.clk.SetTempo(c.Tempo)
		s.broadcast.Notify(Notification{Kind: NotifyTempoChanged, Tempo: c.Tempo})

	case ControlStart:
		s.playing.Store(true)
		s.broadcast.Notify(Notification{Kind: NotifyPlaybackStateChanged, Playing: true})

	case ControlStop:
		s.playing.Store(false)
		s.killAllExecutions()
		s.broadcast.Notify(Notification{Kind: NotifyPlaybackStateChanged, Playing: false})
		s.broadcast.Notify(Notification{Kind: NotifyTransportStopped})

	case ControlShutdown:
		s.requestStop()
	}
}

func (s *Scheduler) killAllExecutions() {
	for _, r := range s.executions {
		r.interp.Stop()
	}
	s.executions = nil
}

func (s *Scheduler) applyCompilationUpdate(u CompilationUpdate) {
	line := s.scene.LineAt(u.Line)
	if line == nil {
		return
	}
	frame := line.FrameAt(u.Frame)
	if frame == nil {
		return
	}
	frame.Script.SetState(u.State)

	lang := ""
	if u.State.Kind == scene.CompError {
		lang = u.State.Lang
	} else {
		lang = frame.Script.Language
	}
	s.broadcast.Notify(Notification{
		Kind:             NotifyCompilationUpdated,
		Line:             u.Line,
		Frame:            u.Frame,
		CompilationLang:  lang,
		CompilationState: u.State,
	})
}

// applyEdit performs one scene mutation. Mutations run on the
// Scheduler's own goroutine, so no additional locking beyond what
// scene.Scene/Line already provide is needed here.
func (s *Scheduler) applyEdit(e Edit) {
	switch e.Kind {
	case EditSetScene:
		s.setScene(e.NewScene)

	case EditAddLine:
		if e.NewLine == nil {
			e.NewLine = scene.NewLine()
		}
		s.scene.AddLine(e.NewLine)
		s.broadcast.Notify(Notification{Kind: NotifyAddedLine, Line: s.scene.LineCount() - 1})

	case EditRemoveLine:
		s.killLineExecutions(e.Line)
		delete(s.lineStores, e.Line)
		if err := s.scene.RemoveLine(e.Line); err == nil {
			s.broadcast.Notify(Notification{Kind: NotifyRemovedLine, Line: e.Line})
		}

	case EditAddFrame:
		line := s.scene.LineAt(e.Line)
		if line == nil {
			return
		}
		f := scene.NewFrame(e.FrameLength)
		line.AddFrame(f)
		s.broadcast.Notify(Notification{Kind: NotifyAddedFrame, Line: e.Line, Frame: line.FrameCount() - 1})

	case EditRemoveFrame:
		line := s.scene.LineAt(e.Line)
		if line == nil {
			return
		}
		delete(s.frameStores, [2]int{e.Line, e.Frame})
		if err := line.RemoveFrame(e.Frame); err == nil {
			s.broadcast.Notify(Notification{Kind: NotifyRemovedFrame, Line: e.Line, Frame: e.Frame})
		}

	case EditSetScript:
		s.setScript(e.Line, e.Frame, e.Source, e.Language)

	case EditSetFrameEnabled:
		if f := s.frameAt(e.Line, e.Frame); f != nil {
			f.Enabled = e.Enabled
			s.broadcast.Notify(Notification{Kind: NotifyUpdatedFrames, Line: e.Line, Frames: []int{e.Frame}})
		}

	case EditRenameFrame:
		if f := s.frameAt(e.Line, e.Frame); f != nil {
			f.Name = e.Name
			s.broadcast.Notify(Notification{Kind: NotifyUpdatedFrames, Line: e.Line, Frames: []int{e.Frame}})
		}

	case EditDuplicateFrames:
		s.duplicateFrames(e.Line, e.Frame, e.Count)

	case EditSetRepetitions:
		if f := s.frameAt(e.Line, e.Frame); f != nil && e.Repetitions >= 1 {
			f.Repetitions = e.Repetitions
			s.broadcast.Notify(Notification{Kind: NotifyUpdatedFrames, Line: e.Line, Frames: []int{e.Frame}})
		}

	case EditSetFrameLength:
		if f := s.frameAt(e.Line, e.Frame); f != nil && e.FrameLength > 0 {
			f.LengthBeats = e.FrameLength
			s.broadcast.Notify(Notification{Kind: NotifyUpdatedFrames, Line: e.Line, Frames: []int{e.Frame}})
		}

	case EditSetLineLength:
		if line := s.scene.LineAt(e.Line); line != nil {
			line.CustomLoopBeats = e.LineLength
			s.broadcast.Notify(Notification{Kind: NotifyUpdatedLines, Lines: []int{e.Line}})
		}

	case EditSetLineSpeed:
		if line := s.scene.LineAt(e.Line); line != nil && e.Speed > 0 {
			line.Speed = e.Speed
			s.broadcast.Notify(Notification{Kind: NotifyUpdatedLines, Lines: []int{e.Line}})
		}
	}
}

func (s *Scheduler) frameAt(line, frame int) *scene.Frame {
	l := s.scene.LineAt(line)
	if l == nil {
		return nil
	}
	return l.FrameAt(frame)
}

// duplicateFrames appends count copies of line's frame at the end of the line, a
// shallow copy of length/enabled/repetitions and a fresh Script
// sharing the same source/language (recompiled independently, since
// each Frame's Script carries its own compilation state and ID).
func (s *Scheduler) duplicateFrames(lineIdx, frameIdx, count int) {
	line := s.scene.LineAt(lineIdx)
	if line == nil {
		return
	}
	src := line.FrameAt(frameIdx)
	if src == nil {
		return
	}
	for i := 0; i < count; i++ {
		dup := scene.NewFrame(src.LengthBeats)
		dup.Enabled = src.Enabled
		dup.Repetitions = src.Repetitions
		dup.Name = src.Name
		dup.Script = scene.NewScript(src.Script.Content(), src.Script.Language)
		line.AddFrame(dup)
		s.compileScriptAsync(lineIdx, line.FrameCount()-1, dup.Script)
	}
	s.broadcast.Notify(Notification{Kind: NotifyUpdatedLines, Lines: []int{lineIdx}})
}

// setScript replaces a frame's source and kicks off an asynchronous
// compile, per spec.md §3's "Compilation is performed off the
// scheduler thread".
func (s *Scheduler) setScript(lineIdx, frameIdx int, source, lang string) {
	f := s.frameAt(lineIdx, frameIdx)
	if f == nil {
		return
	}
	f.Script.SetSource(source, lang)
	s.compileScriptAsync(lineIdx, frameIdx, f.Script)
}

func (s *Scheduler) compileScriptAsync(lineIdx, frameIdx int, script *scene.Script) {
	script.SetState(scene.Compiling())
	source := script.Content()
	lang := script.Language

	go func() {
		prog, cerr := s.registry.Compile(source, lang, nil)
		var state scene.CompilationState
		if cerr != nil {
			state = scene.CompileError(cerr.Lang, cerr.Info, cerr.From, cerr.To)
		} else {
			state = scene.Compiled(prog)
		}
		s.Submit(SchedulerMessage{
			Kind:        MsgCompilationUpdate,
			Compilation: CompilationUpdate{Line: lineIdx, Frame: frameIdx, State: state},
		})
	}()
}

// setScene implements spec.md §4.7's scene-replacement semantics: make
// the new scene internally consistent, swap it in, enqueue compilation
// for every script, then (re)trigger each line's currently active
// frame immediately, replacing any execution already running for that
// line.
func (s *Scheduler) setScene(newScene *scene.Scene) {
	if newScene == nil {
		return
	}
	if err := newScene.Normalize(); err != nil {
		s.log.Error("rejected SetScene: scene failed normalization", "err", err)
		return
	}

	s.killAllExecutions()
	s.scene.ReplaceLines(newScene.Lines)
	s.lineStores = make(map[int]*value.Store)
	s.frameStores = make(map[[2]int]*value.Store)

	for li := 0; li < s.scene.LineCount(); li++ {
		line := s.scene.LineAt(li)
		for fi := 0; fi < line.FrameCount(); fi++ {
			f := line.FrameAt(fi)
			s.compileScriptAsync(li, fi, f.Script)
		}
	}

	s.broadcast.Notify(Notification{Kind: NotifyUpdatedScene})

	now := s.clk.Micros()
	for li := 0; li < s.scene.LineCount(); li++ {
		line := s.scene.LineAt(li)
		result := scene.CalculateFrameIndex(line, s.clk, now)
		if result.FrameIndex == scene.NoFrame {
			continue
		}
		line.SetPosition(result.FrameIndex, result.Iteration, result.Repetition)
		s.triggerLineFrame(li, line, result)
	}
}
