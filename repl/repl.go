// Package repl is the interactive/batch command surface over a
// Scheduler, generalizing the teacher's commands.Handler (space-
// delimited verbs over a single sequence.Pattern) into a verb set
// covering the full scene-editing Edit/Control taxonomy.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/scene"
	"github.com/brassline/core/scheduler"
)

// Handler processes command lines against a running Scheduler.
type Handler struct {
	sched *scheduler.Scheduler
	sc    *scene.Scene
	clk   *clock.Clock
}

func New(sched *scheduler.Scheduler, sc *scene.Scene, clk *clock.Clock) *Handler {
	return &Handler{sched: sched, sc: sc, clk: clk}
}

// ProcessCommand parses and dispatches a single command line.
func (h *Handler) ProcessCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		return h.handleShow(nil)
	}

	parts := strings.Fields(cmdLine)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "tempo":
		return h.handleTempo(parts)
	case "start":
		return h.handleStart(parts)
	case "stop":
		return h.handleStop(parts)
	case "line":
		return h.handleLine(parts)
	case "frame":
		return h.handleFrame(parts)
	case "script":
		return h.handleScript(parts)
	case "rename":
		return h.handleRename(parts)
	case "repetitions":
		return h.handleRepetitions(parts)
	case "save":
		return h.handleSave(parts)
	case "load":
		return h.handleLoad(parts)
	case "list":
		return h.handleList(parts)
	case "show":
		return h.handleShow(parts)
	case "help":
		return h.handleHelp(parts)
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (h *Handler) handleTempo(parts []string) error {
	if len(parts) != 2 {
		return fmt.Errorf("usage: tempo <bpm> (e.g., 'tempo 120')")
	}
	bpm, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("invalid BPM: %s", parts[1])
	}
	h.sched.Submit(scheduler.SchedulerMessage{
		Kind:    scheduler.MsgControl,
		Control: scheduler.Control{Kind: scheduler.ControlSetTempo, Tempo: bpm},
	})
	fmt.Printf("Set tempo to %g BPM\n", bpm)
	return nil
}

func (h *Handler) handleStart(parts []string) error {
	if len(parts) != 1 {
		return fmt.Errorf("usage: start")
	}
	h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgControl, Control: scheduler.Control{Kind: scheduler.ControlStart}})
	fmt.Println("Playback started")
	return nil
}

func (h *Handler) handleStop(parts []string) error {
	if len(parts) != 1 {
		return fmt.Errorf("usage: stop")
	}
	h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgControl, Control: scheduler.Control{Kind: scheduler.ControlStop}})
	fmt.Println("Playback stopped")
	return nil
}

// handleLine: line add | line remove <n> | line length <n> <beats> | line speed <n> <factor>
func (h *Handler) handleLine(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: line add|remove|length|speed ...")
	}
	switch strings.ToLower(parts[1]) {
	case "add":
		h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgEdit, Edit: scheduler.Edit{Kind: scheduler.EditAddLine, Timing: scheduler.Immediate()}})
		fmt.Println("Added line")
		return nil
	case "remove":
		if len(parts) != 3 {
			return fmt.Errorf("usage: line remove <n>")
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("invalid line index: %s", parts[2])
		}
		h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgEdit, Edit: scheduler.Edit{Kind: scheduler.EditRemoveLine, Timing: scheduler.Immediate(), Line: n}})
		fmt.Printf("Removed line %d\n", n)
		return nil
	case "length":
		if len(parts) != 4 {
			return fmt.Errorf("usage: line length <n> <beats>")
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("invalid line index: %s", parts[2])
		}
		beats, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return fmt.Errorf("invalid beats: %s", parts[3])
		}
		h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgEdit, Edit: scheduler.Edit{Kind: scheduler.EditSetLineLength, Timing: scheduler.Immediate(), Line: n, LineLength: beats}})
		fmt.Printf("Set line %d length to %g beats\n", n, beats)
		return nil
	case "speed":
		if len(parts) != 4 {
			return fmt.Errorf("usage: line speed <n> <factor>")
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("invalid line index: %s", parts[2])
		}
		speed, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return fmt.Errorf("invalid speed: %s", parts[3])
		}
		h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgEdit, Edit: scheduler.Edit{Kind: scheduler.EditSetLineSpeed, Timing: scheduler.Immediate(), Line: n, Speed: speed}})
		fmt.Printf("Set line %d speed to %g\n", n, speed)
		return nil
	default:
		return fmt.Errorf("usage: line add|remove|length|speed ...")
	}
}

// handleFrame: frame add <line> <beats> | frame remove <line> <frame> | frame enable|disable <line> <frame>
func (h *Handler) handleFrame(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: frame add|remove|enable|disable ...")
	}
	switch strings.ToLower(parts[1]) {
	case "add":
		if len(parts) != 4 {
			return fmt.Errorf("usage: frame add <line> <beats>")
		}
		line, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("invalid line index: %s", parts[2])
		}
		beats, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return fmt.Errorf("invalid beats: %s", parts[3])
		}
		h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgEdit, Edit: scheduler.Edit{Kind: scheduler.EditAddFrame, Timing: scheduler.Immediate(), Line: line, FrameLength: beats}})
		fmt.Printf("Added frame to line %d\n", line)
		return nil
	case "remove":
		line, frame, err := parseLineFrame(parts[2:])
		if err != nil {
			return fmt.Errorf("usage: frame remove <line> <frame>: %w", err)
		}
		h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgEdit, Edit: scheduler.Edit{Kind: scheduler.EditRemoveFrame, Timing: scheduler.Immediate(), Line: line, Frame: frame}})
		fmt.Printf("Removed line %d frame %d\n", line, frame)
		return nil
	case "enable", "disable":
		line, frame, err := parseLineFrame(parts[2:])
		if err != nil {
			return fmt.Errorf("usage: frame enable|disable <line> <frame>: %w", err)
		}
		enabled := strings.ToLower(parts[1]) == "enable"
		h.sched.Submit(scheduler.SchedulerMessage{Kind: scheduler.MsgEdit, Edit: scheduler.Edit{Kind: scheduler.EditSetFrameEnabled, Timing: scheduler.Immediate(), Line: line, Frame: frame, Enabled: enabled}})
		fmt.Printf("Line %d frame %d enabled=%v\n", line, frame, enabled)
		return nil
	default:
		return fmt.Errorf("usage: frame add|remove|enable|disable ...")
	}
}

// handleScript: script <line> <frame> <lang> <source...>
func (h *Handler) handleScript(parts []string) error {
	if len(parts) < 5 {
		return fmt.Errorf("usage: script <line> <frame> <lang> <source...>")
	}
	line, frame, err := parseLineFrame(parts[1:3])
	if err != nil {
		return fmt.Errorf("usage: script <line> <frame> <lang> <source...>: %w", err)
	}
	lang := parts[3]
	source := strings.Join(parts[4:], " ")
	h.sched.Submit(scheduler.SchedulerMessage{
		Kind: scheduler.MsgEdit,
		Edit: scheduler.Edit{Kind: scheduler.EditSetScript, Timing: scheduler.Immediate(), Line: line, Frame: frame, Language: lang, Source: source},
	})
	fmt.Printf("Set line %d frame %d script (%s)\n", line, frame, lang)
	return nil
}

func (h *Handler) handleRename(parts []string) error {
	if len(parts) < 4 {
		return fmt.Errorf("usage: rename <line> <frame> <name>")
	}
	line, frame, err := parseLineFrame(parts[1:3])
	if err != nil {
		return fmt.Errorf("usage: rename <line> <frame> <name>: %w", err)
	}
	name := strings.Join(parts[3:], " ")
	h.sched.Submit(scheduler.SchedulerMessage{
		Kind: scheduler.MsgEdit,
		Edit: scheduler.Edit{Kind: scheduler.EditRenameFrame, Timing: scheduler.Immediate(), Line: line, Frame: frame, Name: name},
	})
	fmt.Printf("Renamed line %d frame %d to %q\n", line, frame, name)
	return nil
}

func (h *Handler) handleRepetitions(parts []string) error {
	if len(parts) != 4 {
		return fmt.Errorf("usage: repetitions <line> <frame> <n>")
	}
	line, frame, err := parseLineFrame(parts[1:3])
	if err != nil {
		return fmt.Errorf("usage: repetitions <line> <frame> <n>: %w", err)
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid repetitions: %s", parts[3])
	}
	h.sched.Submit(scheduler.SchedulerMessage{
		Kind: scheduler.MsgEdit,
		Edit: scheduler.Edit{Kind: scheduler.EditSetRepetitions, Timing: scheduler.Immediate(), Line: line, Frame: frame, Repetitions: n},
	})
	fmt.Printf("Set line %d frame %d repetitions to %d\n", line, frame, n)
	return nil
}

func (h *Handler) handleSave(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: save <name>")
	}
	name := strings.Join(parts[1:], " ")
	if err := h.sc.Save(name); err != nil {
		return fmt.Errorf("failed to save scene: %w", err)
	}
	fmt.Printf("Saved scene '%s'\n", name)
	return nil
}

func (h *Handler) handleLoad(parts []string) error {
	if len(parts) < 2 {
		return fmt.Errorf("usage: load <name>")
	}
	name := strings.Join(parts[1:], " ")
	loaded, err := scene.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}
	h.sched.Submit(scheduler.SchedulerMessage{
		Kind: scheduler.MsgEdit,
		Edit: scheduler.Edit{Kind: scheduler.EditSetScene, Timing: scheduler.Immediate(), NewScene: loaded},
	})
	fmt.Printf("Loaded scene '%s'\n", name)
	return nil
}

func (h *Handler) handleList(parts []string) error {
	if len(parts) != 1 {
		return fmt.Errorf("usage: list")
	}
	names, err := scene.List()
	if err != nil {
		return fmt.Errorf("failed to list scenes: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No saved scenes found")
		return nil
	}
	fmt.Printf("Saved scenes (%d):\n", len(names))
	for _, n := range names {
		fmt.Printf("  - %s\n", n)
	}
	return nil
}

func (h *Handler) handleShow(parts []string) error {
	if len(parts) > 1 {
		return fmt.Errorf("usage: show")
	}
	fmt.Printf("Tempo: %g BPM, Beat: %.2f\n", h.clk.Tempo(), h.clk.Beat())
	for li := 0; li < h.sc.LineCount(); li++ {
		line := h.sc.LineAt(li)
		passed, executed := line.Counters()
		curFrame, curIter := line.Position()
		fmt.Printf("Line %d: %d frame(s), speed=%g, passed=%d executed=%d frame=%d iter=%d\n",
			li, line.FrameCount(), line.Speed, passed, executed, curFrame, curIter)
		for fi := 0; fi < line.FrameCount(); fi++ {
			f := line.FrameAt(fi)
			fmt.Printf("  Frame %d %q: %gb enabled=%v reps=%d lang=%s\n",
				fi, f.Name, f.LengthBeats, f.Enabled, f.Repetitions, f.Script.Language)
		}
	}
	return nil
}

func (h *Handler) handleHelp(parts []string) error {
	fmt.Print(`Available commands:
  tempo <bpm>                          Change tempo
  start / stop                         Start/stop the transport
  line add                             Add a new, empty line
  line remove <n>                      Remove line n
  line length <n> <beats>              Set line n's custom loop length
  line speed <n> <factor>              Set line n's speed factor
  frame add <line> <beats>             Append a frame to a line
  frame remove <line> <frame>          Remove a frame
  frame enable|disable <line> <frame>  Toggle a frame
  script <line> <frame> <lang> <src>   Set a frame's source and language
  rename <line> <frame> <name>         Rename a frame
  repetitions <line> <frame> <n>       Set a frame's repetition count
  save <name>                          Save the current scene
  load <name>                          Load and install a saved scene
  list                                 List saved scenes
  show                                 Show scene/transport state
  help                                 Show this help message
  quit                                 Exit the program
  <enter>                              Show scene/transport state (same as 'show')
`)
	return nil
}

func parseLineFrame(parts []string) (line, frame int, err error) {
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected <line> <frame>")
	}
	line, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid line index: %s", parts[0])
	}
	frame, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid frame index: %s", parts[1])
	}
	return line, frame, nil
}

// ReadLoop reads commands from reader until "quit"/"exit" or EOF,
// matching the teacher's batch-mode scanner loop.
func (h *Handler) ReadLoop(reader io.Reader) error {
	scanner := bufio.NewScanner(reader)

	fmt.Print("> ")
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(strings.ToLower(line))
		if trimmed == "quit" || trimmed == "exit" {
			return nil
		}
		if err := h.ProcessCommand(line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}
