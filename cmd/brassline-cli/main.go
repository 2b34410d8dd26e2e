// Command brassline-cli is the daemon entrypoint: it wires a Clock, a
// DeviceMap, a World, a compiler Registry and a Scheduler together and
// drives them from either an interactive readline REPL or a piped
// batch script, generalizing the teacher's main.go (a single MIDI
// output port driving one playback.Engine) to the full scene/frame
// model.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"

	"github.com/brassline/core/clock"
	"github.com/brassline/core/compiler"
	"github.com/brassline/core/compiler/aicompile"
	"github.com/brassline/core/compiler/asm"
	"github.com/brassline/core/compiler/dummylang"
	"github.com/brassline/core/compiler/forth"
	"github.com/brassline/core/config"
	"github.com/brassline/core/device"
	"github.com/brassline/core/logging"
	"github.com/brassline/core/repl"
	"github.com/brassline/core/scene"
	"github.com/brassline/core/scheduler"
	vmforth "github.com/brassline/core/vm/forth"
	"github.com/brassline/core/world"
)

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// selectMidiPort picks a MIDI output port: the --midi-port flag if
// given, the only port if there's exactly one, auto-port-0 in batch
// mode, or an interactive readline prompt otherwise — the same
// decision tree as the teacher's main.go.
func selectMidiPort(flags *config.Flags, ports []string, inBatchMode bool) (int, error) {
	if flags.MidiPort >= 0 {
		if flags.MidiPort >= len(ports) {
			return 0, fmt.Errorf("--midi-port %d out of range (found %d ports)", flags.MidiPort, len(ports))
		}
		return flags.MidiPort, nil
	}
	if len(ports) == 0 {
		return 0, fmt.Errorf("no MIDI output ports found")
	}
	if len(ports) == 1 || inBatchMode {
		return 0, nil
	}

	rl, err := readline.New(fmt.Sprintf("Select MIDI port (0-%d): ", len(ports)-1))
	if err != nil {
		return 0, fmt.Errorf("failed to create readline prompt: %w", err)
	}
	defer rl.Close()

	input, err := rl.Readline()
	if err != nil {
		return 0, fmt.Errorf("failed to read port selection: %w", err)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || idx < 0 || idx >= len(ports) {
		return 0, fmt.Errorf("invalid port selection: %s", input)
	}
	return idx, nil
}

func buildRegistry() *compiler.Registry {
	reg := compiler.NewRegistry()
	reg.Add(dummylang.New())
	reg.Add(asm.New())
	reg.Add(forth.New())
	if ai, err := aicompile.NewFromEnv(); err == nil {
		reg.Add(ai)
	} else {
		logging.Default.Warn("ai compiler unavailable, skipping registration", "err", err)
	}
	return reg
}

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, log.InfoLevel)

	ports := device.ListMidiOutPorts()
	inBatchMode := flags.ScriptFile != "" || !isTerminal()

	dm := device.NewDeviceMap(logger)

	if portIndex, err := selectMidiPort(flags, ports, inBatchMode); err != nil {
		logger.Warn("no MIDI output bound", "err", err)
	} else {
		midiOut, err := device.OpenMidiOut(portIndex, ports[portIndex])
		if err != nil {
			logger.Warn("failed to open MIDI output", "err", err)
		} else if _, err := dm.Bind(ports[portIndex], midiOut); err != nil {
			logger.Warn("failed to bind MIDI output", "err", err)
		} else {
			fmt.Printf("Using MIDI port %d: %s\n", portIndex, ports[portIndex])
		}
	}

	if flags.OscTarget != "" {
		parts := strings.SplitN(flags.OscTarget, ":", 2)
		if len(parts) == 2 {
			if port, err := strconv.Atoi(parts[1]); err == nil {
				dm.Bind("osc", device.NewOscOutDevice("osc", parts[0], port))
			}
		}
	}

	if flags.ConfigPath != "" {
		devCfg, err := config.LoadDeviceConfig(flags.ConfigPath)
		if err != nil {
			logger.Error("failed to load device config", "err", err)
		} else {
			for _, bindErr := range devCfg.Bind(dm) {
				logger.Warn("device binding failed", "err", bindErr)
			}
		}
	}

	src := clock.NewInternalBeatSource(flags.Tempo, nil)
	src.Enable()
	clk := clock.NewClock(src, flags.Quantum)

	wd := world.New(dm, clk, logger)
	wd.Start()

	registry := buildRegistry()

	sc := scene.NewScene()
	broadcast := scheduler.NewChannelBroadcaster(256)
	sched := scheduler.New(clk, sc, dm, wd, registry, logger, broadcast)
	sched.RegisterInterpreterFactory(vmforth.Factory{})
	sched.Start()

	go drainNotifications(broadcast, logger)

	cleanup := func() {
		sched.Stop()
		wd.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cleanup()
		os.Exit(0)
	}()

	fmt.Println("brassline core started. Type 'help' for commands, 'quit' to exit.")
	handler := repl.New(sched, sc, clk)

	if flags.ScriptFile != "" {
		f, err := os.Open(flags.ScriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script file: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		if err := handler.ReadLoop(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading script: %v\n", err)
		}
		fmt.Println("\nScript completed. Scheduler continues running. Press Ctrl+C to exit.")
		select {}
	}

	if isTerminal() {
		if err := runInteractive(handler); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading commands: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := handler.ReadLoop(os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading commands: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("\nBatch commands completed. Scheduler continues running. Press Ctrl+C to exit.")
		select {}
	}

	fmt.Println("Goodbye!")
}

// runInteractive drives the REPL with a real readline.Instance, giving
// history/line-editing instead of the batch mode's bare scanner.
func runInteractive(handler *repl.Handler) error {
	rl, err := readline.New("brassline> ")
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return nil
		}
		trimmed := strings.TrimSpace(strings.ToLower(line))
		if trimmed == "quit" || trimmed == "exit" {
			return nil
		}
		if err := handler.ProcessCommand(line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func drainNotifications(bc *scheduler.ChannelBroadcaster, logger *logging.Logger) {
	for n := range bc.C() {
		switch n.Kind {
		case scheduler.NotifyError:
			logger.Error("scheduler error", "message", n.Message)
		case scheduler.NotifyCompilationUpdated:
			if n.CompilationState.Kind == scene.CompError {
				logger.Warn("compile error", "line", n.Line, "frame", n.Frame, "lang", n.CompilationLang, "info", n.CompilationState.Message)
			}
		}
	}
}
