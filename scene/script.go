package scene

import (
	"sync"

	"github.com/brassline/core/vm"
)

// CompilationKind tags which variant a CompilationState holds,
// grounded on spec.md §3 "Script compilation state".
type CompilationKind int

const (
	CompNotCompiled CompilationKind = iota
	CompCompiling
	CompCompiled
	CompError
)

// CompilationState is the sum variant NotCompiled | Compiling |
// Compiled(program) | Error(lang, message, from, to).
type CompilationState struct {
	Kind CompilationKind

	Program vm.Program

	Lang    string
	Message string
	From    int
	To      int
}

func NotCompiled() CompilationState { return CompilationState{Kind: CompNotCompiled} }
func Compiling() CompilationState   { return CompilationState{Kind: CompCompiling} }
func Compiled(p vm.Program) CompilationState {
	return CompilationState{Kind: CompCompiled, Program: p}
}
func CompileError(lang, message string, from, to int) CompilationState {
	return CompilationState{Kind: CompError, Lang: lang, Message: message, From: from, To: to}
}

// Script is a Frame's source text, its compiler language tag, and its
// current compilation state. Compilation happens off the Scheduler
// thread (see compiler package); the Scheduler only ever reads State
// and swaps it in when a CompilationUpdate message arrives.
type Script struct {
	mu sync.RWMutex

	ID       uint64
	Source   string
	Language string
	State    CompilationState

	// lastGood retains the most recent successfully compiled Program so
	// a subsequent compile error doesn't stop the Frame from triggering,
	// per spec.md §7: "the affected frame keeps its previous compiled
	// program (if any) and does not trigger" only applies to a Frame
	// with no program at all.
	lastGood vm.Program
}

var nextScriptID uint64
var scriptIDMu sync.Mutex

func allocScriptID() uint64 {
	scriptIDMu.Lock()
	defer scriptIDMu.Unlock()
	nextScriptID++
	return nextScriptID
}

// NewScript creates a Script in the NotCompiled state. Compilation must
// be kicked off explicitly (the constructor never blocks on a compiler
// worker).
func NewScript(source, language string) *Script {
	return &Script{ID: allocScriptID(), Source: source, Language: language, State: NotCompiled()}
}

func (s *Script) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Source
}

// SetSource replaces the source text and resets the state to
// NotCompiled. The last successfully compiled program is kept:
// CompiledProgram returns it until a compile of the new source succeeds.
func (s *Script) SetSource(source, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Source = source
	s.Language = language
	s.State = NotCompiled()
}

func (s *Script) SetState(state CompilationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	if state.Kind == CompCompiled {
		s.lastGood = state.Program
	}
}

// CompiledProgram returns the last successfully compiled Program, and
// whether one exists — per spec.md §7, a Frame whose latest compile
// attempt errored keeps running its previous compiled program.
func (s *Script) CompiledProgram() (vm.Program, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGood, s.lastGood != nil
}

func (s *Script) CurrentState() CompilationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}
