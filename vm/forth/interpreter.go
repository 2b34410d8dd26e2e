package forth

import (
	"strings"

	"github.com/brassline/core/value"
	"github.com/brassline/core/vm"
)

// Interpreter is the Forth-like vm.Interpreter: a flat token stream
// plus a dictionary of builtin and user-defined (": name ... ;") words,
// a data stack, a return stack holding DO/LOOP and BEGIN loop data, and
// a separate callStack for user-word calls, grounded on
// original_source/core/src/lang/forth/interpreter.rs's ForthInterpreter.
type Interpreter struct {
	tokens     []string
	ip         int
	dictionary map[string]Word
	state      *State
	terminated bool
	callStack  []frame
}

type frame struct {
	tokens []string
	ip     int
}

// New parses source into tokens and starts a fresh Interpreter with the
// default builtin dictionary.
func New(source string) *Interpreter {
	return &Interpreter{
		tokens:     tokenize(source),
		dictionary: builtinWords(),
		state:      NewState(),
	}
}

var _ vm.Interpreter = (*Interpreter)(nil)

func (in *Interpreter) HasTerminated() bool { return in.terminated }

func (in *Interpreter) Stop() { in.terminated = true }

// ExecuteNext advances the token stream until a word emits an event or
// reports a wait, or the script runs out of tokens (and call frames),
// at which point the interpreter terminates.
func (in *Interpreter) ExecuteNext(ctx *vm.Context) (*vm.ConcreteEvent, uint64) {
	if len(in.state.EventBuffer) > 0 {
		ev := in.state.EventBuffer[0]
		in.state.EventBuffer = in.state.EventBuffer[1:]
		wait := in.state.WaitTime
		in.state.WaitTime = 0
		return &ev, wait
	}

	for in.ip < len(in.tokens) {
		token := in.tokens[in.ip]
		in.ip++

		switch strings.ToLower(token) {
		case ":":
			in.handleColonDefinition()
			continue
		case "if":
			in.handleIf()
			continue
		case "else":
			in.handleElse()
			continue
		case "then":
			continue
		case "do":
			in.handleDo()
			continue
		case "loop":
			in.handleLoop()
			continue
		case "begin":
			in.handleBegin()
			continue
		case "until":
			in.handleUntil()
			continue
		case "i":
			in.handleI()
			continue
		}

		if action := in.executeToken(token, ctx); action != nil {
			switch action.Kind {
			case ActionEmit:
				wait := in.state.WaitTime
				in.state.WaitTime = 0
				ev := action.Event
				return &ev, wait
			case ActionWait:
				return nil, action.Wait
			}
		}
	}

	if n := len(in.callStack); n > 0 {
		f := in.callStack[n-1]
		in.callStack = in.callStack[:n-1]
		in.tokens, in.ip = f.tokens, f.ip
		return in.ExecuteNext(ctx)
	}

	in.terminated = true
	return nil, 0
}

func (in *Interpreter) executeToken(token string, ctx *vm.Context) *Action {
	if n, ok := tryParseNumber(token); ok {
		in.state.Push(n)
		return nil
	}

	w, ok := in.dictionary[token]
	if !ok {
		ctx.Log.Debug("forth: unknown word ignored", "token", token)
		return nil
	}

	if w.IsBuiltin {
		return w.Builtin(in.state)
	}

	in.callStack = append(in.callStack, frame{tokens: in.tokens, ip: in.ip})
	in.tokens = w.Body
	in.ip = 0
	return nil
}

func (in *Interpreter) handleColonDefinition() {
	if in.ip >= len(in.tokens) {
		return
	}
	name := in.tokens[in.ip]
	in.ip++

	var body []string
	for in.ip < len(in.tokens) {
		tok := in.tokens[in.ip]
		in.ip++
		if tok == ";" {
			break
		}
		body = append(body, tok)
	}
	in.dictionary[name] = Word{Body: body}
}

func (in *Interpreter) handleIf() {
	cond := in.state.Pop()
	if cond != 0 {
		return
	}
	depth := 1
	for in.ip < len(in.tokens) {
		tok := strings.ToLower(in.tokens[in.ip])
		in.ip++
		switch tok {
		case "if":
			depth++
		case "then":
			depth--
			if depth == 0 {
				return
			}
		case "else":
			if depth == 1 {
				return
			}
		}
	}
}

func (in *Interpreter) handleElse() {
	depth := 1
	for in.ip < len(in.tokens) {
		tok := strings.ToLower(in.tokens[in.ip])
		in.ip++
		switch tok {
		case "if":
			depth++
		case "then":
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (in *Interpreter) handleDo() {
	start := int(in.state.Pop())
	limit := int(in.state.Pop())
	in.state.Return = append(in.state.Return, in.ip, start, limit)
}

func (in *Interpreter) handleLoop() {
	n := len(in.state.Return)
	if n < 3 {
		return
	}
	limit := in.state.Return[n-1]
	current := in.state.Return[n-2]
	returnAddr := in.state.Return[n-3]
	in.state.Return = in.state.Return[:n-3]

	next := current + 1
	if next < limit {
		in.state.Return = append(in.state.Return, returnAddr, next, limit)
		in.ip = returnAddr
	}
}

func (in *Interpreter) handleBegin() {
	in.state.Return = append(in.state.Return, in.ip)
}

func (in *Interpreter) handleUntil() {
	cond := in.state.Pop()
	n := len(in.state.Return)
	if n == 0 {
		return
	}
	addr := in.state.Return[n-1]
	if cond == 0 {
		in.ip = addr
		return
	}
	in.state.Return = in.state.Return[:n-1]
}

func (in *Interpreter) handleI() {
	if n := len(in.state.Return); n >= 2 {
		in.state.Push(Value(in.state.Return[n-2]))
	}
}

// Factory adapts New to vm.InterpreterFactory so the "forth" compiler
// plugin can hand its compiled source straight to the Scheduler.
type Factory struct{}

func (Factory) Name() string { return "forth" }

func (Factory) MakeInterpreter(source string, _ vm.Program, _ value.Scopes) (vm.Interpreter, error) {
	return New(source), nil
}
