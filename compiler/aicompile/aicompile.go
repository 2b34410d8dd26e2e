// Package aicompile registers a language named "ai" with the compiler
// registry: it asks Claude to translate an informal natural-language
// line into a small textual instruction list, then hands that text to
// compiler/asm for assembly. Grounded on ai/ai.go's Client (API key
// handling, system-prompt-plus-user-message request shape, response
// text extraction) adapted from a step-sequencer command assistant
// into a bytecode-emitting one.
package aicompile

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/brassline/core/compiler"
	"github.com/brassline/core/compiler/asm"
	"github.com/brassline/core/vm"
)

const systemPrompt = `You are a bytecode assistant for Brassline, a live-coding music performance engine. Your job is to translate an informal, natural-language line into the engine's textual assembly language.

Output ONLY assembly instructions, one per line, no explanations, no markdown fences.

The assembly language understands two kinds of lines:

1. "effect <event_kind> field=value ...", e.g.:
   effect midi_note note=c:60 vel=c:100 chan=c:0 dur=c:0.5 device=c:1 wait=c:0.5
   event kinds: midi_note, midi_control, midi_program, midi_aftertouch,
   midi_channel_pressure, midi_sysex, dirt, osc, sound, voice_sound, voice_setting.
   fields use "c:<literal>" for a constant number/string/bool.

2. A plain Euclidean-rhythm shorthand: "<K> beats over <N> steps[, rotate <R>]",
   e.g. "4 beats over 8 steps" or "3 beats over 8 steps, rotate 2".

Pick whichever form best matches the request. Use device=c:1 unless told otherwise.
Respond with assembly only.`

// Compiler implements compiler.Compiler by round-tripping source
// through Claude into compiler/asm's textual format.
type Compiler struct {
	client anthropic.Client
	asm    *asm.Compiler
}

// New builds an aicompile.Compiler using the given Claude API key.
func New(apiKey string) (*Compiler, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	return &Compiler{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		asm:    asm.New(),
	}, nil
}

// NewFromEnv builds an aicompile.Compiler using the ANTHROPIC_API_KEY
// environment variable, mirroring ai.NewFromEnv.
func NewFromEnv() (*Compiler, error) {
	return New(os.Getenv("ANTHROPIC_API_KEY"))
}

func (c *Compiler) Name() string { return "ai" }

// Compile sends source to Claude as a natural-language request, asks
// for an assembly translation, and assembles the response with
// compiler/asm. args is forwarded unchanged to the asm compiler so
// Euclidean defaults (note/vel/chan/device) still apply.
func (c *Compiler) Compile(source string, args map[string]string) (vm.Program, *compiler.CompilationError) {
	assembly, err := c.translate(source)
	if err != nil {
		return nil, &compiler.CompilationError{Lang: "ai", Info: err.Error()}
	}
	prog, cerr := c.asm.Compile(assembly, args)
	if cerr != nil {
		cerr.Lang = "ai"
		cerr.Info = fmt.Sprintf("generated assembly failed to compile: %s (assembly: %q)", cerr.Info, assembly)
		return nil, cerr
	}
	return prog, nil
}

func (c *Compiler) translate(source string) (string, error) {
	ctx := context.Background()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(source)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text string
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		}
	}
	return cleanResponse(text)
}

// cleanResponse strips an optional markdown code fence from the
// model's reply and rejects an empty translation.
func cleanResponse(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}
