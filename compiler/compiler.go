// Package compiler defines the plugin contract every source language
// implements, plus the Registry (the Go analogue of the original's
// Transcoder) that dispatches compilation by language name, grounded
// on original_source/core/src/lang/transcoder.rs and .../compiler.rs.
package compiler

import (
	"fmt"
	"sync"

	"github.com/brassline/core/vm"
)

// CompilationError mirrors spec.md §6's CompilationError{lang, info,
// from, to}: From/To are byte offsets into the source the error spans,
// for client-side highlighting.
type CompilationError struct {
	Lang string
	Info string
	From int
	To   int
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Lang, e.Info)
}

// Compiler is the plugin contract: name() + compile(source, args).
// args carries compiler-specific options (e.g. the asm compiler's
// note/vel/chan/device defaults for its Euclidean form) as free-form strings,
// matching the original's BTreeMap<String,String> args parameter.
type Compiler interface {
	Name() string
	Compile(source string, args map[string]string) (vm.Program, *CompilationError)
}

// Registry is a thread-safe name->Compiler directory, the Go analogue
// of Transcoder.compilers.
type Registry struct {
	mu        sync.RWMutex
	compilers map[string]Compiler
}

func NewRegistry() *Registry {
	return &Registry{compilers: make(map[string]Compiler)}
}

func (r *Registry) Add(c Compiler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compilers[c.Name()] = c
}

func (r *Registry) Remove(lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.compilers, lang)
}

func (r *Registry) Has(lang string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.compilers[lang]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.compilers))
	for n := range r.compilers {
		names = append(names, n)
	}
	return names
}

// Compile resolves lang and compiles source. A missing compiler is
// reported as a CompilationError rather than a Go error — the caller
// (the Scheduler's compile-on-trigger/compile-on-upload paths) always
// wants a CompilationState, never a panic-worthy condition.
func (r *Registry) Compile(source, lang string, args map[string]string) (vm.Program, *CompilationError) {
	r.mu.RLock()
	c, ok := r.compilers[lang]
	r.mu.RUnlock()
	if !ok {
		return nil, &CompilationError{Lang: lang, Info: fmt.Sprintf("no compiler registered for language %q", lang)}
	}
	return c.Compile(source, args)
}
