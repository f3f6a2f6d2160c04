// Package interpreter implements the threaded-dispatch execution core (C4):
// translating each module's functions once via internal/vmir and then
// walking the resulting code streams to execute calls. Grounded on
// internal/engine/interpreter/interpreter.go's engine/moduleEngine/callEngine
// split.
package interpreter

import (
	"fmt"
	"sync"

	"github.com/corewasm/corewasm/internal/memory"
	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
)

// Engine is the process-wide compiled-code cache. One Engine may serve many
// ModuleInstances, keyed by wasm.ModuleID. The registry assigns a fresh ID
// to every registered instance, so instantiating the same source Module
// twice translates it twice; only repeated Compile calls for one instance
// hit the cache.
type Engine struct {
	mu    sync.Mutex
	codes map[wasm.ModuleID][]*vmir.CompiledFunction
}

func NewEngine() *Engine {
	return &Engine{codes: make(map[wasm.ModuleID][]*vmir.CompiledFunction)}
}

// Compile translates every locally-defined function of m, storing the
// result under m.ID. Calling Compile twice for the same ID is a cache hit
// and returns nil immediately.
func (e *Engine) Compile(m *wasm.ModuleInstance, opt vmir.CompileOption) error {
	if e.hasCompiled(m.ID) {
		return nil
	}

	funcTypes := moduleFuncTypes(m)
	policy, err := modulePolicy(m)
	if err != nil {
		return err
	}

	compiled := make([]*vmir.CompiledFunction, len(m.Functions))
	for i, fn := range m.Functions {
		if fn.Code == nil {
			continue // host function: nothing to translate
		}
		cf, err := vmir.Translate(fn.Code, fn.Type, m.Types, funcTypes, policy, opt)
		if err != nil {
			return fmt.Errorf("function[%d/%d] %s: %w", i, len(m.Functions)-1, fn.DebugName, err)
		}
		compiled[i] = cf
	}

	e.mu.Lock()
	e.codes[m.ID] = compiled
	e.mu.Unlock()
	return nil
}

func (e *Engine) hasCompiled(id wasm.ModuleID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.codes[id]
	return ok
}

// compiledFunc looks up the translated body for the function at localIndex
// (an index into m.Functions, i.e. the index space with imports already
// subtracted — the same indexing FunctionInstance.Index - len(ImportedFunctions)
// would produce).
func (e *Engine) compiledFunc(id wasm.ModuleID, localIndex uint32) *vmir.CompiledFunction {
	e.mu.Lock()
	defer e.mu.Unlock()
	fs := e.codes[id]
	if int(localIndex) >= len(fs) {
		return nil
	}
	return fs[localIndex]
}

// moduleFuncTypes builds the imports-first function-index-space signature
// table the translator needs to size Call/CallIndirect's stack effect.
func moduleFuncTypes(m *wasm.ModuleInstance) []*wasm.FunctionType {
	out := make([]*wasm.FunctionType, 0, len(m.ImportedFunctions)+len(m.Functions))
	for _, slot := range m.ImportedFunctions {
		if slot.Desc != nil && int(slot.Desc.DescFunc) < len(m.Types) {
			out = append(out, m.Types[slot.Desc.DescFunc])
		} else {
			out = append(out, nil)
		}
	}
	for _, fn := range m.Functions {
		out = append(out, fn.Type)
	}
	return out
}

// modulePolicy resolves the single bounds-check policy Wasm 1.0's
// at-most-one-memory restriction lets a module compile against.
func modulePolicy(m *wasm.ModuleInstance) (wasm.BoundsCheckPolicy, error) {
	switch {
	case len(m.Memories) > 0:
		return memory.SelectForCompile(m.Memories[0], false), nil
	case len(m.ImportedMemories) > 0:
		return memory.SelectForCompile(nil, true), nil
	default:
		return wasm.PolicyGeneric, nil
	}
}
