package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
)

// A local.tee sequence must produce identical stack results whether or not
// the stack-top ring cache is enabled for the value's type: the cache is
// runtime bookkeeping threaded through a ringCursor, never the source of
// truth for a local's value (see internal/vmir.CompileOption).
func runTeeSequence(t *testing.T, opt vmir.CompileOption) []uint64 {
	t.Helper()

	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := &wasm.Code{
		LocalTypes: []wasm.ValueType{wasm.ValueTypeI32}, // locals[1]: scratch
		Body: []wasm.Instruction{
			{Op: wasm.OpI32Const, I32: 41},
			{Op: wasm.OpLocalTee, LocalIndex: 0}, // locals[0]=41, stack: [41]
			{Op: wasm.OpDrop},
			{Op: wasm.OpI32Const, I32: 1},
			{Op: wasm.OpLocalGet, LocalIndex: 0},
			{Op: wasm.OpI32Add},                  // stack: [42]
			{Op: wasm.OpLocalTee, LocalIndex: 1}, // locals[1]=42, stack: [42]
			{Op: wasm.OpDrop},
			{Op: wasm.OpLocalGet, LocalIndex: 1}, // stack: [42]
			{Op: wasm.OpEnd},
		},
	}

	cf, err := vmir.Translate(code, sig, nil, nil, wasm.PolicyGeneric, opt)
	require.NoError(t, err)

	module := &wasm.ModuleInstance{Name: "m", ID: "m"}
	fn := &wasm.FunctionInstance{Type: sig, Module: module, Index: 0, Code: code}
	module.Functions = []*wasm.FunctionInstance{fn}

	e := NewEngine()
	e.codes = map[wasm.ModuleID][]*vmir.CompiledFunction{module.ID: {cf}}

	results, err := e.Call(fn, 0)
	require.NoError(t, err)
	return results
}

func TestLocalTeeCachedAndUncachedAreEquivalent(t *testing.T) {
	uncached := runTeeSequence(t, vmir.DefaultCompileOption())
	cached := runTeeSequence(t, vmir.CompileOption{
		GrowStrict:       true,
		I32StackTopBegin: 0,
		I32StackTopEnd:   4,
	})
	require.Equal(t, []uint64{42}, uncached)
	require.Equal(t, uncached, cached)
}
