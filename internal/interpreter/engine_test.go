package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
)

func TestEngineCompileCachesByModuleID(t *testing.T) {
	sig := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := &wasm.Code{Body: []wasm.Instruction{{Op: wasm.OpI32Const, I32: 7}, {Op: wasm.OpEnd}}}
	fn := &wasm.FunctionInstance{Type: sig, Code: code, DebugName: "seven"}
	module := &wasm.ModuleInstance{Name: "m", ID: "m", Functions: []*wasm.FunctionInstance{fn}}
	fn.Module = module

	e := NewEngine()
	require.NoError(t, e.Compile(module, vmir.DefaultCompileOption()))
	require.True(t, e.hasCompiled(module.ID))

	// Recompiling the same ID is a no-op; it must not panic or replace the
	// cached entry with something built from a zero CompileOption.
	require.NoError(t, e.Compile(module, vmir.CompileOption{}))

	results, err := e.Call(fn)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)
}

func TestModulePolicyGenericWithNoMemory(t *testing.T) {
	module := &wasm.ModuleInstance{}
	policy, err := modulePolicy(module)
	require.NoError(t, err)
	require.Equal(t, wasm.PolicyGeneric, policy)
}

func TestModuleFuncTypesOrdersImportsFirst(t *testing.T) {
	i32 := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	f64 := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeF64}}
	module := &wasm.ModuleInstance{
		Types:             []*wasm.FunctionType{i32, f64},
		ImportedFunctions: []*wasm.ImportSlot{{Desc: &wasm.Import{DescFunc: 0}}},
		Functions:         []*wasm.FunctionInstance{{Type: f64}},
	}
	types := moduleFuncTypes(module)
	require.Len(t, types, 2)
	require.Same(t, i32, types[0])
	require.Same(t, f64, types[1])
}
