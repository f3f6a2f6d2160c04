package corewasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewasm/corewasm/api"
	"github.com/corewasm/corewasm/internal/wasm"
)

// TestRuntimeAddFunction instantiates a single module exporting a function
// that adds its two i32 parameters, links it, and calls it end to end
// through the public Runtime surface.
func TestRuntimeAddFunction(t *testing.T) {
	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	mod := &wasm.Module{
		Types:           []*wasm.FunctionType{sig},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.Code{{Body: []wasm.Instruction{
			{Op: wasm.OpLocalGet, LocalIndex: 0},
			{Op: wasm.OpLocalGet, LocalIndex: 1},
			{Op: wasm.OpI32Add},
			{Op: wasm.OpEnd},
		}}},
		ExportSection: []*wasm.Export{{Name: "add", Type: wasm.ExternTypeFunc, Index: 0}},
	}

	r := NewRuntime(context.Background(), NewRuntimeConfig())
	m, err := r.InstantiateModule("m", mod)
	require.NoError(t, err)
	require.NoError(t, r.Link())

	fn := m.ExportedFunction("add")
	require.NotNil(t, fn)
	results, err := fn.Call(context.Background(), 19, 23)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

// TestRuntimeHostFunctionImport wires a host module's function as an import
// of a Wasm-defined module and checks the call crosses the boundary.
func TestRuntimeHostFunctionImport(t *testing.T) {
	r := NewRuntime(context.Background(), NewRuntimeConfig())

	_, err := r.NewHostModuleBuilder("env").
		WithFunc("double", []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, func(params []uint64) []uint64 {
			return []uint64{params[0] * 2}
		}).
		Instantiate()
	require.NoError(t, err)

	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	mod := &wasm.Module{
		Types:         []*wasm.FunctionType{sig},
		ImportSection: []*wasm.Import{{Module: "env", Name: "double", Type: wasm.ExternTypeFunc, DescFunc: 0}},
		ExportSection: []*wasm.Export{{Name: "call_double", Type: wasm.ExternTypeFunc, Index: 0}},
	}
	m, err := r.InstantiateModule("caller", mod)
	require.NoError(t, err)
	require.NoError(t, r.Link())

	fn := m.ExportedFunction("call_double")
	require.NotNil(t, fn)
	results, err := fn.Call(context.Background(), 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

// TestRuntimeExportedMemory checks Memory reads/writes and Grow round-trip
// through the api.Memory wrapper.
func TestRuntimeExportedMemory(t *testing.T) {
	mod := &wasm.Module{
		MemorySection: []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		ExportSection: []*wasm.Export{{Name: "memory", Type: wasm.ExternTypeMemory, Index: 0}},
	}

	r := NewRuntime(context.Background(), NewRuntimeConfig())
	m, err := r.InstantiateModule("m", mod)
	require.NoError(t, err)
	require.NoError(t, r.Link())

	mem := m.ExportedMemory("memory")
	require.NotNil(t, mem)

	ok := mem.WriteUint32Le(context.Background(), 8, 0xdeadbeef)
	require.True(t, ok)
	v, ok := mem.ReadUint32Le(context.Background(), 8)
	require.True(t, ok)
	require.Equal(t, uint32(0xdeadbeef), v)

	prev, ok := mem.Grow(context.Background(), 1)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2*65536), mem.Size(context.Background()))
}
