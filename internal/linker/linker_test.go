package linker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewasm/corewasm/internal/diag"
	"github.com/corewasm/corewasm/internal/memory"
	"github.com/corewasm/corewasm/internal/wasm"
)

func i32Type() *wasm.FunctionType {
	return &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
}

// TestDataSegmentApplied is spec.md §8 scenario 4: a data segment lands its
// bytes at the expected offset.
func TestDataSegmentApplied(t *testing.T) {
	reg := wasm.NewRegistry(nil)
	l := New(reg, nil)

	mod := &wasm.Module{
		MemorySection: []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		DataSection: []*wasm.DataSegment{
			{MemoryIndex: 0, Offset: wasm.Instruction{Op: wasm.OpI32Const, I32: 16}, Bytes: []byte{1, 2, 3}},
		},
	}
	mi, err := l.Build("m", mod, memory.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, l.LinkAll())

	b := mi.Memories[0].Bytes()
	require.Equal(t, byte(1), b[16])
	require.Equal(t, byte(2), b[17])
	require.Equal(t, byte(3), b[18])
}

// TestDataSegmentOutOfBoundsFails covers the "partial writes are not
// permitted" invariant: a segment that doesn't fit must fail the link, not
// silently truncate.
func TestDataSegmentOutOfBoundsFails(t *testing.T) {
	reg := wasm.NewRegistry(nil)
	l := New(reg, nil)

	mod := &wasm.Module{
		MemorySection: []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		DataSection: []*wasm.DataSegment{
			{MemoryIndex: 0, Offset: wasm.Instruction{Op: wasm.OpI32Const, I32: 65534}, Bytes: []byte{1, 2, 3}},
		},
	}
	_, err := l.Build("m", mod, memory.DefaultConfig())
	require.NoError(t, err)
	err = l.LinkAll()
	require.Error(t, err)
}

// TestElementSegmentWiring is spec.md §8 scenario 5: module A exports a
// function, module B imports it, defines a table, and an element segment
// wires the import into a table slot; after linking the slot's
// FunctionInstance must be A's concrete function.
func TestElementSegmentWiring(t *testing.T) {
	reg := wasm.NewRegistry(nil)
	l := New(reg, nil)

	sig := i32Type()
	modA := &wasm.Module{
		Types:           []*wasm.FunctionType{sig},
		FunctionSection: []uint32{0},
		CodeSection:     []*wasm.Code{{Body: []wasm.Instruction{{Op: wasm.OpLocalGet, LocalIndex: 0}, {Op: wasm.OpEnd}}}},
		ExportSection:   []*wasm.Export{{Name: "f", Type: wasm.ExternTypeFunc, Index: 0}},
	}
	miA, err := l.Build("A", modA, memory.DefaultConfig())
	require.NoError(t, err)

	modB := &wasm.Module{
		Types:         []*wasm.FunctionType{sig},
		ImportSection: []*wasm.Import{{Module: "A", Name: "f", Type: wasm.ExternTypeFunc, DescFunc: 0}},
		TableSection:  []*wasm.TableType{{Limits: wasm.Limits{Min: 4}}},
		ElementSection: []*wasm.ElementSegment{
			{TableIndex: 0, Offset: wasm.Instruction{Op: wasm.OpI32Const, I32: 2}, FuncIndices: []uint32{0}},
		},
	}
	miB, err := l.Build("B", modB, memory.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, l.LinkAll())

	require.Equal(t, wasm.LinkDefinedOtherModule, miB.ImportedFunctions[0].Kind)
	require.Same(t, miA, miB.ImportedFunctions[0].ResolvedModule)

	slotFn := miB.Tables[0].References[2]
	require.NotNil(t, slotFn)
	require.Same(t, miA.Functions[0], slotFn)
}

// TestGlobalCycleDetected is spec.md §8 scenario 6: a global initialized
// from an imported global that resolves back to itself (via its own
// re-export) must fail to link with KindInitGlobalCycle instead of looping
// forever.
func TestGlobalCycleDetected(t *testing.T) {
	reg := wasm.NewRegistry(nil)
	l := New(reg, nil)

	gType := &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: false}

	// Module "loop" imports its own export "g1" as global 0, defines local
	// global index 1 initialized by global.get 0, and exports index 1 as
	// "g1", forming g1 -> import of g1 -> g1.
	mod := &wasm.Module{
		ImportSection: []*wasm.Import{
			{Module: "loop", Name: "g1", Type: wasm.ExternTypeGlobal, DescGlobal: gType},
		},
		GlobalSection: []*wasm.Global{
			{Type: gType, Init: wasm.Instruction{Op: wasm.OpGlobalGet, GlobalIndex: 0}},
		},
		ExportSection: []*wasm.Export{
			{Name: "g1", Type: wasm.ExternTypeGlobal, Index: 1}, // imports-first index 1 == local global 0
		},
	}
	_, err := l.Build("loop", mod, memory.DefaultConfig())
	require.NoError(t, err)

	err = l.LinkAll()
	require.Error(t, err)
	require.ErrorIs(t, err, diag.New(diag.KindInitGlobalCycle, ""))
}

// TestGlobalGetMutableImportRejected covers the "initializer that references
// a mutable imported global is rejected" edge case.
func TestGlobalGetMutableImportRejected(t *testing.T) {
	reg := wasm.NewRegistry(nil)
	l := New(reg, nil)

	mutGType := &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true}
	modA := &wasm.Module{
		GlobalSection: []*wasm.Global{{Type: mutGType, Init: wasm.Instruction{Op: wasm.OpI32Const, I32: 1}}},
		ExportSection: []*wasm.Export{{Name: "g", Type: wasm.ExternTypeGlobal, Index: 0}},
	}
	_, err := l.Build("A", modA, memory.DefaultConfig())
	require.NoError(t, err)

	modB := &wasm.Module{
		ImportSection: []*wasm.Import{{Module: "A", Name: "g", Type: wasm.ExternTypeGlobal, DescGlobal: mutGType}},
		GlobalSection: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: false}, Init: wasm.Instruction{Op: wasm.OpGlobalGet, GlobalIndex: 0}},
		},
	}
	_, err = l.Build("B", modB, memory.DefaultConfig())
	require.NoError(t, err)

	err = l.LinkAll()
	require.Error(t, err)
}

// TestUnresolvedImportFails covers phase 3: any remaining unresolved import
// is fatal.
func TestUnresolvedImportFails(t *testing.T) {
	reg := wasm.NewRegistry(nil)
	l := New(reg, nil)

	mod := &wasm.Module{
		ImportSection: []*wasm.Import{{Module: "nope", Name: "f", Type: wasm.ExternTypeFunc, DescFunc: 0}},
		Types:         []*wasm.FunctionType{i32Type()},
	}
	_, err := l.Build("m", mod, memory.DefaultConfig())
	require.NoError(t, err)

	err = l.LinkAll()
	require.Error(t, err)
}

// TestImportTypeMismatchFails covers phase 4: a resolved import whose
// concrete provider signature disagrees with the importer's declaration is
// fatal.
func TestImportTypeMismatchFails(t *testing.T) {
	reg := wasm.NewRegistry(nil)
	l := New(reg, nil)

	provided := &wasm.FunctionType{Params: nil, Results: []wasm.ValueType{wasm.ValueTypeI64}}
	modA := &wasm.Module{
		Types:           []*wasm.FunctionType{provided},
		FunctionSection: []uint32{0},
		CodeSection:     []*wasm.Code{{Body: []wasm.Instruction{{Op: wasm.OpI64Const, I64: 1}, {Op: wasm.OpEnd}}}},
		ExportSection:   []*wasm.Export{{Name: "f", Type: wasm.ExternTypeFunc, Index: 0}},
	}
	_, err := l.Build("A", modA, memory.DefaultConfig())
	require.NoError(t, err)

	expected := i32Type()
	modB := &wasm.Module{
		Types:         []*wasm.FunctionType{expected},
		ImportSection: []*wasm.Import{{Module: "A", Name: "f", Type: wasm.ExternTypeFunc, DescFunc: 0}},
	}
	_, err = l.Build("B", modB, memory.DefaultConfig())
	require.NoError(t, err)

	err = l.LinkAll()
	require.Error(t, err)
}
