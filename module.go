package corewasm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/corewasm/corewasm/api"
	"github.com/corewasm/corewasm/internal/wasm"
	"github.com/corewasm/corewasm/internal/wasmdebug"
)

// moduleHandle is the api.Module implementation returned by
// Runtime.InstantiateModule and Runtime.Module. It is a thin view over a
// *wasm.ModuleInstance owned by the Runtime's registry; closing it only
// removes the registry entry; it does not invalidate in-flight calls
// already holding a reference to the underlying ModuleInstance.
type moduleHandle struct {
	r  *Runtime
	mi *wasm.ModuleInstance
}

func (m *moduleHandle) String() string { return "module[" + m.mi.Name + "]" }

func (m *moduleHandle) Name() string { return m.mi.Name }

func (m *moduleHandle) Memory() api.Memory {
	lm, mt := m.resolveMemoryWithType()
	if lm == nil {
		return nil
	}
	return &memoryHandle{lm: lm, limitPages: limitPagesOf(mt)}
}

// resolveMemoryWithType pairs ResolveMemory's storage with the MemoryType
// declaring its limits; LinearMemory itself carries no Limits, and
// memoryHandle.Grow needs the max page count to bounds-check against.
func (m *moduleHandle) resolveMemoryWithType() (wasm.LinearMemory, *wasm.MemoryType) {
	if len(m.mi.Memories) > 0 {
		return m.mi.Memories[0], m.mi.Source.MemorySection[0]
	}
	if len(m.mi.ImportedMemories) > 0 {
		slot := m.mi.ImportedMemories[0]
		return m.mi.ResolveMemory(), slot.Desc.DescMemory
	}
	return nil, nil
}

func limitPagesOf(mt *wasm.MemoryType) uint32 {
	if mt == nil || mt.Limits.Max == nil {
		return wasm.MaxMemoryPages
	}
	return *mt.Limits.Max
}

func (m *moduleHandle) ExportedFunction(name string) api.Function {
	exp, ok := m.mi.Exports[name]
	if !ok || exp.Type != wasm.ExternTypeFunc {
		return nil
	}
	fn := m.mi.ResolveFunction(exp.Index)
	if fn == nil {
		return nil
	}
	return &functionHandle{r: m.r, owner: m.mi, rawIndex: exp.Index, exportName: name, fn: fn}
}

func (m *moduleHandle) ExportedMemory(name string) api.Memory {
	exp, ok := m.mi.Exports[name]
	if !ok || exp.Type != wasm.ExternTypeMemory {
		return nil
	}
	// Wasm 1.0 allows at most one memory per module; the export always
	// names index 0 of the imports-first memory space.
	lm, mt := m.resolveMemoryWithType()
	if lm == nil {
		return nil
	}
	return &memoryHandle{lm: lm, limitPages: limitPagesOf(mt)}
}

func (m *moduleHandle) ExportedGlobal(name string) api.Global {
	exp, ok := m.mi.Exports[name]
	if !ok || exp.Type != wasm.ExternTypeGlobal {
		return nil
	}
	g := m.mi.ResolveGlobal(exp.Index)
	if g == nil {
		return nil
	}
	return newGlobalHandle(g)
}

func (m *moduleHandle) CloseWithExitCode(ctx context.Context, exitCode uint32) error {
	m.r.registry.Close(m.mi.Name)
	return nil
}

func (m *moduleHandle) Close(ctx context.Context) error {
	return m.CloseWithExitCode(ctx, 0)
}

// functionHandle is the api.Function/api.FunctionDefinition implementation
// for one exported function.
type functionHandle struct {
	r          *Runtime
	owner      *wasm.ModuleInstance
	rawIndex   uint32 // exp.Index: owner's own imports-first function index space
	exportName string
	fn         *wasm.FunctionInstance // resolved concrete function, for Call
}

func (f *functionHandle) Definition() api.FunctionDefinition { return f }

func (f *functionHandle) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if !f.r.linked {
		return nil, fmt.Errorf("corewasm: Call(%s) before Link", f.exportName)
	}
	return f.r.engine.Call(f.fn, params...)
}

func (f *functionHandle) ModuleName() string { return f.owner.Name }

func (f *functionHandle) Index() uint32 { return f.rawIndex }

func (f *functionHandle) Name() string { return f.fn.DebugName }

func (f *functionHandle) DebugName() string {
	return wasmdebug.FuncName(f.owner.Name, f.fn.DebugName, f.rawIndex)
}

func (f *functionHandle) Import() (moduleName, name string, isImport bool) {
	if int(f.rawIndex) < len(f.owner.ImportedFunctions) {
		slot := f.owner.ImportedFunctions[f.rawIndex]
		return slot.TargetModule, slot.TargetName, true
	}
	return "", "", false
}

func (f *functionHandle) ExportNames() []string {
	var names []string
	for name, exp := range f.owner.Exports {
		if exp.Type == wasm.ExternTypeFunc && exp.Index == f.rawIndex {
			names = append(names, name)
		}
	}
	return names
}

func (f *functionHandle) GoFunc() *reflect.Value {
	if f.fn.HostFunc == nil {
		return nil
	}
	v := reflect.ValueOf(f.fn.HostFunc)
	return &v
}

func (f *functionHandle) ParamTypes() []api.ValueType { return f.fn.Type.Params }

func (f *functionHandle) ParamNames() []string { return nil }

func (f *functionHandle) ResultTypes() []api.ValueType { return f.fn.Type.Results }

// globalHandle implements api.Global for an immutable global. newGlobalHandle
// only wraps it in mutableGlobalHandle (which also implements
// api.MutableGlobal) when the global's type says it can vary, so a caller's
// type-assertion to api.MutableGlobal faithfully reflects Wasm mutability.
type globalHandle struct {
	g *wasm.GlobalInstance
}

func newGlobalHandle(g *wasm.GlobalInstance) api.Global {
	h := &globalHandle{g: g}
	if g.Type.Mutable {
		return &mutableGlobalHandle{globalHandle: h}
	}
	return h
}

func (g *globalHandle) String() string {
	return fmt.Sprintf("global(%s)", api.ValueTypeName(g.g.Type.ValType))
}

func (g *globalHandle) Type() api.ValueType { return g.g.Type.ValType }

func (g *globalHandle) Get(ctx context.Context) uint64 { return g.g.Get() }

type mutableGlobalHandle struct {
	*globalHandle
}

func (g *mutableGlobalHandle) Set(ctx context.Context, v uint64) { g.g.Set(v) }

// memoryHandle implements api.Memory over a wasm.LinearMemory. limitPages is
// the declaring MemoryType's maximum, needed because LinearMemory's
// GrowStrictly/GrowSilently take the limit as an explicit argument rather
// than carrying it themselves.
type memoryHandle struct {
	lm         wasm.LinearMemory
	limitPages uint32
}

func (m *memoryHandle) Size(ctx context.Context) uint32 { return m.lm.PageCount() * pageSizeBytes }

func (m *memoryHandle) Grow(ctx context.Context, deltaPages uint32) (uint32, bool) {
	prev, ok := m.lm.GrowStrictly(deltaPages, m.limitPages)
	if !ok {
		return m.lm.PageCount(), false
	}
	return prev, true
}

func (m *memoryHandle) ReadByte(ctx context.Context, offset uint32) (byte, bool) {
	return m.lm.ReadByte(uint64(offset))
}

func (m *memoryHandle) ReadUint16Le(ctx context.Context, offset uint32) (uint16, bool) {
	return m.lm.ReadUint16LE(uint64(offset))
}

func (m *memoryHandle) ReadUint32Le(ctx context.Context, offset uint32) (uint32, bool) {
	return m.lm.ReadUint32LE(uint64(offset))
}

func (m *memoryHandle) ReadUint64Le(ctx context.Context, offset uint32) (uint64, bool) {
	return m.lm.ReadUint64LE(uint64(offset))
}

func (m *memoryHandle) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	v, ok := m.lm.ReadUint32LE(uint64(offset))
	return api.DecodeF32(uint64(v)), ok
}

func (m *memoryHandle) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	v, ok := m.lm.ReadUint64LE(uint64(offset))
	return api.DecodeF64(v), ok
}

// Read returns a live view into the backing buffer, matching api.Memory's
// write-through contract; out-of-range slices the whole of the requested
// window fails rather than silently truncating.
func (m *memoryHandle) Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool) {
	b := m.lm.Bytes()
	start := uint64(offset)
	end := start + uint64(byteCount)
	if end > uint64(len(b)) {
		return nil, false
	}
	return b[start:end], true
}

func (m *memoryHandle) WriteByte(ctx context.Context, offset uint32, v byte) bool {
	return m.lm.WriteByte(uint64(offset), v)
}

func (m *memoryHandle) WriteUint16Le(ctx context.Context, offset uint32, v uint16) bool {
	return m.lm.WriteUint16LE(uint64(offset), v)
}

func (m *memoryHandle) WriteUint32Le(ctx context.Context, offset, v uint32) bool {
	return m.lm.WriteUint32LE(uint64(offset), v)
}

func (m *memoryHandle) WriteUint64Le(ctx context.Context, offset uint32, v uint64) bool {
	return m.lm.WriteUint64LE(uint64(offset), v)
}

func (m *memoryHandle) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.lm.WriteUint32LE(uint64(offset), uint32(api.EncodeF32(v)))
}

func (m *memoryHandle) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.lm.WriteUint64LE(uint64(offset), api.EncodeF64(v))
}

func (m *memoryHandle) Write(ctx context.Context, offset uint32, v []byte) bool {
	b := m.lm.Bytes()
	start := uint64(offset)
	end := start + uint64(len(v))
	if end > uint64(len(b)) {
		return false
	}
	copy(b[start:end], v)
	return true
}

const pageSizeBytes = 65536
