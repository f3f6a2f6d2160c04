package linker

import (
	"github.com/corewasm/corewasm/internal/diag"
	"github.com/corewasm/corewasm/internal/memory"
	"github.com/corewasm/corewasm/internal/wasm"
)

// applySegments is phases 6-7 for one module: re-evaluate every active
// segment's offset (now that imported globals are resolvable) and apply it.
// Element segments are applied before data segments only because spec.md
// §4.6 lists them in that order within phase 7; the two segment kinds
// never interact.
func (l *Linker) applySegments(mi *wasm.ModuleInstance) error {
	for i, seg := range mi.ElementSegments {
		if err := l.applyElementSegment(mi, i, seg); err != nil {
			return err
		}
	}
	for i, seg := range mi.DataSegments {
		if err := l.applyDataSegment(mi, i, seg); err != nil {
			return err
		}
	}
	return nil
}

func (l *Linker) applyElementSegment(mi *wasm.ModuleInstance, segIdx int, seg *wasm.ElementSegment) error {
	offVal, offType, err := l.evalConstExpr(mi, seg.Offset)
	if err != nil {
		return err
	}
	if offType != wasm.ValueTypeI32 {
		return diag.New(diag.KindInitInvalidConstExpr, "module %s: element segment %d offset must be i32, got %s", mi.Name, segIdx, wasm.ValueTypeName(offType))
	}
	offset := uint32(offVal)

	table := mi.ResolveTable(seg.TableIndex)
	if table == nil {
		return diag.New(diag.KindInitSegmentOutOfBounds, "module %s: element segment %d references unknown table %d", mi.Name, segIdx, seg.TableIndex)
	}
	count := uint32(len(seg.FuncIndices))
	size := table.Size()
	if offset > size || size-offset < count {
		return diag.New(diag.KindInitSegmentOutOfBounds,
			"module %s: element segment %d: offset %d + count %d exceeds table size %d", mi.Name, segIdx, offset, count, size)
	}

	// Scratch-resolve every target before writing any slot, so a single
	// unresolved funcidx leaves the table untouched (spec.md §4.6 "partial
	// writes are not permitted"; original_source/'s init.h documents the
	// same check-then-write granularity).
	refs := make([]*wasm.FunctionInstance, count)
	for i, fidx := range seg.FuncIndices {
		fn := mi.ResolveFunction(fidx)
		if fn == nil {
			return diag.New(diag.KindLinkUnresolved, "module %s: element segment %d references unresolved function index %d", mi.Name, segIdx, fidx)
		}
		refs[i] = fn
	}
	for i, fn := range refs {
		table.References[offset+uint32(i)] = fn
	}
	return nil
}

func (l *Linker) applyDataSegment(mi *wasm.ModuleInstance, segIdx int, seg *wasm.DataSegment) error {
	offVal, offType, err := l.evalConstExpr(mi, seg.Offset)
	if err != nil {
		return err
	}
	if offType != wasm.ValueTypeI32 {
		return diag.New(diag.KindInitInvalidConstExpr, "module %s: data segment %d offset must be i32, got %s", mi.Name, segIdx, wasm.ValueTypeName(offType))
	}
	offset := uint32(offVal)

	mem := mi.ResolveMemory()
	if mem == nil {
		return diag.New(diag.KindInitSegmentOutOfBounds, "module %s: data segment %d references unknown memory %d", mi.Name, segIdx, seg.MemoryIndex)
	}
	length := uint32(len(seg.Bytes))
	memLen := mem.PageCount() * memory.PageSize
	if offset > memLen || memLen-offset < length {
		return diag.New(diag.KindInitSegmentOutOfBounds,
			"module %s: data segment %d: offset %d + length %d exceeds memory length %d", mi.Name, segIdx, offset, length, memLen)
	}

	copy(mem.Bytes()[offset:], seg.Bytes)
	return nil
}
