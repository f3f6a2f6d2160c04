package wasm

// LinkKind classifies what an import slot resolved to. Only LinkUnresolved is fatal if still set at the
// end of the linker's resolve phase.
type LinkKind byte

const (
	LinkUnresolved LinkKind = iota
	LinkImportedOtherModule
	LinkDefinedOtherModule
	LinkLocalHostRef
	LinkDLRef
	LinkWeakSymbolRef
)

func (k LinkKind) String() string {
	switch k {
	case LinkUnresolved:
		return "unresolved"
	case LinkImportedOtherModule:
		return "imported_other_module"
	case LinkDefinedOtherModule:
		return "defined_other_module"
	case LinkLocalHostRef:
		return "local_host_ref"
	case LinkDLRef:
		return "dl_ref"
	case LinkWeakSymbolRef:
		return "weak_symbol_ref"
	}
	return "unknown"
}

// ImportSlot is one import's parsed descriptor plus its resolution link.
// Pointer-stable for the registry's lifetime; never
// reallocated after Link() completes.
type ImportSlot struct {
	Desc *Import
	Kind LinkKind

	// TargetModule is the module name to resolve (desc.Module); kept
	// separately from Desc so diagnostics survive even if Desc is nil in
	// synthetic tests.
	TargetModule string
	TargetName   string

	// Resolved* are set once Kind != LinkUnresolved and Kind is one of the
	// "other module" kinds. ResolvedModule is a non-owning reference into
	// the registry; ResolvedIndex indexes into ResolvedModule's imported or
	// locally-defined vector of the same kind, selected by Kind.
	ResolvedModule *ModuleInstance
	ResolvedIndex  uint32

	// HostFunc services LinkLocalHostRef for ExternTypeFunc slots.
	HostFunc func(args []uint64) (results []uint64)
	HostType *FunctionType
}

// ModuleID is a stable per-instantiation identifier; used as the interpreter's
// compiled-code cache key (mirrors the teacher's
// `engine.codes map[wasm.ModuleID][]*code`, internal/engine/interpreter/interpreter.go).
type ModuleID string

// ModuleInstance is the per-loaded-module runtime record.
// Every module record is exclusively owned by the Registry that created it;
// cross-module ImportSlot links are non-owning references that must remain
// valid for the registry's lifetime.
type ModuleInstance struct {
	Name string
	ID   ModuleID

	Types []*FunctionType

	ImportedFunctions []*ImportSlot
	ImportedTables    []*ImportSlot
	ImportedMemories  []*ImportSlot
	ImportedGlobals   []*ImportSlot

	Functions []*FunctionInstance
	Tables    []*TableInstance
	Memories  []LinearMemory
	Globals   []*GlobalInstance

	ElementSegments []*ElementSegment
	DataSegments    []*DataSegment

	Exports map[string]*Export

	StartFuncIndex *uint32

	// Source is the AST this record was built from; kept so the linker can
	// re-evaluate const expressions (segment offsets) in phase 6.
	Source *Module
}

// FunctionCount returns the size of the imports-first function index space.
func (m *ModuleInstance) FunctionCount() int {
	return len(m.ImportedFunctions) + len(m.Functions)
}

// LocalFunctionByIndex resolves a function index (imports-first space) to
// the locally-defined *FunctionInstance, or nil if idx names an import slot
// or is out of range. It follows no import links; ResolveFunction does.
func (m *ModuleInstance) LocalFunctionByIndex(idx uint32) *FunctionInstance {
	n := uint32(len(m.ImportedFunctions))
	if idx < n {
		return nil
	}
	i := idx - n
	if int(i) >= len(m.Functions) {
		return nil
	}
	return m.Functions[i]
}

// LocalGlobalByIndex resolves a global index in the imports-first space to the
// locally-defined GlobalInstance, or nil if idx names an import slot.
func (m *ModuleInstance) LocalGlobalByIndex(idx uint32) *GlobalInstance {
	n := uint32(len(m.ImportedGlobals))
	if idx < n {
		return nil
	}
	i := idx - n
	if int(i) >= len(m.Globals) {
		return nil
	}
	return m.Globals[i]
}

func (m *ModuleInstance) LocalTableByIndex(idx uint32) *TableInstance {
	n := uint32(len(m.ImportedTables))
	if idx < n {
		return nil
	}
	i := idx - n
	if int(i) >= len(m.Tables) {
		return nil
	}
	return m.Tables[i]
}

func (m *ModuleInstance) LocalMemoryByIndex(idx uint32) LinearMemory {
	n := uint32(len(m.ImportedMemories))
	if idx < n {
		return nil
	}
	i := idx - n
	if int(i) >= len(m.Memories) {
		return nil
	}
	return m.Memories[i]
}

// ResolveFunction follows idx (imports-first function index space) to its
// concrete definition, walking one import link per hop until it lands on a
// LinkDefinedOtherModule slot. Returns nil if idx names an unresolved or
// out-of-range slot, or a LinkLocalHostRef/LinkDLRef/LinkWeakSymbolRef
// slot, which carries no FunctionInstance.
func (m *ModuleInstance) ResolveFunction(idx uint32) *FunctionInstance {
	n := uint32(len(m.ImportedFunctions))
	if idx >= n {
		return m.LocalFunctionByIndex(idx)
	}
	return resolveFunctionSlot(m.ImportedFunctions[idx])
}

func resolveFunctionSlot(slot *ImportSlot) *FunctionInstance {
	switch slot.Kind {
	case LinkDefinedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Functions) {
			return nil
		}
		return slot.ResolvedModule.Functions[slot.ResolvedIndex]
	case LinkImportedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.ImportedFunctions) {
			return nil
		}
		return resolveFunctionSlot(slot.ResolvedModule.ImportedFunctions[slot.ResolvedIndex])
	default:
		return nil
	}
}

// ResolveGlobal follows idx (imports-first global index space) to its
// concrete storage, the same way ResolveFunction does for functions.
func (m *ModuleInstance) ResolveGlobal(idx uint32) *GlobalInstance {
	n := uint32(len(m.ImportedGlobals))
	if idx >= n {
		return m.LocalGlobalByIndex(idx)
	}
	return resolveGlobalSlot(m.ImportedGlobals[idx])
}

func resolveGlobalSlot(slot *ImportSlot) *GlobalInstance {
	switch slot.Kind {
	case LinkDefinedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Globals) {
			return nil
		}
		return slot.ResolvedModule.Globals[slot.ResolvedIndex]
	case LinkImportedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.ImportedGlobals) {
			return nil
		}
		return resolveGlobalSlot(slot.ResolvedModule.ImportedGlobals[slot.ResolvedIndex])
	default:
		return nil
	}
}

// ResolveTable follows idx (imports-first table index space) to its
// concrete storage.
func (m *ModuleInstance) ResolveTable(idx uint32) *TableInstance {
	n := uint32(len(m.ImportedTables))
	if idx >= n {
		return m.LocalTableByIndex(idx)
	}
	return resolveTableSlot(m.ImportedTables[idx])
}

func resolveTableSlot(slot *ImportSlot) *TableInstance {
	switch slot.Kind {
	case LinkDefinedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Tables) {
			return nil
		}
		return slot.ResolvedModule.Tables[slot.ResolvedIndex]
	case LinkImportedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.ImportedTables) {
			return nil
		}
		return resolveTableSlot(slot.ResolvedModule.ImportedTables[slot.ResolvedIndex])
	default:
		return nil
	}
}

// ResolveMemory returns the module's single memory (Wasm 1.0 permits at
// most one), whether locally defined or imported.
func (m *ModuleInstance) ResolveMemory() LinearMemory {
	if len(m.Memories) > 0 {
		return m.Memories[0]
	}
	if len(m.ImportedMemories) > 0 {
		return resolveMemorySlot(m.ImportedMemories[0])
	}
	return nil
}

func resolveMemorySlot(slot *ImportSlot) LinearMemory {
	switch slot.Kind {
	case LinkDefinedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Memories) {
			return nil
		}
		return slot.ResolvedModule.Memories[slot.ResolvedIndex]
	case LinkImportedOtherModule:
		if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.ImportedMemories) {
			return nil
		}
		return resolveMemorySlot(slot.ResolvedModule.ImportedMemories[slot.ResolvedIndex])
	default:
		return nil
	}
}
