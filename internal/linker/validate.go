package linker

import (
	"github.com/corewasm/corewasm/internal/diag"
	"github.com/corewasm/corewasm/internal/wasm"
)

// maxChainHops bounds the LinkImportedOtherModule chain walk below. A
// legitimate chain is at most len(registry) hops long (each hop must land
// in a distinct module); anything longer means the chain revisited a
// module, i.e. a cycle, which phase 4 reports as KindLinkCircular instead
// of looping forever.
func (l *Linker) maxChainHops() int {
	n := len(l.built) + 1
	if n < 4 {
		n = 4
	}
	return n
}

// validateLinkedTypes is phase 4: walk every resolved import link to its
// concrete provider and check structural/subtyping compatibility against
// the importer's own descriptor.
func (l *Linker) validateLinkedTypes(mi *wasm.ModuleInstance) error {
	for i, slot := range mi.ImportedFunctions {
		if slot.Kind == wasm.LinkUnresolved {
			continue
		}
		fn, err := l.resolveFuncChain(mi.Name, slot)
		if err != nil {
			return err
		}
		expected := mi.Types[slot.Desc.DescFunc]
		if fn == nil || !fn.Type.EqualTo(expected) {
			got := "<unresolved>"
			if fn != nil {
				got = fn.Type.String()
			}
			return diag.New(diag.KindLinkTypeMismatch, "module %s: import func %s.%s (slot %d): expected signature %s, got %s",
				mi.Name, slot.TargetModule, slot.TargetName, i, expected.String(), got)
		}
	}

	for i, slot := range mi.ImportedTables {
		if slot.Kind == wasm.LinkUnresolved {
			continue
		}
		table, err := l.resolveTableChain(mi.Name, slot)
		if err != nil {
			return err
		}
		expected := &slot.Desc.DescTable.Limits
		if table == nil || !table.Type.Limits.SatisfiesExpected(expected) {
			return diag.New(diag.KindLinkTypeMismatch, "module %s: import table %s.%s (slot %d): actual limits do not satisfy expected limits",
				mi.Name, slot.TargetModule, slot.TargetName, i)
		}
	}

	for i, slot := range mi.ImportedMemories {
		if slot.Kind == wasm.LinkUnresolved {
			continue
		}
		mem, err := l.resolveMemoryChain(mi.Name, slot)
		if err != nil {
			return err
		}
		expected := &slot.Desc.DescMemory.Limits
		if mem.memType == nil || !mem.memType.Limits.SatisfiesExpected(expected) {
			return diag.New(diag.KindLinkTypeMismatch, "module %s: import memory %s.%s (slot %d): actual limits do not satisfy expected limits",
				mi.Name, slot.TargetModule, slot.TargetName, i)
		}
	}

	for i, slot := range mi.ImportedGlobals {
		if slot.Kind == wasm.LinkUnresolved {
			continue
		}
		g, _, err := l.resolveGlobalChainNoFinalize(mi.Name, slot)
		if err != nil {
			return err
		}
		expected := slot.Desc.DescGlobal
		if g == nil || g.Type.ValType != expected.ValType || g.Type.Mutable != expected.Mutable {
			return diag.New(diag.KindLinkTypeMismatch, "module %s: import global %s.%s (slot %d): kind/mutability mismatch",
				mi.Name, slot.TargetModule, slot.TargetName, i)
		}
	}

	return nil
}

// resolveFuncChain walks LinkImportedOtherModule hops to the concrete
// FunctionInstance. A chain that terminates in a host/dl/weak link has no
// wasm.FunctionInstance of its own, so one is synthesized from the slot's
// HostType and HostFunc; an unresolved or out-of-range slot yields nil.
func (l *Linker) resolveFuncChain(callerName string, slot *wasm.ImportSlot) (*wasm.FunctionInstance, error) {
	for hops := 0; ; hops++ {
		if hops > l.maxChainHops() {
			return nil, diag.New(diag.KindLinkCircular, "module %s: import chain for a function import exceeds %d hops (cycle)", callerName, l.maxChainHops())
		}
		switch slot.Kind {
		case wasm.LinkDefinedOtherModule:
			if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Functions) {
				return nil, nil
			}
			return slot.ResolvedModule.Functions[slot.ResolvedIndex], nil
		case wasm.LinkImportedOtherModule:
			slot = slot.ResolvedModule.ImportedFunctions[slot.ResolvedIndex]
		case wasm.LinkLocalHostRef, wasm.LinkDLRef, wasm.LinkWeakSymbolRef:
			return &wasm.FunctionInstance{Type: slot.HostType, HostFunc: slot.HostFunc}, nil
		default:
			return nil, nil
		}
	}
}

func (l *Linker) resolveTableChain(callerName string, slot *wasm.ImportSlot) (*wasm.TableInstance, error) {
	for hops := 0; ; hops++ {
		if hops > l.maxChainHops() {
			return nil, diag.New(diag.KindLinkCircular, "module %s: import chain for a table import exceeds %d hops (cycle)", callerName, l.maxChainHops())
		}
		switch slot.Kind {
		case wasm.LinkDefinedOtherModule:
			if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Tables) {
				return nil, nil
			}
			return slot.ResolvedModule.Tables[slot.ResolvedIndex], nil
		case wasm.LinkImportedOtherModule:
			slot = slot.ResolvedModule.ImportedTables[slot.ResolvedIndex]
		default:
			return nil, nil
		}
	}
}

// resolvedMemory wraps the concrete memory plus its declared type, since
// wasm.LinearMemory itself does not carry the parsed MemoryType the limits
// subtyping check needs.
type resolvedMemory struct {
	mem     wasm.LinearMemory
	memType *wasm.MemoryType
}

func (l *Linker) resolveMemoryChain(callerName string, slot *wasm.ImportSlot) (resolvedMemory, error) {
	for hops := 0; ; hops++ {
		if hops > l.maxChainHops() {
			return resolvedMemory{}, diag.New(diag.KindLinkCircular, "module %s: import chain for a memory import exceeds %d hops (cycle)", callerName, l.maxChainHops())
		}
		switch slot.Kind {
		case wasm.LinkDefinedOtherModule:
			if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Memories) {
				return resolvedMemory{}, nil
			}
			idx := slot.ResolvedIndex
			return resolvedMemory{mem: slot.ResolvedModule.Memories[idx], memType: slot.ResolvedModule.Source.MemorySection[idx]}, nil
		case wasm.LinkImportedOtherModule:
			slot = slot.ResolvedModule.ImportedMemories[slot.ResolvedIndex]
		default:
			return resolvedMemory{}, nil
		}
	}
}

// resolveGlobalChainNoFinalize walks to the concrete GlobalInstance purely
// for its Type (mutability/kind), without triggering finalization — used
// by phase 4's type check, which must run before phase 5 evaluates any
// initializer.
func (l *Linker) resolveGlobalChainNoFinalize(callerName string, slot *wasm.ImportSlot) (*wasm.GlobalInstance, *wasm.ModuleInstance, error) {
	for hops := 0; ; hops++ {
		if hops > l.maxChainHops() {
			return nil, nil, diag.New(diag.KindLinkCircular, "module %s: import chain for a global import exceeds %d hops (cycle)", callerName, l.maxChainHops())
		}
		switch slot.Kind {
		case wasm.LinkDefinedOtherModule:
			if int(slot.ResolvedIndex) >= len(slot.ResolvedModule.Globals) {
				return nil, nil, nil
			}
			return slot.ResolvedModule.Globals[slot.ResolvedIndex], slot.ResolvedModule, nil
		case wasm.LinkImportedOtherModule:
			slot = slot.ResolvedModule.ImportedGlobals[slot.ResolvedIndex]
		default:
			return nil, nil, nil
		}
	}
}
