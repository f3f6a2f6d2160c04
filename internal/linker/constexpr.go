package linker

import (
	"math"

	"github.com/corewasm/corewasm/internal/diag"
	"github.com/corewasm/corewasm/internal/wasm"
)

// finalizeGlobal is phase 5 for one global: the memoized fix-point
// evaluation spec.md §9 describes, with GlobalInstance.InitState as the
// three-state cycle detector (Uninitialized -> Initializing -> Initialized).
// Safe to call more than once for the same target from different chains;
// only the first caller does any work.
func (l *Linker) finalizeGlobal(owner *wasm.ModuleInstance, g *wasm.GlobalInstance) error {
	switch g.InitState {
	case wasm.GlobalInitialized:
		return nil
	case wasm.GlobalInitializing:
		return diag.New(diag.KindInitGlobalCycle, "module %s: global initializer cycle detected", owner.Name)
	}
	g.InitState = wasm.GlobalInitializing
	val, typ, err := l.evalConstExpr(owner, g.Init)
	if err != nil {
		return err
	}
	if typ != g.Type.ValType {
		return diag.New(diag.KindInitInvalidConstExpr, "module %s: global initializer type %s does not match declared type %s",
			owner.Name, wasm.ValueTypeName(typ), wasm.ValueTypeName(g.Type.ValType))
	}
	g.Val = val
	g.InitState = wasm.GlobalInitialized
	return nil
}

// evalConstExpr evaluates a one-opcode constant expression (spec.md §3
// "Offset expressions are one-opcode constant expressions") in the context
// of owner: a typed literal, or a global.get that must name one of owner's
// own imported globals and must resolve to an immutable global of a
// matching scalar kind.
func (l *Linker) evalConstExpr(owner *wasm.ModuleInstance, expr wasm.Instruction) (uint64, wasm.ValueType, error) {
	switch expr.Op {
	case wasm.OpI32Const:
		return uint64(uint32(expr.I32)), wasm.ValueTypeI32, nil
	case wasm.OpI64Const:
		return uint64(expr.I64), wasm.ValueTypeI64, nil
	case wasm.OpF32Const:
		return uint64(math.Float32bits(expr.F32)), wasm.ValueTypeF32, nil
	case wasm.OpF64Const:
		return math.Float64bits(expr.F64), wasm.ValueTypeF64, nil
	case wasm.OpGlobalGet:
		return l.evalGlobalGet(owner, expr.GlobalIndex)
	default:
		return 0, 0, diag.New(diag.KindInitInvalidConstExpr, "module %s: opcode %#x is not a valid constant expression", owner.Name, byte(expr.Op))
	}
}

func (l *Linker) evalGlobalGet(owner *wasm.ModuleInstance, idx uint32) (uint64, wasm.ValueType, error) {
	if idx >= uint32(len(owner.ImportedGlobals)) {
		return 0, 0, diag.New(diag.KindInitInvalidConstExpr,
			"module %s: global.get initializer must reference an imported global, got local index %d", owner.Name, idx)
	}
	slot := owner.ImportedGlobals[idx]
	target, targetModule, err := l.resolveGlobalChainNoFinalize(owner.Name, slot)
	if err != nil {
		return 0, 0, err
	}
	if target == nil {
		return 0, 0, diag.New(diag.KindInitInvalidConstExpr, "module %s: global.get initializer's import is unresolved", owner.Name)
	}
	if target.Type.Mutable {
		return 0, 0, diag.New(diag.KindInitInvalidConstExpr, "module %s: global.get initializer references a mutable global", owner.Name)
	}
	if err := l.finalizeGlobal(targetModule, target); err != nil {
		return 0, 0, err
	}
	return target.Val, target.Type.ValType, nil
}
