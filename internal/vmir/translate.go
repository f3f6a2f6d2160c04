package vmir

import (
	"fmt"

	"github.com/corewasm/corewasm/internal/wasm"
)

// Translate lowers one function body into a flat, branch-resolved
// CompiledFunction. It assumes code.Body is already structurally valid wasm
// (matching block/end nesting, in-range indices): decoding and validating
// bytes is the host's concern, not this package's. Translate still reports
// structural errors it meets while walking the body (unmatched else/end,
// unclosed blocks, too-deep branches, unknown call or type indices,
// unsupported opcodes), and checks br_table's target-arity consistency,
// since a mismatched jump table is cheap to catch here and expensive to
// diagnose as a stack-shape bug at run time.
func Translate(code *wasm.Code, sig *wasm.FunctionType, types []*wasm.FunctionType, funcTypes []*wasm.FunctionType, memPolicy wasm.BoundsCheckPolicy, opt CompileOption) (*CompiledFunction, error) {
	t := &translator{
		sig:       sig,
		types:     types,
		funcTypes: funcTypes,
		memPolicy: memPolicy,
		opt:       opt,
	}
	t.localType = append(t.localType, sig.Params...)
	t.localType = append(t.localType, code.LocalTypes...)

	// The function body itself is an implicit top-level block whose label
	// type is the function's result type; its instruction stream ends with
	// the same End opcode that closes any other block.
	t.ctrl = append(t.ctrl, &ctrlFrame{kind: ctrlBlock, hasResult: len(sig.Results) > 0})

	if err := t.run(code.Body); err != nil {
		return nil, err
	}
	if len(t.ctrl) != 0 {
		return nil, fmt.Errorf("vmir: function body ended with %d unclosed block(s)", len(t.ctrl))
	}

	return &CompiledFunction{
		Type:      sig,
		Body:      t.body,
		NumLocals: len(t.localType),
		LocalType: t.localType,
		Option:    opt,
	}, nil
}

type ctrlKind byte

const (
	ctrlBlock ctrlKind = iota
	ctrlLoop
	ctrlIf
)

type patch struct {
	opIndex    int
	targetsIdx int // -1 selects Op.Target; otherwise Op.Targets[targetsIdx].Target
}

type ctrlFrame struct {
	kind               ctrlKind
	hasResult          bool
	stackHeightAtEntry int
	loopHead           int // valid when kind == ctrlLoop

	pendingEnd []patch // patched to "position right after this frame's End"
	elsePatch  *patch  // the if's conditional-skip jump; retargeted at Else or End
}

type translator struct {
	sig       *wasm.FunctionType
	types     []*wasm.FunctionType
	funcTypes []*wasm.FunctionType
	memPolicy wasm.BoundsCheckPolicy
	opt       CompileOption

	localType []wasm.ValueType
	body      []Op
	ctrl      []*ctrlFrame
	height    int // abstract operand-stack value count
}

func (t *translator) emit(op Op) int {
	t.body = append(t.body, op)
	return len(t.body) - 1
}

func (t *translator) patchTo(p patch, target int) {
	if p.targetsIdx < 0 {
		t.body[p.opIndex].Target = target
	} else {
		t.body[p.opIndex].Targets[p.targetsIdx].Target = target
	}
}

func (t *translator) pop(n int) { t.height -= n }
func (t *translator) push(n int) { t.height += n }

func (t *translator) frameAt(depth uint32) (*ctrlFrame, error) {
	if int(depth) >= len(t.ctrl) {
		return nil, fmt.Errorf("vmir: branch depth %d exceeds nesting depth %d", depth, len(t.ctrl))
	}
	return t.ctrl[len(t.ctrl)-1-int(depth)], nil
}

// labelArity is how many values a branch to this frame carries: a loop
// label's type is the loop's (absent, in Wasm 1.0) param types, so branching
// to a loop always carries zero values; a block/if label's type is its
// result, delivered on exit.
func (f *ctrlFrame) labelArity() uint32 {
	if f.kind == ctrlLoop {
		return 0
	}
	if f.hasResult {
		return 1
	}
	return 0
}

func (t *translator) branchDrop(f *ctrlFrame) uint32 {
	arity := int(f.labelArity())
	drop := t.height - arity - f.stackHeightAtEntry
	if drop < 0 {
		drop = 0
	}
	return uint32(drop)
}

func (t *translator) run(insns []wasm.Instruction) error {
	for i := 0; i < len(insns); i++ {
		in := insns[i]
		switch in.Op {
		case wasm.OpUnreachable:
			t.emit(Op{Kind: OpKindUnreachable})
		case wasm.OpNop:
			// no-op; omit from the stream entirely.
		case wasm.OpBlock:
			t.ctrl = append(t.ctrl, &ctrlFrame{kind: ctrlBlock, hasResult: in.HasResult, stackHeightAtEntry: t.height})
		case wasm.OpLoop:
			t.ctrl = append(t.ctrl, &ctrlFrame{kind: ctrlLoop, hasResult: in.HasResult, stackHeightAtEntry: t.height, loopHead: len(t.body)})
		case wasm.OpIf:
			t.pop(1)
			idx := t.emit(Op{Kind: OpKindBrIf, ToDrop: 0})
			// A BrIf in the translated stream branches when its condition
			// is non-zero; `if` wants the opposite (skip the then-body
			// when the condition is zero), so the emitted jump here is
			// logically "if cond==0, goto else-or-end". The interpreter's
			// BrIf handler treats Op.B3 as "invert" for this purpose.
			t.body[idx].B3 = true
			f := &ctrlFrame{kind: ctrlIf, hasResult: in.HasResult, stackHeightAtEntry: t.height}
			f.elsePatch = &patch{opIndex: idx, targetsIdx: -1}
			t.ctrl = append(t.ctrl, f)
		case wasm.OpElse:
			if len(t.ctrl) == 0 {
				return fmt.Errorf("vmir: else without matching if")
			}
			f := t.ctrl[len(t.ctrl)-1]
			// Jump the then-arm over the else-arm once it completes.
			skipIdx := t.emit(Op{Kind: OpKindBr})
			f.pendingEnd = append(f.pendingEnd, patch{opIndex: skipIdx, targetsIdx: -1})
			if f.elsePatch != nil {
				t.patchTo(*f.elsePatch, len(t.body))
				f.elsePatch = nil
			}
			t.height = f.stackHeightAtEntry
		case wasm.OpEnd:
			if len(t.ctrl) == 0 {
				return fmt.Errorf("vmir: end without matching block")
			}
			f := t.ctrl[len(t.ctrl)-1]
			t.ctrl = t.ctrl[:len(t.ctrl)-1]
			if f.elsePatch != nil {
				t.patchTo(*f.elsePatch, len(t.body))
			}
			for _, p := range f.pendingEnd {
				t.patchTo(p, len(t.body))
			}
			t.height = f.stackHeightAtEntry
			if f.hasResult {
				t.push(1)
			}
		case wasm.OpBr:
			f, err := t.frameAt(in.BrDepth)
			if err != nil {
				return err
			}
			drop := t.branchDrop(f)
			idx := t.emit(Op{Kind: OpKindBr, ToDrop: drop})
			if f.kind == ctrlLoop {
				t.body[idx].Target = f.loopHead
			} else {
				f.pendingEnd = append(f.pendingEnd, patch{opIndex: idx, targetsIdx: -1})
			}
		case wasm.OpBrIf:
			t.pop(1)
			f, err := t.frameAt(in.BrDepth)
			if err != nil {
				return err
			}
			drop := t.branchDrop(f)
			idx := t.emit(Op{Kind: OpKindBrIf, ToDrop: drop})
			if f.kind == ctrlLoop {
				t.body[idx].Target = f.loopHead
			} else {
				f.pendingEnd = append(f.pendingEnd, patch{opIndex: idx, targetsIdx: -1})
			}
		case wasm.OpBrTable:
			t.pop(1)
			allDepths := append(append([]uint32{}, in.BrTableTargets...), in.BrTableDefault)
			var wantArity uint32
			targets := make([]BrTarget, len(allDepths))
			for i, depth := range allDepths {
				f, err := t.frameAt(depth)
				if err != nil {
					return err
				}
				arity := f.labelArity()
				if i == 0 {
					wantArity = arity
				} else if arity != wantArity {
					return fmt.Errorf("vmir: br_table target %d has arity %d, want %d (targets must agree on result arity)", i, arity, wantArity)
				}
				targets[i] = BrTarget{ToDrop: t.branchDrop(f)}
			}
			idx := t.emit(Op{Kind: OpKindBrTable, Targets: targets})
			for i, depth := range allDepths {
				f, _ := t.frameAt(depth)
				p := patch{opIndex: idx, targetsIdx: i}
				if f.kind == ctrlLoop {
					t.patchTo(p, f.loopHead)
				} else {
					f.pendingEnd = append(f.pendingEnd, p)
				}
			}
		case wasm.OpReturn:
			drop := t.height - len(t.sig.Results)
			if drop < 0 {
				drop = 0
			}
			t.emit(Op{Kind: OpKindReturn, ToDrop: uint32(drop)})
		case wasm.OpCall:
			if int(in.FuncIndex) >= len(t.funcTypes) || t.funcTypes[in.FuncIndex] == nil {
				return fmt.Errorf("vmir: call targets unknown function index %d", in.FuncIndex)
			}
			callee := t.funcTypes[in.FuncIndex]
			t.pop(len(callee.Params))
			t.push(len(callee.Results))
			t.emit(Op{Kind: OpKindCall, Index: in.FuncIndex})
		case wasm.OpCallIndirect:
			if int(in.TypeIndex) >= len(t.types) {
				return fmt.Errorf("vmir: call_indirect targets unknown type index %d", in.TypeIndex)
			}
			callee := t.types[in.TypeIndex]
			t.pop(1) // table index operand
			t.pop(len(callee.Params))
			t.push(len(callee.Results))
			t.emit(Op{Kind: OpKindCallIndirect, Index: in.TypeIndex, B1: byte(in.TableIndex)})
		case wasm.OpDrop:
			t.pop(1)
			t.emit(Op{Kind: OpKindDrop})
		case wasm.OpSelect:
			t.pop(2)
			t.emit(Op{Kind: OpKindSelect})

		case wasm.OpLocalGet:
			t.push(1)
			t.emit(t.localAccessOp(OpKindLocalGet, in.LocalIndex))
		case wasm.OpLocalSet:
			t.pop(1)
			t.emit(t.localAccessOp(OpKindLocalSet, in.LocalIndex))
		case wasm.OpLocalTee:
			t.emit(t.localAccessOp(OpKindLocalTee, in.LocalIndex))
		case wasm.OpGlobalGet:
			t.push(1)
			t.emit(Op{Kind: OpKindGlobalGet, Index: in.GlobalIndex})
		case wasm.OpGlobalSet:
			t.pop(1)
			t.emit(Op{Kind: OpKindGlobalSet, Index: in.GlobalIndex})

		case wasm.OpMemorySize:
			t.push(1)
			t.emit(Op{Kind: OpKindMemorySize, Policy: t.memPolicy})
		case wasm.OpMemoryGrow:
			t.emit(Op{Kind: OpKindMemoryGrow, Policy: t.memPolicy, B3: t.opt.GrowStrict})

		case wasm.OpI32Const:
			t.push(1)
			t.emit(Op{Kind: OpKindConstI32, ConstI32: in.I32})
		case wasm.OpI64Const:
			t.push(1)
			t.emit(Op{Kind: OpKindConstI64, ConstI64: in.I64})
		case wasm.OpF32Const:
			t.push(1)
			t.emit(Op{Kind: OpKindConstF32, ConstF32: in.F32})
		case wasm.OpF64Const:
			t.push(1)
			t.emit(Op{Kind: OpKindConstF64, ConstF64: in.F64})

		default:
			if err := t.emitClassified(in); err != nil {
				return err
			}
		}
	}
	return nil
}

// localAccessOp builds the Op for a local.get/set/tee. B1 records the
// local's value type so the interpreter can decide, at run time and using
// its own ring cursor, whether CompileOption has stack-top caching enabled
// for that type; the translator itself does not assign cache slots.
func (t *translator) localAccessOp(kind OpKind, idx uint32) Op {
	op := Op{Kind: kind, Index: idx}
	if int(idx) < len(t.localType) {
		op.B1 = t.localType[idx]
	}
	return op
}

func (t *translator) memOp(kind OpKind, wasmOp wasm.Opcode, mem wasm.MemArg) Op {
	return Op{Kind: kind, WasmOp: wasmOp, Mem: mem, Policy: t.memPolicy}
}

func (t *translator) emitClassified(in wasm.Instruction) error {
	switch {
	case isLoadOp(in.Op):
		t.pop(1)
		t.push(1)
		t.emit(t.memOp(OpKindLoad, in.Op, in.Mem))
	case isStoreOp(in.Op):
		t.pop(2)
		t.emit(t.memOp(OpKindStore, in.Op, in.Mem))
	case isEqzOp(in.Op):
		t.pop(1)
		t.push(1)
		t.emit(Op{Kind: OpKindEqz, WasmOp: in.Op})
	case isCompareOp(in.Op):
		t.pop(2)
		t.push(1)
		t.emit(Op{Kind: OpKindCompare, WasmOp: in.Op})
	case isUnaryNumericOp(in.Op):
		t.pop(1)
		t.push(1)
		t.emit(Op{Kind: OpKindUnaryNumeric, WasmOp: in.Op})
	case isBinaryNumericOp(in.Op):
		t.pop(2)
		t.push(1)
		t.emit(Op{Kind: OpKindBinaryNumeric, WasmOp: in.Op})
	case isConversionOp(in.Op):
		t.pop(1)
		t.push(1)
		t.emit(Op{Kind: OpKindConversion, WasmOp: in.Op})
	default:
		return fmt.Errorf("vmir: unsupported opcode %#x", in.Op)
	}
	return nil
}

func isLoadOp(op wasm.Opcode) bool {
	return op >= wasm.OpI32Load && op <= wasm.OpI64Load32U
}

func isStoreOp(op wasm.Opcode) bool {
	return op >= wasm.OpI32Store && op <= wasm.OpI64Store32
}

func isEqzOp(op wasm.Opcode) bool {
	return op == wasm.OpI32Eqz || op == wasm.OpI64Eqz
}

func isCompareOp(op wasm.Opcode) bool {
	return op >= wasm.OpI32Eq && op <= wasm.OpF64Ge && !isEqzOp(op)
}

func isUnaryNumericOp(op wasm.Opcode) bool {
	switch {
	case op >= wasm.OpI32Clz && op <= wasm.OpI32Popcnt:
		return true
	case op >= wasm.OpI64Clz && op <= wasm.OpI64Popcnt:
		return true
	case op >= wasm.OpF32Abs && op <= wasm.OpF32Sqrt:
		return true
	case op >= wasm.OpF64Abs && op <= wasm.OpF64Sqrt:
		return true
	case op == wasm.OpF32Neg || op == wasm.OpF64Neg:
		return true
	}
	return false
}

func isBinaryNumericOp(op wasm.Opcode) bool {
	switch {
	case op >= wasm.OpI32Add && op <= wasm.OpI32Rotr:
		return true
	case op >= wasm.OpI64Add && op <= wasm.OpI64Rotr:
		return true
	case op >= wasm.OpF32Add && op <= wasm.OpF32Copysign:
		return true
	case op >= wasm.OpF64Add && op <= wasm.OpF64Copysign:
		return true
	}
	return false
}

func isConversionOp(op wasm.Opcode) bool {
	return op >= wasm.OpI32WrapI64 && op <= wasm.OpF64ReinterpretI64
}
