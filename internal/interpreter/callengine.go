package interpreter

import (
	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
)

// callStackCeiling bounds recursion depth the same way the teacher's
// interpreter does, so a runaway recursive function traps instead of
// growing ce.frames without limit.
const callStackCeiling = 2000

// CallEngine holds the operand stack and call-frame stack shared across
// every function invocation originating from one Engine.Call.
// Mirrors the teacher's callEngine (internal/engine/interpreter/interpreter.go).
type CallEngine struct {
	engine *Engine
	stack  []uint64
	frames []*callFrame
}

func newCallEngine(e *Engine) *CallEngine {
	return &CallEngine{engine: e}
}

func (ce *CallEngine) pushValue(v uint64) {
	ce.stack = append(ce.stack, v)
}

func (ce *CallEngine) popValue() uint64 {
	top := len(ce.stack) - 1
	v := ce.stack[top]
	ce.stack = ce.stack[:top]
	return v
}

// peekValues returns the top count values in call order (deepest first).
func (ce *CallEngine) peekValues(count int) []uint64 {
	if count == 0 {
		return nil
	}
	top := len(ce.stack)
	return append([]uint64{}, ce.stack[top-count:top]...)
}

// drop implements the translated Drop/ToDrop convention: discard n values
// that sit immediately below the top value being kept in place (used by
// OpKindBr/BrIf/BrTable/Return to unwind the operand stack to a branch
// target's height while preserving the label's own result value).
func (ce *CallEngine) drop(n uint32) {
	if n == 0 {
		return
	}
	top := len(ce.stack)
	kept := ce.stack[top-1]
	ce.stack = ce.stack[:top-1-int(n)]
	ce.stack = append(ce.stack, kept)
}

func (ce *CallEngine) pushFrame(f *callFrame) {
	if callStackCeiling <= len(ce.frames) {
		panic(errCallStackOverflow)
	}
	ce.frames = append(ce.frames, f)
}

func (ce *CallEngine) popFrame() *callFrame {
	top := len(ce.frames) - 1
	f := ce.frames[top]
	ce.frames = ce.frames[:top]
	return f
}

// ringCursor is the per-type runtime position into a stack-top cache ring,
// threaded through one function activation's execution the way the
// original design threads curr_stack_top as a handler call argument rather
// than assigning a cache slot at translation time (see internal/vmir's
// CompileOption/RingNextPos).
type ringCursor struct {
	pos [4]int // indexed by stackTopFamily(valueType)
}

func newRingCursor(opt vmir.CompileOption) ringCursor {
	var rc ringCursor
	rc.pos[familyI32] = opt.I32StackTopBegin
	rc.pos[familyI64] = opt.I64StackTopBegin
	rc.pos[familyF32] = opt.F32StackTopBegin
	rc.pos[familyF64] = opt.F64StackTopBegin
	return rc
}

const (
	familyI32 = 0
	familyI64 = 1
	familyF32 = 2
	familyF64 = 3
)

func stackTopFamily(t wasm.ValueType) int {
	switch t {
	case wasm.ValueTypeI32:
		return familyI32
	case wasm.ValueTypeI64:
		return familyI64
	case wasm.ValueTypeF32:
		return familyF32
	default:
		return familyF64
	}
}

// callFrame is one active function activation: its program counter into
// body, the compiled function, and the source instance (for module-scoped
// lookups: memory, globals, tables).
type callFrame struct {
	pc     uint64
	fn     *vmir.CompiledFunction
	source *wasm.FunctionInstance
	module *wasm.ModuleInstance
	locals []uint64
	ring   ringCursor
}
