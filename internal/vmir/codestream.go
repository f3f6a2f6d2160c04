package vmir

import "github.com/corewasm/corewasm/internal/wasm"

// OpKind determines how the interpreter interprets the rest of an Op's
// fields. Structured control flow (block/loop/if/else/end) does not survive
// translation as its own OpKind: Translate flattens it into plain sequential
// ops plus explicit Br/BrIf/BrTable jumps, the way a one-pass assembler
// lowers structured source into a flat instruction stream.
type OpKind byte

const (
	OpKindUnreachable OpKind = iota
	OpKindNop

	OpKindBr
	OpKindBrIf
	OpKindBrTable
	OpKindReturn
	OpKindCall
	OpKindCallIndirect

	OpKindDrop
	OpKindSelect

	OpKindLocalGet
	OpKindLocalSet
	OpKindLocalTee
	OpKindGlobalGet
	OpKindGlobalSet

	OpKindLoad
	OpKindStore
	OpKindMemorySize
	OpKindMemoryGrow

	OpKindConstI32
	OpKindConstI64
	OpKindConstF32
	OpKindConstF64

	OpKindEqz
	OpKindCompare
	OpKindUnaryNumeric
	OpKindBinaryNumeric
	OpKindConversion
)

// BrTarget is one resolved branch destination: an absolute index into the
// owning CompiledFunction.Body, plus how many operand-stack values below
// the branch's own arguments must be discarded to reach that height.
type BrTarget struct {
	Target int
	ToDrop uint32
}

// Op is one entry of a translated function body. Which fields are
// meaningful is determined entirely by Kind; this is a deliberate union
// encoding so the interpreter's dispatch loop can index a flat []Op slice
// instead of chasing pointers through a tree.
type Op struct {
	Kind OpKind

	// WasmOp carries the exact source opcode through for OpKindEqz,
	// OpKindCompare, OpKindUnaryNumeric, OpKindBinaryNumeric and
	// OpKindConversion: Kind says which handler table to dispatch into,
	// WasmOp says which entry of it to run.
	WasmOp wasm.Opcode

	// B1/B2 are compact operand tags. B1 is the local's value type
	// (wasm.ValueType) for LocalGet/LocalSet/LocalTee and the table index
	// for CallIndirect; B2 is not set by Translate.
	B1, B2 byte
	// B3 is the invert flag of a BrIf lowered from an if (branch when the
	// condition is zero), and the strict flag (CompileOption.GrowStrict) of
	// a MemoryGrow.
	B3 bool

	// Index is the generic index immediate: local/global/function/table
	// index, depending on Kind.
	Index uint32

	ConstI32 int32
	ConstI64 int64
	ConstF32 float32
	ConstF64 float64

	Mem wasm.MemArg
	// Policy is the bounds-check policy hardwired for this memory op.
	Policy wasm.BoundsCheckPolicy

	// Target/ToDrop serve Br and BrIf; Targets serves BrTable (default
	// last). CallIndirect's expected signature is Index into the owning
	// module's Types.
	Target  int
	ToDrop  uint32
	Targets []BrTarget
}

// CompiledFunction is the translated, flattened form of one wasm.Code body,
// ready for the threaded interpreter to execute.
type CompiledFunction struct {
	Type      *wasm.FunctionType
	Body      []Op
	NumLocals int // len(Type.Params) + len(Code.LocalTypes)
	LocalType []wasm.ValueType
	Option    CompileOption
}
