package vmir

import "github.com/corewasm/corewasm/internal/wasm"

// CompileOption controls how Translate lowers a function body into a
// CompiledFunction. The four StackTop ranges each describe a half-open
// [Begin,End) window of per-type ring positions; Begin==End disables the
// ring for that type. The ranges only steer the ring cursor the interpreter
// advances at local.tee: values of every type are always pushed to and
// popped from the generic operand stack, whatever the range.
type CompileOption struct {
	// IsTailCall names a dispatch style where each compiled op directly
	// names its successor instead of returning to a driving loop. Go gives
	// no guarantee of tail-call elimination, so the interpreter runs every
	// function through the same loop-driven executor; this field is only
	// recorded on the CompiledFunction (via Option) and changes neither
	// translation nor dispatch.
	IsTailCall bool

	I32StackTopBegin, I32StackTopEnd int
	I64StackTopBegin, I64StackTopEnd int
	F32StackTopBegin, F32StackTopEnd int
	F64StackTopBegin, F64StackTopEnd int

	// GrowStrict selects memory.grow's strict failure semantics (the grow
	// either fully succeeds or the page count is left unchanged) as opposed
	// to a silent-clamp variant that grows as far as the limit allows.
	GrowStrict bool
}

// DefaultCompileOption is the translator's default when a caller has no
// tuning opinion: no stack-top caching, strict memory.grow.
func DefaultCompileOption() CompileOption {
	return CompileOption{GrowStrict: true}
}

func (c CompileOption) stackTopRange(t wasm.ValueType) (begin, end int) {
	switch t {
	case wasm.ValueTypeI32:
		return c.I32StackTopBegin, c.I32StackTopEnd
	case wasm.ValueTypeI64:
		return c.I64StackTopBegin, c.I64StackTopEnd
	case wasm.ValueTypeF32:
		return c.F32StackTopBegin, c.F32StackTopEnd
	case wasm.ValueTypeF64:
		return c.F64StackTopBegin, c.F64StackTopEnd
	default:
		return 0, 0
	}
}

// StackTopEnabled reports whether t has a non-empty cache ring configured.
func (c CompileOption) StackTopEnabled(t wasm.ValueType) bool {
	b, e := c.stackTopRange(t)
	return b != e
}
