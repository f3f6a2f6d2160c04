// Package wasm holds the value/type model (C1) and the per-module runtime
// storage (C5) that the interpreter and linker operate on. It has no
// dependency on translation or execution: those live in internal/vmir and
// internal/interpreter respectively.
package wasm

// ValueType is one of the four Wasm 1.0 scalar kinds. The encoding matches
// the Wasm binary format's valtype byte so a decoder collaborator can hand
// these straight through without translation.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the Wasm text-format name of t, or "unknown".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// ValueTypeSize returns the natural byte width of t.
func ValueTypeSize(t ValueType) uint32 {
	switch t {
	case ValueTypeI32, ValueTypeF32:
		return 4
	case ValueTypeI64, ValueTypeF64:
		return 8
	}
	panic("BUG: invalid value type " + ValueTypeName(t))
}

// FunctionType is an ordered parameter list and an ordered result list.
// Equality is structural: two FunctionTypes are the same
// signature iff their Params and Results match element-wise.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType

	// key is a cached structural key for fast signature comparison, computed
	// on first use by EqualTo. Mirrors the teacher's TypeID caching Done at
	// the store layer (internal/wasm/store_test.go's getTypeInstance).
	key    string
	keySet bool
}

// EqualTo reports whether ft and other describe the same signature.
func (ft *FunctionType) EqualTo(other *FunctionType) bool {
	if ft == other {
		return true
	}
	if other == nil {
		return false
	}
	return ft.String() == other.String()
}

// String renders a stable structural key, e.g. "i32f64_i32" for
// (param i32 f64) (result i32). Used both for human diagnostics and as the
// structural equality key.
func (ft *FunctionType) String() string {
	if ft.keySet {
		return ft.key
	}
	buf := make([]byte, 0, len(ft.Params)+len(ft.Results)+1)
	for _, p := range ft.Params {
		buf = append(buf, ValueTypeName(p)...)
	}
	buf = append(buf, '_')
	for _, r := range ft.Results {
		buf = append(buf, ValueTypeName(r)...)
	}
	ft.key = string(buf)
	ft.keySet = true
	return ft.key
}

// ParamNumInUint64 and ResultNumInUint64 are the stack-slot counts each
// value occupies; Wasm 1.0 scalars are always exactly one uint64 slot, so
// these equal len(Params)/len(Results). Kept as named accessors matching the
// teacher's FunctionInstance.ParamNumInUint64/ResultNumInUint64 naming; no
// code in this repository calls them.
func (ft *FunctionType) ParamNumInUint64() int  { return len(ft.Params) }
func (ft *FunctionType) ResultNumInUint64() int { return len(ft.Results) }
