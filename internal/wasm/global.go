package wasm

// GlobalInitState tracks the three-state memoized fix-point evaluation of a
// global's constant initializer. The zero value is Uninitialized.
type GlobalInitState byte

const (
	GlobalUninitialized GlobalInitState = iota
	GlobalInitializing
	GlobalInitialized
)

// GlobalInstance is a locally-defined global's runtime storage: its typed
// value slot plus the state machine that lets the linker detect
// self-reference and cycles while resolving `global.get` initializer chains.
type GlobalInstance struct {
	Type *GlobalType

	// Val holds the bit pattern of the current value, reinterpreted
	// according to Type.ValType exactly like the interpreter's uint64
	// operand-stack slots.
	Val uint64

	InitState GlobalInitState

	// Init is kept so the linker can (re-)evaluate it; e.g. to resolve a
	// self-referential chain error message.
	Init Instruction
}

// Get returns the current value. Safe to call once InitState is
// GlobalInitialized; earlier is a linker bug.
func (g *GlobalInstance) Get() uint64 { return g.Val }

// Set stores v, trapping callers must have already checked Type.Mutable.
func (g *GlobalInstance) Set(v uint64) { g.Val = v }
