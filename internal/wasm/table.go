package wasm

// TableInstance is a locally-defined table: a sequence of function
// references. Each slot is either null (zero value) or a
// reference to a function, local to this module or imported by it.
type TableInstance struct {
	Type *TableType

	// References holds one entry per slot. A nil entry is the null
	// reference; non-nil points at the *FunctionInstance the slot was wired
	// to by an active element segment.
	References []*FunctionInstance
}

// Size returns the current number of slots.
func (t *TableInstance) Size() uint32 { return uint32(len(t.References)) }

// FunctionInstance is a callable function, either locally defined by a
// module or reached through an import link. Exactly one of Code /
// HostFunc is meaningful in a fully-wired runtime: Wasm-defined functions
// carry Code, and host functions (such as those a HostModuleBuilder
// assembles) carry HostFunc.
type FunctionInstance struct {
	Type *FunctionType

	// Module is the module that locally defines this function (non-owning
	// back-reference, stable for the registry's lifetime).
	Module *ModuleInstance

	// Index is this function's position in the imports-first function index
	// space of Module.
	Index uint32

	// Code is the raw AST body; internal/interpreter translates it into a
	// code stream (C3) when the module is compiled at instantiation, and
	// caches the result keyed by Module.ID and the function's local index.
	Code *Code

	DebugName string

	// HostFunc, when non-nil, makes this a call-out-to-host thunk target
	//: the interpreter reads Type.Params
	// worth of operands and invokes HostFunc instead of executing Code.
	HostFunc func(args []uint64) (results []uint64)
}
