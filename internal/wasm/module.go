package wasm

// Code is one locally-defined function body: its local declarations (beyond
// the parameters) and its instruction sequence. Raw AST form — translation
// into a handler-pointer code stream happens in internal/vmir.
type Code struct {
	// LocalTypes are the additional locals declared by the function body, in
	// declaration order, after the signature's parameters.
	LocalTypes []ValueType
	Body       []Instruction
}

// Global is a locally-defined global: its type and its one-opcode constant
// initializer expression.
type Global struct {
	Type *GlobalType
	Init Instruction // one of {i32,i64,f32,f64}.const or global.get
}

// ElementSegment is an active element segment. Only active segments exist in
// Wasm 1.0, so passive and declared kinds are not modeled.
type ElementSegment struct {
	TableIndex uint32
	Offset     Instruction // one-opcode constant expression, i32 result
	FuncIndices []uint32
}

// DataSegment is an active data segment.
type DataSegment struct {
	MemoryIndex uint32
	Offset      Instruction
	Bytes       []byte
}

// Module is the validated Wasm 1.0 module AST the host hands to the core.
// corewasm never produces this from bytes; decoding .wasm bytes is the
// host's concern.
type Module struct {
	Types []*FunctionType

	ImportSection []*Import

	// FunctionSection maps each locally-defined function to its signature
	// index into Types, in declaration order.
	FunctionSection []uint32
	CodeSection     []*Code

	TableSection  []*TableType
	MemorySection []*MemoryType
	GlobalSection []*Global

	ExportSection []*Export

	StartSection *uint32

	ElementSection []*ElementSegment
	DataSection    []*DataSegment

	// NameSection is an optional human-readable function name table, purely
	// for diagnostics; indices are into the imports-first
	// function space.
	NameSection map[uint32]string
}

// ImportedFuncs/ImportedTables/ImportedMemories/ImportedGlobals partition
// ImportSection by kind, preserving the original declaration order within
// each kind (needed to build the imports-first index spaces Export.Index and
// ElementSegment.FuncIndices address into).
func (m *Module) ImportedFuncs() []*Import {
	return m.importsOf(ExternTypeFunc)
}

func (m *Module) ImportedTables() []*Import {
	return m.importsOf(ExternTypeTable)
}

func (m *Module) ImportedMemories() []*Import {
	return m.importsOf(ExternTypeMemory)
}

func (m *Module) ImportedGlobals() []*Import {
	return m.importsOf(ExternTypeGlobal)
}

func (m *Module) importsOf(t ExternType) []*Import {
	var out []*Import
	for _, imp := range m.ImportSection {
		if imp.Type == t {
			out = append(out, imp)
		}
	}
	return out
}
