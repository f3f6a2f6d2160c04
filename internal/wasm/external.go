package wasm

// ExternType classifies an import or export. Mirrors the teacher's api.ExternType byte encoding.
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	}
	return "unknown"
}

// TableType describes a locally-defined or imported table. Wasm 1.0 has
// exactly one reference kind (funcref); multi-table and reference types are
// out of scope, so the element kind is not separately modeled here.
type TableType struct {
	Limits Limits
}

// MemoryType describes a locally-defined or imported memory.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global's kind and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Import is one entry of the module's import section. Exactly one of the
// Desc* fields is meaningful, selected by Type.
type Import struct {
	Module, Name string
	Type         ExternType

	DescFunc   uint32 // index into Module.Types
	DescTable  *TableType
	DescMemory *MemoryType
	DescGlobal *GlobalType
}

// Export is one entry of the module's export section.
type Export struct {
	Name  string
	Type  ExternType
	Index uint32 // index into the combined (imports-first) space of Type's kind
}
