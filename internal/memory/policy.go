package memory

import "github.com/corewasm/corewasm/internal/wasm"

// SelectForCompile is the one place the translator asks which bounds-check
// policy to hardwire for a given memory operand. A locally-instantiated
// memory reports its own Policy() because this package is the only
// implementation behind it in a given process. An imported memory may come
// from a foreign LinearMemory implementation the translator has never seen,
// so compiling against anything but the fully-generic, always-safe policy
// would be unsound; imported memories always compile to PolicyGeneric
// regardless of what the concrete backend would have reported.
func SelectForCompile(mem wasm.LinearMemory, imported bool) wasm.BoundsCheckPolicy {
	if imported {
		return wasm.PolicyGeneric
	}
	if mem == nil {
		return wasm.PolicyGeneric
	}
	return mem.Policy()
}
