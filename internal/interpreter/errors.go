package interpreter

import "github.com/corewasm/corewasm/internal/diag"

var errCallStackOverflow = diag.New(diag.KindCallStackOverflow, "call stack exceeds limit of %d frames", callStackCeiling)

// trapMemoryOutOfBounds builds the bounds-check trap: memIndex, staticOffset,
// eff, and memLength are all recorded on the Detail so a host can rebuild the
// diagnostic per the memory_index/static_offset/effective_offset/
// memory_length/access_width tuple, not just the message text.
func trapMemoryOutOfBounds(memIndex, staticOffset uint32, eff, memLength uint64, width uint32) error {
	e := diag.New(diag.KindMemoryOutOfBounds,
		"memory %d: effective address %d (static offset %d, width %d) out of bounds for length %d",
		memIndex, eff, staticOffset, width, memLength)
	e.Detail = &diag.MemoryOutOfBounds{
		MemoryIndex:     memIndex,
		StaticOffset:    staticOffset,
		EffectiveOffset: eff,
		MemoryLength:    memLength,
		AccessWidth:     width,
	}
	return e
}

func trapDivisionByZero() error {
	return diag.New(diag.KindDivisionByZero, "integer divide by zero")
}

func trapIntegerOverflow() error {
	return diag.New(diag.KindIntegerOverflow, "integer overflow")
}

func trapUnreachable() error {
	return diag.New(diag.KindUnreachable, "unreachable executed")
}

func trapIndirectCallTypeMismatch(want, got string) error {
	return diag.New(diag.KindIndirectCallTypeMismatch, "indirect call type mismatch: want %s, got %s", want, got)
}

func trapTableOutOfBounds(idx, size uint32) error {
	return diag.New(diag.KindTableOutOfBounds, "table index %d out of bounds (size %d)", idx, size)
}
