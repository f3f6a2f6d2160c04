package wasm

// MaxMemoryPages is the absolute ceiling on a memory's page count imposed by
// the 32-bit address space (2^32 / PageSize), used wherever a memory
// declares no explicit maximum.
const MaxMemoryPages = 65536

// Limits bounds a table or memory's element/page count. Max is
// nil when the declaration carries no upper bound.
type Limits struct {
	Min uint32
	Max *uint32
}

// Valid reports the limits invariant: if Max is present then Min <= *Max.
func (l *Limits) Valid() bool {
	return l.Max == nil || l.Min <= *l.Max
}

// SatisfiesExpected reports whether the actual limit l (e.g. a locally
// defined table/memory) satisfies the expected limit from an import
// declaration, 
//
//	L_a.min >= L_e.min && (L_e.max absent || (L_a.max present && L_a.max <= L_e.max))
func (l *Limits) SatisfiesExpected(expected *Limits) bool {
	if l.Min < expected.Min {
		return false
	}
	if expected.Max == nil {
		return true
	}
	return l.Max != nil && *l.Max <= *expected.Max
}
