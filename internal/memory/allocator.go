package memory

import (
	"runtime"
	"sync/atomic"

	"github.com/corewasm/corewasm/internal/wasm"
)

// allocatorMemory is the portable LinearMemory backend: a plain Go byte
// slice reallocated on grow. It is safe for one grower concurrent with many
// readers/writers: growingFlag arbitrates a single grower via test-and-set,
// and activeOps lets that grower wait for in-flight accessors to finish
// touching the old slice before the pointer swap, instead of holding a lock
// across every load/store.
type allocatorMemory struct {
	buf atomic.Pointer[[]byte]

	growingFlag atomic.Bool
	activeOps   atomic.Int32

	limit uint32 // typ.Limits.Max in pages, or MaxPages if unbounded
}

func newAllocatorMemory(typ *wasm.MemoryType) (*allocatorMemory, error) {
	limit := uint32(MaxPages)
	if typ.Limits.Max != nil {
		limit = *typ.Limits.Max
	}
	b := make([]byte, uint64(typ.Limits.Min)*PageSize)
	m := &allocatorMemory{limit: limit}
	m.buf.Store(&b)
	return m, nil
}

// enter implements the accessor side of the grow handshake: spin while a
// grow is in flight, register as an active op, then re-check growingFlag
// since a grower may have claimed the slot between the spin and the
// increment; losing that race backs off and retries rather than racing the
// grower's quiesce/swap.
func (m *allocatorMemory) enter() []byte {
	for {
		for m.growingFlag.Load() {
			runtime.Gosched()
		}
		m.activeOps.Add(1)
		if !m.growingFlag.Load() {
			return *m.buf.Load()
		}
		m.activeOps.Add(-1)
	}
}

func (m *allocatorMemory) leave() {
	m.activeOps.Add(-1)
}

// beginGrow claims the single-grower slot, spinning briefly under
// contention (grow is rare; any steady contention indicates a caller bug,
// not a condition to optimize for).
func (m *allocatorMemory) beginGrow() {
	spins := 0
	for !m.growingFlag.CompareAndSwap(false, true) {
		spins++
		if spins > 1000 {
			runtime.Gosched()
			spins = 0
		}
	}
}

func (m *allocatorMemory) endGrow() {
	m.growingFlag.Store(false)
}

// quiesce waits for every accessor that entered before the grow was claimed
// to leave, bounded by repeated scheduler yields rather than an unbounded
// spin.
func (m *allocatorMemory) quiesce() {
	spins := 0
	for m.activeOps.Load() > 0 {
		spins++
		if spins > 1000 {
			runtime.Gosched()
			spins = 0
		}
	}
}

func (m *allocatorMemory) PageCount() uint32 {
	return uint32(len(*m.buf.Load()) / PageSize)
}

func (m *allocatorMemory) GrowStrictly(delta, limitPages uint32) (uint32, bool) {
	m.beginGrow()
	defer m.endGrow()

	cur := uint32(len(*m.buf.Load()) / PageSize)
	max := m.limit
	if limitPages < max {
		max = limitPages
	}
	if uint64(cur)+uint64(delta) > uint64(max) {
		return 0, false
	}

	m.quiesce()
	grown := make([]byte, uint64(cur+delta)*PageSize)
	copy(grown, *m.buf.Load())
	m.buf.Store(&grown)
	return cur, true
}

func (m *allocatorMemory) GrowSilently(delta, limitPages uint32) uint32 {
	m.beginGrow()
	defer m.endGrow()

	cur := uint32(len(*m.buf.Load()) / PageSize)
	max := m.limit
	if limitPages < max {
		max = limitPages
	}
	actual := delta
	if uint64(cur)+uint64(actual) > uint64(max) {
		if uint64(max) <= uint64(cur) {
			actual = 0
		} else {
			actual = max - cur
		}
	}
	if actual == 0 {
		return cur
	}

	m.quiesce()
	grown := make([]byte, uint64(cur+actual)*PageSize)
	copy(grown, *m.buf.Load())
	m.buf.Store(&grown)
	return cur
}

func (m *allocatorMemory) ReadByte(eff uint64) (byte, bool) {
	b := m.enter()
	defer m.leave()
	if eff >= uint64(len(b)) {
		return 0, false
	}
	return b[eff], true
}

func (m *allocatorMemory) ReadUint16LE(eff uint64) (uint16, bool) {
	b := m.enter()
	defer m.leave()
	if eff+2 > uint64(len(b)) {
		return 0, false
	}
	return littleEndianUint16(b[eff:]), true
}

func (m *allocatorMemory) ReadUint32LE(eff uint64) (uint32, bool) {
	b := m.enter()
	defer m.leave()
	if eff+4 > uint64(len(b)) {
		return 0, false
	}
	return littleEndianUint32(b[eff:]), true
}

func (m *allocatorMemory) ReadUint64LE(eff uint64) (uint64, bool) {
	b := m.enter()
	defer m.leave()
	if eff+8 > uint64(len(b)) {
		return 0, false
	}
	return littleEndianUint64(b[eff:]), true
}

func (m *allocatorMemory) WriteByte(eff uint64, v byte) bool {
	b := m.enter()
	defer m.leave()
	if eff >= uint64(len(b)) {
		return false
	}
	b[eff] = v
	return true
}

func (m *allocatorMemory) WriteUint16LE(eff uint64, v uint16) bool {
	b := m.enter()
	defer m.leave()
	if eff+2 > uint64(len(b)) {
		return false
	}
	littleEndianPutUint16(b[eff:], v)
	return true
}

func (m *allocatorMemory) WriteUint32LE(eff uint64, v uint32) bool {
	b := m.enter()
	defer m.leave()
	if eff+4 > uint64(len(b)) {
		return false
	}
	littleEndianPutUint32(b[eff:], v)
	return true
}

func (m *allocatorMemory) WriteUint64LE(eff uint64, v uint64) bool {
	b := m.enter()
	defer m.leave()
	if eff+8 > uint64(len(b)) {
		return false
	}
	littleEndianPutUint64(b[eff:], v)
	return true
}

func (m *allocatorMemory) Bytes() []byte {
	return *m.buf.Load()
}

func (m *allocatorMemory) Policy() wasm.BoundsCheckPolicy {
	return wasm.PolicyAllocator
}
