//go:build darwin || linux

package memory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/corewasm/corewasm/internal/wasm"
)

// mmapSupported gates BackendAuto's choice; darwin/linux builds of
// mmap_unix.go set this true.
const mmapSupported = true

// mmapMemory reserves up to cfg.MmapReserveMax pages of address space once
// (fewer when the type's Max is smaller, never fewer than its Min), up
// front, with PROT_NONE, and grows by mprotecting a longer PROT_READ|
// PROT_WRITE prefix rather than reallocating and copying. The base address
// never moves for the memory's lifetime, so the accessors' bounds checks
// never need a reload of the base pointer, only of the atomically-updated
// current length.
type mmapMemory struct {
	mu sync.Mutex // serializes Grow against itself; reads/writes never take it

	base []byte // length == reserved bytes, PROT_NONE beyond length()

	length atomic.Uint64 // current committed length in bytes

	reservedPages uint32
	limit         uint32 // typ.Limits.Max in pages, or reservedPages if unbounded
}

func newMmapMemory(typ *wasm.MemoryType, cfg Config) (*mmapMemory, error) {
	reserved := cfg.MmapReserveMax
	if typ.Limits.Max != nil && *typ.Limits.Max < reserved {
		reserved = *typ.Limits.Max
	}
	if reserved < typ.Limits.Min {
		reserved = typ.Limits.Min
	}

	b, err := unix.Mmap(-1, 0, int(reserved)*PageSize, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memory: mmap reserve %d bytes: %w", int(reserved)*PageSize, err)
	}

	limit := reserved
	if typ.Limits.Max != nil {
		limit = *typ.Limits.Max
	}

	m := &mmapMemory{base: b, reservedPages: reserved, limit: limit}
	if typ.Limits.Min > 0 {
		if err := unix.Mprotect(b[:uint64(typ.Limits.Min)*PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			_ = unix.Munmap(b)
			return nil, fmt.Errorf("memory: mprotect initial %d pages: %w", typ.Limits.Min, err)
		}
	}
	m.length.Store(uint64(typ.Limits.Min) * PageSize)

	return m, nil
}

func (m *mmapMemory) PageCount() uint32 {
	return uint32(m.length.Load() / PageSize)
}

func (m *mmapMemory) GrowStrictly(delta, limitPages uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := uint32(m.length.Load() / PageSize)
	max := m.limit
	if limitPages < max {
		max = limitPages
	}
	next := uint64(cur) + uint64(delta)
	if next > uint64(max) {
		return 0, false
	}
	if next > uint64(m.reservedPages) {
		// Reservation too small for this grow; out of scope for the mmap
		// backend's fixed-reservation design, report failure rather than
		// silently falling back to reallocation.
		return 0, false
	}
	if err := unix.Mprotect(m.base[:next*PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, false
	}
	m.length.Store(next * PageSize)
	return cur, true
}

func (m *mmapMemory) GrowSilently(delta, limitPages uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := uint32(m.length.Load() / PageSize)
	max := m.limit
	if limitPages < max {
		max = limitPages
	}
	if max > m.reservedPages {
		max = m.reservedPages
	}
	actual := delta
	if uint64(cur)+uint64(actual) > uint64(max) {
		if uint64(max) <= uint64(cur) {
			return cur
		}
		actual = max - cur
	}
	next := uint64(cur) + uint64(actual)
	if err := unix.Mprotect(m.base[:next*PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return cur
	}
	m.length.Store(next * PageSize)
	return cur
}

func (m *mmapMemory) ReadByte(eff uint64) (byte, bool) {
	if eff >= m.length.Load() {
		return 0, false
	}
	return m.base[eff], true
}

func (m *mmapMemory) ReadUint16LE(eff uint64) (uint16, bool) {
	if eff+2 > m.length.Load() {
		return 0, false
	}
	return littleEndianUint16(m.base[eff:]), true
}

func (m *mmapMemory) ReadUint32LE(eff uint64) (uint32, bool) {
	if eff+4 > m.length.Load() {
		return 0, false
	}
	return littleEndianUint32(m.base[eff:]), true
}

func (m *mmapMemory) ReadUint64LE(eff uint64) (uint64, bool) {
	if eff+8 > m.length.Load() {
		return 0, false
	}
	return littleEndianUint64(m.base[eff:]), true
}

func (m *mmapMemory) WriteByte(eff uint64, v byte) bool {
	if eff >= m.length.Load() {
		return false
	}
	m.base[eff] = v
	return true
}

func (m *mmapMemory) WriteUint16LE(eff uint64, v uint16) bool {
	if eff+2 > m.length.Load() {
		return false
	}
	littleEndianPutUint16(m.base[eff:], v)
	return true
}

func (m *mmapMemory) WriteUint32LE(eff uint64, v uint32) bool {
	if eff+4 > m.length.Load() {
		return false
	}
	littleEndianPutUint32(m.base[eff:], v)
	return true
}

func (m *mmapMemory) WriteUint64LE(eff uint64, v uint64) bool {
	if eff+8 > m.length.Load() {
		return false
	}
	littleEndianPutUint64(m.base[eff:], v)
	return true
}

func (m *mmapMemory) Bytes() []byte {
	return m.base[:m.length.Load()]
}

func (m *mmapMemory) Policy() wasm.BoundsCheckPolicy {
	if uint64(m.reservedPages) == uint64(m.limit) {
		return wasm.PolicyMmapFull
	}
	return wasm.PolicyMmapDynamic
}

// Close releases the reservation. Not part of wasm.LinearMemory, and nothing
// in this repository calls it: a reservation stays mapped after its module
// or Runtime is closed.
func (m *mmapMemory) Close() error {
	return unix.Munmap(m.base)
}
