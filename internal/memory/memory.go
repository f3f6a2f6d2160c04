// Package memory implements the linear-memory backends that satisfy
// wasm.LinearMemory: a plain-allocator backend portable to any GOOS/GOARCH,
// and an mmap-backed backend on unix platforms that trades address-space
// reservation for cheaper bounds checks at translation time.
package memory

import (
	"fmt"

	"github.com/corewasm/corewasm/internal/wasm"
)

// PageSize is the fixed Wasm page size in bytes.
const PageSize = 65536

// MaxPages is the absolute ceiling on page count addressable by a 32-bit
// effective address space.
const MaxPages = 65536

// Backend selects which concrete implementation New constructs.
type Backend byte

const (
	// BackendAuto picks BackendMmap when the platform supports it and the
	// type's max is known and reasonably small, falling back to
	// BackendAllocator otherwise.
	BackendAuto Backend = iota
	BackendAllocator
	BackendMmap
)

// Config controls how New constructs a memory for one MemoryType.
type Config struct {
	Backend Backend

	// MmapReserveMax bounds how large an mmap reservation New is willing to
	// make when the type's Limits.Max is absent; memories with no declared
	// maximum fall back to BackendAllocator under BackendAuto rather than
	// reserving MaxPages*PageSize (4GiB) up front.
	MmapReserveMax uint32
}

// DefaultConfig mirrors the teacher's "reserve 4GiB for a bounded memory,
// fall back to dynamic growth otherwise" posture, scaled down to a reserve
// ceiling that is cheap to mmap on every supported platform.
func DefaultConfig() Config {
	return Config{Backend: BackendAuto, MmapReserveMax: 16384} // 1GiB
}

// New builds the backend selected by cfg for a memory of the given type,
// initialized to typ.Limits.Min pages.
func New(typ *wasm.MemoryType, cfg Config) (wasm.LinearMemory, error) {
	if !typ.Limits.Valid() {
		return nil, fmt.Errorf("memory: invalid limits min=%d max=%v", typ.Limits.Min, typ.Limits.Max)
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = chooseAutoBackend(typ, cfg)
	}

	switch backend {
	case BackendMmap:
		return newMmapMemory(typ, cfg)
	case BackendAllocator:
		return newAllocatorMemory(typ)
	default:
		return nil, fmt.Errorf("memory: unknown backend %d", backend)
	}
}

func chooseAutoBackend(typ *wasm.MemoryType, cfg Config) Backend {
	if !mmapSupported {
		return BackendAllocator
	}
	if typ.Limits.Max == nil {
		return BackendAllocator
	}
	if *typ.Limits.Max > cfg.MmapReserveMax {
		return BackendAllocator
	}
	return BackendMmap
}

// effectivePolicy maps a backend to a BoundsCheckPolicy without looking at
// the reservation: BackendMmap maps to PolicyMmapDynamic, every other
// backend to PolicyAllocator. Nothing in this package calls it; the mmap
// backend's own Policy method, which SelectForCompile consults, reports
// PolicyMmapFull when its reservation covers the type's whole maximum.
func effectivePolicy(backend Backend) wasm.BoundsCheckPolicy {
	switch backend {
	case BackendMmap:
		return wasm.PolicyMmapDynamic
	default:
		return wasm.PolicyAllocator
	}
}

func littleEndianPutUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func littleEndianUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func littleEndianPutUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func littleEndianUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func littleEndianPutUint64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

func littleEndianUint64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}
