//go:build !(darwin || linux)

package memory

import (
	"errors"

	"github.com/corewasm/corewasm/internal/wasm"
)

const mmapSupported = false

func newMmapMemory(typ *wasm.MemoryType, cfg Config) (wasm.LinearMemory, error) {
	return nil, errors.New("memory: mmap backend is not supported on this platform")
}
