package corewasm

import (
	"github.com/sirupsen/logrus"

	"github.com/corewasm/corewasm/internal/memory"
	"github.com/corewasm/corewasm/internal/vmir"
)

// RuntimeConfig controls Runtime behavior. The zero value is not usable;
// construct one with NewRuntimeConfig. Mirrors the teacher's
// RuntimeConfig/engineLessConfig (config.go), generalized from "pick an
// engine" to "pick the compile and memory knobs this core exposes".
type RuntimeConfig struct {
	logger        logrus.FieldLogger
	memoryConfig  memory.Config
	compileOption vmir.CompileOption
}

// NewRuntimeConfig returns the default configuration: auto-selected memory
// backend, no stack-top caching, strict memory.grow, and a nil logger
// (Runtime falls back to logrus.StandardLogger via wasm.NewRegistry).
func NewRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		memoryConfig:  memory.DefaultConfig(),
		compileOption: vmir.DefaultCompileOption(),
	}
}

// WithLogger directs diagnostic logging (module registration, link phases,
// segment application) to log instead of the default standard logger.
func (c RuntimeConfig) WithLogger(log logrus.FieldLogger) RuntimeConfig {
	c.logger = log
	return c
}

// WithMemoryConfig overrides how locally-defined linear memories are backed
// (C2): allocator-only, mmap-only (an error on platforms without mmap
// support), or auto (the default).
func (c RuntimeConfig) WithMemoryConfig(cfg memory.Config) RuntimeConfig {
	c.memoryConfig = cfg
	return c
}

// WithCompileOption overrides the translator tuning knobs (stack-top
// caching ranges, the recorded tail-call flag, memory.grow strictness)
// every module instantiated afterward compiles with.
func (c RuntimeConfig) WithCompileOption(opt vmir.CompileOption) RuntimeConfig {
	c.compileOption = opt
	return c
}

// WithMemoryGrowStrict toggles CompileOption.GrowStrict without requiring
// the caller to round-trip through WithCompileOption.
func (c RuntimeConfig) WithMemoryGrowStrict(strict bool) RuntimeConfig {
	c.compileOption.GrowStrict = strict
	return c
}
