// Package corewasm is the host-facing surface over the execution core: a
// Runtime instantiates parsed modules (decoding and validating Wasm bytes is
// out of scope here — callers supply an already-parsed *wasm.Module), links
// them against each other and against host modules, then runs their
// exported functions through the threaded-dispatch interpreter.
package corewasm

import (
	"context"
	"fmt"

	"github.com/corewasm/corewasm/api"
	"github.com/corewasm/corewasm/internal/interpreter"
	"github.com/corewasm/corewasm/internal/linker"
	"github.com/corewasm/corewasm/internal/wasm"
)

// Runtime owns one Registry, one Linker over it, and the Engine that
// compiles and executes every module built through it. Mirrors the
// teacher's Runtime/store/engine split (runtime.go, store.go), collapsed to
// the three collaborators this core actually needs.
type Runtime struct {
	ctx      context.Context
	config   RuntimeConfig
	registry *wasm.Registry
	linker   *linker.Linker
	engine   *interpreter.Engine
	linked   bool
}

// NewRuntime constructs a Runtime. When ctx is nil, it defaults to
// context.Background, mirroring engineLessConfig's default in the teacher's
// config.go.
func NewRuntime(ctx context.Context, cfg RuntimeConfig) *Runtime {
	if ctx == nil {
		ctx = context.Background()
	}
	reg := wasm.NewRegistry(cfg.logger)
	return &Runtime{
		ctx:      ctx,
		config:   cfg,
		registry: reg,
		linker:   linker.New(reg, cfg.logger),
		engine:   interpreter.NewEngine(),
	}
}

// InstantiateModule runs linker phase 1 (Build) for mod under name and
// compiles its locally-defined functions. The module's imports are not
// resolved yet — call Link once every module that will participate has been
// instantiated.
func (r *Runtime) InstantiateModule(name string, mod *wasm.Module) (api.Module, error) {
	if r.linked {
		return nil, fmt.Errorf("corewasm: InstantiateModule(%s) called after Link; instantiate every module first", name)
	}
	mi, err := r.linker.Build(name, mod, r.config.memoryConfig)
	if err != nil {
		return nil, err
	}
	if err := r.engine.Compile(mi, r.config.compileOption); err != nil {
		return nil, fmt.Errorf("corewasm: compiling module %s: %w", name, err)
	}
	return &moduleHandle{r: r, mi: mi}, nil
}

// Link runs linker phases 2-7 across every module instantiated so far:
// resolving imports, validating linked types, evaluating global
// initializers, and applying active element/data segments. Must be called
// exactly once, after every participating module has been instantiated and
// before any exported function is invoked.
func (r *Runtime) Link() error {
	if r.linked {
		return fmt.Errorf("corewasm: Link already called")
	}
	if err := r.linker.LinkAll(); err != nil {
		return err
	}
	r.linked = true
	return nil
}

// Module looks up an already-instantiated module by name, or nil.
func (r *Runtime) Module(name string) api.Module {
	mi := r.registry.Lookup(name)
	if mi == nil {
		return nil
	}
	return &moduleHandle{r: r, mi: mi}
}

// Close releases every module this Runtime instantiated by dropping the
// registry's bookkeeping. It does not unmap mmap-backed memory
// reservations: nothing in the core calls the mmap backend's Close, and no
// finalizer is registered for them.
func (r *Runtime) Close(ctx context.Context) error {
	for _, name := range r.registry.Names() {
		r.registry.Close(name)
	}
	return nil
}
