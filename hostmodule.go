package corewasm

import (
	"fmt"

	"github.com/corewasm/corewasm/api"
	"github.com/corewasm/corewasm/internal/wasm"
)

// HostFunc is a call-out-to-host thunk (spec.md §6): it receives the
// caller's operand values in Wasm's uint64 encoding (see api.ValueType) and
// returns its results the same way. Mirrors the shape
// wasm.FunctionInstance.HostFunc and CallEngine.invoke already execute; a
// HostModuleBuilder is only sugar for building the synthetic
// *wasm.ModuleInstance that holds them.
type HostFunc func(params []uint64) []uint64

// HostModuleBuilder assembles a module whose functions are implemented in Go
// instead of translated from a Wasm body. Grounded on the teacher's
// HostModuleBuilder (builder.go), simplified to this core's raw uint64
// calling convention (no reflection-based signature inference, since that is
// a decoding/ABI concern the core does not own).
type HostModuleBuilder struct {
	r          *Runtime
	moduleName string
	funcs      []hostFuncDef
}

type hostFuncDef struct {
	exportName     string
	params, results []api.ValueType
	fn             HostFunc
}

// NewHostModuleBuilder starts building a host module that will be
// instantiated under moduleName.
func (r *Runtime) NewHostModuleBuilder(moduleName string) *HostModuleBuilder {
	return &HostModuleBuilder{r: r, moduleName: moduleName}
}

// WithFunc registers fn under exportName with the given signature. Returns
// the same builder for chaining.
func (b *HostModuleBuilder) WithFunc(exportName string, params, results []api.ValueType, fn HostFunc) *HostModuleBuilder {
	b.funcs = append(b.funcs, hostFuncDef{exportName: exportName, params: params, results: results, fn: fn})
	return b
}

// Instantiate builds and registers the host module. Like
// Runtime.InstantiateModule, it must be called before Runtime.Link, since
// LinkAll needs every participating module's exports present when it
// resolves the other modules' imports.
func (b *HostModuleBuilder) Instantiate() (api.Module, error) {
	if b.r.linked {
		return nil, fmt.Errorf("corewasm: NewHostModuleBuilder(%s).Instantiate called after Link; instantiate every module first", b.moduleName)
	}

	mi := &wasm.ModuleInstance{
		Exports: make(map[string]*wasm.Export, len(b.funcs)),
	}
	for i, def := range b.funcs {
		idx := uint32(i)
		mi.Functions = append(mi.Functions, &wasm.FunctionInstance{
			Type:      &wasm.FunctionType{Params: def.params, Results: def.results},
			Module:    mi,
			Index:     idx,
			DebugName: def.exportName,
			HostFunc:  def.fn,
		})
		mi.Exports[def.exportName] = &wasm.Export{Name: def.exportName, Type: wasm.ExternTypeFunc, Index: idx}
	}

	if err := b.r.registry.Register(b.moduleName, mi); err != nil {
		return nil, err
	}
	return &moduleHandle{r: b.r, mi: mi}, nil
}
