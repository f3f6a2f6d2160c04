package interpreter

import (
	"fmt"

	"github.com/corewasm/corewasm/internal/diag"
	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
	"github.com/corewasm/corewasm/internal/wasmdebug"
)

// Call invokes fn with params and returns its results. Mirrors the
// teacher's moduleEngine.Call (internal/engine/interpreter/interpreter.go):
// a fresh CallEngine per top-level call, frames accumulated for diagnostics,
// and any failure — a genuine Go panic (a corewasm bug) or a trap surfaced
// as a normal error from the dispatch loop — rendered through the same
// wasmdebug stack-trace builder.
func (e *Engine) Call(fn *wasm.FunctionInstance, params ...uint64) (results []uint64, err error) {
	if len(params) != len(fn.Type.Params) {
		return nil, fmt.Errorf("expected %d params, but passed %d", len(fn.Type.Params), len(params))
	}

	ce := newCallEngine(e)
	defer func() {
		if v := recover(); v != nil {
			err = buildTrace(ce, v)
		}
	}()

	for _, p := range params {
		ce.pushValue(p)
	}

	if ierr := ce.invoke(fn); ierr != nil {
		return nil, buildTrace(ce, ierr)
	}

	results = make([]uint64, len(fn.Type.Results))
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = ce.popValue()
	}
	return results, nil
}

func buildTrace(ce *CallEngine, recovered interface{}) error {
	builder := wasmdebug.NewErrorBuilder()
	for i := len(ce.frames) - 1; i >= 0; i-- {
		f := ce.frames[i]
		name := wasmdebug.FuncName(f.module.Name, f.source.DebugName, f.source.Index)
		builder.AddFrame(name, f.source.Type.Params, f.source.Type.Results)
	}
	return builder.FromRecovered(recovered)
}

// invoke runs fn, leaving its results on ce.stack. A host function is
// called directly with its params; a Wasm-defined function gets a fresh
// call frame over its translated body. On error the frame is left on
// ce.frames so the Call-level trace builder can still see it.
func (ce *CallEngine) invoke(fn *wasm.FunctionInstance) error {
	if fn.HostFunc != nil {
		params := make([]uint64, len(fn.Type.Params))
		for i := len(params) - 1; i >= 0; i-- {
			params[i] = ce.popValue()
		}
		for _, r := range fn.HostFunc(params) {
			ce.pushValue(r)
		}
		return nil
	}

	defModule := fn.Module
	localIdx := fn.Index - uint32(len(defModule.ImportedFunctions))
	compiled := ce.engine.compiledFunc(defModule.ID, localIdx)
	if compiled == nil {
		return diag.New(diag.KindLinkUnresolved, "function %s has no compiled body", fn.DebugName)
	}

	locals := make([]uint64, compiled.NumLocals)
	for i := len(compiled.Type.Params) - 1; i >= 0; i-- {
		locals[i] = ce.popValue()
	}

	frame := &callFrame{
		fn:     compiled,
		source: fn,
		module: defModule,
		locals: locals,
		ring:   newRingCursor(compiled.Option),
	}
	ce.pushFrame(frame)

	if err := ce.run(frame); err != nil {
		return err
	}
	ce.popFrame()
	return nil
}

func (ce *CallEngine) call(module *wasm.ModuleInstance, idx uint32) error {
	fn := module.ResolveFunction(idx)
	if fn == nil {
		return diag.New(diag.KindLinkUnresolved, "call target function index %d unresolved", idx)
	}
	return ce.invoke(fn)
}

func (ce *CallEngine) callIndirect(module *wasm.ModuleInstance, op *vmir.Op) error {
	elemIdx := uint32(ce.popValue())
	table := module.ResolveTable(uint32(op.B1))
	if table == nil || elemIdx >= table.Size() {
		size := uint32(0)
		if table != nil {
			size = table.Size()
		}
		return trapTableOutOfBounds(elemIdx, size)
	}
	fn := table.References[elemIdx]
	if fn == nil {
		return trapTableOutOfBounds(elemIdx, table.Size())
	}
	if int(op.Index) >= len(module.Types) {
		return diag.New(diag.KindLinkTypeMismatch, "call_indirect references unknown type index %d", op.Index)
	}
	expected := module.Types[op.Index]
	if !fn.Type.EqualTo(expected) {
		return trapIndirectCallTypeMismatch(expected.String(), fn.Type.String())
	}
	return ce.invoke(fn)
}
