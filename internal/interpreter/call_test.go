package interpreter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewasm/corewasm/internal/diag"
	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
)

func mustCompile(t *testing.T, code *wasm.Code, sig *wasm.FunctionType, funcTypes []*wasm.FunctionType) *vmir.CompiledFunction {
	t.Helper()
	cf, err := vmir.Translate(code, sig, nil, funcTypes, wasm.PolicyGeneric, vmir.DefaultCompileOption())
	require.NoError(t, err)
	return cf
}

func TestCallAddFunction(t *testing.T) {
	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := &wasm.Code{Body: []wasm.Instruction{
		{Op: wasm.OpLocalGet, LocalIndex: 0},
		{Op: wasm.OpLocalGet, LocalIndex: 1},
		{Op: wasm.OpI32Add},
		{Op: wasm.OpEnd},
	}}
	cf := mustCompile(t, code, sig, nil)

	module := &wasm.ModuleInstance{Name: "m", ID: "m"}
	fn := &wasm.FunctionInstance{Type: sig, Module: module, Index: 0, Code: code, DebugName: "add"}
	module.Functions = []*wasm.FunctionInstance{fn}

	e := NewEngine()
	e.codes = map[wasm.ModuleID][]*vmir.CompiledFunction{module.ID: {cf}}

	results, err := e.Call(fn, 19, 23)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestCallDivisionByZeroTrapsWithStackTrace(t *testing.T) {
	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := &wasm.Code{Body: []wasm.Instruction{
		{Op: wasm.OpLocalGet, LocalIndex: 0},
		{Op: wasm.OpI32Const, I32: 0},
		{Op: wasm.OpI32DivS},
		{Op: wasm.OpEnd},
	}}
	cf := mustCompile(t, code, sig, nil)

	module := &wasm.ModuleInstance{Name: "m", ID: "m"}
	fn := &wasm.FunctionInstance{Type: sig, Module: module, Index: 0, Code: code, DebugName: "div"}
	module.Functions = []*wasm.FunctionInstance{fn}

	e := NewEngine()
	e.codes = map[wasm.ModuleID][]*vmir.CompiledFunction{module.ID: {cf}}

	_, err := e.Call(fn, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "wasm stack trace")
	require.Contains(t, err.Error(), "m.div")

	var de *diag.Error
	require.True(t, errors.As(err, &de))
	require.Equal(t, diag.KindDivisionByZero, de.Kind)
}

func TestCallNestedCallsAdjustStackCorrectly(t *testing.T) {
	// callee(x) = x + 1
	calleeSig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	calleeCode := &wasm.Code{Body: []wasm.Instruction{
		{Op: wasm.OpLocalGet, LocalIndex: 0},
		{Op: wasm.OpI32Const, I32: 1},
		{Op: wasm.OpI32Add},
		{Op: wasm.OpEnd},
	}}

	// caller(x) = callee(x) * 2
	callerSig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	callerCode := &wasm.Code{Body: []wasm.Instruction{
		{Op: wasm.OpLocalGet, LocalIndex: 0},
		{Op: wasm.OpCall, FuncIndex: 0},
		{Op: wasm.OpI32Const, I32: 2},
		{Op: wasm.OpI32Mul},
		{Op: wasm.OpEnd},
	}}

	funcTypes := []*wasm.FunctionType{calleeSig, callerSig}
	calleeCF := mustCompile(t, calleeCode, calleeSig, funcTypes)
	callerCF := mustCompile(t, callerCode, callerSig, funcTypes)

	module := &wasm.ModuleInstance{Name: "m", ID: "m"}
	callee := &wasm.FunctionInstance{Type: calleeSig, Module: module, Index: 0, Code: calleeCode, DebugName: "callee"}
	caller := &wasm.FunctionInstance{Type: callerSig, Module: module, Index: 1, Code: callerCode, DebugName: "caller"}
	module.Functions = []*wasm.FunctionInstance{callee, caller}

	e := NewEngine()
	e.codes = map[wasm.ModuleID][]*vmir.CompiledFunction{module.ID: {calleeCF, callerCF}}

	results, err := e.Call(caller, 10)
	require.NoError(t, err)
	require.Equal(t, []uint64{22}, results)
}
