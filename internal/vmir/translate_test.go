package vmir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewasm/corewasm/internal/wasm"
)

func i32i32_i32() *wasm.FunctionType {
	return &wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	}
}

func TestTranslateAddAndReturn(t *testing.T) {
	sig := i32i32_i32()
	code := &wasm.Code{
		Body: []wasm.Instruction{
			{Op: wasm.OpLocalGet, LocalIndex: 0},
			{Op: wasm.OpLocalGet, LocalIndex: 1},
			{Op: wasm.OpI32Add},
			{Op: wasm.OpEnd},
		},
	}

	cf, err := Translate(code, sig, nil, nil, wasm.PolicyGeneric, DefaultCompileOption())
	require.NoError(t, err)
	require.Len(t, cf.Body, 3) // Nop/End contribute nothing; the implicit End closes the top frame without emitting
	require.Equal(t, OpKindLocalGet, cf.Body[0].Kind)
	require.Equal(t, uint32(0), cf.Body[0].Index)
	require.Equal(t, OpKindLocalGet, cf.Body[1].Kind)
	require.Equal(t, uint32(1), cf.Body[1].Index)
	require.Equal(t, OpKindBinaryNumeric, cf.Body[2].Kind)
	require.Equal(t, wasm.OpI32Add, cf.Body[2].WasmOp)
}

func TestTranslateIfElse(t *testing.T) {
	sig := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := &wasm.Code{
		Body: []wasm.Instruction{
			{Op: wasm.OpLocalGet, LocalIndex: 0},
			{Op: wasm.OpIf, HasResult: true, BlockType: wasm.ValueTypeI32},
			{Op: wasm.OpI32Const, I32: 1},
			{Op: wasm.OpElse},
			{Op: wasm.OpI32Const, I32: 0},
			{Op: wasm.OpEnd},
			{Op: wasm.OpEnd},
		},
	}

	cf, err := Translate(code, sig, nil, nil, wasm.PolicyGeneric, DefaultCompileOption())
	require.NoError(t, err)

	// body: [0]=LocalGet, [1]=BrIf(invert,skip-to-else), [2]=ConstI32(1),
	// [3]=Br(skip-to-end), [4]=ConstI32(0)
	require.Len(t, cf.Body, 5)
	require.Equal(t, OpKindBrIf, cf.Body[1].Kind)
	require.True(t, cf.Body[1].B3)
	require.Equal(t, 4, cf.Body[1].Target) // jumps to the else-arm's const
	require.Equal(t, OpKindBr, cf.Body[3].Kind)
	require.Equal(t, 5, cf.Body[3].Target) // jumps past the else-arm to the function's end
}

func TestTranslateLoopBranchTargetsLoopHead(t *testing.T) {
	sig := &wasm.FunctionType{}
	code := &wasm.Code{
		Body: []wasm.Instruction{
			{Op: wasm.OpLoop, HasResult: false},
			{Op: wasm.OpBr, BrDepth: 0},
			{Op: wasm.OpEnd},
			{Op: wasm.OpEnd},
		},
	}

	cf, err := Translate(code, sig, nil, nil, wasm.PolicyGeneric, DefaultCompileOption())
	require.NoError(t, err)
	require.Len(t, cf.Body, 1)
	require.Equal(t, OpKindBr, cf.Body[0].Kind)
	require.Equal(t, 0, cf.Body[0].Target) // the loop body starts at index 0
}

func TestTranslateBrTableArityMismatchRejected(t *testing.T) {
	sig := &wasm.FunctionType{}
	code := &wasm.Code{
		Body: []wasm.Instruction{
			{Op: wasm.OpBlock, HasResult: true, BlockType: wasm.ValueTypeI32},
			{Op: wasm.OpBlock, HasResult: false},
			{Op: wasm.OpI32Const, I32: 0},
			{Op: wasm.OpBrTable, BrTableTargets: []uint32{0}, BrTableDefault: 1},
			{Op: wasm.OpEnd},
			{Op: wasm.OpI32Const, I32: 9},
			{Op: wasm.OpEnd},
			{Op: wasm.OpEnd},
		},
	}

	_, err := Translate(code, sig, nil, nil, wasm.PolicyGeneric, DefaultCompileOption())
	require.Error(t, err)
}

func TestTranslateCallTracksCalleeArity(t *testing.T) {
	callee := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}}
	sig := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}}
	code := &wasm.Code{
		Body: []wasm.Instruction{
			{Op: wasm.OpI32Const, I32: 5},
			{Op: wasm.OpCall, FuncIndex: 0},
			{Op: wasm.OpEnd},
		},
	}

	cf, err := Translate(code, sig, nil, []*wasm.FunctionType{callee}, wasm.PolicyGeneric, DefaultCompileOption())
	require.NoError(t, err)
	require.Len(t, cf.Body, 2)
	require.Equal(t, OpKindCall, cf.Body[1].Kind)
}

func TestTranslateUnknownCallTargetErrors(t *testing.T) {
	sig := &wasm.FunctionType{}
	code := &wasm.Code{
		Body: []wasm.Instruction{
			{Op: wasm.OpCall, FuncIndex: 3},
			{Op: wasm.OpEnd},
		},
	}
	_, err := Translate(code, sig, nil, nil, wasm.PolicyGeneric, DefaultCompileOption())
	require.Error(t, err)
}

func TestTranslateMemoryOpsCarryPolicy(t *testing.T) {
	sig := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	code := &wasm.Code{
		Body: []wasm.Instruction{
			{Op: wasm.OpI32Const, I32: 0},
			{Op: wasm.OpI32Load, Mem: wasm.MemArg{Offset: 4}},
			{Op: wasm.OpEnd},
		},
	}
	cf, err := Translate(code, sig, nil, nil, wasm.PolicyMmapDynamic, DefaultCompileOption())
	require.NoError(t, err)
	require.Equal(t, OpKindLoad, cf.Body[1].Kind)
	require.Equal(t, wasm.PolicyMmapDynamic, cf.Body[1].Policy)
	require.Equal(t, uint32(4), cf.Body[1].Mem.Offset)
}
