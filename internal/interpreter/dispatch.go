package interpreter

import (
	"math"

	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
)

// run executes frame's compiled body to completion, leaving its results on
// ce.stack. Mirrors the teacher's callNativeFunc dispatch loop
// (internal/engine/interpreter/interpreter.go), generalized from its
// interpreterOp union to vmir.Op.
func (ce *CallEngine) run(frame *callFrame) error {
	body := frame.fn.Body
	bodyLen := uint64(len(body))
	for frame.pc < bodyLen {
		op := &body[frame.pc]
		switch op.Kind {
		case vmir.OpKindUnreachable:
			return trapUnreachable()

		case vmir.OpKindNop:
			// never emitted by the translator; kept for completeness.

		case vmir.OpKindBr:
			ce.drop(op.ToDrop)
			frame.pc = uint64(op.Target)
			continue

		case vmir.OpKindBrIf:
			cond := ce.popValue() != 0
			if op.B3 {
				cond = !cond
			}
			if cond {
				ce.drop(op.ToDrop)
				frame.pc = uint64(op.Target)
				continue
			}

		case vmir.OpKindBrTable:
			idx := uint32(ce.popValue())
			last := len(op.Targets) - 1
			if int(idx) > last {
				idx = uint32(last)
			}
			t := op.Targets[idx]
			ce.drop(t.ToDrop)
			frame.pc = uint64(t.Target)
			continue

		case vmir.OpKindReturn:
			ce.drop(op.ToDrop)
			return nil

		case vmir.OpKindCall:
			if err := ce.call(frame.module, op.Index); err != nil {
				return err
			}

		case vmir.OpKindCallIndirect:
			if err := ce.callIndirect(frame.module, op); err != nil {
				return err
			}

		case vmir.OpKindDrop:
			ce.popValue()

		case vmir.OpKindSelect:
			cond := ce.popValue() != 0
			b := ce.popValue()
			a := ce.popValue()
			if cond {
				ce.pushValue(a)
			} else {
				ce.pushValue(b)
			}

		case vmir.OpKindLocalGet:
			ce.pushValue(frame.locals[op.Index])

		case vmir.OpKindLocalSet:
			frame.locals[op.Index] = ce.popValue()

		case vmir.OpKindLocalTee:
			v := ce.stack[len(ce.stack)-1]
			frame.locals[op.Index] = v
			if frame.module != nil {
				// advance the ring cursor only when caching is enabled for
				// this value type; see internal/vmir's CompileOption for why
				// the cursor is a runtime concern rather than a translate-time
				// slot assignment. The position is bookkeeping only: no
				// handler or test reads it, and correctness never depends on
				// it, since frame.locals above is always the source of truth.
				family := stackTopFamily(op.B1)
				if frame.fn.Option.StackTopEnabled(op.B1) {
					begin, end := stackTopRange(frame.fn.Option, op.B1)
					frame.ring.pos[family] = vmir.RingNextPos(frame.ring.pos[family], begin, end)
				}
			}

		case vmir.OpKindGlobalGet:
			g := frame.module.ResolveGlobal(op.Index)
			ce.pushValue(g.Get())

		case vmir.OpKindGlobalSet:
			g := frame.module.ResolveGlobal(op.Index)
			g.Set(ce.popValue())

		case vmir.OpKindMemorySize:
			mem := frame.module.ResolveMemory()
			ce.pushValue(uint64(mem.PageCount()))

		case vmir.OpKindMemoryGrow:
			mem := frame.module.ResolveMemory()
			delta := uint32(ce.popValue())
			limit := memoryLimitPages(frame.module)
			if op.B3 {
				prev, ok := mem.GrowStrictly(delta, limit)
				if !ok {
					ce.pushValue(uint64(uint32(0xffffffff)))
				} else {
					ce.pushValue(uint64(prev))
				}
			} else {
				ce.pushValue(uint64(mem.GrowSilently(delta, limit)))
			}

		case vmir.OpKindConstI32:
			ce.pushValue(uint64(uint32(op.ConstI32)))
		case vmir.OpKindConstI64:
			ce.pushValue(uint64(op.ConstI64))
		case vmir.OpKindConstF32:
			ce.pushValue(uint64(math.Float32bits(op.ConstF32)))
		case vmir.OpKindConstF64:
			ce.pushValue(math.Float64bits(op.ConstF64))

		case vmir.OpKindLoad:
			if err := ce.execLoad(frame, op); err != nil {
				return err
			}
		case vmir.OpKindStore:
			if err := ce.execStore(frame, op); err != nil {
				return err
			}

		case vmir.OpKindEqz:
			ce.execEqz(op.WasmOp)
		case vmir.OpKindCompare:
			ce.execCompare(op.WasmOp)
		case vmir.OpKindUnaryNumeric:
			if err := ce.execUnary(op.WasmOp); err != nil {
				return err
			}
		case vmir.OpKindBinaryNumeric:
			if err := ce.execBinary(op.WasmOp); err != nil {
				return err
			}
		case vmir.OpKindConversion:
			if err := ce.execConversion(op.WasmOp); err != nil {
				return err
			}
		}
		frame.pc++
	}
	return nil
}

func stackTopRange(opt vmir.CompileOption, t wasm.ValueType) (int, int) {
	switch t {
	case wasm.ValueTypeI32:
		return opt.I32StackTopBegin, opt.I32StackTopEnd
	case wasm.ValueTypeI64:
		return opt.I64StackTopBegin, opt.I64StackTopEnd
	case wasm.ValueTypeF32:
		return opt.F32StackTopBegin, opt.F32StackTopEnd
	default:
		return opt.F64StackTopBegin, opt.F64StackTopEnd
	}
}

func memoryLimitPages(m *wasm.ModuleInstance) uint32 {
	var limits *wasm.Limits
	switch {
	case len(m.Memories) > 0 && m.Source != nil && len(m.Source.MemorySection) > 0:
		limits = &m.Source.MemorySection[0].Limits
	case len(m.ImportedMemories) > 0:
		if desc := m.ImportedMemories[0].Desc; desc != nil && desc.DescMemory != nil {
			limits = &desc.DescMemory.Limits
		}
	}
	if limits != nil && limits.Max != nil {
		return *limits.Max
	}
	return wasm.MaxMemoryPages
}
