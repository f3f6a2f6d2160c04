package interpreter

import (
	"math"

	"github.com/corewasm/corewasm/internal/vmir"
	"github.com/corewasm/corewasm/internal/wasm"
)

// effectiveAddress computes eff = (addr + static_offset) mod 2^32: wasm32
// address arithmetic wraps in unsigned 32-bit arithmetic, it does not widen
// and trap on overflow past 2^32. The uint32 sum is then widened to uint64
// only so the bounds check against memory length (itself representable up
// to 2^32) has no representational overflow of its own.
func effectiveAddress(base uint32, mem wasm.MemArg) uint64 {
	return uint64(base + mem.Offset)
}

func (ce *CallEngine) execLoad(frame *callFrame, op *vmir.Op) error {
	base := uint32(ce.popValue())
	eff := effectiveAddress(base, op.Mem)
	mem := frame.module.ResolveMemory()
	// Wasm 1.0 has at most one memory per module, always index 0.
	oob := func(width uint32) error {
		return trapMemoryOutOfBounds(0, op.Mem.Offset, eff, uint64(len(mem.Bytes())), width)
	}

	switch op.WasmOp {
	case wasm.OpI32Load:
		v, ok := mem.ReadUint32LE(eff)
		if !ok {
			return oob(4)
		}
		ce.pushValue(uint64(v))
	case wasm.OpF32Load:
		v, ok := mem.ReadUint32LE(eff)
		if !ok {
			return oob(4)
		}
		ce.pushValue(uint64(v))
	case wasm.OpI64Load, wasm.OpF64Load:
		v, ok := mem.ReadUint64LE(eff)
		if !ok {
			return oob(8)
		}
		ce.pushValue(v)
	case wasm.OpI32Load8S:
		b, ok := mem.ReadByte(eff)
		if !ok {
			return oob(1)
		}
		ce.pushValue(uint64(uint32(int32(int8(b)))))
	case wasm.OpI32Load8U:
		b, ok := mem.ReadByte(eff)
		if !ok {
			return oob(1)
		}
		ce.pushValue(uint64(b))
	case wasm.OpI32Load16S:
		v, ok := mem.ReadUint16LE(eff)
		if !ok {
			return oob(2)
		}
		ce.pushValue(uint64(uint32(int32(int16(v)))))
	case wasm.OpI32Load16U:
		v, ok := mem.ReadUint16LE(eff)
		if !ok {
			return oob(2)
		}
		ce.pushValue(uint64(v))
	case wasm.OpI64Load8S:
		b, ok := mem.ReadByte(eff)
		if !ok {
			return oob(1)
		}
		ce.pushValue(uint64(int64(int8(b))))
	case wasm.OpI64Load8U:
		b, ok := mem.ReadByte(eff)
		if !ok {
			return oob(1)
		}
		ce.pushValue(uint64(b))
	case wasm.OpI64Load16S:
		v, ok := mem.ReadUint16LE(eff)
		if !ok {
			return oob(2)
		}
		ce.pushValue(uint64(int64(int16(v))))
	case wasm.OpI64Load16U:
		v, ok := mem.ReadUint16LE(eff)
		if !ok {
			return oob(2)
		}
		ce.pushValue(uint64(v))
	case wasm.OpI64Load32S:
		v, ok := mem.ReadUint32LE(eff)
		if !ok {
			return oob(4)
		}
		ce.pushValue(uint64(int64(int32(v))))
	case wasm.OpI64Load32U:
		v, ok := mem.ReadUint32LE(eff)
		if !ok {
			return oob(4)
		}
		ce.pushValue(uint64(v))
	}
	return nil
}

func (ce *CallEngine) execStore(frame *callFrame, op *vmir.Op) error {
	v := ce.popValue()
	base := uint32(ce.popValue())
	eff := effectiveAddress(base, op.Mem)
	mem := frame.module.ResolveMemory()
	oob := func(width uint32) error {
		return trapMemoryOutOfBounds(0, op.Mem.Offset, eff, uint64(len(mem.Bytes())), width)
	}

	switch op.WasmOp {
	case wasm.OpI32Store, wasm.OpF32Store:
		if !mem.WriteUint32LE(eff, uint32(v)) {
			return oob(4)
		}
	case wasm.OpI64Store, wasm.OpF64Store:
		if !mem.WriteUint64LE(eff, v) {
			return oob(8)
		}
	case wasm.OpI32Store8, wasm.OpI64Store8:
		if !mem.WriteByte(eff, byte(v)) {
			return oob(1)
		}
	case wasm.OpI32Store16, wasm.OpI64Store16:
		if !mem.WriteUint16LE(eff, uint16(v)) {
			return oob(2)
		}
	case wasm.OpI64Store32:
		if !mem.WriteUint32LE(eff, uint32(v)) {
			return oob(4)
		}
	}
	return nil
}

func f32bits(v uint64) float32 { return math.Float32frombits(uint32(v)) }
func f64bits(v uint64) float64 { return math.Float64frombits(v) }
