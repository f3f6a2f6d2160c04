package interpreter

import (
	"math"
	"math/bits"

	"github.com/corewasm/corewasm/internal/moremath"
	"github.com/corewasm/corewasm/internal/wasm"
)

func (ce *CallEngine) execEqz(op wasm.Opcode) {
	v := ce.popValue()
	var r uint64
	if op == wasm.OpI32Eqz {
		if uint32(v) == 0 {
			r = 1
		}
	} else {
		if v == 0 {
			r = 1
		}
	}
	ce.pushValue(r)
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (ce *CallEngine) execCompare(op wasm.Opcode) {
	b := ce.popValue()
	a := ce.popValue()
	var r bool
	switch op {
	case wasm.OpI32Eq:
		r = uint32(a) == uint32(b)
	case wasm.OpI32Ne:
		r = uint32(a) != uint32(b)
	case wasm.OpI32LtS:
		r = int32(a) < int32(b)
	case wasm.OpI32LtU:
		r = uint32(a) < uint32(b)
	case wasm.OpI32GtS:
		r = int32(a) > int32(b)
	case wasm.OpI32GtU:
		r = uint32(a) > uint32(b)
	case wasm.OpI32LeS:
		r = int32(a) <= int32(b)
	case wasm.OpI32LeU:
		r = uint32(a) <= uint32(b)
	case wasm.OpI32GeS:
		r = int32(a) >= int32(b)
	case wasm.OpI32GeU:
		r = uint32(a) >= uint32(b)

	case wasm.OpI64Eq:
		r = a == b
	case wasm.OpI64Ne:
		r = a != b
	case wasm.OpI64LtS:
		r = int64(a) < int64(b)
	case wasm.OpI64LtU:
		r = a < b
	case wasm.OpI64GtS:
		r = int64(a) > int64(b)
	case wasm.OpI64GtU:
		r = a > b
	case wasm.OpI64LeS:
		r = int64(a) <= int64(b)
	case wasm.OpI64LeU:
		r = a <= b
	case wasm.OpI64GeS:
		r = int64(a) >= int64(b)
	case wasm.OpI64GeU:
		r = a >= b

	case wasm.OpF32Eq:
		r = f32bits(a) == f32bits(b)
	case wasm.OpF32Ne:
		r = f32bits(a) != f32bits(b)
	case wasm.OpF32Lt:
		r = f32bits(a) < f32bits(b)
	case wasm.OpF32Gt:
		r = f32bits(a) > f32bits(b)
	case wasm.OpF32Le:
		r = f32bits(a) <= f32bits(b)
	case wasm.OpF32Ge:
		r = f32bits(a) >= f32bits(b)

	case wasm.OpF64Eq:
		r = f64bits(a) == f64bits(b)
	case wasm.OpF64Ne:
		r = f64bits(a) != f64bits(b)
	case wasm.OpF64Lt:
		r = f64bits(a) < f64bits(b)
	case wasm.OpF64Gt:
		r = f64bits(a) > f64bits(b)
	case wasm.OpF64Le:
		r = f64bits(a) <= f64bits(b)
	case wasm.OpF64Ge:
		r = f64bits(a) >= f64bits(b)
	}
	ce.pushValue(boolU64(r))
}

func (ce *CallEngine) execUnary(op wasm.Opcode) error {
	v := ce.popValue()
	switch op {
	case wasm.OpI32Clz:
		ce.pushValue(uint64(bits.LeadingZeros32(uint32(v))))
	case wasm.OpI32Ctz:
		ce.pushValue(uint64(bits.TrailingZeros32(uint32(v))))
	case wasm.OpI32Popcnt:
		ce.pushValue(uint64(bits.OnesCount32(uint32(v))))
	case wasm.OpI64Clz:
		ce.pushValue(uint64(bits.LeadingZeros64(v)))
	case wasm.OpI64Ctz:
		ce.pushValue(uint64(bits.TrailingZeros64(v)))
	case wasm.OpI64Popcnt:
		ce.pushValue(uint64(bits.OnesCount64(v)))
	case wasm.OpF32Abs:
		ce.pushValue(uint64(math.Float32bits(float32(math.Abs(float64(f32bits(v)))))))
	case wasm.OpF32Neg:
		ce.pushValue(uint64(math.Float32bits(-f32bits(v))))
	case wasm.OpF32Ceil:
		ce.pushValue(uint64(math.Float32bits(float32(math.Ceil(float64(f32bits(v)))))))
	case wasm.OpF32Floor:
		ce.pushValue(uint64(math.Float32bits(float32(math.Floor(float64(f32bits(v)))))))
	case wasm.OpF32Trunc:
		ce.pushValue(uint64(math.Float32bits(float32(math.Trunc(float64(f32bits(v)))))))
	case wasm.OpF32Nearest:
		ce.pushValue(uint64(math.Float32bits(float32(math.RoundToEven(float64(f32bits(v)))))))
	case wasm.OpF32Sqrt:
		ce.pushValue(uint64(math.Float32bits(float32(math.Sqrt(float64(f32bits(v)))))))
	case wasm.OpF64Abs:
		ce.pushValue(math.Float64bits(math.Abs(f64bits(v))))
	case wasm.OpF64Neg:
		ce.pushValue(math.Float64bits(-f64bits(v)))
	case wasm.OpF64Ceil:
		ce.pushValue(math.Float64bits(math.Ceil(f64bits(v))))
	case wasm.OpF64Floor:
		ce.pushValue(math.Float64bits(math.Floor(f64bits(v))))
	case wasm.OpF64Trunc:
		ce.pushValue(math.Float64bits(math.Trunc(f64bits(v))))
	case wasm.OpF64Nearest:
		ce.pushValue(math.Float64bits(math.RoundToEven(f64bits(v))))
	case wasm.OpF64Sqrt:
		ce.pushValue(math.Float64bits(math.Sqrt(f64bits(v))))
	}
	return nil
}

func (ce *CallEngine) execBinary(op wasm.Opcode) error {
	b := ce.popValue()
	a := ce.popValue()
	switch op {
	case wasm.OpI32Add:
		ce.pushValue(uint64(uint32(a) + uint32(b)))
	case wasm.OpI32Sub:
		ce.pushValue(uint64(uint32(a) - uint32(b)))
	case wasm.OpI32Mul:
		ce.pushValue(uint64(uint32(a) * uint32(b)))
	case wasm.OpI32DivS:
		x, y := int32(a), int32(b)
		if y == 0 {
			return trapDivisionByZero()
		}
		if x == math.MinInt32 && y == -1 {
			return trapIntegerOverflow()
		}
		ce.pushValue(uint64(uint32(x / y)))
	case wasm.OpI32DivU:
		if uint32(b) == 0 {
			return trapDivisionByZero()
		}
		ce.pushValue(uint64(uint32(a) / uint32(b)))
	case wasm.OpI32RemS:
		x, y := int32(a), int32(b)
		if y == 0 {
			return trapDivisionByZero()
		}
		if x == math.MinInt32 && y == -1 {
			ce.pushValue(0)
		} else {
			ce.pushValue(uint64(uint32(x % y)))
		}
	case wasm.OpI32RemU:
		if uint32(b) == 0 {
			return trapDivisionByZero()
		}
		ce.pushValue(uint64(uint32(a) % uint32(b)))
	case wasm.OpI32And:
		ce.pushValue(uint64(uint32(a) & uint32(b)))
	case wasm.OpI32Or:
		ce.pushValue(uint64(uint32(a) | uint32(b)))
	case wasm.OpI32Xor:
		ce.pushValue(uint64(uint32(a) ^ uint32(b)))
	case wasm.OpI32Shl:
		ce.pushValue(uint64(uint32(a) << (uint32(b) % 32)))
	case wasm.OpI32ShrS:
		ce.pushValue(uint64(uint32(int32(a) >> (uint32(b) % 32))))
	case wasm.OpI32ShrU:
		ce.pushValue(uint64(uint32(a) >> (uint32(b) % 32)))
	case wasm.OpI32Rotl:
		ce.pushValue(uint64(bits.RotateLeft32(uint32(a), int(b%32))))
	case wasm.OpI32Rotr:
		ce.pushValue(uint64(bits.RotateLeft32(uint32(a), -int(b%32))))

	case wasm.OpI64Add:
		ce.pushValue(a + b)
	case wasm.OpI64Sub:
		ce.pushValue(a - b)
	case wasm.OpI64Mul:
		ce.pushValue(a * b)
	case wasm.OpI64DivS:
		x, y := int64(a), int64(b)
		if y == 0 {
			return trapDivisionByZero()
		}
		if x == math.MinInt64 && y == -1 {
			return trapIntegerOverflow()
		}
		ce.pushValue(uint64(x / y))
	case wasm.OpI64DivU:
		if b == 0 {
			return trapDivisionByZero()
		}
		ce.pushValue(a / b)
	case wasm.OpI64RemS:
		x, y := int64(a), int64(b)
		if y == 0 {
			return trapDivisionByZero()
		}
		if x == math.MinInt64 && y == -1 {
			ce.pushValue(0)
		} else {
			ce.pushValue(uint64(x % y))
		}
	case wasm.OpI64RemU:
		if b == 0 {
			return trapDivisionByZero()
		}
		ce.pushValue(a % b)
	case wasm.OpI64And:
		ce.pushValue(a & b)
	case wasm.OpI64Or:
		ce.pushValue(a | b)
	case wasm.OpI64Xor:
		ce.pushValue(a ^ b)
	case wasm.OpI64Shl:
		ce.pushValue(a << (b % 64))
	case wasm.OpI64ShrS:
		ce.pushValue(uint64(int64(a) >> (b % 64)))
	case wasm.OpI64ShrU:
		ce.pushValue(a >> (b % 64))
	case wasm.OpI64Rotl:
		ce.pushValue(bits.RotateLeft64(a, int(b%64)))
	case wasm.OpI64Rotr:
		ce.pushValue(bits.RotateLeft64(a, -int(b%64)))

	case wasm.OpF32Add:
		ce.pushValue(uint64(math.Float32bits(f32bits(a) + f32bits(b))))
	case wasm.OpF32Sub:
		ce.pushValue(uint64(math.Float32bits(f32bits(a) - f32bits(b))))
	case wasm.OpF32Mul:
		ce.pushValue(uint64(math.Float32bits(f32bits(a) * f32bits(b))))
	case wasm.OpF32Div:
		ce.pushValue(uint64(math.Float32bits(f32bits(a) / f32bits(b))))
	case wasm.OpF32Min:
		ce.pushValue(uint64(math.Float32bits(float32(moremath.WasmCompatMin(float64(f32bits(a)), float64(f32bits(b)))))))
	case wasm.OpF32Max:
		ce.pushValue(uint64(math.Float32bits(float32(moremath.WasmCompatMax(float64(f32bits(a)), float64(f32bits(b)))))))
	case wasm.OpF32Copysign:
		ce.pushValue(uint64(math.Float32bits(float32(math.Copysign(float64(f32bits(a)), float64(f32bits(b)))))))

	case wasm.OpF64Add:
		ce.pushValue(math.Float64bits(f64bits(a) + f64bits(b)))
	case wasm.OpF64Sub:
		ce.pushValue(math.Float64bits(f64bits(a) - f64bits(b)))
	case wasm.OpF64Mul:
		ce.pushValue(math.Float64bits(f64bits(a) * f64bits(b)))
	case wasm.OpF64Div:
		ce.pushValue(math.Float64bits(f64bits(a) / f64bits(b)))
	case wasm.OpF64Min:
		ce.pushValue(math.Float64bits(moremath.WasmCompatMin(f64bits(a), f64bits(b))))
	case wasm.OpF64Max:
		ce.pushValue(math.Float64bits(moremath.WasmCompatMax(f64bits(a), f64bits(b))))
	case wasm.OpF64Copysign:
		ce.pushValue(math.Float64bits(math.Copysign(f64bits(a), f64bits(b))))
	}
	return nil
}


func (ce *CallEngine) execConversion(op wasm.Opcode) error {
	v := ce.popValue()
	switch op {
	case wasm.OpI32WrapI64:
		ce.pushValue(uint64(uint32(v)))
	case wasm.OpI64ExtendI32S:
		ce.pushValue(uint64(int64(int32(v))))
	case wasm.OpI64ExtendI32U:
		ce.pushValue(uint64(uint32(v)))

	case wasm.OpI32TruncF32S:
		r, err := truncToI32(float64(f32bits(v)), math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		ce.pushValue(uint64(uint32(r)))
	case wasm.OpI32TruncF32U:
		r, err := truncToU32(float64(f32bits(v)), math.MaxUint32)
		if err != nil {
			return err
		}
		ce.pushValue(uint64(r))
	case wasm.OpI32TruncF64S:
		r, err := truncToI32(f64bits(v), math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		ce.pushValue(uint64(uint32(r)))
	case wasm.OpI32TruncF64U:
		r, err := truncToU32(f64bits(v), math.MaxUint32)
		if err != nil {
			return err
		}
		ce.pushValue(uint64(r))

	case wasm.OpI64TruncF32S:
		r, err := truncToI64(float64(f32bits(v)))
		if err != nil {
			return err
		}
		ce.pushValue(uint64(r))
	case wasm.OpI64TruncF32U:
		r, err := truncToU64(float64(f32bits(v)))
		if err != nil {
			return err
		}
		ce.pushValue(r)
	case wasm.OpI64TruncF64S:
		r, err := truncToI64(f64bits(v))
		if err != nil {
			return err
		}
		ce.pushValue(uint64(r))
	case wasm.OpI64TruncF64U:
		r, err := truncToU64(f64bits(v))
		if err != nil {
			return err
		}
		ce.pushValue(r)

	case wasm.OpF32ConvertI32S:
		ce.pushValue(uint64(math.Float32bits(float32(int32(v)))))
	case wasm.OpF32ConvertI32U:
		ce.pushValue(uint64(math.Float32bits(float32(uint32(v)))))
	case wasm.OpF32ConvertI64S:
		ce.pushValue(uint64(math.Float32bits(float32(int64(v)))))
	case wasm.OpF32ConvertI64U:
		ce.pushValue(uint64(math.Float32bits(float32(v))))
	case wasm.OpF32DemoteF64:
		ce.pushValue(uint64(math.Float32bits(float32(f64bits(v)))))

	case wasm.OpF64ConvertI32S:
		ce.pushValue(math.Float64bits(float64(int32(v))))
	case wasm.OpF64ConvertI32U:
		ce.pushValue(math.Float64bits(float64(uint32(v))))
	case wasm.OpF64ConvertI64S:
		ce.pushValue(math.Float64bits(float64(int64(v))))
	case wasm.OpF64ConvertI64U:
		ce.pushValue(math.Float64bits(float64(v)))
	case wasm.OpF64PromoteF32:
		ce.pushValue(math.Float64bits(float64(f32bits(v))))

	case wasm.OpI32ReinterpretF32:
		ce.pushValue(v)
	case wasm.OpI64ReinterpretF64:
		ce.pushValue(v)
	case wasm.OpF32ReinterpretI32:
		ce.pushValue(v)
	case wasm.OpF64ReinterpretI64:
		ce.pushValue(v)
	}
	return nil
}

func truncToI32(v float64, min, max int32) (int32, error) {
	if math.IsNaN(v) {
		return 0, trapIntegerOverflow()
	}
	t := math.Trunc(v)
	if t < float64(min) || t > float64(max) {
		return 0, trapIntegerOverflow()
	}
	return int32(t), nil
}

func truncToU32(v float64, max uint32) (uint32, error) {
	if math.IsNaN(v) {
		return 0, trapIntegerOverflow()
	}
	t := math.Trunc(v)
	if t < 0 || t > float64(max) {
		return 0, trapIntegerOverflow()
	}
	return uint32(t), nil
}

func truncToI64(v float64) (int64, error) {
	if math.IsNaN(v) {
		return 0, trapIntegerOverflow()
	}
	t := math.Trunc(v)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, trapIntegerOverflow()
	}
	return int64(t), nil
}

func truncToU64(v float64) (uint64, error) {
	if math.IsNaN(v) {
		return 0, trapIntegerOverflow()
	}
	t := math.Trunc(v)
	if t < 0 || t >= math.MaxUint64 {
		return 0, trapIntegerOverflow()
	}
	return uint64(t), nil
}
