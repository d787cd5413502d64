package interpreter

import (
	"math"
	"math/bits"

	"github.com/wazerow/wazerow/internal/moremath"
	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

func asF32(v uint64) float32   { return math.Float32frombits(uint32(v)) }
func asF64(v uint64) float64   { return math.Float64frombits(v) }
func fromF32(f float32) uint64 { return uint64(math.Float32bits(f)) }
func fromF64(f float64) uint64 { return math.Float64bits(f) }

// execNumeric handles every plain numeric operation: comparisons,
// arithmetic, bit ops, float transcendentals, and conversions. Width and
// signedness come from the Operation's Type/Signed fields rather than a
// separate opcode per combination, mirroring how wazeroir's numericOpcodeTable
// folds the wasm spec's many numeric opcodes into one Operation shape per
// semantic operation.
func (ce *callEngine) execNumeric(op *wazeroir.Operation) {
	switch op.Kind {
	case wazeroir.OperationKindEqz:
		ce.pushValue(boolToU64(ce.popValue() == 0))
	case wazeroir.OperationKindEq:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(boolToU64(cmpEq(op.Type, v1, v2)))
	case wazeroir.OperationKindNe:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(boolToU64(!cmpEq(op.Type, v1, v2)))
	case wazeroir.OperationKindLt:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(boolToU64(cmpLt(op.Signed, v1, v2)))
	case wazeroir.OperationKindGt:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(boolToU64(cmpLt(op.Signed, v2, v1)))
	case wazeroir.OperationKindLe:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(boolToU64(!cmpLt(op.Signed, v2, v1)))
	case wazeroir.OperationKindGe:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(boolToU64(!cmpLt(op.Signed, v1, v2)))

	case wazeroir.OperationKindAdd:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(arith(op.Type, v1, v2, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }))
	case wazeroir.OperationKindSub:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(arith(op.Type, v1, v2, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }))
	case wazeroir.OperationKindMul:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(arith(op.Type, v1, v2, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }))

	case wazeroir.OperationKindDiv:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(execDiv(op.Signed, v1, v2))
	case wazeroir.OperationKindRem:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(execRem(op.Signed, v1, v2))

	case wazeroir.OperationKindAnd:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(maskWidth(op.Type, v1&v2))
	case wazeroir.OperationKindOr:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(maskWidth(op.Type, v1|v2))
	case wazeroir.OperationKindXor:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(maskWidth(op.Type, v1^v2))

	case wazeroir.OperationKindShl:
		v2, v1 := ce.popValue(), ce.popValue()
		if op.Type == wazeroir.UnsignedTypeI32 {
			ce.pushValue(uint64(uint32(v1) << (uint32(v2) % 32)))
		} else {
			ce.pushValue(v1 << (v2 % 64))
		}
	case wazeroir.OperationKindShr:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(execShr(op.Signed, v1, v2))
	case wazeroir.OperationKindRotl:
		v2, v1 := ce.popValue(), ce.popValue()
		if op.Type == wazeroir.UnsignedTypeI32 {
			ce.pushValue(uint64(bits.RotateLeft32(uint32(v1), int(uint32(v2)%32))))
		} else {
			ce.pushValue(bits.RotateLeft64(v1, int(v2%64)))
		}
	case wazeroir.OperationKindRotr:
		v2, v1 := ce.popValue(), ce.popValue()
		if op.Type == wazeroir.UnsignedTypeI32 {
			ce.pushValue(uint64(bits.RotateLeft32(uint32(v1), -int(uint32(v2)%32))))
		} else {
			ce.pushValue(bits.RotateLeft64(v1, -int(v2%64)))
		}

	case wazeroir.OperationKindClz:
		v := ce.popValue()
		if op.Type == wazeroir.UnsignedTypeI32 {
			ce.pushValue(uint64(bits.LeadingZeros32(uint32(v))))
		} else {
			ce.pushValue(uint64(bits.LeadingZeros64(v)))
		}
	case wazeroir.OperationKindCtz:
		v := ce.popValue()
		if op.Type == wazeroir.UnsignedTypeI32 {
			ce.pushValue(uint64(bits.TrailingZeros32(uint32(v))))
		} else {
			ce.pushValue(uint64(bits.TrailingZeros64(v)))
		}
	case wazeroir.OperationKindPopcnt:
		v := ce.popValue()
		if op.Type == wazeroir.UnsignedTypeI32 {
			ce.pushValue(uint64(bits.OnesCount32(uint32(v))))
		} else {
			ce.pushValue(uint64(bits.OnesCount64(v)))
		}

	case wazeroir.OperationKindAbs:
		ce.pushValue(floatUnary(op.Type, ce.popValue(), math.Abs))
	case wazeroir.OperationKindNeg:
		ce.pushValue(floatUnary(op.Type, ce.popValue(), func(f float64) float64 { return -f }))
	case wazeroir.OperationKindCeil:
		ce.pushValue(floatUnary(op.Type, ce.popValue(), math.Ceil))
	case wazeroir.OperationKindFloor:
		ce.pushValue(floatUnary(op.Type, ce.popValue(), math.Floor))
	case wazeroir.OperationKindTrunc:
		ce.pushValue(floatUnary(op.Type, ce.popValue(), math.Trunc))
	case wazeroir.OperationKindNearest:
		ce.pushValue(floatUnary(op.Type, ce.popValue(), moremath.WasmCompatNearestF64))
	case wazeroir.OperationKindSqrt:
		ce.pushValue(floatUnary(op.Type, ce.popValue(), math.Sqrt))

	case wazeroir.OperationKindMin:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(floatBinary(op.Type, v1, v2, moremath.WasmCompatMin))
	case wazeroir.OperationKindMax:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(floatBinary(op.Type, v1, v2, moremath.WasmCompatMax))
	case wazeroir.OperationKindCopysign:
		v2, v1 := ce.popValue(), ce.popValue()
		ce.pushValue(floatBinary(op.Type, v1, v2, math.Copysign))

	case wazeroir.OperationKindConvert:
		ce.pushValue(execConvert(wazeroir.ConversionKind(op.B1), ce.popValue()))
	case wazeroir.OperationKindReinterpret:
		// bit pattern is unchanged; the type system distinction evaporates on
		// an untyped uint64 stack.
	case wazeroir.OperationKindExtend:
		v := ce.popValue()
		if op.B1 == 1 {
			ce.pushValue(uint64(int64(int32(uint32(v)))))
		} else {
			ce.pushValue(uint64(uint32(v)))
		}
	case wazeroir.OperationKindSignExtend32From8:
		ce.pushValue(uint64(uint32(int32(int8(uint8(ce.popValue()))))))
	case wazeroir.OperationKindSignExtend32From16:
		ce.pushValue(uint64(uint32(int32(int16(uint16(ce.popValue()))))))
	case wazeroir.OperationKindSignExtend64From8:
		ce.pushValue(uint64(int64(int8(uint8(ce.popValue())))))
	case wazeroir.OperationKindSignExtend64From16:
		ce.pushValue(uint64(int64(int16(uint16(ce.popValue())))))
	case wazeroir.OperationKindSignExtend64From32:
		ce.pushValue(uint64(int64(int32(uint32(ce.popValue())))))
	}
}

func maskWidth(t wazeroir.UnsignedType, v uint64) uint64 {
	if t == wazeroir.UnsignedTypeI32 {
		return uint64(uint32(v))
	}
	return v
}

func cmpEq(t wazeroir.UnsignedType, v1, v2 uint64) bool {
	switch t {
	case wazeroir.UnsignedTypeF32:
		return asF32(v1) == asF32(v2)
	case wazeroir.UnsignedTypeF64:
		return asF64(v1) == asF64(v2)
	default:
		return v1 == v2
	}
}

func cmpLt(t wazeroir.SignedType, v1, v2 uint64) bool {
	switch t {
	case wazeroir.SignedTypeInt32:
		return int32(uint32(v1)) < int32(uint32(v2))
	case wazeroir.SignedTypeUint32:
		return uint32(v1) < uint32(v2)
	case wazeroir.SignedTypeInt64:
		return int64(v1) < int64(v2)
	case wazeroir.SignedTypeUint64:
		return v1 < v2
	case wazeroir.SignedTypeFloat32:
		return asF32(v1) < asF32(v2)
	default:
		return asF64(v1) < asF64(v2)
	}
}

// arith applies intOp/floatOp depending on t, used for the sign-agnostic
// Add/Sub/Mul that only vary by width/float-vs-int, not signedness.
func arith(t wazeroir.UnsignedType, v1, v2 uint64, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) uint64 {
	switch t {
	case wazeroir.UnsignedTypeI32:
		return uint64(uint32(intOp(int64(uint32(v1)), int64(uint32(v2)))))
	case wazeroir.UnsignedTypeI64:
		return uint64(intOp(int64(v1), int64(v2)))
	case wazeroir.UnsignedTypeF32:
		return fromF32(float32(floatOp(float64(asF32(v1)), float64(asF32(v2)))))
	default:
		return fromF64(floatOp(asF64(v1), asF64(v2)))
	}
}

func execDiv(t wazeroir.SignedType, v1, v2 uint64) uint64 {
	switch t {
	case wazeroir.SignedTypeInt32:
		a, b := int32(uint32(v1)), int32(uint32(v2))
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			panic(wasmruntime.ErrRuntimeIntegerOverflow)
		}
		return uint64(uint32(a / b))
	case wazeroir.SignedTypeUint32:
		a, b := uint32(v1), uint32(v2)
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		return uint64(a / b)
	case wazeroir.SignedTypeInt64:
		a, b := int64(v1), int64(v2)
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			panic(wasmruntime.ErrRuntimeIntegerOverflow)
		}
		return uint64(a / b)
	case wazeroir.SignedTypeUint64:
		if v2 == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		return v1 / v2
	case wazeroir.SignedTypeFloat32:
		return fromF32(asF32(v1) / asF32(v2))
	default:
		return fromF64(asF64(v1) / asF64(v2))
	}
}

func execRem(t wazeroir.SignedType, v1, v2 uint64) uint64 {
	switch t {
	case wazeroir.SignedTypeInt32:
		a, b := int32(uint32(v1)), int32(uint32(v2))
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			return 0
		}
		return uint64(uint32(a % b))
	case wazeroir.SignedTypeUint32:
		a, b := uint32(v1), uint32(v2)
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		return uint64(a % b)
	case wazeroir.SignedTypeInt64:
		a, b := int64(v1), int64(v2)
		if b == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			return 0
		}
		return uint64(a % b)
	default: // SignedTypeUint64
		if v2 == 0 {
			panic(wasmruntime.ErrRuntimeIntegerDivideByZero)
		}
		return v1 % v2
	}
}

func execShr(t wazeroir.SignedType, v1, v2 uint64) uint64 {
	switch t {
	case wazeroir.SignedTypeInt32:
		return uint64(uint32(int32(uint32(v1)) >> (uint32(v2) % 32)))
	case wazeroir.SignedTypeUint32:
		return uint64(uint32(v1) >> (uint32(v2) % 32))
	case wazeroir.SignedTypeInt64:
		return uint64(int64(v1) >> (v2 % 64))
	default: // SignedTypeUint64
		return v1 >> (v2 % 64)
	}
}

func floatUnary(t wazeroir.UnsignedType, v uint64, f func(float64) float64) uint64 {
	if t == wazeroir.UnsignedTypeF32 {
		return fromF32(float32(f(float64(asF32(v)))))
	}
	return fromF64(f(asF64(v)))
}

func floatBinary(t wazeroir.UnsignedType, v1, v2 uint64, f func(a, b float64) float64) uint64 {
	if t == wazeroir.UnsignedTypeF32 {
		return fromF32(float32(f(float64(asF32(v1)), float64(asF32(v2)))))
	}
	return fromF64(f(asF64(v1), asF64(v2)))
}

// execConvert performs the specific numeric conversion k identifies: wasm's
// trunc variants trap on NaN/infinity/out-of-range input per the core spec's
// "invalid conversion to integer"/"integer overflow" trap conditions; the
// _sat variants instead saturate, per the nontrapping-float-to-int proposal.
func execConvert(k wazeroir.ConversionKind, v uint64) uint64 {
	switch k {
	case wazeroir.ConversionI32WrapI64:
		return uint64(uint32(v))
	case wazeroir.ConversionI32TruncF32S:
		return uint64(uint32(truncToInt64(float64(asF32(v)), -2147483648, 2147483647, false)))
	case wazeroir.ConversionI32TruncF32U:
		return uint64(uint32(truncToInt64(float64(asF32(v)), 0, 4294967295, false)))
	case wazeroir.ConversionI32TruncF64S:
		return uint64(uint32(truncToInt64(asF64(v), -2147483648, 2147483647, false)))
	case wazeroir.ConversionI32TruncF64U:
		return uint64(uint32(truncToInt64(asF64(v), 0, 4294967295, false)))
	case wazeroir.ConversionI64TruncF32S:
		return uint64(truncToInt64(float64(asF32(v)), math.MinInt64, math.MaxInt64, false))
	case wazeroir.ConversionI64TruncF32U:
		return truncToUint64(float64(asF32(v)), false)
	case wazeroir.ConversionI64TruncF64S:
		return uint64(truncToInt64(asF64(v), math.MinInt64, math.MaxInt64, false))
	case wazeroir.ConversionI64TruncF64U:
		return truncToUint64(asF64(v), false)

	case wazeroir.ConversionI32TruncSatF32S:
		return uint64(uint32(truncToInt64(float64(asF32(v)), -2147483648, 2147483647, true)))
	case wazeroir.ConversionI32TruncSatF32U:
		return uint64(uint32(truncToInt64(float64(asF32(v)), 0, 4294967295, true)))
	case wazeroir.ConversionI32TruncSatF64S:
		return uint64(uint32(truncToInt64(asF64(v), -2147483648, 2147483647, true)))
	case wazeroir.ConversionI32TruncSatF64U:
		return uint64(uint32(truncToInt64(asF64(v), 0, 4294967295, true)))
	case wazeroir.ConversionI64TruncSatF32S:
		return uint64(truncToInt64(float64(asF32(v)), math.MinInt64, math.MaxInt64, true))
	case wazeroir.ConversionI64TruncSatF32U:
		return truncToUint64(float64(asF32(v)), true)
	case wazeroir.ConversionI64TruncSatF64S:
		return uint64(truncToInt64(asF64(v), math.MinInt64, math.MaxInt64, true))
	case wazeroir.ConversionI64TruncSatF64U:
		return truncToUint64(asF64(v), true)

	case wazeroir.ConversionF32ConvertI32S:
		return fromF32(float32(int32(uint32(v))))
	case wazeroir.ConversionF32ConvertI32U:
		return fromF32(float32(uint32(v)))
	case wazeroir.ConversionF32ConvertI64S:
		return fromF32(float32(int64(v)))
	case wazeroir.ConversionF32ConvertI64U:
		return fromF32(float32(v))
	case wazeroir.ConversionF32DemoteF64:
		return fromF32(float32(asF64(v)))
	case wazeroir.ConversionF64ConvertI32S:
		return fromF64(float64(int32(uint32(v))))
	case wazeroir.ConversionF64ConvertI32U:
		return fromF64(float64(uint32(v)))
	case wazeroir.ConversionF64ConvertI64S:
		return fromF64(float64(int64(v)))
	case wazeroir.ConversionF64ConvertI64U:
		return fromF64(float64(v))
	case wazeroir.ConversionF64PromoteF32:
		return fromF64(float64(asF32(v)))

	case wazeroir.ConversionI32ReinterpretF32, wazeroir.ConversionI64ReinterpretF64,
		wazeroir.ConversionF32ReinterpretI32, wazeroir.ConversionF64ReinterpretI64:
		return v
	}
	return v
}

// truncToInt64 converts f to an integer, trapping (unless sat) if f is NaN
// or outside [lo, hi].
func truncToInt64(f float64, lo, hi int64, sat bool) int64 {
	if math.IsNaN(f) {
		if sat {
			return 0
		}
		panic(wasmruntime.ErrRuntimeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < float64(lo) || t >= float64(hi)+1 {
		if sat {
			if t < float64(lo) {
				return lo
			}
			return hi
		}
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return int64(t)
}

// truncToUint64 is truncToInt64's unsigned-result counterpart, needed
// separately because the full uint64 range doesn't fit in an int64 bound.
func truncToUint64(f float64, sat bool) uint64 {
	if math.IsNaN(f) {
		if sat {
			return 0
		}
		panic(wasmruntime.ErrRuntimeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < 0 || t >= 18446744073709551616.0 {
		if sat {
			if t < 0 {
				return 0
			}
			return math.MaxUint64
		}
		panic(wasmruntime.ErrRuntimeIntegerOverflow)
	}
	return uint64(t)
}
