package interpreter

import (
	"context"
	"math"

	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

// v128 values occupy two adjacent operand-stack slots (low 64 bits pushed
// first, high 64 bits on top), the same convention CompilationResult.Type
// uses nowhere else since every other value fits one slot; only the SIMD
// opcodes need to know about the split, contained entirely to this file.
func (ce *callEngine) popV128() (lo, hi uint64) {
	hi = ce.popValue()
	lo = ce.popValue()
	return
}

func (ce *callEngine) pushV128(lo, hi uint64) {
	ce.pushValue(lo)
	ce.pushValue(hi)
}

func (ce *callEngine) execV128Load(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	buf, ok := mem.Read(ctx, addr, 16)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	ce.pushV128(getU64LE(buf[:8]), getU64LE(buf[8:]))
}

func (ce *callEngine) execV128Store(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	lo, hi := ce.popV128()
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	var buf [16]byte
	putU64LE(buf[:8], lo)
	putU64LE(buf[8:], hi)
	if !mem.Write(ctx, addr, buf[:]) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
}

func (ce *callEngine) execV128Const(op *wazeroir.Operation) {
	ce.pushV128(op.ConstV128Lo, op.ConstV128Hi)
}

func lanesI32x4(lo, hi uint64) [4]uint32 {
	return [4]uint32{uint32(lo), uint32(lo >> 32), uint32(hi), uint32(hi >> 32)}
}

func packI32x4(lanes [4]uint32) (lo, hi uint64) {
	lo = uint64(lanes[0]) | uint64(lanes[1])<<32
	hi = uint64(lanes[2]) | uint64(lanes[3])<<32
	return
}

func lanesF32x4(lo, hi uint64) [4]float32 {
	l := lanesI32x4(lo, hi)
	return [4]float32{math.Float32frombits(l[0]), math.Float32frombits(l[1]), math.Float32frombits(l[2]), math.Float32frombits(l[3])}
}

func packF32x4(lanes [4]float32) (lo, hi uint64) {
	return packI32x4([4]uint32{
		math.Float32bits(lanes[0]), math.Float32bits(lanes[1]),
		math.Float32bits(lanes[2]), math.Float32bits(lanes[3]),
	})
}

func (ce *callEngine) execV128Splat(op *wazeroir.Operation) {
	switch op.Lane {
	case wazeroir.LaneShapeF32x4:
		v := math.Float32frombits(uint32(ce.popValue()))
		lo, hi := packF32x4([4]float32{v, v, v, v})
		ce.pushV128(lo, hi)
	default:
		v := uint32(ce.popValue())
		lo, hi := packI32x4([4]uint32{v, v, v, v})
		ce.pushV128(lo, hi)
	}
}

func (ce *callEngine) execV128ExtractLane(op *wazeroir.Operation) {
	lo, hi := ce.popV128()
	switch op.Lane {
	case wazeroir.LaneShapeF32x4:
		lanes := lanesF32x4(lo, hi)
		ce.pushValue(uint64(math.Float32bits(lanes[op.B1])))
	default:
		lanes := lanesI32x4(lo, hi)
		ce.pushValue(uint64(lanes[op.B1]))
	}
}

func (ce *callEngine) execV128ReplaceLane(op *wazeroir.Operation) {
	switch op.Lane {
	case wazeroir.LaneShapeF32x4:
		v := math.Float32frombits(uint32(ce.popValue()))
		lo, hi := ce.popV128()
		lanes := lanesF32x4(lo, hi)
		lanes[op.B1] = v
		newLo, newHi := packF32x4(lanes)
		ce.pushV128(newLo, newHi)
	default:
		v := uint32(ce.popValue())
		lo, hi := ce.popV128()
		lanes := lanesI32x4(lo, hi)
		lanes[op.B1] = v
		newLo, newHi := packI32x4(lanes)
		ce.pushV128(newLo, newHi)
	}
}

func (ce *callEngine) execV128Add(op *wazeroir.Operation) { ce.v128BinOp(op, false) }
func (ce *callEngine) execV128Sub(op *wazeroir.Operation) { ce.v128BinOp(op, true) }

func (ce *callEngine) v128BinOp(op *wazeroir.Operation, sub bool) {
	bLo, bHi := ce.popV128()
	aLo, aHi := ce.popV128()
	switch op.Lane {
	case wazeroir.LaneShapeF32x4:
		a, b := lanesF32x4(aLo, aHi), lanesF32x4(bLo, bHi)
		var r [4]float32
		for i := range r {
			if sub {
				r[i] = a[i] - b[i]
			} else {
				r[i] = a[i] + b[i]
			}
		}
		lo, hi := packF32x4(r)
		ce.pushV128(lo, hi)
	default:
		a, b := lanesI32x4(aLo, aHi), lanesI32x4(bLo, bHi)
		var r [4]uint32
		for i := range r {
			if sub {
				r[i] = a[i] - b[i]
			} else {
				r[i] = a[i] + b[i]
			}
		}
		lo, hi := packI32x4(r)
		ce.pushV128(lo, hi)
	}
}

func putU64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

func getU64LE(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
