package interpreter

import (
	"context"
	"fmt"
	"math"

	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

// memArgAddr folds a memarg's static offset immediate into the dynamic
// address popped off the stack, trapping on the uint32 overflow a real
// address space can't represent rather than silently wrapping.
func memArgAddr(dynamic, staticOffset uint64) (uint32, bool) {
	addr := dynamic + staticOffset
	if addr > math.MaxUint32 {
		return 0, false
	}
	return uint32(addr), true
}

// The following mirror the wasm binary format's memory-instruction opcode
// bytes (https://webassembly.github.io/spec/core/binary/instructions.html#memory-instructions),
// carried in Operation.B1 by the compiler so this switch doesn't need its
// own opcode table.
const (
	memOpI32Load    = 0x28
	memOpI64Load    = 0x29
	memOpF32Load    = 0x2a
	memOpF64Load    = 0x2b
	memOpI32Load8S  = 0x2c
	memOpI32Load8U  = 0x2d
	memOpI32Load16S = 0x2e
	memOpI32Load16U = 0x2f
	memOpI64Load8S  = 0x30
	memOpI64Load8U  = 0x31
	memOpI64Load16S = 0x32
	memOpI64Load16U = 0x33
	memOpI64Load32S = 0x34
	memOpI64Load32U = 0x35
	memOpI32Store   = 0x36
	memOpI64Store   = 0x37
	memOpF32Store   = 0x38
	memOpF64Store   = 0x39
	memOpI32Store8  = 0x3a
	memOpI32Store16 = 0x3b
	memOpI64Store8  = 0x3c
	memOpI64Store16 = 0x3d
	memOpI64Store32 = 0x3e
)

func (ce *callEngine) execLoad(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}

	switch op.B1 {
	case memOpI32Load:
		v, ok := mem.ReadUint32Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	case memOpI64Load:
		v, ok := mem.ReadUint64Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(v)
	case memOpF32Load:
		v, ok := mem.ReadUint32Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	case memOpF64Load:
		v, ok := mem.ReadUint64Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(v)
	case memOpI32Load8S:
		v, ok := mem.ReadByte(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(uint32(int32(int8(v)))))
	case memOpI32Load8U:
		v, ok := mem.ReadByte(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	case memOpI32Load16S:
		v, ok := mem.ReadUint16Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(uint32(int32(int16(v)))))
	case memOpI32Load16U:
		v, ok := mem.ReadUint16Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	case memOpI64Load8S:
		v, ok := mem.ReadByte(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(int64(int8(v))))
	case memOpI64Load8U:
		v, ok := mem.ReadByte(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	case memOpI64Load16S:
		v, ok := mem.ReadUint16Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(int64(int16(v))))
	case memOpI64Load16U:
		v, ok := mem.ReadUint16Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	case memOpI64Load32S:
		v, ok := mem.ReadUint32Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(int64(int32(v))))
	case memOpI64Load32U:
		v, ok := mem.ReadUint32Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	default:
		panic(fmt.Sprintf("interpreter: unsupported load opcode %#x", op.B1))
	}
}

func (ce *callEngine) execStore(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	v := ce.popValue()
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}

	switch op.B1 {
	case memOpI32Store, memOpF32Store:
		trapIfOOB(mem.WriteUint32Le(ctx, addr, uint32(v)))
	case memOpI64Store, memOpF64Store:
		trapIfOOB(mem.WriteUint64Le(ctx, addr, v))
	case memOpI32Store8, memOpI64Store8:
		trapIfOOB(mem.WriteByte(ctx, addr, byte(v)))
	case memOpI32Store16, memOpI64Store16:
		trapIfOOB(mem.WriteUint16Le(ctx, addr, uint16(v)))
	case memOpI64Store32:
		trapIfOOB(mem.WriteUint32Le(ctx, addr, uint32(v)))
	default:
		panic(fmt.Sprintf("interpreter: unsupported store opcode %#x", op.B1))
	}
}

func trapIfOOB(ok bool) {
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
}

func (ce *callEngine) execMemoryInit(frame *callFrame, dataIdx uint32) {
	mem := frame.fn.Module.Memories[0]
	data := frame.fn.Module.DataInstances[dataIdx]
	n := uint32(ce.popValue())
	src := uint32(ce.popValue())
	dst := uint32(ce.popValue())

	if uint64(src)+uint64(n) > uint64(len(data.Bytes)) || uint64(dst)+uint64(n) > uint64(len(mem.Buffer)) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	copy(mem.Buffer[dst:dst+n], data.Bytes[src:src+n])
}

func (ce *callEngine) execMemoryCopy(frame *callFrame) {
	mem := frame.fn.Module.Memories[0]
	n := uint32(ce.popValue())
	src := uint32(ce.popValue())
	dst := uint32(ce.popValue())

	if uint64(src)+uint64(n) > uint64(len(mem.Buffer)) || uint64(dst)+uint64(n) > uint64(len(mem.Buffer)) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	copy(mem.Buffer[dst:dst+n], mem.Buffer[src:src+n]) // copy handles overlap correctly, like memmove
}

func (ce *callEngine) execMemoryFill(frame *callFrame) {
	mem := frame.fn.Module.Memories[0]
	n := uint32(ce.popValue())
	v := byte(ce.popValue())
	dst := uint32(ce.popValue())

	if uint64(dst)+uint64(n) > uint64(len(mem.Buffer)) {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	buf := mem.Buffer[dst : dst+n]
	for i := range buf {
		buf[i] = v
	}
}

func (ce *callEngine) execTableInit(frame *callFrame, elemIdx, tableIdx uint32) {
	table := frame.fn.Module.Tables[tableIdx]
	elem := frame.fn.Module.Elements[elemIdx]
	n := uint32(ce.popValue())
	src := uint32(ce.popValue())
	dst := uint32(ce.popValue())

	if uint64(src)+uint64(n) > uint64(len(elem.References)) || uint64(dst)+uint64(n) > uint64(len(table.References)) {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	copy(table.References[dst:dst+n], elem.References[src:src+n])
}

func (ce *callEngine) execTableCopy(frame *callFrame, dstIdx, srcIdx uint32) {
	dstTable := frame.fn.Module.Tables[dstIdx]
	srcTable := frame.fn.Module.Tables[srcIdx]
	n := uint32(ce.popValue())
	src := uint32(ce.popValue())
	dst := uint32(ce.popValue())

	if uint64(src)+uint64(n) > uint64(len(srcTable.References)) || uint64(dst)+uint64(n) > uint64(len(dstTable.References)) {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	copy(dstTable.References[dst:dst+n], srcTable.References[src:src+n])
}

func (ce *callEngine) execTableFill(frame *callFrame, tableIdx uint32) {
	table := frame.fn.Module.Tables[tableIdx]
	n := uint32(ce.popValue())
	v := wasm.Ref(ce.popValue())
	dst := uint32(ce.popValue())

	if uint64(dst)+uint64(n) > uint64(len(table.References)) {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	refs := table.References[dst : dst+n]
	for i := range refs {
		refs[i] = v
	}
}
