package interpreter

import (
	"context"

	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

// The interpreter runs one callEngine per function.Call invocation with no
// concurrent access to a shared memory from this goroutine, so every atomic
// op below reduces to its non-atomic counterpart: there is no other thread
// for a read-modify-write to race against. Fence, wait, and notify exist
// only to satisfy the threads proposal's instruction set, not to provide
// cross-thread synchronization (see DESIGN.md).
//
// These mirror wazeroir/opcodes.go's atomic sub-opcode bytes (carried
// unchanged into Operation.B1 by stepAtomic) rather than importing them:
// memory.go's memOp* constants take the same approach for the plain
// load/store opcodes, matching an instruction set to its binary encoding
// directly instead of through another package's private enum.
const (
	atomicI32Load  = 0x10
	atomicI64Load  = 0x11
	atomicI32Store = 0x17
	atomicI64Store = 0x18

	atomicI32RmwAdd  = 0x1e
	atomicI64RmwAdd  = 0x1f
	atomicI32RmwSub  = 0x25
	atomicI64RmwSub  = 0x26
	atomicI32RmwAnd  = 0x2c
	atomicI64RmwAnd  = 0x2d
	atomicI32RmwOr   = 0x33
	atomicI64RmwOr   = 0x34
	atomicI32RmwXor  = 0x3a
	atomicI64RmwXor  = 0x3b
	atomicI32RmwXchg = 0x41
	atomicI64RmwXchg = 0x42

	atomicI32RmwCmpxchg = 0x48
	atomicI64RmwCmpxchg = 0x49
)

func (ce *callEngine) execAtomicLoad(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	if is64AtomicOp(op.B1) {
		v, ok := mem.ReadUint64Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(v)
	} else {
		v, ok := mem.ReadUint32Le(ctx, addr)
		trapIfOOB(ok)
		ce.pushValue(uint64(v))
	}
}

func (ce *callEngine) execAtomicStore(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	v := ce.popValue()
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	var stored bool
	if is64AtomicOp(op.B1) {
		stored = mem.WriteUint64Le(ctx, addr, v)
	} else {
		stored = mem.WriteUint32Le(ctx, addr, uint32(v))
	}
	trapIfOOB(stored)
}

func (ce *callEngine) execAtomicRMW(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	operand := ce.popValue()
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	wide := is64AtomicOp(op.B1)
	old := atomicRead(ctx, mem, addr, wide)
	atomicWrite(ctx, mem, addr, wide, atomicRMWApply(op.B1, old, operand))
	ce.pushValue(old)
}

func (ce *callEngine) execAtomicCmpxchg(ctx context.Context, frame *callFrame, op *wazeroir.Operation) {
	mem := frame.fn.Module.Memories[0]
	replacement := ce.popValue()
	expected := ce.popValue()
	dynamic := ce.popValue()
	addr, ok := memArgAddr(dynamic, op.B2)
	if !ok {
		panic(wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	wide := is64AtomicOp(op.B1)
	old := atomicRead(ctx, mem, addr, wide)
	if old == expected {
		atomicWrite(ctx, mem, addr, wide, replacement)
	}
	ce.pushValue(old)
}

// execAtomicWait always reports 1 ("not-equal", i.e. it didn't actually
// block) since there's no other agent whose notify could ever wake it; a
// single-threaded program that waits on its own memory would otherwise
// deadlock forever, which wasmruntime.ErrRuntimeUnreachable-style trapping
// would be no kinder than this.
func (ce *callEngine) execAtomicWait() {
	ce.popValue() // timeout
	ce.popValue() // expected
	ce.popValue() // address
	ce.pushValue(1)
}

// execAtomicNotify always reports 0 waiters woken, for the same reason.
func (ce *callEngine) execAtomicNotify() {
	ce.popValue() // count
	ce.popValue() // address
	ce.pushValue(0)
}

func (ce *callEngine) execAtomicFence() {}

func is64AtomicOp(sub uint64) bool {
	switch uint32(sub) {
	case atomicI64Load, atomicI64Store,
		atomicI64RmwAdd, atomicI64RmwSub, atomicI64RmwAnd, atomicI64RmwOr, atomicI64RmwXor, atomicI64RmwXchg,
		atomicI64RmwCmpxchg:
		return true
	}
	return false
}

func atomicRead(ctx context.Context, mem *wasm.MemoryInstance, addr uint32, wide bool) uint64 {
	if wide {
		v, ok := mem.ReadUint64Le(ctx, addr)
		trapIfOOB(ok)
		return v
	}
	v, ok := mem.ReadUint32Le(ctx, addr)
	trapIfOOB(ok)
	return uint64(v)
}

func atomicWrite(ctx context.Context, mem *wasm.MemoryInstance, addr uint32, wide bool, v uint64) {
	var ok bool
	if wide {
		ok = mem.WriteUint64Le(ctx, addr, v)
	} else {
		ok = mem.WriteUint32Le(ctx, addr, uint32(v))
	}
	trapIfOOB(ok)
}

func atomicRMWApply(sub uint64, old, operand uint64) uint64 {
	switch uint32(sub) {
	case atomicI32RmwAdd, atomicI64RmwAdd:
		return old + operand
	case atomicI32RmwSub, atomicI64RmwSub:
		return old - operand
	case atomicI32RmwAnd, atomicI64RmwAnd:
		return old & operand
	case atomicI32RmwOr, atomicI64RmwOr:
		return old | operand
	case atomicI32RmwXor, atomicI64RmwXor:
		return old ^ operand
	case atomicI32RmwXchg, atomicI64RmwXchg:
		return operand
	default:
		return operand
	}
}
