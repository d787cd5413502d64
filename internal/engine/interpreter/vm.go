package interpreter

import (
	"context"
	"fmt"

	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

// step executes one operation of frame's function body, advancing the
// operand/call stacks as needed. It returns true when frame.pc should stop
// advancing because the function has returned (OperationKindReturn) or a
// tail call replaced it.
//
// Control-flow operations (Br/BrIf/BrTable) read an already-resolved
// absolute Target/Us index: wazeroir's compiler backpatches every branch at
// lowering time, so there is no separate label-resolution pass here, unlike
// a VM that consumes an unresolved op tree.
func (ce *callEngine) step(ctx context.Context, frame *callFrame, op *wazeroir.Operation) (returned bool) {
	switch op.Kind {
	case wazeroir.OperationKindUnreachable:
		panic(wasmruntime.ErrRuntimeUnreachable)
	case wazeroir.OperationKindNop:
		// no-op

	case wazeroir.OperationKindBr:
		frame.pc = op.Target - 1 // -1: the caller's frame.pc++ lands exactly on Target
	case wazeroir.OperationKindBrIf:
		cond := ce.popValue()
		branch := cond != 0
		if op.B1 == 1 { // `if`'s placeholder: branch when condition is false
			branch = cond == 0
		}
		if branch {
			frame.pc = op.Target - 1
		}
	case wazeroir.OperationKindBrTable:
		idx := uint32(ce.popValue())
		if idx >= uint32(len(op.Us)-1) {
			idx = uint32(len(op.Us) - 1) // last entry is the default target
		}
		frame.pc = int(op.Us[idx]) - 1

	case wazeroir.OperationKindCall:
		callee := frame.fn.Module.Function(uint32(op.B1))
		ce.invoke(ctx, frame.fn.Module, callee)
	case wazeroir.OperationKindCallIndirect:
		ce.callIndirect(ctx, frame, uint32(op.B1), uint32(op.B2))
	case wazeroir.OperationKindReturnCall:
		ce.tailCall = &tailCallRequest{callee: frame.fn.Module.Function(uint32(op.B1))}
		return true
	case wazeroir.OperationKindReturnCallIndirect:
		ce.tailCall = &tailCallRequest{callee: ce.resolveIndirect(frame, uint32(op.B1), uint32(op.B2))}
		return true
	case wazeroir.OperationKindReturn:
		return true

	case wazeroir.OperationKindTry:
		// no-op at runtime: the protected region is found by scanning
		// frame.result.Operations from the panic site (see except.go's
		// catchInFrame), not by anything executed when Try is merely
		// stepped over on the non-exceptional path.
	case wazeroir.OperationKindThrow:
		tag := frame.fn.Module.Tags[op.B1]
		payload := make([]uint64, len(tag.Type.Params))
		for i := len(payload) - 1; i >= 0; i-- {
			payload[i] = ce.popValue()
		}
		panic(&wasmException{tag: tag, payload: payload})
	case wazeroir.OperationKindThrowRef:
		ref := wasm.Ref(ce.popValue())
		if ref.IsNull() {
			panic(wasmruntime.ErrRuntimeNullReference)
		}
		obj := frame.fn.Module.Store.Heap.Get(ref)
		if obj == nil || obj.Kind != wasm.HeapObjectKindExn {
			panic(wasmruntime.ErrRuntimeCastFailure)
		}
		panic(&wasmException{tag: obj.Exn.Tag, payload: obj.Exn.Payload})
	case wazeroir.OperationKindRethrow:
		if frame.currentExn == nil {
			panic(wasmruntime.ErrRuntimeUncaughtException)
		}
		panic(frame.currentExn)

	case wazeroir.OperationKindDrop:
		ce.popValue()
	case wazeroir.OperationKindSelect:
		cond := ce.popValue()
		v2 := ce.popValue()
		v1 := ce.popValue()
		if cond != 0 {
			ce.pushValue(v1)
		} else {
			ce.pushValue(v2)
		}

	case wazeroir.OperationKindPick:
		ce.pushValue(frame.locals[op.B1])
	case wazeroir.OperationKindSet:
		v := ce.popValue()
		frame.locals[op.B1] = v
		if op.B2 == 1 { // tee: keep the value on the stack too
			ce.pushValue(v)
		}

	case wazeroir.OperationKindGlobalGet:
		g := frame.fn.Module.Globals[op.B1]
		ce.pushValue(g.Get(ctx))
	case wazeroir.OperationKindGlobalSet:
		g := frame.fn.Module.Globals[op.B1]
		g.Set(ctx, ce.popValue())

	case wazeroir.OperationKindLoad:
		ce.execLoad(ctx, frame, op)
	case wazeroir.OperationKindStore:
		ce.execStore(ctx, frame, op)
	case wazeroir.OperationKindMemorySize:
		mem := frame.fn.Module.Memories[0]
		ce.pushValue(uint64(mem.Size(ctx)))
	case wazeroir.OperationKindMemoryGrow:
		mem := frame.fn.Module.Memories[0]
		delta := uint32(ce.popValue())
		prev, ok := mem.Grow(ctx, delta)
		if !ok {
			ce.pushValue(uint64(uint32(0xffffffff)))
		} else {
			ce.pushValue(uint64(prev))
		}

	case wazeroir.OperationKindConstI32:
		ce.pushValue(uint64(op.ConstI32))
	case wazeroir.OperationKindConstI64:
		ce.pushValue(op.ConstI64)
	case wazeroir.OperationKindConstF32:
		ce.pushValue(op.B1)
	case wazeroir.OperationKindConstF64:
		ce.pushValue(op.B1)

	case wazeroir.OperationKindRefNull:
		ce.pushValue(uint64(wasm.NullRef))
	case wazeroir.OperationKindRefIsNull:
		ce.pushValue(boolToU64(wasm.Ref(ce.popValue()).IsNull()))
	case wazeroir.OperationKindRefFunc:
		ref := frame.fn.Module.Store.Heap.NewFuncRef(frame.fn.Module.Function(uint32(op.B1)))
		ce.pushValue(uint64(ref))

	case wazeroir.OperationKindTableGet:
		table := frame.fn.Module.Tables[op.B1]
		idx := uint32(ce.popValue())
		if idx >= uint32(len(table.References)) {
			panic(wasmruntime.ErrRuntimeInvalidTableAccess)
		}
		ce.pushValue(uint64(table.References[idx]))
	case wazeroir.OperationKindTableSet:
		table := frame.fn.Module.Tables[op.B1]
		v := wasm.Ref(ce.popValue())
		idx := uint32(ce.popValue())
		if idx >= uint32(len(table.References)) {
			panic(wasmruntime.ErrRuntimeInvalidTableAccess)
		}
		table.References[idx] = v
	case wazeroir.OperationKindTableGrow:
		table := frame.fn.Module.Tables[op.B1]
		init := wasm.Ref(ce.popValue())
		delta := uint32(ce.popValue())
		prev, ok := table.Grow(ctx, delta, uint64(init))
		if !ok {
			ce.pushValue(uint64(uint32(0xffffffff)))
		} else {
			ce.pushValue(uint64(prev))
		}
	case wazeroir.OperationKindTableSize:
		table := frame.fn.Module.Tables[op.B1]
		ce.pushValue(uint64(table.Size(ctx)))
	case wazeroir.OperationKindTableFill:
		ce.execTableFill(frame, uint32(op.B1))

	case wazeroir.OperationKindMemoryInit:
		ce.execMemoryInit(frame, uint32(op.B1))
	case wazeroir.OperationKindDataDrop:
		frame.fn.Module.DataInstances[op.B1].Bytes = nil
	case wazeroir.OperationKindMemoryCopy:
		ce.execMemoryCopy(frame)
	case wazeroir.OperationKindMemoryFill:
		ce.execMemoryFill(frame)
	case wazeroir.OperationKindTableInit:
		ce.execTableInit(frame, uint32(op.B1), uint32(op.B2))
	case wazeroir.OperationKindElemDrop:
		frame.fn.Module.Elements[op.B1].References = nil
	case wazeroir.OperationKindTableCopy:
		ce.execTableCopy(frame, uint32(op.B1), uint32(op.B2))

	case wazeroir.OperationKindEq, wazeroir.OperationKindNe, wazeroir.OperationKindEqz,
		wazeroir.OperationKindLt, wazeroir.OperationKindGt, wazeroir.OperationKindLe, wazeroir.OperationKindGe,
		wazeroir.OperationKindAdd, wazeroir.OperationKindSub, wazeroir.OperationKindMul,
		wazeroir.OperationKindDiv, wazeroir.OperationKindRem,
		wazeroir.OperationKindAnd, wazeroir.OperationKindOr, wazeroir.OperationKindXor,
		wazeroir.OperationKindShl, wazeroir.OperationKindShr, wazeroir.OperationKindRotl, wazeroir.OperationKindRotr,
		wazeroir.OperationKindClz, wazeroir.OperationKindCtz, wazeroir.OperationKindPopcnt,
		wazeroir.OperationKindAbs, wazeroir.OperationKindNeg, wazeroir.OperationKindCeil, wazeroir.OperationKindFloor,
		wazeroir.OperationKindTrunc, wazeroir.OperationKindNearest, wazeroir.OperationKindSqrt,
		wazeroir.OperationKindMin, wazeroir.OperationKindMax, wazeroir.OperationKindCopysign,
		wazeroir.OperationKindConvert, wazeroir.OperationKindReinterpret, wazeroir.OperationKindExtend,
		wazeroir.OperationKindSignExtend32From8, wazeroir.OperationKindSignExtend32From16,
		wazeroir.OperationKindSignExtend64From8, wazeroir.OperationKindSignExtend64From16, wazeroir.OperationKindSignExtend64From32:
		ce.execNumeric(op)

	case wazeroir.OperationKindStructNew:
		ce.execStructNew(frame, op)
	case wazeroir.OperationKindStructGet:
		ce.execStructGet(frame, op)
	case wazeroir.OperationKindStructSet:
		ce.execStructSet(frame, op)
	case wazeroir.OperationKindArrayNew:
		ce.execArrayNew(frame, op)
	case wazeroir.OperationKindArrayNewFixed:
		ce.execArrayNewFixed(frame, op)
	case wazeroir.OperationKindArrayGet:
		ce.execArrayGet(frame, op)
	case wazeroir.OperationKindArraySet:
		ce.execArraySet(frame, op)
	case wazeroir.OperationKindArrayLen:
		ce.execArrayLen(frame)
	case wazeroir.OperationKindRefTest:
		ce.pushValue(boolToU64(ce.execRefTest(frame, op)))
	case wazeroir.OperationKindRefCast:
		ce.execRefCast(frame, op)
	case wazeroir.OperationKindBrOnCast:
		if ce.execBrOnCast(frame, op) {
			frame.pc = op.Target - 1
		}
	case wazeroir.OperationKindI31New:
		ce.execI31New()
	case wazeroir.OperationKindI31Get:
		ce.execI31Get(op)
	case wazeroir.OperationKindAnyConvertExtern:
		ce.execAnyConvertExtern()
	case wazeroir.OperationKindExternConvertAny:
		ce.execExternConvertAny()

	case wazeroir.OperationKindV128Load:
		ce.execV128Load(ctx, frame, op)
	case wazeroir.OperationKindV128Store:
		ce.execV128Store(ctx, frame, op)
	case wazeroir.OperationKindV128Const:
		ce.execV128Const(op)
	case wazeroir.OperationKindV128Splat:
		ce.execV128Splat(op)
	case wazeroir.OperationKindV128ExtractLane:
		ce.execV128ExtractLane(op)
	case wazeroir.OperationKindV128ReplaceLane:
		ce.execV128ReplaceLane(op)
	case wazeroir.OperationKindV128Add:
		ce.execV128Add(op)
	case wazeroir.OperationKindV128Sub:
		ce.execV128Sub(op)

	case wazeroir.OperationKindAtomicLoad:
		ce.execAtomicLoad(ctx, frame, op)
	case wazeroir.OperationKindAtomicStore:
		ce.execAtomicStore(ctx, frame, op)
	case wazeroir.OperationKindAtomicRMW:
		ce.execAtomicRMW(ctx, frame, op)
	case wazeroir.OperationKindAtomicCmpxchg:
		ce.execAtomicCmpxchg(ctx, frame, op)
	case wazeroir.OperationKindAtomicWait:
		ce.execAtomicWait()
	case wazeroir.OperationKindAtomicNotify:
		ce.execAtomicNotify()
	case wazeroir.OperationKindAtomicFence:
		ce.execAtomicFence()

	default:
		panic(fmt.Sprintf("interpreter: unsupported operation kind %d", op.Kind))
	}
	return false
}

// resolveIndirect resolves a table-indexed funcref and checks its signature
// against typeIdx, per call_indirect's dynamic type check (spec.md's one
// genuinely VM-enforced runtime type rule), without invoking it. Split out
// from callIndirect so OperationKindReturnCallIndirect can resolve its
// callee and hand it to the tail-call trampoline instead of calling it here
// and growing the Go stack.
func (ce *callEngine) resolveIndirect(frame *callFrame, typeIdx, tableIdx uint32) *wasm.FunctionInstance {
	table := frame.fn.Module.Tables[tableIdx]
	offset := uint32(ce.popValue())
	if offset >= uint32(len(table.References)) {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	ref := table.References[offset]
	if ref.IsNull() {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	obj := frame.fn.Module.Store.Heap.Get(ref)
	if obj == nil || obj.Kind != wasm.HeapObjectKindFunc || obj.Func == nil {
		panic(wasmruntime.ErrRuntimeInvalidTableAccess)
	}
	callee := obj.Func

	wantType := frame.fn.Module.Source.TypeSection[typeIdx].FunctionType
	store := frame.fn.Module.Store
	if store.GetFunctionTypeID(callee.Type) != store.GetFunctionTypeID(wantType) {
		panic(wasmruntime.ErrRuntimeIndirectCallTypeMismatch)
	}
	return callee
}

func (ce *callEngine) callIndirect(ctx context.Context, frame *callFrame, typeIdx, tableIdx uint32) {
	callee := ce.resolveIndirect(frame, typeIdx, tableIdx)
	ce.invoke(ctx, frame.fn.Module, callee)
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
