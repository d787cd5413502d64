package interpreter

import (
	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

// structTypeAt and arrayTypeAt resolve a type index to its declaration on
// the instantiated module's own Source, the runtime counterpart of
// compiler.go's identically-named compile-time helpers (which resolve
// against the Module being compiled rather than one already instantiated).
func structTypeAt(frame *callFrame, typeIdx uint64) *wasm.StructType {
	return frame.fn.Module.Source.TypeSection[typeIdx].StructType
}

func arrayTypeAt(frame *callFrame, typeIdx uint64) *wasm.ArrayType {
	return frame.fn.Module.Source.TypeSection[typeIdx].ArrayType
}

// narrowPacked masks a widened I8/I16 struct or array field back down,
// sign- or zero-extending per variant (1 == _s, 2 == _u), mirroring the
// memory-load narrow-width convention in memory.go's execLoad.
func narrowPacked(v uint64, kind wasm.StorageKind, variant uint64) uint64 {
	switch kind {
	case wasm.StorageKindI8:
		b := uint8(v)
		if variant == 1 {
			return uint64(int64(int8(b)))
		}
		return uint64(b)
	case wasm.StorageKindI16:
		h := uint16(v)
		if variant == 1 {
			return uint64(int64(int16(h)))
		}
		return uint64(h)
	default:
		return v
	}
}

func (ce *callEngine) execStructNew(frame *callFrame, op *wazeroir.Operation) {
	st := structTypeAt(frame, op.B1)
	fields := make([]uint64, len(st.Fields))
	for i := len(st.Fields) - 1; i >= 0; i-- {
		fields[i] = ce.popValue()
	}
	ref := frame.fn.Module.Store.Heap.NewStruct(uint32(op.B1), fields)
	ce.pushValue(uint64(ref))
}

func (ce *callEngine) execStructGet(frame *callFrame, op *wazeroir.Operation) {
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		panic(wasmruntime.ErrRuntimeNullReference)
	}
	obj := frame.fn.Module.Store.Heap.Get(ref)
	if obj == nil || obj.Kind != wasm.HeapObjectKindStruct {
		panic(wasmruntime.ErrRuntimeCastFailure)
	}
	st := structTypeAt(frame, op.B1)
	v := obj.Struct.Fields[op.B2]
	ce.pushValue(narrowPacked(v, st.Fields[op.B2].Kind, op.B3))
}

func (ce *callEngine) execStructSet(frame *callFrame, op *wazeroir.Operation) {
	v := ce.popValue()
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		panic(wasmruntime.ErrRuntimeNullReference)
	}
	obj := frame.fn.Module.Store.Heap.Get(ref)
	if obj == nil || obj.Kind != wasm.HeapObjectKindStruct {
		panic(wasmruntime.ErrRuntimeCastFailure)
	}
	obj.Struct.Fields[op.B2] = v
}

func (ce *callEngine) execArrayNew(frame *callFrame, op *wazeroir.Operation) {
	n := uint32(ce.popValue())
	init := ce.popValue()
	elems := make([]uint64, n)
	for i := range elems {
		elems[i] = init
	}
	ref := frame.fn.Module.Store.Heap.NewArray(uint32(op.B1), elems)
	ce.pushValue(uint64(ref))
}

func (ce *callEngine) execArrayNewFixed(frame *callFrame, op *wazeroir.Operation) {
	n := int(op.B2)
	elems := make([]uint64, n)
	for i := n - 1; i >= 0; i-- {
		elems[i] = ce.popValue()
	}
	ref := frame.fn.Module.Store.Heap.NewArray(uint32(op.B1), elems)
	ce.pushValue(uint64(ref))
}

func (ce *callEngine) execArrayGet(frame *callFrame, op *wazeroir.Operation) {
	idx := uint32(ce.popValue())
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		panic(wasmruntime.ErrRuntimeNullReference)
	}
	obj := frame.fn.Module.Store.Heap.Get(ref)
	if obj == nil || obj.Kind != wasm.HeapObjectKindArray {
		panic(wasmruntime.ErrRuntimeCastFailure)
	}
	if idx >= uint32(len(obj.Array.Elements)) {
		panic(wasmruntime.ErrRuntimeArrayOutOfBounds)
	}
	at := arrayTypeAt(frame, op.B1)
	ce.pushValue(narrowPacked(obj.Array.Elements[idx], at.Element.Kind, op.B3))
}

func (ce *callEngine) execArraySet(frame *callFrame, op *wazeroir.Operation) {
	v := ce.popValue()
	idx := uint32(ce.popValue())
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		panic(wasmruntime.ErrRuntimeNullReference)
	}
	obj := frame.fn.Module.Store.Heap.Get(ref)
	if obj == nil || obj.Kind != wasm.HeapObjectKindArray {
		panic(wasmruntime.ErrRuntimeCastFailure)
	}
	if idx >= uint32(len(obj.Array.Elements)) {
		panic(wasmruntime.ErrRuntimeArrayOutOfBounds)
	}
	obj.Array.Elements[idx] = v
}

func (ce *callEngine) execArrayLen(frame *callFrame) {
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		panic(wasmruntime.ErrRuntimeNullReference)
	}
	obj := frame.fn.Module.Store.Heap.Get(ref)
	if obj == nil || obj.Kind != wasm.HeapObjectKindArray {
		panic(wasmruntime.ErrRuntimeCastFailure)
	}
	ce.pushValue(uint64(len(obj.Array.Elements)))
}

// refConcreteTypeIndex reports the declared TypeIndex of ref's heap object,
// and whether ref is a struct/array at all (i31, func and null refs never
// match a concrete GC type test).
func refConcreteTypeIndex(frame *callFrame, ref wasm.Ref) (int32, bool) {
	if ref.IsNull() || ref.IsI31() {
		return 0, false
	}
	obj := frame.fn.Module.Store.Heap.Get(ref)
	if obj == nil {
		return 0, false
	}
	switch obj.Kind {
	case wasm.HeapObjectKindStruct:
		return int32(obj.Struct.TypeIndex), true
	case wasm.HeapObjectKindArray:
		return int32(obj.Array.TypeIndex), true
	default:
		return 0, false
	}
}

func (ce *callEngine) execRefTest(frame *callFrame, op *wazeroir.Operation) bool {
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		return false
	}
	if op.B2 == 0 { // abstract target (any/eq/struct/array/i31/...): matched at compile time already
		return true
	}
	idx, ok := refConcreteTypeIndex(frame, ref)
	if !ok {
		return false
	}
	return wasm.IsSubtype(frame.fn.Module.Source.TypeSection, idx, int32(op.B1))
}

func (ce *callEngine) execRefCast(frame *callFrame, op *wazeroir.Operation) {
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		ce.pushValue(uint64(ref))
		return
	}
	if op.B2 != 0 {
		idx, ok := refConcreteTypeIndex(frame, ref)
		if !ok || !wasm.IsSubtype(frame.fn.Module.Source.TypeSection, idx, int32(op.B1)) {
			panic(wasmruntime.ErrRuntimeCastFailure)
		}
	}
	ce.pushValue(uint64(ref))
}

// execBrOnCast reports whether the cast succeeded (the caller branches when
// it does), leaving the original value on the stack either way. Unlike
// RefTest/RefCast, the lowered Operation only carries the target's abstract
// top type (op.ValueType), not a concrete type index (see stepGC's
// gcBrOnCast comment), so the runtime check here is abstract-kind-only:
// struct/array targets check the heap object's kind, every other target
// (any, eq, i31, ...) is treated as already satisfied by anything that
// reached this point as a non-null reference.
func (ce *callEngine) execBrOnCast(frame *callFrame, op *wazeroir.Operation) bool {
	ref := wasm.Ref(ce.popValue())
	ce.pushValue(uint64(ref))
	if ref.IsNull() {
		return false
	}
	switch op.ValueType {
	case api.ValueTypeStruct:
		obj := frame.fn.Module.Store.Heap.Get(ref)
		return obj != nil && obj.Kind == wasm.HeapObjectKindStruct
	case api.ValueTypeArray:
		obj := frame.fn.Module.Store.Heap.Get(ref)
		return obj != nil && obj.Kind == wasm.HeapObjectKindArray
	case api.ValueTypeI31:
		return ref.IsI31()
	default:
		return true
	}
}

// execI31New and execI31Get implement ref.i31/i31.get_s/i31.get_u: the i31
// proposal's unboxed small integer, packed directly into the Ref bit
// pattern rather than allocated on the Heap (see wasm.PackI31).
func (ce *callEngine) execI31New() {
	v := int32(uint32(ce.popValue()))
	ce.pushValue(uint64(wasm.PackI31(v)))
}

func (ce *callEngine) execI31Get(op *wazeroir.Operation) {
	ref := wasm.Ref(ce.popValue())
	if ref.IsNull() {
		panic(wasmruntime.ErrRuntimeNullReference)
	}
	v := ref.I31Value()
	if op.B1 == 1 { // _u: zero-extend rather than sign-extend the 31-bit payload
		ce.pushValue(uint64(uint32(v) & 0x7fffffff))
	} else {
		ce.pushValue(uint64(uint32(v)))
	}
}

// execAnyConvertExtern and execExternConvertAny are no-ops at the
// representation level: wazerow doesn't distinguish the any and extern
// reference hierarchies by tag, only by static ValueType, so the Ref value
// itself crosses unchanged (see DESIGN.md).
func (ce *callEngine) execAnyConvertExtern() {}
func (ce *callEngine) execExternConvertAny() {}
