package wasm

// Ref is the runtime representation of any reference value (funcref,
// externref, exnref, or a GC internal-hierarchy reference) on the operand
// stack or in storage.
//
// Encoding: 0 is null for every reference type. A non-zero value with its
// low bit clear is a 1-based index into the owning Store's heap arena,
// shifted left by one (handle = (index+1)<<1), EXCEPT for the unboxed i31
// case, which is packed directly into the value with its low bit set to
// distinguish it from a heap handle: i31 values pack as
// (uint64(uint32(v)&0x7fffffff)<<1 | 1), so an i31 never collides with a
// pointer-shaped handle.
type Ref uint64

// NullRef is the null reference, shared by every nullable reference type.
const NullRef Ref = 0

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool { return r == NullRef }

// IsI31 reports whether r is an unboxed i31 value (never a heap handle).
func (r Ref) IsI31() bool { return r != 0 && r&1 == 1 }

// I31Value unpacks the 31-bit signed integer payload of an i31 reference.
// The caller must have checked IsI31 first.
func (r Ref) I31Value() int32 {
	u := uint32(r >> 1)
	// Sign-extend bit 30 across bit 31.
	return int32(u<<1) >> 1
}

// PackI31 packs a value into an i31 reference, truncating to 31 bits per the
// GC proposal's i31.new semantics.
func PackI31(v int32) Ref {
	return Ref(uint64(uint32(v)&0x7fffffff)<<1 | 1)
}

// heapIndex returns the 0-based heap arena index for a non-null, non-i31
// handle.
func (r Ref) heapIndex() uint32 { return uint32(r>>1) - 1 }

// packHeapHandle builds a handle Ref for heap arena index idx.
func packHeapHandle(idx uint32) Ref {
	return Ref((uint64(idx) + 1) << 1) // low bit 0 marks a heap handle, not i31
}

// HeapObjectKind distinguishes what's stored at a heap arena slot.
type HeapObjectKind byte

const (
	HeapObjectKindStruct HeapObjectKind = iota
	HeapObjectKindArray
	HeapObjectKindFunc // a funcref that escaped to the GC heap (ref.func result)
	HeapObjectKindExn   // an in-flight exception payload, referenced by exnref
)

// StructObject is a heap-allocated GC struct instance.
type StructObject struct {
	TypeIndex uint32
	Fields    []uint64 // one slot per field; v128 fields are unsupported in struct storage per spec.md scope
}

// ArrayObject is a heap-allocated GC array instance.
type ArrayObject struct {
	TypeIndex uint32
	Elements  []uint64
}

// ExnObject is a heap-allocated in-flight exception: a tag plus its payload
// values, referenced by an exnref produced by try_table's catch_ref clauses.
type ExnObject struct {
	Tag     *TagInstance
	Payload []uint64
}

// HeapObject is one slot of the Store's GC heap arena.
type HeapObject struct {
	Kind   HeapObjectKind
	Struct *StructObject
	Array  *ArrayObject
	Func   *FunctionInstance
	Exn    *ExnObject
}

// Heap is a process-wide, append-only GC object arena. Entries are never
// removed mid-run: wazerow has no tracing collector (spec.md's GC module
// explicitly scopes out automatic reclamation beyond store-lifetime
// retention), so every struct.new/array.new simply grows the arena.
type Heap struct {
	objects []HeapObject
}

// NewStruct allocates a StructObject and returns its reference.
func (h *Heap) NewStruct(typeIndex uint32, fields []uint64) Ref {
	idx := uint32(len(h.objects))
	h.objects = append(h.objects, HeapObject{Kind: HeapObjectKindStruct, Struct: &StructObject{TypeIndex: typeIndex, Fields: fields}})
	return packHeapHandle(idx)
}

// NewArray allocates an ArrayObject and returns its reference.
func (h *Heap) NewArray(typeIndex uint32, elements []uint64) Ref {
	idx := uint32(len(h.objects))
	h.objects = append(h.objects, HeapObject{Kind: HeapObjectKindArray, Array: &ArrayObject{TypeIndex: typeIndex, Elements: elements}})
	return packHeapHandle(idx)
}

// NewFuncRef boxes a FunctionInstance onto the heap, for cases (struct
// fields, array elements typed funcref) that need a uniform handle shape.
func (h *Heap) NewFuncRef(fn *FunctionInstance) Ref {
	idx := uint32(len(h.objects))
	h.objects = append(h.objects, HeapObject{Kind: HeapObjectKindFunc, Func: fn})
	return packHeapHandle(idx)
}

// NewExn allocates an ExnObject and returns its reference.
func (h *Heap) NewExn(tag *TagInstance, payload []uint64) Ref {
	idx := uint32(len(h.objects))
	h.objects = append(h.objects, HeapObject{Kind: HeapObjectKindExn, Exn: &ExnObject{Tag: tag, Payload: payload}})
	return packHeapHandle(idx)
}

// Get resolves a non-null, non-i31 reference to its HeapObject.
func (h *Heap) Get(r Ref) *HeapObject {
	idx := r.heapIndex()
	if int(idx) >= len(h.objects) {
		return nil
	}
	return &h.objects[idx]
}

// Len returns the number of objects ever allocated (monotonic, not live
// count, since wazerow retains everything for the store's lifetime).
func (h *Heap) Len() int { return len(h.objects) }
