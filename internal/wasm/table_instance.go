package wasm

import (
	"context"

	"github.com/wazerow/wazerow/api"
)

// TableInstance is a table's runtime state: a growable vector of references
// (function indices for funcref tables, opaque/GC handles otherwise),
// stored as Ref-encoded values (see Ref for the i31-vs-heap-handle
// encoding).
type TableInstance struct {
	ElemType   api.ValueType
	Max        *uint32
	References []Ref
}

// NewTableInstance allocates a TableInstance sized to t.Min, every slot
// initialized to the null reference.
func NewTableInstance(t *Table) *TableInstance {
	return &TableInstance{
		ElemType:   t.Type,
		Max:        t.Max,
		References: make([]Ref, t.Min),
	}
}

// Type implements api.Table.
func (t *TableInstance) Type() api.ValueType { return t.ElemType }

// Size implements api.Table.
func (t *TableInstance) Size(context.Context) uint32 { return uint32(len(t.References)) }

// Grow implements api.Table. It returns the previous size, or false if the
// delta would exceed the table's declared maximum.
func (t *TableInstance) Grow(_ context.Context, delta uint32, init uint64) (uint32, bool) {
	prev := uint32(len(t.References))
	newSize := uint64(prev) + uint64(delta)
	if t.Max != nil && newSize > uint64(*t.Max) {
		return 0, false
	}
	if newSize > uint64(MemoryLimitPages) { // sane absolute ceiling, mirrors memory
		return 0, false
	}
	grown := make([]Ref, newSize)
	copy(grown, t.References)
	for i := prev; i < uint32(newSize); i++ {
		grown[i] = Ref(init)
	}
	t.References = grown
	return prev, true
}

var _ api.Table = (*TableInstance)(nil)
