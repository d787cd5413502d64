package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRef_I31RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 1000, -1000, (1 << 30) - 1, -(1 << 30)} {
		r := PackI31(v)
		require.True(t, r.IsI31())
		require.False(t, r.IsNull())
		require.Equal(t, v, r.I31Value())
	}
}

func TestRef_NullIsZero(t *testing.T) {
	require.True(t, NullRef.IsNull())
	require.False(t, NullRef.IsI31())
}

func TestHeap_StructArrayExn(t *testing.T) {
	var h Heap
	s := h.NewStruct(0, []uint64{1, 2, 3})
	require.False(t, s.IsNull())
	obj := h.Get(s)
	require.Equal(t, HeapObjectKindStruct, obj.Kind)
	require.Equal(t, []uint64{1, 2, 3}, obj.Struct.Fields)

	a := h.NewArray(1, []uint64{9, 8})
	obj = h.Get(a)
	require.Equal(t, HeapObjectKindArray, obj.Kind)
	require.Equal(t, 2, h.Len())

	tag := NewTagInstance(&FunctionType{})
	e := h.NewExn(tag, []uint64{42})
	obj = h.Get(e)
	require.Equal(t, HeapObjectKindExn, obj.Kind)
	require.Equal(t, tag, obj.Exn.Tag)
}
