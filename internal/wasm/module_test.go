package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazerow/wazerow/api"
)

func TestFunctionType_String(t *testing.T) {
	ft := &FunctionType{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI64}, Results: []api.ValueType{api.ValueTypeF32}}
	require.Equal(t, "(i32, i64) -> (f32)", ft.String())
}

func TestFunctionType_EqualsSignature(t *testing.T) {
	ft := &FunctionType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	require.True(t, ft.EqualsSignature([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}))
	require.False(t, ft.EqualsSignature([]api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI32}))
	require.False(t, ft.EqualsSignature([]api.ValueType{api.ValueTypeI32}, nil))
}

func TestSectionIDName(t *testing.T) {
	require.Equal(t, "type", SectionIDName(SectionIDType))
	require.Equal(t, "tag", SectionIDName(SectionIDTag))
	require.Equal(t, "unknown(99)", SectionIDName(SectionID(99)))
}

func TestModule_ImportCounts(t *testing.T) {
	max := uint32(1)
	m := &Module{
		ImportSection: []*Import{
			{Type: api.ExternTypeFunc},
			{Type: api.ExternTypeTable, DescTable: &Table{Type: api.ValueTypeFuncref, Max: &max}},
			{Type: api.ExternTypeMemory, DescMem: &Memory{}},
			{Type: api.ExternTypeGlobal, DescGlobal: &GlobalType{}},
			{Type: api.ExternTypeFunc},
		},
	}
	require.Equal(t, uint32(2), m.ImportFuncCount())
	require.Equal(t, uint32(1), m.ImportTableCount())
	require.Equal(t, uint32(1), m.ImportMemoryCount())
	require.Equal(t, uint32(1), m.ImportGlobalCount())
}

func TestModule_Exports(t *testing.T) {
	m := &Module{ExportSection: []*Export{{Name: "foo", Type: api.ExternTypeFunc, Index: 3}}}
	exp := m.Exports("foo")
	require.NotNil(t, exp)
	require.Equal(t, uint32(3), exp.Index)
	require.Nil(t, m.Exports("bar"))
}
